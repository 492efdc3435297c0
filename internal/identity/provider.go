package identity

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"eslive/internal/models"
	"eslive/internal/observability"
	"eslive/internal/repository"
	"eslive/internal/validation"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const tokenTTL = 24 * time.Hour

// AuthChangeFunc receives the principal after a sign-in, or nil after a
// sign-out.
type AuthChangeFunc func(p *models.Principal)

// Provider is the identity collaborator the rest of the application
// consumes. Session tokens are opaque to callers; the HTTP middleware
// verifies them with the same secret.
type Provider interface {
	SignIn(ctx context.Context, email, password string) (*models.Principal, string, error)
	SignUp(ctx context.Context, email, password, displayName string) (*models.Principal, string, error)
	SendPasswordReset(ctx context.Context, email string) error
	SignOut(ctx context.Context, uid string) error
	OnAuthChange(fn AuthChangeFunc) (unsubscribe func())
	Lookup(ctx context.Context, uid string) (*models.Principal, error)
}

// Service is the GORM-backed Provider implementation.
type Service struct {
	creds     repository.CredentialRepository
	jwtSecret string

	mu        sync.Mutex
	listeners map[int]AuthChangeFunc
	nextID    int
	// activeUID is the principal listeners were last told about; it
	// scopes sign-out notifications to the session that owns them.
	activeUID string
}

// NewService creates an identity Service.
func NewService(creds repository.CredentialRepository, jwtSecret string) *Service {
	return &Service{
		creds:     creds,
		jwtSecret: jwtSecret,
		listeners: make(map[int]AuthChangeFunc),
	}
}

// SignIn authenticates an email/password pair and returns the principal
// with a session token.
func (s *Service) SignIn(ctx context.Context, email, password string) (*models.Principal, string, error) {
	if err := validation.ValidateEmail(email); err != nil {
		return nil, "", NewAuthError(CodeInvalidEmail, err)
	}

	cred, err := s.creds.GetByEmail(ctx, email)
	if err != nil {
		return nil, "", NewAuthError(CodeUnknown, err)
	}
	if cred == nil {
		return nil, "", NewAuthError(CodeUserNotFound, nil)
	}
	if cred.Disabled {
		return nil, "", NewAuthError(CodeUserDisabled, nil)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(password)); err != nil {
		return nil, "", NewAuthError(CodeWrongPassword, nil)
	}

	token, err := s.generateToken(cred.UID)
	if err != nil {
		return nil, "", NewAuthError(CodeUnknown, err)
	}

	principal := cred.Principal()
	s.notify(&principal)
	return &principal, token, nil
}

// SignUp creates an account and signs it in.
func (s *Service) SignUp(ctx context.Context, email, password, displayName string) (*models.Principal, string, error) {
	if err := validation.ValidateEmail(email); err != nil {
		return nil, "", NewAuthError(CodeInvalidEmail, err)
	}
	if err := validation.ValidatePassword(password); err != nil {
		return nil, "", NewAuthError(CodeWeakPassword, err)
	}

	existing, err := s.creds.GetByEmail(ctx, email)
	if err != nil {
		return nil, "", NewAuthError(CodeUnknown, err)
	}
	if existing != nil {
		return nil, "", NewAuthError(CodeEmailAlreadyInUse, nil)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", NewAuthError(CodeUnknown, err)
	}

	cred := &models.Credential{
		UID:          uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		DisplayName:  displayName,
		Provider:     "password",
	}
	if err := s.creds.Create(ctx, cred); err != nil {
		return nil, "", NewAuthError(CodeUnknown, err)
	}

	token, err := s.generateToken(cred.UID)
	if err != nil {
		return nil, "", NewAuthError(CodeUnknown, err)
	}

	principal := cred.Principal()
	s.notify(&principal)
	return &principal, token, nil
}

// SendPasswordReset issues a short-lived reset token for the account.
// Delivery is out of scope; the token is logged for the operator to
// relay.
func (s *Service) SendPasswordReset(ctx context.Context, email string) error {
	if err := validation.ValidateEmail(email); err != nil {
		return NewAuthError(CodeInvalidEmail, err)
	}

	cred, err := s.creds.GetByEmail(ctx, email)
	if err != nil {
		return NewAuthError(CodeUnknown, err)
	}
	if cred == nil {
		return NewAuthError(CodeUserNotFound, nil)
	}

	reset, err := s.generateResetToken(cred.UID)
	if err != nil {
		return NewAuthError(CodeUnknown, err)
	}

	observability.GlobalLogger.InfoContext(ctx, "password reset issued",
		slog.String("uid", cred.UID),
		slog.String("reset_token", reset),
	)
	return nil
}

// SignOut ends the session and notifies auth-change listeners. A
// sign-out for a uid other than the active session's is a no-op, so one
// viewer's logout never clears another's mirrored state.
func (s *Service) SignOut(ctx context.Context, uid string) error {
	_ = ctx
	s.mu.Lock()
	active := s.activeUID
	s.mu.Unlock()
	if active != uid {
		return nil
	}
	s.notify(nil)
	return nil
}

// Lookup resolves a uid to its principal.
func (s *Service) Lookup(ctx context.Context, uid string) (*models.Principal, error) {
	cred, err := s.creds.GetByUID(ctx, uid)
	if err != nil {
		return nil, NewAuthError(CodeUnknown, err)
	}
	if cred == nil {
		return nil, NewAuthError(CodeUserNotFound, nil)
	}
	principal := cred.Principal()
	return &principal, nil
}

// OnAuthChange registers a listener for sign-in and sign-out events.
// The returned function releases the registration; it is safe to call
// more than once.
func (s *Service) OnAuthChange(fn AuthChangeFunc) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

func (s *Service) notify(p *models.Principal) {
	s.mu.Lock()
	if p != nil {
		s.activeUID = p.UID
	} else {
		s.activeUID = ""
	}
	fns := make([]AuthChangeFunc, 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(p)
	}
}

func (s *Service) generateToken(uid string) (string, error) {
	claims := jwt.MapClaims{
		"sub": uid,
		"exp": time.Now().Add(tokenTTL).Unix(),
		"iat": time.Now().Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.jwtSecret))
}

func (s *Service) generateResetToken(uid string) (string, error) {
	claims := jwt.MapClaims{
		"sub":     uid,
		"purpose": "password-reset",
		"exp":     time.Now().Add(15 * time.Minute).Unix(),
		"iat":     time.Now().Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.jwtSecret))
}
