package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"eslive/internal/models"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/facebook"
	"golang.org/x/oauth2/google"
)

// Federated provider names accepted by the OAuth endpoints.
const (
	ProviderGoogle   = "google"
	ProviderFacebook = "facebook"
)

const (
	googleUserInfoURL   = "https://www.googleapis.com/oauth2/v2/userinfo"
	facebookUserInfoURL = "https://graph.facebook.com/me?fields=id,name,email,picture.type(large)"
)

// FederatedCredentials configures one OAuth provider.
type FederatedCredentials struct {
	ClientID     string
	ClientSecret string
}

// Federated completes Authorization Code sign-in against Google and
// Facebook, the two providers the site offers.
type Federated struct {
	service      *Service
	callbackBase string
	providers    map[string]FederatedCredentials
}

// NewFederated wires federated sign-in onto the identity service.
func NewFederated(service *Service, callbackBase string, providers map[string]FederatedCredentials) *Federated {
	return &Federated{
		service:      service,
		callbackBase: callbackBase,
		providers:    providers,
	}
}

// Config returns the oauth2 config for a provider name, or an
// operation-not-allowed AuthError when the provider is not configured.
func (f *Federated) Config(name string) (*oauth2.Config, error) {
	creds, ok := f.providers[name]
	if !ok || creds.ClientID == "" {
		return nil, NewAuthError(CodeOperationNotAllowed, fmt.Errorf("provider %q not configured", name))
	}

	cfg := &oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		RedirectURL:  fmt.Sprintf("%s/api/auth/oauth/%s/callback", f.callbackBase, name),
	}
	switch name {
	case ProviderGoogle:
		cfg.Endpoint = google.Endpoint
		cfg.Scopes = []string{"openid", "email", "profile"}
	case ProviderFacebook:
		cfg.Endpoint = facebook.Endpoint
		cfg.Scopes = []string{"email", "public_profile"}
	default:
		return nil, NewAuthError(CodeOperationNotAllowed, fmt.Errorf("unsupported provider %q", name))
	}
	return cfg, nil
}

// SignIn exchanges an authorization code, fetches the provider's user
// info, and signs the federated identity in, creating the credential on
// first use.
func (f *Federated) SignIn(ctx context.Context, name, code string) (*models.Principal, string, error) {
	cfg, err := f.Config(name)
	if err != nil {
		return nil, "", err
	}

	token, err := cfg.Exchange(ctx, code)
	if err != nil {
		return nil, "", NewAuthError(CodeUnknown, fmt.Errorf("code exchange: %w", err))
	}

	info, err := f.fetchUserInfo(ctx, cfg, name, token)
	if err != nil {
		return nil, "", err
	}
	if info.Email == "" {
		return nil, "", NewAuthError(CodeInvalidEmail, fmt.Errorf("provider %s returned no email", name))
	}

	cred, err := f.service.creds.GetByEmail(ctx, info.Email)
	if err != nil {
		return nil, "", NewAuthError(CodeUnknown, err)
	}
	if cred == nil {
		// First federated sign-in: mint a credential with an unusable
		// random password so password sign-in stays closed.
		hash, hashErr := bcrypt.GenerateFromPassword([]byte(uuid.NewString()), bcrypt.DefaultCost)
		if hashErr != nil {
			return nil, "", NewAuthError(CodeUnknown, hashErr)
		}
		cred = &models.Credential{
			UID:          uuid.NewString(),
			Email:        info.Email,
			PasswordHash: string(hash),
			DisplayName:  info.Name,
			AvatarURL:    info.Picture,
			Provider:     name,
		}
		if createErr := f.service.creds.Create(ctx, cred); createErr != nil {
			return nil, "", NewAuthError(CodeUnknown, createErr)
		}
	}
	if cred.Disabled {
		return nil, "", NewAuthError(CodeUserDisabled, nil)
	}

	sessionToken, err := f.service.generateToken(cred.UID)
	if err != nil {
		return nil, "", NewAuthError(CodeUnknown, err)
	}

	principal := cred.Principal()
	f.service.notify(&principal)
	return &principal, sessionToken, nil
}

type federatedUserInfo struct {
	Email   string
	Name    string
	Picture string
}

func (f *Federated) fetchUserInfo(ctx context.Context, cfg *oauth2.Config, name string, token *oauth2.Token) (*federatedUserInfo, error) {
	url := googleUserInfoURL
	if name == ProviderFacebook {
		url = facebookUserInfoURL
	}

	resp, err := cfg.Client(ctx, token).Get(url)
	if err != nil {
		return nil, NewAuthError(CodeUnknown, fmt.Errorf("fetch user info: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, NewAuthError(CodeUnknown, fmt.Errorf("user info status %d: %s", resp.StatusCode, body))
	}

	switch name {
	case ProviderGoogle:
		var payload struct {
			Email   string `json:"email"`
			Name    string `json:"name"`
			Picture string `json:"picture"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
			return nil, NewAuthError(CodeUnknown, err)
		}
		return &federatedUserInfo{Email: payload.Email, Name: payload.Name, Picture: payload.Picture}, nil
	case ProviderFacebook:
		var payload struct {
			Email   string `json:"email"`
			Name    string `json:"name"`
			Picture struct {
				Data struct {
					URL string `json:"url"`
				} `json:"data"`
			} `json:"picture"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
			return nil, NewAuthError(CodeUnknown, err)
		}
		return &federatedUserInfo{Email: payload.Email, Name: payload.Name, Picture: payload.Picture.Data.URL}, nil
	}
	return nil, NewAuthError(CodeOperationNotAllowed, fmt.Errorf("unsupported provider %q", name))
}
