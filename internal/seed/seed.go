// Package seed populates the credential database and the document
// store with demo data for development. It is never wired into the
// server; cmd/seed is its only caller besides tests.
package seed

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"time"

	"eslive/internal/models"
	"eslive/internal/repository"
	"eslive/internal/store"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Options controls how much demo data the seeder creates.
type Options struct {
	NumViewers  int
	NumMessages int
	ShouldClean bool
}

// Seeder writes demo credentials, profiles, chat and settings.
type Seeder struct {
	db    *gorm.DB
	gw    store.Gateway
	creds repository.CredentialRepository
	rng   *rand.Rand

	// one bcrypt hash shared by all demo accounts; hashing per user
	// makes large seeds painfully slow
	passwordHash string
}

// DemoPassword is the plaintext password every seeded account gets.
const DemoPassword = "password123"

// NewSeeder creates a Seeder bound to the credential database and the
// document store gateway.
func NewSeeder(db *gorm.DB, gw store.Gateway) (*Seeder, error) {
	gofakeit.Seed(time.Now().UnixNano())

	hash, err := bcrypt.GenerateFromPassword([]byte(DemoPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hashing demo password: %w", err)
	}

	return &Seeder{
		db:           db,
		gw:           gw,
		creds:        repository.NewCredentialRepository(db),
		rng:          rand.New(rand.NewSource(time.Now().UnixNano())),
		passwordHash: string(hash),
	}, nil
}

// ClearAll removes every seeded credential and wipes the chat and
// profile collections from the document store.
func (s *Seeder) ClearAll(ctx context.Context) error {
	if err := s.db.WithContext(ctx).Unscoped().
		Where("1 = 1").Delete(&models.Credential{}).Error; err != nil {
		return fmt.Errorf("clearing credentials: %w", err)
	}
	if err := s.gw.Remove(ctx, store.PathChatMessages); err != nil {
		return fmt.Errorf("clearing chat: %w", err)
	}
	if err := s.gw.Remove(ctx, store.PathUserData); err != nil {
		return fmt.Errorf("clearing profiles: %w", err)
	}
	log.Println("Cleared credentials, chat and profiles")
	return nil
}

// SeedViewers creates one admin account plus n viewer accounts. Each
// account gets a credential row and a profile document; the returned
// records are in creation order with the admin first.
func (s *Seeder) SeedViewers(ctx context.Context, n int) ([]models.UserRecord, error) {
	records := make([]models.UserRecord, 0, n+1)

	admin, err := s.createAccount(ctx, "admin", "admin@es.mn", models.RoleAdmin)
	if err != nil {
		return nil, err
	}
	records = append(records, admin)

	for i := 0; i < n; i++ {
		username := gofakeit.Gamertag()
		email := gofakeit.Email()
		rec, err := s.createAccount(ctx, username, email, models.RoleUser)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	log.Printf("Seeded %d accounts (1 admin, %d viewers)", len(records), n)
	return records, nil
}

func (s *Seeder) createAccount(ctx context.Context, username, email, role string) (models.UserRecord, error) {
	uid := uuid.NewString()
	cred := &models.Credential{
		UID:          uid,
		Email:        email,
		PasswordHash: s.passwordHash,
		DisplayName:  username,
		Provider:     "password",
	}
	if err := s.creds.Create(ctx, cred); err != nil {
		return models.UserRecord{}, fmt.Errorf("creating credential for %s: %w", email, err)
	}

	created := time.Now().Add(-time.Duration(s.rng.Intn(90*24)) * time.Hour)
	rec := models.UserRecord{
		UID:          uid,
		Email:        email,
		Username:     username,
		Role:         role,
		ProfileImage: fmt.Sprintf("https://i.pravatar.cc/150?u=%s", uid),
		CreatedAt:    created.UnixMilli(),
		LastLogin:    time.Now().UnixMilli(),
		LastUpdated:  created.UnixMilli(),
	}
	path := store.ChildPath(store.PathUserData, uid)
	if err := s.gw.Write(ctx, path, rec.ToMap()); err != nil {
		return models.UserRecord{}, fmt.Errorf("writing profile for %s: %w", email, err)
	}
	return rec, nil
}

// SeedChat writes n chat messages authored by the given accounts,
// spread over the last few minutes so they read as a live room and the
// expiry sweep does not reap them immediately.
func (s *Seeder) SeedChat(ctx context.Context, authors []models.UserRecord, n int) error {
	if len(authors) == 0 {
		return fmt.Errorf("no authors to seed chat with")
	}

	for i := 0; i < n; i++ {
		author := authors[s.rng.Intn(len(authors))]
		msg := models.NewChatMessage(author.UID, author.Username, chatLine(s.rng), author.ProfileImage)

		// keep well inside the message TTL
		sent := time.Now().Add(-time.Duration(s.rng.Intn(int(models.MessageTTL.Seconds()/2))) * time.Second)
		msg.SentAt = sent.UnixMilli()
		msg.Timestamp = sent.Format("15:04")

		path := store.ChildPath(store.PathChatMessages, msg.ID)
		if err := s.gw.Write(ctx, path, msg.ToMap()); err != nil {
			return fmt.Errorf("writing chat message: %w", err)
		}
	}

	log.Printf("Seeded %d chat messages", n)
	return nil
}

// SeedSettings writes a plausible live-stream settings document.
func (s *Seeder) SeedSettings(ctx context.Context) error {
	game := gameTitles[s.rng.Intn(len(gameTitles))]
	settings := models.Settings{
		StreamTitle:       fmt.Sprintf("%s Invitational — Grand Final", game),
		StreamDescription: gofakeit.Sentence(12),
		StreamLink:        "https://www.youtube.com/watch?v=jfKfPfyJRdk",
		IsStreamActive:    true,
		IsAdActive:        false,
		AdTitle:           gofakeit.Company(),
		AdDescription:     gofakeit.Slogan(),
		AdWebsiteLink:     gofakeit.URL(),
		SiteName:          "ES.mn",
		GameTitle:         game,
		Category:          "Esports",
		NextMatch:         time.Now().Add(26 * time.Hour).Format("Jan 2 15:04 MST"),
		Sponsors:          fmt.Sprintf("%s, %s", gofakeit.Company(), gofakeit.Company()),
	}

	if err := s.gw.Write(ctx, store.PathAdminSettings, settings.ToMap()); err != nil {
		return fmt.Errorf("writing settings: %w", err)
	}
	log.Println("Seeded site settings")
	return nil
}

var gameTitles = []string{
	"Counter-Strike 2", "Dota 2", "League of Legends",
	"StarCraft II", "Valorant", "Rocket League",
}

var chatOpeners = []string{
	"gg", "glhf", "lets gooo", "what a play", "ref is blind",
	"that clutch tho", "ez", "pog", "unreal save", "who is casting today?",
}

// chatLine produces a short chat message, mixing canned reactions with
// generated filler so the room does not look like a template.
func chatLine(rng *rand.Rand) string {
	if rng.Intn(3) == 0 {
		return chatOpeners[rng.Intn(len(chatOpeners))]
	}
	return gofakeit.HipsterSentence(rng.Intn(8) + 3)
}
