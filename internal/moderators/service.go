package moderators

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/modkit/modnotes/internal/wikistore"
)

var (
	// ErrInvalidCredentials indicates an unknown moderator or a wrong
	// password; the two cases are deliberately indistinguishable.
	ErrInvalidCredentials = errors.New("moderators: invalid credentials")
	// ErrModeratorExists indicates the name is already registered.
	ErrModeratorExists = errors.New("moderators: moderator already exists")
	// ErrInvalidModeratorName indicates an empty moderator name.
	ErrInvalidModeratorName = errors.New("moderators: invalid moderator name")
	// ErrInvalidPassword indicates an empty password.
	ErrInvalidPassword = errors.New("moderators: invalid password")

	errMissingDatabase = errors.New("database connection required")
)

// ServiceConfig describes the dependencies for moderator management.
type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider wikistore.IDProvider
}

// Service registers moderator accounts and verifies login credentials.
type Service struct {
	db         *gorm.DB
	now        func() time.Time
	idProvider wikistore.IDProvider
}

// NewService constructs the moderator service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("moderators: %w", errMissingDatabase)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	idProvider := cfg.IDProvider
	if idProvider == nil {
		idProvider = wikistore.NewUUIDProvider()
	}
	return &Service{db: cfg.Database, now: clock, idProvider: idProvider}, nil
}

// Register creates a moderator account with a bcrypt-hashed password.
func (s *Service) Register(ctx context.Context, name, password, displayName string) (Identity, error) {
	name = normalizeName(name)
	if name == "" {
		return Identity{}, ErrInvalidModeratorName
	}
	if password == "" {
		return Identity{}, ErrInvalidPassword
	}

	var existing Identity
	err := s.db.WithContext(ctx).Where("name = ?", name).Take(&existing).Error
	if err == nil {
		return Identity{}, fmt.Errorf("%w: %s", ErrModeratorExists, name)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return Identity{}, fmt.Errorf("moderators: lookup failed: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return Identity{}, fmt.Errorf("moderators: hash password: %w", err)
	}
	credentialID, err := s.idProvider.NewID()
	if err != nil {
		return Identity{}, fmt.Errorf("moderators: credential id: %w", err)
	}

	identity := Identity{
		Name:         name,
		CredentialID: credentialID,
		PasswordHash: string(hash),
		DisplayName:  normalize(displayName),
		LastSeenAt:   s.now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&identity).Error; err != nil {
		return Identity{}, fmt.Errorf("moderators: create failed: %w", err)
	}
	return identity, nil
}

// Verify checks a login attempt and returns the moderator identity on
// success, updating its last-seen time.
func (s *Service) Verify(ctx context.Context, name, password string) (Identity, error) {
	name = normalizeName(name)
	if name == "" || password == "" {
		return Identity{}, ErrInvalidCredentials
	}

	var identity Identity
	err := s.db.WithContext(ctx).Where("name = ?", name).Take(&identity).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Identity{}, ErrInvalidCredentials
	}
	if err != nil {
		return Identity{}, fmt.Errorf("moderators: lookup failed: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(identity.PasswordHash), []byte(password)); err != nil {
		return Identity{}, ErrInvalidCredentials
	}

	identity.LastSeenAt = s.now().UTC()
	if err := s.db.WithContext(ctx).Model(&identity).Update("last_seen_at", identity.LastSeenAt).Error; err != nil {
		return Identity{}, fmt.Errorf("moderators: touch failed: %w", err)
	}
	return identity, nil
}

// Get returns the moderator account for the name.
func (s *Service) Get(ctx context.Context, name string) (Identity, error) {
	var identity Identity
	err := s.db.WithContext(ctx).Where("name = ?", normalizeName(name)).Take(&identity).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Identity{}, ErrInvalidCredentials
	}
	if err != nil {
		return Identity{}, fmt.Errorf("moderators: lookup failed: %w", err)
	}
	return identity, nil
}
