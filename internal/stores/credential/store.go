package credential

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/notewell/crmbridge/internal/crm"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// ErrNotFound is returned when no credential exists for the lookup
var ErrNotFound = errors.New("credential not found")

// Changes describes a single atomic mutation of a stored credential.
// RefreshToken is optional: an empty value keeps the existing token,
// since some providers omit a new refresh token from their refresh
// response. Metadata keys are merged over the existing map; keys not
// named are preserved.
type Changes struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    *time.Time
	Metadata     map[string]string
}

// Store interface defines methods for credential persistence. The
// store is the single source of truth for a credential's current
// tokens; Update applies its change-set in one atomic call.
type Store interface {
	Create(ctx context.Context, cred *crm.Credential) error
	Get(ctx context.Context, id uuid.UUID) (*crm.Credential, error)
	GetByUserProvider(ctx context.Context, userID string, provider crm.Provider) (*crm.Credential, error)
	Update(ctx context.Context, id uuid.UUID, changes Changes) (*crm.Credential, error)
	ListExpiring(ctx context.Context, provider crm.Provider, before time.Time) ([]*crm.Credential, error)
}

// MySqlStore handles credential persistence using GORM
type MySqlStore struct {
	db *gorm.DB
}

// NewMySqlStore creates a new credential store with GORM connection
func NewMySqlStore(databaseURL string) (*MySqlStore, error) {
	db, err := gorm.Open(mysql.Open(databaseURL), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &MySqlStore{db: db}

	// Auto-migrate tables
	if err := db.AutoMigrate(&CredentialModel{}); err != nil {
		return nil, fmt.Errorf("failed to migrate tables: %w", err)
	}

	return store, nil
}

// Create stores a new credential, assigning an ID if unset
func (s *MySqlStore) Create(ctx context.Context, cred *crm.Credential) error {
	if cred.ID == uuid.Nil {
		cred.ID = uuid.New()
	}

	model, err := fromCredential(cred)
	if err != nil {
		return err
	}

	if err := s.db.WithContext(ctx).Create(model).Error; err != nil {
		return fmt.Errorf("failed to create credential: %w", err)
	}

	return nil
}

// Get retrieves a credential by ID
func (s *MySqlStore) Get(ctx context.Context, id uuid.UUID) (*crm.Credential, error) {
	var model CredentialModel
	result := s.db.WithContext(ctx).First(&model, "id = ?", id)

	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get credential: %w", result.Error)
	}

	return model.toCredential()
}

// GetByUserProvider retrieves the credential for a user's integration
// slot with the given provider
func (s *MySqlStore) GetByUserProvider(ctx context.Context, userID string, provider crm.Provider) (*crm.Credential, error) {
	var model CredentialModel
	result := s.db.WithContext(ctx).First(&model, "user_id = ? AND provider = ?", userID, string(provider))

	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get credential: %w", result.Error)
	}

	return model.toCredential()
}

// Update applies the change-set to a stored credential in a single
// transaction and returns the stored result
func (s *MySqlStore) Update(ctx context.Context, id uuid.UUID, changes Changes) (*crm.Credential, error) {
	var updated *crm.Credential

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var model CredentialModel
		if err := tx.First(&model, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("failed to load credential: %w", err)
		}

		cred, err := model.toCredential()
		if err != nil {
			return err
		}

		applyChanges(cred, changes)

		next, err := fromCredential(cred)
		if err != nil {
			return err
		}

		if err := tx.Model(&model).Updates(map[string]any{
			"access_token":  next.AccessToken,
			"refresh_token": next.RefreshToken,
			"expires_at":    next.ExpiresAt,
			"metadata":      next.Metadata,
		}).Error; err != nil {
			return fmt.Errorf("failed to update credential: %w", err)
		}

		updated = cred
		return nil
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

// ListExpiring returns all credentials for a provider whose expiry
// falls before the given cutoff. Credentials with no expiry are not
// included; they are handled by the on-demand staleness check instead.
func (s *MySqlStore) ListExpiring(ctx context.Context, provider crm.Provider, before time.Time) ([]*crm.Credential, error) {
	var models []CredentialModel
	result := s.db.WithContext(ctx).
		Where("provider = ? AND expires_at IS NOT NULL AND expires_at < ?", string(provider), before).
		Order("expires_at ASC").
		Find(&models)

	if result.Error != nil {
		return nil, fmt.Errorf("failed to list expiring credentials: %w", result.Error)
	}

	creds := make([]*crm.Credential, 0, len(models))
	for i := range models {
		cred, err := models[i].toCredential()
		if err != nil {
			return nil, err
		}
		creds = append(creds, cred)
	}

	return creds, nil
}

// Close closes the database connection
func (s *MySqlStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB from gorm.DB: %w", err)
	}
	return sqlDB.Close()
}

// applyChanges merges a change-set into a credential. The refresh token
// is only replaced when the change-set carries one, and metadata keys
// are merged without discarding existing entries.
func applyChanges(cred *crm.Credential, changes Changes) {
	cred.AccessToken = changes.AccessToken
	if changes.RefreshToken != "" {
		cred.RefreshToken = changes.RefreshToken
	}
	cred.ExpiresAt = changes.ExpiresAt

	if len(changes.Metadata) > 0 {
		if cred.Metadata == nil {
			cred.Metadata = make(map[string]string, len(changes.Metadata))
		}
		for k, v := range changes.Metadata {
			cred.Metadata[k] = v
		}
	}
}
