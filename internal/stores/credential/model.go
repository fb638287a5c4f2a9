package credential

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/notewell/crmbridge/internal/crm"
)

// CredentialModel is the GORM representation of a stored credential.
// Metadata is serialized as a JSON string column so provider-specific
// keys stay open-ended.
type CredentialModel struct {
	ID        uuid.UUID `gorm:"type:char(36);primaryKey"`
	CreatedAt time.Time
	UpdatedAt time.Time

	UserID       string     `gorm:"size:191;uniqueIndex:idx_user_provider"`
	Provider     string     `gorm:"size:32;uniqueIndex:idx_user_provider"`
	AccessToken  string     `gorm:"size:2048"`
	RefreshToken string     `gorm:"size:2048"`
	ExpiresAt    *time.Time `gorm:"index"`
	Metadata     string     `gorm:"type:text"`
}

// TableName sets the database table name for credentials
func (CredentialModel) TableName() string {
	return "crm_credentials"
}

// toCredential converts the database model into the domain credential
func (m *CredentialModel) toCredential() (*crm.Credential, error) {
	metadata := map[string]string{}
	if m.Metadata != "" {
		if err := json.Unmarshal([]byte(m.Metadata), &metadata); err != nil {
			return nil, fmt.Errorf("failed to decode credential metadata: %w", err)
		}
	}

	return &crm.Credential{
		ID:           m.ID,
		UserID:       m.UserID,
		Provider:     crm.Provider(m.Provider),
		AccessToken:  m.AccessToken,
		RefreshToken: m.RefreshToken,
		ExpiresAt:    m.ExpiresAt,
		Metadata:     metadata,
	}, nil
}

// fromCredential converts a domain credential into the database model
func fromCredential(cred *crm.Credential) (*CredentialModel, error) {
	metadata := "{}"
	if len(cred.Metadata) > 0 {
		b, err := json.Marshal(cred.Metadata)
		if err != nil {
			return nil, fmt.Errorf("failed to encode credential metadata: %w", err)
		}
		metadata = string(b)
	}

	return &CredentialModel{
		ID:           cred.ID,
		UserID:       cred.UserID,
		Provider:     string(cred.Provider),
		AccessToken:  cred.AccessToken,
		RefreshToken: cred.RefreshToken,
		ExpiresAt:    cred.ExpiresAt,
		Metadata:     metadata,
	}, nil
}
