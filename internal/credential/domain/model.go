package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

const (
	EnvironmentSandbox = "sandbox"
	EnvironmentLive    = "live"
)

// Credential is the stored form. ClientID and ClientSecret hold encrypted
// envelopes, never plaintext.
type Credential struct {
	ID           snowflake.ID `json:"id" gorm:"primaryKey"`
	Name         string       `json:"name" gorm:"type:text;not null"`
	ClientID     string       `json:"-" gorm:"column:client_id;type:text;not null"`
	ClientSecret string       `json:"-" gorm:"column:client_secret;type:text;not null"`
	Environment  string       `json:"environment" gorm:"type:text;not null"`
	IsActive     bool         `json:"is_active" gorm:"not null;default:false"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

func (Credential) TableName() string { return "gateway_credentials" }

type Repository interface {
	List(ctx context.Context, db *gorm.DB) ([]Credential, error)
	FindByName(ctx context.Context, db *gorm.DB, name string) (*Credential, error)
	FindActive(ctx context.Context, db *gorm.DB, environment string) (*Credential, error)
	Insert(ctx context.Context, db *gorm.DB, cred *Credential) error
	Update(ctx context.Context, db *gorm.DB, cred *Credential) error
	Delete(ctx context.Context, db *gorm.DB, name string) (bool, error)
	DeactivateEnvironment(ctx context.Context, db *gorm.DB, environment string, exceptID snowflake.ID, updatedAt time.Time) error
	SetActive(ctx context.Context, db *gorm.DB, id snowflake.ID, isActive bool, updatedAt time.Time) (bool, error)
}
