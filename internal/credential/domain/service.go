package domain

import (
	"context"
	"errors"
	"strconv"
	"time"
)

type Service interface {
	Store(ctx context.Context, req StoreRequest) (*Summary, error)
	Update(ctx context.Context, name string, req UpdateRequest) (*Summary, error)
	Delete(ctx context.Context, name string) error
	Get(ctx context.Context, name string) (*Summary, error)
	List(ctx context.Context) ([]Summary, error)
	GetActive(ctx context.Context, environment string) (*Resolved, error)
	SetActive(ctx context.Context, name string) (*Summary, error)
	Deactivate(ctx context.Context, name string) (*Summary, error)
}

type StoreRequest struct {
	Name         string `json:"name" validate:"required,max=64"`
	ClientID     string `json:"client_id" validate:"required"`
	ClientSecret string `json:"client_secret" validate:"required"`
	Environment  string `json:"environment" validate:"omitempty,oneof=sandbox live"`
	Activate     bool   `json:"activate"`
	// Force overwrites an existing credential with the same name.
	Force bool `json:"force"`
}

type UpdateRequest struct {
	ClientID     *string `json:"client_id,omitempty" validate:"omitempty,min=1"`
	ClientSecret *string `json:"client_secret,omitempty" validate:"omitempty,min=1"`
	Environment  *string `json:"environment,omitempty" validate:"omitempty,oneof=sandbox live"`
}

// Summary is safe to return over the admin API.
type Summary struct {
	Name           string    `json:"name"`
	Environment    string    `json:"environment"`
	IsActive       bool      `json:"is_active"`
	ClientIDMasked string    `json:"client_id"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Resolved carries decrypted secrets for a single outbound use.
type Resolved struct {
	ID           int64
	Name         string
	Environment  string
	ClientID     string
	ClientSecret string
	UpdatedAt    time.Time
}

// Version changes whenever the credential row is rewritten.
func (r Resolved) Version() string {
	return strconv.FormatInt(r.ID, 10) + ":" + strconv.FormatInt(r.UpdatedAt.UnixNano(), 10)
}

var (
	ErrNotFound             = errors.New("not_found")
	ErrAlreadyExists        = errors.New("already_exists")
	ErrInvalidName          = errors.New("invalid_name")
	ErrInvalidEnvironment   = errors.New("invalid_environment")
	ErrInvalidCredential    = errors.New("invalid_credential")
	ErrEncryptionKeyMissing = errors.New("encryption_key_missing")
	ErrDecryptFailed        = errors.New("decrypt_failed")
)
