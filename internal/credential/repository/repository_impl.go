package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/paybridge/internal/credential/domain"
	pkgdb "github.com/smallbiznis/paybridge/pkg/db"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) List(ctx context.Context, db *gorm.DB) ([]domain.Credential, error) {
	var creds []domain.Credential
	err := db.WithContext(ctx).Raw(
		`SELECT id, name, client_id, client_secret, environment, is_active, created_at, updated_at
		 FROM gateway_credentials
		 ORDER BY environment, name`,
	).Scan(&creds).Error
	if err != nil {
		return nil, err
	}
	return creds, nil
}

func (r *repo) FindByName(ctx context.Context, db *gorm.DB, name string) (*domain.Credential, error) {
	var item domain.Credential
	err := db.WithContext(ctx).Raw(
		`SELECT id, name, client_id, client_secret, environment, is_active, created_at, updated_at
		 FROM gateway_credentials
		 WHERE name = ?
		 LIMIT 1`,
		name,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) FindActive(ctx context.Context, db *gorm.DB, environment string) (*domain.Credential, error) {
	var item domain.Credential
	err := db.WithContext(ctx).Raw(
		`SELECT id, name, client_id, client_secret, environment, is_active, created_at, updated_at
		 FROM gateway_credentials
		 WHERE environment = ? AND is_active = TRUE
		 ORDER BY updated_at DESC
		 LIMIT 1`,
		environment,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, cred *domain.Credential) error {
	err := db.WithContext(ctx).Exec(
		`INSERT INTO gateway_credentials (
			id, name, client_id, client_secret, environment, is_active, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		cred.ID,
		cred.Name,
		cred.ClientID,
		cred.ClientSecret,
		cred.Environment,
		cred.IsActive,
		cred.CreatedAt,
		cred.UpdatedAt,
	).Error
	if pkgdb.IsDuplicateKeyErr(err) {
		return domain.ErrAlreadyExists
	}
	return err
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, cred *domain.Credential) error {
	return db.WithContext(ctx).Exec(
		`UPDATE gateway_credentials
		 SET client_id = ?, client_secret = ?, environment = ?, is_active = ?, updated_at = ?
		 WHERE id = ?`,
		cred.ClientID,
		cred.ClientSecret,
		cred.Environment,
		cred.IsActive,
		cred.UpdatedAt,
		cred.ID,
	).Error
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, name string) (bool, error) {
	res := db.WithContext(ctx).Exec(`DELETE FROM gateway_credentials WHERE name = ?`, name)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) DeactivateEnvironment(ctx context.Context, db *gorm.DB, environment string, exceptID snowflake.ID, updatedAt time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE gateway_credentials
		 SET is_active = FALSE, updated_at = ?
		 WHERE environment = ? AND id <> ? AND is_active = TRUE`,
		updatedAt,
		environment,
		exceptID,
	).Error
}

func (r *repo) SetActive(ctx context.Context, db *gorm.DB, id snowflake.ID, isActive bool, updatedAt time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE gateway_credentials
		 SET is_active = ?, updated_at = ?
		 WHERE id = ?`,
		isActive,
		updatedAt,
		id,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
