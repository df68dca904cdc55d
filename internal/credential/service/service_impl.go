package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/go-playground/validator/v10"
	"github.com/gosimple/slug"
	auditdomain "github.com/smallbiznis/paybridge/internal/audit/domain"
	auditmasking "github.com/smallbiznis/paybridge/internal/audit/masking"
	"github.com/smallbiznis/paybridge/internal/config"
	"github.com/smallbiznis/paybridge/internal/credential/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const auditTargetType = "gateway_credential"

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Repo     domain.Repository
	Cfg      config.Config
	AuditSvc auditdomain.Service `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	repo     domain.Repository
	genID    *snowflake.Node
	encKey   []byte
	validate *validator.Validate
	auditSvc auditdomain.Service
}

func New(p Params) (domain.Service, error) {
	key, err := deriveKey(p.Cfg.Gateway.CredentialSecret)
	if err != nil {
		return nil, err
	}

	return &Service{
		db:       p.DB,
		log:      p.Log.Named("credential.service"),
		repo:     p.Repo,
		genID:    p.GenID,
		encKey:   key,
		validate: validator.New(),
		auditSvc: p.AuditSvc,
	}, nil
}

func (s *Service) Store(ctx context.Context, req domain.StoreRequest) (*domain.Summary, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.ClientID = strings.TrimSpace(req.ClientID)
	req.ClientSecret = strings.TrimSpace(req.ClientSecret)
	req.Environment = strings.ToLower(strings.TrimSpace(req.Environment))
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidCredential, err)
	}

	name, err := normalizeName(req.Name)
	if err != nil {
		return nil, err
	}
	environment := config.NormalizeGatewayEnv(req.Environment)

	encClientID, err := encryptValue(s.encKey, req.ClientID)
	if err != nil {
		return nil, err
	}
	encSecret, err := encryptValue(s.encKey, req.ClientSecret)
	if err != nil {
		return nil, err
	}

	var (
		saved     domain.Credential
		overwrite bool
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.repo.FindByName(ctx, tx, name)
		if err != nil {
			return err
		}
		if existing != nil && !req.Force {
			return domain.ErrAlreadyExists
		}

		now := time.Now().UTC()
		saved = domain.Credential{
			ID:           s.genID.Generate(),
			Name:         name,
			ClientID:     encClientID,
			ClientSecret: encSecret,
			Environment:  environment,
			IsActive:     req.Activate,
			CreatedAt:    now,
			UpdatedAt:    now,
		}

		if existing != nil {
			overwrite = true
			saved.ID = existing.ID
			saved.CreatedAt = existing.CreatedAt
			saved.IsActive = existing.IsActive || req.Activate
			if saved.IsActive {
				if err := s.repo.DeactivateEnvironment(ctx, tx, environment, saved.ID, now); err != nil {
					return err
				}
			}
			return s.repo.Update(ctx, tx, &saved)
		}

		if saved.IsActive {
			if err := s.repo.DeactivateEnvironment(ctx, tx, environment, saved.ID, now); err != nil {
				return err
			}
		}
		return s.repo.Insert(ctx, tx, &saved)
	})
	if err != nil {
		return nil, err
	}

	action := "credential.store"
	if overwrite {
		action = "credential.overwrite"
	}
	s.audit(ctx, action, name, map[string]any{
		"environment": environment,
		"is_active":   saved.IsActive,
		"masked_fields": auditmasking.MaskFields(map[string]any{
			"client_id":     req.ClientID,
			"client_secret": req.ClientSecret,
		}),
	})

	return s.summarize(&saved, req.ClientID), nil
}

func (s *Service) Update(ctx context.Context, name string, req domain.UpdateRequest) (*domain.Summary, error) {
	name, err := normalizeName(name)
	if err != nil {
		return nil, err
	}
	if req.Environment != nil {
		env := strings.ToLower(strings.TrimSpace(*req.Environment))
		req.Environment = &env
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidCredential, err)
	}

	masked := map[string]any{}
	var saved domain.Credential
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.repo.FindByName(ctx, tx, name)
		if err != nil {
			return err
		}
		if existing == nil {
			return domain.ErrNotFound
		}
		saved = *existing

		if req.ClientID != nil {
			value := strings.TrimSpace(*req.ClientID)
			if saved.ClientID, err = encryptValue(s.encKey, value); err != nil {
				return err
			}
			masked["client_id"] = value
		}
		if req.ClientSecret != nil {
			value := strings.TrimSpace(*req.ClientSecret)
			if saved.ClientSecret, err = encryptValue(s.encKey, value); err != nil {
				return err
			}
			masked["client_secret"] = value
		}

		now := time.Now().UTC()
		if req.Environment != nil && *req.Environment != saved.Environment {
			saved.Environment = config.NormalizeGatewayEnv(*req.Environment)
			if saved.IsActive {
				if err := s.repo.DeactivateEnvironment(ctx, tx, saved.Environment, saved.ID, now); err != nil {
					return err
				}
			}
		}
		saved.UpdatedAt = now
		return s.repo.Update(ctx, tx, &saved)
	})
	if err != nil {
		return nil, err
	}

	s.audit(ctx, "credential.update", name, map[string]any{
		"environment":    saved.Environment,
		"changed_fields": auditmasking.FieldNames(masked),
		"masked_fields":  auditmasking.MaskFields(masked),
	})

	return s.summarize(&saved, s.plainClientID(&saved)), nil
}

func (s *Service) Delete(ctx context.Context, name string) error {
	name, err := normalizeName(name)
	if err != nil {
		return err
	}

	deleted, err := s.repo.Delete(ctx, s.db, name)
	if err != nil {
		return err
	}
	if !deleted {
		return domain.ErrNotFound
	}

	s.audit(ctx, "credential.delete", name, nil)
	return nil
}

func (s *Service) Get(ctx context.Context, name string) (*domain.Summary, error) {
	name, err := normalizeName(name)
	if err != nil {
		return nil, err
	}

	cred, err := s.repo.FindByName(ctx, s.db, name)
	if err != nil {
		return nil, err
	}
	if cred == nil {
		return nil, domain.ErrNotFound
	}
	return s.summarize(cred, s.plainClientID(cred)), nil
}

func (s *Service) List(ctx context.Context) ([]domain.Summary, error) {
	creds, err := s.repo.List(ctx, s.db)
	if err != nil {
		return nil, err
	}

	resp := make([]domain.Summary, 0, len(creds))
	for i := range creds {
		resp = append(resp, *s.summarize(&creds[i], s.plainClientID(&creds[i])))
	}
	return resp, nil
}

// GetActive decrypts the active credential for environment. Plaintext
// secrets only live in the returned value.
func (s *Service) GetActive(ctx context.Context, environment string) (*domain.Resolved, error) {
	environment = config.NormalizeGatewayEnv(environment)

	cred, err := s.repo.FindActive(ctx, s.db, environment)
	if err != nil {
		return nil, err
	}
	if cred == nil {
		return nil, domain.ErrNotFound
	}

	clientID, err := decryptValue(s.encKey, cred.ClientID)
	if err != nil {
		return nil, err
	}
	clientSecret, err := decryptValue(s.encKey, cred.ClientSecret)
	if err != nil {
		return nil, err
	}

	return &domain.Resolved{
		ID:           cred.ID.Int64(),
		Name:         cred.Name,
		Environment:  cred.Environment,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		UpdatedAt:    cred.UpdatedAt,
	}, nil
}

// SetActive makes name the only active credential of its environment.
// Activating an already active credential is a no-op.
func (s *Service) SetActive(ctx context.Context, name string) (*domain.Summary, error) {
	name, err := normalizeName(name)
	if err != nil {
		return nil, err
	}

	var (
		cred    *domain.Credential
		changed bool
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cred, err = s.repo.FindByName(ctx, tx, name)
		if err != nil {
			return err
		}
		if cred == nil {
			return domain.ErrNotFound
		}

		now := time.Now().UTC()
		if err := s.repo.DeactivateEnvironment(ctx, tx, cred.Environment, cred.ID, now); err != nil {
			return err
		}
		if cred.IsActive {
			return nil
		}
		if _, err := s.repo.SetActive(ctx, tx, cred.ID, true, now); err != nil {
			return err
		}
		cred.IsActive = true
		cred.UpdatedAt = now
		changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if changed {
		s.audit(ctx, "credential.activate", name, map[string]any{
			"environment": cred.Environment,
		})
	}
	return s.summarize(cred, s.plainClientID(cred)), nil
}

func (s *Service) Deactivate(ctx context.Context, name string) (*domain.Summary, error) {
	name, err := normalizeName(name)
	if err != nil {
		return nil, err
	}

	cred, err := s.repo.FindByName(ctx, s.db, name)
	if err != nil {
		return nil, err
	}
	if cred == nil {
		return nil, domain.ErrNotFound
	}
	if !cred.IsActive {
		return s.summarize(cred, s.plainClientID(cred)), nil
	}

	now := time.Now().UTC()
	if _, err := s.repo.SetActive(ctx, s.db, cred.ID, false, now); err != nil {
		return nil, err
	}
	cred.IsActive = false
	cred.UpdatedAt = now

	s.audit(ctx, "credential.deactivate", name, map[string]any{
		"environment": cred.Environment,
	})
	return s.summarize(cred, s.plainClientID(cred)), nil
}

func (s *Service) summarize(cred *domain.Credential, clientID string) *domain.Summary {
	return &domain.Summary{
		Name:           cred.Name,
		Environment:    cred.Environment,
		IsActive:       cred.IsActive,
		ClientIDMasked: auditmasking.MaskSecret(clientID),
		CreatedAt:      cred.CreatedAt,
		UpdatedAt:      cred.UpdatedAt,
	}
}

func (s *Service) plainClientID(cred *domain.Credential) string {
	value, err := decryptValue(s.encKey, cred.ClientID)
	if err != nil {
		if !errors.Is(err, domain.ErrEncryptionKeyMissing) {
			s.log.Warn("failed to decrypt client id", zap.String("name", cred.Name), zap.Error(err))
		}
		return ""
	}
	return value
}

func (s *Service) audit(ctx context.Context, action, name string, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	payload := map[string]any{"name": name}
	for key, value := range metadata {
		if value == nil {
			continue
		}
		payload[key] = value
	}
	targetID := name
	if err := s.auditSvc.AuditLog(ctx, "", nil, action, auditTargetType, &targetID, payload); err != nil {
		s.log.Warn("audit log failed", zap.String("action", action), zap.String("name", name), zap.Error(err))
	}
}

func normalizeName(raw string) (string, error) {
	name := slug.Make(strings.TrimSpace(raw))
	if name == "" {
		return "", domain.ErrInvalidName
	}
	return name, nil
}
