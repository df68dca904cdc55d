package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/paybridge/internal/audit/domain"
	auditrepository "github.com/smallbiznis/paybridge/internal/audit/repository"
	auditservice "github.com/smallbiznis/paybridge/internal/audit/service"
	"github.com/smallbiznis/paybridge/internal/config"
	"github.com/smallbiznis/paybridge/internal/credential/domain"
	"github.com/smallbiznis/paybridge/internal/credential/repository"
	"github.com/smallbiznis/paybridge/internal/migration"
	"github.com/smallbiznis/paybridge/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
)

func setupService(t *testing.T, secret string) (domain.Service, *gorm.DB) {
	t.Helper()

	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, migration.ApplySQLiteSchema(conn))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	auditSvc := auditservice.NewService(auditservice.Params{
		DB:    conn,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  auditrepository.Provide(),
	})

	svc, err := New(Params{
		DB:       conn,
		Log:      zap.NewNop(),
		GenID:    node,
		Repo:     repository.Provide(),
		Cfg:      config.Config{Gateway: config.GatewayConfig{CredentialSecret: secret}},
		AuditSvc: auditSvc,
	})
	require.NoError(t, err)
	return svc, conn
}

func storeCredential(t *testing.T, svc domain.Service, name, env string, activate bool) *domain.Summary {
	t.Helper()
	summary, err := svc.Store(context.Background(), domain.StoreRequest{
		Name:         name,
		ClientID:     "client_" + name + "_id1234",
		ClientSecret: "secret_" + name + "_value9876",
		Environment:  env,
		Activate:     activate,
	})
	require.NoError(t, err)
	return summary
}

func TestStoreEncryptsAndGetActiveDecrypts(t *testing.T) {
	svc, conn := setupService(t, "unit-test-secret")
	ctx := context.Background()

	summary := storeCredential(t, svc, "Primary Account", "sandbox", true)
	assert.Equal(t, "primary-account", summary.Name)
	assert.True(t, summary.IsActive)
	assert.NotContains(t, summary.ClientIDMasked, "id1234")
	assert.Contains(t, summary.ClientIDMasked, "****")

	var raw domain.Credential
	require.NoError(t, conn.Raw(`SELECT * FROM gateway_credentials WHERE name = ?`, "primary-account").Scan(&raw).Error)
	assert.NotContains(t, raw.ClientSecret, "secret_")

	var envelope encryptedPayload
	require.NoError(t, json.Unmarshal([]byte(raw.ClientSecret), &envelope))
	assert.Equal(t, 1, envelope.Version)

	active, err := svc.GetActive(ctx, "sandbox")
	require.NoError(t, err)
	assert.Equal(t, "client_Primary Account_id1234", active.ClientID)
	assert.Equal(t, "secret_Primary Account_value9876", active.ClientSecret)
	assert.NotEmpty(t, active.Version())
}

func TestStoreRejectsDuplicateWithoutForce(t *testing.T) {
	svc, _ := setupService(t, "unit-test-secret")
	ctx := context.Background()

	storeCredential(t, svc, "main", "sandbox", false)

	_, err := svc.Store(ctx, domain.StoreRequest{Name: "main", ClientID: "a", ClientSecret: "b"})
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)

	summary, err := svc.Store(ctx, domain.StoreRequest{Name: "main", ClientID: "new-id", ClientSecret: "new-secret", Environment: "live", Force: true})
	require.NoError(t, err)
	assert.Equal(t, "live", summary.Environment)

	list, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestStoreValidatesInput(t *testing.T) {
	svc, _ := setupService(t, "unit-test-secret")

	_, err := svc.Store(context.Background(), domain.StoreRequest{Name: "x", ClientID: "", ClientSecret: "b"})
	assert.ErrorIs(t, err, domain.ErrInvalidCredential)

	_, err = svc.Store(context.Background(), domain.StoreRequest{Name: "x", ClientID: "a", ClientSecret: "b", Environment: "staging"})
	assert.ErrorIs(t, err, domain.ErrInvalidCredential)

	_, err = svc.Store(context.Background(), domain.StoreRequest{Name: "!!!", ClientID: "a", ClientSecret: "b"})
	assert.ErrorIs(t, err, domain.ErrInvalidName)
}

func TestStoreWithoutSecretFails(t *testing.T) {
	svc, _ := setupService(t, "")

	_, err := svc.Store(context.Background(), domain.StoreRequest{Name: "main", ClientID: "a", ClientSecret: "b"})
	assert.ErrorIs(t, err, domain.ErrEncryptionKeyMissing)
}

func TestSetActiveIsExclusivePerEnvironment(t *testing.T) {
	svc, _ := setupService(t, "unit-test-secret")
	ctx := context.Background()

	storeCredential(t, svc, "first", "sandbox", true)
	storeCredential(t, svc, "second", "sandbox", false)
	storeCredential(t, svc, "prod", "live", true)

	_, err := svc.SetActive(ctx, "second")
	require.NoError(t, err)

	first, err := svc.Get(ctx, "first")
	require.NoError(t, err)
	assert.False(t, first.IsActive)

	prod, err := svc.Get(ctx, "prod")
	require.NoError(t, err)
	assert.True(t, prod.IsActive, "other environments are untouched")

	again, err := svc.SetActive(ctx, "second")
	require.NoError(t, err)
	assert.True(t, again.IsActive)

	active, err := svc.GetActive(ctx, "sandbox")
	require.NoError(t, err)
	assert.Equal(t, "second", active.Name)

	_, err = svc.SetActive(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUpdateEnvironmentKeepsOneActivePerEnvironment(t *testing.T) {
	svc, _ := setupService(t, "unit-test-secret")
	ctx := context.Background()

	storeCredential(t, svc, "staging", "sandbox", true)
	storeCredential(t, svc, "prod", "live", true)
	storeCredential(t, svc, "spare", "sandbox", false)

	live := "live"
	moved, err := svc.Update(ctx, "staging", domain.UpdateRequest{Environment: &live})
	require.NoError(t, err)
	assert.Equal(t, "live", moved.Environment)
	assert.True(t, moved.IsActive)

	prod, err := svc.Get(ctx, "prod")
	require.NoError(t, err)
	assert.False(t, prod.IsActive)

	active, err := svc.GetActive(ctx, "live")
	require.NoError(t, err)
	assert.Equal(t, "staging", active.Name)

	_, err = svc.GetActive(ctx, "sandbox")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	sandbox := "sandbox"
	_, err = svc.Update(ctx, "spare", domain.UpdateRequest{Environment: &live})
	require.NoError(t, err)
	_, err = svc.Update(ctx, "prod", domain.UpdateRequest{Environment: &sandbox})
	require.NoError(t, err)

	active, err = svc.GetActive(ctx, "live")
	require.NoError(t, err)
	assert.Equal(t, "staging", active.Name, "inactive moves never deactivate the target environment")
}

type failingAudit struct{}

func (failingAudit) AuditLog(context.Context, string, *string, string, string, *string, map[string]any) error {
	return errors.New("audit store unavailable")
}

func (failingAudit) List(context.Context, auditdomain.ListAuditLogRequest) (auditdomain.ListAuditLogResponse, error) {
	return auditdomain.ListAuditLogResponse{}, nil
}

func TestAuditFailureIsLoggedNotReturned(t *testing.T) {
	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, migration.ApplySQLiteSchema(conn))
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	core, logs := observer.New(zapcore.WarnLevel)
	svc, err := New(Params{
		DB:       conn,
		Log:      zap.New(core),
		GenID:    node,
		Repo:     repository.Provide(),
		Cfg:      config.Config{Gateway: config.GatewayConfig{CredentialSecret: "unit-test-secret"}},
		AuditSvc: failingAudit{},
	})
	require.NoError(t, err)

	storeCredential(t, svc, "main", "sandbox", true)

	entries := logs.FilterMessage("audit log failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "credential.store", entries[0].ContextMap()["action"])
	assert.Equal(t, "audit store unavailable", entries[0].ContextMap()["error"])
}

func TestDeactivateAndDelete(t *testing.T) {
	svc, _ := setupService(t, "unit-test-secret")
	ctx := context.Background()

	storeCredential(t, svc, "main", "sandbox", true)

	summary, err := svc.Deactivate(ctx, "main")
	require.NoError(t, err)
	assert.False(t, summary.IsActive)

	_, err = svc.GetActive(ctx, "sandbox")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, svc.Delete(ctx, "main"))
	assert.ErrorIs(t, svc.Delete(ctx, "main"), domain.ErrNotFound)
}

func TestUpdateRotatesSecret(t *testing.T) {
	svc, _ := setupService(t, "unit-test-secret")
	ctx := context.Background()

	storeCredential(t, svc, "main", "sandbox", true)
	before, err := svc.GetActive(ctx, "sandbox")
	require.NoError(t, err)

	rotated := "rotated-secret"
	_, err = svc.Update(ctx, "main", domain.UpdateRequest{ClientSecret: &rotated})
	require.NoError(t, err)

	after, err := svc.GetActive(ctx, "sandbox")
	require.NoError(t, err)
	assert.Equal(t, rotated, after.ClientSecret)
	assert.Equal(t, before.ClientID, after.ClientID)

	_, err = svc.Update(ctx, "nope", domain.UpdateRequest{ClientSecret: &rotated})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMutationsAreAuditedWithMaskedSecrets(t *testing.T) {
	svc, conn := setupService(t, "unit-test-secret")

	storeCredential(t, svc, "main", "sandbox", true)

	var logs []auditdomain.AuditLog
	require.NoError(t, conn.Raw(`SELECT * FROM audit_logs WHERE action = ?`, "credential.store").Scan(&logs).Error)
	require.Len(t, logs, 1)

	encoded, err := json.Marshal(logs[0].Metadata)
	require.NoError(t, err)
	assert.NotContains(t, string(encoded), "secret_main_value9876")
	assert.Contains(t, string(encoded), "9876")
}
