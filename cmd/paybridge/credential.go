package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/paybridge/internal/audit"
	auditdomain "github.com/smallbiznis/paybridge/internal/audit/domain"
	"github.com/smallbiznis/paybridge/internal/config"
	"github.com/smallbiznis/paybridge/internal/credential"
	credentialdomain "github.com/smallbiznis/paybridge/internal/credential/domain"
	"github.com/smallbiznis/paybridge/internal/migration"
	"github.com/smallbiznis/paybridge/internal/observability"
	obscontext "github.com/smallbiznis/paybridge/internal/observability/context"
	"github.com/smallbiznis/paybridge/pkg/db"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

type setupCredentialOptions struct {
	name         string
	clientID     string
	clientSecret string
	environment  string
	activate     bool
	force        bool
}

func setupCredentialCmd() *cobra.Command {
	var opts setupCredentialOptions

	cmd := &cobra.Command{
		Use:   "setup-credential",
		Short: "Store gateway client credentials",
		Long: `Store an OAuth client id/secret pair for the payment gateway.

The secret is encrypted with GATEWAY_CREDENTIAL_SECRET before it is written.

Examples:
  paybridge setup-credential --name primary --client-id AX.. --client-secret EL.. --activate
  paybridge setup-credential --name primary --client-id AX.. --client-secret EL.. --environment live --force`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSetupCredential(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.name, "name", "default", "credential name")
	cmd.Flags().StringVar(&opts.clientID, "client-id", "", "gateway OAuth client id")
	cmd.Flags().StringVar(&opts.clientSecret, "client-secret", "", "gateway OAuth client secret")
	cmd.Flags().StringVar(&opts.environment, "environment", config.GatewayEnvSandbox, "gateway environment (sandbox or live)")
	cmd.Flags().BoolVar(&opts.activate, "activate", false, "make this the active credential for its environment")
	cmd.Flags().BoolVar(&opts.force, "force", false, "overwrite an existing credential with the same name")
	_ = cmd.MarkFlagRequired("client-id")
	_ = cmd.MarkFlagRequired("client-secret")

	return cmd
}

func runSetupCredential(cmd *cobra.Command, opts setupCredentialOptions) error {
	var svc credentialdomain.Service
	app := fx.New(
		fx.NopLogger,
		config.Module,
		observability.Module,
		fx.Provide(func() (*snowflake.Node, error) { return snowflake.NewNode(2) }),
		db.Module,
		migration.Module,
		audit.Module,
		credential.Module,
		fx.Populate(&svc),
	)

	var summary *credentialdomain.Summary
	err := runOnce(cmd.Context(), app, func(ctx context.Context) error {
		ctx = obscontext.WithActor(ctx, string(auditdomain.ActorTypeCLI), "setup-credential")
		var err error
		summary, err = svc.Store(ctx, credentialdomain.StoreRequest{
			Name:         opts.name,
			ClientID:     strings.TrimSpace(opts.clientID),
			ClientSecret: strings.TrimSpace(opts.clientSecret),
			Environment:  strings.ToLower(strings.TrimSpace(opts.environment)),
			Activate:     opts.activate,
			Force:        opts.force,
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("setup-credential: %w", err)
	}

	state := "inactive"
	if summary.IsActive {
		state = "active"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "stored credential %q (%s, %s, client id %s)\n",
		summary.Name, summary.Environment, state, summary.ClientIDMasked)
	return nil
}
