package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ericfisherdev/inboxrelay/internal/adapter/driven/sqlstore"
	"github.com/ericfisherdev/inboxrelay/internal/adapter/driven/vault"
	"github.com/ericfisherdev/inboxrelay/internal/application"
	"github.com/ericfisherdev/inboxrelay/internal/config"
	"github.com/ericfisherdev/inboxrelay/internal/domain/model"
)

// cli carries state shared by every subcommand once the root has loaded
// configuration.
type cli struct {
	cfg    *config.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:           "relayctl",
		Short:         "Operate an inboxrelay deployment",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.LoadDotEnv(); err != nil {
				return err
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			c.cfg = cfg
			c.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: cfg.LogLevel}))
			return nil
		},
	}

	root.AddCommand(
		c.encryptCmd(),
		c.maskCmd(),
		c.rotateCheckCmd(),
		c.migrateCmd(),
		c.importKnowledgeCmd(),
		c.usageCmd(),
	)
	return root
}

func (c *cli) vault() (*vault.Vault, error) {
	return vault.New(c.cfg.EncryptionKey, c.cfg.DatabaseServiceKey, c.logger)
}

func (c *cli) openDB(ctx context.Context) (*sqlstore.DB, error) {
	return sqlstore.NewDB(ctx, sqlstore.Config{Driver: c.cfg.DBDriver, DSN: c.cfg.DBDSN})
}

func (c *cli) encryptCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "encrypt [value]",
		Short: "Seal a credential for storage in a tenant row",
		Long: "Seal a credential for storage in a tenant row. With no argument the " +
			"value is read from the first line of stdin so it stays out of shell history.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := argOrStdin(args, cmd.InOrStdin())
			if err != nil {
				return err
			}
			v, err := c.vault()
			if err != nil {
				return err
			}
			sealed, ok := v.Seal(value)
			if !ok {
				return errors.New("nothing to seal: value is empty or masked")
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), sealed)
			return err
		},
	}
}

func (c *cli) maskCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mask [value]",
		Short: "Print the masked display form of a sealed or plaintext credential",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := argOrStdin(args, cmd.InOrStdin())
			if err != nil {
				return err
			}
			v, err := c.vault()
			if err != nil {
				return err
			}
			masked := v.Mask(value)
			if masked == "" {
				return errors.New("value is empty or could not be decrypted")
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), masked)
			return err
		},
	}
}

func (c *cli) rotateCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rotate-check",
		Short: "List tenant credentials stored in plaintext or sealed under the default key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			db, err := c.openDB(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			tenants, err := sqlstore.NewTenantRepo(db).ListAll(ctx)
			if err != nil {
				return err
			}

			findings := rotationFindings(tenants)
			out := cmd.OutOrStdout()
			if len(findings) == 0 {
				_, err = fmt.Fprintf(out, "%d tenants checked, no credentials need rotation\n", len(tenants))
				return err
			}
			for _, f := range findings {
				if _, err := fmt.Fprintf(out, "%s\t%s\t%s\n", f.TenantID, f.Field, f.Issue); err != nil {
					return err
				}
			}
			return fmt.Errorf("%d credentials need rotation", len(findings))
		},
	}
}

func (c *cli) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := c.openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			if err := sqlstore.RunMigrations(db); err != nil {
				return err
			}
			c.logger.Info("migrations complete", "dialect", db.Dialect().Name())
			return nil
		},
	}
}

func (c *cli) importKnowledgeCmd() *cobra.Command {
	var accountID, dir string

	cmd := &cobra.Command{
		Use:   "import-knowledge",
		Short: "Seed an account's knowledge base from a directory of Markdown files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if dir == "" {
				dir = c.cfg.KnowledgeDir
			}
			if dir == "" {
				return errors.New("--dir or RELAY_KNOWLEDGE_DIR is required")
			}

			ctx := cmd.Context()
			db, err := c.openDB(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			importer := application.NewKnowledgeImporter(sqlstore.NewKnowledgeRepo(db), c.logger)
			summary, err := importer.Import(ctx, accountID, os.DirFS(dir))
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "added %d, skipped %d\n", len(summary.Added), len(summary.Skipped))
			return err
		},
	}

	cmd.Flags().StringVar(&accountID, "account", "", "account id that owns the entries")
	cmd.Flags().StringVar(&dir, "dir", "", "directory of .md files (defaults to RELAY_KNOWLEDGE_DIR)")
	_ = cmd.MarkFlagRequired("account")
	return cmd
}

func (c *cli) usageCmd() *cobra.Command {
	var (
		tenantID string
		limit    int
	)

	cmd := &cobra.Command{
		Use:   "usage",
		Short: "Show a tenant's credit balance and recent activity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			db, err := c.openDB(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			tenants, err := sqlstore.NewTenantRepo(db).ListAll(ctx)
			if err != nil {
				return err
			}
			var tenant *model.Tenant
			for i := range tenants {
				if tenants[i].ID == tenantID {
					tenant = &tenants[i]
					break
				}
			}
			if tenant == nil {
				return fmt.Errorf("tenant %q not found", tenantID)
			}

			account, err := sqlstore.NewAccountRepo(db).Get(ctx, tenant.AccountID)
			if err != nil {
				return err
			}
			logs, err := sqlstore.NewActivityRepo(db).ListByTenant(ctx, tenant.ID, limit)
			if err != nil {
				return err
			}

			return writeUsage(cmd.OutOrStdout(), tenant, account, logs)
		},
	}

	cmd.Flags().StringVar(&tenantID, "tenant", "", "tenant id")
	cmd.Flags().IntVar(&limit, "limit", 20, "number of recent activity rows to show")
	_ = cmd.MarkFlagRequired("tenant")
	return cmd
}

func writeUsage(out io.Writer, tenant *model.Tenant, account *model.Account, logs []model.ActivityLog) error {
	credits := "unmetered"
	role := "missing"
	if account != nil {
		role = string(account.Role)
		if !account.IsElevated() {
			credits = fmt.Sprintf("%d", account.Balance())
		}
	}

	if _, err := fmt.Fprintf(out, "tenant %s (%s) account %s role %s credits %s\n",
		tenant.ID, tenant.Name, tenant.AccountID, role, credits); err != nil {
		return err
	}
	for _, l := range logs {
		if _, err := fmt.Fprintf(out, "%s\t%s\t%q -> %q\n",
			l.CreatedAt.UTC().Format(time.RFC3339), l.Type, l.Input, l.Output); err != nil {
			return err
		}
	}
	return nil
}

// rotationFinding names one tenant credential that should be re-sealed.
type rotationFinding struct {
	TenantID string
	Field    string
	Issue    string
}

func rotationFindings(tenants []model.Tenant) []rotationFinding {
	var out []rotationFinding
	for _, t := range tenants {
		fields := []struct{ name, value string }{
			{"access_token", t.AccessToken},
			{"verify_token", t.VerifyToken},
			{"provider_key", t.ProviderKey},
		}
		for _, f := range fields {
			switch {
			case f.value == "":
			case !vault.IsEnvelope(f.value):
				out = append(out, rotationFinding{TenantID: t.ID, Field: f.name, Issue: "plaintext"})
			case vault.NeedsRotation(f.value):
				out = append(out, rotationFinding{TenantID: t.ID, Field: f.name, Issue: "default key"})
			}
		}
	}
	return out
}

func argOrStdin(args []string, stdin io.Reader) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	line, err := bufio.NewReader(stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
