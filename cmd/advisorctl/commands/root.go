// Package commands implements the advisorctl subcommands.
package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/courseadvisor/internal/app"
	"github.com/kailas-cloud/courseadvisor/internal/config"
	"github.com/kailas-cloud/courseadvisor/internal/domain"
	logpkg "github.com/kailas-cloud/courseadvisor/internal/logger"
)

// operator is the identity the CLI acts under. Shell access to the host
// stands in for a login.
const operator = "advisorctl"

var (
	envName    string
	configPath string
	format     string
	verbose    bool
)

// NewRootCmd creates the advisorctl root command with every subcommand attached.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "advisorctl",
		Short: "Course advisor admin tool",
		Long: `advisorctl provisions login accounts and manages the course index
without going through the HTTP API.

Commands that touch the index read the same configuration as the server
(config/<env>.yaml, ENV and .env apply).`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&envName, "env", "", "Configuration environment (default: $ENV or local)")
	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Explicit config file path, overrides --env")
	cmd.PersistentFlags().StringVar(&format, "format", "text", "Output format: text or json")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log service activity to stderr")

	cmd.AddCommand(
		NewHashPasswordCmd(),
		NewLoginCmd(),
		NewIngestCmd(),
		NewAskCmd(),
		NewIndexCmd(),
		NewVersionCmd(),
	)
	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

func loadConfig() (config.Config, string, error) {
	env := envName
	if env == "" {
		env = config.GetEnv()
	}
	if configPath != "" {
		cfg, err := config.LoadFile(configPath)
		return cfg, env, err
	}
	cfg, err := config.Load(env)
	return cfg, env, err
}

// openApp wires the services the same way the server does.
func openApp(ctx context.Context) (*app.App, error) {
	cfg, env, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	logger := zap.NewNop()
	if verbose {
		logger, err = logpkg.NewLogger(env, cfg.Logging.Level)
		if err != nil {
			return nil, fmt.Errorf("creating logger: %w", err)
		}
	}

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("initialising services: %w", err)
	}
	return a, nil
}

func adminSession() domain.Session {
	return domain.Session{LoggedIn: true, Role: domain.RoleAdmin, Username: operator}
}

func validateFormat() error {
	switch format {
	case "text", "json":
		return nil
	default:
		return fmt.Errorf("--format must be text or json, got %q", format)
	}
}

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	_, err = fmt.Fprintf(w, "%s\n", data)
	return err
}
