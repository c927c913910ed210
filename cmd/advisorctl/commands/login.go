package commands

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/courseadvisor/internal/domain"
	sdk "github.com/kailas-cloud/courseadvisor/pkg/sdk"
)

// tokenEnv holds a session token for commands run with --server.
const tokenEnv = "COURSEADVISOR_TOKEN"

// NewLoginCmd creates the login command.
func NewLoginCmd() *cobra.Command {
	var (
		server   string
		username string
		role     string
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in to a running server and print the session token",
		Long: `Reads a password from stdin (first line), logs in over the HTTP API and
prints the session token. Export it as ` + tokenEnv + ` for ask --server.

Examples:
  export ` + tokenEnv + `=$(echo 's3cret' | advisorctl login --server http://localhost:8080 --username sam)
  advisorctl ask --server http://localhost:8080 "Which courses cover SQL?"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := validateFormat(); err != nil {
				return err
			}
			if server == "" {
				return errors.New("--server is required")
			}
			if username == "" {
				return errors.New("--username is required")
			}
			r, err := domain.ParseRole(role)
			if err != nil {
				return err
			}
			password, err := readPassword(cmd)
			if err != nil {
				return err
			}

			client, err := sdk.New(server)
			if err != nil {
				return err
			}
			sess, err := client.Login(cmd.Context(), sdk.Role(r), username, password)
			if err != nil {
				return fmt.Errorf("login: %w", err)
			}

			if format == "json" {
				return printJSON(cmd.OutOrStdout(), sess)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), sess.Token)
			return err
		},
	}

	cmd.Flags().StringVar(&server, "server", "", "Base URL of the advisor API")
	cmd.Flags().StringVar(&username, "username", "", "Login name")
	cmd.Flags().StringVar(&role, "role", string(domain.RoleUser), "Role: Admin or User")

	return cmd
}

// remoteClient builds an API client carrying the token from --token or the environment.
func remoteClient(server, token string) (*sdk.Client, error) {
	if token == "" {
		token = os.Getenv(tokenEnv)
	}
	if token == "" {
		return nil, fmt.Errorf("--token or %s is required with --server", tokenEnv)
	}
	return sdk.New(server, sdk.WithToken(token))
}
