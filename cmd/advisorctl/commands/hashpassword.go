package commands

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/courseadvisor/internal/config"
	"github.com/kailas-cloud/courseadvisor/internal/domain"
	"github.com/kailas-cloud/courseadvisor/internal/usecase/auth"
)

// NewHashPasswordCmd creates the hash-password command.
func NewHashPasswordCmd() *cobra.Command {
	var (
		username  string
		role      string
		salt      string
		saltBytes int
	)

	cmd := &cobra.Command{
		Use:   "hash-password",
		Short: "Print a users entry for the auth section of the config",
		Long: `Reads a password from stdin (first line) and prints an auth.users entry
with a fresh salt and hex(sha256(salt + password)).

Examples:
  echo 'correct horse' | advisorctl hash-password --username registrar --role Admin
  advisorctl hash-password --username sam --salt fixedsalt < password.txt`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
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

			if salt == "" {
				if salt, err = auth.GenerateSalt(saltBytes); err != nil {
					return fmt.Errorf("generating salt: %w", err)
				}
			}

			entry := config.UserConfig{
				Username: username,
				Role:     string(r),
				Salt:     salt,
				Hash:     auth.HashPassword(password, salt),
			}
			if format == "json" {
				return printJSON(cmd.OutOrStdout(), entry)
			}
			out, err := yaml.Marshal([]config.UserConfig{entry})
			if err != nil {
				return fmt.Errorf("marshaling YAML: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "Login name")
	cmd.Flags().StringVar(&role, "role", string(domain.RoleUser), "Role: Admin or User")
	cmd.Flags().StringVar(&salt, "salt", "", "Use this salt instead of generating one")
	cmd.Flags().IntVar(&saltBytes, "salt-bytes", 16, "Random bytes in a generated salt")

	return cmd
}

func readPassword(cmd *cobra.Command) (string, error) {
	sc := bufio.NewScanner(cmd.InOrStdin())
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return "", fmt.Errorf("reading password: %w", err)
		}
		return "", errors.New("no password on stdin")
	}
	password := strings.TrimRight(sc.Text(), "\r")
	if password == "" {
		return "", errors.New("password must not be empty")
	}
	return password, nil
}
