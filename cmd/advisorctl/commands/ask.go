package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/courseadvisor/internal/domain"
)

// NewAskCmd creates the ask command.
func NewAskCmd() *cobra.Command {
	var (
		server string
		token  string
	)

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask the advisor a question against the current index",
		Long: `Runs one question through the same gate, retrieval and model call as the
HTTP API and prints the answer. With --server the question is sent to a
running server instead, under the session from advisorctl login.

Examples:
  advisorctl ask "Which courses lead to a data analyst role?"
  advisorctl ask --format json "What does the diploma in AI cover?"
  advisorctl ask --server http://localhost:8080 --token <token> "Is there a SQL course?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateFormat(); err != nil {
				return err
			}
			query := strings.Join(args, " ")

			var ans answerView
			if server != "" {
				client, err := remoteClient(server, token)
				if err != nil {
					return err
				}
				res, err := client.Ask(cmd.Context(), query)
				if err != nil {
					return err
				}
				ans = answerView{Text: res.Text, Rejected: res.Rejected, Sources: res.Sources, Redactions: res.Redactions}
			} else {
				a, err := openApp(cmd.Context())
				if err != nil {
					return err
				}
				defer a.Close()

				sess := domain.Session{LoggedIn: true, Role: domain.RoleUser, Username: operator}
				res, err := a.Advisor.Ask(cmd.Context(), sess, query)
				if err != nil {
					return err
				}
				ans = answerView{Text: res.Text, Rejected: res.Rejected(), Sources: res.Sources, Redactions: res.Redactions}
			}

			if format == "json" {
				return printJSON(cmd.OutOrStdout(), ans)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, ans.Text)
			if len(ans.Sources) > 0 {
				fmt.Fprintf(out, "\nSources: %s\n", strings.Join(ans.Sources, ", "))
			}
			if ans.Redactions > 0 {
				fmt.Fprintf(out, "(%d phrase(s) redacted)\n", ans.Redactions)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&server, "server", "", "Send the question to this advisor API instead of the local index")
	cmd.Flags().StringVar(&token, "token", "", "Session token for --server (default: $"+tokenEnv+")")

	return cmd
}

type answerView struct {
	Text       string   `json:"answer"`
	Rejected   bool     `json:"rejected"`
	Sources    []string `json:"sources"`
	Redactions int      `json:"redactions"`
}
