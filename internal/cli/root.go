// Package cli implements the lazyjira command tree.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ylchen07/lazyjira/internal/config"
	"github.com/ylchen07/lazyjira/internal/output"
	"github.com/ylchen07/lazyjira/internal/repository"
	"github.com/ylchen07/lazyjira/pkg/logging"
)

// Version is reported by the MCP server and --version.
var Version = "dev"

// app carries global flags and the lazily built repository.
type app struct {
	out     io.Writer
	errOut  io.Writer
	cfgPath string
	jsonOut bool

	cfg    *config.Config
	logger *slog.Logger
	repo   *repository.Repository
}

// NewRootCommand builds the command tree writing results to out and
// diagnostics to errOut.
func NewRootCommand(out, errOut io.Writer) *cobra.Command {
	a := &app{out: out, errOut: errOut}

	root := &cobra.Command{
		Use:   "lazyjira",
		Short: "Browse, filter and update Jira tickets from the terminal",
		Long: `lazyjira talks to a Jira Cloud site through a rate-limited, retrying
client with a short-lived cache, so repeated lookups stay fast and
writes are always followed by a fresh read.

Configuration is read from config.yaml (current directory or the user
config directory), LAZYJIRA_* environment variables and flags:
  - LAZYJIRA_ATLASSIAN_SITE:            https://<tenant>.atlassian.net
  - LAZYJIRA_ATLASSIAN_JIRA_EMAIL:      account email
  - LAZYJIRA_ATLASSIAN_JIRA_API_TOKEN:  API token
  - LAZYJIRA_ATLASSIAN_JIRA_OAUTH_TOKEN: bearer token (instead of email/token)`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if skipsConfig(cmd) {
				return nil
			}
			return a.load(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfgPath, "config", "", "Path to configuration directory or file")
	flags.BoolVar(&a.jsonOut, "json", false, "Output in JSON format")
	flags.String("log-level", "", "Log level (debug, info, warn, error)")
	flags.String("log-format", "", "Log format (json, text)")
	flags.String("site", "", "Jira site URL")
	flags.Int("page-size", 0, "Default search page size")

	root.AddCommand(
		a.getCommand(),
		a.searchCommand(),
		a.transitionsCommand(),
		a.transitionCommand(),
		a.commentCommand(),
		a.createCommand(),
		a.updateCommand(),
		a.projectsCommand(),
		a.issueTypesCommand(),
		a.checkCommand(),
		a.serveCommand(),
	)
	return root
}

func (a *app) load(cmd *cobra.Command) error {
	cfg, err := config.Load(a.cfgPath, config.WithFlags(cmd.Flags()))
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logging.NewWithWriter(a.errOut, cfg.Server.LogLevel, cfg.Server.LogFormat)

	repo, err := Build(cfg, a.logger)
	if err != nil {
		return err
	}
	a.repo = repo
	return nil
}

func (a *app) formatter() output.Formatter {
	if a.jsonOut {
		return output.Get("json", a.out)
	}
	return output.Get("human", a.out)
}

// reportError prints err the way the selected output format expects.
func (a *app) reportError(err error) {
	if a.jsonOut {
		payload, _ := json.Marshal(map[string]string{"error": err.Error()})
		fmt.Fprintln(a.errOut, string(payload))
		return
	}
	fmt.Fprintf(a.errOut, "Error: %v\n", err)
}

// Execute runs the command tree against os.Args and returns the process
// exit code.
func Execute(ctx context.Context) int {
	return run(ctx, os.Args[1:], os.Stdout, os.Stderr)
}

func run(ctx context.Context, args []string, out, errOut io.Writer) int {
	root := NewRootCommand(out, errOut)
	root.SetArgs(args)
	root.SetOut(out)
	root.SetErr(errOut)

	cmd, err := root.ExecuteContextC(ctx)
	if err == nil {
		return 0
	}

	a := &app{errOut: errOut}
	if cmd != nil {
		a.jsonOut, _ = cmd.Flags().GetBool("json")
	}
	a.reportError(err)
	return exitCode(err)
}

// skipsConfig reports whether cmd runs without a configured repository.
func skipsConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		switch c.Name() {
		case "help", "completion", "__complete":
			return true
		}
	}
	return false
}
