package cli

import (
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/ylchen07/lazyjira/internal/jira"
	"github.com/ylchen07/lazyjira/internal/mcp"
	"github.com/ylchen07/lazyjira/internal/repository"
)

func (a *app) getCommand() *cobra.Command {
	var (
		withComments bool
		refresh      bool
	)
	cmd := &cobra.Command{
		Use:   "get KEY",
		Short: "Show a ticket",
		Example: `  lazyjira get PROJ-123
  lazyjira get PROJ-123 --comments --refresh`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			get := a.repo.GetTicket
			if refresh {
				get = a.repo.Refresh
			}
			t, err := get(ctx, args[0])
			if err != nil {
				return err
			}
			f := a.formatter()
			if err := f.FormatTicket(t); err != nil {
				return err
			}
			if !withComments {
				return nil
			}
			comments, err := a.repo.Comments(ctx, t.Key)
			if err != nil {
				return err
			}
			return f.FormatComments(t.Key, comments)
		},
	}
	cmd.Flags().BoolVar(&withComments, "comments", false, "Also list comments")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "Bypass the cache")
	return cmd
}

func (a *app) searchCommand() *cobra.Command {
	var (
		startAt  int
		limit    int
		all      bool
		category string
		assignee string
		text     string
	)
	cmd := &cobra.Command{
		Use:   "search JQL",
		Short: "Search tickets with JQL",
		Long: `Search tickets with JQL. Filters narrow the returned page locally and
never change the query sent to Jira.`,
		Example: `  lazyjira search 'project = PROJ ORDER BY updated DESC'
  lazyjira search 'assignee = currentUser()' --category inprogress
  lazyjira search 'project = PROJ' --all --text login`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			var cat jira.StatusCategory
			if category != "" {
				c, err := parseCategory(category)
				if err != nil {
					return err
				}
				cat = c
			}

			var (
				page jira.SearchPage
				err  error
			)
			if all {
				page, err = a.repo.SearchAll(ctx, args[0], limit)
			} else {
				page, err = a.repo.Search(ctx, args[0], startAt, limit)
			}
			if err != nil {
				return err
			}

			tickets, err := a.repo.Tickets(ctx, page)
			if err != nil {
				return err
			}
			if cat != 0 {
				tickets = repository.FilterByCategory(tickets, cat)
			}
			if assignee != "" {
				tickets = repository.FilterByAssignee(tickets, assignee)
			}
			if text != "" {
				tickets = repository.FilterByText(tickets, text)
			}
			return a.formatter().FormatTickets(page, tickets)
		},
	}
	cmd.Flags().IntVar(&startAt, "start-at", 0, "Offset of the first result")
	cmd.Flags().IntVar(&limit, "limit", 0, "Page size (defaults to cache.page_size)")
	cmd.Flags().BoolVar(&all, "all", false, "Fetch every page")
	cmd.Flags().StringVar(&category, "category", "", "Keep only tickets in a status category (todo, inprogress, done)")
	cmd.Flags().StringVar(&assignee, "assignee", "", "Keep only tickets assigned to this account ID")
	cmd.Flags().StringVar(&text, "text", "", "Keep only tickets whose key or summary contains text")
	return cmd
}

func (a *app) transitionsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "transitions KEY",
		Short: "List the workflow transitions available for a ticket",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			transitions, err := a.repo.AvailableTransitions(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.formatter().FormatTransitions(args[0], transitions)
		},
	}
}

func (a *app) transitionCommand() *cobra.Command {
	var comment string
	cmd := &cobra.Command{
		Use:     "transition KEY TRANSITION_ID",
		Short:   "Move a ticket through its workflow",
		Example: `  lazyjira transition PROJ-123 31 --comment "Ready for review"`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := a.repo.ApplyTransition(cmd.Context(), args[0], args[1], jira.TextDocument(comment))
			if err != nil {
				return err
			}
			return a.formatter().FormatTicket(t)
		},
	}
	cmd.Flags().StringVar(&comment, "comment", "", "Comment to add with the transition")
	return cmd
}

func (a *app) commentCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "comment KEY TEXT",
		Short: "Add a comment to a ticket",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			body := jira.TextDocument(args[1])
			if body.IsZero() {
				return &jira.Error{Kind: jira.ErrValidation, Op: "add comment", Target: args[0],
					FieldErrors: map[string]string{"body": "comment cannot be empty"}}
			}
			c, err := a.repo.AddComment(cmd.Context(), args[0], body)
			if err != nil {
				return err
			}
			return a.formatter().FormatComments(args[0], []jira.Comment{c})
		},
	}
}

func (a *app) createCommand() *cobra.Command {
	var (
		in          jira.TicketInput
		description string
	)
	cmd := &cobra.Command{
		Use:     "create",
		Short:   "Create a ticket",
		Example: `  lazyjira create --project PROJ --type Task --summary "Fix login" --label auth`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			in.Description = jira.TextDocument(description)
			t, err := a.repo.CreateTicket(cmd.Context(), in)
			if err != nil {
				return err
			}
			return a.formatter().FormatTicket(t)
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&in.ProjectKey, "project", "", "Project key")
	flags.StringVar(&in.IssueType, "type", "", "Issue type name or ID")
	flags.StringVar(&in.Summary, "summary", "", "Summary")
	flags.StringVar(&description, "description", "", "Plain-text description")
	flags.StringVar(&in.Priority, "priority", "", "Priority name")
	flags.StringVar(&in.Assignee, "assignee", "", "Assignee account ID")
	flags.StringSliceVar(&in.Labels, "label", nil, "Label (repeatable)")
	_ = cmd.MarkFlagRequired("project")
	_ = cmd.MarkFlagRequired("type")
	_ = cmd.MarkFlagRequired("summary")
	return cmd
}

func (a *app) updateCommand() *cobra.Command {
	var (
		summary, description, priority, assignee string
		labels                                   []string
		clearLabels                              bool
		ifVersion                                int64
	)
	cmd := &cobra.Command{
		Use:   "update KEY",
		Short: "Update fields of a ticket",
		Long: `Update fields of a ticket. Only flags given on the command line are
sent; pass --assignee "" to unassign. Status changes go through
"lazyjira transition".`,
		Example: `  lazyjira update PROJ-123 --summary "New title"
  lazyjira update PROJ-123 --clear-labels --if-version 1747300000000`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			patch := jira.Patch{IfVersion: ifVersion}
			if flags.Changed("summary") {
				patch.Summary = &summary
			}
			if flags.Changed("description") {
				doc := jira.TextDocument(description)
				patch.Description = &doc
			}
			if flags.Changed("priority") {
				patch.Priority = &priority
			}
			if flags.Changed("assignee") {
				patch.Assignee = &assignee
			}
			switch {
			case clearLabels:
				patch.Labels = []string{}
			case flags.Changed("label"):
				patch.Labels = labels
			}

			t, err := a.repo.UpdateTicket(cmd.Context(), args[0], patch)
			if err != nil {
				return err
			}
			return a.formatter().FormatTicket(t)
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&summary, "summary", "", "New summary")
	flags.StringVar(&description, "description", "", "New plain-text description")
	flags.StringVar(&priority, "priority", "", "New priority name")
	flags.StringVar(&assignee, "assignee", "", "New assignee account ID")
	flags.StringSliceVar(&labels, "label", nil, "Replace labels (repeatable)")
	flags.BoolVar(&clearLabels, "clear-labels", false, "Remove every label")
	flags.Int64Var(&ifVersion, "if-version", 0, "Refuse the update unless the ticket is still at this version")
	cmd.MarkFlagsMutuallyExclusive("label", "clear-labels")
	return cmd
}

func (a *app) projectsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "projects",
		Short: "List projects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			projects, err := a.repo.Projects(cmd.Context())
			if err != nil {
				return err
			}
			return a.formatter().FormatProjects(projects)
		},
	}
}

func (a *app) issueTypesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "issue-types",
		Short: "List issue types",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			types, err := a.repo.IssueTypes(cmd.Context())
			if err != nil {
				return err
			}
			return a.formatter().FormatIssueTypes(types)
		},
	}
}

func (a *app) checkCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify the site URL and credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			status := a.repo.TestConnection(cmd.Context())
			if err := a.formatter().FormatConnection(status); err != nil {
				return err
			}
			if !status.OK() {
				return fmt.Errorf("%s", status.Message())
			}
			return nil
		},
	}
}

func (a *app) serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the Jira tools over MCP on stdio",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			srv := mcp.NewServer(mcp.Dependencies{
				Repository: a.repo,
				SiteURL:    ensureHTTPS(a.cfg.Atlassian.Jira.Site),
				Version:    Version,
				Logger:     a.logger,
			})
			a.logger.Info("starting MCP server", "version", Version)
			if err := server.ServeStdio(srv); err != nil {
				return fmt.Errorf("serve mcp: %w", err)
			}
			return nil
		},
	}
}

func parseCategory(s string) (jira.StatusCategory, error) {
	switch strings.ToLower(strings.ReplaceAll(strings.ReplaceAll(s, " ", ""), "-", "")) {
	case "todo", "new":
		return jira.CategoryToDo, nil
	case "inprogress", "indeterminate":
		return jira.CategoryInProgress, nil
	case "done":
		return jira.CategoryDone, nil
	}
	return 0, &jira.Error{Kind: jira.ErrValidation, Op: "search", Target: s,
		FieldErrors: map[string]string{"category": "must be one of todo, inprogress, done"}}
}
