package cli

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ylchen07/lazyjira/internal/atlassian"
	"github.com/ylchen07/lazyjira/internal/cache"
	"github.com/ylchen07/lazyjira/internal/clock"
	"github.com/ylchen07/lazyjira/internal/config"
	"github.com/ylchen07/lazyjira/internal/jira"
	"github.com/ylchen07/lazyjira/internal/ratelimit"
	"github.com/ylchen07/lazyjira/internal/repository"
	"github.com/ylchen07/lazyjira/internal/retry"
	"github.com/ylchen07/lazyjira/internal/state"
	"github.com/ylchen07/lazyjira/internal/workflow"
)

// Build assembles the repository from configuration: transport, limiter,
// retry policy, API client, cache and workflow machine.
func Build(cfg *config.Config, logger *slog.Logger) (*repository.Repository, error) {
	site := ensureHTTPS(cfg.Atlassian.Jira.Site)
	creds := cfg.Atlassian.Jira.ServiceCredentials
	clk := clock.Real()

	rest, err := atlassian.NewClient(site, creds, logger, atlassian.WithTimeout(cfg.Client.Timeout))
	if err != nil {
		return nil, fmt.Errorf("initialise jira transport: %w", err)
	}

	limiter, err := ratelimit.New(cfg.Client.RateLimit.Capacity, cfg.Client.RateLimit.PerSecond, ratelimit.WithClock(clk))
	if err != nil {
		return nil, err
	}

	backoff := retry.New().
		WithMaxAttempts(cfg.Client.Retry.MaxAttempts).
		WithBaseDelay(cfg.Client.Retry.BaseDelay).
		WithMaxDelay(cfg.Client.Retry.MaxDelay).
		WithClock(clk).
		OnRetry(func(attempt int, delay time.Duration, err error) {
			logger.Debug("retrying jira request",
				slog.Int("attempt", attempt),
				slog.Duration("delay", delay),
				slog.Any("error", err),
			)
		})

	sdk, err := jira.NewSDK(site, creds)
	if err != nil {
		return nil, err
	}

	api := jira.NewClient(rest,
		jira.WithLimiter(limiter),
		jira.WithBackoff(backoff),
		jira.WithLogger(logger),
		jira.WithMetadata(jira.NewSDKMetadata(sdk, clk)),
	)

	tickets := cache.New(api, cache.Config{
		TicketTTL:      cfg.Cache.TicketTTL,
		SearchTTL:      cfg.Cache.SearchTTL,
		MetadataTTL:    cfg.Cache.MetadataTTL,
		TransitionsTTL: cfg.Cache.TransitionsTTL,
	}, clk, logger)

	machine := workflow.New(api, tickets, state.NewTracker(), logger)
	return repository.New(api, tickets, machine, logger, repository.WithPageSize(cfg.Cache.PageSize)), nil
}

func ensureHTTPS(site string) string {
	trimmed := strings.TrimSpace(site)
	if trimmed == "" {
		return ""
	}

	if strings.HasPrefix(trimmed, "http://") || strings.HasPrefix(trimmed, "https://") {
		return strings.TrimRight(trimmed, "/")
	}

	return "https://" + strings.TrimRight(trimmed, "/")
}
