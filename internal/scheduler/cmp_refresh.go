package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/kjannette/mtf-backend/internal/service"
)

type Refresher interface {
	RefreshOpenTrades(ctx context.Context, owner string) (service.RefreshResult, error)
}

type OwnerLister interface {
	Owners(ctx context.Context) ([]string, error)
}

// CMPRefreshJob reprices the open trades of every owner that has any.
type CMPRefreshJob struct {
	refresher Refresher
	owners    OwnerLister
	timeout   time.Duration
	log       zerolog.Logger
}

func NewCMPRefreshJob(r Refresher, owners OwnerLister, timeout time.Duration, log zerolog.Logger) *CMPRefreshJob {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &CMPRefreshJob{
		refresher: r,
		owners:    owners,
		timeout:   timeout,
		log:       log.With().Str("job", "cmp_refresh").Logger(),
	}
}

func (j *CMPRefreshJob) Name() string { return "cmp_refresh" }

// Run refreshes each owner in turn. One owner failing does not stop the rest.
func (j *CMPRefreshJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	owners, err := j.owners.Owners(ctx)
	if err != nil {
		return fmt.Errorf("list owners: %w", err)
	}

	var (
		errs    []error
		updated int
		failed  int
	)
	for _, owner := range owners {
		res, err := j.refresher.RefreshOpenTrades(ctx, owner)
		if err != nil {
			errs = append(errs, fmt.Errorf("owner %s: %w", owner, err))
			if ctx.Err() != nil {
				break
			}
			continue
		}
		updated += res.Updated
		failed += len(res.Failed)
	}

	j.log.Info().Int("owners", len(owners)).Int("updated", updated).Int("unpriced", failed).Msg("CMP refresh finished")
	return errors.Join(errs...)
}
