package worker

import (
	"context"
	"time"

	"stroyfin/internal/domain/supply"
	"stroyfin/pkg/logger"
)

// DealLister discovers deals sitting in a stage. Satisfied by the
// bitrix client.
type DealLister interface {
	ListDealIDs(ctx context.Context, stageID string) ([]string, error)
}

// DealProcessor projects one deal into a supply request.
type DealProcessor interface {
	ProcessDeal(ctx context.Context, dealID string) (*supply.Request, error)
}

// DealPollJob polls one Bitrix24 integration's target stage and feeds
// every deal found there through the processor. Processing is
// idempotent per deal, so deals lingering in the stage are re-seen
// harmlessly on every tick.
type DealPollJob struct {
	integration supply.Integration
	lister      DealLister
	processor   DealProcessor
	interval    time.Duration
}

// NewDealPollJob creates a polling job for one integration.
func NewDealPollJob(integration supply.Integration, lister DealLister, processor DealProcessor, interval time.Duration) *DealPollJob {
	return &DealPollJob{
		integration: integration,
		lister:      lister,
		processor:   processor,
		interval:    interval,
	}
}

func (j *DealPollJob) Name() string            { return "deal-poll-" + j.integration.ID }
func (j *DealPollJob) Interval() time.Duration { return j.interval }

// Run lists the stage and processes each deal. One broken deal is
// logged and skipped so it cannot wedge the whole integration.
func (j *DealPollJob) Run(ctx context.Context) error {
	dealIDs, err := j.lister.ListDealIDs(ctx, j.integration.TargetStageID)
	if err != nil {
		return err
	}

	for _, dealID := range dealIDs {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if _, err := j.processor.ProcessDeal(ctx, dealID); err != nil {
			logger.Warn(ctx, "deal processing failed",
				"integration_id", j.integration.ID,
				"deal_id", dealID,
				"error", err)
		}
	}
	return nil
}
