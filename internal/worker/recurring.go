package worker

import (
	"context"
	"time"

	"stroyfin/pkg/logger"
)

// actor recorded on generated documents.
const systemActor = "system"

// TemplateGenerator materializes due recurring invoices.
type TemplateGenerator interface {
	GenerateDue(ctx context.Context, now time.Time, actor string) (int, error)
}

// RecurringJob generates invoices from active recurring templates.
type RecurringJob struct {
	generator TemplateGenerator
	interval  time.Duration
}

// NewRecurringJob creates the recurring generation job.
func NewRecurringJob(generator TemplateGenerator, interval time.Duration) *RecurringJob {
	return &RecurringJob{generator: generator, interval: interval}
}

func (j *RecurringJob) Name() string            { return "recurring" }
func (j *RecurringJob) Interval() time.Duration { return j.interval }

func (j *RecurringJob) Run(ctx context.Context) error {
	generated, err := j.generator.GenerateDue(ctx, time.Now().UTC(), systemActor)
	if err != nil {
		return err
	}
	if generated > 0 {
		logger.Info(ctx, "recurring invoices generated", "count", generated)
	}
	return nil
}
