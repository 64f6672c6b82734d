package trigger

import (
	"fmt"
	"time"

	"github.com/jonesrussell/north-cloud/market-scheduler/internal/domain"
)

// Evaluator computes next-fire times for scheduled jobs, honoring
// start_date and end_date windows.
type Evaluator struct {
	loc *time.Location
}

// NewEvaluator creates an evaluator using the given location for cron
// field matching. A nil location means UTC.
func NewEvaluator(loc *time.Location) *Evaluator {
	if loc == nil {
		loc = time.UTC
	}
	return &Evaluator{loc: loc}
}

// Validate checks that the job's trigger config parses for its
// trigger type.
func (e *Evaluator) Validate(job *domain.ScheduledJob) error {
	switch job.TriggerType {
	case domain.TriggerTypeCron:
		cfg, err := job.CronTrigger()
		if err != nil {
			return err
		}
		if _, err := CompileCron(cfg); err != nil {
			return err
		}
		return nil
	case domain.TriggerTypeInterval:
		_, err := job.IntervalTrigger()
		return err
	default:
		return fmt.Errorf("unknown trigger_type: %s", job.TriggerType)
	}
}

// NextFire returns the job's next fire time strictly after `after`.
// ok is false when the trigger will never fire again (one-shot end
// reached or an unsatisfiable cron field set).
func (e *Evaluator) NextFire(job *domain.ScheduledJob, after time.Time) (time.Time, bool) {
	switch job.TriggerType {
	case domain.TriggerTypeCron:
		return e.nextCron(job, after)
	case domain.TriggerTypeInterval:
		return e.nextInterval(job, after)
	default:
		return time.Time{}, false
	}
}

func (e *Evaluator) nextCron(job *domain.ScheduledJob, after time.Time) (time.Time, bool) {
	cfg, err := job.CronTrigger()
	if err != nil {
		return time.Time{}, false
	}
	sched, err := CompileCron(cfg)
	if err != nil {
		return time.Time{}, false
	}

	// Fire times before start_date are skipped.
	if job.StartDate != nil && after.Before(*job.StartDate) {
		after = job.StartDate.Add(-time.Second)
	}

	next, ok := sched.Next(after, e.loc)
	if !ok {
		return time.Time{}, false
	}
	if job.EndDate != nil && next.After(*job.EndDate) {
		return time.Time{}, false
	}
	return next, true
}

func (e *Evaluator) nextInterval(job *domain.ScheduledJob, after time.Time) (time.Time, bool) {
	cfg, err := job.IntervalTrigger()
	if err != nil {
		return time.Time{}, false
	}

	base := job.CreatedAt
	if job.StartDate != nil {
		base = *job.StartDate
	}
	if after.After(base) {
		base = after
	}

	next := base.Add(cfg.Period())
	if job.EndDate != nil && next.After(*job.EndDate) {
		return time.Time{}, false
	}
	return next.UTC(), true
}

// InitialFire returns the first fire time for a freshly registered or
// resumed job. An interval trigger with execute_now fires immediately
// regardless of start_date.
func (e *Evaluator) InitialFire(job *domain.ScheduledJob, now time.Time) (time.Time, bool) {
	if job.TriggerType == domain.TriggerTypeInterval {
		if cfg, err := job.IntervalTrigger(); err == nil && cfg.ExecuteNow {
			return now.UTC(), true
		}
	}
	return e.NextFire(job, now)
}
