package broadcast

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"
)

// job names
const (
	PromoJobName  = "promo"
	DigestJobName = "digest"
)

// JobsParams of the scheduled jobs. Promo job is disabled if Promoter is nil, digest job if Digest is nil.
type JobsParams struct {
	Promoter       *Promoter
	PromoMinDelay  time.Duration // lower bound of the random interval between promotions
	PromoMaxDelay  time.Duration // upper bound of the random interval between promotions
	Digest         func() error
	DigestSchedule string // crontab, i.e. "0 9 * * *"
	Clock          clockwork.Clock
}

// Jobs runs sporadic promotions and the statistics digest
type Jobs struct {
	sched gocron.Scheduler
}

// NewJobs makes a scheduler with promo and digest jobs, it should be started with Start.
// Jobs get ctx passed to the running task.
func NewJobs(ctx context.Context, params JobsParams) (*Jobs, error) {
	opts := []gocron.SchedulerOption{}
	if params.Clock != nil {
		opts = append(opts, gocron.WithClock(params.Clock))
	}
	sched, err := gocron.NewScheduler(opts...)
	if err != nil {
		return nil, fmt.Errorf("can't make scheduler: %w", err)
	}

	if params.Promoter != nil {
		promo := func() {
			if err := params.Promoter.SendRandom(ctx); err != nil {
				log.Printf("[WARN] %v", err)
			}
		}
		_, err = sched.NewJob(gocron.DurationRandomJob(params.PromoMinDelay, params.PromoMaxDelay),
			gocron.NewTask(promo), gocron.WithName(PromoJobName))
		if err != nil {
			return nil, fmt.Errorf("can't add promo job, %v-%v: %w", params.PromoMinDelay, params.PromoMaxDelay, err)
		}
	}

	if params.Digest != nil {
		digest := func() {
			if err := params.Digest(); err != nil {
				log.Printf("[WARN] failed to send digest: %v", err)
			}
		}
		_, err = sched.NewJob(gocron.CronJob(params.DigestSchedule, false),
			gocron.NewTask(digest), gocron.WithName(DigestJobName))
		if err != nil {
			return nil, fmt.Errorf("can't add digest job %q: %w", params.DigestSchedule, err)
		}
	}
	return &Jobs{sched: sched}, nil
}

// Start runs all jobs in background
func (j *Jobs) Start() {
	for _, job := range j.sched.Jobs() {
		log.Printf("[INFO] scheduled job %s", job.Name())
	}
	j.sched.Start()
}

// Names returns names of scheduled jobs
func (j *Jobs) Names() []string {
	res := []string{}
	for _, job := range j.sched.Jobs() {
		res = append(res, job.Name())
	}
	return res
}

// Shutdown stops the scheduler and waits for running jobs
func (j *Jobs) Shutdown() error {
	if err := j.sched.Shutdown(); err != nil {
		return fmt.Errorf("can't stop scheduler: %w", err)
	}
	return nil
}
