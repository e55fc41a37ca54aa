package background

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"carnumbers/internal/jobs"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const RosterSyncJobName = "roster-sync"

// Sweeper is the work the roster-sync job performs.
type Sweeper interface {
	SweepAll(ctx context.Context) (*jobs.SweepReport, error)
}

type Config struct {
	SyncInterval time.Duration
	SyncOnStart  bool
	Locker       gocron.Locker
	Logger       *zap.Logger
}

// JobStatus describes a registered job for the status endpoint.
type JobStatus struct {
	Name       string            `json:"name"`
	Running    bool              `json:"running"`
	LastRun    *time.Time        `json:"last_run,omitempty"`
	NextRun    *time.Time        `json:"next_run,omitempty"`
	LastError  string            `json:"last_error,omitempty"`
	LastReport *jobs.SweepReport `json:"last_report,omitempty"`
}

// JobScheduler runs the periodic roster sweep. With a distributed locker
// only one replica executes a given run.
type JobScheduler struct {
	scheduler gocron.Scheduler
	sweeper   Sweeper
	logger    *zap.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	jobs      map[string]gocron.Job
	running   atomic.Bool

	mu         sync.RWMutex
	lastErr    error
	lastReport *jobs.SweepReport
}

func NewJobScheduler(sweeper Sweeper, cfg Config) (*JobScheduler, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SyncInterval <= 0 {
		cfg.SyncInterval = time.Hour
	}

	opts := []gocron.SchedulerOption{
		gocron.WithLogger(NewGocronLogger(logger)),
	}
	if cfg.Locker != nil {
		opts = append(opts, gocron.WithDistributedLocker(cfg.Locker))
	}

	scheduler, err := gocron.NewScheduler(opts...)
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	js := &JobScheduler{
		scheduler: scheduler,
		sweeper:   sweeper,
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
		jobs:      make(map[string]gocron.Job),
	}

	if err := js.registerJobs(cfg); err != nil {
		cancel()
		_ = scheduler.Shutdown()
		return nil, err
	}
	return js, nil
}

func (js *JobScheduler) registerJobs(cfg Config) error {
	jobOpts := []gocron.JobOption{
		gocron.WithName(RosterSyncJobName),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithEventListeners(
			gocron.AfterJobRunsWithError(func(_ uuid.UUID, name string, err error) {
				js.logger.Error("scheduled job failed", zap.String("job", name), zap.Error(err))
			}),
		),
	}
	if cfg.SyncOnStart {
		jobOpts = append(jobOpts, gocron.WithStartAt(gocron.WithStartImmediately()))
	}

	job, err := js.scheduler.NewJob(
		gocron.DurationJob(cfg.SyncInterval),
		gocron.NewTask(js.runRosterSweep, js.ctx),
		jobOpts...,
	)
	if err != nil {
		return fmt.Errorf("create %s job: %w", RosterSyncJobName, err)
	}
	js.jobs[RosterSyncJobName] = job

	js.logger.Info("registered background jobs",
		zap.Int("count", len(js.jobs)),
		zap.Duration("sync_interval", cfg.SyncInterval),
		zap.Bool("sync_on_start", cfg.SyncOnStart))
	return nil
}

func (js *JobScheduler) Start() {
	js.logger.Info("starting background job scheduler")
	js.scheduler.Start()
}

// Stop cancels an in-flight sweep and waits for the scheduler to drain.
func (js *JobScheduler) Stop() error {
	js.logger.Info("stopping background job scheduler")
	js.cancel()
	return js.scheduler.Shutdown()
}

// RunNow triggers the named job outside its schedule.
func (js *JobScheduler) RunNow(name string) error {
	job, ok := js.jobs[name]
	if !ok {
		return fmt.Errorf("unknown job %q", name)
	}
	return job.RunNow()
}

func (js *JobScheduler) Status() []JobStatus {
	js.mu.RLock()
	defer js.mu.RUnlock()

	statuses := make([]JobStatus, 0, len(js.jobs))
	for name, job := range js.jobs {
		st := JobStatus{Name: name}
		if name == RosterSyncJobName {
			st.Running = js.running.Load()
			st.LastReport = js.lastReport
			if js.lastErr != nil {
				st.LastError = js.lastErr.Error()
			}
		}
		if t, err := job.LastRun(); err == nil && !t.IsZero() {
			st.LastRun = &t
		}
		if t, err := job.NextRun(); err == nil && !t.IsZero() {
			st.NextRun = &t
		}
		statuses = append(statuses, st)
	}
	return statuses
}

func (js *JobScheduler) runRosterSweep(ctx context.Context) error {
	js.running.Store(true)
	defer js.running.Store(false)

	report, err := js.sweeper.SweepAll(ctx)

	js.mu.Lock()
	js.lastErr = err
	if report != nil {
		js.lastReport = report
	}
	js.mu.Unlock()

	if err != nil {
		return err
	}
	if report.PartialFailure() {
		js.logger.Warn("roster sweep finished with failures",
			zap.Int("failed", report.Failed),
			zap.Int("succeeded", report.Succeeded))
	}
	return nil
}
