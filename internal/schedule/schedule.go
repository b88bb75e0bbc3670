package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"stockalert/internal/config"
	"stockalert/internal/domain"
	"stockalert/internal/logging"

	"github.com/robfig/cron/v3"
)

// CycleFunc runs one alert cycle over kinds.
type CycleFunc func(ctx context.Context, kinds ...domain.ConditionKind) domain.CycleCounts

// Job is one cron entry and the condition kinds it evaluates.
type Job struct {
	Expr  string
	Kinds []domain.ConditionKind
}

// Plan derives cron jobs from schedule config.
// Kinds with a dedicated expression are removed from the unified pass.
// Params: schedule section after defaults.
// Returns: jobs in deterministic order (unified first, then kinds in canonical order).
func Plan(cfg config.ScheduleConfig) []Job {
	if cfg.Disabled {
		return nil
	}
	var (
		jobs    []Job
		unified []domain.ConditionKind
		own     []Job
	)
	for _, kind := range domain.AllKinds() {
		if expr := cfg.KindExpr(kind); expr != "" {
			own = append(own, Job{Expr: expr, Kinds: []domain.ConditionKind{kind}})
			continue
		}
		unified = append(unified, kind)
	}
	if cfg.RunAll != "" && len(unified) > 0 {
		jobs = append(jobs, Job{Expr: cfg.RunAll, Kinds: unified})
	}
	return append(jobs, own...)
}

// Scheduler triggers alert cycles on cron expressions.
type Scheduler struct {
	cron       *cron.Cron
	run        CycleFunc
	logger     *slog.Logger
	jobs       []Job
	runOnStart bool

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New registers jobs from config on a cron runner.
// Params: schedule config, cycle callback, and logger.
// Returns: stopped scheduler or cron expression error.
func New(cfg config.ScheduleConfig, run CycleFunc, logger *slog.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cronLogger := logging.CronLogger(logger)
	s := &Scheduler{
		cron:       cron.New(cron.WithLogger(cronLogger), cron.WithChain(cron.Recover(cronLogger))),
		run:        run,
		logger:     logger,
		jobs:       Plan(cfg),
		runOnStart: cfg.RunOnStart && !cfg.Disabled,
	}
	for _, job := range s.jobs {
		job := job
		if _, err := s.cron.AddFunc(job.Expr, func() { s.trigger("cron", job.Kinds) }); err != nil {
			return nil, fmt.Errorf("schedule %q: %w", job.Expr, err)
		}
	}
	return s, nil
}

// Jobs returns registered jobs.
func (s *Scheduler) Jobs() []Job {
	return s.jobs
}

// Start begins cron dispatch and optionally runs one full cycle immediately.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	for _, job := range s.jobs {
		s.logger.Info("alert schedule registered", "expr", job.Expr, "kinds", job.Kinds)
	}
	if s.runOnStart {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.trigger("startup", domain.AllKinds())
		}()
	}
	s.cron.Start()
}

// Stop halts cron dispatch, cancels running cycles, and waits for them.
func (s *Scheduler) Stop() {
	stopped := s.cron.Stop()
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()
	<-stopped.Done()
	s.wg.Wait()
}

// trigger runs one cycle; overlapping cycles are allowed and rely on the cooldown gate.
func (s *Scheduler) trigger(source string, kinds []domain.ConditionKind) {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}
	if ctx.Err() != nil {
		return
	}
	counts := s.run(ctx, kinds...)
	s.logger.Info("scheduled alert cycle finished",
		"source", source,
		"kinds", kinds,
		"low_stock", counts.LowStock,
		"out_of_stock", counts.OutOfStock,
		"expiry", counts.Expiry,
		"reorder", counts.Reorder,
	)
}
