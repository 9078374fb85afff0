// Package scheduler implements C7: a cron-driven tick dispatching
// eligible watchers and workflows to a bounded worker pool, plus the
// cookie-maintenance cron jobs. Grounded on the teacher's
// internal/services/scheduler (robfig/cron wiring, RegisterJob) and
// internal/jobs/worker.JobProcessor (context+cancel+WaitGroup
// shutdown, in-flight guard).
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/GabriWar/vigilant/internal/common"
	"github.com/GabriWar/vigilant/internal/cookies"
	"github.com/GabriWar/vigilant/internal/models"
	"github.com/GabriWar/vigilant/internal/storage"
	"github.com/GabriWar/vigilant/internal/watcher"
	"github.com/GabriWar/vigilant/internal/workflow"
)

// NotificationSink is the external collaborator the core emits events
// to (spec §6). The core never retries delivery.
type NotificationSink interface {
	CookieExpiring(ctx context.Context, watcherID int64, cookieCount int, earliestExpiry time.Time)
	WatcherChanged(ctx context.Context, watcherID int64, changeType models.ChangeType, newSize int)
}

// Scheduler runs the watcher/workflow dispatch tick and the cookie
// maintenance jobs (spec §4.7).
type Scheduler struct {
	cfg     *common.SchedulerConfig
	httpCfg *common.HTTPConfig

	watchers  storage.WatcherStore
	workflows storage.WorkflowStore
	executions storage.ExecutionStore
	cookies   *cookies.Store

	watcherExec  *watcher.Executor
	workflowExec *workflow.Executor
	sink         NotificationSink

	logger arbor.ILogger
	cron   *cron.Cron

	mu        sync.Mutex
	inFlight  map[int64]bool
	semaphore chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	tickWG sync.WaitGroup

	running bool
}

func New(
	cfg *common.SchedulerConfig,
	cookieCfg *common.CookieConfig,
	httpCfg *common.HTTPConfig,
	watchers storage.WatcherStore,
	workflows storage.WorkflowStore,
	executions storage.ExecutionStore,
	cookieStore *cookies.Store,
	watcherExec *watcher.Executor,
	workflowExec *workflow.Executor,
	sink NotificationSink,
	logger arbor.ILogger,
) *Scheduler {
	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = 5
	}
	s := &Scheduler{
		cfg:          cfg,
		httpCfg:      httpCfg,
		watchers:     watchers,
		workflows:    workflows,
		executions:   executions,
		cookies:      cookieStore,
		watcherExec:  watcherExec,
		workflowExec: workflowExec,
		sink:         sink,
		logger:       logger,
		cron:         cron.New(),
		inFlight:     make(map[int64]bool),
		semaphore:    make(chan struct{}, poolSize),
	}
	s.registerCookieJobs(cookieCfg)
	return s
}

// Start registers the watcher/workflow eligibility tick as a cron
// entry alongside the cookie-maintenance jobs, then starts the cron
// scheduler (spec §4.7's per-second tick is itself one cron.Schedule
// job, matching the teacher's RegisterJob(schedule, handler) pattern).
func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.mu.Unlock()

	interval := s.cfg.TickIntervalSeconds
	if interval <= 0 {
		interval = 1
	}
	s.registerJob("dispatch_tick", fmt.Sprintf("@every %ds", interval), s.tick)

	s.cron.Start()

	s.logger.Info().Int("pool_size", cap(s.semaphore)).Int("tick_interval_seconds", interval).Msg("scheduler started")
}

// Stop drains in-flight runs with a grace period and refuses new
// dispatches from the moment it is called (spec §4.7/§5).
func (s *Scheduler) Stop(grace time.Duration) {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel := s.cancel
	s.mu.Unlock()

	cancel()
	s.cron.Stop()

	done := make(chan struct{})
	go func() {
		s.tickWG.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(grace):
		s.logger.Warn().Msg("scheduler shutdown grace period exceeded, runs may still be in-flight")
	}
	s.logger.Info().Msg("scheduler stopped")
}

// tick dispatches every eligible watcher and workflow, skipping
// anything already in-flight (spec §4.7's in-memory in-flight set).
func (s *Scheduler) tick() {
	now := time.Now().UTC()

	watchers, err := s.watchers.SchedulableWatchers(s.ctx, now)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to list schedulable watchers")
	}
	for _, w := range watchers {
		s.dispatchWatcher(w)
	}

	workflows, err := s.workflows.SchedulableWorkflows(s.ctx, now)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to list schedulable workflows")
	}
	for _, wf := range workflows {
		s.dispatchWorkflow(wf)
	}
}

func (s *Scheduler) dispatchWatcher(w *models.Watcher) {
	if !s.tryAcquire(w.ID) {
		return
	}

	select {
	case s.semaphore <- struct{}{}:
	default:
		s.release(w.ID)
		return
	}

	s.tickWG.Add(1)
	go func() {
		defer s.tickWG.Done()
		defer func() { <-s.semaphore }()
		defer s.release(w.ID)

		runCtx, cancel := s.runContext()
		defer cancel()

		result, err := s.watcherExec.Run(runCtx, w)
		if err != nil {
			s.logger.Warn().Err(err).Int64("watcher_id", w.ID).Msg("watcher run errored unexpectedly")
			return
		}
		if result.ChangeType == models.ChangeNew || result.ChangeType == models.ChangeModified {
			s.sink.WatcherChanged(runCtx, w.ID, result.ChangeType, result.Size)
		}
	}()
}

func (s *Scheduler) dispatchWorkflow(wf *models.Workflow) {
	if !s.tryAcquire(-wf.ID) {
		return
	}

	running, err := s.executions.HasRunning(s.ctx, wf.ID)
	if err != nil {
		s.logger.Warn().Err(err).Int64("workflow_id", wf.ID).Msg("failed to check running execution")
		s.release(-wf.ID)
		return
	}
	if running {
		s.release(-wf.ID)
		return
	}

	select {
	case s.semaphore <- struct{}{}:
	default:
		s.release(-wf.ID)
		return
	}

	s.tickWG.Add(1)
	go func() {
		defer s.tickWG.Done()
		defer func() { <-s.semaphore }()
		defer s.release(-wf.ID)

		runCtx, cancel := s.runContext()
		defer cancel()

		if _, err := s.workflowExec.Execute(runCtx, wf, nil); err != nil {
			s.logger.Warn().Err(err).Int64("workflow_id", wf.ID).Msg("workflow execution errored unexpectedly")
		}
	}()
}

// runContext bounds one run's wall clock to run_timeout_multiplier ×
// the HTTP total timeout (spec §4.7). Exceeding it cancels the run;
// downstream calls classify that as errs.Cancelled/errs.Timeout.
func (s *Scheduler) runContext() (context.Context, context.CancelFunc) {
	multiplier := s.cfg.RunTimeoutMultiplier
	if multiplier <= 0 {
		multiplier = 2
	}
	base := 30 * time.Second
	if s.httpCfg != nil && s.httpCfg.TimeoutTotalSeconds > 0 {
		base = time.Duration(s.httpCfg.TimeoutTotalSeconds) * time.Second
	}
	timeout := time.Duration(multiplier) * base
	return context.WithTimeout(s.ctx, timeout)
}

func (s *Scheduler) tryAcquire(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return false
	}
	if s.inFlight[id] {
		return false
	}
	s.inFlight[id] = true
	return true
}

func (s *Scheduler) release(id int64) {
	s.mu.Lock()
	delete(s.inFlight, id)
	s.mu.Unlock()
}

// registerCookieJobs wires the three fixed cookie-maintenance jobs
// (spec §4.7): hourly expiring-within-24h warning, 6-hourly grouped
// notification, and a daily 03:00 UTC purge.
func (s *Scheduler) registerCookieJobs(cfg *common.CookieConfig) {
	warnHours := cfg.ExpiringWarnHours
	if warnHours <= 0 {
		warnHours = 24
	}
	notifyHours := cfg.ExpiringNotifyHours
	if notifyHours <= 0 {
		notifyHours = 48
	}

	s.registerJob("cookie_warn", "@hourly", func() { s.warnExpiringCookies(time.Duration(warnHours) * time.Hour) })
	s.registerJob("cookie_notify", "@every 6h", func() { s.notifyExpiringCookies(time.Duration(notifyHours) * time.Hour) })
	s.registerJob("cookie_cleanup", "CRON_TZ=UTC 0 3 * * *", s.cleanupExpiredCookies)
}

// registerJob adds one cron entry, logging and discarding the job on
// a malformed schedule rather than failing Scheduler construction.
func (s *Scheduler) registerJob(name, schedule string, handler func()) {
	if _, err := s.cron.AddFunc(schedule, handler); err != nil {
		s.logger.Error().Err(err).Str("job_name", name).Str("schedule", schedule).Msg("failed to register cron job")
	}
}

func (s *Scheduler) warnExpiringCookies(within time.Duration) {
	now := time.Now().UTC()
	expiring, err := s.cookies.ExpiringWithin(s.ctx, now, within)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to list expiring cookies")
		return
	}
	for _, c := range expiring {
		s.logger.Warn().Int64("watcher_id", c.WatcherID).Str("cookie", c.Name).Str("expires", c.Expires.Format(time.RFC3339)).Msg("cookie expiring soon")
	}
}

func (s *Scheduler) notifyExpiringCookies(within time.Duration) {
	now := time.Now().UTC()
	expiring, err := s.cookies.ExpiringWithin(s.ctx, now, within)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to list expiring cookies")
		return
	}

	byWatcher := map[int64][]time.Time{}
	for _, c := range expiring {
		byWatcher[c.WatcherID] = append(byWatcher[c.WatcherID], *c.Expires)
	}
	for watcherID, expirations := range byWatcher {
		earliest := expirations[0]
		for _, e := range expirations[1:] {
			if e.Before(earliest) {
				earliest = e
			}
		}
		s.sink.CookieExpiring(s.ctx, watcherID, len(expirations), earliest)
	}
}

func (s *Scheduler) cleanupExpiredCookies() {
	// cookies.Store.DeleteExpired already logs the count purged.
	if _, err := s.cookies.DeleteExpired(s.ctx, time.Now().UTC()); err != nil {
		s.logger.Warn().Err(err).Msg("failed to purge expired cookies")
	}
}
