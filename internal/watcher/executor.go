// Package watcher implements C5: run one watcher's HTTP request,
// route cookies through C2, classify the response through C4, and
// update the watcher's observable status/counters. Grounded on the
// teacher's internal/jobs/worker crawl-job shape (assemble request →
// call external I/O → update status/counters) and the original
// vigilant backend's api/watchers/execute.py orchestration order.
package watcher

import (
	"context"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/GabriWar/vigilant/internal/changedetect"
	"github.com/GabriWar/vigilant/internal/cookies"
	"github.com/GabriWar/vigilant/internal/httpclient"
	"github.com/GabriWar/vigilant/internal/models"
	"github.com/GabriWar/vigilant/internal/storage"
)

// Result is run's return value (spec §4.5 step 7).
type Result struct {
	Status     models.WatcherStatus
	HTTPStatus int
	Size       int
	ChangeType models.ChangeType
	Error      error
}

// Executor runs one watcher at a time; callers (the scheduler) are
// responsible for not dispatching the same watcher concurrently.
type Executor struct {
	watchers storage.WatcherStore
	cookies  *cookies.Store
	client   *httpclient.Client
	detector *changedetect.Detector
	tx       storage.Transactor
	logger   arbor.ILogger
}

func New(watchers storage.WatcherStore, cookieStore *cookies.Store, client *httpclient.Client, detector *changedetect.Detector, tx storage.Transactor, logger arbor.ILogger) *Executor {
	return &Executor{watchers: watchers, cookies: cookieStore, client: client, detector: detector, tx: tx, logger: logger}
}

// Run executes one check of w (spec §4.5). w is mutated in place and
// persisted before Run returns, whether it succeeds or fails.
func (e *Executor) Run(ctx context.Context, w *models.Watcher) (*Result, error) {
	w.Status = models.WatcherRunning
	if err := e.watchers.Update(ctx, w); err != nil {
		return nil, err
	}

	jar, err := e.loadOutgoingCookies(ctx, w)
	if err != nil {
		return e.fail(ctx, w, err), nil
	}

	req := httpclient.Request{
		URL:     w.URL,
		Method:  w.Method,
		Headers: w.HeaderMap(),
		Body:    w.Body,
		Cookies: jar,
	}

	resp, err := e.client.Execute(ctx, req)
	if err != nil {
		return e.fail(ctx, w, err), nil
	}

	if w.SaveCookies {
		if err := e.cookies.PutAll(ctx, w.ID, resp.Cookies); err != nil {
			return e.fail(ctx, w, err), nil
		}
	}

	var detectResult *changedetect.Result
	txErr := e.tx.WithTransaction(ctx, func(tx storage.Tx) error {
		var detectErr error
		detectResult, detectErr = e.detector.Detect(ctx, tx, w.ID, resp.Body, resp.Headers.Get("Content-Type"), w.ComparisonMode)
		if detectErr != nil {
			return detectErr
		}

		now := time.Now().UTC()
		w.LastCheckedAt = &now
		w.CheckCount++
		if detectResult.ChangeType == models.ChangeNew || detectResult.ChangeType == models.ChangeModified {
			w.ChangeCount++
			w.LastChangedAt = &now
		}
		w.Status = models.WatcherSuccess
		w.ErrorMessage = ""

		return e.watchers.UpdateTx(ctx, tx, w)
	})
	if txErr != nil {
		return e.fail(ctx, w, txErr), nil
	}

	return &Result{
		Status:     models.WatcherSuccess,
		HTTPStatus: resp.Status,
		Size:       len(resp.Body),
		ChangeType: detectResult.ChangeType,
	}, nil
}

// DryRunResult is the outcome of a validation-only request execution.
type DryRunResult struct {
	HTTPStatus int
	Headers    map[string][]string
	Body       []byte
}

// DryRun executes w's request template (with variable substitution
// applied by the caller, if any) without touching change detection,
// cookie storage, or watcher counters — a non-persisting check used to
// validate a definition before saving it (supplemented from the
// original backend's requests/test.py dry-run endpoint).
func (e *Executor) DryRun(ctx context.Context, req httpclient.Request) (*DryRunResult, error) {
	resp, err := e.client.Execute(ctx, req)
	if err != nil {
		return nil, err
	}
	return &DryRunResult{
		HTTPStatus: resp.Status,
		Headers:    resp.Headers,
		Body:       resp.Body,
	}, nil
}

func (e *Executor) loadOutgoingCookies(ctx context.Context, w *models.Watcher) ([]httpclient.Cookie, error) {
	if !w.UseCookies || w.CookieWatcherID == 0 {
		return nil, nil
	}
	return e.cookies.Get(ctx, w.CookieWatcherID)
}

// fail records a failed run: watcher status, error message, check_count
// advanced (but not change_count), and an error-kind change log (spec
// §7's propagation policy for Network/Timeout). The cause is reported
// through Result.Error, not a second return value — a failed run is a
// classified outcome, not an unexpected failure of Run itself.
func (e *Executor) fail(ctx context.Context, w *models.Watcher, cause error) *Result {
	now := time.Now().UTC()
	w.Status = models.WatcherError
	w.ErrorMessage = cause.Error()
	w.LastCheckedAt = &now
	w.CheckCount++

	if err := e.watchers.Update(ctx, w); err != nil {
		e.logger.Warn().Err(err).Int64("watcher_id", w.ID).Msg("failed to persist watcher error status")
	}
	if err := e.detector.RecordError(ctx, w.ID, cause.Error()); err != nil {
		e.logger.Warn().Err(err).Int64("watcher_id", w.ID).Msg("failed to record error change log")
	}

	e.logger.Error().Err(cause).Int64("watcher_id", w.ID).Msg("watcher run failed")

	return &Result{Status: models.WatcherError, ChangeType: models.ChangeError, Error: cause}
}
