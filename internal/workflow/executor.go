// Package workflow implements C6: execute an ordered list of workflow
// steps, threading an extraction/substitution variable context between
// them, and record the aggregate execution outcome. Grounded on the
// teacher's internal/jobs/executor ordered-step-loop shape
// (continue_on_error semantics from its ErrorStrategy) and the
// original vigilant backend's workflows/execute.py +
// workflows/variables.py context-merge rules.
package workflow

import (
	"context"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/GabriWar/vigilant/internal/httpclient"
	"github.com/GabriWar/vigilant/internal/models"
	"github.com/GabriWar/vigilant/internal/storage"
	"github.com/GabriWar/vigilant/internal/variables"
)

// Executor runs one workflow to completion; callers (the scheduler)
// must not dispatch two concurrent executions of the same workflow
// (spec §5 — guarded by storage.ExecutionStore.HasRunning).
type Executor struct {
	workflows  storage.WorkflowStore
	variables  storage.VariableStore
	executions storage.ExecutionStore
	watchers   storage.WatcherStore
	client     *httpclient.Client
	tx         storage.Transactor
	logger     arbor.ILogger
}

func New(workflows storage.WorkflowStore, vars storage.VariableStore, executions storage.ExecutionStore, watchers storage.WatcherStore, client *httpclient.Client, tx storage.Transactor, logger arbor.ILogger) *Executor {
	return &Executor{workflows: workflows, variables: vars, executions: executions, watchers: watchers, client: client, tx: tx, logger: logger}
}

// Execute runs w's steps in order (spec §4.6). overrideVariables seeds
// the context and wins over any workflow Variable of the same name.
func (e *Executor) Execute(ctx context.Context, w *models.Workflow, overrideVariables map[string]string) (*models.WorkflowExecution, error) {
	steps := w.SortedSteps()

	execution := &models.WorkflowExecution{
		WorkflowID: w.ID,
		Status:     models.WorkflowRunning,
		StartedAt:  time.Now().UTC(),
		StepsTotal: len(steps),
	}
	if err := e.executions.Create(ctx, execution); err != nil {
		return nil, err
	}

	varContext, err := e.initialContext(ctx, w.ID, overrideVariables)
	if err != nil {
		return nil, err
	}

	failedSteps, allFailed := 0, true
	stoppedEarly := false

	for _, step := range steps {
		stepResult := e.runStep(ctx, w.ID, step, varContext)
		execution.StepResults = append(execution.StepResults, *stepResult)
		execution.StepsCompleted++

		if stepResult.Status == models.StepSuccess {
			allFailed = false
		} else {
			failedSteps++
			if !step.ContinueOnError {
				execution.ErrorMessage = stepResult.Error
				execution.ErrorStep = step.Order
				stoppedEarly = true
				break
			}
		}
	}

	e.finalize(ctx, w, execution, len(steps), failedSteps, allFailed, stoppedEarly, varContext)

	// Execution record and workflow counters summarize the same run,
	// so they commit atomically (spec §4.4 step 6).
	if err := e.tx.WithTransaction(ctx, func(tx storage.Tx) error {
		if err := e.executions.UpdateTx(ctx, tx, execution); err != nil {
			return err
		}
		return e.workflows.UpdateTx(ctx, tx, w)
	}); err != nil {
		return nil, err
	}

	return execution, nil
}

// initialContext merges override variables with each static Variable's
// current_value, override wins (spec §4.6 step 2).
func (e *Executor) initialContext(ctx context.Context, workflowID int64, overrideVariables map[string]string) (map[string]string, error) {
	varContext := map[string]string{}
	for k, v := range overrideVariables {
		varContext[k] = v
	}

	vars, err := e.variables.ListByWorkflow(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	for _, v := range vars {
		if v.Source != models.SourceStatic {
			continue
		}
		if _, exists := varContext[v.Name]; exists {
			continue
		}
		varContext[v.Name] = v.CurrentValue
	}
	return varContext, nil
}

// runStep resolves, substitutes, and executes one step, then performs
// its variable extractions (spec §4.6 steps 3a-3e).
func (e *Executor) runStep(ctx context.Context, workflowID int64, step models.WorkflowStep, varContext map[string]string) *models.StepResult {
	started := time.Now()
	result := &models.StepResult{Order: step.Order, WatcherID: step.WatcherID}

	template, err := e.watchers.Get(ctx, step.WatcherID)
	if err != nil {
		result.Status = models.StepFailed
		result.Error = err.Error()
		result.DurationMS = time.Since(started).Milliseconds()
		return result
	}

	req := variables.SubstituteRequest(httpclient.Request{
		URL:     template.URL,
		Method:  template.Method,
		Headers: template.HeaderMap(),
		Body:    template.Body,
	}, varContext)

	resp, err := e.client.Execute(ctx, req)
	result.DurationMS = time.Since(started).Milliseconds()
	if err != nil {
		result.Status = models.StepFailed
		result.Error = err.Error()
		return result
	}

	result.ResponseStatus = resp.Status
	if resp.Status >= 400 {
		result.Status = models.StepFailed
	} else {
		result.Status = models.StepSuccess
	}

	if len(step.ExtractVariables) > 0 {
		extracted := e.extractStepVariables(ctx, workflowID, step.ExtractVariables, resp, varContext)
		if len(extracted) > 0 {
			result.VariablesExtracted = extracted
		}
	}

	return result
}

// extractStepVariables runs C3.extract for each requested name and, on
// success, writes it into the shared context, the step's result, and
// the Variable row's current_value/last_extracted_at (spec §4.6 step
// 3d). A failed extraction never fails the step (spec §7). Every
// variable this step extracts is persisted in one transaction (spec
// §4.4 step 6), so the step's Variable rows are written all together
// or not at all. The context and the step result keep the extracted
// values even when that write fails; the failure is only logged.
func (e *Executor) extractStepVariables(ctx context.Context, workflowID int64, names []string, resp *httpclient.Response, varContext map[string]string) map[string]string {
	extracted := map[string]string{}
	now := time.Now().UTC()

	type pending struct {
		name  string
		value string
		v     *models.Variable
	}
	var toPersist []pending

	for _, name := range names {
		v, err := e.variables.Get(ctx, workflowID, name)
		if err != nil {
			e.logger.Warn().Str("variable", name).Msg("variable not found for extraction")
			continue
		}

		value, ok := variables.Extract(v, variables.Context{
			ResponseBody:    resp.Body,
			ResponseHeaders: resp.Headers,
			Cookies:         resp.Cookies,
		})
		if !ok {
			e.logger.Warn().Str("variable", name).Msg("extraction yielded no value")
			continue
		}

		varContext[name] = value
		extracted[name] = value
		v.CurrentValue = value
		v.LastExtractedAt = &now
		toPersist = append(toPersist, pending{name: name, value: value, v: v})
	}

	if len(toPersist) == 0 {
		return extracted
	}

	err := e.tx.WithTransaction(ctx, func(tx storage.Tx) error {
		for _, p := range toPersist {
			if err := e.variables.UpsertTx(ctx, tx, p.v); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		e.logger.Warn().Err(err).Int64("workflow_id", workflowID).Msg("failed to persist extracted variables")
	}
	return extracted
}

// finalize classifies the execution outcome and rolls workflow
// counters forward (spec §4.6 steps 4-5).
func (e *Executor) finalize(ctx context.Context, w *models.Workflow, execution *models.WorkflowExecution, totalSteps, failedSteps int, allFailed, stoppedEarly bool, varContext map[string]string) {
	now := time.Now().UTC()
	execution.CompletedAt = &now
	execution.DurationSeconds = now.Sub(execution.StartedAt).Seconds()
	execution.VariablesExtracted = varContext

	switch {
	case stoppedEarly:
		execution.Status = models.WorkflowFailed
	case failedSteps == 0:
		execution.Status = models.WorkflowSuccess
	case allFailed:
		execution.Status = models.WorkflowFailed
	default:
		execution.Status = models.WorkflowPartial
	}

	w.ExecutionCount++
	if execution.Status == models.WorkflowSuccess {
		w.SuccessCount++
	} else {
		w.FailureCount++
	}
	w.LastExecutedAt = &now
	w.LastExecutionStatus = execution.Status
	w.LastExecutionError = execution.ErrorMessage
}
