// Package worker implements the ranking worker: a polling client that
// leases rank tasks from the queue server, runs one grading call per task
// through the provider gateway, and reports completions back.
package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/coderated/gradepipe/internal/domain"
	"github.com/coderated/gradepipe/internal/judge"
	"github.com/coderated/gradepipe/internal/llm"
	llmerrors "github.com/coderated/gradepipe/internal/llm/errors"
)

// DefaultFailThreshold is how many extraction failures one answer gets
// before the worker retires its task with fail:true.
const DefaultFailThreshold = 3

// Config controls one worker instance.
type Config struct {
	// ServerURL is the queue server base URL, e.g. http://localhost:8080.
	ServerURL string

	// Model is the judge model grading on this worker's behalf.
	Model string

	// After, Before, and Mod shard the task range so parallel workers do
	// not contend for the same tasks.
	After  int
	Before int
	Mod    int

	// Take is how many tasks to lease per poll.
	Take int

	// RequestsPerMinute caps outbound grading calls. Zero disables the
	// local limiter.
	RequestsPerMinute int

	// FailThreshold overrides DefaultFailThreshold when positive.
	FailThreshold int

	// ErrorLogPath is where raw judge responses that defeated extraction
	// are recorded. Empty disables the sink.
	ErrorLogPath string
}

// Worker polls the queue server and grades tasks until the queue drains or
// the context is cancelled.
type Worker struct {
	cfg     Config
	gateway llm.Gateway
	client  *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
	errLog  *ErrorLog

	id string

	// failures counts grading failures per answer id. pending holds tasks
	// this worker already owns the lease on: batches returned by completion
	// POSTs plus below-threshold failures awaiting a retry. The server will
	// not re-serve a leased task, so neither may be dropped.
	failures map[string]int
	pending  []domain.RankTaskDTO
}

// New creates a worker with a fresh identity.
func New(cfg Config, gateway llm.Gateway, logger *slog.Logger) *Worker {
	if cfg.FailThreshold <= 0 {
		cfg.FailThreshold = DefaultFailThreshold
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60.0), 1)
	}

	var errLog *ErrorLog
	if cfg.ErrorLogPath != "" {
		errLog = NewErrorLog(cfg.ErrorLogPath)
	}

	id := uuid.NewString()
	return &Worker{
		cfg:      cfg,
		gateway:  gateway,
		client:   &http.Client{Timeout: 30 * time.Second},
		limiter:  limiter,
		logger:   logger.With("worker_id", id, "judge", cfg.Model),
		errLog:   errLog,
		id:       id,
		failures: make(map[string]int),
	}
}

// Run polls the queue server until it has no tasks left for this worker's
// shard or ctx is cancelled. One task failing never stops the loop.
func (w *Worker) Run(ctx context.Context) error {
	graded := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		// Work through tasks the worker already holds a lease on before
		// fetching new ones.
		tasks := w.pending
		w.pending = nil

		if len(tasks) == 0 {
			var err error
			tasks, err = w.fetchTasks(ctx)
			if err != nil {
				return fmt.Errorf("fetch tasks: %w", err)
			}
		}
		if len(tasks) == 0 {
			w.logger.Info("queue drained", "graded", graded)
			return nil
		}

		for _, task := range tasks {
			if err := w.limiter.Wait(ctx); err != nil {
				return err
			}

			result, err := w.judgeTask(ctx, task)
			if err != nil {
				w.handleFailure(ctx, task, err)
				continue
			}

			next, err := w.complete(ctx, task, result)
			if err != nil {
				// The worker still holds the lease, so a lost completion is
				// handled like a grading failure: retried from pending or
				// retired at the threshold.
				w.handleFailure(ctx, task, fmt.Errorf("report completion: %w", err))
				continue
			}
			delete(w.failures, task.AnswerID)
			graded++
			w.logger.Info("graded answer",
				"answer_id", task.AnswerID,
				"score", result.Score,
				"graded", graded)

			// The completion response already leased the next batch for this
			// shard; discarding it would strand those tasks server-side.
			w.pending = append(w.pending, next...)
		}
	}
}

// judgeTask runs one grading call with bounded retries. Provider failures
// retry with linear backoff; an unextractable response returns immediately
// so the answer's failure counter decides whether to keep trying on later
// polls.
func (w *Worker) judgeTask(ctx context.Context, task domain.RankTaskDTO) (domain.JudgeResult, error) {
	prompt := judge.BuildPrompt(task)

	var lastErr error
	for attempt := 1; attempt <= MaxAttempts; attempt++ {
		resp, err := w.gateway.Send(ctx, llm.ChatRequest{
			Model:        w.cfg.Model,
			SystemPrompt: judge.SystemPrompt,
			UserPrompt:   prompt,
			Temperature:  judge.DefaultTemperature,
			MaxTokens:    judge.DefaultMaxTokens,
			TraceID:      uuid.NewString(),
		})
		if err != nil {
			lastErr = err
			if !llmerrors.IsRetryableError(err) {
				return domain.JudgeResult{}, err
			}
			delay := Backoff(attempt, err)
			w.logger.Warn("provider call failed, backing off",
				"answer_id", task.AnswerID,
				"attempt", attempt,
				"delay", delay.String(),
				"error", err)
			if err := sleepCtx(ctx, delay); err != nil {
				return domain.JudgeResult{}, err
			}
			continue
		}

		result, repaired, err := judge.Extract(resp.Content)
		if err != nil {
			w.errLog.Logf("%s: extraction failed: %v\n%s", task.AnswerID, err, resp.Content)
			return domain.JudgeResult{}, err
		}
		if repaired {
			w.logger.Warn("repaired judge result", "answer_id", task.AnswerID, "score", result.Score)
		}
		return result, nil
	}

	return domain.JudgeResult{}, fmt.Errorf("%w: %v", llmerrors.ErrMaxRetriesExceeded, lastErr)
}

// handleFailure records a grading failure and retires the task once the
// answer has burned its attempts. Below the threshold the task is kept
// pending locally for a later cycle.
func (w *Worker) handleFailure(ctx context.Context, task domain.RankTaskDTO, cause error) {
	w.failures[task.AnswerID]++
	count := w.failures[task.AnswerID]
	w.logger.Warn("failed to grade answer",
		"answer_id", task.AnswerID,
		"failures", count,
		"error", cause)

	if count < w.cfg.FailThreshold {
		w.pending = append(w.pending, task)
		return
	}

	w.errLog.Logf("%s: giving up after %d failures: %v", task.AnswerID, count, cause)
	next, err := w.fail(ctx, task)
	if err != nil {
		w.logger.Error("failed to retire task", "answer_id", task.AnswerID, "error", err)
		return
	}
	delete(w.failures, task.AnswerID)
	w.pending = append(w.pending, next...)
}

// fetchTasks leases the next batch for this worker's shard.
func (w *Worker) fetchTasks(ctx context.Context) ([]domain.RankTaskDTO, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.taskURL(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("queue server returned %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	var tasks []domain.RankTaskDTO
	if err := json.NewDecoder(resp.Body).Decode(&tasks); err != nil {
		return nil, fmt.Errorf("decode task response: %w", err)
	}
	return tasks, nil
}

// complete reports a successful grade and returns the next batch the server
// leased in the same round trip.
func (w *Worker) complete(ctx context.Context, task domain.RankTaskDTO, result domain.JudgeResult) ([]domain.RankTaskDTO, error) {
	return w.post(ctx, domain.CompleteRequest{
		AnswerID: task.AnswerID,
		Model:    w.cfg.Model,
		Score:    &result.Score,
		Reason:   &result.Reason,
	})
}

// fail retires a task without recording a vote.
func (w *Worker) fail(ctx context.Context, task domain.RankTaskDTO) ([]domain.RankTaskDTO, error) {
	return w.post(ctx, domain.CompleteRequest{
		AnswerID: task.AnswerID,
		Model:    w.cfg.Model,
		Fail:     true,
	})
}

func (w *Worker) post(ctx context.Context, body domain.CompleteRequest) ([]domain.RankTaskDTO, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.taskURL(), bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("queue server returned %d: %s", resp.StatusCode, bytes.TrimSpace(respBody))
	}

	// A POST falls through to leasing on the server, so the response body is
	// the next task batch for this worker's shard.
	var next []domain.RankTaskDTO
	if err := json.NewDecoder(resp.Body).Decode(&next); err != nil {
		return nil, fmt.Errorf("decode completion response: %w", err)
	}
	return next, nil
}

// taskURL builds the task endpoint URL with this worker's shard filter.
func (w *Worker) taskURL() string {
	q := url.Values{}
	if w.cfg.After > 0 {
		q.Set("after", strconv.Itoa(w.cfg.After))
	}
	if w.cfg.Before > 0 {
		q.Set("before", strconv.Itoa(w.cfg.Before))
	}
	if w.cfg.Mod > 0 {
		q.Set("mod", strconv.Itoa(w.cfg.Mod))
	}
	if w.cfg.Take > 0 {
		q.Set("take", strconv.Itoa(w.cfg.Take))
	}

	u := w.cfg.ServerURL + "/api/RankAnswer"
	if encoded := q.Encode(); encoded != "" {
		u += "?" + encoded
	}
	return u
}

// sleepCtx waits for d or until ctx is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
