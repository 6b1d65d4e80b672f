package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coderated/gradepipe/internal/domain"
	"github.com/coderated/gradepipe/internal/ledger"
	"github.com/coderated/gradepipe/internal/llm"
	llmerrors "github.com/coderated/gradepipe/internal/llm/errors"
	"github.com/coderated/gradepipe/internal/llm/transport"
	"github.com/coderated/gradepipe/internal/queue"
)

// fakeGateway scripts gateway responses per call.
type fakeGateway struct {
	mu    sync.Mutex
	steps []func() (*transport.Response, error)
	calls int
}

func (f *fakeGateway) Send(_ context.Context, _ llm.ChatRequest) (*transport.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	step := f.steps[len(f.steps)-1]
	if f.calls < len(f.steps) {
		step = f.steps[f.calls]
	}
	f.calls++
	return step()
}

func grade(score int, reason string) func() (*transport.Response, error) {
	return func() (*transport.Response, error) {
		content := fmt.Sprintf("Critique.\n```json\n{\"reason\": %q, \"score\": %d}\n```", reason, score)
		return &transport.Response{Content: content}, nil
	}
}

func unextractable() (*transport.Response, error) {
	return &transport.Response{Content: "I refuse to produce JSON."}, nil
}

type workerEnv struct {
	store        *queue.Store
	serverURL    string
	questionsDir string
	metaDir      string
	errLogPath   string

	// gets counts task fetches; failPosts makes that many completion POSTs
	// answer 503 before the server sees them.
	gets      atomic.Int32
	failPosts atomic.Int32
}

func newWorkerEnv(t *testing.T) *workerEnv {
	t.Helper()
	dir := t.TempDir()

	store, err := queue.Open(filepath.Join(dir, "tasks.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	server := queue.NewServer(store, logger)
	t.Cleanup(server.Close)

	env := &workerEnv{
		store:        store,
		questionsDir: filepath.Join(dir, "questions"),
		metaDir:      filepath.Join(dir, "meta"),
		errLogPath:   filepath.Join(dir, "errors", "worker.log"),
	}

	handler := server.Handler()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			env.gets.Add(1)
		case http.MethodPost:
			if env.failPosts.Load() > 0 {
				env.failPosts.Add(-1)
				http.Error(w, "unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		handler.ServeHTTP(w, r)
	}))
	t.Cleanup(ts.Close)

	env.serverURL = ts.URL
	return env
}

func (e *workerEnv) seedTask(t *testing.T, questionID int, author string) queue.RankTask {
	t.Helper()

	paths := domain.IDParts(questionID)
	questionPath := paths.QuestionPath(e.questionsDir)
	answerPath := paths.AnswerPath(e.questionsDir, author)
	vPath := paths.LedgerPath(e.metaDir)

	require.NoError(t, os.MkdirAll(filepath.Dir(questionPath), 0o755))

	question := domain.Question{ID: questionID, Title: "t", Body: "b", Tags: []string{"go"}}
	questionData, err := json.Marshal(question)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(questionPath, questionData, 0o644))
	require.NoError(t, os.WriteFile(answerPath, []byte(`{"body": "an answer"}`), 0o644))
	require.NoError(t, ledger.Save(vPath, domain.NewVoteLedger()))

	task := queue.RankTask{
		AnswerID:     domain.AnswerID(questionID, author),
		PostID:       questionID,
		VPath:        vPath,
		QuestionPath: questionPath,
		MetaPath:     paths.MetaPath(e.metaDir),
		AnswerPath:   answerPath,
	}
	require.NoError(t, e.store.Insert(&task))
	return task
}

func newTestWorker(env *workerEnv, gateway llm.Gateway) *Worker {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(Config{
		ServerURL:    env.serverURL,
		Model:        "claude-3-sonnet",
		Take:         1,
		ErrorLogPath: env.errLogPath,
	}, gateway, logger)
}

func TestWorkerDrainsQueue(t *testing.T) {
	env := newWorkerEnv(t)
	first := env.seedTask(t, 100, "gpt-4")
	second := env.seedTask(t, 200, "mistral-7b")

	gateway := &fakeGateway{steps: []func() (*transport.Response, error){grade(7, "fine")}}
	w := newTestWorker(env, gateway)

	require.NoError(t, w.Run(context.Background()))

	for _, task := range []queue.RankTask{first, second} {
		led, err := ledger.Load(task.VPath)
		require.NoError(t, err)
		author := domain.AuthorOf(task.AnswerID)
		assert.Equal(t, 7, led.ModelVotes[author])
		assert.Equal(t, "fine", led.ModelReasons[author])
		assert.True(t, led.IsAlreadyGraded("claude-3-sonnet", task.AnswerID))
	}

	count, err := env.store.Count()
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestWorkerConsumesCompletionResponseBatch(t *testing.T) {
	env := newWorkerEnv(t)
	env.seedTask(t, 100, "gpt-4")
	env.seedTask(t, 200, "mistral-7b")
	env.seedTask(t, 300, "gemini-pro")

	gateway := &fakeGateway{steps: []func() (*transport.Response, error){grade(8, "solid")}}
	w := newTestWorker(env, gateway)

	require.NoError(t, w.Run(context.Background()))

	assert.Equal(t, 3, gateway.calls)
	count, err := env.store.Count()
	require.NoError(t, err)
	assert.Zero(t, count)

	// Each completion's response hands over the next leased task, so the
	// worker only fetches for the first lease and the final empty check.
	// Dropping those batches would leave them leased and undrainable.
	assert.Equal(t, int32(2), env.gets.Load())
}

func TestWorkerRetriesLostCompletion(t *testing.T) {
	env := newWorkerEnv(t)
	task := env.seedTask(t, 100, "gpt-4")
	env.failPosts.Store(1)

	gateway := &fakeGateway{steps: []func() (*transport.Response, error){grade(6, "ok")}}
	w := newTestWorker(env, gateway)

	require.NoError(t, w.Run(context.Background()))

	// The worker still held the lease when the first POST bounced, so the
	// task had to be retried locally rather than dropped.
	assert.Equal(t, 2, gateway.calls)

	led, err := ledger.Load(task.VPath)
	require.NoError(t, err)
	assert.Equal(t, 6, led.ModelVotes["gpt-4"])

	count, err := env.store.Count()
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestWorkerFailEscalation(t *testing.T) {
	env := newWorkerEnv(t)
	task := env.seedTask(t, 42, "gpt-4")

	gateway := &fakeGateway{steps: []func() (*transport.Response, error){unextractable}}
	w := newTestWorker(env, gateway)

	require.NoError(t, w.Run(context.Background()))

	// Three strikes, then the task is retired with no vote recorded.
	assert.Equal(t, DefaultFailThreshold, gateway.calls)

	count, err := env.store.Count()
	require.NoError(t, err)
	assert.Zero(t, count)

	led, err := ledger.Load(task.VPath)
	require.NoError(t, err)
	assert.Empty(t, led.ModelVotes)

	// The raw responses that defeated extraction were sunk to the error log.
	data, err := os.ReadFile(env.errLogPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), task.AnswerID)
	assert.Contains(t, string(data), "I refuse to produce JSON.")
}

func TestWorkerRepairedScoreStillRecorded(t *testing.T) {
	env := newWorkerEnv(t)
	task := env.seedTask(t, 42, "gpt-4")

	fractional := func() (*transport.Response, error) {
		return &transport.Response{Content: `{"reason": "close call", "score": 7.9}`}, nil
	}
	gateway := &fakeGateway{steps: []func() (*transport.Response, error){fractional}}
	w := newTestWorker(env, gateway)

	require.NoError(t, w.Run(context.Background()))

	led, err := ledger.Load(task.VPath)
	require.NoError(t, err)
	assert.Equal(t, 7, led.ModelVotes["gpt-4"])
}

func TestJudgeTaskNonRetryableErrorReturnsImmediately(t *testing.T) {
	env := newWorkerEnv(t)

	authFailure := func() (*transport.Response, error) {
		return nil, &llmerrors.ProviderError{
			Provider:   "openai",
			StatusCode: 401,
			Message:    "bad key",
			Type:       llmerrors.ErrorTypeAuth,
		}
	}
	gateway := &fakeGateway{steps: []func() (*transport.Response, error){authFailure}}
	w := newTestWorker(env, gateway)

	_, err := w.judgeTask(context.Background(), domain.RankTaskDTO{AnswerID: "42-gpt-4"})
	require.Error(t, err)
	assert.Equal(t, 1, gateway.calls)
}

func TestJudgeTaskRetriesRetryableError(t *testing.T) {
	env := newWorkerEnv(t)

	transient := func() (*transport.Response, error) {
		return nil, &llmerrors.ProviderError{
			Provider:   "openai",
			StatusCode: 503,
			Message:    "overloaded",
			Type:       llmerrors.ErrorTypeProvider,
		}
	}
	gateway := &fakeGateway{steps: []func() (*transport.Response, error){
		transient,
		grade(9, "recovered"),
	}}
	w := newTestWorker(env, gateway)

	result, err := w.judgeTask(context.Background(), domain.RankTaskDTO{AnswerID: "42-gpt-4"})
	require.NoError(t, err)
	assert.Equal(t, 9, result.Score)
	assert.Equal(t, 2, gateway.calls)
}
