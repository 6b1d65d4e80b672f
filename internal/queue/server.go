package queue

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/coderated/gradepipe/internal/domain"
	"github.com/coderated/gradepipe/internal/ledger"
)

const homePage = `
## Usage:

GET /api/RankAnswer

GET /api/RankAnswer?after=10000&before=20000&mod=1&take=1

POST /api/RankAnswer
     { answerId, model, reason, score }

POST /api/RankAnswer?after=10000&before=20000&mod=1&take=1
     { answerId, model, reason, score }
`

// Server serves rank tasks to polling workers and applies their completions
// to the vote ledgers. It is the only process that writes a ledger: every
// request that reads or mutates queue state runs on a single goroutine, so
// a task id handed to one worker is never handed to another until a
// complete or fail removes it.
type Server struct {
	store  *Store
	logger *slog.Logger
	mux    *http.ServeMux

	ops chan func()

	// All fields below are touched only from the ops goroutine.
	leased    map[string]struct{}
	total     int64
	completed int64
	startedAt time.Time
}

// NewServer wires the HTTP routes and starts the request-serializing
// goroutine. Call Close to stop it.
func NewServer(store *Store, logger *slog.Logger) *Server {
	s := &Server{
		store:     store,
		logger:    logger,
		mux:       http.NewServeMux(),
		ops:       make(chan func()),
		leased:    make(map[string]struct{}),
		startedAt: time.Now(),
	}

	if total, err := store.Count(); err == nil {
		s.total = total
	}

	s.mux.HandleFunc("GET /{$}", s.handleHome)
	s.mux.HandleFunc("/api/RankAnswer", s.handleRankAnswer)
	s.mux.HandleFunc("/next", s.handleRankAnswer)

	go func() {
		for fn := range s.ops {
			fn()
		}
	}()

	return s
}

// Handler returns the server's HTTP handler.
func (s *Server) Handler() http.Handler { return s.mux }

// Close stops the serializing goroutine.
func (s *Server) Close() { close(s.ops) }

// serialize runs fn on the ops goroutine and waits for it to finish.
func (s *Server) serialize(fn func()) {
	done := make(chan struct{})
	s.ops <- func() {
		defer close(done)
		fn()
	}
	<-done
}

func (s *Server) handleHome(w http.ResponseWriter, _ *http.Request) {
	fmt.Fprint(w, homePage)
}

// handleRankAnswer handles both verbs on the task endpoint. A POST applies
// the completion and then falls through to serving the next batch, so a
// worker completes and leases in one round trip.
func (s *Server) handleRankAnswer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if r.Method == http.MethodPost {
		var req domain.CompleteRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid JSON body", http.StatusBadRequest)
			return
		}
		if err := domain.ValidateStruct(req); err != nil {
			http.Error(w, "answerId is required", http.StatusBadRequest)
			return
		}
		if status, err := s.applyCompletion(req); err != nil {
			http.Error(w, err.Error(), status)
			return
		}
	}

	filter := parseFilter(r.URL.Query())

	var tasks []domain.RankTaskDTO
	var leaseErr error
	s.serialize(func() {
		tasks, leaseErr = s.leaseTasks(filter)
	})
	if leaseErr != nil {
		s.logger.Error("failed to lease tasks", "error", leaseErr)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if tasks == nil {
		tasks = []domain.RankTaskDTO{}
	}
	if err := json.NewEncoder(w).Encode(tasks); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

// applyCompletion validates and applies one POST body on the ops goroutine.
// Returns the HTTP status and message for rejected requests.
func (s *Server) applyCompletion(req domain.CompleteRequest) (int, error) {
	if req.Fail {
		s.serialize(func() {
			s.logger.Warn("deleting failed task", "answer_id", req.AnswerID)
			if err := s.store.Delete(req.AnswerID); err != nil {
				s.logger.Error("failed to delete task", "answer_id", req.AnswerID, "error", err)
			}
			delete(s.leased, req.AnswerID)
		})
		return 0, nil
	}

	if req.Model == "" {
		return http.StatusBadRequest, fmt.Errorf("model used to grade task is required")
	}
	if req.Score == nil || req.Reason == nil {
		return http.StatusBadRequest, fmt.Errorf("reason and score are required to complete rank task")
	}
	if *req.Score < domain.MinScore || *req.Score > domain.MaxScore {
		return http.StatusBadRequest, fmt.Errorf("score must be between %d and %d", domain.MinScore, domain.MaxScore)
	}

	var status int
	var outErr error
	s.serialize(func() {
		status, outErr = s.completeTask(req)
	})
	return status, outErr
}

// completeTask runs on the ops goroutine: look up the task row, record the
// vote in the question's ledger, then retire the row. RecordVote is
// idempotent, so a completion applied twice before the row is gone leaves
// the ledger unchanged; once the row is deleted a re-post gets a 404.
func (s *Server) completeTask(req domain.CompleteRequest) (int, error) {
	task, err := s.store.Get(req.AnswerID)
	if err != nil {
		return http.StatusNotFound, ErrTaskNotFound
	}

	questionID, author, err := domain.ParseAnswerID(req.AnswerID)
	if err != nil {
		return http.StatusBadRequest, err
	}

	led, err := ledger.Load(task.VPath)
	if err != nil {
		s.logger.Error("failed to load ledger", "path", task.VPath, "error", err)
		return http.StatusInternalServerError, fmt.Errorf("failed to load ledger")
	}

	if led.HasVote(author) {
		// Reconciliation tasks regrade answers whose vote survived but whose
		// grading record was lost.
		s.logger.Debug("overwriting existing vote", "answer_id", req.AnswerID, "model", req.Model)
	}
	led.RecordVote(questionID, author, req.Model, *req.Score, *req.Reason)

	if err := ledger.Save(task.VPath, led); err != nil {
		s.logger.Error("failed to save ledger", "path", task.VPath, "error", err)
		return http.StatusInternalServerError, fmt.Errorf("failed to save ledger")
	}

	if err := s.store.Delete(req.AnswerID); err != nil {
		s.logger.Error("failed to delete task", "answer_id", req.AnswerID, "error", err)
	}
	delete(s.leased, req.AnswerID)

	s.completed++
	s.logger.Info("completed task",
		"uptime", time.Since(s.startedAt).Round(time.Second).String(),
		"completed", s.completed,
		"total", s.total,
		"answer_id", req.AnswerID,
		"model", req.Model,
		"score", *req.Score,
		"ledger", task.VPath)

	return 0, nil
}

// leaseTasks runs on the ops goroutine. It pulls candidates in PostID
// order, drops rows whose answer is already graded in the ledger (stale
// reconciliation artifacts, deleted rather than served), and marks served
// ids as in flight until a complete or fail clears them. The in-flight set
// lives in memory only; a restart makes abandoned tasks servable again.
func (s *Server) leaseTasks(f Filter) ([]domain.RankTaskDTO, error) {
	var tasks []domain.RankTaskDTO

	// Unreadable rows are skipped for this request only so the query loop
	// always makes progress.
	skipped := make(map[string]struct{})

	for len(tasks) == 0 {
		exclude := make([]string, 0, len(s.leased)+len(skipped))
		for id := range s.leased {
			exclude = append(exclude, id)
		}
		for id := range skipped {
			exclude = append(exclude, id)
		}

		candidates, err := s.store.Candidates(f, exclude)
		if err != nil {
			return nil, err
		}
		if len(candidates) == 0 {
			break
		}

		for _, task := range candidates {
			dto, ok := s.buildDTO(task)
			if !ok {
				skipped[task.AnswerID] = struct{}{}
				continue
			}
			s.leased[task.AnswerID] = struct{}{}
			tasks = append(tasks, dto)
		}
	}

	return tasks, nil
}

// buildDTO loads the ledger, question, and answer files behind one task
// row. Returns ok=false when the row should not be served, deleting it if
// its answer already has a recorded grade.
func (s *Server) buildDTO(task RankTask) (domain.RankTaskDTO, bool) {
	led, err := ledger.Load(task.VPath)
	if err != nil {
		s.logger.Error("failed to load ledger", "path", task.VPath, "error", err)
		return domain.RankTaskDTO{}, false
	}

	if led.IsGraded(task.AnswerID) {
		s.logger.Info("deleting already ranked task", "answer_id", task.AnswerID, "ledger", task.VPath)
		if err := s.store.Delete(task.AnswerID); err != nil {
			s.logger.Error("failed to delete task", "answer_id", task.AnswerID, "error", err)
		}
		return domain.RankTaskDTO{}, false
	}

	questionData, err := os.ReadFile(task.QuestionPath)
	if err != nil {
		s.logger.Error("failed to read question", "path", task.QuestionPath, "error", err)
		return domain.RankTaskDTO{}, false
	}
	var question domain.Question
	if err := json.Unmarshal(questionData, &question); err != nil {
		s.logger.Error("failed to parse question", "path", task.QuestionPath, "error", err)
		return domain.RankTaskDTO{}, false
	}

	answerData, err := os.ReadFile(task.AnswerPath)
	if err != nil {
		s.logger.Error("failed to read answer", "path", task.AnswerPath, "error", err)
		return domain.RankTaskDTO{}, false
	}

	author := domain.AuthorOf(task.AnswerID)
	answer := domain.Answer{
		ID:     task.AnswerID,
		Author: author,
		Origin: domain.OriginOf(author),
		Body:   domain.ExtractAnswerBody(answerData),
	}
	s.logger.Debug("serving task", "answer_id", answer.ID, "origin", answer.Origin)

	return domain.RankTaskDTO{
		AnswerID:   task.AnswerID,
		PostID:     task.PostID,
		Title:      question.Title,
		Tags:       question.Tags,
		Body:       question.Body,
		AnswerBody: answer.Body,
	}, true
}

// parseFilter reads the after/before/mod/take query params, ignoring
// values that fail to parse.
func parseFilter(q map[string][]string) Filter {
	get := func(key string) int {
		vals := q[key]
		if len(vals) == 0 {
			return 0
		}
		n, err := strconv.Atoi(vals[0])
		if err != nil {
			return 0
		}
		return n
	}
	return Filter{
		After:  get("after"),
		Before: get("before"),
		Mod:    get("mod"),
		Take:   get("take"),
	}
}
