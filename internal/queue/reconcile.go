package queue

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/coderated/gradepipe/internal/domain"
	"github.com/coderated/gradepipe/internal/ledger"
)

// Reconcile walks every ledger under the meta tree and inserts one pending
// task per answer that has a vote but no grading record, so interrupted or
// pre-history grading runs get finished. Ledgers whose votes and reasons
// disagree are reported and skipped; a grading pass cannot fix those.
// Returns the number of tasks inserted.
func Reconcile(store *Store, ledgers *ledger.Store, questionsDir string, logger *slog.Logger) (int, error) {
	inserted := 0

	err := ledgers.Walk(func(vPath string, questionID int, l *domain.VoteLedger) error {
		if len(l.ModelVotes) != len(l.ModelReasons) {
			logger.Warn("skipping inconsistent ledger",
				"path", vPath,
				"votes", len(l.ModelVotes),
				"reasons", len(l.ModelReasons))
			return nil
		}

		missing := l.MissingGrades()
		if len(missing) == 0 {
			return nil
		}

		paths := domain.IDParts(questionID)
		questionPath := paths.QuestionPath(questionsDir)
		metaPath := paths.MetaPath(ledgers.MetaDir())

		for _, author := range missing {
			answerPath := paths.AnswerPath(questionsDir, author)

			if missingFile := firstMissing(vPath, questionPath, metaPath, answerPath); missingFile != "" {
				logger.Warn("skipping task with missing file",
					"question_id", questionID,
					"author", author,
					"missing", missingFile)
				continue
			}

			task := &RankTask{
				AnswerID:     domain.AnswerID(questionID, author),
				PostID:       questionID,
				VPath:        vPath,
				QuestionPath: questionPath,
				MetaPath:     metaPath,
				AnswerPath:   answerPath,
			}
			if err := store.Insert(task); err != nil {
				return fmt.Errorf("reconcile question %d: %w", questionID, err)
			}
			inserted++
		}
		return nil
	})
	if err != nil {
		return inserted, err
	}

	logger.Info("reconciliation complete", "inserted", inserted)
	return inserted, nil
}

// firstMissing returns the first path that does not exist, or "".
func firstMissing(paths ...string) string {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			return p
		}
	}
	return ""
}
