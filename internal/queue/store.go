package queue

import (
	"errors"
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ErrTaskNotFound is returned when a completion references a task id with
// no pending row.
var ErrTaskNotFound = errors.New("task not found")

// Filter narrows which pending tasks a GET may lease. Zero values mean
// unset; Take defaults to one task per response.
type Filter struct {
	After  int // PostID >= After
	Before int // PostID < Before
	Mod    int // PostID % Mod == 0, shard selector for parallel workers
	Take   int
}

// Store is the durable rank task table.
type Store struct {
	db *gorm.DB
}

// Open opens (or creates) the sqlite task database at path and migrates
// the RankTask table.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open task db %s: %w", path, err)
	}
	if err := db.AutoMigrate(&RankTask{}); err != nil {
		return nil, fmt.Errorf("migrate task db: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Candidates returns up to f.Take pending tasks matching the filter in
// PostID order, skipping any task ids in exclude.
func (s *Store) Candidates(f Filter, exclude []string) ([]RankTask, error) {
	take := f.Take
	if take < 1 {
		take = 1
	}

	q := s.db.Model(&RankTask{})
	if f.After > 0 {
		q = q.Where("PostId >= ?", f.After)
	}
	if f.Before > 0 {
		q = q.Where("PostId < ?", f.Before)
	}
	if f.Mod > 0 {
		q = q.Where("PostId % ? = 0", f.Mod)
	}
	if len(exclude) > 0 {
		q = q.Where("Id NOT IN ?", exclude)
	}

	var tasks []RankTask
	if err := q.Order("PostId").Limit(take).Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	return tasks, nil
}

// Get fetches one task by answer id.
func (s *Store) Get(answerID string) (*RankTask, error) {
	var task RankTask
	err := s.db.First(&task, "Id = ?", answerID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, answerID)
	}
	if err != nil {
		return nil, fmt.Errorf("get task %s: %w", answerID, err)
	}
	return &task, nil
}

// Insert adds a pending task row.
func (s *Store) Insert(task *RankTask) error {
	if err := s.db.Create(task).Error; err != nil {
		return fmt.Errorf("insert task %s: %w", task.AnswerID, err)
	}
	return nil
}

// Delete removes a task row. Deleting an already-removed row is not an
// error; completion is idempotent.
func (s *Store) Delete(answerID string) error {
	if err := s.db.Delete(&RankTask{}, "Id = ?", answerID).Error; err != nil {
		return fmt.Errorf("delete task %s: %w", answerID, err)
	}
	return nil
}

// Count returns the number of pending tasks.
func (s *Store) Count() (int64, error) {
	var n int64
	if err := s.db.Model(&RankTask{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count tasks: %w", err)
	}
	return n, nil
}
