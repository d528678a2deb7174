package storage

import (
	"errors"
	"io"
	"iter"
	"os"
	"slices"
	"sync"

	"github.com/ungeskriptet/samsung-grab/internal/domain"
)

// TaskRepository persists the full ordered list of tasks.
type TaskRepository interface {
	Load() ([]domain.Task, error)
	Save(tasks []domain.Task) error
}

// Store keeps claimed tasks in insertion order and writes every change
// through to its repository before returning.
type Store struct {
	mu    sync.RWMutex
	repo  TaskRepository
	tasks []domain.Task
}

func NewStore(repo TaskRepository) *Store {
	return &Store{repo: repo}
}

func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.repo.Load()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.tasks = nil
			return nil
		}
		return err
	}

	// Older files may contain the same task more than once.
	s.tasks = s.tasks[:0]
	seen := make(map[string]struct{}, len(list))
	for _, t := range list {
		if _, ok := seen[t.TaskID]; ok {
			continue
		}
		seen[t.TaskID] = struct{}{}
		s.tasks = append(s.tasks, t)
	}
	return nil
}

func (s *Store) indexLocked(id string) int {
	return slices.IndexFunc(s.tasks, func(t domain.Task) bool { return t.TaskID == id })
}

// Insert adds task unless a task with the same ID is already stored.
// It reports whether the task was added.
func (s *Store) Insert(task domain.Task) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indexLocked(task.TaskID) >= 0 {
		return false, nil
	}
	next := append(slices.Clip(s.tasks), task)
	if err := s.repo.Save(next); err != nil {
		return false, err
	}
	s.tasks = next
	return true, nil
}

// RemoveByID deletes the task with the given ID and reports whether it existed.
func (s *Store) RemoveByID(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(id)
	if i < 0 {
		return false, nil
	}
	next := slices.Delete(slices.Clone(s.tasks), i, i+1)
	if err := s.repo.Save(next); err != nil {
		return false, err
	}
	s.tasks = next
	return true, nil
}

func (s *Store) FindByID(id string) []domain.Task {
	return s.find(func(t domain.Task) bool { return t.TaskID == id })
}

func (s *Store) FindByFilename(name string) []domain.Task {
	return s.find(func(t domain.Task) bool { return t.Filename == name })
}

func (s *Store) find(match func(domain.Task) bool) []domain.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var res []domain.Task
	for _, t := range s.tasks {
		if match(t) {
			res = append(res, t)
		}
	}
	return res
}

// All yields the stored tasks in insertion order. Each iteration starts from
// a snapshot taken when the iteration begins.
func (s *Store) All() iter.Seq[domain.Task] {
	return func(yield func(domain.Task) bool) {
		s.mu.RLock()
		snapshot := slices.Clone(s.tasks)
		s.mu.RUnlock()

		for _, t := range snapshot {
			if !yield(t) {
				return
			}
		}
	}
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tasks)
}

// Close releases the repository if it holds resources.
func (s *Store) Close() error {
	if c, ok := s.repo.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
