package ports

import (
	"iter"

	"github.com/ungeskriptet/samsung-grab/internal/domain"
)

// TaskStore describes the local record of claimed but not yet completed tasks.
type TaskStore interface {
	Insert(task domain.Task) (bool, error)
	FindByID(id string) []domain.Task
	FindByFilename(name string) []domain.Task
	RemoveByID(id string) (bool, error)
	All() iter.Seq[domain.Task]
	Len() int
}
