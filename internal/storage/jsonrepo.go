package storage

import (
	"bytes"
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"path"
	"slices"
	"strconv"
	"strings"

	"github.com/go-git/go-billy/v5"

	"github.com/ungeskriptet/samsung-grab/internal/domain"
)

// JSONRepository stores tasks as a single JSON array.
type JSONRepository struct {
	fs   billy.Filesystem
	name string
}

func NewJSONRepository(fs billy.Filesystem, name string) *JSONRepository {
	return &JSONRepository{fs: fs, name: name}
}

func (r *JSONRepository) Load() ([]domain.Task, error) {
	f, err := r.fs.Open(r.name)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, os.ErrNotExist
		}
		return nil, fmt.Errorf("open %s: %w", r.name, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", r.name, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	if data = bytes.TrimSpace(data); data[0] == '{' {
		tasks, err := decodeTables(data)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", r.name, err)
		}
		return tasks, nil
	}

	var tasks []domain.Task
	if err := json.Unmarshal(data, &tasks); err != nil {
		return nil, fmt.Errorf("decode %s: %w", r.name, err)
	}
	return tasks, nil
}

// defaultTable holds the records in files written by earlier releases, which
// kept tasks as {"_default": {"<doc id>": {...}}}.
const defaultTable = "_default"

// decodeTables reads the older document layout. Records are returned in doc
// id order, which is the order they were inserted in. The next Save writes the
// plain array form.
func decodeTables(data []byte) ([]domain.Task, error) {
	var tables map[string]map[string]domain.Task
	if err := json.Unmarshal(data, &tables); err != nil {
		return nil, err
	}
	docs := tables[defaultTable]

	ids := slices.Collect(maps.Keys(docs))
	slices.SortFunc(ids, func(a, b string) int {
		na, errA := strconv.Atoi(a)
		nb, errB := strconv.Atoi(b)
		switch {
		case errA == nil && errB == nil:
			return cmp.Compare(na, nb)
		case errA == nil:
			return -1
		case errB == nil:
			return 1
		}
		return strings.Compare(a, b)
	})

	tasks := make([]domain.Task, 0, len(ids))
	for _, id := range ids {
		tasks = append(tasks, docs[id])
	}
	return tasks, nil
}

// Save replaces the document atomically by writing a temporary file next to
// it and renaming it into place.
func (r *JSONRepository) Save(tasks []domain.Task) error {
	if tasks == nil {
		tasks = []domain.Task{}
	}

	tmp, err := r.fs.TempFile(path.Dir(r.name), path.Base(r.name)+".tmp-")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(tasks); err != nil {
		tmp.Close()
		_ = r.fs.Remove(tmp.Name())
		return fmt.Errorf("encode tasks: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = r.fs.Remove(tmp.Name())
		return err
	}
	if err := r.fs.Rename(tmp.Name(), r.name); err != nil {
		_ = r.fs.Remove(tmp.Name())
		return fmt.Errorf("replace %s: %w", r.name, err)
	}
	return nil
}
