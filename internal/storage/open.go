package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-billy/v5/osfs"
)

// Open loads the store kept at path. Paths ending in .db, .sqlite or .sqlite3
// use SQLite; anything else is a JSON document.
func Open(path string) (*Store, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}
	dir := filepath.Dir(abs)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}

	var repo TaskRepository
	switch strings.ToLower(filepath.Ext(abs)) {
	case ".db", ".sqlite", ".sqlite3":
		r, err := OpenSQLiteRepository(abs)
		if err != nil {
			return nil, fmt.Errorf("open sqlite %s: %w", abs, err)
		}
		repo = r
	default:
		repo = NewJSONRepository(osfs.New(dir), filepath.Base(abs))
	}

	st := NewStore(repo)
	if err := st.Load(); err != nil {
		st.Close()
		return nil, fmt.Errorf("load %s: %w", abs, err)
	}
	return st, nil
}
