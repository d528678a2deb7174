package storage

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/ungeskriptet/samsung-grab/internal/domain"
)

const createTasksTable = `
CREATE TABLE IF NOT EXISTS tasks (
	position      INTEGER NOT NULL,
	task_id       TEXT PRIMARY KEY,
	version       TEXT NOT NULL,
	filename      TEXT NOT NULL,
	filesize_text TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tasks_filename ON tasks(filename);
`

// SQLiteRepository keeps tasks in a SQLite database file.
type SQLiteRepository struct {
	db *sql.DB
}

// OpenSQLiteRepository opens (or creates) the database at dsn.
func OpenSQLiteRepository(dsn string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// a single connection keeps in-memory databases alive between calls
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(`PRAGMA busy_timeout = 5000;`); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(createTasksTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Load() ([]domain.Task, error) {
	rows, err := r.db.Query(`SELECT task_id, version, filename, filesize_text FROM tasks ORDER BY position`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []domain.Task
	for rows.Next() {
		var t domain.Task
		if err := rows.Scan(&t.TaskID, &t.Version, &t.Filename, &t.FilesizeText); err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (r *SQLiteRepository) Save(tasks []domain.Task) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM tasks`); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT INTO tasks (position, task_id, version, filename, filesize_text) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, t := range tasks {
		if _, err := stmt.Exec(i, t.TaskID, t.Version, t.Filename, t.FilesizeText); err != nil {
			return fmt.Errorf("insert task %s: %w", t.TaskID, err)
		}
	}
	return tx.Commit()
}

func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}
