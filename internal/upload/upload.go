// Package upload transfers a fetched file to the upload target issued by the
// coordination server and confirms completion.
package upload

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/gabriel-vasile/mimetype"

	"github.com/ungeskriptet/samsung-grab/internal/domain"
	"github.com/ungeskriptet/samsung-grab/internal/ports"
	"github.com/ungeskriptet/samsung-grab/internal/remote"
)

// Coordinator is the part of the coordination client an upload needs.
type Coordinator interface {
	BeginUpload(ctx context.Context, taskID string, size int64) (remote.Response[string], error)
	CompleteUpload(ctx context.Context, taskID string) (remote.Response[string], error)
}

// Purger removes a task once the server confirmed its upload.
type Purger interface {
	RemoveByID(id string) (bool, error)
}

// TransferError reports a PUT to the upload target that did not return 200.
type TransferError struct {
	TaskID     string
	StatusCode int
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("upload of task %s failed: HTTP %d", e.TaskID, e.StatusCode)
}

// CompletionError reports a completion step that did not return status "ok".
// Status is set when the server replied with another status; Err holds the
// server or decoding error otherwise.
type CompletionError struct {
	TaskID string
	Status string
	Err    error
}

func (e *CompletionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("completing task %s failed: %v", e.TaskID, e.Err)
	}
	return fmt.Sprintf("completing task %s failed: status %q", e.TaskID, e.Status)
}

func (e *CompletionError) Unwrap() error { return e.Err }

// Sniff reports the content type of the file at path from its leading bytes.
// It opens the file separately, so an upload still reads it in one pass from
// the start.
func Sniff(path string) (*mimetype.MIME, error) {
	return mimetype.DetectFile(path)
}

// Result describes a confirmed upload.
type Result struct {
	TaskID string
	Bytes  int64
	// Purged is false when the task had already been removed locally.
	Purged bool
}

// Executor performs uploads. Only one upload runs at a time per Executor.
type Executor struct {
	remote   Coordinator
	store    Purger
	client   ports.HTTPClient
	progress func(name string) ProgressTracker
	log      *slog.Logger
}

type Option func(*Executor)

// WithProgress installs a factory creating one tracker per upload.
func WithProgress(factory func(name string) ProgressTracker) Option {
	return func(e *Executor) { e.progress = factory }
}

func WithLogger(log *slog.Logger) Option {
	return func(e *Executor) { e.log = log }
}

func New(coord Coordinator, store Purger, client ports.HTTPClient, opts ...Option) *Executor {
	if client == nil {
		client = http.DefaultClient
	}
	e := &Executor{remote: coord, store: store, client: client, log: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Upload sends the file at path for task. The task record is removed from the
// store only after the server reports status "ok"; on any failure it stays so
// the whole upload can be repeated later.
func (e *Executor) Upload(ctx context.Context, path string, task domain.Task) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return Result{}, err
	}
	if info.IsDir() {
		return Result{}, fmt.Errorf("%s is a directory", path)
	}
	size := info.Size()
	log := e.log.With("task_id", task.TaskID, "file", info.Name())

	begin, err := e.remote.BeginUpload(ctx, task.TaskID, size)
	if err != nil {
		return Result{}, err
	}
	if err := begin.Err("begin upload"); err != nil {
		return Result{}, err
	}

	var tracker ProgressTracker = nopTracker{}
	if e.progress != nil {
		tracker = e.progress(info.Name())
	}

	log.Info("upload started", "bytes", size)
	if err := e.put(ctx, begin.Value, f, size, tracker, task.TaskID); err != nil {
		tracker.Error(err)
		return Result{}, err
	}
	tracker.Complete()

	done, err := e.remote.CompleteUpload(ctx, task.TaskID)
	if err != nil {
		return Result{}, &CompletionError{TaskID: task.TaskID, Err: err}
	}
	if err := done.Err("complete upload"); err != nil {
		return Result{}, &CompletionError{TaskID: task.TaskID, Err: err}
	}
	if done.Value != domain.StatusOK {
		return Result{}, &CompletionError{TaskID: task.TaskID, Status: done.Value}
	}

	purged, err := e.store.RemoveByID(task.TaskID)
	if err != nil {
		return Result{}, fmt.Errorf("upload confirmed but removing task %s failed: %w", task.TaskID, err)
	}
	log.Info("upload finished", "bytes", size)
	return Result{TaskID: task.TaskID, Bytes: size, Purged: purged}, nil
}

func (e *Executor) put(ctx context.Context, target string, body io.Reader, size int64, tracker ProgressTracker, taskID string) error {
	pr := &progressReader{reader: body, tracker: tracker, total: size}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, target, pr)
	if err != nil {
		return fmt.Errorf("build upload request: %w", err)
	}
	// a known length avoids chunked encoding, which signed upload URLs reject
	req.ContentLength = size
	if size == 0 {
		req.Body = http.NoBody
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("upload: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode != http.StatusOK {
		return &TransferError{TaskID: taskID, StatusCode: resp.StatusCode}
	}
	return nil
}
