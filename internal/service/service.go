package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"slices"

	"golang.org/x/time/rate"

	"github.com/ungeskriptet/samsung-grab/internal/domain"
	"github.com/ungeskriptet/samsung-grab/internal/metrics"
	"github.com/ungeskriptet/samsung-grab/internal/notify"
	pdfgen "github.com/ungeskriptet/samsung-grab/internal/pdf"
	"github.com/ungeskriptet/samsung-grab/internal/ports"
	"github.com/ungeskriptet/samsung-grab/internal/remote"
	"github.com/ungeskriptet/samsung-grab/internal/upload"
)

// Coordinator is the part of the coordination client the service drives
// directly. Uploads reach the server through the Uploader.
type Coordinator interface {
	ClaimTask(ctx context.Context, username string) (remote.Response[domain.Task], error)
	Stats(ctx context.Context) (remote.Stats, error)
}

type Uploader interface {
	Upload(ctx context.Context, path string, task domain.Task) (upload.Result, error)
}

// ResolutionError means a pending task could not be picked unambiguously.
type ResolutionError struct {
	// Key is the task ID or file name that was looked up.
	Key     string
	ByID    bool
	Matches int
}

func (e *ResolutionError) Error() string {
	if e.Matches > 1 {
		return fmt.Sprintf("%d tasks match %q, supply the task ID with --id", e.Matches, e.Key)
	}
	if e.ByID {
		return fmt.Sprintf("no pending task with ID %q, run 'samsung-grab list' to see claimed tasks", e.Key)
	}
	return fmt.Sprintf("could not find task for %q, supply the task ID with --id", e.Key)
}

func (e *ResolutionError) Is(target error) bool { return target == domain.ErrTaskNotFound }

type Service struct {
	store        ports.TaskStore
	remote       Coordinator
	uploader     Uploader
	notifier     notify.Notifier
	limiter      *rate.Limiter
	metrics      *metrics.Metrics
	log          *slog.Logger
	lookupPrefix string
}

type Option func(*Service)

// WithNotifier sends a notification for every claimed task.
func WithNotifier(n notify.Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithClaimLimiter paces consecutive claims in --all mode.
func WithClaimLimiter(l *rate.Limiter) Option {
	return func(s *Service) { s.limiter = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithLogger(log *slog.Logger) Option {
	return func(s *Service) { s.log = log }
}

func WithLookupPrefix(prefix string) Option {
	return func(s *Service) { s.lookupPrefix = prefix }
}

func New(store ports.TaskStore, coord Coordinator, uploader Uploader, opts ...Option) *Service {
	s := &Service{
		store:        store,
		remote:       coord,
		uploader:     uploader,
		log:          slog.Default(),
		lookupPrefix: domain.DefaultLookupPrefix,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = metrics.New()
	}
	return s
}

type ClaimRequest struct {
	Username string
	// All keeps claiming until the server stops handing out tasks.
	All bool
	// OnTask is called for every claimed task, known or new.
	OnTask func(domain.Task)
}

type ClaimSummary struct {
	Claimed []domain.Task
	// New counts claimed tasks that were not stored yet.
	New int
}

// Claim asks the server for tasks and records each one locally. It returns
// *remote.ServerError when the server answered with a message, which in --all
// mode is the normal way the loop ends, and *remote.UnrecognizedResponseError
// for any reply it cannot interpret. The summary is valid in both cases.
func (s *Service) Claim(ctx context.Context, req ClaimRequest) (ClaimSummary, error) {
	var sum ClaimSummary
	for {
		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				return sum, err
			}
		}

		resp, err := s.remote.ClaimTask(ctx, req.Username)
		if err != nil {
			return sum, err
		}
		if err := resp.Err("claim task"); err != nil {
			s.metrics.ServerErrors.WithLabelValues("get_task").Inc()
			return sum, err
		}

		task := resp.Value
		added, err := s.store.Insert(task)
		if err != nil {
			return sum, fmt.Errorf("store task %s: %w", task.TaskID, err)
		}
		if added {
			sum.New++
		}
		sum.Claimed = append(sum.Claimed, task)
		s.metrics.TasksClaimed.Inc()
		s.log.Info("task claimed", "task_id", task.TaskID, "version", task.Version, "new", added)

		if req.OnTask != nil {
			req.OnTask(task)
		}
		s.notify(ctx, task)

		if !req.All {
			return sum, nil
		}
	}
}

func (s *Service) notify(ctx context.Context, task domain.Task) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, notify.NewTaskTitle, task.LookupURL(s.lookupPrefix)); err != nil {
		s.log.Warn("notification failed", "task_id", task.TaskID, "error", err)
	}
}

// Resolve finds the pending task an upload of path belongs to. An explicit id
// wins; otherwise the base name of path must match exactly one task.
func (s *Service) Resolve(id, path string) (domain.Task, error) {
	var (
		matches []domain.Task
		key     string
	)
	if id != "" {
		key = id
		matches = s.store.FindByID(id)
	} else {
		key = filepath.Base(path)
		matches = s.store.FindByFilename(key)
	}
	if len(matches) != 1 {
		return domain.Task{}, &ResolutionError{Key: key, ByID: id != "", Matches: len(matches)}
	}
	return matches[0], nil
}

// Upload resolves the task for path and uploads the file. Progress lines go
// to w, naming the detected content type of the file.
func (s *Service) Upload(ctx context.Context, w io.Writer, path, id string) (upload.Result, error) {
	task, err := s.Resolve(id, path)
	if err != nil {
		return upload.Result{}, err
	}

	name := filepath.Base(path)
	if mt, err := upload.Sniff(path); err == nil {
		if mt.Is("text/html") {
			s.log.Warn("file looks like a web page, the download may have failed",
				"task_id", task.TaskID, "file", name, "mime", mt.String())
		}
		name += " (" + mt.String() + ")"
	}
	fmt.Fprintf(w, "Uploading %s\n", name)
	res, err := s.uploader.Upload(ctx, path, task)
	if err != nil {
		s.metrics.Uploads.WithLabelValues(uploadOutcome(err)).Inc()
		return res, err
	}
	s.metrics.Uploads.WithLabelValues("ok").Inc()
	s.metrics.UploadedBytes.Add(float64(res.Bytes))
	fmt.Fprintln(w, "Upload finished")
	return res, nil
}

func uploadOutcome(err error) string {
	var (
		transfer   *upload.TransferError
		completion *upload.CompletionError
		server     *remote.ServerError
	)
	switch {
	case errors.As(err, &transfer):
		return "transfer_failed"
	case errors.As(err, &completion):
		return "completion_failed"
	case errors.As(err, &server):
		return "rejected"
	default:
		return "error"
	}
}

// WriteTask prints the five-line block describing task.
func (s *Service) WriteTask(w io.Writer, task domain.Task) error {
	_, err := fmt.Fprintf(w, "Task ID: %s\nVersion: %s\nFilename: %s\nSize: %s\nLink: %s\n",
		task.TaskID, task.Version, task.Filename, task.FilesizeText, task.LookupURL(s.lookupPrefix))
	return err
}

// List prints every pending task in insertion order.
func (s *Service) List(w io.Writer) error {
	first := true
	for task := range s.store.All() {
		if !first {
			if _, err := fmt.Fprintln(w); err != nil {
				return err
			}
		}
		first = false
		if err := s.WriteTask(w, task); err != nil {
			return err
		}
	}
	if first {
		_, err := fmt.Fprintln(w, "No tasks available")
		return err
	}
	return nil
}

// ExportPDF writes the pending task listing as a PDF document.
func (s *Service) ExportPDF(w io.Writer) error {
	doc, err := pdfgen.BuildTasksReport(slices.Collect(s.store.All()), s.lookupPrefix)
	if err != nil {
		return fmt.Errorf("build report: %w", err)
	}
	_, err = w.Write(doc)
	return err
}

func (s *Service) Stats(ctx context.Context, w io.Writer) error {
	st, err := s.remote.Stats(ctx)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "Pending:   %s (%s)\nClaimed:   %s (%s)\nUploading: %s (%s)\nDone:      %s (%s)\n",
		st.Pending.Count, st.Pending.Percent,
		st.Claimed.Count, st.Claimed.Percent,
		st.Uploading.Count, st.Uploading.Percent,
		st.Done.Count, st.Done.Percent)
	return err
}
