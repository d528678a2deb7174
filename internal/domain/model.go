package domain

import "errors"

// DefaultLookupPrefix is prepended to a task version to build the page where
// the firmware sources for that version can be downloaded.
const DefaultLookupPrefix = "https://opensource.samsung.com/uploadSearch?searchValue="

// StatusOK is the only completion status that confirms an upload.
const StatusOK = "ok"

// ErrTaskNotFound is returned when a pending task cannot be resolved.
var ErrTaskNotFound = errors.New("task not found")

// Task is a claimed unit of work. Records are never modified after claiming.
type Task struct {
	TaskID       string `json:"task_id"`
	Version      string `json:"version"`
	Filename     string `json:"filename"`
	FilesizeText string `json:"filesize_text"`
}

// LookupURL returns the human-facing page for the task's version.
func (t Task) LookupURL(prefix string) string {
	if prefix == "" {
		prefix = DefaultLookupPrefix
	}
	return prefix + t.Version
}
