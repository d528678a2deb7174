package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/ungeskriptet/samsung-grab/internal/domain"
	"github.com/ungeskriptet/samsung-grab/internal/ports"
)

// DefaultBaseURL is the public coordination server.
const DefaultBaseURL = "https://data.nicolas17.xyz/samsung-grab"

// maxResponseSize bounds JSON and HTML replies read into memory.
const maxResponseSize = 4 << 20

// Client talks to the coordination server. It holds no task state.
type Client struct {
	baseURL    string
	httpClient ports.HTTPClient
	log        *slog.Logger
}

func New(baseURL string, client ports.HTTPClient, log *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: client,
		log:        log,
	}
}

// ClaimTask asks the server for a new task on behalf of username.
func (c *Client) ClaimTask(ctx context.Context, username string) (Response[domain.Task], error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("username", username); err != nil {
		return Response[domain.Task]{}, err
	}
	if err := mw.Close(); err != nil {
		return Response[domain.Task]{}, err
	}

	status, body, err := c.post(ctx, "get_task", mw.FormDataContentType(), &buf)
	if err != nil {
		return Response[domain.Task]{}, err
	}
	return decode(status, body, "task_id", buildTask), nil
}

func buildTask(fields map[string]json.RawMessage) (domain.Task, error) {
	var t domain.Task
	var err error
	if t.TaskID, err = stringField(fields, "task_id"); err != nil {
		return t, err
	}
	if t.Version, err = stringField(fields, "version"); err != nil {
		return t, err
	}
	if t.Filename, err = stringField(fields, "filename"); err != nil {
		return t, err
	}
	if t.FilesizeText, err = stringField(fields, "filesize_text"); err != nil {
		return t, err
	}
	if t.TaskID == "" {
		return t, fmt.Errorf("empty task_id")
	}
	return t, nil
}

// BeginUpload announces an upload of size bytes and returns the URL to PUT to.
func (c *Client) BeginUpload(ctx context.Context, taskID string, size int64) (Response[string], error) {
	form := url.Values{
		"task_id":   {taskID},
		"file_size": {strconv.FormatInt(size, 10)},
	}
	status, body, err := c.postForm(ctx, "begin_upload", form)
	if err != nil {
		return Response[string]{}, err
	}
	return decode(status, body, "uploadURL", func(f map[string]json.RawMessage) (string, error) {
		u, err := stringField(f, "uploadURL")
		if err == nil && u == "" {
			err = fmt.Errorf("empty uploadURL")
		}
		return u, err
	}), nil
}

// CompleteUpload tells the server the transfer finished and returns its status.
func (c *Client) CompleteUpload(ctx context.Context, taskID string) (Response[string], error) {
	status, body, err := c.postForm(ctx, "complete_upload", url.Values{"task_id": {taskID}})
	if err != nil {
		return Response[string]{}, err
	}
	return decode(status, body, "status", func(f map[string]json.RawMessage) (string, error) {
		return textOf(f["status"]), nil
	}), nil
}

func (c *Client) postForm(ctx context.Context, endpoint string, form url.Values) (int, []byte, error) {
	return c.post(ctx, endpoint, "application/x-www-form-urlencoded", strings.NewReader(form.Encode()))
}

func (c *Client) post(ctx context.Context, endpoint, contentType string, body io.Reader) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+endpoint, body)
	if err != nil {
		return 0, nil, fmt.Errorf("%s: %w", endpoint, err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	return c.do(req, endpoint)
}

func (c *Client) do(req *http.Request, endpoint string) (int, []byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("%s: read response: %w", endpoint, err)
	}
	c.log.Debug("coordination request",
		"endpoint", endpoint,
		"status", resp.StatusCode,
		"bytes", len(body),
	)
	return resp.StatusCode, body, nil
}
