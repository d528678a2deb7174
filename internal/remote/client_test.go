package remote_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ungeskriptet/samsung-grab/internal/domain"
	"github.com/ungeskriptet/samsung-grab/internal/remote"
	"github.com/ungeskriptet/samsung-grab/internal/remote/remotetest"
)

func TestClaimTaskSuccess(t *testing.T) {
	want := domain.Task{TaskID: "T1", Version: "v1", Filename: "f.bin", FilesizeText: "10 MB"}
	srv := remotetest.NewServer(want)
	defer srv.Close()

	c := remote.New(srv.URL, srv.Client(), nil)
	res, err := c.ClaimTask(context.Background(), "alice")
	require.NoError(t, err)
	require.Equal(t, remote.KindSuccess, res.Kind)
	assert.Equal(t, want, res.Value)
	assert.NoError(t, res.Err("claim"))
	assert.Equal(t, []string{"alice"}, srv.Claims)
}

func TestClaimTaskServerError(t *testing.T) {
	srv := remotetest.NewServer()
	defer srv.Close()

	c := remote.New(srv.URL, srv.Client(), nil)
	res, err := c.ClaimTask(context.Background(), "alice")
	require.NoError(t, err)
	require.Equal(t, remote.KindServerError, res.Kind)
	assert.Equal(t, remotetest.NoTasksMessage, res.Message)

	var serr *remote.ServerError
	require.ErrorAs(t, res.Err("claim"), &serr)
	assert.Equal(t, remotetest.NoTasksMessage, serr.Message)
}

func TestClaimTaskUnrecognized(t *testing.T) {
	srv := remotetest.NewServer()
	defer srv.Close()
	srv.ClaimResponse = map[string]any{"hello": "world"}

	c := remote.New(srv.URL, srv.Client(), nil)
	res, err := c.ClaimTask(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, remote.KindUnrecognized, res.Kind)
	assert.Contains(t, res.Raw, `"hello":"world"`)

	var uerr *remote.UnrecognizedResponseError
	require.ErrorAs(t, res.Err("claim"), &uerr)
	assert.Equal(t, http.StatusOK, uerr.StatusCode)
}

type stubDoer struct {
	status int
	body   string
	err    error
	reqs   []*http.Request
}

func (s *stubDoer) Do(req *http.Request) (*http.Response, error) {
	s.reqs = append(s.reqs, req)
	if s.err != nil {
		return nil, s.err
	}
	return &http.Response{
		StatusCode: s.status,
		Body:       io.NopCloser(strings.NewReader(s.body)),
		Request:    req,
	}, nil
}

func TestResponseShapes(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		kind    remote.Kind
		message string
	}{
		{"status ok", http.StatusOK, `{"status":"ok"}`, remote.KindSuccess, ""},
		{"error payload", http.StatusOK, `{"error":"task expired"}`, remote.KindServerError, "task expired"},
		{"error object", http.StatusOK, `{"error":{"code":3}}`, remote.KindServerError, `{"code":3}`},
		{"html body", http.StatusBadGateway, `<html>bad gateway</html>`, remote.KindUnrecognized, ""},
		{"json null", http.StatusOK, `null`, remote.KindUnrecognized, ""},
		{"empty object", http.StatusOK, `{}`, remote.KindUnrecognized, ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := remote.New("http://coord.test", &stubDoer{status: tc.status, body: tc.body}, nil)
			res, err := c.CompleteUpload(context.Background(), "T1")
			require.NoError(t, err)
			assert.Equal(t, tc.kind, res.Kind)
			assert.Equal(t, tc.message, res.Message)
			if tc.kind == remote.KindSuccess {
				assert.Equal(t, domain.StatusOK, res.Value)
			}
		})
	}
}

func TestClaimTaskNullIDKeepsServerMessage(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		kind    remote.Kind
		message string
	}{
		{"null id with error", `{"task_id":null,"error":"rate limited"}`, remote.KindServerError, "rate limited"},
		{"empty id with error", `{"task_id":"","error":"banned"}`, remote.KindServerError, "banned"},
		{"null id alone", `{"task_id":null}`, remote.KindUnrecognized, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := remote.New("http://coord.test", &stubDoer{status: http.StatusOK, body: tc.body}, nil)
			res, err := c.ClaimTask(context.Background(), "alice")
			require.NoError(t, err)
			assert.Equal(t, tc.kind, res.Kind)
			assert.Equal(t, tc.message, res.Message)
		})
	}
}

func TestBeginUploadSendsForm(t *testing.T) {
	doer := &stubDoer{status: http.StatusOK, body: `{"uploadURL":"https://bucket.test/put?sig=1"}`}
	c := remote.New("http://coord.test/", doer, nil)

	res, err := c.BeginUpload(context.Background(), "T9", 1234)
	require.NoError(t, err)
	require.Equal(t, remote.KindSuccess, res.Kind)
	assert.Equal(t, "https://bucket.test/put?sig=1", res.Value)

	require.Len(t, doer.reqs, 1)
	req := doer.reqs[0]
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "http://coord.test/begin_upload", req.URL.String())
	assert.Equal(t, "application/x-www-form-urlencoded", req.Header.Get("Content-Type"))
	require.NoError(t, req.ParseForm())
	assert.Equal(t, "T9", req.PostForm.Get("task_id"))
	assert.Equal(t, "1234", req.PostForm.Get("file_size"))
}

func TestBeginUploadEmptyURLIsUnrecognized(t *testing.T) {
	c := remote.New("http://coord.test", &stubDoer{status: http.StatusOK, body: `{"uploadURL":""}`}, nil)
	res, err := c.BeginUpload(context.Background(), "T9", 1)
	require.NoError(t, err)
	assert.Equal(t, remote.KindUnrecognized, res.Kind)
}

func TestTransportErrorIsReturned(t *testing.T) {
	boom := errors.New("connection refused")
	c := remote.New("http://coord.test", &stubDoer{err: boom}, nil)

	_, err := c.ClaimTask(context.Background(), "alice")
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "get_task")
}

func TestNumericTaskID(t *testing.T) {
	body := `{"task_id":42,"version":"v","filename":"f","filesize_text":"1 B"}`
	c := remote.New("http://coord.test", &stubDoer{status: http.StatusOK, body: body}, nil)

	res, err := c.ClaimTask(context.Background(), "alice")
	require.NoError(t, err)
	require.Equal(t, remote.KindSuccess, res.Kind)
	assert.Equal(t, "42", res.Value.TaskID)
}
