package pdf

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ungeskriptet/samsung-grab/internal/domain"
)

func TestBuildTasksReport(t *testing.T) {
	tasks := []domain.Task{
		{TaskID: "T1", Version: "v1", Filename: "f.bin", FilesizeText: "10 MB"},
		{TaskID: "T2", Version: "v2", Filename: "g.bin", FilesizeText: "1 GB"},
	}

	out, err := BuildTasksReport(tasks, "")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
	assert.Contains(t, string(out), "%%EOF")
}

func TestBuildTasksReport_Empty(t *testing.T) {
	out, err := BuildTasksReport(nil, "")
	require.NoError(t, err)
	assert.NotEmpty(t, out)
}
