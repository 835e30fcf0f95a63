package service

import (
	"assessment_backend/internal/config"
	"assessment_backend/internal/util"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUploadSubmissionFileLocal(t *testing.T) {
	dir := t.TempDir()
	svc := NewStorageService(&config.Config{Storage: config.StorageConfig{Type: util.StorageLocal, LocalPath: dir}})

	body := "%PDF-1.4 essay body"
	file, err := svc.UploadSubmissionFile(context.Background(), UploadRequest{
		AttemptID: "attempt-1",
		FileName:  "essay.PDF",
		Size:      int64(len(body)),
		Reader:    strings.NewReader(body),
		Allowed:   []string{"pdf"},
	})
	require.NoError(t, err)
	assert.Equal(t, "/uploads/"+file.Key, file.URL)
	assert.True(t, strings.HasPrefix(file.Key, "submissions/attempt-1/"))
	assert.True(t, strings.HasSuffix(file.Key, ".pdf"))

	stored, err := os.ReadFile(filepath.Join(dir, file.Key))
	require.NoError(t, err)
	assert.Equal(t, body, string(stored))

	require.NoError(t, svc.Delete(context.Background(), file.Key))
	_, err = os.Stat(filepath.Join(dir, file.Key))
	assert.True(t, os.IsNotExist(err))
}

func TestUploadSubmissionFileRejects(t *testing.T) {
	svc := NewStorageService(&config.Config{Storage: config.StorageConfig{Type: util.StorageLocal, LocalPath: t.TempDir()}})

	_, err := svc.UploadSubmissionFile(context.Background(), UploadRequest{
		AttemptID: "attempt-1",
		FileName:  "run.exe",
		Size:      10,
		Reader:    strings.NewReader("MZ........"),
		Allowed:   []string{".pdf", ".docx"},
	})
	assert.ErrorIs(t, err, util.ErrInvalidFile)

	_, err = svc.UploadSubmissionFile(context.Background(), UploadRequest{
		AttemptID: "attempt-1",
		FileName:  "big.pdf",
		Size:      3 << 20,
		Reader:    strings.NewReader(""),
		MaxSizeMB: 2,
	})
	assert.ErrorIs(t, err, util.ErrInvalidFile)
}
