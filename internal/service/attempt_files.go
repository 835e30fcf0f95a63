package service

import (
	"assessment_backend/internal/grading"
	"assessment_backend/internal/model"
	"assessment_backend/internal/util"
	"assessment_backend/pkg/logger"
	"context"
	"errors"
	"io"

	"go.uber.org/zap"
)

var errNoStorage = errors.New("file storage is not configured")

// AttachSubmissionFile stores an assignment file and records it on the
// attempt's draft submission. The content's allowed types and size limit apply.
func (s *AttemptService) AttachSubmissionFile(ctx context.Context, attemptID, userID, fileName string, size int64, r io.Reader, contentType string) (*model.Submission, error) {
	if s.Storage == nil {
		return nil, errNoStorage
	}
	a, _, err := s.loadOwned(ctx, attemptID, userID)
	if err != nil {
		return nil, err
	}
	if a.Kind != grading.KindAssignment {
		return nil, util.ErrNotAssignment
	}
	if a.Status != grading.StatusInProgress {
		return nil, util.ErrInvalidTransition
	}
	content, err := s.loadContent(ctx, a.ContentID)
	if err != nil {
		return nil, err
	}

	stored, err := s.Storage.UploadSubmissionFile(ctx, UploadRequest{
		AttemptID:   a.ID,
		FileName:    fileName,
		Size:        size,
		Reader:      r,
		Allowed:     content.AllowedFileTypes,
		MaxSizeMB:   content.MaxFileSizeMB,
		ContentType: contentType,
	})
	if err != nil {
		if errors.Is(err, util.ErrInvalidFile) {
			return nil, err
		}
		return nil, util.Persist("store file", err)
	}
	sub, err := s.SaveSubmissionDraft(ctx, a.ID, userID, "", stored.URL, fileName)
	if err != nil {
		if derr := s.Storage.Delete(ctx, stored.Key); derr != nil {
			logger.Log.Warn("failed to remove orphaned submission file", zap.String("key", stored.Key), zap.Error(derr))
		}
		return nil, err
	}
	return sub, nil
}
