package service

import (
	"assessment_backend/internal/config"
	"assessment_backend/internal/grading"
	"assessment_backend/internal/model"
	"assessment_backend/internal/repository"
	"assessment_backend/internal/util"
	"assessment_backend/pkg/logger"
	"assessment_backend/pkg/monitoring"
	"assessment_backend/pkg/tracing"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	errLostRace         = errors.New("attempt was finalized concurrently")
	errSignatureChanged = errors.New("content signature digest mismatch")
)

// Clock returns the current time. Tests replace it to control deadlines.
type Clock func() time.Time

// AttemptPolicy holds the hot-reloadable attempt rules.
type AttemptPolicy struct {
	TimeTolerance time.Duration
	LatePolicy    string
	StartRetries  int
}

func PolicyFromConfig(cfg *config.AssessmentConfig) AttemptPolicy {
	p := AttemptPolicy{
		TimeTolerance: time.Duration(cfg.TimeToleranceSeconds) * time.Second,
		LatePolicy:    cfg.LateSubmissionPolicy,
		StartRetries:  cfg.StartRetries,
	}
	if p.LatePolicy == "" {
		p.LatePolicy = config.LatePolicyCap
	}
	if p.StartRetries <= 0 {
		p.StartRetries = 3
	}
	return p
}

type AttemptService struct {
	ContentRepo    *repository.ContentRepository
	AttemptRepo    *repository.AttemptRepository
	SubmissionRepo *repository.SubmissionRepository
	Registry       *grading.Registry
	Deadlines      repository.DeadlineQueue
	Notifier       CompletionNotifier
	Storage        *StorageService
	DB             *gorm.DB
	Clock          Clock

	mu     sync.RWMutex
	policy AttemptPolicy
}

func NewAttemptService(
	db *gorm.DB,
	contentRepo *repository.ContentRepository,
	attemptRepo *repository.AttemptRepository,
	submissionRepo *repository.SubmissionRepository,
	registry *grading.Registry,
	deadlines repository.DeadlineQueue,
	notifier CompletionNotifier,
	policy AttemptPolicy,
) *AttemptService {
	if deadlines == nil {
		deadlines = repository.NewDBDeadlineQueue(db)
	}
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &AttemptService{
		ContentRepo:    contentRepo,
		AttemptRepo:    attemptRepo,
		SubmissionRepo: submissionRepo,
		Registry:       registry,
		Deadlines:      deadlines,
		Notifier:       notifier,
		DB:             db,
		Clock:          time.Now,
		policy:         policy,
	}
}

func (s *AttemptService) Policy() AttemptPolicy {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.policy
}

func (s *AttemptService) SetPolicy(p AttemptPolicy) {
	s.mu.Lock()
	s.policy = p
	s.mu.Unlock()
	logger.Log.Info("attempt policy updated",
		zap.Duration("time_tolerance", p.TimeTolerance),
		zap.String("late_policy", p.LatePolicy),
	)
}

// StartAttempt 开始新的尝试：计数、校验、插入在同一事务中完成
func (s *AttemptService) StartAttempt(ctx context.Context, contentID, userID string) (*model.Attempt, error) {
	ctx, span := tracing.Tracer.Start(ctx, "AttemptService.StartAttempt")
	defer span.End()
	span.SetAttributes(attribute.String("content.id", contentID))

	content, err := s.loadContent(ctx, contentID)
	if err != nil {
		return nil, err
	}
	sig, digest, err := content.Signature().Encode()
	if err != nil {
		return nil, fmt.Errorf("encode signature: %w", err)
	}

	policy := s.Policy()
	var attempt *model.Attempt
	for try := 0; ; try++ {
		attempt, err = s.startOnce(ctx, content, userID, string(sig), digest)
		if errors.Is(err, gorm.ErrDuplicatedKey) && try < policy.StartRetries {
			logger.Log.Debug("attempt slot taken, retrying",
				zap.String("content_id", contentID),
				zap.String("user_id", userID),
				zap.Int("try", try+1),
			)
			continue
		}
		break
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		err = util.ErrAttemptsExhausted
	}
	if err != nil {
		if errors.Is(err, util.ErrAttemptsExhausted) {
			monitoring.AttemptsRejected.WithLabelValues("attempts_exhausted").Inc()
			return nil, err
		}
		return nil, util.Persist("start attempt", err)
	}

	if attempt.DeadlineAt != nil {
		if err := s.Deadlines.Schedule(ctx, attempt.ID, *attempt.DeadlineAt); err != nil {
			logger.Log.Warn("failed to schedule attempt deadline", zap.String("attempt_id", attempt.ID), zap.Error(err))
		}
	}
	monitoring.AttemptsStarted.WithLabelValues(string(content.Kind)).Inc()
	logger.Log.Info("attempt started",
		zap.String("attempt_id", attempt.ID),
		zap.String("content_id", contentID),
		zap.String("user_id", userID),
		zap.Int("attempt_number", attempt.AttemptNumber),
	)
	return attempt, nil
}

func (s *AttemptService) startOnce(ctx context.Context, content *model.AssessableContent, userID, sig, digest string) (*model.Attempt, error) {
	var attempt *model.Attempt
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.AttemptRepo.With(tx)
		used, err := repo.CountByUserAndContent(userID, content.ID)
		if err != nil {
			return err
		}
		passed, err := repo.HasPassed(userID, content.ID)
		if err != nil {
			return err
		}
		if !grading.CanRetry(content.Config(), int(used), passed) {
			return util.ErrAttemptsExhausted
		}

		now := s.Clock()
		attempt = &model.Attempt{
			ContentID:        content.ID,
			UserID:           userID,
			AttemptNumber:    int(used) + 1,
			Kind:             content.Kind,
			Status:           grading.StatusInProgress,
			StartedAt:        now,
			Responses:        datatypes.JSON("{}"),
			ContentSignature: sig,
			SignatureDigest:  digest,
		}
		if limit := content.TimeLimitSeconds; limit != nil && *limit > 0 {
			deadline := now.Add(time.Duration(*limit) * time.Second)
			attempt.DeadlineAt = &deadline
		}
		return repo.Create(attempt)
	})
	return attempt, err
}

// SaveResponses buffers responses on an in-progress attempt. A null value clears an item.
func (s *AttemptService) SaveResponses(ctx context.Context, attemptID, userID string, raw map[string]json.RawMessage) (*model.Attempt, error) {
	a, sig, err := s.loadOwned(ctx, attemptID, userID)
	if err != nil {
		return nil, err
	}
	if a.Status != grading.StatusInProgress {
		return nil, util.ErrInvalidTransition
	}
	if a.DeadlineAt != nil && s.Clock().After(a.DeadlineAt.Add(s.Policy().TimeTolerance)) {
		return nil, util.ErrTimeLimitExceeded
	}

	merged, err := s.mergeResponses(a, raw)
	if err != nil {
		return nil, err
	}
	if _, err := s.Registry.ValidateResponses(sig.Items, merged); err != nil {
		return nil, err
	}
	b, err := json.Marshal(merged)
	if err != nil {
		return nil, err
	}
	ok, err := s.AttemptRepo.With(s.DB.WithContext(ctx)).Transition(a.ID,
		[]grading.Status{grading.StatusInProgress},
		map[string]interface{}{"responses": datatypes.JSON(b)})
	if err != nil {
		return nil, util.Persist("save responses", err)
	}
	if !ok {
		return nil, util.ErrInvalidTransition
	}
	a.Responses = b
	return a, nil
}

// SaveSubmissionDraft stores assignment text or a file reference before submission.
func (s *AttemptService) SaveSubmissionDraft(ctx context.Context, attemptID, userID, text, fileRef, fileName string) (*model.Submission, error) {
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
	sub, err := s.SubmissionRepo.With(s.DB.WithContext(ctx)).Upsert(a.ID, text, fileRef, fileName)
	if err != nil {
		return nil, util.Persist("save submission", err)
	}
	return sub, nil
}

type SubmitInput struct {
	AttemptID        string
	UserID           string
	Responses        map[string]json.RawMessage
	TimeSpentSeconds *int
	Text             string
	FileRef          string
	FileName         string
}

// SubmitAttempt validates and scores the responses against the attempt's pinned
// signature. Attempts already out of IN_PROGRESS return their stored result.
func (s *AttemptService) SubmitAttempt(ctx context.Context, in SubmitInput) (*grading.Result, error) {
	ctx, span := tracing.Tracer.Start(ctx, "AttemptService.SubmitAttempt")
	defer span.End()
	span.SetAttributes(attribute.String("attempt.id", in.AttemptID))

	a, sig, err := s.loadOwned(ctx, in.AttemptID, in.UserID)
	if err != nil {
		return nil, err
	}
	if a.Status != grading.StatusInProgress {
		return s.storedResult(ctx, a.ID, sig.Config)
	}

	policy := s.Policy()
	now := s.Clock()
	spent, exceeded := s.effectiveTime(a, sig, now, in.TimeSpentSeconds, policy)
	if exceeded && policy.LatePolicy == config.LatePolicyReject {
		monitoring.AttemptsRejected.WithLabelValues("time_limit_exceeded").Inc()
		if err := s.expire(ctx, a, sig, now); err != nil && !errors.Is(err, errLostRace) {
			return nil, err
		}
		return nil, util.ErrTimeLimitExceeded
	}

	merged, err := s.mergeResponses(a, in.Responses)
	if err != nil {
		return nil, err
	}
	answers, err := s.Registry.ValidateResponses(sig.Items, merged)
	if err != nil {
		monitoring.AttemptsRejected.WithLabelValues("validation").Inc()
		return nil, err
	}

	reason := model.EndReasonSubmitted
	if exceeded {
		reason = model.EndReasonTimeOut
	}
	fields, err := s.finalFields(a, sig, answers, merged, now, spent, exceeded, reason)
	if err != nil {
		return nil, err
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if a.Kind == grading.KindAssignment {
			if err := s.ensureSubmission(tx, a.ID, in.Text, in.FileRef, in.FileName); err != nil {
				return err
			}
		}
		ok, err := s.AttemptRepo.With(tx).Transition(a.ID, []grading.Status{grading.StatusInProgress}, fields)
		if err != nil {
			return err
		}
		if !ok {
			return errLostRace
		}
		return nil
	})
	if err != nil && !errors.Is(err, errLostRace) {
		var ve *grading.ValidationError
		if errors.As(err, &ve) {
			return nil, err
		}
		return nil, util.Persist("submit attempt", err)
	}

	res, rerr := s.storedResult(ctx, a.ID, sig.Config)
	if rerr != nil || errors.Is(err, errLostRace) {
		return res, rerr
	}
	s.afterFinish(ctx, a, sig.Config, res, reason)
	return res, nil
}

// effectiveTime takes the larger of the client's report and server elapsed
// time, caps it at the limit and flags overruns beyond the tolerance.
func (s *AttemptService) effectiveTime(a *model.Attempt, sig grading.Signature, now time.Time, reported *int, policy AttemptPolicy) (int, bool) {
	elapsed := now.Sub(a.StartedAt)
	if elapsed < 0 {
		elapsed = 0
	}
	spent := int(elapsed / time.Second)
	if reported != nil && *reported > spent {
		spent = *reported
	}
	limit := sig.Config.TimeLimitSeconds
	if limit == nil || *limit <= 0 {
		return spent, false
	}
	budget := time.Duration(*limit)*time.Second + policy.TimeTolerance
	exceeded := time.Duration(spent)*time.Second > budget || elapsed > budget
	if spent > *limit {
		spent = *limit
	}
	return spent, exceeded
}

// ExpireAttempt ends an overdue attempt with whatever responses were buffered.
func (s *AttemptService) ExpireAttempt(ctx context.Context, attemptID string) error {
	ctx, span := tracing.Tracer.Start(ctx, "AttemptService.ExpireAttempt")
	defer span.End()

	a, err := s.AttemptRepo.With(s.DB.WithContext(ctx)).FindByID(attemptID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return util.ErrAttemptNotFound
		}
		return util.Persist("load attempt", err)
	}
	if a.Status != grading.StatusInProgress {
		return nil
	}
	now := s.Clock()
	if a.DeadlineAt == nil || now.Before(*a.DeadlineAt) {
		return util.ErrDeadlineNotReached
	}
	sig, err := s.signatureOf(a)
	if err != nil {
		return err
	}
	err = s.expire(ctx, a, sig, now)
	if errors.Is(err, errLostRace) {
		return nil
	}
	return err
}

func (s *AttemptService) expire(ctx context.Context, a *model.Attempt, sig grading.Signature, now time.Time) error {
	buffered, err := a.BufferedResponses()
	if err != nil {
		logger.Log.Warn("unreadable buffered responses", zap.String("attempt_id", a.ID), zap.Error(err))
		buffered = map[string]json.RawMessage{}
	}
	answers, err := s.Registry.ValidateResponses(sig.Items, buffered)
	if err != nil {
		logger.Log.Warn("buffered responses failed validation, scoring as unanswered",
			zap.String("attempt_id", a.ID), zap.Error(err))
		answers = grading.Answers{}
	}

	spent := int(now.Sub(a.StartedAt) / time.Second)
	if limit := sig.Config.TimeLimitSeconds; limit != nil && spent > *limit {
		spent = *limit
	}
	fields, err := s.finalFields(a, sig, answers, buffered, now, spent, true, model.EndReasonTimeOut)
	if err != nil {
		return err
	}
	if a.Kind == grading.KindAssignment {
		fields["status"] = grading.StatusExpired
	}

	ok, err := s.AttemptRepo.With(s.DB.WithContext(ctx)).Transition(a.ID, []grading.Status{grading.StatusInProgress}, fields)
	if err != nil {
		return util.Persist("expire attempt", err)
	}
	if !ok {
		return errLostRace
	}
	res, err := s.storedResult(ctx, a.ID, sig.Config)
	if err != nil {
		return err
	}
	s.afterFinish(ctx, a, sig.Config, res, model.EndReasonTimeOut)
	return nil
}

// finalFields builds the column updates that move an attempt out of IN_PROGRESS.
func (s *AttemptService) finalFields(
	a *model.Attempt,
	sig grading.Signature,
	answers grading.Answers,
	raw map[string]json.RawMessage,
	now time.Time,
	spent int,
	exceeded bool,
	reason string,
) (map[string]interface{}, error) {
	responses, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	fields := map[string]interface{}{
		"submitted_at":        now,
		"end_reason":          reason,
		"responses":           datatypes.JSON(responses),
		"time_spent_seconds":  spent,
		"time_limit_exceeded": exceeded,
	}
	if a.Kind == grading.KindAssignment {
		fields["status"] = grading.StatusSubmitted
		return fields, nil
	}

	scored, err := s.Registry.Evaluate(sig, answers)
	if err != nil {
		return nil, err
	}
	breakdown, err := json.Marshal(scored.Breakdown)
	if err != nil {
		return nil, err
	}
	fields["status"] = grading.StatusGraded
	fields["graded_at"] = now
	fields["score"] = scored.Score
	fields["points_earned"] = scored.PointsEarned
	fields["total_points"] = scored.TotalPoints
	fields["passed"] = scored.Passed
	fields["pending_review"] = scored.PendingReview
	fields["breakdown"] = datatypes.JSON(breakdown)
	return fields, nil
}

func (s *AttemptService) ensureSubmission(tx *gorm.DB, attemptID, text, fileRef, fileName string) error {
	repo := s.SubmissionRepo.With(tx)
	sub, err := repo.Upsert(attemptID, text, fileRef, fileName)
	if err != nil {
		return err
	}
	if sub.Text == "" && sub.FileRef == "" {
		return &grading.ValidationError{ItemID: "submission", Reason: "text or file is required"}
	}
	return nil
}

func (s *AttemptService) afterFinish(ctx context.Context, a *model.Attempt, cfg grading.ContentConfig, res *grading.Result, reason string) {
	if err := s.Deadlines.Remove(ctx, a.ID); err != nil {
		logger.Log.Warn("failed to clear attempt deadline", zap.String("attempt_id", a.ID), zap.Error(err))
	}
	monitoring.AttemptsFinished.WithLabelValues(string(a.Kind), reason).Inc()
	if res.Score != nil {
		monitoring.AttemptScores.WithLabelValues(string(a.Kind)).Observe(*res.Score)
	}
	fields := []zap.Field{
		zap.String("attempt_id", a.ID),
		zap.String("content_id", a.ContentID),
		zap.String("user_id", a.UserID),
		zap.String("status", string(res.Status)),
		zap.String("end_reason", reason),
	}
	if res.Score != nil {
		fields = append(fields, zap.Float64("score", *res.Score))
	}
	logger.Log.Info("attempt finished", fields...)
	s.notify(ctx, a, cfg, res)
}

func (s *AttemptService) notify(ctx context.Context, a *model.Attempt, cfg grading.ContentConfig, res *grading.Result) {
	s.Notifier.Notify(ctx, CompletionEvent{
		UserID:     a.UserID,
		ContentID:  a.ContentID,
		AttemptID:  a.ID,
		Kind:       a.Kind,
		Status:     res.Status,
		Score:      res.Score,
		Passed:     res.Passed,
		Complete:   grading.IsComplete(a.Kind, *res, cfg),
		OccurredAt: s.Clock(),
	})
}

// GradeSubmission records a manual grade on a submitted or expired assignment attempt.
func (s *AttemptService) GradeSubmission(ctx context.Context, attemptID, graderID string, grade float64, feedback string) (*model.Attempt, error) {
	ctx, span := tracing.Tracer.Start(ctx, "AttemptService.GradeSubmission")
	defer span.End()

	db := s.DB.WithContext(ctx)
	a, err := s.AttemptRepo.With(db).FindByID(attemptID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrAttemptNotFound
		}
		return nil, util.Persist("load attempt", err)
	}
	if a.Kind != grading.KindAssignment {
		return nil, util.ErrNotAssignment
	}
	if a.Status != grading.StatusSubmitted && a.Status != grading.StatusExpired {
		return nil, util.ErrInvalidTransition
	}

	now := s.Clock()
	err = db.Transaction(func(tx *gorm.DB) error {
		subs := s.SubmissionRepo.With(tx)
		if _, err := subs.Upsert(a.ID, "", "", ""); err != nil {
			return err
		}
		if err := subs.Grade(a.ID, grade, feedback, graderID, now); err != nil {
			return err
		}
		ok, err := s.AttemptRepo.With(tx).Transition(a.ID,
			[]grading.Status{grading.StatusSubmitted, grading.StatusExpired},
			map[string]interface{}{"status": grading.StatusGraded, "graded_at": now})
		if err != nil {
			return err
		}
		if !ok {
			return util.ErrInvalidTransition
		}
		return nil
	})
	if err != nil {
		return nil, util.Persist("grade submission", err)
	}

	graded, err := s.AttemptRepo.With(db).FindByID(a.ID)
	if err != nil {
		return nil, util.Persist("load attempt", err)
	}
	logger.Log.Info("submission graded",
		zap.String("attempt_id", a.ID),
		zap.String("grader_id", graderID),
		zap.Float64("grade", grade),
	)
	// 评分已提交，结果读取失败只影响通知
	sig, err := s.signatureOf(graded)
	if err == nil {
		var res *grading.Result
		if res, err = s.storedResult(ctx, graded.ID, sig.Config); err == nil {
			s.notify(ctx, graded, sig.Config, res)
		}
	}
	if err != nil {
		logger.Log.Warn("graded attempt not reported to progress", zap.String("attempt_id", graded.ID), zap.Error(err))
	}
	return graded, nil
}

// GetAttempts returns the user's attempts on a content, newest first.
func (s *AttemptService) GetAttempts(ctx context.Context, contentID, userID string) ([]model.Attempt, error) {
	attempts, err := s.AttemptRepo.With(s.DB.WithContext(ctx)).ListByUserAndContent(userID, contentID)
	if err != nil {
		return nil, util.Persist("list attempts", err)
	}
	// breakdown 含正确答案，只通过 result 接口返回
	for i := range attempts {
		attempts[i].Breakdown = nil
	}
	return attempts, nil
}

// GetAttempt loads an attempt visible to the caller. Staff may read any attempt.
func (s *AttemptService) GetAttempt(ctx context.Context, attemptID, userID string, staff bool) (*model.Attempt, error) {
	a, err := s.AttemptRepo.With(s.DB.WithContext(ctx)).FindByID(attemptID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrAttemptNotFound
		}
		return nil, util.Persist("load attempt", err)
	}
	if !staff {
		if a.UserID != userID {
			return nil, util.ErrPermissionDenied
		}
		a.Breakdown = nil
	}
	return a, nil
}

func (s *AttemptService) GetResult(ctx context.Context, attemptID, userID string, staff bool) (*grading.Result, error) {
	a, err := s.GetAttempt(ctx, attemptID, userID, staff)
	if err != nil {
		return nil, err
	}
	sig, err := s.signatureOf(a)
	if err != nil {
		return nil, err
	}
	return s.storedResult(ctx, a.ID, sig.Config)
}

type Eligibility struct {
	ContentID         string `json:"contentId"`
	AttemptsUsed      int    `json:"attemptsUsed"`
	MaxAttempts       int    `json:"maxAttempts"`
	AttemptsRemaining int    `json:"attemptsRemaining"`
	Passed            bool   `json:"passed"`
	CanStart          bool   `json:"canStart"`
}

func (s *AttemptService) GetEligibility(ctx context.Context, contentID, userID string) (*Eligibility, error) {
	content, err := s.loadContent(ctx, contentID)
	if err != nil {
		return nil, err
	}
	repo := s.AttemptRepo.With(s.DB.WithContext(ctx))
	used, err := repo.CountByUserAndContent(userID, contentID)
	if err != nil {
		return nil, util.Persist("count attempts", err)
	}
	passed, err := repo.HasPassed(userID, contentID)
	if err != nil {
		return nil, util.Persist("count attempts", err)
	}
	cfg := content.Config()
	return &Eligibility{
		ContentID:         contentID,
		AttemptsUsed:      int(used),
		MaxAttempts:       cfg.MaxAttempts,
		AttemptsRemaining: grading.AttemptsRemaining(cfg, int(used)),
		Passed:            passed,
		CanStart:          grading.CanRetry(cfg, int(used), passed),
	}, nil
}

// TimerState is the advisory countdown. Clients render it; submit re-checks on the server.
type TimerState struct {
	AttemptID        string     `json:"attemptId"`
	Status           string     `json:"status"`
	StartedAt        time.Time  `json:"startedAt"`
	DeadlineAt       *time.Time `json:"deadlineAt,omitempty"`
	ServerTime       time.Time  `json:"serverTime"`
	RemainingSeconds *int       `json:"remainingSeconds,omitempty"`
	Expired          bool       `json:"expired"`
}

func (s *AttemptService) GetTimer(ctx context.Context, attemptID, userID string) (*TimerState, error) {
	a, err := s.GetAttempt(ctx, attemptID, userID, false)
	if err != nil {
		return nil, err
	}
	now := s.Clock()
	t := &TimerState{
		AttemptID:  a.ID,
		Status:     string(a.Status),
		StartedAt:  a.StartedAt,
		DeadlineAt: a.DeadlineAt,
		ServerTime: now,
		Expired:    a.Status == grading.StatusExpired || a.EndReason == model.EndReasonTimeOut,
	}
	if a.DeadlineAt != nil {
		remaining := int(a.DeadlineAt.Sub(now) / time.Second)
		if remaining <= 0 {
			remaining = 0
			t.Expired = true
		}
		t.RemainingSeconds = &remaining
	}
	return t, nil
}

func (s *AttemptService) ListPendingGrading(ctx context.Context, contentID string) ([]model.Attempt, error) {
	attempts, err := s.AttemptRepo.With(s.DB.WithContext(ctx)).ListPendingGrading(contentID)
	if err != nil {
		return nil, util.Persist("list pending grading", err)
	}
	return attempts, nil
}

func (s *AttemptService) GetAttemptStats(ctx context.Context, contentID string) (*repository.AttemptStats, error) {
	if _, err := s.loadContent(ctx, contentID); err != nil {
		return nil, err
	}
	stats, err := s.AttemptRepo.With(s.DB.WithContext(ctx)).Stats(contentID)
	if err != nil {
		return nil, util.Persist("attempt stats", err)
	}
	return stats, nil
}

// helpers

func (s *AttemptService) loadContent(ctx context.Context, contentID string) (*model.AssessableContent, error) {
	content, err := s.ContentRepo.With(s.DB.WithContext(ctx)).FindByID(contentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrContentNotFound
		}
		return nil, util.Persist("load content", err)
	}
	return content, nil
}

func (s *AttemptService) loadOwned(ctx context.Context, attemptID, userID string) (*model.Attempt, grading.Signature, error) {
	a, err := s.GetAttempt(ctx, attemptID, userID, false)
	if err != nil {
		return nil, grading.Signature{}, err
	}
	sig, err := s.signatureOf(a)
	if err != nil {
		return nil, grading.Signature{}, err
	}
	return a, sig, nil
}

func (s *AttemptService) signatureOf(a *model.Attempt) (grading.Signature, error) {
	if !grading.Verify([]byte(a.ContentSignature), a.SignatureDigest) {
		logger.Log.Error("attempt signature digest mismatch", zap.String("attempt_id", a.ID))
		return grading.Signature{}, &util.PersistenceError{Op: "verify signature", Err: errSignatureChanged}
	}
	sig, err := a.Signature()
	if err != nil {
		return grading.Signature{}, &util.PersistenceError{Op: "decode signature", Err: err}
	}
	return sig, nil
}

func (s *AttemptService) mergeResponses(a *model.Attempt, raw map[string]json.RawMessage) (map[string]json.RawMessage, error) {
	merged, err := a.BufferedResponses()
	if err != nil {
		return nil, &util.PersistenceError{Op: "decode responses", Err: err}
	}
	for k, v := range raw {
		if len(v) == 0 || string(v) == "null" {
			delete(merged, k)
			continue
		}
		merged[k] = v
	}
	return merged, nil
}

// storedResult rebuilds the result from the persisted attempt. Attempts
// remaining count from this attempt's number, so replays return the same result
// even after later attempts start.
func (s *AttemptService) storedResult(ctx context.Context, attemptID string, cfg grading.ContentConfig) (*grading.Result, error) {
	a, err := s.AttemptRepo.With(s.DB.WithContext(ctx)).FindByID(attemptID)
	if err != nil {
		return nil, util.Persist("load attempt", err)
	}
	res, err := a.Result()
	if err != nil {
		logger.Log.Error("unreadable attempt breakdown", zap.String("attempt_id", a.ID), zap.Error(err))
		return nil, &util.PersistenceError{Op: "decode breakdown", Err: err}
	}
	res = res.ForLearner(cfg, a.AttemptNumber)
	return &res, nil
}
