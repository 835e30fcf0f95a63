package service

import (
	"assessment_backend/internal/config"
	"assessment_backend/internal/grading"
	"assessment_backend/pkg/logger"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// CompletionEvent is sent to the course progress service when an attempt
// leaves IN_PROGRESS or receives a grade.
type CompletionEvent struct {
	UserID     string              `json:"userId"`
	ContentID  string              `json:"contentId"`
	AttemptID  string              `json:"attemptId"`
	Kind       grading.ContentKind `json:"kind"`
	Status     grading.Status      `json:"status"`
	Score      *float64            `json:"score,omitempty"`
	Passed     *bool               `json:"passed,omitempty"`
	Complete   bool                `json:"complete"`
	OccurredAt time.Time           `json:"occurredAt"`
}

type CompletionNotifier interface {
	Notify(ctx context.Context, ev CompletionEvent)
}

type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, CompletionEvent) {}

// ProgressNotifier posts completion events from a background worker so that
// attempt transitions never wait on the progress service.
type ProgressNotifier struct {
	client *resty.Client
	url    string
	events chan CompletionEvent
	done   chan struct{}
	wg     sync.WaitGroup
}

func NewProgressNotifier(cfg *config.ProgressConfig) *ProgressNotifier {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetHeader("Content-Type", "application/json")
	if cfg.Token != "" {
		client.SetAuthToken(cfg.Token)
	}
	return &ProgressNotifier{
		client: client,
		url:    cfg.WebhookURL,
		events: make(chan CompletionEvent, 256),
		done:   make(chan struct{}),
	}
}

func (n *ProgressNotifier) Start() {
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		for {
			select {
			case ev := <-n.events:
				if err := n.Send(context.Background(), ev); err != nil {
					logger.Log.Warn("progress notification failed",
						zap.String("attempt_id", ev.AttemptID),
						zap.Error(err),
					)
				}
			case <-n.done:
				return
			}
		}
	}()
}

func (n *ProgressNotifier) Stop() {
	close(n.done)
	n.wg.Wait()
}

// Notify enqueues the event. A full queue drops it with a warning.
func (n *ProgressNotifier) Notify(_ context.Context, ev CompletionEvent) {
	if n.url == "" {
		return
	}
	select {
	case n.events <- ev:
	default:
		logger.Log.Warn("progress queue full, dropping event", zap.String("attempt_id", ev.AttemptID))
	}
}

// Send posts one event synchronously.
func (n *ProgressNotifier) Send(ctx context.Context, ev CompletionEvent) error {
	resp, err := n.client.R().
		SetContext(ctx).
		SetBody(ev).
		Post(n.url)
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("progress service returned %d: %s", resp.StatusCode(), resp.String())
	}
	logger.Log.Debug("progress notified",
		zap.String("attempt_id", ev.AttemptID),
		zap.Bool("complete", ev.Complete),
	)
	return nil
}
