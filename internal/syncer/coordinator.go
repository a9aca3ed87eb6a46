// internal/syncer/coordinator.go
package syncer

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"offline-worker/internal/common/config"
	apperrors "offline-worker/internal/common/errors"
	"offline-worker/internal/common/httpclient"
	"offline-worker/internal/common/logger"
	"offline-worker/internal/common/metrics"
	"offline-worker/internal/common/observability"
	"offline-worker/internal/models"
	"offline-worker/internal/push"
	"offline-worker/internal/queue"
)

// TagState is the replay lifecycle position of one tag.
type TagState string

const (
	// StateIdle: nothing queued, nothing registered.
	StateIdle TagState = "idle"
	// StateRegistered: queued records exist and a wake-up is registered.
	StateRegistered TagState = "registered"
	// StateDraining: a replay pass for the tag is in flight.
	StateDraining TagState = "draining"
)

// Coordinator drives queued-request replay per tag. Records are removed only
// after a confirmed 2xx replay, so a crash at any point leaves them queued.
type Coordinator struct {
	queue     *queue.Queue
	scheduler Scheduler
	notifier  push.Notifier
	client    *httpclient.Client
	obs       *observability.Observability
	cfg       config.SyncConfig
	origin    string
	log       logger.Logger

	mu         sync.Mutex
	states     map[models.OperationTag]TagState
	draining   map[models.OperationTag]*sync.Mutex
	warnedOnce bool
}

func NewCoordinator(q *queue.Queue, scheduler Scheduler, notifier push.Notifier, obs *observability.Observability, cfg config.SyncConfig, origin string, log logger.Logger) *Coordinator {
	return &Coordinator{
		queue:     q,
		scheduler: scheduler,
		notifier:  notifier,
		client:    httpclient.NewClient(time.Duration(cfg.ReplayTimeout) * time.Millisecond),
		obs:       obs,
		cfg:       cfg,
		origin:    origin,
		log:       log,
		states:    make(map[models.OperationTag]TagState),
		draining:  make(map[models.OperationTag]*sync.Mutex),
	}
}

// State returns the current lifecycle position of a tag.
func (c *Coordinator) State(tag models.OperationTag) TagState {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.states[tag]; ok {
		return s
	}
	return StateIdle
}

func (c *Coordinator) setState(tag models.OperationTag, s TagState) {
	c.mu.Lock()
	c.states[tag] = s
	c.mu.Unlock()
}

func (c *Coordinator) tagLock(tag models.OperationTag) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.draining[tag]
	if !ok {
		m = &sync.Mutex{}
		c.draining[tag] = m
	}
	return m
}

// RegisterReplay registers a deferred wake-up for a tag. Registration is
// best-effort: an unsupported host is warned about once and the reconnect
// path takes over from there.
func (c *Coordinator) RegisterReplay(ctx context.Context, tag models.OperationTag) error {
	if !models.IsKnownTag(tag) {
		return apperrors.NewSyncRegistrationUnsupportedError("unknown tag: " + string(tag))
	}

	if err := c.scheduler.Register(ctx, tag); err != nil {
		var se *apperrors.StandardError
		if errors.As(err, &se) && se.Code == apperrors.ErrCodeSyncRegistrationUnsupported {
			c.mu.Lock()
			warned := c.warnedOnce
			c.warnedOnce = true
			c.mu.Unlock()
			if !warned {
				c.log.Warn("Deferred wake-up registration unsupported, relying on reconnect", map[string]interface{}{
					"tag": string(tag),
				})
			}
			c.setState(tag, StateRegistered)
			return nil
		}
		return err
	}

	c.setState(tag, StateRegistered)
	return nil
}

// Drain replays every queued record for a tag, oldest first. One record's
// failure never aborts the pass; records stay queued until a confirmed 2xx.
// When new records arrive mid-drain the tag is re-registered instead of
// going Idle, so nothing is silently stranded.
func (c *Coordinator) Drain(ctx context.Context, tag models.OperationTag) error {
	lock := c.tagLock(tag)
	lock.Lock()
	defer lock.Unlock()

	c.setState(tag, StateDraining)
	started := time.Now()

	records, err := c.queue.ListByTag(ctx, tag)
	if err != nil {
		c.setState(tag, StateRegistered)
		return err
	}

	for _, rec := range records {
		c.replayOne(ctx, rec)
	}

	duration := time.Since(started)
	metrics.DrainDuration.WithLabelValues(string(tag)).Observe(duration.Seconds())
	if c.obs != nil {
		c.obs.RecordDrain(ctx, string(tag), duration)
	}

	remaining, err := c.queue.CountByTag(ctx, tag)
	if err != nil {
		c.setState(tag, StateRegistered)
		return err
	}

	if remaining > 0 {
		return c.RegisterReplay(ctx, tag)
	}

	c.setState(tag, StateIdle)
	if err := c.scheduler.Unregister(ctx, tag); err != nil {
		c.log.Warn("Failed to clear wake-up registration", map[string]interface{}{
			"tag":   string(tag),
			"error": err.Error(),
		})
	}
	return nil
}

// DrainAll drains every tag the scheduler holds a registration for. This is
// the reconnect path.
func (c *Coordinator) DrainAll(ctx context.Context) {
	tags, err := c.scheduler.Registered(ctx)
	if err != nil {
		c.log.Error("Failed to list registered tags", map[string]interface{}{"error": err.Error()})
		return
	}
	for _, tag := range tags {
		if err := c.Drain(ctx, tag); err != nil {
			c.log.Error("Drain failed", map[string]interface{}{
				"tag":   string(tag),
				"error": err.Error(),
			})
		}
	}
}

func (c *Coordinator) replayOne(ctx context.Context, rec models.QueuedRequest) {
	status, err := c.replay(ctx, rec.Request)
	if err == nil && status >= 200 && status < 300 {
		if err := c.queue.Remove(ctx, rec.ID, rec.Tag); err != nil {
			c.log.Error("Replay succeeded but record removal failed", map[string]interface{}{
				"requestId": rec.ID,
				"tag":       string(rec.Tag),
				"error":     err.Error(),
			})
			return
		}
		metrics.ReplaysCompleted.WithLabelValues(string(rec.Tag)).Inc()
		c.confirm(ctx, rec.Tag)
		return
	}

	metrics.ReplaysFailed.WithLabelValues(string(rec.Tag)).Inc()

	if err == nil {
		err = apperrors.NewReplayRejectedError(rec.ID, status)
		if !apperrors.IsRetryable(err) {
			c.drop(ctx, rec, "permanent_rejection", status)
			return
		}
	}

	attempts, ferr := c.queue.RecordFailure(ctx, rec.ID)
	if ferr != nil {
		c.log.Error("Failed to record replay failure", map[string]interface{}{
			"requestId": rec.ID,
			"error":     ferr.Error(),
		})
		return
	}
	if attempts >= c.cfg.MaxAttempts {
		c.drop(ctx, rec, "attempts_exhausted", status)
		return
	}

	fields := map[string]interface{}{
		"requestId": rec.ID,
		"tag":       string(rec.Tag),
		"attempts":  attempts,
		"error":     err.Error(),
	}
	if status != 0 {
		fields["status"] = status
	}
	c.log.Warn("Replay failed, record stays queued", fields)
}

// replay re-issues the exact captured request: method, wire headers, body.
func (c *Coordinator) replay(ctx context.Context, sr models.SerializedRequest) (int, error) {
	target := sr.URL
	if strings.HasPrefix(target, "/") {
		target = strings.TrimSuffix(c.origin, "/") + target
	}

	req, err := http.NewRequest(sr.Method, target, strings.NewReader(sr.Body))
	if err != nil {
		return 0, apperrors.NewNetworkFailureError(sr.URL, err)
	}
	for name, value := range sr.Headers {
		req.Header.Set(name, value)
	}

	resp, err := c.client.DoWithContext(ctx, req)
	if err != nil {
		return 0, apperrors.NewNetworkFailureError(sr.URL, err)
	}
	resp.Body.Close()
	return resp.StatusCode, nil
}

func (c *Coordinator) drop(ctx context.Context, rec models.QueuedRequest, reason string, status int) {
	if err := c.queue.Remove(ctx, rec.ID, rec.Tag); err != nil {
		c.log.Error("Failed to drop rejected record", map[string]interface{}{
			"requestId": rec.ID,
			"error":     err.Error(),
		})
		return
	}
	metrics.ReplaysDropped.WithLabelValues(string(rec.Tag), reason).Inc()
	c.log.Warn("Queued request dropped", map[string]interface{}{
		"requestId": rec.ID,
		"tag":       string(rec.Tag),
		"reason":    reason,
		"status":    status,
		"attempts":  rec.Attempts,
	})
}

// confirm displays the operation-specific confirmation for user-facing tags.
func (c *Coordinator) confirm(ctx context.Context, tag models.OperationTag) {
	message, ok := models.UserFacingTags[tag]
	if !ok || c.notifier == nil {
		return
	}
	err := c.notifier.Display(ctx, push.DisplayRequest{
		Title: "Sincronizzazione completata",
		Body:  message,
		Icon:  models.DefaultIcon,
		Badge: models.DefaultBadge,
		Tag:   string(tag),
	})
	if err != nil {
		c.log.Warn("Failed to display replay confirmation", map[string]interface{}{
			"tag":   string(tag),
			"error": err.Error(),
		})
	}
}
