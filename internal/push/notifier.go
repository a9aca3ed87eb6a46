// internal/push/notifier.go
package push

import (
	"context"
	"fmt"
	"sync"

	"offline-worker/internal/common/aws"
	"offline-worker/internal/common/config"
	"offline-worker/internal/common/logger"
	"offline-worker/internal/models"
)

// DisplayRequest carries everything a backend needs to surface one
// notification to the user.
type DisplayRequest struct {
	Title              string
	Body               string
	Icon               string
	Badge              string
	URL                string
	Tag                string
	Actions            []string
	RequireInteraction bool
	Silent             bool
	Renotify           bool
}

// Notifier surfaces notifications to the user through some delivery channel.
type Notifier interface {
	Display(ctx context.Context, req DisplayRequest) error
}

// NewNotifier builds the configured backend: "sns", "ses", or "log".
func NewNotifier(ctx context.Context, cfg config.PushConfig, log logger.Logger) (Notifier, error) {
	switch cfg.Notifier {
	case "sns":
		client, err := aws.NewSNSClient(ctx, cfg.AWS.Region)
		if err != nil {
			return nil, fmt.Errorf("failed to create SNS client: %w", err)
		}
		return &SNSNotifier{client: client, topicARN: cfg.SNS.TopicARN}, nil
	case "ses":
		client, err := aws.NewSESClient(ctx, cfg.AWS.Region)
		if err != nil {
			return nil, fmt.Errorf("failed to create SES client: %w", err)
		}
		return &SESNotifier{client: client, from: cfg.SES.FromEmail, to: cfg.SES.ToEmail}, nil
	case "log", "":
		return NewLogNotifier(log), nil
	default:
		return nil, fmt.Errorf("unknown notifier backend: %s", cfg.Notifier)
	}
}

// SNSNotifier publishes notifications to an SNS topic.
type SNSNotifier struct {
	client   *aws.SNSClient
	topicARN string
}

func (n *SNSNotifier) Display(ctx context.Context, req DisplayRequest) error {
	return n.client.PublishToTopic(ctx, n.topicARN, req.Title, req.Body)
}

// SESNotifier delivers notifications as plain-text email.
type SESNotifier struct {
	client *aws.SESClient
	from   string
	to     string
}

func (n *SESNotifier) Display(ctx context.Context, req DisplayRequest) error {
	body := req.Body
	if req.URL != "" && req.URL != models.DefaultURL {
		body = fmt.Sprintf("%s\n\n%s", req.Body, req.URL)
	}
	return n.client.SendText(ctx, n.from, n.to, req.Title, body)
}

// LogNotifier writes notifications to the structured log. It also records
// every displayed notification, which makes it the test double.
type LogNotifier struct {
	log logger.Logger

	mu        sync.Mutex
	displayed []DisplayRequest
}

func NewLogNotifier(log logger.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Display(ctx context.Context, req DisplayRequest) error {
	n.mu.Lock()
	n.displayed = append(n.displayed, req)
	n.mu.Unlock()

	n.log.Info("Notification displayed", map[string]interface{}{
		"title": req.Title,
		"body":  req.Body,
		"tag":   req.Tag,
		"url":   req.URL,
	})
	return nil
}

// Displayed returns a copy of everything displayed so far.
func (n *LogNotifier) Displayed() []DisplayRequest {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]DisplayRequest, len(n.displayed))
	copy(out, n.displayed)
	return out
}
