// Package notifications delivers pipeline events via ntfy. When no topic
// is configured a no-op implementation is returned, so callers never need
// to branch on whether notifications are enabled.
package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"reelsync/internal/config"
)

const userAgent = "reelsync/1.0"

// Service is the notification surface exposed to pipeline components.
type Service interface {
	NotifySyncCompleted(ctx context.Context, subpath string, linked int) error
	NotifyImportCompleted(ctx context.Context, service string, files int) error
	NotifyCleanupCompleted(ctx context.Context, trashed, relocated int) error
	NotifyPipelineFailed(ctx context.Context, sourcePath string, err error) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) NotifySyncCompleted(ctx context.Context, subpath string, linked int) error {
	data := payload{
		title:   "reelsync - Synced",
		message: fmt.Sprintf("Mirrored %s (%d files linked)", strings.TrimSpace(subpath), linked),
		tags:    []string{"reelsync", "sync", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyImportCompleted(ctx context.Context, service string, files int) error {
	data := payload{
		title:   "reelsync - Imported",
		message: fmt.Sprintf("%s imported %d files", strings.TrimSpace(service), files),
		tags:    []string{"reelsync", "import", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyCleanupCompleted(ctx context.Context, trashed, relocated int) error {
	data := payload{
		title:   "reelsync - Cleaned",
		message: fmt.Sprintf("Cleanup moved %d files to trash, %d to Extras", trashed, relocated),
		tags:    []string{"reelsync", "cleanup", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyPipelineFailed(ctx context.Context, sourcePath string, err error) error {
	message := "Pipeline failed"
	if sourcePath = strings.TrimSpace(sourcePath); sourcePath != "" {
		message += " for " + sourcePath
	}
	if err != nil {
		message += ": " + strings.TrimSpace(err.Error())
	}
	data := payload{
		title:    "reelsync - Error",
		message:  message,
		tags:     []string{"reelsync", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "reelsync - Test",
		message:  "Notification system test",
		tags:     []string{"reelsync", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifySyncCompleted(context.Context, string, int) error    { return nil }
func (noopService) NotifyImportCompleted(context.Context, string, int) error  { return nil }
func (noopService) NotifyCleanupCompleted(context.Context, int, int) error    { return nil }
func (noopService) NotifyPipelineFailed(context.Context, string, error) error { return nil }
func (noopService) TestNotification(context.Context) error                    { return nil }
