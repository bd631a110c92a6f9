package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"overdub/internal/config"
)

const userAgent = "Overdub/0.1.0"

var titleCaser = cases.Title(language.English)

// Service defines the push-notification surface exposed to the job driver.
type Service interface {
	NotifyJobStarted(ctx context.Context, jobLabel string, stepCount int) error
	NotifyRecordingCompleted(ctx context.Context, jobLabel string, stepCount int) error
	NotifyJobCompleted(ctx context.Context, jobLabel, videoLocation string, degraded bool) error
	NotifyJobFailed(ctx context.Context, jobLabel string, err error) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
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
		endpoint:  topic,
		client:    &http.Client{Timeout: timeout},
		lifecycle: cfg.Notifications.JobLifecycle,
		errors:    cfg.Notifications.Errors,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint  string
	client    *http.Client
	lifecycle bool
	errors    bool
}

func (n *ntfyService) NotifyJobStarted(ctx context.Context, jobLabel string, stepCount int) error {
	if !n.lifecycle {
		return nil
	}
	data := payload{
		title:   "Overdub - Job Started",
		message: fmt.Sprintf("Recording %s (%d steps)", prettyLabel(jobLabel), stepCount),
		tags:    []string{"overdub", "job", "started"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyRecordingCompleted(ctx context.Context, jobLabel string, stepCount int) error {
	if !n.lifecycle {
		return nil
	}
	data := payload{
		title:   "Overdub - Recording Complete",
		message: fmt.Sprintf("Captured %d step timings for %s, compositing narration", stepCount, prettyLabel(jobLabel)),
		tags:    []string{"overdub", "recording", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyJobCompleted(ctx context.Context, jobLabel, videoLocation string, degraded bool) error {
	if !n.lifecycle {
		return nil
	}
	data := payload{
		title:    "Overdub - Complete",
		message:  fmt.Sprintf("Video ready: %s\nFile: %s", prettyLabel(jobLabel), videoLocation),
		tags:     []string{"overdub", "job", "completed"},
		priority: "high",
	}
	if degraded {
		data.title = "Overdub - Complete (no narration)"
		data.message = fmt.Sprintf("Video ready without narration: %s\nFile: %s\nCompositing failed, raw recording delivered", prettyLabel(jobLabel), videoLocation)
		data.priority = ""
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyJobFailed(ctx context.Context, jobLabel string, err error) error {
	if !n.errors {
		return nil
	}
	reason := "unknown"
	if err != nil {
		reason = strings.TrimSpace(err.Error())
	}
	data := payload{
		title:    "Overdub - Job Failed",
		message:  fmt.Sprintf("Failed: %s\n%s", prettyLabel(jobLabel), reason),
		tags:     []string{"overdub", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Overdub - Test",
		message:  "Notification system test",
		tags:     []string{"overdub", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

// prettyLabel renders tenant/project identifiers for human eyes.
func prettyLabel(label string) string {
	label = strings.TrimSpace(label)
	if label == "" {
		return "unknown job"
	}
	parts := strings.Split(label, "/")
	for i, part := range parts {
		part = strings.ReplaceAll(part, "_", " ")
		part = strings.ReplaceAll(part, "-", " ")
		parts[i] = titleCaser.String(part)
	}
	return strings.Join(parts, " / ")
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

func (noopService) NotifyJobStarted(context.Context, string, int) error            { return nil }
func (noopService) NotifyRecordingCompleted(context.Context, string, int) error    { return nil }
func (noopService) NotifyJobCompleted(context.Context, string, string, bool) error { return nil }
func (noopService) NotifyJobFailed(context.Context, string, error) error           { return nil }
func (noopService) TestNotification(context.Context) error                         { return nil }
