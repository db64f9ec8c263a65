// Package webhooks delivers best-effort change notifications to
// configured HTTP endpoints. Dispatch is asynchronous: a slow or
// failing endpoint is logged and dropped, never surfaced to the caller.
package webhooks

import (
	"bytes"
	"encoding/json"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/Greg-CLD/stagegate/internal/domain"
)

const (
	defaultTimeout     = 500 * time.Millisecond
	defaultConcurrency = 4
)

// Actions carried in notification payloads.
const (
	ActionCreated = "task.created"
	ActionUpdated = "task.updated"
	ActionDeleted = "task.deleted"
)

// Payload is the notification body sent for each task change.
type Payload struct {
	Action    string  `json:"action"`
	TaskID    string  `json:"task_id"`
	ProjectID string  `json:"project_id"`
	SourceID  *string `json:"source_id"`
	Origin    string  `json:"origin"`
	Stage     string  `json:"stage"`
	Text      string  `json:"text"`
	Completed bool    `json:"completed"`
	UpdatedAt string  `json:"updated_at"`
}

// Notifier fans task change notifications out to a fixed set of URLs.
// A nil Notifier is valid and drops every notification.
type Notifier struct {
	urls   []string
	client *http.Client
	wg     sync.WaitGroup
}

// New builds a Notifier for the given endpoint URLs. URLs may contain
// {task_id} and {project_id} placeholders, filled per notification.
func New(urls []string) *Notifier {
	return &Notifier{
		urls:   urls,
		client: &http.Client{Timeout: defaultTimeout},
	}
}

// TaskChanged dispatches one notification per configured endpoint and
// returns without waiting for delivery.
func (n *Notifier) TaskChanged(action string, task domain.Task) {
	if n == nil || len(n.urls) == 0 {
		return
	}
	payload := Payload{
		Action:    action,
		TaskID:    task.ID,
		ProjectID: task.ProjectID,
		SourceID:  task.SourceID,
		Origin:    string(task.Origin),
		Stage:     string(task.Stage),
		Text:      task.Text,
		Completed: task.Completed,
		UpdatedAt: task.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
	targets := NormalizeTargets(n.urls, payload)
	if len(targets) == 0 {
		return
	}
	body, err := json.Marshal(payload)
	if err != nil {
		log.Printf("webhooks: failed to encode payload: %v", err)
		return
	}
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		n.dispatch(targets, body)
	}()
}

// Wait blocks until all in-flight dispatches have finished.
func (n *Notifier) Wait() {
	if n == nil {
		return
	}
	n.wg.Wait()
}

// NormalizeTargets templates, normalizes, and de-dupes endpoint URLs.
func NormalizeTargets(urls []string, payload Payload) []string {
	if len(urls) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(urls))
	var normalized []string

	for _, raw := range urls {
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" {
			continue
		}
		templated := applyTemplate(trimmed, payload)
		templated = strings.TrimSpace(templated)
		if templated == "" {
			continue
		}
		templated = strings.TrimRight(templated, "/")
		if templated == "" {
			continue
		}
		if !isValidEndpoint(templated) {
			log.Printf("webhooks: skipping invalid url %q", templated)
			continue
		}
		if _, ok := seen[templated]; ok {
			continue
		}
		seen[templated] = struct{}{}
		normalized = append(normalized, templated)
	}

	return normalized
}

func applyTemplate(raw string, payload Payload) string {
	result := strings.ReplaceAll(raw, "{task_id}", payload.TaskID)
	result = strings.ReplaceAll(result, "{project_id}", payload.ProjectID)
	return result
}

func isValidEndpoint(raw string) bool {
	parsed, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return false
	}
	if parsed.Host == "" {
		return false
	}
	return true
}

func (n *Notifier) dispatch(urls []string, body []byte) {
	workers := defaultConcurrency
	if len(urls) < workers {
		workers = len(urls)
	}

	jobs := make(chan string)
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for endpoint := range jobs {
				n.send(endpoint, body)
			}
		}()
	}

	for _, endpoint := range urls {
		jobs <- endpoint
	}
	close(jobs)
	wg.Wait()
}

func (n *Notifier) send(endpoint string, body []byte) {
	req, err := http.NewRequest(http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		log.Printf("webhooks: build request %q failed: %v", endpoint, err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		log.Printf("webhooks: request to %q failed: %v", endpoint, err)
		return
	}
	_ = resp.Body.Close()
}
