package webhooks

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/Greg-CLD/stagegate/internal/domain"
)

func TestNormalizeTargets(t *testing.T) {
	payload := Payload{TaskID: "3f8a", ProjectID: "proj-1"}

	raw := []string{
		"http://example.com/hook/{task_id}",
		"http://example.com/hook/{task_id}",
		"  http://example.com/other/  ",
		"ftp://invalid.example.com/hook",
		"not a url",
		"",
		"http://example.com/{project_id}/tasks",
	}

	expected := []string{
		"http://example.com/hook/3f8a",
		"http://example.com/other",
		"http://example.com/proj-1/tasks",
	}

	got := NormalizeTargets(raw, payload)
	if !reflect.DeepEqual(got, expected) {
		t.Fatalf("unexpected urls\nexpected: %v\nactual:   %v", expected, got)
	}
}

func TestTaskChangedDelivers(t *testing.T) {
	calls := make(chan struct {
		path    string
		payload Payload
	}, 2)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		body, _ := io.ReadAll(r.Body)
		var payload Payload
		_ = json.Unmarshal(body, &payload)
		calls <- struct {
			path    string
			payload Payload
		}{path: r.URL.Path, payload: payload}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	sourceID := "sf-7"
	task := domain.Task{
		ID:        "d2c9",
		ProjectID: "proj-1",
		SourceID:  &sourceID,
		Origin:    domain.OriginFactor,
		Stage:     domain.StageDefinition,
		Text:      "Produce the project plan",
		Completed: true,
		UpdatedAt: time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC),
	}

	n := New([]string{server.URL + "/hook/{task_id}", "ftp://invalid"})
	n.TaskChanged(ActionUpdated, task)
	n.Wait()

	select {
	case got := <-calls:
		if got.path != "/hook/d2c9" {
			t.Fatalf("unexpected path: %s", got.path)
		}
		if got.payload.Action != ActionUpdated {
			t.Fatalf("unexpected action: %s", got.payload.Action)
		}
		if got.payload.TaskID != "d2c9" {
			t.Fatalf("unexpected task_id: %s", got.payload.TaskID)
		}
		if got.payload.ProjectID != "proj-1" {
			t.Fatalf("unexpected project_id: %s", got.payload.ProjectID)
		}
		if got.payload.SourceID == nil || *got.payload.SourceID != "sf-7" {
			t.Fatalf("unexpected source_id: %v", got.payload.SourceID)
		}
		if got.payload.Origin != "factor" {
			t.Fatalf("unexpected origin: %s", got.payload.Origin)
		}
		if got.payload.Stage != "definition" {
			t.Fatalf("unexpected stage: %s", got.payload.Stage)
		}
		if !got.payload.Completed {
			t.Fatal("expected completed true")
		}
	default:
		t.Fatal("no webhook delivered")
	}

	select {
	case extra := <-calls:
		t.Fatalf("unexpected extra delivery: %+v", extra)
	default:
	}
}

func TestTaskChangedFanOut(t *testing.T) {
	calls := make(chan string, 8)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls <- r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	})
	a := httptest.NewServer(handler)
	defer a.Close()
	b := httptest.NewServer(handler)
	defer b.Close()

	n := New([]string{a.URL + "/one", b.URL + "/two"})
	n.TaskChanged(ActionCreated, domain.Task{ID: "x", ProjectID: "p"})
	n.Wait()

	if len(calls) != 2 {
		t.Fatalf("expected 2 deliveries, got %d", len(calls))
	}
}

func TestNilNotifierIsSafe(t *testing.T) {
	var n *Notifier
	n.TaskChanged(ActionDeleted, domain.Task{ID: "x"})
	n.Wait()
}

func TestEmptyURLListDropsEverything(t *testing.T) {
	n := New(nil)
	n.TaskChanged(ActionCreated, domain.Task{ID: "x"})
	n.Wait()
}
