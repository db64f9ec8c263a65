package factors

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Greg-CLD/stagegate/internal/domain"
)

func TestLoadEmbedded(t *testing.T) {
	catalog, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if catalog.Len() == 0 {
		t.Fatal("embedded catalog is empty")
	}

	// Every built-in factor must pass the same validation tasks do
	for _, f := range catalog.All() {
		if f.ID == "" || f.Text == "" {
			t.Errorf("factor %+v missing id or text", f)
		}
		if err := domain.ValidateStage(f.Stage); err != nil {
			t.Errorf("factor %s: %v", f.ID, err)
		}
	}
}

func TestLookup(t *testing.T) {
	catalog, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	f, ok := catalog.Lookup("sf-7")
	if !ok {
		t.Fatal("sf-7 not found in catalog")
	}
	if f.ID != "sf-7" {
		t.Errorf("Lookup returned %s, want sf-7", f.ID)
	}
	if f.Stage != string(domain.StageDefinition) {
		t.Errorf("sf-7 stage = %s, want definition", f.Stage)
	}

	if _, ok := catalog.Lookup("sf-9999"); ok {
		t.Error("Lookup found a factor that does not exist")
	}
}

func TestByStage(t *testing.T) {
	catalog, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	total := 0
	for _, stage := range domain.Stages {
		fs := catalog.ByStage(stage)
		if len(fs) == 0 {
			t.Errorf("no factors for stage %s", stage)
		}
		for _, f := range fs {
			if f.Stage != string(stage) {
				t.Errorf("ByStage(%s) returned factor %s with stage %s", stage, f.ID, f.Stage)
			}
		}
		total += len(fs)
	}
	if total != catalog.Len() {
		t.Errorf("stages cover %d factors, catalog has %d", total, catalog.Len())
	}
}

func TestStagesOrdered(t *testing.T) {
	catalog, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	stages := catalog.Stages()
	for i := 1; i < len(stages); i++ {
		if stages[i-1].Rank() >= stages[i].Rank() {
			t.Errorf("stages out of lifecycle order: %v", stages)
		}
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "factors.yaml")
	content := `factors:
  - id: custom-1
    stage: delivery
    text: Custom factor from file
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write factors file: %v", err)
	}

	catalog, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if catalog.Len() != 1 {
		t.Errorf("catalog has %d factors, want 1", catalog.Len())
	}
	if _, ok := catalog.Lookup("custom-1"); !ok {
		t.Error("custom-1 not found")
	}
}

func TestLoadFileEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "factors.yaml")
	content := `factors:
  - id: env-1
    stage: closure
    text: Factor from the override file
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write factors file: %v", err)
	}

	t.Setenv("STAGEGATE_FACTORS_FILE", path)

	catalog, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if _, ok := catalog.Lookup("env-1"); !ok {
		t.Error("override catalog not loaded")
	}
	if _, ok := catalog.Lookup("sf-1"); ok {
		t.Error("embedded catalog loaded despite override")
	}
}

func TestParseRejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"empty", `factors: []`},
		{"missing id", "factors:\n  - stage: delivery\n    text: no id\n"},
		{"missing text", "factors:\n  - id: f-1\n    stage: delivery\n"},
		{"bad stage", "factors:\n  - id: f-1\n    stage: limbo\n    text: bad stage\n"},
		{"duplicate id", "factors:\n  - id: f-1\n    stage: delivery\n    text: first\n  - id: f-1\n    stage: closure\n    text: second\n"},
		{"not yaml", `{{{{`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parse([]byte(tt.content)); err == nil {
				t.Errorf("parse accepted invalid catalog %q", tt.name)
			}
		})
	}
}
