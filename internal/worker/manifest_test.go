package worker

import (
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestParseSampleManifest(t *testing.T) {
	m, err := ParseManifest([]byte(SampleManifest))
	if err != nil {
		t.Fatalf("parse sample manifest: %v", err)
	}

	if len(m.Workers) != 6 {
		t.Fatalf("sample manifest has %d workers, want 6", len(m.Workers))
	}

	var synthesis *ManifestWorker
	for i := range m.Workers {
		if m.Workers[i].Synthesis {
			synthesis = &m.Workers[i]
		}
	}
	if synthesis == nil {
		t.Fatal("sample manifest missing a synthesis worker")
	}
	if synthesis.Name != "synthesis" {
		t.Errorf("synthesis worker name = %s", synthesis.Name)
	}
}

func TestParseManifestValidation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			"no workers",
			"workers: []",
			"no workers",
		},
		{
			"missing name",
			"workers:\n  - command: run.sh",
			"missing name",
		},
		{
			"missing command",
			"workers:\n  - name: research",
			"missing command",
		},
		{
			"duplicate name",
			"workers:\n  - name: a\n    command: x\n  - name: a\n    command: y",
			"duplicate",
		},
		{
			"unknown check",
			"workers:\n  - name: a\n    command: x\n    criteria:\n      - name: c\n        check: frobnicate",
			"unknown check",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseManifest([]byte(tt.yaml))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not contain %q", err, tt.want)
			}
		})
	}
}

func TestBuildRegistry(t *testing.T) {
	m, err := ParseManifest([]byte(SampleManifest))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	registry, err := BuildRegistry(m, nil, zap.NewNop())
	if err != nil {
		t.Fatalf("build registry: %v", err)
	}

	if len(registry.Capabilities()) != 6 {
		t.Fatalf("registry has %d capabilities, want 6", len(registry.Capabilities()))
	}
	if _, ok := registry.Get("research"); !ok {
		t.Error("research worker not registered")
	}
	cap, ok := registry.Capability("research")
	if !ok {
		t.Fatal("research capability not registered")
	}
	if !cap.Matches("run market research on competitors") {
		t.Error("research capability should match a research goal")
	}
	if cap.CostPerTask != 2.5 {
		t.Errorf("research cost = %v, want 2.5", cap.CostPerTask)
	}

	if _, ok := registry.Synthesizer(); !ok {
		t.Error("expected a synthesizer in the sample registry")
	}

	if got := registry.Route("plan a marketing campaign"); len(got) == 0 {
		t.Error("expected marketing goal to route")
	}
}
