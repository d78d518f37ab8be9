package worker

import (
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"workforce/internal/exec"
	"workforce/pkg/models"
)

// ManifestWorker declares one worker in the manifest: its capability
// plus how to invoke it.
type ManifestWorker struct {
	models.Capability `yaml:",inline"`
	// Command is the shell command executed per task.
	Command string `yaml:"command"`
	// WorkDir is the command's working directory, if any.
	WorkDir string `yaml:"work_dir,omitempty"`
	// TimeoutSeconds bounds one invocation; 0 uses the default.
	TimeoutSeconds int `yaml:"timeout_seconds,omitempty"`
}

// Manifest is the on-disk worker declaration file.
type Manifest struct {
	Workers []ManifestWorker `yaml:"workers"`
}

// LoadManifest reads and validates a workers.yaml file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read worker manifest: %w", err)
	}
	return ParseManifest(data)
}

// ParseManifest parses and validates manifest bytes.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse worker manifest: %w", err)
	}

	if len(m.Workers) == 0 {
		return nil, fmt.Errorf("worker manifest declares no workers")
	}

	seen := make(map[string]bool)
	for i, w := range m.Workers {
		if w.Name == "" {
			return nil, fmt.Errorf("worker %d missing name", i)
		}
		if seen[w.Name] {
			return nil, fmt.Errorf("duplicate worker %s", w.Name)
		}
		seen[w.Name] = true
		if w.Command == "" {
			return nil, fmt.Errorf("worker %s missing command", w.Name)
		}
		for _, c := range w.Criteria {
			if !c.Check.Valid() {
				return nil, fmt.Errorf("worker %s criterion %q: unknown check %q", w.Name, c.Name, c.Check)
			}
		}
	}
	return &m, nil
}

// BuildRegistry registers an ExecWorker for every manifest entry.
func BuildRegistry(m *Manifest, runner exec.CommandRunner, logger *zap.Logger) (*Registry, error) {
	registry := NewRegistry()
	for _, mw := range m.Workers {
		w, err := NewExecWorker(
			mw.Name,
			mw.Command,
			mw.WorkDir,
			mw.CostPerTask,
			time.Duration(mw.TimeoutSeconds)*time.Second,
			runner,
			logger,
		)
		if err != nil {
			return nil, err
		}
		if err := registry.Register(mw.Capability, w); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

// SampleManifest is written by `workforce init` as a starting point.
// The worker set mirrors a small business workforce: specialist workers
// in wave one and a synthesis worker that aggregates their outputs.
const SampleManifest = `# Worker declarations for workforce.
# Each worker runs a shell command per task; the task input arrives on
# stdin and in $WORKFORCE_TASK_INPUT. Output is scored against the
# declared criteria (GREEN >= 90%, YELLOW >= 70%, RED below).
workers:
  - name: research
    description: Market research and competitive intelligence
    keywords: [research, market, competitor, analyze, investigate]
    categories: [research]
    parallel_safe: true
    resources: [web]
    cost_per_task: 2.5
    command: "./workers/research.sh"
    criteria:
      - name: non-empty output
        check: non_empty
        blocking: true
      - name: substantial findings
        check: min_words
        arg: "50"

  - name: marketing
    description: Campaign planning and content
    keywords: [marketing, campaign, content, launch, audience]
    categories: [marketing, ads]
    parallel_safe: false
    resources: [crm]
    cost_per_task: 3.0
    command: "./workers/marketing.sh"
    criteria:
      - name: non-empty output
        check: non_empty
        blocking: true

  - name: sales
    description: Outreach and lead generation
    keywords: [sales, outreach, leads, prospects, pipeline]
    categories: [sales]
    parallel_safe: false
    resources: [crm]
    cost_per_task: 3.0
    command: "./workers/sales.sh"
    criteria:
      - name: non-empty output
        check: non_empty
        blocking: true

  - name: development
    description: Product development tasks
    keywords: [build, implement, develop, fix, deploy, feature]
    categories: [development]
    parallel_safe: true
    cost_per_task: 5.0
    command: "./workers/development.sh"
    criteria:
      - name: non-empty output
        check: non_empty
        blocking: true
      - name: no error marker
        check: no_error_marker
        blocking: true

  - name: analytics
    description: Metrics and reporting
    keywords: [metrics, report, analytics, kpi, measure]
    categories: [analytics]
    parallel_safe: true
    cost_per_task: 1.5
    command: "./workers/analytics.sh"
    criteria:
      - name: non-empty output
        check: non_empty
        blocking: true

  - name: synthesis
    description: Aggregates upstream worker outputs into one deliverable
    synthesis: true
    parallel_safe: true
    cost_per_task: 1.0
    command: "./workers/synthesis.sh"
    criteria:
      - name: non-empty output
        check: non_empty
        blocking: true
      - name: substantial summary
        check: min_words
        arg: "30"
`
