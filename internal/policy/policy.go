// Package policy resolves a finished run into a final percent and task
// status. The partial-success rule (nonzero exit but artifacts produced) is a
// business choice, so it is configurable rather than hard-coded.
package policy

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ShayCichocki/drover/pkg/models"
)

// Outcome is a resolved final state for one execution attempt.
type Outcome struct {
	// Percent is the final progress percent to record.
	Percent int
	// Status is the final task status.
	Status models.TaskStatus
}

// Policy maps run results to outcomes.
type Policy struct {
	// SuccessPercent is recorded when the program exits zero.
	SuccessPercent int `yaml:"success_percent"`
	// PartialPercent is recorded on nonzero exit when the partial rule
	// applies.
	PartialPercent int `yaml:"partial_percent"`
	// FailurePercent is recorded on nonzero exit otherwise.
	FailurePercent int `yaml:"failure_percent"`
	// PartialNeedsArtifacts gates the partial rule on at least one
	// artifact having been produced.
	PartialNeedsArtifacts bool `yaml:"partial_needs_artifacts"`
}

// Default returns the stock policy: 100 on success, 50 for a failed run that
// still produced artifacts, 0 otherwise.
func Default() Policy {
	return Policy{
		SuccessPercent:        100,
		PartialPercent:        50,
		FailurePercent:        0,
		PartialNeedsArtifacts: true,
	}
}

// Load reads a policy from a YAML file. Missing keys keep their defaults.
func Load(path string) (Policy, error) {
	p := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return p, fmt.Errorf("read policy file: %w", err)
	}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("parse policy file %s: %w", path, err)
	}

	if err := p.validate(); err != nil {
		return Default(), fmt.Errorf("policy file %s: %w", path, err)
	}
	return p, nil
}

func (p Policy) validate() error {
	for _, v := range []int{p.SuccessPercent, p.PartialPercent, p.FailurePercent} {
		if v < 0 || v > 100 {
			return fmt.Errorf("percent %d out of range [0,100]", v)
		}
	}
	return nil
}

// Resolve maps an exit code and artifact count to the final outcome.
// Exit zero is a completed run; anything else is failed, with the percent
// reflecting whether the run still produced something useful.
func (p Policy) Resolve(exitCode, artifactCount int) Outcome {
	if exitCode == 0 {
		return Outcome{Percent: p.SuccessPercent, Status: models.TaskStatusCompleted}
	}
	if artifactCount > 0 || !p.PartialNeedsArtifacts {
		return Outcome{Percent: p.PartialPercent, Status: models.TaskStatusFailed}
	}
	return Outcome{Percent: p.FailurePercent, Status: models.TaskStatusFailed}
}
