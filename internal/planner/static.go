// Package planner provides the planner-oracle contract the scheduler
// accepts input from, plus a minimal reference implementation.
//
// The real planner — turning free-form requirements text into a task
// graph — is explicitly out of scope; StaticPlanner exists so the CLI and
// tests have something concrete to call.
package planner

import (
	"context"
	"fmt"
	"os"

	"github.com/harrison/parallelorc/internal/models"
	"gopkg.in/yaml.v3"
)

// Planner turns requirements text into a task plan. The scheduler accepts
// whatever task count the planner chooses and validates the result itself.
type Planner interface {
	Plan(ctx context.Context, requirements string, maxExecutors int) (int, *models.Plan, error)
}

// staticTaskFile is the on-disk shape StaticPlanner expects: requirements
// is treated as a path to a YAML file listing tasks and dependencies.
type staticTaskFile struct {
	Tasks []struct {
		ID                string            `yaml:"id"`
		Name              string            `yaml:"name"`
		Description       string            `yaml:"description"`
		Priority          int               `yaml:"priority"`
		EstimatedDuration float64           `yaml:"estimated_duration_seconds"`
		DependsOn         []string          `yaml:"depends_on"`
		Payload           map[string]string `yaml:"payload"`
	} `yaml:"tasks"`
}

// StaticPlanner reads a small YAML task list from a file path instead of
// interpreting free-form requirements text.
type StaticPlanner struct{}

func NewStaticPlanner() *StaticPlanner { return &StaticPlanner{} }

// Plan treats requirements as a file path to a YAML task list and parses
// it into a Plan. maxExecutors becomes the Plan's ExecutorBudget.
func (p *StaticPlanner) Plan(ctx context.Context, requirements string, maxExecutors int) (int, *models.Plan, error) {
	data, err := os.ReadFile(requirements)
	if err != nil {
		return 0, nil, fmt.Errorf("read task file %q: %w", requirements, err)
	}

	var file staticTaskFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return 0, nil, fmt.Errorf("parse task file %q: %w", requirements, err)
	}

	plan := &models.Plan{
		Tasks:        make([]models.Task, 0, len(file.Tasks)),
		Dependencies: make(map[string][]string, len(file.Tasks)),
		ExecutorBudget: maxExecutors,
	}

	for _, t := range file.Tasks {
		priority := t.Priority
		if priority == 0 {
			priority = models.PriorityDefault
		}

		payload := make(map[string]interface{}, len(t.Payload))
		for k, v := range t.Payload {
			payload[k] = v
		}

		plan.Tasks = append(plan.Tasks, models.Task{
			ID:                t.ID,
			Name:              t.Name,
			Description:       t.Description,
			Priority:          priority,
			EstimatedDuration: t.EstimatedDuration,
			Payload:           payload,
		})
		if len(t.DependsOn) > 0 {
			plan.Dependencies[t.ID] = t.DependsOn
		}
	}

	return len(plan.Tasks), plan, nil
}
