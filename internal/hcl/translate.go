package hcl

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"

	"github.com/shipline/shipline/internal/config"
	"github.com/shipline/shipline/internal/schema"
)

// translatePipeline converts the HCL-specific pipeline schema into the
// agnostic model, preserving declaration order.
func translatePipeline(p *schema.Pipeline) *config.Pipeline {
	out := &config.Pipeline{
		Name:        p.Name,
		Description: p.Description,
		Steps:       make([]*config.Step, 0, len(p.Steps)),
	}
	for _, s := range p.Steps {
		out.Steps = append(out.Steps, translateStep(s))
	}
	return out
}

func translateStep(s *schema.Step) *config.Step {
	step := &config.Step{
		Type:      s.Type,
		Name:      s.Name,
		Arguments: hcl.EmptyBody(),
	}
	if s.Arguments != nil {
		step.Arguments = s.Arguments.Body
	}
	if s.Retry != nil {
		step.Retry = &config.Retry{Attempts: s.Retry.Attempts}
	}
	return step
}

// validate enforces the structural invariants the engine relies on: at least
// one step, unique instance names, and sane retry budgets.
func validate(p *config.Pipeline) error {
	if p.Name == "" {
		return fmt.Errorf("pipeline is missing a name label")
	}
	if len(p.Steps) == 0 {
		return fmt.Errorf("pipeline %q defines no steps", p.Name)
	}

	seen := make(map[string]bool, len(p.Steps))
	for _, s := range p.Steps {
		if s.Type == "" || s.Name == "" {
			return fmt.Errorf("pipeline %q contains a step with empty labels", p.Name)
		}
		if seen[s.Name] {
			return fmt.Errorf("pipeline %q declares step name %q more than once", p.Name, s.Name)
		}
		seen[s.Name] = true
		if s.Retry != nil && s.Retry.Attempts < 1 {
			return fmt.Errorf("step %q: retry attempts must be at least 1, got %d", s.Name, s.Retry.Attempts)
		}
	}
	return nil
}
