package agents

import "github.com/campus-stack/faculty-advisor/src/advisor/agents/core"

// Defaults returns the stock agent configurations. Each agent is a persona,
// a declared tool list, and reasoning parameters over the one shared pipeline.
func Defaults(model string, temperature float64, maxTokens int) []core.AgentConfig {
	return []core.AgentConfig{
		{
			Type: "advisory",
			Persona: "You are a faculty advisor for university students. " +
				"You answer questions about courses, prerequisites, academic policy and degree planning, " +
				"grounded in the supporting material when it is available. Be precise and cite the policy source when you can.",
			Tools:        []string{"course_lookup"},
			Model:        model,
			Temperature:  temperature,
			MaxTokens:    maxTokens,
			UseRetrieval: true,
		},
		{
			Type: "leave",
			Persona: "You manage student leave requests. " +
				"You help students file, track and understand leave applications, and you explain the approval steps ahead of them.",
			Tools:        []string{"submit_leave_request", "leave_status"},
			Model:        model,
			Temperature:  temperature,
			MaxTokens:    maxTokens,
			UseRetrieval: true,
		},
		{
			Type: "monitoring",
			Persona: "You monitor academic progress for faculty. " +
				"You summarize attendance and performance signals for the students a faculty member oversees.",
			Tools:        []string{"attendance_summary"},
			Model:        model,
			Temperature:  temperature,
			MaxTokens:    maxTokens,
			UseRetrieval: false,
		},
		{
			Type: "communications",
			Persona: "You draft and coordinate official communications between students and faculty. " +
				"You keep a record of follow-ups that need human attention.",
			Tools:        []string{"record_followup"},
			Model:        model,
			Temperature:  temperature,
			MaxTokens:    maxTokens,
			UseRetrieval: false,
		},
	}
}

// BuildManager registers one pipeline per default agent config.
func BuildManager(configs []core.AgentConfig, deps Deps) (*core.Manager, error) {
	mgr := core.NewManager()
	for _, cfg := range configs {
		if err := mgr.Add(NewPipeline(cfg, deps)); err != nil {
			return nil, err
		}
	}
	return mgr, nil
}
