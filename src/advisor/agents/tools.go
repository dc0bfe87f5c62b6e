package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/campus-stack/faculty-advisor/src/advisor/auth"
	"github.com/campus-stack/faculty-advisor/src/advisor/session"
)

// ToolRequest carries what a tool needs: who is asking, which session state
// space it may touch, and the arguments the reasoner produced.
type ToolRequest struct {
	Identity auth.Identity
	Key      session.Key
	Args     map[string]any
}

// ToolFunc executes one tool call.
type ToolFunc func(ctx context.Context, req ToolRequest) (any, error)

// ToolSpec describes a registered tool. Requires lists tool names that must
// have succeeded earlier in the same call for this tool to run.
type ToolSpec struct {
	Name        string
	Description string
	Requires    []string
	Run         ToolFunc
}

// ToolRegistry maps tool names to their implementations.
type ToolRegistry struct {
	mu    sync.RWMutex
	tools map[string]ToolSpec
}

func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{tools: map[string]ToolSpec{}}
}

func (r *ToolRegistry) Register(spec ToolSpec) error {
	if spec.Name == "" || spec.Run == nil {
		return fmt.Errorf("tools: spec requires name and run func")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[spec.Name]; exists {
		return fmt.Errorf("tools: %s already registered", spec.Name)
	}
	r.tools[spec.Name] = spec
	return nil
}

func (r *ToolRegistry) Get(name string) (ToolSpec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	spec, ok := r.tools[name]
	return spec, ok
}

func argString(args map[string]any, key string) string {
	if args == nil {
		return ""
	}
	if v, ok := args[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

func argInt(args map[string]any, key string) int {
	if args == nil {
		return 0
	}
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return 0
}

// Small static catalog; a real deployment would load this from the registrar.
var courseCatalog = map[string]string{
	"15CSE201": "Data Structures and Algorithms — core, 4 credits, semester 3",
	"15CSE301": "Operating Systems — core, 4 credits, semester 5",
	"15CSE332": "Machine Learning — elective, 3 credits, semester 6",
	"15MAT204": "Probability and Statistics — core, 3 credits, semester 4",
}

// RegisterBuiltins wires the default tool set. Every builtin mutates session
// state only through the manager.
func RegisterBuiltins(reg *ToolRegistry, sessions *session.Manager) error {
	specs := []ToolSpec{
		{
			Name:        "course_lookup",
			Description: "Look up a course by its code",
			Run: func(ctx context.Context, req ToolRequest) (any, error) {
				code := strings.ToUpper(argString(req.Args, "course"))
				if code == "" {
					return nil, fmt.Errorf("course_lookup: missing course argument")
				}
				info, ok := courseCatalog[code]
				if !ok {
					return nil, fmt.Errorf("course_lookup: unknown course %s", code)
				}
				return map[string]string{"course": code, "info": info}, nil
			},
		},
		{
			Name:        "submit_leave_request",
			Description: "Open a leave request workflow and submit it for review",
			Run: func(ctx context.Context, req ToolRequest) (any, error) {
				days := argInt(req.Args, "days")
				if days <= 0 {
					return nil, fmt.Errorf("submit_leave_request: days must be positive")
				}
				payload := map[string]any{
					"days":   days,
					"reason": argString(req.Args, "reason"),
					"email":  req.Identity.Email,
				}
				id, err := sessions.StartWorkflow(ctx, req.Key, session.WorkflowLeaveRequest, payload)
				if err != nil {
					return nil, err
				}
				if err := sessions.AdvanceWorkflow(ctx, req.Key, id, session.StepSubmitted, nil); err != nil {
					return nil, err
				}
				return map[string]string{"workflow_id": id, "step": session.StepSubmitted}, nil
			},
		},
		{
			Name:        "leave_status",
			Description: "Report the caller's in-flight leave requests",
			Requires:    nil,
			Run: func(ctx context.Context, req ToolRequest) (any, error) {
				active, err := sessions.ActiveWorkflows(ctx, req.Key)
				if err != nil {
					return nil, err
				}
				out := []map[string]string{}
				for _, wf := range active {
					if wf.Kind != session.WorkflowLeaveRequest {
						continue
					}
					out = append(out, map[string]string{"workflow_id": wf.ID, "step": wf.Step})
				}
				return out, nil
			},
		},
		{
			Name:        "record_followup",
			Description: "Record a follow-up note for the communications team",
			Run: func(ctx context.Context, req ToolRequest) (any, error) {
				note := argString(req.Args, "note")
				if note == "" {
					return nil, fmt.Errorf("record_followup: missing note argument")
				}
				var notes []string
				raw, err := sessions.AgentContext(ctx, req.Key, "communications")
				if err != nil {
					return nil, err
				}
				if raw != nil {
					_ = json.Unmarshal(raw, &notes)
				}
				notes = append(notes, note)
				if err := sessions.SetAgentContext(ctx, req.Key, "communications", notes); err != nil {
					return nil, err
				}
				return map[string]any{"recorded": note, "total": len(notes)}, nil
			},
		},
		{
			Name:        "attendance_summary",
			Description: "Summarize attendance figures for the monitored student",
			Run: func(ctx context.Context, req ToolRequest) (any, error) {
				student := argString(req.Args, "student")
				if student == "" {
					student = req.Identity.UserID
				}
				// Figures come from the session cache when a monitoring sync
				// has populated it; otherwise report that no data is loaded.
				var figures map[string]any
				hit, err := sessions.CacheGet(ctx, req.Key, session.CacheKey("attendance", student), &figures)
				if err != nil {
					return nil, err
				}
				if !hit {
					return map[string]any{"student": student, "status": "no attendance data loaded"}, nil
				}
				return map[string]any{"student": student, "figures": figures}, nil
			},
		},
	}
	for _, spec := range specs {
		if err := reg.Register(spec); err != nil {
			return err
		}
	}
	return nil
}
