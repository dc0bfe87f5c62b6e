package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// ErrUnknownAgent is returned when a caller asks for an unregistered agent.
var ErrUnknownAgent = errors.New("agents: unknown agent")

// Agent is one configured pipeline instance the manager can dispatch to.
type Agent interface {
	Type() string
	Synopsis() string
	Config() AgentConfig
	Process(ctx context.Context, req Request) Response
}

// Descriptor captures static metadata about a registered agent.
type Descriptor struct {
	Type     string   `json:"type"`
	Synopsis string   `json:"synopsis"`
	Tools    []string `json:"tools,omitempty"`
}

// Manager coordinates registration and dispatch for agents.
type Manager struct {
	mu         sync.RWMutex
	agents     map[string]Agent
	descriptor map[string]Descriptor
}

// NewManager returns an empty manager ready for registration.
func NewManager() *Manager {
	return &Manager{
		agents:     map[string]Agent{},
		descriptor: map[string]Descriptor{},
	}
}

// Add registers an agent under its type identifier.
func (m *Manager) Add(agent Agent) error {
	if agent == nil {
		return fmt.Errorf("agents.Manager: nil agent provided")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	name := normalizeKey(agent.Type())
	if name == "" {
		return fmt.Errorf("agents.Manager: agent missing type")
	}
	if _, exists := m.agents[name]; exists {
		return fmt.Errorf("agents.Manager: agent %q already registered", agent.Type())
	}

	m.agents[name] = agent
	m.descriptor[name] = Descriptor{
		Type:     agent.Type(),
		Synopsis: agent.Synopsis(),
		Tools:    cloneStrings(agent.Config().Tools),
	}
	return nil
}

// Process dispatches a request to the named agent.
func (m *Manager) Process(ctx context.Context, agentType string, req Request) (Response, error) {
	agent, err := m.Agent(agentType)
	if err != nil {
		return Response{}, err
	}
	return agent.Process(ctx, req), nil
}

// Agent fetches a registered agent by type.
func (m *Manager) Agent(agentType string) (Agent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	agent := m.agents[normalizeKey(agentType)]
	if agent == nil {
		return nil, ErrUnknownAgent
	}
	return agent, nil
}

// Describe returns metadata for all registered agents.
func (m *Manager) Describe() []Descriptor {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Descriptor, 0, len(m.descriptor))
	for _, desc := range m.descriptor {
		out = append(out, desc)
	}
	return out
}

func normalizeKey(name string) string {
	return strings.TrimSpace(strings.ToLower(name))
}

func cloneStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
