package session

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/OneOfOne/xxhash"
	"github.com/google/uuid"

	"github.com/campus-stack/faculty-advisor/src/advisor/types"
)

// Key addresses one isolated state space. Two different users, or two
// different sessions of the same user, never share state.
type Key struct {
	UserID    string
	SessionID string
}

func (k Key) String() string {
	return "session:" + k.UserID + ":" + k.SessionID
}

// Message roles within conversation history.
const (
	RoleUser  = "user"
	RoleAgent = "agent"
)

// Message is one conversation history entry. History is append-only and
// FIFO-bounded.
type Message struct {
	Timestamp time.Time         `json:"timestamp"`
	AgentType string            `json:"agent_type"`
	Role      string            `json:"role"`
	Content   string            `json:"content"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// CacheEntry is a per-session cached value with its own expiry inside the
// space's TTL.
type CacheEntry struct {
	Value     json.RawMessage `json:"value"`
	ExpiresAt time.Time       `json:"expires_at"`
}

// Data is the full state space stored under one key.
type Data struct {
	History       []Message                  `json:"history"`
	AgentContexts map[string]json.RawMessage `json:"agent_contexts,omitempty"`
	Workflows     map[string]Workflow        `json:"workflows,omitempty"`
	Preferences   map[string]string          `json:"preferences,omitempty"`
	Cache         map[string]CacheEntry      `json:"cache,omitempty"`
	CreatedAt     time.Time                  `json:"created_at"`
	UpdatedAt     time.Time                  `json:"updated_at"`
}

// Status summarizes a state space without exposing its contents.
type Status struct {
	Exists     bool          `json:"exists"`
	TTL        time.Duration `json:"-"`
	TTLSeconds int64         `json:"ttl_seconds"`
	Messages   int           `json:"messages"`
	Workflows  int           `json:"workflows"`
	Active     int           `json:"active_workflows"`
}

// Manager provides the typed read-modify-write contract over the store. It is
// the sole mutation path for session state: a per-key mutex serializes
// concurrent read-modify-write sequences so appends are never lost. The TTL is
// sliding; every write re-arms it.
type Manager struct {
	store      Store
	ttl        time.Duration
	historyMax int

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewManager(store Store, ttl time.Duration, historyMax int) *Manager {
	if historyMax <= 0 {
		historyMax = 50
	}
	return &Manager{
		store:      store,
		ttl:        ttl,
		historyMax: historyMax,
		locks:      map[string]*sync.Mutex{},
	}
}

func (m *Manager) keyLock(key Key) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[key.String()]
	if !ok {
		l = &sync.Mutex{}
		m.locks[key.String()] = l
	}
	return l
}

func (m *Manager) load(ctx context.Context, key Key) (*Data, error) {
	raw, err := m.store.Get(ctx, key.String())
	if err != nil {
		return nil, err
	}
	var data Data
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", key, err)
	}
	return &data, nil
}

func (m *Manager) save(ctx context.Context, key Key, data *Data) error {
	data.UpdatedAt = time.Now().UTC()
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", key, err)
	}
	return m.store.Set(ctx, key.String(), raw, m.ttl)
}

// update runs fn inside the per-key critical section. When createIfMissing is
// false and no space exists, ErrNoSpace is returned without calling fn.
func (m *Manager) update(ctx context.Context, key Key, createIfMissing bool, fn func(*Data) error) error {
	lock := m.keyLock(key)
	lock.Lock()
	defer lock.Unlock()

	data, err := m.load(ctx, key)
	if err == ErrNoSpace {
		if !createIfMissing {
			return ErrNoSpace
		}
		data = newData()
	} else if err != nil {
		return err
	}
	if err := fn(data); err != nil {
		return err
	}
	return m.save(ctx, key, data)
}

func newData() *Data {
	return &Data{
		History:       []Message{},
		AgentContexts: map[string]json.RawMessage{},
		Workflows:     map[string]Workflow{},
		Preferences:   map[string]string{},
		Cache:         map[string]CacheEntry{},
		CreatedAt:     time.Now().UTC(),
	}
}

// CreateSpace ensures a state space exists for the key. Idempotent: an
// existing space is returned unchanged.
func (m *Manager) CreateSpace(ctx context.Context, key Key) (*Data, error) {
	lock := m.keyLock(key)
	lock.Lock()
	defer lock.Unlock()

	data, err := m.load(ctx, key)
	if err == nil {
		return data, nil
	}
	if err != ErrNoSpace {
		return nil, err
	}
	data = newData()
	if err := m.save(ctx, key, data); err != nil {
		return nil, err
	}
	return data, nil
}

// AppendMessage appends to conversation history, evicting the oldest entries
// beyond the history bound. Creates the space if needed.
func (m *Manager) AppendMessage(ctx context.Context, key Key, msg Message) error {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	return m.update(ctx, key, true, func(d *Data) error {
		d.History = append(d.History, msg)
		if len(d.History) > m.historyMax {
			d.History = d.History[len(d.History)-m.historyMax:]
		}
		return nil
	})
}

// History returns the most recent limit messages in chronological order. A
// missing space yields an empty slice, not an error. limit <= 0 means all.
func (m *Manager) History(ctx context.Context, key Key, limit int) ([]Message, error) {
	data, err := m.load(ctx, key)
	if err == ErrNoSpace {
		return []Message{}, nil
	}
	if err != nil {
		return nil, err
	}
	history := data.History
	if limit > 0 && len(history) > limit {
		history = history[len(history)-limit:]
	}
	out := make([]Message, len(history))
	copy(out, history)
	return out, nil
}

// AgentContext returns the opaque per-agent state, or nil when unset.
func (m *Manager) AgentContext(ctx context.Context, key Key, agentType string) (json.RawMessage, error) {
	data, err := m.load(ctx, key)
	if err == ErrNoSpace {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return data.AgentContexts[agentType], nil
}

// SetAgentContext stores opaque per-agent scratch state.
func (m *Manager) SetAgentContext(ctx context.Context, key Key, agentType string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode agent context: %w", err)
	}
	return m.update(ctx, key, true, func(d *Data) error {
		if d.AgentContexts == nil {
			d.AgentContexts = map[string]json.RawMessage{}
		}
		d.AgentContexts[agentType] = raw
		return nil
	})
}

// Preference returns a stored preference value, "" when unset.
func (m *Manager) Preference(ctx context.Context, key Key, name string) (string, error) {
	data, err := m.load(ctx, key)
	if err == ErrNoSpace {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return data.Preferences[name], nil
}

// SetPreference stores a user preference in the space.
func (m *Manager) SetPreference(ctx context.Context, key Key, name, value string) error {
	return m.update(ctx, key, true, func(d *Data) error {
		if d.Preferences == nil {
			d.Preferences = map[string]string{}
		}
		d.Preferences[name] = value
		return nil
	})
}

// CacheKey builds a deterministic cache key from its parts.
func CacheKey(parts ...string) string {
	h := xxhash.New64()
	for _, p := range parts {
		_, _ = h.WriteString(p)
		_, _ = h.WriteString("\x00")
	}
	return strconv.FormatUint(h.Sum64(), 16)
}

// CachePut stores a value in the session cache with its own expiry.
func (m *Manager) CachePut(ctx context.Context, key Key, cacheKey string, value any, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode cache value: %w", err)
	}
	return m.update(ctx, key, true, func(d *Data) error {
		if d.Cache == nil {
			d.Cache = map[string]CacheEntry{}
		}
		d.Cache[cacheKey] = CacheEntry{Value: raw, ExpiresAt: time.Now().UTC().Add(ttl)}
		return nil
	})
}

// CacheGet decodes a cached value into out. Returns false on miss or expiry.
func (m *Manager) CacheGet(ctx context.Context, key Key, cacheKey string, out any) (bool, error) {
	data, err := m.load(ctx, key)
	if err == ErrNoSpace {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	entry, ok := data.Cache[cacheKey]
	if !ok || time.Now().After(entry.ExpiresAt) {
		return false, nil
	}
	if err := json.Unmarshal(entry.Value, out); err != nil {
		return false, fmt.Errorf("decode cache value: %w", err)
	}
	return true, nil
}

// StartWorkflow opens a new workflow of the given kind at its initial step.
func (m *Manager) StartWorkflow(ctx context.Context, key Key, kind string, payload map[string]any) (string, error) {
	id := uuid.NewString()
	now := time.Now().UTC()
	err := m.update(ctx, key, true, func(d *Data) error {
		if d.Workflows == nil {
			d.Workflows = map[string]Workflow{}
		}
		d.Workflows[id] = Workflow{
			ID:        id,
			Kind:      kind,
			Step:      initialStep(kind),
			Payload:   payload,
			Status:    WorkflowActive,
			StartedAt: now,
			UpdatedAt: now,
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// AdvanceWorkflow moves an active workflow to the given step, merging payload.
// Advancing an absent or finished workflow fails with not_found; an illegal
// transition with validation.
func (m *Manager) AdvanceWorkflow(ctx context.Context, key Key, id, step string, payload map[string]any) error {
	err := m.update(ctx, key, false, func(d *Data) error {
		wf, ok := d.Workflows[id]
		if !ok || wf.Status != WorkflowActive {
			return types.E(types.KindNotFound, "workflow %s not active", id)
		}
		if !transitionAllowed(wf.Kind, wf.Step, step) {
			return types.E(types.KindValidation, "workflow %s: illegal transition %s -> %s", wf.Kind, wf.Step, step)
		}
		wf.Step = step
		if wf.Payload == nil {
			wf.Payload = map[string]any{}
		}
		for k, v := range payload {
			wf.Payload[k] = v
		}
		wf.UpdatedAt = time.Now().UTC()
		d.Workflows[id] = wf
		return nil
	})
	if err == ErrNoSpace {
		return types.E(types.KindNotFound, "workflow %s: no session state", id)
	}
	return err
}

// CompleteWorkflow marks an active workflow completed.
func (m *Manager) CompleteWorkflow(ctx context.Context, key Key, id string) error {
	return m.finishWorkflow(ctx, key, id, WorkflowCompleted)
}

// AbortWorkflow marks an active workflow aborted.
func (m *Manager) AbortWorkflow(ctx context.Context, key Key, id string) error {
	return m.finishWorkflow(ctx, key, id, WorkflowAborted)
}

func (m *Manager) finishWorkflow(ctx context.Context, key Key, id string, status WorkflowStatus) error {
	err := m.update(ctx, key, false, func(d *Data) error {
		wf, ok := d.Workflows[id]
		if !ok || wf.Status != WorkflowActive {
			return types.E(types.KindNotFound, "workflow %s not active", id)
		}
		wf.Status = status
		wf.UpdatedAt = time.Now().UTC()
		d.Workflows[id] = wf
		return nil
	})
	if err == ErrNoSpace {
		return types.E(types.KindNotFound, "workflow %s: no session state", id)
	}
	return err
}

// Workflow fetches one workflow by id.
func (m *Manager) Workflow(ctx context.Context, key Key, id string) (Workflow, error) {
	data, err := m.load(ctx, key)
	if err == ErrNoSpace {
		return Workflow{}, types.E(types.KindNotFound, "workflow %s: no session state", id)
	}
	if err != nil {
		return Workflow{}, err
	}
	wf, ok := data.Workflows[id]
	if !ok {
		return Workflow{}, types.E(types.KindNotFound, "workflow %s not found", id)
	}
	return wf, nil
}

// ActiveWorkflows lists workflows still in flight, oldest first.
func (m *Manager) ActiveWorkflows(ctx context.Context, key Key) ([]Workflow, error) {
	data, err := m.load(ctx, key)
	if err == ErrNoSpace {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []Workflow
	for _, wf := range data.Workflows {
		if wf.Status == WorkflowActive {
			out = append(out, wf)
		}
	}
	sortWorkflows(out)
	return out, nil
}

func sortWorkflows(ws []Workflow) {
	for i := 1; i < len(ws); i++ {
		for j := i; j > 0 && ws[j].StartedAt.Before(ws[j-1].StartedAt); j-- {
			ws[j], ws[j-1] = ws[j-1], ws[j]
		}
	}
}

// Status reports TTL remaining and summary counts for the key.
func (m *Manager) Status(ctx context.Context, key Key) (Status, error) {
	data, err := m.load(ctx, key)
	if err == ErrNoSpace {
		return Status{}, nil
	}
	if err != nil {
		return Status{}, err
	}
	ttl, err := m.store.TTL(ctx, key.String())
	if err != nil && err != ErrNoSpace {
		return Status{}, err
	}
	st := Status{
		Exists:     true,
		TTL:        ttl,
		TTLSeconds: int64(ttl / time.Second),
		Messages:   len(data.History),
		Workflows:  len(data.Workflows),
	}
	for _, wf := range data.Workflows {
		if wf.Status == WorkflowActive {
			st.Active++
		}
	}
	return st, nil
}

// Touch re-arms the sliding TTL without modifying contents. A missing space is
// not an error.
func (m *Manager) Touch(ctx context.Context, key Key) error {
	err := m.store.Expire(ctx, key.String(), m.ttl)
	if err == ErrNoSpace {
		return nil
	}
	return err
}

// Clear deletes the entire state space for the key. Used on logout.
func (m *Manager) Clear(ctx context.Context, key Key) error {
	lock := m.keyLock(key)
	lock.Lock()
	defer lock.Unlock()
	return m.store.Del(ctx, key.String())
}

// Validate rejects keys with empty or separator-bearing components, which
// would otherwise alias another key's storage slot.
func (k Key) Validate() error {
	if k.UserID == "" || k.SessionID == "" {
		return types.E(types.KindValidation, "session key requires user and session ids")
	}
	if strings.ContainsAny(k.UserID, ":") || strings.ContainsAny(k.SessionID, ":") {
		return types.E(types.KindValidation, "session key components must not contain ':'")
	}
	return nil
}
