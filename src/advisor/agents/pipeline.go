package agents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"

	"github.com/campus-stack/faculty-advisor/src/advisor/agents/core"
	"github.com/campus-stack/faculty-advisor/src/advisor/ai"
	"github.com/campus-stack/faculty-advisor/src/advisor/data"
	"github.com/campus-stack/faculty-advisor/src/advisor/retrieval"
	"github.com/campus-stack/faculty-advisor/src/advisor/session"
	"github.com/campus-stack/faculty-advisor/src/advisor/types"
)

const (
	fallbackContent   = "I couldn't fully process that request right now. Please try again or rephrase."
	historyWindow     = 10
	retrievalTopK     = 4
	retrievalCacheTTL = 5 * time.Minute
	// Confidence multiplier when supporting text could not be retrieved.
	degradedRetrievalWeight = 0.7
)

// Deps bundles the shared services every pipeline instance runs against.
type Deps struct {
	Sessions     *session.Manager
	Reasoner     ai.Client
	Retrieval    retrieval.Client
	Tools        *ToolRegistry
	Memory       *data.MemoryStore // optional
	StageTimeout time.Duration
}

// Pipeline is the uniform state machine every agent runs: validate, retrieve
// context, reason, act, respond & persist. One instance per agent type; the
// only per-call state is the request/response pair.
type Pipeline struct {
	cfg       core.AgentConfig
	deps      Deps
	sanitizer *bluemonday.Policy
}

func NewPipeline(cfg core.AgentConfig, deps Deps) *Pipeline {
	if deps.StageTimeout <= 0 {
		deps.StageTimeout = 30 * time.Second
	}
	return &Pipeline{
		cfg:       cfg,
		deps:      deps,
		sanitizer: bluemonday.StrictPolicy(),
	}
}

func (p *Pipeline) Type() string { return p.cfg.Type }

func (p *Pipeline) Synopsis() string {
	if i := strings.IndexAny(p.cfg.Persona, ".\n"); i > 0 {
		return strings.TrimSpace(p.cfg.Persona[:i+1])
	}
	return p.cfg.Persona
}

func (p *Pipeline) Config() core.AgentConfig { return p.cfg }

// reasonOutput is the structured contract the reasoner must honor.
type reasonOutput struct {
	Intent     string  `json:"intent"`
	Response   string  `json:"response"`
	Confidence float64 `json:"confidence"`
	ToolCalls  []struct {
		Name string         `json:"name"`
		Args map[string]any `json:"args"`
	} `json:"tool_calls"`
}

type gatheredContext struct {
	history   []session.Message
	snippets  []retrieval.Snippet
	degraded  bool // retrieval declared but unavailable
	summary   string
	sessionKy session.Key
}

// Process runs the five stages. It never returns an error: failures populate
// Response.Error with Content set to a safe fallback.
func (p *Pipeline) Process(ctx context.Context, req core.Request) core.Response {
	start := time.Now()
	resp := core.Response{AgentType: p.cfg.Type}

	finish := func() core.Response {
		resp.ProcessingMS = time.Since(start).Milliseconds()
		return resp
	}

	// Stage 1: validate. The only stage whose failure always halts.
	key, err := p.validate(req)
	if err != nil {
		resp.Error = asKinded(err, types.KindValidation)
		resp.Content = fallbackContent
		return finish()
	}

	// Stage 2: retrieve context. Failures degrade, never halt.
	gathered := p.retrieveContext(ctx, key, req)

	// Stage 3: reason, with one bounded retry on malformed output.
	reasoned, err := p.reason(ctx, req, gathered)
	if err != nil {
		resp.Error = asKinded(err, types.KindReasoning)
		resp.Content = fallbackContent
		resp.Confidence = 0
		return finish()
	}
	resp.Intent = reasoned.Intent

	// Stage 4: act. Tool failures are recorded, not fatal.
	resp.ToolResults, err = p.act(ctx, key, req, reasoned)
	if err != nil {
		resp.Error = asKinded(err, types.KindToolExecution)
	}

	// Stage 5: respond & persist.
	resp.Content = p.formatContent(reasoned)
	resp.Confidence = p.confidence(reasoned, gathered)
	p.persist(key, req, resp)

	return finish()
}

func (p *Pipeline) validate(req core.Request) (session.Key, error) {
	if strings.TrimSpace(req.Query) == "" {
		return session.Key{}, types.E(types.KindValidation, "query must not be empty")
	}
	if req.Identity.UserID == "" {
		return session.Key{}, types.E(types.KindValidation, "request carries no identity")
	}
	key := session.Key{UserID: req.Identity.UserID, SessionID: req.SessionID}
	if err := key.Validate(); err != nil {
		return session.Key{}, err
	}
	return key, nil
}

func (p *Pipeline) retrieveContext(ctx context.Context, key session.Key, req core.Request) gatheredContext {
	sctx, cancel := context.WithTimeout(ctx, p.deps.StageTimeout)
	defer cancel()

	out := gatheredContext{sessionKy: key}

	// The TTL slides on any pipeline activity, not just writes: a call that
	// ends without persisting (reasoning failure) still keeps the space alive.
	if err := p.deps.Sessions.Touch(sctx, key); err != nil {
		log.Printf("agent %s: renew session ttl for %s: %v", p.cfg.Type, key, err)
	}

	history, err := p.deps.Sessions.History(sctx, key, historyWindow)
	if err != nil {
		log.Printf("agent %s: history unavailable for %s: %v", p.cfg.Type, key, err)
	} else {
		out.history = history
	}

	if p.deps.Memory != nil {
		if rec, err := p.deps.Memory.Summary(key.UserID, key.SessionID); err == nil && rec != nil {
			out.summary = rec.Summary
		}
	}

	if p.cfg.UseRetrieval && p.deps.Retrieval != nil {
		cacheKey := session.CacheKey("retrieval", req.Query)
		var cached []retrieval.Snippet
		if hit, err := p.deps.Sessions.CacheGet(sctx, key, cacheKey, &cached); err == nil && hit {
			out.snippets = cached
			return out
		}
		snippets, err := p.deps.Retrieval.Search(sctx, req.Query, retrievalTopK)
		if err != nil {
			log.Printf("agent %s: retrieval failed, proceeding without: %v", p.cfg.Type, err)
			out.degraded = true
		} else {
			out.snippets = snippets
			if len(snippets) > 0 {
				if err := p.deps.Sessions.CachePut(sctx, key, cacheKey, snippets, retrievalCacheTTL); err != nil {
					log.Printf("agent %s: cache retrieval results: %v", p.cfg.Type, err)
				}
			}
		}
	}
	return out
}

const strictFormatReminder = "Your previous reply was not valid JSON. Respond with ONLY the JSON object, no prose, no code fences."

func (p *Pipeline) reason(ctx context.Context, req core.Request, gathered gatheredContext) (*reasonOutput, error) {
	messages := p.buildPrompt(req, gathered)
	opts := ai.Options{
		Model:        p.cfg.Model,
		Temperature:  p.cfg.Temperature,
		MaxTokens:    p.cfg.MaxTokens,
		SystemPrompt: p.systemPrompt(),
	}

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		sctx, cancel := context.WithTimeout(ctx, p.deps.StageTimeout)
		raw, err := p.deps.Reasoner.Complete(sctx, messages, opts)
		cancel()
		if err != nil {
			lastErr = err
			if ai.IsRateLimit(err) && attempt == 0 {
				continue
			}
			return nil, types.Wrap(types.KindReasoning, err, "reasoning call failed")
		}
		parsed, err := parseReasonOutput(raw)
		if err == nil {
			return parsed, nil
		}
		lastErr = err
		messages = append(messages, ai.Message{Role: "user", Content: strictFormatReminder})
	}
	return nil, types.Wrap(types.KindReasoning, lastErr, "reasoning output unusable after retry")
}

func (p *Pipeline) systemPrompt() string {
	var b strings.Builder
	b.WriteString(p.cfg.Persona)
	b.WriteString("\n\nAlways answer with a single JSON object of the form ")
	b.WriteString(`{"intent": string, "response": string, "confidence": number 0..1, "tool_calls": [{"name": string, "args": object}]}.`)
	if len(p.cfg.Tools) > 0 {
		b.WriteString(" Available tools: ")
		b.WriteString(strings.Join(p.cfg.Tools, ", "))
		b.WriteString(". Only call tools from this list.")
	} else {
		b.WriteString(" You have no tools; tool_calls must be empty.")
	}
	return b.String()
}

func (p *Pipeline) buildPrompt(req core.Request, gathered gatheredContext) []ai.Message {
	var b strings.Builder
	if gathered.summary != "" {
		b.WriteString("Earlier conversation summary:\n")
		b.WriteString(gathered.summary)
		b.WriteString("\n\n")
	}
	if len(gathered.history) > 0 {
		b.WriteString("Recent conversation:\n")
		for _, msg := range gathered.history {
			fmt.Fprintf(&b, "[%s] %s\n", msg.Role, msg.Content)
		}
		b.WriteString("\n")
	}
	if len(gathered.snippets) > 0 {
		b.WriteString("Supporting material:\n")
		for _, sn := range gathered.snippets {
			fmt.Fprintf(&b, "- %s (%s)\n", sn.Text, sn.Source)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Student (%s, %s) asks: %s", req.Identity.Email, req.Identity.Role, req.Query)
	return []ai.Message{{Role: "user", Content: b.String()}}
}

func parseReasonOutput(raw string) (*reasonOutput, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)
	if start := strings.Index(cleaned, "{"); start > 0 {
		cleaned = cleaned[start:]
	}
	var out reasonOutput
	if err := json.Unmarshal([]byte(cleaned), &out); err != nil {
		return nil, fmt.Errorf("parse reasoning output: %w", err)
	}
	if out.Response == "" {
		return nil, fmt.Errorf("reasoning output missing response field")
	}
	if out.Confidence <= 0 {
		out.Confidence = 0.6
	}
	if out.Confidence > 1 {
		out.Confidence = 1
	}
	return &out, nil
}

// act executes tool calls in the order the reasoner returned them. A failed
// tool is recorded; later calls that require it are skipped, everything else
// still runs.
func (p *Pipeline) act(ctx context.Context, key session.Key, req core.Request, reasoned *reasonOutput) ([]core.ToolResult, error) {
	if len(reasoned.ToolCalls) == 0 {
		return nil, nil
	}

	declared := map[string]bool{}
	for _, name := range p.cfg.Tools {
		declared[name] = true
	}

	var results []core.ToolResult
	var firstErr error
	failed := map[string]bool{}

	record := func(res core.ToolResult, err error) {
		if err != nil {
			res.Error = err.Error()
			failed[res.Name] = true
			if firstErr == nil {
				firstErr = types.Wrap(types.KindToolExecution, err, "tool %s failed", res.Name)
			}
		}
		results = append(results, res)
	}

	for _, call := range reasoned.ToolCalls {
		res := core.ToolResult{Name: call.Name}
		if !declared[call.Name] {
			record(res, fmt.Errorf("tool %s not declared for agent %s", call.Name, p.cfg.Type))
			continue
		}
		spec, ok := p.deps.Tools.Get(call.Name)
		if !ok {
			record(res, fmt.Errorf("tool %s not registered", call.Name))
			continue
		}
		if dep := firstFailedDep(spec.Requires, failed); dep != "" {
			res.Skipped = true
			record(res, fmt.Errorf("skipped: required tool %s failed", dep))
			continue
		}

		sctx, cancel := context.WithTimeout(ctx, p.deps.StageTimeout)
		out, err := spec.Run(sctx, ToolRequest{Identity: req.Identity, Key: key, Args: call.Args})
		cancel()
		res.Output = out
		record(res, err)
	}
	return results, firstErr
}

func firstFailedDep(requires []string, failed map[string]bool) string {
	for _, dep := range requires {
		if failed[dep] {
			return dep
		}
	}
	return ""
}

func (p *Pipeline) formatContent(reasoned *reasonOutput) string {
	content := p.sanitizer.Sanitize(reasoned.Response)
	content = strings.TrimSpace(content)
	if content == "" {
		return fallbackContent
	}
	return content
}

func (p *Pipeline) confidence(reasoned *reasonOutput, gathered gatheredContext) float64 {
	c := reasoned.Confidence
	if gathered.degraded {
		c *= degradedRetrievalWeight
	}
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

// persist writes the exchange after the response is fully formed, on a fresh
// context: a caller disconnect must not leave a half-written session.
func (p *Pipeline) persist(key session.Key, req core.Request, resp core.Response) {
	pctx, cancel := context.WithTimeout(context.Background(), p.deps.StageTimeout)
	defer cancel()

	userMsg := session.Message{
		AgentType: p.cfg.Type,
		Role:      session.RoleUser,
		Content:   p.sanitizer.Sanitize(req.Query),
	}
	agentMsg := session.Message{
		AgentType: p.cfg.Type,
		Role:      session.RoleAgent,
		Content:   resp.Content,
		Metadata:  map[string]string{"intent": resp.Intent},
	}
	if err := p.deps.Sessions.AppendMessage(pctx, key, userMsg); err != nil {
		log.Printf("agent %s: persist user message: %v", p.cfg.Type, err)
		return
	}
	if err := p.deps.Sessions.AppendMessage(pctx, key, agentMsg); err != nil {
		log.Printf("agent %s: persist agent message: %v", p.cfg.Type, err)
		return
	}
	if p.deps.Memory != nil {
		line := fmt.Sprintf("Q: %s\nA: %s", truncate(userMsg.Content, 300), truncate(resp.Content, 300))
		if err := p.deps.Memory.AppendSummary(key.UserID, key.SessionID, p.cfg.Type, line); err != nil {
			log.Printf("agent %s: persist long-term summary: %v", p.cfg.Type, err)
		}
	}
}

// truncate cuts on a rune boundary so multi-byte text never splits mid-rune.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max] + "…"
}

func asKinded(err error, kind types.Kind) *types.Error {
	var ae *types.Error
	if errors.As(err, &ae) {
		return ae
	}
	return types.Wrap(kind, err, "stage failed")
}
