// Package container is an explicit service registry. Dependencies are declared
// by name at registration time, cycles are rejected immediately, and the
// container is built once at startup and passed by reference; there is no
// ambient global lookup.
package container

import (
	"fmt"
	"sync"
)

// Lifetime controls how often a factory runs.
type Lifetime int

const (
	// Singleton constructs once per container.
	Singleton Lifetime = iota
	// Scoped constructs once per Scope (one inbound call).
	Scoped
	// Transient constructs on every resolution.
	Transient
)

func (l Lifetime) String() string {
	switch l {
	case Singleton:
		return "singleton"
	case Scoped:
		return "scoped"
	case Transient:
		return "transient"
	}
	return "unknown"
}

// Factory builds a service; it may resolve its declared dependencies through r.
type Factory func(r Resolver) (any, error)

// Resolver is what factories and handlers use to obtain services.
type Resolver interface {
	Resolve(name string) (any, error)
}

type registration struct {
	name     string
	lifetime Lifetime
	deps     []string
	factory  Factory
}

// Container holds registrations and singleton instances.
type Container struct {
	mu         sync.Mutex
	regs       map[string]registration
	singletons map[string]any
}

func New() *Container {
	return &Container{
		regs:       map[string]registration{},
		singletons: map[string]any{},
	}
}

// Register declares a service with its lifetime and dependency names. Duplicate
// names, dangling dependencies on already-registered services, and cycles fail
// here, not at first resolution.
func (c *Container) Register(name string, lifetime Lifetime, deps []string, factory Factory) error {
	if name == "" {
		return fmt.Errorf("container: empty service name")
	}
	if factory == nil {
		return fmt.Errorf("container: %s: nil factory", name)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.regs[name]; exists {
		return fmt.Errorf("container: %s already registered", name)
	}
	c.regs[name] = registration{name: name, lifetime: lifetime, deps: deps, factory: factory}
	if cycle := c.findCycle(name); cycle != nil {
		delete(c.regs, name)
		return fmt.Errorf("container: dependency cycle: %v", cycle)
	}
	return nil
}

// MustRegister is Register for startup wiring where a failure is fatal
// programmer error.
func (c *Container) MustRegister(name string, lifetime Lifetime, deps []string, factory Factory) {
	if err := c.Register(name, lifetime, deps, factory); err != nil {
		panic(err)
	}
}

// findCycle walks the declared graph from start. Edges into names not yet
// registered are ignored; they are re-checked when that name registers.
func (c *Container) findCycle(start string) []string {
	var stack []string
	onStack := map[string]bool{}

	var visit func(name string) []string
	visit = func(name string) []string {
		reg, ok := c.regs[name]
		if !ok {
			return nil
		}
		if onStack[name] {
			return append(append([]string{}, stack...), name)
		}
		onStack[name] = true
		stack = append(stack, name)
		for _, dep := range reg.deps {
			if cycle := visit(dep); cycle != nil {
				return cycle
			}
		}
		stack = stack[:len(stack)-1]
		onStack[name] = false
		return nil
	}
	return visit(start)
}

// Resolve returns the singleton or a fresh transient. Scoped services must be
// resolved through a Scope.
func (c *Container) Resolve(name string) (any, error) {
	return c.resolve(name, nil)
}

func (c *Container) resolve(name string, scope *Scope) (any, error) {
	c.mu.Lock()
	reg, ok := c.regs[name]
	if !ok {
		c.mu.Unlock()
		return nil, fmt.Errorf("container: %s not registered", name)
	}
	if reg.lifetime == Singleton {
		if inst, ok := c.singletons[name]; ok {
			c.mu.Unlock()
			return inst, nil
		}
	}
	c.mu.Unlock()

	var r Resolver = c
	if scope != nil {
		r = scope
	}

	switch reg.lifetime {
	case Singleton:
		inst, err := reg.factory(r)
		if err != nil {
			return nil, fmt.Errorf("container: build %s: %w", name, err)
		}
		c.mu.Lock()
		if existing, ok := c.singletons[name]; ok {
			inst = existing
		} else {
			c.singletons[name] = inst
		}
		c.mu.Unlock()
		return inst, nil
	case Scoped:
		if scope == nil {
			return nil, fmt.Errorf("container: %s is scoped; resolve via a Scope", name)
		}
		return scope.scoped(name, reg)
	default: // Transient
		inst, err := reg.factory(r)
		if err != nil {
			return nil, fmt.Errorf("container: build %s: %w", name, err)
		}
		return inst, nil
	}
}

// Scope caches scoped instances for the duration of one inbound call.
type Scope struct {
	parent *Container
	mu     sync.Mutex
	cache  map[string]any
}

// NewScope opens a per-call resolution scope.
func (c *Container) NewScope() *Scope {
	return &Scope{parent: c, cache: map[string]any{}}
}

func (s *Scope) Resolve(name string) (any, error) {
	return s.parent.resolve(name, s)
}

func (s *Scope) scoped(name string, reg registration) (any, error) {
	s.mu.Lock()
	if inst, ok := s.cache[name]; ok {
		s.mu.Unlock()
		return inst, nil
	}
	s.mu.Unlock()

	inst, err := reg.factory(s)
	if err != nil {
		return nil, fmt.Errorf("container: build %s: %w", name, err)
	}
	s.mu.Lock()
	if existing, ok := s.cache[name]; ok {
		inst = existing
	} else {
		s.cache[name] = inst
	}
	s.mu.Unlock()
	return inst, nil
}

// MustResolve resolves through r or panics; startup-time convenience.
func MustResolve[T any](r Resolver, name string) T {
	inst, err := r.Resolve(name)
	if err != nil {
		panic(err)
	}
	v, ok := inst.(T)
	if !ok {
		panic(fmt.Sprintf("container: %s has unexpected type %T", name, inst))
	}
	return v
}
