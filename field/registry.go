//
// Copyright (C) 2026 CodeGandee.
//
// invokeai-go-client is licensed under the Apache License Version 2.0.
//

package field

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
)

// Detector is a pure predicate deciding whether a classification rule
// applies to a slot.
type Detector func(m Metadata) bool

// Constructor builds a fresh Field for a matched slot, seeded with any
// constraints and value the slot metadata carries.
type Constructor func(m Metadata) Field

type rule struct {
	priority int
	order    int
	name     string
	detect   Detector
	build    Constructor
}

// Registry maps raw workflow slots to typed fields. Rules are
// evaluated by descending priority, then registration order; the first
// matching detector wins.
//
// Rules can be registered in two ways:
// 1. SDK built-in rules (registered at init time)
// 2. Business custom rules (registered before workflows are loaded)
//
// Registration is serialized; classification reads an immutable rule
// snapshot and takes no locks.
type Registry struct {
	mu    sync.Mutex
	next  int
	rules atomic.Pointer[[]rule]
}

// NewRegistry creates a new, empty field type registry.
func NewRegistry() *Registry {
	r := &Registry{}
	r.rules.Store(&[]rule{})
	return r
}

// Register adds a classification rule with the given priority. The
// name is used for diagnostics only and must be non-empty.
func (r *Registry) Register(name string, priority int, detect Detector, build Constructor) error {
	if name == "" {
		return fmt.Errorf("rule name cannot be empty")
	}
	if detect == nil || build == nil {
		return fmt.Errorf("rule %q needs both a detector and a constructor", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	current := *r.rules.Load()
	for _, existing := range current {
		if existing.name == name {
			return fmt.Errorf("rule %q already registered", name)
		}
	}

	next := make([]rule, len(current), len(current)+1)
	copy(next, current)
	next = append(next, rule{
		priority: priority,
		order:    r.next,
		name:     name,
		detect:   detect,
		build:    build,
	})
	r.next++
	sort.SliceStable(next, func(i, j int) bool {
		if next[i].priority != next[j].priority {
			return next[i].priority > next[j].priority
		}
		return next[i].order < next[j].order
	})
	r.rules.Store(&next)
	return nil
}

// MustRegister registers a rule and panics if registration fails.
// This is useful for init-time registration of built-in rules.
func (r *Registry) MustRegister(name string, priority int, detect Detector, build Constructor) {
	if err := r.Register(name, priority, detect, build); err != nil {
		panic(err)
	}
}

// Classify resolves a slot to a typed field. When no rule matches, a
// generic string field flagged as unresolved is returned so discovery
// can proceed.
func (r *Registry) Classify(m Metadata) Field {
	if f := r.classify(m); f != nil {
		return f
	}
	fallback := NewStringField(m)
	fallback.unresolved = true
	return fallback
}

// ClassifyStrict resolves a slot to a typed field and fails with
// ErrUnresolvedField when no rule matches.
func (r *Registry) ClassifyStrict(m Metadata) (Field, error) {
	if f := r.classify(m); f != nil {
		return f, nil
	}
	return nil, fmt.Errorf("%w: node type %q field %q", ErrUnresolvedField, m.NodeType, m.FieldName)
}

func (r *Registry) classify(m Metadata) Field {
	for _, rl := range *r.rules.Load() {
		if rl.detect(m) {
			return rl.build(m)
		}
	}
	return nil
}

// Rules returns the names of all registered rules in evaluation order.
func (r *Registry) Rules() []string {
	rules := *r.rules.Load()
	names := make([]string, 0, len(rules))
	for _, rl := range rules {
		names = append(names, rl.name)
	}
	return names
}

// DefaultRegistry is the global default registry. Built-in rules
// register themselves here at init time.
var DefaultRegistry = NewRegistry()

// Register registers a rule in the default registry.
func Register(name string, priority int, detect Detector, build Constructor) error {
	return DefaultRegistry.Register(name, priority, detect, build)
}

// MustRegister registers a rule in the default registry and panics on error.
func MustRegister(name string, priority int, detect Detector, build Constructor) {
	DefaultRegistry.MustRegister(name, priority, detect, build)
}

// Classify resolves a slot against the default registry.
func Classify(m Metadata) Field {
	return DefaultRegistry.Classify(m)
}
