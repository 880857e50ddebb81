// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package decorator

import (
	"strings"
	"sync"

	"github.com/y1yang0/otel-go-server-decorator/internal/ex"
)

// Registry records the decorators a process supports, keyed by their
// instrumentation names. Framework packages add themselves through their
// Register function; the instrumentation engine owns the Registry and passes
// it around explicitly.
type Registry struct {
	mu          sync.RWMutex
	byName      map[string]Descriptor
	descriptors []Descriptor
}

func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Descriptor)}
}

// Register adds d. It fails when d has no instrumentation name or one of its
// names is already taken; in that case nothing is registered.
func (r *Registry) Register(d Descriptor) error {
	names := d.InstrumentationNames()
	if len(names) == 0 {
		return ex.Newf("decorator %q has no instrumentation name", d.Component())
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, name := range names {
		key := strings.ToLower(name)
		if key == "" {
			return ex.Newf("decorator %q has an empty instrumentation name", d.Component())
		}
		if prev, ok := r.byName[key]; ok {
			return ex.Newf("instrumentation name %q of %q already registered by %q",
				name, d.Component(), prev.Component())
		}
	}
	for _, name := range names {
		r.byName[strings.ToLower(name)] = d
	}
	r.descriptors = append(r.descriptors, d)
	return nil
}

// Lookup finds a decorator by one of its instrumentation names.
func (r *Registry) Lookup(name string) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.byName[strings.ToLower(name)]
	return d, ok
}

// Descriptors returns the registered decorators in registration order.
func (r *Registry) Descriptors() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Descriptor(nil), r.descriptors...)
}

// Enabled returns the registered decorators cfg enables.
func (r *Registry) Enabled(cfg Config) []Descriptor {
	var enabled []Descriptor
	for _, d := range r.Descriptors() {
		if cfg.Instrumented(d.InstrumentationNames()...) {
			enabled = append(enabled, d)
		}
	}
	return enabled
}
