package tools

import (
	loggerv2 "github.com/manishiitg/apimcp/logger/v2"
)

// Registry is an immutable, ordered set of descriptors keyed by name
type Registry struct {
	ordered []*Descriptor
	byName  map[string]*Descriptor
}

// NewRegistry indexes descriptors. When two descriptors share a name the
// first one wins and the later one is dropped with a warning.
func NewRegistry(descriptors []*Descriptor, logger loggerv2.Logger) *Registry {
	if logger == nil {
		logger = loggerv2.NewNoop()
	}
	r := &Registry{byName: make(map[string]*Descriptor, len(descriptors))}
	for _, d := range descriptors {
		if d == nil {
			continue
		}
		if existing, dup := r.byName[d.Name]; dup {
			logger.Warn("Duplicate tool name, keeping the first definition",
				loggerv2.String("tool", d.Name),
				loggerv2.String("kept_product", existing.Product),
				loggerv2.String("kept_spec", existing.SpecPath),
				loggerv2.String("dropped_product", d.Product),
				loggerv2.String("dropped_spec", d.SpecPath))
			continue
		}
		r.byName[d.Name] = d
		r.ordered = append(r.ordered, d)
	}
	return r
}

// Get looks up a tool by name
func (r *Registry) Get(name string) (*Descriptor, bool) {
	if r == nil {
		return nil, false
	}
	d, ok := r.byName[name]
	return d, ok
}

// List returns descriptors in registration order. The slice must not be modified.
func (r *Registry) List() []*Descriptor {
	if r == nil {
		return nil
	}
	return r.ordered
}

// Len returns the number of tools
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.ordered)
}

// Names returns tool names in registration order
func (r *Registry) Names() []string {
	names := make([]string, 0, r.Len())
	for _, d := range r.List() {
		names = append(names, d.Name)
	}
	return names
}
