package persona

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/deldesir/gateway/internal/domain"
	"gopkg.in/yaml.v3"
)

// Registry holds the static personas: the built-in support persona plus any
// loaded from a YAML file. Registry personas are read-only.
type Registry struct {
	profiles map[string]*domain.PersonaProfile
}

type registryFile struct {
	Personas []*domain.PersonaProfile `yaml:"personas"`
}

// NewRegistry creates a registry containing the built-in personas and extra.
func NewRegistry(extra ...*domain.PersonaProfile) *Registry {
	r := &Registry{profiles: map[string]*domain.PersonaProfile{}}
	r.add(domain.DefaultPersona())
	for _, p := range extra {
		r.add(p)
	}
	return r
}

// LoadRegistry reads personas from a YAML file on top of the built-ins. An
// empty path yields only the built-ins.
func LoadRegistry(path string) (*Registry, error) {
	if path == "" {
		return NewRegistry(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading persona registry: %w", err)
	}

	var file registryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("error parsing persona registry: %w", err)
	}

	for _, p := range file.Personas {
		if err := domain.ValidatePersona(p); err != nil {
			return nil, fmt.Errorf("persona registry %s: %w", path, err)
		}
	}

	return NewRegistry(file.Personas...), nil
}

func (r *Registry) add(p *domain.PersonaProfile) {
	cp := p.Clone()
	cp.Builtin = true
	r.profiles[cp.ID] = cp
}

// Lookup implements Source.
func (r *Registry) Lookup(_ context.Context, id string) (*domain.PersonaProfile, error) {
	p, ok := r.profiles[id]
	if !ok {
		return nil, domain.ErrPersonaNotFound
	}
	return p.Clone(), nil
}

// Has reports whether id is a static persona.
func (r *Registry) Has(id string) bool {
	_, ok := r.profiles[id]
	return ok
}

// List returns the static personas sorted by id.
func (r *Registry) List() []*domain.PersonaProfile {
	out := make([]*domain.PersonaProfile, 0, len(r.profiles))
	for _, p := range r.profiles {
		out = append(out, p.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
