package geocode

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/couchcryptid/forest-data-etl/internal/domain"
)

// ErrUnknownProvider is returned when configuration names a provider that
// was never registered.
var ErrUnknownProvider = errors.New("unknown geocode provider")

// Registry maps provider names to constructed providers so the cascade order
// is chosen by configuration rather than code.
type Registry struct {
	providers map[string]domain.GeocodeProvider
}

// NewRegistry creates a registry holding providers.
func NewRegistry(providers ...domain.GeocodeProvider) *Registry {
	r := &Registry{providers: make(map[string]domain.GeocodeProvider, len(providers))}
	for _, p := range providers {
		r.Register(p)
	}
	return r
}

// Register adds or replaces a provider under its Name.
func (r *Registry) Register(p domain.GeocodeProvider) {
	r.providers[p.Name()] = p
}

// Get returns the provider registered as name.
func (r *Registry) Get(name string) (domain.GeocodeProvider, error) {
	p, ok := r.providers[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("%w: %s (known: %s)", ErrUnknownProvider, name, strings.Join(r.Names(), ", "))
	}
	return p, nil
}

// Select returns the named providers in the given order.
func (r *Registry) Select(names []string) ([]domain.GeocodeProvider, error) {
	out := make([]domain.GeocodeProvider, 0, len(names))
	for _, n := range names {
		p, err := r.Get(n)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// Names lists registered provider names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for n := range r.providers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
