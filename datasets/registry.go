package datasets

import (
	"sort"

	scigoerrors "github.com/YuminosukeSato/scigo-serve/pkg/errors"
)

// Registry is an immutable name to Loader mapping, built once at startup.
type Registry struct {
	loaders map[string]Loader
	names   []string
}

// NewRegistry builds a registry. Duplicate names are a ValidationError.
func NewRegistry(loaders ...Loader) (*Registry, error) {
	r := &Registry{loaders: make(map[string]Loader, len(loaders))}
	for _, l := range loaders {
		if _, dup := r.loaders[l.Name()]; dup {
			return nil, scigoerrors.NewValidationError("datasets", "duplicate dataset name", l.Name())
		}
		r.loaders[l.Name()] = l
		r.names = append(r.names, l.Name())
	}
	sort.Strings(r.names)
	return r, nil
}

// Names returns the registered names, sorted.
func (r *Registry) Names() []string {
	return append([]string(nil), r.names...)
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.loaders[name]
	return ok
}

// Get returns the loader for name, or a ConfigError.
func (r *Registry) Get(name string) (Loader, error) {
	l, ok := r.loaders[name]
	if !ok {
		return nil, scigoerrors.NewUnknownNameError("dataset", name, r.Names())
	}
	return l, nil
}

// Load loads one split of a named dataset.
func (r *Registry) Load(name string, split Split) (*Dataset, error) {
	l, err := r.Get(name)
	if err != nil {
		return nil, err
	}
	return l.Load(split)
}
