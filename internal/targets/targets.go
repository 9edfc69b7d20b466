// Package targets resolves the "app.model" type descriptors carried by comment
// forms into the wiki objects a comment is attached to.
package targets

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

var (
	ErrMalformedType = errors.New("malformed content type")
	ErrUnknownType   = errors.New("unknown content type")
	ErrInvalidKey    = errors.New("invalid object key")
	ErrNotFound      = errors.New("object not found")
)

// Target is anything a comment can be attached to.
type Target interface {
	ContentType() string
	PK() string
	String() string
}

// Loader fetches a single target by primary key. It returns ErrInvalidKey
// when pk cannot be parsed and ErrNotFound when no row matches.
type Loader func(ctx context.Context, pk string) (Target, error)

type Registry struct {
	mu      sync.RWMutex
	loaders map[string]Loader
}

func NewRegistry() *Registry {
	return &Registry{loaders: make(map[string]Loader)}
}

// Register adds a loader for ctype. It fails on malformed or duplicate descriptors.
func (r *Registry) Register(ctype string, loader Loader) error {
	if _, _, err := splitType(ctype); err != nil {
		return err
	}
	if ctype != strings.ToLower(ctype) {
		return fmt.Errorf("%w: %q must be lower case", ErrMalformedType, ctype)
	}
	if loader == nil {
		return fmt.Errorf("nil loader for %q", ctype)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.loaders[ctype]; exists {
		return fmt.Errorf("content type %q already registered", ctype)
	}
	r.loaders[ctype] = loader
	return nil
}

// MustRegister is Register for startup wiring.
func (r *Registry) MustRegister(ctype string, loader Loader) {
	if err := r.Register(ctype, loader); err != nil {
		panic(err)
	}
}

// Validate is called once at startup.
func (r *Registry) Validate() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.loaders) == 0 {
		return errors.New("no commentable content types registered")
	}
	return nil
}

// Types lists the registered descriptors in sorted order.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.loaders))
	for ctype := range r.loaders {
		types = append(types, ctype)
	}
	sort.Strings(types)
	return types
}

// Resolve looks up the target named by ctype and pk.
func (r *Registry) Resolve(ctx context.Context, ctype, pk string) (Target, error) {
	app, model, err := splitType(ctype)
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	loader, ok := r.loaders[strings.ToLower(app+"."+model)]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, ctype)
	}

	target, err := loader(ctx, pk)
	if err != nil {
		return nil, fmt.Errorf("loading %s %q: %w", ctype, pk, err)
	}
	return target, nil
}

func splitType(ctype string) (string, string, error) {
	app, model, ok := strings.Cut(ctype, ".")
	if !ok || app == "" || model == "" || strings.Contains(model, ".") {
		return "", "", fmt.Errorf("%w: %q", ErrMalformedType, ctype)
	}
	return app, model, nil
}
