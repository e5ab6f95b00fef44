package registry

import (
	"context"
	"sync"

	"github.com/routeforge/core/internal/models"
	"github.com/routeforge/core/internal/sandbox"
	"github.com/routeforge/core/internal/store"
	"go.uber.org/zap"
)

// RouteKind tags a RouteInfo as a dynamic endpoint or a stored page.
type RouteKind int

const (
	KindEndpoint RouteKind = iota
	KindPage
)

// RouteInfo is the in-memory record for one registered path.
type RouteInfo struct {
	Kind       RouteKind
	Path       string
	Parameters []string
	HTTPMethod string
	Language   models.Language
	Handler    *sandbox.Handler

	HTMLContent string
}

type initState int

const (
	stateUninitialized initState = iota
	stateInitializing
	stateReady
)

// Registry is the shared path -> RouteInfo mapping. Lookups are lock-cheap and
// may run concurrently; mutations are serialized by a dedicated writer mutex.
type Registry struct {
	store  *store.Store
	host   *sandbox.Host
	logger *zap.Logger

	mu     sync.RWMutex
	routes map[string]*RouteInfo

	writeMu sync.Mutex

	initMu   sync.Mutex
	state    initState
	initDone chan struct{}
}

func New(st *store.Store, host *sandbox.Host, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		store:  st,
		host:   host,
		logger: logger,
		routes: make(map[string]*RouteInfo),
	}
}

// EnsureInitialized hydrates the registry from the store on first call.
// Concurrent callers during hydration wait for the same completion; a failed
// hydration resets to uninitialized and is retried on the next call.
func (r *Registry) EnsureInitialized(ctx context.Context) error {
	for {
		r.initMu.Lock()
		switch r.state {
		case stateReady:
			r.initMu.Unlock()
			return nil
		case stateInitializing:
			done := r.initDone
			r.initMu.Unlock()
			select {
			case <-done:
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		case stateUninitialized:
			r.state = stateInitializing
			r.initDone = make(chan struct{})
			done := r.initDone
			r.initMu.Unlock()

			err := r.hydrate()

			r.initMu.Lock()
			if err != nil {
				r.state = stateUninitialized
			} else {
				r.state = stateReady
			}
			r.initMu.Unlock()
			close(done)
			return err
		}
	}
}

// hydrate performs the full scan: compile and register every endpoint, then
// register every page.
func (r *Registry) hydrate() error {
	endpoints, err := r.store.ListAllEndpoints()
	if err != nil {
		return err
	}
	pages, err := r.store.ListAllPages()
	if err != nil {
		return err
	}

	for i := range endpoints {
		ep := &endpoints[i]
		r.RegisterEndpoint(ep.Path, ep.Parameters, ep.Code, ep.HTTPMethod, ep.Language)
	}
	for i := range pages {
		r.RegisterPage(pages[i].Path, pages[i].HTMLContent)
	}
	r.logger.Info("route registry hydrated",
		zap.Int("endpoints", len(endpoints)),
		zap.Int("pages", len(pages)),
	)
	return nil
}

// RegisterEndpoint compiles the source and installs the RouteInfo for path,
// releasing any handler previously registered there. A compile failure still
// registers the stub handler produced by the host.
func (r *Registry) RegisterEndpoint(path string, params []string, code, method string, language models.Language) {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	handler, err := r.host.Compile(language, code, path)
	if err != nil {
		r.logger.Warn("endpoint compiled to stub",
			zap.String("path", path),
			zap.Error(err),
		)
	}

	info := &RouteInfo{
		Kind:       KindEndpoint,
		Path:       path,
		Parameters: params,
		HTTPMethod: method,
		Language:   language,
		Handler:    handler,
	}
	r.install(path, info)
}

// RegisterPage installs or replaces the RouteInfo for a stored page.
func (r *Registry) RegisterPage(path, html string) {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	r.install(path, &RouteInfo{
		Kind:        KindPage,
		Path:        path,
		HTMLContent: html,
	})
}

// install swaps the mapping atomically and releases the displaced handler.
// Callers hold writeMu.
func (r *Registry) install(path string, info *RouteInfo) {
	r.mu.Lock()
	prev := r.routes[path]
	r.routes[path] = info
	r.mu.Unlock()

	if prev != nil && prev.Handler != nil {
		prev.Handler.Release()
	}
}

// Unregister removes the RouteInfo at path and releases its handler.
func (r *Registry) Unregister(path string) {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	r.mu.Lock()
	prev := r.routes[path]
	delete(r.routes, path)
	r.mu.Unlock()

	if prev != nil && prev.Handler != nil {
		prev.Handler.Release()
	}
}

// RefreshEndpoint re-reads the store by path: present rows are re-registered,
// absent rows are unregistered.
func (r *Registry) RefreshEndpoint(path string) error {
	ep, err := r.store.GetEndpointByPath(path)
	if err != nil {
		return err
	}
	if ep == nil {
		r.Unregister(path)
		return nil
	}
	r.RegisterEndpoint(ep.Path, ep.Parameters, ep.Code, ep.HTTPMethod, ep.Language)
	return nil
}

// RefreshPage mirrors RefreshEndpoint for stored pages.
func (r *Registry) RefreshPage(path string) error {
	page, err := r.store.GetPageByPath(path)
	if err != nil {
		return err
	}
	if page == nil {
		r.Unregister(path)
		return nil
	}
	r.RegisterPage(page.Path, page.HTMLContent)
	return nil
}

// Lookup returns the RouteInfo registered at path, if any.
func (r *Registry) Lookup(path string) (*RouteInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info, ok := r.routes[path]
	return info, ok
}

// Paths returns all registered paths.
func (r *Registry) Paths() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.routes))
	for path := range r.routes {
		out = append(out, path)
	}
	return out
}
