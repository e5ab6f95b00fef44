package sandbox

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/routeforge/core/internal/models"
	"go.uber.org/zap"
)

// CompileError reports that guest source could not be turned into a callable.
type CompileError struct {
	Message string
}

func (e *CompileError) Error() string { return e.Message }

// ExecError reports a failure while running guest code.
type ExecError struct {
	Message string
	Timeout bool
}

func (e *ExecError) Error() string { return e.Message }

// Host compiles guest source into invocable handlers. One Host serves the whole
// process; handlers it produces are independent of each other.
type Host struct {
	timeout time.Duration
	logger  *zap.Logger
}

// NewHost creates a sandbox host. timeout bounds compile-time evaluation of
// guest top-level code; per-invocation budgets come from the caller's context.
func NewHost(timeout time.Duration, logger *zap.Logger) *Host {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Host{timeout: timeout, logger: logger}
}

type invokeFunc func(ctx context.Context, params map[string]interface{}) (interface{}, error)

// Handler is a compiled guest code unit. Invocations are refcounted so that
// Release can be called while a request is in flight: teardown is deferred
// until the last invocation returns.
type Handler struct {
	language models.Language
	name     string
	invoke   invokeFunc
	stubErr  *CompileError
	teardown func()

	mu       sync.Mutex
	refs     int
	released bool
}

// Compile turns source into a Handler. On compile failure the returned Handler
// is a stub that reports the error when invoked, and the error is returned
// alongside it so callers can log it. The stub must still be registered: a
// broken endpoint stays visible over HTTP instead of silently missing.
func (h *Host) Compile(language models.Language, source, name string) (*Handler, error) {
	switch language {
	case models.LanguageJavaScript:
		return h.compileJS(source, name)
	case models.LanguagePython:
		return h.compilePython(source, name)
	default:
		cerr := &CompileError{Message: fmt.Sprintf("unsupported language %q", language)}
		return h.newStub(language, name, cerr), cerr
	}
}

func (h *Host) newStub(language models.Language, name string, cerr *CompileError) *Handler {
	hd := &Handler{language: language, name: name, stubErr: cerr}
	hd.invoke = func(context.Context, map[string]interface{}) (interface{}, error) {
		return map[string]interface{}{
			"error":   fmt.Sprintf("%s compilation error", languageLabel(language)),
			"details": cerr.Message,
		}, nil
	}
	return hd
}

func languageLabel(language models.Language) string {
	switch language {
	case models.LanguagePython:
		return "Python"
	default:
		return "JavaScript"
	}
}

// Language returns the handler's guest language.
func (hd *Handler) Language() models.Language { return hd.language }

// Stub reports whether the handler is a compile-error stub, and the error.
func (hd *Handler) Stub() (*CompileError, bool) { return hd.stubErr, hd.stubErr != nil }

// Invoke runs the handler with the given parameter dictionary and returns a
// JSON-marshalable value. The context deadline is the wall-clock budget.
func (hd *Handler) Invoke(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	if !hd.acquire() {
		return nil, &ExecError{Message: "handler has been released"}
	}
	defer hd.releaseRef()
	return hd.invoke(ctx, params)
}

// Release marks the handler for teardown. Idempotent; actual teardown waits
// for in-flight invocations to return.
func (hd *Handler) Release() {
	hd.mu.Lock()
	if hd.released {
		hd.mu.Unlock()
		return
	}
	hd.released = true
	idle := hd.refs == 0
	hd.mu.Unlock()

	if idle {
		hd.doTeardown()
	}
}

func (hd *Handler) acquire() bool {
	hd.mu.Lock()
	defer hd.mu.Unlock()
	if hd.released {
		return false
	}
	hd.refs++
	return true
}

func (hd *Handler) releaseRef() {
	hd.mu.Lock()
	hd.refs--
	last := hd.released && hd.refs == 0
	hd.mu.Unlock()

	if last {
		hd.doTeardown()
	}
}

func (hd *Handler) doTeardown() {
	if hd.teardown != nil {
		hd.teardown()
	}
}
