package sandbox

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/routeforge/core/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testHost(t *testing.T) *Host {
	t.Helper()
	return NewHost(2*time.Second, zap.NewNop())
}

func TestCompileJSEcho(t *testing.T) {
	h := testHost(t)
	hd, err := h.Compile(models.LanguageJavaScript, "function endpoint_function(p) { return p; }", "echo")
	require.NoError(t, err)
	defer hd.Release()

	result, err := hd.Invoke(context.Background(), map[string]interface{}{"x": "5"})
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"x": "5"}, result)
}

func TestCompileJSSum(t *testing.T) {
	h := testHost(t)
	hd, err := h.Compile(models.LanguageJavaScript,
		"function endpoint_function(p){return {s: Number(p.a)+Number(p.b)};}", "sum")
	require.NoError(t, err)
	defer hd.Release()

	result, err := hd.Invoke(context.Background(), map[string]interface{}{"a": "2", "b": "3"})
	require.NoError(t, err)

	m, ok := result.(map[string]interface{})
	require.True(t, ok)
	assert.EqualValues(t, 5, m["s"])
}

func TestCompileJSSyntaxErrorYieldsStub(t *testing.T) {
	h := testHost(t)
	hd, err := h.Compile(models.LanguageJavaScript, "garbage syntax!", "broken")
	require.Error(t, err)
	require.NotNil(t, hd)
	defer hd.Release()

	cerr, isStub := hd.Stub()
	require.True(t, isStub)
	assert.NotEmpty(t, cerr.Message)

	// The stub still answers invocations with the stored error.
	result, invokeErr := hd.Invoke(context.Background(), nil)
	require.NoError(t, invokeErr)
	m, ok := result.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "JavaScript compilation error", m["error"])
	assert.Contains(t, m["details"], cerr.Message)
}

func TestCompileJSNotAFunction(t *testing.T) {
	h := testHost(t)
	hd, err := h.Compile(models.LanguageJavaScript, "var endpoint_function = 42;", "notfn")
	require.Error(t, err)

	cerr, isStub := hd.Stub()
	require.True(t, isStub)
	assert.Contains(t, cerr.Message, "endpoint_function")
	hd.Release()
}

func TestInvokeJSRuntimeError(t *testing.T) {
	h := testHost(t)
	hd, err := h.Compile(models.LanguageJavaScript,
		"function endpoint_function(p){ throw new Error('boom'); }", "thrower")
	require.NoError(t, err)
	defer hd.Release()

	_, err = hd.Invoke(context.Background(), nil)
	var execErr *ExecError
	require.ErrorAs(t, err, &execErr)
	assert.False(t, execErr.Timeout)
	assert.Contains(t, execErr.Message, "boom")
}

func TestInvokeJSTimeout(t *testing.T) {
	h := testHost(t)
	hd, err := h.Compile(models.LanguageJavaScript,
		"function endpoint_function(p){ while (true) {} }", "spin")
	require.NoError(t, err)
	defer hd.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err = hd.Invoke(ctx, nil)
	var execErr *ExecError
	require.ErrorAs(t, err, &execErr)
	assert.True(t, execErr.Timeout)
}

func TestInvokeJSNonSerializableResult(t *testing.T) {
	h := testHost(t)
	hd, err := h.Compile(models.LanguageJavaScript,
		"function endpoint_function(p){ return function(){}; }", "weird")
	require.NoError(t, err)
	defer hd.Release()

	result, err := hd.Invoke(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"error": "non-serializable result"}, result)
}

func TestInvokeJSConsoleDoesNotLeak(t *testing.T) {
	h := testHost(t)
	hd, err := h.Compile(models.LanguageJavaScript,
		"function endpoint_function(p){ console.log('hi', {a:1}); return {ok: true}; }", "logger")
	require.NoError(t, err)
	defer hd.Release()

	result, err := hd.Invoke(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"ok": true}, result)
}

func TestHandlerReleaseDefersTeardown(t *testing.T) {
	var tornDown atomic.Bool
	hd := &Handler{language: models.LanguageJavaScript, name: "x"}
	hd.teardown = func() { tornDown.Store(true) }

	started := make(chan struct{})
	finish := make(chan struct{})
	hd.invoke = func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
		close(started)
		<-finish
		return nil, nil
	}

	go hd.Invoke(context.Background(), nil)
	<-started

	hd.Release()
	assert.False(t, tornDown.Load(), "teardown must wait for the in-flight call")

	close(finish)
	assert.Eventually(t, tornDown.Load, time.Second, 5*time.Millisecond)

	_, err := hd.Invoke(context.Background(), nil)
	var execErr *ExecError
	require.ErrorAs(t, err, &execErr)
	assert.Contains(t, execErr.Message, "released")
}

func TestHandlerReleaseIdempotent(t *testing.T) {
	count := 0
	hd := &Handler{language: models.LanguagePython, name: "x"}
	hd.teardown = func() { count++ }
	hd.invoke = func(context.Context, map[string]interface{}) (interface{}, error) { return nil, nil }

	hd.Release()
	hd.Release()
	assert.Equal(t, 1, count)
}

func TestUnsupportedLanguageYieldsStub(t *testing.T) {
	h := testHost(t)
	hd, err := h.Compile(models.Language("ruby"), "puts 1", "nope")
	require.Error(t, err)
	_, isStub := hd.Stub()
	assert.True(t, isStub)
	hd.Release()
}
