package sandbox

import (
	"context"
	"testing"

	"github.com/routeforge/core/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompilePythonSum(t *testing.T) {
	h := testHost(t)
	hd, err := h.Compile(models.LanguagePython,
		"return {\"s\": int(params[\"a\"]) + int(params[\"b\"])}", "pysum")
	require.NoError(t, err)
	defer hd.Release()

	result, err := hd.Invoke(context.Background(), map[string]interface{}{"a": "2", "b": "3"})
	require.NoError(t, err)

	m, ok := result.(map[string]interface{})
	require.True(t, ok)
	assert.EqualValues(t, 5, m["s"])
}

func TestCompilePythonMultiline(t *testing.T) {
	h := testHost(t)
	source := "total = 0\n" +
		"for v in params[\"values\"]:\n" +
		"    total = total + v\n" +
		"return {\"total\": total}"
	hd, err := h.Compile(models.LanguagePython, source, "pyloop")
	require.NoError(t, err)
	defer hd.Release()

	result, err := hd.Invoke(context.Background(), map[string]interface{}{
		"values": []interface{}{float64(1), float64(2), float64(3)},
	})
	require.NoError(t, err)

	m, ok := result.(map[string]interface{})
	require.True(t, ok)
	assert.EqualValues(t, 6, m["total"])
}

func TestCompilePythonStdlibImport(t *testing.T) {
	h := testHost(t)
	source := "import math\n" +
		"return {\"v\": math.floor(float(params[\"x\"]))}"
	hd, err := h.Compile(models.LanguagePython, source, "pymath")
	require.NoError(t, err)
	defer hd.Release()

	result, err := hd.Invoke(context.Background(), map[string]interface{}{"x": "2.7"})
	require.NoError(t, err)

	m, ok := result.(map[string]interface{})
	require.True(t, ok)
	assert.EqualValues(t, 2, m["v"])
}

func TestCompilePythonSyntaxErrorYieldsStub(t *testing.T) {
	h := testHost(t)
	hd, err := h.Compile(models.LanguagePython, "def broken(:", "pybroken")
	require.Error(t, err)
	require.NotNil(t, hd)
	defer hd.Release()

	cerr, isStub := hd.Stub()
	require.True(t, isStub)
	assert.Contains(t, cerr.Message, "Python compilation error")

	result, invokeErr := hd.Invoke(context.Background(), nil)
	require.NoError(t, invokeErr)
	m, ok := result.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "Python compilation error", m["error"])
}

func TestInvokePythonGuestException(t *testing.T) {
	h := testHost(t)
	hd, err := h.Compile(models.LanguagePython, "raise ValueError(\"nope\")", "pyraise")
	require.NoError(t, err)
	defer hd.Release()

	_, err = hd.Invoke(context.Background(), map[string]interface{}{})
	var execErr *ExecError
	require.ErrorAs(t, err, &execErr)
	assert.False(t, execErr.Timeout)
	assert.Contains(t, execErr.Message, "Python execution error")
}

func TestInvokePythonNoneResult(t *testing.T) {
	h := testHost(t)
	hd, err := h.Compile(models.LanguagePython, "pass", "pynone")
	require.NoError(t, err)
	defer hd.Release()

	result, err := hd.Invoke(context.Background(), map[string]interface{}{})
	require.NoError(t, err)
	assert.Nil(t, result)
}

func TestInvokePythonParamTypes(t *testing.T) {
	h := testHost(t)
	hd, err := h.Compile(models.LanguagePython, "return params", "pyecho")
	require.NoError(t, err)
	defer hd.Release()

	result, err := hd.Invoke(context.Background(), map[string]interface{}{
		"s": "text",
		"n": float64(5),
		"b": true,
		"z": nil,
	})
	require.NoError(t, err)

	m, ok := result.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "text", m["s"])
	assert.EqualValues(t, 5, m["n"])
	assert.Equal(t, true, m["b"])
	assert.Nil(t, m["z"])
}

func TestWrapPythonSource(t *testing.T) {
	wrapped := wrapPythonSource("x = 1\nreturn x")
	assert.Equal(t, "def endpoint_function(params):\n    x = 1\n    return x\n", wrapped)

	empty := wrapPythonSource("")
	assert.Contains(t, empty, "return None")
}
