package sandbox

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/go-python/gpython/py"
	_ "github.com/go-python/gpython/stdlib"
	"github.com/routeforge/core/internal/models"
)

// compilePython wraps the user-provided body into a generated
// endpoint_function, executes the module once in a dedicated interpreter
// context, and retains the resulting function object for invocation.
func (h *Host) compilePython(source, name string) (*Handler, error) {
	wrapped := wrapPythonSource(source)

	pyCtx := py.NewContext(py.DefaultContextOpts())
	module, err := py.RunSrc(pyCtx, wrapped, name, nil)
	if err != nil {
		_ = pyCtx.Close()
		cerr := &CompileError{Message: fmt.Sprintf("Python compilation error: %s", err.Error())}
		return h.newStub(models.LanguagePython, name, cerr), cerr
	}

	fn, ok := module.Globals["endpoint_function"]
	if !ok || fn == nil {
		_ = pyCtx.Close()
		cerr := &CompileError{Message: "Python compilation error: endpoint_function was not defined"}
		return h.newStub(models.LanguagePython, name, cerr), cerr
	}

	// gpython contexts are not safe for concurrent use; invocations on the
	// same handler are serialized.
	var mu sync.Mutex
	hd := &Handler{language: models.LanguagePython, name: name}
	hd.invoke = func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
		return invokePython(ctx, &mu, fn, params)
	}
	hd.teardown = func() { _ = pyCtx.Close() }
	return hd, nil
}

// wrapPythonSource indents the body uniformly under a generated def.
func wrapPythonSource(source string) string {
	var b strings.Builder
	b.WriteString("def endpoint_function(params):\n")

	wrote := false
	for _, line := range strings.Split(source, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			b.WriteString("\n")
			continue
		}
		b.WriteString("    ")
		b.WriteString(line)
		b.WriteString("\n")
		wrote = true
	}
	if !wrote {
		b.WriteString("    return None\n")
	}
	return b.String()
}

func invokePython(ctx context.Context, mu *sync.Mutex, fn py.Object, params map[string]interface{}) (interface{}, error) {
	type outcome struct {
		value py.Object
		err   error
	}
	done := make(chan outcome, 1)

	// There is no way to interrupt gpython; on timeout the call is abandoned
	// and its eventual result discarded.
	go func() {
		mu.Lock()
		defer mu.Unlock()
		value, err := py.Call(fn, py.Tuple{goToPy(params)}, nil)
		done <- outcome{value: value, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, &ExecError{Timeout: true, Message: "endpoint execution timeout"}
	case out := <-done:
		if out.err != nil {
			return nil, &ExecError{Message: fmt.Sprintf("Python execution error: %s", out.err.Error())}
		}
		result := pyToGo(out.value)
		if _, err := json.Marshal(result); err != nil {
			return map[string]interface{}{"error": "non-serializable result"}, nil
		}
		return result, nil
	}
}

// goToPy marshals the parameter dictionary (JSON-shaped values only) into
// gpython objects.
func goToPy(v interface{}) py.Object {
	switch x := v.(type) {
	case nil:
		return py.None
	case bool:
		return py.Bool(x)
	case string:
		return py.String(x)
	case float64:
		return py.Float(x)
	case float32:
		return py.Float(x)
	case int:
		return py.Int(x)
	case int64:
		return py.Int(x)
	case []interface{}:
		items := make(py.Tuple, len(x))
		for i, item := range x {
			items[i] = goToPy(item)
		}
		return items
	case map[string]interface{}:
		dict := py.NewStringDict()
		for key, value := range x {
			dict[key] = goToPy(value)
		}
		return dict
	default:
		return py.String(fmt.Sprintf("%v", x))
	}
}

// pyToGo converts a gpython result into a JSON-marshalable Go value.
func pyToGo(o py.Object) interface{} {
	switch x := o.(type) {
	case nil, py.NoneType:
		return nil
	case py.Bool:
		return bool(x)
	case py.Int:
		return int64(x)
	case py.Float:
		return float64(x)
	case py.String:
		return string(x)
	case py.Bytes:
		return string(x)
	case py.Tuple:
		out := make([]interface{}, len(x))
		for i, item := range x {
			out[i] = pyToGo(item)
		}
		return out
	case *py.List:
		out := make([]interface{}, len(x.Items))
		for i, item := range x.Items {
			out[i] = pyToGo(item)
		}
		return out
	case py.StringDict:
		out := make(map[string]interface{}, len(x))
		for key, value := range x {
			out[key] = pyToGo(value)
		}
		return out
	default:
		return fmt.Sprintf("%v", x)
	}
}
