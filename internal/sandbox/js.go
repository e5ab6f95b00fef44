package sandbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dop251/goja"
	"github.com/evanw/esbuild/pkg/api"
	"github.com/routeforge/core/internal/models"
	"go.uber.org/zap"
)

const jsTimeoutReason = "endpoint-timeout"

// compileJS lowers the source with esbuild, compiles it for goja, and verifies
// in a throwaway VM that evaluation leaves a callable endpoint_function behind.
func (h *Host) compileJS(source, name string) (*Handler, error) {
	result := api.Transform(source, api.TransformOptions{
		Loader:     api.LoaderJS,
		Target:     api.ES2017,
		Charset:    api.CharsetUTF8,
		Sourcefile: fmt.Sprintf("%s.js", name),
	})
	if len(result.Errors) > 0 {
		cerr := &CompileError{Message: result.Errors[0].Text}
		return h.newStub(models.LanguageJavaScript, name, cerr), cerr
	}

	prog, err := goja.Compile(fmt.Sprintf("%s.js", name), string(result.Code), false)
	if err != nil {
		cerr := &CompileError{Message: err.Error()}
		return h.newStub(models.LanguageJavaScript, name, cerr), cerr
	}

	if err := h.verifyJS(prog, name); err != nil {
		cerr := &CompileError{Message: err.Error()}
		return h.newStub(models.LanguageJavaScript, name, cerr), cerr
	}

	hd := &Handler{language: models.LanguageJavaScript, name: name}
	hd.invoke = func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
		return h.invokeJS(ctx, prog, name, params)
	}
	return hd, nil
}

// verifyJS evaluates top-level code once so syntax-valid sources that never
// define endpoint_function fail at registration, not at first request.
func (h *Host) verifyJS(prog *goja.Program, name string) error {
	vm := goja.New()
	timer := time.AfterFunc(h.timeout, func() {
		vm.Interrupt(jsTimeoutReason)
	})
	defer timer.Stop()
	h.installConsole(vm, name)

	if _, err := vm.RunProgram(prog); err != nil {
		return errors.New(jsErrorMessage(err))
	}
	if _, ok := goja.AssertFunction(vm.Get("endpoint_function")); !ok {
		return errors.New("code must define a function endpoint_function(params)")
	}
	return nil
}

// invokeJS runs the program in a fresh VM per request so guest code cannot
// leak state between invocations or into the host.
func (h *Host) invokeJS(ctx context.Context, prog *goja.Program, name string, params map[string]interface{}) (interface{}, error) {
	vm := goja.New()
	if deadline, ok := ctx.Deadline(); ok {
		timer := time.AfterFunc(time.Until(deadline), func() {
			vm.Interrupt(jsTimeoutReason)
		})
		defer timer.Stop()
	}
	h.installConsole(vm, name)

	if _, err := vm.RunProgram(prog); err != nil {
		return nil, normalizeJSError(err)
	}

	fn, ok := goja.AssertFunction(vm.Get("endpoint_function"))
	if !ok {
		return nil, &ExecError{Message: "endpoint_function is not callable"}
	}

	value, err := fn(goja.Undefined(), vm.ToValue(params))
	if err != nil {
		return nil, normalizeJSError(err)
	}

	out := exportJSValue(value)
	if _, err := json.Marshal(out); err != nil {
		return map[string]interface{}{"error": "non-serializable result"}, nil
	}
	return out, nil
}

func exportJSValue(value goja.Value) interface{} {
	if value == nil || goja.IsUndefined(value) || goja.IsNull(value) {
		return nil
	}
	return value.Export()
}

func normalizeJSError(err error) error {
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		if interrupted.Value() == jsTimeoutReason {
			return &ExecError{Timeout: true, Message: "endpoint execution timeout"}
		}
		return &ExecError{Message: "endpoint execution interrupted"}
	}
	return &ExecError{Message: jsErrorMessage(err)}
}

func jsErrorMessage(err error) string {
	var exception *goja.Exception
	if errors.As(err, &exception) {
		value := exception.Value()
		if value != nil {
			exported := value.Export()
			switch v := exported.(type) {
			case string:
				return v
			case map[string]interface{}:
				if msg, ok := v["message"].(string); ok && msg != "" {
					return msg
				}
			}
		}
		return exception.Error()
	}
	return err.Error()
}

// installConsole exposes console.* to guest code, funneled into the host log.
func (h *Host) installConsole(vm *goja.Runtime, name string) {
	console := vm.NewObject()
	for _, level := range []string{"log", "info", "warn", "error", "debug"} {
		level := level
		_ = console.Set(level, func(call goja.FunctionCall) goja.Value {
			parts := make([]string, 0, len(call.Arguments))
			for _, arg := range call.Arguments {
				parts = append(parts, consoleValueToString(exportJSValue(arg)))
			}
			line := strings.Join(parts, " ")
			field := zap.String("sandbox", name)
			switch level {
			case "warn":
				h.logger.Warn(line, field)
			case "error":
				h.logger.Error(line, field)
			default:
				h.logger.Info(line, field)
			}
			return goja.Undefined()
		})
	}
	_ = vm.Set("console", console)
}

func consoleValueToString(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return x
	case error:
		return x.Error()
	default:
		if b, err := json.Marshal(x); err == nil {
			return string(b)
		}
		return fmt.Sprintf("%v", x)
	}
}
