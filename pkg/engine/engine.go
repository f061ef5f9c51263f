// Package engine evaluates parametric part templates. A template is a
// small Lisp program run in a sandboxed zygomys interpreter; its builtins
// call into a kernel.Kernel to build the solids of one design generation.
package engine

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/chazu/amgen/pkg/kernel"
	"github.com/chazu/amgen/pkg/logging"
	zygo "github.com/glycerine/zygomys/zygo"
	"github.com/samber/lo"
)

// EvalError represents a non-fatal error encountered during evaluation,
// such as a parse error or a runtime error in user code.
type EvalError struct {
	Line    int
	Col     int
	Message string
}

func (e EvalError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	}
	return e.Message
}

// Part is one named solid produced by a template.
type Part struct {
	Name  string
	Solid kernel.Solid
}

// Model is the output of one template evaluation.
type Model struct {
	Parts []Part
}

// IsEmpty reports whether the template produced no solids.
func (m *Model) IsEmpty() bool {
	return m == nil || len(m.Parts) == 0
}

// Solid unions all parts into a single solid. It returns nil for an
// empty model.
func (m *Model) Solid(k kernel.Kernel) kernel.Solid {
	if m.IsEmpty() {
		return nil
	}
	return kernel.UnionAll(k, lo.Map(m.Parts, func(p Part, _ int) kernel.Solid {
		return p.Solid
	})...)
}

// Engine wraps the zygomys interpreter for template evaluation.
//
// Each call to Evaluate creates a fresh sandboxed environment for
// determinism. A newer Evaluate call supersedes any in-flight one on the
// same Engine, so concurrent callers should each own an Engine.
type Engine struct {
	kernel  kernel.Kernel
	timeout time.Duration

	mu         sync.Mutex
	generation uint64
}

// Option configures an Engine.
type Option func(*Engine)

// WithTimeout overrides EvalTimeout. Non-positive values are ignored.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// NewEngine creates a new Engine that builds solids with k.
func NewEngine(k kernel.Kernel, opts ...Option) *Engine {
	e := &Engine{kernel: k, timeout: EvalTimeout}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate runs template source with params bound as global variables.
//
// Return semantics:
//   - On success: returns model + nil errors + nil error
//   - On parse/eval failure: returns nil model + eval errors + nil error
//   - On fatal failure (timeout, panic, bad parameter name): returns nil + nil + error
func (e *Engine) Evaluate(source string, params map[string]float64) (*Model, []EvalError, error) {
	prelude, err := paramPrelude(params)
	if err != nil {
		return nil, nil, err
	}

	e.mu.Lock()
	e.generation++
	gen := e.generation
	e.mu.Unlock()

	ch := make(chan evalResult, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- evalResult{err: fmt.Errorf("panic during evaluation: %v", r)}
			}
		}()

		m, evalErrs, err := e.evaluate(source, prelude)
		ch <- evalResult{model: m, errors: evalErrs, err: err}
	}()

	return waitWithTimeout(ch, e.timeout, gen, &e.mu, &e.generation)
}

// evaluate performs the actual zygomys evaluation in a fresh sandbox.
func (e *Engine) evaluate(source, prelude string) (*Model, []EvalError, error) {
	// Empty source is a valid program that produces an empty model.
	if strings.TrimSpace(source) == "" {
		return &Model{}, nil, nil
	}

	// Sandbox mode prevents user code from accessing the filesystem or syscalls.
	env := zygo.NewZlispSandbox()
	defer env.Stop()

	model := &Model{}
	registerBuiltins(env, e.kernel, model)

	// The prelude shares the first line so reported line numbers match
	// the template file.
	err := env.LoadString(preprocessSource(prelude + source))
	if err != nil {
		return nil, parseZygomysError(err), nil
	}

	last, err := env.Run()
	if err != nil {
		return nil, parseZygomysError(err), nil
	}

	// A template that never calls part yields its final expression.
	if len(model.Parts) == 0 {
		if s, ok := last.(*sexpSolid); ok {
			model.Parts = append(model.Parts, Part{Name: "model", Solid: s.solid})
		}
	}

	logging.Logger().Debug("template evaluated", "parts", len(model.Parts))
	return model, nil, nil
}

// paramNamePattern matches names usable as template variables.
var paramNamePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_-]*$`)

// ValidParamName reports whether name can be bound in a template.
func ValidParamName(name string) error {
	if !paramNamePattern.MatchString(name) {
		return fmt.Errorf("invalid parameter name %q", name)
	}
	if slices.Contains(builtinNames, strings.ReplaceAll(name, "-", "_")) {
		return fmt.Errorf("parameter name %q shadows a builtin", name)
	}
	return nil
}

// paramPrelude renders params as (def name value) forms on a single line,
// sorted by name.
func paramPrelude(params map[string]float64) (string, error) {
	if len(params) == 0 {
		return "", nil
	}
	var b strings.Builder
	for _, name := range slices.Sorted(lo.Keys(params)) {
		if err := ValidParamName(name); err != nil {
			return "", err
		}
		fmt.Fprintf(&b, "(def %s %s) ", name, floatLiteral(params[name]))
	}
	return b.String(), nil
}

// floatLiteral formats v so zygomys reads it as a float, never an int.
func floatLiteral(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// linePattern matches zygomys error messages that include "Error on line N: ..."
var linePattern = regexp.MustCompile(`(?i)(?:error )?on line (\d+):\s*(.*)`)

// linePatternShort matches simpler "line N: ..." patterns.
var linePatternShort = regexp.MustCompile(`(?i)^line (\d+):\s*(.*)`)

// parseZygomysError converts a zygomys error into one or more EvalError values.
// It attempts to extract line number information from the error message.
func parseZygomysError(err error) []EvalError {
	msg := err.Error()

	for _, p := range []*regexp.Regexp{linePattern, linePatternShort} {
		if m := p.FindStringSubmatch(msg); m != nil {
			line, _ := strconv.Atoi(m[1])
			return []EvalError{{
				Line:    line,
				Message: strings.TrimSpace(m[2]),
			}}
		}
	}

	// Fallback: no line info available.
	return []EvalError{{Message: strings.TrimSpace(msg)}}
}
