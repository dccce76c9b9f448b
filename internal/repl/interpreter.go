package repl

import (
	"bytes"
	"context"
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	"replnerd/internal/types"
)

// QueryFunc answers a sub-query. Failures are folded into the returned
// text so interpreted code never has to handle errors.
type QueryFunc func(prompt string) string

// QueryBatchedFunc answers several sub-queries, one result per prompt.
type QueryBatchedFunc func(prompts []string) []string

// Config configures a new Interpreter.
type Config struct {
	// Timeout bounds each Execute call. Zero means no limit beyond the
	// caller's context.
	Timeout time.Duration

	// Query and QueryBatched back the functions of the same name inside
	// the sandbox. Nil installs stubs that report the missing client.
	Query        QueryFunc
	QueryBatched QueryBatchedFunc
}

// Interpreter is a sandboxed Go interpreter with persistent state. Only
// whitelisted stdlib packages can be imported; filesystem, network, and
// process access are rejected before evaluation.
type Interpreter struct {
	mu      sync.Mutex
	interp  *interp.Interpreter
	stdout  bytes.Buffer
	stderr  bytes.Buffer
	timeout time.Duration

	allowedPackages map[string]bool
}

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// The prelude runs once at construction. It imports the whitelisted
// packages into the session scope and aliases the sub-query bridge, so
// interpreted code can call Query and QueryBatched directly.
const prelude = `
import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"replnerd/subquery"
)

var Query = subquery.Query
var QueryBatched = subquery.QueryBatched
`

// New creates a sandboxed interpreter.
func New(cfg Config) (*Interpreter, error) {
	query := cfg.Query
	if query == nil {
		query = func(string) string {
			return "Query unavailable: no model client configured"
		}
	}
	queryBatched := cfg.QueryBatched
	if queryBatched == nil {
		queryBatched = func(prompts []string) []string {
			out := make([]string, len(prompts))
			for i := range out {
				out[i] = "QueryBatched unavailable: no model client configured"
			}
			return out
		}
	}

	it := &Interpreter{
		timeout: cfg.Timeout,
		allowedPackages: map[string]bool{
			"bytes":         true,
			"encoding/json": true,
			"errors":        true,
			"fmt":           true,
			"math":          true,
			"regexp":        true,
			"sort":          true,
			"strconv":       true,
			"strings":       true,
			"time":          true,
			"unicode":       true,
			"unicode/utf8":  true,

			// Sub-query bridge, already aliased by the prelude.
			"replnerd/subquery": true,

			// Blocked: "os", "os/exec", "net", "net/http", "syscall",
			// "unsafe", "io/ioutil", "path/filepath", "runtime", "plugin".
		},
	}

	i := interp.New(interp.Options{
		Stdout: &it.stdout,
		Stderr: &it.stderr,
	})

	if err := i.Use(stdlib.Symbols); err != nil {
		return nil, fmt.Errorf("failed to load stdlib: %w", err)
	}

	exports := interp.Exports{
		"replnerd/subquery/subquery": {
			"Query":        reflect.ValueOf(query),
			"QueryBatched": reflect.ValueOf(queryBatched),
		},
	}
	if err := i.Use(exports); err != nil {
		return nil, fmt.Errorf("failed to load sub-query bridge: %w", err)
	}

	if _, err := i.Eval(prelude); err != nil {
		return nil, fmt.Errorf("failed to initialize session scope: %w", err)
	}
	it.stdout.Reset()
	it.stderr.Reset()

	it.interp = i
	return it, nil
}

// Execute evaluates one code block and captures its output. Evaluation
// errors come back inside the Result, not as a Go error, so the caller
// can report them to the model.
func (it *Interpreter) Execute(ctx context.Context, code string) Result {
	it.mu.Lock()
	defer it.mu.Unlock()

	start := time.Now()

	if err := it.validateImports(code); err != nil {
		return Result{Err: err, Duration: time.Since(start)}
	}

	it.stdout.Reset()
	it.stderr.Reset()

	execCtx := ctx
	if it.timeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, it.timeout)
		defer cancel()
	}

	v, err := it.interp.EvalWithContext(execCtx, code)

	res := Result{
		Stdout:   it.stdout.String(),
		Stderr:   it.stderr.String(),
		Duration: time.Since(start),
	}
	if err != nil {
		if execCtx.Err() != nil {
			err = fmt.Errorf("execution stopped after %s: %w", res.Duration.Round(time.Millisecond), execCtx.Err())
		}
		res.Err = err
		return res
	}

	if v.IsValid() && v.CanInterface() {
		if iv := v.Interface(); iv != nil {
			res.Value = fmt.Sprintf("%v", iv)
		}
	}
	return res
}

// Lookup reads a session variable by name. Only plain identifiers are
// accepted; anything else, including expressions, reports absence.
func (it *Interpreter) Lookup(name string) (types.Value, bool) {
	it.mu.Lock()
	defer it.mu.Unlock()

	if !identPattern.MatchString(name) {
		return types.Value{}, false
	}

	v, err := it.interp.Eval(name)
	if err != nil || !v.IsValid() || !v.CanInterface() {
		return types.Value{}, false
	}

	val, err := types.FromGo(v.Interface())
	if err != nil {
		// Unserializable values still resolve, rendered as text.
		return types.Text(fmt.Sprintf("%v", v.Interface())), true
	}
	return val, true
}

// SetText binds a string variable in the session scope.
func (it *Interpreter) SetText(name, value string) error {
	if !identPattern.MatchString(name) {
		return fmt.Errorf("invalid variable name: %q", name)
	}

	it.mu.Lock()
	defer it.mu.Unlock()

	_, err := it.interp.Eval(name + " := " + strconv.Quote(value))
	if err != nil {
		return fmt.Errorf("failed to bind %s: %w", name, err)
	}
	return nil
}

// SetContext binds a context under the given variable name: scalar text
// as a string, ordered lists as []string, keyed maps as map[string]string.
func (it *Interpreter) SetContext(name string, c types.Context) error {
	if !identPattern.MatchString(name) {
		return fmt.Errorf("invalid variable name: %q", name)
	}

	var src string
	switch c.Kind() {
	case types.ContextText:
		return it.SetText(name, c.Text())

	case types.ContextList:
		elems := c.Elements()
		parts := make([]string, len(elems))
		for i, e := range elems {
			parts[i] = strconv.Quote(e.Serialize())
		}
		src = name + " := []string{" + strings.Join(parts, ", ") + "}"

	case types.ContextMap:
		entries := c.Entries()
		parts := make([]string, len(entries))
		for i, e := range entries {
			parts[i] = strconv.Quote(e.Key) + ": " + strconv.Quote(e.Value.Serialize())
		}
		src = name + " := map[string]string{" + strings.Join(parts, ", ") + "}"

	default:
		return fmt.Errorf("bind %s: %w", name, types.ErrInvalidContext)
	}

	it.mu.Lock()
	defer it.mu.Unlock()

	if _, err := it.interp.Eval(src); err != nil {
		return fmt.Errorf("failed to bind %s: %w", name, err)
	}
	return nil
}

// validateImports checks that the code only imports whitelisted packages.
func (it *Interpreter) validateImports(code string) error {
	lines := strings.Split(code, "\n")
	var imports []string

	inImportBlock := false
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)

		if strings.HasPrefix(trimmed, "import (") {
			inImportBlock = true
			continue
		}
		if inImportBlock && strings.HasPrefix(trimmed, ")") {
			inImportBlock = false
			continue
		}

		if inImportBlock {
			if pkg := importPath(trimmed); pkg != "" {
				imports = append(imports, pkg)
			}
		} else if strings.HasPrefix(trimmed, "import ") {
			if pkg := importPath(strings.TrimPrefix(trimmed, "import ")); pkg != "" {
				imports = append(imports, pkg)
			}
		}
	}

	var forbidden []string
	for _, pkg := range imports {
		if !it.allowedPackages[pkg] {
			forbidden = append(forbidden, pkg)
		}
	}

	if len(forbidden) > 0 {
		return fmt.Errorf("forbidden imports: %v (the preloaded packages cover string, regexp, JSON, math, and sort operations)", forbidden)
	}
	return nil
}

// importPath extracts the path from an import spec, dropping any alias
// and trailing comment.
func importPath(spec string) string {
	if idx := strings.Index(spec, "//"); idx >= 0 {
		spec = spec[:idx]
	}
	fields := strings.Fields(spec)
	if len(fields) == 0 {
		return ""
	}
	return strings.Trim(fields[len(fields)-1], `"`)
}
