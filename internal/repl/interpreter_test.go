package repl

import (
	"context"
	"strings"
	"testing"
	"time"

	"replnerd/internal/types"
)

func newTestInterpreter(t *testing.T, cfg Config) *Interpreter {
	t.Helper()
	it, err := New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return it
}

func TestInterpreter_ExecuteCapturesStdout(t *testing.T) {
	it := newTestInterpreter(t, Config{})

	res := it.Execute(context.Background(), `fmt.Println("hello from the sandbox")`)
	if res.Err != nil {
		t.Fatalf("Execute failed: %v", res.Err)
	}
	if res.Stdout != "hello from the sandbox\n" {
		t.Errorf("Stdout = %q", res.Stdout)
	}
}

func TestInterpreter_StatePersistsAcrossExecutions(t *testing.T) {
	it := newTestInterpreter(t, Config{})

	if res := it.Execute(context.Background(), `total := 40`); res.Err != nil {
		t.Fatalf("first Execute failed: %v", res.Err)
	}

	res := it.Execute(context.Background(), `total + 2`)
	if res.Err != nil {
		t.Fatalf("second Execute failed: %v", res.Err)
	}
	if res.Value != "42" {
		t.Errorf("Value = %q, want 42", res.Value)
	}
}

func TestInterpreter_TrailingExpressionValue(t *testing.T) {
	it := newTestInterpreter(t, Config{})

	res := it.Execute(context.Background(), "x := 21\nx * 2")
	if res.Err != nil {
		t.Fatalf("Execute failed: %v", res.Err)
	}
	if res.Value != "42" {
		t.Errorf("Value = %q, want 42", res.Value)
	}
}

func TestInterpreter_PreloadedPackages(t *testing.T) {
	it := newTestInterpreter(t, Config{})

	cases := []struct {
		name string
		code string
		want string
	}{
		{"strings", `strings.ToUpper("abc")`, "ABC"},
		{"strconv", `strconv.Itoa(7)`, "7"},
		{"json", `b, _ := json.Marshal(map[string]int{"a": 1}); string(b)`, `{"a":1}`},
		{"regexp", `regexp.MustCompile("l+").FindString("hello")`, "ll"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := it.Execute(context.Background(), tc.code)
			if res.Err != nil {
				t.Fatalf("Execute failed: %v", res.Err)
			}
			if res.Value != tc.want {
				t.Errorf("Value = %q, want %q", res.Value, tc.want)
			}
		})
	}
}

func TestInterpreter_RejectsForbiddenImports(t *testing.T) {
	it := newTestInterpreter(t, Config{})

	res := it.Execute(context.Background(), "import \"os\"\nos.Getenv(\"HOME\")")
	if res.Err == nil {
		t.Fatal("expected error for forbidden import")
	}
	if !strings.Contains(res.Err.Error(), "forbidden imports") {
		t.Errorf("unexpected error: %v", res.Err)
	}

	res = it.Execute(context.Background(), "import (\n\t\"net/http\"\n)\nhttp.Get(\"http://example.com\")")
	if res.Err == nil || !strings.Contains(res.Err.Error(), "net/http") {
		t.Errorf("expected net/http rejection, got %v", res.Err)
	}
}

func TestInterpreter_AllowsWhitelistedImport(t *testing.T) {
	it := newTestInterpreter(t, Config{})

	res := it.Execute(context.Background(), "import \"strings\"\nstrings.Repeat(\"ab\", 2)")
	if res.Err != nil {
		t.Fatalf("Execute failed: %v", res.Err)
	}
	if res.Value != "abab" {
		t.Errorf("Value = %q", res.Value)
	}
}

func TestInterpreter_EvalErrorDoesNotPoisonSession(t *testing.T) {
	it := newTestInterpreter(t, Config{})

	if res := it.Execute(context.Background(), `definitelyNotDefined()`); res.Err == nil {
		t.Fatal("expected error for undefined function")
	}

	res := it.Execute(context.Background(), `1 + 1`)
	if res.Err != nil {
		t.Fatalf("session unusable after error: %v", res.Err)
	}
	if res.Value != "2" {
		t.Errorf("Value = %q, want 2", res.Value)
	}
}

func TestInterpreter_OutputResetBetweenExecutions(t *testing.T) {
	it := newTestInterpreter(t, Config{})

	it.Execute(context.Background(), `fmt.Println("first")`)
	res := it.Execute(context.Background(), `fmt.Println("second")`)
	if strings.Contains(res.Stdout, "first") {
		t.Errorf("stdout leaked across executions: %q", res.Stdout)
	}
}

func TestInterpreter_Timeout(t *testing.T) {
	it := newTestInterpreter(t, Config{Timeout: 50 * time.Millisecond})

	code := "for i := 0; i < 1000000; i++ {\n\ttime.Sleep(time.Millisecond)\n}"
	res := it.Execute(context.Background(), code)
	if res.Err == nil {
		t.Fatal("expected timeout error")
	}
	if !strings.Contains(res.Err.Error(), "execution stopped") {
		t.Errorf("unexpected error: %v", res.Err)
	}
}

func TestInterpreter_SetTextAndLookup(t *testing.T) {
	it := newTestInterpreter(t, Config{})

	if err := it.SetText("greeting", "héllo wörld"); err != nil {
		t.Fatalf("SetText failed: %v", err)
	}

	v, ok := it.Lookup("greeting")
	if !ok {
		t.Fatal("Lookup failed")
	}
	if v.Kind() != types.KindText || v.Serialize() != "héllo wörld" {
		t.Errorf("Lookup = %s %q", v.Kind(), v.Serialize())
	}

	res := it.Execute(context.Background(), `strings.ToUpper(greeting)`)
	if res.Err != nil {
		t.Fatalf("Execute failed: %v", res.Err)
	}
	if res.Value != "HÉLLO WÖRLD" {
		t.Errorf("Value = %q", res.Value)
	}
}

func TestInterpreter_LookupMissingVariable(t *testing.T) {
	it := newTestInterpreter(t, Config{})

	if _, ok := it.Lookup("never_assigned"); ok {
		t.Error("expected absence for unassigned variable")
	}
}

func TestInterpreter_LookupRejectsNonIdentifiers(t *testing.T) {
	it := newTestInterpreter(t, Config{})
	it.SetText("x", "safe")

	for _, name := range []string{"x; fmt.Println(1)", `len("abc")`, "a.b", "1x", ""} {
		if _, ok := it.Lookup(name); ok {
			t.Errorf("Lookup(%q) should report absence", name)
		}
	}
}

func TestInterpreter_LookupComputedValue(t *testing.T) {
	it := newTestInterpreter(t, Config{})

	res := it.Execute(context.Background(), `counts := []int{1, 2, 3}
sum := 0
for _, c := range counts {
	sum += c
}`)
	if res.Err != nil {
		t.Fatalf("Execute failed: %v", res.Err)
	}

	v, ok := it.Lookup("sum")
	if !ok {
		t.Fatal("Lookup failed")
	}
	if v.Kind() != types.KindNumber || v.Serialize() != "6" {
		t.Errorf("Lookup = %s %q", v.Kind(), v.Serialize())
	}
}

func TestInterpreter_SetContextText(t *testing.T) {
	it := newTestInterpreter(t, Config{})

	if err := it.SetContext("context", types.TextContext("the quick brown fox")); err != nil {
		t.Fatalf("SetContext failed: %v", err)
	}

	res := it.Execute(context.Background(), `len(context)`)
	if res.Err != nil {
		t.Fatalf("Execute failed: %v", res.Err)
	}
	if res.Value != "19" {
		t.Errorf("Value = %q, want 19", res.Value)
	}
}

func TestInterpreter_SetContextList(t *testing.T) {
	it := newTestInterpreter(t, Config{})

	c := types.TextListContext([]string{"alpha", "beta", "gamma"})
	if err := it.SetContext("context", c); err != nil {
		t.Fatalf("SetContext failed: %v", err)
	}

	res := it.Execute(context.Background(), `strings.Join(context, "-")`)
	if res.Err != nil {
		t.Fatalf("Execute failed: %v", res.Err)
	}
	if res.Value != "alpha-beta-gamma" {
		t.Errorf("Value = %q", res.Value)
	}
}

func TestInterpreter_SetContextMap(t *testing.T) {
	it := newTestInterpreter(t, Config{})

	c := types.MapContext(
		types.MapEntry{Key: "title", Value: types.Text("Moby Dick")},
		types.MapEntry{Key: "year", Value: types.Number(1851)},
	)
	if err := it.SetContext("doc", c); err != nil {
		t.Fatalf("SetContext failed: %v", err)
	}

	res := it.Execute(context.Background(), `doc["title"] + " " + doc["year"]`)
	if res.Err != nil {
		t.Fatalf("Execute failed: %v", res.Err)
	}
	if res.Value != "Moby Dick 1851" {
		t.Errorf("Value = %q", res.Value)
	}
}

func TestInterpreter_QueryBridge(t *testing.T) {
	var gotPrompt string
	it := newTestInterpreter(t, Config{
		Query: func(prompt string) string {
			gotPrompt = prompt
			return "model says hi"
		},
		QueryBatched: func(prompts []string) []string {
			out := make([]string, len(prompts))
			for i, p := range prompts {
				out[i] = "re: " + p
			}
			return out
		},
	})

	res := it.Execute(context.Background(), `Query("summarize this")`)
	if res.Err != nil {
		t.Fatalf("Execute failed: %v", res.Err)
	}
	if res.Value != "model says hi" {
		t.Errorf("Value = %q", res.Value)
	}
	if gotPrompt != "summarize this" {
		t.Errorf("prompt = %q", gotPrompt)
	}

	res = it.Execute(context.Background(), `answers := QueryBatched([]string{"a", "b"})
strings.Join(answers, "|")`)
	if res.Err != nil {
		t.Fatalf("Execute failed: %v", res.Err)
	}
	if res.Value != "re: a|re: b" {
		t.Errorf("Value = %q", res.Value)
	}
}

func TestInterpreter_QueryStubWithoutClient(t *testing.T) {
	it := newTestInterpreter(t, Config{})

	res := it.Execute(context.Background(), `Query("anyone there?")`)
	if res.Err != nil {
		t.Fatalf("Execute failed: %v", res.Err)
	}
	if !strings.Contains(res.Value, "no model client configured") {
		t.Errorf("Value = %q", res.Value)
	}
}

func TestResult_Output(t *testing.T) {
	cases := []struct {
		name string
		res  Result
		want string
	}{
		{"stdout only", Result{Stdout: "line\n"}, "line"},
		{"value only", Result{Value: "42"}, "42"},
		{"stdout and value", Result{Stdout: "log\n", Value: "42"}, "log\n42"},
		{"empty", Result{}, "(no output)"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.res.Output(); got != tc.want {
				t.Errorf("Output() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestResult_OutputWithError(t *testing.T) {
	it := newTestInterpreter(t, Config{})
	res := it.Execute(context.Background(), `nope()`)
	out := res.Output()
	if !strings.Contains(out, "error:") {
		t.Errorf("Output() = %q, want error report", out)
	}
}
