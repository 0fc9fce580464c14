package analyzer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/DNYoussef/spek-v2-rebuild-sub002/internal/config"
	"github.com/DNYoussef/spek-v2-rebuild-sub002/internal/ir"
	"github.com/DNYoussef/spek-v2-rebuild-sub002/internal/pysrc"
)

func parseSource(t *testing.T, src string) *pysrc.SourceUnit {
	t.Helper()
	unit, err := pysrc.ParseBytes(context.Background(), "test.py", []byte(src))
	if err != nil {
		t.Fatalf("ParseBytes: %v", err)
	}
	return unit
}

func collect(t *testing.T, src string) *ir.File {
	t.Helper()
	v := NewUnifiedVisitor(config.DefaultConfig())
	return v.Collect(parseSource(t, src))
}

func countNodes(n *sitter.Node) int {
	total := 1
	for i := 0; i < int(n.ChildCount()); i++ {
		if child := n.Child(i); child != nil {
			total += countNodes(child)
		}
	}
	return total
}

func TestCollectVisitsEveryNodeOnce(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("..", "..", "testdata", "sample.py"))
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	unit, err := pysrc.ParseBytes(context.Background(), "sample.py", data)
	if err != nil {
		t.Fatalf("ParseBytes: %v", err)
	}

	v := NewUnifiedVisitor(config.DefaultConfig())
	v.Collect(unit)

	want := countNodes(unit.Root)
	if got := v.NodesVisited(); got != want {
		t.Errorf("NodesVisited() = %d, want %d", got, want)
	}
}

func TestCollectNilUnitPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on nil unit")
		}
	}()
	NewUnifiedVisitor(config.DefaultConfig()).Collect(nil)
}

func TestCollectFunctionInfo(t *testing.T) {
	src := `class Service:
    def handle(self, request, session, retries):
        """Handle one request."""
        if request and session:
            return retries
        for i in range(retries):
            while i:
                i = i - 1
        try:
            return session
        except ValueError:
            return None
`
	f := collect(t, src)

	fn, ok := f.Functions["handle"]
	if !ok {
		t.Fatal("function 'handle' not collected")
	}
	if fn.ParamCount != 3 {
		t.Errorf("ParamCount = %d, want 3 (self stripped)", fn.ParamCount)
	}
	if fn.Class != "Service" {
		t.Errorf("Class = %q, want Service", fn.Class)
	}
	if !fn.HasDocstring {
		t.Error("HasDocstring = false, want true")
	}
	// base 1 + if + and + for + while + try + except = 7
	if fn.Complexity != 7 {
		t.Errorf("Complexity = %d, want 7", fn.Complexity)
	}
	if f.MethodCounts["Service"] != 1 {
		t.Errorf("MethodCounts[Service] = %d, want 1", f.MethodCounts["Service"])
	}
}

func TestStructuralDigestBucketsRenamedCopies(t *testing.T) {
	src := `def first(items):
    out = []
    for item in items:
        if item:
            out.append(item)
    return out

def second(values):
    result = []
    for v in values:
        if v:
            result.append(v)
    return result
`
	f := collect(t, src)

	a, b := f.Functions["first"], f.Functions["second"]
	if a == nil || b == nil {
		t.Fatal("functions not collected")
	}
	if a.Digest == "" {
		t.Fatal("digest empty for non-trivial body")
	}
	if a.Digest != b.Digest {
		t.Errorf("digests differ: %s vs %s", a.Digest, b.Digest)
	}
	if got := len(f.StructuralHashes[a.Digest]); got != 2 {
		t.Errorf("bucket size = %d, want 2", got)
	}
}

func TestTrivialBodySkipsDigest(t *testing.T) {
	f := collect(t, "def tiny(x):\n    return x\n")
	if fn := f.Functions["tiny"]; fn.Digest != "" {
		t.Errorf("Digest = %q, want empty for trivial body", fn.Digest)
	}
}

func TestLiteralCollection(t *testing.T) {
	src := `def compute(x):
    """Doc."""
    a = x * 7
    b = x + 1
    url = "https://api.internal/v1"
    greeting = "hello world"
    return a + b
`
	f := collect(t, src)

	var sawSeven, sawOne, sawURL, sawDoc bool
	var urlHardcoded, greetingHardcoded bool
	for _, lit := range f.Literals {
		switch lit.Raw {
		case "7":
			sawSeven = true
		case "1":
			sawOne = true
		case "https://api.internal/v1":
			sawURL = true
			urlHardcoded = lit.LooksHardcoded
		case "hello world":
			greetingHardcoded = lit.LooksHardcoded
		case "Doc.":
			sawDoc = true
		}
	}

	if !sawSeven {
		t.Error("magic number 7 not collected")
	}
	if sawOne {
		t.Error("allowed number 1 collected")
	}
	if sawDoc {
		t.Error("docstring collected as literal")
	}
	if !sawURL || !urlHardcoded {
		t.Error("URL literal should be collected and marked hardcoded")
	}
	if greetingHardcoded {
		t.Error("plain string marked hardcoded")
	}
}

func TestGlobalAndOrderMarkers(t *testing.T) {
	src := `state = 0

def bump():
    """Bump the counter."""
    global state, other
    state = state + 3

class Box:
    """Holds derived paths."""

    def __init__(self, base):
        self.base = base
        self.full = self.base + "/x"
`
	f := collect(t, src)

	if _, ok := f.Globals["state"]; !ok {
		t.Error("global 'state' not recorded")
	}

	var globalDecls, initDeps int
	for _, m := range f.OrderMarkers {
		switch m.Kind {
		case ir.OrderGlobalDecl:
			globalDecls++
		case ir.OrderInitAttrDependency:
			initDeps++
			if m.Attr != "full" || len(m.DependsOn) != 1 || m.DependsOn[0] != "base" {
				t.Errorf("init dependency = %+v, want full depends on base", m)
			}
		}
	}
	if globalDecls != 2 {
		t.Errorf("global decl markers = %d, want 2", globalDecls)
	}
	if initDeps != 1 {
		t.Errorf("init dependency markers = %d, want 1", initDeps)
	}

	if reads := f.Functions["bump"].GlobalReads; len(reads) == 0 {
		t.Error("bump should read module state")
	}
}

func TestNamingFindings(t *testing.T) {
	src := `def BadName(x):
    y = x + 5
    z = y * 3
    return z

class lowercase_class:
    """Doc."""

    def ok(self):
        pass
`
	f := collect(t, src)

	kinds := make(map[ir.NamingKind]int)
	for _, finding := range f.NamingFindings {
		kinds[finding.Kind]++
	}
	if kinds[ir.NamingFunctionCase] != 1 {
		t.Errorf("function case findings = %d, want 1", kinds[ir.NamingFunctionCase])
	}
	if kinds[ir.NamingClassCase] != 1 {
		t.Errorf("class case findings = %d, want 1", kinds[ir.NamingClassCase])
	}
	if kinds[ir.NamingMissingDocstring] != 1 {
		t.Errorf("missing docstring findings = %d, want 1", kinds[ir.NamingMissingDocstring])
	}
}

func TestTimingCallsClassified(t *testing.T) {
	src := `import time

def pause():
    """Sleep briefly."""
    time.sleep(5)
`
	f := collect(t, src)

	var timing int
	for _, call := range f.Calls {
		if call.Kind == ir.CallTiming && call.Name == "sleep" {
			timing++
			if call.EnclosingFunc != "pause" {
				t.Errorf("EnclosingFunc = %q, want pause", call.EnclosingFunc)
			}
		}
	}
	if timing != 1 {
		t.Errorf("timing calls = %d, want 1", timing)
	}
	if !f.HasImport("time") {
		t.Error("import 'time' not recorded")
	}
}

func TestSideEffectRun(t *testing.T) {
	src := `def pipeline():
    """Run the steps in order."""
    setup()
    load()
    validate()
    transform()
    publish()
    cleanup()
`
	f := collect(t, src)
	if got := f.Functions["pipeline"].SideEffectCalls; got != 6 {
		t.Errorf("SideEffectCalls = %d, want 6", got)
	}
}
