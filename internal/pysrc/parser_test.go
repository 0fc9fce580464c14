package pysrc

import (
	"context"
	"strings"
	"testing"
)

func TestParseBytesValidSource(t *testing.T) {
	src := "def greet(name):\n    \"\"\"Say hello.\"\"\"\n    return \"hi \" + name\n"
	unit, err := ParseBytes(context.Background(), "greet.py", []byte(src))
	if err != nil {
		t.Fatalf("ParseBytes: %v", err)
	}

	if unit.Root.Type() != "module" {
		t.Errorf("root type = %q, want module", unit.Root.Type())
	}
	if len(unit.Lines) != 4 {
		t.Errorf("lines = %d, want 4", len(unit.Lines))
	}
}

func TestParseBytesRejectsSyntaxErrors(t *testing.T) {
	_, err := ParseBytes(context.Background(), "broken.py", []byte("def broken(:\n    pass\n"))
	if err == nil {
		t.Fatal("expected error for unparseable source")
	}
	if !strings.Contains(err.Error(), "broken.py") {
		t.Errorf("error %q does not name the file", err)
	}
}

func TestParseMissingFile(t *testing.T) {
	_, err := Parse(context.Background(), "does/not/exist.py")
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestContentAndLine(t *testing.T) {
	src := "x = 1\ny = 2\n"
	unit, err := ParseBytes(context.Background(), "t.py", []byte(src))
	if err != nil {
		t.Fatal(err)
	}

	if got := unit.Line(2); got != "y = 2" {
		t.Errorf("Line(2) = %q, want %q", got, "y = 2")
	}
	if got := unit.Line(99); got != "" {
		t.Errorf("Line(99) = %q, want empty", got)
	}
	if got := unit.Content(unit.Root); got != src {
		t.Errorf("Content(root) = %q, want full source", got)
	}
	if got := unit.Content(nil); got != "" {
		t.Errorf("Content(nil) = %q, want empty", got)
	}
}
