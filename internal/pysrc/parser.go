// Package pysrc parses Python source files into tree-sitter syntax
// trees and wraps them in per-file source units.
package pysrc

import (
	"context"
	"fmt"
	"os"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// SourceUnit is the immutable per-file input to one analysis: path,
// raw bytes, split lines for snippet extraction, and the parsed tree.
// A unit is created per analysis request and never shared across files.
type SourceUnit struct {
	Path   string
	Source []byte
	Lines  []string
	Tree   *sitter.Tree
	Root   *sitter.Node
}

// Parse reads and parses a Python file from disk.
func Parse(ctx context.Context, path string) (*SourceUnit, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}
	return ParseBytes(ctx, path, source)
}

// ParseBytes parses in-memory Python source. A tree containing syntax
// errors is rejected so downstream collection never sees a broken tree.
func ParseBytes(ctx context.Context, path string, source []byte) (*SourceUnit, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(python.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	root := tree.RootNode()
	if root == nil {
		return nil, fmt.Errorf("failed to parse %s: no syntax tree produced", path)
	}
	if root.HasError() {
		return nil, fmt.Errorf("syntax error in %s", path)
	}

	return &SourceUnit{
		Path:   path,
		Source: source,
		Lines:  strings.Split(string(source), "\n"),
		Tree:   tree,
		Root:   root,
	}, nil
}

// Line returns the 1-based source line, or "" when out of range.
func (u *SourceUnit) Line(n int) string {
	if n < 1 || n > len(u.Lines) {
		return ""
	}
	return u.Lines[n-1]
}

// Content returns the source text covered by a node.
func (u *SourceUnit) Content(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	start, end := n.StartByte(), n.EndByte()
	if end > uint32(len(u.Source)) {
		end = uint32(len(u.Source))
	}
	if start >= end {
		return ""
	}
	return string(u.Source[start:end])
}
