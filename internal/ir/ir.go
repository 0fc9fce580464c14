// Package ir holds the intermediate representation produced by one
// traversal of a Python syntax tree. Every detector reads from this
// structure; none may mutate it after collection.
package ir

import (
	sitter "github.com/smacker/go-tree-sitter"
)

// Span is a 1-based inclusive line range.
type Span struct {
	Start int
	End   int
}

func (s Span) Lines() int {
	return s.End - s.Start + 1
}

// FuncInfo captures everything collected for one function definition.
type FuncInfo struct {
	Node    *sitter.Node
	Name    string
	Line    int
	Column  int
	Span    Span
	Class   string // enclosing class, "" for module-level functions

	ParamCount     int // non-receiver positional parameters
	Complexity     int
	BodyStatements int
	Digest         string // "" when the body is too trivial to digest

	HasDocstring bool
	IsPublic     bool

	GlobalReads     []string // module-level names read inside the body
	SyncContexts    int      // lock-style with-blocks in the body
	SideEffectCalls int      // longest run of consecutive bare call statements
}

// ClassInfo captures everything collected for one class definition.
type ClassInfo struct {
	Node         *sitter.Node
	Name         string
	Line         int
	Column       int
	Span         Span
	MethodCount  int
	HasDocstring bool
}

// Literal is one constant the visitor judged interesting, together
// with the context needed to decide configuration exemptions later.
type Literal struct {
	Node           *sitter.Node
	Raw            string
	IsString       bool
	Line           int
	Column         int
	AssignTarget   string // variable name when directly assigned, else ""
	EnclosingFunc  string
	LooksHardcoded bool // path/URL/host shaped string constants
}

// CallKind classifies a call site against fixed keyword sets.
type CallKind string

const (
	CallTiming    CallKind = "timing"
	CallThreading CallKind = "threading"
	CallOrder     CallKind = "order"
)

type CallSite struct {
	Name          string // callee identifier or attribute name
	Line          int
	Column        int
	Kind          CallKind
	EnclosingFunc string
}

// DigestEntry is one member of a structural-hash bucket.
type DigestEntry struct {
	Path     string
	Function string
	Node     *sitter.Node
	Line     int
}

// NamingKind tags one convention finding.
type NamingKind string

const (
	NamingFunctionCase     NamingKind = "function_case"
	NamingClassCase        NamingKind = "class_case"
	NamingConstantCase     NamingKind = "constant_case"
	NamingMissingDocstring NamingKind = "missing_docstring"
)

type NamingFinding struct {
	Kind   NamingKind
	Name   string
	Line   int
	Column int
	Detail string
}

// OrderKind tags one execution-order marker.
type OrderKind string

const (
	OrderGlobalDecl         OrderKind = "global_decl"
	OrderInitAttrDependency OrderKind = "init_attr_dependency"
)

type OrderMarker struct {
	Kind      OrderKind
	Function  string
	Class     string
	Attr      string
	DependsOn []string
	Line      int
}

// File is the complete output of one tree walk. Function and class
// maps are keyed by name; names colliding across nested scopes resolve
// last-write-wins, which callers must tolerate.
type File struct {
	Path  string
	Lines []string

	Functions   map[string]*FuncInfo
	ParamCounts map[string]int
	Complexity  map[string]int

	Classes      map[string]*ClassInfo
	MethodCounts map[string]int
	ClassSpans   map[string]Span

	Imports map[string]struct{}
	Globals map[string]struct{}

	Literals         []Literal
	StructuralHashes map[string][]DigestEntry
	Calls            []CallSite
	NamingFindings   []NamingFinding
	OrderMarkers     []OrderMarker
}

func NewFile(path string, lines []string) *File {
	return &File{
		Path:             path,
		Lines:            lines,
		Functions:        make(map[string]*FuncInfo),
		ParamCounts:      make(map[string]int),
		Complexity:       make(map[string]int),
		Classes:          make(map[string]*ClassInfo),
		MethodCounts:     make(map[string]int),
		ClassSpans:       make(map[string]Span),
		Imports:          make(map[string]struct{}),
		Globals:          make(map[string]struct{}),
		StructuralHashes: make(map[string][]DigestEntry),
	}
}

// HasImport reports whether the file imports the given module or symbol.
func (f *File) HasImport(name string) bool {
	_, ok := f.Imports[name]
	return ok
}
