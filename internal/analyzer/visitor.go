package analyzer

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/zeebo/xxh3"

	"github.com/DNYoussef/spek-v2-rebuild-sub002/internal/config"
	"github.com/DNYoussef/spek-v2-rebuild-sub002/internal/ir"
	"github.com/DNYoussef/spek-v2-rebuild-sub002/internal/pysrc"
)

var (
	snakeCaseRe  = regexp.MustCompile(`^[_a-z][_a-z0-9]*$`)
	pascalCaseRe = regexp.MustCompile(`^_?[A-Z][a-zA-Z0-9]*$`)
	constantRe   = regexp.MustCompile(`^[A-Z][A-Z0-9_]*$`)
	hostPortRe   = regexp.MustCompile(`^[\w.-]+:\d+$`)
)

var threadingCallNames = map[string]bool{
	"Thread": true, "Lock": true, "RLock": true, "Semaphore": true,
	"BoundedSemaphore": true, "Event": true, "Condition": true,
	"Barrier": true, "acquire": true, "release": true,
}

var orderCallNames = map[string]bool{
	"setup": true, "initialize": true, "init": true, "connect": true,
	"open": true, "close": true, "start": true, "shutdown": true,
	"teardown": true,
}

// UnifiedVisitor walks a parsed source unit exactly once and populates
// the shared intermediate representation that every detector consumes.
// One visitor serves one Collect call; construct a fresh one per file.
type UnifiedVisitor struct {
	cfg  *config.Config
	unit *pysrc.SourceUnit
	out  *ir.File

	nodesVisited int

	funcStack     []*funcFrame
	classStack    []string
	moduleAssigns map[string]struct{}
}

type funcFrame struct {
	info       *ir.FuncInfo
	isInit     bool
	initAttrs  map[string]bool
	globalSeen map[string]bool
	callRun    int
	maxCallRun int
}

func NewUnifiedVisitor(cfg *config.Config) *UnifiedVisitor {
	return &UnifiedVisitor{
		cfg:           cfg,
		moduleAssigns: make(map[string]struct{}),
	}
}

// Collect runs the single traversal and returns the populated IR.
// A nil unit or tree is a programmer error and panics immediately;
// continuing would hand detectors a corrupted IR.
func (v *UnifiedVisitor) Collect(unit *pysrc.SourceUnit) *ir.File {
	if unit == nil || unit.Root == nil {
		panic("visitor: Collect called with nil source unit or tree")
	}
	v.unit = unit
	v.out = ir.NewFile(unit.Path, unit.Lines)
	v.walk(unit.Root)
	return v.out
}

// NodesVisited reports how many nodes the traversal dispatched on.
func (v *UnifiedVisitor) NodesVisited() int {
	return v.nodesVisited
}

func (v *UnifiedVisitor) walk(n *sitter.Node) {
	v.nodesVisited++

	switch n.Type() {
	case "function_definition":
		frame := v.enterFunction(n)
		if frame != nil {
			v.funcStack = append(v.funcStack, frame)
			v.walkChildren(n)
			v.funcStack = v.funcStack[:len(v.funcStack)-1]
			v.finishFunction(frame)
		} else {
			v.walkChildren(n)
		}
		return

	case "class_definition":
		name := v.enterClass(n)
		if name != "" {
			v.classStack = append(v.classStack, name)
			v.walkChildren(n)
			v.classStack = v.classStack[:len(v.classStack)-1]
		} else {
			v.walkChildren(n)
		}
		return

	case "if_statement", "elif_clause", "while_statement", "for_statement",
		"try_statement", "except_clause":
		v.addComplexity()
		v.resetCallRun()

	case "with_statement":
		v.addComplexity()
		v.resetCallRun()
		v.recordWith(n)

	case "boolean_operator":
		v.addComplexity()

	case "return_statement":
		v.resetCallRun()

	case "expression_statement":
		v.recordStatementRun(n)

	case "call":
		v.recordCall(n)

	case "assignment":
		v.recordAssignment(n)

	case "global_statement":
		v.recordGlobal(n)

	case "import_statement", "import_from_statement":
		v.recordImport(n)

	case "integer", "float":
		v.recordNumber(n)

	case "string":
		v.recordString(n)

	case "identifier":
		v.recordIdentifier(n)
	}

	v.walkChildren(n)
}

func (v *UnifiedVisitor) walkChildren(n *sitter.Node) {
	for i := 0; i < int(n.ChildCount()); i++ {
		if child := n.Child(i); child != nil {
			v.walk(child)
		}
	}
}

func (v *UnifiedVisitor) currentFrame() *funcFrame {
	if len(v.funcStack) == 0 {
		return nil
	}
	return v.funcStack[len(v.funcStack)-1]
}

func (v *UnifiedVisitor) currentClass() string {
	if len(v.classStack) == 0 {
		return ""
	}
	return v.classStack[len(v.classStack)-1]
}

func (v *UnifiedVisitor) enclosingFuncName() string {
	if f := v.currentFrame(); f != nil {
		return f.info.Name
	}
	return ""
}

func (v *UnifiedVisitor) addComplexity() {
	if f := v.currentFrame(); f != nil {
		f.info.Complexity++
	}
}

func (v *UnifiedVisitor) resetCallRun() {
	if f := v.currentFrame(); f != nil {
		f.callRun = 0
	}
}

// enterFunction records everything derivable from the definition node
// itself: parameter count, structural digest, docstring presence and
// naming findings. Complexity accumulates while the body is walked.
func (v *UnifiedVisitor) enterFunction(n *sitter.Node) (frame *funcFrame) {
	defer func() {
		if r := recover(); r != nil {
			frame = nil // malformed subtree, skip this definition
		}
	}()

	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}
	name := v.unit.Content(nameNode)

	body := n.ChildByFieldName("body")
	bodyStmts := countStatements(body)

	info := &ir.FuncInfo{
		Node:           n,
		Name:           name,
		Line:           int(n.StartPoint().Row) + 1,
		Column:         int(n.StartPoint().Column) + 1,
		Span:           ir.Span{Start: int(n.StartPoint().Row) + 1, End: int(n.EndPoint().Row) + 1},
		Class:          v.currentClass(),
		ParamCount:     v.countParams(n.ChildByFieldName("parameters")),
		Complexity:     1,
		BodyStatements: bodyStmts,
		HasDocstring:   hasDocstring(body),
		IsPublic:       !strings.HasPrefix(name, "_"),
	}

	if bodyStmts > v.cfg.Rules.Algorithm.MinBodyStatements {
		info.Digest = v.bodyDigest(body)
		v.out.StructuralHashes[info.Digest] = append(v.out.StructuralHashes[info.Digest], ir.DigestEntry{
			Path:     v.unit.Path,
			Function: name,
			Node:     n,
			Line:     info.Line,
		})
	}

	// Methods are functions declared directly under a class body.
	if info.Class != "" && len(v.funcStack) == 0 {
		v.out.MethodCounts[info.Class]++
		if ci, ok := v.out.Classes[info.Class]; ok {
			ci.MethodCount++
		}
	}

	if !snakeCaseRe.MatchString(name) {
		v.out.NamingFindings = append(v.out.NamingFindings, ir.NamingFinding{
			Kind:   ir.NamingFunctionCase,
			Name:   name,
			Line:   info.Line,
			Column: info.Column,
			Detail: "function names should be snake_case",
		})
	}
	if v.cfg.Rules.Convention.RequireDocstrings && info.IsPublic && !info.HasDocstring &&
		bodyStmts > v.cfg.Rules.Convention.DocstringMinStatements {
		v.out.NamingFindings = append(v.out.NamingFindings, ir.NamingFinding{
			Kind:   ir.NamingMissingDocstring,
			Name:   name,
			Line:   info.Line,
			Column: info.Column,
			Detail: fmt.Sprintf("public function '%s' has no docstring", name),
		})
	}

	v.out.Functions[name] = info
	v.out.ParamCounts[name] = info.ParamCount

	return &funcFrame{
		info:       info,
		isInit:     name == "__init__",
		initAttrs:  make(map[string]bool),
		globalSeen: make(map[string]bool),
	}
}

func (v *UnifiedVisitor) finishFunction(f *funcFrame) {
	v.out.Complexity[f.info.Name] = f.info.Complexity
	f.info.SideEffectCalls = f.maxCallRun
	if len(f.globalSeen) > 0 {
		reads := make([]string, 0, len(f.globalSeen))
		for name := range f.globalSeen {
			reads = append(reads, name)
		}
		sort.Strings(reads)
		f.info.GlobalReads = reads
	}
}

func (v *UnifiedVisitor) enterClass(n *sitter.Node) (name string) {
	defer func() {
		if r := recover(); r != nil {
			name = ""
		}
	}()

	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		return ""
	}
	name = v.unit.Content(nameNode)
	body := n.ChildByFieldName("body")

	info := &ir.ClassInfo{
		Node:         n,
		Name:         name,
		Line:         int(n.StartPoint().Row) + 1,
		Column:       int(n.StartPoint().Column) + 1,
		Span:         ir.Span{Start: int(n.StartPoint().Row) + 1, End: int(n.EndPoint().Row) + 1},
		HasDocstring: hasDocstring(body),
	}

	v.out.Classes[name] = info
	v.out.ClassSpans[name] = info.Span
	if _, ok := v.out.MethodCounts[name]; !ok {
		v.out.MethodCounts[name] = 0
	}

	if !pascalCaseRe.MatchString(name) {
		v.out.NamingFindings = append(v.out.NamingFindings, ir.NamingFinding{
			Kind:   ir.NamingClassCase,
			Name:   name,
			Line:   info.Line,
			Column: info.Column,
			Detail: "class names should be PascalCase",
		})
	}
	if v.cfg.Rules.Convention.RequireDocstrings && !strings.HasPrefix(name, "_") &&
		!info.HasDocstring && countStatements(body) > v.cfg.Rules.Convention.DocstringMinStatements {
		v.out.NamingFindings = append(v.out.NamingFindings, ir.NamingFinding{
			Kind:   ir.NamingMissingDocstring,
			Name:   name,
			Line:   info.Line,
			Column: info.Column,
			Detail: fmt.Sprintf("public class '%s' has no docstring", name),
		})
	}

	return name
}

// recordWith marks lock-style context managers so the timing detector
// can tell synchronized global access from bare access.
func (v *UnifiedVisitor) recordWith(n *sitter.Node) {
	f := v.currentFrame()
	if f == nil {
		return
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if c.Type() != "with_clause" {
			continue
		}
		clause := strings.ToLower(v.unit.Content(c))
		if strings.Contains(clause, "lock") || strings.Contains(clause, "semaphore") ||
			strings.Contains(clause, "mutex") || strings.Contains(clause, "cond") {
			f.info.SyncContexts++
		}
	}
}

// recordStatementRun tracks the longest run of consecutive bare call
// statements inside the current function.
func (v *UnifiedVisitor) recordStatementRun(n *sitter.Node) {
	f := v.currentFrame()
	if f == nil {
		return
	}
	c := firstNamedNonComment(n)
	if c != nil && c.Type() == "call" {
		f.callRun++
		if f.callRun > f.maxCallRun {
			f.maxCallRun = f.callRun
		}
	} else {
		f.callRun = 0
	}
}

func (v *UnifiedVisitor) recordCall(n *sitter.Node) {
	defer func() { _ = recover() }()

	fn := n.ChildByFieldName("function")
	if fn == nil {
		return
	}

	var callee string
	switch fn.Type() {
	case "identifier":
		callee = v.unit.Content(fn)
	case "attribute":
		if attr := fn.ChildByFieldName("attribute"); attr != nil {
			callee = v.unit.Content(attr)
		}
	default:
		return
	}
	if callee == "" {
		return
	}

	var kind ir.CallKind
	switch {
	case v.isSleepCall(callee):
		kind = ir.CallTiming
	case threadingCallNames[callee]:
		kind = ir.CallThreading
	case orderCallNames[callee]:
		kind = ir.CallOrder
	default:
		return
	}

	v.out.Calls = append(v.out.Calls, ir.CallSite{
		Name:          callee,
		Line:          int(n.StartPoint().Row) + 1,
		Column:        int(n.StartPoint().Column) + 1,
		Kind:          kind,
		EnclosingFunc: v.enclosingFuncName(),
	})
}

func (v *UnifiedVisitor) isSleepCall(name string) bool {
	for _, s := range v.cfg.Rules.Timing.SleepFunctions {
		if name == s {
			return true
		}
	}
	return false
}

func (v *UnifiedVisitor) recordAssignment(n *sitter.Node) {
	defer func() { _ = recover() }()

	left := n.ChildByFieldName("left")
	if left == nil {
		return
	}

	frame := v.currentFrame()

	if frame == nil && len(v.classStack) == 0 && left.Type() == "identifier" {
		name := v.unit.Content(left)
		// Module-level state feeds the shared-state reads tracked per
		// function; constants are checked against the naming pattern.
		if name == strings.ToLower(name) {
			v.moduleAssigns[name] = struct{}{}
		} else if !constantRe.MatchString(name) {
			v.out.NamingFindings = append(v.out.NamingFindings, ir.NamingFinding{
				Kind:   ir.NamingConstantCase,
				Name:   name,
				Line:   int(n.StartPoint().Row) + 1,
				Column: int(n.StartPoint().Column) + 1,
				Detail: "module-level names should be snake_case or CONSTANT_CASE",
			})
		}
	}

	if frame != nil && frame.isInit && left.Type() == "attribute" {
		obj := left.ChildByFieldName("object")
		attrNode := left.ChildByFieldName("attribute")
		if obj == nil || attrNode == nil || v.unit.Content(obj) != "self" {
			return
		}
		attr := v.unit.Content(attrNode)
		if right := n.ChildByFieldName("right"); right != nil {
			deps := v.selfAttrReads(right, frame.initAttrs)
			if len(deps) > 0 {
				v.out.OrderMarkers = append(v.out.OrderMarkers, ir.OrderMarker{
					Kind:      ir.OrderInitAttrDependency,
					Function:  frame.info.Name,
					Class:     frame.info.Class,
					Attr:      attr,
					DependsOn: deps,
					Line:      int(n.StartPoint().Row) + 1,
				})
			}
		}
		frame.initAttrs[attr] = true
	}
}

// selfAttrReads collects self.X reads under n where X was assigned by
// an earlier statement of the same constructor.
func (v *UnifiedVisitor) selfAttrReads(n *sitter.Node, known map[string]bool) []string {
	var deps []string
	seen := make(map[string]bool)
	var scan func(node *sitter.Node)
	scan = func(node *sitter.Node) {
		if node.Type() == "attribute" {
			obj := node.ChildByFieldName("object")
			attr := node.ChildByFieldName("attribute")
			if obj != nil && attr != nil && v.unit.Content(obj) == "self" {
				name := v.unit.Content(attr)
				if known[name] && !seen[name] {
					seen[name] = true
					deps = append(deps, name)
				}
			}
		}
		for i := 0; i < int(node.NamedChildCount()); i++ {
			scan(node.NamedChild(i))
		}
	}
	scan(n)
	sort.Strings(deps)
	return deps
}

func (v *UnifiedVisitor) recordGlobal(n *sitter.Node) {
	frame := v.currentFrame()
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if c.Type() != "identifier" {
			continue
		}
		name := v.unit.Content(c)
		v.out.Globals[name] = struct{}{}
		if frame != nil {
			frame.globalSeen[name] = true
			v.out.OrderMarkers = append(v.out.OrderMarkers, ir.OrderMarker{
				Kind:     ir.OrderGlobalDecl,
				Function: frame.info.Name,
				Attr:     name,
				Line:     int(n.StartPoint().Row) + 1,
			})
		}
	}
}

func (v *UnifiedVisitor) recordImport(n *sitter.Node) {
	defer func() { _ = recover() }()

	if n.Type() == "import_from_statement" {
		if mod := n.ChildByFieldName("module_name"); mod != nil {
			v.out.Imports[v.unit.Content(mod)] = struct{}{}
		}
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		switch c.Type() {
		case "dotted_name":
			v.out.Imports[v.unit.Content(c)] = struct{}{}
		case "aliased_import":
			if name := c.ChildByFieldName("name"); name != nil {
				v.out.Imports[v.unit.Content(name)] = struct{}{}
			}
		}
	}
}

// recordNumber applies the interesting-literal predicate to numeric
// constants. Conservative on purpose: it runs on every constant in
// every file, so false negatives beat false positives.
func (v *UnifiedVisitor) recordNumber(n *sitter.Node) {
	defer func() { _ = recover() }()

	raw := strings.ReplaceAll(v.unit.Content(n), "_", "")
	var value float64
	if i, err := strconv.ParseInt(raw, 0, 64); err == nil {
		value = float64(i)
	} else if fv, err := strconv.ParseFloat(raw, 64); err == nil {
		value = fv
	} else {
		return
	}

	for _, allowed := range v.cfg.Rules.MagicLiteral.AllowedNumbers {
		if value == allowed {
			return
		}
	}

	v.out.Literals = append(v.out.Literals, ir.Literal{
		Node:          n,
		Raw:           v.unit.Content(n),
		IsString:      false,
		Line:          int(n.StartPoint().Row) + 1,
		Column:        int(n.StartPoint().Column) + 1,
		AssignTarget:  v.assignTargetFor(n),
		EnclosingFunc: v.enclosingFuncName(),
	})
}

func (v *UnifiedVisitor) recordString(n *sitter.Node) {
	defer func() { _ = recover() }()

	if isDocstringNode(n) {
		return
	}

	value := stripStringQuotes(v.unit.Content(n))
	// Single characters are never interesting.
	if len(value) <= 1 {
		return
	}
	for _, allowed := range v.cfg.Rules.MagicLiteral.AllowedStrings {
		if value == allowed {
			return
		}
	}

	v.out.Literals = append(v.out.Literals, ir.Literal{
		Node:           n,
		Raw:            value,
		IsString:       true,
		Line:           int(n.StartPoint().Row) + 1,
		Column:         int(n.StartPoint().Column) + 1,
		AssignTarget:   v.assignTargetFor(n),
		EnclosingFunc:  v.enclosingFuncName(),
		LooksHardcoded: looksHardcoded(value),
	})
}

func (v *UnifiedVisitor) recordIdentifier(n *sitter.Node) {
	frame := v.currentFrame()
	if frame == nil {
		return
	}
	name := v.unit.Content(n)
	if _, ok := v.moduleAssigns[name]; ok {
		frame.globalSeen[name] = true
	}
}

// assignTargetFor returns the identifier a literal is directly
// assigned to, if any.
func (v *UnifiedVisitor) assignTargetFor(n *sitter.Node) string {
	parent := n.Parent()
	if parent == nil || parent.Type() != "assignment" {
		return ""
	}
	right := parent.ChildByFieldName("right")
	if right == nil || right.StartByte() != n.StartByte() || right.EndByte() != n.EndByte() {
		return ""
	}
	left := parent.ChildByFieldName("left")
	if left == nil {
		return ""
	}
	if left.Type() == "identifier" {
		return v.unit.Content(left)
	}
	if left.Type() == "attribute" {
		if attr := left.ChildByFieldName("attribute"); attr != nil {
			return v.unit.Content(attr)
		}
	}
	return ""
}

// bodyDigest maps each top-level statement to a coarse category token
// and hashes the joined sequence. Names and literal values are
// deliberately discarded so renamed copies of the same algorithm
// collide.
func (v *UnifiedVisitor) bodyDigest(body *sitter.Node) string {
	var tokens []string
	for i := 0; i < int(body.NamedChildCount()); i++ {
		c := body.NamedChild(i)
		if c.Type() == "comment" {
			continue
		}
		tokens = append(tokens, stmtCategory(c))
	}
	return fmt.Sprintf("%016x", xxh3.HashString(strings.Join(tokens, "|")))
}

func stmtCategory(n *sitter.Node) string {
	switch t := n.Type(); t {
	case "return_statement":
		return "return"
	case "if_statement":
		return "if"
	case "for_statement":
		return "for"
	case "try_statement":
		return "try"
	case "with_statement":
		return "with"
	case "function_definition":
		return "function-def"
	case "class_definition":
		return "class-def"
	case "decorated_definition":
		if d := n.ChildByFieldName("definition"); d != nil {
			return stmtCategory(d)
		}
		return "decorated"
	case "expression_statement":
		if c := firstNamedNonComment(n); c != nil {
			switch c.Type() {
			case "assignment", "augmented_assignment":
				return "assign"
			case "call":
				return "call-expression"
			}
		}
		return "expression"
	default:
		return strings.TrimSuffix(t, "_statement")
	}
}

// countStatements counts named non-comment children of a block.
func countStatements(body *sitter.Node) int {
	if body == nil {
		return 0
	}
	count := 0
	for i := 0; i < int(body.NamedChildCount()); i++ {
		if body.NamedChild(i).Type() != "comment" {
			count++
		}
	}
	return count
}

func firstNamedNonComment(n *sitter.Node) *sitter.Node {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if c := n.NamedChild(i); c.Type() != "comment" {
			return c
		}
	}
	return nil
}

// hasDocstring reports whether a block opens with a string expression.
func hasDocstring(body *sitter.Node) bool {
	if body == nil {
		return false
	}
	first := firstNamedNonComment(body)
	if first == nil || first.Type() != "expression_statement" {
		return false
	}
	inner := firstNamedNonComment(first)
	return inner != nil && inner.Type() == "string"
}

// isDocstringNode reports whether a string node is the docstring
// position of a module, class or function body.
func isDocstringNode(n *sitter.Node) bool {
	parent := n.Parent()
	if parent == nil || parent.Type() != "expression_statement" {
		return false
	}
	holder := parent.Parent()
	if holder == nil {
		return false
	}
	if holder.Type() != "block" && holder.Type() != "module" {
		return false
	}
	first := firstNamedNonComment(holder)
	return first != nil && first.StartByte() == parent.StartByte()
}

// countParams counts non-special positional parameters, stripping a
// leading self/cls receiver and any splat forms.
func (v *UnifiedVisitor) countParams(params *sitter.Node) int {
	if params == nil {
		return 0
	}
	count := 0
	first := true
	for i := 0; i < int(params.NamedChildCount()); i++ {
		p := params.NamedChild(i)
		var name string
		switch p.Type() {
		case "identifier":
			name = v.unit.Content(p)
		case "typed_parameter":
			if id := firstNamedNonComment(p); id != nil && id.Type() == "identifier" {
				name = v.unit.Content(id)
			}
		case "default_parameter", "typed_default_parameter":
			if id := p.ChildByFieldName("name"); id != nil {
				name = v.unit.Content(id)
			}
		default:
			// *args, **kwargs, bare separators
			continue
		}
		if first && (name == "self" || name == "cls") {
			first = false
			continue
		}
		first = false
		count++
	}
	return count
}

func stripStringQuotes(raw string) string {
	// Drop string prefixes (f, r, b, u and combinations).
	for len(raw) > 0 {
		c := raw[0]
		if c == 'f' || c == 'r' || c == 'b' || c == 'u' ||
			c == 'F' || c == 'R' || c == 'B' || c == 'U' {
			raw = raw[1:]
			continue
		}
		break
	}
	for _, q := range []string{`"""`, "'''", `"`, "'"} {
		if strings.HasPrefix(raw, q) && strings.HasSuffix(raw, q) && len(raw) >= 2*len(q) {
			return raw[len(q) : len(raw)-len(q)]
		}
	}
	return raw
}

// looksHardcoded flags string constants shaped like deployment detail:
// URLs, absolute or relative paths, host:port pairs.
func looksHardcoded(value string) bool {
	if strings.Contains(value, "://") {
		return true
	}
	if strings.HasPrefix(value, "/") || strings.HasPrefix(value, "./") {
		return true
	}
	return hostPortRe.MatchString(value)
}
