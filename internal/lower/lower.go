package lower

import (
	"strconv"
	"strings"

	"nasin/internal/bytecode"
	"nasin/internal/diag"
	"nasin/internal/syntax"
	"nasin/internal/types"
)

// FuncDecl is one top-level function declaration handed to LowerModule.
// Body is nil for an extern declaration.
type FuncDecl struct {
	Name   string
	Params []bytecode.Param
	Ret    types.Type
	Body   syntax.Node
	Extern string
}

// GlobalDecl is one top-level global declaration handed to LowerModule.
type GlobalDecl struct {
	Name         string
	Ty           types.Type
	Body         syntax.Node
	IsEntryPoint bool
}

// Lowerer turns a set of top-level declarations into a bytecode.Module. It
// resolves identifiers against the module's own functions and globals, so
// declaration order within a module never matters (spec §4.3 assumes
// forward and recursive references resolve freely).
type Lowerer struct {
	modName string
	path    string
	source  string
	bag     *diag.Bag

	funcByName   map[string]int
	globalByName map[string]int
}

// NewLowerer returns a Lowerer for one source file. source is the file's
// full text, used only to translate byte ranges into line/col for
// diagnostics; path is the name reported alongside those diagnostics.
func NewLowerer(modName, path, source string, bag *diag.Bag) *Lowerer {
	return &Lowerer{modName: modName, path: path, source: source, bag: bag}
}

// LowerModule lowers every function and global body and returns the
// assembled module. Extern functions contribute a declaration with no
// body.
func (lw *Lowerer) LowerModule(funcs []FuncDecl, globals []GlobalDecl) *bytecode.Module {
	mod := bytecode.NewModule(lw.modName)
	lw.funcByName = make(map[string]int, len(funcs))
	lw.globalByName = make(map[string]int, len(globals))

	for _, fd := range funcs {
		idx := mod.AddFunc(bytecode.Func{Name: fd.Name, Params: fd.Params, Ret: fd.Ret, Extern: fd.Extern})
		lw.funcByName[fd.Name] = idx
	}
	for _, gd := range globals {
		idx := mod.AddGlobal(bytecode.Global{Name: gd.Name, Ty: gd.Ty, IsEntryPoint: gd.IsEntryPoint})
		lw.globalByName[gd.Name] = idx
	}

	for i, fd := range funcs {
		if fd.Extern != "" {
			continue
		}
		mod.Funcs[i].Body = lw.lowerFuncBody(i, fd.Params, fd.Body)
	}
	for i, gd := range globals {
		mod.Globals[i].Body = lw.lowerGlobalBody(gd.Body)
	}
	return mod
}

func (lw *Lowerer) baseEnv() map[string]ParserValue {
	env := make(map[string]ParserValue, len(lw.funcByName)+len(lw.globalByName))
	for name, idx := range lw.funcByName {
		env[name] = funcValue(idx)
	}
	for name, idx := range lw.globalByName {
		env[name] = globalValue(idx)
	}
	return env
}

func (lw *Lowerer) lowerFuncBody(fnIdx int, params []bytecode.Param, body syntax.Node) []bytecode.Instr {
	env := lw.baseEnv()
	for i, p := range params {
		env[p.Name] = localValue(i)
	}
	bl := &bodyLowerer{lw: lw, fnIdx: fnIdx, paramCount: len(params)}
	bl.stack.height = len(params)
	bl.scopes.push(newScope(env))

	result := bl.lowerExpr(body, true)
	if !result.IsNever() {
		bl.materialize(body, result)
	}

	out := bl.body
	if bl.scopes.outermost().isLoop {
		out = wrapLoop(out, len(params))
	}
	return out
}

func (lw *Lowerer) lowerGlobalBody(body syntax.Node) []bytecode.Instr {
	bl := &bodyLowerer{lw: lw, fnIdx: -1}
	bl.scopes.push(newScope(lw.baseEnv()))

	result := bl.lowerExpr(body, false)
	if !result.IsNever() {
		bl.materialize(body, result)
	}
	return bl.body
}

// bodyLowerer lowers a single function or global body. fnIdx is -1 while
// lowering a global, since globals can never be the target of a
// self-recursive tail call.
type bodyLowerer struct {
	lw         *Lowerer
	fnIdx      int
	paramCount int

	body   []bytecode.Instr
	stack  valueStack
	scopes scopeStack
}

func (bl *bodyLowerer) emit(instr bytecode.Instr) {
	bl.body = append(bl.body, instr)
}

func (bl *bodyLowerer) loc(n syntax.Node) bytecode.Loc {
	return offsetToLoc(bl.lw.source, n.Range().Start)
}

func offsetToLoc(src string, off int) bytecode.Loc {
	if off > len(src) {
		off = len(src)
	}
	line, col := 1, 1
	for i := 0; i < off; i++ {
		if src[i] == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}
	return bytecode.Loc{Line: line, Col: col}
}

func (bl *bodyLowerer) report(n syntax.Node, kind diag.Kind, msg string) {
	loc := bl.loc(n)
	bl.lw.bag.Add(diag.Diagnostic{
		Severity: diag.Error, Kind: kind, Message: msg,
		Path: bl.lw.path, Range: n.Range(), Line: loc.Line, Col: loc.Col,
	})
}

// poison reports a diagnostic and inserts an explicit CompileError producer
// in place of the value that couldn't be built (spec §7), so downstream
// instructions still find a well-formed stack.
func (bl *bodyLowerer) poison(n syntax.Node, kind diag.Kind, msg string) ParserValue {
	bl.report(n, kind, msg)
	bl.emit(bytecode.CompileErrorInstr(bl.loc(n)))
	return tempValue(bl.stack.push())
}

// materialize ensures v's value is on top of the bytecode stack, emitting
// whatever producer instruction is needed, and returns its absolute
// position. A valueTemp already sitting on top (the common case right
// after lowering a compound expression) is consumed in place rather than
// re-duplicated; a valueLocal is a named binding that may be referenced
// again later and so is always duplicated, never consumed.
func (bl *bodyLowerer) materialize(n syntax.Node, v ParserValue) int {
	if v.kind == valueTemp && v.localPos == bl.stack.height-1 {
		return v.localPos
	}
	loc := bl.loc(n)
	switch v.kind {
	case valueLocal, valueTemp:
		bl.emit(bytecode.Dup(bl.stack.rel(v.localPos), loc))
	case valueGlobal:
		bl.emit(bytecode.GetGlobal(v.globalIdx, loc))
	case valueBool:
		bl.emit(bytecode.CreateValue(bytecode.BoolValue(v.boolVal), loc))
	case valueNumber:
		if v.isFloat {
			bl.emit(bytecode.CreateValue(bytecode.FloatValue(v.numTy, v.fltVal), loc))
		} else {
			bl.emit(bytecode.CreateValue(bytecode.IntValue(v.numTy, v.intVal), loc))
		}
	case valueString:
		bl.emit(bytecode.CreateString(v.strVal, loc))
	case valueFunc:
		bl.report(n, diag.NotImplemented, "functions are not first-class values")
		bl.emit(bytecode.CompileErrorInstr(loc))
	case valueNever:
		panic("nasin: internal error: materialize called on a Never value")
	}
	return bl.stack.push()
}

// lowerExpr dispatches on n's kind. tail reports whether n's result, if
// any, is the body's final value — propagated into if/block so a call
// appearing there can be recognized as a tail call.
func (bl *bodyLowerer) lowerExpr(n syntax.Node, tail bool) ParserValue {
	switch n.Kind() {
	case "bool":
		return boolValue(n.Text() == "true")
	case "number":
		return bl.lowerNumber(n)
	case "string":
		return stringValue(n.Text())
	case "ident":
		return bl.lowerIdent(n)
	case "binary":
		return bl.lowerBinary(n)
	case "if":
		return bl.lowerIf(n, tail)
	case "block":
		return bl.lowerBlock(n, tail)
	case "call":
		return bl.lowerCall(n, tail)
	case "field":
		return bl.lowerField(n)
	case "index":
		return bl.lowerIndex(n)
	case "array":
		return bl.lowerArray(n)
	case "record":
		return bl.lowerRecord(n)
	default:
		panic("nasin: internal error: unrecognized syntax node kind " + n.Kind())
	}
}

func (bl *bodyLowerer) lowerNumber(n syntax.Node) ParserValue {
	text := n.Text()
	if strings.ContainsAny(text, ".eE") {
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return bl.poison(n, diag.NotImplemented, "malformed numeric literal "+text)
		}
		return floatValue(f)
	}
	v, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return bl.poison(n, diag.NotImplemented, "malformed numeric literal "+text)
	}
	return intValue(v)
}

func (bl *bodyLowerer) lowerIdent(n syntax.Node) ParserValue {
	if v, ok := bl.scopes.lookup(n.Text()); ok {
		return v
	}
	return bl.poison(n, diag.UnresolvedIdentifier, "unresolved identifier "+n.Text())
}

var binaryOps = map[string]bytecode.Op{
	"+": bytecode.OpAdd, "-": bytecode.OpSub, "*": bytecode.OpMul,
	"/": bytecode.OpDiv, "%": bytecode.OpMod,
	"==": bytecode.OpEq, "!=": bytecode.OpNeq,
	">": bytecode.OpGt, ">=": bytecode.OpGte, "<": bytecode.OpLt, "<=": bytecode.OpLte,
}

func (bl *bodyLowerer) lowerBinary(n syntax.Node) ParserValue {
	leftNode := syntax.MustField(n, "left")
	rightNode := syntax.MustField(n, "right")
	opText := syntax.MustField(n, "op").Text()

	if opText == "**" {
		// Design notes: exponentiation is left unimplemented pending a
		// decision on library-supplied vs. inlined integer pow.
		return bl.poison(n, diag.NotImplemented, "exponentiation is not supported")
	}
	op, ok := binaryOps[opText]
	if !ok {
		panic("nasin: internal error: unknown binary operator " + opText)
	}

	l := bl.lowerExpr(leftNode, false)
	if l.IsNever() {
		return l
	}
	bl.materialize(leftNode, l)

	r := bl.lowerExpr(rightNode, false)
	if r.IsNever() {
		return r
	}
	bl.materialize(rightNode, r)

	bl.emit(bytecode.Instr{Op: op, Loc: bl.loc(n)})
	bl.stack.pop(2)
	return tempValue(bl.stack.push())
}

func (bl *bodyLowerer) lowerIf(n syntax.Node, tail bool) ParserValue {
	condNode := syntax.MustField(n, "cond")
	cond := bl.lowerExpr(condNode, false)
	if cond.IsNever() {
		return cond
	}
	bl.materialize(condNode, cond)
	bl.stack.pop(1)
	base := bl.stack.height

	bl.emit(bytecode.If(types.EmptyInfer(), bl.loc(n)))
	parentEnv := bl.scopes.top().env

	bl.scopes.push(newScope(parentEnv))
	thenNode := syntax.MustField(n, "then")
	thenVal := bl.lowerExpr(thenNode, tail)
	thenNever := thenVal.IsNever()
	if !thenNever {
		bl.materialize(thenNode, thenVal)
	}
	bl.scopes.pop()

	bl.emit(bytecode.Else(bl.loc(n)))
	bl.stack.height = base

	bl.scopes.push(newScope(parentEnv))
	var elseVal ParserValue
	if elseNode, ok := n.Field("else"); ok {
		elseVal = bl.lowerExpr(elseNode, tail)
		if !elseVal.IsNever() {
			bl.materialize(elseNode, elseVal)
		}
	} else {
		elseVal = bl.poison(n, diag.NotImplemented, "if without else is not supported")
	}
	elseNever := elseVal.IsNever()
	bl.scopes.pop()

	bl.emit(bytecode.End(bl.loc(n)))

	if thenNever && elseNever {
		bl.stack.height = base
		return neverValue()
	}
	bl.stack.height = base + 1
	return tempValue(base)
}

func (bl *bodyLowerer) lowerBlock(n syntax.Node, tail bool) ParserValue {
	parentEnv := bl.scopes.top().env
	bl.scopes.push(newScope(parentEnv))
	defer bl.scopes.pop()

	for _, stmt := range n.Fields("items") {
		patNode := syntax.MustField(stmt, "pat")
		valNode := syntax.MustField(stmt, "value")
		v := bl.lowerExpr(valNode, false)
		if v.IsNever() {
			return v
		}
		pos := bl.materialize(valNode, v)
		bl.scopes.bind(patNode.Text(), localValue(pos))
	}

	retNode := syntax.MustField(n, "return")
	return bl.lowerExpr(retNode, tail)
}

func (bl *bodyLowerer) resolveCallee(n syntax.Node) (ParserValue, bool) {
	if n.Kind() != "ident" {
		return ParserValue{}, false
	}
	return bl.scopes.lookup(n.Text())
}

func (bl *bodyLowerer) lowerCall(n syntax.Node, tail bool) ParserValue {
	calleeNode := syntax.MustField(n, "callee")
	args := n.Fields("args")

	argVals := make([]ParserValue, len(args))
	for i, a := range args {
		v := bl.lowerExpr(a, false)
		if v.IsNever() {
			return v
		}
		argVals[i] = v
	}

	callee, ok := bl.resolveCallee(calleeNode)
	if !ok {
		return bl.poison(calleeNode, diag.UnresolvedIdentifier, "call to unresolved identifier "+calleeNode.Text())
	}
	if callee.kind != valueFunc {
		return bl.poison(calleeNode, diag.NotImplemented, "indirect calls are not supported")
	}

	if tail && bl.fnIdx >= 0 && callee.funcIdx == bl.fnIdx {
		for i, a := range args {
			bl.materialize(a, argVals[i])
		}
		bl.emit(bytecode.Continue(len(args), bl.loc(n)))
		bl.stack.pop(len(args))
		bl.scopes.outermost().isLoop = true
		bl.scopes.outermost().loopArity = bl.paramCount
		return neverValue()
	}

	for i, a := range args {
		bl.materialize(a, argVals[i])
	}
	bl.emit(bytecode.Call(callee.funcIdx, len(args), bl.loc(n)))
	bl.stack.pop(len(args))
	return tempValue(bl.stack.push())
}

func (bl *bodyLowerer) lowerField(n syntax.Node) ParserValue {
	parentNode := syntax.MustField(n, "parent")
	propNode := syntax.MustField(n, "prop_name")

	pv := bl.lowerExpr(parentNode, false)
	if pv.IsNever() {
		return pv
	}
	bl.materialize(parentNode, pv)
	bl.emit(bytecode.GetField(propNode.Text(), bl.loc(n)))
	bl.stack.pop(1)
	return tempValue(bl.stack.push())
}

// lowerIndex lowers an array[index] expression, mirroring lowerField's
// parent/materialize/emit shape with a second operand for the index.
func (bl *bodyLowerer) lowerIndex(n syntax.Node) ParserValue {
	parentNode := syntax.MustField(n, "parent")
	indexNode := syntax.MustField(n, "index")

	pv := bl.lowerExpr(parentNode, false)
	if pv.IsNever() {
		return pv
	}
	bl.materialize(parentNode, pv)

	iv := bl.lowerExpr(indexNode, false)
	if iv.IsNever() {
		return iv
	}
	bl.materialize(indexNode, iv)

	bl.emit(bytecode.ArrayIndex(bl.loc(n)))
	bl.stack.pop(2)
	return tempValue(bl.stack.push())
}

func (bl *bodyLowerer) lowerArray(n syntax.Node) ParserValue {
	elems := n.Fields("items")
	vals := make([]ParserValue, len(elems))
	for i, e := range elems {
		v := bl.lowerExpr(e, false)
		if v.IsNever() {
			return v
		}
		vals[i] = v
	}
	for i, e := range elems {
		bl.materialize(e, vals[i])
	}
	bl.emit(bytecode.CreateArray(types.EmptyInfer(), len(elems), bl.loc(n)))
	bl.stack.pop(len(elems))
	return tempValue(bl.stack.push())
}

func (bl *bodyLowerer) lowerRecord(n syntax.Node) ParserValue {
	finits := n.Fields("fields")
	names := make([]string, len(finits))
	vals := make([]ParserValue, len(finits))
	for i, fi := range finits {
		names[i] = syntax.MustField(fi, "name").Text()
		valNode := syntax.MustField(fi, "value")
		v := bl.lowerExpr(valNode, false)
		if v.IsNever() {
			return v
		}
		vals[i] = v
	}
	for i, fi := range finits {
		valNode := syntax.MustField(fi, "value")
		bl.materialize(valNode, vals[i])
	}
	bl.emit(bytecode.CreateRecord(names, bl.loc(n)))
	bl.stack.pop(len(finits))
	return tempValue(bl.stack.push())
}
