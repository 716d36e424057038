// Package bytecode implements the stack-based bytecode IR of spec §3.2 and
// §4.2: modules, typedefs, globals, functions, and the nested-block
// instruction set, plus the stack-balance validator that the type checker
// relies on before it ever looks at types.
//
// Grounded on original_source/src/bytecode/{instr,module,ty,value}.rs for
// the exact instruction set and on the teacher's ir package (now removed,
// see DESIGN.md) for Go-side conventions: a flat instruction slice rather
// than a tree, banner-commented sections, and doc comments on every
// exported declaration.
package bytecode

// Loc is a source location, carried through from the external syntax tree
// so diagnostics can point back at the offending source text.
type Loc struct {
	Line int
	Col  int
}
