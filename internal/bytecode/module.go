package bytecode

import "nasin/internal/types"

// RecordField is one declared field of a Record typedef.
type RecordField struct {
	Type types.Type
	Loc  Loc
}

// TypeDef is currently only ever a Record (spec §3.2): a sorted set of
// named, typed fields. Field iteration order is the canonical order used
// for CreateRecord emission (spec §4.5), regardless of literal order.
type TypeDef struct {
	Name   string
	Fields *sortedFields
	Loc    Loc
}

// Global is a module-level value with a body of instructions producing it.
type Global struct {
	Name         string
	Ty           types.Type
	Body         []Instr
	IsEntryPoint bool
	Loc          Loc
}

// Param is one function parameter.
type Param struct {
	Name string
	Ty   types.Type
}

// Func is a function definition or extern declaration. Extern is empty for
// a defined function and holds the linked symbol name otherwise, in which
// case Body is empty.
type Func struct {
	Name   string
	Params []Param
	Ret    types.Type
	Body   []Instr
	Extern string
	Loc    Loc
}

// IsExtern reports whether f is an extern declaration rather than a
// defined function.
func (f *Func) IsExtern() bool { return f.Extern != "" }

// Source is one entry of the module's source table, used only to resolve
// Loc values back to file paths for diagnostics.
type Source struct {
	Path string
	Text string
}

// Module owns a compilation unit's typedefs, globals, functions, and
// source table. Cross-references between these are always indices into
// the parallel slices below, never back-pointers (spec §3.4).
type Module struct {
	Name     string
	Typedefs []TypeDef
	Globals  []Global
	Funcs    []Func
	Sources  []Source
}

// NewModule returns an empty module named name.
func NewModule(name string) *Module {
	return &Module{Name: name}
}

// AddTypeDef appends td and returns its index.
func (m *Module) AddTypeDef(td TypeDef) int {
	m.Typedefs = append(m.Typedefs, td)
	return len(m.Typedefs) - 1
}

// AddGlobal appends g and returns its index.
func (m *Module) AddGlobal(g Global) int {
	m.Globals = append(m.Globals, g)
	return len(m.Globals) - 1
}

// AddFunc appends f and returns its index.
func (m *Module) AddFunc(f Func) int {
	m.Funcs = append(m.Funcs, f)
	return len(m.Funcs) - 1
}

// Field implements types.Resolver: the declared type of field name on the
// record typedef at index ref.
func (m *Module) Field(ref int, name string) (types.Type, bool) {
	if ref < 0 || ref >= len(m.Typedefs) {
		return types.Type{}, false
	}
	rf, ok := m.Typedefs[ref].Fields.Get(name)
	if !ok {
		return types.Type{}, false
	}
	return rf.Type, true
}

// FieldNames implements types.Resolver: the declared field names of the
// record typedef at index ref, in canonical (sorted) order.
func (m *Module) FieldNames(ref int) []string {
	if ref < 0 || ref >= len(m.Typedefs) {
		return nil
	}
	return m.Typedefs[ref].Fields.Keys()
}

var _ types.Resolver = (*Module)(nil)
