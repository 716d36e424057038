package bytecode

import "nasin/internal/util"

// sortedFields is the sorted-map<name, RecordField> of spec §3.2.
type sortedFields = util.SortedMap[RecordField]

// NewTypeDef constructs an empty Record typedef named name.
func NewTypeDef(name string, loc Loc) TypeDef {
	return TypeDef{Name: name, Fields: util.NewSortedMap[RecordField](), Loc: loc}
}

// WithField returns td with field name added, for convenient construction.
func (td TypeDef) WithField(name string, f RecordField) TypeDef {
	td.Fields.Set(name, f)
	return td
}
