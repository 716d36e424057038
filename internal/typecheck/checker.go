package typecheck

import (
	"nasin/internal/bytecode"
	"nasin/internal/diag"
)

// Check runs both phases of the checker over mod and writes resolved
// types back on success. It reports every diagnostic found (validation
// never short-circuits, spec §4.4) and returns true iff mod is free of
// errors and safe to hand to code generation.
func Check(mod *bytecode.Module, path string, bag *diag.Bag) bool {
	for fi := range mod.Funcs {
		f := &mod.Funcs[fi]
		if f.IsExtern() {
			continue
		}
		if err := bytecode.ValidateStackBalance(len(f.Params), f.Body); err != nil {
			panic("nasin: internal error: " + path + ": " + err.Error())
		}
	}
	for gi := range mod.Globals {
		if err := bytecode.ValidateStackBalance(0, mod.Globals[gi].Body); err != nil {
			panic("nasin: internal error: " + path + ": " + err.Error())
		}
	}

	res := CheckModule(mod, path, bag)
	ok := res.Validate(bag)
	if ok {
		res.WriteBack(mod)
	}
	return ok
}
