package bask

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/types"
)

type funcDefinition = func(mod *ir.Module) *ir.Func

// builtinTable holds the functions available to every program without a
// declaration. A builtin is added to the module only when a call site
// actually resolves to it, so unused builtins leave no trace in the IR.
var builtinTable = map[string]funcDefinition{
	"print": builtinPrint,
}

// builtinPrint wraps the C printf with a "%ld\n" format. It returns its
// argument, so a print call can sit anywhere an expression can.
func builtinPrint(mod *ir.Module) *ir.Func {
	printf := mod.NewFunc("printf", types.I32, ir.NewParam("format", types.I8Ptr))
	printf.Sig.Variadic = true

	format := constant.NewCharArrayFromString("%ld\n\x00")
	formatGlob := mod.NewGlobalDef(".print_fmt", format)

	f := mod.NewFunc("print", types.I64, ir.NewParam("n", types.I64))
	b := f.NewBlock("")

	zero := constant.NewInt(types.I32, 0)
	fmtAddr := constant.NewGetElementPtr(format.Typ, formatGlob, zero, zero)
	b.NewCall(printf, fmtAddr, f.Params[0])
	b.NewRet(f.Params[0])

	return f
}
