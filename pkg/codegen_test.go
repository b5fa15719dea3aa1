package bask

import (
	"testing"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueLookup(t *testing.T) {
	vals := NewValueLookup()

	val1 := constant.NewInt(types.I64, 1)
	val2 := constant.NewInt(types.I64, 2)

	vals.Set("id1", val1)
	vals.Set("id2", val2)

	got1, ok := vals.Get("id1")
	assert.True(t, ok)
	assert.Equal(t, val1, got1)

	got2, ok := vals.Get("id2")
	assert.True(t, ok)
	assert.Equal(t, val2, got2)

	_, ok = vals.Get("id3")
	assert.False(t, ok)
}

// lower runs a source snippet through the whole frontend and returns the
// module it produced.
func lower(t *testing.T, src string) *ir.Module {
	t.Helper()

	toks, err := NewLexer().Tokenize(src)
	require.NoError(t, err)

	tree, err := NewParser().Parse(toks)
	require.NoError(t, err)

	gen := NewGenerator()
	require.NoError(t, gen.Generate(tree))

	return gen.Module()
}

func lowerErr(t *testing.T, src string) error {
	t.Helper()

	toks, err := NewLexer().Tokenize(src)
	require.NoError(t, err)

	tree, err := NewParser().Parse(toks)
	require.NoError(t, err)

	return NewGenerator().Generate(tree)
}

func findFunc(t *testing.T, mod *ir.Module, name string) *ir.Func {
	t.Helper()

	for _, f := range mod.Funcs {
		if f.Name() == name {
			return f
		}
	}

	t.Fatalf("function %q not in module", name)
	return nil
}

// assertTerminated checks the structural invariant that every block the
// generator leaves behind ends in exactly one terminator.
func assertTerminated(t *testing.T, f *ir.Func) {
	t.Helper()

	for i, b := range f.Blocks {
		assert.NotNil(t, b.Term, "block %d of %s has no terminator", i, f.Name())
	}
}

func TestGenerateEmptyProgram(t *testing.T) {
	mod := lower(t, "")

	assert.Empty(t, mod.Funcs)
	assert.Empty(t, mod.Globals)
}

// A constant-only program never needs an insertion block, so the module
// stays empty.
func TestGenerateLoneLiteral(t *testing.T) {
	mod := lower(t, "1")

	assert.Empty(t, mod.Funcs)
	assert.Empty(t, mod.Globals)
}

func TestGenerateGlobalThenAssign(t *testing.T) {
	mod := lower(t, "let a = 0  a = 5")

	require.Len(t, mod.Globals, 1)
	glob := mod.Globals[0]
	assert.Equal(t, "a", glob.Name())

	init, ok := glob.Init.(*constant.Int)
	require.True(t, ok)
	assert.EqualValues(t, 0, init.X.Int64())

	main := findFunc(t, mod, "main")
	require.Len(t, main.Blocks, 1)
	entry := main.Blocks[0]

	require.Len(t, entry.Insts, 1)
	store, ok := entry.Insts[0].(*ir.InstStore)
	require.True(t, ok)

	stored, ok := store.Src.(*constant.Int)
	require.True(t, ok)
	assert.EqualValues(t, 5, stored.X.Int64())
	assert.Equal(t, glob, store.Dst)

	ret, ok := entry.Term.(*ir.TermRet)
	require.True(t, ok)
	assert.Equal(t, stored, ret.X)
}

func TestGenerateFunctionAndCall(t *testing.T) {
	mod := lower(t, "fn add(a:Int, b:Int) { a + b } add(2,3)")

	add := findFunc(t, mod, "add")
	assert.Equal(t, enum.LinkageInternal, add.Linkage)
	assert.Equal(t, types.I64, add.Sig.RetType)
	require.Len(t, add.Params, 2)
	assert.Equal(t, "a", add.Params[0].Name())
	assert.Equal(t, "b", add.Params[1].Name())

	require.Len(t, add.Blocks, 1)
	entry := add.Blocks[0]

	allocas := 0
	for _, inst := range entry.Insts {
		if _, ok := inst.(*ir.InstAlloca); ok {
			allocas++
		}
	}
	assert.Equal(t, 2, allocas)
	assertTerminated(t, add)

	ret, ok := entry.Term.(*ir.TermRet)
	require.True(t, ok)
	_, ok = ret.X.(*ir.InstAdd)
	assert.True(t, ok)

	main := findFunc(t, mod, "main")
	require.Len(t, main.Blocks, 1)

	var call *ir.InstCall
	for _, inst := range main.Blocks[0].Insts {
		if c, ok := inst.(*ir.InstCall); ok {
			call = c
		}
	}
	require.NotNil(t, call)
	assert.Equal(t, add, call.Callee)
	assert.Len(t, call.Args, 2)
}

func TestGenerateIf(t *testing.T) {
	mod := lower(t, "if 1 { 10 } else { 20 }")

	main := findFunc(t, mod, "main")
	require.Len(t, main.Blocks, 4)
	assertTerminated(t, main)

	entry := main.Blocks[0]
	_, ok := entry.Term.(*ir.TermCondBr)
	assert.True(t, ok)

	merge := main.Blocks[3]
	require.NotEmpty(t, merge.Insts)
	phi, ok := merge.Insts[0].(*ir.InstPhi)
	require.True(t, ok)
	require.Len(t, phi.Incs, 2)

	thenVal, ok := phi.Incs[0].X.(*constant.Int)
	require.True(t, ok)
	assert.EqualValues(t, 10, thenVal.X.Int64())

	elseVal, ok := phi.Incs[1].X.(*constant.Int)
	require.True(t, ok)
	assert.EqualValues(t, 20, elseVal.X.Int64())

	assert.Equal(t, main.Blocks[1], phi.Incs[0].Pred)
	assert.Equal(t, main.Blocks[2], phi.Incs[1].Pred)

	ret, ok := merge.Term.(*ir.TermRet)
	require.True(t, ok)
	assert.Equal(t, phi, ret.X)
}

// A missing else still produces a two-incoming phi, with zero flowing in
// from the empty arm.
func TestGenerateIfWithoutElse(t *testing.T) {
	mod := lower(t, "if 1 { 10 }")

	main := findFunc(t, mod, "main")
	require.Len(t, main.Blocks, 4)
	assertTerminated(t, main)

	merge := main.Blocks[3]
	phi, ok := merge.Insts[0].(*ir.InstPhi)
	require.True(t, ok)
	require.Len(t, phi.Incs, 2)

	elseVal, ok := phi.Incs[1].X.(*constant.Int)
	require.True(t, ok)
	assert.EqualValues(t, 0, elseVal.X.Int64())
}

// The phi records the block each arm terminates in, not the block it
// entered at, so a nested branch inside an arm redirects the incoming edge
// to its merge block.
func TestGenerateNestedIf(t *testing.T) {
	mod := lower(t, "if 1 { if 2 { 3 } else { 4 } } else { 5 }")

	main := findFunc(t, mod, "main")
	require.Len(t, main.Blocks, 7)
	assertTerminated(t, main)

	outerMerge := main.Blocks[6]
	phi, ok := outerMerge.Insts[0].(*ir.InstPhi)
	require.True(t, ok)
	require.Len(t, phi.Incs, 2)

	innerMerge := main.Blocks[4]
	assert.Equal(t, innerMerge, phi.Incs[0].Pred)
}

func TestGenerateComparison(t *testing.T) {
	mod := lower(t, "1 < 2")

	main := findFunc(t, mod, "main")
	entry := main.Blocks[0]
	require.Len(t, entry.Insts, 2)

	_, ok := entry.Insts[0].(*ir.InstICmp)
	assert.True(t, ok)

	zext, ok := entry.Insts[1].(*ir.InstZExt)
	require.True(t, ok)
	assert.Equal(t, types.I64, zext.To)

	ret, ok := entry.Term.(*ir.TermRet)
	require.True(t, ok)
	assert.Equal(t, zext, ret.X)
}

// Local slots live at the head of the entry block so they stay in the
// prologue.
func TestGenerateLocalSlotPlacement(t *testing.T) {
	mod := lower(t, "fn f() { let x = 3  x }")

	f := findFunc(t, mod, "f")
	entry := f.Blocks[0]
	require.NotEmpty(t, entry.Insts)

	_, ok := entry.Insts[0].(*ir.InstAlloca)
	assert.True(t, ok)
}

func TestGeneratePrintBuiltin(t *testing.T) {
	mod := lower(t, "print(42)")

	require.Len(t, mod.Funcs, 3)
	assert.Equal(t, "printf", mod.Funcs[0].Name())
	assert.Equal(t, "print", mod.Funcs[1].Name())
	assert.Equal(t, "main", mod.Funcs[2].Name())

	require.Len(t, mod.Globals, 1)
}

// The environment is scoped to the enclosing function; module-scope
// bindings survive a function definition but do not leak into it.
func TestGenerateEnvironmentScoping(t *testing.T) {
	mod := lower(t, "let a = 1 fn f(x) { x } a")

	findFunc(t, mod, "f")
	findFunc(t, mod, "main")
	require.Len(t, mod.Globals, 1)

	assert.Error(t, lowerErr(t, "fn f() { a } let a = 1"))
}

func TestGenerateErrors(t *testing.T) {
	cases := []string{
		"x + 1",              // undefined identifier
		"1 = 2",              // assignment target is not an identifier
		"foo(1)",             // undefined function
		"fn f(a) { a } f(1,2)", // arity mismatch
		"loop { 1 }",           // no loop lowering
	}

	for _, src := range cases {
		assert.Error(t, lowerErr(t, src), "source: %q", src)
	}
}

func TestGenerateModuleName(t *testing.T) {
	gen := NewGenerator()

	require.NoError(t, gen.Generate(&Statement{}))
	assert.Equal(t, "Entry", gen.Module().SourceFilename)
}
