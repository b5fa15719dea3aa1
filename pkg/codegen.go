package bask

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"
	"github.com/pkg/errors"
)

// ValueLookup maps identifier text to its addressable slot. The slots are
// owned by the module; the lookup holds only non-owning references.
type ValueLookup struct {
	vals map[string]value.Value
}

func NewValueLookup() *ValueLookup {
	return &ValueLookup{
		vals: make(map[string]value.Value),
	}
}

func (l *ValueLookup) Get(id string) (value.Value, bool) {
	v, ok := l.vals[id]
	return v, ok
}

func (l *ValueLookup) Set(id string, val value.Value) {
	l.vals[id] = val
}

// Generator lowers a syntax tree into an LLVM module. The current block is
// the insertion point; it is nil while lowering at module scope until the
// implicit main has been synthesized. Every expression lowers to an i64
// value.
type Generator struct {
	mod    *ir.Module
	block  *ir.Block
	env    *ValueLookup
	funcs  map[string]*ir.Func
	mainFn *ir.Func
}

func NewGenerator() *Generator {
	g := &Generator{
		mod:   ir.NewModule(),
		env:   NewValueLookup(),
		funcs: make(map[string]*ir.Func),
	}
	g.mod.SourceFilename = "Entry"

	return g
}

// Module returns the module under construction.
func (g *Generator) Module() *ir.Module {
	return g.mod
}

// Generate lowers the program tree. The root must be the parser's top-level
// Statement. If any module-scope expression needed an insertion block, the
// implicit main function hosting it is terminated with a return of the last
// top-level value.
func (g *Generator) Generate(tree Expr) error {
	root, ok := tree.(*Statement)
	if !ok {
		return errors.New("program root is not a statement list")
	}

	last, err := g.genStatement(root)
	if err != nil {
		return err
	}

	if g.mainFn != nil {
		g.block.NewRet(last)
	}

	return nil
}

func (g *Generator) genValue(e Expr) (value.Value, error) {
	switch n := e.(type) {
	case *NoneExpr:
		return izero(), nil
	case *LiteralExpr:
		return constant.NewInt(types.I64, n.Value), nil
	case *Identifier:
		slot, ok := g.env.Get(n.Name)
		if !ok {
			return nil, errors.Errorf("undefined identifier '%s'", n.Name)
		}
		return g.host().NewLoad(types.I64, slot), nil
	case *VariableDecl:
		return g.genVar(n)
	case *BinaryExpr:
		return g.genBinary(n)
	case *UnaryExpr:
		return g.genUnary(n)
	case *FuncDecl:
		return g.genFunc(n)
	case *FuncCall:
		return g.genCall(n)
	case *IfExpr:
		return g.genIf(n)
	case *LoopExpr:
		return nil, errors.New("loop lowering is not implemented")
	case *Statement:
		return g.genStatement(n)
	default:
		return nil, errors.Errorf("unexpected node %T", e)
	}
}

// genStatement lowers children in order; the statement's value is the last
// child's value, or zero for an empty list.
func (g *Generator) genStatement(n *Statement) (value.Value, error) {
	var last value.Value = izero()

	for _, child := range n.Exprs {
		v, err := g.genValue(child)
		if err != nil {
			return nil, err
		}
		last = v
	}

	return last, nil
}

// genVar binds a name to a fresh slot. Inside a function the slot is an
// entry-block alloca; at module scope a constant initializer becomes a
// module global. A non-constant module-scope initializer has already
// synthesized the implicit main by the time its value comes back, so it
// lands on the alloca path.
func (g *Generator) genVar(n *VariableDecl) (value.Value, error) {
	val, err := g.genValue(n.Init)
	if err != nil {
		return nil, err
	}

	if g.block == nil {
		c, ok := val.(constant.Constant)
		if !ok {
			return nil, errors.New("Variable Location Error")
		}

		glob := g.mod.NewGlobalDef(n.Name, c)
		g.env.Set(n.Name, glob)

		return val, nil
	}

	slot, err := g.entryAlloca(n.Name)
	if err != nil {
		return nil, err
	}
	g.block.NewStore(val, slot)
	g.env.Set(n.Name, slot)

	return val, nil
}

// genBinary lowers arithmetic, bit, comparison and assignment forms. An
// assignment lowers its left side as an address: only identifiers qualify.
// Comparisons come out of icmp as i1 and are widened back to i64.
func (g *Generator) genBinary(n *BinaryExpr) (value.Value, error) {
	if n.Op == OpAssign {
		id, ok := n.Lhs.(*Identifier)
		if !ok {
			return nil, errors.New("Expected Identifier")
		}

		slot, ok := g.env.Get(id.Name)
		if !ok {
			return nil, errors.Errorf("undefined identifier '%s'", id.Name)
		}

		val, err := g.genValue(n.Rhs)
		if err != nil {
			return nil, err
		}

		g.host().NewStore(val, slot)
		return val, nil
	}

	lhs, err := g.genValue(n.Lhs)
	if err != nil {
		return nil, err
	}
	rhs, err := g.genValue(n.Rhs)
	if err != nil {
		return nil, err
	}

	b := g.host()
	switch n.Op {
	case OpAdd:
		return b.NewAdd(lhs, rhs), nil
	case OpSub:
		return b.NewSub(lhs, rhs), nil
	case OpMul:
		return b.NewMul(lhs, rhs), nil
	case OpDiv:
		return b.NewSDiv(lhs, rhs), nil
	case OpAnd:
		return b.NewAnd(lhs, rhs), nil
	case OpOr:
		return b.NewOr(lhs, rhs), nil
	case OpEqual, OpNE, OpLT, OpLTE, OpGT, OpGTE:
		cmp := b.NewICmp(comparePred(n.Op), lhs, rhs)
		return b.NewZExt(cmp, types.I64), nil
	default:
		return nil, errors.Errorf("operator '%s' is not implemented", n.Op)
	}
}

// genUnary lowers numeric negation as a subtraction from zero.
func (g *Generator) genUnary(n *UnaryExpr) (value.Value, error) {
	if n.Op != OpSub {
		return nil, errors.Errorf("operator '%s' is not implemented", n.Op)
	}

	v, err := g.genValue(n.Operand)
	if err != nil {
		return nil, err
	}

	return g.host().NewSub(izero(), v), nil
}

// genFunc builds an internal-linkage i64 function with one i64 parameter
// per declared parameter; annotations do not change the type. Each
// parameter gets an entry-block slot so the value is addressable in the
// body. The insertion point and the environment are restored on the way
// out.
func (g *Generator) genFunc(n *FuncDecl) (value.Value, error) {
	params := make([]*ir.Param, len(n.Params))
	for i, p := range n.Params {
		params[i] = ir.NewParam(p.Name, types.I64)
	}

	f := g.mod.NewFunc(n.Name, types.I64, params...)
	f.Linkage = enum.LinkageInternal
	g.funcs[n.Name] = f

	prevBlock, prevEnv := g.block, g.env
	g.block = f.NewBlock("entry")
	g.env = NewValueLookup()
	defer func() {
		g.block = prevBlock
		g.env = prevEnv
	}()

	for i, p := range n.Params {
		slot, err := g.entryAlloca(p.Name)
		if err != nil {
			return nil, err
		}
		g.block.NewStore(params[i], slot)
		g.env.Set(p.Name, slot)
	}

	ret, err := g.genValue(n.Body)
	if err != nil {
		return nil, err
	}
	g.block.NewRet(ret)

	return izero(), nil
}

func (g *Generator) genCall(n *FuncCall) (value.Value, error) {
	f, ok := g.lookupFunc(n.Name)
	if !ok {
		return nil, errors.Errorf("undefined function '%s'", n.Name)
	}

	if len(n.Args) != len(f.Params) {
		return nil, errors.Errorf("function '%s' expects %d arguments, got %d",
			n.Name, len(f.Params), len(n.Args))
	}

	args := make([]value.Value, len(n.Args))
	for i, a := range n.Args {
		v, err := g.genValue(a)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}

	return g.host().NewCall(f, args...), nil
}

// genIf lowers a branch into then, else and merge blocks spliced in right
// after the current one. Each arm records the block it terminates in, not
// the block it entered at, so the phi stays correct when a nested branch
// moves the insertion point.
func (g *Generator) genIf(n *IfExpr) (value.Value, error) {
	condVal, err := g.genValue(n.Cond)
	if err != nil {
		return nil, err
	}

	b := g.host()
	cond := b.NewICmp(enum.IPredNE, condVal, izero())

	f := b.Parent
	thenB := ir.NewBlock("")
	elseB := ir.NewBlock("")
	mergeB := ir.NewBlock("")
	insertBlocksAfter(f, b, thenB, elseB, mergeB)

	b.NewCondBr(cond, thenB, elseB)

	g.block = thenB
	thenVal, err := g.genValue(n.Then)
	if err != nil {
		return nil, err
	}
	thenEnd := g.block
	thenEnd.NewBr(mergeB)

	elseVal := value.Value(izero())
	elseEnd := elseB
	if !IsNone(n.Else) {
		g.block = elseB
		elseVal, err = g.genValue(n.Else)
		if err != nil {
			return nil, err
		}
		elseEnd = g.block
	}
	elseEnd.NewBr(mergeB)

	g.block = mergeB
	phi := mergeB.NewPhi(
		ir.NewIncoming(thenVal, thenEnd),
		ir.NewIncoming(elseVal, elseEnd),
	)

	return phi, nil
}

// host returns the insertion block, synthesizing the implicit main function
// the first time module-scope code needs one. Pure constants never reach
// here, so a constant-only program leaves the module without functions.
func (g *Generator) host() *ir.Block {
	if g.block == nil {
		g.mainFn = g.mod.NewFunc("main", types.I64)
		g.block = g.mainFn.NewBlock("entry")
	}

	return g.block
}

// lookupFunc resolves a callee among the user-defined functions first, then
// the builtins, which are materialized in the module on first use.
func (g *Generator) lookupFunc(name string) (*ir.Func, bool) {
	if f, ok := g.funcs[name]; ok {
		return f, true
	}

	if def, ok := builtinTable[name]; ok {
		f := def(g.mod)
		g.funcs[name] = f
		return f, true
	}

	return nil, false
}

// entryAlloca creates an i64 stack slot at the head of the enclosing
// function's entry block, keeping every slot in the prologue where the
// optimizer can promote it to a register.
func (g *Generator) entryAlloca(name string) (*ir.InstAlloca, error) {
	f := g.block.Parent
	if f == nil {
		return nil, errors.New("Variable Location Error")
	}

	slot := ir.NewAlloca(types.I64)
	if _, taken := g.env.Get(name); !taken {
		// A shadowing redeclaration keeps the auto-assigned ID so local
		// names stay unique within the function.
		slot.SetName(name)
	}

	entry := f.Blocks[0]
	entry.Insts = append([]ir.Instruction{slot}, entry.Insts...)

	return slot, nil
}

// insertBlocksAfter splices blocks into f immediately after cur, keeping
// the textual block order aligned with control flow.
func insertBlocksAfter(f *ir.Func, cur *ir.Block, blocks ...*ir.Block) {
	idx := len(f.Blocks)
	for i, b := range f.Blocks {
		if b == cur {
			idx = i + 1
			break
		}
	}

	rest := append([]*ir.Block{}, f.Blocks[idx:]...)
	f.Blocks = append(f.Blocks[:idx], append(blocks, rest...)...)

	for _, b := range blocks {
		b.Parent = f
	}
}

func comparePred(op Operator) enum.IPred {
	switch op {
	case OpEqual:
		return enum.IPredEQ
	case OpNE:
		return enum.IPredNE
	case OpLT:
		return enum.IPredSLT
	case OpLTE:
		return enum.IPredSLE
	case OpGT:
		return enum.IPredSGT
	default:
		return enum.IPredSGE
	}
}

func izero() *constant.Int {
	return constant.NewInt(types.I64, 0)
}
