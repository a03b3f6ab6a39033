package codegen

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"
	"github.com/xplshn/kidc/pkg/config"
	kir "github.com/xplshn/kidc/pkg/ir"
)

type llvmBackend struct {
	mod     *ir.Module
	prog    *nativeProgram
	printf  *ir.Func
	funcs   map[string]*ir.Func
	globals map[string]*ir.Global
	strs    []constant.Constant
	fmts    map[valueKind]constant.Constant
	trueS   constant.Constant
	falseS  constant.Constant

	// per function
	fn     *nativeFunc
	llFn   *ir.Func
	block  *ir.Block
	blocks map[string]*ir.Block
	slots  map[string]value.Value
	tslots map[int]value.Value
	temps  map[int]value.Value
}

func NewLLVMBackend() Backend { return &llvmBackend{} }

func (b *llvmBackend) Generate(prog *kir.Program, cfg *config.Config) (*bytes.Buffer, error) {
	m, err := b.GenerateModule(prog, cfg)
	if err != nil {
		return nil, err
	}
	return bytes.NewBufferString(m.String()), nil
}

func llvmType(k valueKind) types.Type {
	switch k {
	case kindFloat: return types.Double
	case kindBool: return types.I1
	case kindStr: return types.I8Ptr
	case kindVoid: return types.Void
	default: return types.I64
	}
}

func llvmZero(k valueKind) constant.Constant {
	switch k {
	case kindFloat: return constant.NewFloat(types.Double, 0)
	case kindBool: return constant.NewBool(false)
	case kindStr: return constant.NewNull(types.I8Ptr)
	default: return constant.NewInt(types.I64, 0)
	}
}

// GenerateModule builds an LLVM module for prog.
func (b *llvmBackend) GenerateModule(prog *kir.Program, cfg *config.Config) (*ir.Module, error) {
	np, err := buildNative(prog, "llvm")
	if err != nil {
		return nil, err
	}
	b.prog = np
	b.mod = ir.NewModule()
	b.mod.TargetTriple = cfg.LLVMTriple
	b.funcs = make(map[string]*ir.Func)
	b.globals = make(map[string]*ir.Global)
	b.fmts = make(map[valueKind]constant.Constant)

	b.printf = b.mod.NewFunc("printf", types.I32, ir.NewParam("format", types.I8Ptr))
	b.printf.Sig.Variadic = true

	b.fmts[kindInt] = b.stringConst("fmt.int", "%ld\n")
	b.fmts[kindFloat] = b.stringConst("fmt.float", "%.17g\n")
	b.fmts[kindStr] = b.stringConst("fmt.str", "%s\n")
	b.trueS = b.stringConst("str.true", "True")
	b.falseS = b.stringConst("str.false", "False")
	for i, s := range np.strs {
		b.strs = append(b.strs, b.stringConst(fmt.Sprintf("str.%d", i), s))
	}
	for _, name := range np.main.varOrder {
		k := np.main.vars[name]
		b.globals[name] = b.mod.NewGlobalDef("var."+name, llvmZero(k))
	}

	// Declare every function before emitting bodies so calls can refer forward.
	for _, f := range np.funcs {
		params := make([]*ir.Param, len(f.params))
		for i, prm := range f.params {
			params[i] = ir.NewParam(prm, llvmType(f.vars[prm]))
		}
		b.funcs[f.name] = b.mod.NewFunc("kid."+f.name, llvmType(f.ret), params...)
	}
	mainFn := b.mod.NewFunc("main", types.I32)

	for _, f := range np.funcs {
		b.genFunc(f, b.funcs[f.name])
	}
	b.genFunc(np.main, mainFn)
	return b.mod, nil
}

func (b *llvmBackend) stringConst(name, s string) constant.Constant {
	data := constant.NewCharArrayFromString(s + "\x00")
	g := b.mod.NewGlobalDef(name, data)
	g.Immutable = true
	zero := constant.NewInt(types.I64, 0)
	return constant.NewGetElementPtr(g.ContentType, g, zero, zero)
}

func (b *llvmBackend) genFunc(f *nativeFunc, llFn *ir.Func) {
	b.fn, b.llFn = f, llFn
	b.blocks = make(map[string]*ir.Block)
	b.slots = make(map[string]value.Value)
	b.tslots = make(map[int]value.Value)
	b.temps = make(map[int]value.Value)
	b.block = llFn.NewBlock("entry")

	if !f.isMain {
		for _, name := range f.varOrder {
			k := f.vars[name]
			slot := b.block.NewAlloca(llvmType(k))
			b.slots[name] = slot
			if i := indexOf(f.params, name); i >= 0 {
				b.block.NewStore(llFn.Params[i], slot)
			} else {
				b.block.NewStore(llvmZero(k), slot)
			}
		}
	}
	var reassigned []int
	for id, n := range f.tempDefs {
		if n > 1 {
			reassigned = append(reassigned, id)
		}
	}
	sort.Ints(reassigned)
	for _, id := range reassigned {
		b.tslots[id] = b.block.NewAlloca(llvmType(f.temps[id]))
	}

	for _, in := range f.body {
		b.genInstr(in)
	}

	if b.block.Term == nil {
		switch {
		case f.isMain: b.block.NewRet(constant.NewInt(types.I32, 0))
		case f.ret == kindVoid: b.block.NewRet(nil)
		default: b.block.NewRet(llvmZero(f.ret))
		}
	}
}

func (b *llvmBackend) labelBlock(name string) *ir.Block {
	if blk, ok := b.blocks[name]; ok {
		return blk
	}
	blk := b.llFn.NewBlock(name)
	b.blocks[name] = blk
	return blk
}

func (b *llvmBackend) genInstr(in kir.Instr) {
	if _, isLabel := in.(*kir.Label); b.block.Term != nil && !isLabel {
		b.block = b.llFn.NewBlock("")
	}

	switch in := in.(type) {
	case *kir.Label:
		next := b.labelBlock(in.Name)
		if b.block.Term == nil {
			b.block.NewBr(next)
		}
		b.block = next
	case *kir.Goto:
		b.block.NewBr(b.labelBlock(in.Target))
	case *kir.IfFalseGoto:
		c := b.value(in.Cond, kindUnknown)
		if b.prog.operandKind(b.fn, in.Cond) != kindBool {
			c = b.block.NewICmp(enum.IPredNE, c, constant.NewInt(types.I64, 0))
		}
		next := b.llFn.NewBlock("")
		b.block.NewCondBr(c, next, b.labelBlock(in.Target))
		b.block = next
	case *kir.Return:
		b.block.NewRet(b.value(in.X, b.fn.ret))
	case *kir.Print:
		b.genPrint(in)
	case *kir.Assign:
		b.genAssign(in)
	}
}

// value loads op, widening ints to double when want is float.
func (b *llvmBackend) value(op kir.Operand, want valueKind) value.Value {
	k := b.prog.operandKind(b.fn, op)
	var v value.Value
	switch op := op.(type) {
	case *kir.IntConst: v = constant.NewInt(types.I64, op.Value)
	case *kir.FloatConst: v = constant.NewFloat(types.Double, op.Value)
	case *kir.StrConst: v = b.strs[b.prog.intern(op.Value)]
	case *kir.Temp:
		if slot, ok := b.tslots[op.ID]; ok {
			v = b.block.NewLoad(llvmType(k), slot)
		} else {
			v = b.temps[op.ID]
		}
	case *kir.Var:
		v = b.block.NewLoad(llvmType(k), b.varSlot(op.Name))
	}
	if want == kindFloat && k == kindInt {
		return b.block.NewSIToFP(v, types.Double)
	}
	return v
}

func (b *llvmBackend) varSlot(name string) value.Value {
	if slot, ok := b.slots[name]; ok {
		return slot
	}
	return b.globals[name]
}

func (b *llvmBackend) genPrint(in *kir.Print) {
	k := b.prog.operandKind(b.fn, in.X)
	v := b.value(in.X, kindUnknown)
	if k == kindBool {
		v = b.block.NewSelect(v, b.trueS, b.falseS)
		k = kindStr
	}
	b.block.NewCall(b.printf, b.fmts[k], v)
}

func (b *llvmBackend) genAssign(in *kir.Assign) {
	var k valueKind
	switch dst := in.Dst.(type) {
	case *kir.Temp: k = b.fn.temps[dst.ID]
	case *kir.Var: k = b.prog.owner(b.fn, dst.Name).vars[dst.Name]
	}

	var v value.Value
	switch src := in.Src.(type) {
	case kir.Operand: v = b.value(src, k)
	case *kir.Binary: v = b.binary(src)
	case *kir.Not: v = b.block.NewXor(b.value(src.X, kindUnknown), constant.NewBool(true))
	case *kir.Call:
		callee := b.prog.byName[src.Func]
		args := make([]value.Value, len(src.Args))
		for i, a := range src.Args {
			args[i] = b.value(a, callee.vars[callee.params[i]])
		}
		call := b.block.NewCall(b.funcs[src.Func], args...)
		if callee.ret == kindVoid {
			return
		}
		v = call
	}

	switch dst := in.Dst.(type) {
	case *kir.Temp:
		if slot, ok := b.tslots[dst.ID]; ok {
			b.block.NewStore(v, slot)
		} else {
			b.temps[dst.ID] = v
		}
	case *kir.Var:
		b.block.NewStore(v, b.varSlot(dst.Name))
	}
}

var (
	llvmIntPreds = map[string]enum.IPred{
		"==": enum.IPredEQ, "!=": enum.IPredNE, "<": enum.IPredSLT,
		">": enum.IPredSGT, "<=": enum.IPredSLE, ">=": enum.IPredSGE,
	}
	llvmFloatPreds = map[string]enum.FPred{
		"==": enum.FPredOEQ, "!=": enum.FPredONE, "<": enum.FPredOLT,
		">": enum.FPredOGT, "<=": enum.FPredOLE, ">=": enum.FPredOGE,
	}
)

func (b *llvmBackend) binary(src *kir.Binary) value.Value {
	lk, rk := b.prog.operandKind(b.fn, src.L), b.prog.operandKind(b.fn, src.R)
	wide := kindInt
	if lk == kindFloat || rk == kindFloat || src.Op == "/" {
		wide = kindFloat
	}

	switch src.Op {
	case "&&": return b.block.NewAnd(b.value(src.L, kindUnknown), b.value(src.R, kindUnknown))
	case "||": return b.block.NewOr(b.value(src.L, kindUnknown), b.value(src.R, kindUnknown))
	}

	l := b.value(src.L, wide)
	r := b.value(src.R, wide)
	if wide == kindFloat {
		switch src.Op {
		case "+": return b.block.NewFAdd(l, r)
		case "-": return b.block.NewFSub(l, r)
		case "*": return b.block.NewFMul(l, r)
		case "/": return b.block.NewFDiv(l, r)
		default: return b.block.NewFCmp(llvmFloatPreds[src.Op], l, r)
		}
	}
	switch src.Op {
	case "+": return b.block.NewAdd(l, r)
	case "-": return b.block.NewSub(l, r)
	case "*": return b.block.NewMul(l, r)
	default: return b.block.NewICmp(llvmIntPreds[src.Op], l, r)
	}
}
