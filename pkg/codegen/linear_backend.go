package codegen

import (
	"bytes"
	"strings"

	"github.com/xplshn/kidc/pkg/config"
	"github.com/xplshn/kidc/pkg/ir"
	"github.com/xplshn/kidc/pkg/token"
	"github.com/xplshn/kidc/pkg/util"
)

// accumulator is the single register of the linear machine.
const accumulator = "R1"

var linearOps = map[string]string{"+": "ADD", "-": "SUB", "*": "MUL", "/": "DIV"}

type linearBackend struct{}

func NewLinearBackend() Backend { return &linearBackend{} }

func (b *linearBackend) Generate(prog *ir.Program, cfg *config.Config) (*bytes.Buffer, error) {
	text, err := EmitLinear(prog.Instrs)
	if err != nil {
		return nil, err
	}
	return textBuffer(text), nil
}

// EmitLinear flattens instrs into single-accumulator mnemonics. Jumps are
// passed through as raw JMP/JZ instructions; functions are not supported.
func EmitLinear(instrs []ir.Instr) (string, error) {
	var lines []string
	emit := func(op string, args ...string) {
		if len(args) == 0 {
			lines = append(lines, op)
			return
		}
		lines = append(lines, op+" "+strings.Join(args, ", "))
	}

	for _, in := range instrs {
		switch in := in.(type) {
		case *ir.Print: emit("OUT", in.X.String())
		case *ir.Label: lines = append(lines, in.Name+":")
		case *ir.Goto: emit("JMP", in.Target)
		case *ir.IfFalseGoto: emit("JZ", in.Cond.String(), in.Target)
		case *ir.Return: emit("RET", in.X.String())
		case *ir.Assign:
			dst := in.Dst.String()
			switch src := in.Src.(type) {
			case *ir.Binary:
				if op, ok := linearOps[src.Op]; ok {
					emit("MOV", accumulator, src.L.String())
					emit(op, accumulator, src.R.String())
					emit("MOV", dst, accumulator)
					continue
				}
			case *ir.Concat:
				emit("MOV", accumulator, "str("+src.L.String()+")")
				emit("ADD", accumulator, "str("+src.R.String()+")")
				emit("MOV", dst, accumulator)
				continue
			}
			emit("MOV", dst, in.Src.String())
		case *ir.FuncDef:
			return "", util.Errorf(util.UnsupportedConstructError, token.Token{}, "the linear target cannot express function '%s'", in.Name)
		default:
			return "", util.Errorf(util.UnsupportedConstructError, token.Token{}, "the linear target cannot express '%s'", in)
		}
	}
	return strings.Join(lines, "\n"), nil
}
