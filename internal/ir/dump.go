package ir

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Dump renders g in a stable text form: blocks in ID order, phis first,
// one instruction per line. Golden tests and fingerprints depend on this
// format, so changes to it invalidate recorded goldens.
func Dump(g *Graph) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "graph %q\n", CanonicalName(g.Name))
	for _, b := range g.Blocks() {
		sb.WriteString(formatBlockHeader(b))
		sb.WriteByte('\n')
		for _, i := range b.AllInsts() {
			sb.WriteString("  ")
			sb.WriteString(FormatInst(i))
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

func (g *Graph) String() string { return Dump(g) }

func formatBlockHeader(b *Block) string {
	var sb strings.Builder
	sb.WriteString(b.String())
	switch {
	case b.IsEntry():
		sb.WriteString(" (entry)")
	case b.IsExit():
		sb.WriteString(" (exit)")
	}
	sb.WriteString(":")
	if len(b.preds) > 0 {
		sb.WriteString(" preds=" + blockList(b.preds))
	}
	if len(b.succs) > 0 {
		sb.WriteString(" succs=" + blockList(b.succs))
	}
	return sb.String()
}

func blockList(bs []*Block) string {
	names := make([]string, len(bs))
	for n, b := range bs {
		names[n] = b.String()
	}
	return "[" + strings.Join(names, " ") + "]"
}

// FormatInst renders a single instruction as it appears in Dump.
func FormatInst(i *Inst) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s = %s", i, i.op)
	if i.typ != TypeVoid {
		sb.WriteString("." + i.typ.String())
	}
	switch i.op {
	case OpConstant:
		sb.WriteString(" " + FormatConst(i.typ, i.Imm))
	case OpParameter:
		fmt.Fprintf(&sb, " #%d", i.Imm)
	case OpLoadImmediate, OpNewObject, OpNewArray:
		fmt.Fprintf(&sb, " class=%d", i.Imm)
	case OpCallStatic:
		fmt.Fprintf(&sb, " callee=%d", i.Imm)
		if i.Inlined {
			sb.WriteString(" inlined")
		}
	case OpCompare, OpIf:
		fmt.Fprintf(&sb, " %s.%s", i.CC, i.SrcType)
	case OpIfImm:
		fmt.Fprintf(&sb, " %s.%s imm=%d", i.CC, i.SrcType, i.Imm)
	case OpCmp:
		fmt.Fprintf(&sb, " %s", i.SrcType)
		if i.Fcmpg {
			sb.WriteString(" fcmpg")
		}
	case OpCast:
		fmt.Fprintf(&sb, " from=%s", i.SrcType)
	}
	for n, in := range i.inputs {
		if n == 0 {
			sb.WriteByte(' ')
		} else {
			sb.WriteString(", ")
		}
		sb.WriteString(in.String())
		if i.vregs != nil {
			sb.WriteString(":" + i.vregs[n].String())
		}
	}
	return sb.String()
}

// FormatConst renders constant bits of type t. Integers print in decimal
// per signedness; floats print in shortest round-trip form, and NaNs carry
// their payload.
func FormatConst(t Type, bits uint64) string {
	switch {
	case t == TypeFloat32:
		f := math.Float32frombits(uint32(bits))
		if f != f {
			return fmt.Sprintf("nan(0x%08x)", uint32(bits))
		}
		return strconv.FormatFloat(float64(f), 'g', -1, 32)
	case t == TypeFloat64:
		f := math.Float64frombits(bits)
		if math.IsNaN(f) {
			return fmt.Sprintf("nan(0x%016x)", bits)
		}
		return strconv.FormatFloat(f, 'g', -1, 64)
	case t.IsSigned():
		return strconv.FormatInt(int64(bits), 10)
	}
	return strconv.FormatUint(bits, 10)
}
