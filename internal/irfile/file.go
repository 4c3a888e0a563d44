package irfile

// File is the YAML form of a graph.
type File struct {
	// Name is the graph name. It is NFC-normalized on load.
	Name string `yaml:"name"`

	// Params declares the parameters in order.
	Params []Param `yaml:"params,omitempty"`

	// Blocks lists the blocks, entry first. The exit block is implicit.
	Blocks []Block `yaml:"blocks"`
}

// Param declares one parameter.
type Param struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

// Block is one basic block.
type Block struct {
	Name  string   `yaml:"name"`
	Insts []Inst   `yaml:"insts,omitempty"`
	Succs []string `yaml:"succs,omitempty"`
}

// Inst is one instruction. Only the fields its opcode uses may be set.
type Inst struct {
	// Name binds the result for later references. Instructions nothing
	// refers to may leave it empty.
	Name string `yaml:"name,omitempty"`

	Op   string `yaml:"op"`
	Type string `yaml:"type,omitempty"`

	// Value is the literal of a Constant, printed as ir.FormatConst does.
	Value string `yaml:"value,omitempty"`

	// Class is the class handle of LoadImmediate, NewObject and NewArray.
	Class uint64 `yaml:"class,omitempty"`

	// Callee and Inlined describe a CallStatic.
	Callee  uint64 `yaml:"callee,omitempty"`
	Inlined bool   `yaml:"inlined,omitempty"`

	// CC is the condition of Compare, If and IfImm; Imm is the IfImm
	// immediate.
	CC  string `yaml:"cc,omitempty"`
	Imm uint64 `yaml:"imm,omitempty"`

	// From is the operand type of Compare, Cmp, Cast, If and IfImm. It
	// defaults to the type of the first argument.
	From string `yaml:"from,omitempty"`

	// Fcmpg makes an unordered Cmp yield 1.
	Fcmpg bool `yaml:"fcmpg,omitempty"`

	// Args names the inputs.
	Args []string `yaml:"args,omitempty"`

	// Preds names, for a phi, the predecessor each argument flows in from.
	Preds []string `yaml:"preds,omitempty"`

	// Regs gives, for SaveState and SafePoint, the virtual register of each
	// argument ("r0", "r1", ... or "bridge"). It defaults to r0, r1, ...
	Regs []string `yaml:"regs,omitempty"`
}
