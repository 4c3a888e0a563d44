// Package irfile reads and writes graphs in a YAML file format.
//
// A file names the graph, declares its parameters and lists its blocks.
// The first block is the entry block. The exit block is implicit: blocks
// ending in Return or ReturnVoid flow into it and list no successors.
//
//	name: max
//	params:
//	  - {name: a, type: i32}
//	  - {name: b, type: i32}
//	blocks:
//	  - name: entry
//	    insts:
//	      - {name: gt, op: Compare, cc: GT, args: [a, b]}
//	      - {op: IfImm, cc: NE, args: [gt]}
//	    succs: [left, right]
//	  - name: left
//	    succs: [join]
//	  - name: right
//	    succs: [join]
//	  - name: join
//	    insts:
//	      - {name: m, op: Phi, type: i32, args: [a, b], preds: [left, right]}
//	      - {op: Return, type: i32, args: [m]}
//
// Constants, NullPtr and LoadImmediate may be written in any block; they
// are interned into the entry block like every other constant. Phi inputs
// follow the block's predecessor order unless preds names the predecessor
// each input flows in from.
//
// Load error codes live in F200-F299 (see errors.go).
package irfile
