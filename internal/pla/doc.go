// Package pla compiles embedded truth-table regions into SystemVerilog.
//
// A region is a block of comment lines between a begin and an end marker:
//
//	// PLA_BEGIN decode
//	// .i op[1:0] valid
//	// .o sel[2:0]
//	// 001 100
//	// 011 010
//	// 1-1 001
//	// .e
//	// PLA_END
//
// Bit ranges are flattened to one signal per bit (op[1] becomes op_1) before
// the table is written in Berkeley PLA format and handed to an external logic
// optimizer. The optimized cover is mapped back to the declared names and
// emitted as one continuous assignment per output.
package pla
