// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package tensoriter

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
)

// Role returns a short description of the role of the operand arg: "output", "output (read-write)" or "input".
func (it *Iterator) Role(arg int) string {
	op := it.checkArg(arg)
	switch {
	case op.IsReadWrite:
		return "output (read-write)"
	case op.IsOutput:
		return "output"
	default:
		return "input"
	}
}

// String implements fmt.Stringer, listing the iteration shape and the operands.
func (it *Iterator) String() string {
	if it == nil {
		return "<nil iterator>"
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Iterator{shape=%v, %s elements, %d outputs, %d inputs",
		it.shape, humanize.Comma(int64(it.Numel())), it.numOutputs, it.NInputs())
	if it.fastSetup != FastSetupNone {
		fmt.Fprintf(&sb, ", fast setup %s", it.fastSetup)
	}
	if it.isReduction {
		sb.WriteString(", reduction")
	}
	if it.commonDType.IsValid() {
		fmt.Fprintf(&sb, ", common dtype %s", it.commonDType)
	}
	sb.WriteString("}")
	for arg, op := range it.operands {
		begin, end := op.Tensor.MemoryRange()
		fmt.Fprintf(&sb, "\n\t#%d %s: %s on %s, strides=%v, spans %s",
			arg, it.Role(arg), op.CurrentDType, op.Device, op.StrideBytes, humanize.IBytes(uint64(end-begin)))
		if op.OriginalTensor != nil {
			fmt.Fprintf(&sb, " (cast from %s)", op.OriginalTensor.DType())
		}
	}
	return sb.String()
}
