// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package tensoriter

import (
	"github.com/gomlx/tensoriter/pkg/core/tensors"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// ParallelReduce runs a reduction kernel over an iterator built with one output and one input (see ReduceOp).
// The loop must accumulate the input into the output: it is called on disjoint parts of the input, and the
// parts that reduce into the same output elements never run concurrently.
//
// If the output has a single element, each worker reduces into its own copy of the output, and the copies
// are then reduced into the output calling loop again, with the copies as the input. This requires the
// output and the input to have the same dtype, otherwise the reduction runs serially. Since each copy starts
// from the output's value, the output must hold the identity of the reduction (e.g. 0 for a sum).
// Otherwise, the non-reduced dimensions are split among the workers.
func (it *Iterator) ParallelReduce(loop Loop2D) error {
	if len(it.operands) != 2 || it.numOutputs != 1 {
		return errors.Wrapf(ErrInvalidArgument, "ParallelReduce requires one output and one input, got %d outputs and %d inputs",
			it.numOutputs, it.NInputs())
	}
	numel := it.Numel()
	if numel == 0 {
		return nil
	}
	dst := it.Output(0)
	singleOutput := dst.Size() == 1
	if numel < GrainSize || it.pool.NumWorkers() == 1 || (singleOutput && it.DType(0) != it.DType(1)) {
		return tryCall(func() { it.SerialForEach(loop, 0, numel) })
	}
	if singleOutput {
		return it.twoPassReduction(loop)
	}
	return it.parallelDimReduction(loop)
}

// twoPassReduction reduces each chunk into its own copy of the single-element output, and then the copies into
// the output.
func (it *Iterator) twoPassReduction(loop Loop2D) error {
	dst := it.Output(0)
	numel := it.Numel()
	numChunks := it.pool.NumChunks(numel, GrainSize)
	bufferDims := append([]int{numChunks}, dst.Dims()...)
	buffer := tensors.Empty(dst.DType(), dst.Device(), bufferDims...)
	klog.V(2).Infof("tensoriter: two-pass reduction of %d elements in %d chunks", numel, numChunks)

	err := it.pool.ParallelForChunks(0, numel, GrainSize, func(chunk, begin, end int) error {
		partial := buffer.Narrow(0, chunk, 1)
		if err := Copy(partial, dst.Unsqueeze(0)); err != nil {
			return err
		}
		sub := it.Clone()
		sub.UnsafeReplaceOperand(0, Pointer{Buf: partial.Bytes(), Offset: partial.DataOffset()})
		sub.SerialForEach(loop, begin, end)
		return nil
	})
	if err != nil {
		return err
	}

	final, err := ReduceOp(dst.Unsqueeze(0), buffer)
	if err != nil {
		return errors.WithMessage(err, "reducing the partial results")
	}
	return final.ForEach(loop, GrainSize)
}

// parallelDimReduction splits a non-reduced dimension among the workers.
func (it *Iterator) parallelDimReduction(loop Loop2D) error {
	dim, err := it.findSplitDim()
	if err != nil {
		return err
	}
	cols := it.shape[dim]
	elementSize := it.ElementSize(1)
	roundColumns := it.operands[1].StrideBytes[dim] == elementSize
	colsPer128Bytes := max(128/elementSize, 1)
	return it.pool.ParallelFor(0, cols, 1, func(begin, end int) error {
		if roundColumns {
			// Adjacent columns are contiguous in memory: split them in groups of 128 bytes.
			begin -= begin % colsPer128Bytes
			if end != cols {
				end -= end % colsPer128Bytes
			}
		}
		if begin == end {
			return nil
		}
		sub := it.Clone()
		sub.Narrow(dim, begin, end-begin)
		sub.SerialForEach(loop, 0, sub.Numel())
		return nil
	})
}

// findSplitDim returns the outermost non-reduced dimension large enough to give work to every worker, or the
// largest non-reduced dimension otherwise.
func (it *Iterator) findSplitDim() (int, error) {
	numWorkers := it.pool.NumWorkers()
	best := 0
	for dim := 0; dim < len(it.shape) && !it.IsDimReduced(dim); dim++ {
		if it.shape[dim] >= numWorkers {
			return dim, nil
		} else if it.shape[dim] > it.shape[best] {
			best = dim
		}
	}
	if len(it.shape) == 0 || it.IsDimReduced(best) {
		return 0, errors.Wrapf(ErrInvalidQuery, "no dimension of shape %v can be split for a parallel reduction", it.shape)
	}
	return best, nil
}

// ForEachReducedElt calls loop once per element of the outputs of a reduction, with a sub-iterator restricted
// to the input elements reduced into it. The iterator must have one input and at least one output.
//
// If parallelize is set and the reduction is large enough, the output elements are split among the workers,
// and loop is called concurrently for different output elements.
func (it *Iterator) ForEachReducedElt(loop func(sub *Iterator) error, parallelize bool) error {
	if it.NInputs() != 1 || it.numOutputs < 1 {
		return errors.Wrapf(ErrInvalidArgument, "ForEachReducedElt requires one input and at least one output, got %d outputs and %d inputs",
			it.numOutputs, it.NInputs())
	}
	outputSize := it.Output(0).Size()
	if outputSize == 0 {
		return nil
	}
	if outputSize == 1 {
		return tryCallErr(func() error { return loop(it) })
	}
	if !parallelize || it.Numel() < GrainSize || it.pool.NumWorkers() == 1 {
		return tryCallErr(func() error { return it.serialForEachReducedElt(loop) })
	}
	dim, err := it.findSplitDim()
	if err != nil {
		return err
	}
	return it.pool.ParallelFor(0, it.shape[dim], 1, func(begin, end int) error {
		sub := it.Clone()
		sub.Narrow(dim, begin, end-begin)
		return sub.ForEachReducedElt(loop, false)
	})
}

func (it *Iterator) serialForEachReducedElt(loop func(sub *Iterator) error) error {
	nonReduced := it.shape[:len(it.shape)-it.NumReduceDims()]
	numOutputs := 1
	for _, size := range nonReduced {
		numOutputs *= size
	}
	counter := NewDimCounter(nonReduced, 0, numOutputs)
	for !counter.IsDone() {
		sub := it.Clone()
		sub.SelectAllKeepingDim(len(nonReduced), counter.Values())
		if err := loop(sub); err != nil {
			return err
		}
		counter.Increment(1, 1)
	}
	return nil
}

// tryCallErr runs fn and returns its error, or a panic converted to an error.
func tryCallErr(fn func() error) (err error) {
	if panicErr := tryCall(func() { err = fn() }); panicErr != nil {
		return panicErr
	}
	return err
}
