// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package tensoriter

import (
	"slices"

	"github.com/gomlx/tensoriter/internal/workerspool"
	"github.com/gomlx/tensoriter/pkg/core/devices"
	"github.com/gomlx/tensoriter/pkg/core/dtypes"
	"github.com/gomlx/tensoriter/pkg/core/tensors"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Builder collects the operands and the configuration of an Iterator.
//
// Outputs and inputs can be added in any order: in the built Iterator outputs always come first (in the order
// they were added), followed by the inputs.
//
// Example:
//
//	it, err := tensoriter.NewBuilder().
//		Set(tensoriter.PromoteInputsToCommonDType, true).
//		AddOutput(nil).
//		AddInput(a).
//		AddInput(b).
//		Build()
type Builder struct {
	outputs, inputs []OperandInfo
	config          Config
	pool            *workerspool.Pool
}

// NewBuilder returns a Builder with DefaultConfig().
func NewBuilder() *Builder {
	return &Builder{config: DefaultConfig()}
}

// AddOutput adds an output operand. If t is nil, the output is allocated during Build, with the broadcast shape,
// the common dtype and the common device.
func (b *Builder) AddOutput(t *tensors.Tensor) *Builder {
	b.outputs = append(b.outputs, newOperand(t))
	return b
}

// AddOutputWithTarget adds an output operand that should have the given device and dtype. If t is nil, the output
// is allocated with them during Build.
func (b *Builder) AddOutputWithTarget(t *tensors.Tensor, device devices.Device, dtype dtypes.DType) *Builder {
	b.outputs = append(b.outputs, newOperandWithTarget(t, device, dtype))
	return b
}

// AddInput adds an input operand. It must be defined.
func (b *Builder) AddInput(t *tensors.Tensor) *Builder {
	b.inputs = append(b.inputs, newOperand(t))
	return b
}

// AddInputWithTarget adds an input operand that should be read as the given dtype. If it has a different dtype
// (and lives in the CPU), Build replaces it by a cast copy.
func (b *Builder) AddInputWithTarget(t *tensors.Tensor, device devices.Device, dtype dtypes.DType) *Builder {
	b.inputs = append(b.inputs, newOperandWithTarget(t, device, dtype))
	return b
}

// Set an option of the configuration.
func (b *Builder) Set(option Option, value bool) *Builder {
	b.config = b.config.With(option, value)
	return b
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(config Config) *Builder {
	b.config = config
	return b
}

// DeclareStaticShape skips the broadcasting of the operands' shapes and uses the given shape instead.
// ResizeOutputs must be disabled first. See Config.WithStaticShape.
func (b *Builder) DeclareStaticShape(shape []int, squashDim ...int) *Builder {
	b.config = b.config.WithStaticShape(shape, squashDim...)
	return b
}

// WithPool sets the workers pool used by the parallel iteration methods. The default is workerspool.Default().
func (b *Builder) WithPool(pool *workerspool.Pool) *Builder {
	b.pool = pool
	return b
}

// Config returns the current configuration.
func (b *Builder) Config() Config {
	return b.config
}

// Build runs the build pipeline and returns the iterator.
//
// On failure no iterator is returned: the error wraps one of ErrInvalidArgument, ErrShapeMismatch,
// ErrDTypeMismatch, ErrDeviceMismatch, ErrUnsafeCast or ErrMemoryOverlap.
//
// Build may allocate undefined outputs, resize outputs of the wrong shape (if ResizeOutputs is set) and create
// temporary copies of operands that need casting. The Builder itself is not changed, and it can be built again.
func (b *Builder) Build() (*Iterator, error) {
	config, err := b.config.Validate()
	if err != nil {
		return nil, err
	}
	it := &Iterator{
		numOutputs:  len(b.outputs),
		isReduction: config.Is(IsReduction),
		finalOutput: true,
		pool:        b.pool,
	}
	if it.pool == nil {
		it.pool = workerspool.Default()
	}
	it.operands = make([]OperandInfo, 0, len(b.outputs)+len(b.inputs))
	for _, op := range b.outputs {
		it.operands = append(it.operands, op.clone())
	}
	for _, op := range b.inputs {
		it.operands = append(it.operands, op.clone())
	}
	if err = it.validateOperands(); err != nil {
		return nil, err
	}

	it.markOutputs()
	if err = it.computeMemOverlaps(config); err != nil {
		return nil, err
	}
	if err = it.computeNames(config); err != nil {
		return nil, err
	}
	if err = it.computeShape(config); err != nil {
		return nil, err
	}
	if err = it.computeTypes(config); err != nil {
		return nil, err
	}
	if !it.fastSetUp() {
		if err = it.computeStrides(config); err != nil {
			return nil, err
		}
		it.reorderDimensions()
		it.allocateOutputs()
		it.coalesceDimensions()
	}
	it.propagateNames()

	for i := range it.operands {
		op := &it.operands[i]
		op.Data = Pointer{Buf: op.Tensor.Bytes(), Offset: op.Tensor.DataOffset()}
	}
	// A scalar iteration keeps one view offset, so reductions can always index it.
	it.viewOffsets = make([]int, max(len(it.shape), 1))
	if klog.V(1).Enabled() {
		klog.Infof("tensoriter: built %d operands, shape=%v, fast setup=%s, coalesced=%v",
			len(it.operands), it.shape, it.fastSetup, it.hasCoalescedDimensions)
	}
	return it, nil
}

// validateOperands checks inputs are defined and every defined operand has a strided layout.
func (it *Iterator) validateOperands() error {
	for arg, op := range it.operands {
		if !op.Tensor.Defined() {
			if arg >= it.numOutputs {
				return errors.Wrapf(ErrInvalidArgument, "input %d is undefined", arg-it.numOutputs)
			}
			continue
		}
		if layout := op.Tensor.Layout(); layout != tensors.LayoutStrided {
			return errors.Wrapf(ErrInvalidArgument, "unsupported tensor layout %s for operand %d", layout, arg)
		}
		if op.Device != op.Tensor.Device() {
			return errors.Wrapf(ErrInvalidArgument, "operand %d lives in %s, it can't be iterated as %s",
				arg, op.Tensor.Device(), op.Device)
		}
	}
	return nil
}

// markOutputs sets IsOutput, and IsReadWrite for outputs that are also inputs.
func (it *Iterator) markOutputs() {
	for i := range it.numOutputs {
		op := &it.operands[i]
		op.IsOutput = true
		if !op.Tensor.Defined() {
			continue
		}
		for _, input := range it.operands[it.numOutputs:] {
			if input.Tensor == op.Tensor {
				op.IsReadWrite = true
			}
		}
	}
}

// computeMemOverlaps checks that outputs don't overlap themselves, and only overlap fully with other operands.
func (it *Iterator) computeMemOverlaps(config Config) error {
	if !config.Is(CheckMemOverlap) {
		return nil
	}
	for i := range it.numOutputs {
		output := it.operands[i].Tensor
		if !output.Defined() {
			continue
		}
		if tensors.InternalOverlap(output) == tensors.OverlapYes {
			return errors.Wrapf(ErrMemoryOverlap,
				"output %d %s has internal overlap: more than one element refers to the same memory location", i, output)
		}
		for j := i + 1; j < len(it.operands); j++ {
			other := it.operands[j].Tensor
			switch tensors.GetOverlapStatus(output, other) {
			case tensors.OverlapStatusPartial:
				return errors.Wrapf(ErrMemoryOverlap,
					"output %d %s partially overlaps with operand %d %s", i, output, j, other)
			case tensors.OverlapStatusTooHard:
				klog.V(2).Infof("tensoriter: can't decide whether output %d overlaps with operand %d, assuming it doesn't", i, j)
			default:
			}
		}
	}
	return nil
}

// BroadcastShapes returns the shape resulting from broadcasting the given shapes: they are aligned at their
// trailing dimension, and dimensions of size 1 are expanded to match the others.
func BroadcastShapes(shapes ...[]int) ([]int, error) {
	var result []int
	for i, shape := range shapes {
		if i == 0 {
			result = slices.Clone(shape)
			continue
		}
		ndim := max(len(result), len(shape))
		expanded := make([]int, ndim)
		for dim := ndim - 1; dim >= 0; dim-- {
			offset := ndim - 1 - dim
			sizeA, sizeB := 1, 1
			if dimA := len(result) - 1 - offset; dimA >= 0 {
				sizeA = result[dimA]
			}
			if dimB := len(shape) - 1 - offset; dimB >= 0 {
				sizeB = shape[dimB]
			}
			if sizeA != sizeB && sizeA != 1 && sizeB != 1 {
				return nil, errors.Wrapf(ErrShapeMismatch,
					"the size of shape %v (%d) must match the size of shape %v (%d) at non-singleton dimension %d",
					result, sizeA, shape, sizeB, dim)
			}
			if sizeA == 1 {
				expanded[dim] = sizeB
			} else {
				expanded[dim] = sizeA
			}
		}
		result = expanded
	}
	if result == nil {
		result = []int{}
	}
	return result, nil
}

// computeShape broadcasts the shapes of the operands. Outputs don't take part if they can be resized,
// and outputs of the wrong shape are resized (or rejected).
func (it *Iterator) computeShape(config Config) error {
	if shape, ok := config.StaticShape(); ok {
		it.shape = shape
		return nil
	}
	resize := config.Is(ResizeOutputs)
	it.allOpsSameShape = true
	hasScalars, hasTensors := false, false
	it.shape = nil
	for _, op := range it.operands {
		if !op.Tensor.Defined() || (resize && op.IsOutput) {
			continue
		}
		dims := op.Tensor.Dims()
		if len(dims) == 0 {
			hasScalars = true
		} else {
			hasTensors = true
		}
		if hasScalars && hasTensors {
			it.allOpsSameShape = false
		}
		if it.shape == nil {
			it.shape = dims
			continue
		}
		if !slices.Equal(dims, it.shape) {
			it.allOpsSameShape = false
			shape, err := BroadcastShapes(it.shape, dims)
			if err != nil {
				return err
			}
			it.shape = shape
		}
	}
	if it.shape == nil {
		it.shape = []int{}
	}

	// Outputs are never broadcast.
	for i := range it.numOutputs {
		op := &it.operands[i]
		if !op.Tensor.Defined() || slices.Equal(op.Tensor.Dims(), it.shape) {
			continue
		}
		if resize && !op.IsReadWrite {
			klog.V(2).Infof("tensoriter: output %d will be resized from %v to %v", i, op.Tensor.Dims(), it.shape)
			op.willResize = true
			continue
		}
		if !it.isReduction {
			return errors.Wrapf(ErrShapeMismatch, "output %d with shape %v doesn't match the broadcast shape %v",
				i, op.Tensor.Dims(), it.shape)
		}
	}
	return nil
}

// computeStrides sets the byte strides of each defined operand, aligned to the broadcast shape.
// Broadcast dimensions get stride 0.
func (it *Iterator) computeStrides(config Config) error {
	_, static := config.StaticShape()
	ndim := len(it.shape)
	for arg := range it.operands {
		op := &it.operands[arg]
		if op.needsAllocation() {
			continue
		}
		originalShape := op.Tensor.Dims()
		if static {
			if len(originalShape) != ndim {
				return errors.Wrapf(ErrInvalidArgument, "operand %d has rank %d, but the static shape %v has rank %d",
					arg, len(originalShape), it.shape, ndim)
			}
			originalShape = it.shape
		}
		originalStrides := op.Tensor.Strides()
		elementSize := op.Tensor.ElementSize()
		offset := ndim - len(originalShape)
		op.StrideBytes = make([]int, ndim)
		for axis, dim := range originalShape {
			if dim == 1 && it.shape[offset+axis] != 1 {
				op.StrideBytes[offset+axis] = 0
			} else {
				op.StrideBytes[offset+axis] = originalStrides[axis] * elementSize
			}
		}
	}
	return nil
}

// reorderDimensions sorts the dimensions so the ones with the smallest strides move fastest (last), with reduced
// dimensions innermost for reductions.
func (it *Iterator) reorderDimensions() {
	ndim := len(it.shape)
	it.perm = make([]int, ndim)
	if ndim <= 1 {
		return
	}

	// shouldSwap returns 1 if dim0 should move slower than dim1, -1 if it should move faster, and 0 if the
	// comparison is ambiguous.
	shouldSwap := func(dim0, dim1 int) int {
		for _, op := range it.operands {
			if len(op.StrideBytes) == 0 {
				continue
			}
			stride0, stride1 := op.StrideBytes[dim0], op.StrideBytes[dim1]
			if it.isReduction && op.IsOutput {
				// Move reduced dimensions to the inner loop.
				if (stride0 == 0) != (stride1 == 0) {
					if stride1 == 0 {
						return 1
					}
					return -1
				}
			}
			if stride0 == 0 || stride1 == 0 {
				continue
			}
			if stride0 < stride1 {
				return -1
			} else if stride0 > stride1 {
				return 1
			}
			// Equal strides: the larger dimension moves slower.
			if it.shape[dim0] > it.shape[dim1] {
				return 1
			}
		}
		return 0
	}

	// order lists the dimensions from the fastest to the slowest moving, starting with row-major order.
	order := make([]int, ndim)
	for i := range order {
		order[i] = ndim - 1 - i
	}
	// Insertion sort with support for ambiguous comparisons.
	for i := 1; i < ndim; i++ {
		dim1 := i
		for dim0 := i - 1; dim0 >= 0; dim0-- {
			comparison := shouldSwap(order[dim0], order[dim1])
			if comparison > 0 {
				order[dim0], order[dim1] = order[dim1], order[dim0]
				dim1 = dim0
			} else if comparison < 0 {
				break
			}
		}
	}
	for i := range ndim {
		it.perm[i] = order[ndim-1-i]
	}
	klog.V(2).Infof("tensoriter: reordered dimensions with permutation %v", it.perm)
	it.permuteDimensions(it.perm)
}

// permuteDimensions applies the permutation to the shape and to the operands' strides.
func (it *Iterator) permuteDimensions(perm []int) {
	reorder := func(data []int) []int {
		result := make([]int, len(data))
		for i, axis := range perm {
			result[i] = data[axis]
		}
		return result
	}
	it.shape = reorder(it.shape)
	for i := range it.operands {
		if len(it.operands[i].StrideBytes) > 0 {
			it.operands[i].StrideBytes = reorder(it.operands[i].StrideBytes)
		}
	}
}

// allocateOutputs allocates the undefined outputs and resizes the outputs of the wrong shape, with strides that
// follow the iteration order.
func (it *Iterator) allocateOutputs() {
	for i := range it.numOutputs {
		op := &it.operands[i]
		if !op.needsAllocation() {
			continue
		}
		elementSize := op.TargetDType.Size()
		if op.Tensor.Defined() {
			elementSize = op.Tensor.ElementSize()
		}
		op.StrideBytes = it.CompatibleStride(elementSize)
		identity := true
		for dim, axis := range it.perm {
			if axis != dim {
				identity = false
				break
			}
		}
		dims := it.InvertPerm(it.shape)
		var strides []int
		if identity {
			strides = tensors.ContiguousStrides(dims)
		} else {
			strides = it.InvertPerm(op.StrideBytes)
			for axis := range strides {
				strides[axis] /= elementSize
			}
		}
		op.allocate(dims, strides)
		klog.V(2).Infof("tensoriter: allocated output %d %s", i, op.Tensor)
	}
}

// coalesceDimensions merges adjacent dimensions when, for every operand, the outer one steps exactly over
// the whole inner one, or when either has size 1.
func (it *Iterator) coalesceDimensions() {
	ndim := len(it.shape)
	if ndim <= 1 {
		return
	}
	canCoalesce := func(inner, outer int) bool {
		shapeInner, shapeOuter := it.shape[inner], it.shape[outer]
		if shapeInner == 1 || shapeOuter == 1 {
			return true
		}
		for _, op := range it.operands {
			if shapeInner*op.StrideBytes[inner] != op.StrideBytes[outer] {
				return false
			}
		}
		return true
	}
	// replaceStride sets the stride of dim0 to the one of dim1, for every operand.
	replaceStride := func(dim0, dim1 int) {
		for _, op := range it.operands {
			op.StrideBytes[dim0] = op.StrideBytes[dim1]
		}
	}

	prevDim := ndim - 1
	for dim := ndim - 2; dim >= 0; dim-- {
		if canCoalesce(prevDim, dim) {
			if it.shape[prevDim] == 1 {
				replaceStride(prevDim, dim)
			}
			it.shape[prevDim] *= it.shape[dim]
		} else {
			prevDim--
			if prevDim != dim {
				replaceStride(prevDim, dim)
				it.shape[prevDim] = it.shape[dim]
			}
		}
	}
	it.shape = slices.Clone(it.shape[prevDim:])
	for i := range it.operands {
		it.operands[i].StrideBytes = slices.Clone(it.operands[i].StrideBytes[prevDim:])
	}
	it.hasCoalescedDimensions = true
	klog.V(2).Infof("tensoriter: coalesced %d dimensions into shape %v", ndim, it.shape)
}
