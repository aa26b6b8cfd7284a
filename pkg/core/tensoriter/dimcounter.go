// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package tensoriter

import "slices"

// DimCounter walks a linear range [begin, end) of a shape, keeping the multi-dimensional index of the current
// position. It moves in steps of up to two dimensions at a time, the ones a Loop2D handles.
type DimCounter struct {
	shape      []int
	begin, end int
	values     []int
	offset     int
}

// NewDimCounter returns a counter positioned at the linear index begin of shape (in row-major order).
func NewDimCounter(shape []int, begin, end int) *DimCounter {
	c := &DimCounter{
		shape:  slices.Clone(shape),
		begin:  begin,
		end:    end,
		values: make([]int, len(shape)),
		offset: begin,
	}
	linear := begin
	for dim := len(shape) - 1; dim >= 0 && linear > 0; dim-- {
		size := shape[dim]
		if size > 0 {
			c.values[dim] = linear % size
			linear /= size
		}
	}
	return c
}

// Values returns the index of the current position, one value per dimension.
func (c *DimCounter) Values() []int { return c.values }

// Offset returns the linear index of the current position.
func (c *DimCounter) Offset() int { return c.offset }

// IsDone returns whether the counter reached the end of its range.
func (c *DimCounter) IsDone() bool { return c.offset >= c.end }

// Increment moves the counter by step0 positions along the last dimension, repeated step1 times over the one
// before it. When step1 > 1, step0 must cover the whole last dimension, as returned by Max2DStep.
func (c *DimCounter) Increment(step0, step1 int) {
	c.offset += step0 * step1
	if c.offset >= c.end || len(c.shape) == 0 {
		return
	}
	dim := len(c.shape) - 1
	overflow := step0
	if step1 != 1 {
		dim--
		overflow = step1
	}
	for ; dim >= 0 && overflow > 0; dim-- {
		size := c.shape[dim]
		value := c.values[dim] + overflow
		if value >= size {
			overflow = 1
			value -= size
		} else {
			overflow = 0
		}
		c.values[dim] = value
	}
}

// Max2DStep returns the largest step the counter can take from its current position: the rest of the last
// dimension, and, if it is at the start of the last dimension, as many full rows of it as fit in the range.
func (c *DimCounter) Max2DStep() (step0, step1 int) {
	remaining := c.end - c.offset
	ndim := len(c.shape)
	if ndim == 0 {
		return remaining, 1
	}
	inner := ndim - 1
	step0 = min(c.shape[inner]-c.values[inner], remaining)
	step1 = 1
	if step0 == c.shape[inner] && ndim >= 2 {
		step1 = min(c.shape[inner-1]-c.values[inner-1], remaining/c.shape[inner])
	}
	return step0, step1
}
