// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/gomlx/tensoriter/pkg/core/tensoriter"
)

// printPlan prints a summary of the iteration, and a table of the operands.
func printPlan(it *tensoriter.Iterator, config tensoriter.Config) {
	fmt.Println(titleStyle.Render("Iteration"))
	summary := newPlanTable(lipgloss.Right, lipgloss.Left)
	summary.Row(false, "config", config.String())
	summary.Row(false, "shape", fmt.Sprintf("%v", it.Shape()))
	summary.Row(false, "# elements", humanize.Comma(int64(it.Numel())))
	summary.Row(false, "fast setup", it.FastSetup().String())
	if it.FastSetup() == tensoriter.FastSetupNone {
		summary.Row(false, "permutation", fmt.Sprintf("%v", it.Permutation()))
	}
	summary.Row(false, "coalesced", fmt.Sprintf("%v", it.HasCoalescedDimensions()))
	commonDType := "undefined"
	if dtype, err := it.CommonDType(); err == nil {
		commonDType = dtype.String()
	}
	summary.Row(false, "common dtype", commonDType)
	if names := it.Names(); names != nil {
		summary.Row(false, "names", fmt.Sprintf("%q", names))
	}
	if it.IsReduction() {
		summary.Row(false, "reduced dims", fmt.Sprintf("%d", it.NumReduceDims()))
		summary.Row(false, "# output elements", humanize.Comma(int64(it.NumOutputElements())))
	}
	workers := fmt.Sprintf("%d", it.Pool().NumWorkers())
	if !it.Pool().IsEnabled() {
		workers += " (parallelism disabled)"
	}
	summary.Row(false, "workers", workers)
	summary.Row(false, "32-bit indexing", fmt.Sprintf("%v", it.CanUse32BitIndexing()))
	fmt.Println(summary.Table.Render())

	fmt.Println(titleStyle.Render("Operands"))
	operands := newPlanTable(lipgloss.Right, lipgloss.Left)
	operands.Table.Headers("#", "role", "dtype", "device", "dims", "strides (bytes)", "memory", "notes")
	for arg := range it.NTensors() {
		op := it.Operand(arg)
		begin, end := op.Tensor.MemoryRange()
		var notes []string
		if op.OriginalTensor != nil {
			notes = append(notes, fmt.Sprintf("temporary for %s", op.OriginalTensor.DType()))
		}
		if it.IsScalar(arg) {
			notes = append(notes, "scalar")
		}
		operands.Row(op.OriginalTensor != nil,
			fmt.Sprintf("%d", arg),
			it.Role(arg),
			it.DType(arg).String(),
			it.Device(arg).String(),
			fmt.Sprintf("%v", op.Tensor.Dims()),
			fmt.Sprintf("%v", it.Strides(arg)),
			humanize.IBytes(uint64(end-begin)),
			strings.Join(notes, ", "))
	}
	fmt.Println(operands.Table.Render())
}

// printSplitPlan prints the sub-iterators that satisfy 32-bit indexing.
func printSplitPlan(it *tensoriter.Iterator) {
	fmt.Println(titleStyle.Render("32-bit indexing split"))
	table := newPlanTable(lipgloss.Right, lipgloss.Left, lipgloss.Left, lipgloss.Right, lipgloss.Left)
	table.Table.Headers("#", "view offsets", "shape", "# elements", "final output", "accumulate")
	count := 0
	for sub := range it.With32BitIndexing() {
		table.Row(!sub.IsFinalOutput(),
			fmt.Sprintf("%d", count),
			fmt.Sprintf("%v", sub.ViewOffsets()),
			fmt.Sprintf("%v", sub.Shape()),
			humanize.Comma(int64(sub.Numel())),
			fmt.Sprintf("%v", sub.IsFinalOutput()),
			fmt.Sprintf("%v", sub.ShouldAccumulate()))
		count++
	}
	fmt.Println(table.Table.Render())
}
