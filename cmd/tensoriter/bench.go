// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gomlx/tensoriter/pkg/core/dtypes"
	"github.com/gomlx/tensoriter/pkg/core/tensoriter"
	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
)

// sumKernel returns a float32 kernel that writes the sum of the inputs to the output, or adds it to the
// output if accumulate is set.
func sumKernel(accumulate bool) tensoriter.Loop2D {
	return func(data []tensoriter.Pointer, strides []int, size0, size1 int) {
		ntensors := len(data)
		outer := strides[ntensors : 2*ntensors]
		row := make([]tensoriter.Pointer, ntensors)
		for j := range size1 {
			for arg := range ntensors {
				row[arg] = data[arg].Add(j * outer[arg])
			}
			for range size0 {
				var sum float32
				if accumulate {
					sum = tensoriter.Load[float32](row[0])
				}
				for arg := 1; arg < ntensors; arg++ {
					sum += tensoriter.Load[float32](row[arg])
					row[arg] = row[arg].Add(strides[arg])
				}
				tensoriter.Store(row[0], sum)
				row[0] = row[0].Add(strides[0])
			}
		}
	}
}

// bench runs the sum kernel over the iteration the given number of times, and reports the throughput.
func bench(it *tensoriter.Iterator, runs int) error {
	if it.NOutputs() != 1 {
		return errors.Errorf("benchmark requires exactly one output, got %d", it.NOutputs())
	}
	for arg := range it.NTensors() {
		if dtype := it.DType(arg); dtype != dtypes.Float32 {
			return errors.Errorf("benchmark requires float32 operands, operand %d is %s (try -config=promote_inputs_to_common_dtype)",
				arg, dtype)
		}
		if !it.Device(arg).IsCPU() {
			return errors.Errorf("benchmark requires operands in the host, operand %d is in %s", arg, it.Device(arg))
		}
	}

	kernel := sumKernel(it.IsReduction())
	run := func() error { return it.ForEach(kernel, tensoriter.GrainSize) }
	if it.IsReduction() && it.NTensors() == 2 {
		run = func() error { return it.ParallelReduce(kernel) }
	}

	fmt.Println(titleStyle.Render("Benchmark"))
	bar := progressbar.NewOptions(runs,
		progressbar.OptionSetDescription("sum"),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("runs"),
		progressbar.OptionSetTheme(progressbar.ThemeASCII),
	)
	start := time.Now()
	for range runs {
		if err := run(); err != nil {
			return err
		}
		_ = bar.Add(1)
	}
	elapsed := time.Since(start)
	_ = bar.Finish()
	if err := it.CastOutputs(); err != nil {
		return err
	}

	numElements := runs * it.Numel()
	value, prefix := humanize.ComputeSI(float64(numElements) / elapsed.Seconds())
	fmt.Printf("\n%s elements in %s: %.2f %selements/s\n", humanize.Comma(int64(numElements)), elapsed, value, prefix)
	return nil
}
