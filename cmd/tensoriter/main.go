// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// tensoriter builds an iterator from operands described in the command line, and prints how it iterates them:
// the broadcast shape, the reordered and coalesced dimensions, the byte strides of each operand and the
// temporaries created for casting.
//
// Example:
//
//	tensoriter -input 'float32[3,1]' -input 'int32[1,4]' -config promote_inputs_to_common_dtype -split32 -bench 100
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/gomlx/tensoriter/internal/workerspool"
	"github.com/gomlx/tensoriter/pkg/core/tensoriter"
	"github.com/gomlx/tensoriter/pkg/core/tensors"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

var (
	flagOutputs, flagInputs operandsFlag

	flagConfig = flag.String("config", "",
		fmt.Sprintf("Comma-separated list of options applied over the default configuration, "+
			"prefix an option with \"-\" to disable it. Valid options: %v", tensoriter.OptionStrings()))
	flagStaticShape = flag.String("static_shape", "",
		"Comma-separated dimensions of a static iteration shape, e.g. \"2,3\". It requires -config=-resize_outputs.")
	flagSquashDim   = flag.Int("squash_dim", -1, "Dimension of -static_shape that is not iterated (set to 1).")
	flagParallelism = flag.Int("parallelism", -2,
		fmt.Sprintf("Maximum number of parallel workers: 0 disables parallelism, -1 is unlimited. "+
			"If not set, it uses $%s or the number of cores.", workerspool.EnvMaxParallelism))
	flagSplit32 = flag.Bool("split32", false, "Print the sub-iterators that satisfy 32-bit indexing.")
	flagBench   = flag.Int("bench", 0, "Number of runs of a float32 sum kernel to benchmark the iteration.")
)

func init() {
	flag.Var(&flagOutputs, "output", fmt.Sprintf(
		"Output operand, as \"<dtype>[<dims>][:<layout>][@<device>]\", or %q to let the iterator allocate it. "+
			"It can be repeated. If no output is given, one %q output is used.", AutoOperand, AutoOperand))
	flag.Var(&flagInputs, "input",
		"Input operand, as \"<dtype>[<dims>][:<layout>][@<device>]\", e.g. \"float32[3,1]\" or "+
			"\"float16[2,3,4,5]:channels_last\". It can be repeated.")
}

func main() {
	klog.InitFlags(nil)
	flag.Parse()
	if len(flagInputs) == 0 {
		klog.Errorf("At least one -input is required. See 'tensoriter -help'.")
		os.Exit(1)
	}
	if len(flagOutputs) == 0 {
		flagOutputs = operandsFlag{AutoOperand}
	}
	pool := workerspool.Default()
	if *flagParallelism != -2 {
		pool.SetMaxParallelism(*flagParallelism)
	}
	config := must.M1(tensoriter.ParseConfig(*flagConfig))
	if *flagStaticShape != "" {
		config = config.WithStaticShape(must.M1(parseDims(*flagStaticShape)), *flagSquashDim)
	}

	it, err := build(config, pool)
	if err != nil {
		klog.Errorf("Failed to build the iterator: %+v", err)
		os.Exit(1)
	}
	printPlan(it, config)
	if *flagSplit32 {
		printSplitPlan(it)
	}
	if *flagBench > 0 {
		must.M(bench(it, *flagBench))
	}
}

// build creates the operands from the flags, and the iterator over them.
func build(config tensoriter.Config, pool *workerspool.Pool) (*tensoriter.Iterator, error) {
	builder := tensoriter.NewBuilder().WithConfig(config).WithPool(pool)
	for _, desc := range flagOutputs {
		t, err := newOperandTensor(desc)
		if err != nil {
			return nil, errors.WithMessagef(err, "output %q", desc)
		}
		builder.AddOutput(t)
	}
	for _, desc := range flagInputs {
		t, err := newOperandTensor(desc)
		if err != nil {
			return nil, errors.WithMessagef(err, "input %q", desc)
		}
		builder.AddInput(t)
	}
	return builder.Build()
}

// newOperandTensor parses the operand description and creates its tensor.
func newOperandTensor(desc string) (*tensors.Tensor, error) {
	spec, err := parseOperand(desc)
	if err != nil {
		return nil, err
	}
	return spec.newTensor()
}
