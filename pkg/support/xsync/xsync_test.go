// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package xsync

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDynamicWaitGroup(t *testing.T) {
	wg := NewDynamicWaitGroup()
	var count atomic.Int32
	wg.Add(1)
	go func() {
		// Add more work while the main goroutine may be already waiting.
		for range 3 {
			wg.Add(1)
			go func() {
				count.Add(1)
				wg.Done()
			}()
		}
		wg.Done()
	}()
	wg.Wait()
	assert.Equal(t, int32(3), count.Load())
	require.Panics(t, func() { wg.Done() })
}
