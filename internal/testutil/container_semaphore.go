// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"os"
	"runtime"
	"strconv"
	"sync"
	"testing"
)

// containerSlots bounds the number of tests talking to the container daemon
// at once. MB_TEST_CONTAINER_PARALLEL overrides the default of
// min(GOMAXPROCS, 2).
var containerSlots = sync.OnceValue(func() chan struct{} {
	n := min(runtime.GOMAXPROCS(0), 2)
	if v, err := strconv.Atoi(os.Getenv("MB_TEST_CONTAINER_PARALLEL")); err == nil && v > 0 {
		n = v
	}
	return make(chan struct{}, n)
})

// AcquireContainer blocks until a container slot is free and releases it
// when t finishes.
func AcquireContainer(t testing.TB) {
	t.Helper()

	slots := containerSlots()
	slots <- struct{}{}
	t.Cleanup(func() { <-slots })
}
