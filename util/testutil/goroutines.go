// Package testutil holds helpers shared by concurrency tests.
package testutil

import (
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// LeakTimeout bounds how long the helpers wait for goroutines to exit
const LeakTimeout = 5 * time.Second

// CheckGoroutineCleanup records the goroutine count and returns a function
// that fails the test if the count has not returned to that baseline.
//
//	defer testutil.CheckGoroutineCleanup(t)()
func CheckGoroutineCleanup(t *testing.T) func() {
	t.Helper()
	before := runtime.NumGoroutine()

	return func() {
		t.Helper()
		ok := assert.Eventually(t, func() bool {
			return runtime.NumGoroutine() <= before
		}, LeakTimeout, 20*time.Millisecond, "goroutines still running: before=%d", before)
		if !ok {
			DumpGoroutines(t)
		}
	}
}

// WaitTimeout waits for wg and reports whether it finished within timeout
func WaitTimeout(wg *sync.WaitGroup, timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}

// DumpGoroutines writes all goroutine stacks to the test log
func DumpGoroutines(t *testing.T) {
	t.Helper()
	buf := make([]byte, 1<<20)
	n := runtime.Stack(buf, true)
	t.Logf("goroutine stacks (%d goroutines):\n%s", runtime.NumGoroutine(), buf[:n])
}
