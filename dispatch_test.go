// SPDX-License-Identifier: Unlicense OR MIT

package ngl

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Two controller threads hammer the same context. The mock backend
// panics on interleaved access, and each thread issues commands with
// a distinct outcome so result mix-ups are detected.
func TestConcurrentDispatchSerializes(t *testing.T) {
	reg := &mockRegistry{}
	reg.install(t)

	ctx := New()
	defer ctx.Destroy()

	cfg := offscreenConfig()
	require.NoError(t, ctx.Configure(&cfg))

	const iterations = 200
	var wg sync.WaitGroup
	wg.Add(3)

	go func() {
		defer wg.Done()
		for i := 0; i < iterations; i++ {
			assert.NoError(t, ctx.Draw(float64(i)))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < iterations; i++ {
			// Negative times fail in the backend; this thread must
			// observe the error on every call, never the other
			// thread's success.
			assert.ErrorIs(t, ctx.Draw(-1), ErrInvalidArgument)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < iterations; i++ {
			// The mock backend cannot wrap framebuffers; the
			// rejection must never demote the session under the
			// other threads.
			assert.ErrorIs(t, ctx.GLWrapFramebuffer(1), ErrUnsupported)
		}
	}()
	wg.Wait()

	assert.Equal(t, iterations, reg.created[0].draws)
}

func TestDestroyJoinsWorker(t *testing.T) {
	reg := &mockRegistry{}
	reg.install(t)

	ctx := New()
	cfg := offscreenConfig()
	require.NoError(t, ctx.Configure(&cfg))
	ctx.Destroy()

	select {
	case <-ctx.stopped:
	default:
		t.Fatal("worker thread still running after Destroy")
	}
	assert.Equal(t, len(reg.created), reg.destroyed())
}

func TestDestroyUnconfigured(t *testing.T) {
	reg := &mockRegistry{}
	reg.install(t)

	ctx := New()
	ctx.Destroy()
	assert.Empty(t, reg.created)
}
