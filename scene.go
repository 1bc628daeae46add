// SPDX-License-Identifier: Unlicense OR MIT

package ngl

// Scene is the root of a renderable graph. All methods run on the
// context's worker thread.
//
// Attach propagates the context's backend handles down the graph and
// may allocate GPU resources; it is always preceded by a WaitIdle on
// the GPU context. A failed Attach is followed by Detach on the same
// scene, so Detach must tolerate a partially attached graph.
type Scene interface {
	Attach(ctx *Context) error
	Detach(ctx *Context)

	// Update advances time-dependent state to t (seconds).
	Update(t float64) error

	// Draw records the scene's render passes through ctx. A scene
	// that never starts a pass is valid; the context then clears the
	// default render target on its own.
	Draw(ctx *Context)
}
