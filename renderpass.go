// SPDX-License-Identifier: Unlicense OR MIT

package ngl

// Render pass control for scenes. All methods run on the worker
// thread, from a scene's Draw.

// GPU returns the backend context. Only valid while configured, from
// a scene's Attach, Update or Draw.
func (c *Context) GPU() GpuContext {
	return c.gpu
}

// StartRenderPass begins the current default render pass if it is not
// already running. The first pass of a frame clears the target;
// resumed passes preserve it.
func (c *Context) StartRenderPass() {
	if !c.passStarted {
		c.gpu.BeginRenderPass(c.currentRT)
		c.passStarted = true
	}
}

// SuspendRenderPass ends the running pass, if any, so a scene can do
// work outside of it (compute dispatch, rendering to an intermediate
// target). The next StartRenderPass resumes into the preserving
// default target.
func (c *Context) SuspendRenderPass() {
	if c.passStarted {
		c.gpu.EndRenderPass()
		c.currentRT = c.availableRTs[1]
		c.passStarted = false
	}
}
