// SPDX-License-Identifier: Unlicense OR MIT

package ngl

import "github.com/go-gl/mathgl/mgl32"

// Transform matrix stacks used during scene traversal. All methods
// run on the worker thread, from a scene's Update or Draw.

// PushModelviewMatrix pushes m onto the modelview stack.
func (c *Context) PushModelviewMatrix(m mgl32.Mat4) {
	c.modelviewStack = append(c.modelviewStack, m)
}

// PopModelviewMatrix pops the top of the modelview stack. The initial
// identity entry is never popped.
func (c *Context) PopModelviewMatrix() {
	if len(c.modelviewStack) > 1 {
		c.modelviewStack = c.modelviewStack[:len(c.modelviewStack)-1]
	}
}

// ModelviewMatrix returns the top of the modelview stack.
func (c *Context) ModelviewMatrix() mgl32.Mat4 {
	return c.modelviewStack[len(c.modelviewStack)-1]
}

// PushProjectionMatrix pushes m onto the projection stack, after
// applying the backend's vertical axis convention.
func (c *Context) PushProjectionMatrix(m mgl32.Mat4) {
	c.gpu.TransformProjectionMatrix(&m)
	c.projectionStack = append(c.projectionStack, m)
}

// PopProjectionMatrix pops the top of the projection stack. The
// initial entry is never popped.
func (c *Context) PopProjectionMatrix() {
	if len(c.projectionStack) > 1 {
		c.projectionStack = c.projectionStack[:len(c.projectionStack)-1]
	}
}

// ProjectionMatrix returns the top of the projection stack.
func (c *Context) ProjectionMatrix() mgl32.Mat4 {
	return c.projectionStack[len(c.projectionStack)-1]
}
