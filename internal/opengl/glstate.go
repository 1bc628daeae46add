// SPDX-License-Identifier: Unlicense OR MIT

package opengl

import "github.com/go-gl/gl/v4.6-core/gl"

// glState shadows the subset of fixed-function state that render
// passes depend on. Clears and resolves are affected by write masks
// and the scissor test, so passes force them to known values and the
// shadow copy avoids redundant calls.
type glState struct {
	colorWriteMask   [4]bool
	depthWriteMask   bool
	stencilWriteMask uint32
	scissorTest      bool
}

func (s *glState) reset() {
	s.colorWriteMask = [4]bool{true, true, true, true}
	gl.ColorMask(true, true, true, true)
	s.depthWriteMask = true
	gl.DepthMask(true)
	s.stencilWriteMask = 0xff
	gl.StencilMask(0xff)
	s.scissorTest = false
	gl.Disable(gl.SCISSOR_TEST)
}

func (s *glState) setColorWriteMask(r, g, b, a bool) {
	mask := [4]bool{r, g, b, a}
	if s.colorWriteMask == mask {
		return
	}
	s.colorWriteMask = mask
	gl.ColorMask(r, g, b, a)
}

func (s *glState) setDepthWriteMask(enabled bool) {
	if s.depthWriteMask == enabled {
		return
	}
	s.depthWriteMask = enabled
	gl.DepthMask(enabled)
}

func (s *glState) setStencilWriteMask(mask uint32) {
	if s.stencilWriteMask == mask {
		return
	}
	s.stencilWriteMask = mask
	gl.StencilMask(mask)
}

func (s *glState) setScissorTest(enabled bool) {
	if s.scissorTest == enabled {
		return
	}
	s.scissorTest = enabled
	if enabled {
		gl.Enable(gl.SCISSOR_TEST)
	} else {
		gl.Disable(gl.SCISSOR_TEST)
	}
}
