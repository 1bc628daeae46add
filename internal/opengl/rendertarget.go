// SPDX-License-Identifier: Unlicense OR MIT

package opengl

import (
	"fmt"

	"github.com/go-gl/gl/v4.6-core/gl"

	"github.com/gonodegl/ngl/internal/driver"
	"github.com/gonodegl/ngl/internal/glcontext"
)

// renderTarget is a GL framebuffer pair: the main FBO plus, when any
// attachment has a resolve target, a single-sample resolve FBO. The
// clear, resolve and invalidate strategies are selected once at
// creation from the probed feature set.
type renderTarget struct {
	ctx     *Context
	params  driver.RenderTargetParams
	wrapped bool

	id        uint32
	resolveID uint32

	drawBuffers           []uint32
	clearFlags            uint32
	clearDepthStencil     bool
	invalidateAttachments []uint32

	clear      func()
	resolve    func()
	invalidate func()
}

func attachTexture(point uint32, t *texture, layer int) {
	switch t.target {
	case gl.RENDERBUFFER:
		gl.FramebufferRenderbuffer(gl.FRAMEBUFFER, point, gl.RENDERBUFFER, t.id)
	case gl.TEXTURE_CUBE_MAP:
		face := uint32(gl.TEXTURE_CUBE_MAP_POSITIVE_X + layer)
		gl.FramebufferTexture2D(gl.FRAMEBUFFER, point, face, t.id, 0)
	default:
		gl.FramebufferTexture2D(gl.FRAMEBUFFER, point, gl.TEXTURE_2D, t.id, 0)
	}
}

// createFBO builds one of the pair. With resolve set, the
// single-sample resolve targets are attached instead of the
// multisample images.
func (rt *renderTarget) createFBO(resolve bool) (uint32, error) {
	var id uint32
	gl.GenFramebuffers(1, &id)
	gl.BindFramebuffer(gl.FRAMEBUFFER, id)

	for i, color := range rt.params.Colors {
		att := color.Attachment
		layer := color.Layer
		if resolve {
			att = color.ResolveTarget
			layer = color.ResolveLayer
		}
		t, ok := att.(*texture)
		if !ok || t == nil {
			gl.DeleteFramebuffers(1, &id)
			return 0, fmt.Errorf("color attachment %d is not a native image: %w", i, driver.ErrInvalidArgument)
		}
		attachTexture(uint32(gl.COLOR_ATTACHMENT0+i), t, layer)
	}

	if ds, ok := rt.params.DepthStencil.Attachment.(*texture); ok && ds != nil {
		point := attachmentIndex(ds.triple.internalFormat)
		if point == gl.DEPTH_STENCIL_ATTACHMENT && rt.ctx.version < 300 && rt.ctx.es {
			// ES2 has no combined attachment point.
			attachTexture(gl.DEPTH_ATTACHMENT, ds, 0)
			attachTexture(gl.STENCIL_ATTACHMENT, ds, 0)
		} else {
			attachTexture(point, ds, 0)
		}
	}

	if status := gl.CheckFramebufferStatus(gl.FRAMEBUFFER); status != gl.FRAMEBUFFER_COMPLETE {
		gl.DeleteFramebuffers(1, &id)
		return 0, fmt.Errorf("framebuffer is incomplete (status 0x%x): %w", status, driver.ErrGraphicsUnsupported)
	}
	return id, nil
}

func newRenderTarget(ctx *Context, params driver.RenderTargetParams) (*renderTarget, error) {
	rt := &renderTarget{ctx: ctx, params: params}
	if err := rt.init(); err != nil {
		rt.Release()
		return nil, err
	}
	return rt, nil
}

// wrapRenderTarget adopts an existing framebuffer. The framebuffer
// keeps its attachments: the params carry formats and ops only, so a
// wrapped target must have exactly one color and no attachment
// images.
func wrapRenderTarget(ctx *Context, params driver.RenderTargetParams, id uint32) (*renderTarget, error) {
	if n := len(params.Colors); n != 1 {
		return nil, fmt.Errorf("wrapped render target must have exactly 1 color attachment, got %d: %w", n, driver.ErrInvalidArgument)
	}
	if params.Colors[0].Attachment != nil || params.Colors[0].ResolveTarget != nil || params.DepthStencil.Attachment != nil {
		return nil, fmt.Errorf("wrapped render target cannot carry attachment images: %w", driver.ErrInvalidArgument)
	}
	rt := &renderTarget{ctx: ctx, params: params, wrapped: true, id: id}
	if err := rt.init(); err != nil {
		return nil, err
	}
	return rt, nil
}

func (rt *renderTarget) init() error {
	ctx := rt.ctx

	if n := len(rt.params.Colors); n > driver.MaxColorAttachments {
		return fmt.Errorf("%d color attachments exceed the supported maximum of %d: %w", n, driver.MaxColorAttachments, driver.ErrUnsupported)
	}
	if n, max := len(rt.params.Colors), ctx.limits.MaxColorAttachments; n > max {
		return fmt.Errorf("%d color attachments exceed the device limit of %d: %w", n, max, driver.ErrUnsupported)
	}

	resolve := false
	for _, color := range rt.params.Colors {
		if color.ResolveTarget != nil {
			resolve = true
			break
		}
	}

	if !rt.wrapped {
		var err error
		if rt.id, err = rt.createFBO(false); err != nil {
			return err
		}
		if resolve {
			if rt.resolveID, err = rt.createFBO(true); err != nil {
				return err
			}
		}
	}

	for i, color := range rt.params.Colors {
		if color.LoadOp == driver.LoadOpClear {
			rt.clearFlags |= gl.COLOR_BUFFER_BIT
		}
		point := uint32(gl.COLOR_ATTACHMENT0 + i)
		if rt.id == 0 {
			point = gl.COLOR
		}
		rt.drawBuffers = append(rt.drawBuffers, point)
		if color.StoreOp == driver.StoreOpDontCare {
			rt.invalidateAttachments = append(rt.invalidateAttachments, point)
		}
	}
	if rt.params.DepthStencil.Attachment != nil || rt.wrapped {
		if rt.params.DepthStencil.LoadOp == driver.LoadOpClear {
			rt.clearFlags |= gl.DEPTH_BUFFER_BIT | gl.STENCIL_BUFFER_BIT
			rt.clearDepthStencil = true
		}
		if rt.params.DepthStencil.StoreOp == driver.StoreOpDontCare {
			if rt.id == 0 {
				rt.invalidateAttachments = append(rt.invalidateAttachments, gl.DEPTH, gl.STENCIL)
			} else {
				rt.invalidateAttachments = append(rt.invalidateAttachments, gl.DEPTH_ATTACHMENT, gl.STENCIL_ATTACHMENT)
			}
		}
	}

	if len(rt.drawBuffers) > 1 {
		if !ctx.glFeatures.Has(glcontext.FeatureDrawBuffers) {
			return fmt.Errorf("context does not support multiple draw buffers: %w", driver.ErrUnsupported)
		}
		gl.BindFramebuffer(gl.FRAMEBUFFER, rt.id)
		gl.DrawBuffers(int32(len(rt.drawBuffers)), &rt.drawBuffers[0])
	}

	if ctx.glFeatures.Has(glcontext.FeatureClearBuffer) {
		rt.clear = rt.clearPerBuffer
	} else {
		rt.clear = rt.clearCombined
	}

	rt.resolve = func() {}
	if resolve {
		if ctx.glFeatures.Has(glcontext.FeatureDrawBuffers) {
			rt.resolve = rt.resolveDrawBuffers
		} else {
			if len(rt.params.Colors) > 1 {
				return fmt.Errorf("context does not support resolving multiple color attachments: %w", driver.ErrUnsupported)
			}
			rt.resolve = rt.resolveNoDrawBuffers
		}
	}

	rt.invalidate = func() {}
	if ctx.glFeatures.Has(glcontext.FeatureInvalidateSubdata) && len(rt.invalidateAttachments) > 0 {
		rt.invalidate = rt.invalidateFBO
	}

	ctx.bindCurrentFramebuffer()
	return nil
}

// clearCombined clears with the aggregate glClear path. Clear values
// beyond the first color attachment's cannot be honored on contexts
// without per-buffer clears.
func (rt *renderTarget) clearCombined() {
	if rt.clearFlags == 0 {
		return
	}
	if rt.clearFlags&gl.COLOR_BUFFER_BIT != 0 {
		c := rt.params.Colors[0].ClearValue
		gl.ClearColor(c[0], c[1], c[2], c[3])
	}
	gl.Clear(rt.clearFlags)
}

func (rt *renderTarget) clearPerBuffer() {
	for i, color := range rt.params.Colors {
		if color.LoadOp != driver.LoadOpClear {
			continue
		}
		c := color.ClearValue
		gl.ClearBufferfv(gl.COLOR, int32(i), &c[0])
	}
	if rt.clearDepthStencil {
		gl.ClearBufferfi(gl.DEPTH_STENCIL, 0, 1.0, 0)
	}
}

// resolveNoDrawBuffers resolves the whole framebuffer with a single
// blit. Only valid for single-color targets.
func (rt *renderTarget) resolveNoDrawBuffers() {
	w, h := int32(rt.params.Width), int32(rt.params.Height)
	gl.BlitFramebuffer(0, 0, w, h, 0, 0, w, h, gl.COLOR_BUFFER_BIT, gl.NEAREST)
}

// resolveDrawBuffers blits each color attachment in turn, narrowing
// the draw buffer set to the destination of the current blit, then
// restores the target's draw buffer configuration.
func (rt *renderTarget) resolveDrawBuffers() {
	w, h := int32(rt.params.Width), int32(rt.params.Height)
	selected := make([]uint32, len(rt.params.Colors))
	for i := range rt.params.Colors {
		for j := range selected {
			selected[j] = gl.NONE
		}
		selected[i] = uint32(gl.COLOR_ATTACHMENT0 + i)
		gl.ReadBuffer(uint32(gl.COLOR_ATTACHMENT0 + i))
		gl.DrawBuffers(int32(len(selected)), &selected[0])
		gl.BlitFramebuffer(0, 0, w, h, 0, 0, w, h, gl.COLOR_BUFFER_BIT, gl.NEAREST)
	}
	gl.ReadBuffer(gl.COLOR_ATTACHMENT0)
	gl.DrawBuffers(int32(len(rt.drawBuffers)), &rt.drawBuffers[0])
}

func (rt *renderTarget) invalidateFBO() {
	gl.InvalidateFramebuffer(gl.FRAMEBUFFER, int32(len(rt.invalidateAttachments)), &rt.invalidateAttachments[0])
}

// beginPass binds the target and applies its load ops. Clears ignore
// write masks and the scissor box, so both are forced to a permissive
// state first.
func (rt *renderTarget) beginPass() {
	gl.BindFramebuffer(gl.FRAMEBUFFER, rt.id)
	state := &rt.ctx.state
	state.setColorWriteMask(true, true, true, true)
	state.setDepthWriteMask(true)
	state.setStencilWriteMask(0xff)
	state.setScissorTest(false)
	rt.clear()
}

// endPass resolves multisample attachments into their targets and
// invalidates any content the store ops discard.
func (rt *renderTarget) endPass() {
	if rt.resolveID != 0 {
		gl.BindFramebuffer(gl.READ_FRAMEBUFFER, rt.id)
		gl.BindFramebuffer(gl.DRAW_FRAMEBUFFER, rt.resolveID)
		rt.ctx.state.setScissorTest(false)
		rt.resolve()
		gl.BindFramebuffer(gl.FRAMEBUFFER, rt.id)
	}
	rt.invalidate()
}

func (rt *renderTarget) Width() int  { return rt.params.Width }
func (rt *renderTarget) Height() int { return rt.params.Height }

func (rt *renderTarget) Release() {
	if rt == nil {
		return
	}
	if !rt.wrapped {
		if rt.id != 0 {
			gl.DeleteFramebuffers(1, &rt.id)
		}
		if rt.resolveID != 0 {
			gl.DeleteFramebuffers(1, &rt.resolveID)
		}
	}
	rt.id = 0
	rt.resolveID = 0
}
