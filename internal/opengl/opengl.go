// SPDX-License-Identifier: Unlicense OR MIT

// Package opengl implements the graphics context on OpenGL 3.x+ and
// OpenGL ES 3.x.
package opengl

import (
	"fmt"
	"log/slog"
	"runtime"
	"time"
	"unsafe"

	"github.com/go-gl/gl/v4.6-core/gl"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/gonodegl/ngl/internal/driver"
	"github.com/gonodegl/ngl/internal/glcontext"
)

func init() {
	driver.NewGLContext = newContext
}

// Context implements driver.GpuContext on a native OpenGL context.
type Context struct {
	cfg   driver.Config
	cfgGL driver.ConfigGL
	glctx *glcontext.Context

	version     int
	glslVersion int
	es          bool
	glFeatures  glcontext.Features
	features    driver.Features
	limits      driver.Limits

	state    glState
	viewport [4]int32
	scissor  [4]int32

	// Default render target pair sharing the same attachments. The
	// first clears on load, the second preserves previous contents so
	// multiple passes can accumulate into one frame.
	defaultRT     *renderTarget
	defaultRTLoad *renderTarget
	currentRT     *renderTarget
	layout        driver.RenderTargetLayout

	color        *texture
	msColor      *texture
	depthStencil *texture

	capture func() error

	queries    [2]uint32
	timerBegin func()
	timerQuery func() uint64
}

func newContext(cfg *driver.Config) (driver.GpuContext, error) {
	c := &Context{cfg: *cfg}
	if glcfg := cfg.GL(); glcfg != nil {
		c.cfgGL = *glcfg
	}
	return c, nil
}

func (c *Context) Name() string {
	if c.cfg.Backend == driver.BackendOpenGLES {
		return "OpenGL ES"
	}
	return "OpenGL"
}

func (c *Context) Init() error {
	cfg := &c.cfg
	switch {
	case c.cfgGL.External:
		if cfg.Width <= 0 || cfg.Height <= 0 {
			return fmt.Errorf("external rendering requires the external framebuffer dimensions: %w", driver.ErrInvalidArgument)
		}
		if cfg.CaptureBuffer != nil {
			return fmt.Errorf("capture buffers are only supported offscreen: %w", driver.ErrInvalidArgument)
		}
	case cfg.Offscreen:
		if cfg.Width <= 0 || cfg.Height <= 0 {
			return fmt.Errorf("offscreen rendering requires dimensions: %w", driver.ErrInvalidArgument)
		}
	default:
		if cfg.CaptureBuffer != nil {
			return fmt.Errorf("capture buffers are only supported offscreen: %w", driver.ErrInvalidArgument)
		}
	}

	glctx, err := glcontext.New(&glcontext.Params{
		Platform:     cfg.Platform,
		Backend:      cfg.Backend,
		External:     c.cfgGL.External,
		Offscreen:    cfg.Offscreen,
		Width:        cfg.Width,
		Height:       cfg.Height,
		Samples:      cfg.Samples,
		SwapInterval: cfg.SwapInterval,
	})
	if err != nil {
		return err
	}
	c.glctx = glctx
	c.version = glctx.Version
	c.glslVersion = glctx.GLSLVersion
	c.es = glctx.ES
	c.glFeatures = glctx.Features
	c.features = translateFeatures(glctx.Features)
	c.limits = glctx.Limits
	c.state.reset()

	if cfg.Samples > 0 && !c.glFeatures.Has(glcontext.FeatureFramebufferObject) {
		slog.Warn("context does not support multisample anti-aliasing, disabling it",
			"backend", c.Name(), "samples", cfg.Samples)
		cfg.Samples = 0
	}

	switch {
	case c.cfgGL.External:
		err = c.WrapFramebuffer(c.cfgGL.ExternalFramebuffer)
	case cfg.Offscreen:
		err = c.offscreenInit()
	default:
		// The window system has the final word on the swapchain
		// shape, including the effective sample count.
		cfg.Width = glctx.Width
		cfg.Height = glctx.Height
		cfg.Samples = glctx.Samples
		err = c.onscreenInit()
	}
	if err != nil {
		return err
	}

	c.timerInit()

	c.viewport = cfg.Viewport
	if c.viewport[2] <= 0 || c.viewport[3] <= 0 {
		c.viewport = [4]int32{0, 0, int32(cfg.Width), int32(cfg.Height)}
	}
	c.scissor = [4]int32{0, 0, int32(cfg.Width), int32(cfg.Height)}
	return nil
}

// timerInit selects the GPU timing tier: timestamp queries where the
// context has them, elapsed-time queries on drivers that stall on
// timestamps, nothing at all otherwise.
func (c *Context) timerInit() {
	switch {
	case c.glFeatures.Has(glcontext.FeatureTimerQuery) && runtime.GOOS != "darwin":
		gl.GenQueries(2, &c.queries[0])
		c.timerBegin = func() {
			gl.QueryCounter(c.queries[0], gl.TIMESTAMP)
		}
		c.timerQuery = func() uint64 {
			gl.QueryCounter(c.queries[1], gl.TIMESTAMP)
			var start, end uint64
			gl.GetQueryObjectui64v(c.queries[0], gl.QUERY_RESULT, &start)
			gl.GetQueryObjectui64v(c.queries[1], gl.QUERY_RESULT, &end)
			return end - start
		}
	case c.glFeatures.HasAny(glcontext.FeatureTimerQuery | glcontext.FeatureEXTDisjointTimerQuery):
		// The darwin core path and the ES extension share the
		// elapsed-time query shape.
		gl.GenQueries(2, &c.queries[0])
		c.timerBegin = func() {
			gl.BeginQuery(gl.TIME_ELAPSED, c.queries[0])
		}
		c.timerQuery = func() uint64 {
			gl.EndQuery(gl.TIME_ELAPSED)
			var elapsed uint64
			gl.GetQueryObjectui64v(c.queries[0], gl.QUERY_RESULT, &elapsed)
			return elapsed
		}
	default:
		c.timerBegin = func() {}
		c.timerQuery = func() uint64 { return 0 }
	}
}

// defaultRenderTargetPair builds the CLEAR and LOAD default targets
// over the same attachments. With nil attachments the pair wraps fb
// instead.
func (c *Context) defaultRenderTargetPair(fb uint32) error {
	cfg := &c.cfg
	color := driver.Attachment{
		LoadOp:     driver.LoadOpClear,
		ClearValue: cfg.ClearColor,
		StoreOp:    driver.StoreOpStore,
	}
	ds := driver.Attachment{
		LoadOp:  driver.LoadOpClear,
		StoreOp: driver.StoreOpDontCare,
	}
	if c.color != nil || c.msColor != nil {
		if c.msColor != nil {
			color.Attachment = c.msColor
			color.ResolveTarget = c.color
		} else {
			color.Attachment = c.color
		}
		ds.Attachment = c.depthStencil
	}
	params := driver.RenderTargetParams{
		Width:        cfg.Width,
		Height:       cfg.Height,
		Colors:       []driver.Attachment{color},
		DepthStencil: ds,
	}

	newRT := func(p driver.RenderTargetParams) (*renderTarget, error) {
		if p.Colors[0].Attachment == nil {
			return wrapRenderTarget(c, p, fb)
		}
		return newRenderTarget(c, p)
	}

	var err error
	if c.defaultRT, err = newRT(params); err != nil {
		return err
	}
	loadParams := params
	loadParams.Colors = []driver.Attachment{params.Colors[0]}
	loadParams.Colors[0].LoadOp = driver.LoadOpLoad
	loadParams.DepthStencil.LoadOp = driver.LoadOpLoad
	if c.defaultRTLoad, err = newRT(loadParams); err != nil {
		return err
	}

	c.layout = driver.RenderTargetLayout{
		Samples: cfg.Samples,
		Colors: []driver.AttachmentLayout{{
			Format:  driver.FormatR8G8B8A8Unorm,
			Resolve: cfg.Samples > 0,
		}},
		DepthStencil: driver.AttachmentLayout{
			Format:  driver.FormatD24UnormS8Uint,
			Resolve: cfg.Samples > 0,
		},
	}
	return nil
}

func (c *Context) offscreenInit() error {
	cfg := &c.cfg

	switch cfg.CaptureBufferType {
	case driver.CaptureBufferTypeCPU:
		c.capture = c.captureCPU
	case driver.CaptureBufferTypeZeroCopy:
		return fmt.Errorf("zero-copy capture is not supported on this platform: %w", driver.ErrUnsupported)
	default:
		return fmt.Errorf("unknown capture buffer type %d: %w", cfg.CaptureBufferType, driver.ErrInvalidArgument)
	}

	var err error
	if c.color, err = newTexture(driver.FormatR8G8B8A8Unorm, cfg.Width, cfg.Height, 0); err != nil {
		return err
	}
	if cfg.Samples > 0 {
		if c.msColor, err = newTexture(driver.FormatR8G8B8A8Unorm, cfg.Width, cfg.Height, cfg.Samples); err != nil {
			return err
		}
	}
	if c.depthStencil, err = newTexture(driver.FormatD24UnormS8Uint, cfg.Width, cfg.Height, cfg.Samples); err != nil {
		return err
	}
	return c.defaultRenderTargetPair(0)
}

func (c *Context) onscreenInit() error {
	return c.defaultRenderTargetPair(c.glctx.DefaultFramebuffer())
}

func (c *Context) releaseRenderTargets() {
	c.defaultRT.Release()
	c.defaultRTLoad.Release()
	c.defaultRT, c.defaultRTLoad = nil, nil
	for _, t := range []*texture{c.color, c.msColor, c.depthStencil} {
		if t != nil {
			t.Release()
		}
	}
	c.color, c.msColor, c.depthStencil = nil, nil, nil
}

// WrapFramebuffer adopts fb as the default render target of an
// external context. The attachment shape is introspected so the
// layout reported to pipeline builders matches the caller's
// framebuffer.
func (c *Context) WrapFramebuffer(fb uint32) error {
	if !c.cfgGL.External {
		return fmt.Errorf("framebuffer wrapping requires an externally owned context: %w", driver.ErrInvalidUsage)
	}

	// Verify each expected channel of the framebuffer is present and
	// non-zero-sized before adopting it. Contexts without framebuffer
	// introspection skip the check.
	if c.glFeatures.Has(glcontext.FeatureFramebufferObject) {
		var prev int32
		gl.GetIntegerv(gl.DRAW_FRAMEBUFFER_BINDING, &prev)
		gl.BindFramebuffer(gl.DRAW_FRAMEBUFFER, fb)

		// The default framebuffer is queried through buffer names
		// instead of attachment points.
		colorAttachment := uint32(gl.COLOR_ATTACHMENT0)
		depthAttachment := uint32(gl.DEPTH_ATTACHMENT)
		stencilAttachment := uint32(gl.STENCIL_ATTACHMENT)
		if fb == 0 {
			colorAttachment = gl.FRONT_LEFT
			if c.es {
				colorAttachment = gl.BACK
			}
			depthAttachment = gl.DEPTH
			stencilAttachment = gl.STENCIL
		}
		components := []struct {
			name       string
			attachment uint32
			property   uint32
		}{
			{"red", colorAttachment, gl.FRAMEBUFFER_ATTACHMENT_RED_SIZE},
			{"green", colorAttachment, gl.FRAMEBUFFER_ATTACHMENT_GREEN_SIZE},
			{"blue", colorAttachment, gl.FRAMEBUFFER_ATTACHMENT_BLUE_SIZE},
			{"alpha", colorAttachment, gl.FRAMEBUFFER_ATTACHMENT_ALPHA_SIZE},
			{"depth", depthAttachment, gl.FRAMEBUFFER_ATTACHMENT_DEPTH_SIZE},
			{"stencil", stencilAttachment, gl.FRAMEBUFFER_ATTACHMENT_STENCIL_SIZE},
		}
		for _, comp := range components {
			var objType int32
			gl.GetFramebufferAttachmentParameteriv(gl.DRAW_FRAMEBUFFER, comp.attachment, gl.FRAMEBUFFER_ATTACHMENT_OBJECT_TYPE, &objType)
			if objType == gl.NONE {
				gl.BindFramebuffer(gl.DRAW_FRAMEBUFFER, uint32(prev))
				return fmt.Errorf("external framebuffer has no buffer at attachment 0x%x: %w", comp.attachment, driver.ErrGraphicsUnsupported)
			}
			var size int32
			gl.GetFramebufferAttachmentParameteriv(gl.DRAW_FRAMEBUFFER, comp.attachment, comp.property, &size)
			if size == 0 {
				gl.BindFramebuffer(gl.DRAW_FRAMEBUFFER, uint32(prev))
				return fmt.Errorf("external framebuffer has no %s component: %w", comp.name, driver.ErrGraphicsUnsupported)
			}
		}

		gl.BindFramebuffer(gl.DRAW_FRAMEBUFFER, uint32(prev))
	}

	if c.defaultRT != nil {
		c.releaseRenderTargets()
	}
	c.cfgGL.ExternalFramebuffer = fb
	return c.defaultRenderTargetPair(fb)
}

func (c *Context) Resize(width, height int, viewport []int32) error {
	cfg := &c.cfg
	switch {
	case c.cfgGL.External:
		cfg.Width = width
		cfg.Height = height
	case cfg.Offscreen:
		return fmt.Errorf("offscreen contexts cannot be resized: %w", driver.ErrUnsupported)
	default:
		if err := c.glctx.Resize(width, height); err != nil {
			return err
		}
		cfg.Width = c.glctx.Width
		cfg.Height = c.glctx.Height
	}

	for _, rt := range []*renderTarget{c.defaultRT, c.defaultRTLoad} {
		rt.params.Width = cfg.Width
		rt.params.Height = cfg.Height
		// The native default framebuffer id may change across a
		// resize on some platforms.
		if !c.cfgGL.External && rt.wrapped {
			rt.id = c.glctx.DefaultFramebuffer()
		}
	}

	if len(viewport) == 4 && viewport[2] > 0 && viewport[3] > 0 {
		c.viewport = [4]int32{viewport[0], viewport[1], viewport[2], viewport[3]}
	} else {
		c.viewport = [4]int32{0, 0, int32(cfg.Width), int32(cfg.Height)}
	}
	c.scissor = [4]int32{0, 0, int32(cfg.Width), int32(cfg.Height)}
	return nil
}

func (c *Context) SetCaptureBuffer(buf []byte) error {
	cfg := &c.cfg
	if c.cfgGL.External || !cfg.Offscreen {
		return fmt.Errorf("capture buffers are only supported offscreen: %w", driver.ErrUnsupported)
	}
	if buf != nil {
		if want := cfg.Width * cfg.Height * 4; len(buf) < want {
			return fmt.Errorf("capture buffer is %d bytes, need %d: %w", len(buf), want, driver.ErrInvalidArgument)
		}
	}
	cfg.CaptureBuffer = buf
	return nil
}

func (c *Context) BeginUpdate(t float64) error { return nil }
func (c *Context) EndUpdate(t float64) error   { return nil }

func (c *Context) BeginDraw(t float64) error {
	if c.cfg.HUD {
		c.timerBegin()
	}
	return nil
}

func (c *Context) EndDraw(t float64) error {
	cfg := &c.cfg
	if c.capture != nil && cfg.CaptureBuffer != nil {
		if err := c.capture(); err != nil {
			return err
		}
	}
	err := c.glctx.CheckError("draw")
	if !c.cfgGL.External && !cfg.Offscreen {
		if cfg.SetSurfacePTS {
			c.glctx.SetSurfacePTS(t)
		}
		c.glctx.SwapBuffers()
	}
	return err
}

func (c *Context) captureCPU() error {
	cfg := &c.cfg
	fb := c.defaultRT.id
	if c.defaultRT.resolveID != 0 {
		fb = c.defaultRT.resolveID
	}
	gl.BindFramebuffer(gl.READ_FRAMEBUFFER, fb)
	gl.ReadPixels(0, 0, int32(cfg.Width), int32(cfg.Height), gl.RGBA, gl.UNSIGNED_BYTE, unsafe.Pointer(&cfg.CaptureBuffer[0]))
	c.bindCurrentFramebuffer()
	return c.glctx.CheckError("capture")
}

func (c *Context) QueryDrawTime() (time.Duration, error) {
	if !c.cfg.HUD {
		return 0, fmt.Errorf("draw timing requires diagnostics to be enabled: %w", driver.ErrInvalidUsage)
	}
	return time.Duration(c.timerQuery()), nil
}

func (c *Context) WaitIdle() {
	gl.Finish()
}

func (c *Context) Destroy() {
	if c.glctx == nil {
		return
	}
	if c.queries[0] != 0 {
		gl.DeleteQueries(2, &c.queries[0])
		c.queries = [2]uint32{}
	}
	if c.defaultRT != nil {
		c.releaseRenderTargets()
	}
	c.glctx.MakeCurrent(false)
	c.glctx.Free()
	c.glctx = nil
}

// TransformCullMode swaps the cull faces for offscreen targets, whose
// vertical axis convention inverts the winding order.
func (c *Context) TransformCullMode(mode driver.CullMode) driver.CullMode {
	if !c.cfg.Offscreen {
		return mode
	}
	switch mode {
	case driver.CullModeFront:
		return driver.CullModeBack
	case driver.CullModeBack:
		return driver.CullModeFront
	}
	return mode
}

func (c *Context) TransformProjectionMatrix(m *mgl32.Mat4) {
	if !c.cfg.Offscreen {
		return
	}
	flip := mgl32.Diag4(mgl32.Vec4{1, -1, 1, 1})
	*m = flip.Mul4(*m)
}

func (c *Context) RenderTargetUVCoordMatrix() mgl32.Mat4 {
	if c.cfg.Offscreen {
		return mgl32.Ident4()
	}
	return mgl32.Mat4{
		1, 0, 0, 0,
		0, -1, 0, 0,
		0, 0, 1, 0,
		0, 1, 0, 1,
	}
}

func (c *Context) DefaultRenderTarget(op driver.LoadOp) driver.RenderTarget {
	if op == driver.LoadOpLoad {
		return c.defaultRTLoad
	}
	return c.defaultRT
}

func (c *Context) DefaultRenderTargetLayout() driver.RenderTargetLayout {
	return c.layout
}

func (c *Context) bindCurrentFramebuffer() {
	id := uint32(0)
	if c.currentRT != nil {
		id = c.currentRT.id
	} else if c.defaultRT != nil {
		id = c.defaultRT.id
	}
	gl.BindFramebuffer(gl.FRAMEBUFFER, id)
}

func (c *Context) BeginRenderPass(rt driver.RenderTarget) {
	c.currentRT = rt.(*renderTarget)
	c.currentRT.beginPass()
	gl.Viewport(c.viewport[0], c.viewport[1], c.viewport[2], c.viewport[3])
}

func (c *Context) EndRenderPass() {
	if c.currentRT == nil {
		return
	}
	c.currentRT.endPass()
	c.currentRT = nil
	c.bindCurrentFramebuffer()
}

func (c *Context) SetViewport(viewport [4]int32) {
	c.viewport = viewport
	gl.Viewport(viewport[0], viewport[1], viewport[2], viewport[3])
}

func (c *Context) Viewport() [4]int32 { return c.viewport }

func (c *Context) SetScissor(scissor [4]int32) {
	c.scissor = scissor
	gl.Scissor(scissor[0], scissor[1], scissor[2], scissor[3])
}

func (c *Context) Scissor() [4]int32 { return c.scissor }

func (c *Context) Features() driver.Features { return c.features }
func (c *Context) Limits() driver.Limits     { return c.limits }

func (c *Context) Version() (api, language int) {
	return c.version, c.glslVersion
}
