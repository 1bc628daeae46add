// SPDX-License-Identifier: Unlicense OR MIT

package ngl

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gonodegl/ngl/internal/driver"
)

// mockRenderTarget is a default render target stand-in.
type mockRenderTarget struct {
	loadOp   driver.LoadOp
	width    int
	height   int
	released bool
}

func (rt *mockRenderTarget) Width() int  { return rt.width }
func (rt *mockRenderTarget) Height() int { return rt.height }
func (rt *mockRenderTarget) Release()    { rt.released = true }

// mockGPU implements driver.GpuContext without touching any native
// API, with the same mode validation rules as the real backends.
type mockGPU struct {
	cfg driver.Config

	initErr   error
	destroyed bool

	rtClear *mockRenderTarget
	rtLoad  *mockRenderTarget

	viewport [4]int32
	scissor  [4]int32

	draws     int
	waitIdles int

	// inFlight guards against interleaved command execution across
	// threads.
	inFlight atomic.Int32
}

// mockWrapGPU is a mockGPU that additionally adopts external
// framebuffers.
type mockWrapGPU struct {
	mockGPU
	wrapErr error
	wraps   []uint32
}

func (g *mockWrapGPU) WrapFramebuffer(id uint32) error {
	defer g.enter()()
	if g.wrapErr != nil {
		return g.wrapErr
	}
	g.wraps = append(g.wraps, id)
	return nil
}

// mockRegistry tracks every backend instance a test run created.
type mockRegistry struct {
	created   []*mockGPU
	createErr error
	initErr   error

	// wrapCapable backends implement driver.FramebufferWrapper.
	wrapCapable bool
	wrapErr     error
	wrapping    []*mockWrapGPU
}

// install swaps the backend factories for the duration of a test.
func (r *mockRegistry) install(t *testing.T) {
	t.Helper()
	prevGL, prevVK := driver.NewGLContext, driver.NewVulkanContext
	factory := func(cfg *driver.Config) (driver.GpuContext, error) {
		if r.createErr != nil {
			return nil, r.createErr
		}
		if r.wrapCapable {
			gpu := &mockWrapGPU{
				mockGPU: mockGPU{cfg: *cfg, initErr: r.initErr},
				wrapErr: r.wrapErr,
			}
			r.created = append(r.created, &gpu.mockGPU)
			r.wrapping = append(r.wrapping, gpu)
			return gpu, nil
		}
		gpu := &mockGPU{cfg: *cfg, initErr: r.initErr}
		r.created = append(r.created, gpu)
		return gpu, nil
	}
	driver.NewGLContext = factory
	driver.NewVulkanContext = factory
	t.Cleanup(func() {
		driver.NewGLContext, driver.NewVulkanContext = prevGL, prevVK
	})
}

func (r *mockRegistry) destroyed() int {
	n := 0
	for _, gpu := range r.created {
		if gpu.destroyed {
			n++
		}
	}
	return n
}

func (g *mockGPU) enter() func() {
	if g.inFlight.Add(1) != 1 {
		panic("concurrent backend access")
	}
	return func() { g.inFlight.Add(-1) }
}

func (g *mockGPU) Name() string { return "mock" }

func (g *mockGPU) Init() error {
	defer g.enter()()
	if g.initErr != nil {
		return g.initErr
	}
	cfg := &g.cfg
	if cfg.Offscreen && (cfg.Width <= 0 || cfg.Height <= 0) {
		return fmt.Errorf("offscreen rendering requires dimensions: %w", driver.ErrInvalidArgument)
	}
	g.rtClear = &mockRenderTarget{loadOp: driver.LoadOpClear, width: cfg.Width, height: cfg.Height}
	g.rtLoad = &mockRenderTarget{loadOp: driver.LoadOpLoad, width: cfg.Width, height: cfg.Height}
	g.viewport = [4]int32{0, 0, int32(cfg.Width), int32(cfg.Height)}
	g.scissor = g.viewport
	return nil
}

func (g *mockGPU) Resize(width, height int, viewport []int32) error {
	defer g.enter()()
	if g.cfg.Offscreen {
		return fmt.Errorf("offscreen contexts cannot be resized: %w", driver.ErrUnsupported)
	}
	g.cfg.Width, g.cfg.Height = width, height
	g.rtClear.width, g.rtClear.height = width, height
	g.rtLoad.width, g.rtLoad.height = width, height
	return nil
}

func (g *mockGPU) SetCaptureBuffer(buf []byte) error {
	defer g.enter()()
	if !g.cfg.Offscreen {
		return fmt.Errorf("capture buffers are only supported offscreen: %w", driver.ErrUnsupported)
	}
	g.cfg.CaptureBuffer = buf
	return nil
}

func (g *mockGPU) BeginUpdate(t float64) error { return nil }
func (g *mockGPU) EndUpdate(t float64) error   { return nil }

func (g *mockGPU) BeginDraw(t float64) error {
	defer g.enter()()
	if t < 0 {
		return fmt.Errorf("negative time %f: %w", t, driver.ErrInvalidArgument)
	}
	return nil
}

func (g *mockGPU) EndDraw(t float64) error {
	defer g.enter()()
	g.draws++
	if g.cfg.CaptureBuffer != nil {
		for i := range g.cfg.CaptureBuffer {
			g.cfg.CaptureBuffer[i] = 0xff
		}
	}
	return nil
}

func (g *mockGPU) QueryDrawTime() (time.Duration, error) { return time.Millisecond, nil }

func (g *mockGPU) WaitIdle() { g.waitIdles++ }

func (g *mockGPU) Destroy() {
	defer g.enter()()
	g.destroyed = true
	for _, rt := range []*mockRenderTarget{g.rtClear, g.rtLoad} {
		if rt != nil {
			rt.Release()
		}
	}
}

func (g *mockGPU) TransformCullMode(mode driver.CullMode) driver.CullMode { return mode }
func (g *mockGPU) TransformProjectionMatrix(m *mgl32.Mat4)                {}
func (g *mockGPU) RenderTargetUVCoordMatrix() mgl32.Mat4                  { return mgl32.Ident4() }

func (g *mockGPU) DefaultRenderTarget(op driver.LoadOp) driver.RenderTarget {
	if op == driver.LoadOpLoad {
		return g.rtLoad
	}
	return g.rtClear
}

func (g *mockGPU) DefaultRenderTargetLayout() driver.RenderTargetLayout {
	return driver.RenderTargetLayout{
		Colors:       []driver.AttachmentLayout{{Format: driver.FormatR8G8B8A8Unorm}},
		DepthStencil: driver.AttachmentLayout{Format: driver.FormatD24UnormS8Uint},
	}
}

func (g *mockGPU) BeginRenderPass(rt driver.RenderTarget) {}
func (g *mockGPU) EndRenderPass()                         {}

func (g *mockGPU) SetViewport(viewport [4]int32) { g.viewport = viewport }
func (g *mockGPU) Viewport() [4]int32            { return g.viewport }
func (g *mockGPU) SetScissor(scissor [4]int32)   { g.scissor = scissor }
func (g *mockGPU) Scissor() [4]int32             { return g.scissor }

func (g *mockGPU) Features() driver.Features {
	return driver.FeatureUniformBuffer | driver.FeatureInstancedDraw
}

func (g *mockGPU) Limits() driver.Limits {
	return driver.Limits{
		MaxColorAttachments:   8,
		MaxDrawBuffers:        8,
		MaxSamples:            4,
		MaxTextureDimension2D: 16384,
	}
}

func (g *mockGPU) Version() (api, language int) { return 330, 330 }

// mockScene counts lifecycle transitions.
type mockScene struct {
	attachErr error

	attaches int
	detaches int
	updates  int
	draws    int
}

func (s *mockScene) Attach(ctx *Context) error {
	s.attaches++
	return s.attachErr
}

func (s *mockScene) Detach(ctx *Context) { s.detaches++ }

func (s *mockScene) Update(t float64) error {
	s.updates++
	return nil
}

func (s *mockScene) Draw(ctx *Context) { s.draws++ }

func offscreenConfig() Config {
	return Config{
		Width:     16,
		Height:    16,
		Offscreen: true,
		Backend:   BackendOpenGL,
		Platform:  PlatformXlib,
	}
}
