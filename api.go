// SPDX-License-Identifier: Unlicense OR MIT

// Package ngl renders scene graphs through a backend-agnostic GPU
// context. A Context owns one native graphics context and one worker
// thread; every GPU-touching operation is serialized onto that thread
// through a single-slot command mailbox.
package ngl

import (
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gonodegl/ngl/internal/driver"
)

// Version is the library version.
const Version = "0.1.0"

// command is one mailbox entry. Each dispatch allocates its own entry
// so a controller never observes another controller's result.
type command struct {
	fn   func() error
	stop bool

	err  error
	done bool
}

// Context is the top-level session object. A Context starts
// unconfigured; Configure allocates the backend and its GPU
// resources, and may be called again any number of times for a full
// teardown and rebuild. Frame operations (PrepareDraw, Draw, Resize,
// Stats) may be called from any goroutine; GPU work is totally
// ordered by the worker thread. Lifecycle operations (Configure,
// SetCaptureBuffer, SetScene, GLWrapFramebuffer, Destroy) must not
// run concurrently with any other operation.
type Context struct {
	mu      sync.Mutex
	condCtl *sync.Cond
	condWkr *sync.Cond
	cmd     *command
	stopped chan struct{}

	// configured is written by lifecycle operations and read by every
	// frame operation, possibly from another goroutine.
	configured atomic.Bool

	// Fields below are owned by the worker thread.
	config Config
	gpu    driver.GpuContext
	scene  Scene

	statsEnabled bool
	stats        FrameStats

	availableRTs [2]driver.RenderTarget
	currentRT    driver.RenderTarget
	passStarted  bool

	modelviewStack  []mgl32.Mat4
	projectionStack []mgl32.Mat4
}

// New creates an unconfigured Context and starts its worker thread.
func New() *Context {
	c := &Context{
		stopped:         make(chan struct{}),
		modelviewStack:  []mgl32.Mat4{mgl32.Ident4()},
		projectionStack: []mgl32.Mat4{mgl32.Ident4()},
	}
	c.condCtl = sync.NewCond(&c.mu)
	c.condWkr = sync.NewCond(&c.mu)
	go c.worker()
	slog.Info("context created", "version", Version)
	return c
}

// dispatch hands fn to the worker thread and blocks until it has run,
// returning its result. Concurrent dispatchers queue behind the
// mailbox: at most one command is in flight.
func (c *Context) dispatch(fn func() error) error {
	return c.dispatchCmd(&command{fn: fn})
}

func (c *Context) dispatchCmd(cmd *command) error {
	c.mu.Lock()
	for c.cmd != nil {
		c.condCtl.Wait()
	}
	c.cmd = cmd
	c.condWkr.Signal()
	for !cmd.done {
		c.condCtl.Wait()
	}
	c.mu.Unlock()
	return cmd.err
}

func (c *Context) worker() {
	// The native context is made current on this thread for the
	// Context's whole life.
	runtime.LockOSThread()
	defer close(c.stopped)

	c.mu.Lock()
	defer c.mu.Unlock()
	for {
		for c.cmd == nil {
			c.condWkr.Wait()
		}
		cmd := c.cmd
		if cmd.fn != nil {
			cmd.err = cmd.fn()
		}
		cmd.done = true
		c.cmd = nil
		c.condCtl.Broadcast()

		if cmd.stop {
			return
		}
	}
}

// Configure applies config to the Context, tearing down any previous
// configuration first. On failure the Context is left unconfigured
// with all partial GPU state released; the scene reference survives
// reconfiguration.
func (c *Context) Configure(config *Config) error {
	if c.configured.Load() {
		c.dispatch(func() error {
			c.reset(true)
			return nil
		})
		c.configured.Store(false)
	}

	if config == nil {
		slog.Error("context configuration cannot be nil")
		return fmt.Errorf("missing configuration: %w", ErrInvalidArgument)
	}

	if config.Backend == BackendAuto && config.BackendConfig != nil {
		slog.Error("backend specific configuration is not allowed while automatic backend selection is used")
		return fmt.Errorf("backend configuration with automatic backend selection: %w", ErrInvalidUsage)
	}

	cfg := *config
	if cfg.Platform == PlatformAuto {
		platform, err := defaultPlatform()
		if err != nil {
			slog.Error("can not determine which platform to use")
			return err
		}
		cfg.Platform = platform
	}
	if cfg.Backend == BackendAuto {
		cfg.Backend = defaultBackend(cfg.Platform)
	}
	if cfg.Backend < BackendAuto || int(cfg.Backend) > driver.NumBackends {
		slog.Error("unknown backend", "backend", int(cfg.Backend))
		return fmt.Errorf("unknown backend %d: %w", int(cfg.Backend), ErrInvalidArgument)
	}

	if err := c.dispatch(func() error {
		return c.configure(&cfg)
	}); err != nil {
		return err
	}
	c.configured.Store(true)
	return nil
}

// configure runs on the worker thread.
func (c *Context) configure(cfg *Config) error {
	c.config = *cfg

	gpu, err := driver.New(cfg)
	if err != nil {
		slog.Error("could not create gpu context", "backend", cfg.Backend.StringID(), "err", err)
		c.config = Config{}
		return err
	}
	c.gpu = gpu

	if err := gpu.Init(); err != nil {
		slog.Error("could not initialize gpu context", "backend", gpu.Name(), "err", err)
		gpu.Destroy()
		c.gpu = nil
		c.config = Config{}
		return err
	}

	matrix := mgl32.Ident4()
	gpu.TransformProjectionMatrix(&matrix)
	c.projectionStack = c.projectionStack[:0]
	c.projectionStack = append(c.projectionStack, matrix)

	// The previous scene survived the teardown detached; reattach it
	// to the new backend.
	oldScene := c.scene
	c.scene = nil
	if err := c.setScene(oldScene); err != nil {
		c.scene = oldScene
		c.reset(true)
		return err
	}
	return nil
}

// reset runs on the worker thread. With keepScene the scene is
// detached but retained for the next configure; otherwise it is
// dropped.
func (c *Context) reset(keepScene bool) {
	if c.gpu != nil {
		c.gpu.WaitIdle()
	}
	scene := c.scene
	c.detachScene()
	if keepScene {
		c.scene = scene
	}
	if c.gpu != nil {
		c.gpu.Destroy()
		c.gpu = nil
	}
	c.config = Config{}
}

func (c *Context) detachScene() {
	c.statsEnabled = false
	c.stats = FrameStats{}
	if c.scene != nil {
		c.scene.Detach(c)
		c.scene = nil
	}
}

// Resize updates the rendering dimensions of an onscreen or external
// context. The new dimensions are a hint: the window system has the
// final word. viewport may be nil to derive the viewport from the
// effective dimensions.
func (c *Context) Resize(width, height int, viewport []int32) error {
	if !c.configured.Load() {
		slog.Error("context must be configured before resizing rendering buffers")
		return fmt.Errorf("resize on unconfigured context: %w", ErrInvalidUsage)
	}
	return c.dispatch(func() error {
		return c.gpu.Resize(width, height, viewport)
	})
}

// SetCaptureBuffer attaches buf as the frame capture destination of
// an offscreen context. A nil buf detaches. On failure the Context
// falls back to unconfigured.
func (c *Context) SetCaptureBuffer(buf []byte) error {
	if !c.configured.Load() {
		slog.Error("context must be configured before setting a capture buffer")
		return fmt.Errorf("capture buffer on unconfigured context: %w", ErrInvalidUsage)
	}
	err := c.dispatch(func() error {
		if err := c.gpu.SetCaptureBuffer(buf); err != nil {
			c.reset(true)
			return err
		}
		c.config.CaptureBuffer = buf
		return nil
	})
	if err != nil {
		c.configured.Store(false)
	}
	return err
}

// SetScene replaces the current scene. The previous scene is detached
// first, synchronized with WaitIdle so no in-flight GPU work
// references nodes being torn down. A nil scene detaches only.
func (c *Context) SetScene(scene Scene) error {
	if !c.configured.Load() {
		slog.Error("context must be configured before setting a scene")
		return fmt.Errorf("set scene on unconfigured context: %w", ErrInvalidUsage)
	}
	return c.dispatch(func() error {
		return c.setScene(scene)
	})
}

// setScene runs on the worker thread.
func (c *Context) setScene(scene Scene) error {
	c.gpu.WaitIdle()
	c.detachScene()

	if scene != nil {
		if err := scene.Attach(c); err != nil {
			scene.Detach(c)
			return err
		}
		c.scene = scene
	}

	if c.config.HUD {
		c.statsEnabled = true
	}
	return nil
}

// PrepareDraw runs the update half of a frame (time advance, resource
// prefetch) without rendering. Draw calls it implicitly; exposing it
// separately lets callers front-load expensive updates.
func (c *Context) PrepareDraw(t float64) error {
	if !c.configured.Load() {
		slog.Error("context must be configured before updating")
		return fmt.Errorf("prepare on unconfigured context: %w", ErrInvalidUsage)
	}
	return c.dispatch(func() error {
		return c.prepareDraw(t)
	})
}

func (c *Context) prepareDraw(t float64) error {
	var start time.Time
	if c.statsEnabled {
		start = time.Now()
	}

	if err := c.gpu.BeginUpdate(t); err != nil {
		return err
	}
	if c.scene == nil {
		return c.gpu.EndUpdate(t)
	}

	if err := c.scene.Update(t); err != nil {
		return err
	}
	if err := c.gpu.EndUpdate(t); err != nil {
		return err
	}

	if c.statsEnabled {
		c.stats.CPUUpdateTime = time.Since(start)
	}
	return nil
}

// Draw renders one frame at time t: prepare pass, then render pass,
// then capture and present per the configuration.
func (c *Context) Draw(t float64) error {
	if !c.configured.Load() {
		slog.Error("context must be configured before drawing")
		return fmt.Errorf("draw on unconfigured context: %w", ErrInvalidUsage)
	}
	return c.dispatch(func() error {
		return c.draw(t)
	})
}

// draw runs on the worker thread.
func (c *Context) draw(t float64) error {
	if err := c.prepareDraw(t); err != nil {
		return err
	}
	if err := c.gpu.BeginDraw(t); err != nil {
		return err
	}

	var cpuStart time.Time
	if c.statsEnabled {
		cpuStart = time.Now()
	}

	// Scenes may suspend and resume the default render pass, so two
	// targets are kept available: the clearing one for the first pass
	// and the preserving one for any resumption.
	c.availableRTs[0] = c.gpu.DefaultRenderTarget(driver.LoadOpClear)
	c.availableRTs[1] = c.gpu.DefaultRenderTarget(driver.LoadOpLoad)
	c.currentRT = c.availableRTs[0]
	c.passStarted = false

	if c.scene != nil {
		c.scene.Draw(c)
	}

	if !c.passStarted {
		c.gpu.BeginRenderPass(c.currentRT)
		c.passStarted = true
	}

	if c.statsEnabled {
		c.stats.CPUDrawTime = time.Since(cpuStart)

		if c.passStarted {
			c.gpu.EndRenderPass()
			c.currentRT = c.availableRTs[1]
			c.passStarted = false
		}
		if gpuTime, err := c.gpu.QueryDrawTime(); err == nil {
			c.stats.GPUDrawTime = gpuTime
		}
		c.stats.Frames++
	}

	if c.passStarted {
		c.gpu.EndRenderPass()
		c.passStarted = false
	}

	return c.gpu.EndDraw(t)
}

// GLWrapFramebuffer adopts framebuffer as the new default render
// target of an externally driven OpenGL context. A backend without
// framebuffer wrapping rejects the call and the session stays
// configured; a failed wrap on a supporting backend falls back to
// unconfigured.
func (c *Context) GLWrapFramebuffer(framebuffer uint32) error {
	if !c.configured.Load() {
		slog.Error("context must be configured before wrapping a new external OpenGL framebuffer")
		return fmt.Errorf("wrap framebuffer on unconfigured context: %w", ErrInvalidUsage)
	}
	demote := false
	err := c.dispatch(func() error {
		wrapper, ok := c.gpu.(driver.FramebufferWrapper)
		if !ok {
			slog.Error("wrapping external OpenGL framebuffer is not supported by context", "backend", c.gpu.Name())
			return fmt.Errorf("framebuffer wrapping on backend %s: %w", c.gpu.Name(), ErrUnsupported)
		}
		if err := wrapper.WrapFramebuffer(framebuffer); err != nil {
			c.reset(true)
			demote = true
			return err
		}
		return nil
	})
	if demote {
		c.configured.Store(false)
	}
	return err
}

// Destroy tears the Context down: scene detach, GPU resource release,
// worker thread join. The Context must not be used afterwards.
func (c *Context) Destroy() {
	if c.configured.Load() {
		c.dispatch(func() error {
			c.reset(false)
			return nil
		})
		c.configured.Store(false)
	}
	c.dispatchCmd(&command{stop: true})
	<-c.stopped
}
