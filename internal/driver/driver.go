// SPDX-License-Identifier: Unlicense OR MIT

// Package driver defines the contract every rendering backend must
// satisfy to drive the engine: context lifecycle, default render
// target provisioning, per-frame bracketing, and the capability
// surface the public API exposes.
package driver

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-gl/mathgl/mgl32"
)

// Backend identifies a native graphics API implementation.
type Backend int

const (
	BackendAuto Backend = iota
	BackendOpenGL
	BackendOpenGLES
	BackendVulkan

	NumBackends int = iota - 1
)

// Platform identifies the windowing platform a context is created on.
type Platform int

const (
	PlatformAuto Platform = iota
	PlatformXlib
	PlatformIOS
	PlatformMacOS
	PlatformAndroid
	PlatformWindows
)

// CaptureBufferType selects how a rendered frame is delivered to the
// caller-supplied capture buffer. The zero value is the CPU read-back
// path so an offscreen context always supports attaching a buffer
// after the fact.
type CaptureBufferType int

const (
	CaptureBufferTypeCPU CaptureBufferType = iota
	// CaptureBufferTypeZeroCopy renders directly into a platform
	// image shared with the caller. Only available where the native
	// context supports it.
	CaptureBufferTypeZeroCopy
)

// LoadOp describes what happens to an attachment's contents when a
// render pass begins.
type LoadOp int

const (
	LoadOpDontCare LoadOp = iota
	LoadOpClear
	LoadOpLoad
)

// StoreOp describes whether an attachment's contents must survive the
// end of a render pass.
type StoreOp int

const (
	StoreOpDontCare StoreOp = iota
	StoreOpStore
)

// CullMode selects which triangle faces are discarded.
type CullMode int

const (
	CullModeNone CullMode = iota
	CullModeFront
	CullModeBack
)

// PixelFormat is the engine-level format of an attachment image. The
// backend translates it to native attachment semantics (color, depth,
// stencil or combined depth-stencil).
type PixelFormat int

const (
	FormatUndefined PixelFormat = iota
	FormatR8G8B8A8Unorm
	FormatB8G8R8A8Unorm
	FormatD16Unorm
	FormatD24UnormS8Uint
	FormatD32Sfloat
	FormatS8Uint
)

// MaxColorAttachments bounds the number of color attachments a render
// target may carry, across all backends.
const MaxColorAttachments = 8

// Features is the engine-level capability bit set, translated from the
// native driver feature bits by each backend.
type Features uint64

const (
	FeatureCompute Features = 1 << iota
	FeatureInstancedDraw
	FeatureColorResolve
	FeatureShaderTextureLOD
	FeatureSoftware
	FeatureTexture3D
	FeatureTextureCube
	FeatureTextureNPOT
	FeatureUintUniforms
	FeatureUniformBuffer
	FeatureStorageBuffer
	FeatureDepthStencilResolve
	FeatureTextureFloatRenderable
	FeatureTextureHalfFloatRenderable
)

// Has reports whether all bits in feats are set.
func (f Features) Has(feats Features) bool {
	return f&feats == feats
}

// HasAny reports whether any bit in feats is set.
func (f Features) HasAny(feats Features) bool {
	return f&feats != 0
}

// Limits holds the numeric capability limits of a live context.
type Limits struct {
	MaxColorAttachments            int
	MaxComputeWorkGroupCount       [3]int
	MaxComputeWorkGroupInvocations int
	MaxComputeWorkGroupSize        [3]int
	MaxComputeSharedMemorySize     int
	MaxDrawBuffers                 int
	MaxSamples                     int
	MaxTextureDimension1D          int
	MaxTextureDimension2D          int
	MaxTextureDimension3D          int
	MaxTextureDimensionCube        int
}

// Config is the caller-supplied context configuration, snapshotted on
// configure.
type Config struct {
	Width     int
	Height    int
	Offscreen bool
	Backend   Backend
	Platform  Platform
	Samples   int

	CaptureBuffer     []byte
	CaptureBufferType CaptureBufferType

	ClearColor [4]float32
	Viewport   [4]int32

	SwapInterval  int
	SetSurfacePTS bool

	// HUD enables per-frame diagnostics accounting (CPU and GPU
	// draw times).
	HUD bool

	// BackendConfig carries backend-specific sub-configuration. It is
	// opaque to the dispatcher and rejected when Backend is
	// BackendAuto.
	BackendConfig any
}

// ConfigGL is the OpenGL-specific sub-configuration.
type ConfigGL struct {
	// External marks the native context as created and owned by the
	// caller; the backend renders into ExternalFramebuffer without
	// creating a window or swapchain.
	External            bool
	ExternalFramebuffer uint32
}

// GL returns the GL sub-configuration, or nil.
func (c *Config) GL() *ConfigGL {
	gl, _ := c.BackendConfig.(*ConfigGL)
	return gl
}

// Texture is an attachment image owned by the backend that created
// it. Its representation is backend-private.
type Texture interface {
	Release()
}

// Attachment describes one render-target attachment.
type Attachment struct {
	Attachment    Texture
	Layer         int
	ResolveTarget Texture
	ResolveLayer  int
	LoadOp        LoadOp
	ClearValue    [4]float32
	StoreOp       StoreOp
}

// RenderTargetParams describes a render target to create or wrap.
type RenderTargetParams struct {
	Width        int
	Height       int
	Colors       []Attachment
	DepthStencil Attachment
}

// RenderTarget is a drawable destination. It may be backend-owned,
// externally wrapped, or the platform default framebuffer; the
// distinction is hidden behind this interface.
type RenderTarget interface {
	Width() int
	Height() int
	Release()
}

// AttachmentLayout describes the format of one default render target
// attachment, independent of the attachment images themselves.
type AttachmentLayout struct {
	Format  PixelFormat
	Resolve bool
}

// RenderTargetLayout describes the default render target's shape so
// compatible pipelines can be built against it.
type RenderTargetLayout struct {
	Samples      int
	Colors       []AttachmentLayout
	DepthStencil AttachmentLayout
}

// GpuContext is the backend-agnostic graphics context contract. All
// methods must be called from the thread owning the native context;
// the public dispatcher guarantees this by pinning every call to its
// worker thread.
type GpuContext interface {
	// Name returns the human-readable backend name. It is valid
	// before Init.
	Name() string

	Init() error
	Resize(width, height int, viewport []int32) error
	SetCaptureBuffer(buf []byte) error

	BeginUpdate(t float64) error
	EndUpdate(t float64) error
	BeginDraw(t float64) error
	EndDraw(t float64) error

	// QueryDrawTime returns the GPU time spent on the frame bracketed
	// by the last BeginDraw/EndDraw pair. Only valid when diagnostics
	// are enabled in the configuration.
	QueryDrawTime() (time.Duration, error)

	// WaitIdle blocks until all submitted GPU work has completed.
	WaitIdle()

	Destroy()

	// TransformCullMode reconciles the face culling winding order
	// with the target's coordinate system convention.
	TransformCullMode(mode CullMode) CullMode
	// TransformProjectionMatrix applies the target's vertical axis
	// convention to a projection matrix.
	TransformProjectionMatrix(m *mgl32.Mat4)
	// RenderTargetUVCoordMatrix returns the matrix mapping UV
	// coordinates when sampling the rendered image back as a texture.
	RenderTargetUVCoordMatrix() mgl32.Mat4

	DefaultRenderTarget(op LoadOp) RenderTarget
	DefaultRenderTargetLayout() RenderTargetLayout

	BeginRenderPass(rt RenderTarget)
	EndRenderPass()

	SetViewport(viewport [4]int32)
	Viewport() [4]int32
	SetScissor(scissor [4]int32)
	Scissor() [4]int32

	Features() Features
	Limits() Limits

	// Version reports the native API version as major*100+minor*10
	// and the shading language version.
	Version() (api, language int)
}

// FramebufferWrapper is implemented by backends that can adopt an
// externally owned native framebuffer as the default render target.
type FramebufferWrapper interface {
	WrapFramebuffer(id uint32) error
}

// Backend factories, set by the backend packages' init functions.
// A nil factory means the backend is not part of the build.
var (
	NewGLContext     func(cfg *Config) (GpuContext, error)
	NewVulkanContext func(cfg *Config) (GpuContext, error)
)

// New creates the backend implementation selected by cfg.Backend. The
// context is not initialized; Name is the only method valid before
// Init.
func New(cfg *Config) (GpuContext, error) {
	switch cfg.Backend {
	case BackendOpenGL, BackendOpenGLES:
		if NewGLContext != nil {
			return NewGLContext(cfg)
		}
	case BackendVulkan:
		if NewVulkanContext != nil {
			return NewVulkanContext(cfg)
		}
	}
	return nil, fmt.Errorf("no driver available for backend %q: %w", cfg.Backend.StringID(), ErrUnsupported)
}

// StringID returns the stable string identifier of a backend.
func (b Backend) StringID() string {
	switch b {
	case BackendAuto:
		return "auto"
	case BackendOpenGL:
		return "opengl"
	case BackendOpenGLES:
		return "opengles"
	case BackendVulkan:
		return "vulkan"
	}
	return "unknown"
}

// Error taxonomy shared by the dispatcher and the backends. Fallible
// operations wrap exactly one of these sentinels.
var (
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrInvalidUsage        = errors.New("invalid usage")
	ErrUnsupported         = errors.New("unsupported")
	ErrGraphicsUnsupported = errors.New("graphics capability unsupported")
	ErrOutOfMemory         = errors.New("out of memory")
	ErrExternal            = errors.New("external error")
)
