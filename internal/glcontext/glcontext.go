// SPDX-License-Identifier: Unlicense OR MIT

// Package glcontext manages native OpenGL context lifecycle: creation
// of onscreen and hidden offscreen windows through GLFW, adoption of
// externally current contexts, and probing of the driver's version,
// extensions, feature bits and limits.
package glcontext

import (
	"fmt"
	"strings"
	"sync"

	"github.com/go-gl/gl/v4.6-core/gl"
	"github.com/go-gl/glfw/v3.3/glfw"

	"github.com/gonodegl/ngl/internal/driver"
)

// Features is the raw GL driver feature bit set, derived from the API
// version and the extension list.
type Features uint64

const (
	FeatureFramebufferObject Features = 1 << iota
	FeatureInvalidateSubdata
	FeatureClearBuffer
	FeatureDrawBuffers
	FeatureDrawInstanced
	FeatureInstancedArray
	FeatureTimerQuery
	FeatureEXTDisjointTimerQuery
	FeatureComputeShader
	FeatureShaderStorageBufferObject
	FeatureUniformBufferObject
	FeatureTexture3D
	FeatureTextureCubeMap
	FeatureTextureNPOT
	FeatureUintUniforms
	FeatureShaderTextureLOD
	FeatureColorBufferFloat
	FeatureColorBufferHalfFloat
	FeatureSoftware
	FeatureKHRDebug
)

// FeatureComputeShaderAll gathers everything compute dispatch needs.
const FeatureComputeShaderAll = FeatureComputeShader | FeatureShaderStorageBufferObject

// Has reports whether all bits in feats are set.
func (f Features) Has(feats Features) bool {
	return f&feats == feats
}

// HasAny reports whether at least one bit in feats is set.
func (f Features) HasAny(feats Features) bool {
	return f&feats != 0
}

// Params configures native context creation.
type Params struct {
	Platform     driver.Platform
	Backend      driver.Backend
	External     bool
	Offscreen    bool
	Width        int
	Height       int
	Samples      int
	SwapInterval int
}

// Context is a live native OpenGL context.
type Context struct {
	backend   driver.Backend
	external  bool
	offscreen bool

	window *glfw.Window

	// Version is the API version encoded as major*100+minor*10.
	Version     int
	GLSLVersion int
	ES          bool
	Features    Features
	Limits      driver.Limits
	Width       int
	Height      int
	Samples     int
}

var glfwOnce sync.Once

func initGLFW() error {
	var err error
	glfwOnce.Do(func() {
		err = glfw.Init()
	})
	return err
}

// New creates a native context per params and makes it current on the
// calling thread. In external mode no window is created: the caller's
// context must already be current.
func New(params *Params) (*Context, error) {
	c := &Context{
		backend:   params.Backend,
		external:  params.External,
		offscreen: params.Offscreen,
		Width:     params.Width,
		Height:    params.Height,
	}

	if !params.External {
		if err := initGLFW(); err != nil {
			return nil, fmt.Errorf("could not initialize window system: %w", err)
		}
		glfw.DefaultWindowHints()
		if params.Backend == driver.BackendOpenGLES {
			glfw.WindowHint(glfw.ClientAPI, glfw.OpenGLESAPI)
			glfw.WindowHint(glfw.ContextVersionMajor, 3)
			glfw.WindowHint(glfw.ContextVersionMinor, 0)
		} else {
			glfw.WindowHint(glfw.ContextVersionMajor, 3)
			glfw.WindowHint(glfw.ContextVersionMinor, 3)
			glfw.WindowHint(glfw.OpenGLProfile, glfw.OpenGLCoreProfile)
			glfw.WindowHint(glfw.OpenGLForwardCompatible, glfw.True)
		}
		if params.Offscreen {
			glfw.WindowHint(glfw.Visible, glfw.False)
		} else if params.Samples > 0 {
			glfw.WindowHint(glfw.Samples, params.Samples)
		}
		width, height := params.Width, params.Height
		if width <= 0 || height <= 0 {
			// Onscreen contexts may defer their dimensions to the
			// window system.
			width, height = 640, 480
		}
		win, err := glfw.CreateWindow(width, height, "ngl", nil, nil)
		if err != nil {
			return nil, fmt.Errorf("could not create window: %w", err)
		}
		c.window = win
		win.MakeContextCurrent()
		if !params.Offscreen {
			glfw.SwapInterval(params.SwapInterval)
			fbw, fbh := win.GetFramebufferSize()
			c.Width, c.Height = fbw, fbh
		}
	}

	if err := gl.Init(); err != nil {
		c.Free()
		return nil, fmt.Errorf("could not load OpenGL functions: %w", err)
	}

	if err := c.probe(); err != nil {
		c.Free()
		return nil, err
	}

	return c, nil
}

func (c *Context) probe() error {
	version := gl.GoStr(gl.GetString(gl.VERSION))
	ver, es, err := ParseVersion(version)
	if err != nil {
		return err
	}
	c.Version = ver[0]*100 + ver[1]*10
	c.ES = es
	if c.backend == driver.BackendOpenGLES && !es {
		// A desktop context can still serve the ES backend id
		// through ARB_ES compatibility; treat it as ES semantics.
		c.ES = true
	}

	renderer := gl.GoStr(gl.GetString(gl.RENDERER))
	exts := extensions(c.Version)
	c.Features = probeFeatures(c.Version, c.ES, exts, renderer)
	c.GLSLVersion = glslVersion(c.Version, c.ES)
	c.probeLimits()

	if !c.external && !c.offscreen {
		var samples int32
		gl.GetIntegerv(gl.SAMPLES, &samples)
		c.Samples = int(samples)
	}
	return nil
}

// ParseVersion extracts the major/minor API version from a GL_VERSION
// string and reports whether the context is OpenGL ES.
func ParseVersion(version string) ([2]int, bool, error) {
	const esPrefix = "OpenGL ES"
	es := false
	if strings.HasPrefix(version, esPrefix) {
		es = true
		version = strings.TrimSpace(version[len(esPrefix):])
		// Some drivers report "OpenGL ES-CM 1.1".
		version = strings.TrimPrefix(version, "-CM ")
	}
	var major, minor int
	if _, err := fmt.Sscanf(version, "%d.%d", &major, &minor); err != nil {
		return [2]int{}, false, fmt.Errorf("could not parse OpenGL version %q: %w", version, driver.ErrExternal)
	}
	return [2]int{major, minor}, es, nil
}

func extensions(version int) map[string]bool {
	exts := make(map[string]bool)
	if version >= 300 {
		var n int32
		gl.GetIntegerv(gl.NUM_EXTENSIONS, &n)
		for i := int32(0); i < n; i++ {
			exts[gl.GoStr(gl.GetStringi(gl.EXTENSIONS, uint32(i)))] = true
		}
		return exts
	}
	for _, ext := range strings.Fields(gl.GoStr(gl.GetString(gl.EXTENSIONS))) {
		exts[ext] = true
	}
	return exts
}

func probeFeatures(version int, es bool, exts map[string]bool, renderer string) Features {
	var features Features

	have := func(v, vES int, names ...string) bool {
		if es {
			if vES > 0 && version >= vES {
				return true
			}
		} else if v > 0 && version >= v {
			return true
		}
		for _, name := range names {
			if exts[name] {
				return true
			}
		}
		return false
	}

	if have(300, 300, "GL_ARB_framebuffer_object", "GL_OES_framebuffer_object") {
		features |= FeatureFramebufferObject
	}
	if have(430, 300, "GL_ARB_invalidate_subdata") {
		features |= FeatureInvalidateSubdata
	}
	if have(300, 300) {
		features |= FeatureClearBuffer | FeatureUintUniforms | FeatureTextureNPOT
	}
	if have(200, 300, "GL_ARB_draw_buffers") {
		features |= FeatureDrawBuffers
	}
	if have(310, 300, "GL_ARB_draw_instanced") {
		features |= FeatureDrawInstanced
	}
	if have(330, 300, "GL_ARB_instanced_arrays") {
		features |= FeatureInstancedArray
	}
	if have(330, 0, "GL_ARB_timer_query") {
		features |= FeatureTimerQuery
	}
	if exts["GL_EXT_disjoint_timer_query"] {
		features |= FeatureEXTDisjointTimerQuery
	}
	if have(430, 310, "GL_ARB_compute_shader") {
		features |= FeatureComputeShader
	}
	if have(430, 310, "GL_ARB_shader_storage_buffer_object") {
		features |= FeatureShaderStorageBufferObject
	}
	if have(310, 300, "GL_ARB_uniform_buffer_object") {
		features |= FeatureUniformBufferObject
	}
	if have(200, 300, "GL_OES_texture_3D") {
		features |= FeatureTexture3D
	}
	if have(130, 200) {
		features |= FeatureTextureCubeMap
	}
	if have(200, 300, "GL_OES_texture_npot") {
		features |= FeatureTextureNPOT
	}
	if have(300, 300, "GL_ARB_shader_texture_lod", "GL_EXT_shader_texture_lod") {
		features |= FeatureShaderTextureLOD
	}
	if have(300, 0, "GL_EXT_color_buffer_float") {
		features |= FeatureColorBufferFloat
	}
	if have(300, 0, "GL_EXT_color_buffer_half_float") {
		features |= FeatureColorBufferHalfFloat
	}
	if exts["GL_KHR_debug"] {
		features |= FeatureKHRDebug
	}

	lowered := strings.ToLower(renderer)
	for _, soft := range []string{"llvmpipe", "softpipe", "swiftshader", "software"} {
		if strings.Contains(lowered, soft) {
			features |= FeatureSoftware
			break
		}
	}
	return features
}

func glslVersion(version int, es bool) int {
	if es {
		if version >= 300 {
			return version
		}
		return 100
	}
	switch {
	case version >= 330:
		return version
	case version >= 320:
		return 150
	case version >= 310:
		return 140
	case version >= 300:
		return 130
	case version >= 210:
		return 120
	default:
		return 110
	}
}

func (c *Context) probeLimits() {
	geti := func(pname uint32) int {
		var v int32
		gl.GetIntegerv(pname, &v)
		return int(v)
	}
	l := &c.Limits
	// 1D and 2D textures share the same native dimension limit.
	l.MaxTextureDimension2D = geti(gl.MAX_TEXTURE_SIZE)
	l.MaxTextureDimension1D = l.MaxTextureDimension2D
	l.MaxTextureDimensionCube = geti(gl.MAX_CUBE_MAP_TEXTURE_SIZE)
	if c.Features.Has(FeatureTexture3D) {
		l.MaxTextureDimension3D = geti(gl.MAX_3D_TEXTURE_SIZE)
	}
	if c.Features.Has(FeatureFramebufferObject) {
		l.MaxColorAttachments = geti(gl.MAX_COLOR_ATTACHMENTS)
		l.MaxSamples = geti(gl.MAX_SAMPLES)
	} else {
		l.MaxColorAttachments = 1
	}
	if c.Features.Has(FeatureDrawBuffers) {
		l.MaxDrawBuffers = geti(gl.MAX_DRAW_BUFFERS)
	} else {
		l.MaxDrawBuffers = 1
	}
	if c.Features.Has(FeatureComputeShaderAll) {
		getIdx := func(pname uint32, idx uint32) int {
			var v int32
			gl.GetIntegeri_v(pname, idx, &v)
			return int(v)
		}
		for i := 0; i < 3; i++ {
			l.MaxComputeWorkGroupCount[i] = getIdx(gl.MAX_COMPUTE_WORK_GROUP_COUNT, uint32(i))
			l.MaxComputeWorkGroupSize[i] = getIdx(gl.MAX_COMPUTE_WORK_GROUP_SIZE, uint32(i))
		}
		l.MaxComputeWorkGroupInvocations = geti(gl.MAX_COMPUTE_WORK_GROUP_INVOCATIONS)
		l.MaxComputeSharedMemorySize = geti(gl.MAX_COMPUTE_SHARED_MEMORY_SIZE)
	}
}

// MakeCurrent binds (or unbinds) the native context on the calling
// thread. External contexts are controlled by the caller and left
// untouched.
func (c *Context) MakeCurrent(current bool) {
	if c.external || c.window == nil {
		return
	}
	if current {
		c.window.MakeContextCurrent()
	} else {
		glfw.DetachCurrentContext()
	}
}

// Resize requests new swapchain dimensions and reads back the
// authoritative result: the request is a hint, not a guarantee.
func (c *Context) Resize(width, height int) error {
	if c.window == nil {
		return fmt.Errorf("no native window to resize: %w", driver.ErrInvalidUsage)
	}
	c.window.SetSize(width, height)
	fbw, fbh := c.window.GetFramebufferSize()
	c.Width, c.Height = fbw, fbh
	return nil
}

// SwapBuffers presents the back buffer.
func (c *Context) SwapBuffers() {
	if c.window != nil {
		c.window.SwapBuffers()
	}
}

// SetSurfacePTS stamps a presentation timestamp on the next swap.
// The window system in use has no surface timestamp extension, so
// this is a recorded no-op kept for API parity with platforms that
// do.
func (c *Context) SetSurfacePTS(t float64) {
}

// DefaultFramebuffer returns the native id of the default draw
// framebuffer. It may change after a resize on some platforms, so
// callers cache it per frame at most.
func (c *Context) DefaultFramebuffer() uint32 {
	return 0
}

// CheckError returns the deferred native error state, if any.
func (c *Context) CheckError(op string) error {
	if code := gl.GetError(); code != gl.NO_ERROR {
		return fmt.Errorf("%s: OpenGL error %#x: %w", op, code, driver.ErrExternal)
	}
	return nil
}

// Free destroys the native context. Externally owned contexts are
// left untouched.
func (c *Context) Free() {
	if c.window != nil {
		c.window.Destroy()
		c.window = nil
	}
}
