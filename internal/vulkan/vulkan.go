// SPDX-License-Identifier: Unlicense OR MIT

// Package vulkan implements capability probing on Vulkan. Frame
// rendering is not wired up yet; the backend exists so callers can
// enumerate Vulkan devices, features and limits through the common
// contract.
package vulkan

import (
	"fmt"
	"time"

	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/go-gl/mathgl/mgl32"
	vk "github.com/vulkan-go/vulkan"

	"github.com/gonodegl/ngl/internal/driver"
)

func init() {
	driver.NewVulkanContext = newContext
}

type Context struct {
	cfg      driver.Config
	instance vk.Instance

	deviceName string
	apiVersion int
	features   driver.Features
	limits     driver.Limits
	viewport   [4]int32
	scissor    [4]int32
}

func newContext(cfg *driver.Config) (driver.GpuContext, error) {
	return &Context{cfg: *cfg}, nil
}

func (c *Context) Name() string { return "Vulkan" }

func (c *Context) Init() error {
	if err := glfw.Init(); err != nil {
		return fmt.Errorf("could not initialize window system: %w", err)
	}
	if !glfw.VulkanSupported() {
		return fmt.Errorf("no Vulkan loader found: %w", driver.ErrGraphicsUnsupported)
	}
	vk.SetGetInstanceProcAddr(glfw.GetVulkanGetInstanceProcAddress())
	if err := vk.Init(); err != nil {
		return fmt.Errorf("could not load Vulkan functions: %w", err)
	}

	appInfo := vk.ApplicationInfo{
		SType:         vk.StructureTypeApplicationInfo,
		PEngineName:   "ngl\x00",
		EngineVersion: vk.MakeVersion(0, 1, 0),
		ApiVersion:    vk.ApiVersion11,
	}
	ret := vk.CreateInstance(&vk.InstanceCreateInfo{
		SType:            vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: &appInfo,
	}, nil, &c.instance)
	if ret != vk.Success {
		return fmt.Errorf("could not create Vulkan instance (result %d): %w", ret, driver.ErrGraphicsUnsupported)
	}
	if err := vk.InitInstance(c.instance); err != nil {
		c.Destroy()
		return fmt.Errorf("could not load instance functions: %w", err)
	}

	var count uint32
	vk.EnumeratePhysicalDevices(c.instance, &count, nil)
	if count == 0 {
		c.Destroy()
		return fmt.Errorf("no Vulkan device found: %w", driver.ErrGraphicsUnsupported)
	}
	devices := make([]vk.PhysicalDevice, count)
	vk.EnumeratePhysicalDevices(c.instance, &count, devices)
	c.probeDevice(devices[0])

	c.viewport = [4]int32{0, 0, int32(c.cfg.Width), int32(c.cfg.Height)}
	c.scissor = c.viewport
	return nil
}

func (c *Context) probeDevice(dev vk.PhysicalDevice) {
	var props vk.PhysicalDeviceProperties
	vk.GetPhysicalDeviceProperties(dev, &props)
	props.Deref()
	props.Limits.Deref()

	c.deviceName = vk.ToString(props.DeviceName[:])
	version := vk.Version(props.ApiVersion)
	c.apiVersion = int(version.Major())*100 + int(version.Minor())*10

	var feats vk.PhysicalDeviceFeatures
	vk.GetPhysicalDeviceFeatures(dev, &feats)
	feats.Deref()

	// Core Vulkan guarantees of any conformant device.
	c.features = driver.FeatureCompute |
		driver.FeatureInstancedDraw |
		driver.FeatureColorResolve |
		driver.FeatureDepthStencilResolve |
		driver.FeatureShaderTextureLOD |
		driver.FeatureTexture3D |
		driver.FeatureTextureCube |
		driver.FeatureTextureNPOT |
		driver.FeatureUintUniforms |
		driver.FeatureUniformBuffer |
		driver.FeatureStorageBuffer
	if props.DeviceType == vk.PhysicalDeviceTypeCpu {
		c.features |= driver.FeatureSoftware
	}

	l := props.Limits
	c.limits = driver.Limits{
		MaxColorAttachments: int(l.MaxColorAttachments),
		MaxComputeWorkGroupCount: [3]int{
			int(l.MaxComputeWorkGroupCount[0]),
			int(l.MaxComputeWorkGroupCount[1]),
			int(l.MaxComputeWorkGroupCount[2]),
		},
		MaxComputeWorkGroupInvocations: int(l.MaxComputeWorkGroupInvocations),
		MaxComputeWorkGroupSize: [3]int{
			int(l.MaxComputeWorkGroupSize[0]),
			int(l.MaxComputeWorkGroupSize[1]),
			int(l.MaxComputeWorkGroupSize[2]),
		},
		MaxComputeSharedMemorySize: int(l.MaxComputeSharedMemorySize),
		MaxDrawBuffers:             int(l.MaxColorAttachments),
		MaxSamples:                 sampleCount(l.FramebufferColorSampleCounts),
		MaxTextureDimension1D:      int(l.MaxImageDimension1D),
		MaxTextureDimension2D:      int(l.MaxImageDimension2D),
		MaxTextureDimension3D:      int(l.MaxImageDimension3D),
		MaxTextureDimensionCube:    int(l.MaxImageDimensionCube),
	}
}

func sampleCount(mask vk.SampleCountFlags) int {
	max := 1
	for bit := 1; bit <= 64; bit <<= 1 {
		if mask&vk.SampleCountFlags(bit) != 0 {
			max = bit
		}
	}
	return max
}

func (c *Context) errNotWired(op string) error {
	return fmt.Errorf("%s is not available on the Vulkan backend yet: %w", op, driver.ErrGraphicsUnsupported)
}

func (c *Context) Resize(width, height int, viewport []int32) error {
	return c.errNotWired("resize")
}

func (c *Context) SetCaptureBuffer(buf []byte) error {
	return c.errNotWired("capture")
}

func (c *Context) BeginUpdate(t float64) error { return nil }
func (c *Context) EndUpdate(t float64) error   { return nil }

func (c *Context) BeginDraw(t float64) error { return c.errNotWired("draw") }
func (c *Context) EndDraw(t float64) error   { return c.errNotWired("draw") }

func (c *Context) QueryDrawTime() (time.Duration, error) {
	return 0, c.errNotWired("draw timing")
}

func (c *Context) WaitIdle() {}

func (c *Context) Destroy() {
	if c.instance != nil {
		vk.DestroyInstance(c.instance, nil)
		c.instance = nil
	}
}

func (c *Context) TransformCullMode(mode driver.CullMode) driver.CullMode { return mode }

func (c *Context) TransformProjectionMatrix(m *mgl32.Mat4) {}

func (c *Context) RenderTargetUVCoordMatrix() mgl32.Mat4 { return mgl32.Ident4() }

func (c *Context) DefaultRenderTarget(op driver.LoadOp) driver.RenderTarget { return nil }

func (c *Context) DefaultRenderTargetLayout() driver.RenderTargetLayout {
	return driver.RenderTargetLayout{}
}

func (c *Context) BeginRenderPass(rt driver.RenderTarget) {}
func (c *Context) EndRenderPass()                         {}

func (c *Context) SetViewport(viewport [4]int32) { c.viewport = viewport }
func (c *Context) Viewport() [4]int32            { return c.viewport }
func (c *Context) SetScissor(scissor [4]int32)   { c.scissor = scissor }
func (c *Context) Scissor() [4]int32             { return c.scissor }

func (c *Context) Features() driver.Features { return c.features }
func (c *Context) Limits() driver.Limits     { return c.limits }

func (c *Context) Version() (api, language int) {
	// SPIR-V consumers report the shading language as 0.
	return c.apiVersion, 0
}
