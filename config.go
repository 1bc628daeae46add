// SPDX-License-Identifier: Unlicense OR MIT

package ngl

import (
	"fmt"
	"runtime"

	"github.com/gonodegl/ngl/internal/driver"
)

// Public aliases for the context configuration surface. The driver
// package owns the definitions so the backends can share them.
type (
	Config            = driver.Config
	ConfigGL          = driver.ConfigGL
	Backend           = driver.Backend
	Platform          = driver.Platform
	CaptureBufferType = driver.CaptureBufferType
	Features          = driver.Features
	Limits            = driver.Limits
	LoadOp            = driver.LoadOp
	RenderTarget      = driver.RenderTarget
	GpuContext        = driver.GpuContext
)

const (
	BackendAuto     = driver.BackendAuto
	BackendOpenGL   = driver.BackendOpenGL
	BackendOpenGLES = driver.BackendOpenGLES
	BackendVulkan   = driver.BackendVulkan
)

const (
	PlatformAuto    = driver.PlatformAuto
	PlatformXlib    = driver.PlatformXlib
	PlatformIOS     = driver.PlatformIOS
	PlatformMacOS   = driver.PlatformMacOS
	PlatformAndroid = driver.PlatformAndroid
	PlatformWindows = driver.PlatformWindows
)

const (
	CaptureBufferTypeCPU      = driver.CaptureBufferTypeCPU
	CaptureBufferTypeZeroCopy = driver.CaptureBufferTypeZeroCopy
)

const (
	LoadOpDontCare = driver.LoadOpDontCare
	LoadOpClear    = driver.LoadOpClear
	LoadOpLoad     = driver.LoadOpLoad
)

// DefaultBackend is the backend resolved from BackendAuto on desktop
// platforms.
const DefaultBackend = BackendOpenGL

func defaultBackend(platform Platform) Backend {
	switch platform {
	case PlatformAndroid, PlatformIOS:
		return BackendOpenGLES
	}
	return DefaultBackend
}

func defaultPlatform() (Platform, error) {
	switch runtime.GOOS {
	case "linux", "freebsd", "openbsd", "netbsd":
		return PlatformXlib, nil
	case "darwin":
		return PlatformMacOS, nil
	case "ios":
		return PlatformIOS, nil
	case "android":
		return PlatformAndroid, nil
	case "windows":
		return PlatformWindows, nil
	}
	return PlatformAuto, fmt.Errorf("no default platform for %s: %w", runtime.GOOS, ErrUnsupported)
}
