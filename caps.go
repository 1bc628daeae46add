// SPDX-License-Identifier: Unlicense OR MIT

package ngl

import (
	"github.com/gonodegl/ngl/internal/driver"
)

// CapID identifies one capability entry. The enumeration is versioned:
// membership and order are stable across releases, and a probe always
// reports the full set.
type CapID int

const (
	CapBlock CapID = iota
	CapCompute
	CapDepthStencilResolve
	CapInstancedDraw
	CapMaxColorAttachments
	CapMaxComputeGroupCountX
	CapMaxComputeGroupCountY
	CapMaxComputeGroupCountZ
	CapMaxComputeGroupInvocations
	CapMaxComputeGroupSizeX
	CapMaxComputeGroupSizeY
	CapMaxComputeGroupSizeZ
	CapMaxComputeSharedMemorySize
	CapMaxSamples
	CapMaxTextureDimension1D
	CapMaxTextureDimension2D
	CapMaxTextureDimension3D
	CapMaxTextureDimensionCube
	CapNPOTTexture
	CapShaderTextureLOD
	CapTexture3D
	CapTextureCube
	CapUintUniforms

	numCaps int = iota
)

// StringID returns the stable string identifier of a capability.
func (id CapID) StringID() string {
	switch id {
	case CapBlock:
		return "block"
	case CapCompute:
		return "compute"
	case CapDepthStencilResolve:
		return "depth_stencil_resolve"
	case CapInstancedDraw:
		return "instanced_draw"
	case CapMaxColorAttachments:
		return "max_color_attachments"
	case CapMaxComputeGroupCountX:
		return "max_compute_group_count_x"
	case CapMaxComputeGroupCountY:
		return "max_compute_group_count_y"
	case CapMaxComputeGroupCountZ:
		return "max_compute_group_count_z"
	case CapMaxComputeGroupInvocations:
		return "max_compute_group_invocations"
	case CapMaxComputeGroupSizeX:
		return "max_compute_group_size_x"
	case CapMaxComputeGroupSizeY:
		return "max_compute_group_size_y"
	case CapMaxComputeGroupSizeZ:
		return "max_compute_group_size_z"
	case CapMaxComputeSharedMemorySize:
		return "max_compute_shared_memory_size"
	case CapMaxSamples:
		return "max_samples"
	case CapMaxTextureDimension1D:
		return "max_texture_dimensions_1d"
	case CapMaxTextureDimension2D:
		return "max_texture_dimensions_2d"
	case CapMaxTextureDimension3D:
		return "max_texture_dimensions_3d"
	case CapMaxTextureDimensionCube:
		return "max_texture_dimensions_cube"
	case CapNPOTTexture:
		return "npot_texture"
	case CapShaderTextureLOD:
		return "shader_texture_lod"
	case CapTexture3D:
		return "texture_3d"
	case CapTextureCube:
		return "texture_cube"
	case CapUintUniforms:
		return "uint_uniforms"
	}
	return "unknown"
}

// Cap is one capability entry: a boolean-as-integer flag or a numeric
// limit.
type Cap struct {
	ID       CapID
	StringID string
	Value    int
}

func boolCap(v bool) int {
	if v {
		return 1
	}
	return 0
}

func capEntry(id CapID, value int) Cap {
	return Cap{ID: id, StringID: id.StringID(), Value: value}
}

func loadCaps(features driver.Features, limits driver.Limits) []Cap {
	return []Cap{
		capEntry(CapBlock, boolCap(features.HasAny(driver.FeatureUniformBuffer|driver.FeatureStorageBuffer))),
		capEntry(CapCompute, boolCap(features.Has(driver.FeatureCompute))),
		capEntry(CapDepthStencilResolve, boolCap(features.Has(driver.FeatureDepthStencilResolve))),
		capEntry(CapInstancedDraw, boolCap(features.Has(driver.FeatureInstancedDraw))),
		capEntry(CapMaxColorAttachments, limits.MaxColorAttachments),
		capEntry(CapMaxComputeGroupCountX, limits.MaxComputeWorkGroupCount[0]),
		capEntry(CapMaxComputeGroupCountY, limits.MaxComputeWorkGroupCount[1]),
		capEntry(CapMaxComputeGroupCountZ, limits.MaxComputeWorkGroupCount[2]),
		capEntry(CapMaxComputeGroupInvocations, limits.MaxComputeWorkGroupInvocations),
		capEntry(CapMaxComputeGroupSizeX, limits.MaxComputeWorkGroupSize[0]),
		capEntry(CapMaxComputeGroupSizeY, limits.MaxComputeWorkGroupSize[1]),
		capEntry(CapMaxComputeGroupSizeZ, limits.MaxComputeWorkGroupSize[2]),
		capEntry(CapMaxComputeSharedMemorySize, limits.MaxComputeSharedMemorySize),
		capEntry(CapMaxSamples, limits.MaxSamples),
		capEntry(CapMaxTextureDimension1D, limits.MaxTextureDimension1D),
		capEntry(CapMaxTextureDimension2D, limits.MaxTextureDimension2D),
		capEntry(CapMaxTextureDimension3D, limits.MaxTextureDimension3D),
		capEntry(CapMaxTextureDimensionCube, limits.MaxTextureDimensionCube),
		capEntry(CapNPOTTexture, boolCap(features.Has(driver.FeatureTextureNPOT))),
		capEntry(CapShaderTextureLOD, boolCap(features.Has(driver.FeatureShaderTextureLOD))),
		capEntry(CapTexture3D, boolCap(features.Has(driver.FeatureTexture3D))),
		capEntry(CapTextureCube, boolCap(features.Has(driver.FeatureTextureCube))),
		capEntry(CapUintUniforms, boolCap(features.Has(driver.FeatureUintUniforms))),
	}
}

// BackendInfo is one probe result: a backend available in this build,
// optionally with its harvested capability table.
type BackendInfo struct {
	Backend   Backend
	StringID  string
	Name      string
	IsDefault bool
	// Caps is nil for no-graphics probes.
	Caps []Cap
}

var probeOrder = []Backend{
	BackendOpenGL,
	BackendOpenGLES,
	BackendVulkan,
}

// BackendsProbe enumerates the backends that fully initialize with
// the given configuration and harvests their capability tables.
// Backends that fail to initialize are skipped, not reported. A nil
// config probes with a synthetic 1x1 offscreen configuration.
func BackendsProbe(userConfig *Config) ([]BackendInfo, error) {
	return backendsProbe(userConfig, true)
}

// BackendsGet enumerates the backends present in this build without
// touching the graphics driver. It is never stricter than
// BackendsProbe with the same configuration.
func BackendsGet(userConfig *Config) ([]BackendInfo, error) {
	return backendsProbe(userConfig, false)
}

func backendsProbe(userConfig *Config, full bool) ([]BackendInfo, error) {
	defaultConfig := Config{Width: 1, Height: 1, Offscreen: true}
	if userConfig == nil {
		userConfig = &defaultConfig
	}

	platform := userConfig.Platform
	if platform == PlatformAuto {
		var err error
		if platform, err = defaultPlatform(); err != nil {
			return nil, err
		}
	}

	var backends []BackendInfo
	for _, id := range probeOrder {
		if userConfig.Backend != BackendAuto && userConfig.Backend != id {
			continue
		}
		config := *userConfig
		config.Backend = id
		config.Platform = platform

		info, err := backendProbe(&config, full)
		if err != nil {
			continue
		}
		info.IsDefault = id == defaultBackend(platform)
		backends = append(backends, info)
	}
	return backends, nil
}

func backendProbe(config *Config, full bool) (BackendInfo, error) {
	gpu, err := driver.New(config)
	if err != nil {
		return BackendInfo{}, err
	}
	info := BackendInfo{
		Backend:  config.Backend,
		StringID: config.Backend.StringID(),
		Name:     gpu.Name(),
	}
	if !full {
		return info, nil
	}
	if err := gpu.Init(); err != nil {
		gpu.Destroy()
		return BackendInfo{}, err
	}
	info.Caps = loadCaps(gpu.Features(), gpu.Limits())
	gpu.Destroy()
	return info, nil
}
