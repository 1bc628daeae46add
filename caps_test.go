// SPDX-License-Identifier: Unlicense OR MIT

package ngl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gonodegl/ngl/internal/driver"
)

func TestCapsEnumerationComplete(t *testing.T) {
	caps := loadCaps(0, driver.Limits{})
	require.Len(t, caps, numCaps)
	for i, c := range caps {
		assert.Equal(t, CapID(i), c.ID, "capability order is part of the contract")
		assert.Equal(t, c.ID.StringID(), c.StringID)
		assert.NotEqual(t, "unknown", c.StringID)
	}
}

func TestCapsValues(t *testing.T) {
	features := driver.FeatureCompute |
		driver.FeatureStorageBuffer |
		driver.FeatureTextureNPOT
	limits := driver.Limits{
		MaxColorAttachments:   8,
		MaxSamples:            4,
		MaxTextureDimension2D: 16384,
	}
	caps := loadCaps(features, limits)

	byID := make(map[CapID]int, len(caps))
	for _, c := range caps {
		byID[c.ID] = c.Value
	}

	// A storage buffer alone is enough for block support.
	assert.Equal(t, 1, byID[CapBlock])
	assert.Equal(t, 1, byID[CapCompute])
	assert.Equal(t, 0, byID[CapInstancedDraw])
	assert.Equal(t, 1, byID[CapNPOTTexture])
	assert.Equal(t, 8, byID[CapMaxColorAttachments])
	assert.Equal(t, 4, byID[CapMaxSamples])
	assert.Equal(t, 16384, byID[CapMaxTextureDimension2D])
}

func TestBackendsProbeSkipsFailingBackend(t *testing.T) {
	prevGL, prevVK := driver.NewGLContext, driver.NewVulkanContext
	t.Cleanup(func() {
		driver.NewGLContext, driver.NewVulkanContext = prevGL, prevVK
	})
	driver.NewGLContext = func(cfg *driver.Config) (driver.GpuContext, error) {
		return &mockGPU{cfg: *cfg}, nil
	}
	driver.NewVulkanContext = func(cfg *driver.Config) (driver.GpuContext, error) {
		return &mockGPU{cfg: *cfg, initErr: assert.AnError}, nil
	}

	full, err := BackendsProbe(nil)
	require.NoError(t, err)
	light, err := BackendsGet(nil)
	require.NoError(t, err)

	fullIDs := make(map[Backend]bool)
	for _, b := range full {
		fullIDs[b.Backend] = true
		assert.Len(t, b.Caps, numCaps)
		assert.Equal(t, b.Backend.StringID(), b.StringID)
		assert.Equal(t, b.Backend == DefaultBackend, b.IsDefault)
	}
	assert.True(t, fullIDs[BackendOpenGL])
	assert.True(t, fullIDs[BackendOpenGLES])
	assert.False(t, fullIDs[BackendVulkan], "backends that fail to initialize are excluded")

	// Lightweight probing is never stricter than full probing.
	lightIDs := make(map[Backend]bool)
	for _, b := range light {
		lightIDs[b.Backend] = true
		assert.Nil(t, b.Caps)
	}
	for id := range fullIDs {
		assert.True(t, lightIDs[id])
	}
	assert.True(t, lightIDs[BackendVulkan], "construction succeeds without graphics")
}

func TestBackendsProbeHonorsBackendFilter(t *testing.T) {
	reg := &mockRegistry{}
	reg.install(t)

	cfg := offscreenConfig()
	cfg.Backend = BackendOpenGLES
	backends, err := BackendsProbe(&cfg)
	require.NoError(t, err)
	require.Len(t, backends, 1)
	assert.Equal(t, BackendOpenGLES, backends[0].Backend)
}
