// SPDX-License-Identifier: Unlicense OR MIT

package opengl

import (
	"github.com/gonodegl/ngl/internal/driver"
	"github.com/gonodegl/ngl/internal/glcontext"
)

// featureMap translates native capability bits into the
// backend-agnostic feature set. An entry maps when all of its native
// bits are present.
var featureMap = []struct {
	feature driver.Features
	native  glcontext.Features
}{
	{driver.FeatureCompute, glcontext.FeatureComputeShaderAll},
	{driver.FeatureInstancedDraw, glcontext.FeatureDrawInstanced | glcontext.FeatureInstancedArray},
	{driver.FeatureColorResolve, glcontext.FeatureFramebufferObject},
	{driver.FeatureDepthStencilResolve, glcontext.FeatureFramebufferObject},
	{driver.FeatureShaderTextureLOD, glcontext.FeatureShaderTextureLOD},
	{driver.FeatureSoftware, glcontext.FeatureSoftware},
	{driver.FeatureTexture3D, glcontext.FeatureTexture3D},
	{driver.FeatureTextureCube, glcontext.FeatureTextureCubeMap},
	{driver.FeatureTextureNPOT, glcontext.FeatureTextureNPOT},
	{driver.FeatureUintUniforms, glcontext.FeatureUintUniforms},
	{driver.FeatureUniformBuffer, glcontext.FeatureUniformBufferObject},
	{driver.FeatureStorageBuffer, glcontext.FeatureShaderStorageBufferObject},
	{driver.FeatureTextureFloatRenderable, glcontext.FeatureColorBufferFloat},
	{driver.FeatureTextureHalfFloatRenderable, glcontext.FeatureColorBufferHalfFloat},
}

func translateFeatures(native glcontext.Features) driver.Features {
	var out driver.Features
	for _, m := range featureMap {
		if native.Has(m.native) {
			out |= m.feature
		}
	}
	return out
}
