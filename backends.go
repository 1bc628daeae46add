// SPDX-License-Identifier: Unlicense OR MIT

package ngl

import (
	// Link the native backends. Each registers its factory with the
	// driver package from its init function.
	_ "github.com/gonodegl/ngl/internal/opengl"
	_ "github.com/gonodegl/ngl/internal/vulkan"
)
