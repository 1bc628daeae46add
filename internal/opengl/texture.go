// SPDX-License-Identifier: Unlicense OR MIT

package opengl

import (
	"fmt"

	"github.com/go-gl/gl/v4.6-core/gl"

	"github.com/gonodegl/ngl/internal/driver"
)

// formatTriple holds the native settings for an attachment image
// allocation.
type formatTriple struct {
	internalFormat uint32
	format         uint32
	typ            uint32
}

func tripleFor(format driver.PixelFormat) (formatTriple, error) {
	switch format {
	case driver.FormatR8G8B8A8Unorm:
		return formatTriple{gl.RGBA8, gl.RGBA, gl.UNSIGNED_BYTE}, nil
	case driver.FormatB8G8R8A8Unorm:
		return formatTriple{gl.RGBA8, gl.BGRA, gl.UNSIGNED_BYTE}, nil
	case driver.FormatD16Unorm:
		return formatTriple{gl.DEPTH_COMPONENT16, gl.DEPTH_COMPONENT, gl.UNSIGNED_SHORT}, nil
	case driver.FormatD24UnormS8Uint:
		return formatTriple{gl.DEPTH24_STENCIL8, gl.DEPTH_STENCIL, gl.UNSIGNED_INT_24_8}, nil
	case driver.FormatD32Sfloat:
		return formatTriple{gl.DEPTH_COMPONENT32F, gl.DEPTH_COMPONENT, gl.FLOAT}, nil
	case driver.FormatS8Uint:
		return formatTriple{gl.STENCIL_INDEX8, gl.STENCIL_INDEX, gl.UNSIGNED_BYTE}, nil
	default:
		return formatTriple{}, fmt.Errorf("pixel format %d has no native equivalent: %w", format, driver.ErrUnsupported)
	}
}

// attachmentIndex selects the framebuffer attachment point matching a
// native internal format.
func attachmentIndex(internalFormat uint32) uint32 {
	switch internalFormat {
	case gl.DEPTH_COMPONENT, gl.DEPTH_COMPONENT16, gl.DEPTH_COMPONENT24, gl.DEPTH_COMPONENT32F:
		return gl.DEPTH_ATTACHMENT
	case gl.DEPTH_STENCIL, gl.DEPTH24_STENCIL8, gl.DEPTH32F_STENCIL8:
		return gl.DEPTH_STENCIL_ATTACHMENT
	case gl.STENCIL_INDEX, gl.STENCIL_INDEX8:
		return gl.STENCIL_ATTACHMENT
	default:
		return gl.COLOR_ATTACHMENT0
	}
}

// texture is an attachment image. Single-sample color images are
// plain 2D textures; multisample and depth-stencil images are
// renderbuffers.
type texture struct {
	id      uint32
	target  uint32
	triple  formatTriple
	format  driver.PixelFormat
	width   int
	height  int
	samples int
}

func newTexture(format driver.PixelFormat, width, height, samples int) (*texture, error) {
	triple, err := tripleFor(format)
	if err != nil {
		return nil, err
	}
	t := &texture{
		triple:  triple,
		format:  format,
		width:   width,
		height:  height,
		samples: samples,
	}
	depth := attachmentIndex(triple.internalFormat) != gl.COLOR_ATTACHMENT0
	if samples > 0 || depth {
		t.target = gl.RENDERBUFFER
		gl.GenRenderbuffers(1, &t.id)
		gl.BindRenderbuffer(gl.RENDERBUFFER, t.id)
		if samples > 0 {
			gl.RenderbufferStorageMultisample(gl.RENDERBUFFER, int32(samples), triple.internalFormat, int32(width), int32(height))
		} else {
			gl.RenderbufferStorage(gl.RENDERBUFFER, triple.internalFormat, int32(width), int32(height))
		}
		gl.BindRenderbuffer(gl.RENDERBUFFER, 0)
	} else {
		t.target = gl.TEXTURE_2D
		gl.GenTextures(1, &t.id)
		gl.BindTexture(gl.TEXTURE_2D, t.id)
		gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.NEAREST)
		gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.NEAREST)
		gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.CLAMP_TO_EDGE)
		gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.CLAMP_TO_EDGE)
		gl.TexImage2D(gl.TEXTURE_2D, 0, int32(triple.internalFormat), int32(width), int32(height), 0, triple.format, triple.typ, nil)
		gl.BindTexture(gl.TEXTURE_2D, 0)
	}
	return t, nil
}

func (t *texture) Release() {
	if t.id == 0 {
		return
	}
	switch t.target {
	case gl.RENDERBUFFER:
		gl.DeleteRenderbuffers(1, &t.id)
	default:
		gl.DeleteTextures(1, &t.id)
	}
	t.id = 0
}
