// SPDX-License-Identifier: Unlicense OR MIT

package ngl

import "time"

// FrameStats holds per-frame timing diagnostics, accumulated when the
// configuration enables them.
type FrameStats struct {
	// Frames counts drawn frames since the diagnostics were enabled.
	Frames uint64

	// CPUUpdateTime is the host-side time of the last prepare pass.
	CPUUpdateTime time.Duration
	// CPUDrawTime is the host-side time of the last render pass.
	CPUDrawTime time.Duration
	// GPUDrawTime is the device-side time of the last frame, measured
	// with the backend's timer queries. Zero when the driver has no
	// timing support.
	GPUDrawTime time.Duration
}

// Stats returns a copy of the diagnostics counters. Only meaningful
// when the configuration enables them; zero values otherwise.
func (c *Context) Stats() FrameStats {
	var stats FrameStats
	werr := c.dispatch(func() error {
		stats = c.stats
		return nil
	})
	if werr != nil {
		return FrameStats{}
	}
	return stats
}
