// SPDX-License-Identifier: Unlicense OR MIT

package ngl

import "github.com/gonodegl/ngl/internal/driver"

// Error taxonomy. Every fallible operation wraps exactly one of these
// sentinels; callers classify with errors.Is.
var (
	// ErrInvalidArgument reports a malformed configuration or
	// parameter, like non-positive offscreen dimensions.
	ErrInvalidArgument = driver.ErrInvalidArgument
	// ErrInvalidUsage reports an operation invoked in the wrong state,
	// like drawing before configuring.
	ErrInvalidUsage = driver.ErrInvalidUsage
	// ErrUnsupported reports a capability absent from this build or
	// this driver.
	ErrUnsupported = driver.ErrUnsupported
	// ErrGraphicsUnsupported reports a driver-level capability
	// shortfall discovered at resource creation time.
	ErrGraphicsUnsupported = driver.ErrGraphicsUnsupported
	// ErrOutOfMemory reports an allocation failure.
	ErrOutOfMemory = driver.ErrOutOfMemory
	// ErrExternal reports a failure from a platform or windowing API
	// outside this module's control.
	ErrExternal = driver.ErrExternal
)
