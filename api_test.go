// SPDX-License-Identifier: Unlicense OR MIT

package ngl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOperationsRequireConfigure(t *testing.T) {
	reg := &mockRegistry{}
	reg.install(t)

	ctx := New()
	defer ctx.Destroy()

	assert.ErrorIs(t, ctx.Resize(640, 480, nil), ErrInvalidUsage)
	assert.ErrorIs(t, ctx.SetCaptureBuffer(make([]byte, 4)), ErrInvalidUsage)
	assert.ErrorIs(t, ctx.SetScene(&mockScene{}), ErrInvalidUsage)
	assert.ErrorIs(t, ctx.PrepareDraw(0), ErrInvalidUsage)
	assert.ErrorIs(t, ctx.Draw(0), ErrInvalidUsage)
	assert.ErrorIs(t, ctx.GLWrapFramebuffer(1), ErrInvalidUsage)

	// The rejected calls must leave no trace: a subsequent configure
	// and draw behave as if they never happened.
	assert.Empty(t, reg.created)
	cfg := offscreenConfig()
	require.NoError(t, ctx.Configure(&cfg))
	assert.NoError(t, ctx.Draw(0))
}

func TestConfigureRejectsNilConfig(t *testing.T) {
	reg := &mockRegistry{}
	reg.install(t)

	ctx := New()
	defer ctx.Destroy()

	assert.ErrorIs(t, ctx.Configure(nil), ErrInvalidArgument)
}

func TestConfigureRejectsZeroOffscreenDimensions(t *testing.T) {
	reg := &mockRegistry{}
	reg.install(t)

	ctx := New()
	defer ctx.Destroy()

	cfg := offscreenConfig()
	cfg.Width = 0
	cfg.Height = 10
	require.ErrorIs(t, ctx.Configure(&cfg), ErrInvalidArgument)

	// A failed configure leaves the context unconfigured with no
	// leftover backend.
	assert.ErrorIs(t, ctx.Draw(0), ErrInvalidUsage)
	assert.Equal(t, len(reg.created), reg.destroyed())
}

func TestConfigureRejectsBackendConfigWithAutoBackend(t *testing.T) {
	reg := &mockRegistry{}
	reg.install(t)

	ctx := New()
	defer ctx.Destroy()

	cfg := offscreenConfig()
	cfg.Backend = BackendAuto
	cfg.BackendConfig = &ConfigGL{External: true, ExternalFramebuffer: 1}
	assert.ErrorIs(t, ctx.Configure(&cfg), ErrInvalidUsage)
	assert.Empty(t, reg.created)
}

func TestConfigureResolvesAutoSelections(t *testing.T) {
	reg := &mockRegistry{}
	reg.install(t)

	ctx := New()
	defer ctx.Destroy()

	cfg := offscreenConfig()
	cfg.Backend = BackendAuto
	cfg.Platform = PlatformAuto
	require.NoError(t, ctx.Configure(&cfg))

	require.Len(t, reg.created, 1)
	assert.Equal(t, DefaultBackend, reg.created[0].cfg.Backend)
	assert.NotEqual(t, PlatformAuto, reg.created[0].cfg.Platform)
	// The caller's config is not mutated.
	assert.Equal(t, BackendAuto, cfg.Backend)
}

func TestDefaultBackendPerPlatform(t *testing.T) {
	assert.Equal(t, BackendOpenGL, defaultBackend(PlatformXlib))
	assert.Equal(t, BackendOpenGL, defaultBackend(PlatformWindows))
	assert.Equal(t, BackendOpenGLES, defaultBackend(PlatformAndroid))
	assert.Equal(t, BackendOpenGLES, defaultBackend(PlatformIOS))
}

func TestReconfigureReleasesPreviousResources(t *testing.T) {
	reg := &mockRegistry{}
	reg.install(t)

	ctx := New()

	const n = 5
	for i := 0; i < n; i++ {
		cfg := offscreenConfig()
		cfg.Width = 16 + i
		require.NoError(t, ctx.Configure(&cfg))
	}
	require.Len(t, reg.created, n)
	assert.Equal(t, n-1, reg.destroyed(), "only the live backend may remain")

	ctx.Destroy()
	assert.Equal(t, n, reg.destroyed())
	for _, gpu := range reg.created {
		assert.True(t, gpu.rtClear.released)
		assert.True(t, gpu.rtLoad.released)
	}
}

func TestDefaultRenderTargetPairing(t *testing.T) {
	reg := &mockRegistry{}
	reg.install(t)

	ctx := New()
	defer ctx.Destroy()

	cfg := offscreenConfig()
	cfg.Width, cfg.Height = 320, 240
	require.NoError(t, ctx.Configure(&cfg))

	require.Len(t, reg.created, 1)
	gpu := reg.created[0]
	clear := gpu.DefaultRenderTarget(LoadOpClear).(*mockRenderTarget)
	load := gpu.DefaultRenderTarget(LoadOpLoad).(*mockRenderTarget)
	assert.NotSame(t, clear, load)
	assert.NotEqual(t, clear.loadOp, load.loadOp)
	assert.Equal(t, 320, clear.Width())
	assert.Equal(t, 240, clear.Height())
	assert.Equal(t, clear.Width(), load.Width())
	assert.Equal(t, clear.Height(), load.Height())
}

func TestDrawEmptySceneWithCapture(t *testing.T) {
	reg := &mockRegistry{}
	reg.install(t)

	ctx := New()
	defer ctx.Destroy()

	buf := make([]byte, 4)
	cfg := Config{
		Width:             1,
		Height:            1,
		Offscreen:         true,
		Backend:           BackendAuto,
		Platform:          PlatformXlib,
		CaptureBuffer:     buf,
		CaptureBufferType: CaptureBufferTypeCPU,
	}
	require.NoError(t, ctx.Configure(&cfg))
	require.NoError(t, ctx.Draw(0))
	assert.Equal(t, []byte{0xff, 0xff, 0xff, 0xff}, buf)
}

func TestResizeOnscreenUpdatesRenderTargets(t *testing.T) {
	reg := &mockRegistry{}
	reg.install(t)

	ctx := New()
	defer ctx.Destroy()

	cfg := Config{Width: 640, Height: 480, Backend: BackendOpenGL, Platform: PlatformXlib}
	require.NoError(t, ctx.Configure(&cfg))
	require.NoError(t, ctx.Resize(800, 600, nil))
	require.NoError(t, ctx.Draw(0))

	gpu := reg.created[0]
	assert.Equal(t, 800, gpu.rtClear.Width())
	assert.Equal(t, 600, gpu.rtClear.Height())
	assert.Equal(t, 800, gpu.rtLoad.Width())
	assert.Equal(t, 600, gpu.rtLoad.Height())
}

func TestResizeOffscreenUnsupported(t *testing.T) {
	reg := &mockRegistry{}
	reg.install(t)

	ctx := New()
	defer ctx.Destroy()

	cfg := offscreenConfig()
	require.NoError(t, ctx.Configure(&cfg))
	assert.ErrorIs(t, ctx.Resize(32, 32, nil), ErrUnsupported)
}

func TestSetCaptureBufferOnscreenUnsupported(t *testing.T) {
	reg := &mockRegistry{}
	reg.install(t)

	ctx := New()
	defer ctx.Destroy()

	cfg := Config{Width: 640, Height: 480, Backend: BackendOpenGL, Platform: PlatformXlib}
	require.NoError(t, ctx.Configure(&cfg))
	require.ErrorIs(t, ctx.SetCaptureBuffer(make([]byte, 4)), ErrUnsupported)

	// The failure demotes the context to unconfigured.
	assert.ErrorIs(t, ctx.Draw(0), ErrInvalidUsage)
}

func TestGLWrapFramebufferUnsupportedKeepsSession(t *testing.T) {
	reg := &mockRegistry{}
	reg.install(t)

	ctx := New()
	defer ctx.Destroy()

	cfg := offscreenConfig()
	require.NoError(t, ctx.Configure(&cfg))

	// The plain mock cannot adopt framebuffers. The rejection must
	// leave the session configured with its backend alive.
	require.ErrorIs(t, ctx.GLWrapFramebuffer(1), ErrUnsupported)
	assert.NoError(t, ctx.Draw(0))
	assert.Zero(t, reg.destroyed())

	// A reconfigure still tears the live backend down exactly once.
	require.NoError(t, ctx.Configure(&cfg))
	require.Len(t, reg.created, 2)
	assert.Equal(t, 1, reg.destroyed())
}

func TestGLWrapFramebufferAdopts(t *testing.T) {
	reg := &mockRegistry{wrapCapable: true}
	reg.install(t)

	ctx := New()
	defer ctx.Destroy()

	cfg := offscreenConfig()
	require.NoError(t, ctx.Configure(&cfg))

	require.NoError(t, ctx.GLWrapFramebuffer(7))
	require.Len(t, reg.wrapping, 1)
	assert.Equal(t, []uint32{7}, reg.wrapping[0].wraps)
	assert.NoError(t, ctx.Draw(0))
}

func TestGLWrapFramebufferFailureDemotes(t *testing.T) {
	reg := &mockRegistry{wrapCapable: true, wrapErr: assert.AnError}
	reg.install(t)

	ctx := New()
	defer ctx.Destroy()

	cfg := offscreenConfig()
	require.NoError(t, ctx.Configure(&cfg))

	require.ErrorIs(t, ctx.GLWrapFramebuffer(7), assert.AnError)
	// The failed wrap demotes to unconfigured with the backend
	// released.
	assert.ErrorIs(t, ctx.Draw(0), ErrInvalidUsage)
	assert.Equal(t, 1, reg.destroyed())
}

func TestSetSceneLifecycle(t *testing.T) {
	reg := &mockRegistry{}
	reg.install(t)

	ctx := New()
	defer ctx.Destroy()

	cfg := offscreenConfig()
	require.NoError(t, ctx.Configure(&cfg))

	first := &mockScene{}
	require.NoError(t, ctx.SetScene(first))
	require.NoError(t, ctx.Draw(0))
	require.NoError(t, ctx.Draw(1))
	assert.Equal(t, 1, first.attaches)
	assert.Equal(t, 2, first.updates)
	assert.Equal(t, 2, first.draws)

	second := &mockScene{}
	require.NoError(t, ctx.SetScene(second))
	assert.Equal(t, 1, first.detaches)
	assert.Equal(t, 1, second.attaches)

	// Scene swaps are synchronized with the GPU.
	assert.GreaterOrEqual(t, reg.created[0].waitIdles, 2)

	require.NoError(t, ctx.SetScene(nil))
	assert.Equal(t, 1, second.detaches)
}

func TestSetSceneAttachFailure(t *testing.T) {
	reg := &mockRegistry{}
	reg.install(t)

	ctx := New()
	defer ctx.Destroy()

	cfg := offscreenConfig()
	require.NoError(t, ctx.Configure(&cfg))

	bad := &mockScene{attachErr: assert.AnError}
	require.ErrorIs(t, ctx.SetScene(bad), assert.AnError)
	// The half-attached scene was rolled back.
	assert.Equal(t, 1, bad.detaches)

	// The context is still usable without a scene.
	assert.NoError(t, ctx.Draw(0))
}

func TestSceneSurvivesReconfigure(t *testing.T) {
	reg := &mockRegistry{}
	reg.install(t)

	ctx := New()
	defer ctx.Destroy()

	cfg := offscreenConfig()
	require.NoError(t, ctx.Configure(&cfg))

	scene := &mockScene{}
	require.NoError(t, ctx.SetScene(scene))
	require.NoError(t, ctx.Configure(&cfg))

	assert.Equal(t, 2, scene.attaches)
	assert.Equal(t, 1, scene.detaches)
	require.NoError(t, ctx.Draw(0))
	assert.Equal(t, 1, scene.draws)
}

func TestStatsAccumulate(t *testing.T) {
	reg := &mockRegistry{}
	reg.install(t)

	ctx := New()
	defer ctx.Destroy()

	cfg := offscreenConfig()
	cfg.HUD = true
	require.NoError(t, ctx.Configure(&cfg))
	require.NoError(t, ctx.SetScene(&mockScene{}))
	require.NoError(t, ctx.Draw(0))
	require.NoError(t, ctx.Draw(1))

	stats := ctx.Stats()
	assert.Equal(t, uint64(2), stats.Frames)
	assert.NotZero(t, stats.GPUDrawTime)
}
