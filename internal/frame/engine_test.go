package frame

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDrawFrameOrder(t *testing.T) {
	h := newHarness(t, 2, 2)

	require.NoError(t, h.engine.DrawFrame())

	assert.Equal(t, []string{
		"fence.wait",
		"acquire",
		"renderer.update",
		"overlay.update",
		"cmd.reset",
		"fence.reset",
		"submit",
		"present",
	}, h.dev.events)
	assert.Equal(t, []State{StateAcquiring, StateRecording, StateSubmitted, StatePresenting, StateIdle}, h.states)
	assert.Equal(t, uint64(1), h.engine.Stats().Frames)
	h.requireClean(t)
}

func TestRecordedCommands(t *testing.T) {
	h := newHarness(t, 2, 2)
	require.NoError(t, h.engine.DrawFrame())

	cb := h.engine.res.commands[0].(*fakeCommandBuffer)
	assert.Equal(t, []string{"begin-pass", "draw:cube", "draw:floor", "draw:hud", "end-pass"}, cb.ops)
	assert.True(t, cb.ended)
}

func TestSlotsAdvanceModuloFramesInFlight(t *testing.T) {
	h := newHarness(t, 3, 2)

	var slots []SlotIndex
	for i := 0; i < 7; i++ {
		slots = append(slots, h.engine.Slot())
		require.NoError(t, h.engine.DrawFrame())
	}
	assert.Equal(t, []SlotIndex{0, 1, 2, 0, 1, 2, 0}, slots)
	h.requireClean(t)
}

func TestInFlightBoundedBySlots(t *testing.T) {
	for _, n := range []int{1, 2, 3} {
		h := newHarness(t, n, 3)
		for i := 0; i < 20; i++ {
			require.NoError(t, h.engine.DrawFrame())
		}
		assert.Equal(t, n, h.dev.maxPending, "frames in flight %d", n)
		h.requireClean(t)
	}
}

func TestNoCrossSlotWaitForCyclicImages(t *testing.T) {
	for _, seq := range [][]ImageIndex{{0, 1, 2}, {0, 2, 1}} {
		h := newHarness(t, 2, 2)
		require.Equal(t, 3, h.engine.Generation().ImageCount)
		h.dev.acquireSeq = seq

		for i := 0; i < 30; i++ {
			require.NoError(t, h.engine.DrawFrame())
		}
		assert.Zero(t, h.engine.Stats().CrossSlotWaits, "sequence %v", seq)
		assert.Equal(t, uint64(30), h.engine.Stats().Frames)
		h.requireClean(t)
	}
}

func TestCrossSlotWaitOnImageCollision(t *testing.T) {
	h := newHarness(t, 2, 2)
	h.dev.acquireSeq = []ImageIndex{0, 1, 1}

	require.NoError(t, h.engine.DrawFrame())
	require.NoError(t, h.engine.DrawFrame())
	h.dev.events = nil
	require.NoError(t, h.engine.DrawFrame())

	// Slot 0 acquires image 1 while slot 1's submission still holds it.
	assert.Equal(t, uint64(1), h.engine.Stats().CrossSlotWaits)
	assert.Equal(t, []string{"fence.wait", "acquire", "fence.wait", "renderer.update"}, h.dev.events[:4])

	for i := 0; i < 20; i++ {
		require.NoError(t, h.engine.DrawFrame())
	}
	h.requireClean(t)
}

func TestRebuildOnPresentOutOfDate(t *testing.T) {
	h := newHarness(t, 2, 2)
	require.Equal(t, 3, h.engine.Generation().ImageCount)

	h.dev.presentStatus = []Status{StatusOutOfDate}
	h.dev.onPresent = func() {
		h.surface.support.Capabilities.MinImageCount = 3
		h.dev.onPresent = nil
	}
	require.NoError(t, h.engine.DrawFrame())

	gen := h.engine.Generation()
	assert.Equal(t, 4, gen.ImageCount)
	assert.Equal(t, uint64(2), gen.Serial)
	assert.Equal(t, uint64(1), h.engine.Stats().Rebuilds)
	assert.Zero(t, h.engine.Stats().Frames)
	assert.Equal(t, SlotIndex(0), h.engine.Slot())

	res := h.engine.res
	assert.Len(t, res.framebuffers, 4)
	assert.Len(t, res.commands, 4)
	assert.Equal(t, 4, res.ImageCount())
	assert.Equal(t, 2, res.SlotCount())
	assert.Equal(t, map[string]int{
		"pool": 1, "swapchain": 1, "view": 4, "framebuffer": 4, "cmd": 4, "semaphore": 4, "fence": 2,
	}, h.dev.live)

	var slots []SlotIndex
	for i := 0; i < 5; i++ {
		slots = append(slots, h.engine.Slot())
		require.NoError(t, h.engine.DrawFrame())
	}
	assert.Equal(t, []SlotIndex{0, 1, 0, 1, 0}, slots)
	h.requireClean(t)
}

func TestRebuildKeepsSlotRing(t *testing.T) {
	for _, frames := range []int{1, 2, 3} {
		h := newHarness(t, 2, 2)
		for i := 0; i < frames; i++ {
			require.NoError(t, h.engine.DrawFrame())
		}
		want := SlotIndex(frames % 2)
		require.Equal(t, want, h.engine.Slot())

		h.dev.acquireStatus = []Status{StatusOutOfDate}
		require.NoError(t, h.engine.DrawFrame())
		assert.Equal(t, uint64(1), h.engine.Stats().Rebuilds)
		assert.Equal(t, uint64(frames), h.engine.Stats().Frames)
		assert.Equal(t, want, h.engine.Slot(), "after %d frames", frames)

		require.NoError(t, h.engine.DrawFrame())
		assert.Equal(t, SlotIndex((frames+1)%2), h.engine.Slot())
		h.requireClean(t)
	}
}

func TestRebuildOnAcquireOutOfDate(t *testing.T) {
	h := newHarness(t, 2, 2)
	h.dev.acquireStatus = []Status{StatusOutOfDate}

	require.NoError(t, h.engine.DrawFrame())

	assert.Zero(t, count(h.dev.events, "submit"))
	assert.Equal(t, uint64(1), h.engine.Stats().Rebuilds)
	assert.Equal(t, []State{StateAcquiring, StateRebuilding, StateIdle}, h.states)
	require.NoError(t, h.engine.DrawFrame())
	h.requireClean(t)
}

func TestResizeDuringAcquireRebuildsBeforeSubmit(t *testing.T) {
	h := newHarness(t, 2, 2)
	h.dev.onAcquire = func() {
		h.engine.RequestRebuild()
		h.dev.onAcquire = nil
	}

	require.NoError(t, h.engine.DrawFrame())

	idle := -1
	for i, ev := range h.dev.events {
		if ev == "wait-idle" {
			idle = i
			break
		}
		assert.NotEqual(t, "submit", ev)
	}
	require.GreaterOrEqual(t, idle, 0)
	assert.False(t, h.engine.Flag().Pending())
	assert.Equal(t, uint64(1), h.engine.Stats().Rebuilds)

	h.dev.events = nil
	require.NoError(t, h.engine.DrawFrame())
	assert.Equal(t, 1, count(h.dev.events, "submit"))
	h.requireClean(t)
}

func TestResizeDuringPresent(t *testing.T) {
	h := newHarness(t, 2, 2)
	h.dev.onPresent = func() {
		h.engine.Flag().Set()
		h.dev.onPresent = nil
	}

	require.NoError(t, h.engine.DrawFrame())
	assert.Equal(t, uint64(1), h.engine.Stats().Rebuilds)
	assert.False(t, h.engine.Flag().Pending())
	assert.Equal(t, []string{"renderer.release", "renderer.prepare"}, filter(h.dev.events, "renderer.release", "renderer.prepare"))
}

func TestSuboptimalIsNotARebuild(t *testing.T) {
	h := newHarness(t, 2, 2)
	h.dev.acquireStatus = []Status{StatusSuboptimal}
	h.dev.presentStatus = []Status{StatusSuboptimal}

	require.NoError(t, h.engine.DrawFrame())
	assert.Zero(t, h.engine.Stats().Rebuilds)
	assert.Equal(t, uint64(2), h.engine.Stats().Suboptimal)
	assert.Equal(t, uint64(1), h.engine.Stats().Frames)
}

func TestRebuildWaitsWhileMinimised(t *testing.T) {
	h := newHarness(t, 2, 2)
	h.surface.w, h.surface.h = 0, 0
	h.surface.onWait = func() {
		if h.surface.waits == 3 {
			h.surface.w, h.surface.h = 1024, 768
		}
	}
	h.engine.RequestRebuild()

	require.NoError(t, h.engine.DrawFrame())
	assert.Equal(t, 3, h.surface.waits)
	assert.Equal(t, Extent{Width: 1024, Height: 768}, h.engine.Generation().Extent)
	assert.False(t, h.engine.Flag().Pending())
}

func TestRebuildStopsWhenClosedWhileMinimised(t *testing.T) {
	h := newHarness(t, 2, 2)
	h.surface.w = 0
	h.surface.closed = true
	h.engine.RequestRebuild()

	require.ErrorIs(t, h.engine.DrawFrame(), ErrSurfaceClosed)
	assert.True(t, h.engine.Flag().Pending())

	h.engine.Destroy()
	assert.Zero(t, h.dev.liveTotal())
}

func TestDeviceErrorsAreFatal(t *testing.T) {
	boom := errors.New("device lost")
	tests := []struct {
		name string
		arm  func(d *fakeDevice)
		op   string
	}{
		{name: "acquire", arm: func(d *fakeDevice) { d.failAcquire = boom }, op: "acquire next image"},
		{name: "submit", arm: func(d *fakeDevice) { d.failSubmit = boom }, op: "submit"},
		{name: "fence wait", arm: func(d *fakeDevice) { d.failWait = boom }, op: "wait for in-flight fence"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, 2, 2)
			tt.arm(h.dev)

			err := h.engine.DrawFrame()
			require.ErrorIs(t, err, boom)
			var de *DeviceError
			require.ErrorAs(t, err, &de)
			assert.Equal(t, tt.op, de.Op)
			assert.Zero(t, h.engine.Stats().Rebuilds)
		})
	}
}

func TestAcquiredIndexOutOfRange(t *testing.T) {
	h := newHarness(t, 2, 2)
	h.dev.acquireSeq = []ImageIndex{7}

	var de *DeviceError
	require.ErrorAs(t, h.engine.DrawFrame(), &de)
}

func TestDestroy(t *testing.T) {
	h := newHarness(t, 2, 2)
	for i := 0; i < 3; i++ {
		require.NoError(t, h.engine.DrawFrame())
	}

	h.engine.Destroy()
	h.engine.Destroy()

	assert.Zero(t, h.dev.liveTotal(), "live objects: %v", h.dev.live)
	assert.Empty(t, h.dev.violations)
	assert.Equal(t, 1, h.scene.released)
	assert.Equal(t, 1, h.hud.released)
	assert.ErrorIs(t, h.engine.DrawFrame(), ErrDestroyed)
}

func TestTeardownTwiceIsNoop(t *testing.T) {
	h := newHarness(t, 2, 2)

	h.engine.teardown()
	h.engine.teardown()

	assert.Empty(t, h.dev.violations)
	assert.Equal(t, 1, h.scene.released)
	assert.Equal(t, map[string]int{"pool": 1, "swapchain": 0, "view": 0, "framebuffer": 0, "cmd": 0, "semaphore": 0, "fence": 0}, h.dev.live)
}

func TestNewEngineRejectsZeroFramesInFlight(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FramesInFlight = 0
	_, err := NewEngine(cfg, newFakeSurface(2), newFakeDevice(), nil, nil)
	assert.Error(t, err)
}

func TestNewEngineCleansUpOnPrepareFailure(t *testing.T) {
	dev := newFakeDevice()
	scene := &fakeRenderer{dev: dev, tag: "renderer", failPrepare: errors.New("pipeline")}

	_, err := NewEngine(DefaultConfig(), newFakeSurface(2), dev, scene, nil)
	var de *DeviceError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "prepare renderer", de.Op)
	assert.Zero(t, dev.liveTotal(), "live objects: %v", dev.live)
	assert.Equal(t, 1, scene.released)
}

func TestNilOverlay(t *testing.T) {
	dev := newFakeDevice()
	scene := &fakeRenderer{dev: dev, tag: "renderer"}
	e, err := NewEngine(DefaultConfig(), newFakeSurface(2), dev, scene, nil)
	require.NoError(t, err)

	require.NoError(t, e.DrawFrame())
	cb := e.res.commands[0].(*fakeCommandBuffer)
	assert.Equal(t, []string{"begin-pass", "draw:cube", "draw:floor", "end-pass"}, cb.ops)
	e.Destroy()
	assert.Zero(t, dev.liveTotal())
}

func filter(events []string, keep ...string) []string {
	var out []string
	for _, e := range events {
		for _, k := range keep {
			if e == k {
				out = append(out, e)
			}
		}
	}
	return out
}
