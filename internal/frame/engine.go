package frame

import (
	"errors"
	"fmt"
	"log/slog"
)

// ErrSurfaceClosed is returned when the window closes while the engine is
// waiting for a minimised surface to regain a drawable size.
var ErrSurfaceClosed = errors.New("surface closed")

// Config fixes the engine's behaviour for its whole lifetime.
type Config struct {
	// FramesInFlight is N, the number of frames the CPU may run ahead.
	FramesInFlight int
	Preferences    Preferences
	Clear          ClearValues
}

// DefaultConfig is two frames in flight, sRGB BGRA8 with mailbox, and an
// opaque black clear.
func DefaultConfig() Config {
	return Config{
		FramesInFlight: 2,
		Preferences: Preferences{
			Format:      SurfaceFormat{Format: FormatB8G8R8A8Srgb, ColorSpace: ColorSpaceSrgbNonlinear},
			PresentMode: PresentModeMailbox,
		},
		Clear: ClearValues{Color: [4]float32{0, 0, 0, 1}, Depth: 1},
	}
}

// closer is implemented by surfaces that can report a pending close.
type closer interface {
	ShouldClose() bool
}

// Engine runs the frame loop. It is not safe for concurrent use except for
// RequestRebuild and Flag().Set, which may be called from any goroutine.
type Engine struct {
	cfg      Config
	surface  Surface
	device   Device
	renderer Renderer
	overlay  Overlay

	pool     CommandPool
	chain    *Chain
	res      *Resources
	prepared bool

	flag   ResizeFlag
	slot   SlotIndex
	state  State
	serial uint64
	stats  Stats

	onState func(from, to State)
}

// NewEngine creates the command pool and the first generation. overlay may
// be nil.
func NewEngine(cfg Config, surface Surface, device Device, renderer Renderer, overlay Overlay) (*Engine, error) {
	if cfg.FramesInFlight < 1 {
		return nil, fmt.Errorf("frames in flight must be at least 1, got %d", cfg.FramesInFlight)
	}
	pool, err := device.CreateCommandPool()
	if err != nil {
		return nil, deviceErr("create command pool", err)
	}
	e := &Engine{
		cfg:      cfg,
		surface:  surface,
		device:   device,
		renderer: renderer,
		overlay:  overlay,
		pool:     pool,
	}
	if err := e.build(); err != nil {
		pool.Destroy()
		return nil, err
	}
	return e, nil
}

// Flag is the pending-rebuild flag. Window callbacks set it.
func (e *Engine) Flag() *ResizeFlag { return &e.flag }

// RequestRebuild asks for a rebuild at the next acquire or present.
func (e *Engine) RequestRebuild() { e.flag.Set() }

// State is the engine's position in the frame state machine.
func (e *Engine) State() State { return e.state }

// Slot is the frame slot the next DrawFrame will use: the number of
// completed frames mod FramesInFlight.
func (e *Engine) Slot() SlotIndex { return e.slot }

// Stats returns a copy of the running counters.
func (e *Engine) Stats() Stats { return e.stats }

// Generation describes the live swapchain, or the zero value once destroyed.
func (e *Engine) Generation() Generation {
	if e.chain == nil {
		return Generation{}
	}
	return e.chain.Generation()
}

// DrawFrame runs one iteration of the frame loop. Stale swapchains are
// absorbed by rebuilding; any returned error is fatal.
func (e *Engine) DrawFrame() error {
	if e.pool == nil || e.res == nil {
		return ErrDestroyed
	}
	sync := e.res.slot(e.slot)

	if err := sync.inFlight.Wait(); err != nil {
		return deviceErr("wait for in-flight fence", err)
	}
	e.res.release(e.slot)

	image, err := e.acquire(sync)
	if errors.Is(err, ErrStaleSwapchain) {
		return e.rebuild(err)
	}
	if err != nil {
		return err
	}

	if fence, owner, ok := e.res.owner(image); ok {
		Logger().Debug("image still in flight on another slot",
			slog.Int("image", int(image)), slog.Int("owner", int(owner)), slog.Int("slot", int(e.slot)))
		if err := fence.Wait(); err != nil {
			return deviceErr("wait for image fence", err)
		}
		e.res.release(owner)
		e.stats.CrossSlotWaits++
	}
	e.res.claim(image, e.slot)

	if err := e.renderer.Update(image); err != nil {
		return deviceErr("update uniforms", err)
	}
	if e.overlay != nil {
		if err := e.overlay.Update(image); err != nil {
			return deviceErr("update overlay", err)
		}
	}

	e.setState(StateRecording)
	if err := e.record(image); err != nil {
		return err
	}

	if err := sync.inFlight.Reset(); err != nil {
		return deviceErr("reset in-flight fence", err)
	}
	err = e.device.Submit(Submission{
		Commands:  e.res.commands[image],
		Wait:      sync.imageAcquired,
		WaitStage: StageColorAttachmentOutput,
		Signal:    sync.renderComplete,
		Fence:     sync.inFlight,
	})
	if err != nil {
		return deviceErr("submit", err)
	}
	e.setState(StateSubmitted)

	if err := e.present(image, sync); errors.Is(err, ErrStaleSwapchain) {
		return e.rebuild(err)
	} else if err != nil {
		return err
	}

	e.slot = (e.slot + 1) % SlotIndex(e.cfg.FramesInFlight)
	e.stats.Frames++
	e.setState(StateIdle)
	return nil
}

func (e *Engine) acquire(sync *slotSync) (ImageIndex, error) {
	e.setState(StateAcquiring)
	image, status, err := e.chain.handle.AcquireNextImage(sync.imageAcquired)
	if err != nil {
		return 0, deviceErr("acquire next image", err)
	}
	switch {
	case status == StatusOutOfDate:
		return 0, fmt.Errorf("%w: acquire reported out of date", ErrStaleSwapchain)
	case e.flag.Pending():
		return 0, fmt.Errorf("%w: resize requested before acquire", ErrStaleSwapchain)
	case status == StatusSuboptimal:
		e.stats.Suboptimal++
		Logger().Debug("acquire suboptimal", slog.Int("image", int(image)))
	}
	if int(image) >= e.res.ImageCount() {
		return 0, deviceErr("acquire next image", fmt.Errorf("image index %d out of range [0,%d)", image, e.res.ImageCount()))
	}
	return image, nil
}

func (e *Engine) present(image ImageIndex, sync *slotSync) error {
	e.setState(StatePresenting)
	status, err := e.device.Present(e.chain.handle, image, sync.renderComplete)
	if err != nil {
		return deviceErr("present", err)
	}
	switch {
	case status == StatusOutOfDate:
		return fmt.Errorf("%w: present reported out of date", ErrStaleSwapchain)
	case e.flag.Pending():
		return fmt.Errorf("%w: resize requested before present completed", ErrStaleSwapchain)
	case status == StatusSuboptimal:
		e.stats.Suboptimal++
		Logger().Debug("present suboptimal", slog.Int("image", int(image)))
	}
	return nil
}

func (e *Engine) record(i ImageIndex) error {
	cmd := e.res.commands[i]
	if err := cmd.Reset(); err != nil {
		return deviceErr("reset command buffer", err)
	}
	if err := cmd.Begin(); err != nil {
		return deviceErr("begin command buffer", err)
	}
	cmd.BeginRenderPass(e.res.framebuffers[i], e.chain.gen.Extent, e.cfg.Clear)
	if err := e.renderer.Draw(cmd, i); err != nil {
		return deviceErr("record scene", err)
	}
	if e.overlay != nil {
		if err := e.overlay.Draw(cmd, i); err != nil {
			return deviceErr("record overlay", err)
		}
	}
	cmd.EndRenderPass()
	if err := cmd.End(); err != nil {
		return deviceErr("end command buffer", err)
	}
	return nil
}

// rebuild replaces the whole generation. The flag is cleared only once the
// new generation is complete.
func (e *Engine) rebuild(reason error) error {
	e.setState(StateRebuilding)
	Logger().Info("rebuilding swapchain", slog.String("reason", reason.Error()))

	for {
		w, h := e.surface.FramebufferExtent()
		if w > 0 && h > 0 {
			break
		}
		if c, ok := e.surface.(closer); ok && c.ShouldClose() {
			return ErrSurfaceClosed
		}
		e.surface.WaitEvents()
	}

	if err := e.device.WaitIdle(); err != nil {
		return deviceErr("wait idle before rebuild", err)
	}
	e.teardown()
	if err := e.build(); err != nil {
		return err
	}
	e.flag.clear()
	e.stats.Rebuilds++
	e.setState(StateIdle)
	return nil
}

// build creates a complete generation. The slot ring is left where it is;
// fresh per-slot primitives carry no history. On error whatever was created
// is torn down again.
func (e *Engine) build() error {
	w, h := e.surface.FramebufferExtent()
	chain, err := CreateChain(e.surface, e.device, e.cfg.Preferences, Extent{Width: uint32(max(w, 0)), Height: uint32(max(h, 0))})
	if err != nil {
		return err
	}
	e.serial++
	chain.gen.Serial = e.serial
	e.chain = chain

	if err := e.prepare(chain.gen); err != nil {
		e.teardown()
		return err
	}

	res := NewResources(e.pool)
	e.res = res
	if err := res.BuildFramebuffers(chain.views, e.renderer, chain.gen.Extent); err != nil {
		e.teardown()
		return err
	}
	if err := res.AllocateCommandBuffers(chain.gen.ImageCount); err != nil {
		e.teardown()
		return err
	}
	if err := res.CreateSyncPrimitives(e.device, e.cfg.FramesInFlight, chain.gen.ImageCount); err != nil {
		e.teardown()
		return err
	}
	Logger().Info("generation ready", slog.String("generation", chain.gen.String()), slog.Int("frames_in_flight", e.cfg.FramesInFlight))
	return nil
}

func (e *Engine) prepare(gen Generation) error {
	e.prepared = true
	if err := e.renderer.Prepare(gen); err != nil {
		return deviceErr("prepare renderer", err)
	}
	if e.overlay != nil {
		if err := e.overlay.Prepare(gen); err != nil {
			return deviceErr("prepare overlay", err)
		}
	}
	return nil
}

// teardown destroys the current generation in reverse creation order.
// Calling it with nothing built is a no-op.
func (e *Engine) teardown() {
	if e.res != nil {
		e.res.Destroy()
		e.res = nil
	}
	if e.prepared {
		if e.overlay != nil {
			e.overlay.Release()
		}
		e.renderer.Release()
		e.prepared = false
	}
	if e.chain != nil {
		e.chain.Destroy()
		e.chain = nil
	}
}

// Destroy waits for the device to go idle and releases everything. Calling
// it again is a no-op.
func (e *Engine) Destroy() {
	if e.pool == nil {
		return
	}
	if err := e.device.WaitIdle(); err != nil {
		Logger().Warn("wait idle before destroy", slog.String("err", err.Error()))
	}
	e.teardown()
	e.pool.Destroy()
	e.pool = nil
	e.setState(StateIdle)
}

func (e *Engine) setState(s State) {
	if s == e.state {
		return
	}
	from := e.state
	e.state = s
	if e.onState != nil {
		e.onState(from, s)
	}
}
