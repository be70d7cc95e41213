package frame

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeDevice is an in-memory GPU. Fences only complete when waited on or
// on WaitIdle, which makes every frame's in-flight work observable. Any
// ordering rule broken by the engine is recorded in violations.
type fakeDevice struct {
	events     []string
	violations []string
	live       map[string]int

	pending    map[*fakeFence]*fakeCommandBuffer
	maxPending int

	acquireSeq    []ImageIndex
	acquirePos    int
	acquireStatus []Status
	presentStatus []Status
	onAcquire     func()
	onPresent     func()

	failAcquire error
	failSubmit  error
	failWait    error
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{
		live:    map[string]int{},
		pending: map[*fakeFence]*fakeCommandBuffer{},
	}
}

func (d *fakeDevice) event(format string, args ...any) {
	d.events = append(d.events, fmt.Sprintf(format, args...))
}

func (d *fakeDevice) violate(format string, args ...any) {
	d.violations = append(d.violations, fmt.Sprintf(format, args...))
}

func (d *fakeDevice) imageBusy(i int) bool {
	for _, cb := range d.pending {
		if cb.image == i {
			return true
		}
	}
	return false
}

func (d *fakeDevice) liveTotal() int {
	n := 0
	for _, v := range d.live {
		n += v
	}
	return n
}

type fakeObject struct {
	dev       *fakeDevice
	kind      string
	destroyed bool
}

func (d *fakeDevice) object(kind string) fakeObject {
	d.live[kind]++
	return fakeObject{dev: d, kind: kind}
}

func (o *fakeObject) Destroy() {
	if o.destroyed {
		o.dev.violate("%s destroyed twice", o.kind)
		return
	}
	o.destroyed = true
	o.dev.live[o.kind]--
}

type fakeSemaphore struct {
	fakeObject
	signaled bool
}

type fakeFence struct {
	fakeObject
	signaled bool
	pending  bool
}

func (f *fakeFence) Wait() error {
	f.dev.event("fence.wait")
	if f.dev.failWait != nil {
		return f.dev.failWait
	}
	if f.pending {
		f.complete()
		return nil
	}
	if !f.signaled {
		return errors.New("wait on unsignaled fence with no pending work")
	}
	return nil
}

func (f *fakeFence) complete() {
	f.pending = false
	f.signaled = true
	delete(f.dev.pending, f)
}

func (f *fakeFence) Reset() error {
	f.dev.event("fence.reset")
	if f.pending {
		return errors.New("reset of fence with pending work")
	}
	f.signaled = false
	return nil
}

type fakeView struct{ fakeObject }

type fakeFramebuffer struct {
	fakeObject
	view   *fakeView
	extent Extent
}

type fakePool struct {
	fakeObject
	allocated int
}

func (p *fakePool) Allocate(n int) ([]CommandBuffer, error) {
	cbs := make([]CommandBuffer, n)
	for i := range cbs {
		cbs[i] = &fakeCommandBuffer{dev: p.dev, image: i}
	}
	p.dev.live["cmd"] += n
	return cbs, nil
}

func (p *fakePool) Free(cbs []CommandBuffer) {
	p.dev.live["cmd"] -= len(cbs)
}

type fakeCommandBuffer struct {
	dev    *fakeDevice
	image  int
	ops    []string
	fence  *fakeFence
	open   bool
	ended  bool
	inPass bool
}

func (c *fakeCommandBuffer) Reset() error {
	c.dev.event("cmd.reset")
	if c.fence != nil && c.fence.pending {
		return fmt.Errorf("reset of command buffer %d while in flight", c.image)
	}
	c.ops = nil
	c.open, c.ended = false, false
	return nil
}

func (c *fakeCommandBuffer) Begin() error {
	c.open = true
	return nil
}

func (c *fakeCommandBuffer) BeginRenderPass(fb Framebuffer, area Extent, clear ClearValues) {
	if !c.open {
		c.dev.violate("render pass begun outside recording")
	}
	c.inPass = true
	c.ops = append(c.ops, "begin-pass")
}

func (c *fakeCommandBuffer) EndRenderPass() {
	c.inPass = false
	c.ops = append(c.ops, "end-pass")
}

func (c *fakeCommandBuffer) End() error {
	if c.inPass {
		return errors.New("end with open render pass")
	}
	c.open, c.ended = false, true
	return nil
}

func (c *fakeCommandBuffer) record(op string) {
	if !c.inPass {
		c.dev.violate("%s recorded outside render pass", op)
	}
	c.ops = append(c.ops, op)
}

type fakeSwapchain struct {
	fakeObject
	count int
}

func (s *fakeSwapchain) ImageCount() int { return s.count }

func (s *fakeSwapchain) CreateView(i ImageIndex) (ImageView, error) {
	return &fakeView{s.dev.object("view")}, nil
}

func (s *fakeSwapchain) AcquireNextImage(signal Semaphore) (ImageIndex, Status, error) {
	d := s.dev
	d.event("acquire")
	if d.failAcquire != nil {
		return 0, StatusSuccess, d.failAcquire
	}
	status := StatusSuccess
	if len(d.acquireStatus) > 0 {
		status, d.acquireStatus = d.acquireStatus[0], d.acquireStatus[1:]
	}
	if status == StatusOutOfDate {
		return 0, status, nil
	}
	var image ImageIndex
	if len(d.acquireSeq) > 0 {
		image = d.acquireSeq[d.acquirePos%len(d.acquireSeq)]
	} else {
		image = ImageIndex(d.acquirePos % s.count)
	}
	d.acquirePos++

	sem := signal.(*fakeSemaphore)
	if sem.signaled {
		d.violate("acquire signals semaphore that is already signaled")
	}
	sem.signaled = true
	if d.onAcquire != nil {
		d.onAcquire()
	}
	return image, status, nil
}

func (d *fakeDevice) CreateSwapchain(info SwapchainInfo) (Swapchain, error) {
	d.event("swapchain.create")
	return &fakeSwapchain{fakeObject: d.object("swapchain"), count: int(info.MinImageCount)}, nil
}

func (d *fakeDevice) CreateSemaphore() (Semaphore, error) {
	return &fakeSemaphore{fakeObject: d.object("semaphore")}, nil
}

func (d *fakeDevice) CreateFence(signaled bool) (Fence, error) {
	if !signaled {
		d.violate("slot fence created unsignaled")
	}
	return &fakeFence{fakeObject: d.object("fence"), signaled: signaled}, nil
}

func (d *fakeDevice) CreateCommandPool() (CommandPool, error) {
	return &fakePool{fakeObject: d.object("pool")}, nil
}

func (d *fakeDevice) Submit(s Submission) error {
	d.event("submit")
	if d.failSubmit != nil {
		return d.failSubmit
	}
	fence := s.Fence.(*fakeFence)
	if fence.signaled || fence.pending {
		return errors.New("submit with a fence that was not reset")
	}
	cb := s.Commands.(*fakeCommandBuffer)
	if !cb.ended {
		return errors.New("submit of unfinished command buffer")
	}
	if d.imageBusy(cb.image) {
		d.violate("image %d owned by two in-flight fences", cb.image)
	}
	wait := s.Wait.(*fakeSemaphore)
	if !wait.signaled {
		d.violate("submit waits on a semaphore nobody signaled")
	}
	wait.signaled = false
	signal := s.Signal.(*fakeSemaphore)
	if signal.signaled {
		d.violate("submit signals a semaphore already signaled")
	}
	signal.signaled = true
	if s.WaitStage != StageColorAttachmentOutput {
		d.violate("submit waits at stage %#x", s.WaitStage)
	}

	fence.pending = true
	cb.fence = fence
	d.pending[fence] = cb
	d.maxPending = max(d.maxPending, len(d.pending))
	return nil
}

func (d *fakeDevice) Present(sc Swapchain, image ImageIndex, wait Semaphore) (Status, error) {
	d.event("present")
	sem := wait.(*fakeSemaphore)
	if !sem.signaled {
		d.violate("present waits on a semaphore nobody signaled")
	}
	sem.signaled = false
	status := StatusSuccess
	if len(d.presentStatus) > 0 {
		status, d.presentStatus = d.presentStatus[0], d.presentStatus[1:]
	}
	if d.onPresent != nil {
		d.onPresent()
	}
	return status, nil
}

func (d *fakeDevice) WaitIdle() error {
	d.event("wait-idle")
	for f := range d.pending {
		f.complete()
	}
	return nil
}

type fakeSurface struct {
	w, h    int
	support SurfaceSupport
	waits   int
	onWait  func()
	closed  bool
}

func newFakeSurface(minImages uint32) *fakeSurface {
	return &fakeSurface{
		w: 800, h: 600,
		support: SurfaceSupport{
			Capabilities: SurfaceCapabilities{
				MinImageCount:  minImages,
				MaxImageCount:  8,
				CurrentExtent:  Extent{Width: undefinedExtent, Height: undefinedExtent},
				MinImageExtent: Extent{Width: 1, Height: 1},
				MaxImageExtent: Extent{Width: 4096, Height: 4096},
			},
			Formats:      []SurfaceFormat{{Format: FormatB8G8R8A8Unorm}, {Format: FormatB8G8R8A8Srgb}},
			PresentModes: []PresentMode{PresentModeFifo, PresentModeMailbox},
		},
	}
}

func (s *fakeSurface) FramebufferExtent() (int, int)    { return s.w, s.h }
func (s *fakeSurface) Support() (SurfaceSupport, error) { return s.support, nil }
func (s *fakeSurface) ShouldClose() bool                { return s.closed }

func (s *fakeSurface) WaitEvents() {
	s.waits++
	if s.onWait != nil {
		s.onWait()
	}
}

// fakeRenderer draws two objects and checks that per-image uniforms are
// only written while no in-flight work reads them.
type fakeRenderer struct {
	dev         *fakeDevice
	tag         string
	prepared    []Generation
	released    int
	failPrepare error
}

func (r *fakeRenderer) Prepare(gen Generation) error {
	r.dev.event("%s.prepare", r.tag)
	if r.failPrepare != nil {
		return r.failPrepare
	}
	r.prepared = append(r.prepared, gen)
	return nil
}

func (r *fakeRenderer) NewFramebuffer(view ImageView, extent Extent) (Framebuffer, error) {
	return &fakeFramebuffer{fakeObject: r.dev.object("framebuffer"), view: view.(*fakeView), extent: extent}, nil
}

func (r *fakeRenderer) Update(i ImageIndex) error {
	r.dev.event("%s.update", r.tag)
	if r.dev.imageBusy(int(i)) {
		r.dev.violate("%s buffers of image %d written while in flight", r.tag, i)
	}
	return nil
}

func (r *fakeRenderer) Draw(cmd CommandBuffer, i ImageIndex) error {
	cb := cmd.(*fakeCommandBuffer)
	if r.tag == "overlay" {
		cb.record("draw:hud")
		return nil
	}
	cb.record("draw:cube")
	cb.record("draw:floor")
	return nil
}

func (r *fakeRenderer) Release() {
	r.dev.event("%s.release", r.tag)
	r.released++
}

type harness struct {
	dev     *fakeDevice
	surface *fakeSurface
	scene   *fakeRenderer
	hud     *fakeRenderer
	engine  *Engine
	states  []State
}

func newHarness(t *testing.T, framesInFlight int, minImages uint32) *harness {
	t.Helper()
	h := &harness{dev: newFakeDevice(), surface: newFakeSurface(minImages)}
	h.scene = &fakeRenderer{dev: h.dev, tag: "renderer"}
	h.hud = &fakeRenderer{dev: h.dev, tag: "overlay"}
	cfg := DefaultConfig()
	cfg.FramesInFlight = framesInFlight
	e, err := NewEngine(cfg, h.surface, h.dev, h.scene, h.hud)
	require.NoError(t, err)
	e.onState = func(_, to State) { h.states = append(h.states, to) }
	h.engine = e
	h.dev.events = nil
	return h
}

func (h *harness) requireClean(t *testing.T) {
	t.Helper()
	require.Empty(t, h.dev.violations)
	require.LessOrEqual(t, h.dev.maxPending, h.engine.cfg.FramesInFlight)
}

func count(events []string, name string) int {
	n := 0
	for _, e := range events {
		if e == name {
			n++
		}
	}
	return n
}
