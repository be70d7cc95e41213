package frame

import "fmt"

// slotSync is the synchronization set of one frame in flight.
type slotSync struct {
	imageAcquired  Semaphore
	renderComplete Semaphore
	inFlight       Fence
}

// imageUse records which slot last submitted work that reads or writes an
// image. fence is nil when no in-flight work touches the image.
type imageUse struct {
	fence Fence
	slot  SlotIndex
}

// Resources holds everything sized by the current generation: one
// framebuffer and command buffer per image, one sync set per slot, and the
// image-to-fence table.
type Resources struct {
	pool         CommandPool
	framebuffers []Framebuffer
	commands     []CommandBuffer
	slots        []slotSync
	images       []imageUse
}

func NewResources(pool CommandPool) *Resources {
	return &Resources{pool: pool}
}

// BuildFramebuffers creates one framebuffer per view, in image order.
func (r *Resources) BuildFramebuffers(views []ImageView, pass RenderPass, extent Extent) error {
	r.framebuffers = make([]Framebuffer, 0, len(views))
	for i, v := range views {
		fb, err := pass.NewFramebuffer(v, extent)
		if err != nil {
			return deviceErr(fmt.Sprintf("create framebuffer %d", i), err)
		}
		r.framebuffers = append(r.framebuffers, fb)
	}
	return nil
}

// AllocateCommandBuffers allocates one primary command buffer per image
// from the shared pool.
func (r *Resources) AllocateCommandBuffers(count int) error {
	cbs, err := r.pool.Allocate(count)
	if err != nil {
		return deviceErr("allocate command buffers", err)
	}
	if len(cbs) != count {
		r.pool.Free(cbs)
		return deviceErr("allocate command buffers", fmt.Errorf("got %d buffers, want %d", len(cbs), count))
	}
	r.commands = cbs
	return nil
}

// CreateSyncPrimitives creates two semaphores and a signaled fence per slot
// and an empty image table sized to imageCount.
func (r *Resources) CreateSyncPrimitives(device Device, slotCount, imageCount int) error {
	r.slots = make([]slotSync, 0, slotCount)
	for i := 0; i < slotCount; i++ {
		var s slotSync
		var err error
		if s.imageAcquired, err = device.CreateSemaphore(); err != nil {
			return deviceErr(fmt.Sprintf("create image-acquired semaphore %d", i), err)
		}
		if s.renderComplete, err = device.CreateSemaphore(); err != nil {
			s.imageAcquired.Destroy()
			return deviceErr(fmt.Sprintf("create render-complete semaphore %d", i), err)
		}
		// Signaled so the first wait on every slot returns at once.
		if s.inFlight, err = device.CreateFence(true); err != nil {
			s.imageAcquired.Destroy()
			s.renderComplete.Destroy()
			return deviceErr(fmt.Sprintf("create in-flight fence %d", i), err)
		}
		r.slots = append(r.slots, s)
	}
	r.images = make([]imageUse, imageCount)
	return nil
}

// Destroy releases everything in reverse creation order. The pool itself
// is not destroyed. Safe to call on a partially built or already destroyed
// set.
func (r *Resources) Destroy() {
	for _, s := range r.slots {
		s.inFlight.Destroy()
		s.renderComplete.Destroy()
		s.imageAcquired.Destroy()
	}
	r.slots = nil
	r.images = nil
	if len(r.commands) > 0 {
		r.pool.Free(r.commands)
	}
	r.commands = nil
	for _, fb := range r.framebuffers {
		fb.Destroy()
	}
	r.framebuffers = nil
}

func (r *Resources) SlotCount() int  { return len(r.slots) }
func (r *Resources) ImageCount() int { return len(r.images) }

func (r *Resources) slot(s SlotIndex) *slotSync {
	return &r.slots[s]
}

// owner returns the slot fence still responsible for image i, if any.
func (r *Resources) owner(i ImageIndex) (Fence, SlotIndex, bool) {
	u := r.images[i]
	return u.fence, u.slot, u.fence != nil
}

func (r *Resources) claim(i ImageIndex, s SlotIndex) {
	r.images[i] = imageUse{fence: r.slots[s].inFlight, slot: s}
}

// release forgets every image claimed by slot s. Called right after that
// slot's fence has been waited, so the work it guarded is complete.
func (r *Resources) release(s SlotIndex) {
	for i := range r.images {
		if r.images[i].fence != nil && r.images[i].slot == s {
			r.images[i] = imageUse{}
		}
	}
}
