package frame

// Surface is the window-system side of presentation.
type Surface interface {
	// FramebufferExtent is the current drawable size in pixels. A minimised
	// window reports zero in either dimension.
	FramebufferExtent() (width, height int)
	// WaitEvents blocks until the window system delivers an event.
	WaitEvents()
	Support() (SurfaceSupport, error)
}

// SwapchainInfo is the resolved configuration handed to the device.
type SwapchainInfo struct {
	Format        SurfaceFormat
	PresentMode   PresentMode
	Extent        Extent
	MinImageCount uint32
	Transform     uint32
}

type Device interface {
	CreateSwapchain(info SwapchainInfo) (Swapchain, error)
	CreateSemaphore() (Semaphore, error)
	CreateFence(signaled bool) (Fence, error)
	CreateCommandPool() (CommandPool, error)
	Submit(s Submission) error
	Present(sc Swapchain, image ImageIndex, wait Semaphore) (Status, error)
	WaitIdle() error
}

type Swapchain interface {
	ImageCount() int
	// CreateView returns a color view of image i in the swapchain format.
	CreateView(i ImageIndex) (ImageView, error)
	// AcquireNextImage blocks without timeout until an image is available
	// and arranges for signal to be signaled once it may be written.
	AcquireNextImage(signal Semaphore) (ImageIndex, Status, error)
	Destroy()
}

type Semaphore interface {
	Destroy()
}

type Fence interface {
	// Wait blocks without timeout until the fence is signaled.
	Wait() error
	Reset() error
	Destroy()
}

type ImageView interface {
	Destroy()
}

type Framebuffer interface {
	Destroy()
}

type CommandPool interface {
	Allocate(n int) ([]CommandBuffer, error)
	Free(cbs []CommandBuffer)
	Destroy()
}

type CommandBuffer interface {
	Reset() error
	Begin() error
	BeginRenderPass(fb Framebuffer, area Extent, clear ClearValues)
	EndRenderPass()
	End() error
}

// Submission is one queue submit: wait on Wait at WaitStage, execute
// Commands, then signal Signal and Fence.
type Submission struct {
	Commands  CommandBuffer
	Wait      Semaphore
	WaitStage PipelineStage
	Signal    Semaphore
	Fence     Fence
}

// RenderPass creates the framebuffers that bind an image view to the
// generation's attachments.
type RenderPass interface {
	NewFramebuffer(view ImageView, extent Extent) (Framebuffer, error)
}

// Renderer owns the generation-scoped scene state: render pass, depth
// attachment, pipeline and the per-image uniform buffers.
type Renderer interface {
	RenderPass
	Prepare(gen Generation) error
	// Update writes the uniform data of image i. Only called once the GPU
	// no longer reads image i's buffers.
	Update(i ImageIndex) error
	// Draw records the scene inside an active render pass.
	Draw(cmd CommandBuffer, i ImageIndex) error
	Release()
}

// Overlay records on top of the scene inside the same render pass.
type Overlay interface {
	Prepare(gen Generation) error
	Update(i ImageIndex) error
	Draw(cmd CommandBuffer, i ImageIndex) error
	Release()
}
