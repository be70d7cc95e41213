package main

import (
	"fmt"

	"github.com/vulkan-go/vulkan"

	"kubeframe/internal/frame"
)

// vkDevice maps the frame engine's device calls onto the logical device.
type vkDevice struct {
	ctx *vulkanContext
}

func (d *vkDevice) CreateSwapchain(info frame.SwapchainInfo) (frame.Swapchain, error) {
	c := d.ctx
	createInfo := vulkan.SwapchainCreateInfo{
		SType:            vulkan.StructureTypeSwapchainCreateInfo,
		Surface:          c.surface,
		MinImageCount:    info.MinImageCount,
		ImageFormat:      vulkan.Format(info.Format.Format),
		ImageColorSpace:  vulkan.ColorSpace(info.Format.ColorSpace),
		ImageExtent:      vulkan.Extent2D{Width: info.Extent.Width, Height: info.Extent.Height},
		ImageArrayLayers: 1,
		ImageUsage:       vulkan.ImageUsageFlags(vulkan.ImageUsageColorAttachmentBit),
		PreTransform:     vulkan.SurfaceTransformFlagBits(info.Transform),
		CompositeAlpha:   vulkan.CompositeAlphaOpaqueBit,
		PresentMode:      vulkan.PresentMode(info.PresentMode),
		Clipped:          vulkan.True,
		OldSwapchain:     vulkan.Swapchain(vulkan.NullHandle),
	}
	if c.queues.graphicsFamily != c.queues.presentFamily {
		createInfo.ImageSharingMode = vulkan.SharingModeConcurrent
		createInfo.QueueFamilyIndexCount = 2
		createInfo.PQueueFamilyIndices = []uint32{c.queues.graphicsFamily, c.queues.presentFamily}
	} else {
		createInfo.ImageSharingMode = vulkan.SharingModeExclusive
	}

	var handle vulkan.Swapchain
	if res := vulkan.CreateSwapchain(c.device, &createInfo, nil, &handle); res != vulkan.Success {
		return nil, vulkan.Error(res)
	}

	var count uint32
	if res := vulkan.GetSwapchainImages(c.device, handle, &count, nil); res != vulkan.Success {
		vulkan.DestroySwapchain(c.device, handle, nil)
		return nil, fmt.Errorf("get swapchain image count: %w", vulkan.Error(res))
	}
	images := make([]vulkan.Image, count)
	if res := vulkan.GetSwapchainImages(c.device, handle, &count, images); res != vulkan.Success {
		vulkan.DestroySwapchain(c.device, handle, nil)
		return nil, fmt.Errorf("get swapchain images: %w", vulkan.Error(res))
	}
	return &vkSwapchain{
		ctx:    c,
		handle: handle,
		images: images,
		format: vulkan.Format(info.Format.Format),
	}, nil
}

func (d *vkDevice) CreateSemaphore() (frame.Semaphore, error) {
	info := vulkan.SemaphoreCreateInfo{SType: vulkan.StructureTypeSemaphoreCreateInfo}
	var sem vulkan.Semaphore
	if res := vulkan.CreateSemaphore(d.ctx.device, &info, nil, &sem); res != vulkan.Success {
		return nil, vulkan.Error(res)
	}
	return &vkSemaphore{ctx: d.ctx, handle: sem}, nil
}

func (d *vkDevice) CreateFence(signaled bool) (frame.Fence, error) {
	info := vulkan.FenceCreateInfo{SType: vulkan.StructureTypeFenceCreateInfo}
	if signaled {
		info.Flags = vulkan.FenceCreateFlags(vulkan.FenceCreateSignaledBit)
	}
	var fence vulkan.Fence
	if res := vulkan.CreateFence(d.ctx.device, &info, nil, &fence); res != vulkan.Success {
		return nil, vulkan.Error(res)
	}
	return &vkFence{ctx: d.ctx, handle: fence}, nil
}

func (d *vkDevice) CreateCommandPool() (frame.CommandPool, error) {
	poolInfo := vulkan.CommandPoolCreateInfo{
		SType:            vulkan.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: d.ctx.queues.graphicsFamily,
		Flags:            vulkan.CommandPoolCreateFlags(vulkan.CommandPoolCreateResetCommandBufferBit),
	}
	var pool vulkan.CommandPool
	if res := vulkan.CreateCommandPool(d.ctx.device, &poolInfo, nil, &pool); res != vulkan.Success {
		return nil, vulkan.Error(res)
	}
	return &vkCommandPool{ctx: d.ctx, handle: pool}, nil
}

func (d *vkDevice) Submit(s frame.Submission) error {
	submitInfo := vulkan.SubmitInfo{
		SType:                vulkan.StructureTypeSubmitInfo,
		WaitSemaphoreCount:   1,
		PWaitSemaphores:      []vulkan.Semaphore{s.Wait.(*vkSemaphore).handle},
		PWaitDstStageMask:    []vulkan.PipelineStageFlags{vulkan.PipelineStageFlags(s.WaitStage)},
		CommandBufferCount:   1,
		PCommandBuffers:      []vulkan.CommandBuffer{s.Commands.(*vkCommandBuffer).handle},
		SignalSemaphoreCount: 1,
		PSignalSemaphores:    []vulkan.Semaphore{s.Signal.(*vkSemaphore).handle},
	}
	res := vulkan.QueueSubmit(d.ctx.graphicsQueue, 1, []vulkan.SubmitInfo{submitInfo}, s.Fence.(*vkFence).handle)
	if res != vulkan.Success {
		return vulkan.Error(res)
	}
	return nil
}

func (d *vkDevice) Present(sc frame.Swapchain, image frame.ImageIndex, wait frame.Semaphore) (frame.Status, error) {
	presentInfo := vulkan.PresentInfo{
		SType:              vulkan.StructureTypePresentInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vulkan.Semaphore{wait.(*vkSemaphore).handle},
		SwapchainCount:     1,
		PSwapchains:        []vulkan.Swapchain{sc.(*vkSwapchain).handle},
		PImageIndices:      []uint32{uint32(image)},
	}
	return status(vulkan.QueuePresent(d.ctx.presentQueue, &presentInfo))
}

func (d *vkDevice) WaitIdle() error {
	if res := vulkan.DeviceWaitIdle(d.ctx.device); res != vulkan.Success {
		return vulkan.Error(res)
	}
	return nil
}

// status separates the advisory results of acquire and present from real
// failures.
func status(res vulkan.Result) (frame.Status, error) {
	switch res {
	case vulkan.Success:
		return frame.StatusSuccess, nil
	case vulkan.Suboptimal:
		return frame.StatusSuboptimal, nil
	case vulkan.ErrorOutOfDate:
		return frame.StatusOutOfDate, nil
	}
	return frame.StatusSuccess, vulkan.Error(res)
}

type vkSwapchain struct {
	ctx    *vulkanContext
	handle vulkan.Swapchain
	images []vulkan.Image
	format vulkan.Format
}

func (s *vkSwapchain) ImageCount() int { return len(s.images) }

func (s *vkSwapchain) CreateView(i frame.ImageIndex) (frame.ImageView, error) {
	if int(i) >= len(s.images) {
		return nil, fmt.Errorf("image %d out of range (%d images)", i, len(s.images))
	}
	view, err := s.ctx.createImageView(s.images[i], s.format, vulkan.ImageAspectFlags(vulkan.ImageAspectColorBit), 1)
	if err != nil {
		return nil, err
	}
	return &vkImageView{ctx: s.ctx, handle: view}, nil
}

func (s *vkSwapchain) AcquireNextImage(signal frame.Semaphore) (frame.ImageIndex, frame.Status, error) {
	var index uint32
	res := vulkan.AcquireNextImage(s.ctx.device, s.handle, vulkan.MaxUint64, signal.(*vkSemaphore).handle, vulkan.Fence(vulkan.NullHandle), &index)
	st, err := status(res)
	return frame.ImageIndex(index), st, err
}

func (s *vkSwapchain) Destroy() {
	if s.handle == vulkan.Swapchain(vulkan.NullHandle) {
		return
	}
	vulkan.DestroySwapchain(s.ctx.device, s.handle, nil)
	s.handle = vulkan.Swapchain(vulkan.NullHandle)
	s.images = nil
}

type vkSemaphore struct {
	ctx    *vulkanContext
	handle vulkan.Semaphore
}

func (s *vkSemaphore) Destroy() {
	if s.handle != vulkan.Semaphore(vulkan.NullHandle) {
		vulkan.DestroySemaphore(s.ctx.device, s.handle, nil)
		s.handle = vulkan.Semaphore(vulkan.NullHandle)
	}
}

type vkFence struct {
	ctx    *vulkanContext
	handle vulkan.Fence
}

func (f *vkFence) Wait() error {
	res := vulkan.WaitForFences(f.ctx.device, 1, []vulkan.Fence{f.handle}, vulkan.True, vulkan.MaxUint64)
	if res != vulkan.Success {
		return vulkan.Error(res)
	}
	return nil
}

func (f *vkFence) Reset() error {
	if res := vulkan.ResetFences(f.ctx.device, 1, []vulkan.Fence{f.handle}); res != vulkan.Success {
		return vulkan.Error(res)
	}
	return nil
}

func (f *vkFence) Destroy() {
	if f.handle != vulkan.Fence(vulkan.NullHandle) {
		vulkan.DestroyFence(f.ctx.device, f.handle, nil)
		f.handle = vulkan.Fence(vulkan.NullHandle)
	}
}

type vkImageView struct {
	ctx    *vulkanContext
	handle vulkan.ImageView
}

func (v *vkImageView) Destroy() {
	if v.handle != vulkan.ImageView(vulkan.NullHandle) {
		vulkan.DestroyImageView(v.ctx.device, v.handle, nil)
		v.handle = vulkan.ImageView(vulkan.NullHandle)
	}
}

type vkFramebuffer struct {
	ctx    *vulkanContext
	handle vulkan.Framebuffer
	pass   vulkan.RenderPass
}

func (f *vkFramebuffer) Destroy() {
	if f.handle != vulkan.Framebuffer(vulkan.NullHandle) {
		vulkan.DestroyFramebuffer(f.ctx.device, f.handle, nil)
		f.handle = vulkan.Framebuffer(vulkan.NullHandle)
	}
}

type vkCommandPool struct {
	ctx    *vulkanContext
	handle vulkan.CommandPool
}

func (p *vkCommandPool) Allocate(n int) ([]frame.CommandBuffer, error) {
	allocInfo := vulkan.CommandBufferAllocateInfo{
		SType:              vulkan.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        p.handle,
		Level:              vulkan.CommandBufferLevelPrimary,
		CommandBufferCount: uint32(n),
	}
	handles := make([]vulkan.CommandBuffer, n)
	if res := vulkan.AllocateCommandBuffers(p.ctx.device, &allocInfo, handles); res != vulkan.Success {
		return nil, vulkan.Error(res)
	}
	cbs := make([]frame.CommandBuffer, n)
	for i, h := range handles {
		cbs[i] = &vkCommandBuffer{ctx: p.ctx, handle: h}
	}
	return cbs, nil
}

func (p *vkCommandPool) Free(cbs []frame.CommandBuffer) {
	if len(cbs) == 0 {
		return
	}
	handles := make([]vulkan.CommandBuffer, len(cbs))
	for i, cb := range cbs {
		handles[i] = cb.(*vkCommandBuffer).handle
	}
	vulkan.FreeCommandBuffers(p.ctx.device, p.handle, uint32(len(handles)), handles)
}

func (p *vkCommandPool) Destroy() {
	if p.handle != vulkan.CommandPool(vulkan.NullHandle) {
		vulkan.DestroyCommandPool(p.ctx.device, p.handle, nil)
		p.handle = vulkan.CommandPool(vulkan.NullHandle)
	}
}

type vkCommandBuffer struct {
	ctx    *vulkanContext
	handle vulkan.CommandBuffer
}

func (cb *vkCommandBuffer) Reset() error {
	if res := vulkan.ResetCommandBuffer(cb.handle, 0); res != vulkan.Success {
		return vulkan.Error(res)
	}
	return nil
}

func (cb *vkCommandBuffer) Begin() error {
	beginInfo := vulkan.CommandBufferBeginInfo{SType: vulkan.StructureTypeCommandBufferBeginInfo}
	if res := vulkan.BeginCommandBuffer(cb.handle, &beginInfo); res != vulkan.Success {
		return vulkan.Error(res)
	}
	return nil
}

func (cb *vkCommandBuffer) BeginRenderPass(fb frame.Framebuffer, area frame.Extent, clear frame.ClearValues) {
	f := fb.(*vkFramebuffer)
	clearValues := []vulkan.ClearValue{
		vulkan.NewClearValue(clear.Color[:]),
		vulkan.NewClearDepthStencil(clear.Depth, clear.Stencil),
	}
	renderPassInfo := vulkan.RenderPassBeginInfo{
		SType:       vulkan.StructureTypeRenderPassBeginInfo,
		RenderPass:  f.pass,
		Framebuffer: f.handle,
		RenderArea: vulkan.Rect2D{
			Offset: vulkan.Offset2D{X: 0, Y: 0},
			Extent: vulkan.Extent2D{Width: area.Width, Height: area.Height},
		},
		ClearValueCount: uint32(len(clearValues)),
		PClearValues:    clearValues,
	}
	vulkan.CmdBeginRenderPass(cb.handle, &renderPassInfo, vulkan.SubpassContentsInline)

	viewport := vulkan.Viewport{
		Width:    float32(area.Width),
		Height:   float32(area.Height),
		MinDepth: 0,
		MaxDepth: 1,
	}
	scissor := vulkan.Rect2D{Extent: vulkan.Extent2D{Width: area.Width, Height: area.Height}}
	vulkan.CmdSetViewport(cb.handle, 0, 1, []vulkan.Viewport{viewport})
	vulkan.CmdSetScissor(cb.handle, 0, 1, []vulkan.Rect2D{scissor})
}

func (cb *vkCommandBuffer) EndRenderPass() {
	vulkan.CmdEndRenderPass(cb.handle)
}

func (cb *vkCommandBuffer) End() error {
	if res := vulkan.EndCommandBuffer(cb.handle); res != vulkan.Success {
		return vulkan.Error(res)
	}
	return nil
}

// commandHandle unwraps a command buffer handed back by the engine.
func commandHandle(cmd frame.CommandBuffer) (vulkan.CommandBuffer, error) {
	cb, ok := cmd.(*vkCommandBuffer)
	if !ok {
		return nil, fmt.Errorf("unexpected command buffer type %T", cmd)
	}
	return cb.handle, nil
}
