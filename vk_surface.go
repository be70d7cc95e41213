package main

import (
	"github.com/vulkan-go/glfw/v3.3/glfw"
	"github.com/vulkan-go/vulkan"

	"kubeframe/internal/frame"
)

// glfwSurface exposes the window and its Vulkan surface to the engine.
type glfwSurface struct {
	window *glfw.Window
	ctx    *vulkanContext
}

func (s *glfwSurface) FramebufferExtent() (int, int) {
	return s.window.GetFramebufferSize()
}

func (s *glfwSurface) WaitEvents() {
	glfw.WaitEvents()
}

// ShouldClose lets a minimised wait end when the window is closed.
func (s *glfwSurface) ShouldClose() bool {
	return s.window.ShouldClose()
}

func (s *glfwSurface) Support() (frame.SurfaceSupport, error) {
	raw, err := s.ctx.querySwapchainSupport(s.ctx.physicalDevice)
	if err != nil {
		return frame.SurfaceSupport{}, err
	}
	caps := raw.capabilities
	support := frame.SurfaceSupport{
		Capabilities: frame.SurfaceCapabilities{
			MinImageCount:    caps.MinImageCount,
			MaxImageCount:    caps.MaxImageCount,
			CurrentExtent:    extent(caps.CurrentExtent),
			MinImageExtent:   extent(caps.MinImageExtent),
			MaxImageExtent:   extent(caps.MaxImageExtent),
			CurrentTransform: uint32(caps.CurrentTransform),
		},
	}
	for _, f := range raw.formats {
		support.Formats = append(support.Formats, frame.SurfaceFormat{
			Format:     frame.Format(f.Format),
			ColorSpace: frame.ColorSpace(f.ColorSpace),
		})
	}
	for _, m := range raw.presentModes {
		support.PresentModes = append(support.PresentModes, frame.PresentMode(m))
	}
	return support, nil
}

func extent(e vulkan.Extent2D) frame.Extent {
	return frame.Extent{Width: e.Width, Height: e.Height}
}
