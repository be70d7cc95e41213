package frame

import (
	"fmt"
	"log/slog"
)

// Preferences are the caller's wishes for a new swapchain. The surface may
// not honour them; see ChooseSurfaceFormat and ChoosePresentMode.
type Preferences struct {
	Format      SurfaceFormat
	PresentMode PresentMode
}

// Chain is one swapchain generation together with a view per image.
type Chain struct {
	handle Swapchain
	views  []ImageView
	gen    Generation
}

// CreateChain queries the surface, resolves format, present mode, extent
// and image count, then creates the swapchain and its image views. On error
// nothing created so far is left alive.
func CreateChain(surface Surface, device Device, prefs Preferences, preferred Extent) (*Chain, error) {
	support, err := surface.Support()
	if err != nil {
		return nil, deviceErr("query surface support", err)
	}
	if len(support.Formats) == 0 {
		return nil, deviceErr("create swapchain", ErrNoSurfaceFormats)
	}
	if len(support.PresentModes) == 0 {
		return nil, deviceErr("create swapchain", ErrNoPresentModes)
	}

	caps := support.Capabilities
	info := SwapchainInfo{
		Format:        ChooseSurfaceFormat(support.Formats, prefs.Format),
		PresentMode:   ChoosePresentMode(support.PresentModes, prefs.PresentMode),
		Extent:        ChooseExtent(caps, preferred),
		MinImageCount: ChooseImageCount(caps),
		Transform:     caps.CurrentTransform,
	}
	handle, err := device.CreateSwapchain(info)
	if err != nil {
		return nil, deviceErr("create swapchain", err)
	}

	c := &Chain{
		handle: handle,
		gen: Generation{
			Format:      info.Format,
			PresentMode: info.PresentMode,
			Extent:      info.Extent,
			ImageCount:  handle.ImageCount(),
			Transform:   info.Transform,
		},
	}
	for i := 0; i < c.gen.ImageCount; i++ {
		view, err := handle.CreateView(ImageIndex(i))
		if err != nil {
			c.Destroy()
			return nil, deviceErr(fmt.Sprintf("create image view %d", i), err)
		}
		c.views = append(c.views, view)
	}
	Logger().Info("swapchain created",
		slog.String("format", info.Format.Format.String()),
		slog.String("present_mode", info.PresentMode.String()),
		slog.String("extent", info.Extent.String()),
		slog.Int("images", c.gen.ImageCount))
	return c, nil
}

// Destroy releases the views and then the swapchain. Safe to call twice.
func (c *Chain) Destroy() {
	for _, v := range c.views {
		v.Destroy()
	}
	c.views = nil
	if c.handle != nil {
		c.handle.Destroy()
		c.handle = nil
	}
}

func (c *Chain) Swapchain() Swapchain   { return c.handle }
func (c *Chain) Views() []ImageView     { return c.views }
func (c *Chain) Generation() Generation { return c.gen }

// ChooseSurfaceFormat returns want when offered, else the first entry. A
// single undefined entry means the surface accepts anything.
func ChooseSurfaceFormat(available []SurfaceFormat, want SurfaceFormat) SurfaceFormat {
	if len(available) == 1 && available[0].Format == FormatUndefined {
		return want
	}
	for _, f := range available {
		if f == want {
			return f
		}
	}
	return available[0]
}

// ChoosePresentMode returns want when offered. FIFO is guaranteed to exist
// and is the fallback.
func ChoosePresentMode(available []PresentMode, want PresentMode) PresentMode {
	for _, m := range available {
		if m == want {
			return m
		}
	}
	return PresentModeFifo
}

// ChooseExtent uses the surface's current extent when it is defined,
// otherwise clamps the preferred extent per dimension into the supported
// range.
func ChooseExtent(caps SurfaceCapabilities, preferred Extent) Extent {
	if caps.CurrentExtent.Width != undefinedExtent {
		return caps.CurrentExtent
	}
	return Extent{
		Width:  clamp(preferred.Width, caps.MinImageExtent.Width, caps.MaxImageExtent.Width),
		Height: clamp(preferred.Height, caps.MinImageExtent.Height, caps.MaxImageExtent.Height),
	}
}

// ChooseImageCount asks for one image above the minimum, bounded by the
// maximum when the surface has one.
func ChooseImageCount(caps SurfaceCapabilities) uint32 {
	n := caps.MinImageCount + 1
	if caps.MaxImageCount > 0 && n > caps.MaxImageCount {
		n = caps.MaxImageCount
	}
	return n
}

func clamp(v, lo, hi uint32) uint32 {
	return max(lo, min(v, hi))
}
