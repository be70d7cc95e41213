package frame

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var srgb = SurfaceFormat{Format: FormatB8G8R8A8Srgb, ColorSpace: ColorSpaceSrgbNonlinear}

func TestChooseSurfaceFormat(t *testing.T) {
	unorm := SurfaceFormat{Format: FormatB8G8R8A8Unorm}
	tests := []struct {
		name      string
		available []SurfaceFormat
		want      SurfaceFormat
	}{
		{name: "preferred present", available: []SurfaceFormat{unorm, srgb}, want: srgb},
		{name: "fallback to first", available: []SurfaceFormat{unorm, {Format: FormatR8G8B8A8Unorm}}, want: unorm},
		{name: "undefined accepts any", available: []SurfaceFormat{{Format: FormatUndefined}}, want: srgb},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ChooseSurfaceFormat(tt.available, srgb))
		})
	}
}

func TestChoosePresentMode(t *testing.T) {
	assert.Equal(t, PresentModeMailbox, ChoosePresentMode([]PresentMode{PresentModeFifo, PresentModeMailbox}, PresentModeMailbox))
	assert.Equal(t, PresentModeFifo, ChoosePresentMode([]PresentMode{PresentModeImmediate, PresentModeFifo}, PresentModeMailbox))
	assert.Equal(t, PresentModeImmediate, ChoosePresentMode([]PresentMode{PresentModeImmediate, PresentModeFifo}, PresentModeImmediate))
}

func TestChooseExtent(t *testing.T) {
	caps := SurfaceCapabilities{
		CurrentExtent:  Extent{Width: undefinedExtent, Height: undefinedExtent},
		MinImageExtent: Extent{Width: 100, Height: 50},
		MaxImageExtent: Extent{Width: 1920, Height: 1080},
	}
	assert.Equal(t, Extent{Width: 800, Height: 600}, ChooseExtent(caps, Extent{Width: 800, Height: 600}))
	assert.Equal(t, Extent{Width: 1920, Height: 50}, ChooseExtent(caps, Extent{Width: 5000, Height: 10}))
	assert.Equal(t, Extent{Width: 100, Height: 1080}, ChooseExtent(caps, Extent{Width: 1, Height: 2000}))

	caps.CurrentExtent = Extent{Width: 640, Height: 480}
	assert.Equal(t, Extent{Width: 640, Height: 480}, ChooseExtent(caps, Extent{Width: 800, Height: 600}))
}

func TestChooseImageCount(t *testing.T) {
	assert.Equal(t, uint32(3), ChooseImageCount(SurfaceCapabilities{MinImageCount: 2, MaxImageCount: 8}))
	assert.Equal(t, uint32(3), ChooseImageCount(SurfaceCapabilities{MinImageCount: 3, MaxImageCount: 3}))
	assert.Equal(t, uint32(5), ChooseImageCount(SurfaceCapabilities{MinImageCount: 4}))
}

func TestCreateChain(t *testing.T) {
	dev := newFakeDevice()
	surf := newFakeSurface(2)

	c, err := CreateChain(surf, dev, Preferences{Format: srgb, PresentMode: PresentModeMailbox}, Extent{Width: 800, Height: 600})
	require.NoError(t, err)

	gen := c.Generation()
	assert.Equal(t, srgb, gen.Format)
	assert.Equal(t, PresentModeMailbox, gen.PresentMode)
	assert.Equal(t, Extent{Width: 800, Height: 600}, gen.Extent)
	assert.Equal(t, 3, gen.ImageCount)
	assert.Len(t, c.Views(), 3)

	c.Destroy()
	c.Destroy()
	assert.Zero(t, dev.liveTotal())
	assert.Empty(t, dev.violations)
}

func TestCreateChainEmptySupport(t *testing.T) {
	surf := newFakeSurface(2)
	surf.support.Formats = nil
	_, err := CreateChain(surf, newFakeDevice(), Preferences{}, Extent{})
	assert.ErrorIs(t, err, ErrNoSurfaceFormats)

	surf = newFakeSurface(2)
	surf.support.PresentModes = nil
	_, err = CreateChain(surf, newFakeDevice(), Preferences{}, Extent{})
	assert.ErrorIs(t, err, ErrNoPresentModes)
}

type failingViews struct {
	*fakeSwapchain
	after int
}

func (s *failingViews) CreateView(i ImageIndex) (ImageView, error) {
	if int(i) >= s.after {
		return nil, errors.New("out of memory")
	}
	return s.fakeSwapchain.CreateView(i)
}

type failingViewDevice struct{ *fakeDevice }

func (d failingViewDevice) CreateSwapchain(info SwapchainInfo) (Swapchain, error) {
	sc, _ := d.fakeDevice.CreateSwapchain(info)
	return &failingViews{fakeSwapchain: sc.(*fakeSwapchain), after: 1}, nil
}

func TestCreateChainViewFailureCleansUp(t *testing.T) {
	dev := newFakeDevice()
	_, err := CreateChain(newFakeSurface(2), failingViewDevice{dev}, Preferences{Format: srgb}, Extent{Width: 10, Height: 10})

	var de *DeviceError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "create image view 1", de.Op)
	assert.Zero(t, dev.liveTotal(), "live objects: %v", dev.live)
}
