package frame

import (
	"fmt"
	"math"
	"strings"
)

// SlotIndex addresses the per-slot ring of synchronization primitives.
type SlotIndex int

// ImageIndex addresses a presentable image of the current generation.
type ImageIndex uint32

type Extent struct {
	Width  uint32
	Height uint32
}

func (e Extent) IsZero() bool {
	return e.Width == 0 || e.Height == 0
}

func (e Extent) String() string {
	return fmt.Sprintf("%dx%d", e.Width, e.Height)
}

// undefinedExtent in SurfaceCapabilities.CurrentExtent.Width means the
// surface size is decided by the swapchain.
const undefinedExtent = math.MaxUint32

// Format values match the Vulkan VkFormat enumerants.
type Format int32

const (
	FormatUndefined     Format = 0
	FormatR8G8B8A8Unorm Format = 37
	FormatR8G8B8A8Srgb  Format = 43
	FormatB8G8R8A8Unorm Format = 44
	FormatB8G8R8A8Srgb  Format = 50
)

func (f Format) String() string {
	switch f {
	case FormatUndefined:
		return "undefined"
	case FormatR8G8B8A8Unorm:
		return "rgba8-unorm"
	case FormatR8G8B8A8Srgb:
		return "rgba8-srgb"
	case FormatB8G8R8A8Unorm:
		return "bgra8-unorm"
	case FormatB8G8R8A8Srgb:
		return "bgra8-srgb"
	}
	return fmt.Sprintf("format(%d)", int32(f))
}

// ParseFormat accepts the names produced by Format.String.
func ParseFormat(s string) (Format, error) {
	for _, f := range []Format{FormatR8G8B8A8Unorm, FormatR8G8B8A8Srgb, FormatB8G8R8A8Unorm, FormatB8G8R8A8Srgb} {
		if strings.EqualFold(s, f.String()) {
			return f, nil
		}
	}
	return FormatUndefined, fmt.Errorf("unknown surface format %q", s)
}

// ColorSpace values match VkColorSpaceKHR.
type ColorSpace int32

const ColorSpaceSrgbNonlinear ColorSpace = 0

type SurfaceFormat struct {
	Format     Format
	ColorSpace ColorSpace
}

// PresentMode values match VkPresentModeKHR.
type PresentMode int32

const (
	PresentModeImmediate   PresentMode = 0
	PresentModeMailbox     PresentMode = 1
	PresentModeFifo        PresentMode = 2
	PresentModeFifoRelaxed PresentMode = 3
)

func (m PresentMode) String() string {
	switch m {
	case PresentModeImmediate:
		return "immediate"
	case PresentModeMailbox:
		return "mailbox"
	case PresentModeFifo:
		return "fifo"
	case PresentModeFifoRelaxed:
		return "fifo-relaxed"
	}
	return fmt.Sprintf("present-mode(%d)", int32(m))
}

func ParsePresentMode(s string) (PresentMode, error) {
	for _, m := range []PresentMode{PresentModeImmediate, PresentModeMailbox, PresentModeFifo, PresentModeFifoRelaxed} {
		if strings.EqualFold(s, m.String()) {
			return m, nil
		}
	}
	return PresentModeFifo, fmt.Errorf("unknown present mode %q", s)
}

type SurfaceCapabilities struct {
	MinImageCount uint32
	// MaxImageCount of zero means no upper bound.
	MaxImageCount    uint32
	CurrentExtent    Extent
	MinImageExtent   Extent
	MaxImageExtent   Extent
	CurrentTransform uint32
}

// SurfaceSupport is a live query of what a surface/device pairing offers.
type SurfaceSupport struct {
	Capabilities SurfaceCapabilities
	Formats      []SurfaceFormat
	PresentModes []PresentMode
}

// Status is the non-fatal outcome of an acquire or present call.
type Status int

const (
	StatusSuccess Status = iota
	StatusSuboptimal
	StatusOutOfDate
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusSuboptimal:
		return "suboptimal"
	case StatusOutOfDate:
		return "out of date"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// PipelineStage values match VkPipelineStageFlagBits.
type PipelineStage uint32

const StageColorAttachmentOutput PipelineStage = 0x00000400

type ClearValues struct {
	Color   [4]float32
	Depth   float32
	Stencil uint32
}

// Generation describes one complete swapchain configuration. All frame
// resources belong to exactly one generation and are rebuilt with it.
type Generation struct {
	Serial      uint64
	Format      SurfaceFormat
	PresentMode PresentMode
	Extent      Extent
	ImageCount  int
	Transform   uint32
}

func (g Generation) String() string {
	return fmt.Sprintf("gen %d: %s %s %s, %d images", g.Serial, g.Format.Format, g.Extent, g.PresentMode, g.ImageCount)
}
