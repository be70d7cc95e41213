package main

import (
	"fmt"
	"math/bits"

	"github.com/vulkan-go/vulkan"

	"kubeframe/internal/asset"
)

const textureFormat = vulkan.FormatR8g8b8a8Srgb

type gpuTexture struct {
	image     vulkan.Image
	memory    vulkan.DeviceMemory
	view      vulkan.ImageView
	mipLevels uint32
}

// mipLevels is the length of the full chain down to 1x1.
func mipLevels(width, height uint32) uint32 {
	return uint32(bits.Len32(max(width, height, 1)))
}

// uploadTexture copies tex through a staging buffer into a device-local
// image and fills its mip chain with blits. Formats without linear blit
// support get a single level.
func (c *vulkanContext) uploadTexture(tex *asset.Texture) (gpuTexture, error) {
	stage, err := c.createHostBuffer(tex.Pixels, vulkan.BufferUsageFlags(vulkan.BufferUsageTransferSrcBit))
	if err != nil {
		return gpuTexture{}, fmt.Errorf("texture %s: staging buffer: %w", tex.Name, err)
	}
	defer c.destroyBuffer(&stage)

	levels := uint32(1)
	if c.linearBlitSupported(textureFormat) {
		levels = mipLevels(tex.Width, tex.Height)
	}
	image, memory, err := c.createImage(imageDesc{
		width:     tex.Width,
		height:    tex.Height,
		format:    textureFormat,
		mipLevels: levels,
		usage:     vulkan.ImageUsageFlags(vulkan.ImageUsageTransferSrcBit | vulkan.ImageUsageTransferDstBit | vulkan.ImageUsageSampledBit),
	}, vulkan.MemoryPropertyDeviceLocalBit)
	if err != nil {
		return gpuTexture{}, fmt.Errorf("texture %s: %w", tex.Name, err)
	}
	t := gpuTexture{image: image, memory: memory, mipLevels: levels}

	err = c.oneShot(func(cb vulkan.CommandBuffer) {
		transitionImageLayout(cb, image, 0, levels, vulkan.ImageLayoutUndefined, vulkan.ImageLayoutTransferDstOptimal)
		copyBufferToImage(cb, stage.buffer, image, tex.Width, tex.Height)
		generateMipmaps(cb, image, tex.Width, tex.Height, levels)
	})
	if err != nil {
		c.destroyTexture(&t)
		return gpuTexture{}, fmt.Errorf("texture %s: %w", tex.Name, err)
	}

	t.view, err = c.createImageView(image, textureFormat, vulkan.ImageAspectFlags(vulkan.ImageAspectColorBit), levels)
	if err != nil {
		c.destroyTexture(&t)
		return gpuTexture{}, fmt.Errorf("texture %s: %w", tex.Name, err)
	}
	return t, nil
}

// generateMipmaps expects every level in TransferDstOptimal with level 0
// filled. Each level is blitted from the one above, then moved to
// ShaderReadOnlyOptimal once nothing reads from it.
func generateMipmaps(cb vulkan.CommandBuffer, image vulkan.Image, width, height, levels uint32) {
	w, h := int32(width), int32(height)
	for level := uint32(1); level < levels; level++ {
		transitionImageLayout(cb, image, level-1, 1, vulkan.ImageLayoutTransferDstOptimal, vulkan.ImageLayoutTransferSrcOptimal)

		nw, nh := max(w/2, 1), max(h/2, 1)
		blit := vulkan.ImageBlit{
			SrcSubresource: vulkan.ImageSubresourceLayers{
				AspectMask: vulkan.ImageAspectFlags(vulkan.ImageAspectColorBit),
				MipLevel:   level - 1,
				LayerCount: 1,
			},
			SrcOffsets: [2]vulkan.Offset3D{{}, {X: w, Y: h, Z: 1}},
			DstSubresource: vulkan.ImageSubresourceLayers{
				AspectMask: vulkan.ImageAspectFlags(vulkan.ImageAspectColorBit),
				MipLevel:   level,
				LayerCount: 1,
			},
			DstOffsets: [2]vulkan.Offset3D{{}, {X: nw, Y: nh, Z: 1}},
		}
		vulkan.CmdBlitImage(cb, image, vulkan.ImageLayoutTransferSrcOptimal, image, vulkan.ImageLayoutTransferDstOptimal,
			1, []vulkan.ImageBlit{blit}, vulkan.FilterLinear)

		transitionImageLayout(cb, image, level-1, 1, vulkan.ImageLayoutTransferSrcOptimal, vulkan.ImageLayoutShaderReadOnlyOptimal)
		w, h = nw, nh
	}
	transitionImageLayout(cb, image, levels-1, 1, vulkan.ImageLayoutTransferDstOptimal, vulkan.ImageLayoutShaderReadOnlyOptimal)
}

type layoutAccess struct {
	access vulkan.AccessFlagBits
	stage  vulkan.PipelineStageFlagBits
}

var layoutAccesses = map[vulkan.ImageLayout]layoutAccess{
	vulkan.ImageLayoutUndefined:             {0, vulkan.PipelineStageTopOfPipeBit},
	vulkan.ImageLayoutTransferDstOptimal:    {vulkan.AccessTransferWriteBit, vulkan.PipelineStageTransferBit},
	vulkan.ImageLayoutTransferSrcOptimal:    {vulkan.AccessTransferReadBit, vulkan.PipelineStageTransferBit},
	vulkan.ImageLayoutShaderReadOnlyOptimal: {vulkan.AccessShaderReadBit, vulkan.PipelineStageFragmentShaderBit},
}

// transitionImageLayout moves count mip levels starting at base between
// layouts.
func transitionImageLayout(cb vulkan.CommandBuffer, image vulkan.Image, base, count uint32, from, to vulkan.ImageLayout) {
	src, dst := layoutAccesses[from], layoutAccesses[to]
	barrier := vulkan.ImageMemoryBarrier{
		SType:               vulkan.StructureTypeImageMemoryBarrier,
		SrcAccessMask:       vulkan.AccessFlags(src.access),
		DstAccessMask:       vulkan.AccessFlags(dst.access),
		OldLayout:           from,
		NewLayout:           to,
		SrcQueueFamilyIndex: vulkan.QueueFamilyIgnored,
		DstQueueFamilyIndex: vulkan.QueueFamilyIgnored,
		Image:               image,
		SubresourceRange: vulkan.ImageSubresourceRange{
			AspectMask:   vulkan.ImageAspectFlags(vulkan.ImageAspectColorBit),
			BaseMipLevel: base,
			LevelCount:   count,
			LayerCount:   1,
		},
	}
	vulkan.CmdPipelineBarrier(cb, vulkan.PipelineStageFlags(src.stage), vulkan.PipelineStageFlags(dst.stage), 0,
		0, nil, 0, nil, 1, []vulkan.ImageMemoryBarrier{barrier})
}

func copyBufferToImage(cb vulkan.CommandBuffer, buffer vulkan.Buffer, image vulkan.Image, width, height uint32) {
	region := vulkan.BufferImageCopy{
		ImageSubresource: vulkan.ImageSubresourceLayers{
			AspectMask: vulkan.ImageAspectFlags(vulkan.ImageAspectColorBit),
			LayerCount: 1,
		},
		ImageExtent: vulkan.Extent3D{Width: width, Height: height, Depth: 1},
	}
	vulkan.CmdCopyBufferToImage(cb, buffer, image, vulkan.ImageLayoutTransferDstOptimal, 1, []vulkan.BufferImageCopy{region})
}

func (c *vulkanContext) destroyTexture(t *gpuTexture) {
	if t.view != vulkan.ImageView(vulkan.NullHandle) {
		vulkan.DestroyImageView(c.device, t.view, nil)
	}
	if t.image != vulkan.Image(vulkan.NullHandle) {
		vulkan.DestroyImage(c.device, t.image, nil)
	}
	if t.memory != vulkan.DeviceMemory(vulkan.NullHandle) {
		vulkan.FreeMemory(c.device, t.memory, nil)
	}
	*t = gpuTexture{}
}

// createSampler covers mip levels [0, maxLevels).
func (c *vulkanContext) createSampler(maxLevels uint32) (vulkan.Sampler, error) {
	samplerInfo := vulkan.SamplerCreateInfo{
		SType:                   vulkan.StructureTypeSamplerCreateInfo,
		MagFilter:               vulkan.FilterLinear,
		MinFilter:               vulkan.FilterLinear,
		AddressModeU:            vulkan.SamplerAddressModeRepeat,
		AddressModeV:            vulkan.SamplerAddressModeRepeat,
		AddressModeW:            vulkan.SamplerAddressModeRepeat,
		MaxAnisotropy:           1.0,
		BorderColor:             vulkan.BorderColorIntOpaqueBlack,
		UnnormalizedCoordinates: vulkan.False,
		CompareOp:               vulkan.CompareOpAlways,
		MipmapMode:              vulkan.SamplerMipmapModeLinear,
		MinLod:                  0,
		MaxLod:                  float32(max(maxLevels, 1)),
	}
	var sampler vulkan.Sampler
	if res := vulkan.CreateSampler(c.device, &samplerInfo, nil, &sampler); res != vulkan.Success {
		return vulkan.Sampler(vulkan.NullHandle), fmt.Errorf("create sampler: %w", vulkan.Error(res))
	}
	return sampler, nil
}
