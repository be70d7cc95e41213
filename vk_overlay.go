package main

import (
	"errors"
	"fmt"
	"unsafe"

	"github.com/vulkan-go/vulkan"

	"kubeframe/internal/frame"
	"kubeframe/internal/hud"
)

const (
	overlayVertShader  = "overlay_vert.spv"
	overlayFragShader  = "overlay_frag.spv"
	maxOverlayVertices = 6 * 4096
	overlayScale       = 2
)

// hudOverlay draws the stats text on top of the scene. Each image has
// its own vertex and indirect buffers.
type hudOverlay struct {
	ctx       *vulkanContext
	scene     *sceneRenderer
	shaderDir string
	info      func() hud.Info

	gen      frame.Generation
	layout   vulkan.PipelineLayout
	pipeline vulkan.Pipeline
	vertices []gpuBuffer
	draws    []gpuBuffer
}

func newHUDOverlay(ctx *vulkanContext, scene *sceneRenderer, shaderDir string, info func() hud.Info) *hudOverlay {
	return &hudOverlay{ctx: ctx, scene: scene, shaderDir: shaderDir, info: info}
}

// Prepare runs after the scene renderer's, so its render pass exists.
func (o *hudOverlay) Prepare(gen frame.Generation) error {
	if o.scene.renderPass == vulkan.RenderPass(vulkan.NullHandle) {
		return errors.New("overlay prepared before scene render pass")
	}
	o.gen = gen

	var vertex hud.Vertex
	layout, pipeline, err := o.ctx.createPipeline(o.shaderDir, o.scene.renderPass, pipelineDesc{
		vertShader: overlayVertShader,
		fragShader: overlayFragShader,
		stride:     uint32(unsafe.Sizeof(vertex)),
		attributes: []vulkan.VertexInputAttributeDescription{
			{Location: 0, Binding: 0, Format: vulkan.FormatR32g32Sfloat, Offset: uint32(unsafe.Offsetof(vertex.Pos))},
			{Location: 1, Binding: 0, Format: vulkan.FormatR32g32b32Sfloat, Offset: uint32(unsafe.Offsetof(vertex.Color))},
		},
		cull: vulkan.CullModeNone,
	})
	if err != nil {
		return fmt.Errorf("overlay: %w", err)
	}
	o.layout, o.pipeline = layout, pipeline

	hostFlags := vulkan.MemoryPropertyHostVisibleBit | vulkan.MemoryPropertyHostCoherentBit
	vertexSize := vulkan.DeviceSize(maxOverlayVertices) * vulkan.DeviceSize(unsafe.Sizeof(vertex))
	drawSize := vulkan.DeviceSize(unsafe.Sizeof(vulkan.DrawIndirectCommand{}))
	for i := 0; i < gen.ImageCount; i++ {
		vb, err := o.ctx.createBuffer(vertexSize, vulkan.BufferUsageFlags(vulkan.BufferUsageVertexBufferBit), hostFlags)
		if err != nil {
			return fmt.Errorf("overlay vertex buffer %d: %w", i, err)
		}
		o.vertices = append(o.vertices, vb)
		db, err := o.ctx.createBuffer(drawSize, vulkan.BufferUsageFlags(vulkan.BufferUsageIndirectBufferBit), hostFlags)
		if err != nil {
			return fmt.Errorf("overlay indirect buffer %d: %w", i, err)
		}
		o.draws = append(o.draws, db)
	}
	return nil
}

// Update lays out the current stats into image i's buffers.
func (o *hudOverlay) Update(i frame.ImageIndex) error {
	if int(i) >= len(o.vertices) {
		return fmt.Errorf("overlay buffer %d out of range", i)
	}
	info := o.info()
	info.Width, info.Height = o.gen.Extent.Width, o.gen.Extent.Height
	info.Images = o.gen.ImageCount
	info.PresentMode = o.gen.PresentMode.String()
	info.MSAASamples = o.ctx.sampleCount

	verts := hud.Layout(hud.Lines(info), info.Width, info.Height, overlayScale, maxOverlayVertices)
	if err := o.ctx.write(o.vertices[i], asBytes(verts)); err != nil {
		return fmt.Errorf("overlay vertices: %w", err)
	}
	draw := vulkan.DrawIndirectCommand{
		VertexCount:   uint32(len(verts)),
		InstanceCount: 1,
	}
	if err := o.ctx.write(o.draws[i], unsafe.Slice((*byte)(unsafe.Pointer(&draw)), unsafe.Sizeof(draw))); err != nil {
		return fmt.Errorf("overlay draw: %w", err)
	}
	return nil
}

func (o *hudOverlay) Draw(cmd frame.CommandBuffer, i frame.ImageIndex) error {
	cb, err := commandHandle(cmd)
	if err != nil {
		return err
	}
	vulkan.CmdBindPipeline(cb, vulkan.PipelineBindPointGraphics, o.pipeline)
	vulkan.CmdBindVertexBuffers(cb, 0, 1, []vulkan.Buffer{o.vertices[i].buffer}, []vulkan.DeviceSize{0})
	vulkan.CmdDrawIndirect(cb, o.draws[i].buffer, 0, 1, uint32(unsafe.Sizeof(vulkan.DrawIndirectCommand{})))
	return nil
}

func (o *hudOverlay) Release() {
	for i := range o.vertices {
		o.ctx.destroyBuffer(&o.vertices[i])
	}
	for i := range o.draws {
		o.ctx.destroyBuffer(&o.draws[i])
	}
	o.vertices, o.draws = nil, nil
	o.ctx.destroyPipeline(&o.layout, &o.pipeline)
}
