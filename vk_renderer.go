package main

import (
	"errors"
	"fmt"
	"time"
	"unsafe"

	mgl32 "github.com/go-gl/mathgl/mgl32"
	"github.com/vulkan-go/vulkan"

	"kubeframe/internal/asset"
	"kubeframe/internal/camera"
	"kubeframe/internal/frame"
)

const (
	sceneVertShader = "vert.spv"
	sceneFragShader = "frag.spv"
)

var spinAxis = mgl32.Vec3{1, 1, 1}.Normalize()

type uniformBufferObject struct {
	View mgl32.Mat4
	Proj mgl32.Mat4
}

type gpuMesh struct {
	vertices gpuBuffer
	indices  gpuBuffer
	count    uint32
}

type gpuObject struct {
	spec    asset.ObjectSpec
	mesh    gpuMesh
	texture gpuTexture
	set     vulkan.DescriptorSet
}

// sceneRenderer draws the loaded objects in order with one model matrix
// each, pushed as a vertex push constant.
type sceneRenderer struct {
	ctx       *vulkanContext
	shaderDir string
	camera    *camera.Camera
	start     time.Time

	// Live for the renderer's lifetime.
	objects       []gpuObject
	sampler       vulkan.Sampler
	frameLayout   vulkan.DescriptorSetLayout
	textureLayout vulkan.DescriptorSetLayout
	texturePool   vulkan.DescriptorPool

	// Rebuilt with every swapchain generation.
	gen            frame.Generation
	renderPass     vulkan.RenderPass
	color          gpuTexture
	depth          gpuTexture
	pipelineLayout vulkan.PipelineLayout
	pipeline       vulkan.Pipeline
	uniforms       []gpuBuffer
	framePool      vulkan.DescriptorPool
	frameSets      []vulkan.DescriptorSet
	models         []mgl32.Mat4
}

func newSceneRenderer(ctx *vulkanContext, shaderDir string, cam *camera.Camera, objects []asset.Object) (*sceneRenderer, error) {
	r := &sceneRenderer{
		ctx:       ctx,
		shaderDir: shaderDir,
		camera:    cam,
		start:     time.Now(),
		models:    make([]mgl32.Mat4, len(objects)),
	}
	if err := r.upload(objects); err != nil {
		r.Close()
		return nil, err
	}
	return r, nil
}

func (r *sceneRenderer) upload(objects []asset.Object) error {
	var err error
	if r.frameLayout, err = r.ctx.createSetLayout(vulkan.DescriptorTypeUniformBuffer, vulkan.ShaderStageVertexBit); err != nil {
		return err
	}
	if r.textureLayout, err = r.ctx.createSetLayout(vulkan.DescriptorTypeCombinedImageSampler, vulkan.ShaderStageFragmentBit); err != nil {
		return err
	}
	for _, obj := range objects {
		g := gpuObject{spec: obj.Spec}
		r.objects = append(r.objects, g)
		last := &r.objects[len(r.objects)-1]
		if last.mesh, err = r.ctx.uploadMesh(obj.Mesh); err != nil {
			return fmt.Errorf("object %s: %w", obj.Spec.Name, err)
		}
		if last.texture, err = r.ctx.uploadTexture(obj.Texture); err != nil {
			return fmt.Errorf("object %s: %w", obj.Spec.Name, err)
		}
	}
	levels := uint32(1)
	for _, obj := range r.objects {
		levels = max(levels, obj.texture.mipLevels)
	}
	if r.sampler, err = r.ctx.createSampler(levels); err != nil {
		return err
	}
	return r.createTextureSets()
}

func (c *vulkanContext) createSetLayout(kind vulkan.DescriptorType, stage vulkan.ShaderStageFlagBits) (vulkan.DescriptorSetLayout, error) {
	binding := vulkan.DescriptorSetLayoutBinding{
		Binding:         0,
		DescriptorType:  kind,
		DescriptorCount: 1,
		StageFlags:      vulkan.ShaderStageFlags(stage),
	}
	layoutInfo := vulkan.DescriptorSetLayoutCreateInfo{
		SType:        vulkan.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: 1,
		PBindings:    []vulkan.DescriptorSetLayoutBinding{binding},
	}
	var layout vulkan.DescriptorSetLayout
	if res := vulkan.CreateDescriptorSetLayout(c.device, &layoutInfo, nil, &layout); res != vulkan.Success {
		return vulkan.DescriptorSetLayout(vulkan.NullHandle), fmt.Errorf("create descriptor set layout: %w", vulkan.Error(res))
	}
	return layout, nil
}

// createDescriptorSets allocates count sets of one layout from a fresh pool.
func (c *vulkanContext) createDescriptorSets(kind vulkan.DescriptorType, layout vulkan.DescriptorSetLayout, count int) (vulkan.DescriptorPool, []vulkan.DescriptorSet, error) {
	nullPool := vulkan.DescriptorPool(vulkan.NullHandle)
	if count == 0 {
		return nullPool, nil, errors.New("no descriptor sets requested")
	}
	poolInfo := vulkan.DescriptorPoolCreateInfo{
		SType:         vulkan.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       uint32(count),
		PoolSizeCount: 1,
		PPoolSizes:    []vulkan.DescriptorPoolSize{{Type: kind, DescriptorCount: uint32(count)}},
	}
	var pool vulkan.DescriptorPool
	if res := vulkan.CreateDescriptorPool(c.device, &poolInfo, nil, &pool); res != vulkan.Success {
		return nullPool, nil, fmt.Errorf("create descriptor pool: %w", vulkan.Error(res))
	}

	layouts := make([]vulkan.DescriptorSetLayout, count)
	for i := range layouts {
		layouts[i] = layout
	}
	allocInfo := vulkan.DescriptorSetAllocateInfo{
		SType:              vulkan.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     pool,
		DescriptorSetCount: uint32(count),
		PSetLayouts:        layouts,
	}
	sets := make([]vulkan.DescriptorSet, count)
	if res := vulkan.AllocateDescriptorSets(c.device, &allocInfo, &sets[0]); res != vulkan.Success {
		vulkan.DestroyDescriptorPool(c.device, pool, nil)
		return nullPool, nil, fmt.Errorf("allocate descriptor sets: %w", vulkan.Error(res))
	}
	return pool, sets, nil
}

func (r *sceneRenderer) createTextureSets() error {
	if len(r.objects) == 0 {
		return errors.New("scene has no objects")
	}
	pool, sets, err := r.ctx.createDescriptorSets(vulkan.DescriptorTypeCombinedImageSampler, r.textureLayout, len(r.objects))
	if err != nil {
		return err
	}
	r.texturePool = pool
	for i := range r.objects {
		r.objects[i].set = sets[i]
		write := vulkan.WriteDescriptorSet{
			SType:           vulkan.StructureTypeWriteDescriptorSet,
			DstSet:          sets[i],
			DstBinding:      0,
			DescriptorType:  vulkan.DescriptorTypeCombinedImageSampler,
			DescriptorCount: 1,
			PImageInfo: []vulkan.DescriptorImageInfo{{
				Sampler:     r.sampler,
				ImageView:   r.objects[i].texture.view,
				ImageLayout: vulkan.ImageLayoutShaderReadOnlyOptimal,
			}},
		}
		vulkan.UpdateDescriptorSets(r.ctx.device, 1, []vulkan.WriteDescriptorSet{write}, 0, nil)
	}
	return nil
}

func (c *vulkanContext) uploadMesh(m *asset.Mesh) (gpuMesh, error) {
	if len(m.Vertices) == 0 || len(m.Indices) == 0 {
		return gpuMesh{}, fmt.Errorf("mesh %s is empty", m.Name)
	}
	vb, err := c.createHostBuffer(asBytes(m.Vertices), vulkan.BufferUsageFlags(vulkan.BufferUsageVertexBufferBit))
	if err != nil {
		return gpuMesh{}, fmt.Errorf("mesh %s vertices: %w", m.Name, err)
	}
	ib, err := c.createHostBuffer(asBytes(m.Indices), vulkan.BufferUsageFlags(vulkan.BufferUsageIndexBufferBit))
	if err != nil {
		c.destroyBuffer(&vb)
		return gpuMesh{}, fmt.Errorf("mesh %s indices: %w", m.Name, err)
	}
	return gpuMesh{vertices: vb, indices: ib, count: uint32(len(m.Indices))}, nil
}

// asBytes views a slice of plain values as raw memory.
func asBytes[T any](s []T) []byte {
	if len(s) == 0 {
		return nil
	}
	var zero T
	return unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*int(unsafe.Sizeof(zero)))
}

func (r *sceneRenderer) Prepare(gen frame.Generation) error {
	r.gen = gen
	if err := r.createRenderPass(vulkan.Format(gen.Format.Format)); err != nil {
		return err
	}
	if err := r.createAttachments(vulkan.Format(gen.Format.Format), gen.Extent); err != nil {
		return err
	}

	var vertex asset.Vertex
	layout, pipeline, err := r.ctx.createPipeline(r.shaderDir, r.renderPass, pipelineDesc{
		vertShader: sceneVertShader,
		fragShader: sceneFragShader,
		stride:     uint32(unsafe.Sizeof(vertex)),
		attributes: []vulkan.VertexInputAttributeDescription{
			{Location: 0, Binding: 0, Format: vulkan.FormatR32g32b32Sfloat, Offset: uint32(unsafe.Offsetof(vertex.Pos))},
			{Location: 1, Binding: 0, Format: vulkan.FormatR32g32b32Sfloat, Offset: uint32(unsafe.Offsetof(vertex.Color))},
			{Location: 2, Binding: 0, Format: vulkan.FormatR32g32Sfloat, Offset: uint32(unsafe.Offsetof(vertex.UV))},
		},
		setLayouts: []vulkan.DescriptorSetLayout{r.frameLayout, r.textureLayout},
		push: []vulkan.PushConstantRange{{
			StageFlags: vulkan.ShaderStageFlags(vulkan.ShaderStageVertexBit),
			Size:       uint32(unsafe.Sizeof(mgl32.Mat4{})),
		}},
		cull:      vulkan.CullModeNone,
		depthTest: true,
	})
	if err != nil {
		return err
	}
	r.pipelineLayout, r.pipeline = layout, pipeline
	return r.createUniforms(gen.ImageCount)
}

// multisampled reports whether the scene renders into a separate
// multisample target that is resolved into the swapchain image.
func (r *sceneRenderer) multisampled() bool {
	return r.ctx.samples != vulkan.SampleCount1Bit
}

// createRenderPass lays out color, depth and, with MSAA, the swapchain
// image as resolve target. Clear values cover the first two.
func (r *sceneRenderer) createRenderPass(format vulkan.Format) error {
	samples := r.ctx.samples
	colorAttachment := vulkan.AttachmentDescription{
		Format:         format,
		Samples:        samples,
		LoadOp:         vulkan.AttachmentLoadOpClear,
		StoreOp:        vulkan.AttachmentStoreOpStore,
		StencilLoadOp:  vulkan.AttachmentLoadOpDontCare,
		StencilStoreOp: vulkan.AttachmentStoreOpDontCare,
		InitialLayout:  vulkan.ImageLayoutUndefined,
		FinalLayout:    vulkan.ImageLayoutPresentSrc,
	}
	depthAttachment := vulkan.AttachmentDescription{
		Format:         r.ctx.depthFormat,
		Samples:        samples,
		LoadOp:         vulkan.AttachmentLoadOpClear,
		StoreOp:        vulkan.AttachmentStoreOpDontCare,
		StencilLoadOp:  vulkan.AttachmentLoadOpDontCare,
		StencilStoreOp: vulkan.AttachmentStoreOpDontCare,
		InitialLayout:  vulkan.ImageLayoutUndefined,
		FinalLayout:    vulkan.ImageLayoutDepthStencilAttachmentOptimal,
	}
	depthRef := vulkan.AttachmentReference{
		Attachment: 1,
		Layout:     vulkan.ImageLayoutDepthStencilAttachmentOptimal,
	}
	subpass := vulkan.SubpassDescription{
		PipelineBindPoint:    vulkan.PipelineBindPointGraphics,
		ColorAttachmentCount: 1,
		PColorAttachments: []vulkan.AttachmentReference{{
			Attachment: 0,
			Layout:     vulkan.ImageLayoutColorAttachmentOptimal,
		}},
		PDepthStencilAttachment: &depthRef,
	}
	attachments := []vulkan.AttachmentDescription{colorAttachment, depthAttachment}

	if r.multisampled() {
		attachments[0].StoreOp = vulkan.AttachmentStoreOpDontCare
		attachments[0].FinalLayout = vulkan.ImageLayoutColorAttachmentOptimal
		attachments = append(attachments, vulkan.AttachmentDescription{
			Format:         format,
			Samples:        vulkan.SampleCount1Bit,
			LoadOp:         vulkan.AttachmentLoadOpDontCare,
			StoreOp:        vulkan.AttachmentStoreOpStore,
			StencilLoadOp:  vulkan.AttachmentLoadOpDontCare,
			StencilStoreOp: vulkan.AttachmentStoreOpDontCare,
			InitialLayout:  vulkan.ImageLayoutUndefined,
			FinalLayout:    vulkan.ImageLayoutPresentSrc,
		})
		subpass.PResolveAttachments = []vulkan.AttachmentReference{{
			Attachment: 2,
			Layout:     vulkan.ImageLayoutColorAttachmentOptimal,
		}}
	}

	// The color write waits on the acquire semaphore's stage.
	stages := vulkan.PipelineStageFlags(vulkan.PipelineStageColorAttachmentOutputBit | vulkan.PipelineStageEarlyFragmentTestsBit)
	dependency := vulkan.SubpassDependency{
		SrcSubpass:    vulkan.SubpassExternal,
		DstSubpass:    0,
		SrcStageMask:  stages,
		DstStageMask:  stages,
		DstAccessMask: vulkan.AccessFlags(vulkan.AccessColorAttachmentWriteBit | vulkan.AccessDepthStencilAttachmentWriteBit),
	}

	createInfo := vulkan.RenderPassCreateInfo{
		SType:           vulkan.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
		SubpassCount:    1,
		PSubpasses:      []vulkan.SubpassDescription{subpass},
		DependencyCount: 1,
		PDependencies:   []vulkan.SubpassDependency{dependency},
	}
	if res := vulkan.CreateRenderPass(r.ctx.device, &createInfo, nil, &r.renderPass); res != vulkan.Success {
		return fmt.Errorf("create render pass: %w", vulkan.Error(res))
	}
	return nil
}

// createAttachments makes the depth buffer and, with MSAA, the
// multisample color target. Both are shared by every framebuffer of the
// generation.
func (r *sceneRenderer) createAttachments(format vulkan.Format, extent frame.Extent) error {
	var err error
	r.depth, err = r.ctx.createAttachment(imageDesc{
		width:   extent.Width,
		height:  extent.Height,
		format:  r.ctx.depthFormat,
		samples: r.ctx.samples,
		usage:   vulkan.ImageUsageFlags(vulkan.ImageUsageDepthStencilAttachmentBit),
	}, vulkan.ImageAspectFlags(vulkan.ImageAspectDepthBit))
	if err != nil {
		return fmt.Errorf("depth attachment: %w", err)
	}
	if !r.multisampled() {
		return nil
	}
	r.color, err = r.ctx.createAttachment(imageDesc{
		width:   extent.Width,
		height:  extent.Height,
		format:  format,
		samples: r.ctx.samples,
		usage:   vulkan.ImageUsageFlags(vulkan.ImageUsageColorAttachmentBit | vulkan.ImageUsageTransientAttachmentBit),
	}, vulkan.ImageAspectFlags(vulkan.ImageAspectColorBit))
	if err != nil {
		return fmt.Errorf("multisample attachment: %w", err)
	}
	return nil
}

func (c *vulkanContext) createAttachment(desc imageDesc, aspect vulkan.ImageAspectFlags) (gpuTexture, error) {
	image, memory, err := c.createImage(desc, vulkan.MemoryPropertyDeviceLocalBit)
	if err != nil {
		return gpuTexture{}, err
	}
	t := gpuTexture{image: image, memory: memory, mipLevels: 1}
	if t.view, err = c.createImageView(image, desc.format, aspect, 1); err != nil {
		c.destroyTexture(&t)
		return gpuTexture{}, err
	}
	return t, nil
}

// createUniforms makes one uniform buffer and descriptor set per image so
// Update never writes memory an in-flight frame reads.
func (r *sceneRenderer) createUniforms(images int) error {
	size := vulkan.DeviceSize(unsafe.Sizeof(uniformBufferObject{}))
	for i := 0; i < images; i++ {
		buf, err := r.ctx.createBuffer(size, vulkan.BufferUsageFlags(vulkan.BufferUsageUniformBufferBit), vulkan.MemoryPropertyHostVisibleBit|vulkan.MemoryPropertyHostCoherentBit)
		if err != nil {
			return fmt.Errorf("uniform buffer %d: %w", i, err)
		}
		r.uniforms = append(r.uniforms, buf)
	}

	pool, sets, err := r.ctx.createDescriptorSets(vulkan.DescriptorTypeUniformBuffer, r.frameLayout, images)
	if err != nil {
		return err
	}
	r.framePool, r.frameSets = pool, sets
	for i, set := range sets {
		write := vulkan.WriteDescriptorSet{
			SType:           vulkan.StructureTypeWriteDescriptorSet,
			DstSet:          set,
			DstBinding:      0,
			DescriptorType:  vulkan.DescriptorTypeUniformBuffer,
			DescriptorCount: 1,
			PBufferInfo: []vulkan.DescriptorBufferInfo{{
				Buffer: r.uniforms[i].buffer,
				Range:  size,
			}},
		}
		vulkan.UpdateDescriptorSets(r.ctx.device, 1, []vulkan.WriteDescriptorSet{write}, 0, nil)
	}
	return nil
}

func (r *sceneRenderer) NewFramebuffer(view frame.ImageView, extent frame.Extent) (frame.Framebuffer, error) {
	v, ok := view.(*vkImageView)
	if !ok {
		return nil, fmt.Errorf("unexpected image view type %T", view)
	}
	attachments := []vulkan.ImageView{v.handle, r.depth.view}
	if r.multisampled() {
		attachments = []vulkan.ImageView{r.color.view, r.depth.view, v.handle}
	}
	fbInfo := vulkan.FramebufferCreateInfo{
		SType:           vulkan.StructureTypeFramebufferCreateInfo,
		RenderPass:      r.renderPass,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
		Width:           extent.Width,
		Height:          extent.Height,
		Layers:          1,
	}
	var fb vulkan.Framebuffer
	if res := vulkan.CreateFramebuffer(r.ctx.device, &fbInfo, nil, &fb); res != vulkan.Success {
		return nil, vulkan.Error(res)
	}
	return &vkFramebuffer{ctx: r.ctx, handle: fb, pass: r.renderPass}, nil
}

func (r *sceneRenderer) Update(i frame.ImageIndex) error {
	if int(i) >= len(r.uniforms) {
		return fmt.Errorf("uniform buffer %d out of range", i)
	}
	elapsed := float32(time.Since(r.start).Seconds())
	for j, obj := range r.objects {
		model := obj.spec.Base
		if obj.spec.Spin != 0 {
			model = model.Mul4(mgl32.HomogRotate3D(mgl32.DegToRad(obj.spec.Spin*elapsed), spinAxis))
		}
		r.models[j] = model
	}

	aspect := float32(r.gen.Extent.Width) / float32(r.gen.Extent.Height)
	ubo := uniformBufferObject{
		View: r.camera.View(),
		Proj: camera.Projection(aspect),
	}
	return r.ctx.write(r.uniforms[i], unsafe.Slice((*byte)(unsafe.Pointer(&ubo)), unsafe.Sizeof(ubo)))
}

func (r *sceneRenderer) Draw(cmd frame.CommandBuffer, i frame.ImageIndex) error {
	cb, err := commandHandle(cmd)
	if err != nil {
		return err
	}
	vulkan.CmdBindPipeline(cb, vulkan.PipelineBindPointGraphics, r.pipeline)
	vulkan.CmdBindDescriptorSets(cb, vulkan.PipelineBindPointGraphics, r.pipelineLayout, 0, 1, []vulkan.DescriptorSet{r.frameSets[i]}, 0, nil)
	for j := range r.objects {
		obj := &r.objects[j]
		vulkan.CmdBindDescriptorSets(cb, vulkan.PipelineBindPointGraphics, r.pipelineLayout, 1, 1, []vulkan.DescriptorSet{obj.set}, 0, nil)
		vulkan.CmdPushConstants(cb, r.pipelineLayout, vulkan.ShaderStageFlags(vulkan.ShaderStageVertexBit), 0, uint32(unsafe.Sizeof(r.models[j])), unsafe.Pointer(&r.models[j]))
		vulkan.CmdBindVertexBuffers(cb, 0, 1, []vulkan.Buffer{obj.mesh.vertices.buffer}, []vulkan.DeviceSize{0})
		vulkan.CmdBindIndexBuffer(cb, obj.mesh.indices.buffer, 0, vulkan.IndexTypeUint32)
		vulkan.CmdDrawIndexed(cb, obj.mesh.count, 1, 0, 0, 0)
	}
	return nil
}

// Release destroys the generation-scoped objects. It tolerates a
// partially completed Prepare.
func (r *sceneRenderer) Release() {
	dev := r.ctx.device
	if r.framePool != vulkan.DescriptorPool(vulkan.NullHandle) {
		vulkan.DestroyDescriptorPool(dev, r.framePool, nil)
		r.framePool = vulkan.DescriptorPool(vulkan.NullHandle)
	}
	r.frameSets = nil
	for i := range r.uniforms {
		r.ctx.destroyBuffer(&r.uniforms[i])
	}
	r.uniforms = nil
	r.ctx.destroyPipeline(&r.pipelineLayout, &r.pipeline)
	r.ctx.destroyTexture(&r.depth)
	r.ctx.destroyTexture(&r.color)
	if r.renderPass != vulkan.RenderPass(vulkan.NullHandle) {
		vulkan.DestroyRenderPass(dev, r.renderPass, nil)
		r.renderPass = vulkan.RenderPass(vulkan.NullHandle)
	}
}

// Close destroys everything, generation-scoped objects included. The
// device must be idle.
func (r *sceneRenderer) Close() {
	r.Release()
	dev := r.ctx.device
	if r.texturePool != vulkan.DescriptorPool(vulkan.NullHandle) {
		vulkan.DestroyDescriptorPool(dev, r.texturePool, nil)
		r.texturePool = vulkan.DescriptorPool(vulkan.NullHandle)
	}
	for i := range r.objects {
		r.ctx.destroyBuffer(&r.objects[i].mesh.vertices)
		r.ctx.destroyBuffer(&r.objects[i].mesh.indices)
		r.ctx.destroyTexture(&r.objects[i].texture)
	}
	r.objects = nil
	if r.sampler != vulkan.Sampler(vulkan.NullHandle) {
		vulkan.DestroySampler(dev, r.sampler, nil)
		r.sampler = vulkan.Sampler(vulkan.NullHandle)
	}
	for _, l := range []*vulkan.DescriptorSetLayout{&r.frameLayout, &r.textureLayout} {
		if *l != vulkan.DescriptorSetLayout(vulkan.NullHandle) {
			vulkan.DestroyDescriptorSetLayout(dev, *l, nil)
			*l = vulkan.DescriptorSetLayout(vulkan.NullHandle)
		}
	}
}
