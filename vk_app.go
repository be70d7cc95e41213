package main

import (
	"errors"
	"fmt"
	"log"
	"unsafe"

	"github.com/vulkan-go/glfw/v3.3/glfw"
	"github.com/vulkan-go/vulkan"
)

var (
	validationLayers = []string{"VK_LAYER_KHRONOS_validation\x00"}
	deviceExtensions = []string{"VK_KHR_swapchain\x00"}
)

type queueFamilyIndices struct {
	graphicsFamily uint32
	presentFamily  uint32
	hasGraphics    bool
	hasPresent     bool
}

type swapchainSupport struct {
	capabilities vulkan.SurfaceCapabilities
	formats      []vulkan.SurfaceFormat
	presentModes []vulkan.PresentMode
}

// vulkanContext owns everything that outlives a swapchain generation:
// instance, surface, device and queues.
type vulkanContext struct {
	validation     bool
	window         *glfw.Window
	instance       vulkan.Instance
	debugCallback  vulkan.DebugReportCallback
	surface        vulkan.Surface
	physicalDevice vulkan.PhysicalDevice
	device         vulkan.Device
	graphicsQueue  vulkan.Queue
	presentQueue   vulkan.Queue
	queues         queueFamilyIndices
	depthFormat    vulkan.Format
	uploadPool     vulkan.CommandPool

	// msaa is the requested sample count; samples is what the device
	// granted, used by every scene attachment and pipeline.
	msaa        int
	samples     vulkan.SampleCountFlagBits
	sampleCount int
}

func newVulkanContext(window *glfw.Window, validation bool, msaa int) (*vulkanContext, error) {
	c := &vulkanContext{
		validation: validation,
		window:     window,
		msaa:       msaa,
	}
	if err := c.bringUp(); err != nil {
		c.Destroy()
		return nil, err
	}
	return c, nil
}

func (c *vulkanContext) bringUp() error {
	vulkan.SetGetInstanceProcAddr(glfw.GetVulkanGetInstanceProcAddress())
	if err := vulkan.Init(); err != nil {
		return fmt.Errorf("vulkan init: %w", err)
	}
	if err := c.createInstance(); err != nil {
		return err
	}
	if err := vulkan.InitInstance(c.instance); err != nil {
		return fmt.Errorf("vkInitInstance: %w", err)
	}
	if err := c.setupDebugCallback(); err != nil {
		return err
	}
	if err := c.createSurface(); err != nil {
		return err
	}
	if err := c.pickPhysicalDevice(); err != nil {
		return err
	}
	c.samples, c.sampleCount = chooseSamples(c.msaa, c.supportedSamples())
	if c.sampleCount != c.msaa {
		log.Printf("%dx MSAA not supported, using %dx", c.msaa, c.sampleCount)
	}
	if err := c.createLogicalDevice(); err != nil {
		return err
	}
	depth, err := c.findDepthFormat()
	if err != nil {
		return err
	}
	c.depthFormat = depth
	return c.createUploadPool()
}

func (c *vulkanContext) createInstance() error {
	if c.validation && !c.validationLayersSupported() {
		log.Printf("validation layers not available, continuing without them")
		c.validation = false
	}

	if !glfw.VulkanSupported() {
		return errors.New("GLFW Vulkan loader not found")
	}

	appInfo := vulkan.ApplicationInfo{
		SType:              vulkan.StructureTypeApplicationInfo,
		PApplicationName:   "Kube\x00",
		ApplicationVersion: vulkan.MakeVersion(0, 2, 0),
		PEngineName:        "kubeframe\x00",
		EngineVersion:      vulkan.MakeVersion(0, 2, 0),
		ApiVersion:         vulkan.MakeVersion(1, 1, 0),
	}

	extensions := c.window.GetRequiredInstanceExtensions()
	if c.validation {
		extensions = append(extensions, "VK_EXT_debug_report\x00")
	}

	createInfo := vulkan.InstanceCreateInfo{
		SType:                   vulkan.StructureTypeInstanceCreateInfo,
		PApplicationInfo:        &appInfo,
		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: extensions,
	}
	if c.validation {
		createInfo.EnabledLayerCount = uint32(len(validationLayers))
		createInfo.PpEnabledLayerNames = validationLayers
	}

	if res := vulkan.CreateInstance(&createInfo, nil, &c.instance); res != vulkan.Success {
		return fmt.Errorf("create instance: %w", vulkan.Error(res))
	}
	return nil
}

func (c *vulkanContext) validationLayersSupported() bool {
	var count uint32
	if vulkan.EnumerateInstanceLayerProperties(&count, nil) != vulkan.Success {
		return false
	}
	props := make([]vulkan.LayerProperties, count)
	if vulkan.EnumerateInstanceLayerProperties(&count, props) != vulkan.Success {
		return false
	}
	supported := make(map[string]bool)
	for i := range props {
		props[i].Deref()
		supported[vulkan.ToString(props[i].LayerName[:])] = true
	}
	for _, l := range validationLayers {
		if !supported[trimNul(l)] {
			return false
		}
	}
	return true
}

func (c *vulkanContext) setupDebugCallback() error {
	if !c.validation {
		return nil
	}
	createInfo := vulkan.DebugReportCallbackCreateInfo{
		SType: vulkan.StructureTypeDebugReportCallbackCreateInfo,
		Flags: vulkan.DebugReportFlags(
			vulkan.DebugReportErrorBit |
				vulkan.DebugReportWarningBit |
				vulkan.DebugReportPerformanceWarningBit),
		PfnCallback: func(flags vulkan.DebugReportFlags, objectType vulkan.DebugReportObjectType, object uint64, location uint, messageCode int32, layerPrefix string, message string, userData unsafe.Pointer) vulkan.Bool32 {
			log.Printf("[VK][%s][0x%x] %s (code=%d)", layerPrefix, flags, message, messageCode)
			return vulkan.False
		},
	}
	if res := vulkan.CreateDebugReportCallback(c.instance, &createInfo, nil, &c.debugCallback); res != vulkan.Success {
		return fmt.Errorf("create debug callback: %w", vulkan.Error(res))
	}
	return nil
}

func (c *vulkanContext) createSurface() error {
	surfacePtr, err := c.window.CreateWindowSurface(c.instance, nil)
	if err != nil {
		return fmt.Errorf("create window surface: %w", err)
	}
	c.surface = vulkan.SurfaceFromPointer(surfacePtr)
	return nil
}

func (c *vulkanContext) pickPhysicalDevice() error {
	var count uint32
	if res := vulkan.EnumeratePhysicalDevices(c.instance, &count, nil); res != vulkan.Success || count == 0 {
		return fmt.Errorf("enumerate physical devices: %w", vulkan.Error(res))
	}
	devices := make([]vulkan.PhysicalDevice, count)
	if res := vulkan.EnumeratePhysicalDevices(c.instance, &count, devices); res != vulkan.Success {
		return fmt.Errorf("enumerate physical devices list: %w", vulkan.Error(res))
	}

	var selected vulkan.PhysicalDevice
	var selectedQueues queueFamilyIndices
	bestScore := int32(-1)
	for _, dev := range devices {
		q := c.findQueueFamilies(dev)
		if !q.hasGraphics || !q.hasPresent {
			continue
		}
		if !deviceExtensionsSupported(dev) {
			continue
		}
		support, err := c.querySwapchainSupport(dev)
		if err != nil || len(support.formats) == 0 || len(support.presentModes) == 0 {
			continue
		}
		if score := deviceScore(dev); score > bestScore {
			bestScore = score
			selected = dev
			selectedQueues = q
		}
	}

	if selected == (vulkan.PhysicalDevice)(unsafe.Pointer(nil)) {
		return errors.New("no suitable GPU found")
	}

	c.physicalDevice = selected
	c.queues = selectedQueues
	return nil
}

func deviceScore(device vulkan.PhysicalDevice) int32 {
	var props vulkan.PhysicalDeviceProperties
	vulkan.GetPhysicalDeviceProperties(device, &props)
	props.Deref()

	switch props.DeviceType {
	case vulkan.PhysicalDeviceTypeDiscreteGpu:
		return 1000
	case vulkan.PhysicalDeviceTypeIntegratedGpu:
		return 500
	default:
		return 100
	}
}

var sampleCounts = []struct {
	n   int
	bit vulkan.SampleCountFlagBits
}{
	{64, vulkan.SampleCount64Bit},
	{32, vulkan.SampleCount32Bit},
	{16, vulkan.SampleCount16Bit},
	{8, vulkan.SampleCount8Bit},
	{4, vulkan.SampleCount4Bit},
	{2, vulkan.SampleCount2Bit},
}

// chooseSamples picks the largest supported sample count not above
// requested, falling back to one sample.
func chooseSamples(requested int, supported vulkan.SampleCountFlags) (vulkan.SampleCountFlagBits, int) {
	for _, s := range sampleCounts {
		if s.n <= requested && supported&vulkan.SampleCountFlags(s.bit) != 0 {
			return s.bit, s.n
		}
	}
	return vulkan.SampleCount1Bit, 1
}

// supportedSamples is the set of sample counts usable by both color and
// depth framebuffer attachments.
func (c *vulkanContext) supportedSamples() vulkan.SampleCountFlags {
	var props vulkan.PhysicalDeviceProperties
	vulkan.GetPhysicalDeviceProperties(c.physicalDevice, &props)
	props.Deref()
	props.Limits.Deref()
	return props.Limits.FramebufferColorSampleCounts & props.Limits.FramebufferDepthSampleCounts
}

// linearBlitSupported reports whether format can be the source and target
// of a linear-filtered blit, which mipmap generation needs.
func (c *vulkanContext) linearBlitSupported(format vulkan.Format) bool {
	var props vulkan.FormatProperties
	vulkan.GetPhysicalDeviceFormatProperties(c.physicalDevice, format, &props)
	props.Deref()
	return props.OptimalTilingFeatures&vulkan.FormatFeatureFlags(vulkan.FormatFeatureSampledImageFilterLinearBit) != 0
}

func deviceExtensionsSupported(device vulkan.PhysicalDevice) bool {
	var count uint32
	if res := vulkan.EnumerateDeviceExtensionProperties(device, "", &count, nil); res != vulkan.Success {
		return false
	}
	props := make([]vulkan.ExtensionProperties, count)
	if res := vulkan.EnumerateDeviceExtensionProperties(device, "", &count, props); res != vulkan.Success {
		return false
	}
	supported := make(map[string]bool)
	for i := range props {
		props[i].Deref()
		supported[vulkan.ToString(props[i].ExtensionName[:])] = true
	}
	for _, ext := range deviceExtensions {
		if !supported[trimNul(ext)] {
			return false
		}
	}
	return true
}

func (c *vulkanContext) findQueueFamilies(device vulkan.PhysicalDevice) queueFamilyIndices {
	var count uint32
	vulkan.GetPhysicalDeviceQueueFamilyProperties(device, &count, nil)
	props := make([]vulkan.QueueFamilyProperties, count)
	vulkan.GetPhysicalDeviceQueueFamilyProperties(device, &count, props)

	var indices queueFamilyIndices
	for i := range props {
		props[i].Deref()
		if props[i].QueueFlags&vulkan.QueueFlags(vulkan.QueueGraphicsBit) != 0 {
			indices.graphicsFamily = uint32(i)
			indices.hasGraphics = true
		}
		var present vulkan.Bool32
		vulkan.GetPhysicalDeviceSurfaceSupport(device, uint32(i), c.surface, &present)
		if present == vulkan.True {
			indices.presentFamily = uint32(i)
			indices.hasPresent = true
		}
		if indices.hasGraphics && indices.hasPresent {
			break
		}
	}
	return indices
}

func (c *vulkanContext) createLogicalDevice() error {
	var queueInfos []vulkan.DeviceQueueCreateInfo
	uniqueFamilies := map[uint32]bool{
		c.queues.graphicsFamily: true,
		c.queues.presentFamily:  true,
	}
	for family := range uniqueFamilies {
		queueInfos = append(queueInfos, vulkan.DeviceQueueCreateInfo{
			SType:            vulkan.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: family,
			QueueCount:       1,
			PQueuePriorities: []float32{1.0},
		})
	}

	createInfo := vulkan.DeviceCreateInfo{
		SType:                   vulkan.StructureTypeDeviceCreateInfo,
		PQueueCreateInfos:       queueInfos,
		QueueCreateInfoCount:    uint32(len(queueInfos)),
		PEnabledFeatures:        []vulkan.PhysicalDeviceFeatures{{}},
		PpEnabledExtensionNames: deviceExtensions,
		EnabledExtensionCount:   uint32(len(deviceExtensions)),
	}
	if c.validation {
		createInfo.EnabledLayerCount = uint32(len(validationLayers))
		createInfo.PpEnabledLayerNames = validationLayers
	}

	if res := vulkan.CreateDevice(c.physicalDevice, &createInfo, nil, &c.device); res != vulkan.Success {
		return fmt.Errorf("create logical device: %w", vulkan.Error(res))
	}

	vulkan.GetDeviceQueue(c.device, c.queues.graphicsFamily, 0, &c.graphicsQueue)
	vulkan.GetDeviceQueue(c.device, c.queues.presentFamily, 0, &c.presentQueue)
	return nil
}

// createUploadPool is a transient pool for one-shot transfer commands.
func (c *vulkanContext) createUploadPool() error {
	poolInfo := vulkan.CommandPoolCreateInfo{
		SType:            vulkan.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: c.queues.graphicsFamily,
		Flags:            vulkan.CommandPoolCreateFlags(vulkan.CommandPoolCreateTransientBit),
	}
	if res := vulkan.CreateCommandPool(c.device, &poolInfo, nil, &c.uploadPool); res != vulkan.Success {
		return fmt.Errorf("create upload command pool: %w", vulkan.Error(res))
	}
	return nil
}

func (c *vulkanContext) querySwapchainSupport(device vulkan.PhysicalDevice) (swapchainSupport, error) {
	var details swapchainSupport
	if res := vulkan.GetPhysicalDeviceSurfaceCapabilities(device, c.surface, &details.capabilities); res != vulkan.Success {
		return details, fmt.Errorf("surface capabilities: %w", vulkan.Error(res))
	}
	details.capabilities.Deref()
	details.capabilities.CurrentExtent.Deref()
	details.capabilities.MinImageExtent.Deref()
	details.capabilities.MaxImageExtent.Deref()

	var formatCount uint32
	vulkan.GetPhysicalDeviceSurfaceFormats(device, c.surface, &formatCount, nil)
	if formatCount > 0 {
		details.formats = make([]vulkan.SurfaceFormat, formatCount)
		vulkan.GetPhysicalDeviceSurfaceFormats(device, c.surface, &formatCount, details.formats)
		for i := range details.formats {
			details.formats[i].Deref()
		}
	}

	var presentCount uint32
	vulkan.GetPhysicalDeviceSurfacePresentModes(device, c.surface, &presentCount, nil)
	if presentCount > 0 {
		details.presentModes = make([]vulkan.PresentMode, presentCount)
		vulkan.GetPhysicalDeviceSurfacePresentModes(device, c.surface, &presentCount, details.presentModes)
	}
	return details, nil
}

func (c *vulkanContext) findDepthFormat() (vulkan.Format, error) {
	candidates := []vulkan.Format{
		vulkan.FormatD32Sfloat,
		vulkan.FormatD32SfloatS8Uint,
		vulkan.FormatD24UnormS8Uint,
	}
	for _, format := range candidates {
		var props vulkan.FormatProperties
		vulkan.GetPhysicalDeviceFormatProperties(c.physicalDevice, format, &props)
		props.Deref()
		features := vulkan.FormatFeatureFlags(vulkan.FormatFeatureDepthStencilAttachmentBit)
		if props.OptimalTilingFeatures&features == features {
			return format, nil
		}
	}
	return 0, errors.New("no supported depth format found")
}

// imageDesc describes an optimal-tiling 2D image. Zero mip levels or
// samples mean one.
type imageDesc struct {
	width, height uint32
	format        vulkan.Format
	mipLevels     uint32
	samples       vulkan.SampleCountFlagBits
	usage         vulkan.ImageUsageFlags
}

func (c *vulkanContext) createImage(desc imageDesc, properties vulkan.MemoryPropertyFlagBits) (vulkan.Image, vulkan.DeviceMemory, error) {
	createInfo := vulkan.ImageCreateInfo{
		SType:         vulkan.StructureTypeImageCreateInfo,
		ImageType:     vulkan.ImageType2d,
		Extent:        vulkan.Extent3D{Width: desc.width, Height: desc.height, Depth: 1},
		MipLevels:     max(desc.mipLevels, 1),
		ArrayLayers:   1,
		Format:        desc.format,
		Tiling:        vulkan.ImageTilingOptimal,
		InitialLayout: vulkan.ImageLayoutUndefined,
		Usage:         desc.usage,
		Samples:       max(desc.samples, vulkan.SampleCount1Bit),
		SharingMode:   vulkan.SharingModeExclusive,
	}

	var image vulkan.Image
	if res := vulkan.CreateImage(c.device, &createInfo, nil, &image); res != vulkan.Success {
		return vulkan.Image(vulkan.NullHandle), vulkan.DeviceMemory(vulkan.NullHandle), fmt.Errorf("create image: %w", vulkan.Error(res))
	}

	var memRequirements vulkan.MemoryRequirements
	vulkan.GetImageMemoryRequirements(c.device, image, &memRequirements)
	memRequirements.Deref()

	memType, err := c.findMemoryType(memRequirements.MemoryTypeBits, properties)
	if err != nil {
		vulkan.DestroyImage(c.device, image, nil)
		return vulkan.Image(vulkan.NullHandle), vulkan.DeviceMemory(vulkan.NullHandle), err
	}
	allocInfo := vulkan.MemoryAllocateInfo{
		SType:           vulkan.StructureTypeMemoryAllocateInfo,
		AllocationSize:  memRequirements.Size,
		MemoryTypeIndex: memType,
	}
	var memory vulkan.DeviceMemory
	if res := vulkan.AllocateMemory(c.device, &allocInfo, nil, &memory); res != vulkan.Success {
		vulkan.DestroyImage(c.device, image, nil)
		return vulkan.Image(vulkan.NullHandle), vulkan.DeviceMemory(vulkan.NullHandle), fmt.Errorf("allocate image memory: %w", vulkan.Error(res))
	}
	if res := vulkan.BindImageMemory(c.device, image, memory, 0); res != vulkan.Success {
		vulkan.DestroyImage(c.device, image, nil)
		vulkan.FreeMemory(c.device, memory, nil)
		return vulkan.Image(vulkan.NullHandle), vulkan.DeviceMemory(vulkan.NullHandle), fmt.Errorf("bind image memory: %w", vulkan.Error(res))
	}
	return image, memory, nil
}

func (c *vulkanContext) findMemoryType(typeFilter uint32, properties vulkan.MemoryPropertyFlagBits) (uint32, error) {
	var memProps vulkan.PhysicalDeviceMemoryProperties
	vulkan.GetPhysicalDeviceMemoryProperties(c.physicalDevice, &memProps)
	memProps.Deref()

	want := vulkan.MemoryPropertyFlags(properties)
	for i := uint32(0); i < memProps.MemoryTypeCount; i++ {
		memoryType := memProps.MemoryTypes[i]
		memoryType.Deref()
		if typeFilter&(1<<i) != 0 && memoryType.PropertyFlags&want == want {
			return i, nil
		}
	}
	return 0, fmt.Errorf("no memory type for filter 0x%x with properties 0x%x", typeFilter, properties)
}

func (c *vulkanContext) createImageView(image vulkan.Image, format vulkan.Format, aspectFlags vulkan.ImageAspectFlags, mipLevels uint32) (vulkan.ImageView, error) {
	viewInfo := vulkan.ImageViewCreateInfo{
		SType:    vulkan.StructureTypeImageViewCreateInfo,
		Image:    image,
		ViewType: vulkan.ImageViewType2d,
		Format:   format,
		Components: vulkan.ComponentMapping{
			R: vulkan.ComponentSwizzleIdentity,
			G: vulkan.ComponentSwizzleIdentity,
			B: vulkan.ComponentSwizzleIdentity,
			A: vulkan.ComponentSwizzleIdentity,
		},
		SubresourceRange: vulkan.ImageSubresourceRange{
			AspectMask: aspectFlags,
			LevelCount: max(mipLevels, 1),
			LayerCount: 1,
		},
	}
	var view vulkan.ImageView
	if res := vulkan.CreateImageView(c.device, &viewInfo, nil, &view); res != vulkan.Success {
		return vulkan.ImageView(vulkan.NullHandle), fmt.Errorf("create image view: %w", vulkan.Error(res))
	}
	return view, nil
}

// gpuBuffer is a buffer with its own allocation.
type gpuBuffer struct {
	buffer vulkan.Buffer
	memory vulkan.DeviceMemory
	size   vulkan.DeviceSize
}

func (c *vulkanContext) createBuffer(size vulkan.DeviceSize, usage vulkan.BufferUsageFlags, properties vulkan.MemoryPropertyFlagBits) (gpuBuffer, error) {
	bufferInfo := vulkan.BufferCreateInfo{
		SType:       vulkan.StructureTypeBufferCreateInfo,
		Size:        size,
		Usage:       usage,
		SharingMode: vulkan.SharingModeExclusive,
	}
	var buffer vulkan.Buffer
	if res := vulkan.CreateBuffer(c.device, &bufferInfo, nil, &buffer); res != vulkan.Success {
		return gpuBuffer{}, fmt.Errorf("create buffer: %w", vulkan.Error(res))
	}
	var memReq vulkan.MemoryRequirements
	vulkan.GetBufferMemoryRequirements(c.device, buffer, &memReq)
	memReq.Deref()

	memType, err := c.findMemoryType(memReq.MemoryTypeBits, properties)
	if err != nil {
		vulkan.DestroyBuffer(c.device, buffer, nil)
		return gpuBuffer{}, err
	}
	allocInfo := vulkan.MemoryAllocateInfo{
		SType:           vulkan.StructureTypeMemoryAllocateInfo,
		AllocationSize:  memReq.Size,
		MemoryTypeIndex: memType,
	}
	var memory vulkan.DeviceMemory
	if res := vulkan.AllocateMemory(c.device, &allocInfo, nil, &memory); res != vulkan.Success {
		vulkan.DestroyBuffer(c.device, buffer, nil)
		return gpuBuffer{}, fmt.Errorf("allocate buffer memory: %w", vulkan.Error(res))
	}
	if res := vulkan.BindBufferMemory(c.device, buffer, memory, 0); res != vulkan.Success {
		vulkan.DestroyBuffer(c.device, buffer, nil)
		vulkan.FreeMemory(c.device, memory, nil)
		return gpuBuffer{}, fmt.Errorf("bind buffer memory: %w", vulkan.Error(res))
	}
	return gpuBuffer{buffer: buffer, memory: memory, size: size}, nil
}

// createHostBuffer makes a host-visible coherent buffer holding data.
func (c *vulkanContext) createHostBuffer(data []byte, usage vulkan.BufferUsageFlags) (gpuBuffer, error) {
	b, err := c.createBuffer(vulkan.DeviceSize(len(data)), usage, vulkan.MemoryPropertyHostVisibleBit|vulkan.MemoryPropertyHostCoherentBit)
	if err != nil {
		return gpuBuffer{}, err
	}
	if err := c.write(b, data); err != nil {
		c.destroyBuffer(&b)
		return gpuBuffer{}, err
	}
	return b, nil
}

// write copies data to the start of a host-visible buffer.
func (c *vulkanContext) write(b gpuBuffer, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	size := vulkan.DeviceSize(len(data))
	if size > b.size {
		return fmt.Errorf("write of %d bytes into %d byte buffer", size, b.size)
	}
	var mapped unsafe.Pointer
	if res := vulkan.MapMemory(c.device, b.memory, 0, size, 0, &mapped); res != vulkan.Success {
		return fmt.Errorf("map memory: %w", vulkan.Error(res))
	}
	copy(unsafe.Slice((*byte)(mapped), len(data)), data)
	vulkan.UnmapMemory(c.device, b.memory)
	return nil
}

func (c *vulkanContext) destroyBuffer(b *gpuBuffer) {
	if b.buffer != vulkan.Buffer(vulkan.NullHandle) {
		vulkan.DestroyBuffer(c.device, b.buffer, nil)
	}
	if b.memory != vulkan.DeviceMemory(vulkan.NullHandle) {
		vulkan.FreeMemory(c.device, b.memory, nil)
	}
	*b = gpuBuffer{}
}

func (c *vulkanContext) createShaderModule(code []byte) (vulkan.ShaderModule, error) {
	if len(code) == 0 || len(code)%4 != 0 {
		return vulkan.ShaderModule(vulkan.NullHandle), fmt.Errorf("shader code length %d is not a positive multiple of 4", len(code))
	}
	createInfo := vulkan.ShaderModuleCreateInfo{
		SType:    vulkan.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(code)),
		PCode:    unsafe.Slice((*uint32)(unsafe.Pointer(&code[0])), len(code)/4),
	}
	var module vulkan.ShaderModule
	if res := vulkan.CreateShaderModule(c.device, &createInfo, nil, &module); res != vulkan.Success {
		return vulkan.ShaderModule(vulkan.NullHandle), fmt.Errorf("create shader module: %w", vulkan.Error(res))
	}
	return module, nil
}

// oneShot records and synchronously executes a command buffer on the
// graphics queue.
func (c *vulkanContext) oneShot(record func(cb vulkan.CommandBuffer)) error {
	allocInfo := vulkan.CommandBufferAllocateInfo{
		SType:              vulkan.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        c.uploadPool,
		Level:              vulkan.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	}
	cbs := make([]vulkan.CommandBuffer, 1)
	if res := vulkan.AllocateCommandBuffers(c.device, &allocInfo, cbs); res != vulkan.Success {
		return fmt.Errorf("allocate upload command buffer: %w", vulkan.Error(res))
	}
	defer vulkan.FreeCommandBuffers(c.device, c.uploadPool, 1, cbs)

	beginInfo := vulkan.CommandBufferBeginInfo{
		SType: vulkan.StructureTypeCommandBufferBeginInfo,
		Flags: vulkan.CommandBufferUsageFlags(vulkan.CommandBufferUsageOneTimeSubmitBit),
	}
	if res := vulkan.BeginCommandBuffer(cbs[0], &beginInfo); res != vulkan.Success {
		return fmt.Errorf("begin upload command buffer: %w", vulkan.Error(res))
	}
	record(cbs[0])
	if res := vulkan.EndCommandBuffer(cbs[0]); res != vulkan.Success {
		return fmt.Errorf("end upload command buffer: %w", vulkan.Error(res))
	}

	submitInfo := vulkan.SubmitInfo{
		SType:              vulkan.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    cbs,
	}
	if res := vulkan.QueueSubmit(c.graphicsQueue, 1, []vulkan.SubmitInfo{submitInfo}, vulkan.Fence(vulkan.NullHandle)); res != vulkan.Success {
		return fmt.Errorf("submit upload: %w", vulkan.Error(res))
	}
	if res := vulkan.QueueWaitIdle(c.graphicsQueue); res != vulkan.Success {
		return fmt.Errorf("wait for upload: %w", vulkan.Error(res))
	}
	return nil
}

// Destroy tears down in reverse creation order. Every generation-scoped
// object must already be gone.
func (c *vulkanContext) Destroy() {
	if c.device != vulkan.Device(vulkan.NullHandle) {
		vulkan.DeviceWaitIdle(c.device)
		if c.uploadPool != vulkan.CommandPool(vulkan.NullHandle) {
			vulkan.DestroyCommandPool(c.device, c.uploadPool, nil)
		}
		vulkan.DestroyDevice(c.device, nil)
		c.device = vulkan.Device(vulkan.NullHandle)
	}
	if c.debugCallback != vulkan.DebugReportCallback(vulkan.NullHandle) {
		vulkan.DestroyDebugReportCallback(c.instance, c.debugCallback, nil)
		c.debugCallback = vulkan.DebugReportCallback(vulkan.NullHandle)
	}
	if c.surface != vulkan.Surface(vulkan.NullHandle) {
		vulkan.DestroySurface(c.instance, c.surface, nil)
		c.surface = vulkan.Surface(vulkan.NullHandle)
	}
	if c.instance != vulkan.Instance(vulkan.NullHandle) {
		vulkan.DestroyInstance(c.instance, nil)
		c.instance = vulkan.Instance(vulkan.NullHandle)
	}
}

func trimNul(s string) string {
	if n := len(s); n > 0 && s[n-1] == 0 {
		return s[:n-1]
	}
	return s
}
