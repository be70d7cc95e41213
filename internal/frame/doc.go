// Package frame drives the per-frame lifecycle of a swapchain-presenting
// renderer: image acquisition, frames-in-flight pacing with semaphores and
// fences, command recording and submission order, presentation, and
// wholesale swapchain rebuilds when the surface goes stale.
//
// The package never talks to a graphics API directly. Everything GPU-side is
// reached through the collaborator interfaces in device.go, which the demo
// implements on top of Vulkan and the tests implement with in-memory fakes.
//
// Two index spaces exist and are kept apart by type:
//
//	SlotIndex   one of N frames in flight, cycled every successful frame
//	ImageIndex  one of M presentable images, chosen by the presentation engine
//
// The mapping between them is not monotonic, which is why every image keeps
// a reference to the slot fence that last claimed it.
package frame
