package vulkan

import (
	"fmt"

	"github.com/spaghettifunk/atlas/engine/containers"
	"github.com/spaghettifunk/atlas/engine/core"
)

// DeletionKind names the destroy call a DeletionRecord performs.
type DeletionKind int

const (
	DeleteDescriptorPool DeletionKind = iota
	DeleteDescriptorSetLayout
	DeleteFence
	DeleteBuffer
	DeleteImage
	DeleteCommandPool
	DeletePipelineLayout
	DeletePipeline
	DeleteShaderModule
	DeleteImageView
	DeleteSampler
)

var deletionKindNames = [...]string{
	DeleteDescriptorPool:      "descriptor pool",
	DeleteDescriptorSetLayout: "descriptor set layout",
	DeleteFence:               "fence",
	DeleteBuffer:              "buffer",
	DeleteImage:               "image",
	DeleteCommandPool:         "command pool",
	DeletePipelineLayout:      "pipeline layout",
	DeletePipeline:            "pipeline",
	DeleteShaderModule:        "shader module",
	DeleteImageView:           "image view",
	DeleteSampler:             "sampler",
}

func (k DeletionKind) String() string {
	if k >= 0 && int(k) < len(deletionKindNames) {
		return deletionKindNames[k]
	}
	return fmt.Sprintf("DeletionKind(%d)", int(k))
}

// DeletionRecord is one deferred destroy call. Memory is only used by buffer
// and image records, which own their backing allocation.
type DeletionRecord struct {
	Kind   DeletionKind
	Handle uint64
	Memory DeviceMemory
}

func (r DeletionRecord) String() string {
	return fmt.Sprintf("%s %#x", r.Kind, r.Handle)
}

// Execute performs the destroy call on device.
func (r DeletionRecord) Execute(device Device) {
	switch r.Kind {
	case DeleteDescriptorPool:
		device.DestroyDescriptorPool(DescriptorPool(r.Handle))
	case DeleteDescriptorSetLayout:
		device.DestroyDescriptorSetLayout(DescriptorSetLayout(r.Handle))
	case DeleteFence:
		device.DestroyFence(Fence(r.Handle))
	case DeleteBuffer:
		device.DestroyBuffer(Buffer(r.Handle), r.Memory)
	case DeleteImage:
		device.DestroyImage(Image(r.Handle), r.Memory)
	case DeleteCommandPool:
		device.DestroyCommandPool(CommandPool(r.Handle))
	case DeletePipelineLayout:
		device.DestroyPipelineLayout(PipelineLayout(r.Handle))
	case DeletePipeline:
		device.DestroyPipeline(Pipeline(r.Handle))
	case DeleteShaderModule:
		device.DestroyShaderModule(ShaderModule(r.Handle))
	case DeleteImageView:
		device.DestroyImageView(ImageView(r.Handle))
	case DeleteSampler:
		device.DestroySampler(Sampler(r.Handle))
	default:
		core.LogWarn("deletion queue: unknown record kind %d, skipping", int(r.Kind))
	}
}

// DeletionQueue defers destroy calls and runs them newest first. It is owned by
// a single manager and is not safe for concurrent use.
type DeletionQueue struct {
	records containers.Stack[DeletionRecord]
}

func (dq *DeletionQueue) Push(record DeletionRecord) {
	dq.records.Push(record)
}

// Flush executes every pending record in reverse order of registration and
// empties the queue.
func (dq *DeletionQueue) Flush(device Device) {
	if dq.records.IsEmpty() {
		return
	}
	core.LogDebug("flushing deletion queue (%d records)", dq.records.Len())
	dq.records.Drain(func(r DeletionRecord) {
		core.LogDebug("destroying %s", r)
		r.Execute(device)
	})
}

func (dq *DeletionQueue) Len() int {
	return dq.records.Len()
}

// Records returns the pending records in registration order.
func (dq *DeletionQueue) Records() []DeletionRecord {
	return dq.records.Items()
}
