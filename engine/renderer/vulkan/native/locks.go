package native

import "sync"

type LockGroup string

const (
	DescriptorManagement  LockGroup = "descriptor_management"
	CommandPoolManagement LockGroup = "command_pool_management"
	MemoryManagement      LockGroup = "memory_management"
	DeviceManagement      LockGroup = "device_management"
)

// LockPool hands out one mutex per lock group and one per queue family.
// Vulkan requires host synchronization of pools and queues; everything else
// is free threaded.
type LockPool struct {
	locks map[LockGroup]*sync.Mutex
	mu    sync.Mutex // Protects access to the maps

	queueMutexes map[uint32]*sync.Mutex // Queue family index as key
}

func NewLockPool() *LockPool {
	return &LockPool{
		locks:        make(map[LockGroup]*sync.Mutex),
		queueMutexes: make(map[uint32]*sync.Mutex),
	}
}

// Get or create the mutex of a group
func (lp *LockPool) lock(group LockGroup) *sync.Mutex {
	lp.mu.Lock()
	l, exists := lp.locks[group]
	if !exists {
		l = &sync.Mutex{}
		lp.locks[group] = l
	}
	lp.mu.Unlock()
	return l
}

func (lp *LockPool) SafeCall(group LockGroup, fn func()) {
	l := lp.lock(group)
	l.Lock()
	defer l.Unlock()

	fn()
}

func (lp *LockPool) SetQueueFamily(index uint32) {
	lp.mu.Lock()
	defer lp.mu.Unlock()

	if _, exists := lp.queueMutexes[index]; !exists {
		lp.queueMutexes[index] = &sync.Mutex{}
	}
}

func (lp *LockPool) SafeQueueCall(queueFamilyIndex uint32, fn func()) {
	lp.mu.Lock()
	l, exists := lp.queueMutexes[queueFamilyIndex]
	if !exists {
		l = &sync.Mutex{}
		lp.queueMutexes[queueFamilyIndex] = l
	}
	lp.mu.Unlock()

	l.Lock()
	defer l.Unlock()

	fn()
}
