package vulkan

import (
	"time"

	"github.com/spaghettifunk/atlas/engine/config"
)

/**
 * @brief Number of descriptor sets carved from one pool unless the renderer
 * config says otherwise. Pool sizes are multiplied by this value.
 */
const DefaultSetsPerPool uint32 = config.DefaultSetsPerPool

/**
 * @brief Fence wait timeout used when none is configured. Waits forever.
 */
const InfiniteFenceTimeout uint64 = ^uint64(0)

// fenceTimeoutNs converts a configured duration to a driver timeout. Zero
// means no timeout.
func fenceTimeoutNs(d time.Duration) uint64 {
	if d <= 0 {
		return InfiniteFenceTimeout
	}
	return uint64(d.Nanoseconds())
}
