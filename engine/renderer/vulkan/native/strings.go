package native

import vk "github.com/goki/vulkan"

const (
	endChar = '\x00'
	end     = "\x00"
)

// VulkanSafeString null terminates s for the C API.
func VulkanSafeString(s string) string {
	if len(s) == 0 {
		return end
	}
	if s[len(s)-1] != endChar {
		return s + end
	}
	return s
}

func VulkanSafeStrings(list []string) []string {
	out := make([]string, len(list))
	for i := range list {
		out[i] = VulkanSafeString(list[i])
	}
	return out
}

// FixedString converts a fixed size, null terminated name array.
func FixedString(arr []byte) string {
	for i, b := range arr {
		if b == 0 {
			return vk.ToString(arr[:i+1])
		}
	}
	return string(arr)
}
