package native

import (
	"runtime"
	"unsafe"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/atlas/engine/core"
	"github.com/spaghettifunk/atlas/engine/platform"
	"github.com/spaghettifunk/atlas/engine/renderer/vulkan"
)

type BootstrapConfig struct {
	ApplicationName string
	// Enables the Khronos validation layer and the debug report callback.
	Debug bool
	// Only accept discrete GPUs.
	DiscreteGPU bool
}

/**
 * @brief Everything the resource layer needs from the driver: the device,
 * the queue uploads are submitted to and its family index. Built once by
 * Bootstrap and passed explicitly to whoever needs it.
 */
type Context struct {
	Instance vk.Instance
	Device   *Device

	Queue            vulkan.Queue
	QueueFamilyIndex uint32

	platform       *platform.Platform
	debugMessenger vk.DebugReportCallback
}

// Bootstrap loads Vulkan, creates an instance, picks a physical device with
// a transfer capable queue and creates the logical device.
func Bootstrap(cfg BootstrapConfig) (*Context, error) {
	p := platform.New()
	if err := p.Startup(); err != nil {
		return nil, err
	}
	procAddr, err := p.InstanceProcAddress()
	if err != nil {
		p.Shutdown()
		return nil, err
	}
	vk.SetGetInstanceProcAddr(procAddr)
	if err := vk.Init(); err != nil {
		p.Shutdown()
		return nil, errors.Wrap(err, "failed to initialize vk")
	}

	ctx := &Context{platform: p}
	if err := ctx.createInstance(cfg); err != nil {
		ctx.Destroy()
		return nil, err
	}
	if err := ctx.createDevice(cfg); err != nil {
		ctx.Destroy()
		return nil, err
	}
	return ctx, nil
}

func (c *Context) createInstance(cfg BootstrapConfig) error {
	appName := cfg.ApplicationName
	if appName == "" {
		appName = "Atlas"
	}
	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         uint32(vk.MakeVersion(1, 1, 0)),
		ApplicationVersion: uint32(vk.MakeVersion(1, 0, 0)),
		PApplicationName:   VulkanSafeString(appName),
		PEngineName:        VulkanSafeString("Atlas Engine"),
	}
	createInfo := vk.InstanceCreateInfo{
		SType:            vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: appInfo,
	}

	extensions := []string{}
	if runtime.GOOS == "darwin" {
		extensions = append(extensions,
			"VK_KHR_portability_enumeration",
			"VK_KHR_get_physical_device_properties2",
		)
		createInfo.Flags |= 1
	}

	layers := []string{}
	if cfg.Debug {
		extensions = append(extensions, vk.ExtDebugReportExtensionName)
		ok, err := validationLayerAvailable("VK_LAYER_KHRONOS_validation")
		if err != nil {
			return err
		}
		if ok {
			layers = append(layers, "VK_LAYER_KHRONOS_validation")
		} else {
			core.LogWarn("Validation layer requested but not present, continuing without it.")
		}
	}

	createInfo.EnabledExtensionCount = uint32(len(extensions))
	createInfo.PpEnabledExtensionNames = VulkanSafeStrings(extensions)
	createInfo.EnabledLayerCount = uint32(len(layers))
	createInfo.PpEnabledLayerNames = VulkanSafeStrings(layers)

	if res := vk.CreateInstance(&createInfo, nil, &c.Instance); res != vk.Success {
		return errors.Newf("failed in creating the Vulkan Instance with error `%s`", vulkan.ResultString(res))
	}
	if err := vk.InitInstance(c.Instance); err != nil {
		return errors.Wrap(err, "vk.InitInstance")
	}
	core.LogInfo("Vulkan Instance created.")

	if cfg.Debug {
		debugCreateInfo := vk.DebugReportCallbackCreateInfo{
			SType:       vk.StructureTypeDebugReportCallbackCreateInfo,
			Flags:       vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit | vk.DebugReportPerformanceWarningBit),
			PfnCallback: dbgCallbackFunc,
		}
		var dbg vk.DebugReportCallback
		if err := vk.Error(vk.CreateDebugReportCallback(c.Instance, &debugCreateInfo, nil, &dbg)); err != nil {
			core.LogWarn("vk.CreateDebugReportCallback failed with %s", err)
		} else {
			c.debugMessenger = dbg
			core.LogDebug("Vulkan debugger created.")
		}
	}
	return nil
}

func validationLayerAvailable(name string) (bool, error) {
	var count uint32
	if res := vk.EnumerateInstanceLayerProperties(&count, nil); res != vk.Success {
		return false, errors.Newf("vkEnumerateInstanceLayerProperties: %s", vulkan.ResultString(res))
	}
	layers := make([]vk.LayerProperties, count)
	if res := vk.EnumerateInstanceLayerProperties(&count, layers); res != vk.Success {
		return false, errors.Newf("vkEnumerateInstanceLayerProperties: %s", vulkan.ResultString(res))
	}
	for i := range layers {
		layers[i].Deref()
		if FixedString(layers[i].LayerName[:]) == name {
			return true, nil
		}
	}
	return false, nil
}

// transferFamily picks the queue family uploads go to. Graphics and compute
// families support transfers implicitly.
func transferFamily(physical vk.PhysicalDevice) (uint32, bool) {
	var count uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(physical, &count, nil)
	families := make([]vk.QueueFamilyProperties, count)
	vk.GetPhysicalDeviceQueueFamilyProperties(physical, &count, families)

	want := vk.QueueFlags(vk.QueueGraphicsBit | vk.QueueComputeBit | vk.QueueTransferBit)
	for i := range families {
		families[i].Deref()
		if families[i].QueueFlags&want != 0 {
			return uint32(i), true
		}
	}
	return 0, false
}

func (c *Context) createDevice(cfg BootstrapConfig) error {
	var count uint32
	if res := vk.EnumeratePhysicalDevices(c.Instance, &count, nil); res != vk.Success {
		return errors.Newf("vkEnumeratePhysicalDevices: %s", vulkan.ResultString(res))
	}
	if count == 0 {
		return errors.New("No devices which support Vulkan were found.")
	}
	physicalDevices := make([]vk.PhysicalDevice, count)
	if res := vk.EnumeratePhysicalDevices(c.Instance, &count, physicalDevices); res != vk.Success {
		return errors.Newf("vkEnumeratePhysicalDevices: %s", vulkan.ResultString(res))
	}

	var selected vk.PhysicalDevice
	var family uint32
	for _, pd := range physicalDevices {
		var properties vk.PhysicalDeviceProperties
		vk.GetPhysicalDeviceProperties(pd, &properties)
		properties.Deref()

		if cfg.DiscreteGPU && runtime.GOOS != "darwin" && properties.DeviceType != vk.PhysicalDeviceTypeDiscreteGpu {
			core.LogInfo("Device is not a discrete GPU, and one is required. Skipping.")
			continue
		}
		idx, ok := transferFamily(pd)
		if !ok {
			continue
		}
		core.LogInfo("Selected device: '%s'.", FixedString(properties.DeviceName[:]))
		core.LogInfo(
			"Vulkan API version: %d.%d.%d",
			vk.Version.Major(vk.Version(properties.ApiVersion)),
			vk.Version.Minor(vk.Version(properties.ApiVersion)),
			vk.Version.Patch(vk.Version(properties.ApiVersion)),
		)
		selected = pd
		family = idx
		break
	}
	if selected == nil {
		return errors.New("No physical devices were found which meet the requirements.")
	}

	extensions := []string{}
	if runtime.GOOS == "darwin" {
		extensions = append(extensions, "VK_KHR_portability_subset")
	}
	queueCreateInfos := []vk.DeviceQueueCreateInfo{{
		SType:            vk.StructureTypeDeviceQueueCreateInfo,
		QueueFamilyIndex: family,
		QueueCount:       1,
		PQueuePriorities: []float32{1.0},
	}}
	deviceCreateInfo := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueCreateInfos)),
		PQueueCreateInfos:       queueCreateInfos,
		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: VulkanSafeStrings(extensions),
	}
	var logical vk.Device
	if res := vk.CreateDevice(selected, &deviceCreateInfo, nil, &logical); res != vk.Success {
		return errors.Newf("vkCreateDevice: %s", vulkan.ResultString(res))
	}
	core.LogInfo("Logical device created.")

	var queue vk.Queue
	vk.GetDeviceQueue(logical, family, 0, &queue)

	c.Device = NewDevice(selected, logical)
	c.Queue = c.Device.RegisterQueue(queue, family)
	c.QueueFamilyIndex = family
	core.LogInfo("Queues obtained.")
	return nil
}

// Destroy tears down the device and the instance. Every resource created on
// the device must already be gone.
func (c *Context) Destroy() {
	if c.Device != nil && c.Device.LogicalDevice != nil {
		for kind, n := range c.Device.Live() {
			if n > 0 {
				core.LogWarn("%d %s objects still alive at device destruction", n, kind)
			}
		}
		core.LogInfo("Destroying logical device...")
		vk.DestroyDevice(c.Device.LogicalDevice, nil)
		c.Device.LogicalDevice = nil
	}
	if c.debugMessenger != nil {
		vk.DestroyDebugReportCallback(c.Instance, c.debugMessenger, nil)
		c.debugMessenger = nil
	}
	if c.Instance != nil {
		vk.DestroyInstance(c.Instance, nil)
		c.Instance = nil
	}
	if c.platform != nil {
		c.platform.Shutdown()
		c.platform = nil
	}
}

func dbgCallbackFunc(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType, object uint64, location uint64, messageCode int32, pLayerPrefix string, pMessage string, pUserData unsafe.Pointer) vk.Bool32 {
	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		core.LogError("ERROR: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit) != 0:
		core.LogWarn("WARNING: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportPerformanceWarningBit) != 0:
		core.LogWarn("PERFORMANCE WARNING: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	default:
		core.LogDebug("INFORMATION: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	}
	return vk.Bool32(vk.False)
}
