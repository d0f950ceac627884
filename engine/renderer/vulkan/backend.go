package vulkan

import (
	"errors"
	"fmt"
	"runtime"
	"slices"
	"unsafe"

	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/array/engine/core"
	"github.com/spaghettifunk/array/engine/renderer/metadata"
)

const validationLayer = "VK_LAYER_KHRONOS_validation"

// Uniform offsets are never aligned below this, whatever the device reports.
const minUniformAlignment = 256

// WindowSurface is the window the device presents to. *glfw.Window
// implements it.
type WindowSurface interface {
	GetRequiredInstanceExtensions() []string
	CreateWindowSurface(instance interface{}, allocCallbacks unsafe.Pointer) (uintptr, error)
}

type Options struct {
	ApplicationName string
	Width           uint32
	Height          uint32
	VSync           bool
	// Debug enables the validation layer and routes its reports to the log.
	Debug          bool
	PreferDiscrete bool
	Shaders        metadata.ShaderLibrary
}

// Device implements the renderer metadata interfaces on top of Vulkan.
type Device struct {
	opts    Options
	context *VulkanContext

	descriptors *VulkanDescriptors
	uploads     uploadQueue
	queue       *CommandQueue
	destination *Destination

	released bool
}

// New creates the instance, the surface for window, the logical device and
// the initial swapchain.
func New(window WindowSurface, opts Options) (*Device, error) {
	if opts.Shaders == nil {
		return nil, fmt.Errorf("vulkan device needs a shader library: %w", core.ErrInvalidConfig)
	}
	if opts.ApplicationName == "" {
		opts.ApplicationName = "array"
	}

	procAddr := glfw.GetVulkanGetInstanceProcAddress()
	if procAddr == nil {
		return nil, fmt.Errorf("GetInstanceProcAddress is nil: %w", core.ErrDeviceNotFound)
	}
	vk.SetGetInstanceProcAddr(procAddr)
	if err := vk.Init(); err != nil {
		return nil, fmt.Errorf("vulkan loader: %w", err)
	}

	d := &Device{
		opts: opts,
		context: &VulkanContext{
			FramebufferWidth:  opts.Width,
			FramebufferHeight: opts.Height,
			locks:             NewVulkanLockPool(),
		},
	}
	if err := d.initialize(window); err != nil {
		d.Release()
		return nil, err
	}
	return d, nil
}

func (d *Device) initialize(window WindowSurface) error {
	context := d.context

	if err := d.createInstance(window.GetRequiredInstanceExtensions()); err != nil {
		return err
	}
	core.LogInfo("Vulkan Instance created.")

	if d.opts.Debug {
		core.LogDebug("Creating Vulkan debugger...")
		var dbg vk.DebugReportCallback
		if err := checkResult("vkCreateDebugReportCallbackEXT", vk.CreateDebugReportCallback(context.Instance, &vk.DebugReportCallbackCreateInfo{
			SType:       vk.StructureTypeDebugReportCallbackCreateInfo,
			Flags:       vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit | vk.DebugReportPerformanceWarningBit),
			PfnCallback: dbgCallbackFunc,
		}, context.Allocator, &dbg)); err != nil {
			return err
		}
		context.debugMessenger = dbg
		core.LogDebug("Vulkan debugger created.")
	}

	core.LogDebug("Creating Vulkan surface...")
	surface, err := window.CreateWindowSurface(context.Instance, nil)
	if err != nil {
		return fmt.Errorf("window surface: %w", err)
	}
	context.Surface = vk.SurfaceFromPointer(surface)
	core.LogDebug("Vulkan surface created.")

	if err := DeviceCreate(context, d.opts.PreferDiscrete); err != nil {
		return err
	}

	swapchain, err := SwapchainCreate(context, context.FramebufferWidth, context.FramebufferHeight, d.opts.VSync)
	if err != nil {
		return err
	}
	context.Swapchain = swapchain

	renderpass, err := RenderpassCreate(context, swapchain.ImageFormat.Format, context.Device.DepthFormat)
	if err != nil {
		return err
	}
	context.MainRenderpass = renderpass

	if err := swapchain.RegenerateFramebuffers(context, renderpass); err != nil {
		return err
	}

	if d.descriptors, err = DescriptorsCreate(context); err != nil {
		return err
	}
	d.queue = newCommandQueue(d)
	d.destination = newDestination(context, d.opts.VSync)

	core.LogInfo("Vulkan device %s initialized.", context.Device.Name)
	return nil
}

func (d *Device) createInstance(windowExtensions []string) error {
	context := d.context

	extensions := []string{"VK_KHR_surface"}
	for _, ext := range windowExtensions {
		if !slices.Contains(extensions, ext) {
			extensions = append(extensions, ext)
		}
	}
	var flags vk.InstanceCreateFlags
	if runtime.GOOS == "darwin" {
		extensions = append(extensions,
			"VK_KHR_portability_enumeration",
			"VK_KHR_get_physical_device_properties2",
		)
		// VK_INSTANCE_CREATE_ENUMERATE_PORTABILITY_BIT_KHR
		flags |= 1
	}

	var layers []string
	if d.opts.Debug {
		extensions = append(extensions, vk.ExtDebugReportExtensionName)
		ok, err := layerAvailable(validationLayer)
		if err != nil {
			return err
		}
		if ok {
			layers = append(layers, validationLayer)
		} else {
			core.LogWarn("Validation layer %s is missing, continuing without it.", validationLayer)
		}
	}
	core.LogDebug("Required extensions: %v", extensions)

	createInfo := vk.InstanceCreateInfo{
		SType: vk.StructureTypeInstanceCreateInfo,
		Flags: flags,
		PApplicationInfo: &vk.ApplicationInfo{
			SType:              vk.StructureTypeApplicationInfo,
			ApiVersion:         uint32(vk.MakeVersion(1, 1, 0)),
			ApplicationVersion: uint32(vk.MakeVersion(1, 0, 0)),
			PApplicationName:   VulkanSafeString(d.opts.ApplicationName),
			PEngineName:        VulkanSafeString("Array Engine"),
		},
		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: VulkanSafeStrings(extensions),
		EnabledLayerCount:       uint32(len(layers)),
		PpEnabledLayerNames:     VulkanSafeStrings(layers),
	}

	var instance vk.Instance
	if err := checkResult("vkCreateInstance", vk.CreateInstance(&createInfo, context.Allocator, &instance)); err != nil {
		return err
	}
	context.Instance = instance
	return vk.InitInstance(instance)
}

func layerAvailable(name string) (bool, error) {
	var count uint32
	if err := checkResult("vkEnumerateInstanceLayerProperties", vk.EnumerateInstanceLayerProperties(&count, nil)); err != nil {
		return false, err
	}
	layers := make([]vk.LayerProperties, count)
	if err := checkResult("vkEnumerateInstanceLayerProperties", vk.EnumerateInstanceLayerProperties(&count, layers)); err != nil {
		return false, err
	}
	for i := range layers {
		layers[i].Deref()
		if cString(layers[i].LayerName[:]) == name {
			return true, nil
		}
	}
	return false, nil
}

func (d *Device) Name() string {
	if d.context.Device == nil {
		return "vulkan"
	}
	return d.context.Device.Name
}

func (d *Device) NewBuffer(label string, size int, usage metadata.BufferUsage) (metadata.Buffer, error) {
	buf, err := BufferCreate(d.context, label, size, usage)
	if err != nil {
		return nil, err
	}
	return buf, nil
}

func (d *Device) NewBufferWithBytes(label string, data []byte, usage metadata.BufferUsage) (metadata.Buffer, error) {
	buf, err := BufferCreate(d.context, label, len(data), usage)
	if err != nil {
		return nil, err
	}
	if err := buf.Write(0, data); err != nil {
		buf.Release()
		return nil, err
	}
	return buf, nil
}

func (d *Device) NewTexture(desc metadata.TextureDescriptor) (metadata.Texture, error) {
	tex, err := TextureCreate(d.context, &d.uploads, desc)
	if err != nil {
		return nil, err
	}
	return tex, nil
}

func (d *Device) NewRenderPipeline(desc *metadata.PipelineDescriptor) (metadata.Pipeline, error) {
	pipeline, err := PipelineCreate(d.context, d.descriptors, d.opts.Shaders, desc)
	if err != nil {
		return nil, err
	}
	return pipeline, nil
}

func (d *Device) CommandQueue() metadata.CommandQueue {
	return d.queue
}

// Destination is the window swapchain.
func (d *Device) Destination() *Destination {
	return d.destination
}

func (d *Device) MinUniformBufferOffsetAlignment() int {
	alignment := int(d.context.Device.Properties.Limits.MinUniformBufferOffsetAlignment)
	return max(alignment, minUniformAlignment)
}

func (d *Device) WaitIdle() error {
	if d.queue != nil {
		d.queue.waitIdle()
	}
	if d.context.Device == nil || d.context.Device.LogicalDevice == nil {
		return nil
	}
	return d.context.locks.SafeCall(QueueManagement, func() error {
		return checkResult("vkDeviceWaitIdle", vk.DeviceWaitIdle(d.context.Device.LogicalDevice))
	})
}

// Release destroys everything in reverse creation order. Resources created
// from the device must have been released already.
func (d *Device) Release() {
	if d.released {
		return
	}
	d.released = true
	context := d.context

	if err := d.WaitIdle(); err != nil && !errors.Is(err, core.ErrClosed) {
		core.LogWarn("vulkan device wait idle: %s", err)
	}
	if d.queue != nil {
		d.queue.close()
	}
	if d.destination != nil {
		d.destination.destroy()
	}
	if d.descriptors != nil {
		d.descriptors.Destroy(context)
	}
	if context.Swapchain != nil {
		context.Swapchain.SwapchainDestroy(context)
		context.Swapchain = nil
	}
	if context.MainRenderpass != nil {
		context.MainRenderpass.RenderpassDestroy(context)
		context.MainRenderpass = nil
	}

	core.LogDebug("Destroying Vulkan device...")
	DeviceDestroy(context)

	if context.Surface != vk.NullSurface {
		core.LogDebug("Destroying Vulkan surface...")
		vk.DestroySurface(context.Instance, context.Surface, context.Allocator)
		context.Surface = vk.NullSurface
	}
	if context.debugMessenger != vk.NullDebugReportCallback {
		core.LogDebug("Destroying Vulkan debugger...")
		vk.DestroyDebugReportCallback(context.Instance, context.debugMessenger, context.Allocator)
		context.debugMessenger = vk.NullDebugReportCallback
	}
	if context.Instance != nil {
		core.LogDebug("Destroying Vulkan instance...")
		vk.DestroyInstance(context.Instance, context.Allocator)
		context.Instance = nil
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
		core.LogDebug("[%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	}
	return vk.Bool32(vk.False)
}
