package model

import (
	"time"

	"github.com/google/uuid"
)

// ClassUSBDevice USB 设备接口类 GUID (GUID_DEVINTERFACE_USB_DEVICE)
var ClassUSBDevice = uuid.MustParse("a5dcbf10-6530-11d2-901f-00c04fb951ed")

// Kind 宿主通知的种类标签
type Kind int

const (
	KindClipboard Kind = iota + 1
	KindDeviceInterface
	KindVolume
	KindShutdown
)

// Op 到达/移除
type Op int

const (
	OpArrival Op = iota + 1
	OpRemoval
)

// Notification 宿主通知子系统交付的原始载荷
// Windows 端对应消息窗口收到的一条消息,Linux 端对应一条 uevent
type Notification struct {
	Kind      Kind
	Op        Op
	HasHeader bool      // device-interface 载荷头是否存在,缺失的载荷会被丢弃
	Class     uuid.UUID // device-interface 接口类 GUID
	NameW     []uint16  // 宿主原生宽字符设备路径
	UnitMask  uint32    // volume 事件的盘符位图,每个置位对应一个盘符
	MountPath string    // Linux: 已解析的挂载点,仅供卷扫描使用
	Attrs     string    // Linux: sysfs 属性注释 (vid:pid product 等)
	ExitCode  int       // shutdown 携带的退出码
}

// Category 分类后的事件类别
type Category int

const (
	USBDeviceArrival Category = iota + 1
	USBDeviceRemoval
	DeviceInterfaceArrival
	DeviceInterfaceRemoval
	VolumeArrival
	VolumeRemoval
	ClipboardChanged
	Lifecycle
)

// MonitorEvent 分类器产出的瞬态事件,只有渲染出的文本会被持久化
type MonitorEvent struct {
	Category  Category
	Detail    string // 设备路径或盘符
	Message   string // 人类可读的审计行正文
	Timestamp time.Time
}
