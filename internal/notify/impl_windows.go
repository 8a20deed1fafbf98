//go:build windows

package notify

import (
	"encoding/binary"
	"fmt"
	"runtime"
	"unsafe"

	"github.com/Hara602/secSentry/internal/model"
	"github.com/Hara602/secSentry/internal/sysutil"
	"github.com/google/uuid"
	"golang.org/x/sys/windows"
)

const (
	wmClose           = 0x0010
	wmDestroy         = 0x0002
	wmDeviceChange    = 0x0219
	wmClipboardUpdate = 0x031D

	dbtDeviceArrival        = 0x8000
	dbtDeviceRemoveComplete = 0x8004

	dbtDevTypVolume          = 2
	dbtDevTypDeviceInterface = 5

	deviceNotifyAllInterfaceClasses = 0x4
)

var (
	user32 = windows.NewLazySystemDLL("user32.dll")

	procRegisterClassW                = user32.NewProc("RegisterClassW")
	procCreateWindowExW               = user32.NewProc("CreateWindowExW")
	procDefWindowProcW                = user32.NewProc("DefWindowProcW")
	procGetMessageW                   = user32.NewProc("GetMessageW")
	procTranslateMessage              = user32.NewProc("TranslateMessage")
	procDispatchMessageW              = user32.NewProc("DispatchMessageW")
	procPostMessageW                  = user32.NewProc("PostMessageW")
	procPostQuitMessage               = user32.NewProc("PostQuitMessage")
	procAddClipboardFormatListener    = user32.NewProc("AddClipboardFormatListener")
	procRemoveClipboardFormatListener = user32.NewProc("RemoveClipboardFormatListener")
	procRegisterDeviceNotificationW   = user32.NewProc("RegisterDeviceNotificationW")
)

// WNDCLASSW
type wndClass struct {
	Style      uint32
	WndProc    uintptr
	ClsExtra   int32
	WndExtra   int32
	Instance   windows.Handle
	Icon       windows.Handle
	Cursor     windows.Handle
	Background windows.Handle
	MenuName   *uint16
	ClassName  *uint16
}

// MSG
type message struct {
	HWND    windows.HWND
	Message uint32
	WParam  uintptr
	LParam  uintptr
	Time    uint32
	Pt      struct{ X, Y int32 }
}

// DEV_BROADCAST_HDR
type devBroadcastHdr struct {
	Size       uint32
	DeviceType uint32
	Reserved   uint32
}

// DEV_BROADCAST_DEVICEINTERFACE_W,Name 实际为变长的 NUL 终止宽字符串
type devBroadcastDeviceInterface struct {
	Hdr       devBroadcastHdr
	ClassGUID windows.GUID
	Name      [1]uint16
}

// DEV_BROADCAST_VOLUME
type devBroadcastVolume struct {
	Hdr      devBroadcastHdr
	UnitMask uint32
	Flags    uint16
}

type winSource struct {
	hwnd   windows.HWND
	notifs chan model.Notification
}

// newSource 创建消息专用窗口(HWND_MESSAGE)作为通知接收上下文
// 窗口和消息循环必须绑定在同一个 OS 线程上,所以整个泵都跑在一个锁定线程的
// goroutine 里,窗口过程把消息翻译成 Notification 后经通道交给事件循环
func newSource() (Source, error) {
	s := &winSource{notifs: make(chan model.Notification, 16)}
	ready := make(chan error)
	go s.pump(ready)
	if err := <-ready; err != nil {
		return nil, err
	}
	return s, nil
}

func (s *winSource) pump(ready chan<- error) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	className, _ := windows.UTF16PtrFromString("secSentryMessageWindowClass")
	windowName, _ := windows.UTF16PtrFromString("secSentry Hidden Window")

	inst, err := windows.GetModuleHandle(nil)
	if err != nil {
		ready <- fmt.Errorf("GetModuleHandle: %w", err)
		return
	}

	wc := wndClass{
		WndProc: windows.NewCallback(func(hwnd, umsg, wparam, lparam uintptr) uintptr {
			return s.wndProc(hwnd, umsg, wparam, lparam)
		}),
		Instance:  inst,
		ClassName: className,
	}
	if atom, _, errno := procRegisterClassW.Call(uintptr(unsafe.Pointer(&wc))); atom == 0 {
		ready <- fmt.Errorf("RegisterClassW: %w", errno)
		return
	}

	// HWND_MESSAGE 作为父窗口:只收消息,不上屏
	const hwndMessage = ^uintptr(2) // (HWND)-3
	hwnd, _, errno := procCreateWindowExW.Call(
		0,
		uintptr(unsafe.Pointer(className)),
		uintptr(unsafe.Pointer(windowName)),
		0,
		0, 0, 0, 0,
		hwndMessage,
		0,
		uintptr(inst),
		0,
	)
	if hwnd == 0 {
		ready <- fmt.Errorf("CreateWindowExW: %w", errno)
		return
	}
	s.hwnd = windows.HWND(hwnd)
	ready <- nil

	var m message
	exit := 0
	for {
		r, _, _ := procGetMessageW.Call(uintptr(unsafe.Pointer(&m)), 0, 0, 0)
		if int32(r) < 0 {
			exit = 1
			break
		}
		if r == 0 { // WM_QUIT
			exit = int(m.WParam)
			break
		}
		procTranslateMessage.Call(uintptr(unsafe.Pointer(&m)))
		procDispatchMessageW.Call(uintptr(unsafe.Pointer(&m)))
	}
	s.notifs <- model.Notification{Kind: model.KindShutdown, ExitCode: exit}
}

func (s *winSource) wndProc(hwnd, umsg, wparam, lparam uintptr) uintptr {
	switch umsg {
	case wmDestroy:
		sysutil.Log.Info("window destroyed, stopping message loop")
		procPostQuitMessage.Call(0)
		return 0

	case wmClipboardUpdate:
		s.notifs <- model.Notification{Kind: model.KindClipboard}
		return 0

	case wmDeviceChange:
		if wparam == dbtDeviceArrival || wparam == dbtDeviceRemoveComplete {
			op := model.OpArrival
			if wparam == dbtDeviceRemoveComplete {
				op = model.OpRemoval
			}
			if n, ok := decodeDeviceChange(op, lparam); ok {
				s.notifs <- n
			}
		}
		return 1 // TRUE:消息已处理
	}
	r, _, _ := procDefWindowProcW.Call(hwnd, umsg, wparam, lparam)
	return r
}

// decodeDeviceChange 把 WM_DEVICECHANGE 的 lParam 载荷搬进通知模型
// 载荷头为空时仍然上报(HasHeader=false),由分类器统一静默丢弃
func decodeDeviceChange(op model.Op, lparam uintptr) (model.Notification, bool) {
	if lparam == 0 {
		return model.Notification{Kind: model.KindDeviceInterface, Op: op}, true
	}
	hdr := (*devBroadcastHdr)(unsafe.Pointer(lparam))
	switch hdr.DeviceType {
	case dbtDevTypDeviceInterface:
		di := (*devBroadcastDeviceInterface)(unsafe.Pointer(lparam))
		return model.Notification{
			Kind:      model.KindDeviceInterface,
			Op:        op,
			HasHeader: true,
			Class:     guidToUUID(di.ClassGUID),
			NameW:     wideCString(&di.Name[0]),
		}, true
	case dbtDevTypVolume:
		vol := (*devBroadcastVolume)(unsafe.Pointer(lparam))
		return model.Notification{
			Kind:     model.KindVolume,
			Op:       op,
			UnitMask: vol.UnitMask,
		}, true
	}
	// 其他载荷类型(端口/OEM 等)交还默认处理,不记日志
	return model.Notification{}, false
}

func (s *winSource) RegisterClipboard() error {
	if r, _, errno := procAddClipboardFormatListener.Call(uintptr(s.hwnd)); r == 0 {
		return fmt.Errorf("AddClipboardFormatListener: %w", errno)
	}
	return nil
}

func (s *winSource) RegisterDevice() error {
	var filter devBroadcastDeviceInterface
	filter.Hdr.Size = uint32(unsafe.Sizeof(filter))
	filter.Hdr.DeviceType = dbtDevTypDeviceInterface

	h, _, errno := procRegisterDeviceNotificationW.Call(
		uintptr(s.hwnd),
		uintptr(unsafe.Pointer(&filter)),
		deviceNotifyAllInterfaceClasses, // DEVICE_NOTIFY_WINDOW_HANDLE + 全接口类
	)
	if h == 0 {
		return fmt.Errorf("RegisterDeviceNotificationW: %w", errno)
	}
	// 注册句柄不保存:窗口销毁时由系统回收
	return nil
}

func (s *winSource) UnregisterClipboard() {
	procRemoveClipboardFormatListener.Call(uintptr(s.hwnd))
}

func (s *winSource) Next() model.Notification {
	return <-s.notifs
}

// Close 在泵线程上走 WM_CLOSE -> DestroyWindow -> WM_QUIT 的正常销毁路径
func (s *winSource) Close() {
	if s.hwnd != 0 {
		procPostMessageW.Call(uintptr(s.hwnd), wmClose, 0, 0)
	}
}

// guidToUUID Windows GUID 前三段是小端存储,转成 RFC 4122 字节序
func guidToUUID(g windows.GUID) uuid.UUID {
	var u uuid.UUID
	binary.BigEndian.PutUint32(u[0:4], g.Data1)
	binary.BigEndian.PutUint16(u[4:6], g.Data2)
	binary.BigEndian.PutUint16(u[6:8], g.Data3)
	copy(u[8:], g.Data4[:])
	return u
}

// wideCString 复制 NUL 终止的宽字符串,不含终止符
func wideCString(p *uint16) []uint16 {
	if p == nil {
		return nil
	}
	var out []uint16
	for i := uintptr(0); ; i++ {
		c := *(*uint16)(unsafe.Add(unsafe.Pointer(p), i*2))
		if c == 0 {
			return out
		}
		out = append(out, c)
	}
}
