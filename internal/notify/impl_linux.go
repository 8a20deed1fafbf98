//go:build linux

package notify

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"unicode/utf16"

	"github.com/Hara602/secSentry/internal/model"
	"github.com/Hara602/secSentry/internal/sysutil"
	"github.com/pilebones/go-udev/netlink"
)

// Linux 端没有剪贴板通知可订阅,注册直接降级
var errNoClipboard = errors.New("clipboard change notifications are not available on linux")

type linuxSource struct {
	conn     *netlink.UEventConn
	notifs   chan model.Notification
	stop     chan struct{}
	stopOnce sync.Once
}

// newSource 连接 NETLINK_KOBJECT_UEVENT 作为通知接收上下文
// SIGINT/SIGTERM 充当宿主的 shutdown 通知,退出码为 0
func newSource() (Source, error) {
	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.UdevEvent); err != nil {
		return nil, fmt.Errorf("netlink connect: %w", err)
	}
	s := &linuxSource{
		conn:   conn,
		notifs: make(chan model.Notification, 16),
		stop:   make(chan struct{}),
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigs:
			s.emit(model.Notification{Kind: model.KindShutdown})
		case <-s.stop:
		}
	}()
	return s, nil
}

func (s *linuxSource) RegisterClipboard() error {
	return errNoClipboard
}

// RegisterDevice 启动 uevent 监听并把设备/卷事件翻译进通知模型
func (s *linuxSource) RegisterDevice() error {
	queue := make(chan netlink.UEvent)
	errChan := make(chan error)
	quit := s.conn.Monitor(queue, errChan, nil)

	go func() {
		defer s.conn.Close()
		for {
			select {
			case <-s.stop:
				close(quit)
				return
			case <-errChan:
				// 底层读错误忽略,继续监听
				continue
			case uevent := <-queue:
				s.handleUEvent(uevent)
			}
		}
	}()
	return nil
}

func (s *linuxSource) handleUEvent(uevent netlink.UEvent) {
	if uevent.Action != "add" && uevent.Action != "remove" {
		return
	}
	op := model.OpArrival
	if uevent.Action == "remove" {
		op = model.OpRemoval
	}
	devPath := uevent.Env["DEVPATH"]

	switch {
	case uevent.Env["SUBSYSTEM"] == "usb" && uevent.Env["DEVTYPE"] == "usb_device":
		n := model.Notification{
			Kind:      model.KindDeviceInterface,
			Op:        op,
			HasHeader: true,
			Class:     model.ClassUSBDevice,
			NameW:     utf16.Encode([]rune(devPath)),
		}
		if op == model.OpArrival {
			n.Attrs = usbAttrs("/sys" + devPath)
		}
		s.emit(n)

	case uevent.Env["SUBSYSTEM"] == "block" && uevent.Env["DEVTYPE"] == "partition":
		if op == model.OpArrival {
			devName := uevent.Env["DEVNAME"]
			if !strings.HasPrefix(devName, "/dev") {
				devName = "/dev/" + devName
			}
			// Udev 事件到达时文件系统往往还没挂载好,等挂载点出现后再上报
			go func() {
				s.emit(model.Notification{
					Kind:      model.KindVolume,
					Op:        model.OpArrival,
					MountPath: sysutil.WaitForMount(devName),
				})
			}()
			return
		}
		s.emit(model.Notification{Kind: model.KindVolume, Op: model.OpRemoval})

	case uevent.Env["SUBSYSTEM"] != "block" && uevent.Env["DEVNAME"] != "":
		// 其他带设备节点的子系统(hidraw/tty/...)映射为非 USB 接口变更
		s.emit(model.Notification{
			Kind:      model.KindDeviceInterface,
			Op:        op,
			HasHeader: true,
			NameW:     utf16.Encode([]rune(devPath)),
		})
	}
}

func (s *linuxSource) emit(n model.Notification) {
	select {
	case s.notifs <- n:
	case <-s.stop:
	}
}

func (s *linuxSource) Next() model.Notification {
	return <-s.notifs
}

func (s *linuxSource) UnregisterClipboard() {}

func (s *linuxSource) Close() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// usbAttrs 读取 sysfs 设备属性拼出注释,同时检测 存储+HID 复合接口
// (复合接口是 BadUSB 的典型特征,值得在审计行里点名)
func usbAttrs(sysPath string) string {
	vid := readAttr(filepath.Join(sysPath, "idVendor"))
	pid := readAttr(filepath.Join(sysPath, "idProduct"))
	product := readAttr(filepath.Join(sysPath, "product"))

	attrs := vid + ":" + pid + " " + product
	if hasStorageAndHID(sysPath) {
		attrs += " (storage+HID composite interfaces)"
	}
	return attrs
}

// hasStorageAndHID 同一设备树下同时出现 08(存储) 和 03(HID) 接口类
func hasStorageAndHID(sysPath string) bool {
	entries, err := os.ReadDir(sysPath)
	if err != nil {
		return false
	}
	hasStorage, hasHID := false, false
	for _, e := range entries {
		// 接口目录形如 1-1:1.0
		if !strings.Contains(e.Name(), ":") {
			continue
		}
		class := readAttr(filepath.Join(sysPath, e.Name(), "bInterfaceClass"))
		if class == "03" {
			hasHID = true
		}
		if class == "08" {
			hasStorage = true
		}
	}
	return hasStorage && hasHID
}

func readAttr(path string) string {
	b, err := os.ReadFile(path)
	if err != nil {
		return "unknown"
	}
	return strings.TrimSpace(string(b))
}
