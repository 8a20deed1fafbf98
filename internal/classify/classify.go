package classify

import (
	"unicode/utf16"

	"github.com/Hara602/secSentry/internal/model"
)

// Classify 把一条原始宿主通知归类为监控事件
// 纯函数,无隐藏状态;返回 false 表示该通知应被静默丢弃
func Classify(n model.Notification) (model.MonitorEvent, bool) {
	switch n.Kind {
	case model.KindClipboard:
		return model.MonitorEvent{
			Category: model.ClipboardChanged,
			Message:  "Clipboard content changed (Copy/Paste detected).",
		}, true

	case model.KindDeviceInterface:
		// 载荷头缺失的畸形通知直接丢弃,不产生事件也不留日志
		if !n.HasHeader {
			return model.MonitorEvent{}, false
		}
		path := decodeWide(n.NameW)
		if n.Attrs != "" {
			path += " [" + n.Attrs + "]"
		}
		if n.Class == model.ClassUSBDevice {
			if n.Op == model.OpArrival {
				return model.MonitorEvent{
					Category: model.USBDeviceArrival,
					Detail:   path,
					Message:  "USB Device Plugged In: " + path,
				}, true
			}
			return model.MonitorEvent{
				Category: model.USBDeviceRemoval,
				Detail:   path,
				Message:  "USB Device Removed: " + path,
			}, true
		}
		if n.Op == model.OpArrival {
			return model.MonitorEvent{
				Category: model.DeviceInterfaceArrival,
				Detail:   path,
				Message:  "Non-USB Device Interface Arrival (Potential Driver/Software Install?): " + path,
			}, true
		}
		return model.MonitorEvent{
			Category: model.DeviceInterfaceRemoval,
			Detail:   path,
			Message:  "Non-USB Device Interface Removal: " + path,
		}, true

	case model.KindVolume:
		if n.Op == model.OpArrival {
			letter := driveLetter(n.UnitMask)
			return model.MonitorEvent{
				Category: model.VolumeArrival,
				Detail:   string(letter),
				Message:  "Volume/Drive Mounted: " + string(letter) + `:\`,
			}, true
		}
		// 移除时不解析盘符
		return model.MonitorEvent{
			Category: model.VolumeRemoval,
			Message:  "Volume/Drive Removed.",
		}, true
	}

	return model.MonitorEvent{}, false
}

// driveLetter 取位图中最低的置位映射为盘符,全零时为 '?'
func driveLetter(mask uint32) byte {
	for i := 0; i < 26; i++ {
		if mask&(1<<i) != 0 {
			return byte('A' + i)
		}
	}
	return '?'
}

// decodeWide 宿主原生宽字符转 UTF-8;转换失败退化为空串而不是报错
func decodeWide(w []uint16) string {
	for len(w) > 0 && w[len(w)-1] == 0 {
		w = w[:len(w)-1]
	}
	if len(w) == 0 {
		return ""
	}
	return string(utf16.Decode(w))
}
