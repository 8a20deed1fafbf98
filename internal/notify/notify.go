package notify

import "github.com/Hara602/secSentry/internal/model"

// Source 宿主通知子系统的接入点
// New 创建接收上下文(Windows 为消息窗口,Linux 为 netlink 连接),失败即致命;
// 两个 Register 各自独立、失败只降级不终止;Next 阻塞等待下一条通知,
// KindShutdown 表示宿主要求退出并携带退出码
type Source interface {
	RegisterClipboard() error
	RegisterDevice() error
	Next() model.Notification
	UnregisterClipboard()
	Close()
}

func New() (Source, error) {
	return newSource()
}
