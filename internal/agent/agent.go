package agent

import (
	"os"
	"path/filepath"
	"time"

	"github.com/Hara602/secSentry/internal/analysis"
	"github.com/Hara602/secSentry/internal/classify"
	"github.com/Hara602/secSentry/internal/devicedb"
	"github.com/Hara602/secSentry/internal/model"
	"github.com/Hara602/secSentry/internal/notify"
	"github.com/Hara602/secSentry/internal/sink"
	"github.com/Hara602/secSentry/internal/sysutil"
	"go.uber.org/zap"
)

// Agent 事件循环本体:阻塞取通知 -> 分类 -> 落审计行,循环到 shutdown 为止
// 所有协作对象在启动时显式注入,没有包级可变状态
type Agent struct {
	src     notify.Source
	audit   *sink.AuditLog
	devices *devicedb.DB // 可为 nil:台账打不开只是降级
	sweeper *analysis.TypeInspector
	log     *zap.Logger
}

func New(src notify.Source, audit *sink.AuditLog, devices *devicedb.DB) *Agent {
	log := sysutil.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Agent{
		src:     src,
		audit:   audit,
		devices: devices,
		sweeper: analysis.NewTypeInspector(),
		log:     log,
	}
}

// RegisterListeners 固定顺序注册:剪贴板在前,设备接口在后
// 每次注册尝试不论成败都产生恰好一条审计行;失败只降级覆盖面,不终止
func (a *Agent) RegisterListeners() {
	if err := a.src.RegisterClipboard(); err != nil {
		a.log.Warn("clipboard listener registration failed", zap.Error(err))
		a.audit.Append("WARNING: Failed to register clipboard listener. Copy/Paste events will not be logged. (" + err.Error() + ")")
	} else {
		a.audit.Append("Successfully registered clipboard listener.")
	}

	if err := a.src.RegisterDevice(); err != nil {
		a.log.Warn("device listener registration failed", zap.Error(err))
		a.audit.Append("WARNING: Failed to register device notifications. USB/Device events may not be logged accurately. (" + err.Error() + ")")
	} else {
		a.audit.Append("Successfully registered for device notifications.")
	}
}

// Run 阻塞运行到宿主交付 shutdown 通知,返回其携带的退出码
// 事件严格按宿主交付顺序落盘,不重排、不缓冲、不合并
func (a *Agent) Run() int {
	a.audit.Append("Starting message loop. Monitoring active...")

	for {
		n := a.src.Next()
		if n.Kind == model.KindShutdown {
			a.audit.Append("--- secSentry Stopping ---")
			// 剪贴板监听尽力注销;设备通知句柄由宿主随接收上下文一起回收
			a.src.UnregisterClipboard()
			return n.ExitCode
		}

		evt, ok := classify.Classify(n)
		if !ok {
			continue
		}
		evt.Timestamp = time.Now()

		if evt.Category == model.USBDeviceArrival && a.devices != nil {
			first, err := a.devices.MarkSeen(evt.Detail, evt.Timestamp)
			if err != nil {
				a.log.Warn("device ledger update failed", zap.Error(err))
			} else if first {
				evt.Message += " (first seen)"
			}
		}

		a.audit.Append(evt.Message)

		if evt.Category == model.VolumeArrival {
			a.sweepVolume(volumeRoot(n, evt))
		}
	}
}

// volumeRoot 新卷的根路径:Windows 用盘符,Linux 用已解析的挂载点
func volumeRoot(n model.Notification, evt model.MonitorEvent) string {
	if n.MountPath != "" {
		return n.MountPath
	}
	if evt.Detail != "" && evt.Detail != "?" {
		return evt.Detail + `:\`
	}
	return ""
}

// sweepVolume 对新到的卷扫一遍顶层文件,伪装文件每个记一条告警审计行
// 只检查不处置
func (a *Agent) sweepVolume(root string) {
	if root == "" {
		return
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		a.log.Debug("volume sweep skipped", zap.String("root", root), zap.Error(err))
		return
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(root, e.Name())
		res, err := a.sweeper.Inspect(path)
		if err != nil {
			a.log.Debug("inspect failed", zap.String("file", path), zap.Error(err))
			continue
		}
		if res.IsMasquerade {
			a.log.Warn("masquerading file on new volume",
				zap.String("file", path), zap.String("risk", res.RiskLevel))
			a.audit.Append("WARNING: Masquerading file on new volume: " + path +
				" (" + res.Message + ", risk " + res.RiskLevel + ")")
		}
	}
}
