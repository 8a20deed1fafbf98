package sink

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/Hara602/secSentry/internal/sysutil"
	"go.uber.org/zap"
)

const timeLayout = "[2006-01-02 15:04:05] "

// AuditLog 只追加的审计落盘,同一行内容同时镜像到控制台流
// 单线程访问,不需要锁;文件句柄在进程生命周期内由本对象独占
type AuditLog struct {
	console io.Writer
	file    *os.File
	path    string
	now     func() time.Time
	log     *zap.Logger
}

// Open 以追加模式打开审计文件,从不截断,历史跨重启保留
func Open(path string, console io.Writer) (*AuditLog, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open audit log %s: %w", path, err)
	}
	log := sysutil.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &AuditLog{
		console: console,
		file:    f,
		path:    path,
		now:     time.Now,
		log:     log,
	}, nil
}

// Append 写入一行审计记录,时间戳取本地时钟、于落盘时刻赋予
// 文件写失败不重试也不中止进程:大声告警后退化为纯控制台模式
func (a *AuditLog) Append(message string) {
	line := a.now().Format(timeLayout) + message + "\n"

	io.WriteString(a.console, line)

	if a.file == nil {
		return
	}
	if _, err := a.file.Write([]byte(line)); err != nil {
		fmt.Fprintf(a.console, "%sFATAL: Failed to write to log file '%s': %v\n",
			a.now().Format(timeLayout), a.path, err)
		a.log.Error("audit file write failed, continuing console-only",
			zap.String("path", a.path), zap.Error(err))
		a.file.Close()
		a.file = nil
		return
	}
	// 审计轨迹优先保证持久性而不是吞吐,每行都刷盘
	a.file.Sync()
}

func (a *AuditLog) Close() error {
	if a.file == nil {
		return nil
	}
	err := a.file.Close()
	a.file = nil
	return err
}
