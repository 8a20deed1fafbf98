package main

import (
	"os"
	"path/filepath"

	"github.com/Hara602/secSentry/internal/agent"
	"github.com/Hara602/secSentry/internal/devicedb"
	"github.com/Hara602/secSentry/internal/notify"
	"github.com/Hara602/secSentry/internal/sink"
	"github.com/Hara602/secSentry/internal/sysutil"
	"go.uber.org/zap"
)

// 固定文件名,没有参数、环境变量或配置文件
const (
	auditFileName = "secSentryLog.txt"
	deviceDBName  = "secSentryDevices.db"
)

func main() {
	sysutil.InitLogger()
	code := run()
	sysutil.Log.Sync()
	os.Exit(code)
}

// run 致命错误(装目录、审计文件、接收上下文)返回 1,否则返回 shutdown 携带的退出码
func run() int {
	sysutil.Log.Info("🛡️ secSentry starting...")

	dir, err := sysutil.InstallDir()
	if err != nil {
		sysutil.Log.Error("cannot determine install directory", zap.Error(err))
		return 1
	}

	audit, err := sink.Open(filepath.Join(dir, auditFileName), os.Stdout)
	if err != nil {
		sysutil.Log.Error("cannot open audit log", zap.Error(err))
		return 1
	}
	defer audit.Close()

	audit.Append("--- secSentry Started ---")
	audit.Append("Install directory: " + dir)

	devices, err := devicedb.Open(filepath.Join(dir, deviceDBName))
	if err != nil {
		sysutil.Log.Warn("device ledger unavailable, first-seen annotations disabled", zap.Error(err))
		devices = nil
	} else {
		defer devices.Close()
	}

	src, err := notify.New()
	if err != nil {
		sysutil.Log.Error("cannot create notification context", zap.Error(err))
		audit.Append("FATAL: cannot create notification context: " + err.Error())
		return 1
	}
	defer src.Close()

	a := agent.New(src, audit, devices)
	a.RegisterListeners()
	return a.Run()
}
