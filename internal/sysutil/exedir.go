package sysutil

import (
	"fmt"
	"os"
	"path/filepath"
)

// InstallDir 可执行文件所在目录,审计文件和设备台账都固定放在这里
func InstallDir() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("resolve executable path: %w", err)
	}
	return filepath.Dir(exe), nil
}
