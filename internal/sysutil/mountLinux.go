//go:build linux

package sysutil

import (
	"bufio"
	"os"
	"strings"
	"time"
)

// WaitForMount 轮询 /proc/mounts 等待设备挂载,返回挂载点
// Udev event 触发时文件系统往往还没挂载好,最多等 3 秒,超时返回空串
func WaitForMount(devPath string) string {
	for i := 0; i < 30; i++ {
		f, err := os.Open("/proc/mounts")
		if err != nil {
			return ""
		}
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			fields := strings.Fields(scanner.Text())
			if len(fields) >= 2 && fields[0] == devPath {
				f.Close()
				return fields[1]
			}
		}
		f.Close()
		time.Sleep(100 * time.Millisecond)
	}
	return ""
}
