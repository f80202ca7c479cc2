// Package version 构建版本信息，通过 ldflags 注入
package version

import (
	"fmt"
	"runtime"
	"time"
)

// 构建时注入的变量
var (
	Version   = "v0.1.0"
	BuildTime = "unknown" // RFC3339
	BuildEnv  = "development"
)

// GetVersion 获取版本号
func GetVersion() string {
	return Version
}

// GetFullVersion 完整版本信息（用于 version 子命令）
func GetFullVersion() string {
	s := fmt.Sprintf("contractcore %s", Version)
	if BuildTime != "unknown" {
		if t, err := time.Parse(time.RFC3339, BuildTime); err == nil {
			s += fmt.Sprintf("\n构建时间: %s", t.Format("2006-01-02 15:04:05 MST"))
		} else {
			s += fmt.Sprintf("\n构建时间: %s", BuildTime)
		}
	}
	s += fmt.Sprintf("\n构建环境: %s", BuildEnv)
	s += fmt.Sprintf("\nGo版本: %s", runtime.Version())
	s += fmt.Sprintf("\n平台: %s/%s", runtime.GOOS, runtime.GOARCH)
	return s
}
