// Package configs 内置配置模板
package configs

import _ "embed"

// Default contractcore 默认配置模板，由 `contractcore init-config` 写出
//
//go:embed contractcore.json
var Default []byte
