package log

import (
	"go.uber.org/zap/zapcore"
)

// 日志配置默认值
const (
	// defaultLogLevel 默认日志级别
	// 原因：info 记录部署、升级、回滚等关键事件，执行细节留给 debug
	defaultLogLevel = "info"

	// defaultToConsole 默认不输出到控制台
	// 原因：命令行输出结果本身走 stdout，日志混入会干扰脚本解析
	defaultToConsole = false

	// defaultFilePath 默认写入 stderr
	// 原因：未配置数据目录时不在磁盘上留下文件
	defaultFilePath = "stderr"

	// defaultMaxSize 单个日志文件最大大小(MB)
	defaultMaxSize = 100

	// defaultMaxBackups 最大备份文件数
	defaultMaxBackups = 10

	// defaultMaxAge 日志文件最大保留天数
	// 原因：覆盖常见的问题排查窗口
	defaultMaxAge = 30

	// defaultCompress 压缩历史日志
	defaultCompress = true

	// defaultEnableCaller 启用调用者信息
	defaultEnableCaller = true

	// defaultEnableStacktrace Error 级别附带堆栈
	defaultEnableStacktrace = true
)

// 默认的日志级别映射
var defaultLevelMap = map[string]zapcore.Level{
	"debug": zapcore.DebugLevel,
	"info":  zapcore.InfoLevel,
	"warn":  zapcore.WarnLevel,
	"error": zapcore.ErrorLevel,
	"panic": zapcore.PanicLevel,
	"fatal": zapcore.FatalLevel,
}
