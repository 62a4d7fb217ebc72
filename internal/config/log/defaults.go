package log

import (
	"go.uber.org/zap/zapcore"
)

// 日志配置默认值
// 这些默认值基于本地开发工具的使用习惯
const (
	// === 基础日志配置 ===

	// defaultLogLevel 默认日志级别设为"info"
	// 原因：info级别平衡了信息量和性能，记录重要事件但不过于详细
	defaultLogLevel = "info"

	// defaultToConsole 默认启用控制台输出
	// 原因：沙箱是本地开发工具，实时查看日志提供即时反馈
	// CLI模式下会被强制抑制，避免污染命令输出
	defaultToConsole = true

	// defaultLogDir 默认日志目录
	// 原因：与数据目录并列，便于一次性清理
	defaultLogDir = "./data/logs"

	// === 日志轮转配置 ===

	// defaultMaxSize 单个日志文件最大大小设为100MB
	// 原因：100MB足够记录大量日志信息，同时文件不会过大影响性能
	defaultMaxSize = 100

	// defaultMaxBackups 最大备份文件数设为10
	// 原因：保留10个备份文件提供足够的历史记录用于问题排查
	defaultMaxBackups = 10

	// defaultMaxAge 日志文件最大保留天数设为30天
	// 原因：30天覆盖了大多数问题排查的时间窗口
	defaultMaxAge = 30

	// defaultCompress 默认启用历史日志压缩
	// 原因：压缩可以显著减少磁盘空间占用，特别是对于大量日志
	defaultCompress = true

	// === 调试配置 ===

	// defaultEnableCaller 默认启用调用者信息
	// 原因：调用者信息对于定位问题非常重要，特别是在复杂的代码库中
	defaultEnableCaller = true

	// defaultEnableStacktrace 默认对Error级别启用堆栈跟踪
	// 原因：堆栈跟踪对于错误诊断至关重要，但只在Error级别启用避免过度开销
	defaultEnableStacktrace = true

	// === 多文件日志配置 ===

	// defaultEnableMultiFile 默认启用多文件日志
	// 原因：将系统日志和业务日志分离，提高可读性和可维护性
	// 系统日志包含存储、事件、运行时等基础设施日志，业务日志包含脚本执行、回放等业务逻辑日志
	defaultEnableMultiFile = true

	// defaultSystemLogFile 默认系统日志文件名
	// 原因：统一的命名规范便于日志管理和工具化处理
	defaultSystemLogFile = "sandvm-system.log"

	// defaultBusinessLogFile 默认业务日志文件名
	// 原因：统一的命名规范便于日志管理和工具化处理
	defaultBusinessLogFile = "sandvm-business.log"
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
