// Package log 示例文件演示了如何使用日志包
package log

import (
	logconfig "github.com/sandvm/v1/internal/config/log"
)

// Example 演示了如何使用日志包
func Example() {
	// 使用默认日志记录器
	Info("这是一条信息日志")
	Warn("这是一条警告日志")
	Error("这是一条错误日志")

	// 使用格式化日志
	Infof("脚本 %s 执行完成，状态: %s", "demo", "success")

	// 带有结构化字段的日志
	With("digest", "0xabc123", "commands", 5).Info("脚本执行")

	// 自定义日志记录器 - 使用新的配置系统
	options := &logconfig.LogOptions{
		Level:     "debug",
		ToConsole: true,
	}
	logConfig := logconfig.New(options)
	// 注意：新的配置系统不支持动态设置，这些应该在创建配置时设置

	logger, err := New(logConfig)
	if err != nil {
		Fatal("无法创建日志记录器")
	}

	// 使用自定义日志记录器
	logger.Debug("这是一条调试日志")
	logger.With("requestId", "abc-123").Info("处理请求")

	// 注意：日志记录器资源由DI容器自动管理，无需手动关闭
}

// ExampleFileOutput 演示了如何将日志输出到文件
func ExampleFileOutput() {
	// 创建一个输出到文件的日志记录器（目录非默认路径时才会落盘）
	options := &logconfig.LogOptions{
		Level:     "info",
		Dir:       "./logs/sandbox",
		ToConsole: false,
	}
	logConfig := logconfig.New(options)

	logger, err := New(logConfig)
	if err != nil {
		Fatal("无法创建文件日志记录器")
	}

	// 使用日志记录器
	logger.Info("沙箱启动")
	logger.With("module", "vm").Info("虚拟机运行时初始化完成")

	// 注意：日志记录器资源由DI容器自动管理，无需手动关闭
}

// ExampleModuleRouting 演示了系统/业务双文件路由
func ExampleModuleRouting() {
	// 启用多文件模式后，带 module 字段的日志会按模块分类落盘
	options := &logconfig.LogOptions{
		Level:           InfoLevel,
		Dir:             "./logs/sandbox",
		ToConsole:       false,
		EnableMultiFile: true,
	}
	logConfig := logconfig.New(options)
	logger, _ := New(logConfig)

	// storage 属于系统模块，写入 system 日志
	NewModuleLogger(logger, "storage").Info("Badger 缓存已打开")

	// replay 属于业务模块，写入 business 日志
	NewModuleLogger(logger, "replay").With("digest", "0xdeadbeef").Info("开始重放交易")

	// 未标记 module 的日志写入两个文件
	logger.Warn("未分类日志")

	// 注意：日志记录器资源由DI容器自动管理，无需手动关闭
}
