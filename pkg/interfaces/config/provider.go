// Package config provides configuration provider interfaces.
package config

import (
	eventconfig "github.com/sandvm/v1/internal/config/event"
	logconfig "github.com/sandvm/v1/internal/config/log"
	replayconfig "github.com/sandvm/v1/internal/config/replay"
	sandboxconfig "github.com/sandvm/v1/internal/config/sandbox"
	badgerconfig "github.com/sandvm/v1/internal/config/storage/badger"
	fileconfig "github.com/sandvm/v1/internal/config/storage/file"
	memoryconfig "github.com/sandvm/v1/internal/config/storage/memory"
	vmconfig "github.com/sandvm/v1/internal/config/vm"
	"github.com/sandvm/v1/pkg/types"
)

// Provider 配置提供者接口
type Provider interface {
	// === 核心配置 ===

	// GetVM 获取虚拟机配置（确定性选项、运行时限制）
	GetVM() *vmconfig.VMOptions

	// GetSandbox 获取模拟环境配置
	GetSandbox() *sandboxconfig.SandboxOptions

	// GetReplay 获取回放配置
	GetReplay() *replayconfig.ReplayOptions

	// GetLog 获取日志配置
	GetLog() *logconfig.LogOptions

	// GetEvent 获取事件总线配置
	GetEvent() *eventconfig.EventOptions

	// GetMemoryMonitoring 获取内存监控配置
	GetMemoryMonitoring() *types.UserMemoryMonitoringConfig

	// === 环境配置 ===

	// GetEnvironment 获取运行环境
	// 返回运行环境字符串：dev | test | prod
	// 未配置时默认为 "dev"（沙箱是开发工具，本地优先）
	GetEnvironment() string

	// GetDataDir 获取数据目录
	// 返回数据根目录路径，缓存、日志、badger库均在其下
	GetDataDir() string

	// === 存储引擎配置 ===

	// GetBadger 获取BadgerDB存储配置
	GetBadger() *badgerconfig.BadgerOptions

	// GetMemory 获取内存存储配置
	GetMemory() *memoryconfig.MemoryOptions

	// GetFile 获取文件存储配置
	GetFile() *fileconfig.FileOptions

	// === 原始配置访问 ===

	// GetAppConfig 获取原始应用配置（用于验证等场景）
	GetAppConfig() *types.AppConfig
}
