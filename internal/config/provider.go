package config

import (
	"github.com/sandvm/v1/internal/config/event"
	"github.com/sandvm/v1/internal/config/log"
	"github.com/sandvm/v1/internal/config/replay"
	"github.com/sandvm/v1/internal/config/sandbox"
	"github.com/sandvm/v1/internal/config/storage/badger"
	"github.com/sandvm/v1/internal/config/storage/file"
	"github.com/sandvm/v1/internal/config/storage/memory"
	"github.com/sandvm/v1/internal/config/vm"
	"github.com/sandvm/v1/pkg/interfaces/config"
	"github.com/sandvm/v1/pkg/types"
	"github.com/sandvm/v1/pkg/utils"
)

// Provider 实现配置提供者接口
type Provider struct {
	appConfig *types.AppConfig
}

// NewProvider 创建配置提供者
func NewProvider(appConfig *types.AppConfig) config.Provider {
	return &Provider{
		appConfig: appConfig,
	}
}

// GetVM 获取虚拟机配置
func (p *Provider) GetVM() *vm.VMOptions {
	// 直接传递用户VM配置给vm.New，让它处理默认值和转换
	var userVMConfig *types.UserVMConfig
	if p.appConfig != nil && p.appConfig.VM != nil {
		userVMConfig = p.appConfig.VM
	}

	// vm.New会处理默认值应用和用户配置覆盖
	return vm.New(userVMConfig).GetOptions()
}

// GetSandbox 获取模拟环境配置
func (p *Provider) GetSandbox() *sandbox.SandboxOptions {
	var userSandboxConfig *types.UserSandboxConfig
	if p.appConfig != nil && p.appConfig.Sandbox != nil {
		userSandboxConfig = p.appConfig.Sandbox
	}

	return sandbox.New(userSandboxConfig).GetOptions()
}

// GetReplay 获取回放配置
func (p *Provider) GetReplay() *replay.ReplayOptions {
	var userReplayConfig *types.UserReplayConfig
	if p.appConfig != nil && p.appConfig.Replay != nil {
		userReplayConfig = p.appConfig.Replay
	}

	opts := replay.New(userReplayConfig).GetOptions()

	// 缓存目录未显式配置时挂到数据目录下
	if (userReplayConfig == nil || userReplayConfig.CacheDir == nil) && p.GetDataDir() != "" {
		opts.CacheDir = utils.ResolveDataPath(p.GetDataDir() + "/replay-cache")
	}

	return opts
}

// GetLog 获取日志配置
func (p *Provider) GetLog() *log.LogOptions {
	// 直接传递用户日志配置给log.New，让它处理默认值和转换
	var userLogConfig *types.UserLogConfig
	if p.appConfig != nil && p.appConfig.Log != nil {
		userLogConfig = p.appConfig.Log
	}

	// log.New会处理默认值应用和用户配置覆盖
	return log.New(userLogConfig).GetOptions()
}

// GetEvent 获取事件总线配置
func (p *Provider) GetEvent() *event.EventOptions {
	var userEventConfig *types.UserEventConfig
	if p.appConfig != nil && p.appConfig.Event != nil {
		userEventConfig = p.appConfig.Event
	}

	return event.New(userEventConfig).GetOptions()
}

// GetMemoryMonitoring 获取内存监控配置
func (p *Provider) GetMemoryMonitoring() *types.UserMemoryMonitoringConfig {
	if p.appConfig != nil && p.appConfig.MemoryMonitoring != nil {
		return p.appConfig.MemoryMonitoring
	}
	return nil
}

// GetEnvironment 获取运行环境
func (p *Provider) GetEnvironment() string {
	if p.appConfig != nil && p.appConfig.Environment != nil && *p.appConfig.Environment != "" {
		return *p.appConfig.Environment
	}
	return "dev"
}

// GetDataDir 获取数据目录
func (p *Provider) GetDataDir() string {
	if p.appConfig != nil && p.appConfig.DataDir != nil && *p.appConfig.DataDir != "" {
		return *p.appConfig.DataDir
	}
	return "./data"
}

// === 存储引擎配置方法 ===

// GetBadger 获取BadgerDB存储配置
func (p *Provider) GetBadger() *badger.BadgerOptions {
	var userBadgerConfig *types.UserBadgerStorageConfig
	if p.appConfig != nil && p.appConfig.Storage != nil && p.appConfig.Storage.Badger != nil {
		userBadgerConfig = p.appConfig.Storage.Badger
	}

	// badger.New会处理默认值应用和用户配置覆盖
	return badger.New(userBadgerConfig).GetOptions()
}

// GetMemory 获取内存存储配置
func (p *Provider) GetMemory() *memory.MemoryOptions {
	var userMemoryConfig *types.UserMemoryStorageConfig
	if p.appConfig != nil && p.appConfig.Storage != nil && p.appConfig.Storage.Memory != nil {
		userMemoryConfig = p.appConfig.Storage.Memory
	}

	return memory.New(userMemoryConfig).GetOptions()
}

// GetFile 获取文件存储配置
func (p *Provider) GetFile() *file.FileOptions {
	var userFileConfig *types.UserFileStorageConfig
	if p.appConfig != nil && p.appConfig.Storage != nil && p.appConfig.Storage.File != nil {
		userFileConfig = p.appConfig.Storage.File
	}

	return file.New(userFileConfig).GetOptions()
}

// GetAppConfig 获取原始应用配置（用于验证等场景）
func (p *Provider) GetAppConfig() *types.AppConfig {
	return p.appConfig
}
