package event

import (
	configtypes "github.com/sandvm/v1/pkg/types"
)

// EventOptions 事件系统配置选项
// 专注于基础设施核心功能的简化配置
type EventOptions struct {
	// === 基础配置 ===
	Enabled    bool `json:"enabled"`     // 是否启用事件系统
	BufferSize int  `json:"buffer_size"` // 事件缓冲区大小
	MaxWorkers int  `json:"max_workers"` // 最大工作者数量

	// === 基础限制 ===
	MaxSubscribers int `json:"max_subscribers"` // 最大订阅者数量

	// === 历史记录配置 ===
	EnableHistory bool `json:"enable_history"` // 是否记录事件历史
	HistorySize   int  `json:"history_size"`   // 单个事件类型保留的历史条数
}

// Config 事件配置实现
type Config struct {
	options *EventOptions
}

// New 创建事件配置实现
func New(userConfig interface{}) *Config {
	// 1. 先创建完整的默认配置
	defaultOptions := createDefaultEventOptions()

	// 2. 如果有用户配置，应用用户配置覆盖默认值
	if userConfig != nil {
		applyUserEventConfig(defaultOptions, userConfig)
	}

	return &Config{
		options: defaultOptions,
	}
}

// createDefaultEventOptions 创建默认事件配置
func createDefaultEventOptions() *EventOptions {
	return &EventOptions{
		Enabled:        defaultEnabled,
		BufferSize:     defaultBufferSize,
		MaxWorkers:     defaultMaxWorkers,
		MaxSubscribers: defaultMaxSubscribers,
		EnableHistory:  defaultEnableHistory,
		HistorySize:    defaultHistorySize,
	}
}

// applyUserEventConfig 应用用户事件配置覆盖默认值
func applyUserEventConfig(options *EventOptions, userConfig interface{}) {
	// 直接传入选项时整体采用
	if opts, ok := userConfig.(*EventOptions); ok && opts != nil {
		*options = *opts
		return
	}

	// 只处理JSON配置文件中实际出现的字段
	if eventConfig, ok := userConfig.(*configtypes.UserEventConfig); ok && eventConfig != nil {
		if eventConfig.Enabled != nil {
			options.Enabled = *eventConfig.Enabled
		}
		if eventConfig.EnableHistory != nil {
			options.EnableHistory = *eventConfig.EnableHistory
		}
		if eventConfig.HistorySize != nil {
			options.HistorySize = *eventConfig.HistorySize
		}
	}
}

// GetOptions 获取完整的事件配置选项
func (c *Config) GetOptions() *EventOptions {
	return c.options
}

// IsEnabled 是否启用事件系统
func (c *Config) IsEnabled() bool {
	return c.options.Enabled
}

// GetBufferSize 获取事件缓冲区大小
func (c *Config) GetBufferSize() int {
	return c.options.BufferSize
}

// GetMaxWorkers 获取最大工作者数量
func (c *Config) GetMaxWorkers() int {
	return c.options.MaxWorkers
}

// GetMaxSubscribers 获取最大订阅者数量
func (c *Config) GetMaxSubscribers() int {
	return c.options.MaxSubscribers
}

// IsHistoryEnabled 是否记录事件历史
func (c *Config) IsHistoryEnabled() bool {
	return c.options.EnableHistory
}

// GetHistorySize 获取单个事件类型保留的历史条数
func (c *Config) GetHistorySize() int {
	if c.options.HistorySize <= 0 {
		return defaultHistorySize
	}
	return c.options.HistorySize
}
