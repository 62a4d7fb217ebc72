package memory

import (
	"time"

	configtypes "github.com/sandvm/v1/pkg/types"
)

// MemoryOptions 内存存储配置选项
// 专注于基础设施核心功能的简化配置
type MemoryOptions struct {
	// === 基础配置 ===
	MaxMemory  int64         `json:"max_memory"`  // 最大内存使用量
	MaxEntries int           `json:"max_entries"` // 最大条目数
	DefaultTTL time.Duration `json:"default_ttl"` // 默认TTL

	// === 清理配置 ===
	CleanupInterval time.Duration `json:"cleanup_interval"` // 清理间隔
}

// Config 内存存储配置实现
type Config struct {
	options *MemoryOptions
}

// New 创建内存存储配置实现
func New(userConfig interface{}) *Config {
	defaultOptions := createDefaultMemoryOptions()

	if userConfig != nil {
		applyUserConfig(defaultOptions, userConfig)
	}

	return &Config{
		options: defaultOptions,
	}
}

// NewFromOptions 从MemoryOptions创建配置实现
// 用于直接使用已构建的配置选项（例如从Provider获取的选项）
func NewFromOptions(options *MemoryOptions) *Config {
	if options == nil {
		return New(nil)
	}
	return &Config{
		options: options,
	}
}

// createDefaultMemoryOptions 创建默认内存存储配置
func createDefaultMemoryOptions() *MemoryOptions {
	return &MemoryOptions{
		MaxMemory:       defaultMaxMemory,
		MaxEntries:      defaultMaxEntries,
		DefaultTTL:      defaultDefaultTTL,
		CleanupInterval: defaultCleanupInterval,
	}
}

// applyUserConfig 应用用户配置覆盖默认值
func applyUserConfig(options *MemoryOptions, userConfig interface{}) {
	if memConfig, ok := userConfig.(*configtypes.UserMemoryStorageConfig); ok && memConfig != nil {
		if memConfig.MaxSizeMB != nil {
			options.MaxMemory = int64(*memConfig.MaxSizeMB) << 20
		}
		if memConfig.TTLSeconds != nil {
			options.DefaultTTL = time.Duration(*memConfig.TTLSeconds) * time.Second
		}
	}
}

// GetOptions 获取完整的内存存储配置选项
func (c *Config) GetOptions() *MemoryOptions {
	return c.options
}

// === 基础配置访问方法 ===

// GetMaxMemory 获取最大内存使用量
func (c *Config) GetMaxMemory() int64 {
	return c.options.MaxMemory
}

// GetMaxEntries 获取最大条目数
func (c *Config) GetMaxEntries() int {
	return c.options.MaxEntries
}

// GetDefaultTTL 获取默认TTL
func (c *Config) GetDefaultTTL() time.Duration {
	return c.options.DefaultTTL
}

// GetCleanupInterval 获取清理间隔
func (c *Config) GetCleanupInterval() time.Duration {
	return c.options.CleanupInterval
}

// === BigCache 映射方法 ===

// GetMaxEntriesInWindow 获取窗口内最大条目数
// 限制预分配规模，避免BigCache按最坏情况占用内存
func (c *Config) GetMaxEntriesInWindow() int {
	if c.options.MaxEntries > 10000 {
		return 10000
	}
	return c.options.MaxEntries
}

// GetMaxEntrySize 获取最大条目大小
// 64KB覆盖缓存的典型条目（编译标记、回放记录热层）
func (c *Config) GetMaxEntrySize() int {
	return 64 * 1024 // 64KB
}
