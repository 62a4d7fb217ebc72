package badger

import (
	"github.com/sandvm/v1/pkg/utils"
)

// BadgerDB存储默认配置值
// 这些默认值基于BadgerDB的最佳实践和回放缓存的访问模式

// getDefaultPath 获取默认数据库路径（使用路径解析工具）
// 原因：统一的数据目录便于管理和备份，确保路径解析正确
func getDefaultPath() string {
	return utils.ResolveDataPath("./data/badger")
}

const (
	// === 基础配置 ===

	// defaultMemoryOnly 默认关闭纯内存模式
	// 原因：回放缓存的价值在于跨进程复用，落盘是常态；
	// 纯内存模式留给测试显式开启
	defaultMemoryOnly = false

	// defaultSyncWrites 默认关闭同步写入
	// 原因：缓存数据可以随时从归档节点重建，异步写入换取
	// 批量回放期间更高的写吞吐
	defaultSyncWrites = false

	// === 性能配置 ===

	// defaultMemTableSize 默认内存表大小为64MB
	// 原因：64MB提供良好的读写性能，适合批量写入的访问模式
	defaultMemTableSize = 64 << 20 // 64MB

	// defaultValueLogFileSize 默认值日志单文件大小为256MB
	// 原因：缓存条目普遍在KB级，256MB的值日志文件数量可控
	defaultValueLogFileSize = 256 << 20 // 256MB

	// === 维护配置 ===

	// defaultEnableAutoCompaction 默认启用自动压缩
	// 原因：自动压缩减少磁盘占用，提高查询性能
	defaultEnableAutoCompaction = true
)
