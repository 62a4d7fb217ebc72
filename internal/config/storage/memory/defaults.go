package memory

import "time"

// 内存存储默认配置值
// 这些默认值基于内存缓存的最佳实践
const (
	// === 基础配置 ===

	// defaultMaxMemory 默认最大内存使用量为128MB
	// 原因：沙箱与用户工具共享开发机内存，128MB的热层缓存
	// 已能覆盖批量回放的工作集
	defaultMaxMemory = 128 << 20 // 128MB

	// defaultMaxEntries 默认最大条目数为10000
	// 原因：1万条目对应1万笔缓存交易的热层，超出部分回落磁盘缓存
	defaultMaxEntries = 10000

	// defaultDefaultTTL 默认TTL为1小时
	// 原因：1小时平衡了缓存命中率和数据新鲜度
	defaultDefaultTTL = time.Hour

	// === 清理配置 ===

	// defaultCleanupInterval 默认清理间隔为10分钟
	// 原因：10分钟间隔及时清理过期数据，不会过于频繁
	defaultCleanupInterval = 10 * time.Minute
)
