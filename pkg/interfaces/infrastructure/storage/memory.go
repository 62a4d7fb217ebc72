// Package storage 提供沙箱系统的内存存储接口定义
//
// 🧠 **内存存储服务 (Memory Storage Service)**
//
// 本文件定义了沙箱系统的内存存储接口，专注于：
// - 高速缓存：编译标记、重放材料等热数据的进程内缓存
// - 生命周期控制：支持TTL过期和自动清理机制
// - 多引擎支持：可基于BigCache等实现
//
// 🔗 **组件关系**
// - MemoryStore：被执行运行时（编译缓存）与重放取数器（热层）使用
// - 与StorageProvider：作为存储提供者的高速缓存层
package storage

import (
	"context"
	"time"
)

// =============================================================================
// MemoryStore 接口定义
// =============================================================================

// MemoryStore 定义了通用的内存缓存接口
//
// 注意：内存存储资源由DI容器自动管理，无需手动Close()
type MemoryStore interface {
	// Get 获取缓存值，返回值、是否存在及可能的错误
	// value: 缓存的二进制数据
	// exists: true表示键存在，false表示键不存在
	// err: 操作过程中发生的错误，nil表示无错误
	Get(ctx context.Context, key string) (value []byte, exists bool, err error)

	// Set 设置缓存值，可指定过期时间
	// ttl: 生存时间，0表示永不过期
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete 删除指定键的缓存
	// 如果键不存在，不会返回错误
	Delete(ctx context.Context, key string) error

	// Exists 检查键是否存在
	Exists(ctx context.Context, key string) (bool, error)

	// Clear 清空全部缓存
	Clear(ctx context.Context) error
}
