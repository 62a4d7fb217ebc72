// Package storage 提供沙箱系统的BadgerDB存储接口定义
//
// 💾 **BadgerDB存储服务 (BadgerDB Storage Service)**
//
// 本文件定义了沙箱系统的BadgerDB存储接口，专注于：
// - 持久化键值存储：重放缓存的可选持久后端
// - 前缀扫描：按交易摘要前缀枚举缓存条目
// - 生命周期：显式Close保证待写数据完整落盘
//
// 🔗 **组件关系**
// - BadgerStore：被重放缓存（badger后端）使用
// - 与StorageProvider：作为存储提供者的持久层实现
package storage

import (
	"context"
	"time"
)

//=============================================================================
// BadgerStore 接口定义
//=============================================================================

// BadgerStore 定义了键值存储的应用接口
// 提供简单易用的键值存储操作，适用于需要高性能键值操作的场景
type BadgerStore interface {
	// Close 关闭BadgerDB数据库连接
	// 确保所有待处理的事务被提交，数据被正确写入磁盘
	// 应用关闭时必须调用此方法以避免数据损坏
	Close() error

	// Get 获取指定键的值
	// 如果键不存在，返回nil值和nil错误
	Get(ctx context.Context, key []byte) ([]byte, error)

	// Set 设置键值对
	// 如果键已存在，将覆盖原有值
	Set(ctx context.Context, key, value []byte) error

	// SetWithTTL 设置键值对并指定过期时间
	// ttl为0表示永不过期
	SetWithTTL(ctx context.Context, key, value []byte, ttl time.Duration) error

	// Delete 删除指定键的值
	// 如果键不存在，不会返回错误
	Delete(ctx context.Context, key []byte) error

	// Exists 检查键是否存在
	Exists(ctx context.Context, key []byte) (bool, error)

	// PrefixScan 按前缀扫描键值对
	// 返回所有键以指定前缀开头的键值对，map的键为键的字符串表示
	PrefixScan(ctx context.Context, prefix []byte) (map[string][]byte, error)
}
