// Package memory 提供基于BigCache的内存缓存实现
package memory

import (
	"context"
	"encoding/binary"
	"sync"
	"time"

	"github.com/allegro/bigcache/v3"
	memoryconfig "github.com/sandvm/v1/internal/config/storage/memory"
	"github.com/sandvm/v1/pkg/interfaces/infrastructure/log"
	storage "github.com/sandvm/v1/pkg/interfaces/infrastructure/storage"
)

// TTL前缀，用于在缓存键中存储TTL信息
const ttlPrefix = "_ttl_"

// Store 实现了MemoryStore接口，基于BigCache提供内存缓存功能
//
// BigCache本身只支持全局统一的生命周期窗口，每个键的TTL通过
// 伴生的 _ttl_<key> 条目记录过期时间戳实现
type Store struct {
	cache  *bigcache.BigCache
	logger log.Logger
	mutex  sync.Mutex
	config *memoryconfig.Config
	closed bool
}

// New 创建一个新的BigCache内存存储实例
func New(config *memoryconfig.Config, logger log.Logger) storage.MemoryStore {
	// 生命周期窗口：没有显式TTL的条目最长存活时间
	lifeWindow := config.GetDefaultTTL()
	if lifeWindow <= 0 {
		lifeWindow = 10 * time.Minute
	}
	cleanWindow := config.GetCleanupInterval()
	if cleanWindow <= 0 {
		cleanWindow = 5 * time.Minute
	}

	// 使用配置参数设置BigCache
	bigCacheConfig := bigcache.DefaultConfig(lifeWindow)
	bigCacheConfig.MaxEntriesInWindow = config.GetMaxEntriesInWindow()
	bigCacheConfig.MaxEntrySize = config.GetMaxEntrySize()
	bigCacheConfig.Shards = 1024 // 使用合理的默认分片数
	bigCacheConfig.CleanWindow = cleanWindow
	bigCacheConfig.HardMaxCacheSize = int(config.GetMaxMemory() >> 20) // MB

	// 创建BigCache实例
	cache, err := bigcache.New(context.Background(), bigCacheConfig)
	if err != nil {
		logger.Errorf("创建BigCache实例失败: %v", err)
		return nil
	}

	return &Store{
		cache:  cache,
		logger: logger,
		config: config,
	}
}

// Close 关闭缓存并释放资源
func (s *Store) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.closed {
		s.logger.Info("内存存储已关闭，跳过重复关闭")
		return nil
	}

	s.logger.Info("关闭内存存储")
	err := s.cache.Close()
	if err == nil {
		s.closed = true
	}
	return err
}

// Get 获取缓存值
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	// 检查键是否过期
	if expired, err := s.isExpired(key); err != nil {
		if err == bigcache.ErrEntryNotFound {
			return nil, false, nil
		}
		return nil, false, err
	} else if expired {
		// 如果已过期，删除该键
		_ = s.cache.Delete(key)
		_ = s.cache.Delete(ttlPrefix + key)
		return nil, false, nil
	}

	// 获取值
	value, err := s.cache.Get(key)
	if err != nil {
		if err == bigcache.ErrEntryNotFound {
			return nil, false, nil
		}
		s.logger.Warnf("获取缓存键[%s]失败: %v", key, err)
		return nil, false, err
	}

	return value, true, nil
}

// Set 设置缓存值，可指定过期时间
func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	// 设置键值对
	if err := s.cache.Set(key, value); err != nil {
		s.logger.Warnf("设置缓存键[%s]失败: %v", key, err)
		return err
	}

	// 如果指定了TTL，则设置过期时间
	if ttl > 0 {
		expirationTime := time.Now().Add(ttl).UnixNano()
		expirationBytes := make([]byte, 8)
		binary.LittleEndian.PutUint64(expirationBytes, uint64(expirationTime))

		if err := s.cache.Set(ttlPrefix+key, expirationBytes); err != nil {
			s.logger.Warnf("设置缓存键[%s]的TTL失败: %v", key, err)
			return err
		}
	} else {
		// 如果TTL为0（永不过期），删除可能存在的过期记录
		_ = s.cache.Delete(ttlPrefix + key)
	}

	return nil
}

// Delete 删除指定键的缓存
func (s *Store) Delete(ctx context.Context, key string) error {
	// 删除键值对和对应的TTL记录
	if err := s.cache.Delete(key); err != nil && err != bigcache.ErrEntryNotFound {
		s.logger.Warnf("删除缓存键[%s]失败: %v", key, err)
		return err
	}

	// 删除TTL记录
	_ = s.cache.Delete(ttlPrefix + key)

	return nil
}

// Exists 检查键是否存在
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	// 检查键是否过期
	if expired, err := s.isExpired(key); err != nil {
		if err == bigcache.ErrEntryNotFound {
			return false, nil
		}
		return false, err
	} else if expired {
		// 如果已过期，删除该键
		_ = s.cache.Delete(key)
		_ = s.cache.Delete(ttlPrefix + key)
		return false, nil
	}

	// 检查键是否存在
	_, err := s.cache.Get(key)
	if err != nil {
		if err == bigcache.ErrEntryNotFound {
			return false, nil
		}
		return false, err
	}

	return true, nil
}

// Clear 清空所有缓存
func (s *Store) Clear(ctx context.Context) error {
	// 重置缓存
	if err := s.cache.Reset(); err != nil {
		s.logger.Errorf("清空缓存失败: %v", err)
		return err
	}

	return nil
}

// isExpired 检查键是否已过期
func (s *Store) isExpired(key string) (bool, error) {
	// 获取TTL信息
	ttlBytes, err := s.cache.Get(ttlPrefix + key)
	if err != nil {
		if err == bigcache.ErrEntryNotFound {
			// 没有TTL记录，表示永不过期
			return false, nil
		}
		return false, err
	}

	// 检查键是否存在
	_, err = s.cache.Get(key)
	if err != nil {
		return false, err
	}

	// 解析过期时间
	expirationTime := int64(binary.LittleEndian.Uint64(ttlBytes))

	// 如果当前时间超过过期时间，则键已过期
	return time.Now().UnixNano() > expirationTime, nil
}
