package hash

import (
	"crypto/sha256"
	"crypto/subtle"
	"sync"

	metricsiface "github.com/sandvm/v1/pkg/interfaces/infrastructure/metrics"

	cryptointf "github.com/sandvm/v1/pkg/interfaces/infrastructure/crypto"
	metricsutil "github.com/sandvm/v1/pkg/utils/metrics"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/ripemd160"
	"golang.org/x/crypto/sha3"
)

// 确保HashService实现了cryptointf.HashManager接口
var _ cryptointf.HashManager = (*HashService)(nil)

// 确保HashService实现了内存上报接口
var _ metricsiface.MemoryReporter = (*HashService)(nil)

// 每个算法缓存的条目上限
//
// ⚠️ 哈希输入来自合约执行中的任意数据（宿主函数、对象ID派生），
// 缓存必须有界，否则长时间批量重放会无限增长。
const defaultCacheMaxEntries = 4096

// HashCache 有界的哈希结果缓存
//
// 达到上限后整体清空重建。哈希计算本身很快，缓存只为
// 重复输入（模块字节码、固定前缀）省去重算，不值得上LRU。
type HashCache struct {
	cache      map[string][]byte
	maxEntries int
	mu         sync.RWMutex
}

// NewHashCache 创建新的哈希缓存
func NewHashCache(maxEntries int) *HashCache {
	if maxEntries <= 0 {
		maxEntries = defaultCacheMaxEntries
	}
	return &HashCache{
		cache:      make(map[string][]byte),
		maxEntries: maxEntries,
	}
}

// Get 从缓存获取哈希值
func (c *HashCache) Get(key string) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	value, ok := c.cache[key]
	if ok {
		result := make([]byte, len(value))
		copy(result, value) // 返回副本而非引用
		return result, true
	}
	return nil, false
}

// Set 设置缓存中的哈希值
//
// 超过上限时先清空整个缓存再写入
func (c *HashCache) Set(key string, value []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.cache) >= c.maxEntries {
		c.cache = make(map[string][]byte)
	}

	valueCopy := make([]byte, len(value))
	copy(valueCopy, value) // 存储副本而非引用
	c.cache[key] = valueCopy
}

// Len 返回当前缓存条目数
func (c *HashCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.cache)
}

// Reset 清空缓存
func (c *HashCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache = make(map[string][]byte)
}

// HashService 提供哈希计算功能
//
// 宿主函数层、对象ID派生和重放缓存校验共用同一个实例。
// 除SHA256外的算法带结果缓存：缓存键本身就是一次SHA256，
// 再给SHA256挂缓存等于把一次计算变成两次。
type HashService struct {
	keccak256Cache    *HashCache
	blake2b256Cache   *HashCache
	doubleSHA256Cache *HashCache
	ripemd160Cache    *HashCache
}

// NewHashService 创建新的哈希服务
func NewHashService() *HashService {
	return &HashService{
		keccak256Cache:    NewHashCache(defaultCacheMaxEntries),
		blake2b256Cache:   NewHashCache(defaultCacheMaxEntries),
		doubleSHA256Cache: NewHashCache(defaultCacheMaxEntries),
		ripemd160Cache:    NewHashCache(defaultCacheMaxEntries),
	}
}

// cacheKey 根据数据生成缓存键
//
// 使用SHA256哈希作为缓存键，确保任意长度输入的键唯一性
func cacheKey(data []byte) string {
	hasher := sha256.New()
	hasher.Write(data)
	keyHash := hasher.Sum(nil)
	return string(keyHash)
}

// SHA256 计算SHA-256哈希
//
// 参数:
//   - data: 要计算哈希的数据
//
// 返回:
//   - []byte: 32字节的SHA-256哈希结果
func (s *HashService) SHA256(data []byte) []byte {
	hash := sha256.Sum256(data)
	return hash[:]
}

// Keccak256 计算Keccak-256哈希
//
// 注意是以太坊使用的Legacy Keccak，不是NIST标准化后的SHA3-256
//
// 参数:
//   - data: 要计算哈希的数据
//
// 返回:
//   - []byte: 32字节的Keccak-256哈希结果
func (s *HashService) Keccak256(data []byte) []byte {
	key := cacheKey(data)
	if cachedHash, ok := s.keccak256Cache.Get(key); ok {
		return cachedHash
	}

	hasher := sha3.NewLegacyKeccak256()
	hasher.Write(data)
	result := hasher.Sum(nil)

	s.keccak256Cache.Set(key, result)
	return result
}

// Blake2b256 计算Blake2b-256哈希
//
// 新建对象ID与动态字段子对象ID的派生算法，必须与链上
// 实现保持逐字节一致，否则重放时对象ID全部对不上。
//
// 参数:
//   - data: 要计算哈希的数据
//
// 返回:
//   - []byte: 32字节的Blake2b-256哈希结果
func (s *HashService) Blake2b256(data []byte) []byte {
	key := cacheKey(data)
	if cachedHash, ok := s.blake2b256Cache.Get(key); ok {
		return cachedHash
	}

	hash := blake2b.Sum256(data)
	result := hash[:]

	s.blake2b256Cache.Set(key, result)
	return result
}

// RIPEMD160 计算RIPEMD-160哈希
//
// 参数:
//   - data: 要计算哈希的数据
//
// 返回:
//   - []byte: 20字节的RIPEMD-160哈希结果
func (s *HashService) RIPEMD160(data []byte) []byte {
	key := cacheKey(data)
	if cachedHash, ok := s.ripemd160Cache.Get(key); ok {
		return cachedHash
	}

	hasher := ripemd160.New()
	hasher.Write(data)
	result := hasher.Sum(nil)

	s.ripemd160Cache.Set(key, result)
	return result
}

// DoubleSHA256 计算双重SHA-256哈希
//
// 参数:
//   - data: 要计算哈希的数据
//
// 返回:
//   - []byte: 32字节的双重SHA-256哈希结果
func (s *HashService) DoubleSHA256(data []byte) []byte {
	key := cacheKey(data)
	if cachedHash, ok := s.doubleSHA256Cache.Get(key); ok {
		return cachedHash
	}

	first := sha256.Sum256(data)
	second := sha256.Sum256(first[:])
	result := second[:]

	s.doubleSHA256Cache.Set(key, result)
	return result
}

// ModuleName 返回内存上报的模块名称
func (s *HashService) ModuleName() string {
	return "infra.crypto.hash"
}

// CollectMemoryStats 上报哈希缓存占用（minimal 模式下不估算字节数）
func (s *HashService) CollectMemoryStats() metricsiface.ModuleMemoryStats {
	items := int64(s.keccak256Cache.Len() + s.blake2b256Cache.Len() +
		s.doubleSHA256Cache.Len() + s.ripemd160Cache.Len())
	var approx int64
	if metricsutil.GetMemoryMonitoringMode() != "minimal" {
		// 每条目约：32字节键 + 20~32字节值 + map开销
		approx = items * 128
	}
	return metricsiface.ModuleMemoryStats{
		Module:      "infra.crypto.hash",
		Layer:       "L2-Infrastructure",
		Objects:     items,
		CacheItems:  items,
		ApproxBytes: approx,
	}
}

// ShrinkCache 响应内存压力，整体清空哈希缓存
//
// 哈希缓存是纯加速层，清空只损失重算成本，不影响正确性
func (s *HashService) ShrinkCache(targetSize int) {
	items := s.keccak256Cache.Len() + s.blake2b256Cache.Len() +
		s.doubleSHA256Cache.Len() + s.ripemd160Cache.Len()
	if items <= targetSize {
		return
	}
	s.keccak256Cache.Reset()
	s.blake2b256Cache.Reset()
	s.doubleSHA256Cache.Reset()
	s.ripemd160Cache.Reset()
}

// ConstantTimeCompare 在常量时间内比较两个哈希值是否相等
//
// 参数:
//   - a: 第一个哈希值
//   - b: 第二个哈希值
//
// 返回:
//   - bool: 如果两个哈希值相等返回true，否则返回false
func ConstantTimeCompare(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}
