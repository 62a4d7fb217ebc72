package replay

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/golang/snappy"

	replaycfg "github.com/sandvm/v1/internal/config/replay"
	"github.com/sandvm/v1/pkg/interfaces/infrastructure/log"
	"github.com/sandvm/v1/pkg/interfaces/infrastructure/storage"
	"github.com/sandvm/v1/pkg/types"
	"github.com/sandvm/v1/pkg/utils"
)

// RecordCache 回放记录的本地缓存
//
// 💾 **两级结构**：
// 热层是进程内 MemoryStore，命中免去反序列化以外的开销；
// 持久层按配置选 file 或 badger 后端，进程重启后仍可命中。
// 记录以 JSON 编码并经 snappy 压缩落盘。
//
// 缓存故障一律降级为未命中并记警告，绝不让缓存拖垮回放。
type RecordCache struct {
	backend recordBackend
	hot     storage.MemoryStore
	logger  log.Logger
}

// cacheBackendBadger badger 后端的配置取值
const cacheBackendBadger = "badger"

// recordCacheDir 文件后端下记录条目的命名空间目录
const recordCacheDir = "replay"

// recordCachePath 记录条目在文件后端的完整相对路径
func recordCachePath(digest string) string {
	return recordCacheDir + "/" + utils.RecordCacheFileName(digest)
}

// NewRecordCache 按配置组建记录缓存
//
// 所选后端的存储缺席时缓存整体停用（只剩热层，若热层也缺席
// 则全部直连归档端点），组件可在无存储的环境里继续工作。
func NewRecordCache(opts *replaycfg.ReplayOptions, files storage.FileStore, db storage.BadgerStore, hot storage.MemoryStore, logger log.Logger) *RecordCache {
	var backend recordBackend
	switch opts.CacheBackend {
	case cacheBackendBadger:
		if db != nil {
			backend = badgerBackend{db: db}
		}
	default:
		if files != nil {
			backend = fileBackend{files: files}
		}
	}

	if backend == nil {
		logger.Warnf("回放缓存持久层缺席: 后端=%s", opts.CacheBackend)
	} else {
		logger.Infof("回放缓存就绪: 后端=%s", opts.CacheBackend)
	}

	return &RecordCache{backend: backend, hot: hot, logger: logger}
}

// Get 按摘要查缓存，返回记录与是否命中
func (c *RecordCache) Get(ctx context.Context, digest string) (*types.ReplayRecord, bool) {
	if c == nil {
		return nil, false
	}

	if c.hot != nil {
		data, ok, err := c.hot.Get(ctx, digest)
		if err != nil {
			c.logger.Warnf("回放缓存热层读取失败: %s: %v", digest, err)
		} else if ok {
			rec, err := decodeRecord(data)
			if err != nil {
				c.logger.Warnf("回放缓存热层条目损坏: %s: %v", digest, err)
			} else {
				replayCacheHits.WithLabelValues("memory").Inc()
				return rec, true
			}
		}
	}

	if c.backend == nil {
		return nil, false
	}
	data, ok, err := c.backend.load(ctx, digest)
	if err != nil {
		c.logger.Warnf("回放缓存读取失败: %s: %v", digest, err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	rec, err := decodeRecord(data)
	if err != nil {
		c.logger.Warnf("回放缓存条目损坏: %s: %v", digest, err)
		return nil, false
	}

	if c.hot != nil {
		if err := c.hot.Set(ctx, digest, data, 0); err != nil {
			c.logger.Warnf("回放缓存热层回填失败: %s: %v", digest, err)
		}
	}
	replayCacheHits.WithLabelValues("backend").Inc()
	return rec, true
}

// Put 写入一条记录
func (c *RecordCache) Put(ctx context.Context, digest string, rec *types.ReplayRecord) error {
	if c == nil || rec == nil {
		return nil
	}
	data, err := encodeRecord(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}

	if c.hot != nil {
		if err := c.hot.Set(ctx, digest, data, 0); err != nil {
			c.logger.Warnf("回放缓存热层写入失败: %s: %v", digest, err)
		}
	}
	if c.backend == nil {
		return nil
	}
	if err := c.backend.store(ctx, digest, data); err != nil {
		return fmt.Errorf("store record: %w", err)
	}
	return nil
}

// Has 判断摘要对应的记录是否已缓存
//
// 先看热层再看持久层；查询失败按未缓存处理。
func (c *RecordCache) Has(ctx context.Context, digest string) bool {
	if c == nil {
		return false
	}
	if c.hot != nil {
		if ok, err := c.hot.Exists(ctx, digest); err == nil && ok {
			return true
		}
	}
	if c.backend == nil {
		return false
	}
	ok, err := c.backend.exists(ctx, digest)
	if err != nil {
		c.logger.Warnf("回放缓存存在性查询失败: %s: %v", digest, err)
		return false
	}
	return ok
}

// Delete 删除一条缓存记录，热层与持久层一并清除
//
// 条目本就不存在不算错误。
func (c *RecordCache) Delete(ctx context.Context, digest string) error {
	if c == nil {
		return nil
	}
	if c.hot != nil {
		if err := c.hot.Delete(ctx, digest); err != nil {
			c.logger.Warnf("回放缓存热层删除失败: %s: %v", digest, err)
		}
	}
	if c.backend == nil {
		return nil
	}
	if err := c.backend.remove(ctx, digest); err != nil {
		return fmt.Errorf("remove record: %w", err)
	}
	return nil
}

// CachedDigests 枚举持久层中已缓存记录的交易摘要
//
// 🔍 结果升序排列，可直接喂给批量回放。只看持久层，
// 热层条目随进程消亡，不算可依赖的缓存存量。
func (c *RecordCache) CachedDigests(ctx context.Context) ([]string, error) {
	if c == nil || c.backend == nil {
		return nil, nil
	}
	digests, err := c.backend.list(ctx)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	sort.Strings(digests)
	return digests, nil
}

// encodeRecord 编码缓存条目：JSON + snappy
func encodeRecord(rec *types.ReplayRecord) ([]byte, error) {
	raw, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	return snappy.Encode(nil, raw), nil
}

// decodeRecord 解码缓存条目
func decodeRecord(data []byte) (*types.ReplayRecord, error) {
	raw, err := snappy.Decode(nil, data)
	if err != nil {
		return nil, fmt.Errorf("snappy decode: %w", err)
	}
	var rec types.ReplayRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal record: %w", err)
	}
	return &rec, nil
}

// ==================== 持久后端 ====================

// recordBackend 持久层后端：未命中返回 (nil, false, nil)
type recordBackend interface {
	load(ctx context.Context, digest string) ([]byte, bool, error)
	store(ctx context.Context, digest string, data []byte) error
	exists(ctx context.Context, digest string) (bool, error)
	remove(ctx context.Context, digest string) error
	list(ctx context.Context) ([]string, error)
}

// fileBackend 文件后端，命名空间目录下每条记录一个压缩文件
type fileBackend struct {
	files storage.FileStore
}

func (b fileBackend) load(ctx context.Context, digest string) ([]byte, bool, error) {
	path := recordCachePath(digest)
	ok, err := b.files.Exists(ctx, path)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	data, err := b.files.Load(ctx, path)
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func (b fileBackend) store(ctx context.Context, digest string, data []byte) error {
	return b.files.Save(ctx, recordCachePath(digest), data)
}

func (b fileBackend) exists(ctx context.Context, digest string) (bool, error) {
	return b.files.Exists(ctx, recordCachePath(digest))
}

func (b fileBackend) remove(ctx context.Context, digest string) error {
	path := recordCachePath(digest)
	ok, err := b.files.Exists(ctx, path)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	return b.files.Delete(ctx, path)
}

func (b fileBackend) list(ctx context.Context) ([]string, error) {
	// 空缓存时命名空间目录尚不存在，先建目录再枚举
	if err := b.files.MakeDir(ctx, recordCacheDir, true); err != nil {
		return nil, err
	}
	names, err := b.files.ListFiles(ctx, recordCacheDir, "*"+utils.RecordCacheSuffix)
	if err != nil {
		return nil, err
	}
	digests := make([]string, 0, len(names))
	for _, name := range names {
		if digest, ok := utils.RecordCacheDigest(name); ok {
			digests = append(digests, digest)
		}
	}
	return digests, nil
}

// badgerBackend badger 后端，统一键前缀下每条记录一个键
type badgerBackend struct {
	db storage.BadgerStore
}

func (b badgerBackend) load(ctx context.Context, digest string) ([]byte, bool, error) {
	data, err := b.db.Get(ctx, []byte(utils.RecordCacheKey(digest)))
	if err != nil {
		return nil, false, err
	}
	if data == nil {
		return nil, false, nil
	}
	return data, true, nil
}

func (b badgerBackend) store(ctx context.Context, digest string, data []byte) error {
	return b.db.Set(ctx, []byte(utils.RecordCacheKey(digest)), data)
}

func (b badgerBackend) exists(ctx context.Context, digest string) (bool, error) {
	return b.db.Exists(ctx, []byte(utils.RecordCacheKey(digest)))
}

func (b badgerBackend) remove(ctx context.Context, digest string) error {
	return b.db.Delete(ctx, []byte(utils.RecordCacheKey(digest)))
}

func (b badgerBackend) list(ctx context.Context) ([]string, error) {
	entries, err := b.db.PrefixScan(ctx, []byte(utils.RecordCachePrefix))
	if err != nil {
		return nil, err
	}
	digests := make([]string, 0, len(entries))
	for key := range entries {
		if digest, ok := utils.RecordCacheDigest(key); ok {
			digests = append(digests, digest)
		}
	}
	return digests, nil
}
