package replay

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	replaycfg "github.com/sandvm/v1/internal/config/replay"
	badgerconfig "github.com/sandvm/v1/internal/config/storage/badger"
	fileconfig "github.com/sandvm/v1/internal/config/storage/file"
	memoryconfig "github.com/sandvm/v1/internal/config/storage/memory"
	"github.com/sandvm/v1/internal/core/infrastructure/storage/badger"
	"github.com/sandvm/v1/internal/core/infrastructure/storage/file"
	"github.com/sandvm/v1/internal/core/infrastructure/storage/memory"
	"github.com/sandvm/v1/internal/core/vm/testutil"
	storageif "github.com/sandvm/v1/pkg/interfaces/infrastructure/storage"
	"github.com/sandvm/v1/pkg/types"
	"github.com/sandvm/v1/pkg/utils"
)

// cacheRecord 构造一条字段齐全的回放记录
func cacheRecord(marker byte) *types.ReplayRecord {
	src := types.InputArg(0)
	return &types.ReplayRecord{
		Tx: types.RecordedTransaction{
			Digest:    testutil.TestDigest(marker).String(),
			Sender:    "0x7a",
			Epoch:     5,
			GasBudget: 1000,
			Inputs: []types.RecordedInput{
				{Kind: "object", ObjectID: oid(0x0B).Hex(), Version: 5},
				{Kind: "pure", Value: []byte{30, 0, 0, 0, 0, 0, 0, 0}},
			},
			Commands: []types.RecordedCommand{
				{Kind: "split_value", Source: &src, Amounts: []types.Argument{types.InputArg(1)}},
			},
		},
		Objects: []types.RecordedObject{
			{ID: oid(0x0B).Hex(), Version: 5, Type: "0x2::coin::Coin", Owner: "address(0x7a)", Contents: []byte{250, 0, 0, 0, 0, 0, 0, 0}},
		},
		Effects: types.RecordedEffects{
			Status:  string(types.ExecutionSuccess),
			Mutated: []types.RecordedChange{{ID: oid(0x0B).Hex(), Version: 6}},
		},
	}
}

// newTestFileStore 在临时目录上创建文件存储
func newTestFileStore(t *testing.T) storageif.FileStore {
	t.Helper()
	cfg := fileconfig.NewFromOptions(&fileconfig.FileOptions{
		RootPath:             t.TempDir(),
		MaxFileSize:          16,
		FilePermissions:      0600,
		DirectoryPermissions: 0700,
	})
	files := file.New(cfg, testutil.NewTestLogger())
	require.NotNil(t, files)
	return files
}

func TestRecordCacheFileBackend(t *testing.T) {
	ctx := context.Background()
	files := newTestFileStore(t)
	cache := NewRecordCache(replaycfg.New(nil).GetOptions(), files, nil, nil, testutil.NewTestLogger())

	rec := cacheRecord(0xD7)
	digest := rec.Tx.Digest

	t.Run("未写入前是未命中", func(t *testing.T) {
		got, ok := cache.Get(ctx, digest)
		assert.False(t, ok)
		assert.Nil(t, got)
	})

	t.Run("写入后命中且内容一致", func(t *testing.T) {
		require.NoError(t, cache.Put(ctx, digest, rec))

		exists, err := files.Exists(ctx, recordCachePath(digest))
		require.NoError(t, err)
		assert.True(t, exists)

		got, ok := cache.Get(ctx, digest)
		require.True(t, ok)
		assert.Equal(t, rec, got)
	})

	t.Run("损坏条目降级为未命中", func(t *testing.T) {
		require.NoError(t, files.Save(ctx, recordCachePath(digest), []byte("not snappy")))
		got, ok := cache.Get(ctx, digest)
		assert.False(t, ok)
		assert.Nil(t, got)
	})
}

func TestRecordCacheHotTier(t *testing.T) {
	ctx := context.Background()
	files := newTestFileStore(t)
	hot := memory.New(memoryconfig.New(nil), testutil.NewTestLogger())
	require.NotNil(t, hot)
	cache := NewRecordCache(replaycfg.New(nil).GetOptions(), files, nil, hot, testutil.NewTestLogger())

	rec := cacheRecord(0xD8)
	digest := rec.Tx.Digest
	require.NoError(t, cache.Put(ctx, digest, rec))

	t.Run("后端条目消失后热层仍命中", func(t *testing.T) {
		require.NoError(t, files.Delete(ctx, recordCachePath(digest)))
		got, ok := cache.Get(ctx, digest)
		require.True(t, ok)
		assert.Equal(t, rec, got)
	})

	t.Run("热层失效后回落后端并回填", func(t *testing.T) {
		require.NoError(t, cache.Put(ctx, digest, rec))
		require.NoError(t, hot.Delete(ctx, digest))

		got, ok := cache.Get(ctx, digest)
		require.True(t, ok)
		assert.Equal(t, rec, got)

		// 回填后热层可直接取到压缩条目
		data, exists, err := hot.Get(ctx, digest)
		require.NoError(t, err)
		assert.True(t, exists)
		assert.NotEmpty(t, data)
	})
}

func TestRecordCacheBadgerBackend(t *testing.T) {
	ctx := context.Background()
	dbCfg := badgerconfig.NewFromOptions(&badgerconfig.BadgerOptions{
		Path:       t.TempDir(),
		MemoryOnly: true,
	})
	db := badger.New(dbCfg, testutil.NewTestLogger())
	require.NotNil(t, db)
	t.Cleanup(func() { _ = db.Close() })

	opts := replaycfg.New(nil).GetOptions()
	opts.CacheBackend = "badger"
	cache := NewRecordCache(opts, nil, db, nil, testutil.NewTestLogger())

	rec := cacheRecord(0xD9)
	digest := rec.Tx.Digest
	require.NoError(t, cache.Put(ctx, digest, rec))

	got, ok := cache.Get(ctx, digest)
	require.True(t, ok)
	assert.Equal(t, rec, got)

	t.Run("条目落在带前缀的键下", func(t *testing.T) {
		data, err := db.Get(ctx, []byte(utils.RecordCacheKey(digest)))
		require.NoError(t, err)
		assert.NotEmpty(t, data)
	})
}

func TestRecordCacheCachedDigests(t *testing.T) {
	ctx := context.Background()

	t.Run("文件后端升序枚举且忽略外来文件", func(t *testing.T) {
		files := newTestFileStore(t)
		cache := NewRecordCache(replaycfg.New(nil).GetOptions(), files, nil, nil, testutil.NewTestLogger())

		// 乱序写入，枚举应按摘要升序返回
		for _, marker := range []byte{0xE3, 0xE1, 0xE2} {
			rec := cacheRecord(marker)
			require.NoError(t, cache.Put(ctx, rec.Tx.Digest, rec))
		}
		require.NoError(t, files.Save(ctx, recordCacheDir+"/notes.txt", []byte("scratch")))

		digests, err := cache.CachedDigests(ctx)
		require.NoError(t, err)
		want := []string{
			testutil.TestDigest(0xE1).String(),
			testutil.TestDigest(0xE2).String(),
			testutil.TestDigest(0xE3).String(),
		}
		assert.Equal(t, want, digests)
	})

	t.Run("badger后端只枚举记录命名空间", func(t *testing.T) {
		dbCfg := badgerconfig.NewFromOptions(&badgerconfig.BadgerOptions{
			Path:       t.TempDir(),
			MemoryOnly: true,
		})
		db := badger.New(dbCfg, testutil.NewTestLogger())
		require.NotNil(t, db)
		t.Cleanup(func() { _ = db.Close() })

		opts := replaycfg.New(nil).GetOptions()
		opts.CacheBackend = "badger"
		cache := NewRecordCache(opts, nil, db, nil, testutil.NewTestLogger())

		rec := cacheRecord(0xE4)
		require.NoError(t, cache.Put(ctx, rec.Tx.Digest, rec))
		require.NoError(t, db.Set(ctx, []byte("compile:deadbeef"), []byte{1}))

		digests, err := cache.CachedDigests(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{rec.Tx.Digest}, digests)
	})

	t.Run("空缓存返回空列表", func(t *testing.T) {
		files := newTestFileStore(t)
		cache := NewRecordCache(replaycfg.New(nil).GetOptions(), files, nil, nil, testutil.NewTestLogger())
		digests, err := cache.CachedDigests(ctx)
		require.NoError(t, err)
		assert.Empty(t, digests)
	})

	t.Run("持久层缺席返回空列表", func(t *testing.T) {
		cache := NewRecordCache(replaycfg.New(nil).GetOptions(), nil, nil, nil, testutil.NewTestLogger())
		digests, err := cache.CachedDigests(ctx)
		require.NoError(t, err)
		assert.Empty(t, digests)
	})
}

func TestRecordCacheHasAndDelete(t *testing.T) {
	ctx := context.Background()
	files := newTestFileStore(t)
	hot := memory.New(memoryconfig.New(nil), testutil.NewTestLogger())
	require.NotNil(t, hot)
	cache := NewRecordCache(replaycfg.New(nil).GetOptions(), files, nil, hot, testutil.NewTestLogger())

	rec := cacheRecord(0xE5)
	digest := rec.Tx.Digest

	t.Run("未写入时不存在", func(t *testing.T) {
		assert.False(t, cache.Has(ctx, digest))
	})

	t.Run("写入后两层都判存在", func(t *testing.T) {
		require.NoError(t, cache.Put(ctx, digest, rec))
		assert.True(t, cache.Has(ctx, digest))

		// 后端条目消失后热层仍然判存在
		require.NoError(t, files.Delete(ctx, recordCachePath(digest)))
		assert.True(t, cache.Has(ctx, digest))
	})

	t.Run("删除清空两层", func(t *testing.T) {
		require.NoError(t, cache.Put(ctx, digest, rec))
		require.NoError(t, cache.Delete(ctx, digest))

		assert.False(t, cache.Has(ctx, digest))
		_, ok := cache.Get(ctx, digest)
		assert.False(t, ok)

		exists, err := files.Exists(ctx, recordCachePath(digest))
		require.NoError(t, err)
		assert.False(t, exists)

		// 重复删除不算错误
		assert.NoError(t, cache.Delete(ctx, digest))
	})
}

func TestRecordCacheDegraded(t *testing.T) {
	ctx := context.Background()
	rec := cacheRecord(0xDA)

	t.Run("持久层缺席时写入静默读取未命中", func(t *testing.T) {
		cache := NewRecordCache(replaycfg.New(nil).GetOptions(), nil, nil, nil, testutil.NewTestLogger())
		require.NoError(t, cache.Put(ctx, rec.Tx.Digest, rec))
		_, ok := cache.Get(ctx, rec.Tx.Digest)
		assert.False(t, ok)
	})

	t.Run("空缓存指针安全", func(t *testing.T) {
		var cache *RecordCache
		got, ok := cache.Get(ctx, rec.Tx.Digest)
		assert.False(t, ok)
		assert.Nil(t, got)
		assert.NoError(t, cache.Put(ctx, rec.Tx.Digest, rec))
		assert.False(t, cache.Has(ctx, rec.Tx.Digest))
		assert.NoError(t, cache.Delete(ctx, rec.Tx.Digest))
	})
}
