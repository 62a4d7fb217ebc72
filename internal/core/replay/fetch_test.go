package replay

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	replaycfg "github.com/sandvm/v1/internal/config/replay"
	"github.com/sandvm/v1/internal/core/vm/testutil"
	"github.com/sandvm/v1/pkg/types"
)

// archiveFixture 进程内归档端点，可注入HTTP故障与应用层错误
type archiveFixture struct {
	t      *testing.T
	server *httptest.Server

	mu       sync.Mutex
	calls    map[string]int
	failHTTP map[string]int    // 方法先以500响应的次数
	failRPC  map[string]string // 方法恒定返回的应用层错误
	tx       map[string]*types.RecordedTransaction
	effects  map[string]*types.RecordedEffects
	objects  map[string]*types.RecordedObject
}

func newArchiveFixture(t *testing.T) *archiveFixture {
	t.Helper()
	f := &archiveFixture{
		t:        t,
		calls:    make(map[string]int),
		failHTTP: make(map[string]int),
		failRPC:  make(map[string]string),
		tx:       make(map[string]*types.RecordedTransaction),
		effects:  make(map[string]*types.RecordedEffects),
		objects:  make(map[string]*types.RecordedObject),
	}
	f.server = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.server.Close)
	return f
}

func (f *archiveFixture) handle(w http.ResponseWriter, r *http.Request) {
	var req jsonrpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[req.Method]++

	if f.failHTTP[req.Method] > 0 {
		f.failHTTP[req.Method]--
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	resp := jsonrpcResponse{JSONRPC: "2.0", ID: req.ID}
	if msg, ok := f.failRPC[req.Method]; ok {
		resp.Error = &jsonrpcError{Code: -32000, Message: msg}
		f.reply(w, &resp)
		return
	}

	// 未命中的键序列化为null，客户端按零值记录判定未找到
	var payload interface{}
	switch req.Method {
	case "chain_getTransaction":
		digest, _ := req.Params[0].(string)
		if rec, ok := f.tx[digest]; ok {
			payload = rec
		}
	case "chain_getEffects":
		digest, _ := req.Params[0].(string)
		if eff, ok := f.effects[digest]; ok {
			payload = eff
		}
	case "chain_getObject":
		id, _ := req.Params[0].(string)
		version, _ := req.Params[1].(float64)
		if obj, ok := f.objects[archiveObjectKey(id, uint64(version))]; ok {
			payload = obj
		}
	default:
		resp.Error = &jsonrpcError{Code: -32601, Message: "method not found"}
		f.reply(w, &resp)
		return
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	resp.Result = raw
	f.reply(w, &resp)
}

func (f *archiveFixture) reply(w http.ResponseWriter, resp *jsonrpcResponse) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		f.t.Errorf("写归档响应失败: %v", err)
	}
}

// seed 按记录内容填充三类归档数据
func (f *archiveFixture) seed(rec *types.ReplayRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tx := rec.Tx
	f.tx[tx.Digest] = &tx
	eff := rec.Effects
	f.effects[tx.Digest] = &eff
	for i := range rec.Objects {
		obj := rec.Objects[i]
		f.objects[archiveObjectKey(obj.ID, obj.Version)] = &obj
	}
}

func (f *archiveFixture) seedObject(obj *types.RecordedObject) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[archiveObjectKey(obj.ID, obj.Version)] = obj
}

func (f *archiveFixture) callCount(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

// client 指向夹具端点的客户端，退避压到毫秒级
func (f *archiveFixture) client(t *testing.T, retries int) *ArchiveClient {
	t.Helper()
	opts := replaycfg.New(nil).GetOptions()
	opts.Endpoint = f.server.URL
	opts.RetryAttempts = retries
	opts.RetryBackoff = time.Millisecond
	c := NewArchiveClient(opts)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

// archiveObjectKey 短形式与完整形式ID归一后才能命中同一条目
func archiveObjectKey(id string, version uint64) string {
	return canonicalID(id) + "@" + strconv.FormatUint(version, 10)
}

func TestArchiveClientGetTransaction(t *testing.T) {
	ctx := context.Background()
	f := newArchiveFixture(t)
	rec := cacheRecord(0xD7)
	f.seed(rec)
	c := f.client(t, 0)

	t.Run("取回交易结构", func(t *testing.T) {
		tx, err := c.GetTransaction(ctx, rec.Tx.Digest)
		require.NoError(t, err)
		assert.Equal(t, rec.Tx, *tx)
		assert.Equal(t, 1, f.callCount("chain_getTransaction"))
	})

	t.Run("未知摘要判定未找到", func(t *testing.T) {
		before := f.callCount("chain_getTransaction")
		_, err := c.GetTransaction(ctx, testutil.TestDigest(0xEE).String())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not found")
		assert.Equal(t, before+1, f.callCount("chain_getTransaction"))
	})

	t.Run("取回链上效果", func(t *testing.T) {
		eff, err := c.GetEffects(ctx, rec.Tx.Digest)
		require.NoError(t, err)
		assert.Equal(t, rec.Effects, *eff)
	})

	t.Run("取回对象快照", func(t *testing.T) {
		obj, err := c.GetObject(ctx, rec.Objects[0].ID, rec.Objects[0].Version)
		require.NoError(t, err)
		assert.Equal(t, rec.Objects[0], *obj)
	})
}

func TestArchiveClientRetry(t *testing.T) {
	ctx := context.Background()

	t.Run("瞬时5xx退避后成功", func(t *testing.T) {
		f := newArchiveFixture(t)
		rec := cacheRecord(0xD7)
		f.seed(rec)
		f.failHTTP["chain_getTransaction"] = 2

		c := f.client(t, 3)
		tx, err := c.GetTransaction(ctx, rec.Tx.Digest)
		require.NoError(t, err)
		assert.Equal(t, rec.Tx.Digest, tx.Digest)
		assert.Equal(t, 3, f.callCount("chain_getTransaction"))
	})

	t.Run("重试次数耗尽", func(t *testing.T) {
		f := newArchiveFixture(t)
		f.failHTTP["chain_getTransaction"] = 10

		c := f.client(t, 2)
		_, err := c.GetTransaction(ctx, testutil.TestDigest(0xD7).String())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "attempts exhausted")
		assert.Contains(t, err.Error(), "http status 500")
		assert.Equal(t, 3, f.callCount("chain_getTransaction"))
	})

	t.Run("应用层错误不重试", func(t *testing.T) {
		f := newArchiveFixture(t)
		f.failRPC["chain_getTransaction"] = "archive pruned below requested height"

		c := f.client(t, 3)
		_, err := c.GetTransaction(ctx, testutil.TestDigest(0xD7).String())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "jsonrpc error")
		assert.Contains(t, err.Error(), "archive pruned")
		assert.Equal(t, 1, f.callCount("chain_getTransaction"))
	})

	t.Run("零重试即单次尝试", func(t *testing.T) {
		f := newArchiveFixture(t)
		f.failHTTP["chain_getTransaction"] = 1

		c := f.client(t, 0)
		_, err := c.GetTransaction(ctx, testutil.TestDigest(0xD7).String())
		require.Error(t, err)
		assert.Equal(t, 1, f.callCount("chain_getTransaction"))
	})
}

func TestArchiveClientFetchRecord(t *testing.T) {
	ctx := context.Background()

	t.Run("打包交易快照与效果", func(t *testing.T) {
		f := newArchiveFixture(t)
		rec := cacheRecord(0xD7)
		// 同一对象的短形式重复输入，归一去重后只取一次快照
		rec.Tx.Inputs = append(rec.Tx.Inputs, types.RecordedInput{
			Kind: "object", ObjectID: oid(0x0B).String(), Version: 5,
		})
		// 燃料对象未出现在输入中，落账版本9，前置快照在8
		rec.Effects.GasObject = oid(0xC1).Hex()
		rec.Effects.Mutated = append(rec.Effects.Mutated, types.RecordedChange{ID: oid(0xC1).Hex(), Version: 9})
		f.seed(rec)
		f.seedObject(&types.RecordedObject{
			ID:       oid(0xC1).Hex(),
			Version:  8,
			Type:     "0x2::coin::Coin",
			Owner:    "address(0x7a)",
			Contents: []byte{16, 39, 0, 0, 0, 0, 0, 0},
		})

		c := f.client(t, 0)
		got, err := c.FetchRecord(ctx, rec.Tx.Digest)
		require.NoError(t, err)

		assert.Equal(t, rec.Tx, got.Tx)
		assert.Equal(t, rec.Effects, got.Effects)
		require.Len(t, got.Objects, 2)
		assert.Equal(t, oid(0x0B).Hex(), got.Objects[0].ID)
		assert.Equal(t, uint64(5), got.Objects[0].Version)
		assert.Equal(t, oid(0xC1).Hex(), got.Objects[1].ID)
		assert.Equal(t, uint64(8), got.Objects[1].Version)

		assert.Equal(t, 1, f.callCount("chain_getTransaction"))
		assert.Equal(t, 1, f.callCount("chain_getEffects"))
		assert.Equal(t, 2, f.callCount("chain_getObject"))
	})

	t.Run("燃料前置快照缺失时跳过", func(t *testing.T) {
		f := newArchiveFixture(t)
		rec := cacheRecord(0xD7)
		rec.Effects.GasObject = oid(0xC2).Hex()
		rec.Effects.Mutated = append(rec.Effects.Mutated, types.RecordedChange{ID: oid(0xC2).Hex(), Version: 9})
		f.seed(rec)

		c := f.client(t, 0)
		got, err := c.FetchRecord(ctx, rec.Tx.Digest)
		require.NoError(t, err)
		require.Len(t, got.Objects, 1)
		assert.Equal(t, oid(0x0B).Hex(), got.Objects[0].ID)
	})

	t.Run("燃料对象首笔交易无前置快照", func(t *testing.T) {
		f := newArchiveFixture(t)
		rec := cacheRecord(0xD7)
		rec.Effects.GasObject = oid(0xC3).Hex()
		rec.Effects.Mutated = append(rec.Effects.Mutated, types.RecordedChange{ID: oid(0xC3).Hex(), Version: 1})
		f.seed(rec)

		c := f.client(t, 0)
		got, err := c.FetchRecord(ctx, rec.Tx.Digest)
		require.NoError(t, err)
		require.Len(t, got.Objects, 1)
		assert.Equal(t, 1, f.callCount("chain_getObject"))
	})

	t.Run("燃料对象已是输入时不再取", func(t *testing.T) {
		f := newArchiveFixture(t)
		rec := cacheRecord(0xD7)
		rec.Effects.GasObject = oid(0x0B).Hex()
		f.seed(rec)

		c := f.client(t, 0)
		got, err := c.FetchRecord(ctx, rec.Tx.Digest)
		require.NoError(t, err)
		require.Len(t, got.Objects, 1)
		assert.Equal(t, 1, f.callCount("chain_getObject"))
	})

	t.Run("交易缺失时整体失败", func(t *testing.T) {
		f := newArchiveFixture(t)
		c := f.client(t, 0)
		_, err := c.FetchRecord(ctx, testutil.TestDigest(0xEE).String())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "fetch transaction")
	})

	t.Run("输入对象缺失时整体失败", func(t *testing.T) {
		f := newArchiveFixture(t)
		rec := cacheRecord(0xD7)
		f.seed(rec)
		f.mu.Lock()
		delete(f.objects, archiveObjectKey(oid(0x0B).Hex(), 5))
		f.mu.Unlock()

		c := f.client(t, 0)
		_, err := c.FetchRecord(ctx, rec.Tx.Digest)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "fetch input object")
	})
}
