package replay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	replaycfg "github.com/sandvm/v1/internal/config/replay"
	"github.com/sandvm/v1/pkg/types"
	metricsutil "github.com/sandvm/v1/pkg/utils/metrics"
)

// ArchiveClient 归档端点 JSON-RPC 客户端
//
// 🔗 **拉取协议**：
// 归档节点以 JSON-RPC 2.0 暴露历史交易数据，三个方法各取
// 一类材料：chain_getTransaction（交易结构）、chain_getObject
// （对象在指定版本的快照）、chain_getEffects（链上记录效果）。
// FetchRecord 把三者捆成一份完整的回放记录。
//
// 瞬时故障（连接失败、5xx）按指数退避重试，JSON-RPC 应用层
// 错误视为终局，不重试。
type ArchiveClient struct {
	endpoint   string
	httpClient *http.Client
	nextID     atomic.Uint64

	retries int
	backoff time.Duration

	// wire 线路级调试日志，默认丢弃
	wire zerolog.Logger
}

// NewArchiveClient 创建归档端点客户端
func NewArchiveClient(opts *replaycfg.ReplayOptions) *ArchiveClient {
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	backoff := opts.RetryBackoff
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}
	retries := opts.RetryAttempts
	if retries < 0 {
		retries = 0
	}

	return &ArchiveClient{
		endpoint: opts.Endpoint,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		retries: retries,
		backoff: backoff,
		wire:    zerolog.New(io.Discard),
	}
}

// WithWireLog 将线路级调试日志写入指定目标
func (c *ArchiveClient) WithWireLog(w io.Writer) *ArchiveClient {
	c.wire = zerolog.New(w).With().Timestamp().Str("component", "archive").Logger()
	return c
}

// Close 释放空闲连接
func (c *ArchiveClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// jsonrpcRequest JSON-RPC 2.0 请求
type jsonrpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
	ID      uint64        `json:"id"`
}

// jsonrpcResponse JSON-RPC 2.0 响应
type jsonrpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *jsonrpcError   `json:"error,omitempty"`
	ID      uint64          `json:"id"`
}

// jsonrpcError JSON-RPC 2.0 错误
type jsonrpcError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// call 统一的JSON-RPC调用方法，带重试
func (c *ArchiveClient) call(ctx context.Context, method string, params []interface{}, result interface{}) error {
	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			delay := c.backoff << (attempt - 1)
			// 本地FD/协程高压时拉长重试间隔，重试风暴会加剧压力
			if extra := metricsutil.GetRecommendedSlowdownDuration(); extra > 0 {
				delay += extra
			}
			c.wire.Debug().Str("method", method).Int("attempt", attempt).Dur("delay", delay).Msg("重试归档请求")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		retryable, err := c.callOnce(ctx, method, params, result)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retryable {
			return err
		}
	}
	return fmt.Errorf("%s: %d attempts exhausted: %w", method, c.retries+1, lastErr)
}

// callOnce 单次调用，返回错误是否值得重试
func (c *ArchiveClient) callOnce(ctx context.Context, method string, params []interface{}, result interface{}) (bool, error) {
	req := &jsonrpcRequest{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      c.nextID.Add(1),
	}

	reqBody, err := json.Marshal(req)
	if err != nil {
		return false, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return false, fmt.Errorf("create http request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	c.wire.Debug().Str("method", method).Uint64("id", req.ID).Msg("归档请求")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		return true, fmt.Errorf("http request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return true, fmt.Errorf("read response: %w", err)
	}

	c.wire.Debug().Str("method", method).Int("status", resp.StatusCode).Int("bytes", len(respBody)).Msg("归档响应")

	if resp.StatusCode != http.StatusOK {
		return resp.StatusCode >= http.StatusInternalServerError, fmt.Errorf("http status %d", resp.StatusCode)
	}

	var jsonResp jsonrpcResponse
	if err := json.Unmarshal(respBody, &jsonResp); err != nil {
		return false, fmt.Errorf("unmarshal response: %w", err)
	}
	if jsonResp.Error != nil {
		return false, fmt.Errorf("jsonrpc error %d: %s", jsonResp.Error.Code, jsonResp.Error.Message)
	}
	if result != nil && len(jsonResp.Result) > 0 {
		if err := json.Unmarshal(jsonResp.Result, result); err != nil {
			return false, fmt.Errorf("unmarshal result: %w", err)
		}
	}
	return false, nil
}

// ==================== 归档数据方法 ====================

// GetTransaction 取回交易结构
func (c *ArchiveClient) GetTransaction(ctx context.Context, digest string) (*types.RecordedTransaction, error) {
	var tx types.RecordedTransaction
	if err := c.call(ctx, "chain_getTransaction", []interface{}{digest}, &tx); err != nil {
		return nil, err
	}
	if tx.Digest == "" {
		return nil, fmt.Errorf("transaction %s not found", digest)
	}
	return &tx, nil
}

// GetObject 取回对象在指定版本的快照
func (c *ArchiveClient) GetObject(ctx context.Context, id string, version uint64) (*types.RecordedObject, error) {
	var obj types.RecordedObject
	if err := c.call(ctx, "chain_getObject", []interface{}{id, version}, &obj); err != nil {
		return nil, err
	}
	if obj.ID == "" {
		return nil, fmt.Errorf("object %s@%d not found", id, version)
	}
	return &obj, nil
}

// GetEffects 取回链上记录的执行效果
func (c *ArchiveClient) GetEffects(ctx context.Context, digest string) (*types.RecordedEffects, error) {
	var eff types.RecordedEffects
	if err := c.call(ctx, "chain_getEffects", []interface{}{digest}, &eff); err != nil {
		return nil, err
	}
	if eff.Status == "" {
		return nil, fmt.Errorf("effects for %s not found", digest)
	}
	return &eff, nil
}

// FetchRecord 取回一笔交易回放所需的全部材料
//
// 交易结构、全部对象类输入在记录版本的快照、链上效果。
// 燃料对象若未出现在输入中，额外按其落账前版本取一次快照，
// 供回放以真实燃料对象执行；取不到时回放退回合成占位路径。
func (c *ArchiveClient) FetchRecord(ctx context.Context, digest string) (*types.ReplayRecord, error) {
	tx, err := c.GetTransaction(ctx, digest)
	if err != nil {
		return nil, fmt.Errorf("fetch transaction: %w", err)
	}

	effects, err := c.GetEffects(ctx, digest)
	if err != nil {
		return nil, fmt.Errorf("fetch effects: %w", err)
	}

	seen := make(map[string]bool)
	var objects []types.RecordedObject
	for _, in := range tx.Inputs {
		if in.ObjectID == "" {
			continue
		}
		key := canonicalID(in.ObjectID)
		if seen[key] {
			continue
		}
		obj, err := c.GetObject(ctx, in.ObjectID, in.Version)
		if err != nil {
			return nil, fmt.Errorf("fetch input object %s: %w", in.ObjectID, err)
		}
		seen[key] = true
		objects = append(objects, *obj)
	}

	if effects.GasObject != "" && !seen[canonicalID(effects.GasObject)] {
		if ver, ok := gasInputVersion(effects); ok {
			obj, err := c.GetObject(ctx, effects.GasObject, ver)
			if err != nil {
				c.wire.Debug().Err(err).Str("gas_object", effects.GasObject).Msg("燃料对象前置快照缺失")
			} else {
				objects = append(objects, *obj)
			}
		}
	}

	return &types.ReplayRecord{Tx: *tx, Objects: objects, Effects: *effects}, nil
}

// gasInputVersion 从记录效果推导燃料对象的落账前版本
//
// 版本每次提交推进1，落账后版本为 v 则执行前为 v-1；
// v <= 1 说明燃料对象在该交易前不存在，无前置快照可取。
func gasInputVersion(effects *types.RecordedEffects) (uint64, bool) {
	gasKey := canonicalID(effects.GasObject)
	for _, ch := range effects.Mutated {
		if canonicalID(ch.ID) == gasKey && ch.Version > 1 {
			return ch.Version - 1, true
		}
	}
	return 0, false
}

// canonicalID 把对象ID字符串归一为完整十六进制形式
//
// 短形式与完整形式指向同一对象，归一后才能作为去重键。
// 解析失败时原样返回，此类键只会与自身相等。
func canonicalID(s string) string {
	id, err := types.ParseObjectID(s)
	if err != nil {
		return s
	}
	return id.Hex()
}

var _ Archive = (*ArchiveClient)(nil)
