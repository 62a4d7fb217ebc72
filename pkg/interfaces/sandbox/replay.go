package sandbox

import (
	"context"

	"github.com/sandvm/v1/pkg/types"
)

// Replayer 交易回放器公共接口
//
// 🎯 **核心职责**：
//   - 拉取（或命中缓存）链上交易记录
//   - 解析为本地脚本并在模拟环境中重新执行
//   - 对照记录效果逐项比对，产出 [0.0, 1.0] 匹配评分
//
// 📋 **确定性保证**：
//   - 相同记录的两次回放产生字节级一致的本地效果
//   - 状态不一致压低评分但不构成Go错误
type Replayer interface {
	// Replay 回放单笔交易
	//
	// 参数：
	//   - ctx: 上下文
	//   - digest: 交易摘要
	//
	// 返回：
	//   - *types.ReplayReport: 评分、逐项差异说明、本地效果
	//   - error: 拉取失败、记录解析失败或环境故障
	Replay(ctx context.Context, digest types.Digest) (*types.ReplayReport, error)

	// ReplayBatch 并行回放一批交易
	//
	// 按配置的工作者数量并行执行，每个工作者持有独立的
	// 模拟环境和共享注册表的只读快照。
	//
	// 参数：
	//   - ctx: 上下文
	//   - digests: 交易摘要列表
	//
	// 返回：
	//   - *types.BatchSummary: 聚合统计与逐笔报告
	//   - error: 仅在批次级故障时返回
	ReplayBatch(ctx context.Context, digests []types.Digest) (*types.BatchSummary, error)

	// CachedDigests 枚举本地缓存中已有记录的交易摘要
	//
	// 返回升序摘要列表；缓存持久层缺席时返回空列表。
	CachedDigests(ctx context.Context) ([]string, error)

	// PurgeCache 清空本地回放缓存
	//
	// 返回清除的记录数；遇到首个删除失败即停止。
	PurgeCache(ctx context.Context) (int, error)
}
