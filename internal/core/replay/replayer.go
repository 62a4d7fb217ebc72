// Package replay 实现链上交易的本地重放与效果比对
//
// 🔄 **核心职责**：
// - 从归档端点拉取交易记录（结构、输入对象快照、链上效果），
//   本地缓存命中时免网络
// - 解析为强类型脚本，在模拟环境中按记录的摘要、发送者与
//   纪元重新执行
// - 本地效果与记录效果逐项比对，产出加权一致性得分
//
// 📋 **确定性**：
// 输入对象按记录版本导入，新鲜对象ID从链上摘要派生，
// 相同记录的两次回放产生字节级一致的本地效果。
//
// 🔗 **批量模式**：
// 工作者池并行回放，每个工作者持共享注册表的只读快照分叉
// 出私有环境，进度经事件总线上报。
package replay

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	replaycfg "github.com/sandvm/v1/internal/config/replay"
	clockimpl "github.com/sandvm/v1/internal/core/infrastructure/clock"
	"github.com/sandvm/v1/internal/core/sandbox"
	infraClock "github.com/sandvm/v1/pkg/interfaces/infrastructure/clock"
	eventif "github.com/sandvm/v1/pkg/interfaces/infrastructure/event"
	"github.com/sandvm/v1/pkg/interfaces/infrastructure/log"
	sandboxif "github.com/sandvm/v1/pkg/interfaces/sandbox"
	"github.com/sandvm/v1/pkg/types"
	metricsutil "github.com/sandvm/v1/pkg/utils/metrics"
)

// Archive 归档数据源
type Archive interface {
	// FetchRecord 取回一笔交易回放所需的全部材料
	FetchRecord(ctx context.Context, digest string) (*types.ReplayRecord, error)
}

// Service 交易回放器
//
// 回放需要独占推进环境的完整生命周期（重置、导入、执行），
// 所以依赖具体环境而非公共接口；单笔回放在共享环境上串行，
// 批量回放的工作者各持分叉环境并行。
type Service struct {
	logger  log.Logger
	opts    *replaycfg.ReplayOptions
	archive Archive
	cache   *RecordCache
	env     *sandbox.Environment
	bus     eventif.EventBus
	clock   infraClock.Clock

	// envMu 串行化共享环境上的单笔回放
	envMu sync.Mutex
}

// NewService 创建回放器
//
// cache 与 bus 允许为nil：缓存缺席时每笔都走归档端点，
// 总线缺席时跳过事件发布。
func NewService(logger log.Logger, cfg *replaycfg.Config, archive Archive, cache *RecordCache, env *sandbox.Environment, bus eventif.EventBus) *Service {
	return &Service{
		logger:  logger,
		opts:    cfg.GetOptions(),
		archive: archive,
		cache:   cache,
		env:     env,
		bus:     bus,
		clock:   clockimpl.NewSystemClock(),
	}
}

// WithClock 替换计时用的时间源
func (r *Service) WithClock(c infraClock.Clock) *Service {
	r.clock = c
	return r
}

// CachedDigests 枚举本地缓存中的交易摘要
func (r *Service) CachedDigests(ctx context.Context) ([]string, error) {
	return r.cache.CachedDigests(ctx)
}

// PurgeCache 清空本地回放缓存，返回清除的记录数
func (r *Service) PurgeCache(ctx context.Context) (int, error) {
	digests, err := r.cache.CachedDigests(ctx)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, digest := range digests {
		if err := r.cache.Delete(ctx, digest); err != nil {
			return removed, err
		}
		removed++
	}
	if removed > 0 {
		r.logger.Infof("回放缓存已清空: 清除记录=%d", removed)
	}
	return removed, nil
}

// Replay 回放单笔交易
func (r *Service) Replay(ctx context.Context, digest types.Digest) (*types.ReplayReport, error) {
	r.envMu.Lock()
	defer r.envMu.Unlock()

	rep := r.replayOn(ctx, r.env, digest)
	if rep.Err != "" {
		return nil, errors.New(rep.Err)
	}
	return rep, nil
}

// replayOn 在指定环境上回放一笔交易
//
// 基础设施失败（拉取、解析、导入、环境故障）写入报告的 Err
// 字段，比对偏差只压低得分。
func (r *Service) replayOn(ctx context.Context, env *sandbox.Environment, digest types.Digest) *types.ReplayReport {
	started := r.clock.Now()
	key := digest.String()
	rep := &types.ReplayReport{Digest: key}

	r.publish(eventif.EventReplayStarted, key)
	defer func() {
		rep.Duration = r.clock.Since(started)
		outcome := "perfect"
		switch {
		case rep.Err != "":
			outcome = "failed"
		case !rep.Match:
			outcome = "mismatch"
		}
		replaysTotal.WithLabelValues(outcome).Inc()
		replayDuration.Observe(rep.Duration.Seconds())
		if rep.Err == "" {
			replayScore.Observe(rep.Score)
		}
		r.publish(eventif.EventReplayFinished, rep)
	}()

	record, fromCache := r.cache.Get(ctx, key)
	if record == nil {
		fetched, err := r.archive.FetchRecord(ctx, key)
		if err != nil {
			rep.Err = fmt.Sprintf("fetch record %s: %v", key, err)
			r.logger.Warnf("回放记录拉取失败: %s: %v", key, err)
			return rep
		}
		record = fetched
		if err := r.cache.Put(ctx, key, record); err != nil {
			r.logger.Warnf("回放记录缓存写入失败: %s: %v", key, err)
		}
	}
	rep.FromCache = fromCache

	parsed, err := parseRecord(record)
	if err != nil {
		rep.Err = fmt.Sprintf("parse record %s: %v", key, err)
		r.logger.Warnf("回放记录解析失败: %s: %v", key, err)
		return rep
	}

	if err := env.ResetState(ctx); err != nil {
		rep.Err = fmt.Sprintf("reset state: %v", err)
		return rep
	}
	if err := seedObjects(env, parsed.objects); err != nil {
		rep.Err = fmt.Sprintf("seed objects: %v", err)
		return rep
	}

	result, err := env.Execute(ctx, parsed.script, parsed.opts)
	if err != nil {
		rep.Err = fmt.Sprintf("execute script: %v", err)
		return rep
	}

	rep.Produced = result.Effects
	rep.Score, rep.Notes = compareEffects(&record.Effects, result.Effects, r.opts.GasTolerance)
	rep.Match = rep.Score == 1.0

	r.logger.Infof("回放完成: 摘要=%s 得分=%.3f 缓存命中=%v 偏差=%d",
		key, rep.Score, rep.FromCache, len(rep.Notes))
	return rep
}

// seedObjects 把记录的输入对象按链上版本导入环境
func seedObjects(env *sandbox.Environment, objects []*types.Object) error {
	if len(objects) == 0 {
		return nil
	}
	store, release := env.BorrowStore()
	defer release()

	for _, obj := range objects {
		if err := store.Import(obj); err != nil {
			return fmt.Errorf("import %s@%d: %w", obj.ID, obj.Version, err)
		}
	}
	return nil
}

// ReplayBatch 并行回放一批交易
func (r *Service) ReplayBatch(ctx context.Context, digests []types.Digest) (*types.BatchSummary, error) {
	started := r.clock.Now()
	summary := &types.BatchSummary{
		JobID:   uuid.NewString(),
		Total:   len(digests),
		Reports: make([]types.ReplayReport, len(digests)),
	}
	if len(digests) == 0 {
		summary.Duration = r.clock.Since(started)
		return summary, nil
	}

	workers := r.opts.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(digests) {
		workers = len(digests)
	}

	r.logger.Infof("批量回放开始: 任务=%s 笔数=%d 工作者=%d", summary.JobID, summary.Total, workers)
	if metricsutil.IsIOHighPressure() {
		r.logger.Warnf("IO压力偏高，批量回放将在任务间自动降速: 任务=%s", summary.JobID)
	}

	type job struct {
		idx    int
		digest types.Digest
	}
	jobs := make(chan job)
	var done atomic.Int64
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			env, err := r.env.Fork()
			if err != nil {
				r.logger.Errorf("回放工作者环境分叉失败: %v", err)
				for j := range jobs {
					summary.Reports[j.idx] = types.ReplayReport{
						Digest: j.digest.String(),
						Err:    fmt.Sprintf("fork environment: %v", err),
					}
					r.publish(eventif.EventBatchProgress, summary.JobID, int(done.Add(1)), summary.Total)
				}
				return
			}
			defer func() { _ = env.Close(context.Background()) }()

			for j := range jobs {
				r.throttle(ctx)
				rep := r.replayOn(ctx, env, j.digest)
				summary.Reports[j.idx] = *rep
				r.publish(eventif.EventBatchProgress, summary.JobID, int(done.Add(1)), summary.Total)
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i, d := range digests {
			jobs <- job{idx: i, digest: d}
		}
	}()

	wg.Wait()

	var scoreSum float64
	scored := 0
	for i := range summary.Reports {
		rep := &summary.Reports[i]
		switch {
		case rep.Err != "":
			summary.Failed++
		case rep.Match:
			summary.Perfect++
			scoreSum += rep.Score
			scored++
		default:
			summary.Mismatched++
			scoreSum += rep.Score
			scored++
		}
	}
	if scored > 0 {
		summary.MeanScore = scoreSum / float64(scored)
	}
	summary.Duration = r.clock.Since(started)

	replayBatches.Inc()
	r.logger.Infof("批量回放结束: 任务=%s 一致=%d 偏差=%d 失败=%d 平均得分=%.3f 耗时=%s",
		summary.JobID, summary.Perfect, summary.Mismatched, summary.Failed, summary.MeanScore, summary.Duration)
	return summary, nil
}

// throttle 任务间的压力检查，高压时按建议时长停顿
//
// 批量取数与缓存读会推高磁盘与FD占用，停顿给基础设施
// 留出回落窗口；取消的上下文立即放行。
func (r *Service) throttle(ctx context.Context) {
	slow, pause, reason := metricsutil.ShouldSlowdown()
	if !slow {
		return
	}
	diag := metricsutil.GetIOPressureDiagnostic()
	r.logger.Debugf("批量回放降速: 原因=%s 停顿=%s ema_qps=%.1f ema_latency=%.3fs 触发=%v",
		reason, pause, diag.EMAQPS, diag.EMALatency, diag.Triggers)

	timer := time.NewTimer(pause)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// publish 发布事件，总线缺席时静默跳过
func (r *Service) publish(topic eventif.EventType, args ...interface{}) {
	if r.bus == nil {
		return
	}
	r.bus.Publish(topic, args...)
}

var _ sandboxif.Replayer = (*Service)(nil)
