// Package sandbox 实现离线模拟环境
//
// 🏖️ **核心职责**：
// - 持有规范对象仓库、模块注册表与执行引擎，编排整个执行栈
// - Deploy/Execute/ResetState 生命周期操作与对象播种辅助
// - 借用协议：仓库的唯一所有者是环境，执行器与回放器
//   只经 BorrowStore 独占借用访问，同环境的执行因此串行
//
// 📋 **确定性**：
// 本地执行的摘要由环境内单调序号派生，相同环境、相同操作
// 序列产出相同的摘要、对象ID与效果；回放路径传入链上摘要，
// 复现记录中的ID序列。
//
// 🔗 **事件与指标**：
// 部署、执行与重置在事件总线上发布生命周期事件（总线缺席时
// 静默跳过），Prometheus 指标按终态计数脚本执行。
package sandbox

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/crypto/blake2b"

	sandboxcfg "github.com/sandvm/v1/internal/config/sandbox"
	vmconfig "github.com/sandvm/v1/internal/config/vm"
	"github.com/sandvm/v1/internal/core/infrastructure/crypto/hash"
	"github.com/sandvm/v1/internal/core/objects"
	"github.com/sandvm/v1/internal/core/registry"
	scriptexec "github.com/sandvm/v1/internal/core/script"
	vmctx "github.com/sandvm/v1/internal/core/vm/context"
	"github.com/sandvm/v1/internal/core/vm/engine"
	"github.com/sandvm/v1/internal/core/vm/natives"
	"github.com/sandvm/v1/internal/core/vm/runtime"
	eventif "github.com/sandvm/v1/pkg/interfaces/infrastructure/event"
	"github.com/sandvm/v1/pkg/interfaces/infrastructure/log"
	metricsif "github.com/sandvm/v1/pkg/interfaces/infrastructure/metrics"
	"github.com/sandvm/v1/pkg/interfaces/infrastructure/storage"
	sandboxif "github.com/sandvm/v1/pkg/interfaces/sandbox"
	"github.com/sandvm/v1/pkg/interfaces/vm"
	"github.com/sandvm/v1/pkg/types"
	"github.com/sandvm/v1/pkg/utils"
	metricsutil "github.com/sandvm/v1/pkg/utils/metrics"
)

// Environment 模拟环境
type Environment struct {
	// === 依赖 ===

	logger log.Logger
	cfg    *sandboxcfg.Config
	vmCfg  *vmconfig.Config
	bus    eventif.EventBus

	// === 执行栈 ===

	runtime  *runtime.Runtime
	registry vm.Registry
	engine   vm.Engine

	// === 规范仓库 ===

	// storeMu 借用锁：持锁者独占仓库，执行与重置互斥
	storeMu sync.Mutex
	store   *objects.Store

	// === 环境计数器 ===

	epoch   atomic.Uint64
	execSeq atomic.Uint64
	seedSeq atomic.Uint64

	defaultSender types.Address
}

var (
	_ sandboxif.Environment    = (*Environment)(nil)
	_ metricsif.MemoryReporter = (*Environment)(nil)
)

// New 组建完整的模拟环境：运行时、注册表、引擎与空仓库
//
// cache 为编译缓存标记存储，bus 为事件总线，二者都允许为nil。
func New(logger log.Logger, cfg *sandboxcfg.Config, vmCfg *vmconfig.Config, cache storage.MemoryStore, bus eventif.EventBus) (*Environment, error) {
	rt := runtime.New(logger, vmCfg, cache)
	return assemble(logger, cfg, vmCfg, rt, registry.New(logger, rt), bus)
}

// NewWithRegistry 以既有注册表组建模拟环境
//
// 批量回放的工作者用共享注册表的只读快照组建私有环境，
// 编译产物经工作者自己运行时的内容寻址缓存按需物化。
func NewWithRegistry(logger log.Logger, cfg *sandboxcfg.Config, vmCfg *vmconfig.Config, reg vm.Registry, cache storage.MemoryStore, bus eventif.EventBus) (*Environment, error) {
	rt := runtime.New(logger, vmCfg, cache)
	return assemble(logger, cfg, vmCfg, rt, reg, bus)
}

func assemble(logger log.Logger, cfg *sandboxcfg.Config, vmCfg *vmconfig.Config, rt *runtime.Runtime, reg vm.Registry, bus eventif.EventBus) (*Environment, error) {
	nats := natives.New(logger, hash.NewHashService())
	eng, err := engine.New(logger, rt, reg, nats)
	if err != nil {
		_ = rt.Close(context.Background())
		return nil, fmt.Errorf("assemble sandbox engine: %w", err)
	}

	env := &Environment{
		logger:        logger,
		cfg:           cfg,
		vmCfg:         vmCfg,
		bus:           bus,
		runtime:       rt,
		registry:      reg,
		engine:        eng,
		store:         objects.NewStore(),
		defaultSender: cfg.DefaultSenderAddress(),
	}
	env.epoch.Store(cfg.GetOptions().Epoch)

	logger.Infof("模拟环境就绪: 默认发送者=%s 纪元=%d", env.defaultSender, env.Epoch())
	return env, nil
}

// Close 关闭环境并释放执行引擎资源
func (env *Environment) Close(ctx context.Context) error {
	return env.engine.Close(ctx)
}

// Registry 返回环境的模块注册表
func (env *Environment) Registry() vm.Registry {
	return env.registry
}

// Fork 派生一个私有环境
//
// 新环境以本环境注册表的只读快照起步，仓库为空、计数器归零，
// 配置与事件总线共享。批量回放的每个工作者各持一个分叉，
// 并行执行互不干扰。
func (env *Environment) Fork() (*Environment, error) {
	return NewWithRegistry(env.logger, env.cfg, env.vmCfg, env.registry.Clone(), nil, env.bus)
}

// ==================== 生命周期操作 ====================

// Deploy 在指定地址下发布一批命名模块
//
// 模块按名字典序进入注册表，保证访问轨迹的确定性；
// 注册表的整批原子性由其自身保证。
func (env *Environment) Deploy(ctx context.Context, address types.Address, modules map[string][]byte) error {
	if len(modules) == 0 {
		return errors.New("no modules to deploy")
	}

	names := make([]string, 0, len(modules))
	for name := range modules {
		names = append(names, name)
	}
	sort.Strings(names)

	batch := make([]types.ModuleBytes, 0, len(names))
	for _, name := range names {
		if !utils.IsWASMBytecode(modules[name]) {
			return fmt.Errorf("module %s: not wasm bytecode", name)
		}
		batch = append(batch, types.ModuleBytes{
			ID:       types.NewModuleID(address, name),
			Bytecode: modules[name],
		})
	}

	if err := env.registry.Load(ctx, batch); err != nil {
		return fmt.Errorf("deploy modules: %w", err)
	}

	sandboxModulesDeployed.Add(float64(len(batch)))
	env.publish(eventif.EventModuleDeployed, address, names)
	env.logger.Infof("模块部署完成: 地址=%s 模块=%v", address, names)
	return nil
}

// Execute 执行一个脚本并返回完整结果
//
// 脚本级失败（参数非法、合约中止）折叠进结果，Go错误只表达
// 基础设施故障。执行期间独占借用仓库，同环境并发调用串行排队。
func (env *Environment) Execute(ctx context.Context, script *types.Script, opts sandboxif.ExecOptions) (*types.ScriptResult, error) {
	if script == nil {
		return nil, errors.New("script is nil")
	}

	sender := opts.Sender
	if sender == (types.Address{}) {
		sender = env.defaultSender
	}
	epoch := opts.Epoch
	if epoch == 0 {
		epoch = env.Epoch()
	}
	digest := opts.Digest
	if digest == (types.Digest{}) {
		digest = env.nextDigest(sender)
	}

	store, release := env.BorrowStore()
	defer release()

	started := time.Now()
	ec := vmctx.NewExecutionContext(digest, sender, epoch, env.vmCfg.NativeConfig(), store)
	ex := scriptexec.New(env.logger, env.engine, env.registry, store, ec, *script, scriptexec.Options{
		GasBudget: opts.GasBudget,
		GasRef:    opts.GasRef,
	})

	result, err := ex.Run(ctx)
	if err != nil {
		return nil, err
	}

	sandboxScriptDuration.Observe(time.Since(started).Seconds())
	sandboxScriptsTotal.WithLabelValues(string(result.State)).Inc()
	if result.State == types.ScriptAborted && result.Effects != nil && result.Effects.Failure != nil {
		sandboxAbortsTotal.WithLabelValues(string(result.Effects.Failure.Kind)).Inc()
	}
	env.publish(eventif.EventScriptExecuted, result)
	env.logger.Debugf("脚本执行结束: 状态=%s 命令=%d 变更=%d",
		result.State, len(script.Commands), len(result.Effects.Changes))
	return result, nil
}

// ResetState 重置环境状态
//
// 对象、墓碑、动态字段与接收暂存全部清空，摘要与播种序号
// 归零，纪元回到配置初始值；已部署模块与其访问轨迹保留。
func (env *Environment) ResetState(ctx context.Context) error {
	store, release := env.BorrowStore()
	defer release()

	store.Reset()
	env.execSeq.Store(0)
	env.seedSeq.Store(0)
	env.epoch.Store(env.cfg.GetOptions().Epoch)

	sandboxStateResets.Inc()
	env.publish(eventif.EventStateReset)
	env.logger.Infof("环境状态已重置: 对象清空, 模块保留")
	return nil
}

// ==================== 对象播种 ====================

// SeedObject 直接写入一个对象并立即提交（测试安排用）
func (env *Environment) SeedObject(ctx context.Context, obj *types.Object) error {
	store, release := env.BorrowStore()
	defer release()

	if err := store.Create(obj); err != nil {
		return err
	}
	store.Commit()
	return nil
}

// SeedCoin 铸造一枚指定余额的代币对象（测试安排用）
func (env *Environment) SeedCoin(ctx context.Context, owner types.Address, balance uint64) (types.ObjectID, error) {
	contents := utils.U64ToLE(balance)

	id := env.nextSeedID()
	err := env.SeedObject(ctx, &types.Object{
		ID:       id,
		Type:     types.GasCoinType(),
		Owner:    types.OwnedBy(owner),
		Contents: contents,
	})
	if err != nil {
		return types.ObjectID{}, err
	}
	return id, nil
}

// ReadObject 读取规范仓库中的对象当前状态
func (env *Environment) ReadObject(ctx context.Context, id types.ObjectID) (*types.Object, error) {
	store, release := env.BorrowStore()
	defer release()
	return store.Get(id)
}

// ==================== 纪元 ====================

// Epoch 返回当前纪元号
func (env *Environment) Epoch() uint64 {
	return env.epoch.Load()
}

// AdvanceEpoch 将纪元号递增1并返回新值
func (env *Environment) AdvanceEpoch() uint64 {
	next := env.epoch.Add(1)
	env.logger.Infof("纪元推进: %d", next)
	return next
}

// ==================== 仓库借用 ====================

// BorrowStore 独占借出规范对象仓库
//
// 借用未归还前的再次借用会阻塞；归还函数幂等，重复调用安全。
func (env *Environment) BorrowStore() (*objects.Store, func()) {
	env.storeMu.Lock()
	var once sync.Once
	return env.store, func() { once.Do(env.storeMu.Unlock) }
}

// ==================== 内存上报 ====================

// ModuleName 返回内存上报的模块名
func (env *Environment) ModuleName() string {
	return "core.sandbox"
}

// CollectMemoryStats 汇报仓库与编译缓存的内存占用
//
// 指标采集绕过借用协议，仓库自身的锁保证读取一致，
// 长脚本执行期间采样不会被阻塞。minimal 模式下不报字节数。
func (env *Environment) CollectMemoryStats() metricsif.ModuleMemoryStats {
	stats := env.store.Stats()
	approx := int64(stats.ContentBytes)
	if metricsutil.GetMemoryMonitoringMode() == "minimal" {
		approx = 0
	}
	return metricsif.ModuleMemoryStats{
		Module:      "core.sandbox",
		Layer:       "L4-CoreBusiness",
		Objects:     int64(stats.Live),
		ApproxBytes: approx,
		CacheItems:  int64(env.runtime.CompiledCount()),
		QueueLength: int64(stats.Pending),
	}
}

// ==================== 内部辅助 ====================

// nextDigest 为本地执行派生确定性摘要
//
// 摘要 = blake2b-256("sandvm-exec" ‖ LE64(序号) ‖ 发送者)，
// 序号随环境单调递增，ResetState 时归零。
func (env *Environment) nextDigest(sender types.Address) types.Digest {
	seq := env.execSeq.Add(1)
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], seq)

	h, _ := blake2b.New256(nil)
	h.Write([]byte("sandvm-exec"))
	h.Write(buf[:])
	h.Write(sender[:])

	var d types.Digest
	copy(d[:], h.Sum(nil))
	return d
}

// nextSeedID 为播种对象派生确定性ID
func (env *Environment) nextSeedID() types.ObjectID {
	seq := env.seedSeq.Add(1)
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], seq)

	h, _ := blake2b.New256(nil)
	h.Write([]byte("sandvm-seed"))
	h.Write(buf[:])

	var id types.ObjectID
	copy(id[:], h.Sum(nil))
	return id
}

// publish 发布生命周期事件，总线缺席时静默跳过
func (env *Environment) publish(topic eventif.EventType, args ...interface{}) {
	if env.bus == nil {
		return
	}
	env.bus.Publish(topic, args...)
}
