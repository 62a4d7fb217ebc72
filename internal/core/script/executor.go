// Package script 实现可编程脚本执行器
//
// 🎯 **核心职责**：
// - 按序执行脚本的命令序列，维护 就绪→执行中→完成/中止 状态机
// - 解析命令参数引用（脚本输入、前序命令结果、燃料占位）
//   并校验对象所有权与版本
// - 失败时把对象仓库整体回滚到执行前快照，成功时提交并产出效果
//
// 📋 **原子性契约**：
// 脚本是效果的最小单元。任一命令失败，之前命令造成的对象变更、
// 暂存接收与事件一并丢弃，效果只携带失败详情；完整的执行痕迹
// 保留在结果的轨迹字段里供审计。
//
// ⚠️ **一次性语义**：
// 执行器绑定单个脚本与单个执行上下文，Run 只允许调用一次，
// 重复调用返回 ErrScriptConsumed。执行器不做并发防护之外的
// 跨脚本状态管理，仓库与注册表由沙箱层借出。
package script

import (
	"context"
	"sync"

	"github.com/sandvm/v1/internal/core/objects"
	vmctx "github.com/sandvm/v1/internal/core/vm/context"
	"github.com/sandvm/v1/pkg/interfaces/infrastructure/log"
	"github.com/sandvm/v1/pkg/interfaces/vm"
	"github.com/sandvm/v1/pkg/types"
)

// Options 单次脚本执行的选项
type Options struct {
	// GasBudget 合成燃料占位对象时写入的初始余额
	GasBudget uint64

	// GasRef 预置燃料对象引用（回放路径）
	//
	// 非nil时不合成新对象，直接使用该引用指向的既有对象，
	// 版本非零时按版本钉住。
	GasRef *types.ObjectRef
}

// Executor 绑定单个脚本的一次性执行器
type Executor struct {
	// === 依赖 ===

	logger   log.Logger
	engine   vm.Engine
	registry vm.Registry
	store    *objects.Store
	ec       *vmctx.ExecutionContext

	// === 脚本 ===

	script types.Script
	opts   Options

	// === 状态机 ===

	mu    sync.Mutex
	state types.ScriptState

	// === 执行期状态 ===

	// inputs 已解析输入的缓存。接收型输入的消费只发生一次，
	// 同一输入被多条命令引用时复用首次解析的值。
	inputs  []*types.Value
	results [][]types.Value
	gasID   types.ObjectID
	gasLive bool
}

// New 创建绑定单个脚本的执行器
//
// 仓库须处于无未提交变更的干净状态，沙箱在预置对象后负责提交。
func New(logger log.Logger, engine vm.Engine, registry vm.Registry, store *objects.Store, ec *vmctx.ExecutionContext, script types.Script, opts Options) *Executor {
	return &Executor{
		logger:   logger,
		engine:   engine,
		registry: registry,
		store:    store,
		ec:       ec,
		script:   script,
		opts:     opts,
		state:    types.ScriptReady,
		inputs:   make([]*types.Value, len(script.Inputs)),
	}
}

// Status 返回状态机当前状态
func (e *Executor) Status() types.ScriptState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Run 执行整个脚本
//
// 📋 **返回值约定**：
//   - 脚本级失败（参数非法、合约中止、仓库拒写、模块加载失败）
//     折叠进 ScriptResult，Go错误只表达执行器误用（重复Run）
//   - 成功：State=Completed，Effects 携带已提交的变更与事件，
//     空脚本也是成功，效果为空变更
//   - 失败：State=Aborted，仓库回滚到执行前快照，Effects 只含
//     失败详情，已完成命令的结果值保留在 CommandResults
func (e *Executor) Run(ctx context.Context) (*types.ScriptResult, error) {
	e.mu.Lock()
	if e.state != types.ScriptReady {
		e.mu.Unlock()
		return nil, types.ErrScriptConsumed
	}
	e.state = types.ScriptExecuting
	e.mu.Unlock()

	ctx = vmctx.WithExecutionContext(ctx, e.ec)

	// 快照先于燃料合成：中止回滚连燃料占位对象一起撤销
	snap := e.store.Snapshot()

	if failure := e.prepareGas(); failure != nil {
		return e.finishAborted(snap, failure), nil
	}

	for i, cmd := range e.script.Commands {
		values, failure := e.runCommand(ctx, i, cmd)
		if failure != nil {
			e.logger.Debugf("脚本在命令 %d (%s) 处中止: %s", i, cmd, failure)
			return e.finishAborted(snap, failure), nil
		}
		e.results = append(e.results, values)
	}

	return e.finishCompleted(), nil
}

// ==================== 燃料占位 ====================

// prepareGas 按需物化燃料占位对象
//
// 只有脚本引用了燃料参数才会产生燃料对象。合成路径先创建
// 并单独提交占位对象，脚本效果只记录它末尾的落账变更
// （余额减零、版本推进），与链上燃料对象的表现一致；预置
// 路径沿用既有对象并校验所有权与版本。
func (e *Executor) prepareGas() *types.Failure {
	if !e.referencesGas() {
		return nil
	}

	if ref := e.opts.GasRef; ref != nil {
		obj, err := e.store.Get(ref.ID)
		if err != nil {
			return argFailure(-1, "燃料对象不存在: %s", ref.ID)
		}
		if ref.Version != 0 && obj.Version != ref.Version {
			return argFailure(-1, "燃料对象版本不匹配: 期望 %d 实际 %d", ref.Version, obj.Version)
		}
		if obj.Owner.Kind != types.OwnerAddress || obj.Owner.Address != e.ec.Sender {
			return argFailure(-1, "燃料对象不属于发送者")
		}
		e.gasID = ref.ID
		e.gasLive = true
		return nil
	}

	id := e.ec.NextFreshID()
	obj := &types.Object{
		ID:       id,
		Type:     types.GasCoinType(),
		Owner:    types.OwnedBy(e.ec.Sender),
		Contents: coinContents(e.opts.GasBudget),
	}
	if err := e.store.Create(obj); err != nil {
		return storeFailure(-1, err)
	}

	// 占位对象立即落为既有状态，创建本身不进入脚本效果
	e.store.Commit()
	e.ec.RecordObject(id, types.ObjectAccessCreate)
	e.gasID = id
	e.gasLive = true
	return nil
}

// referencesGas 扫描脚本是否引用燃料参数
func (e *Executor) referencesGas() bool {
	for _, cmd := range e.script.Commands {
		for _, a := range commandArgs(cmd) {
			if a.Kind == types.ArgGas {
				return true
			}
		}
	}
	return false
}

// touchGas 脚本末尾为燃料对象落账一次写入
//
// 写入内容不变，只为在效果中留下燃料对象的变更条目。
// 占位对象若已被脚本删除或冻结则跳过。
func (e *Executor) touchGas() {
	if !e.gasLive || !e.store.Exists(e.gasID) {
		return
	}
	obj, err := e.store.Get(e.gasID)
	if err != nil {
		return
	}
	if err := e.store.Update(e.gasID, obj.Contents); err != nil {
		e.logger.Warnf("燃料对象落账失败: %v", err)
		return
	}
	e.ec.RecordObject(e.gasID, types.ObjectAccessWrite)
}

// ==================== 终态 ====================

// finishCompleted 提交全部变更并产出成功结果
func (e *Executor) finishCompleted() *types.ScriptResult {
	e.touchGas()

	changes := e.store.Commit()
	effects := &types.Effects{
		Status:  types.ExecutionSuccess,
		Changes: changes,
		Events:  append([]types.Event(nil), e.ec.Events...),
	}
	if e.gasLive {
		id := e.gasID
		effects.GasObject = &id
	}

	e.setState(types.ScriptCompleted)
	e.logger.Debugf("脚本执行完成: %d 条命令, %d 项变更, %d 条事件",
		len(e.script.Commands), len(changes), len(effects.Events))

	return &types.ScriptResult{
		State:          types.ScriptCompleted,
		Effects:        effects,
		CommandResults: e.results,
		Trace:          e.traceCopy(),
		Digest:         e.ec.Digest,
	}
}

// finishAborted 回滚仓库并产出失败结果
//
// 事件随对象变更一并丢弃，轨迹保留完整的执行痕迹。
func (e *Executor) finishAborted(snap *objects.Snapshot, failure *types.Failure) *types.ScriptResult {
	e.store.Restore(snap)
	e.setState(types.ScriptAborted)

	return &types.ScriptResult{
		State: types.ScriptAborted,
		Effects: &types.Effects{
			Status:  types.ExecutionFailure,
			Failure: failure,
		},
		CommandResults: e.results,
		Trace:          e.traceCopy(),
		Digest:         e.ec.Digest,
	}
}

func (e *Executor) setState(s types.ScriptState) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
}

// traceCopy 取执行轨迹的独立副本
func (e *Executor) traceCopy() *types.ExecutionTrace {
	return &types.ExecutionTrace{
		Natives: append([]types.NativeTraceEntry(nil), e.ec.Trace.Natives...),
		Objects: append([]types.ObjectTraceEntry(nil), e.ec.Trace.Objects...),
		Modules: append([]types.ModuleID(nil), e.ec.Trace.Modules...),
	}
}

// commandArgs 枚举一条命令引用的全部参数
func commandArgs(cmd types.Command) []types.Argument {
	switch cmd.Kind {
	case types.CommandMoveCall:
		if cmd.MoveCall != nil {
			return cmd.MoveCall.Args
		}
	case types.CommandSplitValue:
		if cmd.Split != nil {
			return append([]types.Argument{cmd.Split.Source}, cmd.Split.Amounts...)
		}
	case types.CommandMergeValues:
		if cmd.Merge != nil {
			return append([]types.Argument{cmd.Merge.Target}, cmd.Merge.Sources...)
		}
	case types.CommandTransferObjects:
		if cmd.Transfer != nil {
			return append(append([]types.Argument(nil), cmd.Transfer.Objects...), cmd.Transfer.Recipient)
		}
	case types.CommandMakeVector:
		if cmd.MakeVec != nil {
			return cmd.MakeVec.Elems
		}
	}
	return nil
}
