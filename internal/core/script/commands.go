package script

import (
	"context"

	"github.com/sandvm/v1/pkg/types"
	"github.com/sandvm/v1/pkg/utils"
)

// 命令实现
//
// 🎯 每条命令产出零个或多个结果值，失败以 *types.Failure 返回，
// 调用方据此中止脚本。对象值的字节是解析时刻的内容快照，
// 余额类命令一律以仓库当前内容为准重新读取，保证合并后再
// 拆分能看到合并后的余额。

// runCommand 执行一条命令
func (e *Executor) runCommand(ctx context.Context, idx int, cmd types.Command) ([]types.Value, *types.Failure) {
	switch cmd.Kind {
	case types.CommandMoveCall:
		if cmd.MoveCall == nil {
			return nil, argFailure(idx, "move_call 命令缺少载荷")
		}
		return e.runMoveCall(ctx, idx, cmd.MoveCall)

	case types.CommandSplitValue:
		if cmd.Split == nil {
			return nil, argFailure(idx, "split_value 命令缺少载荷")
		}
		return e.runSplitValue(idx, cmd.Split)

	case types.CommandMergeValues:
		if cmd.Merge == nil {
			return nil, argFailure(idx, "merge_values 命令缺少载荷")
		}
		return e.runMergeValues(idx, cmd.Merge)

	case types.CommandTransferObjects:
		if cmd.Transfer == nil {
			return nil, argFailure(idx, "transfer_objects 命令缺少载荷")
		}
		return e.runTransferObjects(idx, cmd.Transfer)

	case types.CommandMakeVector:
		if cmd.MakeVec == nil {
			return nil, argFailure(idx, "make_vector 命令缺少载荷")
		}
		return e.runMakeVector(idx, cmd.MakeVec)

	case types.CommandPublish:
		if cmd.Publish == nil {
			return nil, argFailure(idx, "publish 命令缺少载荷")
		}
		return e.runPublish(ctx, idx, cmd.Publish)

	case types.CommandUpgrade:
		if cmd.Upgrade == nil {
			return nil, argFailure(idx, "upgrade 命令缺少载荷")
		}
		return e.runUpgrade(ctx, idx, cmd.Upgrade)

	default:
		return nil, argFailure(idx, "未知命令种类 %q", cmd.Kind)
	}
}

// ==================== 模块调用 ====================

// runMoveCall 调用已注册模块的导出函数
//
// 对象参数铺平为32字节对象ID，合约经对象原生函数按ID存取；
// 引擎返回的Go错误按错误分类折叠，合约中止携带完整中止详情。
func (e *Executor) runMoveCall(ctx context.Context, idx int, mc *types.MoveCallCommand) ([]types.Value, *types.Failure) {
	args := make([][]byte, 0, len(mc.Args))
	for _, a := range mc.Args {
		v, fail := e.resolveValue(idx, a)
		if fail != nil {
			return nil, fail
		}
		args = append(args, callArgBytes(v))
	}

	outcome, err := e.engine.Call(ctx, mc.Module, mc.Function, mc.TypeArgs, args)
	if err != nil {
		return nil, &types.Failure{
			Kind:    types.FailureKindOf(err),
			Command: idx,
			Message: err.Error(),
		}
	}
	if outcome.Abort != nil {
		return nil, &types.Failure{
			Kind:    types.FailureAbort,
			Command: idx,
			Abort:   outcome.Abort,
		}
	}

	values := make([]types.Value, 0, len(outcome.Results))
	for _, r := range outcome.Results {
		values = append(values, types.PureValue(r))
	}
	return values, nil
}

// callArgBytes 把结果值铺平为合约调用参数
func callArgBytes(v types.Value) []byte {
	if v.IsObject() {
		return append([]byte(nil), v.Ref.ID[:]...)
	}
	return v.Bytes
}

// ==================== 余额拆分与合并 ====================

// runSplitValue 从来源余额对象拆分出新对象
//
// 每个数额产生一个归发送者所有的新对象，类型沿用来源对象；
// 数额总和超出余额时以保留中止码中止。
func (e *Executor) runSplitValue(idx int, sc *types.SplitValueCommand) ([]types.Value, *types.Failure) {
	src, fail := e.resolveObject(idx, sc.Source)
	if fail != nil {
		return nil, fail
	}
	obj, err := e.store.Get(src.Ref.ID)
	if err != nil {
		return nil, storeFailure(idx, err)
	}
	balance, ok := coinBalance(obj.Contents)
	if !ok {
		return nil, argFailure(idx, "拆分来源 %s 不是余额对象", obj.ID)
	}

	amounts := make([]uint64, 0, len(sc.Amounts))
	var total uint64
	for _, a := range sc.Amounts {
		v, fail := e.resolveValue(idx, a)
		if fail != nil {
			return nil, fail
		}
		amt, ok := coinBalance(v.Bytes)
		if v.IsObject() || !ok {
			return nil, argFailure(idx, "拆分数额必须是8字节小端u64")
		}
		if total+amt < total {
			return nil, argFailure(idx, "拆分数额总和溢出")
		}
		total += amt
		amounts = append(amounts, amt)
	}

	if total > balance {
		return nil, &types.Failure{
			Kind:    types.FailureAbort,
			Command: idx,
			Abort: &types.AbortInfo{
				Function: "split_value",
				Code:     types.AbortInsufficientBalance,
			},
		}
	}

	values := make([]types.Value, 0, len(amounts))
	for _, amt := range amounts {
		id := e.ec.NextFreshID()
		coin := &types.Object{
			ID:       id,
			Type:     obj.Type,
			Owner:    types.OwnedBy(e.ec.Sender),
			Contents: coinContents(amt),
		}
		if err := e.store.Create(coin); err != nil {
			return nil, storeFailure(idx, err)
		}
		e.ec.RecordObject(id, types.ObjectAccessCreate)
		values = append(values, types.ObjectValue(types.ObjectRef{ID: id, Version: 1}, coin.Contents))
	}

	if err := e.store.Update(obj.ID, coinContents(balance-total)); err != nil {
		return nil, storeFailure(idx, err)
	}
	e.ec.RecordObject(obj.ID, types.ObjectAccessWrite)
	return values, nil
}

// runMergeValues 将来源余额并入目标对象
//
// 来源对象被删除，余额累加进目标。燃料占位不允许作为来源，
// 它在脚本末尾还要落账。
func (e *Executor) runMergeValues(idx int, mc *types.MergeValuesCommand) ([]types.Value, *types.Failure) {
	tgt, fail := e.resolveObject(idx, mc.Target)
	if fail != nil {
		return nil, fail
	}
	tobj, err := e.store.Get(tgt.Ref.ID)
	if err != nil {
		return nil, storeFailure(idx, err)
	}
	total, ok := coinBalance(tobj.Contents)
	if !ok {
		return nil, argFailure(idx, "合并目标 %s 不是余额对象", tobj.ID)
	}

	for _, src := range mc.Sources {
		sv, fail := e.resolveObject(idx, src)
		if fail != nil {
			return nil, fail
		}
		if sv.Ref.ID == tobj.ID {
			return nil, argFailure(idx, "合并来源与目标是同一对象")
		}
		if e.gasLive && sv.Ref.ID == e.gasID {
			return nil, argFailure(idx, "燃料占位不能作为合并来源")
		}
		sobj, err := e.store.Get(sv.Ref.ID)
		if err != nil {
			return nil, storeFailure(idx, err)
		}
		bal, ok := coinBalance(sobj.Contents)
		if !ok {
			return nil, argFailure(idx, "合并来源 %s 不是余额对象", sobj.ID)
		}
		if total+bal < total {
			return nil, argFailure(idx, "合并余额溢出")
		}
		total += bal

		if err := e.store.Delete(sobj.ID); err != nil {
			return nil, storeFailure(idx, err)
		}
		e.ec.RecordObject(sobj.ID, types.ObjectAccessDelete)
	}

	if err := e.store.Update(tobj.ID, coinContents(total)); err != nil {
		return nil, storeFailure(idx, err)
	}
	e.ec.RecordObject(tobj.ID, types.ObjectAccessWrite)
	return nil, nil
}

// ==================== 对象转移 ====================

// runTransferObjects 将一组对象转移给接收者地址
//
// 接收者地址与某个活跃对象ID重合时额外暂存一笔定向转移，
// 供后续脚本以接收型输入消费。
func (e *Executor) runTransferObjects(idx int, tc *types.TransferObjectsCommand) ([]types.Value, *types.Failure) {
	rv, fail := e.resolveValue(idx, tc.Recipient)
	if fail != nil {
		return nil, fail
	}
	if rv.IsObject() || len(rv.Bytes) != types.AddressLength {
		return nil, argFailure(idx, "转移接收者必须是32字节纯地址")
	}
	var recipient types.Address
	copy(recipient[:], rv.Bytes)

	recipientID := types.ObjectID(recipient)
	stageToObject := e.store.Exists(recipientID)

	for _, oa := range tc.Objects {
		ov, fail := e.resolveObject(idx, oa)
		if fail != nil {
			return nil, fail
		}
		if err := e.store.SetOwner(ov.Ref.ID, types.OwnedBy(recipient)); err != nil {
			return nil, storeFailure(idx, err)
		}
		e.ec.RecordObject(ov.Ref.ID, types.ObjectAccessTransfer)

		if stageToObject && ov.Ref.ID != recipientID {
			obj, err := e.store.Get(ov.Ref.ID)
			if err != nil {
				return nil, storeFailure(idx, err)
			}
			if err := e.store.StageReceive(recipientID, obj.ID, obj.Contents); err != nil {
				return nil, storeFailure(idx, err)
			}
		}
	}
	return nil, nil
}

// ==================== 向量拼接 ====================

// runMakeVector 将元素拼接为单个向量值
//
// 纯元素拼接原始字节，对象元素拼接32字节对象ID。元素类型
// 校验只对对象元素生效，纯字节不携带类型信息。
func (e *Executor) runMakeVector(idx int, mv *types.MakeVectorCommand) ([]types.Value, *types.Failure) {
	var out []byte
	for _, a := range mv.Elems {
		v, fail := e.resolveValue(idx, a)
		if fail != nil {
			return nil, fail
		}
		if v.IsObject() {
			if mv.Elem != nil {
				obj, err := e.store.Get(v.Ref.ID)
				if err != nil {
					return nil, storeFailure(idx, err)
				}
				if !obj.Type.Equal(*mv.Elem) {
					return nil, argFailure(idx, "向量元素类型不匹配: 期望 %s 实际 %s", mv.Elem, obj.Type)
				}
			}
			out = append(out, v.Ref.ID[:]...)
			continue
		}
		out = append(out, v.Bytes...)
	}
	return []types.Value{types.PureValue(out)}, nil
}

// ==================== 模块发布与升级 ====================

// runPublish 在脚本内发布一组新模块
func (e *Executor) runPublish(ctx context.Context, idx int, pc *types.PublishCommand) ([]types.Value, *types.Failure) {
	if len(pc.Modules) == 0 {
		return nil, argFailure(idx, "publish 命令不含模块")
	}

	batch := make([]types.ModuleBytes, 0, len(pc.Modules))
	for _, m := range pc.Modules {
		batch = append(batch, types.ModuleBytes{
			ID:       types.NewModuleID(pc.Address, m.Name),
			Bytecode: m.Code,
		})
	}
	if err := e.registry.Load(ctx, batch); err != nil {
		return nil, &types.Failure{
			Kind:    types.FailureModuleLoad,
			Command: idx,
			Message: err.Error(),
		}
	}
	return nil, nil
}

// runUpgrade 在脚本内升级既有模块
func (e *Executor) runUpgrade(ctx context.Context, idx int, uc *types.UpgradeCommand) ([]types.Value, *types.Failure) {
	if err := e.registry.Upgrade(ctx, uc.Module, uc.Code); err != nil {
		return nil, &types.Failure{
			Kind:    types.FailureModuleLoad,
			Command: idx,
			Message: err.Error(),
		}
	}
	return nil, nil
}

// ==================== 余额编解码 ====================

// coinBalance 按8字节小端u64读出余额
func coinBalance(b []byte) (uint64, bool) {
	return utils.U64FromLE(b)
}

// coinContents 余额序列化为8字节小端
func coinContents(v uint64) []byte {
	return utils.U64ToLE(v)
}
