package script

import (
	"fmt"

	"github.com/sandvm/v1/pkg/types"
)

// 参数解析
//
// 📋 命令参数是对脚本输入、前序命令结果或燃料占位的引用。
// 解析失败一律折叠为干净的参数失败，绝不panic：越界下标、
// 元数不足、所有权不符与版本不匹配都属于这一类。接收型输入
// 的恰好一次消费在首次解析时完成，解析结果按输入下标缓存。

// resolveValue 解析一个参数引用为结果值
func (e *Executor) resolveValue(cmdIdx int, arg types.Argument) (types.Value, *types.Failure) {
	switch arg.Kind {
	case types.ArgInput:
		if int(arg.Index) >= len(e.script.Inputs) {
			return types.Value{}, argFailure(cmdIdx, "输入下标越界: %d / %d", arg.Index, len(e.script.Inputs))
		}
		return e.resolveInput(cmdIdx, int(arg.Index))

	case types.ArgResult:
		if int(arg.Index) >= len(e.results) {
			return types.Value{}, argFailure(cmdIdx, "结果下标越界: %d / %d", arg.Index, len(e.results))
		}
		if len(e.results[arg.Index]) == 0 {
			return types.Value{}, argFailure(cmdIdx, "命令 %d 没有结果值", arg.Index)
		}
		return e.results[arg.Index][0], nil

	case types.ArgNestedResult:
		if int(arg.Index) >= len(e.results) {
			return types.Value{}, argFailure(cmdIdx, "结果下标越界: %d / %d", arg.Index, len(e.results))
		}
		if int(arg.Sub) >= len(e.results[arg.Index]) {
			return types.Value{}, argFailure(cmdIdx, "命令 %d 只有 %d 个结果值，请求第 %d 个",
				arg.Index, len(e.results[arg.Index]), arg.Sub)
		}
		return e.results[arg.Index][arg.Sub], nil

	case types.ArgGas:
		if !e.gasLive {
			return types.Value{}, argFailure(cmdIdx, "燃料占位未物化")
		}
		obj, err := e.store.Get(e.gasID)
		if err != nil {
			return types.Value{}, storeFailure(cmdIdx, err)
		}
		return types.ObjectValue(obj.Ref(), obj.Contents), nil

	default:
		return types.Value{}, argFailure(cmdIdx, "未知参数种类 %q", arg.Kind)
	}
}

// resolveObject 解析参数并要求其背靠对象
func (e *Executor) resolveObject(cmdIdx int, arg types.Argument) (types.Value, *types.Failure) {
	v, fail := e.resolveValue(cmdIdx, arg)
	if fail != nil {
		return types.Value{}, fail
	}
	if !v.IsObject() {
		return types.Value{}, argFailure(cmdIdx, "参数 %s 不是对象", arg)
	}
	return v, nil
}

// resolveInput 解析脚本输入，结果按下标缓存
func (e *Executor) resolveInput(cmdIdx, idx int) (types.Value, *types.Failure) {
	if v := e.inputs[idx]; v != nil {
		return *v, nil
	}

	in := e.script.Inputs[idx]
	var val types.Value
	switch in.Kind {
	case types.InputPure:
		val = types.PureValue(in.Pure)

	case types.InputObject:
		v, fail := e.resolveOwnedInput(cmdIdx, idx, in)
		if fail != nil {
			return types.Value{}, fail
		}
		val = v

	case types.InputSharedObject:
		v, fail := e.resolveSharedInput(cmdIdx, idx, in)
		if fail != nil {
			return types.Value{}, fail
		}
		val = v

	case types.InputReceiving:
		v, fail := e.resolveReceivingInput(cmdIdx, idx, in)
		if fail != nil {
			return types.Value{}, fail
		}
		val = v

	default:
		return types.Value{}, argFailure(cmdIdx, "输入 %d 种类未知: %q", idx, in.Kind)
	}

	e.inputs[idx] = &val
	return val, nil
}

// resolveOwnedInput 解析地址所有对象输入
//
// 对象必须存在且属于发送者；引用携带非零版本时按版本钉住。
func (e *Executor) resolveOwnedInput(cmdIdx, idx int, in types.Input) (types.Value, *types.Failure) {
	if in.Object == nil {
		return types.Value{}, argFailure(cmdIdx, "输入 %d 缺少对象引用", idx)
	}
	obj, err := e.store.Get(in.Object.ID)
	if err != nil {
		return types.Value{}, argFailure(cmdIdx, "输入 %d 对象不存在: %s", idx, in.Object.ID)
	}
	if in.Object.Version != 0 && obj.Version != in.Object.Version {
		return types.Value{}, argFailure(cmdIdx, "输入 %d 版本不匹配: 期望 %d 实际 %d",
			idx, in.Object.Version, obj.Version)
	}
	if obj.Owner.Kind != types.OwnerAddress || obj.Owner.Address != e.ec.Sender {
		return types.Value{}, argFailure(cmdIdx, "输入 %d 对象不属于发送者", idx)
	}

	e.ec.RecordObject(obj.ID, types.ObjectAccessRead)
	return types.ObjectValue(obj.Ref(), obj.Contents), nil
}

// resolveSharedInput 解析共享对象输入
//
// Mutable 标志只表达引用意图，沙箱内不做并发仲裁。
func (e *Executor) resolveSharedInput(cmdIdx, idx int, in types.Input) (types.Value, *types.Failure) {
	if in.Object == nil {
		return types.Value{}, argFailure(cmdIdx, "输入 %d 缺少对象引用", idx)
	}
	obj, err := e.store.Get(in.Object.ID)
	if err != nil {
		return types.Value{}, argFailure(cmdIdx, "输入 %d 对象不存在: %s", idx, in.Object.ID)
	}
	if obj.Owner.Kind != types.OwnerShared {
		return types.Value{}, argFailure(cmdIdx, "输入 %d 对象不是共享对象", idx)
	}

	e.ec.RecordObject(obj.ID, types.ObjectAccessRead)
	return types.ObjectValue(obj.Ref(), obj.Contents), nil
}

// resolveReceivingInput 解析待接收对象输入
//
// 对象须在某个地址名下且该地址对应一个活跃对象（接收方），
// 消费 (接收方, 对象) 的暂存记录后把对象转给发送者。
// 恰好一次：未暂存或已消费都折叠为仓库失败。
func (e *Executor) resolveReceivingInput(cmdIdx, idx int, in types.Input) (types.Value, *types.Failure) {
	if in.Object == nil {
		return types.Value{}, argFailure(cmdIdx, "输入 %d 缺少对象引用", idx)
	}
	obj, err := e.store.Get(in.Object.ID)
	if err != nil {
		return types.Value{}, argFailure(cmdIdx, "输入 %d 对象不存在: %s", idx, in.Object.ID)
	}
	if in.Object.Version != 0 && obj.Version != in.Object.Version {
		return types.Value{}, argFailure(cmdIdx, "输入 %d 版本不匹配: 期望 %d 实际 %d",
			idx, in.Object.Version, obj.Version)
	}
	if obj.Owner.Kind != types.OwnerAddress {
		return types.Value{}, argFailure(cmdIdx, "输入 %d 对象不在地址名下，无法接收", idx)
	}

	parent := types.ObjectID(obj.Owner.Address)
	if !e.store.Exists(parent) {
		return types.Value{}, argFailure(cmdIdx, "输入 %d 接收方对象不存在: %s", idx, parent)
	}

	taken, err := e.store.TakeReceive(parent, obj.ID)
	if err != nil {
		return types.Value{}, storeFailure(cmdIdx, err)
	}
	if err := e.store.SetOwner(obj.ID, types.OwnedBy(e.ec.Sender)); err != nil {
		return types.Value{}, storeFailure(cmdIdx, err)
	}

	e.ec.RecordObject(obj.ID, types.ObjectAccessTransfer)
	return types.ObjectValue(obj.Ref(), taken), nil
}

// ==================== 失败构造 ====================

// argFailure 构造参数解析失败
func argFailure(cmd int, format string, args ...interface{}) *types.Failure {
	return &types.Failure{
		Kind:    types.FailureArgument,
		Command: cmd,
		Message: fmt.Sprintf(format, args...),
	}
}

// storeFailure 构造对象仓库失败
func storeFailure(cmd int, err error) *types.Failure {
	return &types.Failure{
		Kind:    types.FailureStore,
		Command: cmd,
		Message: err.Error(),
	}
}
