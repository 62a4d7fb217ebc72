package natives

import (
	"context"

	"github.com/tetratelabs/wazero/api"

	"github.com/sandvm/v1/pkg/types"
)

// 动态字段参数上限
const (
	maxFieldKeyLen   = 4 << 10
	maxFieldTagLen   = 4 << 10
	maxFieldValueLen = 1 << 20
)

// fieldFunctions 动态字段原生函数
//
// 字段值类型以规范类型标签字符串传递（如 "0x2::coin::Coin"、
// "vector<u8>"），borrow/remove 可带期望类型：字段缺失与
// 类型不符是两个可区分的状态码，合约按需分支。
func (n *Natives) fieldFunctions() map[string]interface{} {
	return map[string]interface{}{
		// field_add - 为父对象挂载动态字段
		// 签名: (parent_ptr, key_ptr, key_len, tag_ptr, tag_len, val_ptr, val_len) -> (status: u32)
		// 子对象ID确定性派生，同键重复挂载返回已存在
		"field_add": func(ctx context.Context, m api.Module, parentPtr, keyPtr, keyLen, tagPtr, tagLen, valPtr, valLen uint32) uint32 {
			ec, ok := n.exec(ctx)
			if !ok {
				return StatusNoContext
			}
			if keyLen == 0 || keyLen > maxFieldKeyLen || tagLen == 0 || tagLen > maxFieldTagLen || valLen > maxFieldValueLen {
				ec.RecordNative("field_add", StatusBadArgument)
				return StatusBadArgument
			}
			parent, ok := readObjectID(m, parentPtr)
			if !ok {
				ec.RecordNative("field_add", StatusMemory)
				return StatusMemory
			}
			key, ok := readBytes(m, keyPtr, keyLen)
			if !ok {
				ec.RecordNative("field_add", StatusMemory)
				return StatusMemory
			}
			tag, st := n.readTypeTag(m, tagPtr, tagLen)
			if st != StatusOK {
				ec.RecordNative("field_add", st)
				return st
			}
			value, ok := readBytes(m, valPtr, valLen)
			if !ok {
				ec.RecordNative("field_add", StatusMemory)
				return StatusMemory
			}
			if err := ec.Store.AddField(parent, key, tag, value); err != nil {
				st := storeStatus(err)
				ec.RecordNative("field_add", st)
				return st
			}
			ec.RecordObject(parent, types.ObjectAccessWrite)
			ec.RecordNative("field_add", StatusOK)
			return StatusOK
		},

		// field_contains - 查询字段是否存在
		// 签名: (parent_ptr, key_ptr, key_len) -> (exists: u32)
		"field_contains": func(ctx context.Context, m api.Module, parentPtr, keyPtr, keyLen uint32) uint32 {
			ec, ok := n.exec(ctx)
			if !ok {
				return 0
			}
			if keyLen == 0 || keyLen > maxFieldKeyLen {
				ec.RecordNative("field_contains", StatusBadArgument)
				return 0
			}
			parent, ok := readObjectID(m, parentPtr)
			if !ok {
				ec.RecordNative("field_contains", StatusMemory)
				return 0
			}
			key, ok := readBytes(m, keyPtr, keyLen)
			if !ok {
				ec.RecordNative("field_contains", StatusMemory)
				return 0
			}
			ec.RecordObject(parent, types.ObjectAccessRead)
			ec.RecordNative("field_contains", StatusOK)
			if ec.Store.HasField(parent, key) {
				return 1
			}
			return 0
		},

		// field_borrow - 只读借用字段值（写入WASM内存）
		// 签名: (parent_ptr, key_ptr, key_len, tag_ptr, tag_len, out_ptr, out_cap) -> (len_or_status: i32)
		// tag_len为0时跳过类型期望检查
		"field_borrow": n.fieldReadFunc("field_borrow", false),

		// field_borrow_mut - 可变借用字段值（写入WASM内存）
		// 同field_borrow，另将父子对象计入待提交修改集
		"field_borrow_mut": n.fieldReadFunc("field_borrow_mut", true),

		// field_remove - 摘除字段并取回值（写入WASM内存）
		// 签名: (parent_ptr, key_ptr, key_len, tag_ptr, tag_len, out_ptr, out_cap) -> (len_or_status: i32)
		// 摘除不留墓碑：同键可再次挂载
		"field_remove": func(ctx context.Context, m api.Module, parentPtr, keyPtr, keyLen, tagPtr, tagLen, outPtr, outCap uint32) int32 {
			ec, ok := n.exec(ctx)
			if !ok {
				return negStatus(StatusNoContext)
			}
			parent, key, expect, st := n.fieldQueryArgs(m, parentPtr, keyPtr, keyLen, tagPtr, tagLen)
			if st != StatusOK {
				ec.RecordNative("field_remove", st)
				return negStatus(st)
			}
			// 摘除不可回退，先只读探测做容量校验
			peek, err := ec.Store.GetField(parent, key, expect)
			if err != nil {
				st := storeStatus(err)
				ec.RecordNative("field_remove", st)
				return negStatus(st)
			}
			if uint32(len(peek)) > outCap {
				ec.RecordNative("field_remove", StatusBufferTooSmall)
				return negStatus(StatusBufferTooSmall)
			}
			value, err := ec.Store.RemoveField(parent, key, expect)
			if err != nil {
				st := storeStatus(err)
				ec.RecordNative("field_remove", st)
				return negStatus(st)
			}
			if !writeBytes(m, outPtr, value) {
				ec.RecordNative("field_remove", StatusMemory)
				return negStatus(StatusMemory)
			}
			ec.RecordObject(parent, types.ObjectAccessWrite)
			ec.RecordNative("field_remove", StatusOK)
			return int32(len(value))
		},
	}
}

// fieldReadFunc 构造字段借用闭包（只读或可变）
func (n *Natives) fieldReadFunc(name string, mutable bool) interface{} {
	return func(ctx context.Context, m api.Module, parentPtr, keyPtr, keyLen, tagPtr, tagLen, outPtr, outCap uint32) int32 {
		ec, ok := n.exec(ctx)
		if !ok {
			return negStatus(StatusNoContext)
		}
		parent, key, expect, st := n.fieldQueryArgs(m, parentPtr, keyPtr, keyLen, tagPtr, tagLen)
		if st != StatusOK {
			ec.RecordNative(name, st)
			return negStatus(st)
		}

		var value []byte
		var err error
		if mutable {
			value, err = ec.Store.GetFieldMut(parent, key, expect)
		} else {
			value, err = ec.Store.GetField(parent, key, expect)
		}
		if err != nil {
			st := storeStatus(err)
			ec.RecordNative(name, st)
			return negStatus(st)
		}
		if uint32(len(value)) > outCap {
			ec.RecordNative(name, StatusBufferTooSmall)
			return negStatus(StatusBufferTooSmall)
		}
		if !writeBytes(m, outPtr, value) {
			ec.RecordNative(name, StatusMemory)
			return negStatus(StatusMemory)
		}
		access := types.ObjectAccessRead
		if mutable {
			access = types.ObjectAccessWrite
		}
		ec.RecordObject(parent, access)
		ec.RecordNative(name, StatusOK)
		return int32(len(value))
	}
}

// fieldQueryArgs 读取borrow/remove家族的公共参数
func (n *Natives) fieldQueryArgs(m api.Module, parentPtr, keyPtr, keyLen, tagPtr, tagLen uint32) (types.ObjectID, []byte, types.TypeTag, uint32) {
	var zero types.TypeTag
	if keyLen == 0 || keyLen > maxFieldKeyLen || tagLen > maxFieldTagLen {
		return types.ObjectID{}, nil, zero, StatusBadArgument
	}
	parent, ok := readObjectID(m, parentPtr)
	if !ok {
		return types.ObjectID{}, nil, zero, StatusMemory
	}
	key, ok := readBytes(m, keyPtr, keyLen)
	if !ok {
		return types.ObjectID{}, nil, zero, StatusMemory
	}
	if tagLen == 0 {
		return parent, key, zero, StatusOK
	}
	tag, st := n.readTypeTag(m, tagPtr, tagLen)
	if st != StatusOK {
		return types.ObjectID{}, nil, zero, st
	}
	return parent, key, tag, StatusOK
}

// readTypeTag 从线性内存读取并解析类型标签字符串
func (n *Natives) readTypeTag(m api.Module, tagPtr, tagLen uint32) (types.TypeTag, uint32) {
	var zero types.TypeTag
	raw, ok := readBytes(m, tagPtr, tagLen)
	if !ok {
		return zero, StatusMemory
	}
	tag, err := types.ParseTypeTag(string(raw))
	if err != nil {
		if n.logger != nil {
			n.logger.Debugf("类型标签解析失败: %v", err)
		}
		return zero, StatusBadArgument
	}
	return tag, StatusOK
}
