package natives

import (
	"context"

	"github.com/tetratelabs/wazero/api"
)

// maxEventDataLen 单个事件负载的字节上限
const maxEventDataLen = 256 << 10

// eventFunctions 事件发出与合约中止
func (n *Natives) eventFunctions() map[string]interface{} {
	return map[string]interface{}{
		// event_emit - 发出合约事件（从WASM内存读取）
		// 签名: (tag_ptr: u32, tag_len: u32, data_ptr: u32, data_len: u32) -> (status: u32)
		// 事件带类型标签与负载字节，随效果一并输出
		"event_emit": func(ctx context.Context, m api.Module, tagPtr, tagLen, dataPtr, dataLen uint32) uint32 {
			ec, ok := n.exec(ctx)
			if !ok {
				return StatusNoContext
			}
			if tagLen == 0 || tagLen > maxFieldTagLen || dataLen > maxEventDataLen {
				ec.RecordNative("event_emit", StatusBadArgument)
				return StatusBadArgument
			}
			tag, st := n.readTypeTag(m, tagPtr, tagLen)
			if st != StatusOK {
				ec.RecordNative("event_emit", st)
				return st
			}
			data, ok := readBytes(m, dataPtr, dataLen)
			if !ok {
				ec.RecordNative("event_emit", StatusMemory)
				return StatusMemory
			}
			ec.EmitEvent(tag, data)
			ec.RecordNative("event_emit", StatusOK)
			return StatusOK
		},

		// abort - 合约主动中止
		// 签名: (code: u64) -> 不返回
		// 中止码先落账再触发陷阱，装置折叠为中止结果而非错误
		"abort": func(ctx context.Context, code uint64) {
			ec, ok := n.exec(ctx)
			if !ok {
				panic("abort native invoked without execution context")
			}
			ec.RecordNative("abort", StatusAborted)
			panic(ec.RecordAbort(code))
		},
	}
}
