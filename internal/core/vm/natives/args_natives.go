package natives

import (
	"context"

	"github.com/tetratelabs/wazero/api"
)

// maxResultLen 单个结果值的字节上限
//
// result_emit 的长度由合约给出，上限防止失控字节码
// 通过巨量结果拖垮宿主内存。
const maxResultLen = 1 << 20

// argFunctions 参数与结果传输原生函数
//
// 装置把命令参数放进执行上下文的参数槽位，合约经
// arg_len/arg_read 读入；反方向合约经 result_emit 发出
// 结果字节，装置在调用结束后从结果槽位取走。
func (n *Natives) argFunctions() map[string]interface{} {
	return map[string]interface{}{
		// arg_len - 查询第i个参数的字节长度
		// 签名: (index: u32) -> (len_or_status: i32)
		// 返回非负长度；下标越界返回负状态码
		"arg_len": func(ctx context.Context, index uint32) int32 {
			ec, ok := n.exec(ctx)
			if !ok {
				return negStatus(StatusNoContext)
			}
			if int(index) >= len(ec.Args) {
				ec.RecordNative("arg_len", StatusBadArgument)
				return negStatus(StatusBadArgument)
			}
			ec.RecordNative("arg_len", StatusOK)
			return int32(len(ec.Args[index]))
		},

		// arg_read - 读取第i个参数（写入WASM内存）
		// 签名: (index: u32, out_ptr: u32) -> (len_or_status: i32)
		// 调用方先经arg_len确定缓冲区大小；返回写入的字节数
		"arg_read": func(ctx context.Context, m api.Module, index, outPtr uint32) int32 {
			ec, ok := n.exec(ctx)
			if !ok {
				return negStatus(StatusNoContext)
			}
			if int(index) >= len(ec.Args) {
				ec.RecordNative("arg_read", StatusBadArgument)
				return negStatus(StatusBadArgument)
			}
			arg := ec.Args[index]
			if !writeBytes(m, outPtr, arg) {
				ec.RecordNative("arg_read", StatusMemory)
				return negStatus(StatusMemory)
			}
			ec.RecordNative("arg_read", StatusOK)
			return int32(len(arg))
		},

		// result_emit - 发出一个结果值（从WASM内存读取）
		// 签名: (ptr: u32, len: u32) -> (status: u32)
		// 结果按发出顺序占据结果槽位，脚本层按槽位下标引用
		"result_emit": func(ctx context.Context, m api.Module, ptr, length uint32) uint32 {
			ec, ok := n.exec(ctx)
			if !ok {
				return StatusNoContext
			}
			if length > maxResultLen {
				ec.RecordNative("result_emit", StatusBadArgument)
				return StatusBadArgument
			}
			data, ok := readBytes(m, ptr, length)
			if !ok {
				ec.RecordNative("result_emit", StatusMemory)
				return StatusMemory
			}
			out := make([]byte, len(data))
			copy(out, data)
			ec.Results = append(ec.Results, out)
			ec.RecordNative("result_emit", StatusOK)
			return StatusOK
		},
	}
}
