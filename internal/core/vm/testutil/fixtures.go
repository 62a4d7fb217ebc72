// Package testutil 提供虚拟机模块测试的辅助工具
//
// 🧪 **合约字节码 Fixtures**
//
// 本文件提供各类测试合约的字节码构建函数。每个合约导出若干
// 无参无返回值的入口函数，参数与返回值全部经由env宿主函数传递。
package testutil

import (
	"encoding/binary"

	"github.com/sandvm/v1/pkg/types"
)

// ==================== 基础合约 ====================

// NoopContract 空入口合约：入口不做任何事
func NoopContract(entry string) []byte {
	return NewWasmBuilder().
		ExportEntry(entry, nil, nil).
		Build()
}

// AbortContract 中止合约：入口无条件以指定错误码中止
func AbortContract(entry string, code uint64) []byte {
	b := NewWasmBuilder()
	abort := b.ImportEnv("abort", []ValType{I64Type}, nil)
	return b.ExportEntry(entry, nil, Instrs(
		I64(int64(code)),
		Call(abort),
	)).Build()
}

// LoopContract 死循环合约：超时中断测试用
func LoopContract(entry string) []byte {
	return NewWasmBuilder().
		ExportEntry(entry, nil, LoopForever()).
		Build()
}

// BadSignatureContract 带WASM参数的伪入口：不符合入口ABI
func BadSignatureContract(entry string) []byte {
	return NewWasmBuilder().
		ExportFunc(entry, []ValType{I32Type}, nil, nil, nil).
		Build()
}

// InvalidBytecode 非法字节码：魔数正确但版本号无法识别
func InvalidBytecode() []byte {
	return []byte{0x00, 0x61, 0x73, 0x6D, 0xFF, 0xFF, 0xFF, 0xFF}
}

// ==================== 参数与返回值 ====================

// EchoContract 回声合约：读取0号参数并原样作为返回值发射
//
// 内存布局：[32, ...) 参数内容
func EchoContract(entry string) []byte {
	b := NewWasmBuilder()
	argRead := b.ImportEnv("arg_read", []ValType{I32Type, I32Type}, []ValType{I32Type})
	emit := b.ImportEnv("result_emit", []ValType{I32Type, I32Type}, []ValType{I32Type})
	return b.ExportEntry(entry, []ValType{I32Type}, Instrs(
		I32(0), I32(32), Call(argRead), LocalSet(0),
		I32(32), LocalGet(0), Call(emit), Drop,
	)).Build()
}

// ==================== 对象操作 ====================

// ObjectContract 建对象合约：入口创建一个归发送者所有的新对象
//
// 内存布局：[0, 32) 新对象ID
func ObjectContract(entry string) []byte {
	b := NewWasmBuilder()
	objNew := b.ImportEnv("object_new", []ValType{I32Type}, []ValType{I32Type})
	return b.ExportEntry(entry, nil, Instrs(
		I32(0), Call(objNew), Drop,
	)).Build()
}

// TransferContract 建对象并转移给发送者自己
//
// 内存布局：[0, 32) 新对象ID，[32, 64) 发送者地址
func TransferContract(entry string) []byte {
	b := NewWasmBuilder()
	objNew := b.ImportEnv("object_new", []ValType{I32Type}, []ValType{I32Type})
	sender := b.ImportEnv("ctx_sender", []ValType{I32Type}, []ValType{I32Type})
	transfer := b.ImportEnv("object_transfer", []ValType{I32Type, I32Type}, []ValType{I32Type})
	return b.ExportEntry(entry, nil, Instrs(
		I32(0), Call(objNew), Drop,
		I32(32), Call(sender), Drop,
		I32(0), I32(32), Call(transfer), Drop,
	)).Build()
}

// ==================== 动态字段 ====================

// FieldContract 字段合约：以0号参数为父对象ID，挂一个u64字段再借出
//
// 字段键 "balance"，类型 u64，值 42（8字节小端）。
// 借出的字节作为返回值发射。
//
// 内存布局：[0,32) 父对象ID；[1024) 键；[1056) 类型串；
// [1088) 字段值；[2048) 借出缓冲
func FieldContract(entry string) []byte {
	key := []byte("balance")
	tag := []byte("u64")

	val := make([]byte, 8)
	binary.LittleEndian.PutUint64(val, 42)

	b := NewWasmBuilder()
	argRead := b.ImportEnv("arg_read", []ValType{I32Type, I32Type}, []ValType{I32Type})
	fieldAdd := b.ImportEnv("field_add",
		[]ValType{I32Type, I32Type, I32Type, I32Type, I32Type, I32Type, I32Type},
		[]ValType{I32Type})
	fieldBorrow := b.ImportEnv("field_borrow",
		[]ValType{I32Type, I32Type, I32Type, I32Type, I32Type, I32Type, I32Type},
		[]ValType{I32Type})
	emit := b.ImportEnv("result_emit", []ValType{I32Type, I32Type}, []ValType{I32Type})

	return b.
		Data(1024, key).
		Data(1056, tag).
		Data(1088, val).
		ExportEntry(entry, []ValType{I32Type}, Instrs(
			I32(0), I32(0), Call(argRead), Drop,
			I32(0), I32(1024), I32(int32(len(key))), I32(1056), I32(int32(len(tag))),
			I32(1088), I32(int32(len(val))), Call(fieldAdd), Drop,
			I32(0), I32(1024), I32(int32(len(key))), I32(1056), I32(int32(len(tag))),
			I32(2048), I32(64), Call(fieldBorrow), LocalSet(0),
			I32(2048), LocalGet(0), Call(emit), Drop,
		)).Build()
}

// ==================== 事件 ====================

// EventContract 事件合约：发射一条带类型标签的事件
//
// 内存布局：[0) 类型串，[256) 事件负载
func EventContract(entry, tag string, payload []byte) []byte {
	b := NewWasmBuilder()
	emit := b.ImportEnv("event_emit",
		[]ValType{I32Type, I32Type, I32Type, I32Type},
		[]ValType{I32Type})
	return b.
		Data(0, []byte(tag)).
		Data(256, payload).
		ExportEntry(entry, nil, Instrs(
			I32(0), I32(int32(len(tag))), I32(256), I32(int32(len(payload))), Call(emit), Drop,
		)).Build()
}

// ==================== 密码学 ====================

// CryptoContract 验签合约：调用指定验签宿主函数并发射结果
//
// 签名/公钥/消息全为内存零区（permissive 模式下形状合法即判真）。
// 结果为4字节小端：1表示验证通过。
//
// 内存布局：[0) 签名，[100) 公钥，[200, 232) 消息，[300) 结果
func CryptoContract(entry, verifyFn string) []byte {
	b := NewWasmBuilder()
	verify := b.ImportEnv(verifyFn,
		[]ValType{I32Type, I32Type, I32Type, I32Type},
		[]ValType{I32Type})
	emit := b.ImportEnv("result_emit", []ValType{I32Type, I32Type}, []ValType{I32Type})
	return b.ExportEntry(entry, nil, Instrs(
		I32(300),
		I32(0), I32(200), I32(32), I32(100), Call(verify),
		I32Store(),
		I32(300), I32(4), Call(emit), Drop,
	)).Build()
}

// HashContract 哈希合约：对固定输入求哈希并发射32字节摘要
//
// 内存布局：[0) 输入，[512) 摘要
func HashContract(entry, hashFn string, input []byte) []byte {
	b := NewWasmBuilder()
	hash := b.ImportEnv(hashFn,
		[]ValType{I32Type, I32Type, I32Type},
		[]ValType{I32Type})
	emit := b.ImportEnv("result_emit", []ValType{I32Type, I32Type}, []ValType{I32Type})
	return b.
		Data(0, input).
		ExportEntry(entry, nil, Instrs(
			I32(0), I32(int32(len(input))), I32(512), Call(hash), Drop,
			I32(512), I32(32), Call(emit), Drop,
		)).Build()
}

// ==================== 确定性来源 ====================

// ClockContract 时钟合约：连续取两次时间戳并发射（各8字节小端）
func ClockContract(entry string) []byte {
	b := NewWasmBuilder()
	clock := b.ImportEnv("clock_now_ms", nil, []ValType{I64Type})
	emit := b.ImportEnv("result_emit", []ValType{I32Type, I32Type}, []ValType{I32Type})
	return b.ExportEntry(entry, nil, Instrs(
		I32(0), Call(clock), I64Store(),
		I32(8), Call(clock), I64Store(),
		I32(0), I32(16), Call(emit), Drop,
	)).Build()
}

// RandomContract 随机数合约：取16字节确定性随机数并发射
func RandomContract(entry string) []byte {
	b := NewWasmBuilder()
	random := b.ImportEnv("random_bytes", []ValType{I32Type, I32Type}, []ValType{I32Type})
	emit := b.ImportEnv("result_emit", []ValType{I32Type, I32Type}, []ValType{I32Type})
	return b.ExportEntry(entry, nil, Instrs(
		I32(0), I32(16), Call(random), Drop,
		I32(0), I32(16), Call(emit), Drop,
	)).Build()
}

// FreshIDContract 新鲜ID合约：取一个派生ID并发射（32字节）
func FreshIDContract(entry string) []byte {
	b := NewWasmBuilder()
	fresh := b.ImportEnv("ctx_fresh_id", []ValType{I32Type}, []ValType{I32Type})
	emit := b.ImportEnv("result_emit", []ValType{I32Type, I32Type}, []ValType{I32Type})
	return b.ExportEntry(entry, nil, Instrs(
		I32(0), Call(fresh), Drop,
		I32(0), I32(32), Call(emit), Drop,
	)).Build()
}

// EpochContract 纪元合约：发射当前纪元号（8字节小端）
func EpochContract(entry string) []byte {
	b := NewWasmBuilder()
	epoch := b.ImportEnv("ctx_epoch", nil, []ValType{I64Type})
	emit := b.ImportEnv("result_emit", []ValType{I32Type, I32Type}, []ValType{I32Type})
	return b.ExportEntry(entry, nil, Instrs(
		I32(0), Call(epoch), I64Store(),
		I32(0), I32(8), Call(emit), Drop,
	)).Build()
}

// ==================== 标识符 Fixtures ====================

// TestAddress 生成确定性测试地址：首字节为标记值
func TestAddress(marker byte) types.Address {
	var addr types.Address
	addr[0] = marker
	return addr
}

// TestDigest 生成确定性测试交易摘要
func TestDigest(marker byte) types.Digest {
	var d types.Digest
	for i := range d {
		d[i] = marker
	}
	return d
}

// TestModuleID 生成测试模块ID
func TestModuleID(marker byte, name string) types.ModuleID {
	return types.NewModuleID(TestAddress(marker), name)
}
