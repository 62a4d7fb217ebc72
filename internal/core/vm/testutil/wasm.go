// Package testutil 提供虚拟机模块测试的辅助工具
//
// 🧪 **WASM 二进制组装器**
//
// 本文件手工组装符合 WASM 1.0 规范的二进制模块，供运行时、
// 引擎与脚本层测试使用。组装器只覆盖合约测试需要的子集：
// 类型、导入、函数、内存、导出、代码与数据段。
package testutil

// ==================== 值类型与操作码 ====================

// ValType WASM值类型编码
type ValType byte

const (
	I32Type ValType = 0x7F
	I64Type ValType = 0x7E
)

// 段ID
const (
	secType   byte = 1
	secImport byte = 2
	secFunc   byte = 3
	secMemory byte = 5
	secExport byte = 7
	secCode   byte = 10
	secData   byte = 11
)

// 导出种类
const (
	kindFunc   byte = 0x00
	kindMemory byte = 0x02
)

// 指令操作码
const (
	opLoop     byte = 0x03
	opEnd      byte = 0x0B
	opBr       byte = 0x0C
	opCall     byte = 0x10
	opDrop     byte = 0x1A
	opLocalGet byte = 0x20
	opLocalSet byte = 0x21
	opI32Const byte = 0x41
	opI64Const byte = 0x42
	opI32Store byte = 0x36
	opI64Store byte = 0x37

	blockEmpty byte = 0x40
)

// ==================== 指令构造 ====================

// I32 i32.const
func I32(v int32) []byte {
	return append([]byte{opI32Const}, sleb128(int64(v))...)
}

// I64 i64.const
func I64(v int64) []byte {
	return append([]byte{opI64Const}, sleb128(v)...)
}

// Call 调用指定索引的函数
func Call(funcIdx uint32) []byte {
	return append([]byte{opCall}, uleb128(uint64(funcIdx))...)
}

// Drop 丢弃栈顶值
var Drop = []byte{opDrop}

// LocalGet 读取局部变量
func LocalGet(idx uint32) []byte {
	return append([]byte{opLocalGet}, uleb128(uint64(idx))...)
}

// LocalSet 写入局部变量
func LocalSet(idx uint32) []byte {
	return append([]byte{opLocalSet}, uleb128(uint64(idx))...)
}

// I32Store i32.store（4字节对齐，偏移0；栈顶为值，次栈顶为地址）
func I32Store() []byte {
	return []byte{opI32Store, 0x02, 0x00}
}

// I64Store i64.store（8字节对齐，偏移0）
func I64Store() []byte {
	return []byte{opI64Store, 0x03, 0x00}
}

// LoopForever 无条件回跳的空循环（超时中断测试用）
func LoopForever() []byte {
	return []byte{opLoop, blockEmpty, opBr, 0x00, opEnd}
}

// Instrs 按序拼接指令片段
func Instrs(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// ==================== 模块组装器 ====================

type funcType struct {
	params  []ValType
	results []ValType
}

func (t funcType) key() string {
	b := make([]byte, 0, len(t.params)+len(t.results)+1)
	for _, p := range t.params {
		b = append(b, byte(p))
	}
	b = append(b, 0)
	for _, r := range t.results {
		b = append(b, byte(r))
	}
	return string(b)
}

type importEntry struct {
	module  string
	field   string
	typeIdx uint32
}

type funcEntry struct {
	export  string
	typeIdx uint32
	locals  []ValType
	body    []byte
}

type dataEntry struct {
	offset uint32
	bytes  []byte
}

// WasmBuilder 组装最小可运行的WASM合约模块
//
// 函数索引空间先导入后定义：导入索引由 ImportEnv 的调用顺序决定，
// 固定不变；函数体内只应调用导入函数。
type WasmBuilder struct {
	types    []funcType
	typeIdx  map[string]uint32
	imports  []importEntry
	funcs    []funcEntry
	memPages uint32
	data     []dataEntry
}

// NewWasmBuilder 创建组装器，默认带1页内存并导出为"memory"
func NewWasmBuilder() *WasmBuilder {
	return &WasmBuilder{
		typeIdx:  make(map[string]uint32),
		memPages: 1,
	}
}

// WithMemoryPages 设置内存最小页数（0表示不声明内存）
func (b *WasmBuilder) WithMemoryPages(pages uint32) *WasmBuilder {
	b.memPages = pages
	return b
}

// ImportEnv 导入env模块的宿主函数，返回其函数索引
func (b *WasmBuilder) ImportEnv(name string, params, results []ValType) uint32 {
	idx := uint32(len(b.imports))
	b.imports = append(b.imports, importEntry{
		module:  "env",
		field:   name,
		typeIdx: b.typeIndex(params, results),
	})
	return idx
}

// ExportEntry 定义并导出一个无参无返回值的入口函数
//
// body 不含结尾的 end 指令，由组装器补齐。
func (b *WasmBuilder) ExportEntry(name string, locals []ValType, body []byte) *WasmBuilder {
	return b.ExportFunc(name, nil, nil, locals, body)
}

// ExportFunc 定义并导出任意签名的函数
func (b *WasmBuilder) ExportFunc(name string, params, results, locals []ValType, body []byte) *WasmBuilder {
	b.funcs = append(b.funcs, funcEntry{
		export:  name,
		typeIdx: b.typeIndex(params, results),
		locals:  locals,
		body:    body,
	})
	return b
}

// Data 声明一个活跃数据段，模块实例化时写入内存
func (b *WasmBuilder) Data(offset uint32, bytes []byte) *WasmBuilder {
	b.data = append(b.data, dataEntry{offset: offset, bytes: bytes})
	return b
}

// Build 编码为WASM二进制
func (b *WasmBuilder) Build() []byte {
	out := []byte{0x00, 0x61, 0x73, 0x6D, 0x01, 0x00, 0x00, 0x00}

	// 类型段
	if len(b.types) > 0 {
		ts := uleb128(uint64(len(b.types)))
		for _, t := range b.types {
			ts = append(ts, 0x60)
			ts = append(ts, uleb128(uint64(len(t.params)))...)
			for _, p := range t.params {
				ts = append(ts, byte(p))
			}
			ts = append(ts, uleb128(uint64(len(t.results)))...)
			for _, r := range t.results {
				ts = append(ts, byte(r))
			}
		}
		out = append(out, section(secType, ts)...)
	}

	// 导入段
	if len(b.imports) > 0 {
		is := uleb128(uint64(len(b.imports)))
		for _, imp := range b.imports {
			is = append(is, encodeName(imp.module)...)
			is = append(is, encodeName(imp.field)...)
			is = append(is, kindFunc)
			is = append(is, uleb128(uint64(imp.typeIdx))...)
		}
		out = append(out, section(secImport, is)...)
	}

	// 函数段
	if len(b.funcs) > 0 {
		fs := uleb128(uint64(len(b.funcs)))
		for _, f := range b.funcs {
			fs = append(fs, uleb128(uint64(f.typeIdx))...)
		}
		out = append(out, section(secFunc, fs)...)
	}

	// 内存段（限制形如 flag=0x00 仅最小页数）
	if b.memPages > 0 {
		ms := []byte{0x01, 0x00}
		ms = append(ms, uleb128(uint64(b.memPages))...)
		out = append(out, section(secMemory, ms)...)
	}

	// 导出段
	var exports []byte
	exportCount := 0
	if b.memPages > 0 {
		exports = append(exports, encodeName("memory")...)
		exports = append(exports, kindMemory, 0x00)
		exportCount++
	}
	for i, f := range b.funcs {
		if f.export == "" {
			continue
		}
		exports = append(exports, encodeName(f.export)...)
		exports = append(exports, kindFunc)
		exports = append(exports, uleb128(uint64(len(b.imports)+i))...)
		exportCount++
	}
	if exportCount > 0 {
		es := uleb128(uint64(exportCount))
		es = append(es, exports...)
		out = append(out, section(secExport, es)...)
	}

	// 代码段
	if len(b.funcs) > 0 {
		cs := uleb128(uint64(len(b.funcs)))
		for _, f := range b.funcs {
			body := encodeLocals(f.locals)
			body = append(body, f.body...)
			body = append(body, opEnd)
			cs = append(cs, uleb128(uint64(len(body)))...)
			cs = append(cs, body...)
		}
		out = append(out, section(secCode, cs)...)
	}

	// 数据段（活跃段，内存索引0，偏移为常量表达式）
	if len(b.data) > 0 {
		ds := uleb128(uint64(len(b.data)))
		for _, d := range b.data {
			ds = append(ds, 0x00)
			ds = append(ds, opI32Const)
			ds = append(ds, sleb128(int64(int32(d.offset)))...)
			ds = append(ds, opEnd)
			ds = append(ds, uleb128(uint64(len(d.bytes)))...)
			ds = append(ds, d.bytes...)
		}
		out = append(out, section(secData, ds)...)
	}

	return out
}

// typeIndex 去重登记函数类型
func (b *WasmBuilder) typeIndex(params, results []ValType) uint32 {
	t := funcType{params: params, results: results}
	if idx, ok := b.typeIdx[t.key()]; ok {
		return idx
	}
	idx := uint32(len(b.types))
	b.types = append(b.types, t)
	b.typeIdx[t.key()] = idx
	return idx
}

// ==================== 编码原语 ====================

// section 编码一个段：ID + 长度 + 内容
func section(id byte, contents []byte) []byte {
	out := []byte{id}
	out = append(out, uleb128(uint64(len(contents)))...)
	return append(out, contents...)
}

// encodeName 编码名称：长度前缀 + UTF-8字节
func encodeName(s string) []byte {
	out := uleb128(uint64(len(s)))
	return append(out, s...)
}

// encodeLocals 编码局部变量声明，连续同类型压缩为一组
func encodeLocals(locals []ValType) []byte {
	type run struct {
		count uint32
		typ   ValType
	}
	var runs []run
	for _, l := range locals {
		if len(runs) > 0 && runs[len(runs)-1].typ == l {
			runs[len(runs)-1].count++
			continue
		}
		runs = append(runs, run{count: 1, typ: l})
	}

	out := uleb128(uint64(len(runs)))
	for _, r := range runs {
		out = append(out, uleb128(uint64(r.count))...)
		out = append(out, byte(r.typ))
	}
	return out
}

// uleb128 无符号LEB128编码
func uleb128(v uint64) []byte {
	var out []byte
	for {
		b := byte(v & 0x7F)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		out = append(out, b)
		if v == 0 {
			return out
		}
	}
}

// sleb128 有符号LEB128编码
func sleb128(v int64) []byte {
	var out []byte
	for {
		b := byte(v & 0x7F)
		v >>= 7
		sign := b&0x40 != 0
		if (v == 0 && !sign) || (v == -1 && sign) {
			return append(out, b)
		}
		out = append(out, b|0x80)
	}
}
