package runtime

import (
	"crypto/sha256"
	"fmt"
	"time"

	vmconfig "github.com/sandvm/v1/internal/config/vm"
)

// compileMarker 存储层的可验证缓存条目（不承载编译产物本体）
//
// 标记记录字节码哈希与编译参数：参数变更（编译模式、内存上限）
// 会让旧标记失效，避免错误命中与静默降级。
type compileMarker struct {
	Version        int    `json:"version"`
	WasmSHA256     string `json:"wasm_sha256"`
	UseCompiler    bool   `json:"use_compiler"`
	MaxMemoryPages int    `json:"max_memory_pages"`
	CreatedAt      int64  `json:"created_at"`
}

const compileMarkerVersion = 1

func newCompileMarker(opts *vmconfig.VMOptions, bytecode []byte) compileMarker {
	h := sha256.Sum256(bytecode)
	m := compileMarker{
		Version:    compileMarkerVersion,
		WasmSHA256: fmt.Sprintf("%x", h),
		CreatedAt:  time.Now().Unix(),
	}
	if opts != nil {
		m.UseCompiler = opts.UseCompiler
		m.MaxMemoryPages = opts.MaxMemoryPages
	}
	return m
}

func (m compileMarker) validFor(opts *vmconfig.VMOptions, bytecode []byte) bool {
	if m.Version != compileMarkerVersion {
		return false
	}
	h := sha256.Sum256(bytecode)
	if m.WasmSHA256 != fmt.Sprintf("%x", h) {
		return false
	}
	if opts == nil {
		return true
	}
	return m.UseCompiler == opts.UseCompiler && m.MaxMemoryPages == opts.MaxMemoryPages
}
