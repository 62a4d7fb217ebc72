// Package utils 提供跨组件共享的缓存键工具函数
//
// 🎯 **缓存键工具函数集合**
//
// 本文件提供回放记录缓存与编译缓存的键生成函数：
// - 回放记录在 badger 后端与文件后端下的键/文件名派生
// - 已编译模块的缓存键生成
// - 键的命名空间判定与摘要反解
//
// 这些函数提供统一的键规范，避免跨组件直接依赖和重复实现。
package utils

import (
	"crypto/sha256"
	"fmt"
	"strings"
)

// ==================== 键前缀常量 ====================

const (
	// RecordCachePrefix 回放记录在badger后端的键前缀
	RecordCachePrefix = "replay/record/"

	// RecordCacheSuffix 回放记录在文件后端的条目后缀（snappy压缩的JSON）
	RecordCacheSuffix = ".json.sz"

	// CompileCachePrefix 已编译模块标记的键前缀
	CompileCachePrefix = "compile:"
)

// ==================== 回放记录键 ====================

// RecordCacheKey 生成回放记录在badger后端的标准化键
//
// 📝 **键标准**：
// 使用 "replay/record/<digest>" 格式，同一前缀下每条记录一个键，
// 共享库上可按前缀批量巡检或清理。
func RecordCacheKey(digest string) string {
	return RecordCachePrefix + digest
}

// RecordCacheFileName 生成回放记录在文件后端的条目文件名
//
// 📝 **文件名标准**：
// 使用 "<digest>.json.sz" 格式，目录即命名空间，后缀标记编码方式
func RecordCacheFileName(digest string) string {
	return digest + RecordCacheSuffix
}

// IsRecordCacheKey 判断badger键是否属于回放记录命名空间
func IsRecordCacheKey(key string) bool {
	return strings.HasPrefix(key, RecordCachePrefix)
}

// RecordCacheDigest 从badger键或文件名反解交易摘要
//
// 🔍 **用途**：
// 缓存巡检与清理时从扫描结果反推记录身份。
// 不属于回放记录命名空间的键返回 ("", false)。
func RecordCacheDigest(key string) (string, bool) {
	if rest, ok := strings.CutPrefix(key, RecordCachePrefix); ok {
		return strings.TrimSuffix(rest, RecordCacheSuffix), true
	}
	if rest, ok := strings.CutSuffix(key, RecordCacheSuffix); ok && rest != "" {
		return rest, true
	}
	return "", false
}

// ==================== 编译缓存键 ====================

// CompileCacheKey 生成已编译模块的标准化缓存键
//
// 📝 **键标准**：
// 使用 "compile:<bytecode_sha256_hex>" 格式
//
// 🔑 按字节码哈希而非模块名寻址：同一字节码部署到不同地址
// 只编译一次，升级后哈希改变自然产生新条目。
func CompileCacheKey(bytecode []byte) string {
	h := sha256.Sum256(bytecode)
	return fmt.Sprintf("%s%x", CompileCachePrefix, h)
}
