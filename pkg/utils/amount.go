package utils

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
)

// 余额在对象内容中的编码约定是8字节小端u64，
// 播种、脚本命令与测试夹具共用此处的编解码函数。

// ParseBalanceSafely 安全解析余额字符串为uint64
//
// 算法说明：
// 1. 使用big.Int进行安全解析和范围验证
// 2. 检查是否超出uint64范围
// 3. 提供详细的错误信息
//
// 适用场景：
// - CLI 传入的播种余额与拆分额度
// - 归档端返回的字符串化余额字段
func ParseBalanceSafely(balanceStr string) (uint64, error) {
	// 基础验证
	balanceStr = strings.TrimSpace(balanceStr)
	if balanceStr == "" {
		return 0, nil
	}

	// 使用big.Int进行安全解析
	bigBalance := new(big.Int)
	bigBalance, ok := bigBalance.SetString(balanceStr, 10)
	if !ok {
		return 0, fmt.Errorf("余额格式无效: %s", balanceStr)
	}

	// 检查负数
	if bigBalance.Sign() < 0 {
		return 0, fmt.Errorf("余额不能为负数: %s", balanceStr)
	}

	// 检查uint64范围（关键！防止溢出）
	if !bigBalance.IsUint64() {
		return 0, fmt.Errorf("余额超出支持范围: %s (最大: %d)", balanceStr, uint64(math.MaxUint64))
	}

	return bigBalance.Uint64(), nil
}

// U64ToLE 将uint64编码为8字节小端（余额与纯参数编码）
func U64ToLE(v uint64) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, v)
	return buf
}

// U64FromLE 按8字节小端读出uint64，长度不符返回false
func U64FromLE(b []byte) (uint64, bool) {
	if len(b) != 8 {
		return 0, false
	}
	return binary.LittleEndian.Uint64(b), true
}

// FormatBalance 格式化余额为带千分位的显示字符串
//
// 用于调试和CLI输出，将原始u64余额转换为可读格式
// 例如：1000000000 → "1,000,000,000"
func FormatBalance(balance uint64) string {
	s := strconv.FormatUint(balance, 10)
	if len(s) <= 3 {
		return s
	}

	var b strings.Builder
	pre := len(s) % 3
	if pre > 0 {
		b.WriteString(s[:pre])
		if len(s) > pre {
			b.WriteByte(',')
		}
	}
	for i := pre; i < len(s); i += 3 {
		b.WriteString(s[i : i+3])
		if i+3 < len(s) {
			b.WriteByte(',')
		}
	}
	return b.String()
}
