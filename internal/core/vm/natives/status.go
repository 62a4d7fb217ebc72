package natives

import (
	"errors"

	"github.com/sandvm/v1/pkg/types"
)

// 原生函数状态码
//
// 状态只返回的函数直接返回uint32状态码（0为成功）；
// 返回长度的函数成功时返回非负长度，失败时返回负的状态码。
// 状态码对字节码可见，是合约分支判断的依据，取值必须稳定。
const (
	// StatusOK 成功
	StatusOK uint32 = 0

	// StatusMemory 线性内存访问越界
	StatusMemory uint32 = 1

	// StatusNoContext 执行上下文缺失（只会出现在装置外的裸调用）
	StatusNoContext uint32 = 2

	// StatusBadArgument 参数不在定义域内（下标越界、类型标签解析失败）
	StatusBadArgument uint32 = 3

	// StatusNotFound 对象不存在或已删除
	StatusNotFound uint32 = 4

	// StatusAlreadyExists 对象或字段已存在
	StatusAlreadyExists uint32 = 5

	// StatusImmutable 目标对象不可变，拒绝写入
	StatusImmutable uint32 = 6

	// StatusFieldNotFound 动态字段不存在
	StatusFieldNotFound uint32 = 7

	// StatusFieldWrongType 动态字段存在但类型不符
	StatusFieldWrongType uint32 = 8

	// StatusBufferTooSmall 调用方提供的输出缓冲区不足
	StatusBufferTooSmall uint32 = 9

	// StatusInternal 仓库层内部错误
	StatusInternal uint32 = 10

	// StatusAborted 轨迹专用：该原生调用以中止收场
	StatusAborted uint32 = 0xFFFFFFFF
)

// storeStatus 将仓库层错误映射为原生状态码
//
// 映射保持错误语义的区分度：字段缺失与字段类型不符
// 是两个状态码，对象缺失与对象已存在同理。
func storeStatus(err error) uint32 {
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, types.ErrFieldWrongType):
		return StatusFieldWrongType
	case errors.Is(err, types.ErrFieldNotFound):
		return StatusFieldNotFound
	case errors.Is(err, types.ErrObjectNotFound):
		return StatusNotFound
	case errors.Is(err, types.ErrObjectExists):
		return StatusAlreadyExists
	case errors.Is(err, types.ErrImmutable):
		return StatusImmutable
	default:
		return StatusInternal
	}
}

// negStatus 长度通道的失败返回值
func negStatus(code uint32) int32 {
	return -int32(code)
}
