// Package objects 错误包装辅助
package objects

import (
	"fmt"

	"github.com/sandvm/v1/pkg/types"
)

// 仓库错误统一以 pkg/types 哨兵为根，包装只补充操作名与
// 对象标识，调用方用 errors.Is 判别种类。

// wrapStore 包装不关联具体对象的仓库错误
func wrapStore(op string, err error) error {
	return fmt.Errorf("store %s: %w", op, err)
}

// wrapObject 包装关联单个对象的仓库错误
func wrapObject(op string, id types.ObjectID, err error) error {
	return fmt.Errorf("store %s %s: %w", op, id, err)
}

// wrapType 包装类型不符错误，带上实际类型与期望类型
func wrapType(op string, id types.ObjectID, got, want types.TypeTag) error {
	return fmt.Errorf("store %s %s: have %s want %s: %w", op, id, got, want, types.ErrWrongType)
}

// wrapField 包装关联动态字段的仓库错误
func wrapField(op string, parent types.ObjectID, key []byte, err error) error {
	return fmt.Errorf("store %s field %x of %s: %w", op, key, parent, err)
}

// wrapReceive 包装关联接收暂存的仓库错误
func wrapReceive(op string, parent, child types.ObjectID, err error) error {
	return fmt.Errorf("store %s %s->%s: %w", op, child, parent, err)
}
