// Package types 定义跨层共享的哨兵错误
package types

import "errors"

// 哨兵错误定义
//
// 🎯 **跨层错误契约**
//
// 对象仓库、模块注册表与脚本执行器的调用方依赖 errors.Is
// 区分失败原因，原生函数层还要把仓库错误翻译为宿主状态码，
// 因此哨兵统一定义在共享类型包中，实现包不另造同义错误。

// 对象仓库错误
var (
	// ErrObjectNotFound 对象不存在（从未创建或已删除）
	ErrObjectNotFound = errors.New("object not found")

	// ErrObjectExists 对象ID已被占用（含删除墓碑）
	ErrObjectExists = errors.New("object already exists")

	// ErrWrongType 对象存在但类型与期望不符
	ErrWrongType = errors.New("object type mismatch")

	// ErrImmutable 冻结对象拒绝写入
	ErrImmutable = errors.New("object is immutable")
)

// 动态字段错误
//
// "字段不存在"与"字段存在但类型不符"是两种失败，
// 宿主层映射为不同状态码，调用方不得混用。
var (
	// ErrFieldNotFound 父对象下无此键的动态字段
	ErrFieldNotFound = errors.New("dynamic field not found")

	// ErrFieldWrongType 动态字段存在但类型标签不符
	ErrFieldWrongType = errors.New("dynamic field type mismatch")
)

// 对象接收错误
var (
	// ErrReceiveNotStaged 对象未被暂存，无法接收
	ErrReceiveNotStaged = errors.New("object not staged for receiving")

	// ErrReceiveConsumed 暂存对象此前已被接收
	ErrReceiveConsumed = errors.New("staged object already received")
)

// 模块注册表错误
var (
	// ErrModuleNotFound 模块未注册
	ErrModuleNotFound = errors.New("module not found")

	// ErrModuleConflict 相同ID以不同字节码重复装载
	ErrModuleConflict = errors.New("module already loaded with different bytecode")
)

// 脚本执行器错误
var (
	// ErrScriptConsumed 执行器已执行过一次，拒绝复用
	ErrScriptConsumed = errors.New("script already executed")
)
