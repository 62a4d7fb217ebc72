package types

import "fmt"

// ==================== 所有权 ====================

// OwnerKind 对象所有权种类
type OwnerKind string

const (
	// OwnerAddress 地址所有：单一账户独占，可变
	OwnerAddress OwnerKind = "address"
	// OwnerShared 共享：任意交易可并发引用，可变
	OwnerShared OwnerKind = "shared"
	// OwnerImmutable 不可变：冻结后永久只读
	OwnerImmutable OwnerKind = "immutable"
	// OwnerObject 对象所有：作为动态字段挂载在父对象之下
	OwnerObject OwnerKind = "object"
)

// Owner 对象所有者描述
//
// Kind 为 OwnerAddress 时 Address 为所有者账户地址；
// Kind 为 OwnerObject 时 Address 存放父对象ID（同为32字节）；
// 其余两种 Address 恒为零值。
type Owner struct {
	Kind    OwnerKind `json:"kind"`
	Address Address   `json:"address,omitempty"`
}

// OwnedBy 构造地址所有者
func OwnedBy(addr Address) Owner {
	return Owner{Kind: OwnerAddress, Address: addr}
}

// SharedOwner 构造共享所有者
func SharedOwner() Owner {
	return Owner{Kind: OwnerShared}
}

// ImmutableOwner 构造不可变所有者
func ImmutableOwner() Owner {
	return Owner{Kind: OwnerImmutable}
}

// ChildOf 构造对象所有者（动态字段子对象）
func ChildOf(parent ObjectID) Owner {
	return Owner{Kind: OwnerObject, Address: Address(parent)}
}

// Parent 返回对象所有者的父对象ID（仅 OwnerObject 有效）
func (o Owner) Parent() ObjectID {
	return ObjectID(o.Address)
}

// String 返回所有者的可读表示
func (o Owner) String() string {
	switch o.Kind {
	case OwnerAddress:
		return fmt.Sprintf("address(%s)", o.Address)
	case OwnerShared:
		return "shared"
	case OwnerImmutable:
		return "immutable"
	case OwnerObject:
		return fmt.Sprintf("object(%s)", o.Parent())
	default:
		return "unknown"
	}
}

// ==================== 对象 ====================

// Object 带版本的类型化对象
//
// 🎯 **对象模型核心**：
// 对象是沙箱状态的基本单位：唯一ID、严格递增的版本号、
// 类型标签、所有者与不透明内容字节。内容布局由合约自行约定，
// 沙箱只保证字节的完整搬运。
type Object struct {
	// ID 对象唯一标识符
	ID ObjectID `json:"id"`

	// Version 版本号，创建时为1，每次提交的变更递增1
	Version uint64 `json:"version"`

	// Type 内容的类型标签
	Type TypeTag `json:"type"`

	// Owner 当前所有者
	Owner Owner `json:"owner"`

	// Contents 类型化内容字节
	Contents []byte `json:"contents"`
}

// Clone 返回对象的深拷贝
func (obj *Object) Clone() *Object {
	if obj == nil {
		return nil
	}
	out := *obj
	out.Contents = make([]byte, len(obj.Contents))
	copy(out.Contents, obj.Contents)
	out.Type = obj.Type // TypeTag 值语义，TypeParams切片只读共享
	return &out
}

// Ref 返回对象的引用（ID + 版本）
func (obj *Object) Ref() ObjectRef {
	return ObjectRef{ID: obj.ID, Version: obj.Version}
}

// ObjectRef 对象引用：ID与观察到的版本
type ObjectRef struct {
	ID      ObjectID `json:"id"`
	Version uint64   `json:"version"`
}

// String 返回引用的可读表示
func (r ObjectRef) String() string {
	return fmt.Sprintf("%s@%d", r.ID, r.Version)
}

// ==================== 对象变更 ====================

// ChangeKind 对象变更种类
type ChangeKind string

const (
	ChangeCreated     ChangeKind = "created"
	ChangeMutated     ChangeKind = "mutated"
	ChangeDeleted     ChangeKind = "deleted"
	ChangeTransferred ChangeKind = "transferred"
	ChangeFrozen      ChangeKind = "frozen"
	ChangeShared      ChangeKind = "shared"
)

// IsMutation 判断该变更是否属于广义的修改（用于效果比对归类）
func (k ChangeKind) IsMutation() bool {
	switch k {
	case ChangeMutated, ChangeTransferred, ChangeFrozen, ChangeShared:
		return true
	default:
		return false
	}
}

// ObjectChange 一次执行中某对象的最终变更记录
type ObjectChange struct {
	// ID 对象标识符
	ID ObjectID `json:"id"`

	// Kind 变更种类
	Kind ChangeKind `json:"kind"`

	// Version 变更后版本（删除时为删除前版本）
	Version uint64 `json:"version"`

	// PrevVersion 变更前版本（创建时为0）
	PrevVersion uint64 `json:"prev_version,omitempty"`

	// Owner 变更后所有者（删除时为空）
	Owner Owner `json:"owner,omitempty"`

	// Type 对象类型标签
	Type TypeTag `json:"type,omitempty"`
}

// String 返回变更的可读表示
func (c ObjectChange) String() string {
	return fmt.Sprintf("%s %s@%d", c.Kind, c.ID, c.Version)
}
