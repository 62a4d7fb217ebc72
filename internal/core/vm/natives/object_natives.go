package natives

import (
	"context"

	"github.com/tetratelabs/wazero/api"

	"github.com/sandvm/v1/pkg/types"
)

// nativeObjectType 原生新建对象的规范类型标签
//
// object_new 建出的对象以此类型落仓，内容为空字节；
// 合约随后通过动态字段在其上挂载真实数据。
var nativeObjectType = types.NewStructTag(types.MustParseAddress("0x2"), "object", "Object")

// objectFunctions 对象生命周期原生函数
//
// 全部直接落在本次执行借用的对象仓库上，写操作进入
// 待提交集，脚本完成时统一提交并生成版本号递增。
func (n *Natives) objectFunctions() map[string]interface{} {
	return map[string]interface{}{
		// object_new - 新建对象（派生的新鲜ID写入WASM内存）
		// 签名: (id_out_ptr: u32) -> (status: u32)
		// 新对象归发送者所有，版本1，内容为空
		"object_new": func(ctx context.Context, m api.Module, idOutPtr uint32) uint32 {
			ec, ok := n.exec(ctx)
			if !ok {
				return StatusNoContext
			}
			id := ec.NextFreshID()
			// 先写内存再落仓：写失败时仓库保持原样
			if !writeBytes(m, idOutPtr, id[:]) {
				ec.RecordNative("object_new", StatusMemory)
				return StatusMemory
			}
			obj := &types.Object{
				ID:       id,
				Type:     nativeObjectType,
				Owner:    types.OwnedBy(ec.Sender),
				Contents: []byte{},
			}
			if err := ec.Store.Create(obj); err != nil {
				st := storeStatus(err)
				ec.RecordNative("object_new", st)
				return st
			}
			ec.RecordObject(id, types.ObjectAccessCreate)
			ec.RecordNative("object_new", StatusOK)
			return StatusOK
		},

		// object_delete - 删除对象（留墓碑）
		// 签名: (id_ptr: u32) -> (status: u32)
		"object_delete": func(ctx context.Context, m api.Module, idPtr uint32) uint32 {
			ec, ok := n.exec(ctx)
			if !ok {
				return StatusNoContext
			}
			id, ok := readObjectID(m, idPtr)
			if !ok {
				ec.RecordNative("object_delete", StatusMemory)
				return StatusMemory
			}
			if err := ec.Store.Delete(id); err != nil {
				st := storeStatus(err)
				ec.RecordNative("object_delete", st)
				return st
			}
			ec.RecordObject(id, types.ObjectAccessDelete)
			ec.RecordNative("object_delete", StatusOK)
			return StatusOK
		},

		// object_transfer - 转移对象所有权
		// 签名: (id_ptr: u32, owner_ptr: u32) -> (status: u32)
		// owner_ptr 指向32字节新所有者地址
		"object_transfer": func(ctx context.Context, m api.Module, idPtr, ownerPtr uint32) uint32 {
			ec, ok := n.exec(ctx)
			if !ok {
				return StatusNoContext
			}
			id, ok := readObjectID(m, idPtr)
			if !ok {
				ec.RecordNative("object_transfer", StatusMemory)
				return StatusMemory
			}
			owner, ok := readAddress(m, ownerPtr)
			if !ok {
				ec.RecordNative("object_transfer", StatusMemory)
				return StatusMemory
			}
			if err := ec.Store.SetOwner(id, types.OwnedBy(owner)); err != nil {
				st := storeStatus(err)
				ec.RecordNative("object_transfer", st)
				return st
			}
			ec.RecordObject(id, types.ObjectAccessTransfer)
			ec.RecordNative("object_transfer", StatusOK)
			return StatusOK
		},

		// object_freeze - 冻结对象（此后任何写入被拒绝）
		// 签名: (id_ptr: u32) -> (status: u32)
		"object_freeze": func(ctx context.Context, m api.Module, idPtr uint32) uint32 {
			ec, ok := n.exec(ctx)
			if !ok {
				return StatusNoContext
			}
			id, ok := readObjectID(m, idPtr)
			if !ok {
				ec.RecordNative("object_freeze", StatusMemory)
				return StatusMemory
			}
			if err := ec.Store.Freeze(id); err != nil {
				st := storeStatus(err)
				ec.RecordNative("object_freeze", st)
				return st
			}
			ec.RecordObject(id, types.ObjectAccessWrite)
			ec.RecordNative("object_freeze", StatusOK)
			return StatusOK
		},

		// object_share - 共享对象
		// 签名: (id_ptr: u32) -> (status: u32)
		"object_share": func(ctx context.Context, m api.Module, idPtr uint32) uint32 {
			ec, ok := n.exec(ctx)
			if !ok {
				return StatusNoContext
			}
			id, ok := readObjectID(m, idPtr)
			if !ok {
				ec.RecordNative("object_share", StatusMemory)
				return StatusMemory
			}
			if err := ec.Store.Share(id); err != nil {
				st := storeStatus(err)
				ec.RecordNative("object_share", st)
				return st
			}
			ec.RecordObject(id, types.ObjectAccessWrite)
			ec.RecordNative("object_share", StatusOK)
			return StatusOK
		},

		// object_exists - 查询对象是否存活
		// 签名: (id_ptr: u32) -> (exists: u32)
		// 返回1存活、0不存在（含已删除与内存越界）
		"object_exists": func(ctx context.Context, m api.Module, idPtr uint32) uint32 {
			ec, ok := n.exec(ctx)
			if !ok {
				return 0
			}
			id, ok := readObjectID(m, idPtr)
			if !ok {
				ec.RecordNative("object_exists", StatusMemory)
				return 0
			}
			ec.RecordObject(id, types.ObjectAccessRead)
			ec.RecordNative("object_exists", StatusOK)
			if ec.Store.Exists(id) {
				return 1
			}
			return 0
		},
	}
}
