package context

import "github.com/sandvm/v1/pkg/types"

// 执行轨迹记录
//
// 📋 原生调用与对象触达共用一个观察序号，轨迹的交错顺序
// 即真实发生顺序。轨迹只用于审计与确定性验证，永不参与
// 控制流。

// RecordNative 记录一次原生函数调用
func (c *ExecutionContext) RecordNative(name string, status uint32) {
	c.Trace.Natives = append(c.Trace.Natives, types.NativeTraceEntry{
		Seq:    c.seq,
		Name:   name,
		Status: status,
	})
	c.seq++
}

// RecordObject 记录一次对象触达
func (c *ExecutionContext) RecordObject(id types.ObjectID, access types.ObjectAccessKind) {
	c.Trace.Objects = append(c.Trace.Objects, types.ObjectTraceEntry{
		Seq:    c.seq,
		ID:     id,
		Access: access,
	})
	c.seq++
}

// RecordModule 记录一次模块装载
func (c *ExecutionContext) RecordModule(id types.ModuleID) {
	c.Trace.Modules = append(c.Trace.Modules, id)
}

// EmitEvent 记录一条脚本事件
//
// 事件序号为脚本内的发出顺序，发出模块取当前调用点。
func (c *ExecutionContext) EmitEvent(tag types.TypeTag, data []byte) {
	c.Events = append(c.Events, types.Event{
		Seq:    len(c.Events),
		Type:   tag,
		Module: c.Module,
		Sender: c.Sender,
		Data:   append([]byte(nil), data...),
	})
}
