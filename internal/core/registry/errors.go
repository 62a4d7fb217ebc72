package registry

import "errors"

// errReadonly 只读快照上的写操作
//
// Clone() 产生的快照供并行工作者共享，装载与升级只能发生在源注册表。
var errReadonly = errors.New("registry snapshot is read-only")
