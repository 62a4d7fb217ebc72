//go:build js || wasm
// +build js wasm

package badger

import (
	"context"
)

// checkDiskSpace 检查数据库目录所在磁盘空间 (WebAssembly版本)
// WASM环境无法访问文件系统统计信息，空实现
func (s *Store) checkDiskSpace(ctx context.Context) {
	s.logger.Debugf("磁盘空间检查在WebAssembly环境中不可用")
}
