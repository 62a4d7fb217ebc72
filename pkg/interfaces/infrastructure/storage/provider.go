// Package storage 提供沙箱系统的存储提供者接口定义
package storage

// Provider 存储提供者接口
//
// 聚合各类存储实例并按名称提供访问，"default" 或空名返回默认实例。
type Provider interface {
	// GetBadgerStore 获取BadgerDB键值存储
	GetBadgerStore(name string) (BadgerStore, error)

	// GetMemoryStore 获取内存存储
	GetMemoryStore(name string) (MemoryStore, error)

	// GetFileStore 获取文件存储
	GetFileStore(name string) (FileStore, error)

	// Close 关闭所有存储连接
	Close() error
}
