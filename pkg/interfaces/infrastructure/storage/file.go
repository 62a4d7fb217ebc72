// Package storage 提供沙箱系统的文件存储接口定义
//
// 📁 **文件存储服务 (File Storage Service)**
//
// 本文件定义了沙箱系统的文件存储接口，专注于：
// - 制品落盘：重放缓存、效果快照等文件制品的读写
// - 路径安全：所有路径均限制在配置的根目录之内
// - 覆盖语义：同路径写入为完整覆盖，不做追加
//
// 🔗 **组件关系**
// - FileStore：被重放缓存等模块使用
// - 与StorageProvider：作为存储提供者的文件层
package storage

import "context"

//=============================================================================
// FileStore 接口定义
//=============================================================================

// FileStore 定义了文件存储的应用接口
//
// 注意：文件存储资源由DI容器自动管理，无需手动Close()
type FileStore interface {
	// Save 保存数据到指定路径
	// path: 相对于存储根目录的路径
	// data: 要保存的二进制数据
	// 如果文件已存在，会被完整覆盖
	Save(ctx context.Context, path string, data []byte) error

	// Load 从指定路径加载数据
	// 如果文件不存在，返回错误
	Load(ctx context.Context, path string) ([]byte, error)

	// Delete 删除指定路径的文件
	// 如果文件不存在，返回错误
	Delete(ctx context.Context, path string) error

	// Exists 检查指定路径的文件是否存在
	Exists(ctx context.Context, path string) (bool, error)

	// ListFiles 列出指定目录下匹配模式的文件名
	// dirPath: 相对于存储根目录的目录路径
	// pattern: 文件名匹配模式，支持通配符，如"*.json"，为空则不过滤
	// 返回符合条件的文件名列表，不包含子目录中的文件
	ListFiles(ctx context.Context, dirPath string, pattern string) ([]string, error)

	// MakeDir 创建目录
	// recursive: 是否递归创建路径中所有不存在的父目录
	// 如果目录已存在，不会返回错误
	MakeDir(ctx context.Context, dirPath string, recursive bool) error
}
