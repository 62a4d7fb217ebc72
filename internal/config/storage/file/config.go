package file

import (
	configtypes "github.com/sandvm/v1/pkg/types"
	"github.com/sandvm/v1/pkg/utils"
)

// FileOptions 文件存储配置选项
type FileOptions struct {
	RootPath                string `json:"root_path"`
	MaxFileSize             int64  `json:"max_file_size"`
	FileVerificationEnabled bool   `json:"file_verification_enabled"`
	FilePermissions         int    `json:"file_permissions"`
	DirectoryPermissions    int    `json:"directory_permissions"`
}

// Config 文件存储配置实现
type Config struct {
	options *FileOptions
}

// New 创建文件存储配置实现
func New(userConfig interface{}) *Config {
	defaultOptions := createDefaultFileOptions()

	// 如果有用户配置，应用用户配置覆盖默认值
	if userConfig != nil {
		applyUserConfig(defaultOptions, userConfig)
	}

	return &Config{
		options: defaultOptions,
	}
}

// NewFromOptions 从FileOptions创建配置实现
// 用于直接使用已构建的配置选项（例如从Provider获取的选项）
func NewFromOptions(options *FileOptions) *Config {
	if options == nil {
		// 如果选项为空，使用默认配置
		return New(nil)
	}
	return &Config{
		options: options,
	}
}

// createDefaultFileOptions 创建默认文件存储配置
func createDefaultFileOptions() *FileOptions {
	return &FileOptions{
		RootPath:                getDefaultPath(),
		MaxFileSize:             defaultMaxFileSize,
		FileVerificationEnabled: defaultFileVerificationEnabled,
		FilePermissions:         defaultFilePermissions,
		DirectoryPermissions:    defaultDirectoryPermissions,
	}
}

// getDefaultPath 获取默认文件存储路径（使用路径解析工具）
func getDefaultPath() string {
	return utils.ResolveDataPath(defaultRootPath)
}

// applyUserConfig 应用用户配置覆盖默认值
func applyUserConfig(options *FileOptions, userConfig interface{}) {
	// 处理用户文件存储配置，只使用JSON中实际存在的字段
	if fileConfig, ok := userConfig.(*configtypes.UserFileStorageConfig); ok && fileConfig != nil {
		if fileConfig.RootPath != nil {
			options.RootPath = utils.ResolveDataPath(*fileConfig.RootPath)
		}
		if fileConfig.MaxFileSize != nil {
			options.MaxFileSize = *fileConfig.MaxFileSize
		}
	}
}

// GetOptions 获取完整的文件存储配置选项
func (c *Config) GetOptions() *FileOptions {
	return c.options
}

// GetRootPath 获取根目录路径
func (c *Config) GetRootPath() string {
	return c.options.RootPath
}

// GetMaxFileSize 获取最大文件大小限制(MB)
func (c *Config) GetMaxFileSize() int64 {
	return c.options.MaxFileSize
}

// IsFileVerificationEnabled 是否启用文件校验
func (c *Config) IsFileVerificationEnabled() bool {
	return c.options.FileVerificationEnabled
}

// GetFilePermissions 获取文件权限设置
func (c *Config) GetFilePermissions() int {
	return c.options.FilePermissions
}

// GetDirectoryPermissions 获取目录权限设置
func (c *Config) GetDirectoryPermissions() int {
	return c.options.DirectoryPermissions
}
