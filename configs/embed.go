package configs

import _ "embed"

// EmbeddedConfigs 嵌入的配置文件内容
type EmbeddedConfigs struct {
	Default    []byte
	Testing    []byte
	Production []byte
}

// 嵌入所有环境的配置文件（在configs目录内直接引用）
//
//go:embed sandvm.json
var defaultConfig []byte

//go:embed testing/config.json
var testingConfig []byte

//go:embed production/config.json
var productionConfig []byte

// GetEmbeddedConfigs 获取所有嵌入的配置
func GetEmbeddedConfigs() *EmbeddedConfigs {
	return &EmbeddedConfigs{
		Default:    defaultConfig,
		Testing:    testingConfig,
		Production: productionConfig,
	}
}

// GetDefaultConfig 获取默认（开发）配置
func GetDefaultConfig() []byte {
	return defaultConfig
}

// GetTestingConfig 获取测试环境配置
func GetTestingConfig() []byte {
	return testingConfig
}

// GetProductionConfig 获取生产环境配置
func GetProductionConfig() []byte {
	return productionConfig
}
