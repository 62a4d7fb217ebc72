// Package crypto 提供系统的地址管理接口定义
//
// 📍 **地址管理服务 (Address Management Service)**
//
// 本文件定义了沙箱系统的地址管理接口，专注于：
// - 地址标准：32字节账户地址，十六进制为规范形式
// - 地址生成算法：secp256k1公钥到账户地址的完整推导流程
// - 显示编码：Base58Check人类友好编码，用于CLI展示和密钥工具
// - 转换工具集：地址、编码串、十六进制之间的互相转换
//
// 🎯 **核心功能**
// - AddressManager：地址管理器接口，提供完整的地址操作服务
// - 地址生成：从secp256k1公钥推导32字节账户地址
// - 格式验证：十六进制与Base58Check两种输入格式的验证
//
// 🔗 **组件关系**
// - AddressManager：被密钥工具、模拟环境、回放解析器使用
// - 与KeyManager：配合进行公钥到地址的转换
// - 与HashManager：提供地址推导所需的哈希计算
package crypto

import "github.com/sandvm/v1/pkg/types"

// AddressManager 定义账户地址管理相关接口
//
// 提供沙箱系统的完整地址管理服务：
// - 地址生成：从secp256k1公钥推导32字节账户地址
// - 显示编码：Base58Check编码用于CLI输出，十六进制为规范形式
// - 格式验证：两种输入格式的严格验证
//
// 🔧 **推导算法**：
// 私钥 → 公钥(secp256k1压缩格式) → SHA256 → 32字节账户地址
//
// 🎯 **编码格式**：
// - **规范形式**：0x前缀十六进制，最长64字符
// - **显示形式**：Base58Check编码（版本字节+32字节地址+校验和）
type AddressManager interface {
	// PrivateKeyToAddress 从私钥直接推导账户地址
	//
	// 完整的私钥到地址推导流程：
	// 私钥(32字节) → 压缩公钥(secp256k1) → SHA256 → 账户地址
	//
	// 参数：
	//   - privateKey: 32字节secp256k1私钥
	//
	// 返回：
	//   - types.Address: 32字节账户地址
	//   - error: 私钥无效或推导失败
	PrivateKeyToAddress(privateKey []byte) (types.Address, error)

	// PublicKeyToAddress 从公钥推导账户地址
	//
	// 支持的公钥格式：
	//   - 33字节压缩公钥 (推荐)
	//   - 65字节未压缩公钥 (兼容)
	//
	// 参数：
	//   - publicKey: secp256k1公钥字节数组
	//
	// 返回：
	//   - types.Address: 32字节账户地址
	//   - error: 公钥格式错误或推导失败
	PublicKeyToAddress(publicKey []byte) (types.Address, error)

	// EncodeAddress 将账户地址编码为Base58Check显示形式
	//
	// 编码流程：版本字节 + 32字节地址 → 双SHA256取前4字节校验和 → Base58编码
	//
	// 参数：
	//   - address: 32字节账户地址
	//
	// 返回：Base58Check编码的地址字符串
	EncodeAddress(address types.Address) string

	// DecodeAddress 解析地址字符串为账户地址
	//
	// 接受两种输入格式：
	//   - 0x前缀十六进制（规范形式）
	//   - Base58Check编码（显示形式，校验和必须有效）
	//
	// 参数：
	//   - encoded: 地址字符串
	//
	// 返回：
	//   - types.Address: 32字节账户地址
	//   - error: 格式无效或校验和错误
	DecodeAddress(encoded string) (types.Address, error)

	// ValidateAddress 验证地址字符串格式
	//
	// 验证内容：
	//   - 十六进制格式：0x前缀、合法字符、长度不超过64字符
	//   - Base58Check格式：字符有效性、版本字节、校验和
	//
	// 参数：
	//   - encoded: 地址字符串
	//
	// 返回：
	//   - bool: 是否为有效地址
	//   - error: 验证过程中的错误
	ValidateAddress(encoded string) (bool, error)
}
