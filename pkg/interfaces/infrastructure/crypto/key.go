// Package crypto 提供沙箱系统的密钥管理接口定义
//
// 🔑 **密钥管理服务 (Key Management Service)**
//
// 本文件定义了沙箱系统的密钥管理接口，专注于：
// - secp256k1密钥生成：Bitcoin兼容的椭圆曲线密钥对生成
// - 助记词派生：从BIP39助记词种子确定性派生密钥对
// - 密钥验证机制：私钥、公钥格式和有效性的严格验证
//
// 🎯 **核心功能**
// - KeyManager：密钥管理器接口，提供完整的密钥操作服务
// - 密钥生成：基于密码学安全随机数的密钥对生成
// - 确定性派生：从种子派生可复现的测试密钥对
//
// 🔗 **组件关系**
// - KeyManager：被密钥工具(keygen)使用
// - 与AddressManager：配合进行公钥到账户地址的转换
package crypto

// KeyManager 定义密钥管理相关接口
//
// 提供沙箱系统的完整密钥管理服务：
// - 密钥生成：基于secp256k1椭圆曲线的安全密钥对生成
// - 种子派生：从助记词种子确定性派生，保证测试账户可复现
// - 安全验证：密钥格式、长度、有效性的多重验证
//
// 🎯 **密钥标准（Bitcoin兼容）**：
// - **椭圆曲线**：secp256k1
// - **私钥格式**：32字节随机数
// - **公钥格式**：33字节压缩格式
type KeyManager interface {
	// GenerateKeyPair 生成secp256k1密钥对
	//
	// 返回标准格式：
	//   - 私钥：32字节
	//   - 公钥：33字节压缩格式
	//
	// 返回：
	//   - []byte: 32字节私钥
	//   - []byte: 33字节压缩公钥
	//   - error: 生成失败时的错误
	GenerateKeyPair() ([]byte, []byte, error)

	// KeyPairFromSeed 从种子确定性派生密钥对
	//
	// 相同种子永远派生相同密钥对，用于可复现的测试账户。
	// 种子通常来自BIP39助记词，私钥取种子SHA256后按secp256k1阶数约化。
	//
	// 参数：
	//   - seed: 任意长度种子字节（通常为64字节BIP39种子）
	//
	// 返回：
	//   - []byte: 32字节私钥
	//   - []byte: 33字节压缩公钥
	//   - error: 种子为空或派生失败
	KeyPairFromSeed(seed []byte) ([]byte, []byte, error)

	// DerivePublicKey 从私钥导出公钥
	//
	// 参数：
	//   - privateKey: 32字节私钥
	//
	// 返回：
	//   - []byte: 33字节压缩公钥
	//   - error: 私钥无效时的错误
	DerivePublicKey(privateKey []byte) ([]byte, error)

	// ValidatePrivateKey 验证私钥有效性
	//
	// 检查私钥是否符合secp256k1的要求
	//
	// 参数：
	//   - privateKey: 待验证的私钥字节
	//
	// 返回：
	//   - error: 私钥无效时返回错误
	ValidatePrivateKey(privateKey []byte) error

	// ValidatePublicKey 验证公钥有效性
	//
	// 检查公钥是否符合secp256k1的要求，支持压缩和未压缩格式
	//
	// 参数：
	//   - publicKey: 待验证的公钥字节
	//
	// 返回：
	//   - error: 公钥无效时返回错误
	ValidatePublicKey(publicKey []byte) error
}
