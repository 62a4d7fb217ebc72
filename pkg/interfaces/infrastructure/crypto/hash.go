// Package crypto 提供沙箱系统的哈希计算接口定义
//
// #️⃣ **哈希计算服务 (Hash Computation Service)**
//
// 本文件定义了沙箱执行系统的哈希计算接口，专注于：
// - 多算法支持：SHA256、Keccak256、Blake2b、RIPEMD160等主流算法
// - 确定性保证：相同输入永远产生相同输出，可安全用于对象ID派生
// - 数据校验：数据完整性和一致性校验机制
//
// 🎯 **核心功能**
// - HashManager：哈希管理器接口，提供完整的哈希计算服务
// - 算法多样：支持多种主流加密哈希算法
// - ID派生：Blake2b256用于新建对象和动态字段子对象的ID派生
//
// 🔗 **组件关系**
// - HashManager：被原生函数层、对象存储、地址服务使用
// - 与AddressManager：提供地址编码所需的哈希计算
package crypto

// HashManager 定义哈希计算相关接口
//
// 提供沙箱系统的完整哈希计算服务：
// - 多算法支持：SHA256、Keccak256、Blake2b、RIPEMD160等算法
// - 安全增强：双重SHA256等安全哈希机制
// - 确定性派生：对象ID和动态字段子ID的哈希派生
type HashManager interface {
	// SHA256 计算SHA-256哈希
	// 参数：
	//   - data: 输入数据
	// 返回：哈希值
	SHA256(data []byte) []byte

	// Keccak256 计算Keccak-256哈希
	// 参数：
	//   - data: 输入数据
	// 返回：哈希值
	Keccak256(data []byte) []byte

	// Blake2b256 计算Blake2b-256哈希
	// 参数：
	//   - data: 输入数据
	// 返回：哈希值
	Blake2b256(data []byte) []byte

	// RIPEMD160 计算RIPEMD-160哈希
	// 参数：
	//   - data: 输入数据
	// 返回：哈希值
	RIPEMD160(data []byte) []byte

	// DoubleSHA256 计算双重SHA-256哈希
	// 参数：
	//   - data: 输入数据
	// 返回：哈希值
	DoubleSHA256(data []byte) []byte
}
