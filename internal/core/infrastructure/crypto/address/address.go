package address

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/mr-tron/base58"

	cryptointf "github.com/sandvm/v1/pkg/interfaces/infrastructure/crypto"
	"github.com/sandvm/v1/pkg/types"
)

// 地址系统配置常量
const (
	// AddressVersion Base58Check显示编码的版本字节
	AddressVersion = 0x53
	// CompressedPublicKeyLength 压缩公钥长度（33字节）
	CompressedPublicKeyLength = 33
	// UncompressedPublicKeyLength 未压缩公钥长度（65字节，带0x04前缀）
	UncompressedPublicKeyLength = 65
	// checksumLength Base58Check校验和长度
	checksumLength = 4
)

var (
	// ErrInvalidPublicKey 无效的公钥
	ErrInvalidPublicKey = errors.New("invalid public key format")
	// ErrInvalidAddress 无效的地址格式
	ErrInvalidAddress = errors.New("invalid address format")
	// ErrInvalidAddressLength 无效的地址长度
	ErrInvalidAddressLength = errors.New("invalid address length")
	// ErrInvalidVersion 无效的版本字节
	ErrInvalidVersion = errors.New("invalid address version")
	// ErrInvalidChecksum 校验和错误
	ErrInvalidChecksum = errors.New("invalid checksum")
)

// AddressService 账户地址管理服务
//
// 32字节账户地址的生成与编解码：
// - 推导：secp256k1压缩公钥 → SHA256 → 32字节地址
// - 规范形式：0x前缀十六进制
// - 显示形式：Base58Check（版本字节 + 32字节地址 + 4字节校验和）
type AddressService struct {
	// KeyManager用于私钥到公钥的转换
	keyManager cryptointf.KeyManager
}

// 确保AddressService实现了AddressManager接口
var _ cryptointf.AddressManager = (*AddressService)(nil)

// NewAddressService 创建新的地址服务实例
//
// 参数：
//   - keyManager: 密钥管理器，用于私钥到公钥的转换（可为nil，此时PrivateKeyToAddress方法不可用）
//
// 返回：
//   - *AddressService: 地址服务实例
//
// 注意：
//   - 如果keyManager为nil，则PrivateKeyToAddress方法将返回错误
//   - 其他方法（PublicKeyToAddress、DecodeAddress等）正常工作
func NewAddressService(keyManager cryptointf.KeyManager) *AddressService {
	return &AddressService{
		keyManager: keyManager,
	}
}

// PrivateKeyToAddress 从私钥直接推导账户地址
//
// 完整的私钥到地址推导流程：
// 私钥(32字节) → 压缩公钥(secp256k1) → SHA256 → 32字节账户地址
//
// 参数：
//   - privateKey: 32字节secp256k1私钥
//
// 返回：
//   - types.Address: 32字节账户地址
//   - error: 私钥无效或推导失败
func (s *AddressService) PrivateKeyToAddress(privateKey []byte) (types.Address, error) {
	var addr types.Address

	// 检查KeyManager是否可用
	if s.keyManager == nil {
		return addr, fmt.Errorf("私钥转地址功能不可用：未提供KeyManager依赖")
	}

	// 验证私钥有效性
	if err := s.keyManager.ValidatePrivateKey(privateKey); err != nil {
		return addr, fmt.Errorf("私钥验证失败: %w", err)
	}

	// 从私钥导出压缩公钥
	publicKey, err := s.keyManager.DerivePublicKey(privateKey)
	if err != nil {
		return addr, fmt.Errorf("从私钥导出公钥失败: %w", err)
	}

	address, err := s.PublicKeyToAddress(publicKey)
	if err != nil {
		return addr, fmt.Errorf("从公钥生成地址失败: %w", err)
	}

	return address, nil
}

// PublicKeyToAddress 从公钥推导账户地址
//
// 推导算法：SHA256(压缩公钥)，未压缩输入先规范化为压缩格式，
// 保证同一把钥匙的两种公钥形式推导出同一个地址。
//
// 参数：
//   - publicKey: 33字节压缩或65字节未压缩secp256k1公钥
//
// 返回：
//   - types.Address: 32字节账户地址
//   - error: 公钥格式错误或不在曲线上
func (s *AddressService) PublicKeyToAddress(publicKey []byte) (types.Address, error) {
	var addr types.Address

	if len(publicKey) != CompressedPublicKeyLength && len(publicKey) != UncompressedPublicKeyLength {
		return addr, fmt.Errorf("%w: expected %d or %d bytes, got %d",
			ErrInvalidPublicKey, CompressedPublicKeyLength, UncompressedPublicKeyLength, len(publicKey))
	}

	// ParsePubKey会校验点在曲线上
	pub, err := btcec.ParsePubKey(publicKey)
	if err != nil {
		return addr, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}

	digest := sha256.Sum256(pub.SerializeCompressed())
	copy(addr[:], digest[:])

	return addr, nil
}

// EncodeAddress 将账户地址编码为Base58Check显示形式
//
// 编码流程：版本字节 + 32字节地址 → 双SHA256取前4字节校验和 → Base58编码
func (s *AddressService) EncodeAddress(address types.Address) string {
	return base58CheckEncode(address[:], AddressVersion)
}

// DecodeAddress 解析地址字符串为账户地址
//
// 接受两种输入格式：
//   - 0x前缀十六进制（规范形式，允许短形式左补零）
//   - Base58Check编码（显示形式，版本字节与校验和必须有效）
func (s *AddressService) DecodeAddress(encoded string) (types.Address, error) {
	var addr types.Address

	trimmed := strings.TrimSpace(encoded)
	if trimmed == "" {
		return addr, ErrInvalidAddress
	}

	// 0x前缀走十六进制规范形式
	if strings.HasPrefix(trimmed, "0x") || strings.HasPrefix(trimmed, "0X") {
		return types.ParseAddress("0x" + trimmed[2:])
	}

	if !isValidBase58(trimmed) {
		return addr, ErrInvalidAddress
	}

	data, version, err := base58CheckDecode(trimmed)
	if err != nil {
		return addr, err
	}

	if version != AddressVersion {
		return addr, fmt.Errorf("%w: got 0x%02x", ErrInvalidVersion, version)
	}

	if len(data) != types.AddressLength {
		return addr, fmt.Errorf("%w: got %d bytes", ErrInvalidAddressLength, len(data))
	}

	copy(addr[:], data)
	return addr, nil
}

// ValidateAddress 验证地址字符串格式和校验和
func (s *AddressService) ValidateAddress(encoded string) (bool, error) {
	if strings.TrimSpace(encoded) == "" {
		return false, ErrInvalidAddress
	}

	if _, err := s.DecodeAddress(encoded); err != nil {
		return false, err
	}

	return true, nil
}

// base58CheckEncode 使用版本字节和校验和编码数据（Base58Check）
func base58CheckEncode(data []byte, version byte) string {
	// 构建载荷：版本字节 + 数据
	payload := make([]byte, 1+len(data))
	payload[0] = version
	copy(payload[1:], data)

	// 计算校验和：双SHA256的前4字节
	checksum := doubleSHA256(payload)[:checksumLength]

	// 构建完整数据：载荷 + 校验和
	fullData := make([]byte, len(payload)+checksumLength)
	copy(fullData, payload)
	copy(fullData[len(payload):], checksum)

	return base58.Encode(fullData)
}

// base58CheckDecode 解码Base58Check编码的数据
func base58CheckDecode(encoded string) ([]byte, byte, error) {
	decoded, err := base58.Decode(encoded)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	if len(decoded) < 1+checksumLength {
		return nil, 0, ErrInvalidAddressLength
	}

	// 分离载荷和校验和
	payloadLen := len(decoded) - checksumLength
	payload := decoded[:payloadLen]
	checksum := decoded[payloadLen:]

	// 验证校验和
	expectedChecksum := doubleSHA256(payload)[:checksumLength]
	for i := 0; i < checksumLength; i++ {
		if checksum[i] != expectedChecksum[i] {
			return nil, 0, ErrInvalidChecksum
		}
	}

	// 返回数据（不含版本字节）和版本字节
	if len(payload) == 0 {
		return nil, 0, ErrInvalidAddressLength
	}

	return payload[1:], payload[0], nil
}

// doubleSHA256 执行双SHA256哈希
func doubleSHA256(data []byte) []byte {
	first := sha256.Sum256(data)
	second := sha256.Sum256(first[:])
	return second[:]
}

// isValidBase58 检查字符串是否为有效的Base58编码
func isValidBase58(s string) bool {
	for _, char := range s {
		if !strings.ContainsRune("123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz", char) {
			return false
		}
	}
	return true
}
