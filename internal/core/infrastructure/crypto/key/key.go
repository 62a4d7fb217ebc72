package key

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"math/big"

	"github.com/btcsuite/btcd/btcec/v2"

	cryptointf "github.com/sandvm/v1/pkg/interfaces/infrastructure/crypto"
)

// 错误定义
var (
	ErrInvalidPrivateKey = errors.New("无效的私钥")
	ErrInvalidPublicKey  = errors.New("无效的公钥")
	ErrEmptySeed         = errors.New("种子不能为空")
)

// KeyManager 提供secp256k1密钥管理功能
//
// 面向密钥工具和模拟环境的测试账户：生成、种子派生、格式验证。
// 底层使用 btcd/btcec 的 secp256k1 实现。
type KeyManager struct{}

// NewKeyManager 创建新的密钥管理器
func NewKeyManager() *KeyManager {
	return &KeyManager{}
}

// GenerateKeyPair 生成新的secp256k1密钥对
//
// 返回标准格式：
//   - 私钥：32字节
//   - 公钥：33字节压缩格式（Bitcoin标准）
//
// 返回:
//   - []byte: 32字节的私钥
//   - []byte: 33字节的压缩公钥
//   - error: 生成错误，成功时为nil
func (km *KeyManager) GenerateKeyPair() ([]byte, []byte, error) {
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, nil, fmt.Errorf("生成secp256k1私钥失败: %w", err)
	}

	privateKeyBytes := priv.Serialize()
	publicKeyBytes := priv.PubKey().SerializeCompressed()

	return privateKeyBytes, publicKeyBytes, nil
}

// KeyPairFromSeed 从种子确定性派生密钥对
//
// 相同种子永远派生相同密钥对，用于可复现的测试账户。
// 私钥取种子SHA256后约化到 [1, N-1]，N为secp256k1曲线阶，
// 保证结果永远是合法私钥。
//
// 参数:
//   - seed: 任意长度种子字节（通常为64字节BIP39种子）
//
// 返回:
//   - []byte: 32字节私钥
//   - []byte: 33字节压缩公钥
//   - error: 种子为空时返回ErrEmptySeed
func (km *KeyManager) KeyPairFromSeed(seed []byte) ([]byte, []byte, error) {
	if len(seed) == 0 {
		return nil, nil, ErrEmptySeed
	}

	digest := sha256.Sum256(seed)

	// k = digest mod (N-1) + 1，落在 [1, N-1]
	n := btcec.S256().Params().N
	nMinusOne := new(big.Int).Sub(n, big.NewInt(1))
	k := new(big.Int).SetBytes(digest[:])
	k.Mod(k, nMinusOne)
	k.Add(k, big.NewInt(1))

	privateKeyBytes := make([]byte, 32)
	k.FillBytes(privateKeyBytes)

	priv, _ := btcec.PrivKeyFromBytes(privateKeyBytes)
	publicKeyBytes := priv.PubKey().SerializeCompressed()

	return privateKeyBytes, publicKeyBytes, nil
}

// DerivePublicKey 从私钥导出公钥
//
// 参数:
//   - privateKey: 32字节的私钥数据
//
// 返回:
//   - []byte: 33字节压缩公钥（Bitcoin标准）
//   - error: 操作错误，无效私钥时返回ErrInvalidPrivateKey
func (km *KeyManager) DerivePublicKey(privateKey []byte) ([]byte, error) {
	if err := km.ValidatePrivateKey(privateKey); err != nil {
		return nil, err
	}

	priv, _ := btcec.PrivKeyFromBytes(privateKey)
	return priv.PubKey().SerializeCompressed(), nil
}

// ValidatePrivateKey 验证私钥有效性
//
// 检查私钥是否符合secp256k1的要求
//
// 参数：
//   - privateKey: 待验证的私钥字节
//
// 返回：
//   - error: 私钥无效时返回错误
func (km *KeyManager) ValidatePrivateKey(privateKey []byte) error {
	if len(privateKey) != 32 {
		return fmt.Errorf("%w: 长度 %d, 期望32字节", ErrInvalidPrivateKey, len(privateKey))
	}

	k := new(big.Int).SetBytes(privateKey)
	if k.Sign() == 0 {
		return fmt.Errorf("%w: 私钥不能为零", ErrInvalidPrivateKey)
	}

	if k.Cmp(btcec.S256().Params().N) >= 0 {
		return fmt.Errorf("%w: 超出secp256k1曲线阶", ErrInvalidPrivateKey)
	}

	return nil
}

// ValidatePublicKey 验证公钥有效性
//
// 检查公钥是否符合secp256k1的要求，支持压缩和未压缩格式。
// ParsePubKey会校验点确实在曲线上。
//
// 参数：
//   - publicKey: 待验证的公钥字节
//
// 返回：
//   - error: 公钥无效时返回错误
func (km *KeyManager) ValidatePublicKey(publicKey []byte) error {
	switch len(publicKey) {
	case 33, 65:
		if _, err := btcec.ParsePubKey(publicKey); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
		}
		return nil
	default:
		return fmt.Errorf("%w: 长度 %d, 期望33或65字节", ErrInvalidPublicKey, len(publicKey))
	}
}

// SecureWipe 安全擦除敏感数据
//
// 使用多阶段覆盖策略确保数据无法恢复：
// 1. 随机数据覆盖
// 2. 全1覆盖
// 3. 全0覆盖
//
// 参数:
//   - data: 要擦除的数据字节切片
//
// 密钥工具在打印完私钥和种子后调用此函数清除内存副本
func SecureWipe(data []byte) {
	if len(data) == 0 {
		return
	}

	// 第一阶段：随机数据覆盖
	randomData := make([]byte, len(data))
	rand.Read(randomData)
	copy(data, randomData)

	// 第二阶段：全1覆盖
	for i := range data {
		data[i] = 0xFF
	}

	// 第三阶段：全0覆盖（最终状态）
	for i := range data {
		data[i] = 0x00
	}

	for i := range randomData {
		randomData[i] = 0
	}
}

// 确保KeyManager实现了cryptointf.KeyManager接口
var _ cryptointf.KeyManager = (*KeyManager)(nil)
