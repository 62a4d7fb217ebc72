package natives

import (
	"context"

	"github.com/tetratelabs/wazero/api"

	"github.com/sandvm/v1/pkg/types"
)

// 签名材料的固定长度（字节）
const (
	ed25519SigLen = 64
	ed25519PkLen  = 32

	secp256k1SigLen = 64 // 紧凑格式 r ‖ s
	secp256k1PkLen  = 33 // 压缩公钥

	blsSigLen = 96
	blsPkLen  = 48 // min-pk 方案

	// maxCryptoMsgLen 待验消息的字节上限
	maxCryptoMsgLen = 1 << 20
)

// cryptoVerdict 签名验证原生函数在当前模式下的结论
//
// 🎯 **两种模式的语义**：
// - permissive：形状合法的输入确定性返回"验证通过"(1)，不做真实校验。
//   离线沙箱拿不到真实签名材料，重放必须能走完执行路径。
// - strict：形状合法也一律以"不支持"中止，让调用方显式感知
//   沙箱不具备真实验证能力。
//
// 形状非法（长度越界、材料不在内存中）在两种模式下都以
// "非法输入"中止：垃圾输入不该得到任何验证结论。
//
// 返回 (result, abortCode, aborts)。
func cryptoVerdict(mode types.CryptoMode, shapeOK bool) (uint32, uint64, bool) {
	if !shapeOK {
		return 0, types.AbortBadCryptoInput, true
	}
	if mode == types.CryptoStrict {
		return 0, types.AbortUnsupportedCrypto, true
	}
	return 1, 0, false
}

// msgShapeOK 待验消息长度是否落在定义域内
func msgShapeOK(msgLen uint32) bool {
	return msgLen > 0 && msgLen <= maxCryptoMsgLen
}

// cryptoFunctions 密码学原生函数
//
// 哈希永远真实计算（对象ID派生依赖它们的正确性），
// 签名验证按配置模式给出确定性结论。
func (n *Natives) cryptoFunctions() map[string]interface{} {
	verify := func(name string, sigLen, pkLen uint32) interface{} {
		return func(ctx context.Context, m api.Module, sigPtr, msgPtr, msgLen, pkPtr uint32) uint32 {
			ec, ok := n.exec(ctx)
			if !ok {
				return 0
			}
			shapeOK := msgShapeOK(msgLen) &&
				readable(m, sigPtr, sigLen) &&
				readable(m, msgPtr, msgLen) &&
				readable(m, pkPtr, pkLen)
			result, code, aborts := cryptoVerdict(ec.Config.CryptoMode, shapeOK)
			if aborts {
				ec.RecordNative(name, StatusAborted)
				panic(ec.RecordAbort(code))
			}
			ec.RecordNative(name, StatusOK)
			return result
		}
	}

	return map[string]interface{}{
		// hash_sha256 - SHA-256（写入32字节到out_ptr）
		// 签名: (in_ptr: u32, in_len: u32, out_ptr: u32) -> (status: u32)
		"hash_sha256": n.hashFunc("hash_sha256", func(data []byte) []byte {
			return n.hasher.SHA256(data)
		}),

		// hash_keccak256 - Keccak-256（写入32字节到out_ptr）
		"hash_keccak256": n.hashFunc("hash_keccak256", func(data []byte) []byte {
			return n.hasher.Keccak256(data)
		}),

		// hash_blake2b - Blake2b-256（写入32字节到out_ptr）
		"hash_blake2b": n.hashFunc("hash_blake2b", func(data []byte) []byte {
			return n.hasher.Blake2b256(data)
		}),

		// crypto_verify_ed25519 - Ed25519签名验证
		// 签名: (sig_ptr: u32, msg_ptr: u32, msg_len: u32, pk_ptr: u32) -> (valid: u32)
		// sig 64字节，pk 32字节
		"crypto_verify_ed25519": verify("crypto_verify_ed25519", ed25519SigLen, ed25519PkLen),

		// crypto_verify_secp256k1 - secp256k1 ECDSA签名验证
		// sig 64字节紧凑格式，pk 33字节压缩公钥
		"crypto_verify_secp256k1": verify("crypto_verify_secp256k1", secp256k1SigLen, secp256k1PkLen),

		// bls_verify - BLS12-381签名验证（min-pk）
		// sig 96字节，pk 48字节
		"bls_verify": verify("bls_verify", blsSigLen, blsPkLen),
	}
}

// hashFunc 构造一个哈希原生函数闭包
func (n *Natives) hashFunc(name string, sum func([]byte) []byte) interface{} {
	return func(ctx context.Context, m api.Module, inPtr, inLen, outPtr uint32) uint32 {
		ec, ok := n.exec(ctx)
		if !ok {
			return StatusNoContext
		}
		data, ok := readBytes(m, inPtr, inLen)
		if !ok {
			ec.RecordNative(name, StatusMemory)
			return StatusMemory
		}
		digest := sum(data)
		if !writeBytes(m, outPtr, digest) {
			ec.RecordNative(name, StatusMemory)
			return StatusMemory
		}
		ec.RecordNative(name, StatusOK)
		return StatusOK
	}
}
