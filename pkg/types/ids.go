// Package types 提供沙箱系统的共享领域类型定义
package types

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// ==================== 基础标识类型 ====================

// AddressLength 地址字节长度
const AddressLength = 32

// ObjectIDLength 对象标识符字节长度
const ObjectIDLength = 32

// DigestLength 执行摘要字节长度
const DigestLength = 32

// Address 账户地址（32字节定长）
//
// 🎯 **统一地址表示**：
// 地址是沙箱中所有所有权判定的基础。支持短十六进制形式
// （如 0x2）的解析，解析时左侧补零到 32 字节。
type Address [AddressLength]byte

// ObjectID 对象唯一标识符（32字节定长）
//
// 新建对象的 ID 由执行摘要与新鲜度计数器派生，
// 动态字段子对象的 ID 由父对象 ID 与键派生。
type ObjectID [ObjectIDLength]byte

// Digest 交易/执行摘要（32字节定长）
type Digest [DigestLength]byte

// ==================== Address 方法 ====================

// ParseAddress 从十六进制字符串解析地址
//
// 支持可选的 0x 前缀与短形式（不足64个十六进制字符时左侧补零）。
func ParseAddress(s string) (Address, error) {
	var addr Address
	h := strings.TrimPrefix(strings.TrimSpace(s), "0x")
	if h == "" {
		return addr, fmt.Errorf("empty address string")
	}
	if len(h) > AddressLength*2 {
		return addr, fmt.Errorf("address string too long: %d hex chars", len(h))
	}
	if len(h)%2 == 1 {
		h = "0" + h
	}
	raw, err := hex.DecodeString(h)
	if err != nil {
		return addr, fmt.Errorf("invalid address hex: %w", err)
	}
	copy(addr[AddressLength-len(raw):], raw)
	return addr, nil
}

// MustParseAddress 解析地址，失败时panic（仅用于测试与常量初始化）
func MustParseAddress(s string) Address {
	addr, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return addr
}

// String 返回规范的 0x 前缀十六进制表示（去除前导零，至少保留一位）
func (a Address) String() string {
	return "0x" + trimHex(a[:])
}

// Hex 返回完整长度的十六进制表示（不去除前导零）
func (a Address) Hex() string {
	return "0x" + hex.EncodeToString(a[:])
}

// Bytes 返回地址的字节副本
func (a Address) Bytes() []byte {
	out := make([]byte, AddressLength)
	copy(out, a[:])
	return out
}

// IsZero 判断是否为零地址
func (a Address) IsZero() bool {
	return a == Address{}
}

// MarshalJSON 序列化为十六进制字符串
func (a Address) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.Hex())
}

// UnmarshalJSON 从十六进制字符串反序列化
func (a *Address) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseAddress(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// ==================== ObjectID 方法 ====================

// ParseObjectID 从十六进制字符串解析对象ID（规则同地址）
func ParseObjectID(s string) (ObjectID, error) {
	addr, err := ParseAddress(s)
	if err != nil {
		return ObjectID{}, fmt.Errorf("invalid object id: %w", err)
	}
	return ObjectID(addr), nil
}

// MustParseObjectID 解析对象ID，失败时panic（仅用于测试）
func MustParseObjectID(s string) ObjectID {
	id, err := ParseObjectID(s)
	if err != nil {
		panic(err)
	}
	return id
}

// ObjectIDFromBytes 从32字节切片构造对象ID
func ObjectIDFromBytes(b []byte) (ObjectID, error) {
	var id ObjectID
	if len(b) != ObjectIDLength {
		return id, fmt.Errorf("object id must be %d bytes, got %d", ObjectIDLength, len(b))
	}
	copy(id[:], b)
	return id, nil
}

// String 返回规范的 0x 前缀十六进制表示
func (o ObjectID) String() string {
	return "0x" + trimHex(o[:])
}

// Hex 返回完整长度的十六进制表示
func (o ObjectID) Hex() string {
	return "0x" + hex.EncodeToString(o[:])
}

// Bytes 返回对象ID的字节副本
func (o ObjectID) Bytes() []byte {
	out := make([]byte, ObjectIDLength)
	copy(out, o[:])
	return out
}

// IsZero 判断是否为零ID
func (o ObjectID) IsZero() bool {
	return o == ObjectID{}
}

// MarshalJSON 序列化为十六进制字符串
func (o ObjectID) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.Hex())
}

// UnmarshalJSON 从十六进制字符串反序列化
func (o *ObjectID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseObjectID(s)
	if err != nil {
		return err
	}
	*o = parsed
	return nil
}

// ==================== Digest 方法 ====================

// DigestFromBytes 从32字节切片构造摘要
func DigestFromBytes(b []byte) (Digest, error) {
	var d Digest
	if len(b) != DigestLength {
		return d, fmt.Errorf("digest must be %d bytes, got %d", DigestLength, len(b))
	}
	copy(d[:], b)
	return d, nil
}

// ParseDigest 从十六进制字符串解析摘要
func ParseDigest(s string) (Digest, error) {
	addr, err := ParseAddress(s)
	if err != nil {
		return Digest{}, fmt.Errorf("invalid digest: %w", err)
	}
	return Digest(addr), nil
}

// MustParseDigest 解析摘要，失败时panic（仅用于测试）
func MustParseDigest(s string) Digest {
	d, err := ParseDigest(s)
	if err != nil {
		panic(err)
	}
	return d
}

// String 返回完整长度的十六进制表示
func (d Digest) String() string {
	return "0x" + hex.EncodeToString(d[:])
}

// Bytes 返回摘要的字节副本
func (d Digest) Bytes() []byte {
	out := make([]byte, DigestLength)
	copy(out, d[:])
	return out
}

// IsZero 判断是否为零摘要
func (d Digest) IsZero() bool {
	return d == Digest{}
}

// MarshalJSON 序列化为十六进制字符串
func (d Digest) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON 从十六进制字符串反序列化
func (d *Digest) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseDigest(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// ==================== ModuleID ====================

// ModuleID 模块标识符：部署地址 + 模块名
//
// 📋 规范字符串形式为 "0x<addr>::<name>"，地址部分使用短形式。
type ModuleID struct {
	Address Address `json:"address"`
	Name    string  `json:"name"`
}

// NewModuleID 构造模块标识符
func NewModuleID(addr Address, name string) ModuleID {
	return ModuleID{Address: addr, Name: name}
}

// ParseModuleID 从 "0x<addr>::<name>" 形式解析模块标识符
func ParseModuleID(s string) (ModuleID, error) {
	parts := strings.Split(strings.TrimSpace(s), "::")
	if len(parts) != 2 {
		return ModuleID{}, fmt.Errorf("invalid module id %q: want <address>::<name>", s)
	}
	addr, err := ParseAddress(parts[0])
	if err != nil {
		return ModuleID{}, fmt.Errorf("invalid module id %q: %w", s, err)
	}
	name := strings.TrimSpace(parts[1])
	if name == "" {
		return ModuleID{}, fmt.Errorf("invalid module id %q: empty module name", s)
	}
	return ModuleID{Address: addr, Name: name}, nil
}

// String 返回规范字符串形式
func (m ModuleID) String() string {
	return m.Address.String() + "::" + m.Name
}

// Equal 判断两个模块标识符是否相等
func (m ModuleID) Equal(other ModuleID) bool {
	return m.Address == other.Address && m.Name == other.Name
}

// IsZero 判断是否为空标识符
func (m ModuleID) IsZero() bool {
	return m.Address.IsZero() && m.Name == ""
}

// ==================== 内部辅助 ====================

// trimHex 去除前导零字节后编码，至少保留一个字符
func trimHex(b []byte) string {
	trimmed := bytes.TrimLeft(b, "\x00")
	if len(trimmed) == 0 {
		return "0"
	}
	s := hex.EncodeToString(trimmed)
	// 去除首个半字节的前导零（如 0x0a -> 0xa）
	if len(s) > 1 && s[0] == '0' {
		s = s[1:]
	}
	return s
}
