package types

import (
	"encoding"
	"fmt"
	"strings"
)

// ==================== 类型标签 ====================

// TypeKind 类型标签的种类
type TypeKind string

const (
	TypeKindBool    TypeKind = "bool"
	TypeKindU8      TypeKind = "u8"
	TypeKindU16     TypeKind = "u16"
	TypeKindU32     TypeKind = "u32"
	TypeKindU64     TypeKind = "u64"
	TypeKindU128    TypeKind = "u128"
	TypeKindU256    TypeKind = "u256"
	TypeKindAddress TypeKind = "address"
	TypeKindVector  TypeKind = "vector"
	TypeKindStruct  TypeKind = "struct"
)

// TypeTag 运行时类型标签
//
// 🎯 **类型标签系统**：
// 描述对象内容与泛型参数的静态类型。结构类型由
// "0x<addr>::<module>::<name>[<泛型参数,...>]" 唯一确定，
// 向量类型携带元素类型，其余为标量原生类型。
//
// 类型标签实现 TextMarshaler/TextUnmarshaler，在 JSON 中以规范
// 字符串形式出现，便于缓存文件与脚本文件的人工阅读。
type TypeTag struct {
	Kind TypeKind

	// 结构类型字段（Kind == TypeKindStruct 时有效）
	Address    Address
	Module     string
	Name       string
	TypeParams []TypeTag

	// 向量元素类型（Kind == TypeKindVector 时有效）
	Elem *TypeTag
}

// ==================== 构造函数 ====================

// NewPrimitiveTag 构造标量原生类型标签
func NewPrimitiveTag(kind TypeKind) TypeTag {
	return TypeTag{Kind: kind}
}

// NewVectorTag 构造向量类型标签
func NewVectorTag(elem TypeTag) TypeTag {
	e := elem
	return TypeTag{Kind: TypeKindVector, Elem: &e}
}

// NewStructTag 构造结构类型标签
func NewStructTag(addr Address, module, name string, params ...TypeTag) TypeTag {
	return TypeTag{
		Kind:       TypeKindStruct,
		Address:    addr,
		Module:     module,
		Name:       name,
		TypeParams: params,
	}
}

// GasCoinType 燃料占位对象的规范类型标签
//
// 脚本执行器合成的燃料对象与沙箱预置的余额对象统一使用
// 该标签，内容为8字节小端u64余额。
func GasCoinType() TypeTag {
	var addr Address
	addr[31] = 0x02
	return NewStructTag(addr, "coin", "Coin")
}

// ==================== 解析 ====================

// ParseTypeTag 解析类型字符串为类型标签
//
// 支持的语法：
//   - 标量：bool / u8 / u16 / u32 / u64 / u128 / u256 / address
//   - 向量：vector<T>
//   - 结构：0x<addr>::<module>::<Name> 以及带泛型的 ...<T1, T2>
//
// 解析失败返回错误，调用方应将其归类为类型解析失败。
func ParseTypeTag(s string) (TypeTag, error) {
	p := &typeTagParser{input: s}
	tag, err := p.parse()
	if err != nil {
		return TypeTag{}, fmt.Errorf("parse type tag %q: %w", s, err)
	}
	p.skipSpace()
	if p.pos != len(p.input) {
		return TypeTag{}, fmt.Errorf("parse type tag %q: trailing characters at offset %d", s, p.pos)
	}
	return tag, nil
}

// MustParseTypeTag 解析类型字符串，失败时panic（仅用于测试）
func MustParseTypeTag(s string) TypeTag {
	tag, err := ParseTypeTag(s)
	if err != nil {
		panic(err)
	}
	return tag
}

// typeTagParser 递归下降解析器
type typeTagParser struct {
	input string
	pos   int
}

func (p *typeTagParser) parse() (TypeTag, error) {
	p.skipSpace()
	ident := p.readIdent()
	if ident == "" {
		return TypeTag{}, fmt.Errorf("expected type at offset %d", p.pos)
	}

	switch ident {
	case "bool", "u8", "u16", "u32", "u64", "u128", "u256", "address":
		return TypeTag{Kind: TypeKind(ident)}, nil
	case "vector":
		if !p.consume('<') {
			return TypeTag{}, fmt.Errorf("vector requires element type at offset %d", p.pos)
		}
		elem, err := p.parse()
		if err != nil {
			return TypeTag{}, err
		}
		p.skipSpace()
		if !p.consume('>') {
			return TypeTag{}, fmt.Errorf("unterminated vector at offset %d", p.pos)
		}
		return NewVectorTag(elem), nil
	}

	// 结构类型：<addr>::<module>::<name>[<params>]
	if !p.consumeSep() {
		return TypeTag{}, fmt.Errorf("unknown type %q at offset %d", ident, p.pos)
	}
	addr, err := ParseAddress(ident)
	if err != nil {
		return TypeTag{}, err
	}
	module := p.readIdent()
	if module == "" || !p.consumeSep() {
		return TypeTag{}, fmt.Errorf("expected <module>::<name> at offset %d", p.pos)
	}
	name := p.readIdent()
	if name == "" {
		return TypeTag{}, fmt.Errorf("expected struct name at offset %d", p.pos)
	}

	tag := TypeTag{Kind: TypeKindStruct, Address: addr, Module: module, Name: name}
	p.skipSpace()
	if p.consume('<') {
		for {
			param, err := p.parse()
			if err != nil {
				return TypeTag{}, err
			}
			tag.TypeParams = append(tag.TypeParams, param)
			p.skipSpace()
			if p.consume(',') {
				continue
			}
			if p.consume('>') {
				break
			}
			return TypeTag{}, fmt.Errorf("expected ',' or '>' at offset %d", p.pos)
		}
	}
	return tag, nil
}

func (p *typeTagParser) skipSpace() {
	for p.pos < len(p.input) && (p.input[p.pos] == ' ' || p.input[p.pos] == '\t') {
		p.pos++
	}
}

func (p *typeTagParser) readIdent() string {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.input) {
		c := p.input[p.pos]
		if c == ':' || c == '<' || c == '>' || c == ',' || c == ' ' || c == '\t' {
			break
		}
		p.pos++
	}
	return p.input[start:p.pos]
}

func (p *typeTagParser) consume(c byte) bool {
	p.skipSpace()
	if p.pos < len(p.input) && p.input[p.pos] == c {
		p.pos++
		return true
	}
	return false
}

// consumeSep 消费 "::" 分隔符
func (p *typeTagParser) consumeSep() bool {
	if p.pos+1 < len(p.input) && p.input[p.pos] == ':' && p.input[p.pos+1] == ':' {
		p.pos += 2
		return true
	}
	return false
}

// ==================== 方法 ====================

// String 返回规范字符串形式
func (t TypeTag) String() string {
	switch t.Kind {
	case TypeKindVector:
		if t.Elem == nil {
			return "vector<?>"
		}
		return "vector<" + t.Elem.String() + ">"
	case TypeKindStruct:
		var sb strings.Builder
		sb.WriteString(t.Address.String())
		sb.WriteString("::")
		sb.WriteString(t.Module)
		sb.WriteString("::")
		sb.WriteString(t.Name)
		if len(t.TypeParams) > 0 {
			sb.WriteString("<")
			for i, param := range t.TypeParams {
				if i > 0 {
					sb.WriteString(", ")
				}
				sb.WriteString(param.String())
			}
			sb.WriteString(">")
		}
		return sb.String()
	case "":
		return "?"
	default:
		return string(t.Kind)
	}
}

// Equal 判断两个类型标签是否结构相等
func (t TypeTag) Equal(other TypeTag) bool {
	if t.Kind != other.Kind {
		return false
	}
	switch t.Kind {
	case TypeKindVector:
		if (t.Elem == nil) != (other.Elem == nil) {
			return false
		}
		return t.Elem == nil || t.Elem.Equal(*other.Elem)
	case TypeKindStruct:
		if t.Address != other.Address || t.Module != other.Module || t.Name != other.Name {
			return false
		}
		if len(t.TypeParams) != len(other.TypeParams) {
			return false
		}
		for i := range t.TypeParams {
			if !t.TypeParams[i].Equal(other.TypeParams[i]) {
				return false
			}
		}
		return true
	default:
		return true
	}
}

// IsZero 判断是否为空标签
func (t TypeTag) IsZero() bool {
	return t.Kind == ""
}

// IsStruct 判断是否为结构类型
func (t TypeTag) IsStruct() bool {
	return t.Kind == TypeKindStruct
}

// MarshalText 以规范字符串形式序列化（供map键与日志使用）
func (t TypeTag) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText 从规范字符串形式反序列化
func (t *TypeTag) UnmarshalText(data []byte) error {
	tag, err := ParseTypeTag(string(data))
	if err != nil {
		return err
	}
	*t = tag
	return nil
}

var (
	_ encoding.TextMarshaler   = TypeTag{}
	_ encoding.TextUnmarshaler = (*TypeTag)(nil)
)
