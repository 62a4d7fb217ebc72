package types

import "fmt"

// 脚本与命令类型定义
//
// 🎯 **脚本模型**
//
// 一个脚本由一组输入与一串命令构成，命令按序执行并共享
// 同一执行上下文：前一命令的结果可被后续命令引用，
// 新鲜度计数器与确定性时钟/随机计数在整个脚本内连续。

// ==================== 脚本输入 ====================

// InputKind 脚本输入种类
type InputKind string

const (
	// InputPure 纯字节输入（数值、地址、序列化参数等）
	InputPure InputKind = "pure"
	// InputObject 地址所有对象输入
	InputObject InputKind = "object"
	// InputSharedObject 共享对象输入
	InputSharedObject InputKind = "shared_object"
	// InputReceiving 待接收对象输入（stage/take 语义）
	InputReceiving InputKind = "receiving"
)

// Input 脚本输入
type Input struct {
	Kind InputKind `json:"kind"`

	// Pure 纯字节内容（Kind == InputPure）
	Pure []byte `json:"pure,omitempty"`

	// Object 对象引用（对象类输入）
	Object *ObjectRef `json:"object,omitempty"`

	// Mutable 共享对象是否以可变方式引用
	Mutable bool `json:"mutable,omitempty"`
}

// PureInput 构造纯字节输入
func PureInput(data []byte) Input {
	return Input{Kind: InputPure, Pure: data}
}

// ObjectInput 构造地址所有对象输入
func ObjectInput(ref ObjectRef) Input {
	r := ref
	return Input{Kind: InputObject, Object: &r}
}

// SharedInput 构造共享对象输入
func SharedInput(id ObjectID, mutable bool) Input {
	return Input{Kind: InputSharedObject, Object: &ObjectRef{ID: id}, Mutable: mutable}
}

// ReceivingInput 构造待接收对象输入
func ReceivingInput(ref ObjectRef) Input {
	r := ref
	return Input{Kind: InputReceiving, Object: &r}
}

// ==================== 命令参数 ====================

// ArgumentKind 命令参数种类
type ArgumentKind string

const (
	// ArgInput 引用脚本输入 Inputs[Index]
	ArgInput ArgumentKind = "input"
	// ArgResult 引用第 Index 条命令的首个结果值
	ArgResult ArgumentKind = "result"
	// ArgNestedResult 引用第 Index 条命令的第 Sub 个结果值
	ArgNestedResult ArgumentKind = "nested_result"
	// ArgGas 引用合成的燃料占位对象
	ArgGas ArgumentKind = "gas"
)

// Argument 命令参数：对输入或先前结果的引用
type Argument struct {
	Kind  ArgumentKind `json:"kind"`
	Index uint16       `json:"index,omitempty"`
	Sub   uint16       `json:"sub,omitempty"`
}

// InputArg 构造输入引用
func InputArg(i uint16) Argument {
	return Argument{Kind: ArgInput, Index: i}
}

// ResultArg 构造结果引用
func ResultArg(i uint16) Argument {
	return Argument{Kind: ArgResult, Index: i}
}

// NestedResultArg 构造嵌套结果引用
func NestedResultArg(i, j uint16) Argument {
	return Argument{Kind: ArgNestedResult, Index: i, Sub: j}
}

// GasArg 构造燃料占位引用
func GasArg() Argument {
	return Argument{Kind: ArgGas}
}

// String 返回参数的可读表示
func (a Argument) String() string {
	switch a.Kind {
	case ArgInput:
		return fmt.Sprintf("Input(%d)", a.Index)
	case ArgResult:
		return fmt.Sprintf("Result(%d)", a.Index)
	case ArgNestedResult:
		return fmt.Sprintf("NestedResult(%d,%d)", a.Index, a.Sub)
	case ArgGas:
		return "GasCoin"
	default:
		return "Argument(?)"
	}
}

// ==================== 命令 ====================

// CommandKind 命令种类
type CommandKind string

const (
	CommandMoveCall        CommandKind = "move_call"
	CommandSplitValue      CommandKind = "split_value"
	CommandMergeValues     CommandKind = "merge_values"
	CommandTransferObjects CommandKind = "transfer_objects"
	CommandMakeVector      CommandKind = "make_vector"
	CommandPublish         CommandKind = "publish"
	CommandUpgrade         CommandKind = "upgrade"
)

// Command 脚本命令（带判别字段的联合类型）
//
// Kind 决定哪个载荷字段有效，其余字段为nil。
type Command struct {
	Kind CommandKind `json:"kind"`

	MoveCall *MoveCallCommand        `json:"move_call,omitempty"`
	Split    *SplitValueCommand      `json:"split,omitempty"`
	Merge    *MergeValuesCommand     `json:"merge,omitempty"`
	Transfer *TransferObjectsCommand `json:"transfer,omitempty"`
	MakeVec  *MakeVectorCommand      `json:"make_vector,omitempty"`
	Publish  *PublishCommand         `json:"publish,omitempty"`
	Upgrade  *UpgradeCommand         `json:"upgrade,omitempty"`
}

// MoveCallCommand 调用已注册模块的导出函数
type MoveCallCommand struct {
	Module   ModuleID   `json:"module"`
	Function string     `json:"function"`
	TypeArgs []TypeTag  `json:"type_args,omitempty"`
	Args     []Argument `json:"args,omitempty"`
}

// SplitValueCommand 从来源值中按数额拆分出新值
//
// Source 必须解析为可分割的余额对象（或燃料占位），
// Amounts 为纯u64数额参数，每个数额产生一个新对象。
type SplitValueCommand struct {
	Source  Argument   `json:"source"`
	Amounts []Argument `json:"amounts"`
}

// MergeValuesCommand 将多个来源值并入目标值
//
// 来源对象被删除，其余额累加进目标对象。
type MergeValuesCommand struct {
	Target  Argument   `json:"target"`
	Sources []Argument `json:"sources"`
}

// TransferObjectsCommand 将一组对象转移给接收者
type TransferObjectsCommand struct {
	Objects   []Argument `json:"objects"`
	Recipient Argument   `json:"recipient"`
}

// MakeVectorCommand 将同类元素拼接为向量值
type MakeVectorCommand struct {
	Elem  *TypeTag   `json:"elem,omitempty"`
	Elems []Argument `json:"elems"`
}

// NamedModule 发布命令中的命名模块
type NamedModule struct {
	Name string `json:"name"`
	Code []byte `json:"code"`
}

// PublishCommand 在脚本执行中发布新模块
type PublishCommand struct {
	Address Address       `json:"address"`
	Modules []NamedModule `json:"modules"`
}

// UpgradeCommand 升级既有模块的字节码
type UpgradeCommand struct {
	Module ModuleID `json:"module"`
	Code   []byte   `json:"code"`
}

// NewMoveCall 构造模块调用命令
func NewMoveCall(module ModuleID, function string, typeArgs []TypeTag, args ...Argument) Command {
	return Command{Kind: CommandMoveCall, MoveCall: &MoveCallCommand{
		Module: module, Function: function, TypeArgs: typeArgs, Args: args,
	}}
}

// NewSplitValue 构造拆分命令
func NewSplitValue(source Argument, amounts ...Argument) Command {
	return Command{Kind: CommandSplitValue, Split: &SplitValueCommand{Source: source, Amounts: amounts}}
}

// NewMergeValues 构造合并命令
func NewMergeValues(target Argument, sources ...Argument) Command {
	return Command{Kind: CommandMergeValues, Merge: &MergeValuesCommand{Target: target, Sources: sources}}
}

// NewTransferObjects 构造转移命令
func NewTransferObjects(recipient Argument, objects ...Argument) Command {
	return Command{Kind: CommandTransferObjects, Transfer: &TransferObjectsCommand{Objects: objects, Recipient: recipient}}
}

// NewMakeVector 构造向量拼接命令
func NewMakeVector(elem *TypeTag, elems ...Argument) Command {
	return Command{Kind: CommandMakeVector, MakeVec: &MakeVectorCommand{Elem: elem, Elems: elems}}
}

// NewPublish 构造发布命令
func NewPublish(addr Address, modules ...NamedModule) Command {
	return Command{Kind: CommandPublish, Publish: &PublishCommand{Address: addr, Modules: modules}}
}

// NewUpgrade 构造升级命令
func NewUpgrade(module ModuleID, code []byte) Command {
	return Command{Kind: CommandUpgrade, Upgrade: &UpgradeCommand{Module: module, Code: code}}
}

// String 返回命令的可读表示
func (c Command) String() string {
	switch c.Kind {
	case CommandMoveCall:
		if c.MoveCall != nil {
			return fmt.Sprintf("MoveCall(%s::%s)", c.MoveCall.Module, c.MoveCall.Function)
		}
	case CommandSplitValue:
		return "SplitValue"
	case CommandMergeValues:
		return "MergeValues"
	case CommandTransferObjects:
		return "TransferObjects"
	case CommandMakeVector:
		return "MakeVector"
	case CommandPublish:
		return "Publish"
	case CommandUpgrade:
		return "Upgrade"
	}
	return string(c.Kind)
}

// ==================== 脚本 ====================

// Script 待执行的命令脚本
type Script struct {
	Inputs   []Input   `json:"inputs"`
	Commands []Command `json:"commands"`
}

// ==================== 命令结果值 ====================

// Value 命令产生的结果值
//
// 值要么是纯字节（Bytes），要么背靠一个对象（Ref 非nil，
// Bytes 此时存放对象内容的快照）。
type Value struct {
	Bytes []byte     `json:"bytes,omitempty"`
	Ref   *ObjectRef `json:"ref,omitempty"`
}

// PureValue 构造纯字节结果值
func PureValue(b []byte) Value {
	return Value{Bytes: b}
}

// ObjectValue 构造对象结果值
func ObjectValue(ref ObjectRef, contents []byte) Value {
	r := ref
	return Value{Bytes: contents, Ref: &r}
}

// IsObject 判断该值是否背靠对象
func (v Value) IsObject() bool {
	return v.Ref != nil
}
