package types

import "time"

// 重放层类型定义
//
// 🎯 **历史交易重放**
//
// 重放子系统从归档端点（或本地缓存）取回历史交易的结构、
// 输入对象版本与链上记录的效果，在沙箱中重新执行后将产出
// 效果与记录效果比对打分。
//
// 归档记录中的类型、地址与ID均为字符串形式，解析阶段负责
// 将其还原为强类型脚本；无法解析的类型字符串归类为
// 类型解析失败。

// ==================== 归档记录 ====================

// RecordedTransaction 归档端点返回的交易结构
type RecordedTransaction struct {
	// Digest 交易摘要（0x十六进制）
	Digest string `json:"digest"`

	// Sender 发起者地址
	Sender string `json:"sender"`

	// Epoch 执行所在纪元
	Epoch uint64 `json:"epoch"`

	// GasBudget 燃料预算（合成燃料占位对象的初始余额）
	GasBudget uint64 `json:"gas_budget"`

	// Inputs 脚本输入
	Inputs []RecordedInput `json:"inputs"`

	// Commands 命令序列
	Commands []RecordedCommand `json:"commands"`
}

// RecordedInput 归档记录中的脚本输入
type RecordedInput struct {
	// Kind 输入种类：pure / object / shared_object / receiving
	Kind string `json:"kind"`

	// Value 纯字节输入内容（base64，Kind == pure）
	Value []byte `json:"value,omitempty"`

	// ObjectID 对象ID（对象类输入）
	ObjectID string `json:"object_id,omitempty"`

	// Version 观察到的对象版本
	Version uint64 `json:"version,omitempty"`

	// Mutable 共享对象是否可变引用
	Mutable bool `json:"mutable,omitempty"`
}

// RecordedCommand 归档记录中的命令
//
// 类型参数以字符串形式出现，解析阶段经 ParseTypeTag 还原。
type RecordedCommand struct {
	// Kind 命令种类（与 CommandKind 取值一致）
	Kind string `json:"kind"`

	// Package 目标模块地址（move_call / upgrade）
	Package string `json:"package,omitempty"`

	// Module 目标模块名
	Module string `json:"module,omitempty"`

	// Function 目标函数名（move_call）
	Function string `json:"function,omitempty"`

	// TypeArgs 类型参数字符串
	TypeArgs []string `json:"type_args,omitempty"`

	// Args 命令参数
	Args []Argument `json:"args,omitempty"`

	// Source / Target / Sources / Amounts / Objects / Recipient
	// 拆分、合并、转移命令的参数载荷
	Source    *Argument  `json:"source,omitempty"`
	Target    *Argument  `json:"target,omitempty"`
	Sources   []Argument `json:"sources,omitempty"`
	Amounts   []Argument `json:"amounts,omitempty"`
	Objects   []Argument `json:"objects,omitempty"`
	Recipient *Argument  `json:"recipient,omitempty"`

	// ElemType 向量元素类型字符串（make_vector）
	ElemType string `json:"elem_type,omitempty"`

	// Modules 发布的模块（publish / upgrade）
	Modules []RecordedModule `json:"modules,omitempty"`
}

// RecordedModule 归档记录中的模块字节码
type RecordedModule struct {
	Name string `json:"name"`
	Code []byte `json:"code"`
}

// RecordedObject 归档记录中的输入对象快照
type RecordedObject struct {
	ID       string `json:"id"`
	Version  uint64 `json:"version"`
	Type     string `json:"type"`
	Owner    string `json:"owner"`      // address(0x..) / shared / immutable / object(0x..)
	Contents []byte `json:"contents"`   // base64
}

// RecordedChange 归档记录中的对象变更
type RecordedChange struct {
	ID      string `json:"id"`
	Version uint64 `json:"version"`
}

// RecordedEvent 归档记录中的事件
type RecordedEvent struct {
	Type string `json:"type"`
	Data []byte `json:"data"`
}

// RecordedEffects 链上记录的执行效果
type RecordedEffects struct {
	Status    string           `json:"status"` // success / failure
	AbortCode *uint64          `json:"abort_code,omitempty"`
	Created   []RecordedChange `json:"created,omitempty"`
	Mutated   []RecordedChange `json:"mutated,omitempty"`
	Deleted   []RecordedChange `json:"deleted,omitempty"`
	Events    []RecordedEvent  `json:"events,omitempty"`
	GasObject string           `json:"gas_object,omitempty"`
}

// ReplayRecord 一笔交易重放所需的全部材料
type ReplayRecord struct {
	Tx      RecordedTransaction `json:"tx"`
	Objects []RecordedObject    `json:"objects"`
	Effects RecordedEffects     `json:"effects"`
}

// ==================== 比对报告 ====================

// MismatchNote 单项偏差说明
type MismatchNote struct {
	// Component 偏差所在分量：status / created / mutated / deleted / versions / events
	Component string `json:"component"`

	// Detail 具体说明
	Detail string `json:"detail"`
}

// ReplayReport 单笔交易的重放比对报告
type ReplayReport struct {
	// Digest 交易摘要
	Digest string `json:"digest"`

	// Score 一致性得分 [0.0, 1.0]，1.0 表示完全一致
	Score float64 `json:"score"`

	// Match 是否完全一致
	Match bool `json:"match"`

	// Notes 逐项偏差说明
	Notes []MismatchNote `json:"notes,omitempty"`

	// Produced 沙箱产出的效果
	Produced *Effects `json:"produced,omitempty"`

	// FromCache 材料是否来自本地缓存
	FromCache bool `json:"from_cache"`

	// Duration 重放耗时
	Duration time.Duration `json:"duration"`

	// Err 重放基础设施错误（取数失败、解析失败等；比对不一致不算错误）
	Err string `json:"error,omitempty"`
}

// BatchSummary 批量重放的汇总结果
type BatchSummary struct {
	// JobID 批次任务ID
	JobID string `json:"job_id"`

	// Total 总笔数
	Total int `json:"total"`

	// Perfect 完全一致笔数
	Perfect int `json:"perfect"`

	// Mismatched 存在偏差笔数
	Mismatched int `json:"mismatched"`

	// Failed 基础设施失败笔数
	Failed int `json:"failed"`

	// MeanScore 平均得分（不含失败笔）
	MeanScore float64 `json:"mean_score"`

	// Reports 逐笔报告（按输入顺序）
	Reports []ReplayReport `json:"reports"`

	// Duration 批次总耗时
	Duration time.Duration `json:"duration"`
}
