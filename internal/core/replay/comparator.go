package replay

import (
	"bytes"
	"fmt"

	"github.com/sandvm/v1/pkg/types"
)

// 效果比对
//
// 🎯 **加权评分**：
// 本地产出效果与链上记录效果按六个分量比对，加权汇总为
// [0.0, 1.0] 的一致性得分。状态一致是回放的首要判据，权重
// 最高；其余分量平分剩余权重。
//
// 比对不一致不是Go错误：得分与偏差说明一起进入报告。

// 分量权重，合计 1.0
const (
	weightStatus   = 0.40
	weightCreated  = 0.12
	weightMutated  = 0.12
	weightDeleted  = 0.12
	weightVersions = 0.12
	weightEvents   = 0.12
)

// compareEffects 比对记录效果与本地效果
//
// gasTolerance > 0 时，本地燃料对象与链上燃料对象ID不同造成
// 的孤立变更条目在评分前剔除，不产生偏差说明：合成占位对象
// 的ID与真实燃料币必然不同，这不是语义偏差。
//
// 双方都失败时只比状态：本地中止会回滚全部变更并丢弃事件，
// 而链上记录仍可能留有燃料扣费，逐项比对没有意义。
func compareEffects(recorded *types.RecordedEffects, produced *types.Effects, gasTolerance int) (float64, []types.MismatchNote) {
	var notes []types.MismatchNote

	recSuccess := recorded.Status == string(types.ExecutionSuccess)
	locSuccess := produced.IsSuccess()

	statusScore := 1.0
	switch {
	case recSuccess && locSuccess:
		// 状态一致

	case !recSuccess && !locSuccess:
		recCode, recHas := recordedAbortCode(recorded)
		locCode, locHas := producedAbortCode(produced)
		if recHas != locHas || (recHas && recCode != locCode) {
			statusScore = 0.5
			notes = append(notes, types.MismatchNote{
				Component: "status",
				Detail:    fmt.Sprintf("中止码不一致: 本地 %s, 记录 %s", abortCodeString(locCode, locHas), abortCodeString(recCode, recHas)),
			})
		}
		// 双失败短路：仅状态分量计分
		return statusScore, notes

	default:
		statusScore = 0
		notes = append(notes, types.MismatchNote{
			Component: "status",
			Detail:    fmt.Sprintf("状态不一致: 本地 %s, 记录 %s", produced.Status, recorded.Status),
		})
	}

	recCreated := recordedChangeSet(recorded.Created)
	recMutated := recordedChangeSet(recorded.Mutated)
	recDeleted := recordedChangeSet(recorded.Deleted)
	locCreated := producedChangeSet(produced, types.ChangeCreated)
	locMutated := producedChangeSet(produced, types.ChangeMutated)
	locDeleted := producedChangeSet(produced, types.ChangeDeleted)

	absorbGasEntries(gasTolerance, recorded, produced,
		[]changeSet{recMutated, recDeleted},
		[]changeSet{locMutated, locDeleted})

	createdScore := noteSetScore(&notes, "created", "新建", recCreated, locCreated)
	mutatedScore := noteSetScore(&notes, "mutated", "修改", recMutated, locMutated)
	deletedScore := noteSetScore(&notes, "deleted", "删除", recDeleted, locDeleted)
	versionsScore := compareVersions(&notes, recCreated, recMutated, locCreated, locMutated)
	eventsScore := compareEvents(&notes, recorded.Events, produced.Events)

	if statusScore == 1 && createdScore == 1 && mutatedScore == 1 &&
		deletedScore == 1 && versionsScore == 1 && eventsScore == 1 {
		return 1.0, nil
	}

	score := weightStatus*statusScore +
		weightCreated*createdScore +
		weightMutated*mutatedScore +
		weightDeleted*deletedScore +
		weightVersions*versionsScore +
		weightEvents*eventsScore
	return score, notes
}

// ==================== 状态 ====================

func recordedAbortCode(rec *types.RecordedEffects) (uint64, bool) {
	if rec.AbortCode == nil {
		return 0, false
	}
	return *rec.AbortCode, true
}

func producedAbortCode(eff *types.Effects) (uint64, bool) {
	f := eff.Failure
	if f == nil || f.Kind != types.FailureAbort || f.Abort == nil {
		return 0, false
	}
	return f.Abort.Code, true
}

func abortCodeString(code uint64, has bool) string {
	if !has {
		return "无中止码"
	}
	return fmt.Sprintf("%d", code)
}

// ==================== 变更集合 ====================

// changeSet 对象ID归一键 → 末尾版本
type changeSet map[string]uint64

func recordedChangeSet(changes []types.RecordedChange) changeSet {
	set := make(changeSet, len(changes))
	for _, ch := range changes {
		set[canonicalID(ch.ID)] = ch.Version
	}
	return set
}

func producedChangeSet(eff *types.Effects, kind types.ChangeKind) changeSet {
	changes := eff.ChangesOfKind(kind)
	set := make(changeSet, len(changes))
	for _, ch := range changes {
		set[ch.ID.Hex()] = ch.Version
	}
	return set
}

// absorbGasEntries 剔除燃料对象ID不同导致的孤立变更条目
//
// 每侧只剔除对方集合里没有的同侧燃料条目，双方引用同一燃料
// 对象（预置引用路径）时两侧条目互相匹配，无需剔除。
func absorbGasEntries(tolerance int, recorded *types.RecordedEffects, produced *types.Effects, recSets, locSets []changeSet) {
	if tolerance <= 0 {
		return
	}

	var recKey string
	if recorded.GasObject != "" {
		recKey = canonicalID(recorded.GasObject)
	}
	var locKey string
	if produced.GasObject != nil {
		locKey = produced.GasObject.Hex()
	}
	if recKey == "" && locKey == "" {
		return
	}
	if recKey == locKey {
		return
	}

	for i := range recSets {
		if _, matched := locSets[i][recKey]; recKey != "" && !matched {
			delete(recSets[i], recKey)
		}
		if _, matched := recSets[i][locKey]; locKey != "" && !matched {
			delete(locSets[i], locKey)
		}
	}
}

// noteSetScore 集合相似度：|交集| / max(|记录|, |本地|)，双空为 1.0
func noteSetScore(notes *[]types.MismatchNote, component, label string, rec, loc changeSet) float64 {
	if len(rec) == 0 && len(loc) == 0 {
		return 1.0
	}

	inter := 0
	for k := range rec {
		if _, ok := loc[k]; ok {
			inter++
		}
	}
	denom := len(rec)
	if len(loc) > denom {
		denom = len(loc)
	}
	score := float64(inter) / float64(denom)
	if score < 1.0 {
		*notes = append(*notes, types.MismatchNote{
			Component: component,
			Detail:    fmt.Sprintf("%s对象不一致: 本地 %d 项, 记录 %d 项, 交集 %d 项", label, len(loc), len(rec), inter),
		})
	}
	return score
}

// compareVersions 对两侧都出现的对象比对末尾版本
func compareVersions(notes *[]types.MismatchNote, recCreated, recMutated, locCreated, locMutated changeSet) float64 {
	recAll := mergeSets(recCreated, recMutated)
	locAll := mergeSets(locCreated, locMutated)

	total := 0
	matched := 0
	for key, recVer := range recAll {
		locVer, ok := locAll[key]
		if !ok {
			continue
		}
		total++
		if recVer == locVer {
			matched++
			continue
		}
		*notes = append(*notes, types.MismatchNote{
			Component: "versions",
			Detail:    fmt.Sprintf("对象 %s 版本不一致: 本地 %d, 记录 %d", key, locVer, recVer),
		})
	}
	if total == 0 {
		return 1.0
	}
	return float64(matched) / float64(total)
}

func mergeSets(a, b changeSet) changeSet {
	out := make(changeSet, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		out[k] = v
	}
	return out
}

// ==================== 事件 ====================

// compareEvents 按序逐条比对事件的类型与负载
func compareEvents(notes *[]types.MismatchNote, recorded []types.RecordedEvent, produced []types.Event) float64 {
	if len(recorded) == 0 && len(produced) == 0 {
		return 1.0
	}

	common := len(recorded)
	if len(produced) < common {
		common = len(produced)
	}
	matched := 0
	for i := 0; i < common; i++ {
		if eventMatches(recorded[i], produced[i]) {
			matched++
		}
	}

	denom := len(recorded)
	if len(produced) > denom {
		denom = len(produced)
	}
	score := float64(matched) / float64(denom)
	if score < 1.0 {
		*notes = append(*notes, types.MismatchNote{
			Component: "events",
			Detail:    fmt.Sprintf("事件流不一致: 本地 %d 条, 记录 %d 条, 匹配 %d 条", len(produced), len(recorded), matched),
		})
	}
	return score
}

// eventMatches 比对单条事件：类型标签与负载字节都一致
//
// 记录侧类型经 ParseTypeTag 归一后比对，规避短形式地址
// 与完整形式的字面差异；解析不了时退回字符串比对。
func eventMatches(rec types.RecordedEvent, loc types.Event) bool {
	if !bytes.Equal(rec.Data, loc.Data) {
		return false
	}
	if tag, err := types.ParseTypeTag(rec.Type); err == nil {
		return tag.Equal(loc.Type)
	}
	return rec.Type == loc.Type.String()
}
