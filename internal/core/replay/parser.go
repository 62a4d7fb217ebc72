package replay

import (
	"fmt"
	"strings"

	sandboxif "github.com/sandvm/v1/pkg/interfaces/sandbox"
	"github.com/sandvm/v1/pkg/types"
)

// 归档记录解析
//
// 📋 归档记录中的地址、对象ID与类型均为字符串，这里把它们
// 还原为强类型脚本与执行选项。任何解析失败都是基础设施错误，
// 回放不会带着残缺的脚本继续执行。

// parsedRecord 解析完成的回放材料
type parsedRecord struct {
	script  *types.Script
	opts    sandboxif.ExecOptions
	objects []*types.Object
}

// parseRecord 把归档记录解析为可执行材料
func parseRecord(rec *types.ReplayRecord) (*parsedRecord, error) {
	if rec == nil {
		return nil, fmt.Errorf("record is nil")
	}

	script, err := parseScript(&rec.Tx)
	if err != nil {
		return nil, err
	}

	opts, err := buildExecOptions(rec)
	if err != nil {
		return nil, err
	}

	objects := make([]*types.Object, 0, len(rec.Objects))
	for i := range rec.Objects {
		obj, err := parseRecordedObject(&rec.Objects[i])
		if err != nil {
			return nil, fmt.Errorf("object %d: %w", i, err)
		}
		objects = append(objects, obj)
	}

	return &parsedRecord{script: script, opts: opts, objects: objects}, nil
}

// parseScript 还原脚本的输入与命令序列
func parseScript(tx *types.RecordedTransaction) (*types.Script, error) {
	inputs := make([]types.Input, 0, len(tx.Inputs))
	for i, in := range tx.Inputs {
		parsed, err := parseInput(in)
		if err != nil {
			return nil, fmt.Errorf("input %d: %w", i, err)
		}
		inputs = append(inputs, parsed)
	}

	commands := make([]types.Command, 0, len(tx.Commands))
	for i, rc := range tx.Commands {
		cmd, err := parseCommand(rc)
		if err != nil {
			return nil, fmt.Errorf("command %d: %w", i, err)
		}
		commands = append(commands, cmd)
	}

	return &types.Script{Inputs: inputs, Commands: commands}, nil
}

// parseInput 还原单个脚本输入
//
// 对象类输入的版本原样钉住，执行时按记录版本校验。
func parseInput(in types.RecordedInput) (types.Input, error) {
	switch types.InputKind(in.Kind) {
	case types.InputPure:
		return types.PureInput(in.Value), nil

	case types.InputObject:
		id, err := types.ParseObjectID(in.ObjectID)
		if err != nil {
			return types.Input{}, err
		}
		return types.ObjectInput(types.ObjectRef{ID: id, Version: in.Version}), nil

	case types.InputSharedObject:
		id, err := types.ParseObjectID(in.ObjectID)
		if err != nil {
			return types.Input{}, err
		}
		parsed := types.SharedInput(id, in.Mutable)
		parsed.Object.Version = in.Version
		return parsed, nil

	case types.InputReceiving:
		id, err := types.ParseObjectID(in.ObjectID)
		if err != nil {
			return types.Input{}, err
		}
		return types.ReceivingInput(types.ObjectRef{ID: id, Version: in.Version}), nil

	default:
		return types.Input{}, fmt.Errorf("unknown input kind %q", in.Kind)
	}
}

// parseCommand 还原单条命令
func parseCommand(rc types.RecordedCommand) (types.Command, error) {
	switch types.CommandKind(rc.Kind) {
	case types.CommandMoveCall:
		addr, err := types.ParseAddress(rc.Package)
		if err != nil {
			return types.Command{}, fmt.Errorf("package address: %w", err)
		}
		typeArgs, err := parseTypeArgs(rc.TypeArgs)
		if err != nil {
			return types.Command{}, err
		}
		return types.NewMoveCall(types.NewModuleID(addr, rc.Module), rc.Function, typeArgs, rc.Args...), nil

	case types.CommandSplitValue:
		if rc.Source == nil {
			return types.Command{}, fmt.Errorf("split_value without source")
		}
		return types.NewSplitValue(*rc.Source, rc.Amounts...), nil

	case types.CommandMergeValues:
		if rc.Target == nil {
			return types.Command{}, fmt.Errorf("merge_values without target")
		}
		return types.NewMergeValues(*rc.Target, rc.Sources...), nil

	case types.CommandTransferObjects:
		if rc.Recipient == nil {
			return types.Command{}, fmt.Errorf("transfer_objects without recipient")
		}
		return types.NewTransferObjects(*rc.Recipient, rc.Objects...), nil

	case types.CommandMakeVector:
		var elem *types.TypeTag
		if rc.ElemType != "" {
			tag, err := types.ParseTypeTag(rc.ElemType)
			if err != nil {
				return types.Command{}, fmt.Errorf("resolve element type %q: %w", rc.ElemType, err)
			}
			elem = &tag
		}
		return types.NewMakeVector(elem, rc.Args...), nil

	case types.CommandPublish:
		addr, err := types.ParseAddress(rc.Package)
		if err != nil {
			return types.Command{}, fmt.Errorf("publish address: %w", err)
		}
		modules := make([]types.NamedModule, 0, len(rc.Modules))
		for _, m := range rc.Modules {
			modules = append(modules, types.NamedModule{Name: m.Name, Code: m.Code})
		}
		return types.NewPublish(addr, modules...), nil

	case types.CommandUpgrade:
		addr, err := types.ParseAddress(rc.Package)
		if err != nil {
			return types.Command{}, fmt.Errorf("upgrade address: %w", err)
		}
		if len(rc.Modules) != 1 {
			return types.Command{}, fmt.Errorf("upgrade wants exactly one module, got %d", len(rc.Modules))
		}
		return types.NewUpgrade(types.NewModuleID(addr, rc.Modules[0].Name), rc.Modules[0].Code), nil

	default:
		return types.Command{}, fmt.Errorf("unknown command kind %q", rc.Kind)
	}
}

// parseTypeArgs 解析类型参数字符串
func parseTypeArgs(raw []string) ([]types.TypeTag, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	tags := make([]types.TypeTag, 0, len(raw))
	for _, s := range raw {
		tag, err := types.ParseTypeTag(s)
		if err != nil {
			return nil, fmt.Errorf("resolve type %q: %w", s, err)
		}
		tags = append(tags, tag)
	}
	return tags, nil
}

// parseRecordedObject 还原输入对象快照
func parseRecordedObject(ro *types.RecordedObject) (*types.Object, error) {
	id, err := types.ParseObjectID(ro.ID)
	if err != nil {
		return nil, err
	}
	typ, err := types.ParseTypeTag(ro.Type)
	if err != nil {
		return nil, fmt.Errorf("resolve type %q: %w", ro.Type, err)
	}
	owner, err := parseOwner(ro.Owner)
	if err != nil {
		return nil, err
	}
	return &types.Object{
		ID:       id,
		Version:  ro.Version,
		Type:     typ,
		Owner:    owner,
		Contents: ro.Contents,
	}, nil
}

// parseOwner 还原所有者描述，形式与 Owner.String 对偶
func parseOwner(s string) (types.Owner, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "shared":
		return types.SharedOwner(), nil

	case s == "immutable":
		return types.ImmutableOwner(), nil

	case strings.HasPrefix(s, "address(") && strings.HasSuffix(s, ")"):
		addr, err := types.ParseAddress(s[len("address(") : len(s)-1])
		if err != nil {
			return types.Owner{}, fmt.Errorf("owner address: %w", err)
		}
		return types.OwnedBy(addr), nil

	case strings.HasPrefix(s, "object(") && strings.HasSuffix(s, ")"):
		parent, err := types.ParseObjectID(s[len("object(") : len(s)-1])
		if err != nil {
			return types.Owner{}, fmt.Errorf("owner parent: %w", err)
		}
		return types.ChildOf(parent), nil

	default:
		return types.Owner{}, fmt.Errorf("unknown owner form %q", s)
	}
}

// buildExecOptions 组装回放执行选项
//
// 发送者、纪元、燃料预算与链上摘要照记录原样传入，新鲜对象ID
// 因此按记录中的序列派生。记录效果点名的燃料对象若有输入快照，
// 以真实对象引用执行；否则退回按预算合成占位对象。
func buildExecOptions(rec *types.ReplayRecord) (sandboxif.ExecOptions, error) {
	sender, err := types.ParseAddress(rec.Tx.Sender)
	if err != nil {
		return sandboxif.ExecOptions{}, fmt.Errorf("sender: %w", err)
	}
	digest, err := types.ParseDigest(rec.Tx.Digest)
	if err != nil {
		return sandboxif.ExecOptions{}, fmt.Errorf("digest: %w", err)
	}

	opts := sandboxif.ExecOptions{
		Sender:    sender,
		Epoch:     rec.Tx.Epoch,
		Digest:    digest,
		GasBudget: rec.Tx.GasBudget,
	}

	if rec.Effects.GasObject != "" {
		if gasID, err := types.ParseObjectID(rec.Effects.GasObject); err == nil {
			for i := range rec.Objects {
				roID, err := types.ParseObjectID(rec.Objects[i].ID)
				if err == nil && roID == gasID {
					opts.GasRef = &types.ObjectRef{ID: gasID, Version: rec.Objects[i].Version}
					break
				}
			}
		}
	}

	return opts, nil
}
