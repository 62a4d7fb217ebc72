package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	sandboxif "github.com/sandvm/v1/pkg/interfaces/sandbox"
	"github.com/sandvm/v1/pkg/types"
	"github.com/sandvm/v1/pkg/utils"
)

var (
	runSender    string
	runEpoch     uint64
	runDigest    string
	runGasBudget uint64
	epochAdvance bool
)

// deployCmd 部署模块
var deployCmd = &cobra.Command{
	Use:   "deploy <address> <name=wasm-file> [name=wasm-file...]",
	Short: "部署模块",
	Long:  "将一批WASM模块发布到指定地址下，模块立即可被脚本调用",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := ensureApp()
		if err != nil {
			return err
		}

		address, err := a.GetAddressManager().DecodeAddress(args[0])
		if err != nil {
			return fmt.Errorf("解析发布地址失败: %w", err)
		}

		modules := make(map[string][]byte, len(args)-1)
		for _, spec := range args[1:] {
			name, file, ok := strings.Cut(spec, "=")
			if !ok {
				return fmt.Errorf("模块参数格式应为 name=file.wasm: %s", spec)
			}

			code, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("读取WASM文件失败: %w", err)
			}

			if !utils.IsWASMBytecode(code) {
				return fmt.Errorf("无效的WASM文件 %s: 魔数不匹配", file)
			}

			modules[name] = code
		}

		ctx := context.Background()
		if err := a.GetEnvironment().Deploy(ctx, address, modules); err != nil {
			return fmt.Errorf("部署失败: %w", err)
		}

		pterm.Success.Printf("已部署 %d 个模块到 %s\n", len(modules), address.Hex())

		if jsonOutput() {
			names := make([]string, 0, len(modules))
			for name := range modules {
				names = append(names, name)
			}
			return printJSON(map[string]interface{}{
				"address": address.Hex(),
				"modules": names,
			})
		}
		return nil
	},
}

// runCmd 执行脚本
var runCmd = &cobra.Command{
	Use:   "run <script.json>",
	Short: "执行脚本",
	Long: `在模拟环境中执行一个命令脚本并打印效果

脚本文件为JSON格式，包含 inputs 与 commands 两个数组，
与回放记录中的交易结构一致。`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("读取脚本文件失败: %w", err)
		}

		var script types.Script
		if err := json.Unmarshal(data, &script); err != nil {
			return fmt.Errorf("解析脚本文件失败: %w", err)
		}

		a, err := ensureApp()
		if err != nil {
			return err
		}

		opts := sandboxif.ExecOptions{
			Epoch:     runEpoch,
			GasBudget: runGasBudget,
		}

		if runSender != "" {
			sender, err := a.GetAddressManager().DecodeAddress(runSender)
			if err != nil {
				return fmt.Errorf("解析发送者地址失败: %w", err)
			}
			opts.Sender = sender
		}

		if runDigest != "" {
			digest, err := types.ParseDigest(runDigest)
			if err != nil {
				return fmt.Errorf("解析执行摘要失败: %w", err)
			}
			opts.Digest = digest
		}

		ctx := context.Background()
		result, err := a.GetEnvironment().Execute(ctx, &script, opts)
		if err != nil {
			return fmt.Errorf("执行脚本失败: %w", err)
		}

		renderScriptResult(result)

		if jsonOutput() {
			return printJSON(result)
		}
		return nil
	},
}

// objectCmd 查询对象
var objectCmd = &cobra.Command{
	Use:   "object <object-id>",
	Short: "查询对象",
	Long:  "读取规范存储中对象的当前状态",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := types.ParseObjectID(args[0])
		if err != nil {
			return fmt.Errorf("解析对象ID失败: %w", err)
		}

		a, err := ensureApp()
		if err != nil {
			return err
		}

		ctx := context.Background()
		obj, err := a.GetEnvironment().ReadObject(ctx, id)
		if err != nil {
			return fmt.Errorf("读取对象失败: %w", err)
		}

		if jsonOutput() {
			return printJSON(obj)
		}

		table := pterm.TableData{
			{"字段", "值"},
			{"ID", obj.ID.Hex()},
			{"版本", strconv.FormatUint(obj.Version, 10)},
			{"类型", obj.Type.String()},
			{"所有者", obj.Owner.String()},
			{"内容", fmt.Sprintf("0x%x (%d 字节)", obj.Contents, len(obj.Contents))},
		}
		if obj.Type.Equal(types.GasCoinType()) {
			if balance, ok := utils.U64FromLE(obj.Contents); ok {
				table = append(table, []string{"余额", utils.FormatBalance(balance)})
			}
		}
		return pterm.DefaultTable.WithHasHeader().WithHeaderRowSeparator("-").WithData(table).Render()
	},
}

// seedCmd 播种测试对象
var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "播种测试对象",
	Long:  "向模拟环境直接写入测试对象，绕过脚本流程",
}

// seedCoinCmd 铸造代币
var seedCoinCmd = &cobra.Command{
	Use:   "coin <owner> <balance>",
	Short: "铸造代币",
	Long:  "为指定所有者铸造一枚指定余额的代币对象",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := ensureApp()
		if err != nil {
			return err
		}

		owner, err := a.GetAddressManager().DecodeAddress(args[0])
		if err != nil {
			return fmt.Errorf("解析所有者地址失败: %w", err)
		}

		balance, err := utils.ParseBalanceSafely(args[1])
		if err != nil {
			return fmt.Errorf("解析余额失败: %w", err)
		}

		ctx := context.Background()
		id, err := a.GetEnvironment().SeedCoin(ctx, owner, balance)
		if err != nil {
			return fmt.Errorf("铸造代币失败: %w", err)
		}

		pterm.Success.Printf("代币已铸造: %s (余额 %s)\n", id.Hex(), utils.FormatBalance(balance))

		if jsonOutput() {
			return printJSON(map[string]interface{}{
				"id":      id.Hex(),
				"owner":   owner.Hex(),
				"balance": balance,
			})
		}
		return nil
	},
}

// seedObjectCmd 写入对象
var seedObjectCmd = &cobra.Command{
	Use:   "object <object.json>",
	Short: "写入对象",
	Long:  "从JSON文件读取一个对象定义并写入规范存储",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("读取对象文件失败: %w", err)
		}

		var obj types.Object
		if err := json.Unmarshal(data, &obj); err != nil {
			return fmt.Errorf("解析对象文件失败: %w", err)
		}

		a, err := ensureApp()
		if err != nil {
			return err
		}

		ctx := context.Background()
		if err := a.GetEnvironment().SeedObject(ctx, &obj); err != nil {
			return fmt.Errorf("写入对象失败: %w", err)
		}

		pterm.Success.Printf("对象已写入: %s\n", obj.ID.Hex())
		return nil
	},
}

// epochCmd 纪元管理
var epochCmd = &cobra.Command{
	Use:   "epoch",
	Short: "查看或推进纪元",
	Long:  "打印当前纪元号，--advance 时先递增再打印",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := ensureApp()
		if err != nil {
			return err
		}

		env := a.GetEnvironment()
		epoch := env.Epoch()
		if epochAdvance {
			epoch = env.AdvanceEpoch()
			pterm.Info.Printf("纪元已推进到 %d\n", epoch)
		} else {
			pterm.Info.Printf("当前纪元: %d\n", epoch)
		}

		if jsonOutput() {
			return printJSON(map[string]interface{}{"epoch": epoch})
		}
		return nil
	},
}

// resetCmd 重置状态
var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "重置环境状态",
	Long:  "清空全部对象与新鲜度计数器，已部署模块保留",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := ensureApp()
		if err != nil {
			return err
		}

		ctx := context.Background()
		if err := a.GetEnvironment().ResetState(ctx); err != nil {
			return fmt.Errorf("重置状态失败: %w", err)
		}

		pterm.Success.Println("环境状态已重置")
		return nil
	},
}

// renderScriptResult 以人类可读形式渲染脚本执行结果
func renderScriptResult(result *types.ScriptResult) {
	if result.IsSuccess() {
		pterm.Success.Println("执行成功")
	} else {
		pterm.Error.Printf("执行失败: %s\n", result.Effects.Failure.String())
	}

	pterm.Info.Printf("执行摘要: %s\n", result.Digest.Hex())

	if len(result.Effects.Changes) > 0 {
		table := pterm.TableData{{"变更", "对象", "版本", "所有者"}}
		for _, change := range result.Effects.Changes {
			table = append(table, []string{
				string(change.Kind),
				change.ID.Hex(),
				strconv.FormatUint(change.Version, 10),
				change.Owner.String(),
			})
		}
		_ = pterm.DefaultTable.WithHasHeader().WithHeaderRowSeparator("-").WithData(table).Render()
	}

	for _, event := range result.Effects.Events {
		pterm.Info.Printf("事件 #%d %s (来自 %s)\n", event.Seq, event.Type.String(), event.Module.String())
	}

	if result.Effects.GasObject != nil {
		pterm.Info.Printf("燃料对象: %s\n", result.Effects.GasObject.Hex())
	}

	if globalFlags.Verbose && result.Trace != nil {
		renderTrace(result.Trace)
	}
}

// renderTrace 渲染执行轨迹（详细模式）
func renderTrace(trace *types.ExecutionTrace) {
	for _, entry := range trace.Natives {
		pterm.Debug.Printf("原生调用 #%d %s 状态=%d\n", entry.Seq, entry.Name, entry.Status)
	}
	for _, entry := range trace.Objects {
		pterm.Debug.Printf("对象访问 #%d %s %s\n", entry.Seq, entry.ID.Hex(), entry.Access)
	}
	for _, module := range trace.Modules {
		pterm.Debug.Printf("装载模块 %s\n", module.String())
	}
}

func init() {
	seedCmd.AddCommand(seedCoinCmd)
	seedCmd.AddCommand(seedObjectCmd)

	// run 标志
	runCmd.Flags().StringVar(&runSender, "sender", "", "发送者地址 (默认使用环境默认发送者)")
	runCmd.Flags().Uint64Var(&runEpoch, "epoch", 0, "纪元号 (默认使用环境当前纪元)")
	runCmd.Flags().StringVar(&runDigest, "digest", "", "执行摘要 (默认由环境派生)")
	runCmd.Flags().Uint64Var(&runGasBudget, "gas-budget", 0, "燃料占位对象初始余额")

	// epoch 标志
	epochCmd.Flags().BoolVar(&epochAdvance, "advance", false, "递增纪元号")
}
