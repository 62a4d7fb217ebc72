package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/sandvm/v1/configs"
	"github.com/sandvm/v1/internal/app"
)

// GlobalFlags 全局标志
type GlobalFlags struct {
	ConfigPath   string // 配置文件路径
	OutputFormat string // 输出格式
	Verbose      bool   // 详细模式
}

var (
	globalFlags GlobalFlags
	sandboxApp  app.App
)

// rootCmd 根命令
var rootCmd = &cobra.Command{
	Use:   "sandvm",
	Short: "SandVM 离线合约模拟沙箱",
	Long: `SandVM - 确定性离线合约执行沙箱

在本地模拟环境中部署WASM合约模块、执行命令脚本、
检查对象状态，并对照链上记录回放历史交易:
- 部署模块、执行脚本、查询对象
- 播种测试代币、推进纪元、重置状态
- 单笔与批量交易回放，产出一致性评分

所有执行完全离线且确定: 相同输入产生逐字节一致的效果。`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if globalFlags.Verbose {
			pterm.EnableDebugMessages()
		}
	},
}

// Execute 执行根命令
func Execute() {
	err := rootCmd.Execute()
	shutdownApp()
	if err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}

func main() {
	// 添加 panic recovery，确保任何 panic 都能被捕获
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "\n❌ [PANIC] 程序发生严重错误: %v\n", r)
			os.Exit(1)
		}
	}()

	Execute()
}

func init() {
	// 全局标志
	rootCmd.PersistentFlags().StringVar(&globalFlags.ConfigPath, "config", "", "配置文件路径 (默认: configs/sandvm.json)")
	rootCmd.PersistentFlags().StringVarP(&globalFlags.OutputFormat, "output", "o", "pretty", "输出格式: pretty|json")
	rootCmd.PersistentFlags().BoolVarP(&globalFlags.Verbose, "verbose", "v", false, "详细输出")

	// 添加子命令
	rootCmd.AddCommand(deployCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(objectCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(epochCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(versionCmd)
}

// ensureApp 按需启动应用容器
//
// 同一次命令行调用内复用已启动的实例，版本等纯本地命令
// 不会触发容器启动。
func ensureApp() (app.App, error) {
	if sandboxApp != nil {
		return sandboxApp, nil
	}

	var startOptions []app.Option
	if globalFlags.ConfigPath != "" {
		startOptions = append(startOptions, app.WithConfigFile(globalFlags.ConfigPath))
	} else if _, err := os.Stat("configs/sandvm.json"); os.IsNotExist(err) {
		// 工作目录没有默认配置文件时回落到编译期嵌入的配置
		startOptions = append(startOptions, app.WithEmbeddedConfig(configs.GetDefaultConfig()))
	}

	started, err := app.Start(startOptions...)
	if err != nil {
		return nil, fmt.Errorf("启动沙箱失败: %w", err)
	}

	sandboxApp = started
	return sandboxApp, nil
}

// shutdownApp 停止应用容器（未启动时为空操作）
func shutdownApp() {
	if sandboxApp == nil {
		return
	}
	if err := sandboxApp.Stop(); err != nil {
		fmt.Fprintf(os.Stderr, "⚠️ 停止沙箱时出错: %v\n", err)
	}
	sandboxApp = nil
}

// jsonOutput 判断是否以JSON输出结果
func jsonOutput() bool {
	return globalFlags.OutputFormat == "json"
}

// printJSON 将结构化结果以缩进JSON打印到标准输出
func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化输出失败: %w", err)
	}
	fmt.Println(string(data))
	return nil
}
