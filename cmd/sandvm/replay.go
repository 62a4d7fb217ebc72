package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/sandvm/v1/pkg/types"
)

var (
	replayDigestsFile string
	replayPurgeCache  bool
)

// replayCmd 回放链上交易
var replayCmd = &cobra.Command{
	Use:   "replay <digest>",
	Short: "回放链上交易",
	Long: `从归档端点拉取交易记录，在模拟环境中重新执行，
并对照链上效果产出一致性评分 [0.0, 1.0]。

记录会缓存在本地，重复回放同一笔交易免网络。`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		digest, err := types.ParseDigest(args[0])
		if err != nil {
			return fmt.Errorf("解析交易摘要失败: %w", err)
		}

		a, err := ensureApp()
		if err != nil {
			return err
		}

		ctx := context.Background()
		report, err := a.GetReplayer().Replay(ctx, digest)
		if err != nil {
			return fmt.Errorf("回放失败: %w", err)
		}

		renderReplayReport(report)

		if jsonOutput() {
			return printJSON(report)
		}
		return nil
	},
}

// replayBatchCmd 批量回放
var replayBatchCmd = &cobra.Command{
	Use:   "batch [digest...]",
	Short: "批量回放",
	Long: `并行回放一批交易并打印聚合统计

摘要可以直接作为参数给出，也可以通过 --file 从文件读取
（每行一个摘要，#开头的行与空行忽略）。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		raw := append([]string{}, args...)

		if replayDigestsFile != "" {
			fromFile, err := readDigestLines(replayDigestsFile)
			if err != nil {
				return err
			}
			raw = append(raw, fromFile...)
		}

		if len(raw) == 0 {
			return fmt.Errorf("没有待回放的交易摘要")
		}

		digests := make([]types.Digest, 0, len(raw))
		for _, s := range raw {
			digest, err := types.ParseDigest(s)
			if err != nil {
				return fmt.Errorf("解析交易摘要 %s 失败: %w", s, err)
			}
			digests = append(digests, digest)
		}

		a, err := ensureApp()
		if err != nil {
			return err
		}

		ctx := context.Background()
		summary, err := a.GetReplayer().ReplayBatch(ctx, digests)
		if err != nil {
			return fmt.Errorf("批量回放失败: %w", err)
		}

		renderBatchSummary(summary)

		if jsonOutput() {
			return printJSON(summary)
		}
		return nil
	},
}

// replayCachedCmd 列出本地缓存的交易记录
var replayCachedCmd = &cobra.Command{
	Use:   "cached",
	Short: "列出本地已缓存的交易记录",
	Long: `枚举回放缓存持久层中的交易摘要

输出每行一个摘要，可以存成文件后通过 batch --file 整批回放。
带 --purge 时清空缓存，后续回放将重新走归档端点。`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := ensureApp()
		if err != nil {
			return err
		}

		ctx := context.Background()
		if replayPurgeCache {
			removed, err := a.GetReplayer().PurgeCache(ctx)
			if err != nil {
				return fmt.Errorf("清空缓存失败: %w", err)
			}
			if jsonOutput() {
				return printJSON(map[string]int{"purged": removed})
			}
			pterm.Success.Printf("已清除 %d 条缓存记录\n", removed)
			return nil
		}

		digests, err := a.GetReplayer().CachedDigests(ctx)
		if err != nil {
			return fmt.Errorf("枚举缓存记录失败: %w", err)
		}

		if jsonOutput() {
			return printJSON(digests)
		}

		if len(digests) == 0 {
			pterm.Info.Println("回放缓存为空")
			return nil
		}
		pterm.Info.Printf("本地已缓存 %d 条交易记录\n", len(digests))
		for _, digest := range digests {
			fmt.Println(digest)
		}
		return nil
	},
}

// readDigestLines 从文件读取摘要列表
func readDigestLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开摘要文件失败: %w", err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("读取摘要文件失败: %w", err)
	}
	return lines, nil
}

// renderReplayReport 以人类可读形式渲染回放报告
func renderReplayReport(report *types.ReplayReport) {
	if report.Match {
		pterm.Success.Printf("回放一致: %s (得分 %.4f)\n", report.Digest, report.Score)
	} else {
		pterm.Warning.Printf("回放存在偏差: %s (得分 %.4f)\n", report.Digest, report.Score)
	}

	source := "归档端点"
	if report.FromCache {
		source = "本地缓存"
	}
	pterm.Info.Printf("记录来源: %s，耗时 %s\n", source, report.Duration)

	if len(report.Notes) > 0 {
		table := pterm.TableData{{"分量", "偏差说明"}}
		for _, note := range report.Notes {
			table = append(table, []string{note.Component, note.Detail})
		}
		_ = pterm.DefaultTable.WithHasHeader().WithHeaderRowSeparator("-").WithData(table).Render()
	}

	if globalFlags.Verbose && report.Produced != nil {
		pterm.Debug.Printf("本地效果: 状态=%s 变更=%d 事件=%d\n",
			report.Produced.Status, len(report.Produced.Changes), len(report.Produced.Events))
	}
}

// renderBatchSummary 以人类可读形式渲染批次统计
func renderBatchSummary(summary *types.BatchSummary) {
	pterm.Info.Printf("批次 %s 完成，共 %d 笔，耗时 %s\n", summary.JobID, summary.Total, summary.Duration)

	stats := pterm.TableData{
		{"完全一致", "存在偏差", "失败", "平均得分"},
		{
			strconv.Itoa(summary.Perfect),
			strconv.Itoa(summary.Mismatched),
			strconv.Itoa(summary.Failed),
			fmt.Sprintf("%.4f", summary.MeanScore),
		},
	}
	_ = pterm.DefaultTable.WithHasHeader().WithHeaderRowSeparator("-").WithData(stats).Render()

	table := pterm.TableData{{"摘要", "得分", "结果"}}
	for _, report := range summary.Reports {
		outcome := "一致"
		if report.Err != "" {
			outcome = "失败: " + report.Err
		} else if !report.Match {
			outcome = "偏差"
		}
		table = append(table, []string{report.Digest, fmt.Sprintf("%.4f", report.Score), outcome})
	}
	_ = pterm.DefaultTable.WithHasHeader().WithHeaderRowSeparator("-").WithData(table).Render()

	if summary.Failed > 0 {
		pterm.Warning.Printf("%d 笔交易因基础设施故障未完成回放\n", summary.Failed)
	}
}

func init() {
	replayCmd.AddCommand(replayBatchCmd)
	replayCmd.AddCommand(replayCachedCmd)

	// batch 标志
	replayBatchCmd.Flags().StringVar(&replayDigestsFile, "file", "", "摘要列表文件 (每行一个)")

	// cached 标志
	replayCachedCmd.Flags().BoolVar(&replayPurgeCache, "purge", false, "清空本地回放缓存")
}
