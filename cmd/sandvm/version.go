package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sandvm/v1/internal/app/version"
)

// versionCmd 版本信息
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "显示版本信息",
	Long:  "打印版本号与构建信息，不启动沙箱",
	RunE: func(cmd *cobra.Command, args []string) error {
		if jsonOutput() {
			return printJSON(version.GetBuildInfo())
		}
		fmt.Println(version.GetFullVersion())
		return nil
	},
}
