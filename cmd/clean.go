package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tanq16/linkcheck/internal/output"
	"github.com/tanq16/linkcheck/internal/utils"
)

func newCleanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clean [dir]",
		Short: "Remove files left behind by interrupted runs",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := os.TempDir()
			if len(args) == 0 {
				cfg, err := utils.LoadConfig(configPath)
				if err == nil {
					dir = cfg.TempDir
				}
			} else {
				dir = args[0]
			}
			removed, err := utils.CleanTempDirs(dir)
			if err != nil {
				return fmt.Errorf("error cleaning %s: %w", dir, err)
			}
			fmt.Println(output.FSuccess(fmt.Sprintf("%s removed %d run director(ies) from %s", output.StyleSymbols["pass"], removed, dir)))
			return nil
		},
	}
}
