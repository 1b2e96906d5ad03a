package cmd

import (
	"fmt"
	"kbsync/internal/autostart"
	"os"

	"github.com/spf13/cobra"
)

var installCmd = &cobra.Command{
	Use:   "install <category> <project>",
	Short: "Run 'kbsync watch' for a project at login",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		execPath, err := os.Executable()
		if err != nil {
			return fmt.Errorf("failed to get executable path: %w", err)
		}

		u := autostart.Unit{ExecPath: execPath, Category: args[0], Project: args[1]}
		if err := autostart.New().Install(u); err != nil {
			return err
		}

		fmt.Printf("installed %s\n", u.Name())
		return nil
	},
}

var uninstallCmd = &cobra.Command{
	Use:   "uninstall <category> <project>",
	Short: "Stop running 'kbsync watch' for a project at login",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		u := autostart.Unit{Category: args[0], Project: args[1]}

		as := autostart.New()
		ok, err := as.IsInstalled(u)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Printf("%s is not installed\n", u.Name())
			return nil
		}

		if err := as.Uninstall(u); err != nil {
			return err
		}

		fmt.Printf("uninstalled %s\n", u.Name())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(installCmd, uninstallCmd)
}
