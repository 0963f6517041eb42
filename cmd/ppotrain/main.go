// Command ppotrain trains a PPO agent with a Gaussian policy on the
// controller reaching task.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "ppotrain",
		Short: "Train controller agents with PPO",
		Long: `ppotrain trains a Gaussian PPO agent on the controller reaching
task and saves episodic returns, learning statistics and policy
snapshots to disk.`,
		SilenceUsage: true,
	}
	root.AddCommand(newTrainCmd(viper.New()))
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
