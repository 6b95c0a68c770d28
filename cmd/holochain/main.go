// Command holochain runs the core node runtime's conductor process
// and drives its admin websocket interface from the CLI, the §6
// external interface surface.
package main

import (
	"fmt"
	"os"

	"github.com/holochain/holochain-core/pkg/log"
	"github.com/spf13/cobra"
)

func main() {
	os.Exit(run())
}

// run recovers a panicking command into the §6 exit code 101, keeping
// main itself trivial the way cmd/warren's main.go is.
func run() (code int) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "panic: %v\n", r)
			code = 101
		}
	}()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

var rootCmd = &cobra.Command{
	Use:   "holochain",
	Short: "holochain runs and administers a core node runtime conductor",
	Long: `holochain is the core node runtime's conductor process: it opens
per-space storage, runs the sharded gossip engine, and serves the §6
network and admin/app interfaces.`,
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(adminCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}
