package main

import (
	"context"
	"fmt"
	"time"

	"github.com/holochain/holochain-core/pkg/network"
	"github.com/holochain/holochain-core/pkg/wire"
	"github.com/spf13/cobra"
)

// adminCmd groups the §6 admin ws text commands as CLI subcommands,
// each dialing a running conductor's admin interface and printing its
// reply — the CLI-driven counterpart of registerAdminHandlers.
var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Issue an admin command to a running conductor",
}

func init() {
	adminCmd.PersistentFlags().String("addr", "ws://127.0.0.1:1234", "admin websocket URL")

	registerDna := &cobra.Command{
		Use:   "register-dna DNA_HASH_HEX",
		Short: "Register a DNA hash, creating its space",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := wire.Marshal(struct{ DnaHashHex string }{DnaHashHex: args[0]})
			if err != nil {
				return err
			}
			return callAdmin(cmd, network.CmdRegisterDna, payload)
		},
	}

	listDnas := &cobra.Command{
		Use:   "list-dnas",
		Short: "List registered DNA hashes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return callAdmin(cmd, network.CmdListDnas, nil)
		},
	}

	dumpNetworkStats := &cobra.Command{
		Use:   "dump-network-stats",
		Short: "Dump network and per-space statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return callAdmin(cmd, network.CmdDumpNetworkStats, nil)
		},
	}

	dumpFullState := &cobra.Command{
		Use:   "dump-full-state",
		Short: "Dump a full conductor state snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			return callAdmin(cmd, network.CmdDumpFullState, nil)
		},
	}

	adminCmd.AddCommand(registerDna, listDnas, dumpNetworkStats, dumpFullState)

	for name, kind := range map[string]network.AdminCommand{
		"install-app-bundle":        network.CmdInstallAppBundle,
		"enable-app":                network.CmdEnableApp,
		"list-app-interfaces":       network.CmdListAppInterfaces,
		"attach-app-interface":      network.CmdAttachAppInterface,
		"grant-zome-call-capability": network.CmdGrantZomeCallCapability,
		"list-cell-ids":             network.CmdListCellIds,
	} {
		kind := kind
		adminCmd.AddCommand(&cobra.Command{
			Use:   name,
			Short: fmt.Sprintf("%s (out of scope: reports a not-implemented error)", kind),
			RunE: func(cmd *cobra.Command, args []string) error {
				return callAdmin(cmd, kind, nil)
			},
		})
	}
}

func callAdmin(cmd *cobra.Command, command network.AdminCommand, payload []byte) error {
	addr, _ := cmd.Flags().GetString("addr")

	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()

	client, err := network.DialAdmin(ctx, addr)
	if err != nil {
		return err
	}
	defer client.Close()

	resp, err := client.Call(command, payload)
	if err != nil {
		return err
	}
	if resp.Error != "" {
		return fmt.Errorf("%s", resp.Error)
	}
	fmt.Println(string(resp.Payload))
	return nil
}
