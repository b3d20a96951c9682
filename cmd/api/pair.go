package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var pairCmd = &cobra.Command{
	Use:   "pair",
	Short: "Manage this device's couple",
	Long: `Pair this device with a couple without going through the HTTP API.

Available subcommands:
  create - create a new couple and print its code
  join   - join an existing couple by code or invite token
  unlink - forget the couple on this device only`,
}

var pairCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new couple",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := openRuntime(cmd.Context())
		if err != nil {
			return err
		}
		defer rt.Close()
		state, err := rt.service.CreateCouple(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), state.CoupleID)
		return nil
	},
}

var pairJoinCmd = &cobra.Command{
	Use:   "join <code>",
	Short: "Join an existing couple",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := openRuntime(cmd.Context())
		if err != nil {
			return err
		}
		defer rt.Close()
		state, err := rt.service.JoinCouple(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "joined %s (%d users)\n", state.CoupleID, len(state.Users))
		return nil
	},
}

var pairUnlinkCmd = &cobra.Command{
	Use:   "unlink",
	Short: "Forget the couple on this device",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := openRuntime(cmd.Context())
		if err != nil {
			return err
		}
		defer rt.Close()
		if err := rt.service.Unlink(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "unlinked")
		return nil
	},
}

func init() {
	pairCmd.AddCommand(pairCreateCmd, pairJoinCmd, pairUnlinkCmd)
}
