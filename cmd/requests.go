////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 intu messenger                                            //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file                                                               //
////////////////////////////////////////////////////////////////////////////////

// Handles the conversation lifecycle subcommands: listing, accepting, and
// rejecting pending contact requests.

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	jww "github.com/spf13/jwalterweatherman"

	"gitlab.com/intumsg/client/conversations"
)

// listCmd prints the local conversation list, newest first.
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List conversations, newest first",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		client := initClient()

		list := client.Conversations().Conversations()
		if len(list) == 0 {
			fmt.Println("No conversations.")
			return
		}
		me := client.Session().GetUser().Address
		for _, c := range list {
			partner := c.Partner(me)
			fmt.Printf("%s  %s  %s  unread=%d", c.ID, partner,
				c.Status, c.UnreadCount)
			if c.CollateralLocked > 0 {
				fmt.Printf("  collateral=%d", c.CollateralLocked)
			}
			fmt.Println()
		}
	},
}

// acceptCmd admits a pending contact request.
var acceptCmd = &cobra.Command{
	Use:   "accept [conversation id]",
	Short: "Accept a pending contact request",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		client := initClient()

		c, err := client.Conversations().AcceptRequest(args[0])
		if err != nil {
			jww.FATAL.Panicf("Failed to accept request: %+v", err)
		}
		fmt.Printf("Accepted %s: now %s, collateral released\n",
			c.ID, c.Status)
	},
}

// rejectCmd turns down a pending contact request, keeping the collateral
// record.
var rejectCmd = &cobra.Command{
	Use:   "reject [conversation id]",
	Short: "Reject a pending contact request",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		client := initClient()

		id := args[0]
		c, err := client.Conversations().Get(id)
		if err != nil {
			jww.FATAL.Panicf("%+v", err)
		}
		if c.Status == conversations.RequestPending &&
			!askToConfirm(fmt.Sprintf("Reject the request from %s and "+
				"claim its collateral (%d)?",
				c.Partner(client.Session().GetUser().Address),
				c.CollateralLocked)) {
			fmt.Println("Aborted.")
			return
		}

		c, err = client.Conversations().RejectRequest(id)
		if err != nil {
			jww.FATAL.Panicf("Failed to reject request: %+v", err)
		}
		fmt.Printf("Rejected %s (collateral record %d)\n",
			c.ID, c.CollateralLocked)
	},
}

// resetCmd clears a rejected conversation so the pair can be re-gated.
var resetCmd = &cobra.Command{
	Use:   "reset [conversation id]",
	Short: "Clear a rejected conversation so contact can be retried",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		client := initClient()

		if err := client.Conversations().Reset(args[0]); err != nil {
			jww.FATAL.Panicf("Failed to reset conversation: %+v", err)
		}
		fmt.Printf("Reset %s\n", args[0])
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(acceptCmd)
	rootCmd.AddCommand(rejectCmd)
	rootCmd.AddCommand(resetCmd)
}
