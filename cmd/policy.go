////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 intu messenger                                            //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file                                                               //
////////////////////////////////////////////////////////////////////////////////

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	jww "github.com/spf13/jwalterweatherman"
	"github.com/spf13/viper"
)

// policyCmd shows or edits the local admission policy.
var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Show or edit the local admission policy",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		client := initClient()

		p := client.Policy()
		edited := false

		if cmd.Flags().Changed("minScore") {
			p.MinTrustScore = viper.GetInt("minScore")
			edited = true
		}
		if cmd.Flags().Changed("collateral") {
			p.CollateralAmount = viper.GetUint64("collateral")
			p.CollateralRequired = p.CollateralAmount > 0
			edited = true
		}
		if block := viper.GetString("block"); block != "" {
			p.BlockList = append(p.BlockList, block)
			edited = true
		}
		if allow := viper.GetString("allow"); allow != "" {
			p.AllowList = append(p.AllowList, allow)
			edited = true
		}

		if edited {
			if err := client.SetPolicy(p); err != nil {
				jww.FATAL.Panicf("Failed to store policy: %+v", err)
			}
		}

		fmt.Printf("Minimum trust score: %d\n", p.MinTrustScore)
		fmt.Printf("Collateral required: %t (amount %d)\n",
			p.CollateralRequired, p.CollateralAmount)
		fmt.Printf("Allow list: %v\n", p.AllowList)
		fmt.Printf("Block list: %v\n", p.BlockList)
	},
}

func init() {
	policyCmd.Flags().Int("minScore", 0,
		"Score at or above which senders are admitted directly")
	viper.BindPFlag("minScore", policyCmd.Flags().Lookup("minScore"))

	policyCmd.Flags().Uint64("collateral", 0,
		"Bond below-threshold senders must lock (0 disables requests)")
	viper.BindPFlag("collateral", policyCmd.Flags().Lookup("collateral"))

	policyCmd.Flags().String("block", "",
		"Add an identity to the block list")
	viper.BindPFlag("block", policyCmd.Flags().Lookup("block"))

	policyCmd.Flags().String("allow", "",
		"Add an identity to the allow list")
	viper.BindPFlag("allow", policyCmd.Flags().Lookup("allow"))

	rootCmd.AddCommand(policyCmd)
}
