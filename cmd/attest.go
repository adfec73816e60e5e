////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 intu messenger                                            //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file                                                               //
////////////////////////////////////////////////////////////////////////////////

package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	jww "github.com/spf13/jwalterweatherman"
)

// attestCmd vouches for an identity, raising its local trust score.
var attestCmd = &cobra.Command{
	Use:   "attest [id]",
	Short: "Vouch for an identity, raising its local trust score",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		client := initClient()
		targetID := args[0]

		ctx, cancel := context.WithTimeout(
			context.Background(), 30*time.Second)
		defer cancel()

		before := client.Score(ctx, targetID)
		after := client.Attest(targetID)
		jww.INFO.Printf("Attested %s: %d -> %d", targetID, before, after)
		fmt.Printf("Trust score for %s: %d -> %d\n",
			targetID, before, after)
	},
}

func init() {
	rootCmd.AddCommand(attestCmd)
}
