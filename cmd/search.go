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
	"strings"
	"time"

	"github.com/spf13/cobra"
	jww "github.com/spf13/jwalterweatherman"
	"github.com/spf13/viper"

	"gitlab.com/intumsg/client/oracle"
)

// searchCmd queries the trust graph for identities matching a pattern.
var searchCmd = &cobra.Command{
	Use:   "search [pattern]",
	Short: "Search the trust graph for identities",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		client := initClient()

		ctx, cancel := context.WithTimeout(
			context.Background(), 30*time.Second)
		defer cancel()

		results, err := client.Search(ctx, args[0])
		if err != nil {
			jww.FATAL.Panicf("Search failed: %+v", err)
		}
		printIdentities(results)
	},
}

// discoverCmd lists the highest-staked people or communities on the graph.
var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Discover top identities or communities on the trust graph",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		client := initClient()

		ctx, cancel := context.WithTimeout(
			context.Background(), 30*time.Second)
		defer cancel()

		var results []oracle.Identity
		var err error
		if viper.GetBool("communities") {
			results, err = client.DiscoverCommunities(ctx)
		} else {
			results, err = client.DiscoverIdentities(ctx)
		}
		if err != nil {
			jww.FATAL.Panicf("Discovery failed: %+v", err)
		}
		printIdentities(results)
	},
}

func printIdentities(list []oracle.Identity) {
	if len(list) == 0 {
		fmt.Println("No results.")
		return
	}
	for i := range list {
		ident := &list[i]
		fmt.Printf("%s  %s  (magnitude %d)\n", ident.ID,
			ident.DisplayName, ident.Magnitude)
		if len(ident.Claims) > 0 {
			fmt.Printf("\tclaims: %s\n", strings.Join(ident.Claims, ", "))
		}
		if len(ident.Communities) > 0 {
			fmt.Printf("\tcommunities: %s\n",
				strings.Join(ident.Communities, ", "))
		}
	}
}

func init() {
	rootCmd.AddCommand(searchCmd)

	discoverCmd.Flags().Bool("communities", false,
		"Discover communities instead of people")
	viper.BindPFlag("communities",
		discoverCmd.Flags().Lookup("communities"))
	rootCmd.AddCommand(discoverCmd)
}
