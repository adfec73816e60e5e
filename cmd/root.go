////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 intu messenger                                            //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file                                                               //
////////////////////////////////////////////////////////////////////////////////

// Package cmd initializes the CLI and config parsers as well as the logger.
package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io/ioutil"
	"log"
	"net/http"
	"os"
	"runtime/pprof"
	"strings"
	"time"

	"github.com/spf13/cobra"
	jww "github.com/spf13/jwalterweatherman"
	"github.com/spf13/viper"

	"gitlab.com/intumsg/client/api"
	"gitlab.com/intumsg/client/backend"
	"gitlab.com/intumsg/client/catalog"
	"gitlab.com/intumsg/client/conversations"
	"gitlab.com/intumsg/client/oracle"
	"gitlab.com/intumsg/client/storage"
)

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main(). It only needs to happen once
// to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "intumsg",
	Short: "Runs a trust-gated direct messaging client",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		profileOut := viper.GetString("profile-cpu")
		if profileOut != "" {
			f, err := os.Create(profileOut)
			if err != nil {
				jww.FATAL.Panicf("%+v", err)
			}
			pprof.StartCPUProfile(f)
			defer pprof.StopCPUProfile()
		}

		client := initClient()

		user := client.Session().GetUser()
		jww.INFO.Printf("User: %s", user.Address)

		recvCh := make(chan conversations.Message, 100)
		client.Conversations().Store().Events().RegisterChannel(
			"DefaultCLIReceiver", conversations.AnySender,
			catalog.NoType, recvCh)

		if client.IsOnline() {
			interval := viper.GetDuration("syncInterval")
			if err := client.StartSync(interval); err != nil {
				jww.WARN.Printf("Failed to start sync: %+v", err)
			} else {
				defer func() {
					if err := client.StopSync(); err != nil {
						jww.WARN.Printf("Failed to cleanly stop "+
							"sync: %+v", err)
					}
				}()
			}
		}

		// Send a message if one was given
		recipientID := viper.GetString("destid")
		msgBody := viper.GetString("message")
		if recipientID != "" && msgBody != "" {
			sendMessage(client, recipientID, msgBody)
		}

		// Wait until message timeout or we receive enough, then exit
		expectedCnt := viper.GetUint("receiveCount")
		waitSecs := viper.GetUint("waitTimeout")
		receiveCnt := uint(0)
		done := expectedCnt == 0
		for !done {
			timeoutTimer := time.NewTimer(
				time.Duration(waitSecs) * time.Second)
			select {
			case <-timeoutTimer.C:
				fmt.Println("Timed out!")
				done = true
			case m := <-recvCh:
				fmt.Printf("Message received from %s: %s\n",
					m.SenderID, decodeForDisplay(client, m))
				receiveCnt++
				if receiveCnt == expectedCnt {
					done = true
				}
			}
		}
		fmt.Printf("Received %d\n", receiveCnt)
	},
}

// sendMessage opens (or resumes) the conversation with the recipient and
// sends the message, reporting a gated recipient instead of crashing.
func sendMessage(client *api.Client, recipientID, msgBody string) {
	ctx, cancel := context.WithTimeout(
		context.Background(), 30*time.Second)
	defer cancel()

	conv, err := client.Conversations().StartConversation(ctx, recipientID)
	if err != nil {
		jww.FATAL.Panicf("Failed to open conversation with %s: %+v",
			recipientID, err)
	}
	if conv.Status == conversations.RequestPending {
		fmt.Printf("Contact request to %s pending acceptance "+
			"(collateral locked: %d)\n", recipientID,
			conv.CollateralLocked)
	}

	fmt.Printf("Sending to %s: %s\n", recipientID, msgBody)
	if _, err = client.Conversations().Send(recipientID, msgBody); err != nil {
		jww.FATAL.Panicf("Failed to send: %+v", err)
	}
}

// decodeForDisplay renders a stored message body through the conversation's
// codec by re-reading it from the log.
func decodeForDisplay(client *api.Client, m conversations.Message) string {
	conv, ok := client.Conversations().Store().GetByPair(
		m.SenderID, m.ReceiverID)
	if !ok {
		// Group messages carry the conversation id as the receiver.
		conv, ok = client.Conversations().Store().Get(m.ReceiverID)
		if !ok {
			return string(m.Content)
		}
	}
	msgs, err := client.Conversations().Messages(conv.ID)
	if err != nil {
		return string(m.Content)
	}
	for i := range msgs {
		if msgs[i].ID == m.ID {
			return string(msgs[i].Content)
		}
	}
	return string(m.Content)
}

// createClient builds a session, creating one on first run.
func createClient() *storage.Session {
	initLog(viper.GetUint("logLevel"), viper.GetString("log"))

	pass := viper.GetString("password")
	storeDir := viper.GetString("session")
	address := viper.GetString("address")

	// create a new session if none exists
	if _, err := os.Stat(storeDir); os.IsNotExist(err) {
		if address == "" {
			jww.FATAL.Panicf("--address is required on first run")
		}
		s, err := storage.New(storeDir, pass,
			storage.User{Address: address})
		if err != nil {
			jww.FATAL.Panicf("%+v", err)
		}
		return s
	}

	s, err := storage.Load(storeDir, pass)
	if err != nil {
		jww.FATAL.Panicf("%+v", err)
	}
	return s
}

// initClient assembles the client from flags and logs in.
func initClient() *api.Client {
	session := createClient()

	orc := oracle.NewClient(viper.GetString("graph"))

	var bk *backend.Client
	if serverURL := viper.GetString("server"); serverURL != "" {
		bk = backend.NewClient(serverURL, &http.Client{})
	}

	client := api.NewClient(session, orc, bk, nil)

	signer := backend.StaticSigner(viper.GetString("signature"))
	if err := client.Login(context.Background(), signer); err != nil {
		jww.FATAL.Panicf("Login failed: %+v", err)
	}
	if !client.IsOnline() {
		jww.INFO.Printf("Running with an offline session")
	}
	return client
}

func initLog(threshold uint, logPath string) {
	if logPath != "-" && logPath != "" {
		// Disable stdout output
		jww.SetStdoutOutput(ioutil.Discard)
		// Use log file
		logOutput, err := os.OpenFile(logPath,
			os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			panic(err.Error())
		}
		jww.SetLogOutput(logOutput)
	}

	if threshold > 1 {
		jww.INFO.Printf("log level set to: TRACE")
		jww.SetStdoutThreshold(jww.LevelTrace)
		jww.SetLogThreshold(jww.LevelTrace)
		jww.SetFlags(log.LstdFlags | log.Lmicroseconds)
	} else if threshold == 1 {
		jww.INFO.Printf("log level set to: DEBUG")
		jww.SetStdoutThreshold(jww.LevelDebug)
		jww.SetLogThreshold(jww.LevelDebug)
		jww.SetFlags(log.LstdFlags | log.Lmicroseconds)
	} else {
		jww.INFO.Printf("log level set to: INFO")
		jww.SetStdoutThreshold(jww.LevelInfo)
		jww.SetLogThreshold(jww.LevelInfo)
	}
}

// askToConfirm prompts for a yes/no answer on stdin.
func askToConfirm(prompt string) bool {
	reader := bufio.NewReader(os.Stdin)
	for {
		fmt.Printf("%s (yes/no) ", prompt)
		input, err := reader.ReadString('\n')
		if err != nil {
			return false
		}
		switch strings.TrimSpace(input) {
		case "yes":
			return true
		case "no":
			return false
		}
		fmt.Printf("Please answer 'yes' or 'no'\n")
	}
}

// init is the initialization function for Cobra which defines commands
// and flags.
func init() {
	// NOTE: The point of init() is to be declarative.
	// There is one init in each sub command. Do not put variable declarations
	// here, and ensure all the Flags are of the *P variety, unless there's a
	// very good reason not to have them as local params to sub command.
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().UintP("logLevel", "v", 0,
		"Verbose mode for debugging")
	viper.BindPFlag("logLevel", rootCmd.PersistentFlags().Lookup("logLevel"))

	rootCmd.PersistentFlags().StringP("session", "s",
		"", "Sets the initial storage directory for client session data")
	viper.BindPFlag("session", rootCmd.PersistentFlags().Lookup("session"))

	rootCmd.PersistentFlags().StringP("password", "p", "",
		"Password to the session file")
	viper.BindPFlag("password", rootCmd.PersistentFlags().Lookup(
		"password"))

	rootCmd.PersistentFlags().StringP("address", "a", "",
		"Wallet address of the local identity (required on first run)")
	viper.BindPFlag("address", rootCmd.PersistentFlags().Lookup("address"))

	rootCmd.PersistentFlags().StringP("log", "l", "-",
		"Path to the log output path (- is stdout)")
	viper.BindPFlag("log", rootCmd.PersistentFlags().Lookup("log"))

	rootCmd.PersistentFlags().String("server", "",
		"URL of the rendezvous server (empty runs offline)")
	viper.BindPFlag("server", rootCmd.PersistentFlags().Lookup("server"))

	rootCmd.PersistentFlags().String("graph", "",
		"URL of the trust graph endpoint (empty uses the default)")
	viper.BindPFlag("graph", rootCmd.PersistentFlags().Lookup("graph"))

	rootCmd.PersistentFlags().String("signature", "",
		"Static wallet signature used for login")
	viper.BindPFlag("signature",
		rootCmd.PersistentFlags().Lookup("signature"))

	rootCmd.PersistentFlags().Duration("syncInterval", 30*time.Second,
		"Period of background reconciliation with the server")
	viper.BindPFlag("syncInterval",
		rootCmd.PersistentFlags().Lookup("syncInterval"))

	rootCmd.PersistentFlags().StringP("message", "m", "",
		"Message to send")
	viper.BindPFlag("message", rootCmd.PersistentFlags().Lookup("message"))

	rootCmd.Flags().StringP("destid", "d", "",
		"ID of the recipient to send the message to")
	viper.BindPFlag("destid", rootCmd.Flags().Lookup("destid"))

	rootCmd.Flags().UintP("receiveCount",
		"", 1, "How many messages we should wait for before quitting")
	viper.BindPFlag("receiveCount", rootCmd.Flags().Lookup("receiveCount"))

	rootCmd.Flags().UintP("waitTimeout", "", 15,
		"The number of seconds to wait for messages to arrive")
	viper.BindPFlag("waitTimeout",
		rootCmd.Flags().Lookup("waitTimeout"))

	rootCmd.Flags().String("profile-cpu", "",
		"Enable cpu profiling to this file")
	viper.BindPFlag("profile-cpu", rootCmd.Flags().Lookup("profile-cpu"))
}

func initConfig() {}
