package main

import (
	"fmt"
	"os"

	"github.com/saravenpi/relay/internal/ui"
	"github.com/spf13/cobra"
)

const version = "1.0.0"

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "relay",
	Short: "Terminal client for the AI chat, knowledge store and WhatsApp relay backend",
	Long: `Relay talks to the chat backend from the terminal.

Run without a subcommand to open the interactive client:
  ↑/↓ or j/k        choose a mode
  enter             open the mode
  ctrl+s            send the message
  ctrl+u            upload a file (store mode)
  ctrl+l            clear the history
  pgup/pgdn         scroll
  esc               back to the mode list
  ctrl+c            quit`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := setup(false)
		if err != nil {
			return err
		}
		defer rt.Close()

		app := ui.NewApp(rt.store, rt.status, rt.dispatcher, rt.sessionDeps(), rt.log)
		return ui.Run(app)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("Relay v%s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: ~/.relay/config.yml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")

	sendCmd.Flags().StringVarP(&sendMode, "mode", "m", "chat", "Mode to send in: chat, store or whatsapp")
	historyCmd.Flags().StringVarP(&historyMode, "mode", "m", "", "Only show messages of this mode")
	downloadCmd.Flags().StringVarP(&downloadOutput, "output", "o", "", "Output file (default: name sent by the backend)")
	watchCmd.Flags().StringSliceVarP(&watchExtensions, "ext", "e", nil, "File extensions to upload (default: .pdf,.txt,.md,.docx,.csv)")
	listenCmd.Flags().StringVarP(&listenMode, "mode", "m", "whatsapp", "Mode whose conversation to follow")

	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(downloadCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(clearCmd)
	rootCmd.AddCommand(pingCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(listenCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
