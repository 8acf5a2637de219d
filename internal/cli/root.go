// Package cli implements the ananta command-line interface.
//
// The root command does the work: given a hosts file and a command it fans
// the command out to every host at once; given only a hosts file (or the
// --tui flag) it opens the interactive session instead. The init and
// version subcommands handle housekeeping.
package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var (
	noColorFlag    bool
	separateFlag   bool
	allowEmptyFlag bool
	cursorFlag     bool
	tuiFlag        bool
	lightFlag      bool
	tagsFlag       string
	widthFlag      int
	defaultKeyFlag string
)

var rootCmd = &cobra.Command{
	Use:   "ananta [flags] <host-file> [command...]",
	Short: "Run a command on many hosts over SSH at once",
	Long: `Ananta runs one command across a whole fleet of hosts concurrently,
prefixing every output line with the host it came from.

With a command it runs once and exits; without one (or with --tui) it opens
an interactive session that keeps the connections warm between commands.

Examples:
  ananta hosts.csv uptime
  ananta -S hosts.csv "df -h /"
  ananta -t web,db hosts.toml systemctl status nginx
  ananta --tui hosts.csv`,
	Args:          cobra.MinimumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		hostFile := args[0]
		command := strings.Join(args[1:], " ")
		if command == "" || tuiFlag {
			return runSession(hostFile, command)
		}
		return runOnce(hostFile, command)
	},
}

// Execute runs the CLI and exits non-zero on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// runCmd is the explicit spelling of the root command's one-shot behavior.
var runCmd = &cobra.Command{
	Use:   "run <host-file> <command...>",
	Short: "Run a command on every host and exit",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOnce(args[0], strings.Join(args[1:], " "))
	},
}

// sessionCmd opens the interactive session, optionally running an initial
// command once every connection has settled.
var sessionCmd = &cobra.Command{
	Use:   "tui <host-file> [command...]",
	Short: "Open the interactive session",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSession(args[0], strings.Join(args[1:], " "))
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&noColorFlag, "no-color", "N", false, "disable colored host prompts")
	rootCmd.PersistentFlags().BoolVarP(&separateFlag, "separate-output", "S", false, "print each host's output as one block instead of interleaving")
	rootCmd.PersistentFlags().BoolVarP(&allowEmptyFlag, "allow-empty-line", "E", false, "print empty output lines")
	rootCmd.PersistentFlags().BoolVarP(&cursorFlag, "cursor-control", "C", false, "pass cursor-control sequences through (for progress bars)")
	rootCmd.PersistentFlags().BoolVar(&lightFlag, "light", false, "use colors suited to light terminal backgrounds")
	rootCmd.PersistentFlags().StringVarP(&tagsFlag, "host-tags", "t", "", "only target hosts carrying one of these comma-separated tags")
	rootCmd.PersistentFlags().IntVarP(&widthFlag, "terminal-width", "W", 0, "override the detected terminal width")
	rootCmd.PersistentFlags().StringVarP(&defaultKeyFlag, "default-key", "K", "", "SSH key for hosts whose entry names none")
	rootCmd.Flags().BoolVarP(&tuiFlag, "tui", "T", false, "open the interactive session even when a command is given")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(sessionCmd)
}
