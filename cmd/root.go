package cmd

import (
	"fmt"
	"github.com/ValentinKolb/dMPI/cmd/check"
	"github.com/ValentinKolb/dMPI/cmd/perf"
	"github.com/ValentinKolb/dMPI/cmd/util"
	"github.com/spf13/cobra"
	"os"
)

const (
	Version = "0.1.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "dmpi",
		Short: "message passing for distributed Go programs",
		Long: fmt.Sprintf(`dMPI (v%s)

A message passing library written in Go: a fixed world of ranks exchanging
typed messages point-to-point and through collective operations.

Every rank runs the same command with its own --rank. Use --local N to run
a world of N ranks inside a single process.`, Version),
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of dMPI",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("dMPI v%s\n", Version)
		},
	}
)

func init() {
	cobra.OnInitialize(util.InitConfig)

	// Add Commands
	RootCmd.AddCommand(check.CheckCmd)
	RootCmd.AddCommand(perf.PerfCmd)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	key := "serializer"
	RootCmd.PersistentFlags().String(key, "binary", util.WrapString("serializer to use (binary, json, gob)"))
	key = "transport"
	RootCmd.PersistentFlags().String(key, "tcp", util.WrapString("transport to use (tcp, unix, http)"))
	util.SetupWorldFlags(RootCmd)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
