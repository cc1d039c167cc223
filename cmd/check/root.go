package check

import (
	"fmt"
	"github.com/ValentinKolb/dMPI/cmd/util"
	"github.com/ValentinKolb/dMPI/lib/mpi"
	"github.com/ValentinKolb/dMPI/lib/mpi/conformance"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"slices"
	"strings"
	"sync"
)

var (
	CheckCmd = &cobra.Command{
		Use:   "check",
		Short: "Run the conformance checks in a world",
		Long: util.WrapString(`Runs every conformance check (point-to-point, collectives, composite types) at every rank of the world.
Rank 0 prints the results, any other rank only prints its failures.`),
		PreRunE: processCheckConfig,
		RunE:    run,
	}
	checkOnly = make([]string, 0)

	// serializes the output of local ranks
	printMu sync.Mutex
)

func init() {
	key := "only"
	CheckCmd.Flags().String(key, "", util.WrapString("Checks to run (comma separated - e.g. Broadcast,SendRecv), all if empty"))
	key = "list"
	CheckCmd.Flags().Bool(key, false, util.WrapString("List the available checks and exit"))
}

func processCheckConfig(cmd *cobra.Command, _ []string) error {
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	checkOnly = checkOnly[:0]
	for _, name := range strings.Split(viper.GetString("only"), ",") {
		if name = strings.TrimSpace(name); name != "" {
			checkOnly = append(checkOnly, name)
		}
	}
	return nil
}

func run(_ *cobra.Command, _ []string) error {
	if viper.GetBool("list") {
		for _, check := range conformance.Checks() {
			fmt.Println(check.Name)
		}
		return nil
	}

	checks, err := selectChecks()
	if err != nil {
		return err
	}

	return util.RunWorld(func(env *mpi.Env) error {
		world := env.World()
		results := conformance.Run(world, checks)
		return report(world, results)
	})
}

// selectChecks returns the checks named by --only
func selectChecks() ([]conformance.Check, error) {
	all := conformance.Checks()
	if len(checkOnly) == 0 {
		return all, nil
	}

	selected := make([]conformance.Check, 0, len(checkOnly))
	for _, check := range all {
		if slices.Contains(checkOnly, check.Name) {
			selected = append(selected, check)
		}
	}
	if len(selected) != len(checkOnly) {
		return nil, fmt.Errorf("unknown check in %v (see dmpi check --list)", checkOnly)
	}
	return selected, nil
}

// report prints the results of one rank and returns an error if a check failed
func report(c mpi.Comm, results []conformance.Result) error {
	printMu.Lock()
	defer printMu.Unlock()

	failed := 0
	for _, result := range results {
		if result.Err != nil {
			failed++
		}
	}

	if c.Rank() == 0 {
		fmt.Printf("Conformance checks on %d ranks:\n\n", c.Size())
		for _, result := range results {
			status := "ok"
			if result.Err != nil {
				status = "FAIL"
			}
			fmt.Printf("%-20s%-6s%s\n", result.Name, status, result.Duration)
		}
		fmt.Println()
	}

	for _, result := range results {
		if result.Err != nil {
			fmt.Printf("rank %d: %s: %v\n", c.Rank(), result.Name, result.Err)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d checks failed", failed, len(results))
	}
	return nil
}
