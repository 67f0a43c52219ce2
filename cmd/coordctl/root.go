package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/doldecomp/agentcoord/internal/config"
	"github.com/doldecomp/agentcoord/internal/rpc"
)

var (
	flagJSON     bool
	flagActor    string
	flagDB       string
	flagNoDaemon bool
)

var rootCmd = &cobra.Command{
	Use:           "coordctl",
	Short:         "Coordinate multiple agents decompiling the same project",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return config.Initialize()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "emit machine-readable JSON instead of formatted text")
	rootCmd.PersistentFlags().StringVar(&flagActor, "actor", "", "agent id recorded in the audit log (default: git user.name, else hostname)")
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "path to the coordination database (default: discovered from cwd)")
	rootCmd.PersistentFlags().BoolVar(&flagNoDaemon, "no-daemon", false, "bypass any running daemon and run this command in-process")

	rootCmd.Version = version
	rpc.ClientVersion = version
}

// actorID resolves the acting agent's identity, per the priority chain
// internal/config.GetActor documents.
func actorID() string {
	return config.GetActor(flagActor)
}

// emit renders data as JSON (if --json) or as a human-readable view via
// render, to stdout.
func emit(data interface{}, render func(interface{}) string) error {
	if flagJSON || render == nil {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	}
	fmt.Println(render(data))
	return nil
}

// decode unmarshals a dispatcher's raw response into out. A nil raw message
// (operations that return no payload) leaves out untouched.
func decode(raw json.RawMessage, out interface{}) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, out)
}
