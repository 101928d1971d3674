// Command trackerctl is the composition root: it wires the plugin
// registry, compiler, evaluator, engine and output sinks together and
// exposes them as a small set of subcommands, the way the teacher's
// main.go wires bubbletea/supercollider/midiconnector together for its
// single TUI entry point.
package main

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/schollz/collidertracker/internal/notesplugin"
	"github.com/schollz/collidertracker/internal/registry"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var debugLog string

	root := &cobra.Command{
		Use:           "trackerctl",
		Short:         "Compile, play back and inspect tracker songs",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if debugLog == "" {
				log.SetOutput(io.Discard)
				return nil
			}
			f, err := os.OpenFile(debugLog, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
			if err != nil {
				return fmt.Errorf("open debug log %s: %w", debugLog, err)
			}
			log.SetOutput(f)
			log.SetFlags(log.LstdFlags | log.Lshortfile)
			return nil
		},
	}
	root.PersistentFlags().StringVar(&debugLog, "debug", "", "if set, write debug logs to this file; empty discards logging")

	root.AddCommand(newPlayCmd())
	root.AddCommand(newRenderCmd())
	root.AddCommand(newValidateCmd())
	root.AddCommand(newExportCmd())
	return root
}

// defaultRegistry returns a registry with every plugin this binary
// ships wired in. A host embedding the engine as a library would
// instead build its own registry and register only what it needs.
func defaultRegistry() (*registry.Registry, error) {
	reg := registry.New()
	if err := reg.Register(notesplugin.New()); err != nil {
		return nil, fmt.Errorf("register notesplugin: %w", err)
	}
	return reg, nil
}
