package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/schollz/collidertracker/internal/compiler"
	"github.com/schollz/collidertracker/internal/engine"
	"github.com/schollz/collidertracker/internal/midisink"
	"github.com/schollz/collidertracker/internal/oscsink"
	"github.com/schollz/collidertracker/internal/storage"
)

func newPlayCmd() *cobra.Command {
	var (
		saveDir  string
		midiPort string
		oscHost  string
		oscPort  int
		tickMs   int
	)

	cmd := &cobra.Command{
		Use:   "play",
		Short: "Play a saved song, driving MIDI and/or OSC output",
		RunE: func(cmd *cobra.Command, args []string) error {
			song, err := storage.Load(saveDir)
			if err != nil {
				return fmt.Errorf("load song: %w", err)
			}

			reg, err := defaultRegistry()
			if err != nil {
				return err
			}
			comp := compiler.New(reg)

			var sinks []engine.OutputSink
			if midiPort != "" {
				midi, err := midisink.Open(midiPort)
				if err != nil {
					return fmt.Errorf("open midi port: %w", err)
				}
				defer midi.Close()
				sinks = append(sinks, midi)
			}
			if oscHost != "" {
				sinks = append(sinks, oscsink.New(oscHost, oscPort))
			}

			e := engine.New(song, reg, comp, midisink.NewFanout(sinks...))
			e.PlayMode = engine.SongSequence
			e.Play()

			ticker := time.NewTicker(time.Duration(tickMs) * time.Millisecond)
			defer ticker.Stop()
			for range ticker.C {
				e.Process(float64(tickMs))
				if e.State == engine.Stopped {
					return nil
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&saveDir, "song", "", "directory holding song.json.gz (required)")
	cmd.Flags().StringVar(&midiPort, "midi-port", "", "MIDI output port name to open (fuzzy-matched); empty disables MIDI output")
	cmd.Flags().StringVar(&oscHost, "osc-host", "", "OSC host to mirror events to; empty disables OSC output")
	cmd.Flags().IntVar(&oscPort, "osc-port", 57120, "OSC port for mirrored playback messages")
	cmd.Flags().IntVar(&tickMs, "tick-ms", 10, "engine Process() polling interval in milliseconds")
	cmd.MarkFlagRequired("song")
	return cmd
}
