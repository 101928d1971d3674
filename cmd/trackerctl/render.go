package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/schollz/collidertracker/internal/compiler"
	"github.com/schollz/collidertracker/internal/engine"
	"github.com/schollz/collidertracker/internal/music"
	"github.com/schollz/collidertracker/internal/storage"
)

// printSink records every dispatched event as a line of text, so render
// can flush them grouped by the row that produced them.
type printSink struct {
	engine.NoOpSink
	lines []string
}

func (s *printSink) NoteOn(channel, note, velocity int) {
	s.lines = append(s.lines, fmt.Sprintf("  note_on  ch=%d note=%d(%s) vel=%d", channel, note, music.MidiToNoteName(note), velocity))
}

func (s *printSink) NoteOff(channel, note, releaseVelocity int) {
	s.lines = append(s.lines, fmt.Sprintf("  note_off ch=%d note=%d(%s)", channel, note, music.MidiToNoteName(note)))
}

func (s *printSink) CC(channel, cc, value int) {
	s.lines = append(s.lines, fmt.Sprintf("  cc       ch=%d cc=%d value=%d", channel, cc, value))
}

func newRenderCmd() *cobra.Command {
	var (
		saveDir    string
		patternIdx int
	)

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Step through one pattern row by row, printing fired events",
		RunE: func(cmd *cobra.Command, args []string) error {
			song, err := storage.Load(saveDir)
			if err != nil {
				return fmt.Errorf("load song: %w", err)
			}
			if patternIdx < 0 || patternIdx >= len(song.Patterns) {
				return fmt.Errorf("pattern %d out of range (song has %d)", patternIdx, len(song.Patterns))
			}
			pat := song.Patterns[patternIdx]

			reg, err := defaultRegistry()
			if err != nil {
				return err
			}
			comp := compiler.New(reg)

			sink := &printSink{}
			e := engine.New(song, reg, comp, sink)
			e.Seek(patternIdx, 0)
			e.Play()

			rowMs := e.RowDurationMs()
			for row := 0; row < pat.NumRows; row++ {
				sink.lines = sink.lines[:0]
				e.Process(rowMs)
				fmt.Fprintf(cmd.OutOrStdout(), "row %d:\n", row)
				for _, line := range sink.lines {
					fmt.Fprintln(cmd.OutOrStdout(), line)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&saveDir, "song", "", "directory holding song.json.gz (required)")
	cmd.Flags().IntVar(&patternIdx, "pattern", 0, "index of the pattern to render")
	cmd.MarkFlagRequired("song")
	return cmd
}
