package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/schollz/collidertracker/internal/compiler"
	"github.com/schollz/collidertracker/internal/storage"
)

func newValidateCmd() *cobra.Command {
	var saveDir string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Compile every cell in the song and report any errors",
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

			failures := 0
			cellFailures := 0
			total := 0
			for pi, pat := range song.Patterns {
				for ti, tr := range pat.Tracks {
					for ri, cell := range tr.Cells {
						total++
						loc := compiler.Location{Pattern: pi, Track: ti, Row: ri}
						if _, err := comp.Compile(cell, song.DefaultLanguageID, loc); err != nil {
							failures++
							cellFailures++
							fmt.Fprintf(cmd.OutOrStdout(), "%v\n", err)
						}
					}
					if _, err := comp.CompileFxChain(tr.FX); err != nil {
						failures++
						fmt.Fprintf(cmd.OutOrStdout(), "pattern=%d track=%d fx chain: %v\n", pi, ti, err)
					}
				}
			}
			if _, err := comp.CompileFxChain(song.MasterFX); err != nil {
				failures++
				fmt.Fprintf(cmd.OutOrStdout(), "master fx chain: %v\n", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%d/%d cells compiled cleanly\n", total-cellFailures, total)
			if failures > 0 {
				return fmt.Errorf("%d compile error(s)", failures)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&saveDir, "song", "", "directory holding song.json.gz (required)")
	cmd.MarkFlagRequired("song")
	return cmd
}
