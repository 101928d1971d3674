package main

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"github.com/schollz/collidertracker/internal/storage"
)

func newExportCmd() *cobra.Command {
	var saveDir string
	var indent bool

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Print a saved song as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			song, err := storage.Load(saveDir)
			if err != nil {
				return fmt.Errorf("load song: %w", err)
			}

			api := jsoniter.ConfigCompatibleWithStandardLibrary
			var data []byte
			if indent {
				data, err = api.MarshalIndent(song, "", "  ")
			} else {
				data, err = api.Marshal(song)
			}
			if err != nil {
				return fmt.Errorf("marshal song: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}

	cmd.Flags().StringVar(&saveDir, "song", "", "directory holding song.json.gz (required)")
	cmd.Flags().BoolVar(&indent, "pretty", false, "pretty-print the JSON output")
	cmd.MarkFlagRequired("song")
	return cmd
}
