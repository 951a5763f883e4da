package main

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vango-dev/tumorscope/internal/inference"
)

func versionCmd() *cobra.Command {
	var short bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show build and model catalog details",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if short {
				_, err := fmt.Fprintln(out, version)
				return err
			}

			names := make([]string, 0, len(inference.Catalog))
			for _, spec := range inference.Catalog {
				names = append(names, spec.Name)
			}

			rows := [][2]string{
				{"tumorscope", version},
				{"commit", commit},
				{"built", date},
				{"go", runtime.Version()},
				{"platform", runtime.GOOS + "/" + runtime.GOARCH},
				{"models", strings.Join(names, ", ")},
				{"labels", strings.Join(inference.ClassLabels, ", ")},
			}
			for _, row := range rows {
				fmt.Fprintf(out, "%-12s %s\n", row[0]+":", row[1])
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&short, "short", "s", false, "Print the version string alone")
	return cmd
}
