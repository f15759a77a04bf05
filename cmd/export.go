package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sells-group/residence-finder/internal/export"
)

var (
	exportOpts listOptions
	exportOut  string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the filtered residences, annotations and summaries to an XLSX file",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		env, err := initApp(ctx, cfg, "local")
		if err != nil {
			return err
		}
		defer env.Close()

		if err := applyListOptions(cmd, env.Controller, exportOpts); err != nil {
			return err
		}

		visible := env.Controller.Visible()
		if err := export.SaveXLSX(exportOut, visible, env.Controller.Annotations(), env.Controller.Summaries()); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Wrote %d residences to %s\n", len(visible), exportOut)
		return nil
	},
}

func init() {
	addFilterFlags(exportCmd, &exportOpts)
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "residencias.xlsx", "output file")
	rootCmd.AddCommand(exportCmd)
}
