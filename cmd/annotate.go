package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var favoriteCmd = &cobra.Command{
	Use:   "favorite <name>",
	Short: "Toggle a residence's favorite mark",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initApp(ctx, cfg, "local")
		if err != nil {
			return err
		}
		defer env.Close()

		on, err := env.Controller.ToggleFavorite(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "%s: favorite=%t\n", args[0], on)
		return nil
	},
}

var contactedCmd = &cobra.Command{
	Use:   "contacted <name>",
	Short: "Toggle a residence's contacted mark",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initApp(ctx, cfg, "local")
		if err != nil {
			return err
		}
		defer env.Close()

		on, err := env.Controller.ToggleContacted(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "%s: contacted=%t\n", args[0], on)
		return nil
	},
}

var noteCmd = &cobra.Command{
	Use:   "note <name> [text...]",
	Short: "Set a residence's note; no text removes it",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initApp(ctx, cfg, "local")
		if err != nil {
			return err
		}
		defer env.Close()

		text := strings.Join(args[1:], " ")
		if err := env.Controller.SetNote(ctx, args[0], text); err != nil {
			return err
		}
		if strings.TrimSpace(text) == "" {
			fmt.Fprintf(os.Stdout, "%s: note removed\n", args[0])
		} else {
			fmt.Fprintf(os.Stdout, "%s: note saved\n", args[0])
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(favoriteCmd)
	rootCmd.AddCommand(contactedCmd)
	rootCmd.AddCommand(noteCmd)
}
