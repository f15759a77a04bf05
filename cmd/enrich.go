package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/sells-group/residence-finder/internal/config"
	"github.com/sells-group/residence-finder/internal/geo"
	"github.com/sells-group/residence-finder/internal/model"
)

var (
	summaryRefresh bool
	summaryJSON    bool
)

var summaryCmd = &cobra.Command{
	Use:   "summary <name>",
	Short: "Show the AI review summary of a residence, fetching it once",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initApp(ctx, cfg, "enrich")
		if err != nil {
			return err
		}
		defer env.Close()

		if summaryRefresh {
			if err := env.Controller.InvalidateSummary(ctx, args[0]); err != nil {
				return err
			}
		}

		ctx, cancel := lookupContext(cmd, cfg.Anthropic)
		defer cancel()

		s, err := env.Controller.FetchSummary(ctx, args[0])
		if err != nil {
			return err
		}
		if summaryJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(s)
		}
		formatSummary(os.Stdout, args[0], s)
		return nil
	},
}

var distancesCmd = &cobra.Command{
	Use:   "distances <name>",
	Short: "Estimate driving distance and time from a residence to both reference homes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initApp(ctx, cfg, "enrich")
		if err != nil {
			return err
		}
		defer env.Close()

		r, err := env.Controller.Select(args[0])
		if err != nil {
			return err
		}

		ctx, cancel := lookupContext(cmd, cfg.Anthropic)
		defer cancel()

		pair, err := env.Controller.FetchDistances(ctx, r.Name)
		if err != nil {
			return err
		}
		casa1, casa2, err := cfg.Reference.Coords()
		if err != nil {
			return err
		}
		formatDistances(os.Stdout, r, pair, []reference{
			{Label: cfg.Reference.Casa1Label, Coord: casa1},
			{Label: cfg.Reference.Casa2Label, Coord: casa2},
		})
		return nil
	},
}

// lookupContext bounds one external lookup by anthropic.timeout_secs.
func lookupContext(cmd *cobra.Command, a config.AnthropicConfig) (context.Context, context.CancelFunc) {
	timeout := time.Duration(a.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = time.Minute
	}
	return context.WithTimeout(cmd.Context(), timeout)
}

// formatSummary writes a summary with its ratings as stars.
func formatSummary(out io.Writer, name string, s model.Summary) {
	_, _ = fmt.Fprintf(out, "%s\n\n%s\n\n", name, s.Summary)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Servicios:\t%s\t%d/5\n", stars(s.Services), s.Services)
	_, _ = fmt.Fprintf(w, "Opiniones:\t%s\t%d/5\n", stars(s.Opinions), s.Opinions)
	_ = w.Flush()
}

func stars(n int) string {
	n = max(0, min(5, n))
	out := make([]rune, 5)
	for i := range out {
		if i < n {
			out[i] = '★'
		} else {
			out[i] = '☆'
		}
	}
	return string(out)
}

type reference struct {
	Label string
	Coord model.Coord
}

// formatDistances writes the driving estimates next to the straight-line distance.
func formatDistances(out io.Writer, r model.Residence, pair model.DistancePair, refs []reference) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "DESTINO\tDISTANCIA\tTIEMPO\tLÍNEA RECTA")
	for i, d := range []model.Distance{pair.Casa1, pair.Casa2} {
		if i >= len(refs) {
			break
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%.1f km\n",
			refs[i].Label, d.Distancia, d.Tiempo, geo.HaversineKM(r.Coords, refs[i].Coord))
	}
	_ = w.Flush()
}

func init() {
	summaryCmd.Flags().BoolVar(&summaryRefresh, "refresh", false, "discard the cached summary and ask again")
	summaryCmd.Flags().BoolVar(&summaryJSON, "json", false, "print JSON")

	rootCmd.AddCommand(summaryCmd)
	rootCmd.AddCommand(distancesCmd)
}
