package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/residence-finder/internal/annotation"
	"github.com/sells-group/residence-finder/internal/app"
	"github.com/sells-group/residence-finder/internal/fields"
	"github.com/sells-group/residence-finder/internal/filter"
	"github.com/sells-group/residence-finder/internal/geo"
	"github.com/sells-group/residence-finder/internal/locate"
	"github.com/sells-group/residence-finder/internal/model"
)

// listOptions mirrors the list flags.
type listOptions struct {
	Cities    []string
	Prices    []string
	Near      string
	RadiusKM  float64
	Favorites bool
	Search    string
	Format    string
}

var listOpts listOptions

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List residences matching the filters",
	Long: "Lists residences in dataset order. --city and --price replace the default " +
		"all-selected sets; --near activates the proximity circle, which ignores both.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initApp(ctx, cfg, "local")
		if err != nil {
			return err
		}
		defer env.Close()

		if err := applyListOptions(cmd, env.Controller, listOpts); err != nil {
			return err
		}

		visible := env.Controller.Visible()
		ann := env.Controller.Annotations()

		switch listOpts.Format {
		case "json":
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(visible)
		case "geojson":
			data, err := geo.FeatureCollection(visible, ann.Favorites, ann.Contacted, nil)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(os.Stdout, string(data))
			return err
		case "table", "":
			if len(visible) == 0 {
				fmt.Fprintln(os.Stderr, "No residences match.")
				return nil
			}
			formatResidences(os.Stdout, visible, ann)
			return nil
		default:
			return eris.Errorf("list: unknown format %q (table, json, geojson)", listOpts.Format)
		}
	},
}

// addFilterFlags registers the filter flags shared by list and export.
func addFilterFlags(cmd *cobra.Command, o *listOptions) {
	cmd.Flags().StringSliceVar(&o.Cities, "city", nil, "cities to include (default all)")
	cmd.Flags().StringSliceVar(&o.Prices, "price", nil, "price buckets to include, see 'prices' (default all)")
	cmd.Flags().StringVar(&o.Near, "near", "", "center of the proximity circle as lat,lon")
	cmd.Flags().Float64Var(&o.RadiusKM, "radius", app.DefaultRadiusKM, "proximity radius in km (1-50)")
	cmd.Flags().BoolVar(&o.Favorites, "favorites", false, "only favorites")
	cmd.Flags().StringVar(&o.Search, "search", "", "case-insensitive name search")
}

// applyListOptions translates flags into controller mutations. Flags left unset
// keep the controller defaults.
func applyListOptions(cmd *cobra.Command, ctrl *app.Controller, o listOptions) error {
	flags := cmd.Flags()

	if flags.Changed("city") {
		ctrl.DeselectAllCities()
		for _, c := range o.Cities {
			if err := ctrl.ToggleCity(strings.TrimSpace(c)); err != nil {
				return err
			}
		}
	}
	if flags.Changed("price") {
		ctrl.DeselectAllPrices()
		for _, p := range o.Prices {
			if err := ctrl.TogglePrice(strings.TrimSpace(p)); err != nil {
				return err
			}
		}
	}
	if flags.Changed("radius") {
		if _, err := ctrl.SetProximityRadius(o.RadiusKM); err != nil {
			return err
		}
	}
	if o.Near != "" {
		coord, err := model.ParseCoord(o.Near)
		if err != nil {
			return eris.Wrap(err, "list: --near")
		}
		if _, err := ctrl.UseGeolocation(cmd.Context(), locate.Request{Position: &coord}); err != nil {
			return err
		}
	}
	if o.Favorites {
		ctrl.ToggleFavoritesOnly()
	}
	ctrl.SetSearch(o.Search)
	return nil
}

// formatResidences writes a tabular list of residences to out.
func formatResidences(out io.Writer, residences []model.Residence, ann annotation.Snapshot) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "NAME\tCITY\tPRICE\tFAV\tCONTACTED\tNOTES")
	_, _ = fmt.Fprintln(w, "----\t----\t-----\t---\t---------\t-----")

	for _, r := range residences {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.Name,
			fields.ExtractCity(r.Address),
			r.PriceRange,
			mark(ann.Favorites.Has(r.Name)),
			mark(ann.Contacted.Has(r.Name)),
			truncate(r.Notes, 40),
		)
	}
	_ = w.Flush()
}

func mark(b bool) string {
	if b {
		return "*"
	}
	return ""
}

// truncate shortens s to at most n runes, marking the cut with "...".
func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

var citiesCmd = &cobra.Command{
	Use:   "cities",
	Short: "List the cities found in the dataset",
	RunE: func(cmd *cobra.Command, _ []string) error {
		env, err := initApp(cmd.Context(), cfg, "local")
		if err != nil {
			return err
		}
		defer env.Close()

		for _, c := range env.Controller.Cities() {
			fmt.Fprintln(os.Stdout, c)
		}
		return nil
	},
}

var pricesCmd = &cobra.Command{
	Use:   "prices",
	Short: "List the price buckets accepted by --price",
	RunE: func(cmd *cobra.Command, _ []string) error {
		formatPriceOptions(os.Stdout)
		return nil
	},
}

func formatPriceOptions(out io.Writer) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, o := range filter.PriceOptions {
		_, _ = fmt.Fprintf(w, "%s\t%s\n", o.Value, o.Label)
	}
	_ = w.Flush()
}

func init() {
	addFilterFlags(listCmd, &listOpts)
	listCmd.Flags().StringVar(&listOpts.Format, "format", "table", "output format: table, json, geojson")

	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(citiesCmd)
	rootCmd.AddCommand(pricesCmd)
}
