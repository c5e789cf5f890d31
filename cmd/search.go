package main

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/fleetops/fleetops/internal/model"
	"github.com/fleetops/fleetops/internal/search"
)

var (
	searchCompany string
	searchText    string
	searchLat     float64
	searchLon     float64
	searchLimit   int
	searchGeo     bool
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search places, optionally merging geocoder results",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		scope, err := model.NewScope(searchCompany)
		if err != nil {
			return err
		}

		env, err := initEnv(ctx, "search")
		if err != nil {
			return err
		}
		defer env.Close()

		results, err := env.Fleet.Search(ctx, scope, searchQuery(cmd))
		if err != nil {
			return eris.Wrap(err, "search")
		}
		return printJSON(cmd.OutOrStdout(), results)
	},
}

var geocodeCmd = &cobra.Command{
	Use:   "geocode",
	Short: "Query the geocoder only",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("geocode"); err != nil {
			return err
		}
		geocoder, err := initGeocoder()
		if err != nil {
			return err
		}

		// The engine never touches the store for geocode-only lookups.
		results, err := search.NewEngine(nil, geocoder).Geocode(ctx, searchQuery(cmd))
		if err != nil {
			return eris.Wrap(err, "geocode")
		}
		return printJSON(cmd.OutOrStdout(), results)
	},
}

// searchQuery builds the query from flags. Coordinates count only when the
// flag was given.
func searchQuery(cmd *cobra.Command) model.SearchQuery {
	q := model.SearchQuery{Text: strings.TrimSpace(searchText), Limit: searchLimit, Geo: searchGeo}
	if f := cmd.Flags().Lookup("limit"); f == nil || !f.Changed {
		q.Limit = cfg.Search.DefaultLimit
	}
	if cmd.Flags().Changed("lat") {
		lat := searchLat
		q.Latitude = &lat
	}
	if cmd.Flags().Changed("lon") {
		lon := searchLon
		q.Longitude = &lon
	}
	return q
}

func init() {
	addCompanyFlag(searchCmd, &searchCompany)
	for _, c := range []*cobra.Command{searchCmd, geocodeCmd} {
		c.Flags().StringVarP(&searchText, "query", "q", "", "free text query")
		c.Flags().Float64Var(&searchLat, "lat", 0, "latitude to bias or reverse geocode with")
		c.Flags().Float64Var(&searchLon, "lon", 0, "longitude to bias or reverse geocode with")
	}
	searchCmd.Flags().IntVar(&searchLimit, "limit", 0, "maximum local results, 0 for unlimited (default from config)")
	searchCmd.Flags().BoolVar(&searchGeo, "geo", false, "merge geocoder results ahead of local ones")
	rootCmd.AddCommand(searchCmd, geocodeCmd)
}
