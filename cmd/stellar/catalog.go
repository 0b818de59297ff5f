package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"text/tabwriter"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/edumarques81/stellar-playback/internal/domain/player"
	"github.com/edumarques81/stellar-playback/internal/domain/track"
	"github.com/edumarques81/stellar-playback/internal/infra/api"
	"github.com/edumarques81/stellar-playback/internal/infra/store"
)

// catalogSaver persists a fetched catalog. *store.DB implements it.
type catalogSaver interface {
	SaveCatalog(tracks []track.Track) error
}

// persistingSource caches every successful catalog fetch so the next start has
// tracks before the API answers.
type persistingSource struct {
	src   player.CatalogSource
	store catalogSaver
}

func (p *persistingSource) FetchCatalog(ctx context.Context) ([]track.Track, error) {
	tracks, err := p.src.FetchCatalog(ctx)
	if err != nil || len(tracks) == 0 {
		return tracks, err
	}
	if err := p.store.SaveCatalog(tracks); err != nil {
		log.Warn().Err(err).Msg("Failed to cache catalog")
	}
	return tracks, nil
}

var catalogCached bool

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Print the merged track catalog",
	Long:  "Print the merged, deduplicated catalog from the track API, or from the local cache with --cached.",
	RunE: func(cmd *cobra.Command, args []string) error {
		var tracks []track.Track
		if catalogCached {
			db := store.NewDB(cfg.Storage.DBPath)
			if err := db.Open(); err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer db.Close()

			cached, err := db.LoadCatalog()
			if err != nil {
				return err
			}
			tracks = cached
		} else {
			client := newAPIClient()
			defer client.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Player.CatalogRefreshTimeout.Duration)
			defer cancel()

			fetched, err := client.FetchCatalog(ctx)
			if err != nil {
				return err
			}
			tracks = fetched
		}
		return printCatalog(cmd.OutOrStdout(), tracks)
	},
}

var catalogRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Fetch the catalog from the track API and cache it",
	RunE: func(cmd *cobra.Command, args []string) error {
		db := store.NewDB(cfg.Storage.DBPath)
		if err := db.Open(); err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer db.Close()

		client := newAPIClient()
		defer client.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Player.CatalogRefreshTimeout.Duration)
		defer cancel()

		src := &persistingSource{src: client, store: db}
		tracks, err := src.FetchCatalog(ctx)
		if err != nil {
			return err
		}
		cmd.Printf("Cached %d tracks\n", len(tracks))
		return nil
	},
}

var catalogStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print cache statistics as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		db := store.NewDB(cfg.Storage.DBPath)
		if err := db.Open(); err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer db.Close()

		stats, err := db.GetStats()
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	},
}

func init() {
	catalogCmd.Flags().BoolVar(&catalogCached, "cached", false, "read the local cache instead of the API")
	catalogCmd.AddCommand(catalogRefreshCmd, catalogStatsCmd)
}

func newAPIClient() *api.Client {
	return api.NewClient(cfg.API.BaseURL,
		api.WithToken(cfg.API.Token),
		api.WithCategories(cfg.API.Categories...),
		api.WithLimit(cfg.API.Limit),
		api.WithPlaysDebounce(cfg.API.PlaysDebounce.Duration),
		api.WithRateLimit(cfg.API.RateLimit),
		api.WithHTTPClient(&http.Client{Timeout: cfg.API.Timeout.Duration}),
	)
}

// printCatalog writes one aligned row per track.
func printCatalog(out io.Writer, tracks []track.Track) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tARTIST\tLIKES\tGENRES")
	for _, t := range tracks {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", t.ID, t.Title, t.Artist.Name, t.LikeCount, strings.Join(t.Genres, ","))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(out, "%d tracks\n", len(tracks))
	return err
}
