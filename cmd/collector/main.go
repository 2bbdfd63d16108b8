package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/user/cinematch/internal/config"
	"github.com/user/cinematch/internal/logging"
	"github.com/user/cinematch/internal/service"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	if err := newRootCmd(cfg).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(cfg *config.Config) *cobra.Command {
	var (
		pages int
		out   string
		token string
		rps   int
	)

	cmd := &cobra.Command{
		Use:   "collector",
		Short: "Fetch popular movies from TMDB into an import dataset",
		Long: `collector pages through TMDB /discover/movie sorted by popularity and
writes the results as an indented JSON array that the server imports on startup.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			n, err := service.NewCollector(token).WithRateLimit(rps).CollectToFile(ctx, pages, out)
			if err != nil {
				logging.Error().Err(err).Msg("采集失败")
				return err
			}
			cmd.Printf("saved %d movies to %s\n", n, out)
			return nil
		},
	}

	cmd.Flags().IntVar(&pages, "pages", 5, "number of discover pages to fetch")
	cmd.Flags().StringVar(&out, "out", cfg.DatasetPath, "output file")
	cmd.Flags().IntVar(&rps, "rate", cfg.TMDBRateLimit, "max requests per second, 0 disables limiting")
	cmd.Flags().StringVar(&token, "token", cfg.TMDBToken, "TMDB API read access token (defaults to TMDB_API_TOKEN)")
	return cmd
}
