package cli

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"
	"github.com/urlmg/urlkeeper/cmd"
	"github.com/urlmg/urlkeeper/internal/config"
	"github.com/urlmg/urlkeeper/internal/indexnow"
	"github.com/urlmg/urlkeeper/internal/logger"
)

var (
	indexNowSitemap string
	indexNowURLs    []string
)

// IndexNowCmd submits URLs to the IndexNow API from the command line, either
// an explicit list or everything found in a sitemap.
var IndexNowCmd = &cobra.Command{
	Use:   "indexnow",
	Short: "Submits URLs to the IndexNow API",
	Long: `Submits URLs to search engines via the IndexNow protocol. Provide
either --url flags for an explicit list or --sitemap to fetch and submit a
whole sitemap.`,
	Run: func(_ *cobra.Command, _ []string) {
		cfg, err := config.LoadConfig()
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}
		if indexNowSitemap == "" && len(indexNowURLs) == 0 {
			log.Fatal("Provide --sitemap or at least one --url")
		}

		svc := indexnow.NewService(
			cfg.IndexNow.Endpoint, cfg.IndexNow.Key, cfg.IndexNow.Host,
			cfg.Server.BaseURL,
			time.Duration(cfg.IndexNow.TimeoutSeconds)*time.Second,
			logger.New(cfg.Logging.Level, true))

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		var result *indexnow.Result
		if indexNowSitemap != "" {
			result, err = svc.SubmitSitemap(ctx, indexNowSitemap)
		} else {
			result, err = svc.Submit(ctx, indexNowURLs)
		}
		if err != nil {
			log.Fatalf("IndexNow submission failed: %v", err)
		}

		fmt.Printf("IndexNow submission accepted with status %d.\n", result.Status)
	},
}

func init() {
	IndexNowCmd.Flags().StringVar(&indexNowSitemap, "sitemap", "", "sitemap URL to fetch and submit")
	IndexNowCmd.Flags().StringArrayVar(&indexNowURLs, "url", nil, "URL to submit (repeatable)")
	cmd.RootCmd.AddCommand(IndexNowCmd)
}
