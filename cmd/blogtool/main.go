// Command blogtool runs the offline content pipeline jobs against the
// article table: sitemap generation, duplicate detection and legacy
// redirect building. Each run is a linear batch with no state carried over.
//
// Usage:
//
//	blogtool -job sitemap   -db data/lovelanguages.db -out sitemap.xml
//	blogtool -job dedupe    -db data/lovelanguages.db -out duplicates.json
//	blogtool -job redirects -db data/lovelanguages.db -out redirects.json
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/lovelanguages/server/internal/blog"
	"github.com/lovelanguages/server/internal/model"
	"github.com/lovelanguages/server/internal/repository"
	sqliteRepo "github.com/lovelanguages/server/internal/repository/sqlite"
)

const pageSize = 200

func main() {
	godotenv.Load()

	job := flag.String("job", "", "job to run: sitemap, dedupe or redirects")
	dbPath := flag.String("db", "data/lovelanguages.db", "path to the SQLite database")
	outPath := flag.String("out", "", "output file (stdout when empty)")
	baseURL := flag.String("base", blog.DefaultBaseURL, "site origin for canonical URLs")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	if err := run(*job, *dbPath, *outPath, *baseURL, logger); err != nil {
		logger.Error("job failed", slog.String("job", *job), slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(job, dbPath, outPath, baseURL string, logger *slog.Logger) error {
	db, err := sqliteRepo.New(dbPath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	articles, err := loadAllArticles(context.Background(), db, logger)
	if err != nil {
		return err
	}

	out := io.Writer(os.Stdout)
	if outPath != "" {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	switch job {
	case "sitemap":
		sm := blog.BuildSitemap(baseURL, articles)
		if err := sm.Encode(out); err != nil {
			return err
		}
		logger.Info("sitemap written", slog.Int("urls", len(sm.URLs)))
	case "dedupe":
		groups := blog.FindDuplicates(articles)
		if err := blog.WriteDuplicateReport(out, groups); err != nil {
			return err
		}
		logger.Info("duplicate report written", slog.Int("groups", len(groups)))
	case "redirects":
		redirects := blog.BuildLegacyRedirects(articles)
		if err := blog.WriteRedirects(out, redirects); err != nil {
			return err
		}
		logger.Info("redirects written", slog.Int("redirects", len(redirects)))
	default:
		return fmt.Errorf("unknown job %q (want sitemap, dedupe or redirects)", job)
	}

	return nil
}

// loadAllArticles pages through the article table, logging progress per page.
func loadAllArticles(ctx context.Context, repo repository.ArticleRepository, logger *slog.Logger) ([]model.Article, error) {
	total, err := repo.CountArticles(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting articles: %w", err)
	}

	var all []model.Article
	for offset := 0; ; offset += pageSize {
		page, err := repo.ListArticles(ctx, repository.ListOptions{Limit: pageSize, Offset: offset})
		if err != nil {
			return nil, fmt.Errorf("listing articles at offset %d: %w", offset, err)
		}
		if len(page) == 0 {
			break
		}
		all = append(all, page...)
		logger.Info("loaded articles", slog.Int("have", len(all)), slog.Int("total", total))
	}
	return all, nil
}
