package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/lovelanguages/server/internal/model"
	"github.com/lovelanguages/server/internal/repository"
)

var _ repository.ArticleRepository = (*DB)(nil)

func (db *DB) CreateArticle(ctx context.Context, a *model.Article) error {
	if a.ID == "" {
		a.ID = xid.New().String()
	}
	if a.UpdatedAt.IsZero() {
		a.UpdatedAt = time.Now()
	}

	tags, err := json.Marshal(a.Tags)
	if err != nil {
		return fmt.Errorf("sqlite: encoding article tags: %w", err)
	}

	// Regenerating an article for the same language pair and slug replaces
	// the old content.
	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO blog_articles (id, slug, native_lang, target_lang, title, description, content, tags, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (native_lang, target_lang, slug) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			content = excluded.content,
			tags = excluded.tags,
			updated_at = excluded.updated_at`,
		a.ID, a.Slug, a.NativeLang, a.TargetLang, a.Title, a.Description, a.Content, string(tags), a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting article: %w", err)
	}
	return nil
}

func (db *DB) ListArticles(ctx context.Context, opts repository.ListOptions) ([]model.Article, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, slug, native_lang, target_lang, title, description, content, tags, updated_at
		 FROM blog_articles
		 ORDER BY updated_at DESC
		 LIMIT ? OFFSET ?`,
		opts.Limit, opts.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing articles: %w", err)
	}
	defer rows.Close()

	var articles []model.Article
	for rows.Next() {
		var a model.Article
		var tags string
		if err := rows.Scan(&a.ID, &a.Slug, &a.NativeLang, &a.TargetLang,
			&a.Title, &a.Description, &a.Content, &tags, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning article: %w", err)
		}
		if tags != "" && tags != "null" {
			if err := json.Unmarshal([]byte(tags), &a.Tags); err != nil {
				return nil, fmt.Errorf("sqlite: decoding article tags: %w", err)
			}
		}
		articles = append(articles, a)
	}
	return articles, rows.Err()
}

func (db *DB) CountArticles(ctx context.Context) (int, error) {
	var n int
	err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM blog_articles`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("sqlite: counting articles: %w", err)
	}
	return n, nil
}
