package blog

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/lovelanguages/server/internal/model"
)

// DuplicateGroup is a set of articles sharing the same normalized content.
type DuplicateGroup struct {
	Hash  string   `json:"hash"`
	Slugs []string `json:"slugs"`
}

// normalizeBody makes the hash insensitive to whitespace and casing so that
// trivially reformatted copies still collide.
func normalizeBody(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// HashContent returns the hex SHA-256 of the normalized article body.
func HashContent(content string) string {
	sum := sha256.Sum256([]byte(normalizeBody(content)))
	return hex.EncodeToString(sum[:])
}

// FindDuplicates groups articles by content hash and returns the groups with
// more than one member. Output is deterministic: slugs sorted within each
// group, groups sorted by hash.
func FindDuplicates(articles []model.Article) []DuplicateGroup {
	byHash := make(map[string][]string)
	for _, a := range articles {
		h := HashContent(a.Content)
		byHash[h] = append(byHash[h], a.Slug)
	}

	var groups []DuplicateGroup
	for h, slugs := range byHash {
		if len(slugs) < 2 {
			continue
		}
		sort.Strings(slugs)
		groups = append(groups, DuplicateGroup{Hash: h, Slugs: slugs})
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Hash < groups[j].Hash })
	return groups
}

// WriteDuplicateReport emits the groups as indented JSON.
func WriteDuplicateReport(w io.Writer, groups []DuplicateGroup) error {
	if groups == nil {
		groups = []DuplicateGroup{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(groups); err != nil {
		return fmt.Errorf("blog: encoding duplicate report: %w", err)
	}
	return nil
}
