package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"
)

// IndexFTS writes an entity's metadata_text projection into entities_fts,
// replacing any prior row for the same entity. entities_fts is a
// contentless FTS5 table keyed by entity ID as rowid, so row replacement
// is a delete followed by insert rather than SQL UPDATE.
func (s *Store) IndexFTS(ctx context.Context, entityID int64, text string) error {
	segmented := segmentCJK(text)
	if _, err := s.db.ExecContext(ctx, `DELETE FROM entities_fts WHERE rowid = ?`, entityID); err != nil {
		return fmt.Errorf("clear fts row: %w", err)
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO entities_fts (rowid, metadata_text) VALUES (?, ?)`, entityID, segmented); err != nil {
		return fmt.Errorf("index fts: %w", err)
	}
	return s.MarkFTSIndexed(ctx, entityID, time.Now())
}

// FTSResult is one ranked hit from FullTextSearch.
type FTSResult struct {
	EntityID int64
	Score    float64 // bm25 rank: lower is more relevant
}

// FullTextSearch runs a bm25-ranked FTS5 MATCH query over entities_fts,
// restricted to entities satisfying filters.
func (s *Store) FullTextSearch(ctx context.Context, query string, f Filters, limit int) ([]FTSResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	where, args := buildFilterClause(f)
	sqlQuery := fmt.Sprintf(`
		SELECT e.id, bm25(entities_fts) AS rank
		FROM entities_fts
		JOIN entities e ON e.id = entities_fts.rowid
		%s AND e.file_type_group = 'image' AND entities_fts MATCH ?
		ORDER BY rank ASC, e.file_created_at DESC
		LIMIT ?`, where)
	args = append(args, buildMatchQuery(query), limit)

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("fts search: %w", err)
	}
	defer rows.Close()

	var results []FTSResult
	for rows.Next() {
		var r FTSResult
		if err := rows.Scan(&r.EntityID, &r.Score); err != nil {
			return nil, fmt.Errorf("fts search: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// buildMatchQuery segments CJK runes, splits on whitespace, and AND-joins
// the resulting tokens into an FTS5 MATCH expression: queries are
// constructed by AND-joining whitespace-split user tokens.
func buildMatchQuery(query string) string {
	segmented := segmentCJK(query)
	fields := strings.Fields(segmented)
	if len(fields) == 0 {
		return segmented
	}
	quoted := make([]string, len(fields))
	for i, f := range fields {
		quoted[i] = `"` + strings.ReplaceAll(f, `"`, `""`) + `"`
	}
	return strings.Join(quoted, " AND ")
}

// segmentCJK inserts spaces between consecutive CJK runes so that
// unicode61's whitespace tokenizer treats each CJK character as its own
// token, approximating word segmentation for languages without
// inter-word spacing, so CJK text remains searchable.
func segmentCJK(text string) string {
	var b strings.Builder
	prevCJK := false
	for i, r := range text {
		cjk := isCJK(r)
		if cjk && i > 0 {
			b.WriteRune(' ')
		} else if prevCJK && !cjk {
			b.WriteRune(' ')
		}
		b.WriteRune(r)
		prevCJK = cjk
	}
	return b.String()
}

func isCJK(r rune) bool {
	return unicode.Is(unicode.Han, r) ||
		unicode.Is(unicode.Hiragana, r) ||
		unicode.Is(unicode.Katakana, r) ||
		unicode.Is(unicode.Hangul, r)
}
