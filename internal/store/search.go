package store

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/iammorganparry/clive/apps/brain/internal/models"
)

// Search performs full-text search over active entries for admin listing.
// SQLite uses FTS5 bm25 ranking; Postgres uses ts_rank. Higher scores are
// better. Any word matches.
func (s *KnowledgeStore) Search(query string, limit int) ([]models.SearchHit, error) {
	words := searchWords(query)
	if len(words) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}

	var q string
	var match string
	switch s.db.dialect {
	case DialectPostgres:
		match = strings.Join(words, " | ")
		q = fmt.Sprintf(`
			SELECT %s, ts_rank(to_tsvector('simple', question || ' ' || answer || ' ' || coalesce(keywords, '')),
			                   to_tsquery('simple', ?)) AS score
			FROM knowledge
			WHERE active
			  AND to_tsvector('simple', question || ' ' || answer || ' ' || coalesce(keywords, '')) @@ to_tsquery('simple', ?)
			ORDER BY score DESC, id ASC
			LIMIT ?`, knowledgeColumns)
	default:
		quoted := make([]string, len(words))
		for i, w := range words {
			quoted[i] = `"` + w + `"`
		}
		match = strings.Join(quoted, " OR ")
		// bm25() returns negative values where more negative = better match,
		// so we negate to get positive scores where higher = better.
		q = fmt.Sprintf(`
			SELECT %s, -knowledge_fts.rank AS score
			FROM knowledge_fts
			JOIN knowledge k ON k.rowid = knowledge_fts.rowid
			WHERE knowledge_fts MATCH ?
			  AND k.active
			ORDER BY knowledge_fts.rank
			LIMIT ?`, prefixColumns("k", knowledgeColumns))
	}

	args := []any{match, limit}
	if s.db.dialect == DialectPostgres {
		args = []any{match, match, limit}
	}
	rows, err := s.db.Query(s.db.rebind(q), args...)
	if err != nil {
		return nil, fmt.Errorf("search knowledge: %w", err)
	}
	defer rows.Close()

	var hits []models.SearchHit
	for rows.Next() {
		var score float64
		e, err := s.scanOne(scanWithExtra{rows: rows, extra: &score})
		if err != nil {
			return nil, fmt.Errorf("scan search hit: %w", err)
		}
		hits = append(hits, models.SearchHit{Entry: e, Score: score})
	}
	return hits, rows.Err()
}

// scanWithExtra appends trailing destinations to a scanOne call.
type scanWithExtra struct {
	rows  scanner
	extra *float64
}

func (s scanWithExtra) Scan(dest ...any) error {
	return s.rows.Scan(append(dest, s.extra)...)
}

// searchWords keeps letter and digit runs, which are safe to embed in FTS
// query syntax.
func searchWords(query string) []string {
	return strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func prefixColumns(alias, cols string) string {
	parts := strings.Split(cols, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}
