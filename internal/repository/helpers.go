package repository

import (
	"context"
	"fmt"
)

const (
	defaultLimit = 20
	maxLimit     = 100
)

// clampLimit keeps page sizes within [1, maxLimit].
func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultLimit
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}

func clampOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}

func deleteByID(ctx context.Context, db DBTX, table string, id int64) (bool, error) {
	tag, err := db.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, table), id)
	if err != nil {
		return false, fmt.Errorf("delete %s: %w", table, err)
	}
	return tag.RowsAffected() > 0, nil
}

func countRows(ctx context.Context, db DBTX, table string) (int, error) {
	var n int
	if err := db.QueryRow(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, table)).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}

// likePattern escapes LIKE metacharacters and wraps query for a contains match.
func likePattern(query string) string {
	r := make([]rune, 0, len(query)+2)
	r = append(r, '%')
	for _, c := range query {
		if c == '%' || c == '_' || c == '\\' {
			r = append(r, '\\')
		}
		r = append(r, c)
	}
	return string(append(r, '%'))
}
