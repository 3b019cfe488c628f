package corpus

import (
	"context"
	"fmt"
)

type VersionStats struct {
	Version       int   `json:"version"`
	Pages         int   `json:"pages"`
	Chunks        int   `json:"chunks"`
	ContentLength int64 `json:"content_length"`
}

// Versions summarises the live corpus per version.
func (s *Store) Versions(ctx context.Context) ([]VersionStats, error) {
	rows, err := s.db.Query(ctx,
		`SELECT version, COUNT(*), COALESCE(SUM(chunks_count), 0), COALESCE(SUM(content_length), 0)
		 FROM `+s.tables.livePages()+`
		 GROUP BY version
		 ORDER BY version`,
	)
	if err != nil {
		return nil, storeErr("versions", err)
	}
	defer rows.Close()

	var out []VersionStats
	for rows.Next() {
		var v VersionStats
		if err := rows.Scan(&v.Version, &v.Pages, &v.Chunks, &v.ContentLength); err != nil {
			return nil, storeErr("versions", fmt.Errorf("scan: %w", err))
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("versions", err)
	}
	return out, nil
}
