package pricehistory

import (
	"context"
	"database/sql"
	"time"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

// Append inserts a record and returns it with its generated id and timestamp.
func (r *PGRepo) Append(ctx context.Context, rec Record) (Record, error) {
	const query = `
INSERT INTO price_history (target_entity_id, analysis_id, competitor_name, price, currency, recorded_at)
VALUES ($1, $2, $3, $4, $5, COALESCE($6::timestamptz, now()))
RETURNING id, recorded_at`
	var recordedAt *time.Time
	if !rec.RecordedAt.IsZero() {
		recordedAt = &rec.RecordedAt
	}
	err := r.DB.QueryRowContext(ctx, query,
		rec.TargetEntityID,
		rec.AnalysisID,
		rec.CompetitorName,
		rec.Price,
		rec.Currency,
		recordedAt,
	).Scan(&rec.ID, &rec.RecordedAt)
	if err != nil {
		return Record{}, err
	}
	return rec, nil
}

// ListByEntity returns the most recent records for an entity, oldest first.
func (r *PGRepo) ListByEntity(ctx context.Context, targetEntityID string, limit int) ([]Record, error) {
	if limit <= 0 || limit > 1000 {
		limit = 1000
	}
	const query = `
SELECT id, target_entity_id, analysis_id, competitor_name, price, currency, recorded_at
FROM (
	SELECT id, target_entity_id, analysis_id, competitor_name, price, currency, recorded_at
	FROM price_history
	WHERE target_entity_id = $1
	ORDER BY recorded_at DESC, id DESC
	LIMIT $2
) recent
ORDER BY recorded_at ASC, id ASC`

	rows, err := r.DB.QueryContext(ctx, query, targetEntityID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(
			&rec.ID,
			&rec.TargetEntityID,
			&rec.AnalysisID,
			&rec.CompetitorName,
			&rec.Price,
			&rec.Currency,
			&rec.RecordedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
