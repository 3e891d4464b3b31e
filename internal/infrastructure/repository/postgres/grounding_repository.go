package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ikolomin/siterag/internal/core/domain"
)

// GroundingRepository durably records the passages that grounded each
// conversation turn, keyed by session.
type GroundingRepository struct {
	db *sql.DB
}

func NewGroundingRepository(db *sql.DB) *GroundingRepository {
	return &GroundingRepository{db: db}
}

func (r *GroundingRepository) Get(ctx context.Context, sessionID string) ([]domain.TurnGrounding, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT session_id, turn_index, passages_text, created_at
FROM turn_groundings
WHERE session_id = $1
ORDER BY created_at ASC, turn_index ASC
`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list turn groundings: %w", err)
	}
	defer rows.Close()

	out := make([]domain.TurnGrounding, 0)
	for rows.Next() {
		var g domain.TurnGrounding
		if err := rows.Scan(&g.SessionID, &g.TurnIndex, &g.PassagesText, &g.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan turn grounding: %w", err)
		}
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate turn groundings: %w", err)
	}
	return out, nil
}

func (r *GroundingRepository) Append(ctx context.Context, sessionID string, turnIndex int, passagesText string) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO turn_groundings (id, session_id, turn_index, passages_text, created_at)
VALUES ($1,$2,$3,$4,$5)
`, uuid.NewString(), sessionID, turnIndex, passagesText, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("append turn grounding: %w", err)
	}
	return nil
}
