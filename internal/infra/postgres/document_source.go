package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"quiz-playback-service/internal/domain"
)

// DocumentSource loads quiz document JSONB from Postgres.
type DocumentSource struct {
	pool *pgxpool.Pool
}

func NewDocumentSource(pool *pgxpool.Pool) *DocumentSource {
	return &DocumentSource{pool: pool}
}

func (s *DocumentSource) FetchDocument(ctx context.Context, docID string) ([]byte, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM quiz_documents WHERE id=$1`, docID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("fetch document %q: %w", docID, domain.ErrDocumentNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("fetch document %q: %w", docID, err)
	}
	return raw, nil
}
