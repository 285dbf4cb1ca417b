package repository

import (
	"context"
	"errors"

	"github.com/deldesir/gateway/internal/domain"
	"github.com/deldesir/gateway/internal/pagination"
	"github.com/deldesir/gateway/internal/service"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const knowledgeItemColumns = `id, title, content, source_uri, persona_scope, created_at, updated_at`

type KnowledgeItemRepository struct {
	db dbtx
}

func NewKnowledgeItemRepository(pool *pgxpool.Pool) *KnowledgeItemRepository {
	return &KnowledgeItemRepository{db: pool}
}

func NewKnowledgeItemRepositoryWithTx(tx pgx.Tx) *KnowledgeItemRepository {
	return &KnowledgeItemRepository{db: tx}
}

func (r *KnowledgeItemRepository) Create(ctx context.Context, k *domain.KnowledgeItem) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO knowledge_items (`+knowledgeItemColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		k.ID, k.Title, k.Content, nullableString(k.SourceURI), nullableString(k.PersonaScope), k.CreatedAt, k.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return domain.ErrKnowledgeItemAlreadyExists
	}
	return err
}

func (r *KnowledgeItemRepository) GetByID(ctx context.Context, id string) (*domain.KnowledgeItem, error) {
	k, err := scanKnowledgeItem(r.db.QueryRow(ctx,
		`SELECT `+knowledgeItemColumns+` FROM knowledge_items WHERE id = $1`,
		id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrKnowledgeItemNotFound
		}
		return nil, err
	}
	return k, nil
}

// ListAll returns every item oldest first, the order chunks are rebuilt in.
func (r *KnowledgeItemRepository) ListAll(ctx context.Context) ([]*domain.KnowledgeItem, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+knowledgeItemColumns+` FROM knowledge_items ORDER BY created_at ASC, id ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanKnowledgeItemRows(rows)
}

func (r *KnowledgeItemRepository) ListWithCursor(ctx context.Context, cursor *pagination.Cursor, limit int) (*service.KnowledgePageResult, error) {
	if limit <= 0 {
		limit = 20
	}

	var rows pgx.Rows
	var err error

	if cursor != nil {
		rows, err = r.db.Query(ctx,
			`SELECT `+knowledgeItemColumns+`
			 FROM knowledge_items
			 WHERE (created_at, id) < ($1, $2)
			 ORDER BY created_at DESC, id DESC
			 LIMIT $3`,
			cursor.CreatedAt, cursor.ID, limit+1,
		)
	} else {
		rows, err = r.db.Query(ctx,
			`SELECT `+knowledgeItemColumns+`
			 FROM knowledge_items
			 ORDER BY created_at DESC, id DESC
			 LIMIT $1`,
			limit+1,
		)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items, err := scanKnowledgeItemRows(rows)
	if err != nil {
		return nil, err
	}

	hasMore := len(items) > limit
	if hasMore {
		items = items[:limit]
	}

	var nextCursor string
	if hasMore && len(items) > 0 {
		last := items[len(items)-1]
		nextCursor = pagination.After(last.ID, last.CreatedAt).Encode()
	}

	return &service.KnowledgePageResult{
		Items:      items,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}

func (r *KnowledgeItemRepository) Delete(ctx context.Context, id string) error {
	cmdTag, err := r.db.Exec(ctx, `DELETE FROM knowledge_items WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrKnowledgeItemNotFound
	}
	return nil
}

func (r *KnowledgeItemRepository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM knowledge_items`).Scan(&n)
	return n, err
}

func scanKnowledgeItem(row pgx.Row) (*domain.KnowledgeItem, error) {
	var k domain.KnowledgeItem
	var sourceURI, scope *string
	if err := row.Scan(&k.ID, &k.Title, &k.Content, &sourceURI, &scope, &k.CreatedAt, &k.UpdatedAt); err != nil {
		return nil, err
	}
	k.SourceURI = derefString(sourceURI)
	k.PersonaScope = derefString(scope)
	k.CreatedAt = k.CreatedAt.UTC()
	k.UpdatedAt = k.UpdatedAt.UTC()
	return &k, nil
}

func scanKnowledgeItemRows(rows pgx.Rows) ([]*domain.KnowledgeItem, error) {
	var results []*domain.KnowledgeItem
	for rows.Next() {
		k, err := scanKnowledgeItem(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, k)
	}
	return results, rows.Err()
}

