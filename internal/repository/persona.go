package repository

import (
	"context"
	"errors"
	"time"

	"github.com/deldesir/gateway/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const personaColumns = `id, name, personality, style, system_prompt, allowed_tools, knowledge, created_at, updated_at`

type PersonaRepository struct {
	db dbtx
}

func NewPersonaRepository(pool *pgxpool.Pool) *PersonaRepository {
	return &PersonaRepository{db: pool}
}

func (r *PersonaRepository) Create(ctx context.Context, p *domain.PersonaProfile) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO personas (`+personaColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		p.ID, p.Name, p.Personality, p.Style, nullableString(p.SystemPrompt), tools(p.AllowedTools),
		nullableString(p.Knowledge), p.CreatedAt, p.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return domain.ErrPersonaAlreadyExists
	}
	return err
}

func (r *PersonaRepository) GetByID(ctx context.Context, id string) (*domain.PersonaProfile, error) {
	p, err := scanPersona(r.db.QueryRow(ctx,
		`SELECT `+personaColumns+` FROM personas WHERE id = $1`,
		id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrPersonaNotFound
		}
		return nil, err
	}
	return p, nil
}

func (r *PersonaRepository) List(ctx context.Context) ([]*domain.PersonaProfile, error) {
	rows, err := r.db.Query(ctx, `SELECT `+personaColumns+` FROM personas ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*domain.PersonaProfile
	for rows.Next() {
		p, err := scanPersona(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, p)
	}
	return results, rows.Err()
}

func (r *PersonaRepository) Update(ctx context.Context, p *domain.PersonaProfile) error {
	p.UpdatedAt = time.Now().UTC()
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE personas
		 SET name = $1, personality = $2, style = $3, system_prompt = $4, allowed_tools = $5, knowledge = $6, updated_at = $7
		 WHERE id = $8`,
		p.Name, p.Personality, p.Style, nullableString(p.SystemPrompt), tools(p.AllowedTools),
		nullableString(p.Knowledge), p.UpdatedAt, p.ID,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrPersonaNotFound
	}
	return nil
}

func (r *PersonaRepository) Delete(ctx context.Context, id string) error {
	cmdTag, err := r.db.Exec(ctx, `DELETE FROM personas WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrPersonaNotFound
	}
	return nil
}

// tools keeps allowed_tools NOT NULL.
func tools(t []string) []string {
	if t == nil {
		return []string{}
	}
	return t
}

func scanPersona(row pgx.Row) (*domain.PersonaProfile, error) {
	var p domain.PersonaProfile
	var systemPrompt, knowledge *string
	if err := row.Scan(&p.ID, &p.Name, &p.Personality, &p.Style, &systemPrompt, &p.AllowedTools, &knowledge, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.SystemPrompt = derefString(systemPrompt)
	p.Knowledge = derefString(knowledge)
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return &p, nil
}
