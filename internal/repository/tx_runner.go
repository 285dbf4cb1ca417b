package repository

import (
	"context"

	"github.com/deldesir/gateway/internal/service"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TxRunner hands out repositories bound to one transaction, so a knowledge
// delete and its reindex job commit together.
type TxRunner struct {
	pool *pgxpool.Pool
}

func NewTxRunner(pool *pgxpool.Pool) *TxRunner {
	return &TxRunner{pool: pool}
}

// WithTx commits when fn returns nil and rolls back otherwise.
func (r *TxRunner) WithTx(ctx context.Context, fn func(repos service.TxRepositories) error) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(txRepos{tx: tx})
	})
}

type txRepos struct {
	tx pgx.Tx
}

func (r txRepos) KnowledgeItems() service.KnowledgeItemRepositoryInterface {
	return NewKnowledgeItemRepositoryWithTx(r.tx)
}

func (r txRepos) ReindexJobs() service.ReindexJobRepositoryInterface {
	return NewReindexJobRepositoryWithTx(r.tx)
}
