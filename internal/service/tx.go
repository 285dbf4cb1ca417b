package service

import "context"

// TxRepositories are the repositories that share a transaction.
type TxRepositories interface {
	KnowledgeItems() KnowledgeItemRepositoryInterface
	ReindexJobs() ReindexJobRepositoryInterface
}

// TxRunner runs fn in a transaction that commits only if fn succeeds.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(repos TxRepositories) error) error
}
