package service

import "context"

type testTxRepos struct {
	items *MockKnowledgeItemRepository
	jobs  *MockReindexJobRepository
}

func (t *testTxRepos) KnowledgeItems() KnowledgeItemRepositoryInterface {
	return t.items
}

func (t *testTxRepos) ReindexJobs() ReindexJobRepositoryInterface {
	return t.jobs
}

type testTxRunner struct {
	repos  TxRepositories
	called bool
}

func (t *testTxRunner) WithTx(ctx context.Context, fn func(repos TxRepositories) error) error {
	t.called = true
	return fn(t.repos)
}
