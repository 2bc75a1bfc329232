package repositories

import (
	"context"

	"gorm.io/gorm"
)

// RepositorySet bundles the stores a multi-entity operation touches.
type RepositorySet struct {
	Connections ConnectionRepository
	Threads     ThreadRepository
	Messages    MessageRepository
}

// UnitOfWork runs a function against a transaction-scoped RepositorySet.
// Everything inside fn commits or rolls back as one unit; the history merge
// relies on this to never leave a partially merged global thread behind.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(RepositorySet) error) error
}

type gormUnitOfWork struct {
	db *gorm.DB
}

// NewUnitOfWork creates a gorm-backed UnitOfWork.
func NewUnitOfWork(db *gorm.DB) UnitOfWork {
	return &gormUnitOfWork{db: db}
}

func (u *gormUnitOfWork) Do(ctx context.Context, fn func(RepositorySet) error) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(RepositorySet{
			Connections: NewPostgresConnectionRepository(tx),
			Threads:     NewPostgresThreadRepository(tx),
			Messages:    NewPostgresMessageRepository(tx),
		})
	})
}
