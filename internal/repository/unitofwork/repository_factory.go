package unitofwork

import "context"

type RepositoryFactory interface {
	NewUnitOfWork(ctx context.Context) UnitOfWork
	// Transaction runs fn inside one database transaction. It commits when
	// fn returns nil and rolls back otherwise, including on panic.
	Transaction(ctx context.Context, fn func(uow UnitOfWork) error) error
}
