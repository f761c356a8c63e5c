package port

import (
	"context"

	"github.com/jefferypippitt/essential-todo/internal/core/domain"
	"github.com/jefferypippitt/essential-todo/internal/core/model/response"
)

// TodoRepository is the storage the ordering service runs on. Implementations
// return *domain.NotFoundError for missing ids.
type TodoRepository interface {
	Insert(ctx context.Context, todo domain.Todo) (domain.Todo, error)
	Update(ctx context.Context, id int, changes domain.TodoChanges) (domain.Todo, error)
	Delete(ctx context.Context, id int) error
	FindByID(ctx context.Context, id int) (domain.Todo, error)
	FindAll(ctx context.Context) ([]domain.Todo, error)
	FindPage(ctx context.Context, limit int, after *domain.Position) ([]domain.Todo, bool, error)
	MaxOrder(ctx context.Context) (int, error)
	ShiftOrders(ctx context.Context, r domain.OrderRange, delta int) (int64, error)
	Ping(ctx context.Context) error
}

// TodoStore is a repository that can run a unit of work atomically. The
// repository handed to fn is bound to the transaction.
type TodoStore interface {
	TodoRepository
	WithinTx(ctx context.Context, fn func(ctx context.Context, repo TodoRepository) error) error
}

type TodoService interface {
	List(ctx context.Context) ([]domain.Todo, error)
	ListPage(ctx context.Context, limit int, cursor string) (*response.CursorResponse, error)
	Get(ctx context.Context, id int) (domain.Todo, error)
	Append(ctx context.Context, title string, description string) (domain.Todo, error)
	Remove(ctx context.Context, id int) error
	Move(ctx context.Context, activeID int, overID int) ([]domain.Todo, error)
	Toggle(ctx context.Context, id int) (domain.Todo, error)
	Rename(ctx context.Context, id int, title string, description *string) (domain.Todo, error)
}

// TodoActions is what a list row needs to act on its own item. Failures come
// back inside the ActionState instead of as errors.
type TodoActions interface {
	Toggle(ctx context.Context, id int) response.ActionState
	Remove(ctx context.Context, id int) response.ActionState
	Rename(ctx context.Context, id int, title string, description *string) response.ActionState
}

// TodoListActions adds the list level actions (the add form and drag end).
type TodoListActions interface {
	TodoActions
	Append(ctx context.Context, title string, description string) response.ActionState
	Move(ctx context.Context, activeID int, overID int) response.ActionState
}
