package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/jefferypippitt/essential-todo/internal/core/domain"
	"github.com/jefferypippitt/essential-todo/internal/core/port"
)

// Store keeps todos in process memory. Transactions work on a copy of the
// table that replaces the live one only when the unit of work succeeds.
type Store struct {
	mu    sync.Mutex
	table *table
}

var _ port.TodoStore = (*Store)(nil)

func NewStore() *Store {
	return &Store{table: newTable()}
}

func (s *Store) Insert(ctx context.Context, todo domain.Todo) (domain.Todo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.table.Insert(ctx, todo)
}

func (s *Store) Update(ctx context.Context, id int, changes domain.TodoChanges) (domain.Todo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.table.Update(ctx, id, changes)
}

func (s *Store) Delete(ctx context.Context, id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.table.Delete(ctx, id)
}

func (s *Store) FindByID(ctx context.Context, id int) (domain.Todo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.table.FindByID(ctx, id)
}

func (s *Store) FindAll(ctx context.Context) ([]domain.Todo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.table.FindAll(ctx)
}

func (s *Store) FindPage(ctx context.Context, limit int, after *domain.Position) ([]domain.Todo, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.table.FindPage(ctx, limit, after)
}

func (s *Store) MaxOrder(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.table.MaxOrder(ctx)
}

func (s *Store) ShiftOrders(ctx context.Context, r domain.OrderRange, delta int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.table.ShiftOrders(ctx, r, delta)
}

func (s *Store) Ping(ctx context.Context) error {
	return nil
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, repo port.TodoRepository) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	working := s.table.clone()

	if err := fn(ctx, working); err != nil {
		return err
	}

	s.table = working

	return nil
}

type table struct {
	rows   map[int]domain.Todo
	nextID int
}

func newTable() *table {
	return &table{rows: make(map[int]domain.Todo), nextID: 1}
}

func (t *table) clone() *table {
	rows := make(map[int]domain.Todo, len(t.rows))

	for id, todo := range t.rows {
		rows[id] = todo
	}

	return &table{rows: rows, nextID: t.nextID}
}

func (t *table) sorted() []domain.Todo {
	todos := make([]domain.Todo, 0, len(t.rows))

	for _, todo := range t.rows {
		todos = append(todos, todo)
	}

	sort.Slice(todos, func(i, j int) bool {
		if todos[i].Order != todos[j].Order {
			return todos[i].Order < todos[j].Order
		}

		return todos[i].ID < todos[j].ID
	})

	return todos
}

func (t *table) Insert(ctx context.Context, todo domain.Todo) (domain.Todo, error) {
	todo.ID = t.nextID
	t.nextID++
	t.rows[todo.ID] = todo

	return todo, nil
}

func (t *table) Update(ctx context.Context, id int, changes domain.TodoChanges) (domain.Todo, error) {
	todo, ok := t.rows[id]

	if !ok {
		return domain.Todo{}, &domain.NotFoundError{ID: id}
	}

	changes.Apply(&todo)
	t.rows[id] = todo

	return todo, nil
}

func (t *table) Delete(ctx context.Context, id int) error {
	if _, ok := t.rows[id]; !ok {
		return &domain.NotFoundError{ID: id}
	}

	delete(t.rows, id)

	return nil
}

func (t *table) FindByID(ctx context.Context, id int) (domain.Todo, error) {
	todo, ok := t.rows[id]

	if !ok {
		return domain.Todo{}, &domain.NotFoundError{ID: id}
	}

	return todo, nil
}

func (t *table) FindAll(ctx context.Context) ([]domain.Todo, error) {
	return t.sorted(), nil
}

func (t *table) FindPage(ctx context.Context, limit int, after *domain.Position) ([]domain.Todo, bool, error) {
	page := make([]domain.Todo, 0, limit)

	for _, todo := range t.sorted() {
		if after != nil && !after.Before(todo) {
			continue
		}

		page = append(page, todo)
	}

	if len(page) > limit {
		return page[:limit], true, nil
	}

	return page, false, nil
}

func (t *table) MaxOrder(ctx context.Context) (int, error) {
	maxOrder := 0

	for _, todo := range t.rows {
		if todo.Order > maxOrder {
			maxOrder = todo.Order
		}
	}

	return maxOrder, nil
}

func (t *table) ShiftOrders(ctx context.Context, r domain.OrderRange, delta int) (int64, error) {
	var shifted int64

	for id, todo := range t.rows {
		if r.Contains(todo.Order) {
			todo.Order += delta
			t.rows[id] = todo
			shifted++
		}
	}

	return shifted, nil
}

func (t *table) Ping(ctx context.Context) error {
	return nil
}
