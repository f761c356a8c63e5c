package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/jefferypippitt/essential-todo/internal/adapter/database/sqlite"
	"github.com/jefferypippitt/essential-todo/internal/core/domain"
	"github.com/jefferypippitt/essential-todo/internal/core/port"
	tel "github.com/jefferypippitt/essential-todo/internal/core/telemetry"
)

const (
	table       = "todos"
	orderColumn = `"order"`
)

var columns = []string{"id", "title", "description", "completed", orderColumn, "created_at"}

type TodoRepository struct {
	db        *sqlite.DB
	q         sqlite.Querier
	telemetry port.Telemetry
	inTx      bool
}

func NewTodoRepository(db *sqlite.DB, telemetry port.Telemetry) *TodoRepository {
	if telemetry == nil {
		telemetry = tel.NewNoOpProbe()
	}

	return &TodoRepository{
		db:        db,
		q:         db.DB,
		telemetry: telemetry,
	}
}

var _ port.TodoStore = (*TodoRepository)(nil)

func (tr *TodoRepository) observe(ctx context.Context, operation string, attrs map[string]interface{}) (context.Context, func(err error)) {
	if attrs == nil {
		attrs = make(map[string]interface{})
	}

	attrs["db.system"] = "sqlite"
	attrs["db.table"] = table
	attrs["db.in_transaction"] = tr.inTx

	startTime := time.Now()
	ctx, span := tr.telemetry.StartRepositorySpan(ctx, operation, "todo", attrs)

	return ctx, func(err error) {
		duration := time.Since(startTime)

		span.SetAttributes(map[string]interface{}{
			"operation.duration_ns": duration.Nanoseconds(),
		})

		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			span.SetStatus("error", err.Error())
			span.RecordError(err)
		} else {
			span.SetStatus("ok", "")
		}

		tr.telemetry.RecordRepositoryOperation(ctx, operation, table, duration, err)
		span.End()
	}
}

// WithinTx runs fn with a repository bound to a single transaction. The
// connection string sets _txlock=immediate, so BEGIN takes the write lock.
func (tr *TodoRepository) WithinTx(ctx context.Context, fn func(ctx context.Context, repo port.TodoRepository) error) (err error) {
	if tr.inTx {
		return fn(ctx, tr)
	}

	tx, err := tr.db.BeginTx(ctx, nil)

	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	txRepo := &TodoRepository{
		db:        tr.db,
		q:         tx,
		telemetry: tr.telemetry,
		inTx:      true,
	}

	if err := fn(ctx, txRepo); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}

		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

func (tr *TodoRepository) Insert(ctx context.Context, todo domain.Todo) (created domain.Todo, err error) {
	ctx, done := tr.observe(ctx, "Insert", map[string]interface{}{"todo.order": todo.Order})
	defer func() { done(err) }()

	var description interface{}

	if todo.Description != "" {
		description = todo.Description
	}

	query, args, err := tr.db.QueryBuilder.Insert(table).
		Columns("title", "description", "completed", orderColumn, "created_at").
		Values(todo.Title, description, todo.Completed, todo.Order, todo.CreatedAt).
		ToSql()

	if err != nil {
		return domain.Todo{}, err
	}

	tr.telemetry.RecordRepositoryQuery(ctx, "Insert", "todo", query, args)

	result, err := tr.q.ExecContext(ctx, query, args...)

	if err != nil {
		return domain.Todo{}, err
	}

	id, err := result.LastInsertId()

	if err != nil {
		return domain.Todo{}, err
	}

	todo.ID = int(id)

	return todo, nil
}

func (tr *TodoRepository) Update(ctx context.Context, id int, changes domain.TodoChanges) (updated domain.Todo, err error) {
	ctx, done := tr.observe(ctx, "Update", map[string]interface{}{"todo.id": id})
	defer func() { done(err) }()

	if changes.IsEmpty() {
		return tr.findByID(ctx, id)
	}

	query, args, err := tr.db.QueryBuilder.Update(table).
		SetMap(changes.ToMap()).
		Where(sq.Eq{"id": id}).
		ToSql()

	if err != nil {
		return domain.Todo{}, err
	}

	tr.telemetry.RecordRepositoryQuery(ctx, "Update", "todo", query, args)

	result, err := tr.q.ExecContext(ctx, query, args...)

	if err != nil {
		return domain.Todo{}, err
	}

	if affected, err := result.RowsAffected(); err != nil {
		return domain.Todo{}, err
	} else if affected == 0 {
		return domain.Todo{}, &domain.NotFoundError{ID: id}
	}

	return tr.findByID(ctx, id)
}

func (tr *TodoRepository) Delete(ctx context.Context, id int) (err error) {
	ctx, done := tr.observe(ctx, "Delete", map[string]interface{}{"todo.id": id})
	defer func() { done(err) }()

	query, args, err := tr.db.QueryBuilder.Delete(table).Where(sq.Eq{"id": id}).ToSql()

	if err != nil {
		return err
	}

	tr.telemetry.RecordRepositoryQuery(ctx, "Delete", "todo", query, args)

	result, err := tr.q.ExecContext(ctx, query, args...)

	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()

	if err != nil {
		return err
	}

	if affected == 0 {
		return &domain.NotFoundError{ID: id}
	}

	return nil
}

func (tr *TodoRepository) FindByID(ctx context.Context, id int) (todo domain.Todo, err error) {
	ctx, done := tr.observe(ctx, "FindByID", map[string]interface{}{"todo.id": id})
	defer func() { done(err) }()

	return tr.findByID(ctx, id)
}

func (tr *TodoRepository) findByID(ctx context.Context, id int) (domain.Todo, error) {
	query, args, err := tr.db.QueryBuilder.Select(columns...).
		From(table).
		Where(sq.Eq{"id": id}).
		Limit(1).
		ToSql()

	if err != nil {
		return domain.Todo{}, err
	}

	tr.telemetry.RecordRepositoryQuery(ctx, "FindByID", "todo", query, args)

	rows, err := tr.q.QueryContext(ctx, query, args...)

	if err != nil {
		return domain.Todo{}, err
	}
	defer rows.Close()

	todo, err := sqlite.ScanOne[domain.Todo](rows)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Todo{}, &domain.NotFoundError{ID: id}
		}

		return domain.Todo{}, err
	}

	return todo, nil
}

func (tr *TodoRepository) FindAll(ctx context.Context) (todos []domain.Todo, err error) {
	ctx, done := tr.observe(ctx, "FindAll", nil)
	defer func() { done(err) }()

	query, args, err := tr.db.QueryBuilder.Select(columns...).
		From(table).
		OrderBy(orderColumn+" ASC", "id ASC").
		ToSql()

	if err != nil {
		return nil, err
	}

	return tr.query(ctx, "FindAll", query, args)
}

func (tr *TodoRepository) FindPage(ctx context.Context, limit int, after *domain.Position) (todos []domain.Todo, hasNext bool, err error) {
	ctx, done := tr.observe(ctx, "FindPage", map[string]interface{}{"pagination.limit": limit})
	defer func() { done(err) }()

	actualLimit := limit + 1

	builder := tr.db.QueryBuilder.Select(columns...).
		From(table).
		OrderBy(orderColumn+" ASC", "id ASC").
		Limit(uint64(actualLimit))

	if after != nil {
		builder = builder.Where(sq.Or{
			sq.Gt{orderColumn: after.Order},
			sq.And{
				sq.Eq{orderColumn: after.Order},
				sq.Gt{"id": after.ID},
			},
		})
	}

	query, args, err := builder.ToSql()

	if err != nil {
		return nil, false, err
	}

	todos, err = tr.query(ctx, "FindPage", query, args)

	if err != nil {
		return nil, false, err
	}

	hasNext = len(todos) == actualLimit
	if hasNext {
		todos = todos[:limit]
	}

	return todos, hasNext, nil
}

func (tr *TodoRepository) query(ctx context.Context, operation string, query string, args []interface{}) ([]domain.Todo, error) {
	tr.telemetry.RecordRepositoryQuery(ctx, operation, "todo", query, args)

	rows, err := tr.q.QueryContext(ctx, query, args...)

	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return sqlite.ScanAll[domain.Todo](rows)
}

func (tr *TodoRepository) MaxOrder(ctx context.Context) (maxOrder int, err error) {
	ctx, done := tr.observe(ctx, "MaxOrder", nil)
	defer func() { done(err) }()

	query, args, err := tr.db.QueryBuilder.Select("COALESCE(MAX(" + orderColumn + "), 0)").From(table).ToSql()

	if err != nil {
		return 0, err
	}

	tr.telemetry.RecordRepositoryQuery(ctx, "MaxOrder", "todo", query, args)

	if err := tr.q.QueryRowContext(ctx, query, args...).Scan(&maxOrder); err != nil {
		return 0, err
	}

	return maxOrder, nil
}

// ShiftOrders adds delta to the order of every row whose order falls in r.
func (tr *TodoRepository) ShiftOrders(ctx context.Context, r domain.OrderRange, delta int) (shifted int64, err error) {
	ctx, done := tr.observe(ctx, "ShiftOrders", map[string]interface{}{
		"shift.from":  r.From,
		"shift.to":    r.To,
		"shift.delta": delta,
	})
	defer func() { done(err) }()

	builder := tr.db.QueryBuilder.Update(table).
		Set(orderColumn, sq.Expr(orderColumn+" + ?", delta)).
		Where(sq.GtOrEq{orderColumn: r.From})

	if r.Bounded() {
		builder = builder.Where(sq.LtOrEq{orderColumn: r.To})
	}

	query, args, err := builder.ToSql()

	if err != nil {
		return 0, err
	}

	tr.telemetry.RecordRepositoryQuery(ctx, "ShiftOrders", "todo", query, args)

	result, err := tr.q.ExecContext(ctx, query, args...)

	if err != nil {
		return 0, err
	}

	return result.RowsAffected()
}

func (tr *TodoRepository) Ping(ctx context.Context) error {
	return tr.db.PingContext(ctx)
}
