package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/jefferypippitt/essential-todo/internal/adapter/database/postgres"
	"github.com/jefferypippitt/essential-todo/internal/core/domain"
	"github.com/jefferypippitt/essential-todo/internal/core/port"
	tel "github.com/jefferypippitt/essential-todo/internal/core/telemetry"
)

const (
	table       = "todos"
	orderColumn = `"order"`

	// serialization failures are retried this many times in total
	maxTxAttempts = 5

	sqlStateSerializationFailure = "40001"
)

var columns = []string{"id", "title", "COALESCE(description, '')", "completed", orderColumn, "created_at"}

type TodoRepository struct {
	db        *postgres.DB
	q         postgres.Querier
	telemetry port.Telemetry
	inTx      bool
}

var _ port.TodoStore = (*TodoRepository)(nil)

func NewTodoRepository(db *postgres.DB, telemetry port.Telemetry) *TodoRepository {
	if telemetry == nil {
		telemetry = tel.NewNoOpProbe()
	}

	return &TodoRepository{db: db, q: db.Pool, telemetry: telemetry}
}

func (tr *TodoRepository) observe(ctx context.Context, operation string, attrs map[string]interface{}) (context.Context, func(err error)) {
	if attrs == nil {
		attrs = make(map[string]interface{})
	}

	attrs["db.system"] = "postgresql"
	attrs["db.table"] = table
	attrs["db.in_transaction"] = tr.inTx

	startTime := time.Now()
	ctx, span := tr.telemetry.StartRepositorySpan(ctx, operation, "todo", attrs)

	return ctx, func(err error) {
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			span.SetStatus("error", err.Error())
			span.RecordError(err)
		} else {
			span.SetStatus("ok", "")
		}

		tr.telemetry.RecordRepositoryOperation(ctx, operation, table, time.Since(startTime), err)
		span.End()
	}
}

func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError

	return errors.As(err, &pgErr) && pgErr.Code == sqlStateSerializationFailure
}

// WithinTx runs fn in a SERIALIZABLE transaction, retrying the whole unit of
// work when Postgres reports a serialization failure.
func (tr *TodoRepository) WithinTx(ctx context.Context, fn func(ctx context.Context, repo port.TodoRepository) error) error {
	if tr.inTx {
		return fn(ctx, tr)
	}

	var err error

	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		err = pgx.BeginTxFunc(ctx, tr.db.Pool, pgx.TxOptions{IsoLevel: pgx.Serializable}, func(tx pgx.Tx) error {
			return fn(ctx, &TodoRepository{db: tr.db, q: tx, telemetry: tr.telemetry, inTx: true})
		})

		if !isSerializationFailure(err) {
			return err
		}
	}

	return fmt.Errorf("transaction gave up after %d attempts: %w", maxTxAttempts, err)
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
		Suffix("RETURNING id").
		ToSql()

	if err != nil {
		return domain.Todo{}, err
	}

	tr.telemetry.RecordRepositoryQuery(ctx, "Insert", "todo", query, args)

	if err := tr.q.QueryRow(ctx, query, args...).Scan(&todo.ID); err != nil {
		return domain.Todo{}, err
	}

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
		Suffix("RETURNING " + strings.Join(columns, ", ")).
		ToSql()

	if err != nil {
		return domain.Todo{}, err
	}

	tr.telemetry.RecordRepositoryQuery(ctx, "Update", "todo", query, args)

	updated, err = scanTodo(tr.q.QueryRow(ctx, query, args...))

	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Todo{}, &domain.NotFoundError{ID: id}
	}

	return updated, err
}

func (tr *TodoRepository) Delete(ctx context.Context, id int) (err error) {
	ctx, done := tr.observe(ctx, "Delete", map[string]interface{}{"todo.id": id})
	defer func() { done(err) }()

	query, args, err := tr.db.QueryBuilder.Delete(table).Where(sq.Eq{"id": id}).ToSql()

	if err != nil {
		return err
	}

	tr.telemetry.RecordRepositoryQuery(ctx, "Delete", "todo", query, args)

	tag, err := tr.q.Exec(ctx, query, args...)

	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
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
	query, args, err := tr.db.QueryBuilder.Select(columns...).From(table).Where(sq.Eq{"id": id}).ToSql()

	if err != nil {
		return domain.Todo{}, err
	}

	tr.telemetry.RecordRepositoryQuery(ctx, "FindByID", "todo", query, args)

	todo, err := scanTodo(tr.q.QueryRow(ctx, query, args...))

	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Todo{}, &domain.NotFoundError{ID: id}
	}

	return todo, err
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
		builder = builder.Where(sq.Expr("("+orderColumn+", id) > (?, ?)", after.Order, after.ID))
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

	rows, err := tr.q.Query(ctx, query, args...)

	if err != nil {
		return nil, err
	}
	defer rows.Close()

	todos := make([]domain.Todo, 0)

	for rows.Next() {
		todo, err := scanTodo(rows)

		if err != nil {
			return nil, err
		}

		todos = append(todos, todo)
	}

	return todos, rows.Err()
}

func (tr *TodoRepository) MaxOrder(ctx context.Context) (maxOrder int, err error) {
	ctx, done := tr.observe(ctx, "MaxOrder", nil)
	defer func() { done(err) }()

	query, args, err := tr.db.QueryBuilder.Select("COALESCE(MAX(" + orderColumn + "), 0)").From(table).ToSql()

	if err != nil {
		return 0, err
	}

	tr.telemetry.RecordRepositoryQuery(ctx, "MaxOrder", "todo", query, args)

	if err := tr.q.QueryRow(ctx, query, args...).Scan(&maxOrder); err != nil {
		return 0, err
	}

	return maxOrder, nil
}

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

	tag, err := tr.q.Exec(ctx, query, args...)

	if err != nil {
		return 0, err
	}

	return tag.RowsAffected(), nil
}

func (tr *TodoRepository) Ping(ctx context.Context) error {
	return tr.db.Ping(ctx)
}

func scanTodo(row pgx.Row) (domain.Todo, error) {
	var todo domain.Todo

	err := row.Scan(&todo.ID, &todo.Title, &todo.Description, &todo.Completed, &todo.Order, &todo.CreatedAt)

	return todo, err
}
