package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/jefferypippitt/essential-todo/internal/core/domain"
	"github.com/jefferypippitt/essential-todo/internal/core/model/response"
	"github.com/jefferypippitt/essential-todo/internal/core/port"
	"github.com/jefferypippitt/essential-todo/internal/core/telemetry"
	"github.com/jefferypippitt/essential-todo/internal/core/util"
)

const (
	serviceName = "todo"

	DefaultPageSize = 20
	MaxPageSize     = 100
)

type TodoService struct {
	store         port.TodoStore
	validator     port.Validator
	probe         port.Telemetry
	cursor        *util.CursorCodec
	transactional bool
	now           func() time.Time
}

var _ port.TodoService = (*TodoService)(nil)

type Option func(*TodoService)

// WithTransactions runs every multi-row mutation inside one store transaction.
func WithTransactions(enabled bool) Option {
	return func(s *TodoService) {
		s.transactional = enabled
	}
}

func WithTelemetry(probe port.Telemetry) Option {
	return func(s *TodoService) {
		if probe != nil {
			s.probe = probe
		}
	}
}

func WithCursorCodec(codec *util.CursorCodec) Option {
	return func(s *TodoService) {
		if codec != nil {
			s.cursor = codec
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *TodoService) {
		s.now = now
	}
}

func NewTodoService(store port.TodoStore, validator port.Validator, opts ...Option) *TodoService {
	s := &TodoService{
		store:         store,
		validator:     validator,
		probe:         telemetry.NewNoOpProbe(),
		cursor:        util.NewCursorCodec("essential-todo"),
		transactional: true,
		now:           time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// run executes fn against the store, inside a transaction when enabled.
func (s *TodoService) run(ctx context.Context, fn func(ctx context.Context, repo port.TodoRepository) error) error {
	if s.transactional {
		return s.store.WithinTx(ctx, fn)
	}

	return fn(ctx, s.store)
}

func (s *TodoService) observe(ctx context.Context, operation string, attrs map[string]interface{}) (context.Context, func(err error)) {
	start := time.Now()
	ctx, span := s.probe.StartServiceSpan(ctx, serviceName, operation, attrs)

	return ctx, func(err error) {
		s.probe.RecordServiceOperation(ctx, serviceName, operation, time.Since(start), err)

		if err != nil {
			span.RecordError(err)
			span.SetStatus("error", err.Error())
		}

		span.End()
	}
}

func (s *TodoService) validate(todo domain.Todo) error {
	if err := s.validator.ValidateStruct(todo); err != nil {
		return &domain.ValidationError{Fields: s.validator.FieldErrors(err)}
	}

	return nil
}

func (s *TodoService) List(ctx context.Context) (todos []domain.Todo, err error) {
	ctx, done := s.observe(ctx, "List", nil)
	defer func() { done(err) }()

	todos, err = s.store.FindAll(ctx)

	if err != nil {
		return nil, domain.AsStorageError("list", err)
	}

	return todos, nil
}

func (s *TodoService) ListPage(ctx context.Context, limit int, cursor string) (resp *response.CursorResponse, err error) {
	ctx, done := s.observe(ctx, "ListPage", map[string]interface{}{"page.limit": limit})
	defer func() { done(err) }()

	if limit <= 0 {
		limit = DefaultPageSize
	}

	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	var after *domain.Position

	if cursor != "" {
		position, err := s.cursor.Decode(cursor)

		if err != nil {
			return nil, domain.NewValidationError("cursor", err.Error())
		}

		after = &position
	}

	rows, hasNext, err := s.store.FindPage(ctx, limit, after)

	if err != nil {
		return nil, domain.AsStorageError("list page", err)
	}

	list := response.NewListResponse(rows)
	data, err := json.Marshal(list.Data)

	if err != nil {
		return nil, err
	}

	resp = &response.CursorResponse{Size: list.Size, Data: data}
	resp.Pagination.HasNext = hasNext

	if hasNext && len(rows) > 0 {
		last := rows[len(rows)-1]
		resp.Pagination.NextCursor = s.cursor.Encode(domain.Position{Order: last.Order, ID: last.ID})
	}

	return resp, nil
}

func (s *TodoService) Get(ctx context.Context, id int) (todo domain.Todo, err error) {
	ctx, done := s.observe(ctx, "Get", map[string]interface{}{"todo.id": id})
	defer func() { done(err) }()

	todo, err = s.store.FindByID(ctx, id)

	if err != nil {
		return domain.Todo{}, domain.AsStorageError("get", err)
	}

	return todo, nil
}

// Append places a new todo after every existing one.
func (s *TodoService) Append(ctx context.Context, title string, description string) (created domain.Todo, err error) {
	ctx, done := s.observe(ctx, "Append", nil)
	defer func() { done(err) }()

	todo := domain.Todo{
		Title:       strings.TrimSpace(title),
		Description: strings.TrimSpace(description),
	}

	if err = s.validate(todo); err != nil {
		return domain.Todo{}, err
	}

	err = s.run(ctx, func(ctx context.Context, repo port.TodoRepository) error {
		maxOrder, err := repo.MaxOrder(ctx)

		if err != nil {
			return err
		}

		todo.Order = maxOrder + 1
		todo.CreatedAt = s.now().UTC()

		created, err = repo.Insert(ctx, todo)

		return err
	})

	if err != nil {
		slog.ErrorContext(ctx, "Append todo failed", "error", err, "title", todo.Title)
		return domain.Todo{}, domain.AsStorageError("append", err)
	}

	s.probe.RecordBusinessEvent(ctx, "created", "todo", strconv.Itoa(created.ID), map[string]interface{}{"order": created.Order})

	return created, nil
}

// Remove deletes a todo and closes the gap it leaves behind.
func (s *TodoService) Remove(ctx context.Context, id int) (err error) {
	ctx, done := s.observe(ctx, "Remove", map[string]interface{}{"todo.id": id})
	defer func() { done(err) }()

	var shifted int64

	err = s.run(ctx, func(ctx context.Context, repo port.TodoRepository) error {
		todo, err := repo.FindByID(ctx, id)

		if err != nil {
			return err
		}

		if err := repo.Delete(ctx, id); err != nil {
			return err
		}

		shifted, err = repo.ShiftOrders(ctx, domain.AtLeast(todo.Order+1), -1)

		return err
	})

	if err != nil {
		return domain.AsStorageError("remove", err)
	}

	s.probe.RecordBusinessEvent(ctx, "deleted", "todo", strconv.Itoa(id), map[string]interface{}{"shifted_rows": shifted})

	return nil
}

// Move drops the active todo onto the position currently held by the over
// todo and returns the resulting list.
func (s *TodoService) Move(ctx context.Context, activeID int, overID int) (todos []domain.Todo, err error) {
	ctx, done := s.observe(ctx, "Move", map[string]interface{}{"todo.active_id": activeID, "todo.over_id": overID})
	defer func() { done(err) }()

	var shifted int64

	err = s.run(ctx, func(ctx context.Context, repo port.TodoRepository) error {
		active, err := repo.FindByID(ctx, activeID)

		if err != nil {
			return err
		}

		over, err := repo.FindByID(ctx, overID)

		if err != nil {
			return err
		}

		plan := PlanMove(active.Order, over.Order)

		if plan.Moves() {
			shifted, err = repo.ShiftOrders(ctx, plan.Shift, plan.Delta)

			if err != nil {
				return err
			}

			if _, err := repo.Update(ctx, activeID, domain.TodoChanges{Order: domain.IntPtr(plan.To)}); err != nil {
				return err
			}
		}

		all, err := repo.FindAll(ctx)

		if err != nil {
			return err
		}

		normalized, fixes := Renormalize(all)

		for _, fix := range fixes {
			if _, err := repo.Update(ctx, fix.ID, domain.TodoChanges{Order: domain.IntPtr(fix.Order)}); err != nil {
				return err
			}
		}

		if len(fixes) > 0 {
			slog.WarnContext(ctx, "Renormalized todo orders", "fixed_rows", len(fixes))
		}

		todos = normalized

		return nil
	})

	if err != nil {
		return nil, domain.AsStorageError("move", err)
	}

	s.probe.RecordBusinessEvent(ctx, "reordered", "todo", strconv.Itoa(activeID), map[string]interface{}{
		"over_id":      overID,
		"shifted_rows": shifted,
	})

	return todos, nil
}

// Toggle flips completed and leaves the order alone.
func (s *TodoService) Toggle(ctx context.Context, id int) (updated domain.Todo, err error) {
	ctx, done := s.observe(ctx, "Toggle", map[string]interface{}{"todo.id": id})
	defer func() { done(err) }()

	err = s.run(ctx, func(ctx context.Context, repo port.TodoRepository) error {
		todo, err := repo.FindByID(ctx, id)

		if err != nil {
			return err
		}

		updated, err = repo.Update(ctx, id, domain.TodoChanges{Completed: domain.BoolPtr(!todo.Completed)})

		return err
	})

	if err != nil {
		return domain.Todo{}, domain.AsStorageError("toggle", err)
	}

	return updated, nil
}

// Rename replaces the title and, when given, the description. A nil
// description keeps the stored one.
func (s *TodoService) Rename(ctx context.Context, id int, title string, description *string) (updated domain.Todo, err error) {
	ctx, done := s.observe(ctx, "Rename", map[string]interface{}{"todo.id": id})
	defer func() { done(err) }()

	changes := domain.TodoChanges{Title: domain.StringPtr(strings.TrimSpace(title))}

	candidate := domain.Todo{Title: *changes.Title}

	if description != nil {
		changes.Description = domain.StringPtr(strings.TrimSpace(*description))
		candidate.Description = *changes.Description
	}

	if err = s.validate(candidate); err != nil {
		return domain.Todo{}, err
	}

	err = s.run(ctx, func(ctx context.Context, repo port.TodoRepository) error {
		_, err := repo.FindByID(ctx, id)

		if err != nil {
			return err
		}

		updated, err = repo.Update(ctx, id, changes)

		return err
	})

	if err != nil {
		return domain.Todo{}, domain.AsStorageError("rename", err)
	}

	return updated, nil
}
