package service

import (
	"context"
	"errors"

	"github.com/jefferypippitt/essential-todo/internal/core/domain"
	"github.com/jefferypippitt/essential-todo/internal/core/model/response"
	"github.com/jefferypippitt/essential-todo/internal/core/port"
)

const (
	CodeValidation = "VALIDATION_ERROR"
	CodeNotFound   = "NOT_FOUND"
	CodeInternal   = "INTERNAL_ERROR"
)

// Actions turns service results into ActionState values. Nothing it returns
// carries an error; the caller only ever sees success or a message.
type Actions struct {
	service port.TodoService
}

var _ port.TodoListActions = (*Actions)(nil)

func NewActions(service port.TodoService) *Actions {
	return &Actions{service: service}
}

func succeed(message string, data any) response.ActionState {
	return response.ActionState{Success: true, Message: message, Data: data}
}

// fail maps an error to the state shown to the user. Storage details stay in
// the logs, only the generic message leaves.
func fail(err error, message string) response.ActionState {
	var validationErr *domain.ValidationError

	switch {
	case errors.As(err, &validationErr):
		return response.ActionState{
			Message: message,
			Code:    CodeValidation,
			Errors:  validationErr.ByField(),
		}
	case errors.Is(err, domain.ErrNotFound):
		return response.ActionState{Message: "Todo not found", Code: CodeNotFound}
	default:
		return response.ActionState{Message: message, Code: CodeInternal}
	}
}

func (a *Actions) Append(ctx context.Context, title string, description string) response.ActionState {
	todo, err := a.service.Append(ctx, title, description)

	if err != nil {
		return fail(err, "Failed to add todo")
	}

	return succeed("Todo added", response.NewTodoResponse(todo))
}

func (a *Actions) Toggle(ctx context.Context, id int) response.ActionState {
	todo, err := a.service.Toggle(ctx, id)

	if err != nil {
		return fail(err, "Failed to update todo status")
	}

	return succeed(todo.CompletedMessage(), response.NewTodoResponse(todo))
}

func (a *Actions) Rename(ctx context.Context, id int, title string, description *string) response.ActionState {
	todo, err := a.service.Rename(ctx, id, title, description)

	if err != nil {
		return fail(err, "Failed to update todo")
	}

	return succeed("Todo updated successfully", response.NewTodoResponse(todo))
}

func (a *Actions) Remove(ctx context.Context, id int) response.ActionState {
	if err := a.service.Remove(ctx, id); err != nil {
		return fail(err, "Failed to delete todo")
	}

	return succeed("Todo deleted successfully", nil)
}

func (a *Actions) Move(ctx context.Context, activeID int, overID int) response.ActionState {
	todos, err := a.service.Move(ctx, activeID, overID)

	if err != nil {
		return fail(err, "Failed to reorder todos")
	}

	return succeed("Todos reordered", response.NewListResponse(todos))
}
