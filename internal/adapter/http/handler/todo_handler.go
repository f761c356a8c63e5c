package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	. "github.com/jefferypippitt/essential-todo/internal/adapter/http/helper"
	"github.com/jefferypippitt/essential-todo/internal/core/domain"
	"github.com/jefferypippitt/essential-todo/internal/core/model/request"
	"github.com/jefferypippitt/essential-todo/internal/core/model/response"
	"github.com/jefferypippitt/essential-todo/internal/core/port"
	"github.com/jefferypippitt/essential-todo/internal/core/util"
	"github.com/jefferypippitt/essential-todo/pkg/logger"
)

type TodoHandler struct {
	svc       port.TodoService
	actions   port.TodoListActions
	validator port.Validator
	Logger    *logger.LokiLogger
}

func NewTodoHandler(svc port.TodoService, actions port.TodoListActions, validator port.Validator, log *logger.LokiLogger) *TodoHandler {
	if log == nil {
		log = logger.NewNop()
	}

	return &TodoHandler{
		svc:       svc,
		actions:   actions,
		validator: validator,
		Logger:    log,
	}
}

// GetAllTodos returns the whole list, or one page of it when limit or cursor
// is present in the query.
func (t *TodoHandler) GetAllTodos(c *gin.Context) {
	ctx := c.Request.Context()

	query, err := util.BindQuery[request.ListRequest](c)

	if err != nil {
		SendBadRequestError(c, "limit", "limit must be a number")
		return
	}

	if query.Limit == 0 && query.Cursor == "" {
		todos, err := t.svc.List(ctx)

		if err != nil {
			t.Logger.ErrorWithTrace(ctx, "Failed to list todos", zap.Error(err))
			SendInternalError(c, "Error getting todos")
			return
		}

		c.JSON(http.StatusOK, response.NewListResponse(todos))
		return
	}

	if err := t.validator.ValidateStruct(query); err != nil {
		SendValidationError(c, t.validator, err)
		return
	}

	page, err := t.svc.ListPage(ctx, query.Limit, query.Cursor)

	if err != nil {
		var validationErr *domain.ValidationError

		if errors.As(err, &validationErr) {
			SendValidationError(c, t.validator, err)
			return
		}

		t.Logger.ErrorWithTrace(ctx, "Failed to list todos", zap.Error(err), zap.Int("limit", query.Limit))
		SendInternalError(c, "Error getting todos")
		return
	}

	c.JSON(http.StatusOK, page)
}

func (t *TodoHandler) GetTodo(c *gin.Context) {
	ctx := c.Request.Context()

	id, err := util.ParamID(c, "id")

	if err != nil {
		SendBadRequestError(c, "id", err.Error())
		return
	}

	todo, err := t.svc.Get(ctx, id)

	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			SendNotFoundError(c, "Todo not found")
			return
		}

		t.Logger.ErrorWithTrace(ctx, "Failed to get todo", zap.Error(err), zap.Int("todo_id", id))
		SendInternalError(c, "Error getting todo")
		return
	}

	SendSuccess(c, http.StatusOK, response.NewTodoResponse(todo))
}

func (t *TodoHandler) CreateTodo(c *gin.Context) {
	params, err := util.BindBody[request.TodoRequest](c)

	if err != nil {
		SendBadRequestError(c, "request", "Invalid request parameters")
		return
	}

	if err := t.validator.ValidateStruct(params); err != nil {
		SendValidationError(c, t.validator, err)
		return
	}

	description := ""

	if params.Description != nil {
		description = *params.Description
	}

	state := t.actions.Append(c.Request.Context(), params.Title, description)
	t.logFailure(c, "Append", state)

	SendAction(c, http.StatusCreated, state)
}

func (t *TodoHandler) UpdateTodo(c *gin.Context) {
	id, err := util.ParamID(c, "id")

	if err != nil {
		SendBadRequestError(c, "id", err.Error())
		return
	}

	params, err := util.BindBody[request.TodoRequest](c)

	if err != nil {
		SendBadRequestError(c, "request", "Invalid request parameters")
		return
	}

	if err := t.validator.ValidateStruct(params); err != nil {
		SendValidationError(c, t.validator, err)
		return
	}

	state := t.actions.Rename(c.Request.Context(), id, params.Title, params.Description)
	t.logFailure(c, "Rename", state)

	SendAction(c, http.StatusOK, state)
}

func (t *TodoHandler) ToggleTodo(c *gin.Context) {
	id, err := util.ParamID(c, "id")

	if err != nil {
		SendBadRequestError(c, "id", err.Error())
		return
	}

	state := t.actions.Toggle(c.Request.Context(), id)
	t.logFailure(c, "Toggle", state)

	SendAction(c, http.StatusOK, state)
}

func (t *TodoHandler) DeleteTodo(c *gin.Context) {
	id, err := util.ParamID(c, "id")

	if err != nil {
		SendBadRequestError(c, "id", err.Error())
		return
	}

	state := t.actions.Remove(c.Request.Context(), id)
	t.logFailure(c, "Remove", state)

	SendAction(c, http.StatusOK, state)
}

// ReorderTodos is the drag end: active is the dragged row, over the row it
// was dropped on.
func (t *TodoHandler) ReorderTodos(c *gin.Context) {
	params, err := util.BindBody[request.ReorderRequest](c)

	if err != nil {
		SendBadRequestError(c, "request", "Invalid request parameters")
		return
	}

	if err := t.validator.ValidateStruct(params); err != nil {
		SendValidationError(c, t.validator, err)
		return
	}

	state := t.actions.Move(c.Request.Context(), params.ActiveID, params.OverID)
	t.logFailure(c, "Move", state)

	SendAction(c, http.StatusOK, state)
}

func (t *TodoHandler) logFailure(c *gin.Context, operation string, state response.ActionState) {
	if state.Success {
		return
	}

	t.Logger.WarnWithTrace(c.Request.Context(), "Todo action failed",
		zap.String("operation", operation),
		zap.String("code", state.Code),
		zap.String("message", state.Message),
		zap.String("path", c.Request.URL.Path),
	)
}
