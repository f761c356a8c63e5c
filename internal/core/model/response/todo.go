package response

import "github.com/jefferypippitt/essential-todo/internal/core/domain"

func NewTodoResponse(todo domain.Todo) TodoResponse {
	return TodoResponse{
		ID:          todo.ID,
		Title:       todo.Title,
		Description: todo.Description,
		Completed:   todo.Completed,
		Order:       todo.Order,
		CreatedAt:   todo.CreatedAt,
	}
}

func NewListResponse(todos []domain.Todo) ListResponse {
	data := make([]TodoResponse, 0, len(todos))

	for _, todo := range todos {
		data = append(data, NewTodoResponse(todo))
	}

	return ListResponse{Size: len(data), Data: data}
}
