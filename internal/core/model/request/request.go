package request

type TodoRequest struct {
	Title       string  `json:"title" validate:"required,max=100"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=1000"`
}

type ReorderRequest struct {
	ActiveID int `json:"active_id" validate:"required,gt=0"`
	OverID   int `json:"over_id" validate:"required,gt=0"`
}

type ListRequest struct {
	Limit  int    `form:"limit" validate:"omitempty,min=1,max=100"`
	Cursor string `form:"cursor"`
}
