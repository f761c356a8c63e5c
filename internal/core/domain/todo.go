package domain

import (
	"time"
)

const (
	TitleMaxLength       = 100
	DescriptionMaxLength = 1000
)

type Todo struct {
	ID          int
	Title       string `validate:"required,max=100"`
	Description string `validate:"max=1000"`
	Completed   bool
	Order       int
	CreatedAt   time.Time
}

// TodoChanges lists the columns an update touches. Nil fields are left as stored.
type TodoChanges struct {
	Title       *string
	Description *string
	Completed   *bool
	Order       *int
}

func (c TodoChanges) IsEmpty() bool {
	return c.Title == nil && c.Description == nil && c.Completed == nil && c.Order == nil
}

func (c TodoChanges) ToMap() map[string]interface{} {
	changes := make(map[string]interface{})

	if c.Title != nil {
		changes["title"] = *c.Title
	}

	if c.Description != nil {
		changes["description"] = *c.Description
	}

	if c.Completed != nil {
		changes["completed"] = *c.Completed
	}

	if c.Order != nil {
		changes[`"order"`] = *c.Order
	}

	return changes
}

// Apply copies the non-nil changes onto t.
func (c TodoChanges) Apply(t *Todo) {
	if c.Title != nil {
		t.Title = *c.Title
	}

	if c.Description != nil {
		t.Description = *c.Description
	}

	if c.Completed != nil {
		t.Completed = *c.Completed
	}

	if c.Order != nil {
		t.Order = *c.Order
	}
}

func (t *Todo) CompletedMessage() string {
	if t.Completed {
		return "Todo completed"
	}

	return "Todo uncompleted"
}

// OrderRange is an inclusive range of order values. An open range has no
// upper bound and To is ignored.
type OrderRange struct {
	From int
	To   int
	Open bool
}

// Between is empty when to < from.
func Between(from, to int) OrderRange {
	return OrderRange{From: from, To: to}
}

func AtLeast(from int) OrderRange {
	return OrderRange{From: from, Open: true}
}

func (r OrderRange) Bounded() bool {
	return !r.Open
}

func (r OrderRange) Contains(order int) bool {
	if order < r.From {
		return false
	}

	return r.Open || order <= r.To
}

// Position identifies a row in the ordered list; used as a keyset cursor.
type Position struct {
	Order int
	ID    int
}

func (p Position) Before(t Todo) bool {
	if p.Order != t.Order {
		return p.Order < t.Order
	}

	return p.ID < t.ID
}

func StringPtr(s string) *string { return &s }

func BoolPtr(b bool) *bool { return &b }

func IntPtr(i int) *int { return &i }
