package service

import (
	"sort"

	"github.com/jefferypippitt/essential-todo/internal/core/domain"
)

// MovePlan describes how the rows between two positions shift when the item
// at From is dropped onto the item at To.
type MovePlan struct {
	From  int
	To    int
	Shift domain.OrderRange
	Delta int
}

func PlanMove(from, to int) MovePlan {
	plan := MovePlan{From: from, To: to}

	switch {
	case from < to:
		plan.Shift = domain.Between(from+1, to)
		plan.Delta = -1
	case from > to:
		plan.Shift = domain.Between(to, from-1)
		plan.Delta = 1
	}

	return plan
}

func (p MovePlan) Moves() bool {
	return p.From != p.To
}

// Apply runs the plan against an in-memory list and returns the shifted copy.
// The moved item is identified by id.
func (p MovePlan) Apply(todos []domain.Todo, activeID int) []domain.Todo {
	out := make([]domain.Todo, len(todos))
	copy(out, todos)

	if !p.Moves() {
		return out
	}

	for i := range out {
		switch {
		case out[i].ID == activeID:
			out[i].Order = p.To
		case p.Shift.Contains(out[i].Order):
			out[i].Order += p.Delta
		}
	}

	return out
}

type OrderFix struct {
	ID    int
	Order int
}

// SortByOrder sorts in place by order, breaking ties by id.
func SortByOrder(todos []domain.Todo) {
	sort.SliceStable(todos, func(i, j int) bool {
		if todos[i].Order != todos[j].Order {
			return todos[i].Order < todos[j].Order
		}

		return todos[i].ID < todos[j].ID
	})
}

// Renormalize returns the list sorted with orders reassigned to 1..N, and the
// rows whose stored order has to change to get there.
func Renormalize(todos []domain.Todo) ([]domain.Todo, []OrderFix) {
	out := make([]domain.Todo, len(todos))
	copy(out, todos)

	SortByOrder(out)

	var fixes []OrderFix

	for i := range out {
		if out[i].Order != i+1 {
			out[i].Order = i + 1
			fixes = append(fixes, OrderFix{ID: out[i].ID, Order: i + 1})
		}
	}

	return out, fixes
}

// IsDense reports whether the orders are exactly 1..N in some arrangement.
func IsDense(todos []domain.Todo) bool {
	seen := make(map[int]bool, len(todos))

	for _, todo := range todos {
		if todo.Order < 1 || todo.Order > len(todos) || seen[todo.Order] {
			return false
		}

		seen[todo.Order] = true
	}

	return true
}
