package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jefferypippitt/essential-todo/internal/core/domain"
)

func denseList(n int) []domain.Todo {
	todos := make([]domain.Todo, 0, n)

	for i := 1; i <= n; i++ {
		todos = append(todos, domain.Todo{ID: i * 10, Order: i})
	}

	return todos
}

func idsInOrder(todos []domain.Todo) []int {
	sorted := make([]domain.Todo, len(todos))
	copy(sorted, todos)
	SortByOrder(sorted)

	ids := make([]int, 0, len(sorted))
	for _, todo := range sorted {
		ids = append(ids, todo.ID)
	}

	return ids
}

func TestPlanMove(t *testing.T) {
	down := PlanMove(1, 3)
	assert.Equal(t, domain.Between(2, 3), down.Shift)
	assert.Equal(t, -1, down.Delta)

	up := PlanMove(4, 2)
	assert.Equal(t, domain.Between(2, 3), up.Shift)
	assert.Equal(t, 1, up.Delta)

	same := PlanMove(2, 2)
	assert.False(t, same.Moves())
	assert.Equal(t, 0, same.Delta)
}

func TestPlanMove_OntoDriftedZero(t *testing.T) {
	todos := []domain.Todo{
		{ID: 1, Order: 1},
		{ID: 2, Order: 0},
		{ID: 3, Order: 2},
		{ID: 4, Order: 3},
	}

	plan := PlanMove(1, 0)
	assert.Equal(t, domain.Between(0, 0), plan.Shift)

	moved := plan.Apply(todos, 1)
	assert.Equal(t, []domain.Todo{
		{ID: 1, Order: 0},
		{ID: 2, Order: 1},
		{ID: 3, Order: 2},
		{ID: 4, Order: 3},
	}, moved)
}

func TestMovePlan_Apply(t *testing.T) {
	todos := denseList(5)

	moved := PlanMove(1, 4).Apply(todos, 10)
	assert.Equal(t, []int{20, 30, 40, 10, 50}, idsInOrder(moved))
	assert.True(t, IsDense(moved))

	moved = PlanMove(5, 2).Apply(todos, 50)
	assert.Equal(t, []int{10, 50, 20, 30, 40}, idsInOrder(moved))
	assert.True(t, IsDense(moved))

	// the input is left untouched
	assert.Equal(t, 1, todos[0].Order)
}

func TestRenormalize(t *testing.T) {
	todos := []domain.Todo{
		{ID: 1, Order: 7},
		{ID: 2, Order: 3},
		{ID: 3, Order: 3},
		{ID: 4, Order: 0},
	}

	out, fixes := Renormalize(todos)

	assert.Equal(t, []int{4, 2, 3, 1}, idsInOrder(out))
	assert.True(t, IsDense(out))
	assert.Equal(t, []OrderFix{{ID: 4, Order: 1}, {ID: 2, Order: 2}, {ID: 1, Order: 4}}, fixes)

	again, fixes := Renormalize(out)
	assert.Equal(t, out, again)
	assert.Empty(t, fixes)
}

// Starting from a dense list, shifting alone already yields the final
// arrangement, so the renormalization pass has nothing left to fix.
func TestMove_ShiftLeavesNothingToRenormalize(t *testing.T) {
	for n := 1; n <= 12; n++ {
		todos := denseList(n)

		for from := 1; from <= n; from++ {
			for to := 1; to <= n; to++ {
				active := todos[from-1]
				moved := PlanMove(from, to).Apply(todos, active.ID)

				require.True(t, IsDense(moved), "n=%d from=%d to=%d", n, from, to)

				_, fixes := Renormalize(moved)
				require.Empty(t, fixes, "n=%d from=%d to=%d", n, from, to)

				sorted := idsInOrder(moved)
				require.Equal(t, active.ID, sorted[to-1])
			}
		}
	}
}

func TestIsDense(t *testing.T) {
	assert.True(t, IsDense(nil))
	assert.True(t, IsDense([]domain.Todo{{Order: 2}, {Order: 1}}))
	assert.False(t, IsDense([]domain.Todo{{Order: 1}, {Order: 1}}))
	assert.False(t, IsDense([]domain.Todo{{Order: 1}, {Order: 3}}))
}
