package service_test

import (
	"strings"
	"testing"

	. "github.com/onsi/gomega"

	"github.com/jefferypippitt/essential-todo/internal/adapter/database/memory"
	"github.com/jefferypippitt/essential-todo/internal/adapter/http/validation"
	"github.com/jefferypippitt/essential-todo/internal/core/domain"
	"github.com/jefferypippitt/essential-todo/internal/core/model/response"
	"github.com/jefferypippitt/essential-todo/internal/core/port"
	"github.com/jefferypippitt/essential-todo/internal/core/service"
)

func domainTodo(title string, order int) domain.Todo {
	return domain.Todo{Title: title, Order: order}
}

func newActions() port.TodoListActions {
	return service.NewActions(service.NewTodoService(memory.NewStore(), validation.New()))
}

func TestActions_Append(t *testing.T) {
	RegisterTestingT(t)

	actions := newActions()

	state := actions.Append(ctx, "buy milk", "")
	Expect(state.Success).To(BeTrue())
	Expect(state.Message).To(Equal("Todo added"))
	Expect(state.Data.(response.TodoResponse).Order).To(Equal(1))

	state = actions.Append(ctx, " ", "")
	Expect(state.Success).To(BeFalse())
	Expect(state.Message).To(Equal("Failed to add todo"))
	Expect(state.Code).To(Equal(service.CodeValidation))
	Expect(state.Errors["title"]).To(ContainElement("Title is required"))
}

func TestActions_Toggle(t *testing.T) {
	RegisterTestingT(t)

	actions := newActions()
	actions.Append(ctx, "walk dog", "")

	Expect(actions.Toggle(ctx, 1).Message).To(Equal("Todo completed"))
	Expect(actions.Toggle(ctx, 1).Message).To(Equal("Todo uncompleted"))

	state := actions.Toggle(ctx, 42)
	Expect(state.Success).To(BeFalse())
	Expect(state.Message).To(Equal("Todo not found"))
	Expect(state.Code).To(Equal(service.CodeNotFound))
}

func TestActions_Rename(t *testing.T) {
	RegisterTestingT(t)

	actions := newActions()
	actions.Append(ctx, "pay bills", "")

	state := actions.Rename(ctx, 1, "pay all bills", nil)
	Expect(state.Success).To(BeTrue())
	Expect(state.Message).To(Equal("Todo updated successfully"))

	state = actions.Rename(ctx, 1, strings.Repeat("x", 101), nil)
	Expect(state.Success).To(BeFalse())
	Expect(state.Message).To(Equal("Failed to update todo"))
	Expect(state.Errors).To(HaveKey("title"))
}

func TestActions_RemoveAndMove(t *testing.T) {
	RegisterTestingT(t)

	actions := newActions()
	actions.Append(ctx, "a", "")
	actions.Append(ctx, "b", "")
	actions.Append(ctx, "c", "")

	state := actions.Move(ctx, 3, 1)
	Expect(state.Success).To(BeTrue())
	Expect(state.Message).To(Equal("Todos reordered"))

	list := state.Data.(response.ListResponse)
	Expect(list.Size).To(Equal(3))
	Expect(list.Data[0].Title).To(Equal("c"))

	state = actions.Remove(ctx, 3)
	Expect(state.Success).To(BeTrue())
	Expect(state.Message).To(Equal("Todo deleted successfully"))

	state = actions.Remove(ctx, 3)
	Expect(state.Success).To(BeFalse())
	Expect(state.Code).To(Equal(service.CodeNotFound))

	state = actions.Move(ctx, 3, 1)
	Expect(state.Success).To(BeFalse())
	Expect(state.Message).To(Equal("Todo not found"))
}

func TestActions_StorageFailureHidesDetails(t *testing.T) {
	RegisterTestingT(t)

	store := memory.NewStore()
	store.Insert(ctx, domainTodo("a", 1))

	actions := service.NewActions(service.NewTodoService(&faultyStore{TodoStore: store, failOn: "ShiftOrders"}, validation.New()))

	state := actions.Remove(ctx, 1)
	Expect(state.Success).To(BeFalse())
	Expect(state.Message).To(Equal("Failed to delete todo"))
	Expect(state.Code).To(Equal(service.CodeInternal))
	Expect(state.Message).ToNot(ContainSubstring("disk"))
	Expect(state.Errors).To(BeNil())
}
