package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	. "github.com/onsi/gomega"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"

	"github.com/jefferypippitt/essential-todo/internal/adapter/database/memory"
	"github.com/jefferypippitt/essential-todo/internal/adapter/database/sqlite"
	"github.com/jefferypippitt/essential-todo/internal/adapter/database/sqlite/repository"
	"github.com/jefferypippitt/essential-todo/internal/adapter/http/validation"
	"github.com/jefferypippitt/essential-todo/internal/core/domain"
	"github.com/jefferypippitt/essential-todo/internal/core/port"
	"github.com/jefferypippitt/essential-todo/internal/core/service"
	"github.com/jefferypippitt/essential-todo/internal/core/util"
	. "github.com/jefferypippitt/essential-todo/pkg/test"
)

var ctx = context.Background()

type storeFactory func(t *testing.T) port.TodoStore

func memoryStore(t *testing.T) port.TodoStore {
	return memory.NewStore()
}

func sqliteStore(t *testing.T) port.TodoStore {
	db := InitTestDB()
	t.Cleanup(func() { db.Close() })

	return repository.NewTodoRepository(db, nil)
}

type TodoServiceSuite struct {
	suite.Suite
	newStore      storeFactory
	transactional bool

	Store   port.TodoStore
	Service *service.TodoService
}

func (s *TodoServiceSuite) SetupTest() {
	s.Store = s.newStore(s.T())
	s.Service = service.NewTodoService(s.Store, validation.New(), service.WithTransactions(s.transactional))
}

func TestTodoServiceMemorySuite(t *testing.T) {
	RegisterTestingT(t)
	suite.Run(t, &TodoServiceSuite{newStore: memoryStore, transactional: true})
}

func TestTodoServiceSQLiteSuite(t *testing.T) {
	RegisterTestingT(t)
	suite.Run(t, &TodoServiceSuite{newStore: sqliteStore, transactional: true})
}

func TestTodoServiceSQLiteNoTxSuite(t *testing.T) {
	RegisterTestingT(t)
	suite.Run(t, &TodoServiceSuite{newStore: sqliteStore, transactional: false})
}

func (s *TodoServiceSuite) appendAll(titles ...string) []domain.Todo {
	todos := make([]domain.Todo, 0, len(titles))

	for _, title := range titles {
		todo, err := s.Service.Append(ctx, title, "")
		Expect(err).To(BeNil())
		todos = append(todos, todo)
	}

	return todos
}

func (s *TodoServiceSuite) list() []domain.Todo {
	todos, err := s.Service.List(ctx)
	Expect(err).To(BeNil())

	return todos
}

func (s *TodoServiceSuite) expectDense() {
	todos := s.list()

	for i, todo := range todos {
		Expect(todo.Order).To(Equal(i+1), "todo %d (%q)", todo.ID, todo.Title)
	}
}

func (s *TodoServiceSuite) TestAppend_IsLast() {
	todos := s.appendAll("a", "b", "c")

	Expect(todos[0].Order).To(Equal(1))
	Expect(todos[1].Order).To(Equal(2))
	Expect(todos[2].Order).To(Equal(3))

	next, err := s.Service.Append(ctx, "d", "")
	Expect(err).To(BeNil())
	Expect(next.Order).To(Equal(4))
	Expect(next.CreatedAt.IsZero()).To(BeFalse())
}

func (s *TodoServiceSuite) TestAppend_TrimsAndValidates() {
	todo, err := s.Service.Append(ctx, "  buy milk  ", "  semi skimmed ")
	Expect(err).To(BeNil())
	Expect(todo.Title).To(Equal("buy milk"))
	Expect(todo.Description).To(Equal("semi skimmed"))

	_, err = s.Service.Append(ctx, "   ", "")
	Expect(errors.Is(err, domain.ErrValidation)).To(BeTrue())

	var validationErr *domain.ValidationError
	Expect(errors.As(err, &validationErr)).To(BeTrue())
	Expect(validationErr.ByField()).To(HaveKey("title"))

	_, err = s.Service.Append(ctx, strings.Repeat("x", domain.TitleMaxLength+1), "")
	Expect(errors.Is(err, domain.ErrValidation)).To(BeTrue())

	Expect(s.list()).To(HaveLen(1))
}

func (s *TodoServiceSuite) TestRemove_ClosesGap() {
	todos := s.appendAll("a", "b", "c", "d")

	Expect(s.Service.Remove(ctx, todos[1].ID)).To(Succeed())

	remaining := s.list()
	Expect(Titles(remaining)).To(Equal([]string{"a", "c", "d"}))
	s.expectDense()
}

func (s *TodoServiceSuite) TestRemove_LastAndOnly() {
	todos := s.appendAll("only")

	Expect(s.Service.Remove(ctx, todos[0].ID)).To(Succeed())
	Expect(s.list()).To(BeEmpty())

	next, err := s.Service.Append(ctx, "again", "")
	Expect(err).To(BeNil())
	Expect(next.Order).To(Equal(1))
}

func (s *TodoServiceSuite) TestMove_Down() {
	todos := s.appendAll("1", "2", "3", "4", "5")

	result, err := s.Service.Move(ctx, todos[0].ID, todos[3].ID)
	Expect(err).To(BeNil())

	orders := Orders(result)
	Expect(orders[todos[0].ID]).To(Equal(4))
	Expect(orders[todos[1].ID]).To(Equal(1))
	Expect(orders[todos[2].ID]).To(Equal(2))
	Expect(orders[todos[3].ID]).To(Equal(3))
	Expect(orders[todos[4].ID]).To(Equal(5))

	Expect(Orders(s.list())).To(Equal(orders))
}

func (s *TodoServiceSuite) TestMove_Up() {
	todos := s.appendAll("1", "2", "3", "4", "5")

	result, err := s.Service.Move(ctx, todos[4].ID, todos[1].ID)
	Expect(err).To(BeNil())

	Expect(Titles(result)).To(Equal([]string{"1", "5", "2", "3", "4"}))
	s.expectDense()
}

func (s *TodoServiceSuite) TestMove_OntoItself() {
	todos := s.appendAll("a", "b", "c")

	result, err := s.Service.Move(ctx, todos[1].ID, todos[1].ID)
	Expect(err).To(BeNil())
	Expect(Titles(result)).To(Equal([]string{"a", "b", "c"}))
}

func (s *TodoServiceSuite) TestMove_RepairsDrift() {
	a, err := s.Store.Insert(ctx, domain.Todo{Title: "a", Order: 3})
	Expect(err).To(BeNil())
	b, err := s.Store.Insert(ctx, domain.Todo{Title: "b", Order: 7})
	Expect(err).To(BeNil())
	c, err := s.Store.Insert(ctx, domain.Todo{Title: "c", Order: 7})
	Expect(err).To(BeNil())

	result, err := s.Service.Move(ctx, a.ID, a.ID)
	Expect(err).To(BeNil())

	Expect(Orders(result)).To(Equal(map[int]int{a.ID: 1, b.ID: 2, c.ID: 3}))
	s.expectDense()
}

func (s *TodoServiceSuite) TestToggle_PreservesOrder() {
	todos := s.appendAll("a", "b", "c")
	before := Orders(s.list())

	toggled, err := s.Service.Toggle(ctx, todos[1].ID)
	Expect(err).To(BeNil())
	Expect(toggled.Completed).To(BeTrue())
	Expect(toggled.CompletedMessage()).To(Equal("Todo completed"))

	toggled, err = s.Service.Toggle(ctx, todos[1].ID)
	Expect(err).To(BeNil())
	Expect(toggled.Completed).To(BeFalse())

	Expect(Orders(s.list())).To(Equal(before))
}

func (s *TodoServiceSuite) TestRename_PreservesOrder() {
	todos := s.appendAll("a", "b", "c")
	before := Orders(s.list())

	renamed, err := s.Service.Rename(ctx, todos[2].ID, " pay bills ", domain.StringPtr("electricity"))
	Expect(err).To(BeNil())
	Expect(renamed.Title).To(Equal("pay bills"))
	Expect(renamed.Description).To(Equal("electricity"))
	Expect(renamed.Order).To(Equal(3))

	renamed, err = s.Service.Rename(ctx, todos[2].ID, "pay the bills", nil)
	Expect(err).To(BeNil())
	Expect(renamed.Description).To(Equal("electricity"))

	Expect(Orders(s.list())).To(Equal(before))
}

func (s *TodoServiceSuite) TestRename_Validation() {
	todos := s.appendAll("a")

	_, err := s.Service.Rename(ctx, todos[0].ID, "  ", nil)
	Expect(errors.Is(err, domain.ErrValidation)).To(BeTrue())

	_, err = s.Service.Rename(ctx, todos[0].ID, "ok", domain.StringPtr(strings.Repeat("d", domain.DescriptionMaxLength+1)))
	Expect(errors.Is(err, domain.ErrValidation)).To(BeTrue())

	todo, err := s.Service.Get(ctx, todos[0].ID)
	Expect(err).To(BeNil())
	Expect(todo.Title).To(Equal("a"))
}

func (s *TodoServiceSuite) TestNotFound_LeavesOrdersAlone() {
	s.appendAll("a", "b", "c")
	before := Orders(s.list())

	missing := 9999

	Expect(errors.Is(s.Service.Remove(ctx, missing), domain.ErrNotFound)).To(BeTrue())

	_, err := s.Service.Move(ctx, missing, 1)
	Expect(errors.Is(err, domain.ErrNotFound)).To(BeTrue())

	_, err = s.Service.Move(ctx, 1, missing)
	Expect(errors.Is(err, domain.ErrNotFound)).To(BeTrue())

	_, err = s.Service.Toggle(ctx, missing)
	Expect(errors.Is(err, domain.ErrNotFound)).To(BeTrue())

	_, err = s.Service.Rename(ctx, missing, "x", nil)
	Expect(errors.Is(err, domain.ErrNotFound)).To(BeTrue())

	_, err = s.Service.Get(ctx, missing)
	Expect(errors.Is(err, domain.ErrNotFound)).To(BeTrue())

	Expect(Orders(s.list())).To(Equal(before))
}

func (s *TodoServiceSuite) TestScenario_MilkDogBills() {
	todos := s.appendAll("buy milk", "walk dog", "pay bills")
	milk, dog, bills := todos[0], todos[1], todos[2]

	Expect([]int{milk.Order, dog.Order, bills.Order}).To(Equal([]int{1, 2, 3}))

	_, err := s.Service.Move(ctx, bills.ID, milk.ID)
	Expect(err).To(BeNil())
	Expect(Titles(s.list())).To(Equal([]string{"pay bills", "buy milk", "walk dog"}))
	s.expectDense()

	Expect(s.Service.Remove(ctx, milk.ID)).To(Succeed())

	orders := Orders(s.list())
	Expect(orders).To(Equal(map[int]int{bills.ID: 1, dog.ID: 2}))
}

func (s *TodoServiceSuite) TestRandomOperations_StayDense() {
	rng := rand.New(rand.NewSource(7))
	var ids []int

	for step := 0; step < 150; step++ {
		switch op := rng.Intn(10); {
		case op < 4 || len(ids) < 2:
			todo, err := s.Service.Append(ctx, fmt.Sprintf("todo %d", step), "")
			Expect(err).To(BeNil())
			ids = append(ids, todo.ID)
		case op < 6:
			i := rng.Intn(len(ids))
			Expect(s.Service.Remove(ctx, ids[i])).To(Succeed())
			ids = append(ids[:i], ids[i+1:]...)
		case op < 9:
			_, err := s.Service.Move(ctx, ids[rng.Intn(len(ids))], ids[rng.Intn(len(ids))])
			Expect(err).To(BeNil())
		default:
			_, err := s.Service.Toggle(ctx, ids[rng.Intn(len(ids))])
			Expect(err).To(BeNil())
		}

		todos := s.list()
		Expect(todos).To(HaveLen(len(ids)))
		Expect(service.IsDense(todos)).To(BeTrue(), "step %d", step)
	}
}

func (s *TodoServiceSuite) TestListPage_WalksEveryTodo() {
	s.appendAll("a", "b", "c", "d", "e")

	var titles []string
	cursor := ""

	for {
		page, err := s.Service.ListPage(ctx, 2, cursor)
		Expect(err).To(BeNil())

		var data []struct {
			Title string `json:"title"`
		}
		Expect(json.Unmarshal(page.Data, &data)).To(Succeed())

		for _, d := range data {
			titles = append(titles, d.Title)
		}

		if !page.Pagination.HasNext {
			break
		}

		cursor = page.Pagination.NextCursor
	}

	Expect(titles).To(Equal([]string{"a", "b", "c", "d", "e"}))
}

func (s *TodoServiceSuite) TestListPage_RejectsForgedCursor() {
	s.appendAll("a")

	forged := util.NewCursorCodec("someone else").Encode(domain.Position{Order: 0, ID: 0})

	_, err := s.Service.ListPage(ctx, 10, forged)
	Expect(errors.Is(err, domain.ErrValidation)).To(BeTrue())
}

// faultyRepo fails one named operation with a storage error.
type faultyRepo struct {
	port.TodoRepository
	failOn string
}

var errDisk = errors.New("disk I/O error")

func (r *faultyRepo) ShiftOrders(ctx context.Context, rg domain.OrderRange, delta int) (int64, error) {
	if r.failOn == "ShiftOrders" {
		return 0, errDisk
	}

	return r.TodoRepository.ShiftOrders(ctx, rg, delta)
}

func (r *faultyRepo) Insert(ctx context.Context, todo domain.Todo) (domain.Todo, error) {
	if r.failOn == "Insert" {
		return domain.Todo{}, errDisk
	}

	return r.TodoRepository.Insert(ctx, todo)
}

type faultyStore struct {
	port.TodoStore
	failOn string
}

func (s *faultyStore) ShiftOrders(ctx context.Context, rg domain.OrderRange, delta int) (int64, error) {
	return (&faultyRepo{TodoRepository: s.TodoStore, failOn: s.failOn}).ShiftOrders(ctx, rg, delta)
}

func (s *faultyStore) Insert(ctx context.Context, todo domain.Todo) (domain.Todo, error) {
	return (&faultyRepo{TodoRepository: s.TodoStore, failOn: s.failOn}).Insert(ctx, todo)
}

func (s *faultyStore) WithinTx(ctx context.Context, fn func(ctx context.Context, repo port.TodoRepository) error) error {
	return s.TodoStore.WithinTx(ctx, func(ctx context.Context, repo port.TodoRepository) error {
		return fn(ctx, &faultyRepo{TodoRepository: repo, failOn: s.failOn})
	})
}

func TestRemove_StorageFailureRollsBack(t *testing.T) {
	for name, newStore := range map[string]storeFactory{"memory": memoryStore, "sqlite": sqliteStore} {
		t.Run(name, func(t *testing.T) {
			store := newStore(t)
			seeded := SeedTodos(t, store, "a", "b", "c")

			svc := service.NewTodoService(&faultyStore{TodoStore: store, failOn: "ShiftOrders"}, validation.New())

			err := svc.Remove(ctx, seeded[0].ID)

			assert.True(t, errors.Is(err, domain.ErrStorage))
			assert.True(t, errors.Is(err, errDisk))

			todos, err := store.FindAll(ctx)
			assert.NoError(t, err)
			assert.Equal(t, []string{"a", "b", "c"}, Titles(todos))
			assert.True(t, service.IsDense(todos))
		})
	}
}

func TestRemove_StorageFailureWithoutTransactionLeavesGap(t *testing.T) {
	store := memoryStore(t)
	seeded := SeedTodos(t, store, "a", "b", "c")

	svc := service.NewTodoService(&faultyStore{TodoStore: store, failOn: "ShiftOrders"}, validation.New(), service.WithTransactions(false))

	err := svc.Remove(ctx, seeded[0].ID)
	assert.True(t, errors.Is(err, domain.ErrStorage))

	todos, _ := store.FindAll(ctx)
	assert.Equal(t, []string{"b", "c"}, Titles(todos))
	assert.False(t, service.IsDense(todos))
}

func TestAppend_StorageFailure(t *testing.T) {
	store := memoryStore(t)
	svc := service.NewTodoService(&faultyStore{TodoStore: store, failOn: "Insert"}, validation.New())

	_, err := svc.Append(ctx, "buy milk", "")

	var storageErr *domain.StorageError
	assert.True(t, errors.As(err, &storageErr))
	assert.Equal(t, "append", storageErr.Op)
}

func TestConcurrentMutations_StayDense(t *testing.T) {
	dir := t.TempDir()

	db, err := sqlite.NewDB(sqlite.Options{Path: filepath.Join(dir, "todos.db")})
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	stores := map[string]port.TodoStore{
		"memory": memory.NewStore(),
		"sqlite": repository.NewTodoRepository(db, nil),
	}

	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			svc := service.NewTodoService(store, validation.New())

			seeded := make([]int, 0, 6)
			for i := 0; i < 6; i++ {
				todo, err := svc.Append(ctx, fmt.Sprintf("seed %d", i), "")
				if err != nil {
					t.Fatal(err)
				}
				seeded = append(seeded, todo.ID)
			}

			var wg sync.WaitGroup

			for w := 0; w < 4; w++ {
				wg.Add(1)

				go func(worker int) {
					defer wg.Done()

					rng := rand.New(rand.NewSource(int64(worker)))

					for i := 0; i < 10; i++ {
						switch rng.Intn(4) {
						case 0:
							svc.Append(ctx, fmt.Sprintf("worker %d item %d", worker, i), "")
						case 1:
							svc.Move(ctx, seeded[rng.Intn(len(seeded))], seeded[rng.Intn(len(seeded))])
						case 2:
							svc.Remove(ctx, seeded[rng.Intn(len(seeded))])
						default:
							svc.Toggle(ctx, seeded[rng.Intn(len(seeded))])
						}
					}
				}(w)
			}

			wg.Wait()

			todos, err := store.FindAll(ctx)
			if err != nil {
				t.Fatal(err)
			}

			orders := make([]int, 0, len(todos))
			for _, todo := range todos {
				orders = append(orders, todo.Order)
			}
			sort.Ints(orders)

			for i, order := range orders {
				assert.Equal(t, i+1, order)
			}
		})
	}
}
