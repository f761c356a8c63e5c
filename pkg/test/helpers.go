package test

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/jefferypippitt/essential-todo/internal/adapter/database/sqlite"
	"github.com/jefferypippitt/essential-todo/internal/core/domain"
	"github.com/jefferypippitt/essential-todo/internal/core/port"
)

// FindProjectRoot walks up from this file until it finds go.mod.
func FindProjectRoot() string {
	_, filename, _, _ := runtime.Caller(0)
	dir := filepath.Dir(filename)

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	if wd, err := os.Getwd(); err == nil {
		return wd
	}

	log.Fatal("Could not find project root directory")
	return ""
}

// InitTestDB opens a private in-memory SQLite database with the schema
// applied from db/migrations/sqlite.
func InitTestDB() *sqlite.DB {
	db, err := sqlite.NewDB(sqlite.Options{
		Path:           sqlite.MemoryPath,
		MigrationsPath: filepath.Join(FindProjectRoot(), "db", "migrations", "sqlite"),
	})

	if err != nil {
		log.Fatal(err)
	}

	return db
}

// SeedTodos appends one todo per title with dense orders starting at 1.
func SeedTodos(t *testing.T, repo port.TodoRepository, titles ...string) []domain.Todo {
	t.Helper()

	todos := make([]domain.Todo, 0, len(titles))

	for i, title := range titles {
		todo, err := repo.Insert(context.Background(), domain.Todo{Title: title, Order: i + 1})

		if err != nil {
			t.Fatalf("Failed to seed todo %q: %v", title, err)
		}

		todos = append(todos, todo)
	}

	return todos
}

// Orders returns the order column keyed by id.
func Orders(todos []domain.Todo) map[int]int {
	orders := make(map[int]int, len(todos))

	for _, todo := range todos {
		orders[todo.ID] = todo.Order
	}

	return orders
}

// Titles lists titles in slice order.
func Titles(todos []domain.Todo) []string {
	titles := make([]string, 0, len(todos))

	for _, todo := range todos {
		titles = append(titles, todo.Title)
	}

	return titles
}
