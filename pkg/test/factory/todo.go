package factory

import (
	fab "github.com/Goldziher/fabricator"
)

// NewTodo builds a T with random field values, then applies customData on top.
func NewTodo[T any](customData ...map[string]any) T {
	instance := fab.New(*new(T))

	return instance.Build(customData...)
}
