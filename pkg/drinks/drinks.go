package drinks

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound     = errors.New("drink not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrBadRequest   = errors.New("bad request")
)

// Ingredient is one layer of a drink. Name is only present in the detailed
// representation.
type Ingredient struct {
	Name  string `json:"name,omitempty"`
	Color string `json:"color"`
	Parts int    `json:"parts"`
}

type Drink struct {
	ID     int          `json:"id"`
	Title  string       `json:"title"`
	Recipe []Ingredient `json:"recipe"`
}

// Input is the body of create and update requests. Nil fields are left
// unchanged by an update.
type Input struct {
	Title  *string      `json:"title,omitempty"`
	Recipe []Ingredient `json:"recipe,omitempty"`
}

func NewInput(title string, recipe ...Ingredient) Input {
	return Input{Title: &title, Recipe: recipe}
}

// envelope is the shape of every drinks API response.
type envelope struct {
	Success bool    `json:"success"`
	Drinks  []Drink `json:"drinks,omitempty"`
	Drink   *Drink  `json:"drink,omitempty"`
	Delete  *int    `json:"delete,omitempty"`
	Error   int     `json:"error,omitempty"`
	Message string  `json:"message,omitempty"`
}

// APIError is a non-success response from the drinks API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("drinks api: %d %s", e.Status, e.Message)
}

func (e *APIError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	case ErrUnauthorized:
		return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
	case ErrBadRequest:
		return e.Status == http.StatusBadRequest || e.Status == http.StatusUnprocessableEntity
	}
	return false
}
