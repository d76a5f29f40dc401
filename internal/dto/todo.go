package dto

import "time"

// TodoForm is the create/edit form and the JSON body for POST /todos.
// Bounds match the todo table columns.
type TodoForm struct {
	Title string `form:"title" json:"title" binding:"required,max=50"`
	Body  string `form:"body" json:"body" binding:"required,max=500"`
}

// UpdateTodoRequest is the JSON body for PATCH /todos/{id}. Omitted fields
// keep their current value.
type UpdateTodoRequest struct {
	Title *string `json:"title" binding:"omitempty,min=1,max=50"`
	Body  *string `json:"body" binding:"omitempty,min=1,max=500"`
}

type TodoResponse struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

type ListTodosResponse struct {
	Items []TodoResponse `json:"items"`
}

// ErrorResponse is the body of every failed API call.
type ErrorResponse struct {
	Error string `json:"error"`
}
