package domain

import "time"

// Todo is a shared to-do item. It has no owner: any signed-in user may
// read, edit or delete it.
type Todo struct {
	ID        int64
	Title     string
	Body      string
	CreatedAt time.Time
}
