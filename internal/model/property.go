package model

import "time"

// Property is a rented dwelling whose accounts are kept separately.
type Property struct {
	CreatedAt time.Time
	Name      string
	ID        int64
}
