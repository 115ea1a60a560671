package domain

import (
	"time"

	"github.com/google/uuid"
)

type Customer struct {
	ID        uuid.UUID
	FirstName string
	LastName  string
	Email     string
	Phone     string
	CreatedAt time.Time
}

func (c *Customer) FullName() string {
	if c.LastName == "" {
		return c.FirstName
	}
	return c.FirstName + " " + c.LastName
}

type Address struct {
	ID         uuid.UUID
	CustomerID uuid.UUID
	Line1      string
	Line2      string
	City       string
	Province   string
	PostalCode string
}
