package model

import "github.com/google/uuid"

// Category represents a product category used to classify products.
type Category struct {
	ID           uuid.UUID
	Name         string
	Description  *string
	ProductCount int
}
