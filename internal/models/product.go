package models

import (
	"time"

	"github.com/google/uuid"
)

const DefaultProductImage = "https://via.placeholder.com/400x400?text=No+Image"

type Product struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Price       float64   `json:"price"`
	Image       string    `json:"image"`
	Category    string    `json:"category"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type CreateProductRequest struct {
	Name        string  `json:"name" validate:"required,min=1,max=100"`
	Description string  `json:"description" validate:"required,max=500"`
	Price       float64 `json:"price" validate:"gte=0"`
	Image       string  `json:"image,omitempty" validate:"omitempty,url"`
	Category    string  `json:"category" validate:"required,max=100"`
}

// UpdateProductRequest replaces every mutable field; there is no partial
// update.
type UpdateProductRequest struct {
	Name        string  `json:"name" validate:"required,min=1,max=100"`
	Description string  `json:"description" validate:"required,max=500"`
	Price       float64 `json:"price" validate:"gte=0"`
	Image       string  `json:"image,omitempty" validate:"omitempty,url"`
	Category    string  `json:"category" validate:"required,max=100"`
}
