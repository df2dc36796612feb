package models

import (
	"time"

	"github.com/google/uuid"
)

// CartItem holds a product reference and a quantity. The Product field is a
// read-side join filled in on responses; it is never persisted with the cart.
type CartItem struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
	Product   *Product  `json:"product,omitempty"`
}

// Cart is a session-less item collection addressed by an opaque id. It is
// never bound to a user and never deleted; clearing empties Items in place.
// Items is keyed by product id, so a cart holds at most one line per product.
type Cart struct {
	ID        uuid.UUID           `json:"id"`
	Items     map[string]CartItem `json:"items"`
	CreatedAt time.Time           `json:"created_at"`
	UpdatedAt time.Time           `json:"updated_at"`
}

func (c *Cart) ItemCount() int {
	return len(c.Items)
}

type AddItemRequest struct {
	// CartID is optional; an absent or unresolvable id creates a fresh cart.
	CartID    string    `json:"cartId,omitempty"`
	ProductID uuid.UUID `json:"productId" validate:"required"`
	Quantity  int       `json:"quantity" validate:"required,min=1"`
}

// UpdateQuantityRequest carries the replacement quantity for an existing
// line. Zero and negative values remove the line, so no minimum is enforced
// here; fractional input fails JSON decoding into the int field.
type UpdateQuantityRequest struct {
	Quantity int `json:"quantity"`
}
