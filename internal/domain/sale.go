package domain

import "time"

// Sale records units sold from a Product at a point in time. Unit price
// and cost are snapshotted from the product at the moment of the sale,
// never looked up live afterwards. A sale whose quantity is undone down
// to zero is deleted outright, not kept as a zero-quantity row.
type Sale struct {
	ID          string    `json:"id"`
	ProductID   string    `json:"productId"`
	ProductName string    `json:"productName"` // denormalized, survives product deletion
	Quantity    int       `json:"quantity"`
	UnitPrice   float64   `json:"unitPrice"`   // selling price at time of sale
	BuyingPrice float64   `json:"buyingPrice"` // cost price at time of sale
	TotalPrice  float64   `json:"totalPrice"`  // Quantity * UnitPrice
	Timestamp   time.Time `json:"timestamp"`
}
