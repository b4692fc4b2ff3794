package domain

import (
	"time"
)

// Product represents a single stocked garment variant of the boutique:
// a name + size + color combination with its selling price, cost price
// and quantity on hand.
type Product struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	Category          string    `json:"category"` // e.g. "Tops", "Bottoms", "Outerwear", "Accessories"
	Size              string    `json:"size"`     // e.g. "S", "M", "L", "XL", "OS"
	Color             string    `json:"color"`
	Price             float64   `json:"price"`       // selling price, KES
	BuyingPrice       float64   `json:"buyingPrice"` // cost price, KES
	Stock             int       `json:"stock"`       // never negative, decrements clamp at zero
	MinStockThreshold int       `json:"minStockThreshold"`
	ImageURL          string    `json:"imageUrl,omitempty"`
	LastUpdated       time.Time `json:"lastUpdated"`
}

// ProductDraft is a Product before the engine assigns its identity:
// what a manual entry form or the shipment parser produces.
type ProductDraft struct {
	Name              string  `json:"name"`
	Category          string  `json:"category"`
	Size              string  `json:"size"`
	Color             string  `json:"color"`
	Price             float64 `json:"price"`
	BuyingPrice       float64 `json:"buyingPrice"`
	Stock             int     `json:"stock"`
	MinStockThreshold int     `json:"minStockThreshold"`
	ImageURL          string  `json:"imageUrl,omitempty"`
}

// LowStock reports whether the product has reached its alert threshold.
func (p Product) LowStock() bool {
	return p.Stock <= p.MinStockThreshold
}
