package domain

// DashboardSummary aggregates the current inventory state for the
// dashboard view.
type DashboardSummary struct {
	InventoryValue float64   `json:"inventoryValue"` // sum of price * stock
	TotalItems     int       `json:"totalItems"`     // units on hand across all products
	ProductCount   int       `json:"productCount"`
	LowStockItems  []Product `json:"lowStockItems"` // stock at or below threshold
}

// SalesSummary aggregates the sales ledger for the sales history view.
type SalesSummary struct {
	TotalRevenue      float64 `json:"totalRevenue"` // sum of totalPrice
	TotalCost         float64 `json:"totalCost"`    // sum of buyingPrice * quantity
	TotalProfit       float64 `json:"totalProfit"`
	TotalTransactions int     `json:"totalTransactions"`
	TotalUnitsSold    int     `json:"totalUnitsSold"`
}
