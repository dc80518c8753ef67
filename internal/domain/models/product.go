package models

import "github.com/shopspring/decimal"

// Product представляет товар каталога
type Product struct {
	ID          int64           `json:"pid"`
	Category    string          `json:"category"`
	Gender      string          `json:"gender"`
	Name        string          `json:"productName"`
	Size        string          `json:"size"`
	Price       decimal.Decimal `json:"price"`
	ImageLink   string          `json:"imageLink,omitempty"`
	ThumbLink   string          `json:"thumbLink"`
	Inventory   int             `json:"inventory"`
	Description string          `json:"description"`
}
