package domain

// SyncStatus tracks how a line item relates to the server-side cart.
type SyncStatus string

const (
	// SyncStatusLocal marks an edit that has not been sent to the server yet.
	SyncStatusLocal SyncStatus = "local"
	// SyncStatusPending marks a local edit that survived a merge and still
	// needs to be resynced.
	SyncStatusPending SyncStatus = "pending"
	// SyncStatusSynced marks a server-confirmed value.
	SyncStatusSynced SyncStatus = "synced"
)

// LineItem is one product (optionally one variant) in the local cart.
type LineItem struct {
	ProductID     string     `json:"product_id"`
	VariantID     string     `json:"variant_id,omitempty"`
	Quantity      int        `json:"quantity"`
	UnitPrice     float64    `json:"unit_price"`
	OriginalPrice float64    `json:"original_price,omitempty"`
	Title         string     `json:"title,omitempty"`
	Image         string     `json:"image,omitempty"`
	Slug          string     `json:"slug,omitempty"`
	Color         string     `json:"color,omitempty"`
	Size          string     `json:"size,omitempty"`
	StockQuantity int        `json:"stock_quantity,omitempty"`
	InStock       bool       `json:"in_stock"`
	OutOfStock    bool       `json:"out_of_stock"`
	IsDeleted     bool       `json:"is_deleted"`
	SyncStatus    SyncStatus `json:"sync_status"`
	LastModified  int64      `json:"last_modified"` // unix milliseconds
}

// Key returns the identity of the item within a cart.
func (li LineItem) Key() string {
	return ItemKey(li.ProductID, li.VariantID)
}

// ItemKey builds the cart-wide unique key for a product/variant pair.
func ItemKey(productID, variantID string) string {
	return productID + ":" + variantID
}
