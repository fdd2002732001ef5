package domain

// ServerLineItem is one item as the remote cart service reports it.
type ServerLineItem struct {
	ProductID     string   `json:"productId"`
	VariantID     string   `json:"variantId,omitempty"`
	Quantity      int      `json:"quantity"`
	CurrentPrice  float64  `json:"currentPrice"`
	OriginalPrice float64  `json:"originalPrice,omitempty"`
	StockQuantity int      `json:"stockQuantity"`
	InStock       bool     `json:"inStock"`
	OutOfStock    bool     `json:"outOfStock"`
	IsDeleted     bool     `json:"isDeleted"`
	Title         string   `json:"title,omitempty"`
	Images        []string `json:"images,omitempty"`
	Slug          string   `json:"slug,omitempty"`
	Color         string   `json:"color,omitempty"`
	Size          string   `json:"size,omitempty"`
}

// Key returns the item identity matching LineItem.Key.
func (si ServerLineItem) Key() string {
	return ItemKey(si.ProductID, si.VariantID)
}

// CartSnapshot is the authoritative cart state last fetched from the server.
// FetchedAt is stamped by the client when the response arrives and is the
// reference point for last-writer-wins comparisons.
type CartSnapshot struct {
	Items     []ServerLineItem `json:"items"`
	FetchedAt int64            `json:"fetched_at"` // unix milliseconds
}

// Item returns the snapshot item for key, if present.
func (s *CartSnapshot) Item(key string) (ServerLineItem, bool) {
	for _, it := range s.Items {
		if it.Key() == key {
			return it, true
		}
	}
	return ServerLineItem{}, false
}

// Has reports whether the snapshot contains an item for key.
func (s *CartSnapshot) Has(key string) bool {
	_, ok := s.Item(key)
	return ok
}
