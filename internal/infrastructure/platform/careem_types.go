package platform

import "time"

// Careem webhook order payload
type careemOrderPayload struct {
	ID       string             `json:"id"`
	Items    []careemOrderItem  `json:"items"`
	Customer careemCustomer     `json:"customer"`
	Delivery careemDeliveryInfo `json:"delivery"`
	Note     string             `json:"note"`
	Total    string             `json:"total"`
	Currency string             `json:"currency"`
	PlacedAt time.Time          `json:"placed_at"`
}

type careemOrderItem struct {
	SKU       string   `json:"sku"`
	Name      string   `json:"name"`
	Quantity  int      `json:"quantity"`
	UnitPrice string   `json:"unit_price"`
	Modifiers []string `json:"modifiers"`
}

type careemCustomer struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

type careemDeliveryInfo struct {
	Address string `json:"address"`
}

// OAuth client-credentials token response
type careemTokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// Catalog submission
type careemCatalogRequest struct {
	Name      string              `json:"name"`
	Currency  string              `json:"currency"`
	Items     []careemCatalogItem `json:"items"`
	Locations []string            `json:"locations,omitempty"`
}

type careemCatalogItem struct {
	SKU            string               `json:"sku"`
	Name           string               `json:"name"`
	Description    string               `json:"description,omitempty"`
	Price          string               `json:"price"`
	Available      bool                 `json:"available"`
	ModifierGroups []careemCatalogGroup `json:"modifier_groups,omitempty"`
}

type careemCatalogGroup struct {
	Name      string                  `json:"name"`
	MinSelect int                     `json:"min_select"`
	MaxSelect int                     `json:"max_select"`
	Options   []careemCatalogModifier `json:"options"`
}

type careemCatalogModifier struct {
	Name  string `json:"name"`
	Price string `json:"price"`
}

type careemCatalogResponse struct {
	CatalogID string `json:"catalog_id"`
	Status    string `json:"status"`
	Message   string `json:"message"`
}

// Asynchronous validation callback
type careemCallbackPayload struct {
	CatalogID string   `json:"catalog_id"`
	Status    string   `json:"status"`
	Errors    []string `json:"errors"`
}
