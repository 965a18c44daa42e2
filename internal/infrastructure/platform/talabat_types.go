package platform

import "time"

// Talabat webhook order payload
type talabatOrderPayload struct {
	Token     string           `json:"token"`
	Code      string           `json:"code"`
	Products  []talabatProduct `json:"products"`
	Customer  talabatCustomer  `json:"customer"`
	Delivery  talabatDelivery  `json:"delivery"`
	Comments  talabatComments  `json:"comments"`
	Price     talabatPrice     `json:"price"`
	CreatedAt time.Time        `json:"createdAt"`
}

type talabatProduct struct {
	RemoteCode       string                  `json:"remoteCode"`
	Name             string                  `json:"name"`
	Quantity         string                  `json:"quantity"`
	UnitPrice        string                  `json:"unitPrice"`
	SelectedToppings []talabatToppingElement `json:"selectedToppings"`
}

type talabatToppingElement struct {
	Name string `json:"name"`
}

type talabatCustomer struct {
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	MobilePhone string `json:"mobilePhone"`
}

type talabatDelivery struct {
	Address talabatAddress `json:"address"`
}

type talabatAddress struct {
	Street   string `json:"street"`
	Number   string `json:"number"`
	City     string `json:"city"`
	FlatName string `json:"flatName"`
}

type talabatComments struct {
	CustomerComment string `json:"customerComment"`
}

type talabatPrice struct {
	GrandTotal string `json:"grandTotal"`
	Currency   string `json:"currency"`
}

// Catalog import request
type talabatCatalogRequest struct {
	CatalogName string               `json:"catalogName"`
	Currency    string               `json:"currency"`
	Vendors     []string             `json:"vendors,omitempty"`
	Items       []talabatCatalogItem `json:"items"`
}

type talabatCatalogItem struct {
	RemoteCode  string                `json:"remoteCode"`
	Title       string                `json:"title"`
	Description string                `json:"description,omitempty"`
	Price       string                `json:"price"`
	Active      bool                  `json:"active"`
	Toppings    []talabatToppingGroup `json:"toppings,omitempty"`
}

type talabatToppingGroup struct {
	Title    string                 `json:"title"`
	MinCount int                    `json:"minCount"`
	MaxCount int                    `json:"maxCount"`
	Options  []talabatToppingOption `json:"options"`
}

type talabatToppingOption struct {
	Title string `json:"title"`
	Price string `json:"price"`
}

type talabatCatalogResponse struct {
	ImportID string `json:"importId"`
	Message  string `json:"message"`
}

// Asynchronous import result callback
type talabatCallbackPayload struct {
	ImportID string `json:"importId"`
	Status   string `json:"status"`
	Details  string `json:"details"`
}
