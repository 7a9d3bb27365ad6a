package storeapi

import "time"

// User is the account returned by the backend on login.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

// LoginResponse carries the signed session token issued by the backend.
type LoginResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// GuestProfile is a previously stored guest customer.
type GuestProfile struct {
	IDType   string `json:"idType"`
	IDNumber string `json:"idNumber"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
}

// Discount describes the terms of an accepted discount code.
type Discount struct {
	Code   string  `json:"code"`
	Type   string  `json:"type"`
	Value  float64 `json:"value"`
	Amount float64 `json:"amount"`
	Valid  bool    `json:"valid"`
	Reason string  `json:"reason,omitempty"`
}

// OrderItem is one cart line in an order payload.
type OrderItem struct {
	ProductID string  `json:"productId"`
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unitPrice"`
}

// OrderCustomer is the contact block of an order payload.
type OrderCustomer struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	IDType   string `json:"idType,omitempty"`
	IDNumber string `json:"idNumber,omitempty"`
}

// OrderLocation is the delivery block of an order payload.
type OrderLocation struct {
	Method    string   `json:"method"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	Address   string   `json:"address,omitempty"`
	City      string   `json:"city,omitempty"`
	State     string   `json:"state,omitempty"`
	Zip       string   `json:"zip,omitempty"`
	Country   string   `json:"country,omitempty"`
}

// OrderReceipt is the payment receipt attachment. Data is base64 encoded on
// the wire and Size is its decoded length in bytes.
type OrderReceipt struct {
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
	Size        int    `json:"size"`
	Data        []byte `json:"data"`
}

// OrderPayment is the payment block of an order payload.
type OrderPayment struct {
	Method      string        `json:"method"`
	SenderName  string        `json:"senderName,omitempty"`
	SenderBank  string        `json:"senderBank,omitempty"`
	Phone       string        `json:"phone,omitempty"`
	Cedula      string        `json:"cedula,omitempty"`
	Bank        string        `json:"bank,omitempty"`
	Beneficiary string        `json:"beneficiary,omitempty"`
	Reference   string        `json:"reference,omitempty"`
	Receipt     *OrderReceipt `json:"receipt,omitempty"`
}

// OrderRequest is the single order-creation payload built from a completed checkout.
type OrderRequest struct {
	Customer       OrderCustomer  `json:"customer"`
	DeliveryMethod string         `json:"deliveryMethod"`
	Location       *OrderLocation `json:"location,omitempty"`
	Payment        OrderPayment   `json:"payment"`
	Items          []OrderItem    `json:"items"`
	DiscountCode   string         `json:"discountCode,omitempty"`
	CreateAccount  bool           `json:"createAccount"`
	Password       string         `json:"password,omitempty"`
	ExchangeRate   float64        `json:"exchangeRate,omitempty"`
}

// Order is the backend's view of a created order.
type Order struct {
	ID        string    `json:"id"`
	Number    string    `json:"number"`
	Status    string    `json:"status"`
	Total     float64   `json:"total"`
	CreatedAt time.Time `json:"createdAt"`
}

type exchangeRateResponse struct {
	Rate      float64   `json:"rate"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type errorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}
