package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Category string

const (
	CategoryDrafter Category = "Drafter"
	CategoryNK      Category = "NK"
	CategoryBoth    Category = "Both"

	// CategoryAll is only meaningful as a query filter.
	CategoryAll Category = "All"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryDrafter, CategoryNK, CategoryBoth:
		return true
	}
	return false
}

type Condition string

const (
	ConditionNew     Condition = "New"
	ConditionLikeNew Condition = "Like New"
	ConditionGood    Condition = "Good"
	ConditionFair    Condition = "Fair"
	ConditionPoor    Condition = "Poor"
)

func (c Condition) Valid() bool {
	switch c {
	case ConditionNew, ConditionLikeNew, ConditionGood, ConditionFair, ConditionPoor:
		return true
	}
	return false
}

type ListingStatus string

const (
	ListingAvailable ListingStatus = "Available"
	ListingSold      ListingStatus = "Sold"
	ListingReserved  ListingStatus = "Reserved"
)

func (s ListingStatus) Valid() bool {
	switch s {
	case ListingAvailable, ListingSold, ListingReserved:
		return true
	}
	return false
}

type TransactionStatus string

const (
	TransactionPending   TransactionStatus = "Pending"
	TransactionDelivered TransactionStatus = "Delivered"
	TransactionPickedUp  TransactionStatus = "Picked Up"
	TransactionCancelled TransactionStatus = "Cancelled"
)

func (s TransactionStatus) Valid() bool {
	switch s {
	case TransactionPending, TransactionDelivered, TransactionPickedUp, TransactionCancelled:
		return true
	}
	return false
}

// PickupPending marks a transaction whose seller has not named a pickup location yet.
const PickupPending = "Pending"

type Listing struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Author      string          `json:"author"`
	Category    Category        `json:"category"`
	Condition   Condition       `json:"condition"`
	Price       decimal.Decimal `json:"price"`
	Description string          `json:"description,omitempty"`
	Image       string          `json:"image,omitempty"`
	SellerID    string          `json:"seller_id"`
	SellerName  string          `json:"seller_name"`
	Status      ListingStatus   `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

type Transaction struct {
	ID               string            `json:"id"`
	ListingID        string            `json:"listing_id"`
	BookTitle        string            `json:"book_title"`
	BuyerID          string            `json:"buyer_id"`
	BuyerName        string            `json:"buyer_name"`
	SellerID         string            `json:"seller_id"`
	SellerName       string            `json:"seller_name"`
	Price            decimal.Decimal   `json:"price"`
	Status           TransactionStatus `json:"status"`
	DeliveryLocation string            `json:"delivery_location"`
	PickupLocation   string            `json:"pickup_location"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	IsAdmin   bool      `json:"is_admin"`
	Location  string    `json:"location,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Credential struct {
	UserID       string `json:"-"`
	PasswordHash string `json:"-"`
	Salt         string `json:"-"`
}

type ContentEntry struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}
