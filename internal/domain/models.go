package domain

import "time"

// Money is stored in integer cents and weight in integer grams throughout.
// Wire fields carry the unit suffix so clients never have to guess.

type UserAccount struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

type Profile struct {
	UserID    string `json:"user_id"`
	OwnerName string `json:"owner_name"`
	Mobile    string `json:"mobile"`
	ShopName  string `json:"shop_name"`
}

type ProfileUpdateRequest struct {
	OwnerName *string `json:"owner_name,omitempty"`
	Mobile    *string `json:"mobile,omitempty"`
	ShopName  *string `json:"shop_name,omitempty"`
}

type Seller struct {
	ID           string    `json:"id"`
	OwnerID      string    `json:"owner_id"`
	Name         string    `json:"name"`
	Mobile       string    `json:"mobile"`
	SerialNumber string    `json:"serial_number"`
	Address      string    `json:"address"`
	Date         time.Time `json:"date"`
	AmountCents  int64     `json:"amount_cents"`
	WeightGrams  int64     `json:"weight_grams"`
	CreatedAt    time.Time `json:"created_at"`
}

type SellerCreateRequest struct {
	Name         string `json:"name"`
	Mobile       string `json:"mobile"`
	SerialNumber string `json:"serial_number"`
	Address      string `json:"address"`
	Date         string `json:"date"`
	AmountCents  int64  `json:"amount_cents"`
	WeightGrams  int64  `json:"weight_grams"`
}

type SellerUpdateRequest struct {
	Name         *string `json:"name,omitempty"`
	Mobile       *string `json:"mobile,omitempty"`
	SerialNumber *string `json:"serial_number,omitempty"`
	Address      *string `json:"address,omitempty"`
	Date         *string `json:"date,omitempty"`
}

// Purchase is one append-only seller_transactions row. The previous/new
// totals are snapshots of the seller's live balance taken server-side at
// insert time under the seller row lock.
type Purchase struct {
	ID                  string    `json:"id"`
	SellerID            string    `json:"seller_id"`
	Date                time.Time `json:"transaction_date"`
	AmountAddedCents    int64     `json:"amount_added_cents"`
	GramsAdded          int64     `json:"grams_added"`
	PreviousAmountCents int64     `json:"previous_amount_cents"`
	PreviousGrams       int64     `json:"previous_grams"`
	NewTotalAmountCents int64     `json:"new_total_amount_cents"`
	NewTotalGrams       int64     `json:"new_total_grams"`
	FlowerName          string    `json:"flower_name,omitempty"`
	LessGrams           int64     `json:"less_grams"`
	SalesmanName        string    `json:"salesman_name,omitempty"`
	SalesmanMobile      string    `json:"salesman_mobile,omitempty"`
	SalesmanAddress     string    `json:"salesman_address,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
}

type PurchaseCreateRequest struct {
	Date             string `json:"transaction_date"`
	AmountAddedCents int64  `json:"amount_added_cents"`
	GramsAdded       int64  `json:"grams_added"`
	FlowerName       string `json:"flower_name"`
	LessGrams        int64  `json:"less_grams"`
	SalesmanName     string `json:"salesman_name"`
	SalesmanMobile   string `json:"salesman_mobile"`
	SalesmanAddress  string `json:"salesman_address"`
}

type PurchaseUpdateRequest struct {
	Date             *string `json:"transaction_date,omitempty"`
	AmountAddedCents *int64  `json:"amount_added_cents,omitempty"`
	GramsAdded       *int64  `json:"grams_added,omitempty"`
	FlowerName       *string `json:"flower_name,omitempty"`
	LessGrams        *int64  `json:"less_grams,omitempty"`
}

type SalesmanAssignRequest struct {
	SalesmanName    string `json:"salesman_name"`
	SalesmanMobile  string `json:"salesman_mobile"`
	SalesmanAddress string `json:"salesman_address"`
}

// Sale is one sold_to_transactions row; creating one decrements the seller's
// live balance after a stock check.
type Sale struct {
	ID                   string    `json:"id"`
	SellerID             string    `json:"seller_id"`
	CustomerName         string    `json:"customer_name"`
	CustomerMobile       string    `json:"customer_mobile"`
	SaleDate             time.Time `json:"sale_date"`
	GramsSold            int64     `json:"grams_sold"`
	AmountSoldCents      int64     `json:"amount_sold_cents"`
	PreviousGrams        int64     `json:"previous_grams"`
	PreviousAmountCents  int64     `json:"previous_amount_cents"`
	RemainingGrams       int64     `json:"remaining_grams"`
	RemainingAmountCents int64     `json:"remaining_amount_cents"`
	Notes                string    `json:"notes,omitempty"`
	CreatedAt            time.Time `json:"created_at"`
}

type SaleCreateRequest struct {
	CustomerName    string `json:"customer_name"`
	CustomerMobile  string `json:"customer_mobile"`
	SaleDate        string `json:"sale_date"`
	GramsSold       int64  `json:"grams_sold"`
	AmountSoldCents int64  `json:"amount_sold_cents"`
	Notes           string `json:"notes"`
}

// SaleUpdateRequest covers customer metadata only; sold amounts are immutable
// once the seller balance has been decremented.
type SaleUpdateRequest struct {
	CustomerName   *string `json:"customer_name,omitempty"`
	CustomerMobile *string `json:"customer_mobile,omitempty"`
	SaleDate       *string `json:"sale_date,omitempty"`
	Notes          *string `json:"notes,omitempty"`
}

type SaleContact struct {
	SellerID  string    `json:"seller_id"`
	Name      string    `json:"name"`
	Mobile    string    `json:"mobile"`
	Address   string    `json:"address"`
	UpdatedAt time.Time `json:"updated_at"`
}

type SaleContactRequest struct {
	Name    string `json:"name"`
	Mobile  string `json:"mobile"`
	Address string `json:"address"`
}

type Payment struct {
	ID              string              `json:"id"`
	SellerID        string              `json:"seller_id"`
	PaidAt          time.Time           `json:"paid_at"`
	FromDate        time.Time           `json:"from_date"`
	ToDate          time.Time           `json:"to_date"`
	AmountCents     int64               `json:"amount_cents"`
	ClearedGrams    int64               `json:"cleared_grams"`
	CommissionCents int64               `json:"commission_cents"`
	AdvanceCents    int64               `json:"advance_cents"`
	Notes           string              `json:"notes,omitempty"`
	Allocations     []PaymentAllocation `json:"allocations"`
	CreatedAt       time.Time           `json:"created_at"`
}

// PaymentAllocation records how much of a payment cleared a specific
// purchase. Persisted as a join table so reconciliation never has to be
// inferred from date-range overlap.
type PaymentAllocation struct {
	PaymentID   string `json:"payment_id"`
	PurchaseID  string `json:"purchase_id"`
	Grams       int64  `json:"grams"`
	AmountCents int64  `json:"amount_cents"`
}

type PaymentCreateRequest struct {
	PaidAt          string `json:"paid_at"`
	FromDate        string `json:"from_date"`
	ToDate          string `json:"to_date"`
	AmountCents     int64  `json:"amount_cents"`
	ClearedGrams    int64  `json:"cleared_grams"`
	CommissionCents int64  `json:"commission_cents"`
	AdvanceCents    int64  `json:"advance_cents"`
	Notes           string `json:"notes"`
}

// PaymentDaySummary is one row of the reconciliation view: what a
// purchase-day contributed and how much of it has been cleared so far.
type PaymentDaySummary struct {
	Date                 string `json:"date"`
	GramsAdded           int64  `json:"grams_added"`
	LessGrams            int64  `json:"less_grams"`
	EffectiveGrams       int64  `json:"effective_grams"`
	AmountCents          int64  `json:"amount_cents"`
	RatePerKgCents       int64  `json:"rate_per_kg_cents"`
	ClearedGrams         int64  `json:"cleared_grams"`
	ClearedAmountCents   int64  `json:"cleared_amount_cents"`
	RemainingGrams       int64  `json:"remaining_grams"`
	RemainingAmountCents int64  `json:"remaining_amount_cents"`
	Cleared              bool   `json:"cleared"`
}

type PaymentSummary struct {
	SellerID             string              `json:"seller_id"`
	FromDate             string              `json:"from_date"`
	ToDate               string              `json:"to_date"`
	Days                 []PaymentDaySummary `json:"days"`
	TotalAmountCents     int64               `json:"total_amount_cents"`
	TotalGrams           int64               `json:"total_grams"`
	RemainingAmountCents int64               `json:"remaining_amount_cents"`
	RemainingGrams       int64               `json:"remaining_grams"`
}

// PaymentReceipt is the data rendered into the printable receipt page.
type PaymentReceipt struct {
	SellerName      string              `json:"seller_name"`
	SerialNumber    string              `json:"serial_number"`
	ShopName        string              `json:"shop_name"`
	PaidAt          string              `json:"paid_at"`
	FromDate        string              `json:"from_date"`
	ToDate          string              `json:"to_date"`
	Days            []PaymentDaySummary `json:"days"`
	AmountCents     int64               `json:"amount_cents"`
	ClearedGrams    int64               `json:"cleared_grams"`
	CommissionCents int64               `json:"commission_cents"`
	AdvanceCents    int64               `json:"advance_cents"`
	GrandTotalCents int64               `json:"grand_total_cents"`
	Notes           string              `json:"notes,omitempty"`
}

type EODReportRow struct {
	SellerID         string `json:"seller_id"`
	SellerName       string `json:"seller_name"`
	SerialNumber     string `json:"serial_number"`
	TotalGrams       int64  `json:"total_grams"`
	TotalAmountCents int64  `json:"total_amount_cents"`
}

type EODReport struct {
	Date             string         `json:"date"`
	Rows             []EODReportRow `json:"rows"`
	TotalGrams       int64          `json:"total_grams"`
	TotalAmountCents int64          `json:"total_amount_cents"`
}

type SignupRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	OwnerName string `json:"owner_name"`
	Mobile    string `json:"mobile"`
	ShopName  string `json:"shop_name"`
}

type SigninRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthResponse struct {
	AccessToken string      `json:"access_token"`
	ExpiresAt   string      `json:"expires_at"`
	User        UserAccount `json:"user"`
}

// Actor is the authenticated caller attached to the request context.
type Actor struct {
	UserID string
	Email  string
}

type DBInspect struct {
	Driver string           `json:"driver"`
	Tables map[string]int64 `json:"tables"`
}
