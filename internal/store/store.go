package store

import (
	"context"
	"errors"
	"time"

	"bloomtrack/backend/internal/domain"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("serial number already exists")
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrInvalidTransaction = errors.New("invalid transaction")
)

// PaymentInput is everything a store needs to record a payment. Allocation
// against in-range purchases happens inside the store transaction, under the
// seller row lock, so concurrent clearings cannot double-allocate.
type PaymentInput struct {
	PaidAt          time.Time
	FromDate        time.Time
	ToDate          time.Time
	AmountCents     int64
	ClearedGrams    int64
	CommissionCents int64
	AdvanceCents    int64
	Notes           string
}

type Repository interface {
	CreateUser(ctx context.Context, user domain.UserAccount, profile domain.Profile) (*domain.UserAccount, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.UserAccount, error)
	GetUserByID(ctx context.Context, id string) (*domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, userID string, passwordHash string) error
	GetProfile(ctx context.Context, userID string) (*domain.Profile, error)
	UpdateProfile(ctx context.Context, profile domain.Profile) (*domain.Profile, error)

	ListSellers(ctx context.Context, ownerID string) ([]domain.Seller, error)
	GetSeller(ctx context.Context, ownerID string, sellerID string) (*domain.Seller, error)
	CreateSeller(ctx context.Context, seller domain.Seller) (*domain.Seller, error)
	UpdateSeller(ctx context.Context, ownerID string, sellerID string, update domain.SellerUpdateRequest) (*domain.Seller, error)
	DeleteSeller(ctx context.Context, ownerID string, sellerID string) error
	SearchSellersBySerial(ctx context.Context, ownerID string, serial string) ([]domain.Seller, error)

	ListPurchases(ctx context.Context, ownerID string, sellerID string) ([]domain.Purchase, error)
	AddPurchase(ctx context.Context, ownerID string, sellerID string, purchase domain.Purchase) (*domain.Purchase, error)
	UpdatePurchase(ctx context.Context, ownerID string, sellerID string, purchaseID string, update domain.PurchaseUpdateRequest) (*domain.Purchase, error)
	DeletePurchase(ctx context.Context, ownerID string, sellerID string, purchaseID string) error
	AssignSalesman(ctx context.Context, ownerID string, purchaseID string, req domain.SalesmanAssignRequest) (*domain.Purchase, error)

	ListSales(ctx context.Context, ownerID string, sellerID string) ([]domain.Sale, error)
	AddSale(ctx context.Context, ownerID string, sellerID string, sale domain.Sale) (*domain.Sale, error)
	UpdateSale(ctx context.Context, ownerID string, sellerID string, saleID string, update domain.SaleUpdateRequest) (*domain.Sale, error)
	DeleteSale(ctx context.Context, ownerID string, sellerID string, saleID string) error

	ListSaleContacts(ctx context.Context, ownerID string, sellerID string) ([]domain.SaleContact, error)
	SaveSaleContact(ctx context.Context, ownerID string, sellerID string, contact domain.SaleContact) (*domain.SaleContact, error)

	ListPayments(ctx context.Context, ownerID string, sellerID string) ([]domain.Payment, error)
	GetPayment(ctx context.Context, ownerID string, sellerID string, paymentID string) (*domain.Payment, error)
	AddPayment(ctx context.Context, ownerID string, sellerID string, input PaymentInput) (*domain.Payment, error)
	ListPurchasesInRange(ctx context.Context, ownerID string, sellerID string, from time.Time, to time.Time) ([]domain.Purchase, error)
	ListAllocationsForSeller(ctx context.Context, ownerID string, sellerID string) ([]domain.PaymentAllocation, error)

	EODReport(ctx context.Context, ownerID string, date time.Time) (domain.EODReport, error)

	Ping(ctx context.Context) error
	Inspect(ctx context.Context) (domain.DBInspect, error)
}
