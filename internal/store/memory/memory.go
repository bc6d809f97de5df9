package memory

import (
	"context"
	"log"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"bloomtrack/backend/internal/domain"
	"bloomtrack/backend/internal/ledger"
	"bloomtrack/backend/internal/store"
	"bloomtrack/backend/internal/xid"
)

type Store struct {
	mu               sync.RWMutex
	usersByID        map[string]domain.UserAccount
	userIDByEmail    map[string]string
	profilesByUserID map[string]domain.Profile
	sellersByID      map[string]domain.Seller
	purchasesByID    map[string]domain.Purchase
	salesByID        map[string]domain.Sale
	contactsBySeller map[string]domain.SaleContact
	paymentsByID     map[string]domain.Payment
	allocations      []domain.PaymentAllocation
}

func New() *Store {
	return &Store{
		usersByID:        make(map[string]domain.UserAccount),
		userIDByEmail:    make(map[string]string),
		profilesByUserID: make(map[string]domain.Profile),
		sellersByID:      make(map[string]domain.Seller),
		purchasesByID:    make(map[string]domain.Purchase),
		salesByID:        make(map[string]domain.Sale),
		contactsBySeller: make(map[string]domain.SaleContact),
		paymentsByID:     make(map[string]domain.Payment),
		allocations:      make([]domain.PaymentAllocation, 0, 64),
	}
}

// NewSeeded builds a store with a demo owner account for dev mode. The
// password is read from SEED_OWNER_PASSWORD; a hardcoded dev default is used
// with a warning when unset. Seeded data is never used in production (the
// backend uses PostgreSQL when DATABASE_URL is set).
func NewSeeded() *Store {
	s := New()

	password := os.Getenv("SEED_OWNER_PASSWORD")
	if password == "" {
		password = "demo1234"
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_OWNER_PASSWORD to override.")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("[memory-store] failed to hash seed password: %v", err)
	}

	now := time.Now().UTC()
	owner := domain.UserAccount{
		ID:           "usr-demo",
		Email:        "demo@bloomtrack.local",
		PasswordHash: string(hash),
		CreatedAt:    now,
	}
	s.usersByID[owner.ID] = owner
	s.userIDByEmail[owner.Email] = owner.ID
	s.profilesByUserID[owner.ID] = domain.Profile{
		UserID:    owner.ID,
		OwnerName: "Demo Owner",
		ShopName:  "Bloom Demo Shop",
	}
	return s
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount, profile domain.Profile) (*domain.UserAccount, error) {
	email := normalizeEmail(user.Email)
	if email == "" || user.PasswordHash == "" {
		return nil, store.ErrInvalidTransaction
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.userIDByEmail[email]; exists {
		return nil, store.ErrConflict
	}

	if user.ID == "" {
		user.ID = xid.New("usr")
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.Email = email

	s.usersByID[user.ID] = user
	s.userIDByEmail[email] = user.ID
	profile.UserID = user.ID
	s.profilesByUserID[user.ID] = profile

	created := user
	return &created, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (*domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.userIDByEmail[normalizeEmail(email)]
	if !ok {
		return nil, store.ErrNotFound
	}
	user := s.usersByID[id]
	return &user, nil
}

func (s *Store) GetUserByID(_ context.Context, id string) (*domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.usersByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &user, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, userID string, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.usersByID[userID]
	if !ok {
		return store.ErrNotFound
	}
	user.PasswordHash = passwordHash
	s.usersByID[userID] = user
	return nil
}

func (s *Store) GetProfile(_ context.Context, userID string) (*domain.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	profile, ok := s.profilesByUserID[userID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &profile, nil
}

func (s *Store) UpdateProfile(_ context.Context, profile domain.Profile) (*domain.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.usersByID[profile.UserID]; !ok {
		return nil, store.ErrNotFound
	}
	s.profilesByUserID[profile.UserID] = profile
	updated := profile
	return &updated, nil
}

func (s *Store) ListSellers(_ context.Context, ownerID string) ([]domain.Seller, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sellers := make([]domain.Seller, 0, 16)
	for _, seller := range s.sellersByID {
		if seller.OwnerID == ownerID {
			sellers = append(sellers, seller)
		}
	}
	sortSellers(sellers)
	return sellers, nil
}

func (s *Store) GetSeller(_ context.Context, ownerID string, sellerID string) (*domain.Seller, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sellerLocked(ownerID, sellerID)
}

// sellerLocked requires s.mu to be held. Ownership mismatch is reported as
// ErrNotFound so callers cannot probe other owners' sellers.
func (s *Store) sellerLocked(ownerID string, sellerID string) (*domain.Seller, error) {
	seller, ok := s.sellersByID[sellerID]
	if !ok || seller.OwnerID != ownerID {
		return nil, store.ErrNotFound
	}
	found := seller
	return &found, nil
}

func (s *Store) CreateSeller(_ context.Context, seller domain.Seller) (*domain.Seller, error) {
	if seller.OwnerID == "" || strings.TrimSpace(seller.Name) == "" || strings.TrimSpace(seller.SerialNumber) == "" {
		return nil, store.ErrInvalidTransaction
	}
	if seller.AmountCents < 0 || seller.WeightGrams < 0 {
		return nil, store.ErrInvalidTransaction
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.sellersByID {
		if existing.OwnerID == seller.OwnerID && existing.SerialNumber == seller.SerialNumber {
			return nil, store.ErrConflict
		}
	}

	now := time.Now().UTC()
	if seller.ID == "" {
		seller.ID = xid.New("sel")
	}
	if seller.Date.IsZero() {
		seller.Date = now
	}
	seller.CreatedAt = now
	s.sellersByID[seller.ID] = seller

	// A positive starting balance is itself the first purchase event.
	if seller.AmountCents > 0 || seller.WeightGrams > 0 {
		initialID := xid.New("txn")
		s.purchasesByID[initialID] = domain.Purchase{
			ID:                  initialID,
			SellerID:            seller.ID,
			Date:                seller.Date,
			AmountAddedCents:    seller.AmountCents,
			GramsAdded:          seller.WeightGrams,
			NewTotalAmountCents: seller.AmountCents,
			NewTotalGrams:       seller.WeightGrams,
			CreatedAt:           now,
		}
	}

	created := seller
	return &created, nil
}

func (s *Store) UpdateSeller(_ context.Context, ownerID string, sellerID string, update domain.SellerUpdateRequest) (*domain.Seller, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seller, err := s.sellerLocked(ownerID, sellerID)
	if err != nil {
		return nil, err
	}

	if update.SerialNumber != nil && *update.SerialNumber != seller.SerialNumber {
		for _, existing := range s.sellersByID {
			if existing.OwnerID == ownerID && existing.SerialNumber == *update.SerialNumber {
				return nil, store.ErrConflict
			}
		}
		seller.SerialNumber = *update.SerialNumber
	}
	if update.Name != nil {
		seller.Name = *update.Name
	}
	if update.Mobile != nil {
		seller.Mobile = *update.Mobile
	}
	if update.Address != nil {
		seller.Address = *update.Address
	}
	if update.Date != nil {
		parsed, err := time.Parse("2006-01-02", *update.Date)
		if err != nil {
			return nil, store.ErrInvalidTransaction
		}
		seller.Date = parsed
	}

	s.sellersByID[sellerID] = *seller
	return seller, nil
}

func (s *Store) DeleteSeller(_ context.Context, ownerID string, sellerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.sellerLocked(ownerID, sellerID); err != nil {
		return err
	}

	for id, purchase := range s.purchasesByID {
		if purchase.SellerID == sellerID {
			delete(s.purchasesByID, id)
		}
	}
	for id, sale := range s.salesByID {
		if sale.SellerID == sellerID {
			delete(s.salesByID, id)
		}
	}
	for id, payment := range s.paymentsByID {
		if payment.SellerID == sellerID {
			delete(s.paymentsByID, id)
		}
	}
	kept := s.allocations[:0]
	for _, alloc := range s.allocations {
		if payment, ok := s.paymentsByID[alloc.PaymentID]; ok && payment.SellerID != sellerID {
			kept = append(kept, alloc)
		}
	}
	s.allocations = kept
	delete(s.contactsBySeller, sellerID)
	delete(s.sellersByID, sellerID)
	return nil
}

func (s *Store) SearchSellersBySerial(_ context.Context, ownerID string, serial string) ([]domain.Seller, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := make([]domain.Seller, 0, 1)
	for _, seller := range s.sellersByID {
		if seller.OwnerID == ownerID && seller.SerialNumber == serial {
			matches = append(matches, seller)
		}
	}
	sortSellers(matches)
	return matches, nil
}

func (s *Store) ListPurchases(_ context.Context, ownerID string, sellerID string) ([]domain.Purchase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, err := s.sellerLocked(ownerID, sellerID); err != nil {
		return nil, err
	}
	return s.purchasesForSellerLocked(sellerID), nil
}

func (s *Store) purchasesForSellerLocked(sellerID string) []domain.Purchase {
	purchases := make([]domain.Purchase, 0, 16)
	for _, purchase := range s.purchasesByID {
		if purchase.SellerID == sellerID {
			purchases = append(purchases, purchase)
		}
	}
	slices.SortFunc(purchases, func(a, b domain.Purchase) int {
		if !a.Date.Equal(b.Date) {
			return a.Date.Compare(b.Date)
		}
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return purchases
}

func (s *Store) AddPurchase(_ context.Context, ownerID string, sellerID string, purchase domain.Purchase) (*domain.Purchase, error) {
	if purchase.AmountAddedCents < 0 || purchase.GramsAdded < 0 || purchase.LessGrams < 0 {
		return nil, store.ErrInvalidTransaction
	}
	if purchase.AmountAddedCents == 0 && purchase.GramsAdded == 0 {
		return nil, store.ErrInvalidTransaction
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	seller, err := s.sellerLocked(ownerID, sellerID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	previous := ledger.Balance{AmountCents: seller.AmountCents, Grams: seller.WeightGrams}
	next := previous.AddPurchase(purchase.AmountAddedCents, purchase.GramsAdded)

	purchase.ID = xid.New("txn")
	purchase.SellerID = sellerID
	purchase.PreviousAmountCents = previous.AmountCents
	purchase.PreviousGrams = previous.Grams
	purchase.NewTotalAmountCents = next.AmountCents
	purchase.NewTotalGrams = next.Grams
	purchase.CreatedAt = now
	if purchase.Date.IsZero() {
		purchase.Date = now
	}

	seller.AmountCents = next.AmountCents
	seller.WeightGrams = next.Grams
	s.sellersByID[sellerID] = *seller
	s.purchasesByID[purchase.ID] = purchase

	created := purchase
	return &created, nil
}

func (s *Store) UpdatePurchase(_ context.Context, ownerID string, sellerID string, purchaseID string, update domain.PurchaseUpdateRequest) (*domain.Purchase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seller, err := s.sellerLocked(ownerID, sellerID)
	if err != nil {
		return nil, err
	}
	purchase, ok := s.purchasesByID[purchaseID]
	if !ok || purchase.SellerID != sellerID {
		return nil, store.ErrNotFound
	}

	oldAmount := purchase.AmountAddedCents
	oldGrams := purchase.GramsAdded

	if update.AmountAddedCents != nil {
		purchase.AmountAddedCents = *update.AmountAddedCents
	}
	if update.GramsAdded != nil {
		purchase.GramsAdded = *update.GramsAdded
	}
	if update.FlowerName != nil {
		purchase.FlowerName = *update.FlowerName
	}
	if update.LessGrams != nil {
		purchase.LessGrams = *update.LessGrams
	}
	if update.Date != nil {
		parsed, err := time.Parse("2006-01-02", *update.Date)
		if err != nil {
			return nil, store.ErrInvalidTransaction
		}
		purchase.Date = parsed
	}
	if purchase.AmountAddedCents < 0 || purchase.GramsAdded < 0 || purchase.LessGrams < 0 {
		return nil, store.ErrInvalidTransaction
	}

	// The row's snapshot keeps its original previous totals; only the adds
	// and the derived new totals change. The seller moves by the delta.
	prev := ledger.Balance{AmountCents: purchase.PreviousAmountCents, Grams: purchase.PreviousGrams}
	next := prev.AddPurchase(purchase.AmountAddedCents, purchase.GramsAdded)
	purchase.NewTotalAmountCents = next.AmountCents
	purchase.NewTotalGrams = next.Grams

	live := ledger.Balance{AmountCents: seller.AmountCents, Grams: seller.WeightGrams}
	live = live.ApplyDelta(purchase.AmountAddedCents-oldAmount, purchase.GramsAdded-oldGrams)
	seller.AmountCents = live.AmountCents
	seller.WeightGrams = live.Grams

	s.sellersByID[sellerID] = *seller
	s.purchasesByID[purchaseID] = purchase

	updated := purchase
	return &updated, nil
}

func (s *Store) DeletePurchase(_ context.Context, ownerID string, sellerID string, purchaseID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	seller, err := s.sellerLocked(ownerID, sellerID)
	if err != nil {
		return err
	}
	purchase, ok := s.purchasesByID[purchaseID]
	if !ok || purchase.SellerID != sellerID {
		return store.ErrNotFound
	}

	live := ledger.Balance{AmountCents: seller.AmountCents, Grams: seller.WeightGrams}
	live = live.ApplyDelta(-purchase.AmountAddedCents, -purchase.GramsAdded)
	seller.AmountCents = live.AmountCents
	seller.WeightGrams = live.Grams

	s.sellersByID[sellerID] = *seller
	delete(s.purchasesByID, purchaseID)
	return nil
}

func (s *Store) AssignSalesman(_ context.Context, ownerID string, purchaseID string, req domain.SalesmanAssignRequest) (*domain.Purchase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	purchase, ok := s.purchasesByID[purchaseID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if _, err := s.sellerLocked(ownerID, purchase.SellerID); err != nil {
		return nil, err
	}

	purchase.SalesmanName = req.SalesmanName
	purchase.SalesmanMobile = req.SalesmanMobile
	purchase.SalesmanAddress = req.SalesmanAddress
	s.purchasesByID[purchaseID] = purchase

	updated := purchase
	return &updated, nil
}

func (s *Store) ListSales(_ context.Context, ownerID string, sellerID string) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, err := s.sellerLocked(ownerID, sellerID); err != nil {
		return nil, err
	}

	sales := make([]domain.Sale, 0, 16)
	for _, sale := range s.salesByID {
		if sale.SellerID == sellerID {
			sales = append(sales, sale)
		}
	}
	slices.SortFunc(sales, func(a, b domain.Sale) int {
		if !a.SaleDate.Equal(b.SaleDate) {
			return a.SaleDate.Compare(b.SaleDate)
		}
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return sales, nil
}

func (s *Store) AddSale(_ context.Context, ownerID string, sellerID string, sale domain.Sale) (*domain.Sale, error) {
	if sale.GramsSold < 0 || sale.AmountSoldCents < 0 {
		return nil, store.ErrInvalidTransaction
	}
	if sale.GramsSold == 0 && sale.AmountSoldCents == 0 {
		return nil, store.ErrInvalidTransaction
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	seller, err := s.sellerLocked(ownerID, sellerID)
	if err != nil {
		return nil, err
	}
	if sale.GramsSold > seller.WeightGrams || sale.AmountSoldCents > seller.AmountCents {
		return nil, store.ErrInsufficientStock
	}

	now := time.Now().UTC()
	previous := ledger.Balance{AmountCents: seller.AmountCents, Grams: seller.WeightGrams}
	remaining := previous.Deduct(sale.AmountSoldCents, sale.GramsSold)

	sale.ID = xid.New("sale")
	sale.SellerID = sellerID
	sale.PreviousGrams = previous.Grams
	sale.PreviousAmountCents = previous.AmountCents
	sale.RemainingGrams = remaining.Grams
	sale.RemainingAmountCents = remaining.AmountCents
	sale.CreatedAt = now
	if sale.SaleDate.IsZero() {
		sale.SaleDate = now
	}

	seller.AmountCents = remaining.AmountCents
	seller.WeightGrams = remaining.Grams
	s.sellersByID[sellerID] = *seller
	s.salesByID[sale.ID] = sale

	created := sale
	return &created, nil
}

func (s *Store) UpdateSale(_ context.Context, ownerID string, sellerID string, saleID string, update domain.SaleUpdateRequest) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.sellerLocked(ownerID, sellerID); err != nil {
		return nil, err
	}
	sale, ok := s.salesByID[saleID]
	if !ok || sale.SellerID != sellerID {
		return nil, store.ErrNotFound
	}

	if update.CustomerName != nil {
		sale.CustomerName = *update.CustomerName
	}
	if update.CustomerMobile != nil {
		sale.CustomerMobile = *update.CustomerMobile
	}
	if update.Notes != nil {
		sale.Notes = *update.Notes
	}
	if update.SaleDate != nil {
		parsed, err := time.Parse("2006-01-02", *update.SaleDate)
		if err != nil {
			return nil, store.ErrInvalidTransaction
		}
		sale.SaleDate = parsed
	}

	s.salesByID[saleID] = sale
	updated := sale
	return &updated, nil
}

func (s *Store) DeleteSale(_ context.Context, ownerID string, sellerID string, saleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	seller, err := s.sellerLocked(ownerID, sellerID)
	if err != nil {
		return err
	}
	sale, ok := s.salesByID[saleID]
	if !ok || sale.SellerID != sellerID {
		return store.ErrNotFound
	}

	// Restock: the sold amounts go back onto the seller.
	live := ledger.Balance{AmountCents: seller.AmountCents, Grams: seller.WeightGrams}
	live = live.ApplyDelta(sale.AmountSoldCents, sale.GramsSold)
	seller.AmountCents = live.AmountCents
	seller.WeightGrams = live.Grams

	s.sellersByID[sellerID] = *seller
	delete(s.salesByID, saleID)
	return nil
}

func (s *Store) ListSaleContacts(_ context.Context, ownerID string, sellerID string) ([]domain.SaleContact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, err := s.sellerLocked(ownerID, sellerID); err != nil {
		return nil, err
	}
	contacts := make([]domain.SaleContact, 0, 1)
	if contact, ok := s.contactsBySeller[sellerID]; ok {
		contacts = append(contacts, contact)
	}
	return contacts, nil
}

func (s *Store) SaveSaleContact(_ context.Context, ownerID string, sellerID string, contact domain.SaleContact) (*domain.SaleContact, error) {
	if strings.TrimSpace(contact.Name) == "" {
		return nil, store.ErrInvalidTransaction
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.sellerLocked(ownerID, sellerID); err != nil {
		return nil, err
	}

	contact.SellerID = sellerID
	contact.UpdatedAt = time.Now().UTC()
	s.contactsBySeller[sellerID] = contact

	saved := contact
	return &saved, nil
}

func (s *Store) ListPayments(_ context.Context, ownerID string, sellerID string) ([]domain.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, err := s.sellerLocked(ownerID, sellerID); err != nil {
		return nil, err
	}

	payments := make([]domain.Payment, 0, 8)
	for _, payment := range s.paymentsByID {
		if payment.SellerID == sellerID {
			payments = append(payments, s.withAllocationsLocked(payment))
		}
	}
	slices.SortFunc(payments, func(a, b domain.Payment) int {
		return a.PaidAt.Compare(b.PaidAt)
	})
	return payments, nil
}

func (s *Store) GetPayment(_ context.Context, ownerID string, sellerID string, paymentID string) (*domain.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, err := s.sellerLocked(ownerID, sellerID); err != nil {
		return nil, err
	}
	payment, ok := s.paymentsByID[paymentID]
	if !ok || payment.SellerID != sellerID {
		return nil, store.ErrNotFound
	}
	found := s.withAllocationsLocked(payment)
	return &found, nil
}

func (s *Store) withAllocationsLocked(payment domain.Payment) domain.Payment {
	allocations := make([]domain.PaymentAllocation, 0, 4)
	for _, alloc := range s.allocations {
		if alloc.PaymentID == payment.ID {
			allocations = append(allocations, alloc)
		}
	}
	payment.Allocations = allocations
	return payment
}

func (s *Store) AddPayment(_ context.Context, ownerID string, sellerID string, input store.PaymentInput) (*domain.Payment, error) {
	if input.FromDate.IsZero() || input.ToDate.IsZero() || input.ToDate.Before(input.FromDate) {
		return nil, store.ErrInvalidTransaction
	}
	if input.AmountCents < 0 || input.ClearedGrams < 0 || input.CommissionCents < 0 || input.AdvanceCents < 0 {
		return nil, store.ErrInvalidTransaction
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	seller, err := s.sellerLocked(ownerID, sellerID)
	if err != nil {
		return nil, err
	}

	inRange := purchasesInRange(s.purchasesForSellerLocked(sellerID), input.FromDate, input.ToDate)
	prior := s.allocationsForSellerLocked(sellerID)

	// Zero defaults to the full remaining; anything above the remaining is
	// clamped so the recorded totals always equal the sum of the allocations.
	remainingGrams, remainingAmount := ledger.Remaining(inRange, prior)
	amount := input.AmountCents
	if amount == 0 || amount > remainingAmount {
		amount = remainingAmount
	}
	grams := input.ClearedGrams
	if grams == 0 || grams > remainingGrams {
		grams = remainingGrams
	}
	if amount > input.CommissionCents+input.AdvanceCents {
		amount -= input.CommissionCents + input.AdvanceCents
	} else if input.CommissionCents+input.AdvanceCents > 0 {
		amount = 0
	}
	if amount == 0 && grams == 0 {
		return nil, store.ErrInvalidTransaction
	}

	now := time.Now().UTC()
	payment := domain.Payment{
		ID:              xid.New("pay"),
		SellerID:        sellerID,
		PaidAt:          input.PaidAt,
		FromDate:        input.FromDate,
		ToDate:          input.ToDate,
		AmountCents:     amount,
		ClearedGrams:    grams,
		CommissionCents: input.CommissionCents,
		AdvanceCents:    input.AdvanceCents,
		Notes:           input.Notes,
		CreatedAt:       now,
	}
	if payment.PaidAt.IsZero() {
		payment.PaidAt = now
	}

	allocations := ledger.Allocate(inRange, prior, grams, amount)
	for i := range allocations {
		allocations[i].PaymentID = payment.ID
	}
	s.allocations = append(s.allocations, allocations...)

	live := ledger.Balance{AmountCents: seller.AmountCents, Grams: seller.WeightGrams}
	live = live.Deduct(amount, grams)
	seller.AmountCents = live.AmountCents
	seller.WeightGrams = live.Grams
	s.sellersByID[sellerID] = *seller

	s.paymentsByID[payment.ID] = payment

	created := s.withAllocationsLocked(payment)
	return &created, nil
}

func (s *Store) ListPurchasesInRange(_ context.Context, ownerID string, sellerID string, from time.Time, to time.Time) ([]domain.Purchase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, err := s.sellerLocked(ownerID, sellerID); err != nil {
		return nil, err
	}
	return purchasesInRange(s.purchasesForSellerLocked(sellerID), from, to), nil
}

func (s *Store) ListAllocationsForSeller(_ context.Context, ownerID string, sellerID string) ([]domain.PaymentAllocation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, err := s.sellerLocked(ownerID, sellerID); err != nil {
		return nil, err
	}
	return s.allocationsForSellerLocked(sellerID), nil
}

func (s *Store) allocationsForSellerLocked(sellerID string) []domain.PaymentAllocation {
	allocations := make([]domain.PaymentAllocation, 0, 16)
	for _, alloc := range s.allocations {
		payment, ok := s.paymentsByID[alloc.PaymentID]
		if ok && payment.SellerID == sellerID {
			allocations = append(allocations, alloc)
		}
	}
	return allocations
}

func purchasesInRange(purchases []domain.Purchase, from time.Time, to time.Time) []domain.Purchase {
	fromKey := ledger.DayKey(from)
	toKey := ledger.DayKey(to)

	inRange := make([]domain.Purchase, 0, len(purchases))
	for _, purchase := range purchases {
		key := ledger.DayKey(purchase.Date)
		if key >= fromKey && key <= toKey {
			inRange = append(inRange, purchase)
		}
	}
	return inRange
}

func (s *Store) EODReport(_ context.Context, ownerID string, date time.Time) (domain.EODReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dayKey := ledger.DayKey(date)
	report := domain.EODReport{Date: dayKey, Rows: make([]domain.EODReportRow, 0, 16)}

	sellers := make([]domain.Seller, 0, 16)
	for _, seller := range s.sellersByID {
		if seller.OwnerID == ownerID {
			sellers = append(sellers, seller)
		}
	}
	sortSellers(sellers)

	for _, seller := range sellers {
		row := domain.EODReportRow{
			SellerID:     seller.ID,
			SellerName:   seller.Name,
			SerialNumber: seller.SerialNumber,
		}
		for _, purchase := range s.purchasesByID {
			if purchase.SellerID == seller.ID && ledger.DayKey(purchase.Date) == dayKey {
				row.TotalGrams += purchase.GramsAdded
				row.TotalAmountCents += purchase.AmountAddedCents
			}
		}
		report.TotalGrams += row.TotalGrams
		report.TotalAmountCents += row.TotalAmountCents
		report.Rows = append(report.Rows, row)
	}
	return report, nil
}

func (s *Store) Ping(_ context.Context) error {
	return nil
}

func (s *Store) Inspect(_ context.Context) (domain.DBInspect, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return domain.DBInspect{
		Driver: "memory",
		Tables: map[string]int64{
			"users":                int64(len(s.usersByID)),
			"profiles":             int64(len(s.profilesByUserID)),
			"sellers":              int64(len(s.sellersByID)),
			"seller_transactions":  int64(len(s.purchasesByID)),
			"sold_to_transactions": int64(len(s.salesByID)),
			"sale_to_contacts":     int64(len(s.contactsBySeller)),
			"payments":             int64(len(s.paymentsByID)),
			"payment_allocations":  int64(len(s.allocations)),
		},
	}, nil
}

func sortSellers(sellers []domain.Seller) {
	slices.SortFunc(sellers, func(a, b domain.Seller) int {
		if a.SerialNumber != b.SerialNumber {
			return strings.Compare(a.SerialNumber, b.SerialNumber)
		}
		return strings.Compare(a.ID, b.ID)
	})
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
