package postgres

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"bloomtrack/backend/internal/domain"
	"bloomtrack/backend/internal/store"
)

func TestPaymentClearsBalanceAndPersistsAllocations(t *testing.T) {
	databaseURL := os.Getenv("BLOOMTRACK_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set BLOOMTRACK_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	stamp := time.Now().UnixNano()
	email := fmt.Sprintf("it-%d@bloomtrack.test", stamp)

	user, err := s.CreateUser(ctx, domain.UserAccount{
		Email:        email,
		PasswordHash: "$2a$10$itplaceholderitplaceholderitpl",
	}, domain.Profile{OwnerName: "IT Owner"})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM payment_allocations WHERE payment_id IN (SELECT id FROM payments WHERE seller_id IN (SELECT id FROM sellers WHERE owner_id = $1))`, user.ID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM payments WHERE seller_id IN (SELECT id FROM sellers WHERE owner_id = $1)`, user.ID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM seller_transactions WHERE seller_id IN (SELECT id FROM sellers WHERE owner_id = $1)`, user.ID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM sellers WHERE owner_id = $1`, user.ID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM profiles WHERE user_id = $1`, user.ID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, user.ID)
	})

	day := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	seller, err := s.CreateSeller(ctx, domain.Seller{
		OwnerID:      user.ID,
		Name:         "Integration Seller",
		SerialNumber: fmt.Sprintf("IT-%d", stamp),
		Date:         day,
		AmountCents:  10000,
		WeightGrams:  1000,
	})
	if err != nil {
		t.Fatalf("create seller: %v", err)
	}

	if _, err := s.AddPurchase(ctx, user.ID, seller.ID, domain.Purchase{
		Date:             day.AddDate(0, 0, 1),
		AmountAddedCents: 5000,
		GramsAdded:       500,
	}); err != nil {
		t.Fatalf("add purchase: %v", err)
	}

	payment, err := s.AddPayment(ctx, user.ID, seller.ID, store.PaymentInput{
		PaidAt:       day.AddDate(0, 0, 2),
		FromDate:     day,
		ToDate:       day.AddDate(0, 0, 1),
		AmountCents:  15000,
		ClearedGrams: 1500,
	})
	if err != nil {
		t.Fatalf("add payment: %v", err)
	}
	if len(payment.Allocations) != 2 {
		t.Fatalf("expected allocations against both purchase days, got %d", len(payment.Allocations))
	}

	var allocatedCents int64
	for _, alloc := range payment.Allocations {
		allocatedCents += alloc.AmountCents
	}
	if allocatedCents != 15000 {
		t.Fatalf("allocations must sum to the payment amount, got %d", allocatedCents)
	}

	got, err := s.GetSeller(ctx, user.ID, seller.ID)
	if err != nil {
		t.Fatalf("get seller: %v", err)
	}
	if got.AmountCents != 0 || got.WeightGrams != 0 {
		t.Fatalf("seller balance not cleared: %d cents, %d grams", got.AmountCents, got.WeightGrams)
	}

	allocations, err := s.ListAllocationsForSeller(ctx, user.ID, seller.ID)
	if err != nil {
		t.Fatalf("list allocations: %v", err)
	}
	if len(allocations) != 2 {
		t.Fatalf("expected persisted allocations, got %d", len(allocations))
	}
}
