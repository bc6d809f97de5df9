package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"bloomtrack/backend/internal/cache"
	"bloomtrack/backend/internal/domain"
	"bloomtrack/backend/internal/store"
	"bloomtrack/backend/internal/store/memory"
)

func newTestService() *Service {
	repo := memory.NewSeeded()
	return New(repo, cache.NoopReportCache{}, 5*time.Second)
}

func ownerCtx() context.Context {
	return WithActor(context.Background(), domain.Actor{
		UserID: "usr-demo",
		Email:  "demo@bloomtrack.local",
	})
}

func TestOperationsRequireActor(t *testing.T) {
	svc := newTestService()

	if _, err := svc.ListSellers(context.Background()); err == nil {
		t.Fatalf("expected error without actor in context")
	}
	if _, err := svc.Profile(context.Background()); err == nil {
		t.Fatalf("expected error without actor in context")
	}
}

func TestCreateSellerWithOpeningBalanceWritesInitialTransaction(t *testing.T) {
	svc := newTestService()
	ctx := ownerCtx()

	seller, err := svc.CreateSeller(ctx, domain.SellerCreateRequest{
		Name:         "Ravi Flowers",
		SerialNumber: "S-100",
		Date:         "2026-08-01",
		AmountCents:  10000,
		WeightGrams:  2000,
	})
	if err != nil {
		t.Fatalf("create seller failed: %v", err)
	}
	if seller.AmountCents != 10000 || seller.WeightGrams != 2000 {
		t.Fatalf("unexpected opening balance: %d cents, %d grams", seller.AmountCents, seller.WeightGrams)
	}

	purchases, err := svc.ListPurchases(ctx, seller.ID)
	if err != nil {
		t.Fatalf("list purchases failed: %v", err)
	}
	if len(purchases) != 1 {
		t.Fatalf("expected exactly one initial transaction, got %d", len(purchases))
	}
	initial := purchases[0]
	if initial.PreviousAmountCents != 0 || initial.PreviousGrams != 0 {
		t.Fatalf("initial transaction must start from zero, got %d/%d", initial.PreviousAmountCents, initial.PreviousGrams)
	}
	if initial.NewTotalAmountCents != 10000 || initial.NewTotalGrams != 2000 {
		t.Fatalf("initial transaction totals wrong: %d/%d", initial.NewTotalAmountCents, initial.NewTotalGrams)
	}
}

func TestCreateSellerZeroBalanceHasNoTransactions(t *testing.T) {
	svc := newTestService()
	ctx := ownerCtx()

	seller, err := svc.CreateSeller(ctx, domain.SellerCreateRequest{
		Name:         "Empty Start",
		SerialNumber: "S-101",
	})
	if err != nil {
		t.Fatalf("create seller failed: %v", err)
	}

	purchases, err := svc.ListPurchases(ctx, seller.ID)
	if err != nil {
		t.Fatalf("list purchases failed: %v", err)
	}
	if len(purchases) != 0 {
		t.Fatalf("expected no transactions for zero opening balance, got %d", len(purchases))
	}
}

func TestDuplicateSerialNumberRejected(t *testing.T) {
	svc := newTestService()
	ctx := ownerCtx()

	_, err := svc.CreateSeller(ctx, domain.SellerCreateRequest{Name: "First", SerialNumber: "S-200"})
	if err != nil {
		t.Fatalf("create seller failed: %v", err)
	}
	_, err = svc.CreateSeller(ctx, domain.SellerCreateRequest{Name: "Second", SerialNumber: "S-200"})
	if !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected ErrConflict for duplicate serial, got %v", err)
	}
}

func TestPurchaseSnapshotsAndBalanceFold(t *testing.T) {
	svc := newTestService()
	ctx := ownerCtx()

	seller, err := svc.CreateSeller(ctx, domain.SellerCreateRequest{
		Name:         "Fold Check",
		SerialNumber: "S-300",
		AmountCents:  10000,
		WeightGrams:  10000,
	})
	if err != nil {
		t.Fatalf("create seller failed: %v", err)
	}

	purchase, err := svc.AddPurchase(ctx, seller.ID, domain.PurchaseCreateRequest{
		Date:             "2026-08-02",
		AmountAddedCents: 5000,
		GramsAdded:       500,
		FlowerName:       "jasmine",
	})
	if err != nil {
		t.Fatalf("add purchase failed: %v", err)
	}
	if purchase.PreviousAmountCents != 10000 || purchase.PreviousGrams != 10000 {
		t.Fatalf("previous snapshot wrong: %d/%d", purchase.PreviousAmountCents, purchase.PreviousGrams)
	}
	if purchase.NewTotalAmountCents != 15000 || purchase.NewTotalGrams != 10500 {
		t.Fatalf("new total snapshot wrong: %d/%d", purchase.NewTotalAmountCents, purchase.NewTotalGrams)
	}

	got, err := svc.GetSeller(ctx, seller.ID)
	if err != nil {
		t.Fatalf("get seller failed: %v", err)
	}
	if got.AmountCents != 15000 || got.WeightGrams != 10500 {
		t.Fatalf("seller balance not folded: %d/%d", got.AmountCents, got.WeightGrams)
	}
}

func TestPurchaseEditMovesBalanceByDelta(t *testing.T) {
	svc := newTestService()
	ctx := ownerCtx()

	seller, err := svc.CreateSeller(ctx, domain.SellerCreateRequest{
		Name:         "Delta",
		SerialNumber: "S-301",
	})
	if err != nil {
		t.Fatalf("create seller failed: %v", err)
	}
	purchase, err := svc.AddPurchase(ctx, seller.ID, domain.PurchaseCreateRequest{
		AmountAddedCents: 4000,
		GramsAdded:       400,
	})
	if err != nil {
		t.Fatalf("add purchase failed: %v", err)
	}

	newAmount := int64(6000)
	if _, err := svc.UpdatePurchase(ctx, seller.ID, purchase.ID, domain.PurchaseUpdateRequest{
		AmountAddedCents: &newAmount,
	}); err != nil {
		t.Fatalf("update purchase failed: %v", err)
	}

	got, err := svc.GetSeller(ctx, seller.ID)
	if err != nil {
		t.Fatalf("get seller failed: %v", err)
	}
	if got.AmountCents != 6000 || got.WeightGrams != 400 {
		t.Fatalf("balance after edit wrong: %d/%d", got.AmountCents, got.WeightGrams)
	}

	if err := svc.DeletePurchase(ctx, seller.ID, purchase.ID); err != nil {
		t.Fatalf("delete purchase failed: %v", err)
	}
	got, err = svc.GetSeller(ctx, seller.ID)
	if err != nil {
		t.Fatalf("get seller failed: %v", err)
	}
	if got.AmountCents != 0 || got.WeightGrams != 0 {
		t.Fatalf("balance after delete wrong: %d/%d", got.AmountCents, got.WeightGrams)
	}
}

func TestSaleRejectedWhenStockInsufficient(t *testing.T) {
	svc := newTestService()
	ctx := ownerCtx()

	seller, err := svc.CreateSeller(ctx, domain.SellerCreateRequest{
		Name:         "Low Stock",
		SerialNumber: "S-400",
		AmountCents:  1000,
		WeightGrams:  100,
	})
	if err != nil {
		t.Fatalf("create seller failed: %v", err)
	}

	_, err = svc.AddSale(ctx, seller.ID, domain.SaleCreateRequest{
		CustomerName:    "Big Buyer",
		GramsSold:       200,
		AmountSoldCents: 500,
	})
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}
}

func TestSaleDeleteRestocksSeller(t *testing.T) {
	svc := newTestService()
	ctx := ownerCtx()

	seller, err := svc.CreateSeller(ctx, domain.SellerCreateRequest{
		Name:         "Restock",
		SerialNumber: "S-401",
		AmountCents:  10000,
		WeightGrams:  1000,
	})
	if err != nil {
		t.Fatalf("create seller failed: %v", err)
	}

	sale, err := svc.AddSale(ctx, seller.ID, domain.SaleCreateRequest{
		CustomerName:    "Buyer",
		GramsSold:       300,
		AmountSoldCents: 3000,
	})
	if err != nil {
		t.Fatalf("add sale failed: %v", err)
	}
	if sale.RemainingGrams != 700 || sale.RemainingAmountCents != 7000 {
		t.Fatalf("sale remaining snapshot wrong: %d/%d", sale.RemainingGrams, sale.RemainingAmountCents)
	}

	if err := svc.DeleteSale(ctx, seller.ID, sale.ID); err != nil {
		t.Fatalf("delete sale failed: %v", err)
	}
	got, err := svc.GetSeller(ctx, seller.ID)
	if err != nil {
		t.Fatalf("get seller failed: %v", err)
	}
	if got.WeightGrams != 1000 || got.AmountCents != 10000 {
		t.Fatalf("seller not restocked after sale delete: %d/%d", got.AmountCents, got.WeightGrams)
	}
}

func TestPaymentClearsOldestDaysFirst(t *testing.T) {
	svc := newTestService()
	ctx := ownerCtx()

	seller, err := svc.CreateSeller(ctx, domain.SellerCreateRequest{
		Name:         "Payments",
		SerialNumber: "S-500",
	})
	if err != nil {
		t.Fatalf("create seller failed: %v", err)
	}

	if _, err := svc.AddPurchase(ctx, seller.ID, domain.PurchaseCreateRequest{
		Date: "2026-08-01", AmountAddedCents: 6000, GramsAdded: 600,
	}); err != nil {
		t.Fatalf("add purchase failed: %v", err)
	}
	if _, err := svc.AddPurchase(ctx, seller.ID, domain.PurchaseCreateRequest{
		Date: "2026-08-02", AmountAddedCents: 4000, GramsAdded: 400,
	}); err != nil {
		t.Fatalf("add purchase failed: %v", err)
	}

	payment, err := svc.RecordPayment(ctx, seller.ID, domain.PaymentCreateRequest{
		FromDate:     "2026-08-01",
		ToDate:       "2026-08-02",
		AmountCents:  6000,
		ClearedGrams: 600,
	})
	if err != nil {
		t.Fatalf("record payment failed: %v", err)
	}
	if len(payment.Allocations) != 1 {
		t.Fatalf("expected allocation against the oldest day only, got %d", len(payment.Allocations))
	}
	if payment.Allocations[0].Grams != 600 || payment.Allocations[0].AmountCents != 6000 {
		t.Fatalf("allocation wrong: %+v", payment.Allocations[0])
	}

	summary, err := svc.PaymentSummary(ctx, seller.ID, "2026-08-01", "2026-08-02")
	if err != nil {
		t.Fatalf("payment summary failed: %v", err)
	}
	if len(summary.Days) != 2 {
		t.Fatalf("expected two day rows, got %d", len(summary.Days))
	}
	if !summary.Days[0].Cleared {
		t.Fatalf("oldest day should be fully cleared")
	}
	if summary.Days[1].Cleared {
		t.Fatalf("second day should still have remainder")
	}
	if summary.RemainingGrams != 400 || summary.RemainingAmountCents != 4000 {
		t.Fatalf("summary remainder wrong: %d grams, %d cents", summary.RemainingGrams, summary.RemainingAmountCents)
	}
}

func TestPaymentOverClearClampedToRemaining(t *testing.T) {
	svc := newTestService()
	ctx := ownerCtx()

	seller, err := svc.CreateSeller(ctx, domain.SellerCreateRequest{
		Name:         "Overpay",
		SerialNumber: "S-503",
	})
	if err != nil {
		t.Fatalf("create seller failed: %v", err)
	}
	if _, err := svc.AddPurchase(ctx, seller.ID, domain.PurchaseCreateRequest{
		Date: "2026-08-04", AmountAddedCents: 5000, GramsAdded: 500,
	}); err != nil {
		t.Fatalf("add purchase failed: %v", err)
	}

	payment, err := svc.RecordPayment(ctx, seller.ID, domain.PaymentCreateRequest{
		FromDate:     "2026-08-04",
		ToDate:       "2026-08-04",
		AmountCents:  5000,
		ClearedGrams: 2000,
	})
	if err != nil {
		t.Fatalf("record payment failed: %v", err)
	}
	if payment.ClearedGrams != 500 {
		t.Fatalf("cleared grams not clamped to remaining: %d", payment.ClearedGrams)
	}

	var allocGrams, allocCents int64
	for _, alloc := range payment.Allocations {
		allocGrams += alloc.Grams
		allocCents += alloc.AmountCents
	}
	if allocGrams != payment.ClearedGrams {
		t.Fatalf("allocations sum to %d grams, payment records %d", allocGrams, payment.ClearedGrams)
	}
	if allocCents != payment.AmountCents {
		t.Fatalf("allocations sum to %d cents, payment records %d", allocCents, payment.AmountCents)
	}

	summary, err := svc.PaymentSummary(ctx, seller.ID, "2026-08-04", "2026-08-04")
	if err != nil {
		t.Fatalf("payment summary failed: %v", err)
	}
	if !summary.Days[0].Cleared {
		t.Fatalf("day should be fully cleared after over-clear payment: %+v", summary.Days[0])
	}
	if summary.RemainingGrams != 0 || summary.RemainingAmountCents != 0 {
		t.Fatalf("summary remainder wrong: %d grams, %d cents", summary.RemainingGrams, summary.RemainingAmountCents)
	}

	got, err := svc.GetSeller(ctx, seller.ID)
	if err != nil {
		t.Fatalf("get seller failed: %v", err)
	}
	if got.AmountCents != 0 || got.WeightGrams != 0 {
		t.Fatalf("balance after payment wrong: %d/%d", got.AmountCents, got.WeightGrams)
	}
}

func TestPaymentFullScenarioZeroesBalance(t *testing.T) {
	svc := newTestService()
	ctx := ownerCtx()

	seller, err := svc.CreateSeller(ctx, domain.SellerCreateRequest{
		Name:         "Scenario",
		SerialNumber: "S-501",
		Date:         "2026-08-01",
		AmountCents:  10000,
		WeightGrams:  1000,
	})
	if err != nil {
		t.Fatalf("create seller failed: %v", err)
	}

	if _, err := svc.AddPurchase(ctx, seller.ID, domain.PurchaseCreateRequest{
		Date: "2026-08-02", AmountAddedCents: 5000, GramsAdded: 500,
	}); err != nil {
		t.Fatalf("add purchase failed: %v", err)
	}

	if _, err := svc.AddSale(ctx, seller.ID, domain.SaleCreateRequest{
		CustomerName: "Customer", GramsSold: 500, AmountSoldCents: 5000,
	}); err != nil {
		t.Fatalf("add sale failed: %v", err)
	}

	got, err := svc.GetSeller(ctx, seller.ID)
	if err != nil {
		t.Fatalf("get seller failed: %v", err)
	}
	if got.AmountCents != 10000 || got.WeightGrams != 1000 {
		t.Fatalf("balance before payment wrong: %d/%d", got.AmountCents, got.WeightGrams)
	}

	if _, err := svc.RecordPayment(ctx, seller.ID, domain.PaymentCreateRequest{
		FromDate:     "2026-08-01",
		ToDate:       "2026-08-02",
		AmountCents:  10000,
		ClearedGrams: 1000,
	}); err != nil {
		t.Fatalf("record payment failed: %v", err)
	}

	got, err = svc.GetSeller(ctx, seller.ID)
	if err != nil {
		t.Fatalf("get seller failed: %v", err)
	}
	if got.AmountCents != 0 || got.WeightGrams != 0 {
		t.Fatalf("balance after full payment wrong: %d/%d", got.AmountCents, got.WeightGrams)
	}
}

func TestPaymentCommissionAndAdvanceReduceCleared(t *testing.T) {
	svc := newTestService()
	ctx := ownerCtx()

	seller, err := svc.CreateSeller(ctx, domain.SellerCreateRequest{
		Name:         "Commission",
		SerialNumber: "S-502",
	})
	if err != nil {
		t.Fatalf("create seller failed: %v", err)
	}
	if _, err := svc.AddPurchase(ctx, seller.ID, domain.PurchaseCreateRequest{
		Date: "2026-08-03", AmountAddedCents: 10000, GramsAdded: 1000,
	}); err != nil {
		t.Fatalf("add purchase failed: %v", err)
	}

	payment, err := svc.RecordPayment(ctx, seller.ID, domain.PaymentCreateRequest{
		FromDate:        "2026-08-03",
		ToDate:          "2026-08-03",
		AmountCents:     10000,
		ClearedGrams:    1000,
		CommissionCents: 500,
		AdvanceCents:    1500,
	})
	if err != nil {
		t.Fatalf("record payment failed: %v", err)
	}

	var allocated int64
	for _, alloc := range payment.Allocations {
		allocated += alloc.AmountCents
	}
	if allocated != 8000 {
		t.Fatalf("expected 8000 cents allocated after commission and advance, got %d", allocated)
	}
}

func TestPaymentInvalidRangeRejected(t *testing.T) {
	svc := newTestService()
	ctx := ownerCtx()

	seller, err := svc.CreateSeller(ctx, domain.SellerCreateRequest{
		Name:         "Bad Range",
		SerialNumber: "S-503",
	})
	if err != nil {
		t.Fatalf("create seller failed: %v", err)
	}

	_, err = svc.RecordPayment(ctx, seller.ID, domain.PaymentCreateRequest{
		FromDate:    "2026-08-05",
		ToDate:      "2026-08-01",
		AmountCents: 100,
	})
	if !errors.Is(err, store.ErrInvalidTransaction) {
		t.Fatalf("expected ErrInvalidTransaction for inverted range, got %v", err)
	}
}

func TestSearchSellersIsOwnerScoped(t *testing.T) {
	repo := memory.New()
	svc := New(repo, cache.NoopReportCache{}, 5*time.Second)

	ownerA, err := repo.CreateUser(context.Background(), domain.UserAccount{
		Email:        "a@example.com",
		PasswordHash: "x",
	}, domain.Profile{})
	if err != nil {
		t.Fatalf("create user failed: %v", err)
	}
	ownerB, err := repo.CreateUser(context.Background(), domain.UserAccount{
		Email:        "b@example.com",
		PasswordHash: "x",
	}, domain.Profile{})
	if err != nil {
		t.Fatalf("create user failed: %v", err)
	}

	ctxA := WithActor(context.Background(), domain.Actor{UserID: ownerA.ID})
	ctxB := WithActor(context.Background(), domain.Actor{UserID: ownerB.ID})

	if _, err := svc.CreateSeller(ctxA, domain.SellerCreateRequest{Name: "A Seller", SerialNumber: "SHARED-1"}); err != nil {
		t.Fatalf("create seller failed: %v", err)
	}

	// The same serial is free for another owner.
	if _, err := svc.CreateSeller(ctxB, domain.SellerCreateRequest{Name: "B Seller", SerialNumber: "SHARED-1"}); err != nil {
		t.Fatalf("same serial under different owner should succeed: %v", err)
	}

	results, err := svc.SearchSellers(ctxB, "SHARED-1")
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected one result, got %d", len(results))
	}
	if results[0].Name != "B Seller" {
		t.Fatalf("search leaked another owner's seller: %s", results[0].Name)
	}

	if _, err := svc.SearchSellers(ctxB, "   "); !errors.Is(err, store.ErrInvalidTransaction) {
		t.Fatalf("expected ErrInvalidTransaction for empty query, got %v", err)
	}
}

func TestSellerAccessDeniedAcrossOwners(t *testing.T) {
	repo := memory.New()
	svc := New(repo, cache.NoopReportCache{}, 5*time.Second)

	ownerA, err := repo.CreateUser(context.Background(), domain.UserAccount{Email: "a2@example.com", PasswordHash: "x"}, domain.Profile{})
	if err != nil {
		t.Fatalf("create user failed: %v", err)
	}
	ownerB, err := repo.CreateUser(context.Background(), domain.UserAccount{Email: "b2@example.com", PasswordHash: "x"}, domain.Profile{})
	if err != nil {
		t.Fatalf("create user failed: %v", err)
	}

	ctxA := WithActor(context.Background(), domain.Actor{UserID: ownerA.ID})
	ctxB := WithActor(context.Background(), domain.Actor{UserID: ownerB.ID})

	seller, err := svc.CreateSeller(ctxA, domain.SellerCreateRequest{Name: "Private", SerialNumber: "P-1"})
	if err != nil {
		t.Fatalf("create seller failed: %v", err)
	}

	if _, err := svc.GetSeller(ctxB, seller.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for foreign seller, got %v", err)
	}
	if err := svc.DeleteSeller(ctxB, seller.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound deleting foreign seller, got %v", err)
	}
}

func TestEODReportAggregatesByDay(t *testing.T) {
	svc := newTestService()
	ctx := ownerCtx()

	sellerA, err := svc.CreateSeller(ctx, domain.SellerCreateRequest{Name: "EOD A", SerialNumber: "E-1"})
	if err != nil {
		t.Fatalf("create seller failed: %v", err)
	}
	sellerB, err := svc.CreateSeller(ctx, domain.SellerCreateRequest{Name: "EOD B", SerialNumber: "E-2"})
	if err != nil {
		t.Fatalf("create seller failed: %v", err)
	}

	if _, err := svc.AddPurchase(ctx, sellerA.ID, domain.PurchaseCreateRequest{
		Date: "2026-08-10", AmountAddedCents: 3000, GramsAdded: 300,
	}); err != nil {
		t.Fatalf("add purchase failed: %v", err)
	}
	if _, err := svc.AddPurchase(ctx, sellerB.ID, domain.PurchaseCreateRequest{
		Date: "2026-08-10", AmountAddedCents: 2000, GramsAdded: 200,
	}); err != nil {
		t.Fatalf("add purchase failed: %v", err)
	}
	// Different day, must not show up.
	if _, err := svc.AddPurchase(ctx, sellerB.ID, domain.PurchaseCreateRequest{
		Date: "2026-08-11", AmountAddedCents: 9000, GramsAdded: 900,
	}); err != nil {
		t.Fatalf("add purchase failed: %v", err)
	}

	report, err := svc.EODReport(ctx, "2026-08-10")
	if err != nil {
		t.Fatalf("eod report failed: %v", err)
	}
	if report.TotalAmountCents != 5000 || report.TotalGrams != 500 {
		t.Fatalf("eod totals wrong: %d cents, %d grams", report.TotalAmountCents, report.TotalGrams)
	}

	var rowA, rowB *domain.EODReportRow
	for i := range report.Rows {
		switch report.Rows[i].SellerID {
		case sellerA.ID:
			rowA = &report.Rows[i]
		case sellerB.ID:
			rowB = &report.Rows[i]
		}
	}
	if rowA == nil || rowB == nil {
		t.Fatalf("expected rows for both sellers")
	}
	if rowA.TotalAmountCents != 3000 || rowB.TotalAmountCents != 2000 {
		t.Fatalf("per-seller totals wrong: %d / %d", rowA.TotalAmountCents, rowB.TotalAmountCents)
	}
}

func TestProfileUpdateMergesFields(t *testing.T) {
	svc := newTestService()
	ctx := ownerCtx()

	shop := "Rose Corner"
	updated, err := svc.UpdateProfile(ctx, domain.ProfileUpdateRequest{ShopName: &shop})
	if err != nil {
		t.Fatalf("update profile failed: %v", err)
	}
	if updated.ShopName != "Rose Corner" {
		t.Fatalf("shop name not updated: %q", updated.ShopName)
	}

	got, err := svc.Profile(ctx)
	if err != nil {
		t.Fatalf("profile failed: %v", err)
	}
	if got.ShopName != "Rose Corner" {
		t.Fatalf("profile not persisted: %q", got.ShopName)
	}
}

func TestSaleContactUpsert(t *testing.T) {
	svc := newTestService()
	ctx := ownerCtx()

	seller, err := svc.CreateSeller(ctx, domain.SellerCreateRequest{Name: "Contacts", SerialNumber: "C-1"})
	if err != nil {
		t.Fatalf("create seller failed: %v", err)
	}

	if _, err := svc.SaveSaleContact(ctx, seller.ID, domain.SaleContactRequest{Name: "Old Name"}); err != nil {
		t.Fatalf("save contact failed: %v", err)
	}
	if _, err := svc.SaveSaleContact(ctx, seller.ID, domain.SaleContactRequest{Name: "New Name", Mobile: "123"}); err != nil {
		t.Fatalf("save contact failed: %v", err)
	}

	contacts, err := svc.ListSaleContacts(ctx, seller.ID)
	if err != nil {
		t.Fatalf("list contacts failed: %v", err)
	}
	if len(contacts) != 1 {
		t.Fatalf("expected upsert to keep one contact, got %d", len(contacts))
	}
	if contacts[0].Name != "New Name" {
		t.Fatalf("contact not updated: %q", contacts[0].Name)
	}
}

func TestPaymentReceiptCarriesSellerAndTotals(t *testing.T) {
	svc := newTestService()
	ctx := ownerCtx()

	seller, err := svc.CreateSeller(ctx, domain.SellerCreateRequest{Name: "Receipt", SerialNumber: "R-1"})
	if err != nil {
		t.Fatalf("create seller failed: %v", err)
	}
	if _, err := svc.AddPurchase(ctx, seller.ID, domain.PurchaseCreateRequest{
		Date: "2026-08-04", AmountAddedCents: 2500, GramsAdded: 250,
	}); err != nil {
		t.Fatalf("add purchase failed: %v", err)
	}

	payment, err := svc.RecordPayment(ctx, seller.ID, domain.PaymentCreateRequest{
		FromDate:     "2026-08-04",
		ToDate:       "2026-08-04",
		AmountCents:  2500,
		ClearedGrams: 250,
	})
	if err != nil {
		t.Fatalf("record payment failed: %v", err)
	}

	receipt, err := svc.PaymentReceipt(ctx, seller.ID, payment.ID)
	if err != nil {
		t.Fatalf("payment receipt failed: %v", err)
	}
	if receipt.SellerName != "Receipt" || receipt.SerialNumber != "R-1" {
		t.Fatalf("receipt header wrong: %+v", receipt)
	}
	if receipt.GrandTotalCents != 2500 {
		t.Fatalf("grand total wrong: %d", receipt.GrandTotalCents)
	}
	if len(receipt.Days) != 1 || !receipt.Days[0].Cleared {
		t.Fatalf("receipt days wrong: %+v", receipt.Days)
	}
}
