package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"bloomtrack/backend/internal/cache"
	"bloomtrack/backend/internal/domain"
	"bloomtrack/backend/internal/ledger"
	"bloomtrack/backend/internal/store"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Service struct {
	repo      store.Repository
	reports   cache.ReportCache
	reportTTL time.Duration
}

func New(repo store.Repository, reports cache.ReportCache, reportTTL time.Duration) *Service {
	if reports == nil {
		reports = cache.NoopReportCache{}
	}
	if reportTTL <= 0 {
		reportTTL = 15 * time.Second
	}

	return &Service{
		repo:      repo,
		reports:   reports,
		reportTTL: reportTTL,
	}
}

// ownerID resolves the authenticated owner from the request context. Every
// data operation is scoped to it.
func ownerID(ctx context.Context) (string, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.UserID == "" {
		return "", fmt.Errorf("authentication required")
	}
	return actor.UserID, nil
}

func (s *Service) Profile(ctx context.Context) (domain.Profile, error) {
	owner, err := ownerID(ctx)
	if err != nil {
		return domain.Profile{}, err
	}
	profile, err := s.repo.GetProfile(ctx, owner)
	if err != nil {
		return domain.Profile{}, err
	}
	return *profile, nil
}

func (s *Service) UpdateProfile(ctx context.Context, req domain.ProfileUpdateRequest) (domain.Profile, error) {
	owner, err := ownerID(ctx)
	if err != nil {
		return domain.Profile{}, err
	}

	profile, err := s.repo.GetProfile(ctx, owner)
	if err != nil {
		return domain.Profile{}, err
	}
	if req.OwnerName != nil {
		profile.OwnerName = strings.TrimSpace(*req.OwnerName)
	}
	if req.Mobile != nil {
		profile.Mobile = strings.TrimSpace(*req.Mobile)
	}
	if req.ShopName != nil {
		profile.ShopName = strings.TrimSpace(*req.ShopName)
	}

	updated, err := s.repo.UpdateProfile(ctx, *profile)
	if err != nil {
		return domain.Profile{}, err
	}
	return *updated, nil
}

func (s *Service) ListSellers(ctx context.Context) ([]domain.Seller, error) {
	owner, err := ownerID(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.ListSellers(ctx, owner)
}

func (s *Service) GetSeller(ctx context.Context, sellerID string) (domain.Seller, error) {
	owner, err := ownerID(ctx)
	if err != nil {
		return domain.Seller{}, err
	}
	seller, err := s.repo.GetSeller(ctx, owner, sellerID)
	if err != nil {
		return domain.Seller{}, err
	}
	return *seller, nil
}

func (s *Service) CreateSeller(ctx context.Context, req domain.SellerCreateRequest) (domain.Seller, error) {
	owner, err := ownerID(ctx)
	if err != nil {
		return domain.Seller{}, err
	}

	req.Name = strings.TrimSpace(req.Name)
	req.SerialNumber = strings.TrimSpace(req.SerialNumber)
	if req.Name == "" || req.SerialNumber == "" {
		return domain.Seller{}, store.ErrInvalidTransaction
	}
	if req.AmountCents < 0 || req.WeightGrams < 0 {
		return domain.Seller{}, store.ErrInvalidTransaction
	}

	date, err := parseOptionalDate(req.Date)
	if err != nil {
		return domain.Seller{}, store.ErrInvalidTransaction
	}

	seller := domain.Seller{
		OwnerID:      owner,
		Name:         req.Name,
		Mobile:       strings.TrimSpace(req.Mobile),
		SerialNumber: req.SerialNumber,
		Address:      strings.TrimSpace(req.Address),
		Date:         date,
		AmountCents:  req.AmountCents,
		WeightGrams:  req.WeightGrams,
	}

	created, err := s.repo.CreateSeller(ctx, seller)
	if err != nil {
		return domain.Seller{}, err
	}
	return *created, nil
}

func (s *Service) UpdateSeller(ctx context.Context, sellerID string, req domain.SellerUpdateRequest) (domain.Seller, error) {
	owner, err := ownerID(ctx)
	if err != nil {
		return domain.Seller{}, err
	}
	updated, err := s.repo.UpdateSeller(ctx, owner, sellerID, req)
	if err != nil {
		return domain.Seller{}, err
	}
	return *updated, nil
}

func (s *Service) DeleteSeller(ctx context.Context, sellerID string) error {
	owner, err := ownerID(ctx)
	if err != nil {
		return err
	}
	return s.repo.DeleteSeller(ctx, owner, sellerID)
}

// SearchSellers matches by exact serial number, scoped to the caller. A
// serial that exists for another owner is never returned.
func (s *Service) SearchSellers(ctx context.Context, query string) ([]domain.Seller, error) {
	owner, err := ownerID(ctx)
	if err != nil {
		return nil, err
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, store.ErrInvalidTransaction
	}
	return s.repo.SearchSellersBySerial(ctx, owner, query)
}

func (s *Service) ListPurchases(ctx context.Context, sellerID string) ([]domain.Purchase, error) {
	owner, err := ownerID(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.ListPurchases(ctx, owner, sellerID)
}

func (s *Service) AddPurchase(ctx context.Context, sellerID string, req domain.PurchaseCreateRequest) (domain.Purchase, error) {
	owner, err := ownerID(ctx)
	if err != nil {
		return domain.Purchase{}, err
	}

	date, err := parseOptionalDate(req.Date)
	if err != nil {
		return domain.Purchase{}, store.ErrInvalidTransaction
	}

	purchase := domain.Purchase{
		Date:             date,
		AmountAddedCents: req.AmountAddedCents,
		GramsAdded:       req.GramsAdded,
		FlowerName:       strings.TrimSpace(req.FlowerName),
		LessGrams:        req.LessGrams,
		SalesmanName:     strings.TrimSpace(req.SalesmanName),
		SalesmanMobile:   strings.TrimSpace(req.SalesmanMobile),
		SalesmanAddress:  strings.TrimSpace(req.SalesmanAddress),
	}

	created, err := s.repo.AddPurchase(ctx, owner, sellerID, purchase)
	if err != nil {
		return domain.Purchase{}, err
	}
	return *created, nil
}

func (s *Service) UpdatePurchase(ctx context.Context, sellerID string, purchaseID string, req domain.PurchaseUpdateRequest) (domain.Purchase, error) {
	owner, err := ownerID(ctx)
	if err != nil {
		return domain.Purchase{}, err
	}
	updated, err := s.repo.UpdatePurchase(ctx, owner, sellerID, purchaseID, req)
	if err != nil {
		return domain.Purchase{}, err
	}
	return *updated, nil
}

func (s *Service) DeletePurchase(ctx context.Context, sellerID string, purchaseID string) error {
	owner, err := ownerID(ctx)
	if err != nil {
		return err
	}
	return s.repo.DeletePurchase(ctx, owner, sellerID, purchaseID)
}

func (s *Service) AssignSalesman(ctx context.Context, purchaseID string, req domain.SalesmanAssignRequest) (domain.Purchase, error) {
	owner, err := ownerID(ctx)
	if err != nil {
		return domain.Purchase{}, err
	}
	if strings.TrimSpace(req.SalesmanName) == "" {
		return domain.Purchase{}, store.ErrInvalidTransaction
	}
	updated, err := s.repo.AssignSalesman(ctx, owner, purchaseID, req)
	if err != nil {
		return domain.Purchase{}, err
	}
	return *updated, nil
}

func (s *Service) ListSales(ctx context.Context, sellerID string) ([]domain.Sale, error) {
	owner, err := ownerID(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.ListSales(ctx, owner, sellerID)
}

func (s *Service) AddSale(ctx context.Context, sellerID string, req domain.SaleCreateRequest) (domain.Sale, error) {
	owner, err := ownerID(ctx)
	if err != nil {
		return domain.Sale{}, err
	}

	req.CustomerName = strings.TrimSpace(req.CustomerName)
	if req.CustomerName == "" {
		return domain.Sale{}, store.ErrInvalidTransaction
	}
	date, err := parseOptionalDate(req.SaleDate)
	if err != nil {
		return domain.Sale{}, store.ErrInvalidTransaction
	}

	sale := domain.Sale{
		CustomerName:    req.CustomerName,
		CustomerMobile:  strings.TrimSpace(req.CustomerMobile),
		SaleDate:        date,
		GramsSold:       req.GramsSold,
		AmountSoldCents: req.AmountSoldCents,
		Notes:           strings.TrimSpace(req.Notes),
	}

	created, err := s.repo.AddSale(ctx, owner, sellerID, sale)
	if err != nil {
		return domain.Sale{}, err
	}
	return *created, nil
}

func (s *Service) UpdateSale(ctx context.Context, sellerID string, saleID string, req domain.SaleUpdateRequest) (domain.Sale, error) {
	owner, err := ownerID(ctx)
	if err != nil {
		return domain.Sale{}, err
	}
	updated, err := s.repo.UpdateSale(ctx, owner, sellerID, saleID, req)
	if err != nil {
		return domain.Sale{}, err
	}
	return *updated, nil
}

func (s *Service) DeleteSale(ctx context.Context, sellerID string, saleID string) error {
	owner, err := ownerID(ctx)
	if err != nil {
		return err
	}
	return s.repo.DeleteSale(ctx, owner, sellerID, saleID)
}

func (s *Service) ListSaleContacts(ctx context.Context, sellerID string) ([]domain.SaleContact, error) {
	owner, err := ownerID(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.ListSaleContacts(ctx, owner, sellerID)
}

func (s *Service) SaveSaleContact(ctx context.Context, sellerID string, req domain.SaleContactRequest) (domain.SaleContact, error) {
	owner, err := ownerID(ctx)
	if err != nil {
		return domain.SaleContact{}, err
	}

	contact := domain.SaleContact{
		Name:    strings.TrimSpace(req.Name),
		Mobile:  strings.TrimSpace(req.Mobile),
		Address: strings.TrimSpace(req.Address),
	}
	saved, err := s.repo.SaveSaleContact(ctx, owner, sellerID, contact)
	if err != nil {
		return domain.SaleContact{}, err
	}
	return *saved, nil
}

func (s *Service) ListPayments(ctx context.Context, sellerID string) ([]domain.Payment, error) {
	owner, err := ownerID(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.ListPayments(ctx, owner, sellerID)
}

func (s *Service) RecordPayment(ctx context.Context, sellerID string, req domain.PaymentCreateRequest) (domain.Payment, error) {
	owner, err := ownerID(ctx)
	if err != nil {
		return domain.Payment{}, err
	}

	from, err := parseDate(req.FromDate)
	if err != nil {
		return domain.Payment{}, store.ErrInvalidTransaction
	}
	to, err := parseDate(req.ToDate)
	if err != nil {
		return domain.Payment{}, store.ErrInvalidTransaction
	}
	paidAt, err := parseOptionalDate(req.PaidAt)
	if err != nil {
		return domain.Payment{}, store.ErrInvalidTransaction
	}

	input := store.PaymentInput{
		PaidAt:          paidAt,
		FromDate:        from,
		ToDate:          to,
		AmountCents:     req.AmountCents,
		ClearedGrams:    req.ClearedGrams,
		CommissionCents: req.CommissionCents,
		AdvanceCents:    req.AdvanceCents,
		Notes:           strings.TrimSpace(req.Notes),
	}
	created, err := s.repo.AddPayment(ctx, owner, sellerID, input)
	if err != nil {
		return domain.Payment{}, err
	}
	return *created, nil
}

// PaymentSummary builds the per-day cleared/remaining reconciliation view
// from persisted allocations. Cached briefly; the TTL bounds staleness.
func (s *Service) PaymentSummary(ctx context.Context, sellerID string, fromStr string, toStr string) (domain.PaymentSummary, error) {
	owner, err := ownerID(ctx)
	if err != nil {
		return domain.PaymentSummary{}, err
	}

	from, err := parseDate(fromStr)
	if err != nil {
		return domain.PaymentSummary{}, store.ErrInvalidTransaction
	}
	to, err := parseDate(toStr)
	if err != nil || to.Before(from) {
		return domain.PaymentSummary{}, store.ErrInvalidTransaction
	}

	cacheKey := fmt.Sprintf("summary:%s:%s:%s:%s", owner, sellerID, ledger.DayKey(from), ledger.DayKey(to))
	if cached, ok := s.cachedSummary(ctx, cacheKey); ok {
		return cached, nil
	}

	purchases, err := s.repo.ListPurchasesInRange(ctx, owner, sellerID, from, to)
	if err != nil {
		return domain.PaymentSummary{}, err
	}
	allocations, err := s.repo.ListAllocationsForSeller(ctx, owner, sellerID)
	if err != nil {
		return domain.PaymentSummary{}, err
	}

	summary := domain.PaymentSummary{
		SellerID: sellerID,
		FromDate: ledger.DayKey(from),
		ToDate:   ledger.DayKey(to),
		Days:     ledger.SummarizeDays(purchases, allocations),
	}
	for _, day := range summary.Days {
		summary.TotalAmountCents += day.AmountCents
		summary.TotalGrams += day.GramsAdded
		summary.RemainingAmountCents += day.RemainingAmountCents
		summary.RemainingGrams += day.RemainingGrams
	}

	s.storeSummary(ctx, cacheKey, summary)
	return summary, nil
}

func (s *Service) cachedSummary(ctx context.Context, key string) (domain.PaymentSummary, bool) {
	payload, ok, err := s.reports.Get(ctx, key)
	if err != nil || !ok {
		return domain.PaymentSummary{}, false
	}
	var summary domain.PaymentSummary
	if err := json.Unmarshal(payload, &summary); err != nil {
		return domain.PaymentSummary{}, false
	}
	return summary, true
}

func (s *Service) storeSummary(ctx context.Context, key string, summary domain.PaymentSummary) {
	payload, err := json.Marshal(summary)
	if err != nil {
		return
	}
	if err := s.reports.Set(ctx, key, payload, s.reportTTL); err != nil {
		log.Printf("[service] WARN: report cache set failed: %v", err)
	}
}

// PaymentReceipt assembles the printable receipt: the payment's own per-day
// clearing rows plus commission, advance and grand total.
func (s *Service) PaymentReceipt(ctx context.Context, sellerID string, paymentID string) (domain.PaymentReceipt, error) {
	owner, err := ownerID(ctx)
	if err != nil {
		return domain.PaymentReceipt{}, err
	}

	payment, err := s.repo.GetPayment(ctx, owner, sellerID, paymentID)
	if err != nil {
		return domain.PaymentReceipt{}, err
	}
	seller, err := s.repo.GetSeller(ctx, owner, sellerID)
	if err != nil {
		return domain.PaymentReceipt{}, err
	}

	shopName := ""
	if profile, err := s.repo.GetProfile(ctx, owner); err == nil {
		shopName = profile.ShopName
	}

	purchases, err := s.repo.ListPurchasesInRange(ctx, owner, sellerID, payment.FromDate, payment.ToDate)
	if err != nil {
		return domain.PaymentReceipt{}, err
	}

	receipt := domain.PaymentReceipt{
		SellerName:      seller.Name,
		SerialNumber:    seller.SerialNumber,
		ShopName:        shopName,
		PaidAt:          payment.PaidAt.UTC().Format("2006-01-02"),
		FromDate:        ledger.DayKey(payment.FromDate),
		ToDate:          ledger.DayKey(payment.ToDate),
		Days:            ledger.SummarizeDays(purchases, payment.Allocations),
		AmountCents:     payment.AmountCents,
		ClearedGrams:    payment.ClearedGrams,
		CommissionCents: payment.CommissionCents,
		AdvanceCents:    payment.AdvanceCents,
		GrandTotalCents: payment.AmountCents,
		Notes:           payment.Notes,
	}
	return receipt, nil
}

func (s *Service) EODReport(ctx context.Context, dateStr string) (domain.EODReport, error) {
	owner, err := ownerID(ctx)
	if err != nil {
		return domain.EODReport{}, err
	}

	date, err := parseDate(dateStr)
	if err != nil {
		return domain.EODReport{}, store.ErrInvalidTransaction
	}

	cacheKey := fmt.Sprintf("eod:%s:%s", owner, ledger.DayKey(date))
	if payload, ok, err := s.reports.Get(ctx, cacheKey); err == nil && ok {
		var report domain.EODReport
		if err := json.Unmarshal(payload, &report); err == nil {
			return report, nil
		}
	}

	report, err := s.repo.EODReport(ctx, owner, date)
	if err != nil {
		return domain.EODReport{}, err
	}

	if payload, err := json.Marshal(report); err == nil {
		if err := s.reports.Set(ctx, cacheKey, payload, s.reportTTL); err != nil {
			log.Printf("[service] WARN: report cache set failed: %v", err)
		}
	}
	return report, nil
}

func (s *Service) AdminPing(ctx context.Context) error {
	if _, err := ownerID(ctx); err != nil {
		return err
	}
	return s.repo.Ping(ctx)
}

func (s *Service) DBInspect(ctx context.Context) (domain.DBInspect, error) {
	if _, err := ownerID(ctx); err != nil {
		return domain.DBInspect{}, err
	}
	return s.repo.Inspect(ctx)
}

func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, errors.New("date required")
	}
	return time.Parse("2006-01-02", raw)
}

// parseOptionalDate returns the zero time for an empty input; stores default
// it to now.
func parseOptionalDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	return time.Parse("2006-01-02", raw)
}
