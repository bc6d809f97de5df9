package httpapi

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"bloomtrack/backend/internal/domain"
	"bloomtrack/backend/internal/service"
	"bloomtrack/backend/internal/store"
)

type API struct {
	service       *service.Service
	auth          *AuthManager
	allowedOrigin string
	loginLimiter  *attemptLimiter
}

func New(svc *service.Service, auth *AuthManager, allowedOrigin string) *API {
	return &API{
		service:       svc,
		auth:          auth,
		allowedOrigin: allowedOrigin,
		loginLimiter:  newAttemptLimiter(5, time.Minute),
	}
}

type attemptLimiter struct {
	mu      sync.Mutex
	max     int
	window  time.Duration
	entries map[string][]time.Time
}

func newAttemptLimiter(max int, window time.Duration) *attemptLimiter {
	if max < 1 {
		max = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &attemptLimiter{max: max, window: window, entries: make(map[string][]time.Time)}
}

func (l *attemptLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	now := time.Now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	history := l.entries[key]
	kept := make([]time.Time, 0, len(history)+1)
	for _, ts := range history {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= l.max {
		l.entries[key] = kept
		return false
	}
	kept = append(kept, now)
	l.entries[key] = kept
	return true
}

func clientKey(r *http.Request) string {
	host := strings.TrimSpace(r.RemoteAddr)
	if host == "" {
		return "unknown"
	}
	if addr, err := netip.ParseAddrPort(host); err == nil {
		return addr.Addr().String()
	}
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		return host[:idx]
	}
	return host
}

func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", a.handleHealth)
	mux.HandleFunc("/api/auth/signup", a.handleSignup)
	mux.HandleFunc("/api/auth/signin", a.handleSignin)
	mux.HandleFunc("/api/auth/signout", a.requireAuth(a.handleSignout))
	mux.HandleFunc("/api/auth/user", a.requireAuth(a.handleCurrentUser))

	mux.HandleFunc("/api/profiles", a.requireAuth(a.handleProfiles))
	mux.HandleFunc("/api/sellers", a.requireAuth(a.handleSellers))
	mux.HandleFunc("/api/sellers/search", a.requireAuth(a.handleSellerSearch))
	mux.HandleFunc("/api/sellers/", a.requireAuth(a.handleSellerActions))
	mux.HandleFunc("/api/transactions/", a.requireAuth(a.handleTransactionActions))
	mux.HandleFunc("/api/reports/eod", a.requireAuth(a.handleEODReport))
	mux.HandleFunc("/api/admin/ping", a.requireAuth(a.handleAdminPing))
	mux.HandleFunc("/api/admin/db-inspect", a.requireAuth(a.handleDBInspect))

	return a.withMiddleware(mux)
}

func (a *API) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, err := bearerToken(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err)
			return
		}

		actor, err := a.auth.ParseToken(r.Context(), token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err)
			return
		}

		next(w, r.WithContext(service.WithActor(r.Context(), actor)))
	}
}

func bearerToken(r *http.Request) (string, error) {
	authorization := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
		return "", errors.New("missing bearer token")
	}
	return strings.TrimSpace(authorization[len("Bearer "):]), nil
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"at": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) handleSignup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req domain.SignupRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := a.auth.Signup(r.Context(), req)
	if err != nil {
		writeError(w, statusForError(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (a *API) handleSignin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	if !a.loginLimiter.Allow(clientKey(r)) {
		writeError(w, http.StatusTooManyRequests, errors.New("too many signin attempts"))
		return
	}

	var req domain.SigninRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := a.auth.Signin(r.Context(), req)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleSignout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	token, err := bearerToken(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}
	if err := a.auth.Signout(r.Context(), token); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (a *API) handleCurrentUser(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	actor, _ := service.ActorFromContext(r.Context())
	user, err := a.auth.CurrentUser(r.Context(), actor)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

func (a *API) handleProfiles(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		profile, err := a.service.Profile(r.Context())
		if err != nil {
			writeError(w, statusForError(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"profile": profile})
	case http.MethodPatch, http.MethodPut:
		var req domain.ProfileUpdateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		profile, err := a.service.UpdateProfile(r.Context(), req)
		if err != nil {
			writeError(w, statusForError(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"profile": profile})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleSellers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		sellers, err := a.service.ListSellers(r.Context())
		if err != nil {
			writeError(w, statusForError(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"sellers": sellers})
	case http.MethodPost:
		var req domain.SellerCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		seller, err := a.service.CreateSeller(r.Context(), req)
		if err != nil {
			writeError(w, statusForError(err), err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"seller": seller})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleSellerSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	query := r.URL.Query().Get("query")
	sellers, err := a.service.SearchSellers(r.Context(), query)
	if err != nil {
		writeError(w, statusForError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sellers": sellers})
}

// handleSellerActions dispatches everything under /api/sellers/{id}/... by
// path segments:
//
//	{id}
//	{id}/transactions[/{txnID}]
//	{id}/sold-to[/{saleID}]
//	{id}/sale-to
//	{id}/payments[/summary | /{paymentID}/receipt]
//	transactions/{txnID}/salesman
func (a *API) handleSellerActions(w http.ResponseWriter, r *http.Request) {
	prefix := "/api/sellers/"
	tail := strings.Trim(strings.TrimPrefix(r.URL.Path, prefix), "/")
	if tail == "" {
		writeError(w, http.StatusBadRequest, errors.New("seller id required"))
		return
	}

	segments := strings.Split(tail, "/")

	// /api/sellers/transactions/{txnID}/salesman carries no seller segment;
	// the owning seller is resolved from the transaction itself.
	if segments[0] == "transactions" && len(segments) == 3 && segments[2] == "salesman" {
		a.handleAssignSalesman(w, r, strings.TrimSpace(segments[1]))
		return
	}

	sellerID := strings.TrimSpace(segments[0])
	if sellerID == "" {
		writeError(w, http.StatusBadRequest, errors.New("seller id required"))
		return
	}

	if len(segments) == 1 {
		a.handleSeller(w, r, sellerID)
		return
	}

	switch segments[1] {
	case "transactions":
		if len(segments) == 2 {
			a.handlePurchases(w, r, sellerID)
			return
		}
		if len(segments) == 3 {
			a.handlePurchase(w, r, sellerID, segments[2])
			return
		}
	case "sold-to":
		if len(segments) == 2 {
			a.handleSales(w, r, sellerID)
			return
		}
		if len(segments) == 3 {
			a.handleSale(w, r, sellerID, segments[2])
			return
		}
	case "sale-to":
		if len(segments) == 2 {
			a.handleSaleContacts(w, r, sellerID)
			return
		}
	case "payments":
		if len(segments) == 2 {
			a.handlePayments(w, r, sellerID)
			return
		}
		if len(segments) == 3 && segments[2] == "summary" {
			a.handlePaymentSummary(w, r, sellerID)
			return
		}
		if len(segments) == 4 && segments[3] == "receipt" {
			a.handlePaymentReceipt(w, r, sellerID, segments[2])
			return
		}
	}

	writeError(w, http.StatusNotFound, errors.New("unknown seller action"))
}

func (a *API) handleSeller(w http.ResponseWriter, r *http.Request, sellerID string) {
	switch r.Method {
	case http.MethodGet:
		seller, err := a.service.GetSeller(r.Context(), sellerID)
		if err != nil {
			writeError(w, statusForError(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"seller": seller})
	case http.MethodPatch, http.MethodPut:
		var req domain.SellerUpdateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		seller, err := a.service.UpdateSeller(r.Context(), sellerID, req)
		if err != nil {
			writeError(w, statusForError(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"seller": seller})
	case http.MethodDelete:
		if err := a.service.DeleteSeller(r.Context(), sellerID); err != nil {
			writeError(w, statusForError(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handlePurchases(w http.ResponseWriter, r *http.Request, sellerID string) {
	switch r.Method {
	case http.MethodGet:
		purchases, err := a.service.ListPurchases(r.Context(), sellerID)
		if err != nil {
			writeError(w, statusForError(err), err)
			return
		}
		// Rows come back oldest first; the limit keeps the newest ones.
		limit := parsePositiveLimit(r.URL.Query().Get("limit"), 500, 2000)
		if len(purchases) > limit {
			purchases = purchases[len(purchases)-limit:]
		}
		writeJSON(w, http.StatusOK, map[string]any{"transactions": purchases})
	case http.MethodPost:
		var req domain.PurchaseCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		purchase, err := a.service.AddPurchase(r.Context(), sellerID, req)
		if err != nil {
			writeError(w, statusForError(err), err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"transaction": purchase})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handlePurchase(w http.ResponseWriter, r *http.Request, sellerID string, purchaseID string) {
	switch r.Method {
	case http.MethodPatch, http.MethodPut:
		var req domain.PurchaseUpdateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		purchase, err := a.service.UpdatePurchase(r.Context(), sellerID, purchaseID, req)
		if err != nil {
			writeError(w, statusForError(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"transaction": purchase})
	case http.MethodDelete:
		if err := a.service.DeletePurchase(r.Context(), sellerID, purchaseID); err != nil {
			writeError(w, statusForError(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	default:
		writeMethodNotAllowed(w)
	}
}

// handleTransactionActions covers /api/transactions/{txnID}/salesman, the
// short alias for /api/sellers/transactions/{txnID}/salesman.
func (a *API) handleTransactionActions(w http.ResponseWriter, r *http.Request) {
	prefix := "/api/transactions/"
	if !strings.HasSuffix(r.URL.Path, "/salesman") {
		writeError(w, http.StatusNotFound, errors.New("unknown transaction action"))
		return
	}
	purchaseID := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, prefix), "/salesman")
	a.handleAssignSalesman(w, r, strings.TrimSpace(strings.Trim(purchaseID, "/")))
}

func (a *API) handleAssignSalesman(w http.ResponseWriter, r *http.Request, purchaseID string) {
	if r.Method != http.MethodPost && r.Method != http.MethodPut {
		writeMethodNotAllowed(w)
		return
	}
	if purchaseID == "" {
		writeError(w, http.StatusBadRequest, errors.New("transaction id required"))
		return
	}

	var req domain.SalesmanAssignRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	purchase, err := a.service.AssignSalesman(r.Context(), purchaseID, req)
	if err != nil {
		writeError(w, statusForError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"transaction": purchase})
}

func (a *API) handleSales(w http.ResponseWriter, r *http.Request, sellerID string) {
	switch r.Method {
	case http.MethodGet:
		sales, err := a.service.ListSales(r.Context(), sellerID)
		if err != nil {
			writeError(w, statusForError(err), err)
			return
		}
		limit := parsePositiveLimit(r.URL.Query().Get("limit"), 500, 2000)
		if len(sales) > limit {
			sales = sales[len(sales)-limit:]
		}
		writeJSON(w, http.StatusOK, map[string]any{"sales": sales})
	case http.MethodPost:
		var req domain.SaleCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		sale, err := a.service.AddSale(r.Context(), sellerID, req)
		if err != nil {
			writeError(w, statusForError(err), err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"sale": sale})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleSale(w http.ResponseWriter, r *http.Request, sellerID string, saleID string) {
	switch r.Method {
	case http.MethodPatch, http.MethodPut:
		var req domain.SaleUpdateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		sale, err := a.service.UpdateSale(r.Context(), sellerID, saleID, req)
		if err != nil {
			writeError(w, statusForError(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"sale": sale})
	case http.MethodDelete:
		if err := a.service.DeleteSale(r.Context(), sellerID, saleID); err != nil {
			writeError(w, statusForError(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleSaleContacts(w http.ResponseWriter, r *http.Request, sellerID string) {
	switch r.Method {
	case http.MethodGet:
		contacts, err := a.service.ListSaleContacts(r.Context(), sellerID)
		if err != nil {
			writeError(w, statusForError(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"contacts": contacts})
	case http.MethodPost, http.MethodPut:
		var req domain.SaleContactRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		contact, err := a.service.SaveSaleContact(r.Context(), sellerID, req)
		if err != nil {
			writeError(w, statusForError(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"contact": contact})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handlePayments(w http.ResponseWriter, r *http.Request, sellerID string) {
	switch r.Method {
	case http.MethodGet:
		payments, err := a.service.ListPayments(r.Context(), sellerID)
		if err != nil {
			writeError(w, statusForError(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"payments": payments})
	case http.MethodPost:
		var req domain.PaymentCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		payment, err := a.service.RecordPayment(r.Context(), sellerID, req)
		if err != nil {
			writeError(w, statusForError(err), err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"payment": payment})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handlePaymentSummary(w http.ResponseWriter, r *http.Request, sellerID string) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	from := r.URL.Query().Get("from")
	to := r.URL.Query().Get("to")
	summary, err := a.service.PaymentSummary(r.Context(), sellerID, from, to)
	if err != nil {
		writeError(w, statusForError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (a *API) handlePaymentReceipt(w http.ResponseWriter, r *http.Request, sellerID string, paymentID string) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	receipt, err := a.service.PaymentReceipt(r.Context(), sellerID, paymentID)
	if err != nil {
		writeError(w, statusForError(err), err)
		return
	}

	if strings.EqualFold(strings.TrimSpace(r.URL.Query().Get("format")), "json") {
		writeJSON(w, http.StatusOK, receipt)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(receiptToPrintableHTML(receipt)))
}

func (a *API) handleEODReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	date := r.URL.Query().Get("date")
	format := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format")))

	report, err := a.service.EODReport(r.Context(), date)
	if err != nil {
		writeError(w, statusForError(err), err)
		return
	}

	switch format {
	case "csv":
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"eod-report-%s.csv\"", report.Date))
		_, _ = w.Write([]byte(eodReportToCSV(report)))
	default:
		writeJSON(w, http.StatusOK, report)
	}
}

func (a *API) handleAdminPing(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	if err := a.service.AdminPing(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (a *API) handleDBInspect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	inspect, err := a.service.DBInspect(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, inspect)
}

func (a *API) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
		w.Header().Set("Access-Control-Allow-Origin", a.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PATCH,PUT,DELETE,OPTIONS")
		w.Header().Set("Vary", "Origin")

		if (r.Method == http.MethodPost || r.Method == http.MethodPatch || r.Method == http.MethodPut) && strings.Contains(strings.ToLower(r.Header.Get("Content-Type")), "application/json") {
			r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		startedAt := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %s", r.Method, r.URL.Path, time.Since(startedAt))
	})
}

// statusForError maps store sentinels onto HTTP statuses. Ownership
// mismatches surface as ErrNotFound so foreign ids are indistinguishable from
// missing ones.
func statusForError(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrConflict),
		errors.Is(err, store.ErrInsufficientStock),
		errors.Is(err, store.ErrInvalidTransaction),
		errors.Is(err, ErrSignupRejected):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// eodReportToCSV renders the report as section,key,value rows. Serial
// numbers come from user input, so the writer handles the quoting.
func eodReportToCSV(report domain.EODReport) string {
	var buf strings.Builder
	writer := csv.NewWriter(&buf)
	_ = writer.Write([]string{"section", "key", "value"})
	_ = writer.Write([]string{"summary", "date", report.Date})
	_ = writer.Write([]string{"summary", "total_grams", strconv.FormatInt(report.TotalGrams, 10)})
	_ = writer.Write([]string{"summary", "total_amount_cents", strconv.FormatInt(report.TotalAmountCents, 10)})
	for _, row := range report.Rows {
		_ = writer.Write([]string{"seller", row.SerialNumber + "_grams", strconv.FormatInt(row.TotalGrams, 10)})
		_ = writer.Write([]string{"seller", row.SerialNumber + "_amount_cents", strconv.FormatInt(row.TotalAmountCents, 10)})
	}
	writer.Flush()
	return buf.String()
}

// receiptHTMLTmpl renders the printable payment receipt. User-controlled
// fields are auto-escaped by html/template.
var receiptHTMLTmpl = template.Must(template.New("payment-receipt").Parse(`<!doctype html>
<html>
<head>
  <meta charset="utf-8" />
  <title>Payment Receipt {{.PaidAt}}</title>
  <style>
    body { font-family: sans-serif; margin: 24px; }
    table { width: 100%; border-collapse: collapse; margin-top: 8px; }
    th, td { border: 1px solid #ddd; padding: 6px; font-size: 13px; }
    h2, h3 { margin-bottom: 4px; }
  </style>
</head>
<body>
  <h2>{{.ShopName}}</h2>
  <p>Seller: {{.SellerName}} ({{.SerialNumber}})</p>
  <p>Paid: {{.PaidAt}} | Period: {{.FromDate}} to {{.ToDate}}</p>

  <h3>Cleared Days</h3>
  <table>
    <thead><tr><th>Date</th><th>Grams</th><th>Less</th><th>Effective</th><th>Rate/kg</th><th>Cleared Grams</th><th>Cleared Cents</th><th>Remaining Cents</th></tr></thead>
    <tbody>{{range .Days}}<tr><td>{{.Date}}</td><td style="text-align:right;">{{.GramsAdded}}</td><td style="text-align:right;">{{.LessGrams}}</td><td style="text-align:right;">{{.EffectiveGrams}}</td><td style="text-align:right;">{{.RatePerKgCents}}</td><td style="text-align:right;">{{.ClearedGrams}}</td><td style="text-align:right;">{{.ClearedAmountCents}}</td><td style="text-align:right;">{{.RemainingAmountCents}}</td></tr>{{end}}</tbody>
  </table>

  <p>Commission: {{.CommissionCents}} | Advance: {{.AdvanceCents}}</p>
  <p><strong>Grand Total: {{.GrandTotalCents}}</strong></p>
  {{if .Notes}}<p>Notes: {{.Notes}}</p>{{end}}
</body>
</html>
`))

func receiptToPrintableHTML(receipt domain.PaymentReceipt) string {
	var buf bytes.Buffer
	if err := receiptHTMLTmpl.Execute(&buf, receipt); err != nil {
		return "<!doctype html><html><body><p>Receipt rendering error.</p></body></html>"
	}
	return buf.String()
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return err
	}
	return nil
}

func parsePositiveLimit(raw string, fallback int, max int) int {
	limit := fallback
	trimmed := strings.TrimSpace(raw)
	if trimmed != "" {
		if parsed, err := strconv.Atoi(trimmed); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if max > 0 && limit > max {
		return max
	}
	return limit
}

func writeMethodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
}

func writeError(w http.ResponseWriter, status int, err error) {
	// 4xx bodies carry the original message; 5xx bodies stay generic so
	// internals (SQL errors, file paths) never leak to clients.
	msg := err.Error()
	if status >= 500 {
		log.Printf("internal error (status %d): %v", status, err)
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
