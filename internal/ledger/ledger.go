// Package ledger holds the balance and reconciliation arithmetic shared by
// every store implementation. All mutations of a seller's running balance go
// through Balance so the zero-floor clamp is applied in exactly one place.
package ledger

import (
	"slices"
	"time"

	"bloomtrack/backend/internal/domain"
)

// Balance is a seller's live running totals.
type Balance struct {
	AmountCents int64
	Grams       int64
}

// AddPurchase returns the balance after a purchase event.
func (b Balance) AddPurchase(amountCents int64, grams int64) Balance {
	return Balance{
		AmountCents: b.AmountCents + amountCents,
		Grams:       b.Grams + grams,
	}
}

// Deduct returns the balance after a sale or payment clearance. Deduction
// paths clamp at zero rather than going negative.
func (b Balance) Deduct(amountCents int64, grams int64) Balance {
	return Balance{
		AmountCents: clampZero(b.AmountCents - amountCents),
		Grams:       clampZero(b.Grams - grams),
	}
}

// ApplyDelta shifts the balance by a signed delta, clamped at zero. Used when
// a purchase row is edited: the seller moves by (new adds − old adds), never
// by the full new value.
func (b Balance) ApplyDelta(amountCents int64, grams int64) Balance {
	return Balance{
		AmountCents: clampZero(b.AmountCents + amountCents),
		Grams:       clampZero(b.Grams + grams),
	}
}

func clampZero(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}

// EffectiveGrams is net purchased weight minus the less-weight deduction.
func EffectiveGrams(grams int64, lessGrams int64) int64 {
	return clampZero(grams - lessGrams)
}

// RatePerKgCents derives the day's rate (cents per kilogram) from the payable
// amount and the effective weight. Zero effective weight yields a zero rate.
func RatePerKgCents(amountCents int64, effectiveGrams int64) int64 {
	if effectiveGrams <= 0 {
		return 0
	}
	return amountCents * 1000 / effectiveGrams
}

// allocatedByPurchase folds existing allocations into per-purchase totals.
func allocatedByPurchase(allocations []domain.PaymentAllocation) map[string]domain.PaymentAllocation {
	out := make(map[string]domain.PaymentAllocation, len(allocations))
	for _, alloc := range allocations {
		agg := out[alloc.PurchaseID]
		agg.PurchaseID = alloc.PurchaseID
		agg.Grams += alloc.Grams
		agg.AmountCents += alloc.AmountCents
		out[alloc.PurchaseID] = agg
	}
	return out
}

func sortByDate(purchases []domain.Purchase) []domain.Purchase {
	sorted := slices.Clone(purchases)
	slices.SortFunc(sorted, func(a, b domain.Purchase) int {
		if !a.Date.Equal(b.Date) {
			return a.Date.Compare(b.Date)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Compare(b.CreatedAt)
		}
		return cmpString(a.ID, b.ID)
	})
	return sorted
}

func cmpString(a string, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Remaining reports the uncleared grams and amount across the given
// purchases after subtracting prior allocations.
func Remaining(purchases []domain.Purchase, allocations []domain.PaymentAllocation) (grams int64, amountCents int64) {
	cleared := allocatedByPurchase(allocations)
	for _, p := range purchases {
		prior := cleared[p.ID]
		grams += clampZero(EffectiveGrams(p.GramsAdded, p.LessGrams) - prior.Grams)
		amountCents += clampZero(p.AmountAddedCents - prior.AmountCents)
	}
	return grams, amountCents
}

// Allocate distributes a payment's cleared grams and amount across purchases
// in date order, oldest first. Each purchase absorbs up to its uncleared
// effective weight; the allocated amount follows the grams proportionally and
// the final allocation absorbs any rounding remainder so the allocations sum
// exactly to the cleared totals. When clearGrams is zero the amount alone is
// allocated against each purchase's uncleared amount.
func Allocate(purchases []domain.Purchase, prior []domain.PaymentAllocation, clearGrams int64, clearAmountCents int64) []domain.PaymentAllocation {
	if clearGrams <= 0 && clearAmountCents <= 0 {
		return nil
	}

	cleared := allocatedByPurchase(prior)
	sorted := sortByDate(purchases)

	allocations := make([]domain.PaymentAllocation, 0, len(sorted))
	gramsLeft := clearGrams
	amountLeft := clearAmountCents

	if clearGrams > 0 {
		for _, p := range sorted {
			if gramsLeft <= 0 {
				break
			}
			room := clampZero(EffectiveGrams(p.GramsAdded, p.LessGrams) - cleared[p.ID].Grams)
			if room == 0 {
				continue
			}
			take := min(room, gramsLeft)
			amount := clearAmountCents * take / clearGrams
			if take == gramsLeft {
				// Final slice absorbs the rounding remainder.
				amount = amountLeft
			}
			if amount > amountLeft {
				amount = amountLeft
			}
			allocations = append(allocations, domain.PaymentAllocation{
				PurchaseID:  p.ID,
				Grams:       take,
				AmountCents: amount,
			})
			gramsLeft -= take
			amountLeft -= amount
		}
		return allocations
	}

	for _, p := range sorted {
		if amountLeft <= 0 {
			break
		}
		room := clampZero(p.AmountAddedCents - cleared[p.ID].AmountCents)
		if room == 0 {
			continue
		}
		take := min(room, amountLeft)
		allocations = append(allocations, domain.PaymentAllocation{
			PurchaseID:  p.ID,
			AmountCents: take,
		})
		amountLeft -= take
	}
	return allocations
}

// SummarizeDays groups purchases by calendar day (UTC) and cross-references
// allocations to produce the cleared/remaining reconciliation rows.
func SummarizeDays(purchases []domain.Purchase, allocations []domain.PaymentAllocation) []domain.PaymentDaySummary {
	cleared := allocatedByPurchase(allocations)
	sorted := sortByDate(purchases)

	type dayAgg struct {
		summary domain.PaymentDaySummary
	}
	byDay := make(map[string]*dayAgg)
	order := make([]string, 0, 8)

	for _, p := range sorted {
		key := DayKey(p.Date)
		agg, ok := byDay[key]
		if !ok {
			agg = &dayAgg{summary: domain.PaymentDaySummary{Date: key}}
			byDay[key] = agg
			order = append(order, key)
		}
		prior := cleared[p.ID]
		agg.summary.GramsAdded += p.GramsAdded
		agg.summary.LessGrams += p.LessGrams
		agg.summary.AmountCents += p.AmountAddedCents
		agg.summary.ClearedGrams += prior.Grams
		agg.summary.ClearedAmountCents += prior.AmountCents
	}

	days := make([]domain.PaymentDaySummary, 0, len(order))
	for _, key := range order {
		s := byDay[key].summary
		s.EffectiveGrams = EffectiveGrams(s.GramsAdded, s.LessGrams)
		s.RatePerKgCents = RatePerKgCents(s.AmountCents, s.EffectiveGrams)
		s.RemainingGrams = clampZero(s.EffectiveGrams - s.ClearedGrams)
		s.RemainingAmountCents = clampZero(s.AmountCents - s.ClearedAmountCents)
		s.Cleared = s.RemainingGrams == 0 && s.RemainingAmountCents == 0
		days = append(days, s)
	}
	return days
}

// DayKey renders a timestamp as its UTC calendar day.
func DayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
