package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bloomtrack/backend/internal/domain"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestBalanceFold(t *testing.T) {
	b := Balance{}

	b = b.AddPurchase(10000, 1000)
	assert.Equal(t, Balance{AmountCents: 10000, Grams: 1000}, b)

	b = b.Deduct(5000, 500)
	assert.Equal(t, Balance{AmountCents: 5000, Grams: 500}, b)

	// Deductions clamp at zero instead of going negative.
	b = b.Deduct(9999, 9999)
	assert.Equal(t, Balance{}, b)
}

func TestBalanceApplyDelta(t *testing.T) {
	b := Balance{AmountCents: 100, Grams: 10}

	assert.Equal(t, Balance{AmountCents: 150, Grams: 15}, b.ApplyDelta(50, 5))
	assert.Equal(t, Balance{AmountCents: 0, Grams: 0}, b.ApplyDelta(-200, -20))
}

func TestEffectiveGramsAndRate(t *testing.T) {
	cases := []struct {
		name        string
		grams       int64
		less        int64
		amountCents int64
		effective   int64
		rate        int64
	}{
		{"no less weight", 10000, 0, 50000, 10000, 5000},
		{"less weight deducted", 10000, 2000, 40000, 8000, 5000},
		{"less weight exceeds net", 1000, 2000, 40000, 0, 0},
		{"zero amount", 10000, 0, 0, 10000, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			eff := EffectiveGrams(tc.grams, tc.less)
			assert.Equal(t, tc.effective, eff)
			assert.Equal(t, tc.rate, RatePerKgCents(tc.amountCents, eff))
		})
	}
}

func TestRemainingSubtractsPriorAllocations(t *testing.T) {
	purchases := []domain.Purchase{
		{ID: "p1", Date: day("2024-03-01"), GramsAdded: 5000, AmountAddedCents: 25000},
		{ID: "p2", Date: day("2024-03-02"), GramsAdded: 3000, LessGrams: 500, AmountAddedCents: 12500},
	}
	prior := []domain.PaymentAllocation{
		{PaymentID: "pay1", PurchaseID: "p1", Grams: 5000, AmountCents: 25000},
	}

	grams, amount := Remaining(purchases, prior)
	assert.Equal(t, int64(2500), grams)
	assert.Equal(t, int64(12500), amount)
}

func TestAllocateGreedyByDate(t *testing.T) {
	purchases := []domain.Purchase{
		{ID: "newer", Date: day("2024-03-03"), GramsAdded: 4000, AmountAddedCents: 20000},
		{ID: "older", Date: day("2024-03-01"), GramsAdded: 3000, AmountAddedCents: 15000},
	}

	allocations := Allocate(purchases, nil, 5000, 25000)
	require.Len(t, allocations, 2)

	// Oldest purchase is consumed first.
	assert.Equal(t, "older", allocations[0].PurchaseID)
	assert.Equal(t, int64(3000), allocations[0].Grams)
	assert.Equal(t, "newer", allocations[1].PurchaseID)
	assert.Equal(t, int64(2000), allocations[1].Grams)

	var grams, amount int64
	for _, alloc := range allocations {
		grams += alloc.Grams
		amount += alloc.AmountCents
	}
	assert.Equal(t, int64(5000), grams)
	assert.Equal(t, int64(25000), amount, "final allocation must absorb the rounding remainder")
}

func TestAllocateSkipsAlreadyClearedPurchases(t *testing.T) {
	purchases := []domain.Purchase{
		{ID: "p1", Date: day("2024-03-01"), GramsAdded: 3000, AmountAddedCents: 15000},
		{ID: "p2", Date: day("2024-03-02"), GramsAdded: 3000, AmountAddedCents: 15000},
	}
	prior := []domain.PaymentAllocation{
		{PaymentID: "pay1", PurchaseID: "p1", Grams: 3000, AmountCents: 15000},
	}

	allocations := Allocate(purchases, prior, 1000, 5000)
	require.Len(t, allocations, 1)
	assert.Equal(t, "p2", allocations[0].PurchaseID)
	assert.Equal(t, int64(1000), allocations[0].Grams)
	assert.Equal(t, int64(5000), allocations[0].AmountCents)
}

func TestAllocateAmountOnly(t *testing.T) {
	purchases := []domain.Purchase{
		{ID: "p1", Date: day("2024-03-01"), GramsAdded: 3000, AmountAddedCents: 10000},
		{ID: "p2", Date: day("2024-03-02"), GramsAdded: 3000, AmountAddedCents: 10000},
	}

	allocations := Allocate(purchases, nil, 0, 15000)
	require.Len(t, allocations, 2)
	assert.Equal(t, int64(10000), allocations[0].AmountCents)
	assert.Equal(t, int64(5000), allocations[1].AmountCents)
	assert.Equal(t, int64(0), allocations[0].Grams)
}

func TestAllocateNothingToClear(t *testing.T) {
	purchases := []domain.Purchase{
		{ID: "p1", Date: day("2024-03-01"), GramsAdded: 3000, AmountAddedCents: 10000},
	}
	assert.Empty(t, Allocate(purchases, nil, 0, 0))
}

func TestSummarizeDaysGroupsAndFlagsCleared(t *testing.T) {
	purchases := []domain.Purchase{
		{ID: "a", Date: day("2024-03-01"), GramsAdded: 2000, AmountAddedCents: 10000},
		{ID: "b", Date: day("2024-03-01"), GramsAdded: 1000, LessGrams: 500, AmountAddedCents: 5000},
		{ID: "c", Date: day("2024-03-02"), GramsAdded: 4000, AmountAddedCents: 20000},
	}
	allocations := []domain.PaymentAllocation{
		{PaymentID: "pay1", PurchaseID: "a", Grams: 2000, AmountCents: 10000},
		{PaymentID: "pay1", PurchaseID: "b", Grams: 500, AmountCents: 5000},
	}

	days := SummarizeDays(purchases, allocations)
	require.Len(t, days, 2)

	first := days[0]
	assert.Equal(t, "2024-03-01", first.Date)
	assert.Equal(t, int64(3000), first.GramsAdded)
	assert.Equal(t, int64(500), first.LessGrams)
	assert.Equal(t, int64(2500), first.EffectiveGrams)
	assert.Equal(t, int64(6000), first.RatePerKgCents)
	assert.True(t, first.Cleared)
	assert.Equal(t, int64(0), first.RemainingGrams)

	second := days[1]
	assert.Equal(t, "2024-03-02", second.Date)
	assert.False(t, second.Cleared)
	assert.Equal(t, int64(4000), second.RemainingGrams)
	assert.Equal(t, int64(20000), second.RemainingAmountCents)
}
