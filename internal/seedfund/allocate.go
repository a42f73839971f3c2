package seedfund

import (
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Weight is one beneficiary's claim on a pool.
type Weight struct {
	ID    uuid.UUID
	Value decimal.Decimal
}

// Share is one beneficiary's whole-seed payout.
type Share struct {
	ID    uuid.UUID
	Value int64
}

// Allocate splits pool proportionally to weights. Each share is floored and the
// seeds left over go one at a time to the largest remainders, ties broken by id,
// so the returned shares always add up to pool. Zero and negative weights are
// ignored; an empty or zero-sum weight set yields no shares.
func Allocate(pool int64, weights []Weight) []Share {
	if pool <= 0 {
		return nil
	}
	eligible := make([]Weight, 0, len(weights))
	sum := decimal.Zero
	for _, w := range weights {
		if !w.Value.IsPositive() {
			continue
		}
		eligible = append(eligible, w)
		sum = sum.Add(w.Value)
	}
	if !sum.IsPositive() {
		return nil
	}

	type slot struct {
		id        uuid.UUID
		value     int64
		remainder decimal.Decimal
	}
	poolDec := decimal.NewFromInt(pool)
	slots := make([]slot, 0, len(eligible))
	var assigned int64
	for _, w := range eligible {
		// pool*w = q*sum + r with 0 <= r < sum, so r/sum is the exact fractional part
		q, r := poolDec.Mul(w.Value).QuoRem(sum, 0)
		slots = append(slots, slot{id: w.ID, value: q.IntPart(), remainder: r})
		assigned += q.IntPart()
	}

	sort.Slice(slots, func(i, j int) bool {
		if c := slots[i].remainder.Cmp(slots[j].remainder); c != 0 {
			return c > 0
		}
		return slots[i].id.String() < slots[j].id.String()
	})
	for i := 0; assigned < pool; i = (i + 1) % len(slots) {
		slots[i].value++
		assigned++
	}

	shares := make([]Share, 0, len(slots))
	for _, s := range slots {
		if s.value == 0 {
			continue
		}
		shares = append(shares, Share{ID: s.id, Value: s.value})
	}
	sort.Slice(shares, func(i, j int) bool { return shares[i].ID.String() < shares[j].ID.String() })
	return shares
}

// Pools splits a fund total into whole-seed creator and spender pools. The
// fractional part of the total is not distributable and stays on the fund.
func Pools(total, creatorFraction decimal.Decimal) (creator, spender int64) {
	whole := total.Floor().IntPart()
	if whole <= 0 {
		return 0, 0
	}
	creator = total.Mul(creatorFraction).Floor().IntPart()
	if creator > whole {
		creator = whole
	}
	if creator < 0 {
		creator = 0
	}
	return creator, whole - creator
}
