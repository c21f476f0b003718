package service

import "math/big"

// PayoutParams are the parimutuel settlement parameters in basis points.
type PayoutParams struct {
	// FeeBps is the protocol fee retained from the total pool.
	FeeBps int64
	// MinMultiplierBps and MaxMultiplierBps clamp the effective payout
	// multiplier applied to a winning stake.
	MinMultiplierBps int64
	MaxMultiplierBps int64
}

// DefaultPayoutParams returns the standard 5% fee with a [1.1x, 10x]
// multiplier clamp.
func DefaultPayoutParams() PayoutParams {
	return PayoutParams{
		FeeBps:           500,
		MinMultiplierBps: 11000,
		MaxMultiplierBps: 100000,
	}
}

// WithFee returns a copy of p with the fee replaced.
func (p PayoutParams) WithFee(feeBps int64) PayoutParams {
	p.FeeBps = feeBps
	return p
}

// ComputePayout returns the payout in minor units for a winning stake of
// amount against the frozen winningPool and totalPool.
//
// The uncapped payout is (amount / winningPool) * totalPool * (1 - fee),
// floored. When the implied multiplier falls outside the clamp bounds the
// payout is amount * bound instead. An empty winning pool pays the maximum
// multiplier; settlement never pays out of it, so the clamp is the only
// sensible answer there.
//
// All arithmetic is exact over big.Int. Pool totals are int64 and products
// against basis points can exceed 63 bits, so intermediate values never
// touch machine words.
func ComputePayout(amount, winningPool, totalPool int64, params PayoutParams) int64 {
	if amount <= 0 {
		return 0
	}
	if winningPool <= 0 {
		return mulBps(amount, params.MaxMultiplierBps)
	}

	a := big.NewInt(amount)
	w := big.NewInt(winningPool)
	t := big.NewInt(totalPool)
	keepBps := big.NewInt(10000 - params.FeeBps)
	tenThousand := big.NewInt(10000)

	// raw = a * t * keepBps / (w * 10000), floored
	num := new(big.Int).Mul(a, t)
	num.Mul(num, keepBps)
	den := new(big.Int).Mul(w, tenThousand)

	// Multiplier clamp compared by cross-multiplication:
	//   t*keepBps / (w*10000)  vs  bound/10000
	// ⇔ t*keepBps  vs  w*bound
	mNum := new(big.Int).Mul(t, keepBps)
	if mNum.Cmp(new(big.Int).Mul(w, big.NewInt(params.MinMultiplierBps))) < 0 {
		return mulBps(amount, params.MinMultiplierBps)
	}
	if mNum.Cmp(new(big.Int).Mul(w, big.NewInt(params.MaxMultiplierBps))) > 0 {
		return mulBps(amount, params.MaxMultiplierBps)
	}

	return new(big.Int).Quo(num, den).Int64()
}

// mulBps returns amount * bps/10000, floored, exact.
func mulBps(amount, bps int64) int64 {
	v := new(big.Int).Mul(big.NewInt(amount), big.NewInt(bps))
	return v.Quo(v, big.NewInt(10000)).Int64()
}
