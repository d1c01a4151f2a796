/**
 * @description
 * Shared amount arithmetic for the ledger: overflow-checked multiplication
 * used when sizing deposits and billing windows, and the basis-point fee
 * computation applied to every settled payout.
 */

package domain

// MaxFeeBps is the ceiling on the platform fee rate: 1000 bps (10%).
const MaxFeeBps = 1000

// CheckedMul multiplies two non-negative int64 values, reporting false when
// the product does not fit in an int64.
func CheckedMul(a, b int64) (int64, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	product := a * b
	if product/b != a {
		return 0, false
	}
	return product, true
}

// FeeFor returns floor(gross * feeBps / 10000). Integer floor division keeps
// the rounding dust with the payee's net amount, so net + fee == gross holds
// exactly for every settlement.
func FeeFor(gross, feeBps int64) int64 {
	if gross <= 0 || feeBps <= 0 {
		return 0
	}
	// Decomposed so gross*feeBps never overflows: with feeBps <= 10000 the
	// quotient term is bounded by gross and the remainder term by 10^8.
	quotient := gross / 10000
	remainder := gross % 10000
	return quotient*feeBps + remainder*feeBps/10000
}
