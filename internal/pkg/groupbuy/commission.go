package groupbuy

import "github.com/juntaplay/juntaplay/app/models"

// Commission rates in basis points, keyed by ledger source type. One
// canonical rate per source type; new trigger paths get their own source
// type instead of overloading an existing rate.
var commissionRates = map[string]int{
	models.CommissionSourceGroupReferral: 2500, // 25%
}

// CommissionRateBps returns the rate for a source type, or 0 when the source
// type earns no commission.
func CommissionRateBps(sourceType string) int {
	return commissionRates[sourceType]
}

// CommissionAmountCents computes the commission over an order amount in minor
// units. Fractions of a cent are truncated in the platform's favor.
func CommissionAmountCents(orderAmountCents int64, rateBps int) int64 {
	if orderAmountCents <= 0 || rateBps <= 0 {
		return 0
	}
	return orderAmountCents * int64(rateBps) / 10000
}
