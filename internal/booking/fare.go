package booking

// Fare is the price breakdown of a booking in minor units.
type Fare struct {
	BaseCents     int64
	DiscountCents int64
	TaxCents      int64
}

// TotalCents is base - discount + tax.
func (f Fare) TotalCents() int64 {
	return f.BaseCents - f.DiscountCents + f.TaxCents
}

// ComputeFare prices seats at pricePerSeat. A subscription-covered booking gets
// one seat for free. Tax is taxRateBps basis points of the discounted base,
// rounded half up.
func ComputeFare(pricePerSeatCents int64, seats int, subscriptionCovered bool, taxRateBps int) Fare {
	f := Fare{BaseCents: pricePerSeatCents * int64(seats)}
	if subscriptionCovered && seats > 0 {
		f.DiscountCents = pricePerSeatCents
	}
	if taxRateBps > 0 {
		taxable := f.BaseCents - f.DiscountCents
		f.TaxCents = (taxable*int64(taxRateBps) + 5000) / 10000
	}
	return f
}
