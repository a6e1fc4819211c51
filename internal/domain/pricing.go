package domain

// PromoTerms is the subset of a promotion that pricing needs.
type PromoTerms struct {
	Kind     PromotionKind
	Value    int
	MinSpend int
}

// Quote is the outcome of pricing a purchase. All amounts are in the minor
// currency unit.
type Quote struct {
	Subtotal      int `json:"subtotal"`
	PromoDiscount int `json:"promo_discount"`
	PointsUsed    int `json:"points_used"`
	TotalPayable  int `json:"total_payable"`
}

// CalculateQuote prices a purchase of qty tickets at unitPrice. The promo
// discount applies only when the subtotal meets the promo's minimum spend and
// never exceeds the subtotal. Points cover at most what remains after the
// discount. The result is pure: callers validate inputs beforehand.
func CalculateQuote(unitPrice, qty int, promo *PromoTerms, pointBalance int, usePoints bool) Quote {
	subtotal := unitPrice * qty

	discount := 0
	if promo != nil && subtotal >= promo.MinSpend {
		switch promo.Kind {
		case PromoPercent:
			discount = promo.Value * subtotal / 100
		case PromoFlat:
			discount = promo.Value
		}
		if discount > subtotal {
			discount = subtotal
		}
	}

	points := 0
	if usePoints && pointBalance > 0 {
		points = subtotal - discount
		if pointBalance < points {
			points = pointBalance
		}
	}

	payable := subtotal - discount - points
	if payable < 0 {
		payable = 0
	}

	return Quote{
		Subtotal:      subtotal,
		PromoDiscount: discount,
		PointsUsed:    points,
		TotalPayable:  payable,
	}
}
