package cart

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/hitoshi/storefront/internal/model"
)

// ErrUnknownCoupon は未知のクーポンコードが指定された場合に返される。
var ErrUnknownCoupon = errors.New("unknown coupon code")

// Pricing は配送料の設定を保持する。
type Pricing struct {
	FreeDeliveryThreshold decimal.Decimal
	DeliveryFee           decimal.Decimal
}

// DefaultPricing は送料無料の閾値50.00、配送料4.99の設定を返す。
func DefaultPricing() Pricing {
	return Pricing{
		FreeDeliveryThreshold: decimal.RequireFromString("50.00"),
		DeliveryFee:           decimal.RequireFromString("4.99"),
	}
}

// Totals はカートの金額内訳。
type Totals struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Delivery decimal.Decimal `json:"delivery"`
	Discount decimal.Decimal `json:"discount"`
	Total    decimal.Decimal `json:"total"`
}

// Subtotal は明細の単価×数量の合計を返す。
func Subtotal(items []model.CartLineItem) decimal.Decimal {
	sum := decimal.Zero
	for _, li := range items {
		sum = sum.Add(li.LineTotal())
	}
	return sum
}

// DeliveryCharge は小計に対する配送料を返す。
// 小計が閾値以上、またはカートが空の場合は0。
func (p Pricing) DeliveryCharge(subtotal decimal.Decimal, empty bool) decimal.Decimal {
	if empty || subtotal.GreaterThanOrEqual(p.FreeDeliveryThreshold) {
		return decimal.Zero
	}
	return p.DeliveryFee
}

type coupon func(subtotal decimal.Decimal) decimal.Decimal

var coupons = map[string]coupon{
	"SAVE10": func(subtotal decimal.Decimal) decimal.Decimal {
		return subtotal.Mul(decimal.NewFromInt(10)).Div(decimal.NewFromInt(100)).Round(2)
	},
	"FREE5": func(decimal.Decimal) decimal.Decimal {
		return decimal.NewFromInt(5)
	},
}

// NormalizeCouponCode は前後の空白を除き大文字にそろえる。
func NormalizeCouponCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ApplyCoupon はクーポンコードに対する割引額を返す。
// コードは大文字小文字を区別しない。未知のコードは割引0とErrUnknownCouponを返す。
func ApplyCoupon(code string, subtotal decimal.Decimal) (decimal.Decimal, error) {
	fn, ok := coupons[NormalizeCouponCode(code)]
	if !ok {
		return decimal.Zero, ErrUnknownCoupon
	}
	return fn(subtotal), nil
}

// Summarize は明細とクーポンから金額内訳を計算する。
// couponCodeが空なら割引なし。合計は0未満にならない。
func (p Pricing) Summarize(items []model.CartLineItem, couponCode string) (Totals, error) {
	subtotal := Subtotal(items)
	t := Totals{
		Subtotal: subtotal,
		Delivery: p.DeliveryCharge(subtotal, len(items) == 0),
		Discount: decimal.Zero,
	}

	var err error
	if couponCode != "" {
		t.Discount, err = ApplyCoupon(couponCode, subtotal)
	}

	t.Total = t.Subtotal.Add(t.Delivery).Sub(t.Discount)
	if t.Total.IsNegative() {
		t.Total = decimal.Zero
	}
	return t, err
}
