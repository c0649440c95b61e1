// Package pricing computes order totals. The policy is injected into the
// purchase service so tax rules can change without touching order logic.
package pricing

import (
	"github.com/smallbiznis/qalam/internal/config"
	"go.uber.org/fx"
)

// Totals is the amount breakdown stored on an order, in minor currency units.
type Totals struct {
	Subtotal int64
	Discount int64
	Tax      int64
	Total    int64
}

// TotalsPolicy derives order totals from a subtotal and a resolved discount.
type TotalsPolicy func(subtotal, discount int64) Totals

// NewFlatTaxPolicy returns a policy applying taxBasisPoints (1/100th of a
// percent) on the discounted subtotal. Total is never negative.
func NewFlatTaxPolicy(taxBasisPoints int64) TotalsPolicy {
	return func(subtotal, discount int64) Totals {
		if subtotal < 0 {
			subtotal = 0
		}
		if discount < 0 {
			discount = 0
		}
		if discount > subtotal {
			discount = subtotal
		}

		taxable := subtotal - discount
		tax := int64(0)
		if taxBasisPoints > 0 {
			tax = taxable * taxBasisPoints / 10000
		}

		return Totals{
			Subtotal: subtotal,
			Discount: discount,
			Tax:      tax,
			Total:    taxable + tax,
		}
	}
}

func ProvidePolicy(cfg config.Config) TotalsPolicy {
	return NewFlatTaxPolicy(cfg.TaxBasisPoints)
}

// Module provides the configured totals policy.
var Module = fx.Module("pricing",
	fx.Provide(ProvidePolicy),
)
