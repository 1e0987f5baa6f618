package utils

import (
	"fmt"
	"sort"

	"creditline-backend/internal/config"
	"creditline-backend/internal/domain"

	"github.com/shopspring/decimal"
)

// CreditPackage is a purchasable bundle of credits
type CreditPackage struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Credits  decimal.Decimal `json:"credits"`
	Bonus    decimal.Decimal `json:"bonus"`
	PriceUSD decimal.Decimal `json:"price_usd"`
}

// PaymentMethodInfo describes an accepted payment method
type PaymentMethodInfo struct {
	Name         domain.PaymentMethod `json:"name"`
	Enabled      bool                 `json:"enabled"`
	BonusPercent decimal.Decimal      `json:"bonus_percent"`
}

// PurchaseQuote is the price and credit amounts copied onto a new transaction
type PurchaseQuote struct {
	PackageID string
	Method    domain.PaymentMethod
	AmountUSD decimal.Decimal
	Credits   decimal.Decimal
	Bonus     decimal.Decimal
}

// RateTable holds commission rates, fixed prices, packages and payment
// methods. It is built once at startup and read-only afterwards.
type RateTable struct {
	commission map[domain.ActivityType]decimal.Decimal
	fixed      map[domain.ActivityType]decimal.Decimal
	packages   map[string]CreditPackage
	methods    map[domain.PaymentMethod]PaymentMethodInfo
}

var hundred = decimal.NewFromInt(100)

// RoundCurrency rounds to two decimal places, half away from zero
func RoundCurrency(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// DefaultRateTable returns the production rates
func DefaultRateTable() *RateTable {
	rt := &RateTable{
		commission: map[domain.ActivityType]decimal.Decimal{
			domain.ActivityTypeCall:                decimal.RequireFromString("0.70"),
			domain.ActivityTypeMessage:             decimal.RequireFromString("0.65"),
			domain.ActivityTypePaidOperatorMessage: decimal.RequireFromString("0.65"),
			domain.ActivityTypeChat:                decimal.RequireFromString("0.65"),
			domain.ActivityTypeVideo:               decimal.RequireFromString("0.75"),
			domain.ActivityTypeCam:                 decimal.RequireFromString("0.80"),
			domain.ActivityTypeToyControl:          decimal.RequireFromString("0.80"),
			domain.ActivityTypeContent:             decimal.RequireFromString("0.85"),
			domain.ActivityTypeMarketing:           decimal.Zero,
		},
		fixed: map[domain.ActivityType]decimal.Decimal{
			domain.ActivityTypePaidOperatorMessage: decimal.RequireFromString("1.99"),
		},
		packages: map[string]CreditPackage{},
		methods:  map[domain.PaymentMethod]PaymentMethodInfo{},
	}

	for _, p := range []CreditPackage{
		{ID: "starter", Name: "Starter", Credits: decimal.NewFromInt(100), Bonus: decimal.Zero, PriceUSD: decimal.RequireFromString("4.99")},
		{ID: "standard", Name: "Standard", Credits: decimal.NewFromInt(500), Bonus: decimal.NewFromInt(25), PriceUSD: decimal.RequireFromString("24.99")},
		{ID: "deluxe", Name: "Deluxe", Credits: decimal.NewFromInt(1000), Bonus: decimal.NewFromInt(100), PriceUSD: decimal.RequireFromString("49.99")},
		{ID: "premium", Name: "Premium", Credits: decimal.NewFromInt(2500), Bonus: decimal.NewFromInt(500), PriceUSD: decimal.RequireFromString("99.99")},
	} {
		rt.packages[p.ID] = p
	}
	for _, m := range []domain.PaymentMethod{domain.PaymentMethodStripe, domain.PaymentMethodSandbox} {
		rt.methods[m] = PaymentMethodInfo{Name: m, Enabled: true, BonusPercent: decimal.Zero}
	}
	return rt
}

// NewRateTable applies configured overrides on top of the defaults
func NewRateTable(cfg config.BillingConfig) (*RateTable, error) {
	rt := DefaultRateTable()

	for name, rate := range cfg.CommissionRates {
		typ, err := domain.ParseActivityType(name)
		if err != nil {
			return nil, fmt.Errorf("commission rate: %w", err)
		}
		rt.commission[typ] = decimal.NewFromFloat(rate)
	}
	for name, price := range cfg.FixedPrices {
		typ, err := domain.ParseActivityType(name)
		if err != nil {
			return nil, fmt.Errorf("fixed price: %w", err)
		}
		rt.fixed[typ] = RoundCurrency(decimal.NewFromFloat(price))
	}
	for _, p := range cfg.Packages {
		rt.packages[p.ID] = CreditPackage{
			ID:       p.ID,
			Name:     p.Name,
			Credits:  decimal.NewFromFloat(p.Credits),
			Bonus:    decimal.NewFromFloat(p.Bonus),
			PriceUSD: RoundCurrency(decimal.NewFromFloat(p.PriceUSD)),
		}
	}
	for _, m := range cfg.PaymentMethods {
		name := domain.PaymentMethod(m.Name)
		rt.methods[name] = PaymentMethodInfo{
			Name:         name,
			Enabled:      m.Enabled,
			BonusPercent: decimal.NewFromFloat(m.BonusPercent),
		}
	}
	return rt, nil
}

// WithCommission returns a copy with one commission rate replaced. Tests use
// it to substitute fixture rates.
func (rt *RateTable) WithCommission(typ domain.ActivityType, rate decimal.Decimal) *RateTable {
	cp := rt.clone()
	cp.commission[typ] = rate
	return cp
}

func (rt *RateTable) clone() *RateTable {
	cp := &RateTable{
		commission: make(map[domain.ActivityType]decimal.Decimal, len(rt.commission)),
		fixed:      make(map[domain.ActivityType]decimal.Decimal, len(rt.fixed)),
		packages:   make(map[string]CreditPackage, len(rt.packages)),
		methods:    make(map[domain.PaymentMethod]PaymentMethodInfo, len(rt.methods)),
	}
	for k, v := range rt.commission {
		cp.commission[k] = v
	}
	for k, v := range rt.fixed {
		cp.fixed[k] = v
	}
	for k, v := range rt.packages {
		cp.packages[k] = v
	}
	for k, v := range rt.methods {
		cp.methods[k] = v
	}
	return cp
}

// CommissionRate returns the operator's share for an activity type
func (rt *RateTable) CommissionRate(typ domain.ActivityType) decimal.Decimal {
	return rt.commission[typ]
}

// Earnings computes round(amount x rate, 2)
func (rt *RateTable) Earnings(amount decimal.Decimal, typ domain.ActivityType) decimal.Decimal {
	return RoundCurrency(amount.Mul(rt.CommissionRate(typ)))
}

// FixedPrice returns the flat price for a type, if it has one
func (rt *RateTable) FixedPrice(typ domain.ActivityType) (decimal.Decimal, bool) {
	price, ok := rt.fixed[typ]
	return price, ok
}

// Package looks up a credit package by id
func (rt *RateTable) Package(id string) (CreditPackage, bool) {
	p, ok := rt.packages[id]
	return p, ok
}

// Packages lists packages ordered by price
func (rt *RateTable) Packages() []CreditPackage {
	out := make([]CreditPackage, 0, len(rt.packages))
	for _, p := range rt.packages {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].PriceUSD.LessThan(out[j].PriceUSD)
	})
	return out
}

// PaymentMethod looks up a payment method by name
func (rt *RateTable) PaymentMethod(name domain.PaymentMethod) (PaymentMethodInfo, bool) {
	m, ok := rt.methods[name]
	return m, ok
}

// Quote prices a package for a payment method. The method bonus is a
// percentage of the base credits and is added to the package bonus.
func (rt *RateTable) Quote(packageID string, method domain.PaymentMethod) (PurchaseQuote, error) {
	pkg, ok := rt.Package(packageID)
	if !ok {
		return PurchaseQuote{}, domain.Validationf("unknown package %q", packageID)
	}
	m, ok := rt.PaymentMethod(method)
	if !ok || !m.Enabled {
		return PurchaseQuote{}, domain.Validationf("unsupported payment method %q", method)
	}

	bonus := pkg.Bonus
	if m.BonusPercent.IsPositive() {
		bonus = bonus.Add(RoundCurrency(pkg.Credits.Mul(m.BonusPercent).Div(hundred)))
	}

	return PurchaseQuote{
		PackageID: pkg.ID,
		Method:    method,
		AmountUSD: pkg.PriceUSD,
		Credits:   pkg.Credits,
		Bonus:     bonus,
	}, nil
}
