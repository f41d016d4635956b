package currency

import (
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"price-resolution-api/internal/models"
)

// Reference is the currency every rate in the table is expressed in.
const Reference = models.BHD

// Approximate units of BHD per unit of each currency. Good enough to rank
// regions against each other, never shown as an exchange rate.
var referenceRates = map[models.Currency]decimal.Decimal{
	models.BHD: decimal.NewFromInt(1),
	models.AED: decimal.RequireFromString("0.1025"),
	models.SAR: decimal.RequireFromString("0.1003"),
	models.USD: decimal.RequireFromString("0.377"),
	models.KWD: decimal.RequireFromString("1.22"),
	models.QAR: decimal.RequireFromString("0.1035"),
	models.OMR: decimal.RequireFromString("0.98"),
	models.GBP: decimal.RequireFromString("0.47"),
	models.EUR: decimal.RequireFromString("0.41"),
	models.INR: decimal.RequireFromString("0.0045"),
}

type Converter struct {
	logger zerolog.Logger
}

func NewConverter(logger zerolog.Logger) *Converter {
	return &Converter{logger: logger.With().Str("component", "currency").Logger()}
}

func (c *Converter) rateOrOne(cur models.Currency) decimal.Decimal {
	if rate, ok := referenceRates[cur]; ok {
		return rate
	}
	c.logger.Warn().Str("currency", string(cur)).Msg("no reference rate, passing amount through at 1.0")
	return decimal.NewFromInt(1)
}

// ToReference expresses amount in the reference currency.
func (c *Converter) ToReference(amount decimal.Decimal, from models.Currency) decimal.Decimal {
	return amount.Mul(c.rateOrOne(from))
}

// Convert moves amount between two currencies through the reference currency.
func (c *Converter) Convert(amount decimal.Decimal, from, to models.Currency) decimal.Decimal {
	if from == to {
		return amount
	}
	return c.ToReference(amount, from).Div(c.rateOrOne(to))
}
