package formats

import (
	"time"

	"github.com/JonMunkholm/flatfile/internal/catalog"
	"github.com/JonMunkholm/flatfile/internal/store"
)

func init() {
	registerCards()
}

// Card is a card transaction separated by single spaces, one per line:
//
//	Mathew_Thomas 4111111111111111 02 2008 12.89 222 10212005
type Card struct {
	_                struct{}  `fft:"mode=delimited,delim=space"`
	NameOnCard       string    `fft:"pos=1,required" json:"nameOnCard"`
	CardNumber       string    `fft:"pos=2" json:"cardNumber"`
	ExpMonth         int       `fft:"pos=3" json:"expMonth"`
	ExpYear          int       `fft:"pos=4" json:"expYear"`
	Amount           float64   `fft:"pos=5" json:"amount"`
	CardSecurityCode string    `fft:"pos=6" json:"cardSecurityCode"`
	TransactionDate  time.Time `fft:"pos=7,format=MMddyyyy" json:"transactionDate"`
}

// SemicolonCard carries the same fields as Card separated by semicolons,
// so names may contain spaces.
type SemicolonCard struct {
	_                struct{}  `fft:"delim=semicolon"`
	NameOnCard       string    `fft:"pos=1,required" json:"nameOnCard"`
	CardNumber       string    `fft:"pos=2" json:"cardNumber"`
	ExpMonth         int       `fft:"pos=3" json:"expMonth"`
	ExpYear          int       `fft:"pos=4" json:"expYear"`
	Amount           float64   `fft:"pos=5" json:"amount"`
	CardSecurityCode string    `fft:"pos=6" json:"cardSecurityCode"`
	TransactionDate  time.Time `fft:"pos=7,format=MMddyyyy" json:"transactionDate"`
}

// FixedCard is the fixed-width card layout. Columns are 1-based and
// inclusive.
type FixedCard struct {
	_                struct{}  `fft:"mode=fixed"`
	NameOnCard       string    `fft:"pos=1,start=1,end=13,required" json:"nameOnCard"`
	CardNumber       string    `fft:"pos=2,start=14,end=29" json:"cardNumber"`
	ExpMonth         int       `fft:"pos=3,start=30,end=31" json:"expMonth"`
	ExpYear          int       `fft:"pos=4,start=32,end=35" json:"expYear"`
	Amount           float64   `fft:"pos=5,start=36,end=41" json:"amount"`
	CardSecurityCode string    `fft:"pos=6,start=42,end=44" json:"cardSecurityCode"`
	TransactionDate  time.Time `fft:"pos=7,start=45,end=52,format=MMddyyyy" json:"transactionDate"`
}

var cardColumns = []string{
	"name_on_card",
	"card_number",
	"exp_month",
	"exp_year",
	"amount",
	"card_security_code",
	"transaction_date",
}

func cardRow(name, number string, month, year int, amount float64, code string, date time.Time) []any {
	return []any{
		store.ToPgText(name),
		store.ToPgText(number),
		store.ToPgInt4(month),
		store.ToPgInt4(year),
		store.FloatToPgNumeric(amount),
		store.ToPgText(code),
		store.ToPgDate(date),
	}
}

func registerCards() {
	catalog.Register(catalog.Define(
		catalog.Info{
			Key:         "cards",
			Label:       "Card transactions",
			Description: "Space separated card transactions",
			Table:       "card_transactions",
		},
		cardColumns,
		func(c *Card) []any {
			return cardRow(c.NameOnCard, c.CardNumber, c.ExpMonth, c.ExpYear, c.Amount, c.CardSecurityCode, c.TransactionDate)
		},
	))

	catalog.Register(catalog.Define(
		catalog.Info{
			Key:         "cards_semicolon",
			Label:       "Card transactions (semicolon)",
			Description: "Semicolon separated card transactions",
			Table:       "card_transactions",
		},
		cardColumns,
		func(c *SemicolonCard) []any {
			return cardRow(c.NameOnCard, c.CardNumber, c.ExpMonth, c.ExpYear, c.Amount, c.CardSecurityCode, c.TransactionDate)
		},
	))

	catalog.Register(catalog.Define(
		catalog.Info{
			Key:         "cards_fixed",
			Label:       "Card transactions (fixed width)",
			Description: "Fixed-width card transactions, 52 columns per line",
			Table:       "card_transactions",
		},
		cardColumns,
		func(c *FixedCard) []any {
			return cardRow(c.NameOnCard, c.CardNumber, c.ExpMonth, c.ExpYear, c.Amount, c.CardSecurityCode, c.TransactionDate)
		},
	))
}
