package flatfile

import (
	"io"
	"strings"
	"time"
)

const (
	cardLine      = "Mathew_Thomas 4111111111111111 02 2008 12.89 222 10212005"
	fixedCardLine = "Mathew_Thomas4111111111111111022008 12.8922210212005"
)

type delimitedCard struct {
	_                struct{}  `fft:"mode=delimited,delim=' '"`
	NameOnCard       string    `fft:"pos=1,required"`
	CardNumber       string    `fft:"pos=2"`
	ExpMonth         int       `fft:"pos=3"`
	ExpYear          int       `fft:"pos=4"`
	Amount           float64   `fft:"pos=5"`
	CardSecurityCode string    `fft:"pos=6"`
	TransactionDate  time.Time `fft:"pos=7,format='MMddyyyy'"`
}

type semicolonCard struct {
	_          struct{} `fft:"delim=';'"`
	NameOnCard string   `fft:"pos=1"`
	CardNumber string   `fft:"pos=2,skip"`
	Amount     float64  `fft:"pos=3"`
}

type fixedCard struct {
	_                struct{}  `fft:"mode=fixed"`
	NameOnCard       string    `fft:"pos=1,start=1,end=13"`
	CardNumber       string    `fft:"pos=2,start=14,end=29"`
	ExpMonth         int       `fft:"pos=3,start=30,end=31"`
	ExpYear          int       `fft:"pos=4,start=32,end=35"`
	Amount           float64   `fft:"pos=5,start=36,end=41"`
	CardSecurityCode string    `fft:"pos=6,start=42,end=44"`
	TransactionDate  time.Time `fft:"pos=7,start=45,end=52,format='MMddyyyy'"`
}

type csvPerson struct {
	_        struct{}  `fft:"delim=comma,skipfirst"`
	Name     string    `fft:"pos=1,required"`
	Email    string    `fft:"pos=2"`
	Age      int       `fft:"pos=3"`
	JoinDate time.Time `fft:"pos=4,format=yyyy-MM-dd"`
}

type pair struct {
	_     struct{} `fft:"delim=comma"`
	Key   string   `fft:"pos=1,required"`
	Value int      `fft:"pos=2"`
}

type customFactoryPair struct {
	_     struct{} `fft:"delim=comma,factory=pooled"`
	Key   string   `fft:"pos=1"`
	Value int      `fft:"pos=2"`
}

type untagged struct {
	Name   string
	Joined time.Time
}

type upper string

func (u *upper) UnmarshalText(b []byte) error {
	*u = upper(strings.ToUpper(string(b)))
	return nil
}

// closeTracker records whether the decoder closed it.
type closeTracker struct {
	io.Reader
	closed bool
}

func (c *closeTracker) Close() error {
	c.closed = true
	return nil
}

func lines(ls ...string) string {
	return strings.Join(ls, "\n") + "\n"
}
