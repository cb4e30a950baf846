package formats

import (
	"time"

	"github.com/JonMunkholm/flatfile/internal/catalog"
	"github.com/JonMunkholm/flatfile/internal/store"
)

func init() {
	registerPeople()
}

// Person is one row of a comma separated member list with a header line.
type Person struct {
	_        struct{}  `fft:"delim=comma,skipfirst"`
	Name     string    `fft:"pos=1,required" json:"name"`
	Email    string    `fft:"pos=2" json:"email"`
	Age      int       `fft:"pos=3" json:"age"`
	JoinDate time.Time `fft:"pos=4,format=yyyy-MM-dd" json:"joinDate"`
}

func registerPeople() {
	catalog.Register(catalog.Define(
		catalog.Info{
			Key:         "people",
			Label:       "People",
			Description: "Comma separated member list with a header line",
			Table:       "people",
		},
		[]string{"name", "email", "age", "join_date"},
		func(p *Person) []any {
			return []any{
				store.ToPgText(p.Name),
				store.ToPgText(p.Email),
				store.ToPgInt4(p.Age),
				store.ToPgDate(p.JoinDate),
			}
		},
	))
}
