// Package flatfile decodes lines of flat text files into typed Go structs.
//
// A flat file is either delimiter separated (space, comma, semicolon, ...)
// or fixed width. The layout of a record is declared once on the destination
// struct with `fft` struct tags, or loaded from a YAML schema, and is turned
// into a [RecordSpec] the first time the type is used.
//
// # Declaring a record
//
//	type Card struct {
//	    _          struct{}  `fft:"mode=delimited,delim=' '"`
//	    NameOnCard string    `fft:"pos=1,required"`
//	    CardNumber string    `fft:"pos=2"`
//	    Amount     float64   `fft:"pos=3"`
//	    Date       time.Time `fft:"pos=4,format='MMddyyyy'"`
//	}
//
// Field options:
//
//   - pos=N: 1-based token position (required)
//   - required: informational unless [WithStrictRequired] is set
//   - skip: the position is consumed but never bound
//   - format='...': date pattern, SimpleDateFormat style or a Go layout
//   - start=N,end=N: 1-based inclusive columns in fixed-width mode
//   - name=...: binding name, defaults to the field name with a lower-case first letter
//
// Record options go on a blank `_ struct{}` field: mode=delimited|fixed,
// delim='c' (or comma, semicolon, tab, space, pipe), skipfirst and
// factory=name.
//
// # Decoding
//
// A [Transformer] binds one record type. [Transformer.LoadRecord] decodes a
// single line and returns every error. [Transformer.Decode] streams a
// [Source] to a [Listener]; per-row failures go to the listener and a false
// return from either callback stops the stream. [Transformer.Records] offers
// the same stream as an iter.Seq2.
//
//	tr, err := flatfile.New[Card]()
//	if err != nil {
//	    return err
//	}
//	stats, err := tr.Decode(ctx, flatfile.File("cards.txt"), flatfile.ListenerFuncs[Card]{
//	    OnRecord: func(c *Card) bool { fmt.Println(c.NameOnCard); return true },
//	})
//
// # Errors
//
// Errors are classified with [ErrConfig], [ErrParse] and [ErrSecurity].
// Parse errors are per row and never end a stream. Configuration, security
// and I/O errors end it, and the source is closed on every path.
package flatfile
