package flatfile

// Listener receives decoded rows. Returning false from either method stops
// the stream after the current line.
type Listener[T any] interface {
	FoundRecord(rec *T) bool
	UnresolvableRecord(raw string) bool
}

// DetailedListener is optionally implemented by a Listener that wants the
// line number and cause of unresolvable rows. When present it is called
// instead of UnresolvableRecord.
type DetailedListener interface {
	UnresolvedRow(row *RowError) bool
}

// ListenerFuncs adapts closures to a Listener. A nil callback continues.
type ListenerFuncs[T any] struct {
	OnRecord     func(rec *T) bool
	OnUnresolved func(row *RowError) bool
}

func (l ListenerFuncs[T]) FoundRecord(rec *T) bool {
	if l.OnRecord == nil {
		return true
	}
	return l.OnRecord(rec)
}

func (l ListenerFuncs[T]) UnresolvableRecord(raw string) bool {
	return l.UnresolvedRow(&RowError{Raw: raw})
}

func (l ListenerFuncs[T]) UnresolvedRow(row *RowError) bool {
	if l.OnUnresolved == nil {
		return true
	}
	return l.OnUnresolved(row)
}

// Collector keeps every record and every unresolvable row in memory. It is
// meant for tests and small inputs.
type Collector[T any] struct {
	Records    []*T
	Unresolved []*RowError
}

func (c *Collector[T]) FoundRecord(rec *T) bool {
	c.Records = append(c.Records, rec)
	return true
}

func (c *Collector[T]) UnresolvableRecord(raw string) bool {
	return c.UnresolvedRow(&RowError{Raw: raw})
}

func (c *Collector[T]) UnresolvedRow(row *RowError) bool {
	c.Unresolved = append(c.Unresolved, row)
	return true
}
