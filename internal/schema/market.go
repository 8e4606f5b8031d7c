package schema

import "time"

// Canonical field names of the market session calendar.
const (
	FieldDate         = "date"
	FieldDescription  = "description"
	FieldSessionType  = "session_type"
	FieldCircularDate = "circular_date"
)

// SessionTypes is the closed domain of the session_type field, in canonical
// order.
var SessionTypes = []string{
	"Trading Holiday",
	"Settlement Holiday",
	"Special Session",
}

// ISOLayout is the date layout accepted in input files.
const ISOLayout = "2006-01-02"

// Market returns the deployment registry for session-calendar stores: the
// session date, a free-text description, the session type restricted to
// SessionTypes, and the date of the exchange circular announcing it.
func Market() Schema {
	return MustNew([]Field{
		{Name: FieldDate, Type: Date, Layout: ISOLayout},
		{Name: FieldDescription, Type: Text},
		{Name: FieldSessionType, Type: Categorical, Domain: SessionTypes},
		{Name: FieldCircularDate, Type: Date, Layout: ISOLayout},
	})
}

// Session is the statically-typed record of one market-calendar row. It
// mirrors Market() field-for-field so row access is compile-time checked
// instead of string-keyed.
type Session struct {
	Date         time.Time
	Description  string
	SessionType  string
	CircularDate time.Time

	// HasDate / HasCircularDate distinguish a present date from the null
	// marker produced by lenient casts of empty cells.
	HasDate         bool
	HasCircularDate bool
}
