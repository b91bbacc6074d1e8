package artifact

import "strconv"

// Total is the size a server declared for a download. The zero value is
// UnknownTotal, used when no Content-Length header was sent.
type Total struct {
	bytes int64
	known bool
}

// UnknownTotal is reported when the server did not declare a length.
var UnknownTotal = Total{}

// KnownTotal returns a Total for a declared length of n bytes.
func KnownTotal(n int64) Total {
	return Total{bytes: n, known: true}
}

// Known reports whether the server declared a length.
func (t Total) Known() bool {
	return t.known
}

// Bytes returns the declared length. It is only meaningful when Known
// returns true.
func (t Total) Bytes() int64 {
	return t.bytes
}

// String returns the byte count, or "unknown".
func (t Total) String() string {
	if !t.known {
		return "unknown"
	}
	return strconv.FormatInt(t.bytes, 10)
}

// DownloadProgress is called after every chunk written by Download with the
// cumulative byte count and the declared total.
type DownloadProgress func(received int64, total Total)

// EntryProgress is called once per archive entry with the entry's name as
// stored in the archive.
type EntryProgress func(name string)
