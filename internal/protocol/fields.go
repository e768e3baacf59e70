package protocol

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Protocol "no value" sentinels. They never leave this package: decode
// substitutes the session's configured representation.
const (
	unsetFloat = math.MaxFloat64
	unsetInt   = math.MaxInt32
)

// Defaults configures what decoded sentinel values look like to callers.
type Defaults struct {
	EmptyPrice float64
	EmptySize  float64
	Unset      float64
	Timezone   *time.Location
}

func DefaultDefaults() Defaults {
	nan := math.NaN()
	return Defaults{EmptyPrice: nan, EmptySize: nan, Unset: nan, Timezone: time.UTC}
}

// fieldWriter builds a frame payload of NUL-terminated fields.
type fieldWriter struct {
	buf bytes.Buffer
}

func (w *fieldWriter) str(s string) *fieldWriter {
	w.buf.WriteString(s)
	w.buf.WriteByte(0)
	return w
}

func (w *fieldWriter) int(v int) *fieldWriter   { return w.str(strconv.Itoa(v)) }
func (w *fieldWriter) int64(v int64) *fieldWriter { return w.str(strconv.FormatInt(v, 10)) }

func (w *fieldWriter) bool(v bool) *fieldWriter {
	if v {
		return w.str("1")
	}
	return w.str("0")
}

func (w *fieldWriter) float(v float64) *fieldWriter {
	if v == unsetFloat || math.IsNaN(v) {
		return w.str("")
	}
	if math.IsInf(v, 1) {
		return w.str("Infinite")
	}
	return w.str(strconv.FormatFloat(v, 'g', -1, 64))
}

func (w *fieldWriter) decimal(v decimal.Decimal) *fieldWriter {
	return w.str(v.String())
}

// nullDecimal writes an empty field for an unset optional price.
func (w *fieldWriter) nullDecimal(v decimal.NullDecimal) *fieldWriter {
	if !v.Valid {
		return w.str("")
	}
	return w.str(v.Decimal.String())
}

func (w *fieldWriter) payload() []byte {
	return w.buf.Bytes()
}

// fieldReader walks the fields of one inbound frame. Reads past the end
// return zero values: older servers legitimately omit trailing fields and
// the decoder applies version gates before trusting them.
type fieldReader struct {
	fields [][]byte
	pos    int
	d      Defaults
	err    error
}

func newFieldReader(payload []byte, d Defaults) *fieldReader {
	fields := bytes.Split(payload, []byte{0})
	// a well-formed payload ends with a terminating NUL, drop the tail
	if n := len(fields); n > 0 && len(fields[n-1]) == 0 {
		fields = fields[:n-1]
	}
	return &fieldReader{fields: fields, d: d}
}

func (r *fieldReader) remaining() int {
	return len(r.fields) - r.pos
}

func (r *fieldReader) next() (string, bool) {
	if r.pos >= len(r.fields) {
		return "", false
	}
	s := string(r.fields[r.pos])
	r.pos++
	return s, true
}

func (r *fieldReader) str() string {
	s, _ := r.next()
	return s
}

func (r *fieldReader) int() int {
	s, ok := r.next()
	if !ok || s == "" {
		return 0
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		r.fail("int", s, err)
		return 0
	}
	return v
}

func (r *fieldReader) int64() int64 {
	s, ok := r.next()
	if !ok || s == "" {
		return 0
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		r.fail("int64", s, err)
		return 0
	}
	return v
}

func (r *fieldReader) bool() bool {
	return r.int() != 0
}

// float translates protocol sentinels at the boundary: an empty or unset
// field becomes the configured Unset representation.
func (r *fieldReader) float() float64 {
	s, ok := r.next()
	if !ok || s == "" {
		return r.d.Unset
	}
	if s == "Infinite" {
		return math.Inf(1)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		r.fail("float", s, err)
		return r.d.Unset
	}
	if v == unsetFloat {
		return r.d.Unset
	}
	return v
}

// float0 is for identity-bearing fields (contract strike): empty means
// zero, not "no value", so hashes line up with caller-built contracts.
func (r *fieldReader) float0() float64 {
	s, ok := r.next()
	if !ok || s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		r.fail("float", s, err)
		return 0
	}
	return v
}

func (r *fieldReader) decimal() decimal.Decimal {
	s, ok := r.next()
	if !ok || s == "" {
		return decimal.Zero
	}
	v, err := decimal.NewFromString(s)
	if err != nil {
		r.fail("decimal", s, err)
		return decimal.Zero
	}
	return v
}

func (r *fieldReader) nullDecimal() decimal.NullDecimal {
	s, ok := r.next()
	if !ok || s == "" {
		return decimal.NullDecimal{}
	}
	v, err := decimal.NewFromString(s)
	if err != nil {
		r.fail("decimal", s, err)
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: v, Valid: true}
}

func (r *fieldReader) fail(typ, raw string, err error) {
	if r.err == nil {
		r.err = fmt.Errorf("field %d: bad %s %q: %w", r.pos-1, typ, raw, err)
	}
}
