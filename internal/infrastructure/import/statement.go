package csvimport

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ErrMissingColumns is returned when the header lacks a date or amount column
var ErrMissingColumns = errors.New("bank statement is missing required columns")

// StatementFormat names the columns of a bank statement export. Each field lists
// accepted header names in preference order. A file carries either a signed
// amount column or separate withdrawal and deposit columns.
type StatementFormat struct {
	DateColumns       []string
	ReferenceColumns  []string
	AmountColumns     []string
	WithdrawalColumns []string
	DepositColumns    []string
	DateLayouts       []string
	Delimiter         rune
	MaxErrors         int
}

// DefaultStatementFormat accepts the column names common bank exports use
func DefaultStatementFormat() StatementFormat {
	return StatementFormat{
		DateColumns:       []string{"date", "transaction date", "posting date", "value date"},
		ReferenceColumns:  []string{"reference", "ref", "check number", "description", "memo"},
		AmountColumns:     []string{"amount", "net amount"},
		WithdrawalColumns: []string{"withdrawal", "withdrawals", "debit"},
		DepositColumns:    []string{"deposit", "deposits", "credit"},
		DateLayouts:       []string{"2006-01-02", "01/02/2006", "1/2/2006", "2006/01/02", "02-Jan-2006", "Jan 2, 2006"},
		Delimiter:         ',',
		MaxErrors:         100,
	}
}

// StatementLine is one bank transaction; withdrawals are negative
type StatementLine struct {
	Line      int             `json:"line"`
	Reference string          `json:"reference"`
	Amount    decimal.Decimal `json:"amount"`
	Date      time.Time       `json:"date"`
}

// Statement is a parsed bank statement file. Rows with errors are left out of Lines.
type Statement struct {
	Lines     []StatementLine
	Errors    *ErrorCollection
	TotalRows int
}

// ParseStatement reads a bank statement CSV. File level problems return an
// error; row level problems are collected in Statement.Errors.
func ParseStatement(r io.Reader, format StatementFormat) (*Statement, error) {
	if format.Delimiter == 0 {
		format.Delimiter = ','
	}
	p, err := NewCSVParser(r, WithDelimiter(format.Delimiter))
	if err != nil {
		return nil, err
	}
	if err := p.ParseHeader(); err != nil {
		return nil, err
	}

	cols, err := resolveColumns(p, format)
	if err != nil {
		return nil, err
	}

	st := &Statement{Errors: NewErrorCollection(format.MaxErrors)}
	for {
		row, err := p.ReadRow()
		if err == io.EOF {
			break
		}
		var rowErr RowError
		if errors.As(err, &rowErr) {
			st.Errors.Add(rowErr)
			continue
		}
		if err != nil {
			return nil, err
		}
		if row.IsEmpty() {
			continue
		}
		if line, ok := cols.parse(row, format.DateLayouts, st.Errors); ok {
			st.Lines = append(st.Lines, line)
		}
	}
	st.TotalRows = p.TotalRows()
	if len(st.Lines) == 0 && !st.Errors.HasErrors() {
		return nil, ErrNoDataRows
	}
	return st, nil
}

type statementColumns struct {
	date, reference, amount, withdrawal, deposit string
}

func resolveColumns(p *CSVParser, f StatementFormat) (statementColumns, error) {
	var c statementColumns
	var missing []string

	var ok bool
	if c.date, ok = p.FirstHeader(f.DateColumns...); !ok {
		missing = append(missing, "date")
	}
	c.reference, _ = p.FirstHeader(f.ReferenceColumns...)
	if c.amount, ok = p.FirstHeader(f.AmountColumns...); !ok {
		c.withdrawal, _ = p.FirstHeader(f.WithdrawalColumns...)
		c.deposit, _ = p.FirstHeader(f.DepositColumns...)
		if c.withdrawal == "" && c.deposit == "" {
			missing = append(missing, "amount")
		}
	}
	if len(missing) > 0 {
		return c, fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(missing, ", "))
	}
	return c, nil
}

func (c statementColumns) parse(row *Row, layouts []string, errs *ErrorCollection) (StatementLine, bool) {
	line := StatementLine{Line: row.LineNumber, Reference: row.Get(c.reference)}
	ok := true

	raw := row.Get(c.date)
	if raw == "" {
		errs.Add(NewRowError(row.LineNumber, c.date, ErrCodeRequiredField, "date is required"))
		ok = false
	} else if d, err := ParseDate(raw, layouts); err != nil {
		errs.AddValueError(row.LineNumber, c.date, ErrCodeInvalidDate, "unrecognized date", raw)
		ok = false
	} else {
		line.Date = d
	}

	amount, good := c.amountOf(row, errs)
	if !good {
		return line, false
	}
	line.Amount = amount
	return line, ok
}

func (c statementColumns) amountOf(row *Row, errs *ErrorCollection) (decimal.Decimal, bool) {
	field := func(col string) (decimal.Decimal, bool) {
		raw := row.Get(col)
		if raw == "" {
			return decimal.Zero, true
		}
		d, err := ParseAmount(raw)
		if err != nil {
			errs.AddValueError(row.LineNumber, col, ErrCodeInvalidAmount, "not a number", raw)
			return decimal.Zero, false
		}
		return d, true
	}

	if c.amount != "" {
		d, ok := field(c.amount)
		if !ok {
			return d, false
		}
		if d.IsZero() {
			errs.AddValueError(row.LineNumber, c.amount, ErrCodeInvalidAmount, "amount cannot be zero", row.Get(c.amount))
			return d, false
		}
		return d, true
	}

	out, okOut := field(c.withdrawal)
	in, okIn := field(c.deposit)
	if !okOut || !okIn {
		return decimal.Zero, false
	}
	switch {
	case !out.IsZero() && !in.IsZero():
		errs.Add(NewRowError(row.LineNumber, "", ErrCodeAmbiguousRow, "both withdrawal and deposit are set"))
		return decimal.Zero, false
	case out.IsZero() && in.IsZero():
		errs.Add(NewRowError(row.LineNumber, "", ErrCodeRequiredField, "withdrawal or deposit is required"))
		return decimal.Zero, false
	case !out.IsZero():
		return out.Abs().Neg(), true
	default:
		return in.Abs(), true
	}
}

// ParseAmount accepts thousands separators, a currency symbol, and negatives
// written with a sign or in parentheses.
func ParseAmount(s string) (decimal.Decimal, error) {
	v := strings.TrimSpace(s)
	neg := false
	if strings.HasPrefix(v, "(") && strings.HasSuffix(v, ")") {
		neg = true
		v = v[1 : len(v)-1]
	}
	if strings.HasSuffix(v, "-") {
		neg = !neg
		v = strings.TrimSuffix(v, "-")
	}
	if strings.HasPrefix(v, "-") {
		neg = !neg
		v = strings.TrimPrefix(v, "-")
	}
	v = strings.TrimLeft(v, "$€£¥ ")
	v = strings.NewReplacer(",", "", " ", "").Replace(v)
	if v == "" || strings.ContainsAny(v, "+-") {
		return decimal.Zero, fmt.Errorf("invalid amount %q", s)
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q", s)
	}
	if neg {
		d = d.Neg()
	}
	return d, nil
}

// ParseDate tries each layout in turn; the result is midnight UTC
func ParseDate(s string, layouts []string) (time.Time, error) {
	for _, layout := range layouts {
		if t, err := time.Parse(layout, strings.TrimSpace(s)); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}
