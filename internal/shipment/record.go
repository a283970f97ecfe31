package shipment

import (
	"errors"
	"strings"
	"time"

	validator "github.com/go-playground/validator/v10"

	"github.com/noah-isme/shipment-discounts/internal/common"
	"github.com/noah-isme/shipment-discounts/internal/pricing"
)

// ErrMalformedRecord is wrapped by every input validation failure.
var ErrMalformedRecord = errors.New("malformed shipment record")

// Error codes attached to malformed record failures.
const (
	CodeInvalidFieldCount = "invalid_field_count"
	CodeInvalidDate       = "invalid_date"
	CodeInvalidSize       = "invalid_size"
	CodeInvalidProvider   = "invalid_provider"
)

var dateLayouts = []string{
	DateLayout,
	"2006/01/02",
	time.RFC3339,
	"2006-01-02T15:04:05",
}

// Record is a validated input line.
type Record struct {
	Date     time.Time
	Size     pricing.PackageSize
	Provider pricing.Provider
}

type rawRecord struct {
	Date     string `validate:"required,shipdate"`
	Size     string `validate:"required,oneof=S M L"`
	Provider string `validate:"required,provider"`
}

// Parser turns whitespace separated "<date> <size> <provider>" lines into records.
type Parser struct {
	table    *pricing.Table
	validate *validator.Validate
}

// NewParser builds a parser that accepts providers present in table.
func NewParser(table *pricing.Table) *Parser {
	v := validator.New()
	_ = v.RegisterValidation("shipdate", func(fl validator.FieldLevel) bool {
		_, ok := parseDate(fl.Field().String())
		return ok
	})
	_ = v.RegisterValidation("provider", func(fl validator.FieldLevel) bool {
		return table.Has(pricing.Provider(fl.Field().String()))
	})
	return &Parser{table: table, validate: v}
}

// Parse validates line. Failures are *common.AppError values wrapping ErrMalformedRecord.
func (p *Parser) Parse(line string) (Record, error) {
	fields := strings.Fields(line)
	if err := p.validate.Var(fields, "len=3"); err != nil {
		return Record{}, common.NewAppError(CodeInvalidFieldCount, "expected 3 fields", ErrMalformedRecord)
	}
	raw := rawRecord{Date: fields[0], Size: fields[1], Provider: fields[2]}
	if err := p.validate.Struct(raw); err != nil {
		return Record{}, classify(err)
	}
	date, _ := parseDate(raw.Date)
	size, _ := pricing.ParseSize(raw.Size)
	return Record{Date: date, Size: size, Provider: pricing.Provider(raw.Provider)}, nil
}

func classify(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return common.NewAppError(CodeInvalidFieldCount, err.Error(), ErrMalformedRecord)
	}
	fe := verrs[0]
	switch fe.Field() {
	case "Date":
		return common.NewAppError(CodeInvalidDate, "invalid date "+quote(fe.Value()), ErrMalformedRecord)
	case "Size":
		return common.NewAppError(CodeInvalidSize, "unknown package size "+quote(fe.Value()), ErrMalformedRecord)
	default:
		return common.NewAppError(CodeInvalidProvider, "unknown provider "+quote(fe.Value()), ErrMalformedRecord)
	}
}

func quote(v any) string {
	s, _ := v.(string)
	return "\"" + s + "\""
}

func parseDate(value string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return Day(t), true
		}
	}
	return time.Time{}, false
}
