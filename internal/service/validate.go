package service

import (
	"errors"
	"reflect"
	"strconv"
	"strings"
	"unicode/utf8"

	"posterminal/internal/apierror"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// decimal.Decimal validates as a number so min=0, gt=0 and required work on it.
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
	// money: typed text that parses as a non-negative amount.
	_ = v.RegisterValidation("money", func(fl validator.FieldLevel) bool {
		_, err := parseMoney(fl.Field().String())
		return err == nil
	})
	// trimmed_min=N: at least N characters once surrounding blanks are removed.
	_ = v.RegisterValidation("trimmed_min", func(fl validator.FieldLevel) bool {
		n, err := strconv.Atoi(fl.Param())
		if err != nil {
			return false
		}
		return utf8.RuneCountInString(strings.TrimSpace(fl.Field().String())) >= n
	})
	return v
}

// validateStruct runs the validator tags on req and maps failures into an
// apierror.ValidationError keyed by field name.
func validateStruct(req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fe.Tag()
	}
	return apierror.NewValidation(fields)
}

var errNegativeAmount = errors.New("amount is negative")

func parseMoney(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, err
	}
	if d.IsNegative() {
		return decimal.Zero, errNegativeAmount
	}
	return d, nil
}

// optionalMoney parses s, treating blank as zero. Callers validate first.
func optionalMoney(s string) decimal.Decimal {
	if strings.TrimSpace(s) == "" {
		return decimal.Zero
	}
	d, _ := parseMoney(s)
	return d
}

func optionalString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
