package validate

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var (
	reEmail   = regexp.MustCompile(`^[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}$`)
	reID      = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,63}$`)
	reSession = regexp.MustCompile(`^cs_[A-Za-z0-9_]{1,250}$`)
)

var v = newValidator()

func newValidator() *validator.Validate {
	vv := validator.New(validator.WithRequiredStructEnabled())
	vv.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = vv.RegisterValidation("nonnegprice", func(fl validator.FieldLevel) bool {
		d, err := decimal.NewFromString(fl.Field().String())
		return err == nil && !d.IsNegative()
	})
	_ = vv.RegisterValidation("resourceid", func(fl validator.FieldLevel) bool {
		_, ok := ID(fl.Field().String())
		return ok
	})
	return vv
}

// FieldError names the first offending field by its JSON path.
type FieldError struct {
	Field string
	Rule  string
}

func (e *FieldError) Error() string {
	switch e.Rule {
	case "required":
		return e.Field + " is required"
	case "min":
		return e.Field + " must not be empty"
	default:
		return fmt.Sprintf("%s is invalid", e.Field)
	}
}

// Struct runs the validate tags on s.
func Struct(s any) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return &FieldError{Field: jsonPath(fe.Namespace()), Rule: fe.Tag()}
	}
	return err
}

// jsonPath drops the root struct name: "createSessionRequest.cartItems[0].total" -> "cartItems[0].total".
func jsonPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func Email(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if len(s) == 0 || len(s) > 100 {
		return "", false
	}
	return s, reEmail.MatchString(s)
}

// ID validates a product or cart line id. The same rule backs the
// "resourceid" struct tag.
func ID(s string) (string, bool) {
	return s, reID.MatchString(s)
}

// SessionID validates a hosted checkout session id.
func SessionID(s string) (string, bool) {
	s = strings.TrimSpace(s)
	return s, reSession.MatchString(s)
}

// Password enforces the login password shape.
func Password(s string) bool {
	l := len(s)
	if l < 8 || l > 64 {
		return false
	}
	var hasLower, hasUpper, hasDigit, hasSymbol bool
	for _, r := range s {
		switch {
		case 'a' <= r && r <= 'z':
			hasLower = true
		case 'A' <= r && r <= 'Z':
			hasUpper = true
		case '0' <= r && r <= '9':
			hasDigit = true
		default:
			hasSymbol = true
		}
	}
	return hasLower && hasUpper && hasDigit && hasSymbol
}
