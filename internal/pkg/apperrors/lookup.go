package apperrors

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

// Lookup turns a missing row into a NotFoundError and wraps anything else.
func Lookup(err error, entity string, id uint) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return NotFound(entity, id)
	}
	return fmt.Errorf("load %s %d: %w", entity, id, err)
}

// FromValidator converts struct tag failures into a ValidationError naming
// the first offending field.
func FromValidator(err error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &ValidationError{Message: err.Error()}
	}
	fe := verrs[0]
	field := toSnake(fe.Field())
	msg := fmt.Sprintf("%s failed on %s", field, fe.Tag())
	if fe.Param() != "" {
		msg = fmt.Sprintf("%s failed on %s=%s", field, fe.Tag(), fe.Param())
	}
	return &ValidationError{Field: field, Message: msg}
}

func toSnake(s string) string {
	isUpper := func(c byte) bool { return c >= 'A' && c <= 'Z' }
	isLower := func(c byte) bool { return c >= 'a' && c <= 'z' }

	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isUpper(c) {
			prevLower := i > 0 && isLower(s[i-1])
			acronymEnd := i > 0 && isUpper(s[i-1]) && i+1 < len(s) && isLower(s[i+1])
			if prevLower || acronymEnd {
				b.WriteByte('_')
			}
			c += 'a' - 'A'
		}
		b.WriteByte(c)
	}
	return b.String()
}
