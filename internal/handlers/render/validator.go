package render

import (
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
)

// Birthday and other dates are sent as YYYY-MM-DD
const DateLayout = time.DateOnly

func newValidator() *validator.Validate {
	validate := validator.New()
	configureValidator(validate)
	return validate
}

func configureValidator(validate *validator.Validate) {
	_ = validate.RegisterValidation("notblank", validators.NotBlank)
	_ = validate.RegisterValidation("phone", validatePhoneNumber)
	_ = validate.RegisterValidation("date", validateDate)
	validate.RegisterTagNameFunc(useJSONTagNames)
}

func useJSONTagNames(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	// skip if tag key says it should be ignored
	if name == "-" {
		return ""
	}
	return name
}

// Optional leading '+', then digits with spaces, dashes or parens between them
// At least 7 and at most 15 digits (E.164 limit)
func validatePhoneNumber(fl validator.FieldLevel) bool {
	number := strings.TrimPrefix(fl.Field().String(), "+")
	if number == "" || !strings.ContainsRune("0123456789(", rune(number[0])) {
		return false
	}

	digits := 0
	for _, c := range number {
		switch {
		case c >= '0' && c <= '9':
			digits++
		case strings.ContainsRune(" -()", c):
		default:
			return false
		}
	}

	return digits >= 7 && digits <= 15
}

func validateDate(fl validator.FieldLevel) bool {
	_, err := time.Parse(DateLayout, fl.Field().String())
	return err == nil
}
