package validation

import (
	"errors"
	"regexp"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var (
	once     sync.Once
	validate *validator.Validate

	phoneRegex  = regexp.MustCompile(`^\+[1-9]\d{6,14}$`)
	seatIDRegex = regexp.MustCompile(`^[A-Za-z0-9-]{1,8}$`)
)

// Validator returns the shared validator with the booking tags registered.
func Validator() *validator.Validate {
	once.Do(func() {
		validate = validator.New()
		registerCustom(validate)
	})
	return validate
}

// RegisterGinValidators installs the custom tags into gin's binding validator
// so `binding:"seat_id"` works in request structs.
func RegisterGinValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("gin binding engine is not go-playground/validator")
	}
	registerCustom(v)
	return nil
}

func registerCustom(v *validator.Validate) {
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phoneRegex.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("seat_id", func(fl validator.FieldLevel) bool {
		return seatIDRegex.MatchString(fl.Field().String())
	})
}

// ValidateStruct validates s and converts failures into a *ValidationError.
func ValidateStruct(s interface{}) error {
	err := Validator().Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return NewValidationError(verrs)
	}
	return err
}
