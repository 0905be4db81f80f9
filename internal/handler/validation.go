package handler

import (
	"errors"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	bookingDomain "github.com/brokerconnect/service-booking/internal/domain/booking"
)

// RegisterValidators installs the custom binding rules on gin's validator.
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("gin validator engine is not go-playground/validator")
	}
	return v.RegisterValidation("visitslot", func(fl validator.FieldLevel) bool {
		return bookingDomain.IsValidSlot(fl.Field().String())
	})
}
