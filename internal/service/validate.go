package service

import (
	"github.com/go-playground/validator/v10"

	"github.com/yourname/fixyoursleep/internal/calendar"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("hhmm", func(fl validator.FieldLevel) bool {
		_, err := calendar.ParseTimeOfDay(fl.Field().String())
		return err == nil
	})
	return v
}
