package validator

import (
	"errors"
	"fmt"
	"roombook/pkg/logger"
	"roombook/pkg/model"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	var messages []string
	for _, err := range v {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %d error(s): [%s]", len(v), strings.Join(messages, "; "))
}

type BookingValidator struct {
	validate *validator.Validate
}

func NewBookingValidator(log *logger.Logger) *BookingValidator {
	v := validator.New()
	if err := v.RegisterValidation("hour_aligned", hourAligned); err != nil {
		log.Error("failed to register hour_aligned validation", "error", err)
	}
	log.Info("Booking validator initialized")
	return &BookingValidator{validate: v}
}

// hourAligned backs the `hour_aligned` struct tag: the time must fall
// exactly on an hour boundary. Zero times pass here and are left to the
// `required` tag.
func hourAligned(fl validator.FieldLevel) bool {
	t, ok := fl.Field().Interface().(time.Time)
	if !ok {
		return false
	}
	return t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0
}

// ValidateStartTime enforces grid alignment: the start instant must fall
// exactly on an hour boundary. Zero values are rejected outright.
func (v *BookingValidator) ValidateStartTime(start time.Time) error {
	if start.IsZero() {
		return ValidationErrors{
			ValidationError{Field: "StartTime", Message: "start_time is required"},
		}
	}
	if start.Minute() != 0 || start.Second() != 0 || start.Nanosecond() != 0 {
		return ValidationErrors{
			ValidationError{
				Field:   "StartTime",
				Message: "start_time must be at the beginning of an hour (e.g., 13:00:00)",
			},
		}
	}
	return nil
}

// ValidateDuration guards the slot duration used for availability
// enumeration.
func (v *BookingValidator) ValidateDuration(duration time.Duration) error {
	if duration <= 0 {
		return ValidationErrors{
			ValidationError{Field: "Duration", Message: "duration must be positive"},
		}
	}
	return nil
}

func (v *BookingValidator) ValidateRequest(req *model.BookingRequest) error {
	if err := v.validate.Struct(req); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return v.translate(validationErrs)
		}
		return err
	}
	return nil
}

func (v *BookingValidator) ValidateOptimizeRequest(req *model.OptimizeRequest) error {
	if err := v.validate.Struct(req); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return v.translate(validationErrs)
		}
		return err
	}
	return nil
}

func (v *BookingValidator) ValidatePatch(patch *model.BookingPatch) error {
	if err := v.validate.Struct(patch); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return v.translate(validationErrs)
		}
		return err
	}
	return nil
}

// Validate checks the fully merged booking before persistence.
func (v *BookingValidator) Validate(booking *model.Booking) error {
	if err := v.validate.Struct(booking); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return v.translate(validationErrs)
		}
		return err
	}

	if !booking.EndTime.After(booking.StartTime) {
		return ValidationErrors{
			ValidationError{Field: "EndTime", Message: "end_time must be after start_time"},
		}
	}

	return nil
}

func (v *BookingValidator) translate(errs validator.ValidationErrors) ValidationErrors {
	var validationErrors ValidationErrors

	for _, err := range errs {
		message := err.Error()

		switch err.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", err.Field())
		case "min":
			message = fmt.Sprintf("%s must be at least %s", err.Field(), err.Param())
		case "max":
			message = fmt.Sprintf("%s must be at most %s", err.Field(), err.Param())
		case "mongodb":
			message = fmt.Sprintf("%s must be a valid MongoDB ObjectID", err.Field())
		case "gtfield":
			message = fmt.Sprintf("%s must be greater than %s", err.Field(), err.Param())
		case "hour_aligned":
			message = fmt.Sprintf("%s must be at the beginning of an hour (e.g., 13:00:00)", err.Field())
		}

		validationErrors = append(validationErrors, ValidationError{
			Field:   err.Field(),
			Message: message,
		})
	}

	return validationErrors
}
