package handler

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"coursetrack/internal/attendance"
)

var validatorsOnce sync.Once

// registerValidators adds the attendance rules to gin's validator engine.
func registerValidators() {
	validatorsOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = v.RegisterValidation("attstatus", func(fl validator.FieldLevel) bool {
			return attendance.Status(fl.Field().String()).Valid()
		})
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			for _, tag := range []string{"json", "form"} {
				name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
				if name == "-" {
					return ""
				}
				if name != "" {
					return name
				}
			}
			return fld.Name
		})
	})
}

// translate turns validator errors into field errors named like the request fields.
func translate(errs validator.ValidationErrors) []attendance.FieldError {
	out := make([]attendance.FieldError, 0, len(errs))
	for _, fe := range errs {
		out = append(out, attendance.FieldError{Field: fe.Field(), Error: message(fe)})
	}
	return out
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "max":
		return fmt.Sprintf("ensure this value has at most %s characters", fe.Param())
	case "attstatus":
		return fmt.Sprintf("select a valid choice, %q is not one of the available choices", fe.Value())
	case "datetime":
		return "enter a valid date (YYYY-MM-DD)"
	}
	return fmt.Sprintf("failed on the %q rule", fe.Tag())
}
