package handler

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/user/moodflix/internal/model"
)

var registerOnce sync.Once

// RegisterValidators 在 gin 的校验器上注册枚举校验，字段名使用 json tag
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}

		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})

		enums := map[string][]string{
			"mood":        model.Moods,
			"situation":   model.Situations,
			"timeslot":    model.TimeSlots,
			"watchstatus": model.WatchlistStatuses,
			"priority":    model.Priorities,
		}
		for tag, values := range enums {
			values := values
			_ = v.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
				return model.Contains(values, fl.Field().String())
			})
		}
	})
}

// validationMessage 把绑定错误转为一句可读的提示
func validationMessage(err error) string {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) || len(ve) == 0 {
		return "Invalid request body"
	}

	fe := ve[0]
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email address"
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "mood", "situation", "timeslot", "watchstatus", "priority":
		return fmt.Sprintf("%s has an invalid value %q", field, fe.Value())
	default:
		return field + " is invalid"
	}
}
