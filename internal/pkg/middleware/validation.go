package middleware

import (
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/wms-platform/task-service/internal/domain"
)

var validateOnce sync.Once

// InitValidator registers the domain enum validators with Gin's binding
// validator so request structs can use them as binding tags.
func InitValidator() {
	validateOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}

		_ = v.RegisterValidation("task_status", validateTaskStatus)
		_ = v.RegisterValidation("operator_status", validateOperatorStatus)

		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return fld.Name
			}
			return name
		})
	})
}

func validateTaskStatus(fl validator.FieldLevel) bool {
	_, err := domain.ParseTaskStatus(fl.Field().String())
	return err == nil
}

func validateOperatorStatus(fl validator.FieldLevel) bool {
	_, err := domain.ParseOperatorStatus(fl.Field().String())
	return err == nil
}
