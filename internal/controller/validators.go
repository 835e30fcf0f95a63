package controller

import (
	"assessment_backend/internal/grading"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var registerOnce sync.Once

// RegisterValidators 在 gin 的校验引擎上注册 itemtype / contentkind 标签
func RegisterValidators(registry *grading.Registry) {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterValidation("itemtype", func(fl validator.FieldLevel) bool {
			_, known := registry.Family(grading.ItemType(fl.Field().String()))
			return known
		})
		v.RegisterValidation("contentkind", func(fl validator.FieldLevel) bool {
			return grading.ContentKind(fl.Field().String()).Valid()
		})
	})
}
