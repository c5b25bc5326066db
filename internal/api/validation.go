package api

import (
	"fmt"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/d60-Lab/chirper/internal/model"
	"github.com/d60-Lab/chirper/internal/service"
)

// RegisterValidators 给 gin 的 binding 引擎注册自定义 tag
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return fmt.Errorf("unexpected validator engine %T", binding.Validator.Engine())
	}
	rules := map[string]validator.Func{
		"content_type": func(fl validator.FieldLevel) bool {
			return model.ContentType(fl.Field().String()).Valid()
		},
		"notification_type": func(fl validator.FieldLevel) bool {
			return model.NotificationType(fl.Field().String()).Valid()
		},
		"username": func(fl validator.FieldLevel) bool {
			return service.ValidUsername(fl.Field().String())
		},
	}
	for tag, fn := range rules {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return fmt.Errorf("register %s: %w", tag, err)
		}
	}
	return nil
}
