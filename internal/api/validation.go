package api

import (
	"regexp"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// ISO 639-1，可带地区后缀（en, de, pt-BR）
var langCodeRE = regexp.MustCompile(`^[a-z]{2}(-[A-Za-z]{2})?$`)

// registerValidations 挂载自定义校验规则到 gin 的 binding 引擎
func registerValidations() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}
	_ = v.RegisterValidation("langcode", func(fl validator.FieldLevel) bool {
		return langCodeRE.MatchString(fl.Field().String())
	})
}
