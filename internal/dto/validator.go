package dto

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var registerOnce sync.Once

// RegisterValidators 向 gin 的校验引擎注册自定义 tag：
//
//	isodate  YYYY-MM-DD
//	hhmm     HH:MM（24 小时制）
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = v.RegisterValidation("isodate", layoutValidator("2006-01-02"))
		_ = v.RegisterValidation("hhmm", layoutValidator("15:04"))
	})
}

func layoutValidator(layout string) validator.Func {
	return func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		if len(s) != len(layout) {
			return false
		}
		_, err := time.Parse(layout, s)
		return err == nil
	}
}
