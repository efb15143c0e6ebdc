// Package form は入力フォームの検証と、送信操作の進行状態の管理を提供する。
// 検証に失敗した入力はリモートAPIに送信しない。
package form

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/hitoshi/storefront/internal/model"
)

// Validator はvalidateタグに基づいて構造体を検証する。
type Validator struct {
	v *validator.Validate
}

// NewValidator はValidatorを生成する。
// エラーのフィールド名にはjsonタグの名前を使用する。
func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})

	// 金額はfloat64として比較する
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})

	return &Validator{v: v}
}

// Struct はsを検証する。失敗した場合はフィールドごとのメッセージを持つ
// VALIDATION_FAILEDの*model.APIErrorを返す。
func (val *Validator) Struct(s any) error {
	err := val.v.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("failed to validate form: %w", err)
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		if _, exists := fields[fe.Field()]; exists {
			continue
		}
		fields[fe.Field()] = message(fe)
	}
	return model.NewValidationError(fields)
}

// message は検証エラーを表示用メッセージに変換する。
func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_if":
		return "必須項目です。"
	case "email":
		return "メールアドレスの形式が正しくありません。"
	case "min":
		return fmt.Sprintf("%s文字以上で入力してください。", fe.Param())
	case "max":
		return fmt.Sprintf("%s文字以内で入力してください。", fe.Param())
	case "eqfield":
		return "パスワードが一致しません。"
	case "oneof":
		return fmt.Sprintf("次のいずれかを指定してください: %s", fe.Param())
	case "gt":
		return fmt.Sprintf("%sより大きい値を指定してください。", fe.Param())
	case "gte":
		return fmt.Sprintf("%s以上の値を指定してください。", fe.Param())
	case "url", "https_url":
		return "URLの形式が正しくありません。"
	default:
		return "入力内容が正しくありません。"
	}
}
