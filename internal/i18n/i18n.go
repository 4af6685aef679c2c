// Package i18n 提供用户可见拒绝消息的本地化
package i18n

import (
	"embed"
	"encoding/json"
	"fmt"

	goi18n "github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

// 消息 ID
const (
	MsgRecaptchaTokenMissing       = "recaptcha.errors.token_missing"
	MsgRecaptchaVerificationFailed = "recaptcha.errors.verification_failed"
	MsgSpamKeywordRejection        = "spam_keyword.rejection"
	MsgSpamKeywordRejectionMasked  = "spam_keyword.rejection_masked"
	MsgSpamDesignationFailed       = "spam_designation.failed"
)

//go:embed locales/*.json
var localesFS embed.FS

var localeFiles = []string{"locales/active.en.json", "locales/active.ja.json"}

// Translator 固定语言的消息翻译器
type Translator struct {
	localizer *goi18n.Localizer
	tag       language.Tag
}

// New 创建指定语言的翻译器，未知语言回退到英文
func New(locale string) (*Translator, error) {
	bundle := goi18n.NewBundle(language.English)
	bundle.RegisterUnmarshalFunc("json", json.Unmarshal)

	for _, path := range localeFiles {
		data, err := localesFS.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		if _, err := bundle.ParseMessageFileBytes(data, path); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.English
	}

	return &Translator{
		localizer: goi18n.NewLocalizer(bundle, tag.String()),
		tag:       tag,
	}, nil
}

// MustNew 同 New，出错时 panic
func MustNew(locale string) *Translator {
	t, err := New(locale)
	if err != nil {
		panic(err)
	}
	return t
}

// Locale 当前语言
func (t *Translator) Locale() string {
	return t.tag.String()
}

// T 翻译消息，找不到时返回消息 ID
func (t *Translator) T(id string, data map[string]interface{}) string {
	msg, err := t.localizer.Localize(&goi18n.LocalizeConfig{
		MessageID:    id,
		TemplateData: data,
	})
	if err != nil {
		return id
	}
	return msg
}
