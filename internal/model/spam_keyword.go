package model

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/uptrace/bun"
)

// SpamKeywordMaxLength 关键词最大长度
const SpamKeywordMaxLength = 255

// SpamKeyword 垃圾关键词模型
type SpamKeyword struct {
	bun.BaseModel `bun:"table:spam_keywords,alias:sk"`

	ID      int64  `bun:"id,pk,autoincrement" json:"id"`
	Keyword string `bun:"keyword,notnull" json:"keyword" validate:"required,max=255"`
	Enabled bool   `bun:"enabled,notnull,default:true" json:"enabled"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp" json:"createdAt"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp" json:"updatedAt"`
}

// Normalize 去除关键词首尾空白，保存前调用
func (k *SpamKeyword) Normalize() {
	k.Keyword = strings.TrimSpace(k.Keyword)
}

// MaskedKeyword 返回打码后的关键词，3 个字符及以下时返回空串
// 形如 c****o：保留首尾字符，中间为 len-2 个星号
func (k *SpamKeyword) MaskedKeyword() string {
	return MaskKeyword(k.Keyword)
}

// MaskKeyword 按字符（而非字节）打码
func MaskKeyword(keyword string) string {
	n := utf8.RuneCountInString(keyword)
	if n <= 3 {
		return ""
	}
	runes := []rune(keyword)
	return string(runes[0]) + strings.Repeat("*", n-2) + string(runes[n-1])
}
