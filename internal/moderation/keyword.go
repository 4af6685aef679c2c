package moderation

import (
	"context"
	"strings"
	"time"

	"github.com/fabble/moderation/internal/cache"
	"github.com/fabble/moderation/internal/i18n"
	"github.com/fabble/moderation/internal/model"
	"github.com/fabble/moderation/internal/pkg/utils"
)

// KeywordCacheKey 启用关键词列表的缓存键
const KeywordCacheKey = "spam_keywords/enabled"

// KeywordSource 启用关键词来源，按 id 升序
type KeywordSource interface {
	ListEnabled(ctx context.Context) ([]*model.SpamKeyword, error)
}

// KeywordMatcherConfig 关键词检测配置
type KeywordMatcherConfig struct {
	CacheTTL      time.Duration
	SnippetLength int
}

// cachedKeyword 缓存中的关键词
type cachedKeyword struct {
	ID      int64  `json:"id"`
	Keyword string `json:"keyword"`
}

// KeywordMatcher 垃圾关键词检测
type KeywordMatcher struct {
	source     KeywordSource
	cache      cache.Cache
	logs       *DetectionLogger
	translator *i18n.Translator
	cfg        KeywordMatcherConfig
}

// NewKeywordMatcher 创建关键词检测器
func NewKeywordMatcher(source KeywordSource, c cache.Cache, logs *DetectionLogger, translator *i18n.Translator, cfg KeywordMatcherConfig) *KeywordMatcher {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = time.Hour
	}
	if cfg.SnippetLength <= 0 {
		cfg.SnippetLength = 100
	}
	return &KeywordMatcher{
		source:     source,
		cache:      c,
		logs:       logs,
		translator: translator,
		cfg:        cfg,
	}
}

// Detect 检测内容中是否包含启用的关键词，返回第一个命中的关键词
// 所有内容以空格拼接后转小写，按子串匹配
func (m *KeywordMatcher) Detect(ctx context.Context, contents ...string) (*model.SpamKeyword, error) {
	combined := joinContents(contents)
	if strings.TrimSpace(combined) == "" {
		return nil, nil
	}
	combined = strings.ToLower(combined)

	keywords, err := m.enabledKeywords(ctx)
	if err != nil {
		return nil, err
	}

	for _, k := range keywords {
		if k.Keyword == "" {
			continue
		}
		if strings.Contains(combined, strings.ToLower(k.Keyword)) {
			return &model.SpamKeyword{ID: k.ID, Keyword: k.Keyword, Enabled: true}, nil
		}
	}
	return nil, nil
}

// DetectWithLogging 检测并在命中时写应用日志与检测日志
func (m *KeywordMatcher) DetectWithLogging(ctx context.Context, actor Actor, contentType string, contents ...string) (*model.SpamKeyword, error) {
	detected, err := m.Detect(ctx, contents...)
	if err != nil || detected == nil {
		return nil, err
	}

	l := actor.log()
	l.Info().
		Str("type", contentType).
		Str("keyword", detected.Keyword).
		Str("content", utils.Truncate(joinContents(contents), m.cfg.SnippetLength)).
		Msg("[SpamKeywordDetector] Spam keyword detected")

	m.logs.Record(ctx, DetectionEntry{
		Actor:       actor,
		Method:      model.DetectionMethodKeyword,
		ContentType: contentType,
		Reason:      detected.Keyword,
	})
	return detected, nil
}

// InvalidateCache 清除关键词缓存，关键词增删改或切换启用状态后调用
func (m *KeywordMatcher) InvalidateCache(ctx context.Context) error {
	return m.cache.Delete(ctx, KeywordCacheKey)
}

// RejectionMessage 返回面向用户的拒绝消息，关键词足够长时附带打码形式
func (m *KeywordMatcher) RejectionMessage(keyword *model.SpamKeyword) string {
	masked := keyword.MaskedKeyword()
	if masked == "" {
		return m.translator.T(i18n.MsgSpamKeywordRejection, nil)
	}
	return m.translator.T(i18n.MsgSpamKeywordRejectionMasked, map[string]interface{}{"Masked": masked})
}

func (m *KeywordMatcher) enabledKeywords(ctx context.Context) ([]cachedKeyword, error) {
	return cache.Fetch(ctx, m.cache, KeywordCacheKey, m.cfg.CacheTTL, func(ctx context.Context) ([]cachedKeyword, error) {
		rows, err := m.source.ListEnabled(ctx)
		if err != nil {
			return nil, err
		}
		keywords := make([]cachedKeyword, 0, len(rows))
		for _, r := range rows {
			keywords = append(keywords, cachedKeyword{ID: r.ID, Keyword: r.Keyword})
		}
		return keywords, nil
	})
}

func joinContents(contents []string) string {
	return strings.Join(contents, " ")
}
