package i18n

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranslator_English(t *testing.T) {
	tr, err := New("en")
	require.NoError(t, err)

	msg := tr.T(MsgSpamKeywordRejectionMasked, map[string]interface{}{"Masked": "c****o"})
	assert.Contains(t, msg, `"c****o"`)
	assert.Contains(t, tr.T(MsgRecaptchaTokenMissing, nil), "token is missing")
}

func TestTranslator_Japanese(t *testing.T) {
	tr := MustNew("ja")

	msg := tr.T(MsgSpamKeywordRejectionMasked, map[string]interface{}{"Masked": "c****o"})
	assert.Contains(t, msg, "禁止されているキーワード「c****o」")
	assert.Equal(t, "ja", tr.Locale())
}

func TestTranslator_UnknownFallsBack(t *testing.T) {
	tr := MustNew("not a locale!")
	assert.Equal(t, "en", tr.Locale())
	assert.Equal(t, "no.such.message", tr.T("no.such.message", nil))
}
