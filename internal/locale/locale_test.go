package locale

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/text/language"
)

func TestNewMatchesLocale(t *testing.T) {
	assert.Equal(t, language.Japanese, New("ja").Tag())
	assert.Equal(t, language.Japanese, New("ja-JP").Tag())
	assert.Equal(t, language.English, New("en-GB").Tag())
	assert.Equal(t, language.English, New("not a tag!").Tag())
}

func TestTRendersParams(t *testing.T) {
	tr := New("en")
	got := tr.T("log/bot/vcAutoCreation/createChannel", map[string]string{"guild": "G", "channel": "C"})
	assert.Equal(t, "Created voice room (guild: G, channel: C)", got)

	ja := New("ja")
	assert.Equal(t, "VC自動作成でエラーが発生しました: boom",
		ja.T("bot/vcAutoCreation/error", map[string]string{"error": "boom"}))
}

func TestTUnknownKey(t *testing.T) {
	tr := New("ja")
	assert.Equal(t, "some/key a=1 b=2", tr.T("some/key", map[string]string{"b": "2", "a": "1"}))
	assert.Equal(t, "some/key", tr.T("some/key", nil))
}

func TestCatalogsHaveSameKeys(t *testing.T) {
	ja := catalogs[language.Japanese]
	en := catalogs[language.English]
	assert.Len(t, ja, len(en))
	for k := range en {
		assert.Contains(t, ja, k)
	}
}
