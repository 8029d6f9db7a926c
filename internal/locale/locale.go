// Package locale renders message keys into localized text.
package locale

import (
	"sort"
	"strings"

	"golang.org/x/text/language"
)

var catalogs = map[language.Tag]map[string]string{
	language.Japanese: {
		"bot/vcAutoCreation/error":                        "VC自動作成でエラーが発生しました: {error}",
		"log/bot/vcAutoCreation/error":                    "VC自動作成でエラーが発生しました (guild: {guild}): {error}",
		"log/bot/vcAutoCreation/createChannel":            "VCを自動作成しました (guild: {guild}, channel: {channel})",
		"log/bot/vcAutoCreation/deleteChannel":            "自動作成したVCを削除しました (guild: {guild}, channel: {channel})",
		"log/bot/vcAutoCreation/deleteMismatch":           "自動作成したVCの削除と登録解除が一致しません (guild: {guild}, channel: {channel}, state: {state})",
		"log/bot/vcAutoCreation/deleteTriggerChannel":     "トリガーVCが削除されたため登録を解除しました (guild: {guild}, channel: {channel})",
		"log/bot/vcAutoCreation/deleteAutoCreatedChannel": "自動作成したVCが削除されたため登録を解除しました (guild: {guild}, channel: {channel})",
		"log/bot/vcAutoCreation/reconcileStart":           "VC自動作成の整合性チェックを開始します (guilds: {count})",
		"log/bot/vcAutoCreation/missingPermissions":       "VC自動作成に必要な権限がありません (guild: {guild}, channel: {channel}, missing: {permissions})",
		"log/bot/guildBlacklisted":                        "ブラックリストに登録されたサーバーから退出します (guild: {guild})",
		"log/bot/ready":                                   "ボットが起動しました ({user})",
	},
	language.English: {
		"bot/vcAutoCreation/error":                        "Voice channel auto creation failed: {error}",
		"log/bot/vcAutoCreation/error":                    "Voice channel auto creation failed (guild: {guild}): {error}",
		"log/bot/vcAutoCreation/createChannel":            "Created voice room (guild: {guild}, channel: {channel})",
		"log/bot/vcAutoCreation/deleteChannel":            "Deleted empty voice room (guild: {guild}, channel: {channel})",
		"log/bot/vcAutoCreation/deleteMismatch":           "Voice room deletion and deregistration diverged (guild: {guild}, channel: {channel}, state: {state})",
		"log/bot/vcAutoCreation/deleteTriggerChannel":     "Trigger channel deleted, deregistered (guild: {guild}, channel: {channel})",
		"log/bot/vcAutoCreation/deleteAutoCreatedChannel": "Voice room deleted externally, deregistered (guild: {guild}, channel: {channel})",
		"log/bot/vcAutoCreation/reconcileStart":           "Reconciling voice rooms (guilds: {count})",
		"log/bot/vcAutoCreation/missingPermissions":       "Missing permissions for voice auto creation (guild: {guild}, channel: {channel}, missing: {permissions})",
		"log/bot/guildBlacklisted":                        "Leaving blacklisted guild (guild: {guild})",
		"log/bot/ready":                                   "Bot is running ({user})",
	},
}

var matcher = language.NewMatcher([]language.Tag{language.Japanese, language.English})

// Translator renders keys for one locale, falling back to English and then
// to the key itself.
type Translator struct {
	tag     language.Tag
	catalog map[string]string
}

// New picks the closest supported locale for name (e.g. "ja", "en-US").
func New(name string) *Translator {
	tag := language.English
	if desired, err := language.Parse(name); err == nil {
		_, idx, conf := matcher.Match(desired)
		if conf != language.No {
			tag = []language.Tag{language.Japanese, language.English}[idx]
		}
	}
	return &Translator{tag: tag, catalog: catalogs[tag]}
}

// Tag returns the selected locale.
func (t *Translator) Tag() language.Tag { return t.tag }

// T renders key with {name} placeholders replaced from params.
func (t *Translator) T(key string, params map[string]string) string {
	tpl, ok := t.catalog[key]
	if !ok {
		if tpl, ok = catalogs[language.English][key]; !ok {
			return key + formatParams(params)
		}
	}
	if len(params) == 0 {
		return tpl
	}

	pairs := make([]string, 0, len(params)*2)
	for k, v := range params {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(tpl)
}

// formatParams renders params in a stable order for unknown keys.
func formatParams(params map[string]string) string {
	if len(params) == 0 {
		return ""
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(" ")
		b.WriteString(k)
		b.WriteString("=")
		b.WriteString(params[k])
	}
	return b.String()
}
