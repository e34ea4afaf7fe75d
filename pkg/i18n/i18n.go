// Package i18n localizes rider-facing booking messages.
// Translations are compiled into the binary; unknown languages fall back to English.
package i18n

import "fmt"

// DefaultLang is used when a key has no entry for the requested language.
const DefaultLang = "en"

// Translate returns the localized string for key in lang, formatted with args.
// An unknown key is returned as-is.
func Translate(key, lang string, args ...interface{}) string {
	if lang == "" {
		lang = DefaultLang
	}

	langMap, ok := translations[key]
	if !ok {
		return key
	}

	tmpl, ok := langMap[lang]
	if !ok {
		tmpl, ok = langMap[DefaultLang]
		if !ok {
			return key
		}
	}

	if len(args) == 0 {
		return tmpl
	}
	return fmt.Sprintf(tmpl, args...)
}

// Supported reports whether lang has its own translation table entries.
func Supported(lang string) bool {
	switch lang {
	case "en", "ru", "tr", "tk":
		return true
	}
	return false
}
