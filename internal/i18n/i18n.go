// Copyright (c) 2026 Keykeeper Team
// Keykeeper - SSH credential store for automation platforms
// This source code is licensed under the MIT license found in the LICENSE file.

// package i18n provides internationalization and localization support for Keykeeper.
// It uses the go-i18n library to load and manage translation files, allowing the
// command line interface to be displayed in multiple languages.
package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// localeFS embeds the YAML translation files from the 'locales' directory
// into the application binary.
//
//go:embed locales/*.yaml
var localeFS embed.FS

// bundle stores all the loaded translation messages from the locale files.
var bundle *i18n.Bundle

// localizer is used to translate messages into a specific language.
var localizer *i18n.Localizer

// currentLang tracks the active language code so callers can query it back.
var currentLang string

// displayNames maps locale codes to a human readable name for menus and
// configuration hints. Codes without an entry fall back to the code itself.
var displayNames = map[string]string{
	"en": "English",
	"de": "Deutsch",
}

// Init initializes the i18n bundle and sets up the localizer for a specific language.
// It parses all embedded YAML files from the 'locales' directory.
func Init(lang string) {
	bundle = i18n.NewBundle(language.English)
	bundle.RegisterUnmarshalFunc("yaml", yaml.Unmarshal)

	files, _ := fs.ReadDir(localeFS, "locales")
	for _, f := range files {
		if f.IsDir() {
			continue
		}
		data, _ := localeFS.ReadFile("locales/" + f.Name())
		bundle.ParseMessageFileBytes(data, f.Name())
	}

	if lang == "" {
		lang = "en"
	}
	currentLang = lang
	localizer = i18n.NewLocalizer(bundle, lang, "en")
}

// T translates a message by its ID. If the i18n system has not been
// initialized it defaults to English. Unknown IDs come back verbatim so a
// missing translation never hides the message entirely.
//
// Extra arguments select the substitution style: a single map argument is
// passed to go-i18n as template data, anything else is applied with
// fmt.Sprintf to the localized format string.
func T(messageID string, args ...interface{}) string {
	if localizer == nil {
		Init("en")
	}

	cfg := &i18n.LocalizeConfig{MessageID: messageID}
	if len(args) == 1 {
		if data, ok := args[0].(map[string]interface{}); ok {
			cfg.TemplateData = data
			args = nil
		}
	}

	msg, err := localizer.Localize(cfg)
	if err != nil {
		// Unknown message ID. Fall back to the ID itself, still honoring
		// fmt-style arguments so callers get their values somewhere.
		if len(args) > 0 {
			return fmt.Sprintf(messageID, args...)
		}
		return messageID
	}
	if len(args) > 0 {
		return fmt.Sprintf(msg, args...)
	}
	return msg
}

// GetLang returns the language code the localizer was last initialized with.
func GetLang() string {
	if currentLang == "" {
		return "en"
	}
	return currentLang
}

// SetLang changes the active language of the localizer.
func SetLang(lang string) {
	Init(lang)
}

// GetAvailableLocales lists the embedded locale codes mapped to their display
// names, for configuration validation and help output.
func GetAvailableLocales() map[string]string {
	av := map[string]string{}
	files, _ := fs.ReadDir(localeFS, "locales")
	for _, f := range files {
		if f.IsDir() {
			continue
		}
		code := strings.TrimSuffix(f.Name(), ".yaml")
		if name, ok := displayNames[code]; ok {
			av[code] = name
		} else {
			av[code] = code
		}
	}
	return av
}

// SortedLocaleCodes returns the available locale codes in stable order.
func SortedLocaleCodes() []string {
	av := GetAvailableLocales()
	codes := make([]string, 0, len(av))
	for code := range av {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}
