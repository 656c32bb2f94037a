// Copyright (c) 2026 Keykeeper Team
// Keykeeper - SSH credential store for automation platforms
// This source code is licensed under the MIT license found in the LICENSE file.
package i18n

import (
	"testing"
)

func TestInitAndAvailableLocales(t *testing.T) {
	Init("en")
	if GetLang() != "en" {
		t.Fatalf("expected lang 'en', got %q", GetLang())
	}

	av := GetAvailableLocales()
	wantKeys := []string{"en", "de"}
	for _, k := range wantKeys {
		if _, ok := av[k]; !ok {
			t.Fatalf("expected available locale %q to be present", k)
		}
	}
	if av["de"] != "Deutsch" {
		t.Fatalf("unexpected display name for de: %v", av["de"])
	}

	codes := SortedLocaleCodes()
	if len(codes) < 2 || codes[0] != "de" {
		t.Fatalf("unexpected sorted locale codes: %v", codes)
	}
}

func TestT_BasicAndFormatting(t *testing.T) {
	Init("en")

	if got := T("list.empty"); got != "No credentials stored." {
		t.Fatalf("expected list.empty translation, got %q", got)
	}

	// fmt-style formatting via non-map template args
	got := T("agent.loaded", 3, "deploy-bot")
	if got != "Loaded 3 key(s) from 'deploy-bot' into the SSH agent." {
		t.Fatalf("unexpected formatted translation: %q", got)
	}

	// switch language to German
	SetLang("de")
	if GetLang() != "de" {
		t.Fatalf("expected lang 'de', got %q", GetLang())
	}
	if got := T("list.empty"); got != "Keine Zugangsdaten gespeichert." {
		t.Fatalf("expected German list.empty, got %q", got)
	}
}

func TestT_UnknownIDFallsBack(t *testing.T) {
	Init("en")

	if got := T("no.such.message"); got != "no.such.message" {
		t.Fatalf("expected ID fallback, got %q", got)
	}
	if got := T("no.such.format %d", 7); got != "no.such.format 7" {
		t.Fatalf("expected formatted ID fallback, got %q", got)
	}
}
