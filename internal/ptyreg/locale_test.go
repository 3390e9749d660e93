package ptyreg

import (
	"os"
	"testing"
)

func TestResolveLocaleFromLangEnv(t *testing.T) {
	oldLang, hadLang := os.LookupEnv("LANG")
	oldAll, hadAll := os.LookupEnv("LC_ALL")
	defer func() {
		if hadLang {
			os.Setenv("LANG", oldLang)
		} else {
			os.Unsetenv("LANG")
		}
		if hadAll {
			os.Setenv("LC_ALL", oldAll)
		} else {
			os.Unsetenv("LC_ALL")
		}
	}()

	os.Unsetenv("LC_ALL")
	os.Setenv("LANG", "fr_FR.UTF-8")

	if got := resolveLocale(); got != "fr_FR.UTF-8" {
		t.Fatalf("got %q", got)
	}
}

func TestResolveLocaleFallsBackToAmericanEnglish(t *testing.T) {
	oldLang, hadLang := os.LookupEnv("LANG")
	oldAll, hadAll := os.LookupEnv("LC_ALL")
	defer func() {
		if hadLang {
			os.Setenv("LANG", oldLang)
		} else {
			os.Unsetenv("LANG")
		}
		if hadAll {
			os.Setenv("LC_ALL", oldAll)
		} else {
			os.Unsetenv("LC_ALL")
		}
	}()

	os.Unsetenv("LANG")
	os.Unsetenv("LC_ALL")

	if got := resolveLocale(); got != "en_US.UTF-8" {
		t.Fatalf("got %q", got)
	}
}
