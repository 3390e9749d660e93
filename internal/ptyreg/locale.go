package ptyreg

import (
	"os"

	"golang.org/x/text/language"
)

// resolveLocale implements spec.md §4.E's "locale variables set to a UTF-8
// locale": pick the first usable BCP-47 tag from LANG/LC_ALL, falling back
// to American English, and render it as <lang>_<region>.UTF-8.
func resolveLocale() string {
	for _, envVar := range []string{"LC_ALL", "LANG"} {
		if v := os.Getenv(envVar); v != "" {
			if tag, err := language.Parse(stripEncoding(v)); err == nil {
				return formatUTF8Locale(tag)
			}
		}
	}
	return formatUTF8Locale(language.AmericanEnglish)
}

// stripEncoding drops a trailing ".UTF-8" / ".utf8" suffix so
// language.Parse sees a bare BCP-47-ish tag (e.g. "en_US" from
// "en_US.UTF-8").
func stripEncoding(v string) string {
	for i, r := range v {
		if r == '.' {
			return v[:i]
		}
	}
	return v
}

// formatUTF8Locale renders a language tag as the glibc-style locale name
// agentd sets LANG/LC_ALL/LC_CTYPE to.
func formatUTF8Locale(tag language.Tag) string {
	base, _ := tag.Base()
	region, confidence := tag.Region()
	if confidence == language.No || region.String() == "ZZ" {
		return base.String() + ".UTF-8"
	}
	return base.String() + "_" + region.String() + ".UTF-8"
}
