package types

import (
	"strings"

	"github.com/citydirectory/directory-backend/pkg/enums"
)

// Localized is a Hebrew/Russian text pair. Models embed it with a column
// prefix, e.g. `gorm:"embedded;embeddedPrefix:name_"` yields name_he/name_ru.
type Localized struct {
	He string `json:"he" gorm:"column:he"`
	Ru string `json:"ru" gorm:"column:ru"`
}

// IsEmpty reports whether neither language carries text.
func (l Localized) IsEmpty() bool {
	return strings.TrimSpace(l.He) == "" && strings.TrimSpace(l.Ru) == ""
}

// Trimmed returns a copy with surrounding whitespace removed.
func (l Localized) Trimmed() Localized {
	return Localized{He: strings.TrimSpace(l.He), Ru: strings.TrimSpace(l.Ru)}
}

// In returns the text for locale, falling back to the other language when the
// requested one is blank.
func (l Localized) In(locale enums.Locale) string {
	primary, secondary := l.He, l.Ru
	if locale == enums.LocaleRussian {
		primary, secondary = l.Ru, l.He
	}
	if strings.TrimSpace(primary) != "" {
		return primary
	}
	return secondary
}
