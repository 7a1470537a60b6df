package language

import (
	"strings"

	"golang.org/x/text/language"
)

type entry struct {
	code     string // ISO 639-1
	display  string
	official bool // one of the six official UN languages
	words    []string
}

var languages = []entry{
	{"ar", "Arabic", true, []string{"arabic"}},
	{"zh", "Chinese", true, []string{"chinese", "mandarin"}},
	{"en", "English", true, []string{"english"}},
	{"fr", "French", true, []string{"french"}},
	{"ru", "Russian", true, []string{"russian"}},
	{"es", "Spanish", true, []string{"spanish"}},
	{"de", "German", false, []string{"german"}},
	{"pt", "Portuguese", false, []string{"portuguese"}},
	{"it", "Italian", false, []string{"italian"}},
	{"ja", "Japanese", false, []string{"japanese"}},
	{"hi", "Hindi", false, []string{"hindi"}},
	{"sw", "Swahili", false, []string{"swahili"}},
	{"tr", "Turkish", false, []string{"turkish"}},
	{"fa", "Persian", false, []string{"persian", "farsi"}},
}

var (
	byCode map[string]*entry
	byWord map[string]*entry
)

func init() {
	byCode = make(map[string]*entry, len(languages))
	byWord = make(map[string]*entry, len(languages))
	for i := range languages {
		e := &languages[i]
		byCode[e.code] = e
		for _, w := range e.words {
			byWord[w] = e
		}
	}
}

// Normalize reduces a language identifier to its ISO 639-1 base code. It
// accepts BCP 47 tags ("en-US"), bare codes ("fra"), and English names
// ("french"). Unrecognized input returns the empty string.
func Normalize(tag string) string {
	trimmed := strings.ToLower(strings.TrimSpace(tag))
	if trimmed == "" {
		return ""
	}
	if e, ok := byWord[trimmed]; ok {
		return e.code
	}
	parsed, err := language.Parse(trimmed)
	if err != nil {
		return ""
	}
	base, confidence := parsed.Base()
	if confidence == language.No {
		return ""
	}
	return base.String()
}

// Display returns the human-readable name for a normalized code. Codes
// outside the known table are returned unchanged.
func Display(code string) string {
	if e, ok := byCode[strings.ToLower(strings.TrimSpace(code))]; ok {
		return e.display
	}
	return code
}

// Official reports whether the code is one of the six official UN languages.
func Official(code string) bool {
	e, ok := byCode[strings.ToLower(strings.TrimSpace(code))]
	return ok && e.official
}
