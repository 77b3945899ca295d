package language

import (
	"strings"

	"github.com/abadojack/whatlanggo"
	xlanguage "golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

type entry struct {
	code2   string   // ISO 639-1
	code3   string   // ISO 639-2
	display string   // English name
	words   []string // hint words accepted from config and CLI flags
}

var languages = []entry{
	{"en", "eng", "English", []string{"english"}},
	{"hi", "hin", "Hindi", []string{"hindi", "hinglish"}},
	{"es", "spa", "Spanish", []string{"spanish"}},
	{"fr", "fra", "French", []string{"french"}},
	{"de", "deu", "German", []string{"german"}},
	{"it", "ita", "Italian", []string{"italian"}},
	{"pt", "por", "Portuguese", []string{"portuguese"}},
	{"ja", "jpn", "Japanese", []string{"japanese"}},
	{"ko", "kor", "Korean", []string{"korean"}},
	{"zh", "zho", "Chinese", []string{"chinese", "mandarin"}},
	{"ru", "rus", "Russian", []string{"russian"}},
	{"ar", "ara", "Arabic", []string{"arabic"}},
	{"bn", "ben", "Bengali", []string{"bengali", "bangla"}},
	{"ta", "tam", "Tamil", []string{"tamil"}},
	{"ur", "urd", "Urdu", []string{"urdu"}},
}

var (
	byCode2 map[string]*entry
	byCode3 map[string]*entry
	byWord  map[string]*entry
)

func init() {
	byCode2 = make(map[string]*entry, len(languages))
	byCode3 = make(map[string]*entry, len(languages))
	byWord = make(map[string]*entry, len(languages)*2)
	for i := range languages {
		e := &languages[i]
		byCode2[e.code2] = e
		byCode3[e.code3] = e
		for _, w := range e.words {
			byWord[w] = e
		}
	}
}

func lookup(hint string) *entry {
	hint = strings.ToLower(strings.TrimSpace(hint))
	if hint == "" {
		return nil
	}
	if e, ok := byCode2[hint]; ok {
		return e
	}
	if e, ok := byCode3[hint]; ok {
		return e
	}
	return byWord[hint]
}

// ToISO2 converts a language hint ("english", "eng", "en-US") to its
// ISO 639-1 code. Unknown two-letter codes pass through; anything else that
// does not parse as a BCP 47 tag yields "".
func ToISO2(hint string) string {
	hint = strings.ToLower(strings.TrimSpace(hint))
	if hint == "" {
		return ""
	}
	if e := lookup(hint); e != nil {
		return e.code2
	}
	if len(hint) == 2 {
		return hint
	}
	tag, err := xlanguage.Parse(hint)
	if err != nil {
		return ""
	}
	base, conf := tag.Base()
	if conf == xlanguage.No {
		return ""
	}
	if e := lookup(base.String()); e != nil {
		return e.code2
	}
	return base.String()
}

// DisplayName returns a human-readable English name for a language hint.
func DisplayName(hint string) string {
	if strings.TrimSpace(hint) == "" {
		return "Unknown"
	}
	if e := lookup(hint); e != nil {
		return e.display
	}
	if code := ToISO2(hint); code != "" {
		if tag, err := xlanguage.Parse(code); err == nil {
			if name := display.Languages(xlanguage.English).Name(tag); name != "" {
				return name
			}
		}
	}
	return strings.ToUpper(strings.TrimSpace(hint))
}

// Same reports whether two hints resolve to the same language.
func Same(a, b string) bool {
	ca, cb := ToISO2(a), ToISO2(b)
	if ca == "" || cb == "" {
		return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
	}
	return ca == cb
}

// Detection is the outcome of statistical language identification over a
// transcript.
type Detection struct {
	Code       string
	Name       string
	Confidence float64
	Reliable   bool
}

// Detect identifies the dominant language of text. Mixed-script captions
// (Hinglish, for example) usually come back unreliable.
func Detect(text string) Detection {
	text = strings.TrimSpace(text)
	if text == "" {
		return Detection{}
	}
	info := whatlanggo.Detect(text)
	code := info.Lang.Iso6391()
	return Detection{
		Code:       code,
		Name:       DisplayName(code),
		Confidence: info.Confidence,
		Reliable:   info.IsReliable(),
	}
}
