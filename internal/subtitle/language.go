package subtitle

import (
	"strings"

	"github.com/abadojack/whatlanggo"
	"golang.org/x/text/language"
)

// DetectLanguage guesses the base language tag of the cue text. It returns
// an empty string when detection is not reliable.
func DetectLanguage(cues []Cue) string {
	var b strings.Builder
	for _, c := range cues {
		if b.Len() > 4000 {
			break
		}
		b.WriteString(c.Text)
		b.WriteByte(' ')
	}
	sample := strings.TrimSpace(b.String())
	if sample == "" {
		return ""
	}

	info := whatlanggo.Detect(sample)
	if !info.IsReliable() {
		return ""
	}
	tag, err := language.Parse(info.Lang.Iso6391())
	if err != nil {
		return ""
	}
	base, _ := tag.Base()
	return base.String()
}
