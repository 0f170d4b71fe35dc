package translator

import "context"

// Translator translates text into the language named by a BCP 47 tag.
type Translator interface {
	Translate(ctx context.Context, text, targetLang string) (string, error)
}

// Polisher rewrites translated text so it reads naturally when spoken.
type Polisher interface {
	Polish(ctx context.Context, text, lang string) (string, error)
}
