package translator

import (
	"context"

	"github.com/MimeLyc/syncdub/pkg/log"
)

type namedTranslator struct {
	name string
	tr   Translator
}

// Chain tries each translator in order and returns the first result. When
// every provider fails the input text is returned unchanged, so a
// translation outage degrades to speaking the original line.
type Chain struct {
	steps []namedTranslator
}

func NewChain() *Chain {
	return &Chain{}
}

// With appends a provider. Nil providers are skipped.
func (c *Chain) With(name string, tr Translator) *Chain {
	if tr != nil {
		c.steps = append(c.steps, namedTranslator{name: name, tr: tr})
	}
	return c
}

// Len returns the number of providers.
func (c *Chain) Len() int {
	return len(c.steps)
}

func (c *Chain) Translate(ctx context.Context, text, targetLang string) (string, error) {
	for _, step := range c.steps {
		out, err := step.tr.Translate(ctx, text, targetLang)
		if err == nil && out != "" {
			return out, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		log.Warn("Translate via %s failed: %v", step.name, err)
	}
	return text, nil
}

type namedPolisher struct {
	name string
	p    Polisher
}

// PolishChain is the polisher counterpart of Chain. Failures are never
// reported; the input comes back unchanged.
type PolishChain struct {
	steps []namedPolisher
}

func NewPolishChain() *PolishChain {
	return &PolishChain{}
}

func (c *PolishChain) With(name string, p Polisher) *PolishChain {
	if p != nil {
		c.steps = append(c.steps, namedPolisher{name: name, p: p})
	}
	return c
}

func (c *PolishChain) Polish(ctx context.Context, text, lang string) (string, error) {
	for _, step := range c.steps {
		out, err := step.p.Polish(ctx, text, lang)
		if err == nil && out != "" {
			return out, nil
		}
		if ctx.Err() != nil {
			return text, nil
		}
		log.Debug("Polish via %s failed: %v", step.name, err)
	}
	return text, nil
}
