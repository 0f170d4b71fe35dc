package dubbing

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/MimeLyc/syncdub/internal/apperr"
	"github.com/MimeLyc/syncdub/internal/clock"
	"github.com/MimeLyc/syncdub/internal/subtitle"
	"github.com/MimeLyc/syncdub/pkg/log"
)

// Pipeline produces entries: translate, optionally polish, then synthesize
// at the rate the segment span allows. It shares the synchronizer lock and
// session; stage calls run on the executor without the lock.
type Pipeline struct {
	mu     *sync.Mutex
	sess   *Session
	stages Stages
	output AudioOutput
	clock  clock.Clock
	exec   Executor

	// ready runs with the lock held after an entry is installed.
	ready func(index int)
}

type production struct {
	generation uint64
	index      int
	segment    subtitle.Segment
	opts       Options
	stages     Stages
	ctx        context.Context
}

type result struct {
	handle     AudioHandle
	translated string
	rate       float64
}

// produce starts production for index unless it is cached, in flight or
// abandoned. Caller holds the lock.
func (p *Pipeline) produce(index int) {
	sess := p.sess
	if !sess.running() || index < 0 || index >= len(sess.Segments) {
		return
	}
	if _, cached := sess.cache[index]; cached {
		return
	}
	if sess.isInFlight(index) || sess.isAbandoned(index) {
		return
	}
	sess.inFlight[index] = struct{}{}

	job := production{
		generation: sess.Generation,
		index:      index,
		segment:    sess.Segments[index],
		opts:       sess.Options,
		stages:     p.stages,
		ctx:        sess.ctx,
	}
	p.exec.Go(func() {
		res, err := p.run(job)
		p.complete(job, res, err)
	})
}

// run executes the stages captured by job. It never touches the session
// or the pipeline's current stages.
func (p *Pipeline) run(job production) (result, error) {
	ctx := job.ctx
	lang := job.opts.TargetLanguage
	stages := job.stages

	translated, err := stages.Translator.Translate(ctx, job.segment.Text, lang)
	if err != nil {
		return result{}, apperr.Wrap(err, apperr.Stage, "translate failed")
	}

	text := translated
	if job.opts.Polish && stages.Polisher != nil {
		if polished, err := stages.Polisher.Polish(ctx, translated, lang); err == nil && strings.TrimSpace(polished) != "" {
			text = polished
		} else if err != nil {
			log.Debug("Polish for segment %d ignored: %v", job.index, err)
		}
	}

	rate := segmentRate(text, job.segment)
	audio, err := stages.Synthesizer.Synthesize(ctx, text, lang, rate)
	if err != nil {
		return result{}, apperr.Wrap(err, apperr.Stage, "synthesize failed")
	}
	if len(audio) == 0 {
		return result{}, apperr.Wrap(ErrNoAudio, apperr.Stage, "synthesize failed")
	}

	handle, err := p.output.Prepare(audio, stages.Format)
	if err != nil {
		return result{}, apperr.Wrap(err, apperr.Resource, "prepare clip failed")
	}
	return result{handle: handle, translated: text, rate: rate}, nil
}

func (p *Pipeline) complete(job production, res result, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	sess := p.sess
	if sess.Generation != job.generation || !sess.running() {
		// stale: the session was stopped or restarted meanwhile
		if res.handle != "" {
			if rerr := p.output.Release(res.handle); rerr != nil {
				log.Debug("Release stale clip %s failed: %v", res.handle, rerr)
			}
		}
		return
	}

	if err != nil {
		p.fail(job, err)
		return
	}

	delete(sess.inFlight, job.index)
	delete(sess.retries, job.index)
	sess.cache[job.index] = &Entry{
		Audio:          res.handle,
		TranslatedText: res.translated,
		SpeakingRate:   res.rate,
	}
	log.Debug("Segment %d ready (rate %.2f)", job.index, res.rate)

	if p.ready != nil {
		p.ready(job.index)
	}
}

// fail schedules a retry with exponential backoff or abandons the segment
// for the rest of the session. Caller holds the lock.
func (p *Pipeline) fail(job production, err error) {
	sess := p.sess
	attempt := sess.retries[job.index]
	if attempt >= MaxRetries {
		log.Error("Segment %d abandoned after %d retries: %v", job.index, attempt, err)
		delete(sess.retries, job.index)
		delete(sess.inFlight, job.index)
		sess.abandoned[job.index] = struct{}{}
		return
	}

	sess.retries[job.index] = attempt + 1
	delay := RetryBaseDelay << attempt
	log.Warn("Segment %d failed (attempt %d), retrying in %s: %v", job.index, attempt+1, delay, err)

	// the index stays in flight until the retry fires
	sess.backoffs[job.index] = p.clock.AfterFunc(delay, func() {
		p.retry(job.generation, job.index)
	})
}

func (p *Pipeline) retry(generation uint64, index int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	sess := p.sess
	if sess.Generation != generation || !sess.running() {
		return
	}
	delete(sess.backoffs, index)
	delete(sess.inFlight, index)
	p.produce(index)
}

// describe summarises the pipeline state for diagnostics. Caller holds the lock.
func (p *Pipeline) describe() string {
	return fmt.Sprintf("cached=%d inflight=%d retrying=%d abandoned=%d",
		len(p.sess.cache), len(p.sess.inFlight), len(p.sess.retries), len(p.sess.abandoned))
}
