package service

import (
	"context"
	"time"

	"github.com/MimeLyc/syncdub/pkg/icron"
	"github.com/MimeLyc/syncdub/pkg/log"
)

// ScheduleCacheSweep registers the periodic purge of expired subtitles. It
// does nothing without a cache or a cron.
func (s *Service) ScheduleCacheSweep(ctx context.Context) error {
	if s.cache == nil || s.cron == nil {
		return nil
	}
	expr := s.Config().Storage.CacheSweepCron
	_, err := s.cron.AddFunc(expr, func() {
		_, _, _ = s.sweeps.Do("sweep", func() (any, error) {
			if _, err := s.SweepCache(ctx); err != nil {
				log.Error("Subtitle cache sweep failed: %v", err)
			}
			return nil, nil
		})
	})
	if err != nil {
		return err
	}
	if info, err := s.NextSweep(); err == nil {
		log.Info("Subtitle cache sweep scheduled (%s), next run in %s", expr, info.TimeUntilNext.Round(time.Second))
	}
	return nil
}

// SweepCache deletes cached subtitles older than the configured lifetime.
func (s *Service) SweepCache(ctx context.Context) (int64, error) {
	if s.cache == nil {
		return 0, nil
	}
	cutoff := s.clock.Now().Add(-cacheTTL(s.Config()))
	n, err := s.cache.PurgeOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	log.Info("Purged %d cached videos fetched before %s", n, cutoff.UTC().Format(time.RFC3339))
	return n, nil
}

// NextSweep reports when the cache sweep last ran and runs next.
func (s *Service) NextSweep() (*icron.TriggerInfo, error) {
	return icron.GetTriggerInfo(s.Config().Storage.CacheSweepCron, s.clock.Now())
}
