package server

import (
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Sweep removes upload directories older than maxAge. Requests clean up
// after themselves; this catches directories left by a crashed process.
func Sweep(dir string, maxAge time.Duration, now time.Time, log logrus.FieldLogger) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			log.WithError(err).Warn("sweep: read upload dir")
		}
		return 0
	}
	removed := 0
	for _, e := range entries {
		info, err := e.Info()
		if err != nil || now.Sub(info.ModTime()) < maxAge {
			continue
		}
		p := filepath.Join(dir, e.Name())
		if err := os.RemoveAll(p); err != nil {
			log.WithError(err).WithField("path", p).Warn("sweep: remove")
			continue
		}
		removed++
	}
	if removed > 0 {
		log.WithField("removed", removed).Info("swept stale uploads")
	}
	return removed
}

// StartSweeper schedules Sweep every interval. Stop the returned cron on shutdown.
func StartSweeper(dir string, every, maxAge time.Duration, log logrus.FieldLogger) (*cron.Cron, error) {
	c := cron.New()
	_, err := c.AddFunc("@every "+every.String(), func() {
		Sweep(dir, maxAge, time.Now(), log)
	})
	if err != nil {
		return nil, err
	}
	c.Start()
	return c, nil
}
