package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"

	cfg "github.com/maastricht-university/sincerity-pipeline/config"
)

// New builds the process logger. Unknown levels fall back to info.
func New(c cfg.Log) *logrus.Logger {
	return newLogger(os.Stderr, c)
}

func newLogger(w io.Writer, c cfg.Log) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(w)

	lvl, err := logrus.ParseLevel(c.Level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)

	if c.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return log
}
