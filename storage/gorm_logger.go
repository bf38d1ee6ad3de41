package storage

import (
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/tool-recommender-bot/wuic/logger"
)

type gormLogAdapter struct {
	logger *log.Logger
}

func newGormLogger(l *log.Logger) *gormLogAdapter {
	if l == nil {
		l = logger.L()
	}
	return &gormLogAdapter{logger: l}
}

func (g *gormLogAdapter) Printf(format string, args ...any) {
	g.logger.Info(fmt.Sprintf(format, args...))
}
