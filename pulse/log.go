package pulse

import (
	"go.uber.org/zap"

	"github.com/teranos/legisync/logger"
)

// LogEmitter writes progress to a zap logger
type LogEmitter struct {
	log *zap.SugaredLogger
}

// NewLogEmitter creates an emitter logging through log
func NewLogEmitter(log *zap.SugaredLogger) *LogEmitter {
	return &LogEmitter{log: log}
}

func (e *LogEmitter) EmitStage(stage string, message string) {
	e.log.Infow(message, logger.FieldStage, stage)
}

func (e *LogEmitter) EmitProgress(event Event) {
	e.log.Debugw(event.Message,
		logger.FieldStage, event.Stage,
		"percent", event.Percent,
		logger.FieldCount, event.Done,
		logger.FieldTotal, event.Total,
	)
}

func (e *LogEmitter) EmitComplete(summary map[string]interface{}) {
	kv := make([]interface{}, 0, len(summary)*2)
	for k, v := range summary {
		kv = append(kv, k, v)
	}
	e.log.Infow("Run complete", kv...)
}

func (e *LogEmitter) EmitError(stage string, err error) {
	e.log.Errorw("Stage failed", logger.FieldStage, stage, logger.FieldError, err.Error())
}

func (e *LogEmitter) EmitInfo(message string) {
	e.log.Infow(message)
}
