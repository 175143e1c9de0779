package pulse

import (
	"go.uber.org/zap"

	"github.com/teranos/legisync/logger"
)

// SafeEmitter recovers panics raised by the wrapped emitter and logs them
type SafeEmitter struct {
	inner ProgressEmitter
	log   *zap.SugaredLogger
}

// Safe wraps e so its panics are contained. A nil e becomes NopEmitter.
func Safe(e ProgressEmitter, log *zap.SugaredLogger) *SafeEmitter {
	if e == nil {
		e = NopEmitter{}
	}
	if log == nil {
		log = logger.Logger
	}
	return &SafeEmitter{inner: e, log: log}
}

func (s *SafeEmitter) guard(method string) {
	if r := recover(); r != nil {
		s.log.Warnw("Progress emitter panicked", "method", method, "panic", r)
	}
}

func (s *SafeEmitter) EmitStage(stage string, message string) {
	defer s.guard("EmitStage")
	s.inner.EmitStage(stage, message)
}

func (s *SafeEmitter) EmitProgress(event Event) {
	defer s.guard("EmitProgress")
	s.inner.EmitProgress(event)
}

func (s *SafeEmitter) EmitComplete(summary map[string]interface{}) {
	defer s.guard("EmitComplete")
	s.inner.EmitComplete(summary)
}

func (s *SafeEmitter) EmitError(stage string, err error) {
	defer s.guard("EmitError")
	s.inner.EmitError(stage, err)
}

func (s *SafeEmitter) EmitInfo(message string) {
	defer s.guard("EmitInfo")
	s.inner.EmitInfo(message)
}
