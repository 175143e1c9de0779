// Package pulse carries progress events from a running job to whoever is
// watching: the terminal, a JSON consumer, or the log.
//
// Emitters observe; they never influence control flow. Wrap any emitter that
// is not fully trusted with Safe so a panicking observer cannot take the run
// down with it.
package pulse

// Event is one progress observation within a stage
type Event struct {
	Stage   string  `json:"stage"`
	Percent float64 `json:"percent"`
	Message string  `json:"message"`
	Done    int     `json:"done"`
	Total   int     `json:"total"`
}

// ProgressEmitter receives progress for one job run
type ProgressEmitter interface {
	// EmitStage announces the start of a stage
	EmitStage(stage string, message string)

	// EmitProgress announces item-count progress within the current stage
	EmitProgress(event Event)

	// EmitComplete announces the end of the run with a summary
	EmitComplete(summary map[string]interface{})

	// EmitError announces a failure within a stage
	EmitError(stage string, err error)

	// EmitInfo emits a general informational message
	EmitInfo(message string)
}

// Percent computes done/total as a percentage, 100 for an empty total
func Percent(done, total int) float64 {
	if total <= 0 {
		return 100
	}
	p := float64(done) * 100 / float64(total)
	if p > 100 {
		return 100
	}
	return p
}

// NopEmitter discards everything
type NopEmitter struct{}

func (NopEmitter) EmitStage(string, string)            {}
func (NopEmitter) EmitProgress(Event)                  {}
func (NopEmitter) EmitComplete(map[string]interface{}) {}
func (NopEmitter) EmitError(string, error)             {}
func (NopEmitter) EmitInfo(string)                     {}

// MultiEmitter fans every event out to each emitter in order
type MultiEmitter []ProgressEmitter

func (m MultiEmitter) EmitStage(stage, message string) {
	for _, e := range m {
		e.EmitStage(stage, message)
	}
}

func (m MultiEmitter) EmitProgress(event Event) {
	for _, e := range m {
		e.EmitProgress(event)
	}
}

func (m MultiEmitter) EmitComplete(summary map[string]interface{}) {
	for _, e := range m {
		e.EmitComplete(summary)
	}
}

func (m MultiEmitter) EmitError(stage string, err error) {
	for _, e := range m {
		e.EmitError(stage, err)
	}
}

func (m MultiEmitter) EmitInfo(message string) {
	for _, e := range m {
		e.EmitInfo(message)
	}
}
