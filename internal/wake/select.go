package wake

import (
	"errors"
	"log/slog"

	"github.com/hearken-ai/hearken/pkg/provider/keyword"
	"github.com/hearken-ai/hearken/pkg/provider/stt"
)

// selectStrategy picks the detection backend once, at construction. The
// acoustic engine wins when it is present and can spot the phrase (built-in
// keyword or custom model, credentials checked by the engine itself);
// otherwise the transcription fallback is used.
func selectStrategy(cfg Config, engine keyword.Engine, sttProvider stt.Provider, logger *slog.Logger) (strategy, error) {
	if engine != nil && engine.CanSpot(cfg.Phrase) {
		strat, err := newAcousticStrategy(engine, cfg.Phrase)
		if err == nil {
			return strat, nil
		}
		if sttProvider == nil {
			return nil, err
		}
		logger.Warn("acoustic engine unavailable, falling back to transcription",
			"phrase", cfg.Phrase, "error", err)
	}
	if sttProvider == nil {
		return nil, errors.New("wake: no usable strategy: phrase is not acoustically spottable and no transcription provider is configured")
	}
	return newTranscribeStrategy(sttProvider, cfg)
}
