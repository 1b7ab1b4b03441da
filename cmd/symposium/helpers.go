package main

import (
	"fmt"
	"path/filepath"

	"symposium/internal/config"
	"symposium/internal/engine"
	"symposium/internal/evaluate"
	"symposium/internal/llm"
	"symposium/internal/store"
	"symposium/internal/summarize"
)

// catalogPath places the run catalog DB inside the data dir.
func catalogPath(cfg *config.Config) string {
	return filepath.Join(cfg.DataDir, "symposium.db")
}

// openEngine builds the engine with the configured backends and an
// open catalog. The caller must Close the returned store.
func openEngine(cfg *config.Config) (*engine.Engine, store.Store, error) {
	catalog, err := store.Open(catalogPath(cfg))
	if err != nil {
		return nil, nil, fmt.Errorf("open run catalog: %w", err)
	}

	var (
		sum  summarize.Summarizer
		eval evaluate.Evaluator
	)
	switch cfg.Summarizer {
	case "llm":
		ep, key, err := cfg.Active()
		if err != nil {
			_ = catalog.Close()
			return nil, nil, err
		}
		client := &llm.Client{
			BaseURL:     ep.BaseURL,
			Model:       ep.Model,
			APIKey:      key,
			MaxTokens:   ep.MaxTokens,
			Temperature: ep.Temperature,
		}
		sum = &summarize.LLM{Client: client}
		eval = &evaluate.LLM{Client: client}
	default:
		sum = &summarize.Outline{}
		eval = &evaluate.Grounded{}
	}
	return engine.New(cfg, sum, eval, catalog), catalog, nil
}

// stepPhase runs exactly one phase of an existing run: it locks the
// run, checks the run sits at the phase the command expects, and
// applies fn.
func stepPhase(runID string, want engine.Phase, fn func(*engine.Engine, *engine.RunState) error) error {
	eng, catalog, err := openEngine(cfg)
	if err != nil {
		return err
	}
	defer catalog.Close()

	lock, err := engine.AcquireLock(cfg.DataDir, runID)
	if err != nil {
		return err
	}
	defer lock.Release()

	st, err := engine.LoadState(cfg.DataDir, runID)
	if err != nil {
		return err
	}
	if st.Phase != want {
		return fmt.Errorf("run %s is at %s, not %s; use 'symposium resume' to continue from where it stands", runID, st.Phase, want)
	}
	return fn(eng, st)
}
