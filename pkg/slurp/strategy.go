package slurp

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/aretw0/crackle/pkg/domain"
	"github.com/aretw0/crackle/pkg/model"
	"github.com/aretw0/crackle/pkg/ports"
)

// Binding is a slurp bound to a position in the StateModel. Key must be
// stable across iterations; it addresses the recording in the cache.
type Binding struct {
	Key    string
	Source string
	Sink   string
}

// Strategy applies one binding to the running iteration.
type Strategy interface {
	Apply(ctx context.Context, scope *Scope, b Binding) error
}

// StrategyFor returns the recording strategy on the control recording
// iteration and the replay strategy otherwise.
func StrategyFor(recording bool, cache ports.SlurpCache, logger *slog.Logger) Strategy {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	rec := &recordStrategy{cache: cache, logger: logger}
	if recording {
		return rec
	}
	return &replayStrategy{cache: cache, logger: logger, fallback: rec}
}

type recordStrategy struct {
	cache  ports.SlurpCache
	logger *slog.Logger
}

func (s *recordStrategy) Apply(ctx context.Context, scope *Scope, b Binding) error {
	src, err := source(scope, b)
	if err != nil {
		return err
	}
	sinkSel, err := Compile(b.Sink)
	if err != nil {
		return &domain.ConfigError{Path: b.Key, Err: err}
	}

	value := src.Model.Tree.Value(src.ID)
	rec := domain.SlurpRecording{Source: src.Path(), Value: value}
	for _, el := range scope.Select(sinkSel, false) {
		if el.Model.Tree.Kind(el.ID).IsContainer() {
			s.logger.Debug("slurp sink is a container, skipped", "binding", b.Key, "sink", el.Path())
			continue
		}
		if el.Model.Tree == src.Model.Tree && el.ID == src.ID {
			continue
		}
		el.Model.Tree.SetValue(el.ID, value)
		rec.Sinks = append(rec.Sinks, el.Path())
	}
	if len(rec.Sinks) == 0 {
		s.logger.Warn("slurp sink matched no element", "binding", b.Key, "sink", b.Sink)
	}

	if err := s.cache.Store(ctx, b.Key, rec); err != nil {
		return fmt.Errorf("failed to store slurp recording %s: %w", b.Key, err)
	}
	s.logger.Debug("slurp recorded", "binding", b.Key, "source", rec.Source, "sinks", len(rec.Sinks))
	return nil
}

type replayStrategy struct {
	cache    ports.SlurpCache
	logger   *slog.Logger
	fallback Strategy
}

func (s *replayStrategy) Apply(ctx context.Context, scope *Scope, b Binding) error {
	rec, ok, err := s.cache.Load(ctx, b.Key)
	if err != nil {
		return fmt.Errorf("failed to load slurp recording %s: %w", b.Key, err)
	}
	if !ok {
		s.logger.Warn("no slurp recording, resolving selectors", "binding", b.Key)
		return s.fallback.Apply(ctx, scope, b)
	}

	value := rec.Value
	if src, err := source(scope, b); err == nil {
		value = src.Model.Tree.Value(src.ID)
	} else {
		s.logger.Debug("slurp source not in scope, using recorded value", "binding", b.Key, "source", rec.Source)
	}

	applied := 0
	for _, p := range rec.Sinks {
		el, ok := scope.Resolve(p)
		if !ok || el.Model.Tree.Kind(el.ID).IsContainer() {
			s.logger.Debug("recorded slurp sink no longer resolves", "binding", b.Key, "sink", p)
			continue
		}
		el.Model.Tree.SetValue(el.ID, value)
		applied++
	}
	s.logger.Debug("slurp replayed", "binding", b.Key, "applied", applied, "recorded", len(rec.Sinks))
	return nil
}

// source resolves the binding's source to exactly one in-scope element.
func source(scope *Scope, b Binding) (Element, error) {
	sel, err := Compile(b.Source)
	if err != nil {
		return Element{}, &domain.ConfigError{Path: b.Key, Err: err}
	}
	matches := scope.Select(sel, true)
	if len(matches) != 1 {
		return Element{}, &domain.ConfigError{
			Path: b.Key,
			Err:  fmt.Errorf("%w: '%s' matched %d", domain.ErrSlurpSource, b.Source, len(matches)),
		}
	}
	return matches[0], nil
}

// Value returns the authored value at an absolute path, for inspection.
func Value(scope *Scope, path string) (model.Value, bool) {
	el, ok := scope.Resolve(path)
	if !ok {
		return model.Nil, false
	}
	return el.Model.Tree.Value(el.ID), true
}
