package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chazu/mayhem/pkg/engine"
	"github.com/chazu/mayhem/pkg/geometry"
	"go.uber.org/zap"
)

// loadDesign reads a design from a JSON file or evaluates a design script.
// Evaluation stops waiting when ctx ends.
func loadDesign(ctx context.Context, path string) (*geometry.Design, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read design: %w", err)
	}

	if strings.EqualFold(filepath.Ext(path), ".json") {
		var d geometry.Design
		if err := json.Unmarshal(data, &d); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
		return &d, nil
	}

	eng := engine.NewEngine(engine.WithTimeout(cfg.Engine.Timeout))
	d, evalErrs, err := eng.Evaluate(ctx, string(data))
	if err != nil {
		return nil, fmt.Errorf("evaluate %s: %w", path, err)
	}
	if len(evalErrs) > 0 {
		errs := make([]error, len(evalErrs))
		for i, e := range evalErrs {
			errs[i] = fmt.Errorf("%s: %w", path, e)
		}
		return nil, errors.Join(errs...)
	}
	logger.Debug("design loaded",
		zap.String("path", path),
		zap.String("name", d.Name),
		zap.Int("intents", len(d.Intents)),
		zap.Int("obstacles", len(d.Environment.Obstacles)))
	return d, nil
}

// printIssues writes findings one per line, errors first.
func printIssues(w io.Writer, res geometry.ValidationResult) {
	for _, i := range res.Errors {
		fmt.Fprintln(w, i.Error())
	}
	for _, i := range res.Warnings {
		fmt.Fprintln(w, i.Error())
	}
}
