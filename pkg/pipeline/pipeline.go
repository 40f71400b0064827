// Package pipeline turns a design into a validated assembly. It resolves a
// builder for each intent, checks every intent without touching the
// kernel, builds the elements concurrently, then assembles, combines and
// validates the result.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/chazu/mayhem/pkg/assembly"
	"github.com/chazu/mayhem/pkg/builder"
	"github.com/chazu/mayhem/pkg/geometry"
	"github.com/chazu/mayhem/pkg/pool"
	"github.com/chazu/mayhem/pkg/validation"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrInvalidDesign is returned by Run when pre-flight checks fail.
var ErrInvalidDesign = errors.New("design failed pre-flight checks")

// DefaultMaterial is used for intents that name none.
var DefaultMaterial = geometry.Steel

// DesignError carries the pre-flight findings that stopped a run.
type DesignError struct {
	Validation geometry.ValidationResult
}

func (e *DesignError) Error() string {
	msgs := lo.Map(e.Validation.Errors, func(i geometry.ValidationIssue, _ int) string { return i.Error() })
	return fmt.Sprintf("%s: %s", ErrInvalidDesign, strings.Join(msgs, "; "))
}

func (e *DesignError) Unwrap() error { return ErrInvalidDesign }

// ProgressFunc reports run progress (0-100).
type ProgressFunc func(percent float64, message string)

// Pipeline runs designs against one kernel session.
type Pipeline struct {
	registry  *builder.Registry
	ops       geometry.Ops
	pool      *pool.Pool
	assembler *assembly.Builder
	validator *validation.Engine
	build     builder.Options
	progress  ProgressFunc
	logger    *zap.Logger

	validation   validation.Config
	lowClearance float64
	// parallelism bounds concurrent builds when no pool is set.
	parallelism int
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithPool bounds concurrent builds by p's connections.
func WithPool(p *pool.Pool) Option {
	return func(pl *Pipeline) { pl.pool = p }
}

// WithParallelism bounds concurrent builds when no pool is set.
// n <= 0 means unbounded.
func WithParallelism(n int) Option {
	return func(pl *Pipeline) { pl.parallelism = n }
}

// WithBuildOptions sets the options handed to every builder.
// OnProgress is ignored; use WithProgress.
func WithBuildOptions(o builder.Options) Option {
	return func(pl *Pipeline) {
		o.OnProgress = nil
		pl.build = o
	}
}

// WithValidation replaces the default validation config.
func WithValidation(cfg validation.Config) Option {
	return func(pl *Pipeline) { pl.validation = cfg }
}

// WithLowClearance sets the assembly's low clearance threshold in mm.
func WithLowClearance(mm float64) Option {
	return func(pl *Pipeline) { pl.lowClearance = mm }
}

// WithProgress receives progress as elements finish.
func WithProgress(fn ProgressFunc) Option {
	return func(pl *Pipeline) { pl.progress = fn }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(pl *Pipeline) {
		if l != nil {
			pl.logger = l
		}
	}
}

// New returns a pipeline resolving builders from registry and driving ops.
func New(registry *builder.Registry, ops geometry.Ops, opts ...Option) *Pipeline {
	pl := &Pipeline{
		registry:     registry,
		ops:          ops,
		logger:       zap.NewNop(),
		validation:   validation.DefaultConfig(),
		lowClearance: assembly.DefaultLowClearance,
	}
	for _, o := range opts {
		o(pl)
	}
	pl.logger = pl.logger.Named("pipeline")
	pl.assembler = assembly.New(ops, assembly.WithLogger(pl.logger), assembly.WithLowClearance(pl.lowClearance))
	pl.validator = validation.New(ops, pl.validation, validation.WithLogger(pl.logger))
	return pl
}

// job is one resolved intent.
type job struct {
	intent  geometry.Intent
	builder builder.GeometryBuilder
	ctx     *builder.Context
	input   builder.Input
}

// resolve maps every intent to a builder and a build context. Problems are
// reported as findings rather than errors.
func (pl *Pipeline) resolve(d *geometry.Design) ([]job, geometry.ValidationResult) {
	res := geometry.NewValidationResult()
	seen := make(map[string]bool, len(d.Intents))
	jobs := make([]job, 0, len(d.Intents))

	for i, in := range d.Intents {
		label := in.Name
		if label == "" {
			label = fmt.Sprintf("%s #%d", in.ElementType, i+1)
		}
		if in.Name != "" {
			if seen[in.Name] {
				res.AddError(geometry.CodeInvalidInput, fmt.Sprintf("duplicate element name %q", in.Name), in.Name)
				continue
			}
			seen[in.Name] = true
		}

		b, err := pl.registry.Get(in.ElementType)
		if err != nil {
			res.AddError(geometry.CodeInvalidInput, err.Error(), label)
			continue
		}

		mat := DefaultMaterial
		if in.Material != "" {
			m, ok := geometry.LookupMaterial(in.Material)
			if !ok {
				res.AddError(geometry.CodeInvalidInput, fmt.Sprintf("unknown material %q", in.Material), label)
				continue
			}
			mat = m
		}

		env := d.Environment
		jobs = append(jobs, job{
			intent:  in,
			builder: b,
			ctx: &builder.Context{
				PointA:      in.PointA,
				PointB:      in.PointB,
				Environment: &env,
				Material:    mat,
				Options:     pl.build,
				Kernel:      pl.ops,
				Logger:      pl.logger.With(zap.String("element", label)),
			},
			input: builder.Input{Name: in.Name, Params: in.Parameters},
		})
	}
	return jobs, res
}

// Check runs the pre-flight checks of every intent. It never touches the
// kernel.
func (pl *Pipeline) Check(d *geometry.Design) geometry.ValidationResult {
	_, res := pl.preflight(d)
	return res
}

func (pl *Pipeline) preflight(d *geometry.Design) ([]job, geometry.ValidationResult) {
	jobs, res := pl.resolve(d)
	for _, j := range jobs {
		res.Merge(j.builder.Validate(j.ctx, j.input))
	}
	return jobs, res
}

// Run builds d. A design failing pre-flight checks returns a *DesignError
// before any kernel call. Otherwise the returned assembly carries the
// terminal validation, including pre-flight warnings; an invalid result
// is not an error.
func (pl *Pipeline) Run(ctx context.Context, d *geometry.Design) (*geometry.AssemblyResult, error) {
	jobs, pre := pl.preflight(d)
	if !pre.Valid {
		return nil, &DesignError{Validation: pre}
	}
	if len(jobs) == 0 {
		return nil, fmt.Errorf("run %q: %w", d.Name, assembly.ErrEmptyAssembly)
	}

	name := d.Name
	if name == "" {
		name = "design"
	}
	pl.logger.Info("run started", zap.String("design", name), zap.Int("elements", len(jobs)))

	components, err := pl.buildAll(ctx, jobs)
	if err != nil {
		return nil, err
	}

	a, err := pl.assembler.BuildAssembly(ctx, name, components, d.Connections)
	if err != nil {
		return nil, err
	}
	a, err = pl.assembler.CombineComponents(ctx, a)
	if err != nil {
		return nil, err
	}
	pl.report(90, "assembled")

	final := pl.validator.ValidateAssemblyComplete(ctx, a, &d.Environment)
	for _, w := range pre.Warnings {
		final.Add(w)
	}
	a.Validation = final
	pl.report(100, "validated")

	pl.logger.Info("run finished",
		zap.String("design", name),
		zap.Bool("valid", final.Valid),
		zap.Int("errors", len(final.Errors)),
		zap.Int("warnings", len(final.Warnings)))
	return a, nil
}

// buildAll builds every job and returns components in intent order. The
// first failure cancels builds that have not started.
func (pl *Pipeline) buildAll(ctx context.Context, jobs []job) ([]geometry.GeometryResult, error) {
	var (
		mu   sync.Mutex
		done int
	)
	finished := func(name string) {
		mu.Lock()
		defer mu.Unlock()
		done++
		pl.report(80*float64(done)/float64(len(jobs)), "built "+name)
	}

	tasks := lo.Map(jobs, func(j job, _ int) func(context.Context) (geometry.GeometryResult, error) {
		return func(ctx context.Context) (geometry.GeometryResult, error) {
			g, err := j.builder.Build(ctx, j.ctx, j.input)
			if err != nil {
				return geometry.GeometryResult{}, fmt.Errorf("build %s %q: %w", j.intent.ElementType, j.intent.Name, err)
			}
			finished(g.Label())
			return *g, nil
		}
	})

	if pl.pool != nil {
		return pool.Parallel(ctx, pl.pool, tasks)
	}

	out := make([]geometry.GeometryResult, len(tasks))
	g, gctx := errgroup.WithContext(ctx)
	if pl.parallelism > 0 {
		g.SetLimit(pl.parallelism)
	}
	for i, task := range tasks {
		g.Go(func() error {
			v, err := task(gctx)
			if err != nil {
				return err
			}
			out[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (pl *Pipeline) report(percent float64, msg string) {
	if pl.progress != nil {
		pl.progress(percent, msg)
	}
}
