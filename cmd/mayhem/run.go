package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"

	"github.com/chazu/mayhem/pkg/builder"
	"github.com/chazu/mayhem/pkg/builders"
	"github.com/chazu/mayhem/pkg/client"
	"github.com/chazu/mayhem/pkg/geometry"
	"github.com/chazu/mayhem/pkg/kernel/sdfx"
	"github.com/chazu/mayhem/pkg/kernel/server"
	"github.com/chazu/mayhem/pkg/pipeline"
	"github.com/chazu/mayhem/pkg/pool"
	"github.com/chazu/mayhem/pkg/protocol"
	"github.com/chazu/mayhem/pkg/tessellate"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// errInvalidAssembly is returned by run when the built assembly has errors.
var errInvalidAssembly = errors.New("assembly failed validation")

var (
	outputPath   string
	kernelURL    string
	poolSize     int
	allowInvalid bool
	stlPath      string
)

var runCmd = &cobra.Command{
	Use:   "run [design]",
	Short: "Build a design and print the assembly as JSON",
	Long: `Builds every element of a design script (or a JSON design) through the
geometry kernel, assembles and validates the result, and prints the
assembly as JSON.

Without --kernel an in-process kernel is started. With --stl the
component meshes are also written as a binary STL file.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("kernel") {
			cfg.Kernel.URL = kernelURL
		}
		if cmd.Flags().Changed("pool-size") {
			cfg.Kernel.PoolSize = poolSize
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		d, err := loadDesign(ctx, args[0])
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if outputPath != "" {
			f, err := os.Create(outputPath)
			if err != nil {
				return fmt.Errorf("create output: %w", err)
			}
			defer f.Close()
			out = f
		}
		return runDesign(ctx, d, out, cmd.ErrOrStderr())
	},
}

var checkCmd = &cobra.Command{
	Use:   "check [design]",
	Short: "Run the pre-flight checks of a design without building it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := loadDesign(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		reg, err := newRegistry()
		if err != nil {
			return err
		}
		res := pipeline.New(reg, nil, pipeline.WithLogger(logger)).Check(d)
		printIssues(cmd.OutOrStdout(), res)
		if !res.Valid {
			return fmt.Errorf("%s: %d error(s)", args[0], len(res.Errors))
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d element(s) ok\n", args[0], len(d.Intents))
		return nil
	},
}

func init() {
	runCmd.Flags().StringVarP(&outputPath, "output", "o", "", "write the assembly to a file instead of stdout")
	runCmd.Flags().StringVar(&kernelURL, "kernel", "", "websocket URL of a kernel server")
	runCmd.Flags().IntVar(&poolSize, "pool-size", 0, "kernel connections used for concurrent builds")
	runCmd.Flags().BoolVar(&allowInvalid, "allow-invalid", false, "exit successfully even when validation finds errors")
	runCmd.Flags().StringVar(&stlPath, "stl", "", "write the component meshes to a binary STL file")
}

func newRegistry() (*builder.Registry, error) {
	reg := builder.NewRegistry()
	if err := builders.RegisterAll(reg); err != nil {
		return nil, err
	}
	return reg, nil
}

// openKernel returns a dialer for the configured kernel and a function
// that stops it. Without a URL the kernel runs in process.
func openKernel(ctx context.Context) (protocol.Dialer, func()) {
	if cfg.Kernel.URL != "" {
		logger.Info("using remote kernel", zap.String("url", cfg.Kernel.URL))
		return protocol.WebsocketDialer(cfg.Kernel.URL), func() {}
	}
	srv := server.New(sdfx.New(cfg.Kernel.MeshCells),
		server.WithLogger(logger),
		server.WithMeshCells(cfg.Kernel.MeshCells))
	sctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	return srv.Dialer(sctx, &wg), func() {
		cancel()
		wg.Wait()
	}
}

func runDesign(ctx context.Context, d *geometry.Design, out, errOut io.Writer) error {
	reg, err := newRegistry()
	if err != nil {
		return err
	}

	dial, stopKernel := openKernel(ctx)
	defer stopKernel()

	c := client.New(dial, client.WithLogger(logger))
	defer c.Close()
	if err := c.Initialize(ctx); err != nil {
		return err
	}

	p, err := pool.New(ctx, dial, cfg.Kernel.PoolSize, logger)
	if err != nil {
		return err
	}
	defer p.Close()

	pl := pipeline.New(reg, client.NewOps(c),
		pipeline.WithLogger(logger),
		pipeline.WithPool(p),
		pipeline.WithBuildOptions(cfg.BuildOptions()),
		pipeline.WithValidation(cfg.Validation),
		pipeline.WithLowClearance(cfg.Build.LowClearance),
		pipeline.WithProgress(func(pct float64, msg string) {
			logger.Debug("progress", zap.Float64("percent", pct), zap.String("step", msg))
		}))

	a, err := pl.Run(ctx, d)
	if err != nil {
		var de *pipeline.DesignError
		if errors.As(err, &de) {
			printIssues(errOut, de.Validation)
		}
		return err
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(a); err != nil {
		return fmt.Errorf("encode assembly: %w", err)
	}

	if stlPath != "" {
		if err := exportSTL(ctx, client.NewOps(c), a, stlPath); err != nil {
			return err
		}
	}

	printIssues(errOut, a.Validation)
	if !a.Validation.Valid && !allowInvalid {
		return fmt.Errorf("%w: %d error(s)", errInvalidAssembly, len(a.Validation.Errors))
	}
	return nil
}

func exportSTL(ctx context.Context, m tessellate.Mesher, a *geometry.AssemblyResult, path string) error {
	parts, err := tessellate.Tessellate(ctx, m, a)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create stl: %w", err)
	}
	if err := tessellate.WriteSTL(f, a.Name, parts); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close stl: %w", err)
	}
	logger.Info("wrote stl",
		zap.String("path", path),
		zap.Int("parts", len(parts)),
		zap.Int("triangles", tessellate.TriangleCount(parts)))
	return nil
}
