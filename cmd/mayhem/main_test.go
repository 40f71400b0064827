package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/chazu/mayhem/pkg/config"
	"github.com/chazu/mayhem/pkg/geometry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// execute runs the root command with args and returns its stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestCheckExample(t *testing.T) {
	out, err := execute(t, "check", "../../examples/frame.lisp")
	require.NoError(t, err, out)
	assert.Contains(t, out, "5 element(s) ok")
}

func TestCheckReportsViolations(t *testing.T) {
	path := writeFile(t, "steep.lisp",
		`(element :stairs :name "s1" :from (vec3 0 0 0) :to (vec3 4200 0 2800) :riser-height 200)`)

	out, err := execute(t, "check", path)
	require.Error(t, err)
	assert.Contains(t, out, "STAIR_RISER_HEIGHT")
	assert.Contains(t, err.Error(), "1 error(s)")
}

func TestCheckReportsScriptErrors(t *testing.T) {
	path := writeFile(t, "broken.lisp", `(element :beam :from (vec3 0 0 0))`)
	_, err := execute(t, "check", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), ":to is required")
}

func TestLoadDesignStopsWithContext(t *testing.T) {
	path := writeFile(t, "col.lisp", `(element :column :from (vec3 0 0 0) :to (vec3 0 0 3000))`)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := loadDesign(ctx, path)
	assert.ErrorIs(t, err, context.Canceled)

	d, err := loadDesign(context.Background(), path)
	require.NoError(t, err)
	assert.Len(t, d.Intents, 1)
}

func TestRunInProcess(t *testing.T) {
	if testing.Short() {
		t.Skip("meshes solids")
	}
	cfgPath := writeFile(t, "mayhem.yaml", "kernel:\n  pool_size: 2\n  mesh_cells: 32\n")

	out, err := execute(t, "--config", cfgPath, "run", "../../examples/columns.json")
	require.NoError(t, err)

	var a geometry.AssemblyResult
	require.NoError(t, json.Unmarshal([]byte(out), &a))
	assert.Equal(t, "columns", a.Name)
	assert.Len(t, a.Components, 2)
	assert.True(t, a.Validation.Valid)
}

func TestRunWritesSTL(t *testing.T) {
	if testing.Short() {
		t.Skip("meshes solids")
	}
	cfgPath := writeFile(t, "mayhem.yaml", "kernel:\n  mesh_cells: 32\n")
	stl := filepath.Join(t.TempDir(), "columns.stl")
	t.Cleanup(func() { stlPath = "" })

	_, err := execute(t, "--config", cfgPath, "run", "--stl", stl, "../../examples/columns.json")
	require.NoError(t, err)

	data, err := os.ReadFile(stl)
	require.NoError(t, err)
	require.Greater(t, len(data), 84)
	assert.True(t, bytes.HasPrefix(data, []byte("mayhem columns")))
	assert.Zero(t, (len(data)-84)%50)
}

func TestConfigCommand(t *testing.T) {
	cfgPath := writeFile(t, "mayhem.yaml", "kernel:\n  pool_size: 7\n")
	out, err := execute(t, "--config", cfgPath, "config")
	require.NoError(t, err)

	back, err := config.Parse([]byte(out))
	require.NoError(t, err)
	assert.Equal(t, 7, back.Kernel.PoolSize)
}

func TestRunAgainstServedKernel(t *testing.T) {
	if testing.Short() {
		t.Skip("meshes solids")
	}
	cfg = config.Default()
	cfg.Kernel.MeshCells = 32
	cfg.Kernel.PoolSize = 1
	logger = zap.NewNop()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() { served <- serveKernel(ctx, ln) }()

	cfg.Kernel.URL = "ws://" + ln.Addr().String() + "/"
	d := &geometry.Design{
		Name: "remote",
		Intents: []geometry.Intent{{
			ElementType: "column", Name: "c1",
			PointB: geometry.Vec3{Z: 3000},
		}},
	}
	var out, errOut bytes.Buffer
	require.NoError(t, runDesign(ctx, d, &out, &errOut))

	var a geometry.AssemblyResult
	require.NoError(t, json.Unmarshal(out.Bytes(), &a))
	assert.Equal(t, "remote", a.Name)
	require.Len(t, a.Components, 1)
	assert.InDelta(t, 3000, a.Components[0].Bounds.Size().Z, 5)

	cancel()
	assert.NoError(t, <-served)
}
