package worker

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hiveworks/fleetd/internal/jobdesc"
	"github.com/hiveworks/fleetd/internal/transport"
	"github.com/hiveworks/fleetd/pkg/types"
)

type fakeHeartbeatClient struct {
	view types.FleetView
	err  error
	hits int
}

func (f *fakeHeartbeatClient) RegisterHeartbeat(_ context.Context, _ types.Address) (types.FleetView, error) {
	f.hits++
	return f.view, f.err
}

func newTestNode(t *testing.T, hb HeartbeatClient) (*Node, *Context) {
	t.Helper()
	ctx := NewContext(t.TempDir(), "w1:9000", "10.0.0.1")
	node := NewNode(NodeConfig{
		Context:   ctx,
		Heartbeat: hb,
		NewExecutor: func(*Context, jobdesc.Descriptor, string, string, int) Executor {
			return NewNoopExecutor(NoopExecutorConfig{Tick: time.Millisecond})
		},
	})
	return node, ctx
}

func writeZip(t *testing.T, ctx *Context, name types.JobName) {
	t.Helper()
	require.NoError(t, os.MkdirAll(ctx.ZipDir(), 0755))
	require.NoError(t, os.MkdirAll(ctx.JobsDir(), 0755))

	srcDir := t.TempDir()
	jobSrc := filepath.Join(srcDir, string(name))
	require.NoError(t, os.MkdirAll(jobSrc, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(jobSrc, "job.yaml"), []byte("settings:\n  k: v\n"), 0644))
	require.NoError(t, transport.ZipDir(srcDir, ctx.ZipPath(name)))
}

// TestPrepareWithoutZip is S1: worker dir empty, prepare("demo", unzip=false)
// returns false, has_job("demo") false.
func TestPrepareWithoutZip(t *testing.T) {
	node, _ := newTestNode(t, &fakeHeartbeatClient{})

	ok, err := node.Prepare("demo", PrepareOptions{Unzip: false})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, node.HasJob("demo"))
}

// TestHappyPath is S2: put demo.zip, prepare -> true, run_job -> true,
// has_job -> true, clear_job -> elapsed >= 0, has_job -> false.
func TestHappyPath(t *testing.T) {
	node, ctx := newTestNode(t, &fakeHeartbeatClient{})
	writeZip(t, ctx, "demo")

	ok, err := node.Prepare("demo", PrepareOptions{Unzip: true})
	require.NoError(t, err)
	require.True(t, ok)

	assert.True(t, node.RunJob("demo"))
	assert.True(t, node.HasJob("demo"))

	elapsed, ok := node.ClearJob("demo")
	require.True(t, ok)
	assert.GreaterOrEqual(t, elapsed, 0.0)
	assert.False(t, node.HasJob("demo"))
}

// TestHeartbeatUpdatesFleetView is S3: master returns a 2-address roster;
// after one tick, addrs/ips are length 2.
func TestHeartbeatUpdatesFleetView(t *testing.T) {
	hb := &fakeHeartbeatClient{view: types.FleetView{
		Addrs: []types.Address{"h1:9000", "h2:9000"},
		IPs:   []types.IP{"h1", "h2"},
	}}
	node, ctx := newTestNode(t, hb)

	node.tick()

	view := ctx.FleetView()
	assert.Len(t, view.Addrs, 2)
	assert.Len(t, view.IPs, 2)
}

// TestAtMostOneRunnerPerName is Testable Property 2: two concurrent
// run_job calls result in exactly one runner started.
func TestAtMostOneRunnerPerName(t *testing.T) {
	node, ctx := newTestNode(t, &fakeHeartbeatClient{})
	writeZip(t, ctx, "demo")
	ok, err := node.Prepare("demo", PrepareOptions{Unzip: true})
	require.NoError(t, err)
	require.True(t, ok)

	first := node.RunJob("demo")
	second := node.RunJob("demo")

	assert.True(t, first)
	assert.False(t, second)
}

// TestLifecycleMonotonicity is Testable Property 1: has_job is true from
// the end of a successful prepare until clear_job returns.
func TestLifecycleMonotonicity(t *testing.T) {
	node, ctx := newTestNode(t, &fakeHeartbeatClient{})
	writeZip(t, ctx, "demo")

	assert.False(t, node.HasJob("demo"))
	ok, err := node.Prepare("demo", PrepareOptions{Unzip: true})
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, node.HasJob("demo"))

	node.RunJob("demo")
	assert.True(t, node.HasJob("demo"))

	node.StopJob("demo")
	assert.True(t, node.HasJob("demo"))

	_, ok = node.ClearJob("demo")
	require.True(t, ok)
	assert.False(t, node.HasJob("demo"))
}

func TestClearJobUnknownNameIsNoOp(t *testing.T) {
	node, _ := newTestNode(t, &fakeHeartbeatClient{})
	_, ok := node.ClearJob("ghost")
	assert.False(t, ok)
}

func TestStopJobUnknownNameIsNoOp(t *testing.T) {
	node, _ := newTestNode(t, &fakeHeartbeatClient{})
	node.StopJob("ghost") // must not panic
}

func TestShutdownWithoutHeartbeatStartIsNoOp(t *testing.T) {
	node, ctx := newTestNode(t, &fakeHeartbeatClient{})
	writeZip(t, ctx, "demo")
	ok, err := node.Prepare("demo", PrepareOptions{Unzip: true})
	require.NoError(t, err)
	require.True(t, ok)
	node.RunJob("demo")

	node.Shutdown() // heartbeat never started: must return immediately

	assert.True(t, node.HasJob("demo"), "shutdown without a started heartbeat must be a no-op")
}

func TestShutdownJoinsRunnersAndStopsHeartbeat(t *testing.T) {
	node, ctx := newTestNode(t, &fakeHeartbeatClient{})
	writeZip(t, ctx, "demo")
	ok, err := node.Prepare("demo", PrepareOptions{Unzip: true})
	require.NoError(t, err)
	require.True(t, ok)
	node.RunJob("demo")

	node.StartHeartbeat()
	node.Shutdown()
	// Shutdown must not hang; reaching this line is the assertion.
}

func TestAddNodeAndRemoveNodeForwardToRunningExecutors(t *testing.T) {
	var captured Executor
	node, ctx := newTestNode(t, &fakeHeartbeatClient{})
	writeZip(t, ctx, "demo")

	node.newExec = func(*Context, jobdesc.Descriptor, string, string, int) Executor {
		e := NewNoopExecutor(NoopExecutorConfig{Tick: time.Millisecond})
		captured = e
		return e
	}

	ok, err := node.Prepare("demo", PrepareOptions{Unzip: true})
	require.NoError(t, err)
	require.True(t, ok)
	node.RunJob("demo")

	node.AddNode("h2:9000")
	view := ctx.FleetView()
	assert.Equal(t, []types.Address{"h2:9000"}, view.Addrs)
	assert.Equal(t, []types.IP{"h2"}, view.IPs)

	node.RemoveNode("h2:9000")
	view = ctx.FleetView()
	assert.Empty(t, view.Addrs)
	assert.Empty(t, view.IPs)

	exec := captured.(*NoopExecutor)
	exec.mu.Lock()
	defer exec.mu.Unlock()
	assert.Equal(t, []types.Address{"h2:9000"}, exec.nodesAdd)
	assert.Equal(t, []types.Address{"h2:9000"}, exec.nodesDel)
}

func writeZipWithClear(t *testing.T, ctx *Context, name types.JobName) {
	t.Helper()
	require.NoError(t, os.MkdirAll(ctx.ZipDir(), 0755))
	require.NoError(t, os.MkdirAll(ctx.JobsDir(), 0755))

	srcDir := t.TempDir()
	jobSrc := filepath.Join(srcDir, string(name))
	require.NoError(t, os.MkdirAll(jobSrc, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(jobSrc, "job.yaml"), []byte("clear: true\n"), 0644))
	require.NoError(t, transport.ZipDir(srcDir, ctx.ZipPath(name)))
}

// TestSelectRunDirHonorsClearOnlyInLocalMode is spec.md §4.1 step 5 /
// SPEC_FULL §4.7: a descriptor's "clear" flag removes a pre-existing run
// dir only when the worker is in local mode; a distributed worker (the
// default) instead picks a fresh numbered suffix, never wiping the
// existing directory out from under whatever still references it.
func TestSelectRunDirHonorsClearOnlyInLocalMode(t *testing.T) {
	node, ctx := newTestNode(t, &fakeHeartbeatClient{})
	writeZipWithClear(t, ctx, "demo")

	base := ctx.RunDir("demo")
	require.NoError(t, os.MkdirAll(base, 0755))
	sentinel := filepath.Join(base, "sentinel")
	require.NoError(t, os.WriteFile(sentinel, []byte("x"), 0644))

	runDir, err := node.selectRunDir("demo", false, false)
	require.NoError(t, err)
	assert.Equal(t, base+".1", runDir, "distributed mode must not honor clear: true, picks a fresh suffix instead")
	assert.FileExists(t, sentinel, "the pre-existing run dir must be left untouched")

	runDir, err = node.selectRunDir("demo", false, true)
	require.NoError(t, err)
	assert.Equal(t, base, runDir, "local mode honoring clear: true removes and recreates the base run dir")
	assert.NoFileExists(t, sentinel)
}

// TestPrepareGatesDescriptorClearOnContextLocalMode exercises the gating
// end to end through Prepare: ctx.LocalMode (wired from the CLI's
// node.local_mode config) must be true for a descriptor's "clear: true" to
// take effect, per spec.md §4.1 step 5's "if ... we are in local mode".
func TestPrepareGatesDescriptorClearOnContextLocalMode(t *testing.T) {
	node, ctx := newTestNode(t, &fakeHeartbeatClient{})
	writeZipWithClear(t, ctx, "demo")

	base := ctx.RunDir("demo")
	require.NoError(t, os.MkdirAll(base, 0755))
	sentinel := filepath.Join(base, "sentinel")
	require.NoError(t, os.WriteFile(sentinel, []byte("x"), 0644))

	ctx.LocalMode = false
	ok, err := node.Prepare("demo", PrepareOptions{Unzip: true})
	require.NoError(t, err)
	require.True(t, ok)
	assert.FileExists(t, sentinel, "distributed mode (default) must not wipe the existing run dir")
}
