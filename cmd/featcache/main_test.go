package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/goccy/go-json"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/featcache/internal/codec"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

type testEnv struct {
	dir  string
	root string
	cfg  string
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	return testEnv{dir: dir, root: filepath.Join(dir, "cache"), cfg: filepath.Join(dir, "featcache.yaml")}
}

func (e testEnv) args(args ...string) []string {
	return append([]string{"--config", e.cfg, "--root", e.root, "--log-level", "error"}, args...)
}

var keyArgs = []string{"--track", "phylop", "--organism", "human", "--build", "hg38", "--chrom", "chr1"}

func withKey(args ...string) []string {
	return append(append([]string{}, args[0]), append(append([]string{}, keyArgs...), args[1:]...)...)
}

func TestSaveLoadLsVerify(t *testing.T) {
	env := newTestEnv(t)
	bg := filepath.Join(env.dir, "phylop.bedGraph")
	require.NoError(t, os.WriteFile(bg, []byte("chr1\t99\t105\t1.5\nchr1\t105\t110\t-2\n"), 0o644))

	out, err := execute(t, env.args(withKey("save", "--start", "100", "--end", "110", "--bedgraph", bg)...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "Cached phylop/human_hg38/chr1 100_110")
	assert.FileExists(t, filepath.Join(env.root, "phylop", "human_hg38", "chr1", "100_110"))

	out, err = execute(t, env.args(withKey("load", "--start", "95", "--end", "110", "--compact")...)...)
	require.NoError(t, err)

	var segs []segmentJSON
	require.NoError(t, json.Unmarshal([]byte(out), &segs))
	require.Len(t, segs, 2)
	assert.Equal(t, segmentJSON{Start: 95, End: 99, Status: "missing"}, segs[0])
	assert.Equal(t, "cached", segs[1].Status)
	assert.Equal(t, []float64{1.5, 1.5, 1.5, 1.5, 1.5, 1.5, -2, -2, -2, -2, -2}, segs[1].Values)

	out, err = execute(t, env.args("ls")...)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("phylop", "human_hg38", "chr1")+"\n", out)

	out, err = execute(t, env.args(withKey("ls")...)...)
	require.NoError(t, err)
	assert.Equal(t, "100\t110\t11\n", out)

	out, err = execute(t, env.args("verify", "--workers", "2")...)
	require.NoError(t, err)
	assert.Contains(t, out, "Checked 1 keys, 1 stored intervals, 0 broken")
}

func TestSaveBEDAndLoadRegions(t *testing.T) {
	env := newTestEnv(t)
	bedPath := filepath.Join(env.dir, "genes.bed")
	require.NoError(t, os.WriteFile(bedPath,
		[]byte("chr1\t149\t400\ttx1\t0\t-\t149\t400\t0\t2\t51,101,\t0,150,\n"), 0o644))

	_, err := execute(t, env.args(withKey("save", "--start", "101", "--end", "500", "--bed", bedPath)...)...)
	require.NoError(t, err)

	out, err := execute(t, env.args(withKey("load", "--start", "101", "--end", "500")...)...)
	require.NoError(t, err)

	var segs []segmentJSON
	require.NoError(t, json.Unmarshal([]byte(out), &segs))
	require.Len(t, segs, 1)
	require.Len(t, segs[0].Regions, 1)

	tx := segs[0].Regions[0]
	assert.Equal(t, int64(150), tx.Start, "absolute position")
	assert.Equal(t, int64(400), tx.End)
	assert.Equal(t, int8(-1), tx.Strand)
	require.Len(t, tx.Children, 2)
	assert.Equal(t, int64(300), tx.Children[1].Start)
}

func TestSave_UsageErrors(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		args []string
	}{
		{"no source", withKey("save", "--start", "1", "--end", "10")},
		{"bad range", withKey("save", "--start", "10", "--end", "1", "--bed", "x.bed")},
		{"missing key", []string{"save", "--start", "1", "--end", "10", "--bed", "x.bed"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, env.args(tt.args...)...)
			require.Error(t, err)
			assert.True(t, isUsageError(err), "got %v", err)
		})
	}
}

func TestClearAndInventory(t *testing.T) {
	env := newTestEnv(t)
	bg := filepath.Join(env.dir, "v.bedGraph")
	require.NoError(t, os.WriteFile(bg, []byte("chr1\t0\t100\t1\n"), 0o644))

	for _, rng := range [][2]string{{"1", "10"}, {"21", "30"}} {
		_, err := execute(t, env.args(withKey("save", "--start", rng[0], "--end", rng[1], "--bedgraph", bg)...)...)
		require.NoError(t, err)
	}

	db := filepath.Join(env.dir, "inv", "inventory.duckdb")
	out, err := execute(t, env.args("inventory", "--db", db)...)
	require.NoError(t, err)
	assert.Contains(t, out, "phylop/human_hg38/chr1")
	assert.Contains(t, out, "Wrote 2 entries")
	assert.FileExists(t, db)

	_, err = execute(t, env.args("clear")...)
	require.Error(t, err)
	assert.True(t, isUsageError(err))

	out, err = execute(t, env.args("clear", "--force")...)
	require.NoError(t, err)
	assert.Contains(t, out, "Cleared")

	out, err = execute(t, env.args("ls")...)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestConfigSetGet(t *testing.T) {
	env := newTestEnv(t)

	out, err := execute(t, env.args("config", "set", "cache.compression", "lz4")...)
	require.NoError(t, err)
	assert.Contains(t, out, "Set cache.compression = lz4")
	assert.FileExists(t, env.cfg)

	out, err = execute(t, "--config", env.cfg, "config", "get", "cache.compression")
	require.NoError(t, err)
	assert.Equal(t, "lz4\n", out)

	out, err = execute(t, "--config", env.cfg, "config")
	require.NoError(t, err)
	assert.Contains(t, out, "compression: lz4")

	_, err = execute(t, env.args("config", "set", "cache.compression", "gzip")...)
	assert.True(t, isUsageError(err))

	_, err = execute(t, env.args("config", "set", "log.max_backups", "many")...)
	assert.True(t, isUsageError(err))

	_, err = execute(t, "--config", env.cfg, "config", "get", "no.such.key")
	assert.Error(t, err)
}

func TestDecodeConfig(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("cache.root", "/data/featcache")
	v.Set("cache.compression", "none")
	v.Set("log.max_backups", 7)

	cfg, err := decodeConfig(v)
	require.NoError(t, err)
	assert.Equal(t, "/data/featcache", cfg.Cache.Root)
	assert.Equal(t, codec.CompressionNone, cfg.Cache.Compression)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, 100, cfg.Log.MaxSizeMB)
	assert.Equal(t, 7, cfg.Log.MaxBackups)

	v.Set("cache.compression", "brotli")
	_, err = decodeConfig(v)
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "featcache.log")
	logger, err := newLogger(LogConfig{Level: "info", File: path, MaxSizeMB: 1, MaxBackups: 1})
	require.NoError(t, err)
	logger.Info("hello")
	logger.Debug("hidden")
	require.NoError(t, logger.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"hello"`)
	assert.NotContains(t, string(data), "hidden")

	_, err = newLogger(LogConfig{Level: "loud"})
	assert.True(t, isUsageError(err))
}

func TestRunExitCodes(t *testing.T) {
	env := newTestEnv(t)

	assert.Equal(t, ExitSuccess, run([]string{"--version"}))
	assert.Equal(t, ExitUsage, run(env.args("clear")))
	assert.Equal(t, ExitError, run(env.args("no-such-command")))
}
