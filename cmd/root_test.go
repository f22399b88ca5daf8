package cmd

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/logbook-exporter/internal/config"
	"github.com/JakeFAU/logbook-exporter/internal/fetch"
	"github.com/JakeFAU/logbook-exporter/internal/pipeline"
)

type fakeRunner struct {
	summary pipeline.Summary
	err     error
	ran     bool
	closed  bool
}

func (f *fakeRunner) Run(context.Context) (pipeline.Summary, error) {
	f.ran = true
	return f.summary, f.err
}

func (f *fakeRunner) Close() {
	f.closed = true
}

// useRunner swaps the application factory for the duration of a test.
func useRunner(t *testing.T, runner *fakeRunner, got *config.Config) {
	t.Helper()
	original := newRunner
	newRunner = func(cfg config.Config, _ *zap.Logger) (Runner, error) {
		if got != nil {
			*got = cfg
		}
		return runner, nil
	}
	t.Cleanup(func() { newRunner = original })
}

func execute(args ...string) (string, error) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestHelp(t *testing.T) {
	out, err := execute("--help")
	require.NoError(t, err)
	assert.Contains(t, out, "--url")
	assert.Contains(t, out, "--output")
	assert.Contains(t, out, "status")
}

func TestMissingRequiredFlags(t *testing.T) {
	runner := &fakeRunner{}
	useRunner(t, runner, nil)

	_, err := execute("--url", "https://site.test/r/1/")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"output"`)
	assert.False(t, runner.ran)
}

func TestRunExport(t *testing.T) {
	runner := &fakeRunner{summary: pipeline.Summary{
		ReviewWritten:  true,
		PostsFound:     5,
		PostsRemaining: 5,
		PostsSaved:     4,
		PostsFailed:    1,
		PagesSkipped:   1,
	}}
	var cfg config.Config
	useRunner(t, runner, &cfg)

	out, err := execute("-u", "https://site.test/r/1/", "-o", t.TempDir(), "--static")
	require.NoError(t, err)
	assert.True(t, runner.ran)
	assert.True(t, runner.closed)
	assert.Equal(t, "https://site.test/r/1/", cfg.SourceURL)
	assert.Equal(t, fetch.ModeStatic, cfg.Fetch.Mode)
	assert.Contains(t, out, "review: saved")
	assert.Contains(t, out, "posts: 5 found, 5 new, 4 saved, 1 failed")
	assert.Contains(t, out, "listing pages skipped: 1")
}

func TestRunExportFailure(t *testing.T) {
	runner := &fakeRunner{err: errors.New("output directory is unusable")}
	useRunner(t, runner, nil)

	_, err := execute("-u", "https://site.test/r/1/", "-o", t.TempDir())
	require.Error(t, err)
	assert.True(t, runner.closed)
}

func TestRunExportRejectsBadURL(t *testing.T) {
	runner := &fakeRunner{}
	useRunner(t, runner, nil)

	_, err := execute("-u", "not-a-url", "-o", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "source_url")
	assert.False(t, runner.ran)
}

func TestStatus(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/out", 0o750))
	require.NoError(t, afero.WriteFile(fs, "/out/.progress.json", []byte(`{"reviewComplete":true,"processedPosts":[
		{"link":"https://site.test/l/1/","title":"Oil","fileName":"2014-01-19 - Oil.md"}]}`), 0o600))
	require.NoError(t, afero.WriteFile(fs, "/out/2014-01-19 - Oil.md", []byte("# Oil\n"), 0o600))
	original := statusFs
	statusFs = fs
	t.Cleanup(func() { statusFs = original })

	out, err := execute("status", "-o", "/out")
	require.NoError(t, err)
	assert.Contains(t, out, "output: /out\n")
	assert.Contains(t, out, "review saved: true\t(file missing)\n", "Home.md was deleted after the export")
	assert.Contains(t, out, "posts saved: 1")
	assert.Contains(t, out, "2014-01-19 - Oil.md\thttps://site.test/l/1/\n")

	_, err = execute("status", "-o", "/missing")
	require.Error(t, err)
}
