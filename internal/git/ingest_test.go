package git

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lmoretti/punchcard/internal/db"
	"github.com/lmoretti/punchcard/internal/tracker"
)

func newTestTracker(t *testing.T) *tracker.Service {
	t.Helper()

	database, err := db.OpenAndMigrate(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	return tracker.NewService(database)
}

// initTestRepo creates a repo with one commit and chdirs into it.
func initTestRepo(t *testing.T) {
	t.Helper()

	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}

	dir := t.TempDir()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })

	runTestGit(t, "init", "-q")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("hello\n"), 0644))
	runTestGit(t, "add", "README.md")
	runTestGit(t, "commit", "-q", "-m", "initial commit")
}

func runTestGit(t *testing.T, args ...string) {
	t.Helper()

	full := append([]string{"-c", "user.name=test", "-c", "user.email=test@example.com"}, args...)
	cmd := exec.Command("git", full...)
	output, err := cmd.CombinedOutput()
	require.NoError(t, err, string(output))
}

func TestIngestHeadLinksToRunningEntry(t *testing.T) {
	initTestRepo(t)
	svc := newTestTracker(t)
	ingestor := NewIngestor(svc)

	entry, err := svc.StartEntry(nil, nil)
	require.NoError(t, err)

	result, err := ingestor.IngestHead()
	require.NoError(t, err)
	assert.False(t, result.Skipped)
	assert.True(t, result.Linked)
	assert.Equal(t, "initial commit", result.Message)

	detail, err := svc.GetEntry(entry.ID)
	require.NoError(t, err)
	require.Len(t, detail.Artifacts, 1)
	assert.Equal(t, ArtifactType, detail.Artifacts[0].ArtifactType)
	require.NotNil(t, detail.Artifacts[0].Reference)
	assert.Equal(t, result.CommitHash, *detail.Artifacts[0].Reference)
}

func TestIngestHeadWithoutRunningEntry(t *testing.T) {
	initTestRepo(t)
	svc := newTestTracker(t)

	result, err := NewIngestor(svc).IngestHead()
	require.NoError(t, err)
	assert.False(t, result.Skipped)
	assert.False(t, result.Linked)

	artifacts, err := svc.ListArtifacts(nil)
	require.NoError(t, err)
	assert.Len(t, artifacts, 1)
}

func TestIngestHeadDeduplicates(t *testing.T) {
	initTestRepo(t)
	svc := newTestTracker(t)
	ingestor := NewIngestor(svc)

	_, err := ingestor.IngestHead()
	require.NoError(t, err)

	second, err := ingestor.IngestHead()
	require.NoError(t, err)
	assert.True(t, second.Skipped)

	artifacts, err := svc.ListArtifacts(nil)
	require.NoError(t, err)
	assert.Len(t, artifacts, 1)
}

func TestBackfill(t *testing.T) {
	initTestRepo(t)
	svc := newTestTracker(t)

	require.NoError(t, os.WriteFile("second.txt", []byte("more\n"), 0644))
	runTestGit(t, "add", "second.txt")
	runTestGit(t, "commit", "-q", "-m", "second commit")

	result, err := NewIngestor(svc).Backfill(HistoryOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, result.TotalFound)
	assert.Equal(t, 2, result.Recorded)
	assert.Equal(t, 0, result.Skipped)

	// Running it again records nothing new.
	result, err = NewIngestor(svc).Backfill(HistoryOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Recorded)
	assert.Equal(t, 2, result.Skipped)
}
