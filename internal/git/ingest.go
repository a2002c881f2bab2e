package git

import (
	"fmt"

	"github.com/lmoretti/punchcard/internal/models"
	"github.com/lmoretti/punchcard/internal/tracker"
)

// ArtifactType is the artifact_type recorded for ingested commits.
const ArtifactType = "commit"

// Ingestor records commits as artifacts on the ledger. Ingested commits
// are deduplicated by their hash in the artifact reference.
type Ingestor struct {
	tracker *tracker.Service
}

func NewIngestor(svc *tracker.Service) *Ingestor {
	return &Ingestor{tracker: svc}
}

type IngestResult struct {
	RepoPath   string
	CommitHash string
	Message    string
	Linked     bool // true when the artifact got linked to the running entry
	Skipped    bool
	SkipReason string
}

// IngestHead records the HEAD commit as a commit artifact. When an entry
// is running the artifact is linked to it, so the commit lands inside the
// unit of work it belongs to. Outside a repo, or when the commit was
// already recorded, the call is a silent no-op.
func (g *Ingestor) IngestHead() (*IngestResult, error) {
	result := &IngestResult{}

	if !IsRepo() {
		result.Skipped = true
		result.SkipReason = "not a git repository"
		return result, nil
	}

	repoPath, err := RepoRoot()
	if err != nil {
		return nil, fmt.Errorf("resolving repo root: %w", err)
	}
	result.RepoPath = repoPath

	commit, err := HeadCommit()
	if err != nil {
		return nil, fmt.Errorf("reading HEAD: %w", err)
	}
	result.CommitHash = commit.Hash
	result.Message = commit.Message

	seen, err := g.recordedHashes()
	if err != nil {
		return nil, err
	}
	if seen[commit.Hash] {
		result.Skipped = true
		result.SkipReason = "commit already recorded"
		return result, nil
	}

	var entryID *string
	running, err := g.tracker.RunningEntry()
	if err != nil {
		return nil, err
	}
	if running != nil {
		entryID = &running.ID
		result.Linked = true
	}

	_, err = g.tracker.CreateArtifact(commitArtifact(commit, repoPath), entryID)
	if err != nil {
		return nil, err
	}
	return result, nil
}

type BackfillResult struct {
	RepoPath   string
	TotalFound int
	Recorded   int
	Skipped    int
}

// Backfill records historical commits as unlinked artifacts. Commits whose
// hash is already on the ledger are skipped; history carries no running
// entry to attach to, linking is left to the user.
func (g *Ingestor) Backfill(opts HistoryOptions) (*BackfillResult, error) {
	if !IsRepo() {
		return nil, fmt.Errorf("not a git repository")
	}

	repoPath, err := RepoRoot()
	if err != nil {
		return nil, fmt.Errorf("resolving repo root: %w", err)
	}

	commits, err := History(opts)
	if err != nil {
		return nil, err
	}

	result := &BackfillResult{RepoPath: repoPath, TotalFound: len(commits)}
	if len(commits) == 0 {
		return result, nil
	}

	seen, err := g.recordedHashes()
	if err != nil {
		return nil, err
	}

	for i := range commits {
		commit := &commits[i]
		if seen[commit.Hash] {
			result.Skipped++
			continue
		}
		if _, err := g.tracker.CreateArtifact(commitArtifact(commit, repoPath), nil); err != nil {
			return nil, err
		}
		seen[commit.Hash] = true
		result.Recorded++
	}
	return result, nil
}

func (g *Ingestor) recordedHashes() (map[string]bool, error) {
	artifacts, err := g.tracker.ListArtifacts(nil)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	for i := range artifacts {
		a := &artifacts[i]
		if a.ArtifactType == ArtifactType && a.Reference != nil {
			seen[*a.Reference] = true
		}
	}
	return seen, nil
}

func commitArtifact(commit *CommitInfo, repoPath string) models.CreateArtifact {
	hash := commit.Hash
	return models.CreateArtifact{
		Name:         commit.Message,
		ArtifactType: ArtifactType,
		Reference:    &hash,
		Metadata: map[string]any{
			"repo":          RepoName(repoPath),
			"branch":        commit.Branch,
			"author":        commit.Author,
			"committed_at":  commit.CommittedAt.Format("2006-01-02T15:04:05Z07:00"),
			"files_changed": len(commit.FilesChanged),
		},
	}
}
