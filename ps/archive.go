package ps

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-git/go-billy/v6/memfs"
	"github.com/go-git/go-billy/v6/osfs"
	"github.com/go-git/go-billy/v6/util"
	"github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/plumbing"
	"github.com/go-git/go-git/v6/plumbing/cache"
	"github.com/go-git/go-git/v6/plumbing/object"
	"github.com/go-git/go-git/v6/storage/filesystem"
	"github.com/go-git/go-git/v6/storage/memory"

	"github.com/nickyhof/SliceDB/core"
)

var (
	ErrNotInitialized = errors.New("archive not initialized")
	ErrNoSnapshots    = errors.New("archive has no snapshots")
)

// Archive versions database files in a Git repository. Every snapshot is a
// commit, which provides history, restore to any point in time, and remote
// sync for free.
//
// Snapshots must be taken between session scopes: the database file may not
// be held open by a connection while it is being copied.
type Archive struct {
	repo *git.Repository
	mu   sync.Mutex
}

// IsInitialized returns true if the archive has a valid repository.
func (a *Archive) IsInitialized() bool {
	return a != nil && a.repo != nil
}

func (a *Archive) ensureInitialized() error {
	if !a.IsInitialized() {
		return ErrNotInitialized
	}
	return nil
}

// NewMemoryArchive creates an ephemeral in-memory archive, mainly for
// tests.
func NewMemoryArchive() (Archive, error) {
	wt := memfs.New()
	storer := memory.NewStorage()

	repo, err := git.Init(storer, git.WithWorkTree(wt))
	if err != nil {
		return Archive{}, err
	}

	return Archive{repo: repo}, nil
}

// NewFileArchive opens or initializes an archive rooted at baseDir. When
// gitUrl is non-nil the archive is cloned from that remote instead.
func NewFileArchive(baseDir string, gitUrl *string) (Archive, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return Archive{}, err
	}

	wt := osfs.New(baseDir)
	fs, err := wt.Chroot(".git")
	if err != nil {
		return Archive{}, err
	}

	storer := filesystem.NewStorageWithOptions(
		fs,
		cache.NewObjectLRUDefault(),
		filesystem.Options{ExclusiveAccess: true})

	var repo *git.Repository

	if gitUrl != nil {
		repo, err = git.Clone(storer, wt, &git.CloneOptions{
			URL: *gitUrl,
		})
		if err != nil {
			return Archive{}, err
		}
	} else if _, statErr := os.Stat(fs.Root()); statErr != nil {
		repo, err = git.Init(storer, git.WithWorkTree(wt))
		if err != nil {
			return Archive{}, err
		}
	} else {
		repo, err = git.Open(storer, wt)
		if err != nil {
			return Archive{}, err
		}
	}

	return Archive{repo: repo}, nil
}

// Commit stores the content of dbPath as a new snapshot authored by
// identity. The file lives in the archive under its base name, so one
// archive can version several databases side by side.
func (a *Archive) Commit(dbPath string, identity core.Identity, message string) (Snapshot, error) {
	if err := a.ensureInitialized(); err != nil {
		return Snapshot{}, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	data, err := os.ReadFile(dbPath)
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to read database file: %w", err)
	}

	wt, err := a.repo.Worktree()
	if err != nil {
		return Snapshot{}, err
	}

	name := filepath.Base(dbPath)
	if err := util.WriteFile(wt.Filesystem, name, data, 0644); err != nil {
		return Snapshot{}, fmt.Errorf("failed to stage database file: %w", err)
	}
	if _, err := wt.Add(name); err != nil {
		return Snapshot{}, err
	}

	hash, err := wt.Commit(message, &git.CommitOptions{
		AllowEmptyCommits: true,
		Author: &object.Signature{
			Name:  identity.Name,
			Email: identity.Email,
			When:  time.Now(),
		},
	})
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to commit snapshot: %w", err)
	}

	return a.snapshotAt(hash)
}

// Restore writes the archived content of the given snapshot over dbPath.
func (a *Archive) Restore(id string, dbPath string) error {
	if err := a.ensureInitialized(); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.restoreHash(plumbing.NewHash(id), dbPath)
}

func (a *Archive) restoreHash(hash plumbing.Hash, dbPath string) error {
	commit, err := a.repo.CommitObject(hash)
	if err != nil {
		return fmt.Errorf("snapshot %s not found: %w", hash, err)
	}

	name := filepath.Base(dbPath)
	file, err := commit.File(name)
	if err != nil {
		return fmt.Errorf("snapshot %s does not contain %s: %w", hash, name, err)
	}

	reader, err := file.Reader()
	if err != nil {
		return err
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}

	return os.WriteFile(dbPath, data, 0644)
}
