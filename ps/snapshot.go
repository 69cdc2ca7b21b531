package ps

import (
	"fmt"
	"time"

	"github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/plumbing"
	"github.com/go-git/go-git/v6/plumbing/object"
)

// Snapshot describes one archived state of a database file.
type Snapshot struct {
	Id      string
	When    time.Time
	Author  string
	Message string
}

func (s Snapshot) String() string {
	shortId := s.Id
	if len(shortId) > 8 {
		shortId = shortId[:8]
	}
	return fmt.Sprintf("%s %s %s %s",
		shortId, s.When.Format("2006-01-02 15:04:05"), s.Author, s.Message)
}

func (a *Archive) snapshotAt(hash plumbing.Hash) (Snapshot, error) {
	commit, err := a.repo.CommitObject(hash)
	if err != nil {
		return Snapshot{}, err
	}

	return Snapshot{
		Id:      commit.Hash.String(),
		When:    commit.Author.When,
		Author:  commit.Author.Name,
		Message: commit.Message,
	}, nil
}

// Latest returns the most recent snapshot, or the zero Snapshot when the
// archive is empty.
func (a *Archive) Latest() Snapshot {
	if !a.IsInitialized() {
		return Snapshot{}
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	head, err := a.repo.Head()
	if err != nil {
		return Snapshot{}
	}

	snapshot, err := a.snapshotAt(head.Hash())
	if err != nil {
		return Snapshot{}
	}

	return snapshot
}

// History returns all snapshots, newest first.
func (a *Archive) History() ([]Snapshot, error) {
	if err := a.ensureInitialized(); err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	head, err := a.repo.Head()
	if err != nil {
		return nil, ErrNoSnapshots
	}

	iter, err := a.repo.Log(&git.LogOptions{From: head.Hash()})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var snapshots []Snapshot
	err = iter.ForEach(func(commit *object.Commit) error {
		snapshots = append(snapshots, Snapshot{
			Id:      commit.Hash.String(),
			When:    commit.Author.When,
			Author:  commit.Author.Name,
			Message: commit.Message,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	return snapshots, nil
}

// Tag gives a stable name to a snapshot. With a nil asof the latest
// snapshot is tagged.
func (a *Archive) Tag(name string, asof *Snapshot) error {
	if err := a.ensureInitialized(); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	var hash plumbing.Hash
	if asof != nil {
		hash = plumbing.NewHash(asof.Id)
	} else {
		head, err := a.repo.Head()
		if err != nil {
			return ErrNoSnapshots
		}
		hash = head.Hash()
	}

	_, err := a.repo.CreateTag(name, hash, nil)
	if err != nil {
		return fmt.Errorf("failed to tag snapshot: %w", err)
	}

	return nil
}

// Recover restores the snapshot tagged with the given name over dbPath.
func (a *Archive) Recover(name string, dbPath string) error {
	if err := a.ensureInitialized(); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	ref, err := a.repo.Tag(name)
	if err != nil {
		return fmt.Errorf("tag %s not found: %w", name, err)
	}

	return a.restoreHash(ref.Hash(), dbPath)
}
