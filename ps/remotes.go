package ps

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/config"
	"github.com/go-git/go-git/v6/plumbing/transport"
	"github.com/go-git/go-git/v6/plumbing/transport/http"
	"github.com/go-git/go-git/v6/plumbing/transport/ssh"
)

// AuthType selects how remote operations authenticate.
type AuthType string

const (
	AuthTypeNone  AuthType = "none"
	AuthTypeToken AuthType = "token"
	AuthTypeSSH   AuthType = "ssh"
	AuthTypeBasic AuthType = "basic"
)

// RemoteAuth holds credentials for remote snapshot sync.
type RemoteAuth struct {
	Type       AuthType
	Token      string // token auth
	KeyPath    string // SSH key auth
	Passphrase string // SSH key with passphrase
	Username   string // basic auth
	Password   string // basic auth
}

// Remote is a named sync target for the archive.
type Remote struct {
	Name string
	URLs []string
}

func (auth *RemoteAuth) authMethod() (transport.AuthMethod, error) {
	if auth == nil {
		return nil, nil
	}

	switch auth.Type {
	case AuthTypeNone:
		return nil, nil

	case AuthTypeToken:
		// Token auth wants any non-empty username.
		return &http.BasicAuth{
			Username: "git",
			Password: auth.Token,
		}, nil

	case AuthTypeSSH:
		keyPath := auth.KeyPath
		if keyPath == "" {
			home, _ := os.UserHomeDir()
			keyPath = home + "/.ssh/id_rsa"
		}
		return ssh.NewPublicKeysFromFile("git", keyPath, auth.Passphrase)

	case AuthTypeBasic:
		return &http.BasicAuth{
			Username: auth.Username,
			Password: auth.Password,
		}, nil

	default:
		return nil, fmt.Errorf("unknown auth type: %s", auth.Type)
	}
}

// AddRemote registers a named sync target.
func (a *Archive) AddRemote(name, url string) error {
	if err := a.ensureInitialized(); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	_, err := a.repo.CreateRemote(&config.RemoteConfig{
		Name: name,
		URLs: []string{url},
	})
	if err != nil {
		return fmt.Errorf("failed to add remote '%s': %w", name, err)
	}
	return nil
}

// ListRemotes returns all configured sync targets.
func (a *Archive) ListRemotes() ([]Remote, error) {
	if err := a.ensureInitialized(); err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	remotes, err := a.repo.Remotes()
	if err != nil {
		return nil, fmt.Errorf("failed to list remotes: %w", err)
	}

	result := make([]Remote, len(remotes))
	for i, r := range remotes {
		cfg := r.Config()
		result[i] = Remote{
			Name: cfg.Name,
			URLs: cfg.URLs,
		}
	}
	return result, nil
}

// RemoveRemote deletes a sync target.
func (a *Archive) RemoveRemote(name string) error {
	if err := a.ensureInitialized(); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.repo.DeleteRemote(name); err != nil {
		return fmt.Errorf("failed to remove remote '%s': %w", name, err)
	}
	return nil
}

// Push sends local snapshots to a remote. An up-to-date remote is not an
// error.
func (a *Archive) Push(remoteName string, auth *RemoteAuth) error {
	if err := a.ensureInitialized(); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	if remoteName == "" {
		remoteName = "origin"
	}

	authMethod, err := auth.authMethod()
	if err != nil {
		return fmt.Errorf("failed to configure auth: %w", err)
	}

	err = a.repo.Push(&git.PushOptions{
		RemoteName: remoteName,
		Auth:       authMethod,
	})
	if errors.Is(err, git.NoErrAlreadyUpToDate) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to push to '%s': %w", remoteName, err)
	}
	return nil
}

// Pull brings in remote snapshots and updates the worktree.
func (a *Archive) Pull(remoteName string, auth *RemoteAuth) error {
	if err := a.ensureInitialized(); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	if remoteName == "" {
		remoteName = "origin"
	}

	wt, err := a.repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to get worktree: %w", err)
	}

	authMethod, err := auth.authMethod()
	if err != nil {
		return fmt.Errorf("failed to configure auth: %w", err)
	}

	err = wt.Pull(&git.PullOptions{
		RemoteName: remoteName,
		Auth:       authMethod,
	})
	if errors.Is(err, git.NoErrAlreadyUpToDate) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to pull from '%s': %w", remoteName, err)
	}
	return nil
}

// Fetch retrieves remote snapshots without touching the worktree.
func (a *Archive) Fetch(remoteName string, auth *RemoteAuth) error {
	if err := a.ensureInitialized(); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	if remoteName == "" {
		remoteName = "origin"
	}

	authMethod, err := auth.authMethod()
	if err != nil {
		return fmt.Errorf("failed to configure auth: %w", err)
	}

	err = a.repo.Fetch(&git.FetchOptions{
		RemoteName: remoteName,
		Auth:       authMethod,
	})
	if errors.Is(err, git.NoErrAlreadyUpToDate) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to fetch from '%s': %w", remoteName, err)
	}
	return nil
}
