// Package gitsync mirrors the values document to a git repository.
//
// The mirror is best-effort by design: pull and push results are reported
// in-band so the API can surface them as diagnostics, but a failed sync
// never invalidates an update that already merged and saved locally.
package gitsync

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	gitssh "github.com/go-git/go-git/v5/plumbing/transport/ssh"
	"github.com/rs/zerolog"
)

// AuthConfig selects how the remote is authenticated.
type AuthConfig struct {
	Method     string `mapstructure:"method" yaml:"method"` // "token" or "ssh"
	Token      string `mapstructure:"token" yaml:"token"`
	SSHKeyPath string `mapstructure:"ssh_key_path" yaml:"ssh_key_path"`
}

// Config holds the git mirror settings.
type Config struct {
	Enabled               bool       `mapstructure:"enabled" yaml:"enabled"`
	RepoURL               string     `mapstructure:"repo_url" yaml:"repo_url"`
	Branch                string     `mapstructure:"branch" yaml:"branch"`
	ValuesPath            string     `mapstructure:"values_path" yaml:"values_path"`
	LocalPath             string     `mapstructure:"local_path" yaml:"local_path"`
	AuthorName            string     `mapstructure:"author_name" yaml:"author_name"`
	AuthorEmail           string     `mapstructure:"author_email" yaml:"author_email"`
	CommitMessageTemplate string     `mapstructure:"commit_message_template" yaml:"commit_message_template"`
	AutoPullOnStart       bool       `mapstructure:"auto_pull_on_start" yaml:"auto_pull_on_start"`
	AutoPushOnUpdate      bool       `mapstructure:"auto_push_on_update" yaml:"auto_push_on_update"`
	Auth                  AuthConfig `mapstructure:"auth" yaml:"auth"`
}

// Result reports the outcome of a single mirror operation.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Commit  string `json:"commit,omitempty"`
}

// Commit describes the repository head.
type Commit struct {
	SHA     string    `json:"sha"`
	Message string    `json:"message"`
	Author  string    `json:"author"`
	Date    time.Time `json:"date"`
}

// Status is a point-in-time snapshot of the mirror repository.
type Status struct {
	Enabled       bool     `json:"enabled"`
	Initialized   bool     `json:"initialized"`
	RepoURL       string   `json:"repo_url,omitempty"`
	Branch        string   `json:"branch,omitempty"`
	LastCommit    *Commit  `json:"last_commit,omitempty"`
	HasChanges    bool     `json:"has_changes,omitempty"`
	ModifiedFiles []string `json:"modified_files,omitempty"`
	Message       string   `json:"message,omitempty"`
}

// Syncer manages the local clone of the mirror repository.
type Syncer struct {
	cfg  Config
	log  zerolog.Logger
	mu   sync.Mutex
	repo *git.Repository
}

// New returns a syncer for cfg. Call Init before Pull or CommitAndPush.
func New(cfg Config, log zerolog.Logger) *Syncer {
	if cfg.Branch == "" {
		cfg.Branch = "main"
	}
	if cfg.ValuesPath == "" {
		cfg.ValuesPath = "values.yaml"
	}
	if cfg.CommitMessageTemplate == "" {
		cfg.CommitMessageTemplate = "Update values via chartform\n\nTimestamp: {timestamp}"
	}
	if cfg.AuthorName == "" {
		cfg.AuthorName = "chartform"
	}
	if cfg.AuthorEmail == "" {
		cfg.AuthorEmail = "chartform@localhost"
	}
	return &Syncer{
		cfg: cfg,
		log: log.With().Str("component", "gitsync").Logger(),
	}
}

// Enabled reports whether the mirror is configured and switched on.
func (s *Syncer) Enabled() bool {
	return s.cfg.Enabled && s.cfg.RepoURL != ""
}

// ValuesFilePath returns the values document location inside the clone, or ""
// before Init.
func (s *Syncer) ValuesFilePath() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.repo == nil {
		return ""
	}
	return filepath.Join(s.cfg.LocalPath, s.cfg.ValuesPath)
}

func (s *Syncer) auth() (transport.AuthMethod, error) {
	switch s.cfg.Auth.Method {
	case "token":
		if s.cfg.Auth.Token == "" {
			return nil, nil
		}
		// Username is ignored by token-auth hosts but must be non-empty.
		return &githttp.BasicAuth{Username: "chartform", Password: s.cfg.Auth.Token}, nil
	case "ssh":
		if s.cfg.Auth.SSHKeyPath == "" {
			return nil, nil
		}
		keyPath := s.cfg.Auth.SSHKeyPath
		if strings.HasPrefix(keyPath, "~/") {
			home, err := os.UserHomeDir()
			if err != nil {
				return nil, fmt.Errorf("expand ssh key path: %w", err)
			}
			keyPath = filepath.Join(home, keyPath[2:])
		}
		keys, err := gitssh.NewPublicKeysFromFile("git", keyPath, "")
		if err != nil {
			return nil, fmt.Errorf("load ssh key: %w", err)
		}
		return keys, nil
	default:
		return nil, nil
	}
}

// Init opens the existing clone or clones the remote, checks out the
// configured branch, and optionally pulls. Disabled mirrors are a no-op.
func (s *Syncer) Init() error {
	if !s.Enabled() {
		s.log.Info().Msg("git mirror disabled")
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	repo, err := git.PlainOpen(s.cfg.LocalPath)
	switch {
	case err == nil:
		s.log.Info().Str("path", s.cfg.LocalPath).Msg("using existing repository")
	case errors.Is(err, git.ErrRepositoryNotExists):
		repo, err = s.clone()
		if err != nil {
			return err
		}
	default:
		return fmt.Errorf("open repository: %w", err)
	}
	s.repo = repo

	if err := s.checkoutBranch(); err != nil {
		return err
	}

	if s.cfg.AutoPullOnStart {
		if res := s.pullLocked(); !res.Success {
			s.log.Warn().Str("message", res.Message).Msg("initial pull failed")
		}
	}
	return nil
}

func (s *Syncer) clone() (*git.Repository, error) {
	auth, err := s.auth()
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("url", s.cfg.RepoURL).Str("path", s.cfg.LocalPath).Msg("cloning repository")
	repo, err := git.PlainClone(s.cfg.LocalPath, false, &git.CloneOptions{
		URL:           s.cfg.RepoURL,
		ReferenceName: plumbing.NewBranchReferenceName(s.cfg.Branch),
		SingleBranch:  true,
		Auth:          auth,
	})
	if err != nil {
		return nil, fmt.Errorf("clone %s: %w", s.cfg.RepoURL, err)
	}
	return repo, nil
}

func (s *Syncer) checkoutBranch() error {
	head, err := s.repo.Head()
	if err != nil {
		return fmt.Errorf("read HEAD: %w", err)
	}
	want := plumbing.NewBranchReferenceName(s.cfg.Branch)
	if head.Name() == want {
		return nil
	}

	wt, err := s.repo.Worktree()
	if err != nil {
		return fmt.Errorf("open worktree: %w", err)
	}
	if err := wt.Checkout(&git.CheckoutOptions{Branch: want}); err != nil {
		return fmt.Errorf("checkout %s: %w", s.cfg.Branch, err)
	}
	return nil
}

// Pull fetches and merges the latest changes from the remote branch.
func (s *Syncer) Pull() Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pullLocked()
}

func (s *Syncer) pullLocked() Result {
	if s.repo == nil {
		return Result{Message: "repository not initialized"}
	}

	auth, err := s.auth()
	if err != nil {
		return Result{Message: err.Error()}
	}
	wt, err := s.repo.Worktree()
	if err != nil {
		return Result{Message: fmt.Sprintf("open worktree: %v", err)}
	}

	err = wt.Pull(&git.PullOptions{
		RemoteName:    "origin",
		ReferenceName: plumbing.NewBranchReferenceName(s.cfg.Branch),
		SingleBranch:  true,
		Auth:          auth,
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		s.log.Warn().Err(err).Msg("pull failed")
		return Result{Message: fmt.Sprintf("git pull failed: %v", err)}
	}

	head, err := s.repo.Head()
	if err != nil {
		return Result{Message: fmt.Sprintf("read HEAD: %v", err)}
	}
	return Result{
		Success: true,
		Message: fmt.Sprintf("up to date with %s", s.cfg.Branch),
		Commit:  head.Hash().String(),
	}
}

// CommitAndPush stages the values file, commits with the rendered message,
// and pushes when auto-push is on. A clean worktree is a successful no-op.
func (s *Syncer) CommitAndPush(message string) Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.repo == nil {
		return Result{Message: "repository not initialized"}
	}

	wt, err := s.repo.Worktree()
	if err != nil {
		return Result{Message: fmt.Sprintf("open worktree: %v", err)}
	}

	status, err := wt.Status()
	if err != nil {
		return Result{Message: fmt.Sprintf("read status: %v", err)}
	}
	if status.IsClean() {
		return Result{Success: true, Message: "no changes to commit"}
	}

	if _, err := wt.Add(s.cfg.ValuesPath); err != nil {
		return Result{Message: fmt.Sprintf("stage %s: %v", s.cfg.ValuesPath, err)}
	}

	if message == "" {
		message = s.renderMessage()
	}
	sig := &object.Signature{
		Name:  s.cfg.AuthorName,
		Email: s.cfg.AuthorEmail,
		When:  time.Now(),
	}
	hash, err := wt.Commit(message, &git.CommitOptions{Author: sig, Committer: sig})
	if err != nil {
		return Result{Message: fmt.Sprintf("commit failed: %v", err)}
	}
	s.log.Info().Str("commit", hash.String()).Msg("changes committed")

	if !s.cfg.AutoPushOnUpdate {
		return Result{
			Success: true,
			Message: "changes committed locally (auto-push disabled)",
			Commit:  hash.String(),
		}
	}

	auth, err := s.auth()
	if err != nil {
		return Result{Message: err.Error(), Commit: hash.String()}
	}
	err = s.repo.Push(&git.PushOptions{RemoteName: "origin", Auth: auth})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		s.log.Warn().Err(err).Msg("push failed")
		return Result{
			Message: fmt.Sprintf("git push failed: %v", err),
			Commit:  hash.String(),
		}
	}

	return Result{
		Success: true,
		Message: fmt.Sprintf("changes committed and pushed to %s", s.cfg.Branch),
		Commit:  hash.String(),
	}
}

func (s *Syncer) renderMessage() string {
	timestamp := time.Now().Format("2006-01-02 15:04:05")
	return strings.ReplaceAll(s.cfg.CommitMessageTemplate, "{timestamp}", timestamp)
}

// Status reports the repository state for the management endpoint.
func (s *Syncer) Status() Status {
	if !s.Enabled() {
		return Status{Message: "git mirror is disabled"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{
		Enabled: true,
		RepoURL: s.cfg.RepoURL,
		Branch:  s.cfg.Branch,
	}
	if s.repo == nil {
		st.Message = "repository not initialized"
		return st
	}
	st.Initialized = true

	head, err := s.repo.Head()
	if err != nil {
		st.Message = fmt.Sprintf("read HEAD: %v", err)
		return st
	}
	if commit, err := s.repo.CommitObject(head.Hash()); err == nil {
		st.LastCommit = &Commit{
			SHA:     commit.Hash.String(),
			Message: strings.TrimSpace(commit.Message),
			Author:  fmt.Sprintf("%s <%s>", commit.Author.Name, commit.Author.Email),
			Date:    commit.Author.When,
		}
	}

	wt, err := s.repo.Worktree()
	if err != nil {
		st.Message = fmt.Sprintf("open worktree: %v", err)
		return st
	}
	wtStatus, err := wt.Status()
	if err != nil {
		st.Message = fmt.Sprintf("read status: %v", err)
		return st
	}
	st.HasChanges = !wtStatus.IsClean()
	for file, fs := range wtStatus {
		if fs.Worktree != git.Unmodified || fs.Staging != git.Unmodified {
			st.ModifiedFiles = append(st.ModifiedFiles, file)
		}
	}
	return st
}

// ExportValuesFile copies the values document out of the clone to dst,
// used after a pull to refresh the live document from the remote.
func (s *Syncer) ExportValuesFile(dst string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.repo == nil {
		return errors.New("repository not initialized")
	}
	return copyFile(filepath.Join(s.cfg.LocalPath, s.cfg.ValuesPath), dst)
}

// SyncValuesFile copies the live values document at src into the clone so
// the next CommitAndPush picks it up.
func (s *Syncer) SyncValuesFile(src string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.repo == nil {
		return errors.New("repository not initialized")
	}

	return copyFile(src, filepath.Join(s.cfg.LocalPath, s.cfg.ValuesPath))
}

func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(dst), err)
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copy %s: %w", src, err)
	}
	return out.Close()
}
