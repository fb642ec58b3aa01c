package gitsync

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	git "github.com/go-git/go-git/v5"
	gitcfg "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seedRemote creates a bare repository with one commit on master containing
// a values.yaml, and returns its path for use as a clone URL.
func seedRemote(t *testing.T) string {
	t.Helper()

	remote := filepath.Join(t.TempDir(), "origin.git")
	_, err := git.PlainInit(remote, true)
	require.NoError(t, err)

	work := filepath.Join(t.TempDir(), "seed")
	repo, err := git.PlainInit(work, false)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(work, "values.yaml"), []byte("replicas: 1\n"), 0o644))

	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add("values.yaml")
	require.NoError(t, err)

	sig := &object.Signature{Name: "seed", Email: "seed@test", When: time.Now()}
	_, err = wt.Commit("initial values", &git.CommitOptions{Author: sig, Committer: sig})
	require.NoError(t, err)

	_, err = repo.CreateRemote(&gitcfg.RemoteConfig{Name: "origin", URLs: []string{remote}})
	require.NoError(t, err)
	require.NoError(t, repo.Push(&git.PushOptions{
		RefSpecs: []gitcfg.RefSpec{"refs/heads/master:refs/heads/master"},
	}))

	return remote
}

func testConfig(t *testing.T, remote string) Config {
	t.Helper()
	return Config{
		Enabled:          true,
		RepoURL:          remote,
		Branch:           "master",
		ValuesPath:       "values.yaml",
		LocalPath:        filepath.Join(t.TempDir(), "mirror"),
		AutoPullOnStart:  true,
		AutoPushOnUpdate: true,
	}
}

func TestEnabled(t *testing.T) {
	assert.False(t, New(Config{}, zerolog.Nop()).Enabled())
	assert.False(t, New(Config{Enabled: true}, zerolog.Nop()).Enabled())
	assert.False(t, New(Config{RepoURL: "x"}, zerolog.Nop()).Enabled())
	assert.True(t, New(Config{Enabled: true, RepoURL: "x"}, zerolog.Nop()).Enabled())
}

func TestInitClonesAndStatus(t *testing.T) {
	remote := seedRemote(t)
	s := New(testConfig(t, remote), zerolog.Nop())

	require.NoError(t, s.Init())

	st := s.Status()
	assert.True(t, st.Enabled)
	assert.True(t, st.Initialized)
	assert.Equal(t, "master", st.Branch)
	require.NotNil(t, st.LastCommit)
	assert.Equal(t, "initial values", st.LastCommit.Message)
	assert.False(t, st.HasChanges)

	// Values file landed in the clone.
	data, err := os.ReadFile(s.ValuesFilePath())
	require.NoError(t, err)
	assert.Equal(t, "replicas: 1\n", string(data))
}

func TestInitDisabledIsNoOp(t *testing.T) {
	s := New(Config{}, zerolog.Nop())
	require.NoError(t, s.Init())

	st := s.Status()
	assert.False(t, st.Enabled)
	assert.Equal(t, "git mirror is disabled", st.Message)
}

func TestPullUpToDate(t *testing.T) {
	remote := seedRemote(t)
	s := New(testConfig(t, remote), zerolog.Nop())
	require.NoError(t, s.Init())

	res := s.Pull()
	assert.True(t, res.Success)
	assert.NotEmpty(t, res.Commit)
}

func TestCommitAndPush(t *testing.T) {
	remote := seedRemote(t)
	cfg := testConfig(t, remote)
	s := New(cfg, zerolog.Nop())
	require.NoError(t, s.Init())

	// A clean worktree commits nothing but still succeeds.
	res := s.CommitAndPush("")
	assert.True(t, res.Success)
	assert.Equal(t, "no changes to commit", res.Message)

	src := filepath.Join(t.TempDir(), "values.yaml")
	require.NoError(t, os.WriteFile(src, []byte("replicas: 2\n"), 0o644))
	require.NoError(t, s.SyncValuesFile(src))

	res = s.CommitAndPush("bump replicas")
	require.True(t, res.Success, res.Message)
	assert.NotEmpty(t, res.Commit)

	// The bare remote advanced to the new commit.
	bare, err := git.PlainOpen(remote)
	require.NoError(t, err)
	head, err := bare.Head()
	require.NoError(t, err)
	assert.Equal(t, res.Commit, head.Hash().String())

	commit, err := bare.CommitObject(head.Hash())
	require.NoError(t, err)
	assert.Equal(t, "bump replicas", commit.Message)
}

func TestCommitWithoutPush(t *testing.T) {
	remote := seedRemote(t)
	cfg := testConfig(t, remote)
	cfg.AutoPushOnUpdate = false
	s := New(cfg, zerolog.Nop())
	require.NoError(t, s.Init())

	src := filepath.Join(t.TempDir(), "values.yaml")
	require.NoError(t, os.WriteFile(src, []byte("replicas: 3\n"), 0o644))
	require.NoError(t, s.SyncValuesFile(src))

	res := s.CommitAndPush("")
	require.True(t, res.Success)
	assert.Contains(t, res.Message, "auto-push disabled")

	// Remote untouched.
	bare, err := git.PlainOpen(remote)
	require.NoError(t, err)
	head, err := bare.Head()
	require.NoError(t, err)
	assert.NotEqual(t, res.Commit, head.Hash().String())
}

func TestOperationsBeforeInit(t *testing.T) {
	s := New(testConfig(t, "unused"), zerolog.Nop())

	assert.False(t, s.Pull().Success)
	assert.False(t, s.CommitAndPush("").Success)
	assert.Error(t, s.SyncValuesFile("nope"))
	assert.Empty(t, s.ValuesFilePath())
}
