// Package history keeps a git repository per couple with one commit for
// every stored version of the couple document.
package history

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

const contentFile = "content.json"

// ErrNoHistory is returned for couples with no recorded snapshot.
var ErrNoHistory = errors.New("no history for couple")

// Commit describes one recorded snapshot.
type Commit struct {
	Hash      string    `json:"hash"`
	Message   string    `json:"message"`
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"createdAt"`
}

type Service struct {
	baseDir string
	now     func() time.Time
	lockMu  sync.Mutex
	locks   map[string]*sync.Mutex
}

func New(baseDir string) *Service {
	return &Service{
		baseDir: baseDir,
		now:     time.Now,
		locks:   make(map[string]*sync.Mutex),
	}
}

// Record commits raw as the couple's content.json. It reports false when
// the content equals the latest snapshot.
func (s *Service) Record(coupleID string, raw json.RawMessage, author, message string) (Commit, bool, error) {
	lock := s.coupleLock(coupleID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := s.openOrInit(coupleID)
	if err != nil {
		return Commit{}, false, err
	}

	payload, err := indent(raw)
	if err != nil {
		return Commit{}, false, err
	}
	if head, err := headCommit(repo); err == nil {
		previous, err := readContent(head)
		if err == nil && bytes.Equal(normalize(previous), normalize(payload)) {
			return toCommit(head), false, nil
		}
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return Commit{}, false, fmt.Errorf("open worktree: %w", err)
	}
	if err := os.WriteFile(filepath.Join(s.repoPath(coupleID), contentFile), payload, 0o644); err != nil {
		return Commit{}, false, fmt.Errorf("write %s: %w", contentFile, err)
	}
	if _, err := worktree.Add(contentFile); err != nil {
		return Commit{}, false, fmt.Errorf("git add content: %w", err)
	}
	if author == "" {
		author = "nosotros"
	}
	hash, err := worktree.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  author,
			Email: fmt.Sprintf("%s@local.nosotros.app", sanitizeEmail(author)),
			When:  s.now(),
		},
	})
	if err != nil {
		return Commit{}, false, fmt.Errorf("commit content: %w", err)
	}
	commitObj, err := repo.CommitObject(hash)
	if err != nil {
		return Commit{}, false, fmt.Errorf("read commit object: %w", err)
	}
	return toCommit(commitObj), true, nil
}

// History lists snapshots newest first. limit <= 0 returns all.
func (s *Service) History(coupleID string, limit int) ([]Commit, error) {
	lock := s.coupleLock(coupleID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := s.open(coupleID)
	if err != nil {
		return nil, err
	}
	head, err := repo.Head()
	if err != nil {
		return nil, ErrNoHistory
	}
	iter, err := repo.Log(&git.LogOptions{From: head.Hash()})
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	defer iter.Close()

	items := make([]Commit, 0)
	err = iter.ForEach(func(commitObj *object.Commit) error {
		items = append(items, toCommit(commitObj))
		if limit > 0 && len(items) >= limit {
			return io.EOF
		}
		return nil
	})
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("iterate log: %w", err)
	}
	return items, nil
}

// Snapshot returns the document stored at hash (short or full).
func (s *Service) Snapshot(coupleID, hash string) (json.RawMessage, error) {
	lock := s.coupleLock(coupleID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := s.open(coupleID)
	if err != nil {
		return nil, err
	}
	resolved, err := resolveHash(repo, hash)
	if err != nil {
		return nil, err
	}
	commitObj, err := repo.CommitObject(resolved)
	if err != nil {
		return nil, fmt.Errorf("read commit %s: %w", hash, err)
	}
	return readContent(commitObj)
}

// ChangedFields lists the top-level document fields that differ.
func ChangedFields(from, to json.RawMessage) []string {
	var before, after map[string]json.RawMessage
	_ = json.Unmarshal(from, &before)
	_ = json.Unmarshal(to, &after)
	changed := make([]string, 0)
	for key, value := range after {
		if !bytes.Equal(normalize(before[key]), normalize(value)) {
			changed = append(changed, key)
		}
	}
	for key := range before {
		if _, ok := after[key]; !ok {
			changed = append(changed, key)
		}
	}
	sort.Strings(changed)
	return changed
}

func (s *Service) repoPath(coupleID string) string {
	return filepath.Join(s.baseDir, coupleID)
}

func (s *Service) open(coupleID string) (*git.Repository, error) {
	repo, err := git.PlainOpen(s.repoPath(coupleID))
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, ErrNoHistory
	}
	if err != nil {
		return nil, fmt.Errorf("open repo: %w", err)
	}
	return repo, nil
}

func (s *Service) openOrInit(coupleID string) (*git.Repository, error) {
	path := s.repoPath(coupleID)
	repo, err := git.PlainOpen(path)
	if err == nil {
		return repo, nil
	}
	if !errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, fmt.Errorf("open repo: %w", err)
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("create repo dir: %w", err)
	}
	repo, err = git.PlainInit(path, false)
	if err != nil {
		return nil, fmt.Errorf("init repo: %w", err)
	}
	if err := repo.Storer.SetReference(plumbing.NewSymbolicReference(plumbing.HEAD, plumbing.NewBranchReferenceName("main"))); err != nil {
		return nil, fmt.Errorf("set HEAD to main: %w", err)
	}
	return repo, nil
}

func (s *Service) coupleLock(coupleID string) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	lock, ok := s.locks[coupleID]
	if ok {
		return lock
	}
	lock = &sync.Mutex{}
	s.locks[coupleID] = lock
	return lock
}

func headCommit(repo *git.Repository) (*object.Commit, error) {
	head, err := repo.Head()
	if err != nil {
		return nil, err
	}
	return repo.CommitObject(head.Hash())
}

func readContent(commitObj *object.Commit) (json.RawMessage, error) {
	file, err := commitObj.File(contentFile)
	if err != nil {
		return nil, fmt.Errorf("load %s from commit: %w", contentFile, err)
	}
	reader, err := file.Reader()
	if err != nil {
		return nil, fmt.Errorf("open content reader: %w", err)
	}
	defer reader.Close()

	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read content bytes: %w", err)
	}
	return json.RawMessage(content), nil
}

func indent(raw json.RawMessage) ([]byte, error) {
	var out bytes.Buffer
	if err := json.Indent(&out, raw, "", "  "); err != nil {
		return nil, fmt.Errorf("format content: %w", err)
	}
	out.WriteByte('\n')
	return out.Bytes(), nil
}

func toCommit(commitObj *object.Commit) Commit {
	return Commit{
		Hash:      commitObj.Hash.String()[:7],
		Message:   commitObj.Message,
		Author:    commitObj.Author.Name,
		CreatedAt: commitObj.Author.When,
	}
}

func sanitizeEmail(input string) string {
	out := make([]rune, 0, len(input))
	for _, r := range input {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			out = append(out, r)
			continue
		}
		if r == ' ' || r == '-' || r == '_' {
			out = append(out, '.')
		}
	}
	if len(out) == 0 {
		return "user"
	}
	return string(out)
}

func normalize(doc []byte) []byte {
	if len(doc) == 0 {
		return nil
	}
	var parsed any
	if err := json.Unmarshal(doc, &parsed); err != nil {
		return nil
	}
	normalized, err := json.Marshal(parsed)
	if err != nil {
		return nil
	}
	return normalized
}

func resolveHash(repo *git.Repository, hash string) (plumbing.Hash, error) {
	if len(hash) == 40 {
		return plumbing.NewHash(hash), nil
	}
	resolved, err := repo.ResolveRevision(plumbing.Revision(hash))
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("resolve hash %s: %w", hash, err)
	}
	return *resolved, nil
}
