package aports

import (
	"strconv"
	"sync"

	git "github.com/go-git/go-git/v5"
	gitPlumbing "github.com/go-git/go-git/v5/plumbing"
	"github.com/hashicorp/go-hclog"
)

// A Checkout manages the git side of the aports tree.
type Checkout struct {
	l    hclog.Logger
	Path string
	URL  string
	Mu   *sync.Mutex
	repo *git.Repository

	onChange []func([]string)
}

// NewCheckout creates a new instance of Checkout.
func NewCheckout(l hclog.Logger) *Checkout {
	x := Checkout{
		l:  l.Named("git"),
		Mu: new(sync.Mutex),
	}
	return &x
}

// Bootstrap clones the aports tree from URL into Path.  If a checkout
// already exists there it is opened instead.
func (c *Checkout) Bootstrap() error {
	if c.Path == "" {
		c.l.Warn("Error in checkout manager, path must be set to bootstrap")
	}

	c.Mu.Lock()
	defer c.Mu.Unlock()

	if repo, err := git.PlainOpen(c.Path); err == nil {
		c.l.Debug("Reusing existing checkout", "path", c.Path)
		c.repo = repo
		return nil
	}

	if c.URL == "" {
		c.l.Warn("Error in checkout manager, url must be set to bootstrap")
	}
	c.l.Debug("Cloning repository", "path", c.Path, "url", c.URL)
	var err error
	// Don't do a shallow clone (Depth: BIG)
	c.repo, err = git.PlainClone(c.Path, false,
		&git.CloneOptions{URL: c.URL, Depth: 99999999})
	if err != nil {
		c.l.Trace("Error running PlainClone")
		return err
	}
	return nil
}

// At gets the current HEAD hash.
func (c *Checkout) At() (string, error) {
	head, err := c.repo.Head()
	if err != nil {
		c.l.Trace("Error getting HEAD")
		return "", err
	}
	return head.Hash().String(), nil
}

// Checkout moves the tree to a particular revision and returns the
// list of files that changed relative to the previous HEAD.
func (c *Checkout) Checkout(commit string) ([]string, error) {
	if c.repo == nil {
		c.l.Warn("Error in checkout manager, repo must be bootstrapped to checkout")
	}
	c.Mu.Lock()
	defer c.Mu.Unlock()

	oldHead, err := c.repo.Head()
	if err != nil {
		c.l.Trace("Error getting old HEAD")
		return nil, err
	}
	oldCommit, err := c.repo.CommitObject(oldHead.Hash())
	if err != nil {
		c.l.Trace("Error getting old CommitObject")
		return nil, err
	}
	c.l.Debug("Attempting to checkout in git repository", "path", c.Path,
		"old", oldHead.Hash().String(), "new", commit)

	if oldHead.Hash().String() == commit {
		c.l.Trace("Nothing changed in checkout")
		return make([]string, 0), nil
	}

	worktree, err := c.repo.Worktree()
	if err != nil {
		c.l.Trace("Error getting worktree")
		return nil, err
	}
	newHash := gitPlumbing.NewHash(commit)
	if err := worktree.Checkout(&git.CheckoutOptions{Hash: newHash, Force: true}); err != nil {
		c.l.Trace("Error checking out")
		return nil, err
	}

	newCommit, err := c.repo.CommitObject(newHash)
	if err != nil {
		c.l.Trace("Error getting new CommitObject")
		return nil, err
	}
	diff, err := newCommit.Patch(oldCommit)
	if err != nil {
		c.l.Trace("Error getting patch")
		return nil, err
	}
	diffFileStats := diff.Stats()
	c.l.Debug("Files were changed in checkout", "count", strconv.Itoa(len(diffFileStats)))
	changedFiles := make([]string, len(diffFileStats))
	for i := 0; i < len(diffFileStats); i++ {
		c.l.Trace("File was changed in checkout", "path", diffFileStats[i].Name)
		changedFiles[i] = diffFileStats[i].Name
	}

	return changedFiles, nil
}

// Fetch updates origin.
func (c *Checkout) Fetch() error {
	if c.repo == nil {
		c.l.Warn("Error in checkout manager, repo must be bootstrapped to fetch")
	}
	c.Mu.Lock()
	defer c.Mu.Unlock()
	c.l.Debug("Fetching origin for git repository", "path", c.Path)
	if err := c.repo.Fetch(&git.FetchOptions{RemoteName: "origin"}); err != nil {
		c.l.Trace("Error fetching")
		return err
	}
	return nil
}
