// Package ledger records which units of work completed so an interrupted run
// can resume. State is persisted after every mutation as .progress.json in the
// output directory; the write is atomic, so the file is never corrupt, at worst
// one unit stale.
package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/JakeFAU/logbook-exporter/internal/content"
	"github.com/JakeFAU/logbook-exporter/internal/storage/local"
)

// FileName is the ledger's name inside the output directory.
const FileName = ".progress.json"

// Store is the slice of the output directory the ledger needs.
type Store interface {
	Get(name string) ([]byte, error)
	Put(name string, data []byte) (string, error)
}

// Entry records one saved post.
type Entry struct {
	Link     string `json:"link"`
	Title    string `json:"title"`
	FileName string `json:"fileName"`
}

type state struct {
	ReviewComplete bool    `json:"reviewComplete"`
	ProcessedPosts []Entry `json:"processedPosts"`
}

// Ledger is the in-memory mirror of the progress file.
type Ledger struct {
	mu     sync.Mutex
	store  Store
	logger *zap.Logger
	state  state
	links  map[string]int
}

// Load reads the ledger from store. A missing file yields an empty ledger; an
// unreadable or malformed one is logged and also yields an empty ledger, so
// the run redoes the work instead of failing.
func Load(store Store, logger *zap.Logger) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &Ledger{
		store:  store,
		logger: logger,
		state:  state{ProcessedPosts: []Entry{}},
		links:  make(map[string]int),
	}

	data, err := store.Get(FileName)
	switch {
	case errors.Is(err, local.ErrNotFound):
		return l
	case err != nil:
		logger.Warn("could not read progress ledger, starting fresh", zap.Error(err))
		return l
	}

	var loaded state
	if err := json.Unmarshal(data, &loaded); err != nil {
		logger.Warn("progress ledger is malformed, starting fresh", zap.Error(err))
		return l
	}
	l.state.ReviewComplete = loaded.ReviewComplete
	for _, e := range loaded.ProcessedPosts {
		if e.Link == "" {
			continue
		}
		if _, dup := l.links[e.Link]; dup {
			continue
		}
		l.links[e.Link] = len(l.state.ProcessedPosts)
		l.state.ProcessedPosts = append(l.state.ProcessedPosts, e)
	}
	logger.Info("progress ledger loaded",
		zap.Bool("review_complete", l.state.ReviewComplete),
		zap.Int("processed_posts", len(l.state.ProcessedPosts)),
	)
	return l
}

// IsReviewComplete reports whether the review document was saved.
func (l *Ledger) IsReviewComplete() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state.ReviewComplete
}

// MarkReviewComplete records the review and persists the ledger.
func (l *Ledger) MarkReviewComplete() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state.ReviewComplete {
		return nil
	}
	l.state.ReviewComplete = true
	if err := l.persist(); err != nil {
		l.state.ReviewComplete = false
		return err
	}
	return nil
}

// IsPostProcessed reports whether a post with this link was saved.
func (l *Ledger) IsPostProcessed(link string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.links[link]
	return ok
}

// MarkPostProcessed appends the post and persists the ledger. Marking a link
// that is already recorded does nothing.
func (l *Ledger) MarkPostProcessed(post content.PostSummary, fileName string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.links[post.Link]; ok {
		return nil
	}
	l.links[post.Link] = len(l.state.ProcessedPosts)
	l.state.ProcessedPosts = append(l.state.ProcessedPosts, Entry{
		Link:     post.Link,
		Title:    post.Title,
		FileName: fileName,
	})
	if err := l.persist(); err != nil {
		delete(l.links, post.Link)
		l.state.ProcessedPosts = l.state.ProcessedPosts[:len(l.state.ProcessedPosts)-1]
		return err
	}
	return nil
}

// FilterRemaining returns the posts whose links are not recorded, in their
// original order.
func (l *Ledger) FilterRemaining(posts []content.PostSummary) []content.PostSummary {
	l.mu.Lock()
	defer l.mu.Unlock()
	remaining := make([]content.PostSummary, 0, len(posts))
	for _, p := range posts {
		if _, ok := l.links[p.Link]; !ok {
			remaining = append(remaining, p)
		}
	}
	return remaining
}

// ProcessedCount returns the number of recorded posts.
func (l *Ledger) ProcessedCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.state.ProcessedPosts)
}

// Entries returns a copy of the recorded posts in the order they were saved.
func (l *Ledger) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, len(l.state.ProcessedPosts))
	copy(out, l.state.ProcessedPosts)
	return out
}

// FileNameTaken reports whether fileName is already owned by a post other
// than link.
func (l *Ledger) FileNameTaken(fileName, link string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.state.ProcessedPosts {
		if e.FileName == fileName && e.Link != link {
			return true
		}
	}
	return false
}

func (l *Ledger) persist() error {
	data, err := json.MarshalIndent(l.state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode progress ledger: %w", err)
	}
	if _, err := l.store.Put(FileName, data); err != nil {
		return fmt.Errorf("failed to save progress ledger: %w", err)
	}
	return nil
}
