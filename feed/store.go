package feed

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	"github.com/google/uuid"

	"beatpad/grid"
	"beatpad/sound"
)

var (
	ErrPostNotFound = errors.New("post not found")
	ErrInvalidPost  = errors.New("post needs a grid and a positive bpm")
	ErrEmptyComment = errors.New("comment is empty")
)

// Comment is a reply on a post
type Comment struct {
	ID         string    `json:"id"`
	AuthorName string    `json:"authorName"`
	Text       string    `json:"text"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Post is a published beat
type Post struct {
	ID                 string             `json:"id"`
	AuthorID           string             `json:"authorId"`
	AuthorName         string             `json:"authorName"`
	Grid               *grid.Grid         `json:"grid"`
	BPM                float64            `json:"bpm"`
	Sounds             []sound.Descriptor `json:"sounds,omitempty"`
	CreatedAt          time.Time          `json:"createdAt"`
	Likes              int                `json:"likes"`
	HasLiked           bool               `json:"hasLiked"`
	Comments           []Comment          `json:"comments"`
	OriginalPostID     string             `json:"originalPostId,omitempty"`
	OriginalAuthorName string             `json:"originalAuthorName,omitempty"`
}

// IsRemix reports whether the post was remixed from another
func (p Post) IsRemix() bool {
	return p.OriginalPostID != ""
}

// Store keeps posts as timestamped JSON files in one directory
type Store struct {
	dir string
	mu  sync.Mutex
	now func() time.Time
}

// NewStore creates a store rooted at dir
func NewStore(dir string) *Store {
	return &Store{dir: dir, now: time.Now}
}

const timestampFormat = "2006-01-02_15-04-05"

// Publish stores a new post and returns it with its id and timestamp set
func (s *Store) Publish(p Post) (Post, error) {
	if p.Grid == nil || p.BPM <= 0 {
		return Post{}, fault.Wrap(ErrInvalidPost,
			fmsg.WithDesc("publish", "Make a beat before publishing"),
			ftag.With(ftag.InvalidArgument))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p.ID = uuid.NewString()
	p.CreatedAt = s.now()
	p.Likes = 0
	p.HasLiked = false
	if p.Comments == nil {
		p.Comments = []Comment{}
	}

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return Post{}, fault.Wrap(err, fmsg.With("create posts dir"))
	}
	name := p.CreatedAt.Format(timestampFormat) + "_" + p.ID + ".json"
	if err := s.write(filepath.Join(s.dir, name), p); err != nil {
		return Post{}, err
	}
	return p, nil
}

// Remix publishes draft as a remix of the post originalID
func (s *Store) Remix(originalID string, draft Post) (Post, error) {
	orig, err := s.Get(originalID)
	if err != nil {
		return Post{}, err
	}
	draft.OriginalPostID = orig.ID
	draft.OriginalAuthorName = orig.AuthorName
	return s.Publish(draft)
}

// List returns every post, newest first
func (s *Store) List() ([]Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []Post{}, nil
		}
		return nil, err
	}

	var posts []Post
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		p, err := s.read(filepath.Join(s.dir, entry.Name()))
		if err != nil {
			continue
		}
		posts = append(posts, p)
	}

	sort.SliceStable(posts, func(i, j int) bool {
		return posts[i].CreatedAt.After(posts[j].CreatedAt)
	})
	return posts, nil
}

// Get returns the post with id
func (s *Store) Get(id string) (Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path, err := s.find(id)
	if err != nil {
		return Post{}, err
	}
	return s.read(path)
}

// Like toggles the local user's like on a post
func (s *Store) Like(id string) (Post, error) {
	return s.update(id, func(p *Post) error {
		if p.HasLiked {
			p.Likes = max(p.Likes-1, 0)
		} else {
			p.Likes++
		}
		p.HasLiked = !p.HasLiked
		return nil
	})
}

// Comment appends a comment to a post
func (s *Store) Comment(id, authorName, text string) (Post, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Post{}, fault.Wrap(ErrEmptyComment, ftag.With(ftag.InvalidArgument))
	}
	return s.update(id, func(p *Post) error {
		p.Comments = append(p.Comments, Comment{
			ID:         uuid.NewString(),
			AuthorName: authorName,
			Text:       text,
			CreatedAt:  s.now(),
		})
		return nil
	})
}

// Delete removes a post
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path, err := s.find(id)
	if err != nil {
		return err
	}
	return os.Remove(path)
}

func (s *Store) update(id string, fn func(p *Post) error) (Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path, err := s.find(id)
	if err != nil {
		return Post{}, err
	}
	p, err := s.read(path)
	if err != nil {
		return Post{}, err
	}
	if err := fn(&p); err != nil {
		return Post{}, err
	}
	if err := s.write(path, p); err != nil {
		return Post{}, err
	}
	return p, nil
}

// find locates the file for id. Must be called with mu held.
func (s *Store) find(id string) (string, error) {
	if id != "" {
		entries, _ := os.ReadDir(s.dir)
		suffix := "_" + id + ".json"
		for _, entry := range entries {
			if !entry.IsDir() && strings.HasSuffix(entry.Name(), suffix) {
				return filepath.Join(s.dir, entry.Name()), nil
			}
		}
	}
	return "", fault.Wrap(ErrPostNotFound,
		fmsg.WithDesc("find post "+id, "That post no longer exists"),
		ftag.With(ftag.NotFound))
}

func (s *Store) read(path string) (Post, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Post{}, fault.Wrap(err, fmsg.With("read "+path))
	}
	var p Post
	if err := json.Unmarshal(data, &p); err != nil {
		return Post{}, fault.Wrap(err, fmsg.With("decode "+path))
	}
	return p, nil
}

func (s *Store) write(path string, p Post) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fault.Wrap(err, fmsg.With("encode post"))
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fault.Wrap(err, fmsg.WithDesc("write "+path, "The post could not be saved"))
	}
	return nil
}
