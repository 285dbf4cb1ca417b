package persona

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/deldesir/gateway/internal/domain"
	"github.com/deldesir/gateway/internal/storage"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// knowledgeExts are tried in order; the first existing file wins.
var knowledgeExts = []string{".md", ".txt"}

// KnowledgeStore reads and writes persona knowledge text.
type KnowledgeStore interface {
	KnowledgeLoader
	Save(ctx context.Context, personaID, text string) error
	Delete(ctx context.Context, personaID string) error
}

// DirKnowledge keeps knowledge as <dir>/<persona>.md or <dir>/<persona>.txt.
type DirKnowledge struct {
	dir string
}

func NewDirKnowledge(dir string) *DirKnowledge {
	return &DirKnowledge{dir: dir}
}

func (d *DirKnowledge) Load(_ context.Context, personaID string) (string, error) {
	if !domain.IsValidPersonaID(personaID) {
		return "", nil
	}
	for _, ext := range knowledgeExts {
		data, err := os.ReadFile(filepath.Join(d.dir, personaID+ext))
		if err == nil {
			return strings.TrimSpace(string(data)), nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}
	}
	return "", nil
}

func (d *DirKnowledge) Save(_ context.Context, personaID, text string) error {
	if !domain.IsValidPersonaID(personaID) {
		return domain.ErrInvalidPersonaID
	}
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(d.dir, personaID+knowledgeExts[0]), []byte(text), 0o644)
}

func (d *DirKnowledge) Delete(_ context.Context, personaID string) error {
	if !domain.IsValidPersonaID(personaID) {
		return nil
	}
	for _, ext := range knowledgeExts {
		err := os.Remove(filepath.Join(d.dir, personaID+ext))
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}

// ObjectStore is the subset of the S3 client used for knowledge files.
type ObjectStore interface {
	GetObject(ctx context.Context, key string) ([]byte, error)
	PutObject(ctx context.Context, key string, data []byte, contentType string) error
	DeleteObject(ctx context.Context, key string) error
}

// S3Knowledge keeps knowledge as <prefix>/<persona>.md objects.
type S3Knowledge struct {
	objects ObjectStore
	prefix  string
}

func NewS3Knowledge(objects ObjectStore, prefix string) *S3Knowledge {
	return &S3Knowledge{objects: objects, prefix: strings.Trim(prefix, "/")}
}

func (s *S3Knowledge) key(personaID, ext string) string {
	return path.Join(s.prefix, personaID+ext)
}

func (s *S3Knowledge) Load(ctx context.Context, personaID string) (string, error) {
	if !domain.IsValidPersonaID(personaID) {
		return "", nil
	}
	for _, ext := range knowledgeExts {
		data, err := s.objects.GetObject(ctx, s.key(personaID, ext))
		if err == nil {
			return strings.TrimSpace(string(data)), nil
		}
		if !errors.Is(err, storage.ErrObjectNotFound) {
			return "", err
		}
	}
	return "", nil
}

func (s *S3Knowledge) Save(ctx context.Context, personaID, text string) error {
	if !domain.IsValidPersonaID(personaID) {
		return domain.ErrInvalidPersonaID
	}
	return s.objects.PutObject(ctx, s.key(personaID, knowledgeExts[0]), []byte(text), "text/markdown")
}

func (s *S3Knowledge) Delete(ctx context.Context, personaID string) error {
	if !domain.IsValidPersonaID(personaID) {
		return nil
	}
	for _, ext := range knowledgeExts {
		if err := s.objects.DeleteObject(ctx, s.key(personaID, ext)); err != nil {
			return err
		}
	}
	return nil
}

// CachedKnowledge memoizes loads, including empty results. Writes through it
// invalidate the entry.
type CachedKnowledge struct {
	next  KnowledgeStore
	cache *expirable.LRU[string, string]
}

func NewCachedKnowledge(next KnowledgeStore, size int, ttl time.Duration) *CachedKnowledge {
	return &CachedKnowledge{
		next:  next,
		cache: expirable.NewLRU[string, string](size, nil, ttl),
	}
}

func (c *CachedKnowledge) Load(ctx context.Context, personaID string) (string, error) {
	if text, ok := c.cache.Get(personaID); ok {
		return text, nil
	}
	text, err := c.next.Load(ctx, personaID)
	if err != nil {
		return "", err
	}
	c.cache.Add(personaID, text)
	return text, nil
}

func (c *CachedKnowledge) Save(ctx context.Context, personaID, text string) error {
	c.cache.Remove(personaID)
	return c.next.Save(ctx, personaID, text)
}

func (c *CachedKnowledge) Delete(ctx context.Context, personaID string) error {
	c.cache.Remove(personaID)
	return c.next.Delete(ctx, personaID)
}
