package storage

import (
	"strings"
	"sync"
	"time"

	"github.com/fazalmittu/nfl-clip-coach/internal/config"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
)

// Client fronts the film bucket. Game film is large and immutable, so the
// listing cache can be generous.
type Client struct {
	backend    Provider
	bucketFilm string

	cache      map[string][]string
	cacheTime  map[string]time.Time
	cacheMutex sync.RWMutex
}

const CacheTTL = 1 * time.Hour

var filmExtensions = []string{".mp4", ".mkv", ".ts", ".mov"}

func New(cfg *config.Config) *Client {
	var backend Provider

	// 1. Internal Selection Logic
	if cfg.Storage.Provider == "local" {
		backend = NewLocalProvider(cfg.Storage.LocalStorage)
	} else {
		s3Config := &aws.Config{
			Credentials:      credentials.NewStaticCredentials(cfg.Storage.KeyID, cfg.Storage.AppKey, ""),
			Endpoint:         aws.String(cfg.Storage.Endpoint),
			Region:           aws.String(cfg.Storage.Region),
			S3ForcePathStyle: aws.Bool(true),
		}
		sess := session.Must(session.NewSession(s3Config))
		backend = NewS3Provider(sess)
	}

	return &Client{
		backend:    backend,
		bucketFilm: cfg.Storage.BucketFilm,
		cache:      make(map[string][]string),
		cacheTime:  make(map[string]time.Time),
	}
}

// ListFilms returns the video keys under a prefix (e.g. "film/2024/").
func (c *Client) ListFilms(prefix string) ([]string, error) {
	c.cacheMutex.RLock()
	files, ok := c.cache[prefix]
	ts := c.cacheTime[prefix]
	c.cacheMutex.RUnlock()

	if ok && time.Since(ts) < CacheTTL {
		return files, nil
	}

	keys, err := c.backend.List(c.bucketFilm, prefix)
	if err != nil {
		return nil, err
	}

	var filmKeys []string
	for _, key := range keys {
		if isFilm(key) {
			filmKeys = append(filmKeys, key)
		}
	}

	c.cacheMutex.Lock()
	c.cache[prefix] = filmKeys
	c.cacheTime[prefix] = time.Now()
	c.cacheMutex.Unlock()

	return filmKeys, nil
}

func (c *Client) DownloadFilm(key string) (*FileObject, error) {
	return c.backend.Get(c.bucketFilm, key)
}

func (c *Client) FilmExists(key string) (bool, error) {
	return c.backend.Exists(c.bucketFilm, key)
}

func isFilm(key string) bool {
	lower := strings.ToLower(key)
	for _, ext := range filmExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}
