package storage

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// FilmCache keeps local copies of game film. Frame extraction seeks all over a
// multi-GB file, so indexing always runs against a local copy, never a stream.
type FilmCache struct {
	client  *Client
	baseDir string
	mu      sync.Mutex
	pending map[string]chan struct{}
}

func NewFilmCache(client *Client, tmpDir string) *FilmCache {
	cacheDir := filepath.Join(tmpDir, "film_cache")
	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		log.Printf("⚠️ Failed to create film cache dir: %v", err)
	}

	return &FilmCache{
		client:  client,
		baseDir: cacheDir,
		pending: make(map[string]chan struct{}),
	}
}

// LocalPath returns a local file for the film key, downloading it on first use.
// Concurrent callers for the same key share one download.
func (c *FilmCache) LocalPath(key string) (string, error) {
	localPath := c.filePath(key)

	// 1. Already cached
	if c.exists(localPath) {
		return localPath, nil
	}

	// 2. Another caller is already downloading it
	c.mu.Lock()
	waitCh, isDownloading := c.pending[key]
	if isDownloading {
		c.mu.Unlock()
		<-waitCh
		return localPath, nil
	}

	// 3. Register our intent to download
	done := make(chan struct{})
	c.pending[key] = done
	c.mu.Unlock()

	defer func() {
		close(done)
		c.mu.Lock()
		delete(c.pending, key)
		c.mu.Unlock()
	}()

	// Cheap existence check first: a typo'd key should fail with a clear
	// message, not a multi-GB download error.
	if ok, err := c.client.FilmExists(key); err == nil && !ok {
		return "", fmt.Errorf("film %s not found in bucket", key)
	}

	log.Printf("📥 Film cache miss: downloading %s", key)
	if err := c.download(key, localPath); err != nil {
		return "", err
	}

	return localPath, nil
}

func (c *FilmCache) filePath(key string) string {
	// Flatten the bucket key into a filesystem-safe name
	safeName := strings.ReplaceAll(key, "/", "_")
	return filepath.Join(c.baseDir, safeName)
}

func (c *FilmCache) exists(path string) bool {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false
	}
	return !info.IsDir() && info.Size() > 0
}

func (c *FilmCache) download(key, dest string) error {
	// Write to a temp file, then rename, so a crashed download never leaves a
	// half-written film that the indexer would happily seek into.
	tmp := dest + ".tmp"

	obj, err := c.client.DownloadFilm(key)
	if err != nil {
		return err
	}
	defer obj.Body.Close()

	out, err := os.Create(tmp)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, obj.Body); err != nil {
		return err
	}

	return os.Rename(tmp, dest)
}
