package remotefs

import (
	"container/list"
	"os"
	"sync"
)

// downloadLRU tracks files the materializer downloaded and deletes the least
// recently used ones once their total size exceeds maxBytes. Files that were
// already on local disk are never tracked, so never deleted.
//
// A tracked file is pinned from acquire until the matching release and is
// never evicted while pinned. Installing, evicting and checking for local
// files all happen under mu, so a path handed out by acquire stays on disk
// until it is released.
type downloadLRU struct {
	mu       sync.Mutex
	maxBytes int64
	curBytes int64

	// items maps remote path to list element (whose value is *lruEntry)
	items map[string]*list.Element
	order *list.List // front = most recently used
}

type lruEntry struct {
	remotePath string
	localPath  string
	sizeBytes  int64

	// pins counts callers between acquire and release
	pins int

	// fresh is set by install and cleared by the first acquire, so a
	// download cannot be evicted before whoever waited for it pins it
	fresh bool
}

func newDownloadLRU(maxBytes int64) *downloadLRU {
	return &downloadLRU{
		maxBytes: maxBytes,
		items:    make(map[string]*list.Element),
		order:    list.New(),
	}
}

// acquire reports whether remotePath can be used from localPath. A tracked
// download is pinned and becomes most recently used. An untracked non-empty
// regular file was on disk before the run and is used without a pin.
func (c *downloadLRU) acquire(remotePath, localPath string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[remotePath]; ok {
		entry := elem.Value.(*lruEntry)
		info, err := os.Stat(entry.localPath)
		if err == nil && info.Size() == entry.sizeBytes {
			entry.pins++
			entry.fresh = false
			c.order.MoveToFront(elem)
			return true
		}
		// Changed or deleted behind our back.
		c.removeLocked(elem, false)
		return false
	}

	info, err := os.Stat(localPath)
	return err == nil && info.Mode().IsRegular() && info.Size() > 0
}

// install moves a finished download from tmp to localPath and starts
// tracking it. It returns the local paths evicted to make room.
func (c *downloadLRU) install(remotePath, localPath, tmp string, sizeBytes int64) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.Rename(tmp, localPath); err != nil {
		return nil, err
	}

	if elem, ok := c.items[remotePath]; ok {
		old := elem.Value.(*lruEntry)
		c.curBytes += sizeBytes - old.sizeBytes
		old.localPath = localPath
		old.sizeBytes = sizeBytes
		old.fresh = true
		c.order.MoveToFront(elem)
	} else {
		elem := c.order.PushFront(&lruEntry{
			remotePath: remotePath,
			localPath:  localPath,
			sizeBytes:  sizeBytes,
			fresh:      true,
		})
		c.items[remotePath] = elem
		c.curBytes += sizeBytes
	}
	return c.evictLocked(), nil
}

// release unpins remotePath and returns the local paths evicted now that it
// may be deleted. Releasing an untracked path does nothing.
func (c *downloadLRU) release(remotePath string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[remotePath]
	if !ok {
		return nil
	}
	if entry := elem.Value.(*lruEntry); entry.pins > 0 {
		entry.pins--
	}
	return c.evictLocked()
}

// evictLocked deletes unpinned entries, least recently used first, until the
// total size fits maxBytes or nothing else can go. Caller must hold c.mu.
func (c *downloadLRU) evictLocked() []string {
	var evicted []string
	for elem := c.order.Back(); elem != nil && c.curBytes > c.maxBytes; {
		prev := elem.Prev()
		if entry := elem.Value.(*lruEntry); entry.pins == 0 && !entry.fresh {
			evicted = append(evicted, entry.localPath)
			c.removeLocked(elem, true)
		}
		elem = prev
	}
	return evicted
}

// removeLocked forgets an entry and optionally deletes its file.
// Caller must hold c.mu.
func (c *downloadLRU) removeLocked(elem *list.Element, deleteFile bool) {
	entry := elem.Value.(*lruEntry)
	c.order.Remove(elem)
	delete(c.items, entry.remotePath)
	c.curBytes -= entry.sizeBytes

	if deleteFile {
		os.Remove(entry.localPath)
	}
}

func (c *downloadLRU) size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.curBytes
}

func (c *downloadLRU) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}
