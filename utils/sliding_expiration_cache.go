/*
  Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.

  Licensed under the Apache License, Version 2.0 (the "License").
  You may not use this file except in compliance with the License.
  You may obtain a copy of the License at

  http://www.apache.org/licenses/LICENSE-2.0

  Unless required by applicable law or agreed to in writing, software
  distributed under the License is distributed on an "AS IS" BASIS,
  WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
  See the License for the specific language governing permissions and
  limitations under the License.
*/

package utils

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"clustersql/error_util"
)

type DisposalFunc[T any] func(T) bool

// SlidingExpirationCache extends an entry's lifetime on every read. Expired
// entries are removed by a background goroutine and passed to the item
// disposal func, if one was supplied.
type SlidingExpirationCache[T any] struct {
	cacheId           string
	cache             map[string]*slidingCacheEntry[T]
	lock              sync.RWMutex
	itemDisposalFunc  DisposalFunc[T]
	shouldDisposeFunc DisposalFunc[T]
	cancelCleanup     context.CancelFunc
}

// NewSlidingExpirationCache accepts up to two optional funcs: the first
// disposes of removed items, the second decides whether an expired item may
// be disposed of yet.
func NewSlidingExpirationCache[T any](id string, funcs ...DisposalFunc[T]) *SlidingExpirationCache[T] {
	ctx, cancel := context.WithCancel(context.Background())

	cache := &SlidingExpirationCache[T]{
		cacheId:       id,
		cache:         make(map[string]*slidingCacheEntry[T]),
		cancelCleanup: cancel,
	}

	if len(funcs) > 0 {
		cache.itemDisposalFunc = funcs[0]
		if len(funcs) > 1 {
			cache.shouldDisposeFunc = funcs[1]
		}
	}

	slog.Debug(error_util.GetMessage("SlidingExpirationCache.startingCleanupRoutine", id))
	go cache.cleanupExpiredEntries(ctx)
	return cache
}

func (c *SlidingExpirationCache[T]) Get(key string, itemExpiration time.Duration) (T, bool) {
	c.lock.RLock()
	defer c.lock.RUnlock()

	entry, ok := c.cache[key]
	if !ok || entry.shouldCleanup(c.shouldDisposeFunc) {
		var zeroValue T
		return zeroValue, false
	}

	entry.extendExpiration(itemExpiration)
	return entry.item, true
}

func (c *SlidingExpirationCache[T]) Put(key string, value T, itemExpiration time.Duration) {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.cache[key] = &slidingCacheEntry[T]{
		item:           value,
		expirationTime: time.Now().Add(itemExpiration),
	}
}

func (c *SlidingExpirationCache[T]) ComputeIfAbsent(key string, computeFunc func() T, itemExpiration time.Duration) T {
	c.lock.Lock()
	defer c.lock.Unlock()

	entry, ok := c.cache[key]
	if ok {
		entry.extendExpiration(itemExpiration)
		return entry.item
	}

	c.cache[key] = &slidingCacheEntry[T]{
		item:           computeFunc(),
		expirationTime: time.Now().Add(itemExpiration),
	}
	return c.cache[key].item
}

func (c *SlidingExpirationCache[T]) Remove(key string) {
	c.lock.Lock()
	entry, ok := c.cache[key]
	delete(c.cache, key)
	c.lock.Unlock()

	if ok && entry != nil && c.itemDisposalFunc != nil {
		c.itemDisposalFunc(entry.item)
	}
}

func (c *SlidingExpirationCache[T]) Clear() {
	entries := c.GetAllEntries()

	c.lock.Lock()
	c.cache = make(map[string]*slidingCacheEntry[T])
	c.lock.Unlock()

	if c.itemDisposalFunc != nil {
		for _, item := range entries {
			c.itemDisposalFunc(item)
		}
	}
}

// GetAllEntries returns a copy of all entries in the cache, including expired entries.
func (c *SlidingExpirationCache[T]) GetAllEntries() map[string]T {
	c.lock.RLock()
	defer c.lock.RUnlock()

	entryMap := make(map[string]T, len(c.cache))
	for key, entry := range c.cache {
		entryMap[key] = entry.item
	}
	return entryMap
}

func (c *SlidingExpirationCache[T]) Size() int {
	if c == nil {
		return 0
	}
	c.lock.RLock()
	defer c.lock.RUnlock()
	return len(c.cache)
}

// Dispose clears the cache and stops the background cleanup goroutine.
func (c *SlidingExpirationCache[T]) Dispose() {
	c.Clear()
	c.cancelCleanup()
}

func (c *SlidingExpirationCache[T]) cleanupExpiredEntries(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			slog.Debug(error_util.GetMessage("SlidingExpirationCache.exitingCleanupRoutine", c.cacheId))
			return
		case <-time.After(CleanupIntervalNanos):
			var removedItems []T
			c.lock.Lock()
			for key, entry := range c.cache {
				if entry.shouldCleanup(c.shouldDisposeFunc) {
					removedItems = append(removedItems, entry.item)
					delete(c.cache, key)
				}
			}
			c.lock.Unlock()

			// Dispose after unlocking, the disposal func may be long-running.
			if c.itemDisposalFunc != nil {
				for _, item := range removedItems {
					c.itemDisposalFunc(item)
				}
			}
		}
	}
}

type slidingCacheEntry[T any] struct {
	item           T
	expirationTime time.Time
}

func (e *slidingCacheEntry[T]) extendExpiration(itemExpiration time.Duration) {
	e.expirationTime = time.Now().Add(itemExpiration)
}

func (e *slidingCacheEntry[T]) shouldCleanup(shouldDisposeFunc DisposalFunc[T]) bool {
	if time.Now().Before(e.expirationTime) {
		return false
	}
	if shouldDisposeFunc != nil {
		return shouldDisposeFunc(e.item)
	}
	return true
}
