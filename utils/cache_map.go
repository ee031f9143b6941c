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
	"sync"
	"time"
)

var CleanupIntervalNanos time.Duration = 10 * time.Minute

// CacheMap is a thread-safe map whose entries carry a fixed expiration time.
// Reads do not extend an entry's lifetime.
type CacheMap[T any] struct {
	cache           map[string]cacheEntry[T]
	nextCleanupTime time.Time
	lock            sync.RWMutex
}

func NewCacheMap[T any]() *CacheMap[T] {
	return &CacheMap[T]{
		cache:           make(map[string]cacheEntry[T]),
		nextCleanupTime: time.Now().Add(CleanupIntervalNanos),
	}
}

func (c *CacheMap[T]) Get(key string) (T, bool) {
	c.lock.RLock()
	defer c.lock.RUnlock()

	entry, ok := c.cache[key]
	if !ok || entry.isExpired() {
		var zeroValue T
		return zeroValue, false
	}
	return entry.item, true
}

func (c *CacheMap[T]) Put(key string, value T, itemExpiration time.Duration) {
	c.lock.Lock()
	c.cache[key] = cacheEntry[T]{
		item:           value,
		expirationTime: time.Now().Add(itemExpiration),
	}
	c.lock.Unlock()
	c.CleanUp()
}

func (c *CacheMap[T]) PutIfAbsent(key string, value T, itemExpiration time.Duration) {
	c.lock.RLock()
	_, ok := c.cache[key]
	c.lock.RUnlock()

	if !ok {
		c.Put(key, value, itemExpiration)
	}
}

func (c *CacheMap[T]) ComputeIfAbsent(key string, computeFunc func() T, itemExpiration time.Duration) T {
	c.lock.RLock()
	entry, ok := c.cache[key]
	c.lock.RUnlock()

	if ok && !entry.isExpired() {
		return entry.item
	}

	c.lock.Lock()
	defer c.lock.Unlock()
	c.cache[key] = cacheEntry[T]{
		item:           computeFunc(),
		expirationTime: time.Now().Add(itemExpiration),
	}
	return c.cache[key].item
}

func (c *CacheMap[T]) Remove(key string) {
	c.lock.Lock()
	delete(c.cache, key)
	c.lock.Unlock()
}

func (c *CacheMap[T]) Clear() {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.cache = make(map[string]cacheEntry[T])
	c.nextCleanupTime = time.Now().Add(CleanupIntervalNanos)
}

// GetAllEntries returns a copy of all entries in the cache, including expired entries.
func (c *CacheMap[T]) GetAllEntries() map[string]T {
	c.lock.RLock()
	defer c.lock.RUnlock()

	entryMap := make(map[string]T, len(c.cache))
	for key, entry := range c.cache {
		entryMap[key] = entry.item
	}
	return entryMap
}

func (c *CacheMap[T]) Size() int {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return len(c.cache)
}

// CleanUp drops expired entries once the cleanup interval has elapsed.
func (c *CacheMap[T]) CleanUp() {
	c.lock.Lock()
	defer c.lock.Unlock()

	if time.Now().After(c.nextCleanupTime) {
		for key, entry := range c.cache {
			if entry.isExpired() {
				delete(c.cache, key)
			}
		}
		c.nextCleanupTime = time.Now().Add(CleanupIntervalNanos)
	}
}

type cacheEntry[T any] struct {
	item           T
	expirationTime time.Time
}

func (e cacheEntry[T]) isExpired() bool {
	return time.Now().After(e.expirationTime)
}
