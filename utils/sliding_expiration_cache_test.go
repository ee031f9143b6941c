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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSlidingExpirationCachePutGet(t *testing.T) {
	cache := NewSlidingExpirationCache[int]("test")
	defer cache.Dispose()

	cache.Put("a", 1, time.Minute)
	cache.Put("b", 2, time.Minute)

	value, ok := cache.Get("a", time.Minute)
	assert.True(t, ok)
	assert.Equal(t, 1, value)
	assert.Equal(t, 2, cache.Size())

	_, ok = cache.Get("missing", time.Minute)
	assert.False(t, ok)
}

func TestSlidingExpirationCacheExpiredEntry(t *testing.T) {
	cache := NewSlidingExpirationCache[int]("test")
	defer cache.Dispose()

	cache.Put("a", 1, time.Nanosecond)
	time.Sleep(time.Millisecond)

	_, ok := cache.Get("a", time.Minute)
	assert.False(t, ok)
}

func TestSlidingExpirationCacheGetExtendsExpiration(t *testing.T) {
	cache := NewSlidingExpirationCache[int]("test")
	defer cache.Dispose()

	cache.Put("a", 1, 50*time.Millisecond)

	// Reading the entry extends its lifetime past the original expiration.
	_, ok := cache.Get("a", time.Minute)
	assert.True(t, ok)
	time.Sleep(60 * time.Millisecond)

	value, ok := cache.Get("a", time.Minute)
	assert.True(t, ok)
	assert.Equal(t, 1, value)
}

func TestSlidingExpirationCacheComputeIfAbsent(t *testing.T) {
	cache := NewSlidingExpirationCache[int]("test")
	defer cache.Dispose()

	value := cache.ComputeIfAbsent("a", func() int { return 1 }, time.Minute)
	assert.Equal(t, 1, value)

	// An existing entry is returned without invoking the compute func.
	value = cache.ComputeIfAbsent("a", func() int { return 2 }, time.Minute)
	assert.Equal(t, 1, value)
	assert.Equal(t, 1, cache.Size())
}

func TestSlidingExpirationCacheRemoveDisposesItem(t *testing.T) {
	var disposed []int
	cache := NewSlidingExpirationCache[int]("test", func(item int) bool {
		disposed = append(disposed, item)
		return true
	})
	defer cache.Dispose()

	cache.Put("a", 1, time.Minute)
	cache.Remove("a")

	assert.Equal(t, 0, cache.Size())
	assert.Equal(t, []int{1}, disposed)

	// Removing a missing key does not invoke the disposal func.
	cache.Remove("missing")
	assert.Equal(t, []int{1}, disposed)
}

func TestSlidingExpirationCacheClearDisposesItems(t *testing.T) {
	var disposed []int
	cache := NewSlidingExpirationCache[int]("test", func(item int) bool {
		disposed = append(disposed, item)
		return true
	})
	defer cache.Dispose()

	cache.Put("a", 1, time.Minute)
	cache.Put("b", 2, time.Minute)
	cache.Clear()

	assert.Equal(t, 0, cache.Size())
	assert.ElementsMatch(t, []int{1, 2}, disposed)
}

func TestSlidingExpirationCacheShouldDisposeFunc(t *testing.T) {
	// The second func vetoes cleanup, so an expired entry remains readable.
	cache := NewSlidingExpirationCache[int]("test",
		func(item int) bool { return true },
		func(item int) bool { return false })
	defer cache.Dispose()

	cache.Put("a", 1, time.Nanosecond)
	time.Sleep(time.Millisecond)

	value, ok := cache.Get("a", time.Minute)
	assert.True(t, ok)
	assert.Equal(t, 1, value)
}

func TestSlidingExpirationCacheGetAllEntries(t *testing.T) {
	cache := NewSlidingExpirationCache[int]("test")
	defer cache.Dispose()

	cache.Put("a", 1, time.Minute)
	cache.Put("b", 2, time.Minute)

	entries := cache.GetAllEntries()
	assert.Equal(t, map[string]int{"a": 1, "b": 2}, entries)
}
