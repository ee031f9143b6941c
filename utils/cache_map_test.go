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

func TestCacheMapPutGet(t *testing.T) {
	cache := NewCacheMap[string]()

	cache.Put("a", "one", time.Minute)
	value, ok := cache.Get("a")
	assert.True(t, ok)
	assert.Equal(t, "one", value)

	_, ok = cache.Get("missing")
	assert.False(t, ok)
}

func TestCacheMapExpiredEntry(t *testing.T) {
	cache := NewCacheMap[string]()

	cache.Put("a", "one", time.Nanosecond)
	time.Sleep(time.Millisecond)

	_, ok := cache.Get("a")
	assert.False(t, ok)
}

func TestCacheMapPutIfAbsent(t *testing.T) {
	cache := NewCacheMap[string]()

	cache.PutIfAbsent("a", "one", time.Minute)
	cache.PutIfAbsent("a", "two", time.Minute)

	value, ok := cache.Get("a")
	assert.True(t, ok)
	assert.Equal(t, "one", value)
}

func TestCacheMapComputeIfAbsent(t *testing.T) {
	cache := NewCacheMap[string]()

	value := cache.ComputeIfAbsent("a", func() string { return "one" }, time.Minute)
	assert.Equal(t, "one", value)

	value = cache.ComputeIfAbsent("a", func() string { return "two" }, time.Minute)
	assert.Equal(t, "one", value)

	// An expired entry is recomputed.
	cache.Put("b", "stale", time.Nanosecond)
	time.Sleep(time.Millisecond)
	value = cache.ComputeIfAbsent("b", func() string { return "fresh" }, time.Minute)
	assert.Equal(t, "fresh", value)
}

func TestCacheMapRemoveAndClear(t *testing.T) {
	cache := NewCacheMap[string]()

	cache.Put("a", "one", time.Minute)
	cache.Put("b", "two", time.Minute)
	assert.Equal(t, 2, cache.Size())

	cache.Remove("a")
	_, ok := cache.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 1, cache.Size())

	cache.Clear()
	assert.Equal(t, 0, cache.Size())
}

func TestCacheMapGetAllEntries(t *testing.T) {
	cache := NewCacheMap[string]()

	cache.Put("a", "one", time.Minute)
	cache.Put("b", "two", time.Nanosecond)

	// GetAllEntries includes expired entries until cleanup runs.
	entries := cache.GetAllEntries()
	assert.Len(t, entries, 2)
	assert.Equal(t, "one", entries["a"])
}
