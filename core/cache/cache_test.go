package cache

import (
	"sync"
	"testing"
	"time"

	"github.com/FocuswithJustin/legacyfix/core/fixer"
	"github.com/FocuswithJustin/legacyfix/core/nbt"
)

func TestLRUCache_BasicOperations(t *testing.T) {
	c := NewLRUCache[string, int](Config{MaxSize: 3})

	c.Put("a", 1)
	c.Put("b", 2)
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Errorf("Get(a) = %v, %v, want 1, true", v, ok)
	}
	if _, ok := c.Get("missing"); ok {
		t.Error("Get(missing) found a value")
	}

	c.Put("a", 10)
	if v, _ := c.Get("a"); v != 10 {
		t.Errorf("Get(a) after update = %v, want 10", v)
	}
	if c.Len() != 2 {
		t.Errorf("Len() = %d, want 2", c.Len())
	}

}

func TestLRUCache_Eviction(t *testing.T) {
	var evicted []string
	c := NewLRUCache[string, int](Config{
		MaxSize: 2,
		OnEvict: func(key, _ any) { evicted = append(evicted, key.(string)) },
	})

	c.Put("a", 1)
	c.Put("b", 2)
	c.Get("a") // b is now least recently used
	c.Put("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Error("b should have been evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Error("a should still be cached")
	}
	if len(evicted) != 1 || evicted[0] != "b" {
		t.Errorf("evicted = %v, want [b]", evicted)
	}

	stats := c.Stats()
	if stats.Evictions != 1 || stats.Size != 2 || stats.MaxSize != 2 {
		t.Errorf("Stats() = %+v", stats)
	}
	if stats.Hits != 2 || stats.Misses != 1 {
		t.Errorf("hits/misses = %d/%d, want 2/1", stats.Hits, stats.Misses)
	}
}

func TestLRUCache_TTL(t *testing.T) {
	c := NewLRUCache[string, int](Config{MaxSize: 10, TTL: 20 * time.Millisecond})
	c.Put("a", 1)
	if _, ok := c.Get("a"); !ok {
		t.Fatal("Get(a) before expiry missed")
	}
	time.Sleep(40 * time.Millisecond)
	if _, ok := c.Get("a"); ok {
		t.Error("Get(a) after expiry hit")
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d, want expired entry removed", c.Len())
	}
}

func TestLRUCache_Concurrent(t *testing.T) {
	c := NewLRUCache[int, int](Config{MaxSize: 50})
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				c.Put(g*1000+i, i)
				c.Get(g*1000 + i/2)
			}
		}(g)
	}
	wg.Wait()
	if c.Len() > 50 {
		t.Errorf("Len() = %d, exceeds MaxSize", c.Len())
	}
}

func TestDocumentCache(t *testing.T) {
	c := NewDocumentCache(2, 0)
	key := fixer.CacheKey{Kind: fixer.Entity, Source: 100, Target: 4435, Digest: "abc"}

	doc, err := nbt.ParseSNBT(`{id:"minecraft:donkey"}`)
	if err != nil {
		t.Fatalf("ParseSNBT() error = %v", err)
	}
	c.Put(key, doc)
	doc.PutString("id", "mutated")

	got, ok := c.Get(key)
	if !ok {
		t.Fatal("Get() missed")
	}
	if id := got.GetStringOr("id", ""); id != "minecraft:donkey" {
		t.Errorf("cached id = %q, want minecraft:donkey", id)
	}

	got.PutString("id", "changed again")
	again, _ := c.Get(key)
	if id := again.GetStringOr("id", ""); id != "minecraft:donkey" {
		t.Errorf("cached id after caller mutation = %q", id)
	}

	other := key
	other.Target = 1343
	if _, ok := c.Get(other); ok {
		t.Error("Get() with a different target hit")
	}
	if s := c.Stats(); s.Hits != 2 || s.Misses != 1 {
		t.Errorf("Stats() = %+v", s)
	}
}

func TestDocumentCacheDisabled(t *testing.T) {
	c := NewDocumentCache(0, 0)
	key := fixer.CacheKey{Kind: fixer.Chunk}
	c.Put(key, nbt.New())
	if _, ok := c.Get(key); ok {
		t.Error("disabled cache returned a value")
	}
	if c.Len() != 0 || c.Stats() != (Stats{}) {
		t.Errorf("disabled cache Len/Stats = %d/%+v", c.Len(), c.Stats())
	}
}
