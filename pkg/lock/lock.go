// Package lock serializes reconciliation work per (category, supplier) key.
// Concurrent batches racing on the same key would corrupt the aggregate
// counters, so the pipeline acquires every distinct key of a submission in
// sorted order before resolving items.
package lock

import (
	"context"
	"sort"
)

// Release gives back a previously acquired key.
type Release func()

// KeyLocker grants exclusive ownership of a string key.
type KeyLocker interface {
	Acquire(ctx context.Context, key string) (Release, error)
}

// AcquireAll locks every key in deterministic order and returns one release
// covering all of them. Sorting prevents lock-order inversions between
// submissions that share a subset of keys.
func AcquireAll(ctx context.Context, locker KeyLocker, keys []string) (Release, error) {
	sorted := make([]string, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		sorted = append(sorted, key)
	}
	sort.Strings(sorted)

	releases := make([]Release, 0, len(sorted))
	releaseAll := func() {
		for i := len(releases) - 1; i >= 0; i-- {
			releases[i]()
		}
	}

	for _, key := range sorted {
		release, err := locker.Acquire(ctx, key)
		if err != nil {
			releaseAll()
			return nil, err
		}
		releases = append(releases, release)
	}
	return releaseAll, nil
}
