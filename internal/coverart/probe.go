// Package coverart implements the cascading cover-art resolver: thumb
// cache, on-disk cover-image-name probing, embedded tag extraction, MPD's
// own albumart command, and a placeholder fallback (spec §4.7,
// component C11). Grounded on
// original_source/src/web_server/albumart.c.
package coverart

import (
	"os"
	"path/filepath"
	"runtime"
	"sync"
)

// probeNames fans a list of candidate filenames (myMPD's
// coverimage_names / thumbnail_names config) out across a worker pool and
// returns the first one found on disk, preserving the caller's priority
// order. Grounded on the worker-pool shape of
// brandsjek-trollibox/src/filter/filter.go's Tracks, generalized here from
// "filter every track" to "probe every candidate path, keep the
// earliest-priority hit".
func probeNames(dir string, names []string) string {
	type hit struct {
		index int
		path  string
	}

	candidates := make(chan int)
	hits := make(chan hit, len(names))

	go func() {
		defer close(candidates)
		for i := range names {
			candidates <- i
		}
	}()

	workers := runtime.NumCPU()
	if workers > len(names) {
		workers = len(names)
	}
	if workers < 1 {
		workers = 1
	}

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := range candidates {
				path := resolveCandidate(dir, names[i])
				if path != "" {
					hits <- hit{index: i, path: path}
				}
			}
		}()
	}
	go func() {
		wg.Wait()
		close(hits)
	}()

	best := hit{index: len(names)}
	for h := range hits {
		if h.index < best.index {
			best = h
		}
	}
	return best.path
}

// resolveCandidate checks name as-is inside dir, and if name has no
// extension, probes the usual image extensions (spec §4.7, mirroring
// webserver_find_image_file's "basename, try extensions" behavior).
func resolveCandidate(dir, name string) string {
	path := filepath.Join(dir, name)
	if filepath.Ext(name) != "" {
		if fileReadable(path) {
			return path
		}
		return ""
	}
	for _, ext := range []string{".jpg", ".jpeg", ".png", ".webp", ".avif"} {
		if fileReadable(path + ext) {
			return path + ext
		}
	}
	return ""
}

func fileReadable(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
