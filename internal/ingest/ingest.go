// Package ingest enrolls every face image found in a picture directory.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/kozaktomas/face-attendance/internal/gallery"
	"github.com/kozaktomas/face-attendance/internal/recognition"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/unicode/norm"
)

// zoneIdentifier marks the alternate-stream sidecar files Windows leaves next
// to downloaded pictures.
const zoneIdentifier = "Zone.Identifier"

// Options configures a directory ingest.
type Options struct {
	Dir          string
	Extensions   []string // lower-case, with leading dot
	Workers      int
	SkipExisting bool // skip labels that already have samples in the gallery

	// OnFile is called once per processed file. Calls are serialized.
	OnFile func(file string, err error)
}

// Failure describes one file that could not be enrolled.
type Failure struct {
	File string
	Err  error
}

// Result summarizes an ingest run.
type Result struct {
	Loaded  int
	Skipped int
	Failed  []Failure
	Saved   bool
}

// Files lists the candidate images in dir, sorted by name. Subdirectories and
// Zone.Identifier sidecars are ignored.
func Files(dir string, extensions []string) ([]string, error) {
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading picture directory: %w", err)
	}

	var files []string
	for _, e := range dirEntries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.Contains(name, zoneIdentifier) {
			continue
		}
		if !slices.Contains(extensions, strings.ToLower(filepath.Ext(name))) {
			continue
		}
		files = append(files, name)
	}
	slices.Sort(files)
	return files, nil
}

// Label derives the user id from a file name: the base name without its
// extension, normalized to NFC so decomposed names from macOS file systems
// compare equal to typed ones.
func Label(file string) string {
	base := filepath.Base(file)
	return norm.NFC.String(strings.TrimSuffix(base, filepath.Ext(base)))
}

type extracted struct {
	embedding []float32
	err       error
}

// Run enrolls the images of opts.Dir into g. Embeddings are extracted
// concurrently and added in file name order. The gallery is saved once when
// at least one face was loaded. A missing directory is logged and skipped.
func Run(ctx context.Context, ext recognition.Extractor, g *gallery.Gallery, opts Options) (*Result, error) {
	result := &Result{}

	files, err := Files(opts.Dir, opts.Extensions)
	if errors.Is(err, os.ErrNotExist) {
		log.Printf("Directory %q not found, skipping local image ingest", opts.Dir)
		return result, nil
	}
	if err != nil {
		return nil, err
	}

	if opts.SkipExisting {
		files = skipEnrolled(files, g, result)
	}
	if len(files) == 0 {
		return result, nil
	}
	log.Printf("Scanning %q: %d images", opts.Dir, len(files))

	results := extractAll(ctx, ext, opts, files)
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("ingest canceled: %w", err)
	}

	for i, file := range files {
		r := results[i]
		if r.err != nil {
			log.Printf("Failed to enroll %s: %v", file, r.err)
			result.Failed = append(result.Failed, Failure{File: file, Err: r.err})
			continue
		}
		g.Add(Label(file), r.embedding)
		result.Loaded++
	}

	if result.Loaded > 0 {
		if err := g.Save(); err != nil {
			return result, fmt.Errorf("saving gallery after ingest: %w", err)
		}
		result.Saved = true
		log.Printf("Loaded %d faces from %s", result.Loaded, opts.Dir)
	}
	return result, nil
}

func skipEnrolled(files []string, g *gallery.Gallery, result *Result) []string {
	enrolled := make(map[string]bool)
	for _, id := range g.Identities() {
		enrolled[id.UserID] = true
	}

	kept := files[:0:0]
	for _, f := range files {
		if enrolled[Label(f)] {
			result.Skipped++
			continue
		}
		kept = append(kept, f)
	}
	return kept
}

// extractAll runs the extractor over files with at most opts.Workers calls in
// flight. Per-file errors are kept in the result slot; only context
// cancellation stops the group.
func extractAll(ctx context.Context, ext recognition.Extractor, opts Options, files []string) []extracted {
	results := make([]extracted, len(files))
	workers := max(opts.Workers, 1)

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)

	var cbMu sync.Mutex
	for i, file := range files {
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				results[i] = extracted{err: err}
				return err
			}

			data, err := os.ReadFile(filepath.Join(opts.Dir, file)) //nolint:gosec // file comes from ReadDir of the configured directory
			if err == nil {
				results[i].embedding, err = ext.Extract(egCtx, data)
			}
			results[i].err = err

			if opts.OnFile != nil {
				cbMu.Lock()
				opts.OnFile(file, err)
				cbMu.Unlock()
			}
			return nil
		})
	}
	_ = eg.Wait()
	return results
}
