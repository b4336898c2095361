package tractio

import (
	"context"
	"math/rand/v2"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/viant/afs"
	"golang.org/x/sync/errgroup"
)

// BatchOptions represents the options for DecodeBatch and ImportDir
type BatchOptions struct {
	// Decode is the decoding options used for every file
	Decode *DecodeOptions
	// Workers is the number of files decoded concurrently (<= 1 decodes sequentially, in listing order)
	Workers int
	// Weed is the fraction of streamlines (randomly) kept - 0 (or >= 1) keeps every streamline
	Weed float64
	// Subsample keeps every int(1/Subsample)-th point of each streamline - 0 (or >= 1) keeps every point
	Subsample float64
	// Affine, if set, is applied to every point
	Affine *Affine
	// Seed seeds the weeding random source (per file, so results don't depend on scheduling)
	//
	// 0 uses the global random source
	Seed uint64
	// Name, if set, is used as the base name of every result (instead of the file base name)
	Name string
}

// BatchResult is the outcome of decoding one file in a batch
type BatchResult struct {
	// Path is the path/url of the file
	Path string
	// Name is unique within the batch
	Name string
	// Set is the decoded (and weeded/subsampled/transformed) streamlines - nil if Err is set
	Set *StreamlineSet
	// Fingerprint is the Set fingerprint (see StreamlineSet.Fingerprint)
	Fingerprint uint64
	// DuplicateOf is the path of an earlier file in the batch with identical streamlines
	DuplicateOf string
	// Err is the decode error for this file
	Err error
}

// Failed returns the results that have an error
func Failed(results []BatchResult) []BatchResult {
	var failed []BatchResult
	for _, r := range results {
		if r.Err != nil {
			failed = append(failed, r)
		}
	}
	return failed
}

// DecodeBatch decodes each of the files (paths or afs urls) independently
//
// a failure of one file never stops the others - errors are reported per file in BatchResult.Err.
// results are in the same order as the supplied locations
func DecodeBatch(ctx context.Context, locations []string, options *BatchOptions) []BatchResult {
	if options == nil {
		options = &BatchOptions{}
	}
	logger := options.Decode.logger()
	results := make([]BatchResult, len(locations))
	names := make(map[string]bool, len(locations))
	for i, loc := range locations {
		results[i].Path = loc
		results[i].Name = uniqueName(names, options.baseName(loc))
	}
	var g errgroup.Group
	g.SetLimit(max(options.Workers, 1))
	for i := range results {
		res := &results[i]
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				res.Err = err
				return nil
			}
			res.Set, res.Err = decodeLocation(ctx, res.Path, options.Decode)
			if res.Err != nil {
				logger.Warn("tract import failed", "file", res.Path, "error", res.Err)
				return nil
			}
			res.Set = options.postProcess(res.Set, i)
			res.Fingerprint, res.Err = res.Set.Fingerprint()
			logger.Debug("tract imported", "file", res.Path, "name", res.Name,
				"streamlines", res.Set.Len(), "points", res.Set.NumPoints())
			return nil
		})
	}
	_ = g.Wait()
	seen := make(map[uint64]string, len(results))
	for i, res := range results {
		if res.Err != nil {
			continue
		}
		if first, ok := seen[res.Fingerprint]; ok {
			results[i].DuplicateOf = first
			logger.Info("tract is a duplicate", "file", res.Path, "of", first)
		} else {
			seen[res.Fingerprint] = res.Path
		}
	}
	return results
}

// ImportDir decodes every file in the directory that has a registered extension
//
// dir may be a local path or an afs url; files are decoded in name order
func ImportDir(ctx context.Context, dir string, options *BatchOptions) ([]BatchResult, error) {
	if options == nil {
		options = &BatchOptions{}
	}
	locations, err := ListDir(ctx, dir, options.Decode)
	if err != nil {
		return nil, err
	}
	return DecodeBatch(ctx, locations, options), nil
}

// ListDir lists the files in the directory (local path or afs url) that have a registered extension, sorted by name
func ListDir(ctx context.Context, dir string, options *DecodeOptions) ([]string, error) {
	var locations []string
	if !strings.Contains(dir, "://") {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, err
		}
		for _, entry := range entries {
			if entry.Type().IsRegular() && Supported(entry.Name(), options) {
				locations = append(locations, filepath.Join(dir, entry.Name()))
			}
		}
		return locations, nil
	}
	fs := afs.New()
	objects, err := fs.List(ctx, dir)
	if err != nil {
		return nil, err
	}
	for _, obj := range objects {
		if !obj.IsDir() && Supported(obj.Name(), options) {
			locations = append(locations, obj.URL())
		}
	}
	slices.Sort(locations)
	return locations, nil
}

func decodeLocation(ctx context.Context, loc string, options *DecodeOptions) (*StreamlineSet, error) {
	if strings.Contains(loc, "://") {
		return DecodeURL(ctx, loc, options)
	}
	return DecodeFile(loc, options)
}

func (o *BatchOptions) baseName(loc string) string {
	if o.Name != "" {
		return o.Name
	}
	if strings.Contains(loc, "://") {
		return path.Base(loc)
	}
	return filepath.Base(loc)
}

func (o *BatchOptions) postProcess(s *StreamlineSet, index int) *StreamlineSet {
	if o.Weed > 0 && o.Weed < 1 {
		var rnd *rand.Rand
		if o.Seed != 0 {
			rnd = rand.New(rand.NewPCG(o.Seed, uint64(index)))
		}
		s = Weed(s, o.Weed, rnd)
	}
	if o.Subsample > 0 && o.Subsample < 1 {
		s = Subsample(s, o.Subsample)
	}
	if o.Affine != nil && !o.Affine.IsIdentity() {
		s = s.Transform(*o.Affine)
	}
	return s
}

// uniqueName appends ".0", ".1", ... to name until it is not already taken
func uniqueName(taken map[string]bool, name string) string {
	candidate := name
	for i := 0; taken[candidate]; i++ {
		candidate = name + "." + strconv.Itoa(i)
	}
	taken[candidate] = true
	return candidate
}
