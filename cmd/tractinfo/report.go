package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/michielkleinnijenhuis/tractio"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Report is the tractinfo output
type Report struct {
	Files []FileReport `json:"files" yaml:"files" toml:"files"`
}

// FileReport summarises one decoded file
type FileReport struct {
	File        string    `json:"file" yaml:"file" toml:"file"`
	Name        string    `json:"name" yaml:"name" toml:"name"`
	Format      string    `json:"format,omitempty" yaml:"format,omitempty" toml:"format,omitempty"`
	Precision   int       `json:"precision,omitempty" yaml:"precision,omitempty" toml:"precision,omitempty"`
	Streamlines int       `json:"streamlines" yaml:"streamlines" toml:"streamlines"`
	Points      int       `json:"points" yaml:"points" toml:"points"`
	BoundsMin   []float64 `json:"bounds_min,omitempty" yaml:"bounds_min,omitempty,flow" toml:"bounds_min,omitempty"`
	BoundsMax   []float64 `json:"bounds_max,omitempty" yaml:"bounds_max,omitempty,flow" toml:"bounds_max,omitempty"`
	Fingerprint string    `json:"fingerprint,omitempty" yaml:"fingerprint,omitempty" toml:"fingerprint,omitempty"`
	DuplicateOf string    `json:"duplicate_of,omitempty" yaml:"duplicate_of,omitempty" toml:"duplicate_of,omitempty"`
	Error       string    `json:"error,omitempty" yaml:"error,omitempty" toml:"error,omitempty"`
}

func newReport(results []tractio.BatchResult) Report {
	r := Report{Files: make([]FileReport, 0, len(results))}
	for _, res := range results {
		fr := FileReport{
			File: res.Path,
			Name: res.Name,
		}
		if res.Err != nil {
			fr.Error = res.Err.Error()
			r.Files = append(r.Files, fr)
			continue
		}
		fr.Format = string(res.Set.Format)
		fr.Precision = res.Set.Precision
		fr.Streamlines = res.Set.Len()
		fr.Points = res.Set.NumPoints()
		if lo, hi, ok := res.Set.Bounds(); ok {
			fr.BoundsMin = lo[:]
			fr.BoundsMax = hi[:]
		}
		fr.Fingerprint = fmt.Sprintf("%016x", res.Fingerprint)
		fr.DuplicateOf = res.DuplicateOf
		r.Files = append(r.Files, fr)
	}
	return r
}

// Write writes the report in the given format (yaml, json or toml)
func (r Report) Write(w io.Writer, format string) error {
	switch format {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return err
		}
		return enc.Close()
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case "toml":
		return toml.NewEncoder(w).Encode(r)
	}
	return fmt.Errorf("unknown report format %q", format)
}
