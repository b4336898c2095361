package tractio

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/viant/afs"
)

// DecodeOptions represents the decoding options passed to the Decode... functions
//
// a nil DecodeOptions means defaults
type DecodeOptions struct {
	// Logger receives diagnostics (e.g. empty .npz archives, .tck count mismatches)
	//
	// defaults to discarding everything
	Logger *slog.Logger
	// Decoders allows you to provide custom decoders (or override default decoders) by file extension
	Decoders map[string]Decoder
	// TckRequireCount determines whether a .tck header 'count' that does not match the number
	// of decoded streamlines is an error (default is to log a warning)
	TckRequireCount bool
}

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func (o *DecodeOptions) logger() *slog.Logger {
	if o == nil || o.Logger == nil {
		return discardLogger
	}
	return o.Logger
}

// DecodeFile decodes the tract file at the given path - dispatching on the file extension
func DecodeFile(filename string, options *DecodeOptions) (*StreamlineSet, error) {
	decoder, format, err := DecoderFor(filepath.Ext(filename), options)
	if err != nil {
		return nil, withFile(err, filename)
	}
	f, err := os.Open(filename)
	if err != nil {
		return nil, withFile(err, filename)
	}
	defer func() {
		_ = f.Close()
	}()
	raw, err := io.ReadAll(f)
	if err != nil {
		return nil, withFile(err, filename)
	}
	return runDecoder(decoder, format, raw, filename, options)
}

// Decode decodes a tract file from the supplied reader
//
// ext is the file extension (e.g. ".tck") used to choose the decoder
func Decode(r io.Reader, ext string, options *DecodeOptions) (*StreamlineSet, error) {
	decoder, format, err := DecoderFor(ext, options)
	if err != nil {
		return nil, err
	}
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return runDecoder(decoder, format, raw, "", options)
}

// DecodeBytes decodes the raw contents of a tract file
//
// ext is the file extension (e.g. ".tck") used to choose the decoder
func DecodeBytes(raw []byte, ext string, options *DecodeOptions) (*StreamlineSet, error) {
	decoder, format, err := DecoderFor(ext, options)
	if err != nil {
		return nil, err
	}
	return runDecoder(decoder, format, raw, "", options)
}

// DecodeURL downloads and decodes the tract file at the given location (using afs)
//
// plain paths are read from the local file system
func DecodeURL(ctx context.Context, URL string, options *DecodeOptions) (*StreamlineSet, error) {
	decoder, format, err := DecoderFor(urlExt(URL), options)
	if err != nil {
		return nil, withFile(err, URL)
	}
	fs := afs.New()
	raw, err := fs.DownloadWithURL(ctx, URL)
	if err != nil {
		return nil, withFile(err, URL)
	}
	return runDecoder(decoder, format, raw, URL, options)
}

func runDecoder(decoder Decoder, format Format, raw []byte, file string, options *DecodeOptions) (*StreamlineSet, error) {
	result, err := decoder(raw, options)
	if err != nil {
		if file != "" {
			err = withFile(err, file)
		}
		return nil, err
	}
	if result.Format == "" {
		result.Format = format
	}
	return result, nil
}

func urlExt(URL string) string {
	if i := strings.IndexAny(URL, "?#"); i >= 0 {
		URL = URL[:i]
	}
	return path.Ext(URL)
}
