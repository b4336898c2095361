package tractio

import (
	"fmt"
	"path/filepath"
	"slices"
)

type Format string

const (
	FormatCamino Format = "camino"
	FormatVTK    Format = "vtk"
	FormatTck    Format = "tck"
	FormatNpy    Format = "npy"
	FormatNpz    Format = "npz"
	FormatTrk    Format = "trk"
)

// Decoder decodes the raw contents of a tract file into a StreamlineSet
type Decoder func(raw []byte, options *DecodeOptions) (*StreamlineSet, error)

type registration struct {
	format  Format
	decoder Decoder
}

// extensions are case-sensitive - Camino uses the case of the leading letter for byte order
var defaultDecoders map[string]registration

func init() {
	defaultDecoders = map[string]registration{
		".Bfloat":  {FormatCamino, caminoDecoder(caminoFloat32BE)},
		".bfloat":  {FormatCamino, caminoDecoder(caminoFloat32LE)},
		".Bdouble": {FormatCamino, caminoDecoder(caminoFloat64BE)},
		".bdouble": {FormatCamino, caminoDecoder(caminoFloat64LE)},
		".vtk":     {FormatVTK, vtkDecoder},
		".tck":     {FormatTck, tckDecoder},
		".npy":     {FormatNpy, npyDecoder},
		".npz":     {FormatNpz, npzDecoder},
		".trk":     {FormatTrk, trkDecoder},
	}
}

// Extensions returns the (sorted) file extensions that have a registered decoder
func Extensions() []string {
	result := make([]string, 0, len(defaultDecoders))
	for ext := range defaultDecoders {
		result = append(result, ext)
	}
	slices.Sort(result)
	return result
}

// Supported reports whether the file name has an extension that can be decoded
// (including any custom decoders in the options)
func Supported(name string, options *DecodeOptions) bool {
	_, _, err := DecoderFor(filepath.Ext(name), options)
	return err == nil
}

// DecoderFor returns the decoder (and format) registered for the file extension
//
// custom decoders in DecodeOptions.Decoders take precedence over the defaults
func DecoderFor(ext string, options *DecodeOptions) (Decoder, Format, error) {
	if options != nil {
		if decoder, ok := options.Decoders[ext]; ok && decoder != nil {
			format := Format(ext)
			if reg, ok := defaultDecoders[ext]; ok {
				format = reg.format
			}
			return decoder, format, nil
		}
	}
	if reg, ok := defaultDecoders[ext]; ok {
		return reg.decoder, reg.format, nil
	}
	return nil, "", &DecodeError{
		Construct: "file extension",
		Err:       fmt.Errorf("%w: no decoder for extension %q", ErrUnsupportedFormat, ext),
	}
}
