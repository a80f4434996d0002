// Package jpegdec decodes baseline sequential JPEG images (SOF0, 8-bit
// precision, Huffman entropy coding) with one grayscale component or three
// YCbCr components at 4:4:4, 4:2:2, 4:4:0 or 4:2:0 chroma subsampling.
// The output is a packed 8-bit BGRx raster.
package jpegdec

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"sync"
)

// ErrorKind discriminates the decode failure classes.
type ErrorKind int

const (
	// MalformedHeader indicates a missing SOI, an unexpected marker in
	// header position, or a segment that does not match its declared length.
	MalformedHeader ErrorKind = iota
	// UnsupportedFeature indicates a frame type, precision, component count
	// or sampling layout outside the baseline subset.
	UnsupportedFeature
	// TableError indicates an invalid quantization or Huffman table
	// definition or reference.
	TableError
	// HuffmanError indicates an undecodable symbol or an out-of-range
	// coefficient length.
	HuffmanError
	// StreamError indicates a truncated or corrupted entropy-coded stream.
	StreamError
	// TooLarge indicates frame dimensions above the configured maximum.
	TooLarge
	// IccError indicates an inconsistent multi-chunk ICC_PROFILE payload.
	IccError
)

var errorKindNames = map[ErrorKind]string{
	MalformedHeader:    "malformed header",
	UnsupportedFeature: "unsupported feature",
	TableError:         "table error",
	HuffmanError:       "huffman error",
	StreamError:        "stream error",
	TooLarge:           "too large",
	IccError:           "icc error",
}

func (k ErrorKind) String() string {
	if s, ok := errorKindNames[k]; ok {
		return s
	}

	return "unknown error"
}

// Error is the single error type returned by the decoder. Every failure is
// fatal to the decode; no partial raster is ever returned alongside one.
type Error struct {
	Kind ErrorKind
	msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("jpegdec: %s: %s", e.Kind, e.msg)
}

func malformed(msg string) error { return &Error{Kind: MalformedHeader, msg: msg} }

func unsupported(msg string) error { return &Error{Kind: UnsupportedFeature, msg: msg} }

func tableErr(msg string) error { return &Error{Kind: TableError, msg: msg} }

func huffmanErr(msg string) error { return &Error{Kind: HuffmanError, msg: msg} }

func streamErr(msg string) error { return &Error{Kind: StreamError, msg: msg} }

func tooLarge(msg string) error { return &Error{Kind: TooLarge, msg: msg} }

func iccErr(msg string) error { return &Error{Kind: IccError, msg: msg} }

// maxDimension bounds the frame width and height accepted from SOF.
const maxDimension = 16384

// Raster is a decoded image: width*height pixels in packed BGRx 8-8-8-8
// order, four bytes per pixel with the fourth byte always zero.
type Raster struct {
	Width  int
	Height int
	Pix    []byte
}

// Image returns the raster as an image.RGBA with full alpha.
func (r *Raster) Image() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, r.Width, r.Height))

	for i := 0; i < r.Width*r.Height; i++ {
		img.Pix[i*4+0] = r.Pix[i*4+2]
		img.Pix[i*4+1] = r.Pix[i*4+1]
		img.Pix[i*4+2] = r.Pix[i*4+0]
		img.Pix[i*4+3] = 255
	}

	return img
}

// Config holds the frame parameters read from SOF0.
type Config struct {
	Width      int
	Height     int
	Components int
}

// Sniff reports whether data starts like a JPEG stream. It inspects only the
// first three bytes and never fails on short input.
func Sniff(data []byte) bool {
	return len(data) >= 3 && data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF
}

// Decode decodes a complete baseline JPEG stream into a BGRx raster.
func Decode(data []byte) (*Raster, error) {
	d := newDecoder(data)
	if err := d.decode(); err != nil {
		return nil, err
	}

	return d.raster, nil
}

// DecodeConfig returns the frame dimensions and component count without
// decoding the entropy-coded data. Parsing stops once SOF0 has been read.
func DecodeConfig(data []byte) (Config, error) {
	d := newDecoder(data)
	if err := d.parseHeader(true); err != nil {
		d.state = stateError

		return Config{}, err
	}

	return Config{Width: d.width, Height: d.height, Components: d.ncomp}, nil
}

// ICCData parses the stream headers and returns the reassembled ICC profile
// carried in APP2 ICC_PROFILE segments. It returns nil when the file embeds
// no profile or an incomplete chunk set.
func ICCData(data []byte) ([]byte, error) {
	d := newDecoder(data)
	if err := d.parseHeader(false); err != nil {
		d.state = stateError

		return nil, err
	}

	return d.iccData, nil
}

// Interface to check if a reader knows its remaining length.
type readerWithLen interface {
	Len() int
}

// readAllData reads data from r, pre-allocating if the size is known.
func readAllData(r io.Reader) ([]byte, error) {
	if rl, ok := r.(readerWithLen); ok {
		size := rl.Len()
		if size > 0 {
			data := make([]byte, size)
			if _, err := io.ReadFull(r, data); err != nil {
				return nil, fmt.Errorf("failed to read image data: %w", err)
			}

			return data, nil
		}
	}

	return io.ReadAll(r)
}

// DecodeImage reads a JPEG stream from r and returns it as an image.Image.
func DecodeImage(r io.Reader) (image.Image, error) {
	data, err := readAllData(r)
	if err != nil {
		return nil, err
	}

	raster, err := Decode(data)
	if err != nil {
		return nil, err
	}

	return raster.Image(), nil
}

// A reasonable upper limit for the size of JPEG headers (64KB).
const maxHeaderSize = 65536

// A pool for header-sized buffers to reduce allocations in DecodeImageConfig.
var headerBufferPool = sync.Pool{
	New: func() interface{} {
		b := make([]byte, maxHeaderSize)

		return &b
	},
}

// DecodeImageConfig returns the color model and dimensions of a JPEG stream
// without decoding the image data.
func DecodeImageConfig(r io.Reader) (image.Config, error) {
	bufPtr := headerBufferPool.Get().(*[]byte)
	defer headerBufferPool.Put(bufPtr)
	headerData := *bufPtr

	// Reading less than the buffer size is normal for small files.
	n, err := io.ReadFull(r, headerData)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return image.Config{}, err
	}

	cfg, err := DecodeConfig(headerData[:n])
	if err != nil {
		return image.Config{}, err
	}

	cm := color.Model(color.RGBAModel)
	if cfg.Components == 1 {
		cm = color.GrayModel
	}

	return image.Config{ColorModel: cm, Width: cfg.Width, Height: cfg.Height}, nil
}

// init registers the JPEG format with the standard library's image package.
func init() {
	image.RegisterFormat("jpeg", "\xff\xd8", DecodeImage, DecodeImageConfig)
}
