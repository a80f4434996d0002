package jpegdec

// JPEG markers handled by the header parser.
const (
	markerSOF0  = 0xFFC0
	markerDHT   = 0xFFC4
	markerRST0  = 0xFFD0
	markerRST7  = 0xFFD7
	markerSOI   = 0xFFD8
	markerEOI   = 0xFFD9
	markerSOS   = 0xFFDA
	markerDQT   = 0xFFDB
	markerDRI   = 0xFFDD
	markerAPP0  = 0xFFE0
	markerAPP2  = 0xFFE2
	markerAPP15 = 0xFFEF
)

// zigzag maps the stream order of coefficients to their natural position in
// an 8x8 block.
var zigzag = [64]int{
	0, 1, 8, 16, 9, 2, 3, 10,
	17, 24, 32, 25, 18, 11, 4, 5,
	12, 19, 26, 33, 40, 48, 41, 34,
	27, 20, 13, 6, 7, 14, 21, 28,
	35, 42, 49, 56, 57, 50, 43, 36,
	29, 22, 15, 23, 30, 37, 44, 51,
	58, 59, 52, 45, 38, 31, 39, 46,
	53, 60, 61, 54, 47, 55, 62, 63,
}

// componentSpec describes one frame component as declared in SOF0 and
// referenced again in SOS.
type componentSpec struct {
	id      uint8
	hsample int // Horizontal sampling factor.
	vsample int // Vertical sampling factor.
	dcTable uint8 // DC Huffman table selector, from SOS.
	acTable uint8 // AC Huffman table selector, from SOS.
	qtable  uint8 // Quantization table selector.
}

// macroblockMeta holds the dimensions of the macroblock matrix. The padded
// counts round the block grid up to a multiple of the luma sampling factors
// so that partially covered MCUs at the right and bottom edges have storage.
type macroblockMeta struct {
	hcount      int
	vcount      int
	hpadded     int
	vpadded     int
	total       int
	paddedTotal int
}

type decoderState int

// The state machine per decode. Error is sticky: once entered, no further
// stage runs.
const (
	stateNotDecoded decoderState = iota
	stateError
	stateFrameDecoded
	stateHeaderDecoded
	stateBitmapDecoded
)

// decoder carries the per-image context threaded through the pipeline: the
// frame and component descriptors, the coding tables, the unstuffed entropy
// stream with its bit cursor, and the output raster.
type decoder struct {
	data   []byte
	pos    int
	length int // Remaining payload bytes of the current marker segment.

	state decoderState

	width  int
	height int
	ncomp  int
	comp   [3]componentSpec

	// Luma sampling factors, image wide.
	hsample int
	vsample int

	mb macroblockMeta

	qtab     [2][64]uint16
	dcTables [2]*huffTable
	acTables [2]*huffTable

	restartInterval int
	prevDC          [3]int32

	hstream bitReader

	icc     *iccAssembler
	iccData []byte

	raster *Raster
}

func newDecoder(data []byte) *decoder {
	return &decoder{data: data}
}

func (d *decoder) remaining() int {
	return len(d.data) - d.pos
}

// skip advances the cursor by count bytes, keeping the current segment's
// remaining length in step.
func (d *decoder) skip(count int) error {
	if count > d.remaining() {
		return malformed("segment extends past end of data")
	}

	d.pos += count
	if d.length >= count {
		d.length -= count
	} else {
		d.length = 0
	}

	return nil
}

// decode16 reads a 16-bit big-endian integer at the given offset from the
// current position.
func (d *decoder) decode16(offset int) int {
	p := d.pos + offset

	return int(d.data[p])<<8 | int(d.data[p+1])
}

// decodeLength reads the 16-bit segment length (which includes its own two
// bytes) and leaves d.length holding the size of the remaining payload.
func (d *decoder) decodeLength() error {
	if d.remaining() < 2 {
		return malformed("missing segment length")
	}

	d.length = d.decode16(0)
	if d.length < 2 || d.length > d.remaining() {
		return malformed("invalid segment length")
	}

	return d.skip(2)
}

// skipSegment reads the length of the current marker's payload and skips it.
func (d *decoder) skipSegment() error {
	if err := d.decodeLength(); err != nil {
		return err
	}

	return d.skip(d.length)
}

// readMarker reads the next two-byte marker. A run of 0xFF fill bytes before
// the marker is skipped; a 0xFF00 pair is a stuffed literal and never valid
// in marker position.
func (d *decoder) readMarker() (uint16, error) {
	if d.remaining() < 2 {
		return 0, malformed("truncated marker")
	}

	if d.data[d.pos] != 0xFF {
		return 0, malformed("expected marker byte")
	}
	d.pos++

	for {
		if d.remaining() < 1 {
			return 0, malformed("truncated marker")
		}

		v := d.data[d.pos]
		d.pos++

		if v == 0xFF { // Fill byte.
			continue
		}

		if v == 0x00 {
			return 0, malformed("stuffed byte in marker position")
		}

		return 0xFF00 | uint16(v), nil
	}
}

// parseHeader walks the segments from SOI to SOS and dispatches per marker.
// With configOnly set it stops as soon as SOF0 has been read.
func (d *decoder) parseHeader(configOnly bool) error {
	if len(d.data) < 2 || d.data[0] != 0xFF || d.data[1] != 0xD8 {
		return malformed("SOI not found")
	}
	d.pos = 2

	for {
		marker, err := d.readMarker()
		if err != nil {
			return err
		}

		switch {
		case marker == markerSOF0:
			if err := d.readSOF(); err != nil {
				return err
			}

			d.state = stateFrameDecoded
			if configOnly {
				return nil
			}
		case marker == markerDHT:
			if err := d.readDHT(); err != nil {
				return err
			}
		case marker == markerDQT:
			if err := d.readDQT(); err != nil {
				return err
			}
		case marker == markerDRI:
			if err := d.readDRI(); err != nil {
				return err
			}
		case marker == markerSOS:
			if err := d.readSOSHeader(); err != nil {
				return err
			}

			d.state = stateHeaderDecoded

			return nil
		case marker >= markerAPP0 && marker <= markerAPP15:
			if err := d.readAppSegment(marker); err != nil {
				return err
			}
		case marker == markerSOI || marker == markerEOI:
			return malformed("unexpected marker in header")
		case marker >= markerRST0 && marker <= markerRST7:
			return malformed("unexpected restart marker in header")
		case marker >= 0xFFC0 && marker <= 0xFFCF:
			// Every other frame type: progressive, lossless, arithmetic,
			// differential.
			return unsupported("unsupported frame type")
		default:
			// COM, DHP, EXP and the remaining length-prefixed markers.
			if err := d.skipSegment(); err != nil {
				return err
			}
		}
	}
}

// readSOF reads the baseline Start-Of-Frame segment: precision, dimensions
// and the component descriptors, and derives the macroblock matrix geometry.
func (d *decoder) readSOF() error {
	if d.state >= stateFrameDecoded {
		return malformed("SOF repeated")
	}

	if err := d.decodeLength(); err != nil {
		return err
	}

	if d.length < 6 {
		return malformed("SOF segment too short")
	}

	if d.data[d.pos] != 8 {
		return unsupported("frame precision must be 8")
	}

	d.height = d.decode16(1)
	d.width = d.decode16(3)
	if d.width == 0 || d.height == 0 {
		return malformed("frame width or height is zero")
	}

	if d.width > maxDimension || d.height > maxDimension {
		return tooLarge("frame dimensions exceed the configured maximum")
	}

	d.ncomp = int(d.data[d.pos+5])
	if err := d.skip(6); err != nil {
		return err
	}

	if d.ncomp != 1 && d.ncomp != 3 {
		return unsupported("component count must be 1 or 3")
	}

	if d.length < d.ncomp*3 {
		return malformed("SOF segment too short")
	}

	d.mb.hcount = (d.width + 7) / 8
	d.mb.vcount = (d.height + 7) / 8
	d.mb.hpadded = d.mb.hcount
	d.mb.vpadded = d.mb.vcount
	d.mb.total = d.mb.hcount * d.mb.vcount

	for i := 0; i < d.ncomp; i++ {
		c := &d.comp[i]
		c.id = d.data[d.pos]
		c.hsample = int(d.data[d.pos+1] >> 4)
		c.vsample = int(d.data[d.pos+1] & 0x0F)
		c.qtable = d.data[d.pos+2]
		if err := d.skip(3); err != nil {
			return err
		}

		if c.qtable > 1 {
			return tableErr("invalid quantization table id")
		}

		if i == 0 {
			// A single-component scan is never interleaved; its sampling
			// factors are forced to 1 regardless of what the file states.
			if d.ncomp == 1 {
				c.hsample, c.vsample = 1, 1
			}

			// Downsampling is applied only to chroma, so the luma component
			// carries the maximum sampling factors.
			if (c.hsample != 1 && c.hsample != 2) || (c.vsample != 1 && c.vsample != 2) {
				return unsupported("luma sampling factors must be 1 or 2")
			}

			if c.hsample == 2 {
				d.mb.hpadded += d.mb.hcount % 2
			}

			if c.vsample == 2 {
				d.mb.vpadded += d.mb.vcount % 2
			}

			d.hsample = c.hsample
			d.vsample = c.vsample
		} else if c.hsample != 1 || c.vsample != 1 {
			return unsupported("chroma sampling factors must be 1")
		}
	}

	d.mb.paddedTotal = d.mb.hpadded * d.mb.vpadded

	return d.skip(d.length)
}

// readDQT loads one or more 64-entry quantization tables, de-zigzagging the
// values into natural order as they are read.
func (d *decoder) readDQT() error {
	if err := d.decodeLength(); err != nil {
		return err
	}

	for d.length > 0 {
		info := d.data[d.pos]
		wide := info >> 4
		if wide > 1 {
			return tableErr("invalid quantization element width")
		}

		id := info & 0x0F
		if id > 1 {
			return tableErr("invalid quantization table id")
		}

		n := 64
		if wide == 1 {
			n = 128
		}

		if d.length < 1+n {
			return tableErr("quantization table truncated")
		}

		if err := d.skip(1); err != nil {
			return err
		}

		t := &d.qtab[id]
		for k := 0; k < 64; k++ {
			if wide == 0 {
				t[zigzag[k]] = uint16(d.data[d.pos+k])
			} else {
				t[zigzag[k]] = uint16(d.decode16(2 * k))
			}
		}

		if err := d.skip(n); err != nil {
			return err
		}
	}

	return nil
}

// readDHT loads one or more Huffman tables and derives their canonical codes.
// At most two DC and two AC tables exist; the destination id selects the slot.
func (d *decoder) readDHT() error {
	if err := d.decodeLength(); err != nil {
		return err
	}

	for d.length > 0 {
		if d.length < 17 {
			return tableErr("huffman table truncated")
		}

		info := d.data[d.pos]
		class := info >> 4
		if class > 1 {
			return tableErr("invalid huffman table class")
		}

		id := info & 0x0F
		if id > 1 {
			return tableErr("invalid huffman table destination id")
		}

		t := &huffTable{}
		total := 0
		for k := 0; k < 16; k++ {
			t.counts[k] = d.data[d.pos+1+k]
			total += int(t.counts[k])
		}

		if err := d.skip(17); err != nil {
			return err
		}

		if total > 256 || total > d.length {
			return tableErr("huffman table size mismatch")
		}

		t.symbols = make([]uint8, total)
		copy(t.symbols, d.data[d.pos:d.pos+total])
		if err := d.skip(total); err != nil {
			return err
		}

		t.generateCodes()

		if class == 0 {
			d.dcTables[id] = t
		} else {
			d.acTables[id] = t
		}
	}

	return nil
}

// readDRI reads the restart interval in MCUs. Zero disables restarts.
func (d *decoder) readDRI() error {
	if err := d.decodeLength(); err != nil {
		return err
	}

	if d.length != 2 {
		return malformed("invalid restart interval segment")
	}

	d.restartInterval = d.decode16(0)

	return d.skip(2)
}

// readSOSHeader reads the Start-Of-Scan header: the scanned components must
// match the frame declaration position by position, the referenced Huffman
// tables must exist, and the spectral parameters must be the baseline ones.
func (d *decoder) readSOSHeader() error {
	if d.state < stateFrameDecoded {
		return malformed("SOS before SOF")
	}

	if err := d.decodeLength(); err != nil {
		return err
	}

	if d.length < 4+2*d.ncomp {
		return malformed("SOS segment too short")
	}

	if int(d.data[d.pos]) != d.ncomp {
		return malformed("SOS component count differs from frame")
	}

	if err := d.skip(1); err != nil {
		return err
	}

	for i := 0; i < d.ncomp; i++ {
		c := &d.comp[i]
		if d.data[d.pos] != c.id {
			return malformed("SOS component id differs from frame")
		}

		c.dcTable = d.data[d.pos+1] >> 4
		c.acTable = d.data[d.pos+1] & 0x0F
		if err := d.skip(2); err != nil {
			return err
		}

		if c.dcTable > 1 || c.acTable > 1 {
			return tableErr("invalid huffman table selector")
		}

		if d.dcTables[c.dcTable] == nil {
			return tableErr("referenced DC table not defined")
		}

		if d.acTables[c.acTable] == nil {
			return tableErr("referenced AC table not defined")
		}
	}

	// Fixed for baseline sequential DCT.
	if d.data[d.pos] != 0 || d.data[d.pos+1] != 63 || d.data[d.pos+2] != 0 {
		return unsupported("non-baseline spectral selection or successive approximation")
	}

	return d.skip(d.length)
}

// readAppSegment reads the NUL-terminated identifier every APPn payload
// starts with, hands APP2 ICC_PROFILE chunks to the ICC assembler, and skips
// everything else.
func (d *decoder) readAppSegment(marker uint16) error {
	if err := d.decodeLength(); err != nil {
		return err
	}

	end := d.pos + d.length
	nul := -1
	for p := d.pos; p < end; p++ {
		if d.data[p] == 0 {
			nul = p

			break
		}
	}

	if nul < 0 {
		return malformed("APP segment identifier not terminated")
	}

	name := string(d.data[d.pos:nul])
	if err := d.skip(nul + 1 - d.pos); err != nil {
		return err
	}

	if marker == markerAPP2 && name == "ICC_PROFILE" {
		return d.readICCChunk()
	}

	return d.skip(d.length)
}

// decode runs the full pipeline. Any failure marks the context Error and is
// final; no partial raster survives.
func (d *decoder) decode() error {
	if err := d.run(); err != nil {
		d.state = stateError

		return err
	}

	return nil
}

func (d *decoder) run() error {
	if err := d.parseHeader(false); err != nil {
		return err
	}

	if err := d.extractEntropyStream(); err != nil {
		return err
	}

	blocks, err := d.decodeScan()
	if err != nil {
		return err
	}

	d.dequantize(blocks)
	d.inverseDCT(blocks)

	if d.ncomp == 1 {
		d.grayToRGB(blocks)
	} else {
		d.ycbcrToRGB(blocks)
	}

	d.raster = d.composeRaster(blocks)
	d.state = stateBitmapDecoded

	return nil
}
