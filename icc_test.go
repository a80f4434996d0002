package jpegdec

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// iccSegment builds one APP2 ICC_PROFILE payload.
func iccSegment(seq, total byte, chunk []byte) []byte {
	payload := append([]byte("ICC_PROFILE\x00"), seq, total)

	return append(payload, chunk...)
}

// grayFileWithICC inserts the given APP2 segments into a decodable 8x8
// grayscale file.
func grayFileWithICC(segments ...[]byte) []byte {
	b := &fileBuilder{}
	b.soi()
	for _, s := range segments {
		b.segment(0xE2, s)
	}

	return b.dqtOnes(0).
		sof0(8, 8, []sofComp{{1, 1, 1, 0}}).
		dhtTrivial(0, 0).
		dhtTrivial(1, 0).
		sos([]sosComp{{1, 0, 0}}).
		raw(zeroBlocks(1)).
		eoi()
}

func TestICCDataSingleChunk(t *testing.T) {
	profile := []byte{0xDE, 0xAD, 0xBE, 0xEF, 0x01}
	data := grayFileWithICC(iccSegment(1, 1, profile))

	got, err := ICCData(data)
	require.NoError(t, err)
	require.Equal(t, profile, got)
}

func TestICCDataMultiChunk(t *testing.T) {
	data := grayFileWithICC(
		iccSegment(1, 2, []byte{1, 2, 3}),
		iccSegment(2, 2, []byte{4, 5}),
	)

	got, err := ICCData(data)
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3, 4, 5}, got)
}

// Chunks arriving out of sequence order still assemble in sequence order.
func TestICCDataOutOfOrderChunks(t *testing.T) {
	data := grayFileWithICC(
		iccSegment(2, 2, []byte{4, 5}),
		iccSegment(1, 2, []byte{1, 2, 3}),
	)

	got, err := ICCData(data)
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3, 4, 5}, got)
}

func TestICCDataAbsent(t *testing.T) {
	got, err := ICCData(grayFile(8, 8, zeroBlocks(1)))
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestICCDataIncompleteSet(t *testing.T) {
	data := grayFileWithICC(iccSegment(1, 2, []byte{1, 2, 3}))

	got, err := ICCData(data)
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestICCDataErrors(t *testing.T) {
	cases := []struct {
		name     string
		segments [][]byte
	}{
		{
			"sequence number zero",
			[][]byte{iccSegment(0, 1, []byte{1})},
		},
		{
			"sequence exceeds count",
			[][]byte{iccSegment(3, 2, []byte{1})},
		},
		{
			"inconsistent count",
			[][]byte{
				iccSegment(1, 2, []byte{1}),
				iccSegment(2, 3, []byte{2}),
			},
		},
		{
			"duplicate sequence number",
			[][]byte{
				iccSegment(1, 2, []byte{1}),
				iccSegment(1, 2, []byte{2}),
			},
		},
		{
			"too many chunks",
			[][]byte{
				iccSegment(1, 1, []byte{1}),
				iccSegment(1, 1, []byte{2}),
			},
		},
		{
			"chunk header only",
			[][]byte{[]byte("ICC_PROFILE\x00")},
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := ICCData(grayFileWithICC(c.segments...))
			requireKind(t, err, IccError)
		})
	}
}

// A decode of the pixel data is unaffected by embedded ICC chunks.
func TestDecodeWithICCProfile(t *testing.T) {
	data := grayFileWithICC(iccSegment(1, 1, []byte{9, 9, 9}))

	raster, err := Decode(data)
	require.NoError(t, err)

	r, g, b := pixelAt(raster, 4, 4)
	require.Equal(t, [3]int{128, 128, 128}, [3]int{r, g, b})
}
