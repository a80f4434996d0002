package jpegdec

import "math"

// Scaled single-precision inverse DCT. The per-coefficient scale factors
// s0..s7 are folded into the load step, reducing each 1-D transform to the
// AAN butterfly network driven by the rotation constants m0..m5.
var (
	idctS0 = float32(math.Cos(0) / math.Sqrt(8))
	idctS1 = float32(math.Cos(1*math.Pi/16) / 2)
	idctS2 = float32(math.Cos(2*math.Pi/16) / 2)
	idctS3 = float32(math.Cos(3*math.Pi/16) / 2)
	idctS4 = float32(math.Cos(4*math.Pi/16) / 2)
	idctS5 = float32(math.Cos(5*math.Pi/16) / 2)
	idctS6 = float32(math.Cos(6*math.Pi/16) / 2)
	idctS7 = float32(math.Cos(7*math.Pi/16) / 2)

	idctM0 = float32(2 * math.Cos(1*2*math.Pi/16))
	idctM1 = float32(2 * math.Cos(2*2*math.Pi/16))
	idctM3 = float32(2 * math.Cos(2*2*math.Pi/16))
	idctM5 = float32(2 * math.Cos(3*2*math.Pi/16))
	idctM2 = idctM0 - idctM5
	idctM4 = idctM0 + idctM5
)

// idct1D transforms the eight coefficients at base, base+stride, ... in
// place. Results are truncated back to int32 between passes.
func idct1D(c *[64]int32, base, stride int) {
	g0 := float32(c[base+0*stride]) * idctS0
	g1 := float32(c[base+4*stride]) * idctS4
	g2 := float32(c[base+2*stride]) * idctS2
	g3 := float32(c[base+6*stride]) * idctS6
	g4 := float32(c[base+5*stride]) * idctS5
	g5 := float32(c[base+1*stride]) * idctS1
	g6 := float32(c[base+7*stride]) * idctS7
	g7 := float32(c[base+3*stride]) * idctS3

	f4 := g4 - g7
	f5 := g5 + g6
	f6 := g5 - g6
	f7 := g4 + g7

	e2 := g2 - g3
	e3 := g2 + g3
	e5 := f5 - f7
	e7 := f5 + f7
	e8 := f4 + f6

	d2 := e2 * idctM1
	d4 := f4 * idctM2
	d5 := e5 * idctM3
	d6 := f6 * idctM4
	d8 := e8 * idctM5

	c0 := g0 + g1
	c1 := g0 - g1
	c2 := d2 - e3
	c4 := d4 + d8
	c5 := d5 + e7
	c6 := d6 - d8
	c8 := c5 - c6

	b0 := c0 + e3
	b1 := c1 + c2
	b2 := c1 - c2
	b3 := c0 - e3
	b4 := c4 - c8
	b5 := c8
	b6 := c6 - e7
	b7 := e7

	c[base+0*stride] = int32(b0 + b7)
	c[base+1*stride] = int32(b1 + b6)
	c[base+2*stride] = int32(b2 + b5)
	c[base+3*stride] = int32(b3 + b4)
	c[base+4*stride] = int32(b3 - b4)
	c[base+5*stride] = int32(b2 - b5)
	c[base+6*stride] = int32(b1 - b6)
	c[base+7*stride] = int32(b0 - b7)
}

// idctBlock applies the 1-D transform along both axes of an 8x8 block: every
// row first, then every column.
func idctBlock(c *[64]int32) {
	for l := 0; l < 8; l++ {
		idct1D(c, l*8, 1)
	}

	for k := 0; k < 8; k++ {
		idct1D(c, k, 8)
	}
}

// inverseDCT transforms every populated block of every component back to the
// spatial domain.
func (d *decoder) inverseDCT(blocks []macroblock) {
	for vcursor := 0; vcursor < d.mb.vcount; vcursor += d.vsample {
		for hcursor := 0; hcursor < d.mb.hcount; hcursor += d.hsample {
			for i := 0; i < d.ncomp; i++ {
				c := &d.comp[i]

				for vf := 0; vf < c.vsample; vf++ {
					for hf := 0; hf < c.hsample; hf++ {
						idctBlock(blocks[(vcursor+vf)*d.mb.hpadded+hcursor+hf].component(i))
					}
				}
			}
		}
	}
}
