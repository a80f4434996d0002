package jpegdec

// clamp255 clamps a converted channel to the 8-bit range. The caller's
// float-to-int32 conversion has already rounded toward zero.
func clamp255(x int32) int32 {
	if x < 0 {
		return 0
	}

	if x > 255 {
		return 255
	}

	return x
}

// ycbcrToRGB upsamples chroma to luma resolution and converts every pixel to
// RGB in place, reusing the coefficient arrays as channel storage.
//
// The chroma block of a macro-MCU is the one at its anchor position
// (hcursor, vcursor). That block doubles as the anchor luma block, so the
// walk over the luma blocks runs backwards: the anchor converts last, after
// every block that still reads its chroma samples.
func (d *decoder) ycbcrToRGB(blocks []macroblock) {
	hs, vs := d.hsample, d.vsample

	for vcursor := 0; vcursor < d.mb.vcount; vcursor += vs {
		for hcursor := 0; hcursor < d.mb.hcount; hcursor += hs {
			chroma := &blocks[vcursor*d.mb.hpadded+hcursor]

			for vf := vs - 1; vf >= 0; vf-- {
				for hf := hs - 1; hf >= 0; hf-- {
					block := &blocks[(vcursor+vf)*d.mb.hpadded+hcursor+hf]

					for i := 7; i >= 0; i-- {
						for j := 7; j >= 0; j-- {
							pixel := i*8 + j
							// Nearest-neighbor sample inside the shared
							// chroma block.
							chromaPixel := (i/vs+4*vf)*8 + (j/hs + 4*hf)

							y := float32(block.y[pixel])
							cb := float32(chroma.cb[chromaPixel])
							cr := float32(chroma.cr[chromaPixel])

							// ITU-R BT.601 with the 128 level shift.
							r := int32(y + 1.402*cr + 128)
							g := int32(y - 0.344*cb - 0.714*cr + 128)
							b := int32(y + 1.772*cb + 128)

							block.y[pixel] = clamp255(r)
							block.cb[pixel] = clamp255(g)
							block.cr[pixel] = clamp255(b)
						}
					}
				}
			}
		}
	}
}

// grayToRGB expands a single-component image: no chroma to upsample, every
// channel is the level-shifted luminance.
func (d *decoder) grayToRGB(blocks []macroblock) {
	for vcursor := 0; vcursor < d.mb.vcount; vcursor++ {
		for hcursor := 0; hcursor < d.mb.hcount; hcursor++ {
			block := &blocks[vcursor*d.mb.hpadded+hcursor]

			for pixel := 0; pixel < 64; pixel++ {
				v := clamp255(block.y[pixel] + 128)
				block.y[pixel] = v
				block.cb[pixel] = v
				block.cr[pixel] = v
			}
		}
	}
}
