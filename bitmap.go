package jpegdec

// composeRaster copies the converted macroblocks into a width*height BGRx
// raster. After color conversion the y/cb/cr arrays hold R/G/B.
func (d *decoder) composeRaster(blocks []macroblock) *Raster {
	pix := make([]byte, d.width*d.height*4)

	for y := 0; y < d.height; y++ {
		blockRow := y / 8
		pixelRow := y % 8

		for x := 0; x < d.width; x++ {
			block := &blocks[blockRow*d.mb.hpadded+x/8]
			pixel := pixelRow*8 + x%8

			offset := (y*d.width + x) * 4
			pix[offset+0] = byte(block.cr[pixel]) // B
			pix[offset+1] = byte(block.cb[pixel]) // G
			pix[offset+2] = byte(block.y[pixel])  // R
			// The fourth byte stays zero.
		}
	}

	return &Raster{Width: d.width, Height: d.height, Pix: pix}
}
