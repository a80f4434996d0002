package jpegdec

// macroblock is one 8x8 block carrying the three component coefficient
// arrays. The slots hold Y/Cb/Cr coefficients through the entropy and IDCT
// stages and are reused as R/G/B after color conversion.
type macroblock struct {
	y  [64]int32
	cb [64]int32
	cr [64]int32
}

// component returns the coefficient array for the component at scan index i.
func (m *macroblock) component(i int) *[64]int32 {
	switch i {
	case 0:
		return &m.y
	case 1:
		return &m.cb
	default:
		return &m.cr
	}
}

// extend applies the JPEG magnitude sign-extension rule: a raw value whose
// leading bit is zero encodes a negative coefficient.
func extend(raw, length int) int32 {
	if length != 0 && raw < 1<<(length-1) {
		raw -= 1<<length - 1
	}

	return int32(raw)
}

// decodeScan iterates the macro-MCUs in raster order and recovers the DCT
// coefficients of every block. Restart boundaries reset the DC predictors and
// realign the bit reader.
func (d *decoder) decodeScan() ([]macroblock, error) {
	blocks := make([]macroblock, d.mb.paddedTotal)

	d.prevDC = [3]int32{}
	mcu := 0

	for vcursor := 0; vcursor < d.mb.vcount; vcursor += d.vsample {
		for hcursor := 0; hcursor < d.mb.hcount; hcursor += d.hsample {
			if d.restartInterval > 0 && mcu > 0 && mcu%d.restartInterval == 0 {
				d.prevDC = [3]int32{}
				d.hstream.alignToByte()
				if err := d.skipRestartMarker(); err != nil {
					return nil, err
				}
			}

			if err := d.decodeMCU(blocks, hcursor, vcursor); err != nil {
				return nil, err
			}

			mcu++
		}
	}

	return blocks, nil
}

// skipRestartMarker steps over the two-byte RSTn sentinel the extractor left
// in the stream. Anything else at a restart boundary is a corrupted stream.
func (d *decoder) skipRestartMarker() error {
	r := &d.hstream
	if r.byteOff+2 > len(r.stream) {
		return streamErr("entropy stream exhausted at restart boundary")
	}

	if r.stream[r.byteOff] != 0xFF || r.stream[r.byteOff+1]&0xF8 != 0xD0 {
		return streamErr("restart marker missing at restart boundary")
	}

	return r.skipBytes(2)
}

// decodeMCU decodes one macro-MCU anchored at (hcursor, vcursor) in the block
// grid. For each component in declaration order it fills vsample x hsample
// blocks: the differential DC coefficient first, then the run-length coded
// AC coefficients in zigzag order.
func (d *decoder) decodeMCU(blocks []macroblock, hcursor, vcursor int) error {
	r := &d.hstream

	for i := 0; i < d.ncomp; i++ {
		c := &d.comp[i]
		dcTable := d.dcTables[c.dcTable]
		acTable := d.acTables[c.acTable]

		for vf := 0; vf < c.vsample; vf++ {
			for hf := 0; hf < c.hsample; hf++ {
				coefs := blocks[(vcursor+vf)*d.mb.hpadded+hcursor+hf].component(i)

				// The DC symbol is the bit length of the difference to the
				// previous DC value of this component.
				s, err := dcTable.nextSymbol(r)
				if err != nil {
					return err
				}

				if s > 11 {
					return huffmanErr("DC coefficient length out of range")
				}

				raw, err := r.readBits(int(s))
				if err != nil {
					return err
				}

				d.prevDC[i] += extend(raw, int(s))
				coefs[0] = d.prevDC[i]

				for k := 1; k < 64; {
					sym, err := acTable.nextSymbol(r)
					if err != nil {
						return err
					}

					if sym == 0x00 { // EOB, the rest of the block stays zero.
						break
					}

					if sym == 0xF0 { // ZRL, sixteen zero coefficients.
						k += 16

						continue
					}

					run := int(sym >> 4)
					length := int(sym & 0x0F)
					if length > 10 {
						return huffmanErr("AC coefficient length out of range")
					}

					k += run
					if k >= 64 {
						return streamErr("run-length overruns block")
					}

					if length != 0 {
						raw, err := r.readBits(length)
						if err != nil {
							return err
						}

						coefs[zigzag[k]] = extend(raw, length)
						k++
					}
				}
			}
		}
	}

	return nil
}

// dequantize multiplies every populated coefficient by the matching entry of
// its component's quantization table. Both sides are in natural order; the
// table was de-zigzagged at load time.
func (d *decoder) dequantize(blocks []macroblock) {
	for vcursor := 0; vcursor < d.mb.vcount; vcursor += d.vsample {
		for hcursor := 0; hcursor < d.mb.hcount; hcursor += d.hsample {
			for i := 0; i < d.ncomp; i++ {
				c := &d.comp[i]
				table := &d.qtab[c.qtable]

				for vf := 0; vf < c.vsample; vf++ {
					for hf := 0; hf < c.hsample; hf++ {
						coefs := blocks[(vcursor+vf)*d.mb.hpadded+hcursor+hf].component(i)
						for k := 0; k < 64; k++ {
							coefs[k] *= int32(table[k])
						}
					}
				}
			}
		}
	}
}
