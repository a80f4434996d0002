package jpegdec

// iccAssembler reassembles an ICC profile split across APP2 ICC_PROFILE
// segments. Each chunk carries a 1-based sequence number and the total chunk
// count; every segment must agree on the count.
type iccAssembler struct {
	total  int
	seen   int
	chunks [][]byte
	filled []bool
}

// readICCChunk consumes one ICC_PROFILE payload, the segment identifier
// already stripped. Once every index is present the chunks are concatenated
// in sequence order into the final profile.
func (d *decoder) readICCChunk() error {
	if d.length <= 2 {
		return iccErr("ICC chunk too small")
	}

	seq := int(d.data[d.pos])
	total := int(d.data[d.pos+1])
	if err := d.skip(2); err != nil {
		return err
	}

	if d.icc == nil {
		d.icc = &iccAssembler{
			total:  total,
			chunks: make([][]byte, total),
			filled: make([]bool, total),
		}
	}

	st := d.icc
	if st.seen >= st.total {
		return iccErr("too many ICC chunks")
	}

	if total != st.total {
		return iccErr("inconsistent ICC chunk count")
	}

	if seq == 0 {
		return iccErr("ICC chunk sequence number is not 1-based")
	}

	index := seq - 1
	if index >= st.total {
		return iccErr("ICC chunk sequence number exceeds chunk count")
	}

	if st.filled[index] {
		return iccErr("duplicate ICC chunk sequence number")
	}

	chunk := make([]byte, d.length)
	copy(chunk, d.data[d.pos:d.pos+d.length])
	if err := d.skip(len(chunk)); err != nil {
		return err
	}

	st.chunks[index] = chunk
	st.filled[index] = true
	st.seen++

	if st.seen != st.total {
		return nil
	}

	if st.total == 1 {
		d.iccData = st.chunks[0]

		return nil
	}

	size := 0
	for _, c := range st.chunks {
		size += len(c)
	}

	data := make([]byte, 0, size)
	for _, c := range st.chunks {
		data = append(data, c...)
	}
	d.iccData = data

	return nil
}
