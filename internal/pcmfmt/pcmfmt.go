// Package pcmfmt describes a decoder's native PCM layout and normalizes it
// toward the 16-bit signed little-endian stereo format every output sink is
// guaranteed to receive for common source shapes.
package pcmfmt

import "encoding/binary"

// Format encodes rate, channel count, bit depth, signedness and endianness
// of a PCM stream, as produced by a decoder plugin's Open.
type Format struct {
	Rate      int // Hz, 1..192000
	Channels  int // 1..8
	BitDepth  int // 8, 16, 24, 32
	Signed    bool
	BigEndian bool
}

// BytesPerFrame returns the number of bytes spanning one frame (one sample
// across all channels) in this format.
func (f Format) BytesPerFrame() int {
	return f.Channels * (f.BitDepth / 8)
}

// Normalizable reports whether this format is within the range the
// normalizer can reshape into 16-bit signed LE stereo (<=2 channels,
// <=16-bit samples). Formats outside this range pass through unchanged and
// the output sink must accept them verbatim or fail with SAMPLE_FORMAT.
func (f Format) Normalizable() bool {
	return f.Channels <= 2 && f.BitDepth <= 16
}

// Normalizer holds the precomputed scale factor for a given source Format,
// computed once at decoder-open time and applied on every subsequent read.
type Normalizer struct {
	src   Format
	scale int
}

// NewNormalizer computes the scale factor for src. The scale is 1 when src
// is already 16-bit signed LE stereo (or falls outside the normalizable
// range, in which case both Convert and ConvertInPlace become no-ops); 2 for
// mono 16-bit (duplicated to stereo) or stereo 8-bit (widened to 16-bit); 4
// for mono 8-bit (widened and duplicated).
func NewNormalizer(src Format) Normalizer {
	scale := 1
	if src.Normalizable() {
		if src.BitDepth == 8 {
			scale *= 2
		}
		if src.Channels == 1 {
			scale *= 2
		}
	}
	return Normalizer{src: src, scale: scale}
}

// Scale returns the multiplier the caller must apply to byte counts: the
// number of output bytes produced per input byte read from the decoder.
func (n Normalizer) Scale() int { return n.scale }

// Out is the format every normalized read ultimately presents downstream.
func (n Normalizer) Out() Format {
	if !n.src.Normalizable() {
		return n.src
	}
	return Format{Rate: n.src.Rate, Channels: 2, BitDepth: 16, Signed: true, BigEndian: false}
}

// ConvertInPlace rewrites buf (holding frames frames at the source's native
// width) to little-endian signed 16-bit when the source is 16-bit
// big-endian or 16-bit unsigned. It is a no-op for every other source
// shape, including anything outside the normalizable range.
func (n Normalizer) ConvertInPlace(buf []byte, frames int) {
	if !n.src.Normalizable() || n.src.BitDepth != 16 {
		return
	}
	need := frames * n.src.Channels * 2
	if len(buf) < need {
		need = len(buf) - (len(buf) % 2)
	}
	for i := 0; i+1 < need; i += 2 {
		var v uint16
		if n.src.BigEndian {
			v = binary.BigEndian.Uint16(buf[i : i+2])
		} else {
			v = binary.LittleEndian.Uint16(buf[i : i+2])
		}
		if !n.src.Signed {
			v ^= 0x8000
		}
		binary.LittleEndian.PutUint16(buf[i:i+2], v)
	}
}

// Convert expands narrower sources (8-bit and/or mono) into 16-bit signed LE
// stereo, writing into out and reading frames frames from in. It returns the
// number of bytes written to out, which equals len(in)*Scale(). For sources
// outside the normalizable range this copies in to out unchanged (identity)
// and returns len(in); the caller is expected to have sized out accordingly.
func (n Normalizer) Convert(out, in []byte, frames int) int {
	if !n.src.Normalizable() {
		copy(out, in)
		return len(in)
	}

	bytesPerSample := n.src.BitDepth / 8
	written := 0
	for f := 0; f < frames; f++ {
		for ch := 0; ch < 2; ch++ {
			srcCh := ch
			if n.src.Channels == 1 {
				srcCh = 0
			}
			off := f*n.src.Channels*bytesPerSample + srcCh*bytesPerSample
			if off+bytesPerSample > len(in) {
				return written
			}

			var sample16 int16
			if n.src.BitDepth == 8 {
				raw := in[off]
				var centered int16
				if n.src.Signed {
					centered = int16(int8(raw))
				} else {
					centered = int16(raw) - 128
				}
				sample16 = centered * 256
			} else {
				var v uint16
				if n.src.BigEndian {
					v = binary.BigEndian.Uint16(in[off : off+2])
				} else {
					v = binary.LittleEndian.Uint16(in[off : off+2])
				}
				if !n.src.Signed {
					v ^= 0x8000
				}
				sample16 = int16(v)
			}

			binary.LittleEndian.PutUint16(out[written:written+2], uint16(sample16))
			written += 2
		}
	}
	return written
}
