package segment

// reverse maps a pattern back to a printable label for the console driver.
//
// The mapping is lossy. Several glyphs share a pattern and only one label is
// kept for each:
//
//	0x3F  '0' and 'O'       -> '0'
//	0x76  'H', 'k' and 'x'  -> 'H'
//	0x5B  '2' and 'z'       -> '2'
//	0x6D  '5' and 'S'       -> '5'
//	0x7C  'b'               -> 'B'
//	0x5E  'd'               -> 'D'
var reverse = map[byte]rune{
	0x3F: '0',
	0x06: '1',
	0x5B: '2',
	0x4F: '3',
	0x66: '4',
	0x6D: '5',
	0x7D: '6',
	0x07: '7',
	0x7F: '8',
	0x6F: '9',
	0x77: 'A',
	0x7C: 'B',
	0x39: 'C',
	0x5E: 'D',
	0x79: 'E',
	0x71: 'F',
	0x3D: 'G',
	0x76: 'H',
	0x74: 'h',
	0x30: 'I',
	0x1E: 'J',
	0x38: 'L',
	0x55: 'M',
	0x54: 'N',
	0x5C: 'O',
	0x73: 'P',
	0x67: 'Q',
	0x50: 'R',
	0x78: 'T',
	0x3E: 'U',
	0x1C: 'V',
	0x2A: 'W',
	0x6E: 'Y',
	0x40: '-',
	0x08: '_',
	0x63: '*',
	0x00: ' ',
	0x58: 'c',
}

// Reverse returns the display label for pattern, ignoring the decimal point
// bit. Unknown patterns return '?'.
func Reverse(pattern byte) rune {
	if r, ok := reverse[pattern&^DecimalPoint]; ok {
		return r
	}
	return '?'
}

// ReverseString labels each pattern in segments.
func ReverseString(segments []byte) string {
	out := make([]rune, len(segments))
	for i, p := range segments {
		out[i] = Reverse(p)
	}
	return string(out)
}
