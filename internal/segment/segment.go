// Package segment maps characters and numbers to TM1637 seven-segment bit
// patterns.
//
// Bit layout of one digit (LSB first): top, top-right, bottom-right, bottom,
// bottom-left, top-left, middle. Bit 7 is the decimal point, which on 4-digit
// clock modules wired after digit 1 drives the colon.
package segment

import (
	"fmt"
	"strconv"
	"unicode"
)

// Digits is the number of digits on the display.
const Digits = 4

// DecimalPoint is OR'd into a digit to light its decimal point.
const DecimalPoint byte = 0x80

// Blank is the all-off pattern.
const Blank byte = 0x00

var glyphs = map[rune]byte{
	'0': 0x3F,
	'1': 0x06,
	'2': 0x5B,
	'3': 0x4F,
	'4': 0x66,
	'5': 0x6D,
	'6': 0x7D,
	'7': 0x07,
	'8': 0x7F,
	'9': 0x6F,
	'A': 0x77,
	'b': 0x7C,
	'c': 0x58,
	'C': 0x39,
	'd': 0x5E,
	'E': 0x79,
	'F': 0x71,
	'G': 0x3D,
	'H': 0x76,
	'h': 0x74,
	'I': 0x30,
	'J': 0x1E,
	'k': 0x76,
	'L': 0x38,
	'm': 0x55,
	'n': 0x54,
	'o': 0x5C,
	'O': 0x3F,
	'P': 0x73,
	'q': 0x67,
	'r': 0x50,
	'S': 0x6D,
	't': 0x78,
	'U': 0x3E,
	'v': 0x1C,
	'w': 0x2A,
	'x': 0x76,
	'y': 0x6E,
	'z': 0x5B,
	'-': 0x40,
	'_': 0x08,
	'*': 0x63, // degree sign
	' ': 0x00,
}

// Encode returns the pattern for r, trying the exact rune, then its lowercase
// and uppercase forms. ok is false when r has no glyph.
func Encode(r rune) (pattern byte, ok bool) {
	if p, found := glyphs[r]; found {
		return p, true
	}
	if p, found := glyphs[unicode.ToLower(r)]; found {
		return p, true
	}
	if p, found := glyphs[unicode.ToUpper(r)]; found {
		return p, true
	}
	return Blank, false
}

// EncodeText encodes the first four runes of s, left-aligned. Unmapped runes
// and missing positions are blank.
func EncodeText(s string) [Digits]byte {
	var out [Digits]byte
	i := 0
	for _, r := range s {
		if i >= Digits {
			break
		}
		out[i], _ = Encode(r)
		i++
	}
	return out
}

// EncodeTime encodes hour and minute as HHMM. Both values are taken modulo 100.
func EncodeTime(hour, minute int) [Digits]byte {
	hour, minute = abs(hour)%100, abs(minute)%100
	return [Digits]byte{
		glyphs[rune('0'+hour/10)],
		glyphs[rune('0'+hour%10)],
		glyphs[rune('0'+minute/10)],
		glyphs[rune('0'+minute%10)],
	}
}

// EncodeInt right-aligns n, keeping its first four characters.
func EncodeInt(n int) [Digits]byte {
	return encodeNumber(strconv.Itoa(n))
}

// EncodeFloat right-aligns f with one decimal place. The decimal point is
// carried on the digit before it.
func EncodeFloat(f float64) [Digits]byte {
	return encodeNumber(fmt.Sprintf("%.1f", f))
}

func encodeNumber(s string) [Digits]byte {
	var digits [Digits]byte
	pos := 0
	for _, r := range s {
		if r == '.' {
			if pos > 0 {
				digits[pos-1] |= DecimalPoint
			}
			continue
		}
		if pos >= Digits {
			break
		}
		p, ok := glyphs[r]
		if !ok {
			continue
		}
		digits[pos] = p
		pos++
	}

	var out [Digits]byte
	copy(out[Digits-pos:], digits[:pos])
	return out
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
