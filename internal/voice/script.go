package voice

import "unicode"

// ideographs covers CJK Unified Ideographs, Extension A and the CJK
// Compatibility Ideographs. Hangul and Kana are intentionally absent.
var ideographs = &unicode.RangeTable{
	R16: []unicode.Range16{
		{Lo: 0x3400, Hi: 0x4DBF, Stride: 1},
		{Lo: 0x4E00, Hi: 0x9FFF, Stride: 1},
		{Lo: 0xF900, Hi: 0xFAFF, Stride: 1},
	},
}

// IsIdeographic reports whether text contains at least one CJK ideograph.
func IsIdeographic(text string) bool {
	for _, r := range text {
		if unicode.Is(ideographs, r) {
			return true
		}
	}
	return false
}
