package engine

import "unicode/utf16"

// utf16Units decodes s into its UTF-16 code units, the unit the Engine.IO
// v3 polling length prefix counts in.
func utf16Units(s string) []uint16 {
	return utf16.Encode([]rune(s))
}

// utf16ToString re-encodes UTF-16 code units back to a string.
func utf16ToString(units []uint16) string {
	return string(utf16.Decode(units))
}
