package convpipe

import (
	"os"
	"unicode/utf8"

	"golang.org/x/text/encoding/simplifiedchinese"
)

// undecodableMarker is returned when neither UTF-8 nor the legacy fallback
// can decode a text file. Fixed string, part of the wire contract.
const undecodableMarker = "Unable to decode text content."

// readTextContent reads a file as UTF-8, retrying once with GBK for legacy
// content. Never errors: undecodable input yields the fixed marker.
func readTextContent(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return undecodableMarker
	}
	if utf8.Valid(data) {
		return string(data)
	}

	decoded, err := simplifiedchinese.GBK.NewDecoder().Bytes(data)
	if err != nil || !utf8.Valid(decoded) {
		return undecodableMarker
	}
	return string(decoded)
}
