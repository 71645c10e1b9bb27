package media

import (
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// RawFormat marks an asset as a headerless raw buffer.
const RawFormat = "raw"

// RawExtension is the storage suffix used for raw buffers.
const RawExtension = ".raw"

// DetectFormat sniffs the leading bytes of an upload. Anything that is not a
// recognised video container is treated as a raw buffer.
func DetectFormat(data []byte) (format, ext string) {
	mt := mimetype.Detect(data)
	if strings.HasPrefix(mt.String(), "video/") {
		return mt.String(), mt.Extension()
	}
	return RawFormat, RawExtension
}

// IsRaw reports whether format names the raw path.
func IsRaw(format string) bool {
	return format == RawFormat
}
