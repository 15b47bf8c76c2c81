package filetype

import (
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog/log"
)

const MIMEPDF = "application/pdf"

// Info contains detected file type information
type Info struct {
	MIMEType    string
	Extension   string
	Supported   bool
	Description string
}

// Detect sniffs the blob's magic bytes. The name is only used for logging and
// to describe what was rejected; a renamed non-PDF is still rejected.
func Detect(name string, data []byte) Info {
	mtype := mimetype.Detect(data)
	info := Info{MIMEType: mtype.String(), Extension: mtype.Extension()}

	switch {
	case mtype.Is(MIMEPDF):
		info.MIMEType = MIMEPDF
		info.Supported = true
		info.Description = "PDF document"
	case strings.HasPrefix(info.MIMEType, "image/"):
		info.Description = "Image file"
	case strings.HasPrefix(info.MIMEType, "text/"):
		info.Description = "Plain text file"
	default:
		info.Description = "Unsupported file type: " + info.MIMEType
	}

	if !info.Supported {
		ext := strings.ToLower(filepath.Ext(name))
		log.Debug().Str("file", name).Str("mime", info.MIMEType).Str("name_ext", ext).Msg("unsupported file type")
	}
	return info
}

// IsPDF reports whether data is a PDF document.
func IsPDF(data []byte) bool {
	return mimetype.Detect(data).Is(MIMEPDF)
}
