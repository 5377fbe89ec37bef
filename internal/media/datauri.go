package media

import (
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/base64x"
)

const base64Marker = ";base64,"

// ErrNotDataURI is returned by DecodeDataURI for strings without a base64 data URI prefix.
var ErrNotDataURI = errors.New("not a base64 data uri")

// EncodeDataURI renders bytes as data:<mime>;base64,<payload>.
func EncodeDataURI(mimeType string, data []byte) string {
	var b strings.Builder
	encoded := base64x.StdEncoding.EncodeToString(data)
	b.Grow(len("data:") + len(mimeType) + len(base64Marker) + len(encoded))
	b.WriteString("data:")
	b.WriteString(mimeType)
	b.WriteString(base64Marker)
	b.WriteString(encoded)
	return b.String()
}

// DecodeDataURI returns the declared mime type and the decoded bytes.
func DecodeDataURI(uri string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return "", nil, ErrNotDataURI
	}
	mimeType, encoded, ok := strings.Cut(rest, base64Marker)
	if !ok {
		return "", nil, ErrNotDataURI
	}
	data, err := base64x.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", nil, fmt.Errorf("decode data uri payload: %w", err)
	}
	return mimeType, data, nil
}

// NewPayload encodes data into a payload of the given kind and sub-type.
func NewPayload(kind Kind, subType, mimeType string, data []byte) Payload {
	return Payload{
		DataURI:  EncodeDataURI(mimeType, data),
		MimeType: mimeType,
		Size:     len(data),
		Kind:     kind,
		SubType:  subType,
	}
}
