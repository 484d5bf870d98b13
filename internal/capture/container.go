package capture

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
)

// metadataFourCC is the RIFF chunk tag screenmemoryd uses to embed capture
// metadata inside a WebP file. WebP is itself a RIFF container
// ("WEBP" form), so appending an application-private chunk after the
// mandatory "VP8 "/"VP8L"/"VP8X" payload chunk is valid RIFF and is
// ignored by every standard WebP decoder.
const metadataFourCC = "SMMD"

// EmbedMetadata appends meta as a RIFF chunk to a WebP byte stream and
// fixes up the outer RIFF size field, so a single .webp file carries
// both the image and its capture metadata.
func EmbedMetadata(webpBytes []byte, meta Metadata) ([]byte, error) {
	if len(webpBytes) < 12 || string(webpBytes[0:4]) != "RIFF" || string(webpBytes[8:12]) != "WEBP" {
		return nil, fmt.Errorf("capture: not a RIFF/WEBP container")
	}

	payload, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("capture: marshal metadata: %w", err)
	}

	chunk := new(bytes.Buffer)
	chunk.WriteString(metadataFourCC)
	size := uint32(len(payload))
	if err := binary.Write(chunk, binary.LittleEndian, size); err != nil {
		return nil, err
	}
	chunk.Write(payload)
	if size%2 == 1 {
		chunk.WriteByte(0) // RIFF chunks are padded to an even length
	}

	out := append([]byte(nil), webpBytes...)
	out = append(out, chunk.Bytes()...)

	newRiffSize := uint32(len(out) - 8)
	binary.LittleEndian.PutUint32(out[4:8], newRiffSize)
	return out, nil
}

// ExtractMetadata scans a WebP byte stream's RIFF chunks for the
// screenmemoryd metadata chunk and unmarshals it.
func ExtractMetadata(webpBytes []byte) (*Metadata, error) {
	if len(webpBytes) < 12 || string(webpBytes[0:4]) != "RIFF" || string(webpBytes[8:12]) != "WEBP" {
		return nil, fmt.Errorf("capture: not a RIFF/WEBP container")
	}

	pos := 12
	for pos+8 <= len(webpBytes) {
		fourCC := string(webpBytes[pos : pos+4])
		size := binary.LittleEndian.Uint32(webpBytes[pos+4 : pos+8])
		start := pos + 8
		end := start + int(size)
		if end > len(webpBytes) {
			break
		}
		if fourCC == metadataFourCC {
			var meta Metadata
			if err := json.Unmarshal(webpBytes[start:end], &meta); err != nil {
				return nil, fmt.Errorf("capture: unmarshal metadata: %w", err)
			}
			return &meta, nil
		}
		pos = end
		if size%2 == 1 {
			pos++
		}
	}
	return nil, fmt.Errorf("capture: no metadata chunk present")
}
