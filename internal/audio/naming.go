package audio

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// BlobName returns the storage filename for a captured or imported audio
// blob: {epochMillis}-{uuid}.{ext}. Unknown extensions default to wav.
func BlobName(ext string) string {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	switch ext {
	case "mp3", "m4a", "wav":
	default:
		ext = "wav"
	}
	return fmt.Sprintf("%d-%s.%s", time.Now().UnixMilli(), uuid.NewString(), ext)
}

// ContentTypeFor maps an audio filename to its MIME type by extension.
func ContentTypeFor(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".mp3":
		return "audio/mpeg"
	case ".m4a":
		return "audio/mp4"
	default:
		return "audio/wav"
	}
}

// ResolveFile finds an audio file on disk given the managed audio
// directory and a stored path that may be relative or absolute.
func ResolveFile(audioDir, audioPath string) string {
	if audioPath == "" {
		return ""
	}
	if filepath.IsAbs(audioPath) {
		if _, err := os.Stat(audioPath); err == nil {
			return audioPath
		}
		return ""
	}
	full := filepath.Join(audioDir, audioPath)
	if _, err := os.Stat(full); err == nil {
		return full
	}
	return ""
}
