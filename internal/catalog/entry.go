package catalog

import (
	"mime"
	"path/filepath"
	"sort"
	"strings"
)

// Origin tags where an entry's file lives and which operations apply to it.
type Origin string

const (
	OriginImported   Origin = "import"
	OriginRecorded   Origin = "record"
	OriginDefault    Origin = "default"
	OriginDownloaded Origin = "download"
)

// Persisted reports whether entries of this origin belong to the catalog.
func (o Origin) Persisted() bool {
	return o == OriginImported || o == OriginRecorded || o == OriginDefault
}

// ParseOrigin accepts the tag values plus a few spelled-out forms.
func ParseOrigin(s string) (Origin, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "import", "imported", "imports":
		return OriginImported, true
	case "record", "recorded", "recording", "recordings":
		return OriginRecorded, true
	case "default", "defaults":
		return OriginDefault, true
	case "download", "downloaded":
		return OriginDownloaded, true
	}
	return "", false
}

// Entry is one audio clip. Name is empty for a capture that has not been
// saved yet.
type Entry struct {
	URI    string `json:"uri"`
	Name   string `json:"name,omitempty"`
	Origin Origin `json:"origin"`
}

func (e Entry) IsZero() bool { return e.URI == "" }

// Unsaved reports a fresh recording still sitting in the capture area.
func (e Entry) Unsaved() bool {
	return e.Origin == OriginRecorded && e.Name == ""
}

func (e Entry) DisplayName() string {
	if e.Name == "" {
		return "unnamed"
	}
	return e.Name
}

// AudioSubtype returns the subtype of an audio/* MIME type, e.g. "wav" for
// "audio/x-wav". ok is false for anything that is not audio.
func AudioSubtype(mimeType string) (string, bool) {
	mediaType, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return "", false
	}
	major, sub, found := strings.Cut(mediaType, "/")
	if !found || major != "audio" || sub == "" || sub == "*" {
		return "", false
	}
	return sub, true
}

// extensionForSubtype maps a MIME subtype onto a file extension.
func extensionForSubtype(subtype string) string {
	sub := strings.ToLower(strings.TrimSpace(subtype))
	sub = strings.TrimPrefix(sub, "x-")
	switch sub {
	case "mpeg", "mpeg3":
		return "mp3"
	case "mp4", "aac-adts":
		return "m4a"
	case "wave", "vnd.wave":
		return "wav"
	}
	return sub
}

// audioTypes covers extensions the system MIME tables often lack.
var audioTypes = map[string]string{
	".wav":  "audio/wav",
	".mp3":  "audio/mpeg",
	".m4a":  "audio/mp4",
	".aac":  "audio/aac",
	".ogg":  "audio/ogg",
	".oga":  "audio/ogg",
	".flac": "audio/flac",
	".opus": "audio/opus",
}

// TypeByExtension guesses a MIME type from path's extension.
func TypeByExtension(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if t, ok := audioTypes[ext]; ok {
		return t
	}
	return mime.TypeByExtension(ext)
}

// AudioExtensions lists the extensions TypeByExtension always recognises.
func AudioExtensions() []string {
	exts := make([]string, 0, len(audioTypes))
	for ext := range audioTypes {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}
