// Package mimetable holds the pruned-extension and pruned-content-type
// tables the static pruner consults, grouped by media type the way the
// original loader's CSV-per-media-group data files were intended to be
// grouped (image, video, audio, font, model, text, application).
package mimetable

import "strings"

// group is one media type's extension/code table.
type group struct {
	extensions []string
	codes      []string
}

// byMediaGroup holds the per-group tables keyed by group name. The original
// loader keyed this map by an undefined identifier instead of the loop's
// file_type variable, so every group silently collapsed into one entry; this
// table is keyed correctly, one entry per media group.
var byMediaGroup = map[string]group{
	"image": {
		extensions: []string{
			"png", "jpg", "jpeg", "gif", "webp", "bmp", "svg", "ico", "tif", "tiff", "avif", "heic",
		},
		codes: []string{
			"image/png", "image/jpeg", "image/gif", "image/webp", "image/bmp", "image/svg+xml",
			"image/vnd.microsoft.icon", "image/tiff", "image/avif", "image/heic",
		},
	},
	"video": {
		extensions: []string{"mp4", "webm", "ogv", "mov", "avi", "mkv", "m4v"},
		codes: []string{
			"video/mp4", "video/webm", "video/ogg", "video/quicktime", "video/x-msvideo", "video/x-matroska",
		},
	},
	"audio": {
		extensions: []string{"mp3", "wav", "ogg", "oga", "m4a", "flac", "aac", "weba"},
		codes: []string{
			"audio/mpeg", "audio/wav", "audio/ogg", "audio/mp4", "audio/flac", "audio/aac", "audio/webm",
		},
	},
	"font": {
		extensions: []string{"woff", "woff2", "ttf", "otf", "eot"},
		codes: []string{
			"font/woff", "font/woff2", "font/ttf", "font/otf", "application/vnd.ms-fontobject",
		},
	},
	"model": {
		extensions: []string{"gltf", "glb", "obj", "stl", "usdz"},
		codes: []string{
			"model/gltf+json", "model/gltf-binary", "model/obj", "model/stl", "model/vnd.usdz+zip",
		},
	},
	"text": {
		extensions: []string{"css", "csv", "txt", "vtt", "md"},
		codes: []string{
			"text/css", "text/csv", "text/plain", "text/vtt", "text/markdown",
		},
	},
	"application": {
		extensions: []string{"pdf", "zip", "gz", "tar", "wasm", "map", "woff", "woff2"},
		codes: []string{
			"application/pdf", "application/zip", "application/gzip", "application/x-tar",
			"application/wasm", "application/json+map",
		},
	},
}

// mediaGroups is the fixed set of groups the static pruner folds in, per the
// pruning design.
var mediaGroups = []string{"image", "video", "audio", "font", "model", "text", "application"}

// extraExtensions/extraCodes are the fixed ecosystem additions: JavaScript,
// ECMAScript module variants, and the favicon icon code, which fall outside
// the media-group CSV data but are always pruned.
var extraExtensions = []string{"js", "js", "es", "esm", "ico"}
var extraCodes = []string{
	"application/javascript", "application/x-javascript", "application/ecmascript",
	"application/x-ecmascript", "vnd.microsoft.icon",
}

// whitelist is removed from the pruned tables after assembly: these
// extensions/codes are never pruned even though they appear in a media
// group's table, since the pipeline needs to inspect JSON/XML/HTML bodies.
var whitelistExtensions = map[string]bool{"json": true, "xml": true, "html": true}
var whitelistCodes = map[string]bool{
	"application/json": true, "application/xml": true, "text/html": true, "text/xml": true,
}

// PrunableExtensionsAndCodes returns the lowercased, deduplicated, whitelist-
// filtered extension and content-type-code tables the static pruner checks
// pairs against.
func PrunableExtensionsAndCodes() (extensions []string, codes []string) {
	extSet := make(map[string]bool)
	codeSet := make(map[string]bool)

	add := func(e, c []string) {
		for _, ext := range e {
			extSet[strings.ToLower(ext)] = true
		}
		for _, code := range c {
			codeSet[strings.ToLower(code)] = true
		}
	}
	add(extraExtensions, extraCodes)
	for _, g := range mediaGroups {
		grp := byMediaGroup[g]
		add(grp.extensions, grp.codes)
	}

	for ext := range whitelistExtensions {
		delete(extSet, ext)
	}
	for code := range whitelistCodes {
		delete(codeSet, code)
	}

	for ext := range extSet {
		extensions = append(extensions, ext)
	}
	for code := range codeSet {
		codes = append(codes, code)
	}
	return extensions, codes
}
