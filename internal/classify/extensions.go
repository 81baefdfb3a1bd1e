package classify

import (
	"path/filepath"
	"strings"

	"clipspace/internal/catalog"
)

var imageExtensions = map[string]struct{}{
	".png": {}, ".jpg": {}, ".jpeg": {}, ".gif": {}, ".webp": {},
	".bmp": {}, ".tiff": {}, ".heic": {}, ".svg": {},
}

var videoExtensions = map[string]struct{}{
	".mp4": {}, ".webm": {}, ".mkv": {}, ".avi": {}, ".mov": {}, ".m4v": {},
}

var audioExtensions = map[string]struct{}{
	".mp3": {}, ".wav": {}, ".aac": {}, ".m4a": {}, ".ogg": {}, ".flac": {},
}

var presentationExtensions = map[string]struct{}{
	".ppt": {}, ".pptx": {}, ".key": {}, ".odp": {},
}

var codeExtensions = map[string]struct{}{
	".js": {}, ".jsx": {}, ".ts": {}, ".tsx": {}, ".py": {}, ".go": {},
	".rb": {}, ".java": {}, ".c": {}, ".cc": {}, ".cpp": {}, ".h": {},
	".hpp": {}, ".rs": {}, ".sh": {}, ".swift": {}, ".kt": {}, ".php": {},
	".css": {}, ".scss": {}, ".sql": {}, ".lua": {}, ".zig": {},
}

var documentExtensions = map[string]struct{}{
	".doc": {}, ".docx": {}, ".odt": {}, ".rtf": {}, ".md": {}, ".txt": {},
}

var dataExtensions = map[string]struct{}{
	".csv": {}, ".tsv": {}, ".json": {}, ".xml": {}, ".yaml": {}, ".yml": {},
	".toml": {}, ".xlsx": {}, ".parquet": {},
}

var notebookExtensions = map[string]struct{}{
	".ipynb": {},
}

var flowExtensions = map[string]struct{}{
	".flow": {}, ".bpmn": {}, ".drawio": {},
}

// FileSubkind maps a file path to its content family by extension.
func FileSubkind(path string) catalog.FileSubkind {
	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case has(imageExtensions, ext):
		return catalog.SubkindImage
	case has(videoExtensions, ext):
		return catalog.SubkindVideo
	case has(audioExtensions, ext):
		return catalog.SubkindAudio
	case ext == ".pdf":
		return catalog.SubkindPDF
	case has(presentationExtensions, ext):
		return catalog.SubkindPresentation
	case has(codeExtensions, ext):
		return catalog.SubkindCode
	case has(notebookExtensions, ext):
		return catalog.SubkindNotebook
	case has(flowExtensions, ext):
		return catalog.SubkindFlow
	case has(dataExtensions, ext):
		return catalog.SubkindData
	case has(documentExtensions, ext):
		return catalog.SubkindDocument
	default:
		return catalog.SubkindOther
	}
}

func has(set map[string]struct{}, ext string) bool {
	_, ok := set[ext]
	return ok
}

// codeTokens are structural fragments common across mainstream languages.
// Prose rarely contains three distinct ones.
var codeTokens = []string{
	"func ", "def ", "class ", "import ", "package ", "return ",
	"#include", "public ", "const ", "var ", "=> ", ") {", "};",
	"fn ", "let ", "end\n",
}

// DetectCode reports whether pasted text looks like source code. File ingests
// are judged by extension; this covers text with no filename attached. A
// shebang is decisive; otherwise at least three distinct tokens must match.
func DetectCode(text string) bool {
	if strings.HasPrefix(strings.TrimSpace(text), "#!") {
		return true
	}
	hits := 0
	for _, tok := range codeTokens {
		if strings.Contains(text, tok) {
			hits++
			if hits >= 3 {
				return true
			}
		}
	}
	return false
}

// videoPlatformHosts are hosts whose URLs get a video-download derivation.
var videoPlatformHosts = []string{
	"youtube.com", "www.youtube.com", "m.youtube.com", "youtu.be",
	"vimeo.com", "www.vimeo.com",
}

func isVideoPlatformHost(host string) bool {
	host = strings.ToLower(host)
	for _, candidate := range videoPlatformHosts {
		if host == candidate {
			return true
		}
	}
	return false
}
