package enrich

import (
	"strings"

	"clipspace/internal/catalog"
)

// fieldType hints the LLM how a metadata field should be shaped.
type fieldType string

const (
	fieldString   fieldType = "string"
	fieldTextarea fieldType = "textarea"
	fieldArray    fieldType = "array-of-string"
	fieldList     fieldType = "list-of-string"
)

type schemaField struct {
	Name string
	Type fieldType
}

// metadataSchemas maps an item's effective kind to the fields the AI-metadata
// worker requests. Unknown kinds fall back to the "default" schema.
var metadataSchemas = map[string][]schemaField{
	"video": {
		{"title", fieldString}, {"shortDescription", fieldString},
		{"longDescription", fieldTextarea}, {"category", fieldString},
		{"topics", fieldArray}, {"speakers", fieldArray},
		{"keyPoints", fieldList}, {"targetAudience", fieldString},
		{"tags", fieldArray}, {"notes", fieldTextarea},
	},
	"audio": {
		{"title", fieldString}, {"description", fieldTextarea},
		{"audioType", fieldString}, {"topics", fieldArray},
		{"speakers", fieldArray}, {"keyPoints", fieldList},
		{"genre", fieldString}, {"tags", fieldArray}, {"notes", fieldTextarea},
	},
	"code": {
		{"title", fieldString}, {"description", fieldTextarea},
		{"language", fieldString}, {"purpose", fieldString},
		{"functions", fieldArray}, {"dependencies", fieldArray},
		{"complexity", fieldString}, {"tags", fieldArray}, {"notes", fieldTextarea},
	},
	"pdf": {
		{"title", fieldString}, {"description", fieldTextarea},
		{"documentType", fieldString}, {"subject", fieldString},
		{"category", fieldString}, {"purpose", fieldString},
		{"topics", fieldArray}, {"tags", fieldArray}, {"notes", fieldTextarea},
	},
	"data": {
		{"title", fieldString}, {"description", fieldTextarea},
		{"dataType", fieldString}, {"format", fieldString},
		{"entities", fieldArray}, {"keyFields", fieldArray},
		{"purpose", fieldString}, {"tags", fieldArray}, {"notes", fieldTextarea},
	},
	"image": {
		{"title", fieldString}, {"description", fieldTextarea},
		{"category", fieldString}, {"extracted_text", fieldTextarea},
		{"visible_urls", fieldArray}, {"app_detected", fieldString},
		{"instructions", fieldTextarea}, {"tags", fieldArray}, {"notes", fieldTextarea},
	},
	"html": {
		{"title", fieldString}, {"description", fieldTextarea},
		{"documentType", fieldString}, {"topics", fieldArray},
		{"keyPoints", fieldList}, {"author", fieldString},
		{"source", fieldString}, {"tags", fieldArray}, {"notes", fieldTextarea},
	},
	"url": {
		{"title", fieldString}, {"description", fieldTextarea},
		{"urlType", fieldString}, {"platform", fieldString},
		{"topics", fieldArray}, {"category", fieldString},
		{"purpose", fieldString}, {"tags", fieldArray}, {"notes", fieldTextarea},
	},
	"text": {
		{"title", fieldString}, {"description", fieldTextarea},
		{"contentType", fieldString}, {"topics", fieldArray},
		{"keyPoints", fieldList}, {"actionItems", fieldList},
		{"tags", fieldArray}, {"notes", fieldTextarea},
	},
	"default": {
		{"title", fieldString}, {"description", fieldTextarea},
		{"tags", fieldArray}, {"notes", fieldTextarea},
	},
}

// effectiveKind collapses an item's kind and subkind into the schema key.
func effectiveKind(item *catalog.Item) string {
	switch item.Kind {
	case catalog.KindImage:
		return "image"
	case catalog.KindHTML:
		return "html"
	case catalog.KindURL:
		return "url"
	case catalog.KindText:
		return "text"
	case catalog.KindFile:
		switch item.Subkind {
		case catalog.SubkindVideo:
			return "video"
		case catalog.SubkindAudio:
			return "audio"
		case catalog.SubkindCode:
			return "code"
		case catalog.SubkindPDF:
			return "pdf"
		case catalog.SubkindData:
			return "data"
		case catalog.SubkindImage:
			return "image"
		}
	}
	return "default"
}

func schemaFor(item *catalog.Item) []schemaField {
	if fields, ok := metadataSchemas[effectiveKind(item)]; ok {
		return fields
	}
	return metadataSchemas["default"]
}

// schemaPrompt renders the field list for the LLM request.
func schemaPrompt(fields []schemaField) string {
	var b strings.Builder
	for _, f := range fields {
		b.WriteString("- ")
		b.WriteString(f.Name)
		b.WriteString(" (")
		b.WriteString(string(f.Type))
		b.WriteString(")\n")
	}
	return b.String()
}
