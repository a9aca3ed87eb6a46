// internal/push/schema.go
package push

import "github.com/xeipuuv/gojsonschema"

// payloadSchema is the contract for inbound push payloads. id, title and body
// are mandatory; everything else is optional with defaults applied after
// validation.
const payloadSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["id", "title", "body"],
	"properties": {
		"id":                 {"type": "string", "minLength": 1},
		"title":              {"type": "string", "minLength": 1},
		"body":               {"type": "string"},
		"icon":               {"type": "string"},
		"badge":              {"type": "string"},
		"url":                {"type": "string"},
		"userId":             {"type": "integer"},
		"timestamp":          {"type": "integer"},
		"type":               {"type": "string"},
		"requireInteraction": {"type": "boolean"},
		"silent":             {"type": "boolean"},
		"renotify":           {"type": "boolean"},
		"tag":                {"type": "string"}
	},
	"additionalProperties": true
}`

func compilePayloadSchema() (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewStringLoader(payloadSchema))
}
