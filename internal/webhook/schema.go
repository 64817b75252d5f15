// internal/webhook/schema.go
package webhook

import (
    "strings"

    "github.com/santhosh-tekuri/jsonschema/v6"
)

// Payload schemas for the two webhook endpoints. Validation happens at
// the ingestion boundary so nothing untyped travels further in.

const messageSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["event_id", "contact", "message"],
  "properties": {
    "event_id": {"type": "string", "minLength": 1},
    "event_type": {"type": "string"},
    "contact": {
      "type": "object",
      "required": ["phone"],
      "properties": {
        "phone": {"type": "string", "pattern": "^\\+[1-9][0-9]{1,14}$"},
        "firstName": {"type": "string"}
      }
    },
    "message": {
      "type": "object",
      "required": ["messageId", "message"],
      "properties": {
        "messageId": {"type": "string", "minLength": 1},
        "timestamp": {"type": "number"},
        "message": {
          "type": "object",
          "required": ["type"],
          "properties": {
            "type": {"enum": ["text", "image", "file"]},
            "text": {"type": "string"},
            "url": {"type": "string"}
          }
        }
      }
    }
  }
}`

const assignmentSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["event_id", "contact"],
  "properties": {
    "event_id": {"type": "string", "minLength": 1},
    "event_type": {"type": "string"},
    "contact": {
      "type": "object",
      "required": ["phone"],
      "properties": {
        "phone": {"type": "string", "pattern": "^\\+[1-9][0-9]{1,14}$"},
        "assignee": {
          "type": ["object", "null"],
          "required": ["email"],
          "properties": {
            "email": {"type": "string", "minLength": 1}
          }
        }
      }
    }
  }
}`

func compileSchema(name, source string) *jsonschema.Schema {
    doc, err := jsonschema.UnmarshalJSON(strings.NewReader(source))
    if err != nil {
        panic("webhook: bad embedded schema " + name + ": " + err.Error())
    }
    c := jsonschema.NewCompiler()
    if err := c.AddResource(name, doc); err != nil {
        panic("webhook: " + err.Error())
    }
    return c.MustCompile(name)
}

var (
    messageSchema    = compileSchema("message-webhook.json", messageSchemaJSON)
    assignmentSchema = compileSchema("assignment-webhook.json", assignmentSchemaJSON)
)
