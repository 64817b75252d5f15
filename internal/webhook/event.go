// internal/webhook/event.go
package webhook

import (
    "bytes"
    "encoding/json"
    "time"

    "github.com/santhosh-tekuri/jsonschema/v6"

    appErrors "github.com/unclebandit/relaydesk-backend/internal/errors"
)

type EventKind string

const (
    EventNewMessage        EventKind = "new_message"
    EventAssignmentChanged EventKind = "assignment_changed"
)

// Event is the closed, typed form of a provider webhook payload. Raw
// payload shapes never leave this package.
type Event struct {
    ID            string
    Kind          EventKind
    Phone         string
    ContactName   string
    MessageID     string
    Text          string
    MessageType   string
    FileURL       string
    AssigneeEmail *string   // nil means unassigned
    Timestamp     time.Time // provider's own clock; display ordering only
}

type rawMessagePayload struct {
    EventID string `json:"event_id"`
    Contact struct {
        Phone     string `json:"phone"`
        FirstName string `json:"firstName"`
    } `json:"contact"`
    Message struct {
        MessageID string  `json:"messageId"`
        Timestamp float64 `json:"timestamp"`
        Message   struct {
            Type string `json:"type"`
            Text string `json:"text"`
            URL  string `json:"url"`
        } `json:"message"`
    } `json:"message"`
}

type rawAssignmentPayload struct {
    EventID string `json:"event_id"`
    Contact struct {
        Phone    string `json:"phone"`
        Assignee *struct {
            Email string `json:"email"`
        } `json:"assignee"`
    } `json:"contact"`
}

func parseMessageEvent(raw []byte) (Event, error) {
    inst, err := unmarshalInstance(raw)
    if err != nil {
        return Event{}, err
    }
    if err := messageSchema.Validate(inst); err != nil {
        return Event{}, appErrors.NewSchemaError(err.Error())
    }

    var p rawMessagePayload
    if err := json.Unmarshal(raw, &p); err != nil {
        return Event{}, appErrors.NewSchemaError(err.Error())
    }

    evt := Event{
        ID:          p.EventID,
        Kind:        EventNewMessage,
        Phone:       p.Contact.Phone,
        ContactName: p.Contact.FirstName,
        MessageID:   p.Message.MessageID,
        Text:        p.Message.Message.Text,
        MessageType: p.Message.Message.Type,
        FileURL:     p.Message.Message.URL,
    }
    if p.Message.Timestamp > 0 {
        evt.Timestamp = time.Unix(int64(p.Message.Timestamp), 0).UTC()
    }
    return evt, nil
}

func parseAssignmentEvent(raw []byte) (Event, error) {
    inst, err := unmarshalInstance(raw)
    if err != nil {
        return Event{}, err
    }
    if err := assignmentSchema.Validate(inst); err != nil {
        return Event{}, appErrors.NewSchemaError(err.Error())
    }

    var p rawAssignmentPayload
    if err := json.Unmarshal(raw, &p); err != nil {
        return Event{}, appErrors.NewSchemaError(err.Error())
    }

    evt := Event{
        ID:    p.EventID,
        Kind:  EventAssignmentChanged,
        Phone: p.Contact.Phone,
    }
    if p.Contact.Assignee != nil {
        email := p.Contact.Assignee.Email
        evt.AssigneeEmail = &email
    }
    return evt, nil
}

func unmarshalInstance(raw []byte) (any, error) {
    inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
    if err != nil {
        return nil, appErrors.NewSchemaError("invalid JSON: " + err.Error())
    }
    return inst, nil
}
