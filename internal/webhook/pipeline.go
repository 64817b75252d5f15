// internal/webhook/pipeline.go
package webhook

import (
    "context"
    "crypto/sha256"
    "encoding/hex"
    "log"
    "time"

    appErrors "github.com/unclebandit/relaydesk-backend/internal/errors"
    "github.com/unclebandit/relaydesk-backend/internal/repository"
)

type Outcome int

const (
    Accepted Outcome = iota
    Duplicate
    Rejected
)

type Result struct {
    Outcome Outcome
    Reason  string
    Ref     string // id of the record the event produced
}

// MessageSink records an inbound customer message and returns a
// reference to the created record.
type MessageSink interface {
    RecordInbound(ctx context.Context, evt Event) (string, error)
}

// AssignmentSink applies a provider-originated assignment change.
type AssignmentSink interface {
    ApplyProviderAssignment(ctx context.Context, phone string, assigneeEmail *string) (string, error)
}

// Pipeline is the single entry point for provider webhooks: verify,
// validate, claim, apply, finalize. An event is processed at most once
// regardless of how many times the provider delivers it.
type Pipeline struct {
    Secret      []byte
    Idempotency repository.IdempotencyRepositoryInterface
    Messages    MessageSink
    Assignments AssignmentSink
    Timeout     time.Duration
}

func (p *Pipeline) IngestMessage(ctx context.Context, raw []byte, signature string) (Result, error) {
    return p.ingest(ctx, raw, signature, parseMessageEvent)
}

func (p *Pipeline) IngestAssignment(ctx context.Context, raw []byte, signature string) (Result, error) {
    return p.ingest(ctx, raw, signature, parseAssignmentEvent)
}

func (p *Pipeline) ingest(ctx context.Context, raw []byte, signature string, parse func([]byte) (Event, error)) (Result, error) {
    if !Verify(p.Secret, raw, signature) {
        return Result{Outcome: Rejected, Reason: "signature"}, appErrors.ErrInvalidSignature
    }

    evt, err := parse(raw)
    if err != nil {
        return Result{Outcome: Rejected, Reason: "schema"}, err
    }

    claimed, _, err := p.Idempotency.Claim(evt.ID)
    if err != nil {
        return Result{}, err
    }
    if !claimed {
        // processed or mid-flight elsewhere; either way no side effects
        // here and the provider gets a success response.
        return Result{Outcome: Duplicate, Reason: "event " + evt.ID}, nil
    }

    if p.Timeout > 0 {
        var cancel context.CancelFunc
        ctx, cancel = context.WithTimeout(ctx, p.Timeout)
        defer cancel()
    }

    ref, err := p.apply(ctx, evt)
    if err != nil {
        if appErrors.IsRejection(err) {
            // not transient; retrying would reject again, so finalize
            if markErr := p.Idempotency.MarkProcessed(evt.ID, digest("rejected:"+err.Error())); markErr != nil {
                log.Println("⚠️ failed to finalize rejected event:", markErr)
            }
            return Result{Outcome: Rejected, Reason: "apply"}, err
        }
        // transient: roll the claim back so the provider retry gets a
        // fresh attempt
        if relErr := p.Idempotency.Release(evt.ID); relErr != nil {
            log.Println("⚠️ failed to release idempotency claim:", relErr)
        }
        return Result{}, err
    }

    if err := p.Idempotency.MarkProcessed(evt.ID, digest(string(evt.Kind)+":"+ref)); err != nil {
        // effects are applied; surfacing an error would trigger a
        // provider retry that the claim row no longer blocks
        log.Println("⚠️ failed to finalize event", evt.ID, ":", err)
    }
    return Result{Outcome: Accepted, Ref: ref}, nil
}

func (p *Pipeline) apply(ctx context.Context, evt Event) (string, error) {
    switch evt.Kind {
    case EventNewMessage:
        return p.Messages.RecordInbound(ctx, evt)
    case EventAssignmentChanged:
        return p.Assignments.ApplyProviderAssignment(ctx, evt.Phone, evt.AssigneeEmail)
    default:
        return "", appErrors.NewSchemaError("unknown event kind")
    }
}

func digest(outcome string) string {
    sum := sha256.Sum256([]byte(outcome))
    return hex.EncodeToString(sum[:])
}
