// internal/dispatch/dispatcher.go
package dispatch

import (
    "context"
    "errors"
    "fmt"
    "log"
    "sync"
    "time"

    "github.com/unclebandit/relaydesk-backend/internal/provider"
)

type Kind string

const (
    KindSendText       Kind = "send_text"
    KindSendAttachment Kind = "send_attachment"
    KindAssign         Kind = "assign"
    KindUnassign       Kind = "unassign"
    KindComment        Kind = "comment"
)

// Request is one outbound provider call. IdempotencyKey is caller
// supplied (local message id, assignment event id) so a retried request
// is never applied twice.
type Request struct {
    Kind           Kind
    IdempotencyKey string
    Phone          string
    Text           string
    FileURL        string
    AssigneeEmail  string
    TaggedUserIDs  []string
}

type Result struct {
    ProviderID string
}

// ProviderAPI is the slice of the provider client the dispatcher drives.
type ProviderAPI interface {
    SendText(ctx context.Context, phone, text string) (string, error)
    SendAttachment(ctx context.Context, phone, fileURL string) (string, error)
    Assign(ctx context.Context, phone, email string) error
    Unassign(ctx context.Context, phone string) error
    CreateComment(ctx context.Context, phone, text string, taggedUserIDs []string) error
}

// ErrCircuitOpen is surfaced as transient: the provider is degraded and
// the caller's reconciliation path handles it.
var ErrCircuitOpen = errors.New("provider circuit open")

type PermanentError struct {
    Err error
}

func (e *PermanentError) Error() string { return "permanent provider failure: " + e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

type TransientError struct {
    Err      error
    Attempts int
}

func (e *TransientError) Error() string {
    return fmt.Sprintf("transient provider failure after %d attempt(s): %v", e.Attempts, e.Err)
}
func (e *TransientError) Unwrap() error { return e.Err }

func IsPermanent(err error) bool {
    var pe *PermanentError
    return errors.As(err, &pe)
}

// maxCompleted bounds the success cache. Callers stop re-sending a key
// as soon as they observe its success, so dropping the oldest entries
// only risks a duplicate provider call, never a duplicate local effect.
const maxCompleted = 4096

type Dispatcher struct {
    Provider    ProviderAPI
    Breaker     *Breaker
    RetryBase   time.Duration
    RetryCap    time.Duration
    MaxAttempts int

    mu        sync.Mutex
    completed map[string]Result
    order     []string // completion order, for eviction
}

func NewDispatcher(api ProviderAPI, breaker *Breaker, base, cap time.Duration, maxAttempts int) *Dispatcher {
    return &Dispatcher{
        Provider:    api,
        Breaker:     breaker,
        RetryBase:   base,
        RetryCap:    cap,
        MaxAttempts: maxAttempts,
        completed:   make(map[string]Result),
    }
}

// Send executes the request with exponential backoff on transient
// failures. A key already marked successful is never re-issued; the
// cached result is returned instead.
func (d *Dispatcher) Send(ctx context.Context, req Request) (Result, error) {
    d.mu.Lock()
    if res, ok := d.completed[req.IdempotencyKey]; ok && req.IdempotencyKey != "" {
        d.mu.Unlock()
        return res, nil
    }
    d.mu.Unlock()

    var lastErr error
    for attempt := 1; attempt <= d.MaxAttempts; attempt++ {
        if !d.Breaker.Allow() {
            return Result{}, &TransientError{Err: ErrCircuitOpen, Attempts: attempt - 1}
        }

        res, err := d.call(ctx, req)
        if err == nil {
            d.Breaker.Success()
            if req.IdempotencyKey != "" {
                d.mu.Lock()
                if _, dup := d.completed[req.IdempotencyKey]; !dup {
                    d.completed[req.IdempotencyKey] = res
                    d.order = append(d.order, req.IdempotencyKey)
                    if len(d.order) > maxCompleted {
                        delete(d.completed, d.order[0])
                        d.order = d.order[1:]
                    }
                }
                d.mu.Unlock()
            }
            return res, nil
        }

        if !transient(err) {
            // permanent failures say nothing about provider health
            return Result{}, &PermanentError{Err: err}
        }

        d.Breaker.Failure()
        lastErr = err
        log.Printf("⚠️ provider call %s attempt %d/%d failed: %v", req.Kind, attempt, d.MaxAttempts, err)

        if attempt == d.MaxAttempts {
            break
        }
        select {
        case <-time.After(d.backoff(attempt)):
        case <-ctx.Done():
            return Result{}, &TransientError{Err: ctx.Err(), Attempts: attempt}
        }
    }
    return Result{}, &TransientError{Err: lastErr, Attempts: d.MaxAttempts}
}

func (d *Dispatcher) call(ctx context.Context, req Request) (Result, error) {
    switch req.Kind {
    case KindSendText:
        id, err := d.Provider.SendText(ctx, req.Phone, req.Text)
        return Result{ProviderID: id}, err
    case KindSendAttachment:
        id, err := d.Provider.SendAttachment(ctx, req.Phone, req.FileURL)
        return Result{ProviderID: id}, err
    case KindAssign:
        return Result{}, d.Provider.Assign(ctx, req.Phone, req.AssigneeEmail)
    case KindUnassign:
        return Result{}, d.Provider.Unassign(ctx, req.Phone)
    case KindComment:
        return Result{}, d.Provider.CreateComment(ctx, req.Phone, req.Text, req.TaggedUserIDs)
    default:
        return Result{}, &PermanentError{Err: fmt.Errorf("unknown request kind %q", req.Kind)}
    }
}

// backoff: base * 2^(attempt-1), capped.
func (d *Dispatcher) backoff(attempt int) time.Duration {
    delay := d.RetryBase
    for i := 1; i < attempt; i++ {
        delay *= 2
        if delay >= d.RetryCap {
            return d.RetryCap
        }
    }
    if delay > d.RetryCap {
        return d.RetryCap
    }
    return delay
}

// transient: timeouts, connection errors and 429/5xx. Everything the
// provider explicitly rejected with another 4xx is permanent.
func transient(err error) bool {
    var apiErr *provider.APIError
    if errors.As(err, &apiErr) {
        return apiErr.Transient()
    }
    return true
}
