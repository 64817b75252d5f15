// internal/controller/customer_controller.go
package controller

import (
    "encoding/json"
    "errors"
    "net/http"
    "strconv"

    "github.com/go-chi/chi/v5"

    appErrors "github.com/unclebandit/relaydesk-backend/internal/errors"
    "github.com/unclebandit/relaydesk-backend/internal/repository"
    "github.com/unclebandit/relaydesk-backend/internal/service"
)

// actorFromRequest trusts the identity headers stamped by the upstream
// auth layer; the relay never resolves sessions itself.
func actorFromRequest(r *http.Request) service.Actor {
    return service.Actor{
        UserID: r.Header.Get("X-Actor-ID"),
        Role:   r.Header.Get("X-Actor-Role"),
    }
}

func writeServiceError(w http.ResponseWriter, err error) {
    var forbidden *appErrors.ErrForbidden
    switch {
    case errors.As(err, &forbidden):
        http.Error(w, err.Error(), http.StatusForbidden)
    case appErrors.IsRejection(err):
        http.Error(w, err.Error(), http.StatusNotFound)
    default:
        http.Error(w, err.Error(), http.StatusInternalServerError)
    }
}

type CustomerController struct {
    CustomerRepo      repository.CustomerRepositoryInterface
    EventRepo         repository.AssignmentEventRepositoryInterface
    AssignmentService *service.AssignmentService
}

func (c *CustomerController) ListCustomers(w http.ResponseWriter, r *http.Request) {
    page, _ := strconv.Atoi(r.URL.Query().Get("page"))
    pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
    status := r.URL.Query().Get("status")

    if page < 1 {
        page = 1
    }
    if pageSize < 1 {
        pageSize = 20
    }
    if pageSize > 100 {
        pageSize = 100
    }

    customers, total, err := c.CustomerRepo.List(status, (page-1)*pageSize, pageSize)
    if err != nil {
        http.Error(w, err.Error(), http.StatusInternalServerError)
        return
    }

    totalPages := (total + pageSize - 1) / pageSize
    w.Header().Set("Content-Type", "application/json")
    json.NewEncoder(w).Encode(map[string]interface{}{
        "data": customers,
        "pagination": map[string]int{
            "page":        page,
            "page_size":   pageSize,
            "total_count": total,
            "total_pages": totalPages,
        },
    })
}

func (c *CustomerController) GetCustomer(w http.ResponseWriter, r *http.Request) {
    id := chi.URLParam(r, "id")

    customer, err := c.CustomerRepo.GetByID(id)
    if err != nil {
        writeServiceError(w, err)
        return
    }

    w.Header().Set("Content-Type", "application/json")
    json.NewEncoder(w).Encode(customer)
}

func (c *CustomerController) AssignCustomer(w http.ResponseWriter, r *http.Request) {
    id := chi.URLParam(r, "id")

    var body struct {
        AssigneeID string `json:"assignee_id"`
        Reason     string `json:"reason"`
    }
    if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
        http.Error(w, "invalid body", http.StatusBadRequest)
        return
    }
    if body.AssigneeID == "" {
        http.Error(w, "assignee_id is required", http.StatusBadRequest)
        return
    }

    ev, err := c.AssignmentService.Assign(r.Context(), actorFromRequest(r), id, body.AssigneeID, body.Reason)
    if err != nil {
        writeServiceError(w, err)
        return
    }

    w.Header().Set("Content-Type", "application/json")
    if ev == nil {
        // already assigned to this user; success without a new event
        json.NewEncoder(w).Encode(map[string]string{"status": "unchanged"})
        return
    }
    json.NewEncoder(w).Encode(ev)
}

func (c *CustomerController) UnassignCustomer(w http.ResponseWriter, r *http.Request) {
    id := chi.URLParam(r, "id")

    var body struct {
        Reason string `json:"reason"`
    }
    if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
        http.Error(w, "invalid body", http.StatusBadRequest)
        return
    }

    ev, err := c.AssignmentService.Unassign(r.Context(), actorFromRequest(r), id, body.Reason)
    if err != nil {
        writeServiceError(w, err)
        return
    }

    w.Header().Set("Content-Type", "application/json")
    if ev == nil {
        json.NewEncoder(w).Encode(map[string]string{"status": "unchanged"})
        return
    }
    json.NewEncoder(w).Encode(ev)
}

// AssignmentHistory answers "who assigned whom, when" from the audit log.
func (c *CustomerController) AssignmentHistory(w http.ResponseWriter, r *http.Request) {
    id := chi.URLParam(r, "id")

    if _, err := c.CustomerRepo.GetByID(id); err != nil {
        writeServiceError(w, err)
        return
    }

    events, err := c.EventRepo.ListByCustomer(id)
    if err != nil {
        http.Error(w, err.Error(), http.StatusInternalServerError)
        return
    }

    w.Header().Set("Content-Type", "application/json")
    json.NewEncoder(w).Encode(map[string]interface{}{"data": events})
}
