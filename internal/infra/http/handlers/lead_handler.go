package handlers

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/xavierca1/leadbuffer/internal/infra/http/middleware"
	"github.com/xavierca1/leadbuffer/internal/usecase"
)

const IdempotencyHeader = "Idempotency-Key"

type LeadHandler struct {
	Push        *usecase.PushLeadsUseCase
	Pull        *usecase.IdempotentPullUseCase
	Served      *usecase.ServedLeadsUseCase
	rateLimiter *RateLimiter
}

func NewLeadHandler(push *usecase.PushLeadsUseCase, pull *usecase.IdempotentPullUseCase, served *usecase.ServedLeadsUseCase, limiter *RateLimiter) *LeadHandler {
	return &LeadHandler{
		Push:        push,
		Pull:        pull,
		Served:      served,
		rateLimiter: limiter,
	}
}

// HandlePush (POST /v1/leads/push)
func (h *LeadHandler) HandlePush(w http.ResponseWriter, r *http.Request) {
	if !h.allow(w, r) {
		return
	}

	var input usecase.PushLeadsInput
	if err := decodeJSON(r, &input); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "INVALID_JSON", "invalid JSON body")
		return
	}
	input.OrganizationID = middleware.OrganizationID(r.Context())

	out, err := h.Push.Execute(r.Context(), input)
	if err != nil {
		writeUseCaseError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// HandlePull (POST /v1/leads/pull). Replays with the same Idempotency-Key
// get the stored body back unchanged.
func (h *LeadHandler) HandlePull(w http.ResponseWriter, r *http.Request) {
	if !h.allow(w, r) {
		return
	}

	var input usecase.PullNextInput
	if err := decodeJSON(r, &input); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "INVALID_JSON", "invalid JSON body")
		return
	}
	input.OrganizationID = middleware.OrganizationID(r.Context())

	key := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
	body, replayed, err := h.Pull.Execute(r.Context(), key, input)
	if err != nil {
		writeUseCaseError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if replayed {
		w.Header().Set("Idempotent-Replayed", "true")
	}
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

// HandleListServed (GET /v1/leads/served)
func (h *LeadHandler) HandleListServed(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := intParam(q.Get("limit"))
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "INVALID_PARAM", "limit must be an integer")
		return
	}
	offset, err := intParam(q.Get("offset"))
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "INVALID_PARAM", "offset must be an integer")
		return
	}

	out, err := h.Served.List(r.Context(), usecase.ListServedInput{
		OrganizationID: middleware.OrganizationID(r.Context()),
		Namespace:      q.Get("namespace"),
		BrandID:        q.Get("brandId"),
		Limit:          limit,
		Offset:         offset,
	})
	if err != nil {
		writeUseCaseError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleStats (GET /v1/leads/stats)
func (h *LeadHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	out, err := h.Served.Stats(r.Context(), middleware.OrganizationID(r.Context()), q.Get("namespace"), q.Get("brandId"))
	if err != nil {
		writeUseCaseError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *LeadHandler) allow(w http.ResponseWriter, r *http.Request) bool {
	if h.rateLimiter == nil || h.rateLimiter.Allow(getClientIP(r)) {
		return true
	}
	writeErrorResponse(w, http.StatusTooManyRequests, "RATE_LIMITED", "too many requests, try again later")
	return false
}

func intParam(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}

func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// RateLimiter keeps one token bucket per client IP.
type RateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	rps      rate.Limit
	burst    int
	idle     time.Duration
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewRateLimiter(rps float64, burst int) *RateLimiter {
	return &RateLimiter{
		visitors: make(map[string]*visitor),
		rps:      rate.Limit(rps),
		burst:    burst,
		idle:     10 * time.Minute,
	}
}

func (rl *RateLimiter) Allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	v, exists := rl.visitors[ip]
	if !exists {
		v = &visitor{limiter: rate.NewLimiter(rl.rps, rl.burst)}
		rl.visitors[ip] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

// Cleanup drops visitors idle for longer than the idle window. Call it
// periodically from a goroutine bound to the server lifetime.
func (rl *RateLimiter) Cleanup(now time.Time) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	removed := 0
	for ip, v := range rl.visitors {
		if now.Sub(v.lastSeen) > rl.idle {
			delete(rl.visitors, ip)
			removed++
		}
	}
	return removed
}
