package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/KanavDutta/admission/cache"
	"github.com/KanavDutta/admission/fingerprint"
	"github.com/KanavDutta/admission/metrics"
	"github.com/KanavDutta/admission/principal"
)

// Idempotency headers
const (
	HeaderIdempotencyKey    = "X-Idempotency-Key"
	HeaderIdempotencyStatus = "X-Idempotency-Status"

	IdempotencyStatusNew    = "new"
	IdempotencyStatusCached = "cached"
)

// Result kinds stored with a record
const (
	ResultKindJSON  = "json"
	ResultKindText  = "text"
	ResultKindEmpty = "empty"
)

// IdempotencyRecord is the cached outcome of a successful request.
type IdempotencyRecord struct {
	StatusCode  int    `json:"statusCode"`
	Body        []byte `json:"body,omitempty"`
	ResultKind  string `json:"resultKind"`
	ContentType string `json:"contentType,omitempty"`
}

func requestKey(fp string) string { return "idempotency:request:" + fp }
func lockKey(fp string) string    { return "idempotency:lock:" + fp }

// Idempotency deduplicates retried mutating requests. The first request with
// a fingerprint executes; later ones replay its successful response. While it
// is executing, identical requests are rejected with 409.
type Idempotency struct {
	cache cache.Cache
	opts  options
}

// NewIdempotency creates the idempotency filter backed by c.
func NewIdempotency(c cache.Cache, opts ...Option) *Idempotency {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Idempotency{cache: c, opts: o}
}

// Middleware wraps an http.Handler with idempotency checks
func (f *Idempotency) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !f.opts.methods[r.Method] {
			next.ServeHTTP(w, r)
			return
		}

		key, ok := principal.FromRequest(r, f.opts.resolver)
		if !ok {
			f.passthrough(w, r, next)
			return
		}

		body, ok := f.readBody(r)
		if !ok {
			f.passthrough(w, r, next)
			return
		}

		fp, err := fingerprint.ForRequest(r.Header.Get(HeaderIdempotencyKey), key, r.URL.Path, body)
		if err != nil {
			// Malformed input is the handler's to reject
			f.passthrough(w, r, next)
			return
		}

		ctx := r.Context()
		log := f.opts.logger.With(zap.String("fingerprint", fp), zap.String("path", r.URL.Path))

		raw, found, err := f.cache.Get(ctx, requestKey(fp))
		if err != nil {
			f.failOpen(w, r, next, log, "get", err)
			return
		}
		if found {
			var record IdempotencyRecord
			if err := json.Unmarshal([]byte(raw), &record); err != nil {
				f.failOpen(w, r, next, log, "decode", err)
				return
			}
			log.Debug("replaying cached response", zap.Int("status", record.StatusCode))
			f.record(metrics.OutcomeReplayed)
			replay(w, record)
			return
		}

		acquired, err := f.cache.SetNX(ctx, lockKey(fp), uuid.NewString(), f.opts.lockTTL)
		if err != nil {
			f.failOpen(w, r, next, log, "lock", err)
			return
		}
		if !acquired {
			log.Debug("identical request in progress")
			f.record(metrics.OutcomeConflict)
			WriteProblem(w, ProblemDetails{
				Type:      TypeIdempotencyConflict,
				Title:     "Request In Progress",
				Status:    http.StatusConflict,
				Detail:    "An identical request is already being processed. Try again shortly.",
				ErrorCode: ErrorCodeIdempotencyConflict,
			})
			return
		}
		defer f.release(ctx, fp, log)

		buf := newBufferedResponse()
		next.ServeHTTP(buf, r)

		if buf.successful() {
			f.store(ctx, fp, buf, log)
			buf.Header().Set(HeaderIdempotencyStatus, IdempotencyStatusNew)
		} else {
			f.record(metrics.OutcomeNotCached)
		}
		buf.flushTo(w)
	})
}

// readBody reads the request body for fingerprinting and restores it for the
// downstream handler. ok is false when the body is empty, too large or unreadable.
func (f *Idempotency) readBody(r *http.Request) ([]byte, bool) {
	if r.Body == nil || r.Body == http.NoBody {
		return nil, false
	}

	data, err := io.ReadAll(io.LimitReader(r.Body, f.opts.maxBodyBytes+1))
	if err != nil || int64(len(data)) > f.opts.maxBodyBytes {
		r.Body = readCloser{io.MultiReader(bytes.NewReader(data), r.Body), r.Body}
		return nil, false
	}
	r.Body = readCloser{bytes.NewReader(data), r.Body}
	return data, len(data) > 0
}

type readCloser struct {
	io.Reader
	io.Closer
}

func (f *Idempotency) store(ctx context.Context, fp string, buf *bufferedResponse, log *zap.Logger) {
	body := buf.body.Bytes()
	record := IdempotencyRecord{
		StatusCode:  buf.StatusCode(),
		Body:        append([]byte(nil), body...),
		ResultKind:  resultKind(body),
		ContentType: buf.Header().Get("Content-Type"),
	}

	data, err := json.Marshal(record)
	if err == nil {
		err = f.cache.Set(ctx, requestKey(fp), string(data), f.opts.responseTTL)
	}
	if err != nil {
		log.Warn("failed to cache idempotent response", zap.Error(err))
		f.cacheFailure("set")
		return
	}
	f.record(metrics.OutcomeStored)
}

// release deletes the lock even when the request context is already canceled.
func (f *Idempotency) release(ctx context.Context, fp string, log *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), f.opts.releaseTimeout)
	defer cancel()

	if err := f.cache.Delete(ctx, lockKey(fp)); err != nil {
		// The lock still expires after lockTTL
		log.Warn("failed to release idempotency lock", zap.Error(err))
		f.cacheFailure("unlock")
	}
}

func (f *Idempotency) passthrough(w http.ResponseWriter, r *http.Request, next http.Handler) {
	f.record(metrics.OutcomePassthrough)
	next.ServeHTTP(w, r)
}

func (f *Idempotency) failOpen(w http.ResponseWriter, r *http.Request, next http.Handler, log *zap.Logger, op string, err error) {
	if errors.Is(err, context.Canceled) {
		log.Debug("request canceled during idempotency check", zap.String("op", op))
	} else {
		log.Warn("idempotency cache unavailable, executing without deduplication",
			zap.String("op", op), zap.Error(err))
	}
	f.cacheFailure(op)
	f.record(metrics.OutcomeFailOpen)
	next.ServeHTTP(w, r)
}

func (f *Idempotency) record(outcome string) {
	if f.opts.metrics != nil {
		f.opts.metrics.RecordIdempotency(outcome)
	}
}

func (f *Idempotency) cacheFailure(op string) {
	if f.opts.metrics != nil {
		f.opts.metrics.RecordCacheFailure("idempotency", op)
	}
}

func replay(w http.ResponseWriter, record IdempotencyRecord) {
	h := w.Header()
	switch {
	case record.ContentType != "":
		h.Set("Content-Type", record.ContentType)
	case record.ResultKind == ResultKindJSON:
		h.Set("Content-Type", "application/json")
	}
	h.Set(HeaderIdempotencyStatus, IdempotencyStatusCached)
	w.WriteHeader(record.StatusCode)
	_, _ = w.Write(record.Body)
}

func resultKind(body []byte) string {
	switch {
	case len(bytes.TrimSpace(body)) == 0:
		return ResultKindEmpty
	case json.Valid(body):
		return ResultKindJSON
	default:
		return ResultKindText
	}
}
