package web

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"net/url"

	"github.com/rs/zerolog"

	"github.com/hay-kot/kvpub/internal/kvpub"
)

//go:embed templates/index.html
var templateFS embed.FS

var indexTmpl = template.Must(template.ParseFS(templateFS, "templates/index.html"))

// maxFormBytes bounds the POST / body. It sits above the largest accepted
// key plus value so oversized fields still reach validation.
const maxFormBytes = 64 << 10

// Gateway is the subset of *kvpub.Gateway the handlers use.
type Gateway interface {
	Get(ctx context.Context, key string) kvpub.Lookup
	Add(ctx context.Context, key, value string) error
	Count(ctx context.Context) (int, error)
}

// Handler holds the dependencies for HTTP handlers.
type Handler struct {
	gateway Gateway
	limits  kvpub.GatewayOptions
}

// NewHandler creates a Handler. limits sizes the form inputs on the page.
func NewHandler(g Gateway, limits kvpub.GatewayOptions) *Handler {
	return &Handler{gateway: g, limits: limits}
}

type indexPage struct {
	Notice      string
	Error       bool
	Link        string
	MaxKeyLen   int
	MaxValueLen int
}

type healthResponse struct {
	Status  string `json:"status"`
	Entries int    `json:"entries"`
}

// Index handles GET / by rendering the submission form.
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	h.renderIndex(w, r, http.StatusOK, indexPage{})
}

// Publish handles POST /. The form carries key and value; the page is
// re-rendered on success.
func (h *Handler) Publish(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := zerolog.Ctx(ctx)

	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.renderIndex(w, r, http.StatusRequestEntityTooLarge, indexPage{Notice: "request body too large", Error: true})
			return
		}
		log.Warn().Err(err).Msg("parse form")
		writeText(w, http.StatusBadRequest, "invalid form")
		return
	}

	key := r.PostForm.Get("key")
	value := r.PostForm.Get("value")

	err := h.gateway.Add(ctx, key, value)
	switch {
	case err == nil:
		h.renderIndex(w, r, http.StatusOK, indexPage{
			Notice: "stored",
			Link:   "/" + url.PathEscape(key),
		})
	case errors.Is(err, kvpub.ErrInvalidKey):
		log.Info().Err(err).Msg("rejected blank key")
		h.renderIndex(w, r, http.StatusBadRequest, indexPage{Notice: err.Error(), Error: true})
	case errors.Is(err, kvpub.ErrPayloadTooLarge):
		log.Info().Err(err).Int("key_len", len(key)).Int("value_len", len(value)).Msg("rejected oversized payload")
		h.renderIndex(w, r, http.StatusRequestEntityTooLarge, indexPage{Notice: err.Error(), Error: true})
	default:
		log.Error().Err(err).Str("key", key).Msg("publish failed")
		writeText(w, http.StatusInternalServerError, "internal server error")
	}
}

// Value handles GET /{key}, returning the stored value as plain text.
func (h *Handler) Value(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")

	res := h.gateway.Get(r.Context(), key)
	switch res.Status {
	case kvpub.Found:
		w.Header().Set("X-Content-Type-Options", "nosniff")
		writeText(w, http.StatusOK, res.Value)
	case kvpub.Unavailable:
		writeText(w, http.StatusServiceUnavailable, "storage unavailable")
	default:
		writeText(w, http.StatusNotFound, "not found")
	}
}

// Health handles GET /-/healthz. It answers 503 when the store cannot count.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	n, err := h.gateway.Count(r.Context())
	if err != nil {
		zerolog.Ctx(r.Context()).Warn().Err(err).Msg("health check failed")
		writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Entries: n})
}

func (h *Handler) renderIndex(w http.ResponseWriter, r *http.Request, status int, page indexPage) {
	page.MaxKeyLen = h.limits.MaxKeyLen - 1
	page.MaxValueLen = h.limits.MaxValueLen - 1

	var buf bytes.Buffer
	if err := indexTmpl.Execute(&buf, page); err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("render index")
		writeText(w, http.StatusInternalServerError, "internal server error")
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// writeText writes a plain text response.
func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

// writeJSON writes JSON response with proper content type.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
