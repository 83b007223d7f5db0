package cashier

import (
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

// Webhook returns the HTTP handler for Paddle's webhook deliveries. It
// accepts form-encoded (Paddle's default) and JSON bodies.
//
// The response contract is fire-and-forget: handled events get a 200 with a
// confirmation body, intentionally ignored and even malformed events get a
// bare 200. A non-2xx answer would put the provider into a retry loop over a
// condition that will never resolve locally, so processing errors are logged
// and absorbed.
func Webhook(rec *Reconciler, log *slog.Logger) http.Handler {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ev, err := eventFromRequest(r)
		if err != nil {
			log.WarnContext(r.Context(), "discarding malformed webhook payload", slog.Any("error", err))
			w.WriteHeader(http.StatusOK)
			return
		}

		if !rec.Recognized(ev.Kind) {
			// Still announced to the received hook for observability.
			_ = rec.Handle(r.Context(), ev)
			w.WriteHeader(http.StatusOK)
			return
		}

		if err := rec.Handle(r.Context(), ev); err != nil {
			log.ErrorContext(r.Context(), "webhook reconciliation failed",
				slog.String("alert", string(ev.Kind)), slog.Any("error", err))
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("Webhook Handled"))
	})
}

// Routes mounts the webhook endpoint on a chi router:
//
//	r := chi.NewRouter()
//	r.Mount("/paddle", cashier.Routes(reconciler, log))
func Routes(rec *Reconciler, log *slog.Logger) chi.Router {
	r := chi.NewRouter()
	r.Post("/webhook", Webhook(rec, log).ServeHTTP)
	return r
}

func eventFromRequest(r *http.Request) (Event, error) {
	contentType := r.Header.Get("Content-Type")

	if strings.HasPrefix(contentType, "application/json") {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			return Event{}, err
		}
		return ParseEventJSON(body)
	}

	if err := r.ParseForm(); err != nil {
		return Event{}, err
	}
	return ParseEvent(r.PostForm)
}
