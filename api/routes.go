package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"splicer/ffprobe"
	"splicer/models"
	"splicer/orchestrator"
)

func NewRouter(cfg ServerConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))

	r.Get("/health", healthHandler(cfg))
	r.Get("/tools", toolsHandler(cfg))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Post("/probe", probeHandler(cfg))
	r.Post("/trim", trimHandler(cfg))
	r.Post("/thumbnail", thumbnailHandler(cfg))
	r.Post("/audio", audioHandler(cfg))
	r.Post("/convert", convertHandler(cfg))

	r.Route("/exports", func(r chi.Router) {
		r.Post("/", submitExportHandler(cfg))
		r.Get("/", listExportsHandler(cfg))
		r.Get("/{id}", getExportHandler(cfg))
		r.Get("/{id}/events", exportEventsHandler(cfg))
		r.Delete("/{id}", cancelExportHandler(cfg))
	})

	return r
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		running := 0
		for _, snap := range cfg.Sessions.List() {
			if !snap.State.Terminal() && snap.State != orchestrator.StateCreated {
				running++
			}
		}
		WriteJSON(w, http.StatusOK, HealthResponse{
			Status:  "ok",
			Version: cfg.Version,
			UptimeS: int64(time.Since(cfg.StartTime).Seconds()),
			Running: running,
		})
	}
}

func toolsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tools, err := cfg.Orchestrator.CheckTools(r.Context())
		if err != nil {
			WriteFailure(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, ToolsResponse{Tools: tools})
	}
}

func probeHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ProbeRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.Path == "" {
			WriteError(w, http.StatusBadRequest, "path is required", "BAD_REQUEST")
			return
		}

		md, err := cfg.Orchestrator.Probe(r.Context(), req.Path)
		if err != nil {
			WriteFailure(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, ProbeResponse{
			Metadata:  md,
			Supported: ffprobe.IsSupportedContainer(req.Path),
		})
	}
}

func trimHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req orchestrator.TrimRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if err := cfg.Orchestrator.Trim(r.Context(), req, nil); err != nil {
			WriteFailure(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, PathResponse{Path: req.Output})
	}
}

func convertHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req orchestrator.ConvertRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if err := cfg.Orchestrator.Convert(r.Context(), req, nil); err != nil {
			WriteFailure(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, PathResponse{Path: req.Output})
	}
}

func thumbnailHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req orchestrator.ThumbnailRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		path, err := cfg.Orchestrator.GenerateThumbnail(r.Context(), req)
		if err != nil {
			WriteFailure(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, PathResponse{Path: path})
	}
}

func audioHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req orchestrator.AudioRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		path, err := cfg.Orchestrator.ExtractAudio(r.Context(), req)
		if err != nil {
			WriteFailure(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, PathResponse{Path: path})
	}
}

func submitExportHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.ExportRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		snap, err := cfg.Sessions.Submit(req)
		if err != nil {
			WriteFailure(w, err)
			return
		}
		w.Header().Set("Location", "/exports/"+snap.ID)
		WriteJSON(w, http.StatusAccepted, ExportAcceptedResponse{ID: snap.ID, State: snap.State})
	}
}

func listExportsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, ExportsResponse{Exports: cfg.Sessions.List()})
	}
}

func getExportHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, err := cfg.Sessions.Get(chi.URLParam(r, "id"))
		if err != nil {
			WriteFailure(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, snap)
	}
}

func cancelExportHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := cfg.Sessions.Cancel(id); err != nil {
			WriteFailure(w, err)
			return
		}
		snap, err := cfg.Sessions.Get(id)
		if err != nil {
			WriteFailure(w, err)
			return
		}
		WriteJSON(w, http.StatusAccepted, snap)
	}
}

// exportEventsHandler streams job snapshots as server-sent events. Every
// snapshot is a "progress" event except the terminal one, which is sent
// as "done" before the stream ends.
func exportEventsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			WriteError(w, http.StatusInternalServerError, "streaming unsupported", "INTERNAL_ERROR")
			return
		}

		events, unsubscribe, err := cfg.Sessions.Subscribe(chi.URLParam(r, "id"))
		if err != nil {
			WriteFailure(w, err)
			return
		}
		defer unsubscribe()

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		for {
			select {
			case <-r.Context().Done():
				return
			case snap, ok := <-events:
				if !ok {
					return
				}
				data, err := json.Marshal(snap)
				if err != nil {
					return
				}
				event := "progress"
				if snap.State.Terminal() {
					event = "done"
				}
				fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", snap.Seq, event, data)
				flusher.Flush()
			}
		}
	}
}
