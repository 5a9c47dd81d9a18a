package api

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/bornholm/trainyard/internal/failure"
	"github.com/bornholm/trainyard/internal/job"
	"github.com/bornholm/trainyard/internal/slogx"
	"github.com/bornholm/trainyard/internal/store"
)

type JobResponse struct {
	Job *store.Job `json:"job"`
}

// JobDispatchFailedResponse carries the persisted job when it could not be
// enqueued, so that the client can restart it later.
type JobDispatchFailedResponse struct {
	Error string     `json:"error"`
	Job   *store.Job `json:"job"`
}

// writeJobResult writes a job produced by create or restart. A job returned
// along with an error is persisted but was not dispatched.
func (h *Handler) writeJobResult(w http.ResponseWriter, r *http.Request, j *store.Job, err error) {
	if err == nil {
		writeJSONResponse(w, http.StatusCreated, JobResponse{Job: j})
		return
	}

	if j == nil || !errors.Is(err, failure.ErrUpstreamUnavailable) {
		h.writeError(w, r, err)
		return
	}

	h.logger.ErrorContext(r.Context(), "job persisted but not dispatched", slog.Uint64("job_id", uint64(j.ID)), slogx.Error(err))

	writeJSONResponse(w, failure.StatusCode(err), JobDispatchFailedResponse{Error: err.Error(), Job: j})
}

// handleJobCreate handles POST /api/jobs
func (h *Handler) handleJobCreate(w http.ResponseWriter, r *http.Request) {
	var req job.Request
	if err := parseJSONRequest(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	created, err := h.jobs.Create(r.Context(), req)
	h.writeJobResult(w, r, created, err)
}

// handleJobList handles GET /api/jobs?limit=&offset=
func (h *Handler) handleJobList(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	offset, err := queryInt(r, "offset")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	jobs, err := h.jobs.List(r.Context(), limit, offset)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, jobs)
}

func (h *Handler) handleJobGet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	j, err := h.jobs.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, j)
}

// handleJobLogs handles GET /api/jobs/{id}/logs
func (h *Handler) handleJobLogs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	logs, err := h.jobs.Logs(ctx, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	defer logs.Close()

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, logs); err != nil {
		h.logger.WarnContext(ctx, "could not write job logs", slog.Uint64("job_id", uint64(id)), slogx.Error(err))
	}
}

// handleJobStream handles GET /api/jobs/{id}/stream as server-sent events
func (h *Handler) handleJobStream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if _, err := h.jobs.Get(ctx, id); err != nil {
		h.writeError(w, r, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.writeError(w, r, errors.New("response writer does not support flushing"))
		return
	}

	sub := h.relay.Join(id)
	defer sub.Leave()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	keepAlive := time.NewTicker(h.opts.StreamKeepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-keepAlive.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()

		case payload, open := <-sub.Messages():
			if !open {
				return
			}

			if err := writeEvent(w, payload); err != nil {
				h.logger.DebugContext(ctx, "log stream interrupted", slog.Uint64("job_id", uint64(id)), slogx.Error(err))
				return
			}
			flusher.Flush()
		}
	}
}

// writeEvent writes the payload as one event, one data field per line.
func writeEvent(w io.Writer, payload string) error {
	var sb strings.Builder

	for _, line := range strings.Split(strings.TrimRight(payload, "\n"), "\n") {
		sb.WriteString("data: ")
		sb.WriteString(strings.TrimSuffix(line, "\r"))
		sb.WriteString("\n")
	}

	sb.WriteString("\n")

	_, err := io.WriteString(w, sb.String())

	return errors.WithStack(err)
}

func (h *Handler) handleJobStop(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	stopped, err := h.jobs.Stop(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, JobResponse{Job: stopped})
}

func (h *Handler) handleJobRestart(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	restarted, err := h.jobs.Restart(r.Context(), id)
	h.writeJobResult(w, r, restarted, err)
}

func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}

	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return 0, failure.InvalidInput("invalid %s '%s'", name, raw)
	}

	return value, nil
}
