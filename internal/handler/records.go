package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/productstore/internal/importer"
	"github.com/vyrodovalexey/productstore/internal/model"
	"github.com/vyrodovalexey/productstore/internal/store"
)

// maxImportBytes caps an uploaded import file.
const maxImportBytes = 10 << 20

// RecordImporter merges an external file into the record store.
type RecordImporter interface {
	Import(ctx context.Context, r io.Reader) (*importer.Report, error)
}

// RecordsHandler exposes the flat-file record store. Records have no ids;
// update and delete identify their target by value.
type RecordsHandler struct {
	records  store.RecordStore
	importer RecordImporter
	notifier Notifier
	responder
}

// NewRecordsHandler creates a RecordsHandler. imp and notifier may be nil.
func NewRecordsHandler(
	records store.RecordStore,
	imp RecordImporter,
	notifier Notifier,
	logger *zap.Logger,
) *RecordsHandler {
	return &RecordsHandler{
		records:   records,
		importer:  imp,
		notifier:  notifier,
		responder: responder{logger: logger},
	}
}

// RegisterRoutes registers the /api/v1/records routes.
func (h *RecordsHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/v1/records", h.ListRecords).Methods(http.MethodGet)
	router.HandleFunc("/api/v1/records", h.InsertRecord).Methods(http.MethodPost)
	router.HandleFunc("/api/v1/records", h.UpdateRecord).Methods(http.MethodPut)
	router.HandleFunc("/api/v1/records", h.DeleteRecord).Methods(http.MethodDelete)
	if h.importer != nil {
		router.HandleFunc("/api/v1/records/import", h.ImportRecords).Methods(http.MethodPost)
	}
}

// ListRecords handles GET /api/v1/records.
func (h *RecordsHandler) ListRecords(w http.ResponseWriter, r *http.Request) {
	products, err := h.records.ListAll(r.Context())
	if err != nil {
		h.handleRecordError(w, err, "list records")
		return
	}

	h.writeJSON(w, http.StatusOK, model.NewSuccessResponse(products))
}

// InsertRecord handles POST /api/v1/records.
func (h *RecordsHandler) InsertRecord(w http.ResponseWriter, r *http.Request) {
	var input model.Product
	if !h.decodeBody(w, r, &input) {
		return
	}

	input = input.Normalized()
	if !h.validate(w, &input) {
		return
	}

	if err := h.records.Insert(r.Context(), input); err != nil {
		h.handleRecordError(w, err, "insert record")
		return
	}

	notify(h.notifier, model.NewChangeEvent(model.SourceRecords, model.ChangeInserted, &input))
	h.writeJSON(w, http.StatusCreated, model.NewSuccessResponse(input))
}

// UpdateRecord handles PUT /api/v1/records with a {"old": ..., "new": ...}
// body. The first record matching old is replaced.
func (h *RecordsHandler) UpdateRecord(w http.ResponseWriter, r *http.Request) {
	var input model.RecordUpdate
	if !h.decodeBody(w, r, &input) {
		return
	}

	old := input.Old.Normalized()
	updated := input.New.Normalized()
	if !h.validate(w, &updated) {
		return
	}

	if err := h.records.Update(r.Context(), old, updated); err != nil {
		h.handleRecordError(w, err, "update record")
		return
	}

	notify(h.notifier, model.NewChangeEvent(model.SourceRecords, model.ChangeUpdated, &updated))
	h.writeJSON(w, http.StatusOK, model.NewSuccessResponse(updated))
}

// DeleteRecord handles DELETE /api/v1/records. The body names the record to
// remove; only the first match is deleted.
func (h *RecordsHandler) DeleteRecord(w http.ResponseWriter, r *http.Request) {
	var input model.Product
	if !h.decodeBody(w, r, &input) {
		return
	}

	target := input.Normalized()
	if err := h.records.Delete(r.Context(), target); err != nil {
		h.handleRecordError(w, err, "delete record")
		return
	}

	notify(h.notifier, model.NewChangeEvent(model.SourceRecords, model.ChangeDeleted, &target))
	h.writeJSON(w, http.StatusNoContent, nil)
}

// ImportRecords handles POST /api/v1/records/import. The body is the raw
// delimited file.
func (h *RecordsHandler) ImportRecords(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, maxImportBytes)

	report, err := h.importer.Import(r.Context(), body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeError(w, http.StatusRequestEntityTooLarge, "import file too large")
			return
		}
		h.handleRecordError(w, err, "import records")
		return
	}

	event := model.NewChangeEvent(model.SourceRecords, model.ChangeImported, nil)
	event.Count = len(report.Imported)
	notify(h.notifier, event)

	h.writeJSON(w, http.StatusOK, model.NewSuccessResponse(model.ImportSummary{
		Imported: len(report.Imported),
		Skipped:  len(report.Skipped),
		Report:   report.Lines,
	}))
}

func (h *RecordsHandler) handleRecordError(w http.ResponseWriter, err error, operation string) {
	switch {
	case errors.Is(err, store.ErrNoMatch):
		h.writeError(w, http.StatusNotFound, "no matching record")
	case errors.Is(err, model.ErrInvalidPrice):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		h.logger.Warn("request canceled", zap.String("operation", operation), zap.Error(err))
		h.writeError(w, http.StatusServiceUnavailable, "request canceled")
	default:
		h.logger.Error("record store operation failed", zap.String("operation", operation), zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "record store unavailable")
	}
}
