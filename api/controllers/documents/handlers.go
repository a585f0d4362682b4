package documents

import (
	"net/http"

	"github.com/domeo/backoffice/api/responses"
	"github.com/domeo/backoffice/api/validators"
	internaldocuments "github.com/domeo/backoffice/internal/documents"
	pkgerrors "github.com/domeo/backoffice/pkg/errors"
	"github.com/domeo/backoffice/pkg/logger"
	"github.com/domeo/backoffice/pkg/pagination"
)

// CreateBatch runs find-or-create for every requested document type of one cart.
// Per-type failures are part of the 200 body; only request level errors map to 4xx/5xx.
func CreateBatch(svc internaldocuments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "documents service unavailable"))
			return
		}

		var req createBatchRequest
		if err := validators.DecodeJSONBody(r, &req, validators.AllowUnknownFields()); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := req.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.CreateBatch(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteJSON(w, http.StatusOK, result)
	}
}

// Get returns one document with its line items and stored cart.
func Get(svc internaldocuments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "documents service unavailable"))
			return
		}

		id, err := validators.ParseUUIDParam(r, "documentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		doc, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toDocumentDTO(*doc, true))
	}
}

// Chain returns the ancestors, the document and its descendants.
func Chain(svc internaldocuments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "documents service unavailable"))
			return
		}

		id, err := validators.ParseUUIDParam(r, "documentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		chain, err := svc.Chain(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toChainDTO(chain))
	}
}

func List(svc internaldocuments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "documents service unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		query := r.URL.Query()
		result, err := svc.List(r.Context(), internaldocuments.ListParams{
			ClientID: validators.SanitizeString(query.Get("client_id"), validators.MaxIdentifierLen),
			Type:     query.Get("type"),
			Limit:    limit,
			Cursor:   query.Get("cursor"),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toListDTO(result))
	}
}
