package controllers

import (
	"net/http"

	"github.com/domeo/backoffice/api/responses"
	"github.com/domeo/backoffice/api/validators"
	"github.com/domeo/backoffice/internal/notifications"
	pkgerrors "github.com/domeo/backoffice/pkg/errors"
	"github.com/domeo/backoffice/pkg/logger"
	"github.com/domeo/backoffice/pkg/pagination"
)

type notificationDTO struct {
	ID             string  `json:"id"`
	Kind           string  `json:"kind"`
	Title          string  `json:"title"`
	Message        string  `json:"message"`
	DocumentID     *string `json:"document_id,omitempty"`
	DocumentNumber *string `json:"document_number,omitempty"`
	ReadAt         *string `json:"read_at"`
	CreatedAt      string  `json:"created_at"`
}

type notificationListDTO struct {
	Items  []notificationDTO `json:"items"`
	Cursor string            `json:"cursor,omitempty"`
}

// ListNotifications returns paginated notifications addressed to client_id.
func ListNotifications(svc notifications.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "notifications service unavailable"))
			return
		}

		clientID, err := validators.RequireQuery(r, "client_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		unread, err := validators.ParseQueryBool(r, "unread")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.List(r.Context(), notifications.ListParams{
			ClientID:   clientID,
			Limit:      limit,
			Cursor:     r.URL.Query().Get("cursor"),
			UnreadOnly: unread,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := notificationListDTO{Items: make([]notificationDTO, 0, len(result.Items)), Cursor: result.Cursor}
		for _, n := range result.Items {
			dto := notificationDTO{
				ID:             n.ID.String(),
				Kind:           string(n.Kind),
				Title:          n.Title,
				Message:        n.Message,
				DocumentNumber: n.DocumentNumber,
				CreatedAt:      formatTime(n.CreatedAt),
			}
			if n.DocumentID != nil {
				id := n.DocumentID.String()
				dto.DocumentID = &id
			}
			if n.ReadAt != nil {
				readAt := formatTime(*n.ReadAt)
				dto.ReadAt = &readAt
			}
			out.Items = append(out.Items, dto)
		}
		responses.WriteSuccess(w, out)
	}
}

// MarkNotificationRead marks a single notification as read.
func MarkNotificationRead(svc notifications.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "notifications service unavailable"))
			return
		}

		clientID, err := validators.RequireQuery(r, "client_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		notificationID, err := validators.ParseUUIDParam(r, "notificationId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.MarkRead(r.Context(), clientID, notificationID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]bool{"read": true})
	}
}

// MarkAllNotificationsRead marks every unread notification of client_id as read.
func MarkAllNotificationsRead(svc notifications.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "notifications service unavailable"))
			return
		}

		clientID, err := validators.RequireQuery(r, "client_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		count, err := svc.MarkAllRead(r.Context(), clientID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]int64{"updated": count})
	}
}
