package server

import (
	"net/http"

	"github.com/benpsk/itemboard/internal/web/pages"
)

func (h handler) boardPage(w http.ResponseWriter, r *http.Request) {
	model := pages.BoardPageModel{
		AppName:     h.appName,
		AppURL:      h.appURL,
		CSRFToken:   ensureCSRFCookie(w, r),
		CurrentUser: currentUserFromContext(r),
	}
	h.renderPage(w, r, pages.BoardPage(model))
}
