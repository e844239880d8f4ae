package api

import (
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"net/url"
	"strings"
	"unicode"

	"github.com/go-chi/chi/v5"

	"github.com/vrsandeep/vmfa-addons/internal/addons"
	"github.com/vrsandeep/vmfa-addons/internal/models"
)

const (
	addonsPagePath = "/admin/addons"

	// Form fields of the action forms.
	fieldAction = "addon_action"
	fieldSlug   = "addon_slug"
	fieldToken  = "addon_nonce"

	// Query parameters carrying the notice after a redirect.
	queryNotice     = "addon_notice"
	queryNoticeType = "addon_notice_type"

	deleteConfirm = "Are you sure you want to delete this add-on? This cannot be undone."
)

var templateFuncs = template.FuncMap{
	// trusted marks markup that was sanitized when the readme was parsed.
	"trusted": func(s string) template.HTML { return template.HTML(s) },
	"sectionTitle": func(key string) string {
		title := strings.ReplaceAll(key, "_", " ")
		if title == "faq" {
			return "FAQ"
		}
		r := []rune(title)
		if len(r) > 0 {
			r[0] = unicode.ToUpper(r[0])
		}
		return string(r)
	},
}

type actionButton struct {
	Action  string
	Label   string
	Class   string
	Confirm string
}

type addonCard struct {
	addons.Row
	Actions []actionButton
}

type addonsPage struct {
	Title       string
	User        *models.User
	Notice      *addons.Notice
	Token       string
	Cards       []addonCard
	UpdateCount int
	Version     string
}

type detailsPage struct {
	Title   string
	User    *models.User
	Details addons.Details
	Author  template.HTML
}

// cardActions lists the buttons offered for an add-on in its current state.
func cardActions(row addons.Row) []actionButton {
	if !row.Status.Installed {
		return []actionButton{{Action: addons.ActionInstall, Label: "Install", Class: "button"}}
	}

	var actions []actionButton
	if row.Status.Active {
		actions = append(actions, actionButton{Action: addons.ActionDeactivate, Label: "Deactivate", Class: "button"})
	} else {
		actions = append(actions, actionButton{Action: addons.ActionActivate, Label: "Activate", Class: "button-primary"})
	}
	if row.UpdateAvailable {
		actions = append(actions, actionButton{Action: addons.ActionUpdate, Label: "Update", Class: "button"})
	}
	return append(actions, actionButton{Action: addons.ActionDelete, Label: "Delete", Class: "button-link-delete", Confirm: deleteConfirm})
}

// noticeFromQuery reads the notice a previous action redirected with.
func noticeFromQuery(q url.Values) *addons.Notice {
	message := sanitizeText(q.Get(queryNotice))
	if message == "" {
		return nil
	}
	kind := addons.NoticeSuccess
	if addons.SanitizeKey(q.Get(queryNoticeType)) == string(addons.NoticeError) {
		kind = addons.NoticeError
	}
	return &addons.Notice{Message: message, Type: kind}
}

// sanitizeText drops control characters and surrounding whitespace.
func sanitizeText(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
	return strings.TrimSpace(s)
}

func noticeRedirect(n addons.Notice) string {
	q := url.Values{}
	q.Set(queryNotice, n.Message)
	q.Set(queryNoticeType, string(n.Type))
	return addonsPagePath + "?" + q.Encode()
}

func (s *Server) handleAddonsPage(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r)
	rows := s.app.Resolver().Overview(r.Context())

	page := addonsPage{
		Title:   "Virtual Media Folders Add-ons",
		User:    user,
		Notice:  noticeFromQuery(r.URL.Query()),
		Token:   s.app.Tokens().Issue(getSessionFromContext(r), addons.TokenAction),
		Version: s.app.Version(),
	}
	for _, row := range rows {
		if row.UpdateAvailable {
			page.UpdateCount++
		}
		page.Cards = append(page.Cards, addonCard{Row: row, Actions: cardActions(row)})
	}
	s.renderPage(w, http.StatusOK, "addons.html", page)
}

func (s *Server) handleAddonDetailsPage(w http.ResponseWriter, r *http.Request) {
	details, err := s.app.Resolver().Details(r.Context(), addons.SanitizeKey(chi.URLParam(r, "slug")))
	if err != nil {
		s.renderErrorPage(w, http.StatusNotFound, addons.MessageUnknownAddon)
		return
	}
	s.renderPage(w, http.StatusOK, "details.html", detailsPage{
		Title:   details.Name,
		User:    getUserFromContext(r),
		Details: details,
		Author:  template.HTML(details.Author),
	})
}

// handleAddonAction is the form endpoint of the admin page. Every handled
// action ends in a 303 back to the listing carrying exactly one notice.
func (s *Server) handleAddonAction(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.renderErrorPage(w, http.StatusBadRequest, "The request could not be read.")
		return
	}

	user := getUserFromContext(r)
	req := addons.Request{
		Action:  r.PostFormValue(fieldAction),
		Slug:    r.PostFormValue(fieldSlug),
		Token:   r.PostFormValue(fieldToken),
		Session: getSessionFromContext(r),
		Admin:   user.IsAdmin(),
	}
	if user != nil {
		req.Actor = user.Username
	}

	res, err := s.app.Dispatcher().Dispatch(r.Context(), req)
	switch {
	case errors.Is(err, addons.ErrForbidden):
		s.renderErrorPage(w, http.StatusForbidden, addons.ForbiddenMessage)
		return
	case errors.Is(err, addons.ErrInvalidToken):
		s.renderErrorPage(w, http.StatusForbidden, addons.InvalidTokenMessage)
		return
	case err != nil:
		s.renderErrorPage(w, http.StatusInternalServerError, err.Error())
		return
	}

	if !res.Handled {
		http.Redirect(w, r, addonsPagePath, http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, noticeRedirect(res.Notice), http.StatusSeeOther)
}

// handleAddonActionJSON runs an action for API clients. The token comes
// from GET /api/admin/addons/token.
func (s *Server) handleAddonActionJSON(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Action string `json:"action"`
		Slug   string `json:"slug"`
		Token  string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if payload.Action == "" {
		RespondWithError(w, http.StatusBadRequest, "Action is required")
		return
	}

	user := getUserFromContext(r)
	res, err := s.app.Dispatcher().Dispatch(r.Context(), addons.Request{
		Action:  payload.Action,
		Slug:    payload.Slug,
		Token:   payload.Token,
		Session: getSessionFromContext(r),
		Admin:   user.IsAdmin(),
		Actor:   user.Username,
	})
	switch {
	case errors.Is(err, addons.ErrForbidden):
		RespondWithError(w, http.StatusForbidden, addons.ForbiddenMessage)
		return
	case errors.Is(err, addons.ErrInvalidToken):
		RespondWithError(w, http.StatusForbidden, addons.InvalidTokenMessage)
		return
	case err != nil:
		RespondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}
	RespondWithJSON(w, http.StatusOK, res)
}

func (s *Server) handleListAddons(w http.ResponseWriter, r *http.Request) {
	RespondWithJSON(w, http.StatusOK, s.app.Resolver().Overview(r.Context()))
}

func (s *Server) handleGetUpdateCount(w http.ResponseWriter, r *http.Request) {
	RespondWithJSON(w, http.StatusOK, map[string]int{"count": s.app.Resolver().UpdateCount(r.Context())})
}

func (s *Server) handleGetActionToken(w http.ResponseWriter, r *http.Request) {
	RespondWithJSON(w, http.StatusOK, map[string]string{
		"action": addons.TokenAction,
		"token":  s.app.Tokens().Issue(getSessionFromContext(r), addons.TokenAction),
	})
}

func (s *Server) handleGetAddonDetails(w http.ResponseWriter, r *http.Request) {
	details, err := s.app.Resolver().Details(r.Context(), addons.SanitizeKey(chi.URLParam(r, "slug")))
	if err != nil {
		RespondWithError(w, http.StatusNotFound, addons.MessageUnknownAddon)
		return
	}
	RespondWithJSON(w, http.StatusOK, details)
}
