package addons

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
)

// TokenAction is the action name anti-forgery tokens are bound to.
const TokenAction = "vmfa_addon_action"

// Notice messages not produced by a host primitive.
const (
	MessageUpdatesRefreshed  = "Update checks refreshed."
	MessageUnknownAddon      = "Unknown add-on."
	MessageUnsupportedAction = "Unsupported action."
)

// NoticeType classifies a notice.
type NoticeType string

const (
	NoticeSuccess NoticeType = "success"
	NoticeError   NoticeType = "error"
)

// Notice is the single message reported back to the operator.
type Notice struct {
	Message string     `json:"message"`
	Type    NoticeType `json:"type"`
}

// Request is an inbound action submission.
type Request struct {
	Action  string
	Slug    string
	Token   string
	Session string
	Admin   bool
	// Actor names the operator for logs and events.
	Actor string
}

// Result is the outcome of a dispatched request. Handled is false for the
// silent no-op case.
type Result struct {
	Handled bool   `json:"handled"`
	Notice  Notice `json:"notice"`
	Action  string `json:"action,omitempty"`
	Slug    string `json:"slug,omitempty"`
}

// ActionEvent describes a dispatched action for subscribers.
type ActionEvent struct {
	Action string    `json:"action"`
	Slug   string    `json:"slug,omitempty"`
	Actor  string    `json:"actor,omitempty"`
	Notice Notice    `json:"notice"`
	At     time.Time `json:"at"`
}

// Dispatcher validates action requests and routes them to the Manager.
type Dispatcher struct {
	manager  *Manager
	tokens   TokenVerifier
	notifier Notifier
	logger   *zap.Logger
}

// NewDispatcher creates a Dispatcher. notifier may be nil.
func NewDispatcher(manager *Manager, tokens TokenVerifier, notifier Notifier, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		manager:  manager,
		tokens:   tokens,
		notifier: notifier,
		logger:   logger.Named("dispatcher"),
	}
}

// Dispatch handles one request. The returned error is non-nil only for the
// fatal cases ErrForbidden and ErrInvalidToken. Every other outcome, failed
// or not, is carried by exactly one notice in the Result.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (Result, error) {
	if req.Action == "" {
		return Result{}, nil
	}
	if !req.Admin {
		d.logger.Warn("add-on action refused", zap.String("actor", req.Actor), zap.String("reason", "not an administrator"))
		return Result{}, ErrForbidden
	}
	if !d.tokens.Verify(req.Session, TokenAction, req.Token) {
		d.logger.Warn("add-on action refused", zap.String("actor", req.Actor), zap.String("reason", "invalid token"))
		return Result{}, ErrInvalidToken
	}

	action := SanitizeKey(req.Action)
	slug := SanitizeKey(req.Slug)

	res := d.run(ctx, action, slug)
	res.Handled = true
	res.Action = action
	res.Slug = slug

	d.logger.Info("add-on action dispatched",
		zap.String("action", action),
		zap.String("slug", slug),
		zap.String("actor", req.Actor),
		zap.String("notice_type", string(res.Notice.Type)),
		zap.String("notice", res.Notice.Message),
	)
	if d.notifier != nil {
		d.notifier.Notify(ActionEvent{
			Action: action,
			Slug:   slug,
			Actor:  req.Actor,
			Notice: res.Notice,
			At:     time.Now().UTC(),
		})
	}
	return res, nil
}

func (d *Dispatcher) run(ctx context.Context, action, slug string) Result {
	if action == ActionCheckUpdates {
		d.manager.CheckUpdates()
		return Result{Notice: Notice{Message: MessageUpdatesRefreshed, Type: NoticeSuccess}}
	}

	entry, ok := Get(slug)
	if !ok {
		return Result{Notice: Notice{Message: MessageUnknownAddon, Type: NoticeError}}
	}

	label, err := d.manager.Run(ctx, action, entry)
	switch {
	case errors.Is(err, ErrUnsupportedAction):
		return Result{Notice: Notice{Message: MessageUnsupportedAction, Type: NoticeError}}
	case err != nil:
		return Result{Notice: Notice{Message: err.Error(), Type: NoticeError}}
	}
	return Result{Notice: Notice{Message: describe(entry, label), Type: NoticeSuccess}}
}

// SanitizeKey lowercases s and keeps only [a-z0-9_-].
func SanitizeKey(s string) string {
	s = strings.ToLower(s)
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '-':
			return r
		}
		return -1
	}, s)
}
