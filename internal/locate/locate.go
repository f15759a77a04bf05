// Package locate resolves the user's position for the proximity filter and maps
// failures to the messages shown to the user.
package locate

import (
	"context"
	"errors"
	"net"

	"github.com/rotisserie/eris"

	"github.com/sells-group/residence-finder/internal/model"
)

// Category classifies a geolocation failure.
type Category int

const (
	Unknown Category = iota
	PermissionDenied
	PositionUnavailable
	Timeout
	Unsupported
)

func (c Category) String() string {
	switch c {
	case PermissionDenied:
		return "permission_denied"
	case PositionUnavailable:
		return "position_unavailable"
	case Timeout:
		return "timeout"
	case Unsupported:
		return "unsupported"
	default:
		return "unknown"
	}
}

// MessagePrefix starts every categorized failure message except Unsupported.
const MessagePrefix = "No se pudo obtener tu ubicación. "

var messages = map[Category]string{
	PermissionDenied:    MessagePrefix + "Has denegado el permiso de geolocalización. Por favor, actívalo en los ajustes de tu navegador.",
	PositionUnavailable: MessagePrefix + "La información de ubicación no está disponible en este momento.",
	Timeout:             MessagePrefix + "La solicitud para obtener la ubicación ha caducado.",
	Unknown:             MessagePrefix + "Ha ocurrido un error desconocido.",
	Unsupported:         "La geolocalización no es soportada por tu navegador.",
}

// Message returns the user-facing text for c.
func (c Category) Message() string {
	if m, ok := messages[c]; ok {
		return m
	}
	return messages[Unknown]
}

// Error is a categorized geolocation failure. Error() is the user-facing message.
type Error struct {
	Category Category
	Cause    error
}

// NewError creates a failure of category c.
func NewError(c Category, cause error) *Error {
	return &Error{Category: c, Cause: cause}
}

func (e *Error) Error() string { return e.Category.Message() }

func (e *Error) Unwrap() error { return e.Cause }

// CategoryOf returns the category of err, or Unknown when err is not an *Error.
func CategoryOf(err error) Category {
	var le *Error
	if errors.As(err, &le) {
		return le.Category
	}
	return Unknown
}

// ErrNoSignal means a locator had nothing to work with for this request, so the
// next locator in a Chain should be tried.
var ErrNoSignal = eris.New("locate: no position source in request")

// Browser error codes as reported by the Geolocation API.
const (
	CodePermissionDenied    = 1
	CodePositionUnavailable = 2
	CodeTimeout             = 3
)

// Request carries every position source available for one attempt.
type Request struct {
	// Position is set when the client already resolved its coordinates.
	Position *model.Coord `json:"position,omitempty"`
	// ErrorCode is the client's geolocation error code, 0 when none.
	ErrorCode int `json:"error_code,omitempty"`
	// Unsupported is set when the client has no geolocation capability.
	Unsupported bool `json:"unsupported,omitempty"`
	// IP is the client address, used by IP-based locators.
	IP net.IP `json:"-"`
}

// Locator resolves a position.
type Locator interface {
	Locate(ctx context.Context, req Request) (model.Coord, error)
}

// ClientLocator trusts what the client reported: a position, an error code or
// the absence of geolocation support.
type ClientLocator struct{}

func (ClientLocator) Locate(_ context.Context, req Request) (model.Coord, error) {
	switch {
	case req.Position != nil:
		if !req.Position.Valid() {
			return model.Coord{}, NewError(PositionUnavailable, eris.Errorf("locate: invalid position %v", *req.Position))
		}
		return *req.Position, nil
	case req.ErrorCode != 0:
		return model.Coord{}, NewError(categoryForCode(req.ErrorCode), eris.Errorf("locate: client error code %d", req.ErrorCode))
	case req.Unsupported:
		return model.Coord{}, NewError(Unsupported, nil)
	default:
		return model.Coord{}, ErrNoSignal
	}
}

func categoryForCode(code int) Category {
	switch code {
	case CodePermissionDenied:
		return PermissionDenied
	case CodePositionUnavailable:
		return PositionUnavailable
	case CodeTimeout:
		return Timeout
	default:
		return Unknown
	}
}

// StaticLocator always returns the same coordinate.
type StaticLocator struct {
	Coord model.Coord
}

func (s StaticLocator) Locate(context.Context, Request) (model.Coord, error) {
	return s.Coord, nil
}

// Chain tries each locator in order, moving on only when one reports ErrNoSignal.
type Chain []Locator

func (c Chain) Locate(ctx context.Context, req Request) (model.Coord, error) {
	for _, l := range c {
		if err := ctx.Err(); err != nil {
			return model.Coord{}, NewError(Timeout, err)
		}
		coord, err := l.Locate(ctx, req)
		if eris.Is(err, ErrNoSignal) {
			continue
		}
		return coord, err
	}
	return model.Coord{}, NewError(PositionUnavailable, ErrNoSignal)
}
