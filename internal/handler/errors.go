package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/auth-service/internal/apperr"
)

// errorItem is one entry of the uniform error body
// {"errors":[{"type","msg","path","location"}]}.
type errorItem struct {
	Type     string `json:"type"`
	Msg      string `json:"msg"`
	Path     string `json:"path,omitempty"`
	Location string `json:"location,omitempty"`
}

type errorBody struct {
	Errors []errorItem `json:"errors"`
}

// ErrorHandler is the echo HTTPErrorHandler.  It is the only place that
// turns errors into responses.  5xx details go to the log, never to the
// client.
func ErrorHandler(log logrus.FieldLogger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		status, body := render(err)
		if status >= http.StatusInternalServerError {
			log.WithError(err).WithFields(logrus.Fields{
				"method": c.Request().Method,
				"uri":    c.Request().RequestURI,
			}).Error("request failed")
		}
		if c.Request().Method == http.MethodHead {
			err = c.NoContent(status)
		} else {
			err = c.JSON(status, body)
		}
		if err != nil {
			log.WithError(err).Warn("write error response")
		}
	}
}

func render(err error) (int, errorBody) {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		status := ae.Kind.Status()
		if status >= http.StatusInternalServerError {
			return status, single(ae.Kind.String(), "internal server error")
		}
		if ae.Kind == apperr.KindValidation && len(ae.Violations) > 0 {
			items := make([]errorItem, 0, len(ae.Violations))
			for _, v := range ae.Violations {
				items = append(items, errorItem{Type: ae.Kind.String(), Msg: v.Message, Path: v.Field, Location: v.Location})
			}
			return status, errorBody{Errors: items}
		}
		return status, single(ae.Kind.String(), ae.Message)
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		if he.Code >= http.StatusInternalServerError {
			return he.Code, single(apperr.KindInternal.String(), "internal server error")
		}
		return he.Code, single(typeForStatus(he.Code), fmt.Sprint(he.Message))
	}

	return http.StatusInternalServerError, single(apperr.KindInternal.String(), "internal server error")
}

func single(typ, msg string) errorBody {
	return errorBody{Errors: []errorItem{{Type: typ, Msg: msg}}}
}

func typeForStatus(code int) string {
	switch code {
	case http.StatusBadRequest:
		return apperr.KindValidation.String()
	case http.StatusUnauthorized:
		return apperr.KindAuthentication.String()
	case http.StatusForbidden:
		return apperr.KindAuthorization.String()
	case http.StatusNotFound:
		return apperr.KindNotFound.String()
	default:
		return "RequestError"
	}
}
