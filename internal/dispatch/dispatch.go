// Package dispatch performs one mutating backend call on behalf of a user
// gesture, then either refreshes the affected views or reports the failure.
package dispatch

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/go-faster/errors"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/phillip-england/hrms/internal/apiclient"
	"github.com/phillip-england/hrms/internal/notify"
	"github.com/phillip-england/hrms/internal/session"
)

var actionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "hrms",
	Subsystem: "dispatch",
	Name:      "actions_total",
	Help:      "Dispatched actions broken down by action and result.",
}, []string{"action", "result"})

type Fetcher interface {
	Call(ctx context.Context, sess *session.Session, method, path string, body any) (apiclient.Envelope, error)
}

// Action is one backend mutation. Label reads as a verb phrase
// ("approve leave request") and appears in notifications.
type Action struct {
	Name   string
	Label  string
	Method string
	Path   string
	Body   any
}

// RefreshFunc re-binds whatever views the action affects.
type RefreshFunc func(ctx context.Context)

type Result struct {
	Envelope  apiclient.Envelope
	Err       error
	Refreshed bool
	// Shared is set when an identical in-flight action already carried
	// this request and its outcome was reused.
	Shared bool
}

type Dispatcher struct {
	fetcher  Fetcher
	validate *validator.Validate
	logger   *logrus.Logger
	inflight singleflight.Group
}

func New(fetcher Fetcher, logger *logrus.Logger) *Dispatcher {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Dispatcher{fetcher: fetcher, validate: NewValidator(), logger: logger}
}

// NewValidator reports field names by their form or json tag.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		for _, key := range []string{"form", "json"} {
			name := strings.Split(field.Tag.Get(key), ",")[0]
			if name != "" && name != "-" {
				return name
			}
		}
		return field.Name
	})
	return v
}

// Dispatch validates the payload, sends the request once, and on success
// refreshes then raises a success notification. Failures raise one error
// notification and skip the refresh.
func (d *Dispatcher) Dispatch(ctx context.Context, sess *session.Session, action Action, sink notify.Notifier, refresh RefreshFunc) Result {
	log := d.logger.WithFields(logrus.Fields{
		"action": action.Name,
		"method": action.Method,
		"path":   action.Path,
	})

	if err := d.check(action.Body); err != nil {
		log.WithError(err).Info("action rejected")
		actionsTotal.WithLabelValues(action.Name, "invalid").Inc()
		notifyFailure(sink, action, err.Error())
		return Result{Err: err}
	}

	key := flightKey(sess, action)
	value, _, shared := d.inflight.Do(key, func() (any, error) {
		env, err := d.fetcher.Call(ctx, sess, action.Method, action.Path, action.Body)
		if err != nil {
			log.WithError(err).Warn("action failed")
			actionsTotal.WithLabelValues(action.Name, "failed").Inc()
			notifyFailure(sink, action, apiclient.UserMessage(err))
			return Result{Envelope: env, Err: err}, nil
		}

		actionsTotal.WithLabelValues(action.Name, "succeeded").Inc()
		res := Result{Envelope: env}
		if refresh != nil {
			refresh(ctx)
			res.Refreshed = true
		}
		if sink != nil {
			message := strings.TrimSpace(env.Message)
			if message == "" {
				message = capitalize(action.Label) + " succeeded"
			}
			sink.Notify(message, notify.KindSuccess)
		}
		log.Debug("action succeeded")
		return res, nil
	})

	res := value.(Result)
	if shared {
		res.Shared = true
	}
	return res
}

func (d *Dispatcher) check(body any) error {
	if body == nil {
		return nil
	}
	v := reflect.ValueOf(body)
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil
	}
	err := d.validate.Struct(body)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return &InvalidError{Field: verrs[0].Field(), Tag: verrs[0].Tag(), Param: verrs[0].Param()}
	}
	return errors.Wrap(err, "validate")
}

// InvalidError reports the first field that failed validation.
type InvalidError struct {
	Field string
	Tag   string
	Param string
}

func (e *InvalidError) Error() string {
	switch e.Tag {
	case "required":
		return e.Field + " is required"
	case "email":
		return e.Field + " must be a valid email"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", e.Field, e.Param)
	case "gt", "gte", "min":
		return fmt.Sprintf("%s must be at least %s", e.Field, e.Param)
	case "gtefield", "gtfield":
		return fmt.Sprintf("%s must not be before %s", e.Field, e.Param)
	case "datetime":
		return e.Field + " must be a date (YYYY-MM-DD)"
	default:
		return e.Field + " is invalid"
	}
}

func notifyFailure(sink notify.Notifier, action Action, message string) {
	if sink == nil {
		return
	}
	if strings.TrimSpace(message) == "" {
		message = "request failed"
	}
	sink.Notify(fmt.Sprintf("Failed to %s: %s", action.Label, message), notify.KindError)
}

func flightKey(sess *session.Session, action Action) string {
	id := ""
	if sess != nil {
		id = sess.ID
	}
	return id + "\x00" + strings.ToUpper(action.Method) + "\x00" + action.Path
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
