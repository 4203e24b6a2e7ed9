package logsvc

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"

	"github.com/alphazero/academy/core"
)

// RollbarLogger prints to a standard logger and reports to Rollbar when a token is configured.
//
// Args may carry an error, a map[string]interface{} of extra fields, or a core.Actor naming the
// person behind the event. Anything else is reported as {"arg": value}.
type RollbarLogger struct {
	std   *log.Logger
	debug bool
}

var _ core.Logger = (*RollbarLogger)(nil)

func NewRollbarLogger(std *log.Logger, conf *core.Config) *RollbarLogger {
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Server.Host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(errors.StackTracer)
	rollbar.SetCustom(map[string]interface{}{"app": conf.AppName})
	rollbar.SetEnabled(conf.RollbarToken != "" && conf.Env != "DEV" && conf.Env != "TEST")
	return &RollbarLogger{std: std, debug: conf.Debug}
}

// New returns a logger writing to stdout with the given prefix ("API : ", "DB : ", ...).
// Test runs stay silent.
func New(prefix string, conf *core.Config) *RollbarLogger {
	var out io.Writer = os.Stdout
	if conf.TestMode {
		out = io.Discard
	}
	return NewRollbarLogger(log.New(out, prefix, log.LstdFlags|log.Lmicroseconds|log.Lshortfile), conf)
}

func actorRoles(a core.Actor) string {
	var roles []string
	if a.Admin {
		roles = append(roles, "admin")
	}
	if a.Teacher {
		roles = append(roles, "teacher")
	}
	if a.Student {
		roles = append(roles, "student")
	}
	return strings.Join(roles, ",")
}

// report splits args into the Rollbar payload and the lines printed locally.
func (l *RollbarLogger) report(msg string, args []interface{}) (payload []interface{}, lines []string) {
	payload = append(make([]interface{}, 0, len(args)+1), msg)
	var person *core.Actor
	for _, arg := range args {
		switch a := arg.(type) {
		case core.Actor:
			if person == nil && a.ID != "" {
				person = &a
				lines = append(lines, fmt.Sprintf("actor=%s roles=%s", a.ID, actorRoles(a)))
			}
		case error:
			payload = append(payload, a)
			lines = append(lines, fmt.Sprintf("%+v", a))
		case map[string]interface{}:
			payload = append(payload, a)
			lines = append(lines, fmt.Sprint(a))
		default:
			payload = append(payload, map[string]interface{}{"arg": fmt.Sprint(a)})
			lines = append(lines, fmt.Sprint(a))
		}
	}
	if person != nil {
		rollbar.SetPerson(person.ID, actorRoles(*person), "")
	} else {
		rollbar.ClearPerson()
	}
	return payload, lines
}

func (l *RollbarLogger) print(msg string, lines []string) {
	_ = l.std.Output(3, msg)
	for _, line := range lines {
		_ = l.std.Output(3, "\t"+line)
	}
}

// Debug is a no-op unless the DEBUG setting is on.
func (l *RollbarLogger) Debug(msg string, args ...interface{}) {
	if !l.debug {
		return
	}
	payload, lines := l.report(msg, args)
	rollbar.Debug(payload...)
	l.print(msg, lines)
}

func (l *RollbarLogger) Info(msg string, args ...interface{}) {
	payload, lines := l.report(msg, args)
	rollbar.Info(payload...)
	l.print(msg, lines)
}

func (l *RollbarLogger) Warn(msg string, args ...interface{}) {
	payload, lines := l.report(msg, args)
	rollbar.Warning(payload...)
	l.print(msg, lines)
}

func (l *RollbarLogger) Error(msg string, args ...interface{}) {
	payload, lines := l.report(msg, args)
	rollbar.Error(payload...)
	l.print(msg, lines)
}

// Fatal reports, flushes Rollbar and exits.
func (l *RollbarLogger) Fatal(msg string, args ...interface{}) {
	payload, lines := l.report(msg, args)
	rollbar.Critical(payload...)
	l.print(msg, lines)
	rollbar.Wait()
	l.std.Fatal(msg)
}
