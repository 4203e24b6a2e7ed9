package core

// Logger is implemented by every log sink of the application.
// args may hold errors, maps of extras and the user.User the record is about.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}
