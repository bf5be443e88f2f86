package core

// Logger is the app-wide leveled logger. Implementations may forward entries
// to an error tracker; a user.User passed among args identifies the person.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}
