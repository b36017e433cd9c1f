package flow

// Level of a user facing notification
type Level int

const (
	LevelInfo Level = iota
	LevelSuccess
	LevelWarning
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelInfo:
		return "info"
	case LevelSuccess:
		return "success"
	case LevelWarning:
		return "warning"
	case LevelError:
		return "error"
	default:
		return "unknown"
	}
}

// Notification is a transient, dismissible message
type Notification struct {
	Level   Level
	Message string
}

// Notifier shows notifications. It is called from the controller's loop and must not call back into it.
type Notifier interface {
	Notify(Notification)
}

// Navigator leaves the wizard once the user is signed in
type Navigator interface {
	Navigate(path string)
}

// NotifierFunc adapts a function to Notifier
type NotifierFunc func(Notification)

func (f NotifierFunc) Notify(n Notification) { f(n) }

// NavigatorFunc adapts a function to Navigator
type NavigatorFunc func(path string)

func (f NavigatorFunc) Navigate(path string) { f(path) }

type nopNotifier struct{}

func (nopNotifier) Notify(Notification) {}

type nopNavigator struct{}

func (nopNavigator) Navigate(string) {}
