package ui

import "context"

// Route is a navigation target understood by the front end.
type Route string

const (
	RouteSignIn       Route = "/signin"
	RouteChat         Route = "/chat"
	RouteConversation Route = "/chat/"
)

// ConversationRoute returns the route for a conversation screen.
func ConversationRoute(id string) Route {
	return RouteConversation + Route(id)
}

// Navigator moves the user to another screen.
type Navigator interface {
	Navigate(route Route)
}

// Notifier surfaces transient messages (toasts).
type Notifier interface {
	Info(message string)
	Error(message string)
}

// Confirmer asks the user to approve a destructive action.
type Confirmer interface {
	Confirm(ctx context.Context, question string) (bool, error)
}
