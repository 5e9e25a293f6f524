package cart

import "sync"

// Notifier receives the user-visible side effects of cart operations.
type Notifier interface {
	CartOpened()
	Success(message string)
	Error(message string)
}

// Notification is one user-visible message.
type Notification struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Notifications records side effects so a handler can return them to the page.
type Notifications struct {
	mu       sync.Mutex
	opened   bool
	messages []Notification
}

func (n *Notifications) CartOpened() {
	n.mu.Lock()
	n.opened = true
	n.mu.Unlock()
}

func (n *Notifications) Success(message string) {
	n.add("success", message)
}

func (n *Notifications) Error(message string) {
	n.add("error", message)
}

func (n *Notifications) add(kind, message string) {
	n.mu.Lock()
	n.messages = append(n.messages, Notification{Kind: kind, Message: message})
	n.mu.Unlock()
}

// Opened reports whether an operation asked for the cart view to open.
func (n *Notifications) Opened() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.opened
}

// Messages returns a copy of the recorded notifications.
func (n *Notifications) Messages() []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]Notification, len(n.messages))
	copy(out, n.messages)
	return out
}

type nopNotifier struct{}

func (nopNotifier) CartOpened()    {}
func (nopNotifier) Success(string) {}
func (nopNotifier) Error(string)   {}
