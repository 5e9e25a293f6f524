package cart

import "fmt"

// StateKind enumerates the lifecycle of the persisted cart id.
type StateKind int

const (
	// NoCart: no id persisted; the next add creates a cart.
	NoCart StateKind = iota
	// Active: the id refers to a live remote cart.
	Active
	// Recovering: the backend rejected the id during an add and a replacement is being created.
	Recovering
)

func (k StateKind) String() string {
	switch k {
	case NoCart:
		return "no-cart"
	case Active:
		return "active"
	case Recovering:
		return "recovering"
	default:
		return fmt.Sprintf("StateKind(%d)", int(k))
	}
}

// State is the cart id lifecycle as a tagged variant. CartID is set only when Kind is Active.
type State struct {
	Kind   StateKind
	CartID string
}

func noCart() State { return State{Kind: NoCart} }

func active(id string) State { return State{Kind: Active, CartID: id} }

func recovering() State { return State{Kind: Recovering} }

func (s State) String() string {
	if s.Kind == Active {
		return "active(" + s.CartID + ")"
	}
	return s.Kind.String()
}
