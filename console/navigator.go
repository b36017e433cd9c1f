package console

import (
	"sync"

	"github.com/jrsteele09/go-auth-flow/flow"
)

// Navigator records where the flow sent the user and signals Arrived
type Navigator struct {
	once    sync.Once
	mu      sync.Mutex
	target  string
	arrived chan struct{}
}

var _ flow.Navigator = (*Navigator)(nil)

func NewNavigator() *Navigator {
	return &Navigator{arrived: make(chan struct{})}
}

func (n *Navigator) Navigate(path string) {
	n.mu.Lock()
	n.target = path
	n.mu.Unlock()
	n.once.Do(func() { close(n.arrived) })
}

// Arrived is closed on the first navigation
func (n *Navigator) Arrived() <-chan struct{} {
	return n.arrived
}

func (n *Navigator) Target() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.target
}
