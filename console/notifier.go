package console

import (
	"fmt"
	"io"
	"sync"

	"github.com/jrsteele09/go-auth-flow/flow"
)

// Notifier prints flow notifications, one per line
type Notifier struct {
	mu     sync.Mutex
	out    io.Writer
	colour bool
}

var _ flow.Notifier = (*Notifier)(nil)

func NewNotifier(out io.Writer, colour bool) *Notifier {
	return &Notifier{out: out, colour: colour}
}

func (n *Notifier) Notify(note flow.Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	tag := paint(n.colour, levelColours[note.Level], fmt.Sprintf("[%s]", note.Level))
	fmt.Fprintf(n.out, "%s %s\n", tag, note.Message)
}
