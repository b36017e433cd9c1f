// Package guard decides what a navigation to a route should show, based on the session.
package guard

import (
	"context"
	"fmt"
)

// Outcome of a guard check
type Outcome int

const (
	Render Outcome = iota
	Wait
	Redirect
	Nothing
	NotFound
)

func (o Outcome) String() string {
	switch o {
	case Render:
		return "render"
	case Wait:
		return "wait"
	case Redirect:
		return "redirect"
	case Nothing:
		return "nothing"
	case NotFound:
		return "not-found"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Decision for one navigation. To is set for redirects; From is the attempted
// destination to return to after signing in.
type Decision struct {
	Outcome Outcome
	To      string
	From    string
}

type Guard interface {
	Check(ctx context.Context, target string) Decision
}
