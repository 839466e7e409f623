package commands

import (
	"fmt"
	"io"
	"sync"

	"github.com/bhandras/delight/rtc/internal/call"
	"github.com/bhandras/delight/rtc/internal/locus"
	"github.com/bhandras/delight/rtc/internal/message"
)

// printer serializes human readable event lines onto one writer.
type printer struct {
	mu sync.Mutex
	w  io.Writer
}

func (p *printer) printf(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, format+"\n", args...)
}

func (p *printer) callObserver() call.Observer {
	return call.ObserverFuncs{
		Ringing: func(c *call.Call) {
			p.printf("%s ringing (%s)", c.URL(), c.Direction())
		},
		Waiting: func(c *call.Call, reason call.WaitReason) {
			p.printf("%s waiting: %s", c.URL(), reason)
		},
		Connected: func(c *call.Call) {
			p.printf("%s connected", c.URL())
		},
		Disconnected: func(c *call.Call, reason call.DisconnectReason) {
			p.printf("%s disconnected: %s", c.URL(), reason)
		},
		MembershipChanged: func(c *call.Call, ev call.MembershipEvent) {
			name := ev.Membership.DisplayName
			if name == "" {
				name = ev.Membership.ID
			}
			p.printf("%s %s: %s", c.URL(), ev.Kind, name)
		},
		MediaChanged: func(c *call.Call, ev call.MediaEvent) {
			p.printf("%s media %s on=%t", c.URL(), ev.Kind, ev.On)
		},
		CapabilitiesChanged: func(c *call.Call, caps call.Capabilities) {
			p.printf("%s capabilities host=%t let-in=%t share=%t locked=%t",
				c.URL(), caps.IsHost, caps.CanLetIn, caps.CanShare, caps.Locked)
		},
		ScheduleChanged: func(c *call.Call, meetings []locus.Meeting) {
			for _, m := range meetings {
				p.printf("%s scheduled %s %s..%s", c.URL(), m.Title, m.StartTime, m.EndTime)
			}
		},
	}
}

func (p *printer) messageEvent(ev message.Event) {
	switch ev.Kind {
	case message.EventDeleted:
		p.printf("space %s: message %s deleted", ev.Message.SpaceID, ev.DeletedID)
	default:
		p.mu.Lock()
		fmt.Fprintf(p.w, "space %s %s: ", ev.Message.SpaceID, ev.Kind)
		printMessage(p.w, ev.Message)
		p.mu.Unlock()
	}
}
