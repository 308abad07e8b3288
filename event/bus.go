// @focus: #event { bus }
package event

import (
	"errors"
	"fmt"
	"slices"

	"github.com/sirupsen/logrus"
)

// Handler consumes one emitted payload
type Handler func(payload any) error

// Subscription identifies one registered handler for Off
type Subscription struct {
	id   uint64
	typ  Type
	name string
}

// Name is the subscriber name given to On
func (s Subscription) Name() string { return s.name }

// Result is one subscriber's outcome for an Emit
type Result struct {
	Subscriber string
	Err        error
}

// Report aggregates every subscriber outcome of one Emit, in dispatch order
type Report struct {
	Type    Type
	Results []Result
}

// Failed returns the results that carry an error
func (r Report) Failed() []Result {
	var out []Result
	for _, res := range r.Results {
		if res.Err != nil {
			out = append(out, res)
		}
	}
	return out
}

// OK reports whether every subscriber succeeded
func (r Report) OK() bool {
	for _, res := range r.Results {
		if res.Err != nil {
			return false
		}
	}
	return true
}

// Err joins all subscriber errors, nil when none failed
func (r Report) Err() error {
	var errs []error
	for _, res := range r.Results {
		if res.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", res.Subscriber, res.Err))
		}
	}
	return errors.Join(errs...)
}

type subscriber struct {
	id      uint64
	name    string
	handler Handler
}

// Bus is a synchronous publish/subscribe hub
//
// Emit calls every subscriber of the type in subscription order on the caller's
// goroutine. A failing or panicking subscriber never stops the others; its error
// is logged and returned in the Report.
//
// Subscriber lists are copy-on-write so handlers may call On/Off during dispatch;
// changes apply from the next Emit. Not safe for concurrent use
type Bus struct {
	subs   map[Type][]subscriber
	nextID uint64
	log    logrus.FieldLogger
}

// NewBus creates an empty bus and makes sure built-in types are registered
func NewBus(log logrus.FieldLogger) *Bus {
	InitRegistry()
	return &Bus{
		subs: make(map[Type][]subscriber),
		log:  log.WithField("component", "event"),
	}
}

// On registers handler for t under name
func (b *Bus) On(t Type, name string, handler Handler) Subscription {
	if handler == nil {
		panic(fmt.Sprintf("event: nil handler %q for %v", name, t))
	}
	b.nextID++
	s := subscriber{id: b.nextID, name: name, handler: handler}
	b.subs[t] = append(slices.Clip(b.subs[t]), s)
	return Subscription{id: s.id, typ: t, name: name}
}

// Off removes a subscription, reporting whether it was registered
func (b *Bus) Off(sub Subscription) bool {
	list := b.subs[sub.typ]
	i := slices.IndexFunc(list, func(s subscriber) bool { return s.id == sub.id })
	if i < 0 {
		return false
	}
	next := make([]subscriber, 0, len(list)-1)
	next = append(next, list[:i]...)
	next = append(next, list[i+1:]...)
	if len(next) == 0 {
		delete(b.subs, sub.typ)
	} else {
		b.subs[sub.typ] = next
	}
	return true
}

// Emit dispatches payload to every subscriber of t
func (b *Bus) Emit(t Type, payload any) Report {
	list := b.subs[t]
	report := Report{Type: t}
	if len(list) == 0 {
		return report
	}
	report.Results = make([]Result, len(list))

	for i, s := range list {
		err := call(s.handler, payload)
		report.Results[i] = Result{Subscriber: s.name, Err: err}
		if err != nil {
			b.log.WithFields(logrus.Fields{
				"event":      t.String(),
				"subscriber": s.name,
			}).WithError(err).Error("subscriber failed")
		}
	}
	return report
}

func call(h Handler, payload any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return h(payload)
}

// HandlerCount returns the number of subscribers for t
func (b *Bus) HandlerCount(t Type) int {
	return len(b.subs[t])
}

// Subscribe registers a handler receiving the payload asserted to T
// A payload of another type is reported as that subscriber's error
func Subscribe[T any](b *Bus, t Type, name string, fn func(T) error) Subscription {
	return b.On(t, name, func(payload any) error {
		v, ok := payload.(T)
		if !ok {
			return fmt.Errorf("payload %T for %v, want %T", payload, t, *new(T))
		}
		return fn(v)
	})
}
