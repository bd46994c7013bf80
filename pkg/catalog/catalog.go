package catalog

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/shopspring/decimal"
)

var (
	ErrUnknownTechnology   = errors.New("unknown technology")
	ErrUnknownTerminal     = errors.New("unknown terminal")
	ErrUnknownSubscription = errors.New("unknown subscription")
	ErrUnknownService      = errors.New("unknown service")
)

// Catalog is an immutable snapshot of the reference data. Entities live in owned
// slices and are reached through id indexes; terminals refer to technologies by id.
type Catalog struct {
	technologies  []Technology
	terminals     []Terminal
	subscriptions []Subscription
	services      []Service

	technologyIdx   map[TechnologyID]int
	terminalIdx     map[TerminalID]int
	subscriptionIdx map[SubscriptionID]int
	serviceIdx      map[ServiceID]int
}

// Data is the raw content a Catalog is built from.
type Data struct {
	Technologies  []Technology
	Terminals     []Terminal
	Subscriptions []Subscription
	Services      []Service
}

// New validates d and builds a catalog snapshot from it.
func New(d Data) (*Catalog, error) {
	c := &Catalog{
		technologyIdx:   make(map[TechnologyID]int, len(d.Technologies)),
		terminalIdx:     make(map[TerminalID]int, len(d.Terminals)),
		subscriptionIdx: make(map[SubscriptionID]int, len(d.Subscriptions)),
		serviceIdx:      make(map[ServiceID]int, len(d.Services)),
	}

	one := decimal.NewFromInt(1)
	for _, t := range d.Technologies {
		if t.ID == "" {
			return nil, fmt.Errorf("technology without name")
		}
		if _, dup := c.technologyIdx[t.ID]; dup {
			return nil, fmt.Errorf("duplicate technology %q", t.ID)
		}
		if t.MaximumThroughput != nil && *t.MaximumThroughput <= 0 {
			return nil, fmt.Errorf("technology %q: maximum throughput must be positive", t.ID)
		}
		for _, p := range t.ThroughputPercentages {
			if p.Value.IsNegative() || p.Value.GreaterThan(one) {
				return nil, fmt.Errorf("technology %q: percentage %s outside [0,1]", t.ID, p.Value)
			}
		}
		t.ThroughputPercentages = append([]ThroughputPercentage(nil), t.ThroughputPercentages...)
		c.technologyIdx[t.ID] = len(c.technologies)
		c.technologies = append(c.technologies, t)
	}

	for _, term := range d.Terminals {
		if term.ID == "" {
			return nil, fmt.Errorf("terminal without name")
		}
		if _, dup := c.terminalIdx[term.ID]; dup {
			return nil, fmt.Errorf("duplicate terminal %q", term.ID)
		}
		for _, tid := range term.Technologies {
			if _, ok := c.technologyIdx[tid]; !ok {
				return nil, fmt.Errorf("terminal %q: %w %q", term.ID, ErrUnknownTechnology, tid)
			}
		}
		term.Technologies = append([]TechnologyID(nil), term.Technologies...)
		c.terminalIdx[term.ID] = len(c.terminals)
		c.terminals = append(c.terminals, term)
	}

	for _, s := range d.Subscriptions {
		if s.ID == "" {
			return nil, fmt.Errorf("subscription without id")
		}
		if _, dup := c.subscriptionIdx[s.ID]; dup {
			return nil, fmt.Errorf("duplicate subscription %q", s.ID)
		}
		if s.BasicFee < 0 || s.MinutesIncluded < 0 || s.PricePerExtraMinute < 0 || s.DataVolumeCap < 0 {
			return nil, fmt.Errorf("subscription %q: fees and allowances must be non-negative", s.ID)
		}
		c.subscriptionIdx[s.ID] = len(c.subscriptions)
		c.subscriptions = append(c.subscriptions, s)
	}

	for _, svc := range d.Services {
		if svc.ID == "" {
			return nil, fmt.Errorf("service without id")
		}
		if _, dup := c.serviceIdx[svc.ID]; dup {
			return nil, fmt.Errorf("duplicate service %q", svc.ID)
		}
		if !svc.Type.Valid() {
			return nil, fmt.Errorf("service %q: unknown type %q", svc.ID, svc.Type)
		}
		if svc.RequiredDataRate.IsNegative() {
			return nil, fmt.Errorf("service %q: required data rate must be non-negative", svc.ID)
		}
		c.serviceIdx[svc.ID] = len(c.services)
		c.services = append(c.services, svc)
	}

	return c, nil
}

// Technology returns the technology with the given id.
func (c *Catalog) Technology(id TechnologyID) (Technology, error) {
	i, ok := c.technologyIdx[id]
	if !ok {
		return Technology{}, fmt.Errorf("%w: %q", ErrUnknownTechnology, id)
	}
	return c.technologies[i], nil
}

// Terminal returns the terminal with the given id.
func (c *Catalog) Terminal(id TerminalID) (Terminal, error) {
	i, ok := c.terminalIdx[id]
	if !ok {
		return Terminal{}, fmt.Errorf("%w: %q", ErrUnknownTerminal, id)
	}
	return c.terminals[i], nil
}

// Subscription returns the subscription with the given id.
func (c *Catalog) Subscription(id SubscriptionID) (Subscription, error) {
	i, ok := c.subscriptionIdx[id]
	if !ok {
		return Subscription{}, fmt.Errorf("%w: %q", ErrUnknownSubscription, id)
	}
	return c.subscriptions[i], nil
}

// Service returns the service with the given id.
func (c *Catalog) Service(id ServiceID) (Service, error) {
	i, ok := c.serviceIdx[id]
	if !ok {
		return Service{}, fmt.Errorf("%w: %q", ErrUnknownService, id)
	}
	return c.services[i], nil
}

// SupportedTechnologies resolves the technologies of a terminal in declaration order.
func (c *Catalog) SupportedTechnologies(term Terminal) []Technology {
	techs := make([]Technology, 0, len(term.Technologies))
	for _, id := range term.Technologies {
		if i, ok := c.technologyIdx[id]; ok {
			techs = append(techs, c.technologies[i])
		}
	}
	return techs
}

// SupportsVoice reports whether any technology of the terminal carries voice calls.
func (c *Catalog) SupportsVoice(term Terminal) bool {
	for _, t := range c.SupportedTechnologies(term) {
		if t.VoiceCallSupport {
			return true
		}
	}
	return false
}

func (c *Catalog) Technologies() []Technology {
	return append([]Technology(nil), c.technologies...)
}

func (c *Catalog) Terminals() []Terminal {
	return append([]Terminal(nil), c.terminals...)
}

func (c *Catalog) Subscriptions() []Subscription {
	return append([]Subscription(nil), c.subscriptions...)
}

func (c *Catalog) Services() []Service {
	return append([]Service(nil), c.services...)
}

// Provider hands out the current catalog snapshot. Callers take one snapshot per
// operation so references stay stable for its whole duration.
type Provider interface {
	Current() *Catalog
}

// Store is a Provider whose snapshot can be swapped atomically, e.g. on reload.
type Store struct {
	v atomic.Pointer[Catalog]
}

// NewStore creates a Store serving c.
func NewStore(c *Catalog) *Store {
	s := &Store{}
	s.v.Store(c)
	return s
}

// Current returns the active snapshot.
func (s *Store) Current() *Catalog {
	return s.v.Load()
}

// Replace swaps in a new snapshot. Operations already holding the old one keep it.
func (s *Store) Replace(c *Catalog) {
	s.v.Store(c)
}
