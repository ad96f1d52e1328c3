package ledger

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"

	"orbitfolio/domain"
	"orbitfolio/pricing"
)

// Draft the fields of a holding before it is admitted to the ledger
type Draft struct {
	Label    string
	Class    domain.AssetClass
	Zone     domain.Zone
	Quantity float64
	AvgPrice float64
}

// Form a draft as typed by a user, numbers still as text
type Form struct {
	Label    string `json:"label"`
	Class    string `json:"class"`
	Zone     string `json:"zone"`
	Quantity string `json:"quantity"`
	AvgPrice string `json:"avg_price"`
}

// Field names reported by ValidationError.
const (
	FieldLabel    = "label"
	FieldClass    = "class"
	FieldZone     = "zone"
	FieldQuantity = "quantity"
	FieldAvgPrice = "avg_price"
)

// ValidationError names the offending field of a rejected draft.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// Service the holdings ledger
type Service interface {
	Add(draft Draft) (domain.Holding, error)
	AddForm(form Form) (domain.Holding, error)
	Remove(id int64) bool
	Holdings() []domain.Holding
	Len() int
}

// ledger owns the ordered collection of holdings
type ledger struct {
	// prices gives the current price of new holdings
	prices pricing.Source

	// lock serializes mutations so they apply in call order
	lock sync.RWMutex

	holdings []domain.Holding
	lastID   int64
}

// NewService returns an empty ledger pricing new holdings with prices.
func NewService(prices pricing.Source) Service {
	return &ledger{prices: prices}
}

// Add validates draft and appends it as a new holding.
func (l *ledger) Add(draft Draft) (domain.Holding, error) {
	draft, err := validate(draft)
	if err != nil {
		return domain.Holding{}, err
	}

	l.lock.Lock()
	defer l.lock.Unlock()

	l.lastID++
	h := domain.Holding{
		ID:           l.lastID,
		Label:        strings.TrimSpace(draft.Label),
		Class:        draft.Class,
		Zone:         draft.Zone,
		Quantity:     draft.Quantity,
		AvgPrice:     draft.AvgPrice,
		CurrentPrice: l.prices.Price(draft.AvgPrice),
	}
	l.holdings = append(l.holdings, h)
	return h, nil
}

// AddForm parses form and delegates to Add.
func (l *ledger) AddForm(form Form) (domain.Holding, error) {
	draft, err := ParseForm(form)
	if err != nil {
		return domain.Holding{}, err
	}
	return l.Add(draft)
}

// Remove deletes the holding with id. It reports whether one was removed.
func (l *ledger) Remove(id int64) bool {
	l.lock.Lock()
	defer l.lock.Unlock()

	for i, h := range l.holdings {
		if h.ID == id {
			l.holdings = append(l.holdings[:i], l.holdings[i+1:]...)
			return true
		}
	}
	return false
}

// Holdings returns a copy in insertion order.
func (l *ledger) Holdings() []domain.Holding {
	l.lock.RLock()
	defer l.lock.RUnlock()

	out := make([]domain.Holding, len(l.holdings))
	copy(out, l.holdings)
	return out
}

func (l *ledger) Len() int {
	l.lock.RLock()
	defer l.lock.RUnlock()
	return len(l.holdings)
}

// validate checks d and returns it with class and zone in canonical form.
func validate(d Draft) (Draft, error) {
	if strings.TrimSpace(d.Label) == "" {
		return Draft{}, &ValidationError{Field: FieldLabel, Message: "must not be blank"}
	}
	if !positive(d.Quantity) {
		return Draft{}, &ValidationError{Field: FieldQuantity, Message: "must be a number greater than 0"}
	}
	if !positive(d.AvgPrice) {
		return Draft{}, &ValidationError{Field: FieldAvgPrice, Message: "must be a number greater than 0"}
	}
	if invested := d.Quantity * d.AvgPrice; math.IsInf(invested, 0) {
		return Draft{}, &ValidationError{Field: FieldQuantity, Message: "quantity times avg_price is too large"}
	}
	class, err := domain.ParseAssetClass(string(d.Class))
	if err != nil {
		return Draft{}, &ValidationError{Field: FieldClass, Message: err.Error()}
	}
	zone, err := domain.ParseZone(string(d.Zone))
	if err != nil {
		return Draft{}, &ValidationError{Field: FieldZone, Message: err.Error()}
	}
	d.Class, d.Zone = class, zone
	return d, nil
}

func positive(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v > 0
}

// ParseForm converts a Form into a Draft. Numeric fields that do not parse
// are reported against their field.
func ParseForm(f Form) (Draft, error) {
	class, err := domain.ParseAssetClass(f.Class)
	if err != nil {
		return Draft{}, &ValidationError{Field: FieldClass, Message: err.Error()}
	}
	zone, err := domain.ParseZone(f.Zone)
	if err != nil {
		return Draft{}, &ValidationError{Field: FieldZone, Message: err.Error()}
	}
	quantity, err := strconv.ParseFloat(strings.TrimSpace(f.Quantity), 64)
	if err != nil {
		return Draft{}, &ValidationError{Field: FieldQuantity, Message: "must be a number greater than 0"}
	}
	avg, err := strconv.ParseFloat(strings.TrimSpace(f.AvgPrice), 64)
	if err != nil {
		return Draft{}, &ValidationError{Field: FieldAvgPrice, Message: "must be a number greater than 0"}
	}
	return Draft{
		Label:    f.Label,
		Class:    class,
		Zone:     zone,
		Quantity: quantity,
		AvgPrice: avg,
	}, nil
}
