// Package registry maintains the in-memory table of probes discovered
// during a scan session: one record per device identity, deduplicated,
// in stable insertion order.
package registry

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/russellvd/probefinder/internal/probe"
	"github.com/russellvd/probefinder/internal/transport"
)

// Record is the registry's view of one discovered probe. RSSI and the
// raw manufacturer payload always reflect the most recent
// advertisement; earlier values are overwritten, never averaged.
type Record struct {
	ID               string          `json:"id"`
	Name             string          `json:"name,omitempty"`
	RSSI             int             `json:"rssi"`
	ManufacturerData []byte          `json:"manufacturerData,omitempty"`
	Identity         *probe.Identity `json:"identity,omitempty"`
	LastSeen         time.Time       `json:"lastSeen"`
}

// DisplayName returns the best human-readable name for the record:
// advertised name, then decoded model name, then the unknown fallback.
// A record whose payload never decoded is a defined "Unknown" case,
// not an error.
func (r *Record) DisplayName() string {
	if r.Name != "" {
		return r.Name
	}
	if r.Identity != nil {
		return r.Identity.ModelName()
	}
	return probe.UnknownModelName
}

// Proximity classifies the record's latest RSSI reading.
func (r *Record) Proximity() probe.Proximity {
	return probe.Classify(r.RSSI)
}

// Registry is safe for interleaved ApplyAdvertisement and List calls.
// A single lock guards each operation; nothing holds it across a
// transport call.
type Registry struct {
	mu      sync.RWMutex
	records *orderedmap.OrderedMap[string, *Record]
	logger  *logrus.Logger
}

// New creates an empty Registry.
func New(logger *logrus.Logger) *Registry {
	if logger == nil {
		logger = logrus.New()
	}
	return &Registry{
		records: orderedmap.New[string, *Record](),
		logger:  logger,
	}
}

// ApplyAdvertisement merges one advertisement into the registry. A new
// identity inserts a record; a known one updates in place without
// changing its position. When a manufacturer payload is present it is
// replaced wholesale and re-decoded; a decode failure keeps the
// previously decoded identity and the record itself.
func (r *Registry) ApplyAdvertisement(adv transport.Advertisement) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, known := r.records.Get(adv.ID)
	if !known {
		rec = &Record{ID: adv.ID}
		r.records.Set(adv.ID, rec)
		r.logger.WithFields(logrus.Fields{
			"device": adv.ID,
			"name":   adv.LocalName,
			"rssi":   adv.RSSI,
		}).Info("Discovered new probe")
	}

	rec.RSSI = adv.RSSI
	rec.LastSeen = time.Now()
	if adv.LocalName != "" {
		rec.Name = adv.LocalName
	}

	if len(adv.ManufacturerData) > 0 {
		rec.ManufacturerData = adv.ManufacturerData
		identity, err := probe.DecodeIdentity(adv.ManufacturerData)
		if err != nil {
			r.logger.WithFields(logrus.Fields{
				"device": adv.ID,
				"error":  err,
			}).Debug("Manufacturer payload not decodable, keeping previous identity")
		} else {
			rec.Identity = identity
		}
	}
}

// Get returns a snapshot of the record for id, or (nil, false).
func (r *Registry) Get(id string) (*Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records.Get(id)
	if !ok {
		return nil, false
	}
	snapshot := *rec
	return &snapshot, true
}

// List returns all records in insertion order. Updates mutate in
// place and never reorder, so the order is stable across a session.
func (r *Registry) List() []*Record {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Record, 0, r.records.Len())
	for pair := r.records.Oldest(); pair != nil; pair = pair.Next() {
		snapshot := *pair.Value
		out = append(out, &snapshot)
	}
	return out
}

// Len returns the number of distinct devices seen.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.records.Len()
}

// Clear empties the registry. Called when a new scan session begins.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = orderedmap.New[string, *Record]()
}
