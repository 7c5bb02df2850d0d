package preview

import (
	"sync"

	"github.com/starford/jstcode/internal/clock"
	"github.com/starford/jstcode/internal/metrics"
	"github.com/starford/jstcode/internal/sse"
)

// DefaultLogCapacity bounds the log when no capacity is configured.
const DefaultLogCapacity = 1000

// Record is one entry of the preview log.
type Record struct {
	ID          uint64 `json:"id"`
	Kind        Kind   `json:"kind"`
	Text        string `json:"text"`
	TimestampMs int64  `json:"timestampMs"`
}

// Publisher receives events for live subscribers.
type Publisher interface {
	Publish(event sse.Event)
}

// Log is an ordered, bounded log. Ids increase monotonically and survive
// Clear; the oldest records are evicted first.
type Log struct {
	mu       sync.Mutex
	capacity int
	clock    clock.Clock
	pub      Publisher
	nextID   uint64
	records  []Record
}

// NewLog creates a log. pub may be nil.
func NewLog(capacity int, clk clock.Clock, pub Publisher) *Log {
	if capacity <= 0 {
		capacity = DefaultLogCapacity
	}
	return &Log{capacity: capacity, clock: clk, pub: pub}
}

// Append adds a record and publishes it.
func (l *Log) Append(kind Kind, text string) Record {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.nextID++
	rec := Record{
		ID:          l.nextID,
		Kind:        kind,
		Text:        text,
		TimestampMs: l.clock.Now().UnixMilli(),
	}
	l.records = append(l.records, rec)
	if over := len(l.records) - l.capacity; over > 0 {
		l.records = append(l.records[:0:0], l.records[over:]...)
	}
	metrics.RecordPreviewMessage(string(kind))
	if l.pub != nil {
		l.pub.Publish(sse.Event{Type: sse.TypeLog, Data: rec})
	}
	return rec
}

// Since returns the records with an id greater than id, oldest first.
func (l *Log) Since(id uint64) []Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, r := range l.records {
		if r.ID > id {
			return append([]Record(nil), l.records[i:]...)
		}
	}
	return []Record{}
}

// Clear drops every record.
func (l *Log) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = nil
	if l.pub != nil {
		l.pub.Publish(sse.Event{Type: sse.TypeLogCleared, Data: map[string]uint64{"lastId": l.nextID}})
	}
}

// Len returns the number of retained records.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}
