package logger

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/axiomhq/axiom-go/axiom"
	"github.com/axiomhq/axiom-go/axiom/ingest"
)

const (
	axiomQueueSize = 1024
	axiomBatchSize = 256
)

type eventIngester interface {
	IngestEvents(ctx context.Context, dataset string, events []axiom.Event, options ...ingest.Option) (*ingest.Status, error)
}

// axiomSink is a zerolog writer that ships JSON events to an Axiom dataset
// in batches. Debug events are not shipped; events are dropped when the
// queue is full.
type axiomSink struct {
	ingester   eventIngester
	dataset    string
	flushEvery time.Duration
	queue      chan axiom.Event
	done       chan struct{}

	mu     sync.RWMutex
	closed bool
}

func newAxiomSink(token, orgID, dataset string, flushEvery time.Duration) (*axiomSink, error) {
	opts := []axiom.Option{axiom.SetToken(token)}
	if orgID != "" {
		opts = append(opts, axiom.SetOrganizationID(orgID))
	}
	client, err := axiom.NewClient(opts...)
	if err != nil {
		return nil, err
	}
	if dataset == "" {
		dataset = "dev_article_analyzer"
	}
	return startAxiomSink(client, dataset, flushEvery), nil
}

func startAxiomSink(ingester eventIngester, dataset string, flushEvery time.Duration) *axiomSink {
	if flushEvery <= 0 {
		flushEvery = 10 * time.Second
	}
	s := &axiomSink{
		ingester:   ingester,
		dataset:    dataset,
		flushEvery: flushEvery,
		queue:      make(chan axiom.Event, axiomQueueSize),
		done:       make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *axiomSink) Write(p []byte) (int, error) {
	ev := axiom.Event{}
	if err := json.Unmarshal(p, &ev); err != nil {
		ev = axiom.Event{"level": "info", "message": string(p)}
	}
	if ev["level"] == "debug" {
		return len(p), nil
	}
	if _, ok := ev[ingest.TimestampField]; !ok {
		ev[ingest.TimestampField] = time.Now()
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return len(p), nil
	}
	select {
	case s.queue <- ev:
	default:
	}
	return len(p), nil
}

// Close stops accepting events and ships whatever is queued.
func (s *axiomSink) Close() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.queue)
	}
	s.mu.Unlock()
	<-s.done
}

func (s *axiomSink) run() {
	defer close(s.done)

	tick := time.NewTicker(s.flushEvery)
	defer tick.Stop()

	var pending []axiom.Event
	for {
		select {
		case ev, ok := <-s.queue:
			if !ok {
				s.ship(pending)
				return
			}
			pending = append(pending, ev)
			if len(pending) >= axiomBatchSize {
				s.ship(pending)
				pending = nil
			}
		case <-tick.C:
			s.ship(pending)
			pending = nil
		}
	}
}

func (s *axiomSink) ship(events []axiom.Event) {
	if len(events) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	_, _ = s.ingester.IngestEvents(ctx, s.dataset, events)
}
