package mqtingestor

import (
	"context"
	"errors"
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"

	logger "gitlab.com/maplesense1/mpt.sensor_watch/src/production/MQT.Logger"
	mqtmodels "gitlab.com/maplesense1/mpt.sensor_watch/src/production/MQT.Models"
)

// ErrQueueStopped is returned by Enqueue after Stop
var ErrQueueStopped = errors.New("queue stopped")

// Job is one decoded sample waiting for its identifier's worker
type Job struct {
	Identifier string
	Sample     mqtmodels.Sample
	ReceivedAt time.Time
}

// JobHandler processes a job. Jobs for one identifier never run concurrently.
type JobHandler func(ctx context.Context, job Job)

// mailbox is the bounded FIFO of one shard
type mailbox struct {
	mu     sync.Mutex
	items  []Job
	notify chan struct{}
}

// KeyedQueue hashes identifiers onto a fixed set of shards, each drained
// by a single worker, so samples for the same identifier are handled in
// arrival order while different identifiers proceed in parallel.
type KeyedQueue struct {
	shards  []*mailbox
	depth   int
	handler JobHandler
	logger  *logger.Logger

	dropped atomic.Uint64

	// held for reading by Enqueue so nothing lands after the final drain
	lifecycle sync.RWMutex
	stopped   bool
	done      chan struct{}
	wg        sync.WaitGroup
}

func NewKeyedQueue(shards, depth int, handler JobHandler, log *logger.Logger) *KeyedQueue {
	if shards <= 0 {
		shards = 1
	}
	if depth <= 0 {
		depth = 1
	}
	q := &KeyedQueue{
		shards:  make([]*mailbox, shards),
		depth:   depth,
		handler: handler,
		logger:  log.WithComponent("queue"),
		done:    make(chan struct{}),
	}
	for i := range q.shards {
		q.shards[i] = &mailbox{notify: make(chan struct{}, 1)}
	}
	return q
}

// Start launches one worker per shard
func (q *KeyedQueue) Start(ctx context.Context) {
	for _, mb := range q.shards {
		q.wg.Add(1)
		go func(mb *mailbox) {
			defer q.wg.Done()
			q.work(ctx, mb)
		}(mb)
	}
}

// Enqueue never blocks. When the shard is full the oldest pending job for
// the same identifier is replaced, or the oldest job overall if there is none.
func (q *KeyedQueue) Enqueue(job Job) error {
	q.lifecycle.RLock()
	defer q.lifecycle.RUnlock()
	if q.stopped {
		return ErrQueueStopped
	}

	mb := q.shards[q.shardFor(job.Identifier)]

	mb.mu.Lock()
	var evicted *Job
	if len(mb.items) >= q.depth {
		idx := 0
		for i, pending := range mb.items {
			if pending.Identifier == job.Identifier {
				idx = i
				break
			}
		}
		e := mb.items[idx]
		evicted = &e
		mb.items = append(mb.items[:idx], mb.items[idx+1:]...)
	}
	mb.items = append(mb.items, job)
	mb.mu.Unlock()

	if evicted != nil {
		q.dropped.Add(1)
		q.logger.Logger.Warn().
			Str("dropped_identifier", evicted.Identifier).
			Time("dropped_received_at", evicted.ReceivedAt).
			Str("identifier", job.Identifier).
			Msg("Queue saturated, dropped oldest pending sample")
	}

	select {
	case mb.notify <- struct{}{}:
	default:
	}
	return nil
}

// Stop rejects new jobs, lets the workers drain what is queued and waits for them
func (q *KeyedQueue) Stop() {
	q.lifecycle.Lock()
	if !q.stopped {
		q.stopped = true
		close(q.done)
	}
	q.lifecycle.Unlock()
	q.wg.Wait()
}

// Dropped is the number of jobs evicted by saturation
func (q *KeyedQueue) Dropped() uint64 {
	return q.dropped.Load()
}

// Pending is the number of queued jobs across all shards
func (q *KeyedQueue) Pending() int {
	n := 0
	for _, mb := range q.shards {
		mb.mu.Lock()
		n += len(mb.items)
		mb.mu.Unlock()
	}
	return n
}

func (q *KeyedQueue) shardFor(identifier string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(identifier))
	return int(h.Sum32() % uint32(len(q.shards)))
}

func (q *KeyedQueue) work(ctx context.Context, mb *mailbox) {
	for {
		if job, ok := mb.pop(); ok {
			q.handler(ctx, job)
			continue
		}
		select {
		case <-mb.notify:
		case <-q.done:
			for {
				job, ok := mb.pop()
				if !ok {
					return
				}
				q.handler(ctx, job)
			}
		}
	}
}

func (mb *mailbox) pop() (Job, bool) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	if len(mb.items) == 0 {
		return Job{}, false
	}
	job := mb.items[0]
	mb.items[0] = Job{}
	mb.items = mb.items[1:]
	return job, true
}
