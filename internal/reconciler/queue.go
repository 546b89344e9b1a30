package reconciler

import (
	"context"
	"sync"
)

// workQueue implements ReconcileQueue with per-key coalescing. While a key
// is being processed further requests for it collect in dirty and are
// released as a single request by Done, so one key is never processed twice
// at the same time and never waits in the queue more than once.
type workQueue struct {
	mu sync.Mutex

	// queue holds requests in FIFO order
	queue []ReconcileRequest

	// processing tracks keys currently being processed
	processing map[string]bool

	// dirty holds requests that arrived while their key was processing
	dirty map[string]ReconcileRequest

	// cond is used for blocking Get operations
	cond *sync.Cond

	// shuttingDown indicates the queue is stopping
	shuttingDown bool
}

// NewQueue creates a new reconciliation queue.
func NewQueue() ReconcileQueue {
	q := &workQueue{
		queue:      make([]ReconcileRequest, 0),
		processing: make(map[string]bool),
		dirty:      make(map[string]ReconcileRequest),
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Add adds a request or merges it into the pending one for its key.
func (q *workQueue) Add(req ReconcileRequest) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.shuttingDown {
		return
	}

	key := req.Key

	if q.processing[key] {
		if pending, ok := q.dirty[key]; ok {
			req = pending.merge(req)
		}
		q.dirty[key] = req
		return
	}

	for i, existing := range q.queue {
		if existing.Key == key {
			q.queue[i] = existing.merge(req)
			return
		}
	}

	q.queue = append(q.queue, req)
	q.cond.Signal()
}

// Get retrieves the next request, blocking if necessary.
func (q *workQueue) Get(ctx context.Context) (ReconcileRequest, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.queue) == 0 && !q.shuttingDown {
		select {
		case <-ctx.Done():
			return ReconcileRequest{}, false
		default:
		}

		// Wake the cond when ctx is cancelled; done releases the helper on
		// a normal wakeup.
		done := make(chan struct{})
		go func() {
			select {
			case <-ctx.Done():
				q.mu.Lock()
				q.cond.Broadcast()
				q.mu.Unlock()
			case <-done:
			}
		}()

		q.cond.Wait()
		close(done)

		select {
		case <-ctx.Done():
			return ReconcileRequest{}, false
		default:
		}
	}

	if q.shuttingDown && len(q.queue) == 0 {
		return ReconcileRequest{}, false
	}

	req := q.queue[0]
	q.queue = q.queue[1:]
	q.processing[req.Key] = true

	return req, true
}

// Done marks a request as completed.
func (q *workQueue) Done(req ReconcileRequest) {
	q.mu.Lock()
	defer q.mu.Unlock()

	delete(q.processing, req.Key)

	if dirtyReq, ok := q.dirty[req.Key]; ok {
		delete(q.dirty, req.Key)
		if q.shuttingDown {
			return
		}
		q.queue = append(q.queue, dirtyReq)
		q.cond.Signal()
	}
}

// Len returns the queue length.
func (q *workQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.queue)
}

// Shutdown stops the queue.
func (q *workQueue) Shutdown() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.shuttingDown = true
	q.queue = q.queue[:0]
	q.cond.Broadcast()
}
