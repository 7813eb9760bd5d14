package migration

// workQueue tracks which of the four states each work item is in: pending,
// in-flight, completed or failed. Every item is in exactly one list at any
// instant; all transitions go through these methods.
type workQueue struct {
	pending   []*WorkItem
	inFlight  []*WorkItem
	completed []*WorkItem
	failed    []*WorkItem
}

func newWorkQueue(items []*WorkItem) *workQueue {
	q := &workQueue{
		pending: make([]*WorkItem, 0, len(items)),
	}
	for _, item := range items {
		item.State = StateQueued
		q.pending = append(q.pending, item)
	}
	return q
}

// Dequeue pops the head of the pending queue, nil when empty.
func (q *workQueue) Dequeue() *WorkItem {
	if len(q.pending) == 0 {
		return nil
	}
	item := q.pending[0]
	q.pending = q.pending[1:]
	return item
}

// Requeue appends an item at the tail of the pending queue for another attempt.
func (q *workQueue) Requeue(item *WorkItem) {
	item.State = StateRetrying
	q.pending = append(q.pending, item)
}

// MarkInFlight records a dispatched item in the in-flight set.
func (q *workQueue) MarkInFlight(item *WorkItem) {
	item.State = StateInFlight
	q.inFlight = append(q.inFlight, item)
}

// RemoveInFlight drops an item from the in-flight set.
func (q *workQueue) RemoveInFlight(item *WorkItem) {
	for i, candidate := range q.inFlight {
		if candidate == item {
			q.inFlight = append(q.inFlight[:i], q.inFlight[i+1:]...)
			return
		}
	}
}

// MarkCompleted moves an in-flight item to the completed list.
func (q *workQueue) MarkCompleted(item *WorkItem) {
	q.RemoveInFlight(item)
	item.State = StateCompleted
	q.completed = append(q.completed, item)
}

// MarkFailed moves an in-flight item to the failed list.
func (q *workQueue) MarkFailed(item *WorkItem) {
	q.RemoveInFlight(item)
	item.State = StateFailed
	q.failed = append(q.failed, item)
}

// InFlightItems returns a copy of the in-flight set safe to iterate while
// items are being resolved.
func (q *workQueue) InFlightItems() []*WorkItem {
	items := make([]*WorkItem, len(q.inFlight))
	copy(items, q.inFlight)
	return items
}

func (q *workQueue) PendingCount() int  { return len(q.pending) }
func (q *workQueue) InFlightCount() int { return len(q.inFlight) }

// Done reports whether all items have resolved.
func (q *workQueue) Done() bool {
	return len(q.pending) == 0 && len(q.inFlight) == 0
}

// Total returns the number of items the queue has ever held.
func (q *workQueue) Total() int {
	return len(q.pending) + len(q.inFlight) + len(q.completed) + len(q.failed)
}
