package posw

import (
	"context"
	"sync"
)

// Response carries the result of a correlated Request back to its caller.
type Response struct {
	RequestID string
	Proof     *Proof
	Err       error
}

// Worker runs PoSW computations off the recording thread, matching
// responses to requests by correlation id (§4.3 "designed to run off the
// event-recording thread" / §9 "message passing with correlation ids").
// The recording pipeline submits a Request and awaits its Response before
// appending the record, exactly as §4.4 step 5 describes.
type Worker struct {
	requests  chan Request
	responses sync.Map // request id -> chan Response
	done      chan struct{}
	once      sync.Once
}

// NewWorker starts a worker goroutine that computes submitted requests.
func NewWorker() *Worker {
	w := &Worker{
		requests: make(chan Request, 64),
		done:     make(chan struct{}),
	}
	go w.run()
	return w
}

func (w *Worker) run() {
	for {
		select {
		case req, ok := <-w.requests:
			if !ok {
				return
			}
			w.handle(req)
		case <-w.done:
			return
		}
	}
}

func (w *Worker) handle(req Request) {
	ctx, cancel := context.WithTimeout(context.Background(), DefaultTimeout)
	defer cancel()

	proof, err := Compute(ctx, req.PreviousHash, req.EventBytes, req.Iterations)
	resp := Response{RequestID: req.ID, Proof: proof, Err: err}

	if chAny, ok := w.responses.LoadAndDelete(req.ID); ok {
		ch := chAny.(chan Response)
		ch <- resp
		close(ch)
	}
}

// Submit enqueues req and blocks until its Response arrives or ctx is
// done. A ctx timeout/cancellation surfaces as ErrTimeout, matching the
// "drops the record; chain continues" semantics of §7.
func (w *Worker) Submit(ctx context.Context, req Request) (*Proof, error) {
	ch := make(chan Response, 1)
	w.responses.Store(req.ID, ch)

	select {
	case w.requests <- req:
	case <-ctx.Done():
		w.responses.Delete(req.ID)
		return nil, ErrTimeout
	}

	select {
	case resp := <-ch:
		return resp.Proof, resp.Err
	case <-ctx.Done():
		w.responses.Delete(req.ID)
		return nil, ErrTimeout
	}
}

// Close stops the worker goroutine. Pending requests are abandoned.
func (w *Worker) Close() {
	w.once.Do(func() {
		close(w.done)
	})
}
