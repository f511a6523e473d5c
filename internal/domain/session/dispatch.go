package session

import "sync"

// dispatcher runs upload jobs in the background.
type dispatcher interface {
	Dispatch(key string, job func())
	// Wait blocks until every dispatched job has finished
	Wait()
}

// unorderedDispatcher runs every job on its own goroutine.
type unorderedDispatcher struct {
	wg sync.WaitGroup
}

func (d *unorderedDispatcher) Dispatch(_ string, job func()) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		job()
	}()
}

func (d *unorderedDispatcher) Wait() {
	d.wg.Wait()
}

// perPathDispatcher runs jobs sharing a key one at a time, in dispatch
// order. Different keys run in parallel.
type perPathDispatcher struct {
	mu     sync.Mutex
	queues map[string][]func()
	wg     sync.WaitGroup
}

func newPerPathDispatcher() *perPathDispatcher {
	return &perPathDispatcher{queues: make(map[string][]func())}
}

func (d *perPathDispatcher) Dispatch(key string, job func()) {
	d.mu.Lock()
	queue, draining := d.queues[key]
	d.queues[key] = append(queue, job)
	if !draining {
		d.wg.Add(1)
	}
	d.mu.Unlock()

	if !draining {
		go d.drain(key)
	}
}

// drain owns key until its queue is empty.
func (d *perPathDispatcher) drain(key string) {
	defer d.wg.Done()
	for {
		d.mu.Lock()
		queue := d.queues[key]
		if len(queue) == 0 {
			delete(d.queues, key)
			d.mu.Unlock()
			return
		}
		job := queue[0]
		d.queues[key] = queue[1:]
		d.mu.Unlock()

		job()
	}
}

func (d *perPathDispatcher) Wait() {
	d.wg.Wait()
}
