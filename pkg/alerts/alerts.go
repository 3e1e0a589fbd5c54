// Package alerts delivers user-visible events to the hosting application
// over three independent channels: generic alerts, database-operation
// alerts, and deployment-stage alerts. Delivery is fire-and-forget; a
// slow or panicking consumer never blocks or crashes the engine. Within
// a channel, alerts reach the consumer in emission order.
package alerts

import (
	"sync"

	"github.com/arthur-debert/runlet/pkg/logging"
	"github.com/arthur-debert/runlet/pkg/types"
)

const databaseSource = "database"

// Emitter fans alerts out to the consumer-provided sink.
type Emitter struct {
	sink types.AlertSink

	alerts      queue
	database    queue
	deployments queue
}

// New creates an emitter. Nil callbacks in the sink disable their channel.
func New(sink types.AlertSink) *Emitter {
	e := &Emitter{sink: sink}
	e.alerts.channel = "alert"
	e.database.channel = "database"
	e.deployments.channel = "deployment"
	return e
}

// Alert raises a generic alert.
func (e *Emitter) Alert(a types.Alert) {
	if e.sink.OnAlert == nil {
		return
	}
	e.alerts.push(func() { e.sink.OnAlert(a) })
}

// Database raises a database-operation alert. The source field is always
// forced so consumers can route on it.
func (e *Emitter) Database(a types.DatabaseAlert) {
	if e.sink.OnDatabase == nil {
		return
	}
	a.Source = databaseSource
	e.database.push(func() { e.sink.OnDatabase(a) })
}

// Deployment raises a deployment-stage alert.
func (e *Emitter) Deployment(a types.DeploymentAlert) {
	if e.sink.OnDeployment == nil {
		return
	}
	e.deployments.push(func() { e.sink.OnDeployment(a) })
}

// queue serializes delivery for one channel: a single drain goroutine
// hands alerts to the consumer in emission order. The push side never
// blocks; the drain goroutine exists only while deliveries are pending.
type queue struct {
	channel string

	mu       sync.Mutex
	pending  []func()
	draining bool
}

func (q *queue) push(fn func()) {
	q.mu.Lock()
	q.pending = append(q.pending, fn)
	if q.draining {
		q.mu.Unlock()
		return
	}
	q.draining = true
	q.mu.Unlock()
	go q.drain()
}

func (q *queue) drain() {
	for {
		q.mu.Lock()
		if len(q.pending) == 0 {
			q.draining = false
			q.mu.Unlock()
			return
		}
		fn := q.pending[0]
		q.pending = q.pending[1:]
		q.mu.Unlock()
		q.deliver(fn)
	}
}

// deliver isolates consumer faults: a panic in a callback is logged and
// swallowed, and the drain keeps going.
func (q *queue) deliver(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logger := logging.GetLogger("alerts")
			logger.Error().
				Str("channel", q.channel).
				Interface("panic", r).
				Msg("Alert consumer panicked")
		}
	}()
	fn()
}
