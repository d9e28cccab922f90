package hdfsfile

import (
	"expvar"
	"flag"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/grailbio/base/log"
)

var (
	metricAutologOnce   sync.Once
	metricAutologPeriod = flag.Duration("hdfsfile.metric_log_period", 0,
		"Interval for logging HDFS operation metrics. Zero disables logging.")
)

// metricAutolog publishes the metrics as the expvar "hdfsfile" and starts
// logging them if -hdfsfile.metric_log_period is set.
func metricAutolog() {
	metricAutologOnce.Do(func() {
		expvar.Publish("hdfsfile", expvar.Func(func() interface{} { return metrics.snapshot() }))
		if period := *metricAutologPeriod; period > 0 {
			go logMetricsLoop(period)
		}
	})
}

const numLatencyBuckets = 6

// latencyBounds are the exclusive upper bounds of the latency buckets. The
// last bucket has no bound.
var latencyBounds = [numLatencyBuckets - 1]time.Duration{
	time.Millisecond,
	10 * time.Millisecond,
	100 * time.Millisecond,
	time.Second,
	10 * time.Second,
}

// metricOp counts the calls of one operation. A call is one namenode request
// ("stat", "open", "create", ...) together with its retries, one Read or
// Write on a file, or the close of a created file. Latency is measured per
// call, so a long-lived reader contributes one sample per Read.
type metricOp struct {
	Count   expvar.Int
	Errors  expvar.Int
	Retried expvar.Int // calls that were retried at least once
	Retries expvar.Int
	Bytes   expvar.Int
	Latency [numLatencyBuckets]expvar.Int
}

type metricOpMap struct{ m sync.Map }

var metrics metricOpMap

func (m *metricOpMap) Op(key string) *metricOp {
	var init metricOp
	got, _ := m.m.LoadOrStore(key, &init)
	return got.(*metricOp)
}

func (m *metricOpMap) snapshot() map[string]metricSnapshot {
	snap := make(map[string]metricSnapshot)
	m.m.Range(func(key, value interface{}) bool {
		snap[key.(string)] = value.(*metricOp).snapshot()
		return true
	})
	return snap
}

type metricOpProgress struct {
	parent  *metricOp
	start   time.Time
	retries int // == 0 if first try succeeds
}

func (m *metricOp) Start() *metricOpProgress {
	m.Count.Add(1)
	return &metricOpProgress{m, time.Now(), 0}
}

func (m *metricOpProgress) Retry() { m.retries++ }

func (m *metricOpProgress) Bytes(b int) { m.parent.Bytes.Add(int64(b)) }

// Done records the outcome of the call. err is the final error, if any.
func (m *metricOpProgress) Done(err error) {
	if err != nil {
		m.parent.Errors.Add(1)
	}
	if m.retries > 0 {
		m.parent.Retried.Add(1)
		m.parent.Retries.Add(int64(m.retries))
	}
	m.parent.Latency[latencyBucket(time.Since(m.start))].Add(1)
}

func latencyBucket(took time.Duration) int {
	for i, bound := range latencyBounds {
		if took < bound {
			return i
		}
	}
	return len(latencyBounds)
}

// metricSnapshot is a point-in-time copy of a metricOp.
type metricSnapshot struct {
	Count, Errors, Retried, Retries, Bytes int64
	Latency                                [numLatencyBuckets]int64
}

func (m *metricOp) snapshot() metricSnapshot {
	s := metricSnapshot{
		Count:   m.Count.Value(),
		Errors:  m.Errors.Value(),
		Retried: m.Retried.Value(),
		Retries: m.Retries.Value(),
		Bytes:   m.Bytes.Value(),
	}
	for i := range m.Latency {
		s.Latency[i] = m.Latency[i].Value()
	}
	return s
}

// sub returns the counts accumulated since prev.
func (s metricSnapshot) sub(prev metricSnapshot) metricSnapshot {
	d := metricSnapshot{
		Count:   s.Count - prev.Count,
		Errors:  s.Errors - prev.Errors,
		Retried: s.Retried - prev.Retried,
		Retries: s.Retries - prev.Retries,
		Bytes:   s.Bytes - prev.Bytes,
	}
	for i := range s.Latency {
		d.Latency[i] = s.Latency[i] - prev.Latency[i]
	}
	return d
}

// String formats s as, e.g.,
// "n:12 e:0 retried:1/3 lat(<1ms/<10ms/<100ms/<1s/<10s/more):4/6/2/0/0/0 mib:1.5".
func (s metricSnapshot) String() string {
	var (
		labels = make([]string, 0, numLatencyBuckets)
		counts = make([]string, 0, numLatencyBuckets)
	)
	for i, bound := range latencyBounds {
		labels = append(labels, "<"+bound.String())
		counts = append(counts, fmt.Sprint(s.Latency[i]))
	}
	labels = append(labels, "more")
	counts = append(counts, fmt.Sprint(s.Latency[numLatencyBuckets-1]))
	return fmt.Sprintf("n:%d e:%d retried:%d/%d lat(%s):%s mib:%.1f",
		s.Count, s.Errors, s.Retried, s.Retries,
		strings.Join(labels, "/"), strings.Join(counts, "/"),
		float64(s.Bytes)/(1<<20))
}

// logMetricsLoop logs, every period, the calls made during the period for
// each operation that had any.
func logMetricsLoop(period time.Duration) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	last := make(map[string]metricSnapshot)
	for range ticker.C {
		cur := metrics.snapshot()
		ops := make([]string, 0, len(cur))
		for op := range cur {
			ops = append(ops, op)
		}
		sort.Strings(ops)
		for _, op := range ops {
			d := cur[op].sub(last[op])
			if d.Count == 0 {
				continue
			}
			log.Printf("hdfsfile metrics: op:%s %v [in %v]", op, d, period)
		}
		last = cur
	}
}
