package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
)

const Subsystem = "tollgate"

var MetricsBusinessProcess = &Metric{
	Name:        "bp_dur",
	Description: "process latency in milliseconds",
	Kind:        KindHistogramVec,
	Labels:      []string{"type", "subtype"},
}

var MetricsWebhookEvents = &Metric{
	Name:        "webhook_events_total",
	Description: "Inbound Telegram updates partitioned by event kind and outcome.",
	Kind:        KindCounterVec,
	Labels:      []string{"kind", "outcome"},
}

var MetricsPlatformCalls = &Metric{
	Name:        "platform_calls_total",
	Description: "Bot API calls partitioned by method and outcome.",
	Kind:        KindCounterVec,
	Labels:      []string{"method", "outcome"},
}

var MetricsBroadcastSends = &Metric{
	Name:        "broadcast_sends_total",
	Description: "Broadcast deliveries partitioned by result.",
	Kind:        KindCounterVec,
	Labels:      []string{"result"},
}

var MetricsAdmissions = &Metric{
	Name:        "admission_decisions_total",
	Description: "Join request decisions partitioned by decision and reason.",
	Kind:        KindCounterVec,
	Labels:      []string{"decision", "reason"},
}

// Recorder publishes the business metrics. The zero value and a nil *Recorder are no-ops,
// so services can take it as an optional dependency.
type Recorder struct {
	bpDur          *prometheus.HistogramVec
	webhookEvents  *prometheus.CounterVec
	platformCalls  *prometheus.CounterVec
	broadcastSends *prometheus.CounterVec
	admissions     *prometheus.CounterVec
}

// NewRecorder registers the business metrics on reg. A nil reg yields a no-op recorder.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		return &Recorder{}
	}
	mustRegister := func(def *Metric) prometheus.Collector {
		c, err := register(reg, def, Subsystem)
		if err != nil {
			panic(err)
		}
		return c
	}
	return &Recorder{
		bpDur:          mustRegister(MetricsBusinessProcess).(*prometheus.HistogramVec),
		webhookEvents:  mustRegister(MetricsWebhookEvents).(*prometheus.CounterVec),
		platformCalls:  mustRegister(MetricsPlatformCalls).(*prometheus.CounterVec),
		broadcastSends: mustRegister(MetricsBroadcastSends).(*prometheus.CounterVec),
		admissions:     mustRegister(MetricsAdmissions).(*prometheus.CounterVec),
	}
}

func (r *Recorder) WebhookEvent(kind, outcome string) {
	if r == nil || r.webhookEvents == nil {
		return
	}
	r.webhookEvents.WithLabelValues(kind, outcome).Inc()
}

func (r *Recorder) PlatformCall(method, outcome string) {
	if r == nil || r.platformCalls == nil {
		return
	}
	r.platformCalls.WithLabelValues(method, outcome).Inc()
}

func (r *Recorder) BroadcastSend(result string) {
	if r == nil || r.broadcastSends == nil {
		return
	}
	r.broadcastSends.WithLabelValues(result).Inc()
}

func (r *Recorder) Admission(approved bool, reason string) {
	if r == nil || r.admissions == nil {
		return
	}
	decision := "declined"
	if approved {
		decision = "approved"
	}
	r.admissions.WithLabelValues(decision, reason).Inc()
}

// ObserveSince records the latency of a business process started at start.
func (r *Recorder) ObserveSince(typ, subtype string, start time.Time) {
	if r == nil || r.bpDur == nil {
		return
	}
	r.bpDur.WithLabelValues(typ, subtype).Observe(MillisecondsSince(start))
}

// Module provides a Recorder registered on the default Prometheus registry.
var Module = fx.Options(
	fx.Provide(func() *Recorder { return NewRecorder(prometheus.DefaultRegisterer) }),
)
