package prom

import (
	"fmt"
	"sync"

	xhttp "github.com/nimasrn/message-automation/pkg/http"
	"github.com/nimasrn/message-automation/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

const (
	SystemAutomation = "automation"
	SystemChannel    = "channel"
	SystemCart       = "cart"
)

const (
	MetricFlowsExecuted   = "flows_executed_total"
	MetricFlowsFailed     = "flows_failed_total"
	MetricJobsCreated     = "jobs_created_total"
	MetricJobsProcessed   = "jobs_processed_total"
	MetricTickDuration    = "tick_duration_seconds"
	MetricQuotaDenied     = "quota_denied_total"
	MetricProviderLatency = "provider_latency_seconds"
	MetricCartsSwept      = "carts_swept_total"
)

const (
	TypeCounterVec   = "counterVec"
	TypeHistogramVec = "histogramVec"
)

var lockCreateMetricLock = &sync.Mutex{}
var namespace = "none"

var MetricSystemEnabled = false

var MetricCollectionCounterVec = make(map[string]*prometheus.CounterVec)
var MetricCollectionHistogramVec = make(map[string]*prometheus.HistogramVec)

var defaultLabels prometheus.Labels

// Create registers every metric the automation engine reports. Calls made
// before Create are silently dropped.
func Create(host string, env string, nameSpace string) error {
	defaultLabels = prometheus.Labels{"env": env, "instance": host}
	namespace = nameSpace

	var err error
	hasError := func(e error) {
		if err == nil && e != nil {
			err = e
		}
	}

	hasError(CreateMetric(TypeCounterVec, SystemAutomation, MetricFlowsExecuted, "trigger"))
	hasError(CreateMetric(TypeCounterVec, SystemAutomation, MetricFlowsFailed, "trigger"))
	hasError(CreateMetric(TypeCounterVec, SystemAutomation, MetricJobsCreated, "channel"))
	hasError(CreateMetric(TypeCounterVec, SystemAutomation, MetricJobsProcessed, "channel", "status"))
	hasError(CreateMetric(TypeHistogramVec, SystemAutomation, MetricTickDuration, "task"))
	hasError(CreateMetric(TypeCounterVec, SystemChannel, MetricQuotaDenied, "channel"))
	hasError(CreateMetric(TypeHistogramVec, SystemChannel, MetricProviderLatency, "channel"))
	hasError(CreateMetric(TypeCounterVec, SystemCart, MetricCartsSwept, "outcome"))

	MetricSystemEnabled = err == nil
	return err
}

func CreateMetric(metricType, metricSubsystem, metricName string, labelsValues ...string) error {
	switch metricType {
	case TypeCounterVec:
		return createCounterVec(metricSubsystem, metricName, labelsValues)
	case TypeHistogramVec:
		return createHistogramVec(metricSubsystem, metricName, labelsValues)
	}
	return fmt.Errorf("metric type %s is not defined", metricType)
}

// ListenAndServer serves the default registry on url. It blocks.
func ListenAndServer(addr string, url string) {
	hh := fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler())
	s := xhttp.NewServer(xhttp.DefaultServerOption)
	s.GET(url, hh)
	logger.Info("[metrics-server] listening...", "addr", addr, "url", url)
	if err := s.ListenAndServe(addr); err != nil {
		logger.Error("[metrics-server] http listen error", "error", err)
	}
}

func createCounterVec(subsystem, name string, labels []string) error {
	lockCreateMetricLock.Lock()
	defer lockCreateMetricLock.Unlock()
	if _, ok := MetricCollectionCounterVec[subsystem+name]; ok {
		return nil
	}
	c := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   namespace,
		Subsystem:   subsystem,
		Name:        name,
		ConstLabels: defaultLabels,
	}, labels)
	if err := prometheus.Register(c); err != nil {
		return err
	}
	MetricCollectionCounterVec[subsystem+name] = c
	return nil
}

func createHistogramVec(subsystem, name string, labels []string) error {
	lockCreateMetricLock.Lock()
	defer lockCreateMetricLock.Unlock()
	if _, ok := MetricCollectionHistogramVec[subsystem+name]; ok {
		return nil
	}
	h := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   namespace,
		Subsystem:   subsystem,
		Name:        name,
		ConstLabels: defaultLabels,
		Buckets:     prometheus.DefBuckets,
	}, labels)
	if err := prometheus.Register(h); err != nil {
		return err
	}
	MetricCollectionHistogramVec[subsystem+name] = h
	return nil
}

func AddCounterVec(subsystem, name string, num float64, labelValues ...string) {
	if !MetricSystemEnabled {
		return
	}
	if v, ok := MetricCollectionCounterVec[subsystem+name]; ok {
		v.WithLabelValues(labelValues...).Add(num)
		return
	}
	logger.Warn("[metrics-server] counter vec not found", "subsystem", subsystem, "name", name)
}

func IncCounterVec(subsystem, name string, labelValues ...string) {
	AddCounterVec(subsystem, name, 1, labelValues...)
}

func AddHistogramVec(subsystem, name string, number float64, labelValues ...string) {
	if !MetricSystemEnabled {
		return
	}
	if v, ok := MetricCollectionHistogramVec[subsystem+name]; ok {
		v.WithLabelValues(labelValues...).Observe(number)
		return
	}
	logger.Warn("[metrics-server] histogram vec not found", "subsystem", subsystem, "name", name)
}

func FlowExecuted(trigger string) {
	IncCounterVec(SystemAutomation, MetricFlowsExecuted, trigger)
}

func FlowFailed(trigger string) {
	IncCounterVec(SystemAutomation, MetricFlowsFailed, trigger)
}

func JobCreated(channel string) {
	IncCounterVec(SystemAutomation, MetricJobsCreated, channel)
}

func JobProcessed(channel, status string) {
	IncCounterVec(SystemAutomation, MetricJobsProcessed, channel, status)
}

func TickDuration(task string, seconds float64) {
	AddHistogramVec(SystemAutomation, MetricTickDuration, seconds, task)
}

func QuotaDenied(channel string) {
	IncCounterVec(SystemChannel, MetricQuotaDenied, channel)
}

func ProviderLatency(channel string, seconds float64) {
	AddHistogramVec(SystemChannel, MetricProviderLatency, seconds, channel)
}

func CartSwept(outcome string) {
	IncCounterVec(SystemCart, MetricCartsSwept, outcome)
}
