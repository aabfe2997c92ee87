// Package mladaptive implements the ML Adaptive Calculator of spec
// section 4.7: a small online logistic model over a five-feature vector
// derived from a neighbor's RTT history, fused into a cost multiplier and
// refined via stochastic gradient descent as feedback arrives from the
// Feedback Publisher.
package mladaptive

import (
	"math"
	"time"

	"github.com/ndn-routing/linkcost/internal/linkcost/ports"
)

const (
	featureCount = 5

	defaultLearningRate = 0.01
	maxLearningRate     = 0.05
	minLearningRate     = 0.001

	adaptationThreshold = 0.2
	minUpdateInterval   = 30 * time.Second

	emaErrorAlpha    = 0.1
	temporalEmaAlpha = 0.1
	temporalSlots    = 144 // 24h / 10-minute slots

	successRateRTTCeilingMS = 500
	loadIndicatorNorm       = 100
)

func sigmoid(z float64) float64 { return 1 / (1 + math.Exp(-z)) }

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func meanOf(s []uint32) float64 {
	if len(s) == 0 {
		return 0
	}
	var sum float64
	for _, v := range s {
		sum += float64(v)
	}
	return sum / float64(len(s))
}

// extractFeatures builds the first four features of the five-feature
// vector described in spec section 4.7 from a neighbor's RTT sample window;
// the fifth (temporal) feature is filled in by the calculator itself, which
// is the only thing that knows the current time slot's history.
func extractFeatures(snap ports.NeighborSnapshot) [featureCount]float64 {
	var f [featureCount]float64
	f[0] = rttTrend(snap.RTTSamplesMS)
	f[1] = clamp(coefficientOfVariation(lastN(snap.RTTSamplesMS, 5)), 0, 1)
	f[2] = successRateProxy(snap.RTTSamplesMS)
	f[3] = loadIndicator(snap.RTTSamplesMS)
	f[4] = 0.5
	return f
}

func lastN(s []uint32, n int) []uint32 {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

func rttTrend(samples []uint32) float64 {
	if len(samples) < 6 {
		return 0
	}
	last3 := meanOf(samples[len(samples)-3:])
	prior3 := meanOf(samples[len(samples)-6 : len(samples)-3])
	if prior3 == 0 {
		return 0
	}
	return clamp((last3-prior3)/prior3, -1, 1)
}

func coefficientOfVariation(samples []uint32) float64 {
	mean := meanOf(samples)
	if mean == 0 || len(samples) < 2 {
		return 0
	}
	var sumSq float64
	for _, v := range samples {
		d := float64(v) - mean
		sumSq += d * d
	}
	stddev := math.Sqrt(sumSq / float64(len(samples)))
	return stddev / mean
}

func successRateProxy(samples []uint32) float64 {
	if len(samples) == 0 {
		return 1
	}
	var ok int
	for _, v := range samples {
		if v < successRateRTTCeilingMS {
			ok++
		}
	}
	return float64(ok) / float64(len(samples))
}

func loadIndicator(samples []uint32) float64 {
	if len(samples) < 3 {
		return 0
	}
	n := len(samples)
	x0 := float64(samples[n-3])
	x1 := float64(samples[n-2])
	x2 := float64(samples[n-1])
	secondDiff := x2 - 2*x1 + x0
	return clamp(secondDiff/loadIndicatorNorm, -1, 1)
}

// slotIndex maps t to one of 144 ten-minute-of-day slots.
func slotIndex(t time.Time) int {
	return t.Hour()*6 + t.Minute()/10
}

type temporalSlot struct {
	mean     float64
	count    int
	hasValue bool
}

// prediction records what the model predicted for a neighbor, so a later
// OnFeedback call can compute the error against it.
type prediction struct {
	features [featureCount]float64
	yhat     float64
}

// Calculator implements both ports.Calculator (cost adjustment) and
// ports.FeedbackSubscriber (online learning), sharing one model across all
// neighbors the engine probes.
type Calculator struct {
	bias    float64
	weights [featureCount]float64

	hasFeedback  bool
	learningRate float64
	emaError     float64
	lastUpdate   time.Time

	temporal [temporalSlots]temporalSlot
	lastPred map[string]prediction
}

// New constructs a Calculator with zero-initialized weights; until the
// first feedback arrives, Adjust uses the fixed-weight fallback.
func New() *Calculator {
	return &Calculator{
		learningRate: defaultLearningRate,
		lastPred:     make(map[string]prediction),
	}
}

func (c *Calculator) predict(features [featureCount]float64) float64 {
	if !c.hasFeedback {
		z := 0.4*features[0] + 0.3*features[1] + 0.2*features[2] + 0.1*features[3]
		return sigmoid(z)
	}
	z := c.bias
	for i, w := range c.weights {
		z += w * features[i]
	}
	return sigmoid(z)
}

// Adjust implements ports.Calculator: fuses the model's predicted
// performance into the candidate cost as final = original_cost*(1+yhat),
// falling back to candidate unchanged on any non-finite result.
func (c *Calculator) Adjust(neighbor string, candidate float64, snap ports.NeighborSnapshot) (float64, error) {
	now := time.Now()
	features := extractFeatures(snap)
	features[4] = c.temporalFeature(slotIndex(now))

	yhat := c.predict(features)
	c.lastPred[neighbor] = prediction{features: features, yhat: yhat}

	final := float64(snap.OriginalCost) * (1 + yhat)
	if math.IsNaN(final) || math.IsInf(final, 0) || final <= 0 {
		return candidate, nil
	}
	return final, nil
}

func (c *Calculator) temporalFeature(slot int) float64 {
	s := c.temporal[slot]
	if !s.hasValue {
		return 0.5
	}
	return s.mean
}

// OnFeedback implements ports.FeedbackSubscriber: compares the last
// prediction made for neighbor against the observed performance, runs an
// SGD step when warranted, adapts the learning rate from the EMA error, and
// always updates the temporal pattern table for the current slot.
func (c *Calculator) OnFeedback(neighbor string, performance float64, snap ports.NeighborSnapshot) {
	now := time.Now()
	c.updateTemporal(slotIndex(now), performance)

	pred, ok := c.lastPred[neighbor]
	if !ok {
		return
	}

	errVal := performance - pred.yhat
	absErr := math.Abs(errVal)
	c.emaError = ema(c.emaError, absErr, emaErrorAlpha, !c.hasFeedback)

	elapsedOK := c.lastUpdate.IsZero() || now.Sub(c.lastUpdate) >= minUpdateInterval
	if absErr <= adaptationThreshold && !elapsedOK {
		return
	}

	eta := c.learningRate
	c.bias += eta * errVal
	for i := range c.weights {
		c.weights[i] += eta * errVal * pred.features[i]
	}
	c.hasFeedback = true
	c.lastUpdate = now

	switch {
	case c.emaError > 0.3:
		c.learningRate = math.Min(c.learningRate*1.1, maxLearningRate)
	case c.emaError < 0.1:
		c.learningRate = math.Max(c.learningRate*0.9, minLearningRate)
	}
}

func (c *Calculator) updateTemporal(slot int, value float64) {
	s := &c.temporal[slot]
	if !s.hasValue {
		s.mean = value
		s.hasValue = true
	} else {
		s.mean = ema(s.mean, value, temporalEmaAlpha, false)
	}
	s.count++
}

// ema computes an exponential moving average step; when init is true (no
// prior average exists) it seeds the average with x instead of blending.
func ema(prev, x, alpha float64, init bool) float64 {
	if init {
		return x
	}
	return alpha*x + (1-alpha)*prev
}

// EMAError exposes the current EMA prediction error, for tests and
// diagnostics.
func (c *Calculator) EMAError() float64 { return c.emaError }
