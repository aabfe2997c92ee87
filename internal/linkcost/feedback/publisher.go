// Package feedback implements the Feedback Publisher: after every accepted
// measurement with enough history, it folds RTT, stability, reliability,
// and trend into a single scalar performance score and republishes it to
// whichever adaptive calculator is currently registered, completing the
// learning loop described in spec section 4.5.
package feedback

import (
	"math"

	"github.com/ndn-routing/linkcost/internal/linkcost/obs"
	"github.com/ndn-routing/linkcost/internal/linkcost/ports"
)

// Weights are the default component weights from spec section 4.5. They sum
// to 1.
type Weights struct {
	RTT         float64
	Stability   float64
	Reliability float64
	Trend       float64
}

// DefaultWeights returns the spec-mandated defaults.
func DefaultWeights() Weights {
	return Weights{RTT: 0.4, Stability: 0.2, Reliability: 0.3, Trend: 0.1}
}

// Publisher computes and republishes the scalar performance signal.
type Publisher struct {
	weights    Weights
	subscriber ports.FeedbackSubscriber
}

// New constructs a Publisher with the given weights (DefaultWeights() if
// the caller has no override).
func New(weights Weights) *Publisher {
	return &Publisher{weights: weights}
}

// SetSubscriber registers the adaptive calculator (or any other
// ports.FeedbackSubscriber) to receive future feedback. Pairs with
// ClearSubscriber, per the explicit registration/deregistration design note
// used to break the engine/calculator ownership cycle.
func (p *Publisher) SetSubscriber(s ports.FeedbackSubscriber) { p.subscriber = s }

// ClearSubscriber deregisters the current subscriber.
func (p *Publisher) ClearSubscriber() { p.subscriber = nil }

// Publish computes the performance score for neighbor from snap and, if at
// least 3 samples are present and a subscriber is registered, forwards it.
// Returns the computed score and whether it was actually delivered.
func (p *Publisher) Publish(neighbor string, snap ports.NeighborSnapshot) (score float64, delivered bool) {
	if len(snap.RTTSamplesMS) < 3 {
		return 0, false
	}
	score = p.score(snap)
	obs.FeedbackScore.WithLabelValues(neighbor).Set(score)
	if p.subscriber == nil {
		return score, false
	}
	p.subscriber.OnFeedback(neighbor, score, snap)
	return score, true
}

func (p *Publisher) score(snap ports.NeighborSnapshot) float64 {
	s := p.weights.RTT*rttScore(snap.RTTSamplesMS) +
		p.weights.Stability*stabilityScore(snap.RTTSamplesMS) +
		p.weights.Reliability*reliabilityScore(snap.TimeoutCount) +
		p.weights.Trend*trendScore(snap.RTTSamplesMS)
	return clamp01(s)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// rttScore is the piecewise-linear curve anchored at
// (10ms,0) (50ms,0.3) (100ms,0.6) (200ms,0.9) and clamped to 1.0 beyond.
func rttScore(samplesMS []uint32) float64 {
	avg := meanU32(samplesMS)
	anchors := []struct{ x, y float64 }{
		{10, 0}, {50, 0.3}, {100, 0.6}, {200, 0.9},
	}
	if avg <= anchors[0].x {
		return 0
	}
	for i := 1; i < len(anchors); i++ {
		if avg <= anchors[i].x {
			lo, hi := anchors[i-1], anchors[i]
			frac := (avg - lo.x) / (hi.x - lo.x)
			return lo.y + frac*(hi.y-lo.y)
		}
	}
	return 1.0
}

// stabilityScore maps the coefficient of variation over the last <=5
// samples into {<=0.1 -> 0, <=0.3 -> linear to 0.4, else -> linear to 1.0}.
func stabilityScore(samplesMS []uint32) float64 {
	window := lastN(samplesMS, 5)
	cv := coefficientOfVariation(window)
	switch {
	case cv <= 0.1:
		return 0
	case cv <= 0.3:
		frac := (cv - 0.1) / (0.3 - 0.1)
		return frac * 0.4
	default:
		frac := (cv - 0.3) / (1.0 - 0.3)
		return clamp01(0.4 + frac*0.6)
	}
}

// reliabilityScore is the piecewise step function on consecutive timeouts.
func reliabilityScore(timeoutCount uint32) float64 {
	switch {
	case timeoutCount == 0:
		return 0
	case timeoutCount <= 2:
		return 0.2
	case timeoutCount <= 5:
		return 0.5
	default:
		return 0.8
	}
}

// trendScore compares the mean of the last 3 samples against the prior 3;
// requires at least 6 samples, else defined as 0.
func trendScore(samplesMS []uint32) float64 {
	if len(samplesMS) < 6 {
		return 0
	}
	last3 := samplesMS[len(samplesMS)-3:]
	prior3 := samplesMS[len(samplesMS)-6 : len(samplesMS)-3]
	meanLast := meanU32(last3)
	meanPrior := meanU32(prior3)
	if meanPrior == 0 {
		return 0
	}
	delta := (meanLast - meanPrior) / meanPrior
	switch {
	case delta <= -0.1:
		return 0
	case delta <= 0.1:
		return 0.2
	case delta <= 0.3:
		return 0.5
	default:
		return 0.8
	}
}

func lastN(s []uint32, n int) []uint32 {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

func meanU32(s []uint32) float64 {
	if len(s) == 0 {
		return 0
	}
	var sum float64
	for _, v := range s {
		sum += float64(v)
	}
	return sum / float64(len(s))
}

func coefficientOfVariation(s []uint32) float64 {
	mean := meanU32(s)
	if mean == 0 || len(s) < 2 {
		return 0
	}
	var sumSq float64
	for _, v := range s {
		d := float64(v) - mean
		sumSq += d * d
	}
	stddev := math.Sqrt(sumSq / float64(len(s)))
	return stddev / mean
}
