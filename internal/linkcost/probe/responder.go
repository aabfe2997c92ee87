package probe

import (
	"log/slog"
	"time"

	"github.com/ndn-routing/linkcost/internal/linkcost/host"
)

// responsePayload is the fixed body of every rtt-probe response. Its
// content is irrelevant to the measurement (only transit time matters); a
// small constant payload keeps responses cheap to sign and send.
var responsePayload = []byte("linkcost-rtt-pong")

// responseFreshness is how long a responder's Data is cached by intervening
// forwarders; kept short since every probe response is unique.
const responseFreshness = 1 * time.Second

// Responder answers incoming rtt-probe Interests from other routers. It
// holds no state of its own: a probe's identity and timing live entirely in
// the requester's Scheduler.
type Responder struct {
	logger *slog.Logger
	self   host.Name
	signer host.Signer
}

// NewResponder constructs a Responder that will register itself under
// self's "link-cost/rtt-probe" prefix once Start is called.
func NewResponder(logger *slog.Logger, self host.Name, signer host.Signer) *Responder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Responder{logger: logger, self: self, signer: signer}
}

// Start registers the interest filter on face. Safe to call once per
// Responder lifetime.
func (r *Responder) Start(face host.Face) {
	prefix := r.self.Child("link-cost", "rtt-probe")
	face.SetInterestFilter(prefix, r.handle)
}

func (r *Responder) handle(i host.Interest) host.Data {
	d := host.Data{
		Name:            i.Name,
		FreshnessPeriod: responseFreshness,
		Payload:         responsePayload,
	}
	if r.signer != nil {
		if err := r.signer.Sign(&d); err != nil {
			r.logger.Warn("failed to sign rtt-probe response", "name", i.Name, "error", err)
			return d
		}
	}
	d.Signed = true
	return d
}
