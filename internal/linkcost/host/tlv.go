package host

// TLV type numbers added to the host daemon's registry for this subsystem's
// control-channel messages. The wire encoding of these types is the host's
// responsibility (out of scope here, per the wire-codec boundary); the
// subsystem only needs their numeric identity so the host can dispatch
// decoded requests to it.
const (
	TLVLinkMetricsCommand   uint64 = 210
	TLVExternalMetrics      uint64 = 211
	TLVBandwidth            uint64 = 212
	TLVBandwidthUtilization uint64 = 213
	TLVPacketLoss           uint64 = 214
	TLVSpectrumStrength     uint64 = 215
	TLVMultiDimensionalCost uint64 = 216
)
