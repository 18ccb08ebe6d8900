package rpc

import "github.com/go-i2p/logger"

// faults holds the failure overrides tests flip on. Zero value injects
// nothing.
type faults struct {
	failResolveRoutingInfo bool
}

// FaultInjectFailResolveRoutingInfo makes every routing-info resolution fail
// until turned off again, so refusal and connect-failure paths can be driven
// without a broken fabric.
func (r *Rpc) FaultInjectFailResolveRoutingInfo(on bool) {
	r.faults.failResolveRoutingInfo = on
	log.WithFields(logger.Fields{
		"at":     "(Rpc) FaultInjectFailResolveRoutingInfo",
		"rpc_id": r.id,
		"on":     on,
	}).Warn("fault_injection_toggled")
}
