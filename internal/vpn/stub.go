package vpn

import "github.com/apex/log"

// StrongSwanGenerator is the IKEv2 placeholder. It performs no rendering or I/O.
type StrongSwanGenerator struct {
	log log.Interface
}

func NewStrongSwanGenerator(logger log.Interface) *StrongSwanGenerator {
	if logger == nil {
		logger = log.Log
	}
	return &StrongSwanGenerator{log: logger}
}

func (g *StrongSwanGenerator) Generate(_ GenerateInput) (Result, error) {
	g.log.Info("generating strongswan certificate")
	return Result{Kind: ResultAccepted}, nil
}

// WireGuardGenerator is the WireGuard placeholder. It performs no rendering or I/O.
type WireGuardGenerator struct {
	log log.Interface
}

func NewWireGuardGenerator(logger log.Interface) *WireGuardGenerator {
	if logger == nil {
		logger = log.Log
	}
	return &WireGuardGenerator{log: logger}
}

func (g *WireGuardGenerator) Generate(_ GenerateInput) (Result, error) {
	g.log.Info("generating wireguard certificate")
	return Result{Kind: ResultAccepted}, nil
}
