package hybrid

import (
	"context"

	"github.com/google/uuid"

	"github.com/sara-star-quant/hybrid-qkd/pkg/metrics"
)

// Observer provides hooks for handshake lifecycle, metrics and tracing.
// metrics.HandshakeObserver is the standard implementation.
type Observer interface {
	OnHandshakeStart(ctx context.Context, kem string) (context.Context, func(error))
	OnState(ctx context.Context, state string) (context.Context, func(error))
	OnQKDResult(siftLen int, qber float64, leakageBits, residualErrors int)
	OnQKDAbort(reason string, qber float64)
	OnInsecureKEM(kem string)
	OnKEMOnlyFallback(cause error)
	OnKEMFailure(err error)
	OnSignatureFailure(err error)
}

// ObserverFactory builds a per-handshake observer.
type ObserverFactory func(sessionID uuid.UUID) Observer

var _ Observer = (*metrics.HandshakeObserver)(nil)

func (h *Handshaker) observerFor(sessionID uuid.UUID) Observer {
	if h.observerFactory != nil {
		return h.observerFactory(sessionID)
	}
	return metrics.NewHandshakeObserver(metrics.HandshakeObserverConfig{
		Collector: h.collector,
		Tracer:    h.tracer,
		Logger:    h.logger,
		SessionID: sessionID.String(),
	})
}
