// Package store persists handshake and sweep metrics. Records hold public
// values and statistics only; key material is never stored.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/sara-star-quant/hybrid-qkd/pkg/hybrid"
	"github.com/sara-star-quant/hybrid-qkd/pkg/sweep"
)

// Store is the persistence interface for handshake and sweep records.
// Implementations must be safe for concurrent use.
type Store interface {
	SaveHandshake(ctx context.Context, rec *HandshakeRecord) error
	GetHandshake(ctx context.Context, id string) (*HandshakeRecord, error)
	ListHandshakes(ctx context.Context, limit int) ([]*HandshakeRecord, error)

	// SaveSweep stores all points of one sweep atomically and returns the
	// sweep id.
	SaveSweep(ctx context.Context, points []sweep.Point) (string, error)
	ListSweepPoints(ctx context.Context, sweepID string) ([]*SweepPointRecord, error)

	Close() error
}

// HandshakeRecord is the persisted summary of one handshake.
type HandshakeRecord struct {
	ID             string        `json:"id"`
	KEM            string        `json:"kem"`
	SecurityLevel  string        `json:"security_level"`
	Outcome        string        `json:"outcome"`
	Error          string        `json:"error,omitempty"`
	QKDUsed        bool          `json:"qkd_used"`
	SiftLen        int           `json:"sift_len"`
	SampleSize     int           `json:"sample_size"`
	QBER           float64       `json:"qber"`
	LeakageBits    int           `json:"leakage_bits"`
	ResidualErrors int           `json:"residual_errors"`
	DistanceKM     float64       `json:"distance_km"`
	ProbReach      float64       `json:"prob_reach"`
	Duration       time.Duration `json:"duration"`
	CreatedAt      time.Time     `json:"created_at"`
}

// NewHandshakeRecord summarizes a handshake attempt. err is the error
// returned by Perform, if any.
func NewHandshakeRecord(info *hybrid.Info, err error) *HandshakeRecord {
	rec := &HandshakeRecord{
		ID:             info.SessionID.String(),
		KEM:            info.KEM,
		SecurityLevel:  info.SecurityLevel.String(),
		Outcome:        hybrid.StateDone.String(),
		QKDUsed:        info.QKDUsed,
		SiftLen:        info.QKD.SiftLen,
		SampleSize:     info.QKD.SampleSize,
		QBER:           info.QKD.QBER,
		LeakageBits:    info.QKD.LeakageBits,
		ResidualErrors: info.QKD.ResidualErrors,
		DistanceKM:     info.QKD.DistanceKM,
		ProbReach:      info.QKD.ProbReach,
		Duration:       info.Duration,
		CreatedAt:      time.Now().UTC(),
	}
	if err != nil {
		rec.Outcome = hybrid.StateAborted.String()
		rec.Error = err.Error()
	}
	return rec
}

// SweepPointRecord is one persisted sweep point.
type SweepPointRecord struct {
	ID        string      `json:"id"`
	SweepID   string      `json:"sweep_id"`
	Point     sweep.Point `json:"point"`
	CreatedAt time.Time   `json:"created_at"`
}

func newID() string {
	return uuid.NewString()
}
