package gateway

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

// InstitutionGateway represents the external institution link service.
type InstitutionGateway interface {
	// AuthorizeLink asks the institution to authorize access to one of its
	// accounts. Returns an authorization reference and an error if the
	// institution refused or could not be reached.
	AuthorizeLink(ctx context.Context, institutionID, externalAccountID string) (string, error)
}

// MockGateway simulates an external institution for development and tests.
// It introduces a short random delay and fails ~5% of the time.
type MockGateway struct {
	// FailureRate is the probability of failure (0.0 to 1.0). Default: 0.05
	FailureRate float64
	// MaxDelay caps the simulated network latency. Default: 500ms.
	MaxDelay time.Duration
}

// NewMockGateway creates a new MockGateway with default settings.
func NewMockGateway() *MockGateway {
	return &MockGateway{
		FailureRate: 0.05,
		MaxDelay:    500 * time.Millisecond,
	}
}

// AuthorizeLink simulates an institution authorization call. It sleeps for a
// random interval up to MaxDelay, then randomly fails based on FailureRate.
// Returns a fake authorization reference on success.
func (g *MockGateway) AuthorizeLink(ctx context.Context, institutionID, externalAccountID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("institution call canceled: %w", err)
	}

	maxDelay := g.MaxDelay
	if maxDelay <= 0 {
		maxDelay = 500 * time.Millisecond
	}
	delay := time.Duration(rand.Int63n(int64(maxDelay)))

	select {
	case <-time.After(delay):
	case <-ctx.Done():
		return "", fmt.Errorf("institution call canceled: %w", ctx.Err())
	}

	if rand.Float64() < g.FailureRate {
		return "", fmt.Errorf("institution %s temporarily unavailable", institutionID)
	}

	// Format: LINK-YYYYMMDD-HHMMSS-XXXXX
	ref := fmt.Sprintf("LINK-%s-%05d", time.Now().Format("20060102-150405"), rand.Intn(100000))
	return ref, nil
}
