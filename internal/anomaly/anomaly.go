// Package anomaly implements the per-tenant query anomaly gate.
//
// The gate watches each tenant's stream of query embeddings and flags
// queries that sit far outside that tenant's usual territory. Its verdict
// is advisory: flagged queries are logged and counted, never blocked. The
// gate fails open on every internal error.
package anomaly

import (
	"math"
	"sync"

	"github.com/montanaflynn/stats"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/vaultd/internal/metrics"
)

// State is a tenant's detector lifecycle state.
type State string

// Detector lifecycle states.
const (
	// StateCold means no queries observed yet.
	StateCold State = "cold"

	// StateWarming means some history exists but not enough to train.
	StateWarming State = "warming"

	// StateArmed means a trained detector is scoring queries.
	StateArmed State = "armed"
)

// Config holds gate tuning parameters.
type Config struct {
	// MinSamples is the history size required before training.
	MinSamples int

	// Contamination is the assumed fraction of outliers in the history,
	// which sets the score threshold quantile.
	Contamination float64
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.MinSamples == 0 {
		c.MinSamples = 5
	}
	if c.Contamination == 0 {
		c.Contamination = 0.1
	}
}

// Gate tracks per-tenant query history and anomaly detectors.
type Gate struct {
	config Config
	logger *zap.Logger

	mu      sync.RWMutex
	tenants map[string]*tenantState
}

type tenantState struct {
	mu      sync.Mutex
	history [][]float32
	model   *centroidModel
}

// NewGate creates an anomaly gate.
func NewGate(config Config, logger *zap.Logger) *Gate {
	if logger == nil {
		logger = zap.NewNop()
	}
	config.ApplyDefaults()
	return &Gate{
		config:  config,
		logger:  logger,
		tenants: make(map[string]*tenantState),
	}
}

// IsAnomalous scores a query embedding against the tenant's detector.
// Before the detector is armed, and on any scoring failure, it returns
// false.
func (g *Gate) IsAnomalous(tenantID string, embedding []float32) bool {
	ts := g.tenant(tenantID)
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if ts.model == nil {
		return false
	}
	anomalous, err := ts.model.score(embedding)
	if err != nil {
		g.logger.Warn("anomaly scoring failed, passing query through",
			zap.String("tenant", tenantID),
			zap.Error(err),
		)
		return false
	}
	if anomalous {
		metrics.AnomalyFlaggedTotal.WithLabelValues(tenantID).Inc()
	}
	return anomalous
}

// LogQuery appends an embedding to the tenant's history and, once enough
// samples exist, retrains the detector on the full history. Retraining is
// synchronous; the history grows without bound for the process lifetime.
func (g *Gate) LogQuery(tenantID string, embedding []float32) {
	ts := g.tenant(tenantID)
	ts.mu.Lock()
	defer ts.mu.Unlock()

	vec := make([]float32, len(embedding))
	copy(vec, embedding)
	ts.history = append(ts.history, vec)

	if len(ts.history) < g.config.MinSamples {
		return
	}

	model, err := trainCentroidModel(ts.history, g.config.Contamination)
	if err != nil {
		g.logger.Warn("anomaly detector training failed, keeping previous model",
			zap.String("tenant", tenantID),
			zap.Int("history", len(ts.history)),
			zap.Error(err),
		)
		return
	}
	ts.model = model
}

// TenantState returns the tenant's detector state.
func (g *Gate) TenantState(tenantID string) State {
	g.mu.RLock()
	ts, ok := g.tenants[tenantID]
	g.mu.RUnlock()
	if !ok {
		return StateCold
	}

	ts.mu.Lock()
	defer ts.mu.Unlock()
	switch {
	case ts.model != nil:
		return StateArmed
	case len(ts.history) > 0:
		return StateWarming
	default:
		return StateCold
	}
}

// HistoryLen returns the number of queries observed for the tenant.
func (g *Gate) HistoryLen(tenantID string) int {
	g.mu.RLock()
	ts, ok := g.tenants[tenantID]
	g.mu.RUnlock()
	if !ok {
		return 0
	}

	ts.mu.Lock()
	defer ts.mu.Unlock()
	return len(ts.history)
}

func (g *Gate) tenant(tenantID string) *tenantState {
	g.mu.RLock()
	ts, ok := g.tenants[tenantID]
	g.mu.RUnlock()
	if ok {
		return ts
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if ts, ok = g.tenants[tenantID]; ok {
		return ts
	}
	ts = &tenantState{}
	g.tenants[tenantID] = ts
	return ts
}

// centroidModel is an unsupervised outlier detector: it measures cosine
// distance from the training history's mean vector and flags scores above
// the (1 - contamination) quantile of the training distances.
type centroidModel struct {
	centroid  []float64
	threshold float64
}

func trainCentroidModel(history [][]float32, contamination float64) (*centroidModel, error) {
	dim := len(history[0])
	centroid := make([]float64, dim)
	for _, vec := range history {
		for i, v := range vec {
			centroid[i] += float64(v)
		}
	}
	for i := range centroid {
		centroid[i] /= float64(len(history))
	}

	distances := make([]float64, len(history))
	for i, vec := range history {
		distances[i] = cosineDistance(centroid, vec)
	}

	threshold, err := stats.Percentile(distances, (1-contamination)*100)
	if err != nil {
		return nil, err
	}
	return &centroidModel{centroid: centroid, threshold: threshold}, nil
}

func (m *centroidModel) score(embedding []float32) (bool, error) {
	if len(embedding) != len(m.centroid) {
		return false, stats.ErrSize
	}
	return cosineDistance(m.centroid, embedding) > m.threshold, nil
}

func cosineDistance(centroid []float64, vec []float32) float64 {
	var dot, na, nb float64
	for i := range centroid {
		dot += centroid[i] * float64(vec[i])
		na += centroid[i] * centroid[i]
		nb += float64(vec[i]) * float64(vec[i])
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}
