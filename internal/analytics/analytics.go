// Package analytics is a read-only SQL aggregation service over
// internal/store's tables, grounded on the teacher's hand-written
// repository style (internal/registry/repository) — manual SQL via
// pgx/v5, no ORM, one method per named query rather than a generic
// query-builder.
package analytics

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Service answers the four read-only aggregations named in spec §4.9.
type Service struct {
	db *pgxpool.Pool
}

// New builds a Service against the shared connection pool.
func New(db *pgxpool.Pool) *Service {
	return &Service{db: db}
}

// Window bounds a query by creation time, inclusive of From and exclusive
// of To. A zero To means "through now".
type Window struct {
	From time.Time
	To   time.Time
}

func (w Window) resolvedTo() time.Time {
	if w.To.IsZero() {
		return time.Now().UTC()
	}
	return w.To
}

// Funnel is the four-stage conversion funnel described in spec §4.9.
type Funnel struct {
	Visitors  int
	Engaged   int
	Qualified int
	Converted int

	VisitorToEngagedRate     float64
	EngagedToQualifiedRate   float64
	QualifiedToConvertedRate float64
}

// Funnel computes the funnel for ownerID, optionally narrowed to one agent.
func (s *Service) Funnel(ctx context.Context, ownerID string, agentID *uuid.UUID, window Window) (*Funnel, error) {
	const query = `
		SELECT
			COUNT(DISTINCT c.session_id) AS visitors,
			COUNT(DISTINCT c.session_id) FILTER (WHERE jsonb_array_length(c.messages) >= 3) AS engaged,
			COUNT(DISTINCT c.session_id) FILTER (WHERE c.lead_info <> '{}'::jsonb) AS qualified,
			COUNT(DISTINCT c.session_id) FILTER (WHERE c.order_id IS NOT NULL) AS converted
		FROM conversations c
		JOIN agents a ON a.id = c.agent_id
		WHERE a.owner_id = $1
		  AND ($2::uuid IS NULL OR c.agent_id = $2)
		  AND c.created_at >= $3 AND c.created_at < $4`

	var f Funnel
	err := s.db.QueryRow(ctx, query, ownerID, agentID, window.From, window.resolvedTo()).
		Scan(&f.Visitors, &f.Engaged, &f.Qualified, &f.Converted)
	if err != nil {
		return nil, err
	}

	f.VisitorToEngagedRate = rate(f.Engaged, f.Visitors)
	f.EngagedToQualifiedRate = rate(f.Qualified, f.Engaged)
	f.QualifiedToConvertedRate = rate(f.Converted, f.Qualified)
	return &f, nil
}

// PeakHourBucket is one UTC hour-of-day's conversation count.
type PeakHourBucket struct {
	Hour  int
	Count int
}

// PeakHours buckets conversations by hour-of-day in UTC.
func (s *Service) PeakHours(ctx context.Context, ownerID string, agentID *uuid.UUID, window Window) ([]PeakHourBucket, error) {
	const query = `
		SELECT EXTRACT(HOUR FROM c.created_at AT TIME ZONE 'UTC')::int AS hour, COUNT(*)
		FROM conversations c
		JOIN agents a ON a.id = c.agent_id
		WHERE a.owner_id = $1
		  AND ($2::uuid IS NULL OR c.agent_id = $2)
		  AND c.created_at >= $3 AND c.created_at < $4
		GROUP BY hour
		ORDER BY hour`

	rows, err := s.db.Query(ctx, query, ownerID, agentID, window.From, window.resolvedTo())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	buckets := make([]PeakHourBucket, 0, 24)
	for rows.Next() {
		var b PeakHourBucket
		if err := rows.Scan(&b.Hour, &b.Count); err != nil {
			return nil, err
		}
		buckets = append(buckets, b)
	}
	return buckets, rows.Err()
}

// DailyTrend is one day's conversation and lead counts.
type DailyTrend struct {
	Day               time.Time
	ConversationCount int
	LeadCount         int
}

// DailyTrends returns per-day conversation and lead counts over window.
func (s *Service) DailyTrends(ctx context.Context, ownerID string, agentID *uuid.UUID, window Window) ([]DailyTrend, error) {
	const query = `
		SELECT
			date_trunc('day', c.created_at) AS day,
			COUNT(*) AS conversation_count,
			COUNT(*) FILTER (WHERE c.lead_info <> '{}'::jsonb) AS lead_count
		FROM conversations c
		JOIN agents a ON a.id = c.agent_id
		WHERE a.owner_id = $1
		  AND ($2::uuid IS NULL OR c.agent_id = $2)
		  AND c.created_at >= $3 AND c.created_at < $4
		GROUP BY day
		ORDER BY day`

	rows, err := s.db.Query(ctx, query, ownerID, agentID, window.From, window.resolvedTo())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trends []DailyTrend
	for rows.Next() {
		var t DailyTrend
		if err := rows.Scan(&t.Day, &t.ConversationCount, &t.LeadCount); err != nil {
			return nil, err
		}
		trends = append(trends, t)
	}
	return trends, rows.Err()
}

// AgentPerformance is one agent's totals over window, used to rank agents
// by conversion rate.
type AgentPerformance struct {
	AgentID           uuid.UUID
	AgentName         string
	ConversationCount int
	LeadCount         int
	OrderCount        int
	ConversionRate    float64
}

// AgentPerformance returns per-agent sums sorted by conversion rate desc.
func (s *Service) AgentPerformance(ctx context.Context, ownerID string, window Window) ([]AgentPerformance, error) {
	const query = `
		SELECT
			a.id, a.name,
			COUNT(c.id) AS conversation_count,
			COUNT(c.id) FILTER (WHERE c.lead_info <> '{}'::jsonb) AS lead_count,
			COUNT(c.id) FILTER (WHERE c.order_id IS NOT NULL) AS order_count
		FROM agents a
		LEFT JOIN conversations c
			ON c.agent_id = a.id AND c.created_at >= $2 AND c.created_at < $3
		WHERE a.owner_id = $1
		GROUP BY a.id, a.name`

	rows, err := s.db.Query(ctx, query, ownerID, window.From, window.resolvedTo())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []AgentPerformance
	for rows.Next() {
		var p AgentPerformance
		if err := rows.Scan(&p.AgentID, &p.AgentName, &p.ConversationCount, &p.LeadCount, &p.OrderCount); err != nil {
			return nil, err
		}
		p.ConversionRate = rate(p.OrderCount, p.ConversationCount)
		results = append(results, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].ConversionRate > results[j].ConversionRate
	})
	return results, nil
}

func rate(numerator, denominator int) float64 {
	if denominator == 0 {
		return 0
	}
	return float64(numerator) / float64(denominator)
}
