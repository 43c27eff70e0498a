package storage

import (
	"context"
	"sort"
)

// EndpointStats aggregates journaled runs of one endpoint.
type EndpointStats struct {
	Endpoint  string `json:"endpoint"`
	Runs      int64  `json:"runs"`
	Aborted   int64  `json:"aborted"`
	Succeeded int64  `json:"succeeded"`
	Failed    int64  `json:"failed"`
}

// Stats returns per-endpoint totals, ordered by endpoint name.
func (j *GormJournal) Stats(ctx context.Context) ([]*EndpointStats, error) {
	type row struct {
		Endpoint  string
		Status    string
		Count     int64
		Succeeded int64
		Failed    int64
	}
	var rows []row
	err := j.db.WithContext(ctx).
		Model(&RunRecord{}).
		Select("endpoint, status, count(*) as count, sum(succeeded) as succeeded, sum(failed) as failed").
		Group("endpoint, status").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	byEndpoint := make(map[string]*EndpointStats)
	for _, r := range rows {
		es, ok := byEndpoint[r.Endpoint]
		if !ok {
			es = &EndpointStats{Endpoint: r.Endpoint}
			byEndpoint[r.Endpoint] = es
		}
		es.Runs += r.Count
		es.Succeeded += r.Succeeded
		es.Failed += r.Failed
		if RunStatus(r.Status) == RunAborted {
			es.Aborted += r.Count
		}
	}

	out := make([]*EndpointStats, 0, len(byEndpoint))
	for _, es := range byEndpoint {
		out = append(out, es)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Endpoint < out[b].Endpoint })
	return out, nil
}
