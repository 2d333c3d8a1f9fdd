// Package attribution stamps acting-user identity and timestamps onto
// metrics and their leaf values. The pass is idempotent: nodes that already
// carry attribution are left untouched, so it composes with partially
// pre-attributed payloads supplied directly via the API.
package attribution

import (
	"time"

	"github.com/verdantiq/esg-cli/internal/model"
)

// Stamp walks the typed metric tree and fills missing attribution in place.
// Rules, per node kind:
//   - a Metric gets CreatedBy/CreatedAt when absent;
//   - each YearlyDataPoint and SingleValue gets AddedBy/AddedAt when absent;
//   - each list item gets "added_by" and "source" keys when absent.
func Stamp(metrics []model.Metric, actor string, at time.Time) {
	for i := range metrics {
		m := &metrics[i]
		if m.CreatedBy == "" {
			m.CreatedBy = actor
		}
		if m.CreatedAt.IsZero() {
			m.CreatedAt = at
		}

		if m.Yearly != nil {
			for j := range m.Yearly.Data {
				dp := &m.Yearly.Data[j]
				if dp.AddedBy == "" {
					dp.AddedBy = actor
				}
				if dp.AddedAt.IsZero() {
					dp.AddedAt = at
				}
			}
		}
		if m.Single != nil {
			if m.Single.AddedBy == "" {
				m.Single.AddedBy = actor
			}
			if m.Single.AddedAt.IsZero() {
				m.Single.AddedAt = at
			}
		}
		if m.List != nil {
			for _, item := range m.List.Items {
				if _, ok := item["added_by"]; !ok {
					item["added_by"] = actor
				}
				if _, ok := item["source"]; !ok {
					item["source"] = "manual"
				}
			}
		}
	}
}
