package ingest

import (
	"time"

	"github.com/appdedupe/appdedupe/internal/models"
)

// Plan is the complete replacement data set built before any write.
type Plan struct {
	Clusters []*models.Cluster
	Apps     []*models.AppName
}

// BuildPlan makes one cluster per distinct canonical name. Each cluster gets
// an unconfirmed app name for the canonical name itself followed by one per
// variant in row order, repeats included; rows repeating a canonical name
// extend the same cluster.
func BuildPlan(rows []Row, uploadedBy string, now time.Time) *Plan {
	p := &Plan{}
	byName := map[string]*models.Cluster{}

	add := func(c *models.Cluster, name string) {
		p.Apps = append(p.Apps, &models.AppName{
			ID:            models.NewID(),
			Name:          name,
			CanonicalName: c.CanonicalName,
			ClusterID:     c.ID,
			CreatedBy:     uploadedBy,
			CreatedAt:     now,
			UpdatedAt:     now,
		})
	}

	for _, r := range rows {
		c, ok := byName[r.Canonical]
		if !ok {
			c = &models.Cluster{
				ID:            models.NewID(),
				Name:          r.Canonical,
				CanonicalName: r.Canonical,
				CreatedBy:     uploadedBy,
				CreatedAt:     now,
				UpdatedAt:     now,
			}
			byName[r.Canonical] = c
			p.Clusters = append(p.Clusters, c)
			add(c, r.Canonical)
		}
		for _, v := range r.Variants {
			add(c, v)
		}
	}
	return p
}
