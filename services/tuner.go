package services

import (
	"context"
	"math"

	"badge-engine/models"

	"go.uber.org/zap"
)

const (
	defaultEasyRate = 80.0 // % holders above which a badge gets harder
	defaultHardRate = 5.0  // % holders below which a badge gets easier
	harderFactor    = 1.2
	easierFactor    = 0.8
)

// RetuneReport lists the badges whose thresholds moved.
type RetuneReport struct {
	TotalUsers int64    `json:"total_users"`
	Examined   int      `json:"examined"`
	Harder     []string `json:"harder,omitempty"`
	Easier     []string `json:"easier,omitempty"`
	Skipped    bool     `json:"skipped"`
}

// Tuner scales requirement thresholds from observed completion rates. It
// only rewrites catalog definitions; owned badges and stored progress stay.
type Tuner struct {
	Catalog    *Catalog
	Awards     *AwardEngine
	Population PopulationProvider
	Log        *zap.Logger
	EasyRate   float64
	HardRate   float64
}

func NewTuner(catalog *Catalog, awards *AwardEngine, population PopulationProvider, log *zap.Logger) *Tuner {
	return &Tuner{
		Catalog:    catalog,
		Awards:     awards,
		Population: population,
		Log:        log,
		EasyRate:   defaultEasyRate,
		HardRate:   defaultHardRate,
	}
}

func (t *Tuner) Retune(ctx context.Context) (RetuneReport, error) {
	var report RetuneReport
	total, err := t.Population.TotalEligibleUsers(ctx)
	if err != nil {
		return report, err
	}
	report.TotalUsers = total
	if total == 0 {
		report.Skipped = true
		t.Log.Info("[RETUNE] no eligible users, skipping")
		return report, nil
	}

	for _, def := range t.Catalog.ListActive(true, RarityAscending) {
		if len(def.Requirements) == 0 {
			continue
		}
		report.Examined++
		holders, err := t.Awards.HolderCount(ctx, def.ID)
		if err != nil {
			return report, err
		}
		rate := float64(holders) / float64(total) * 100

		var factor float64
		switch {
		case rate > t.EasyRate:
			factor = harderFactor
		case rate < t.HardRate:
			factor = easierFactor
		default:
			continue
		}

		reqs := ScaleRequirements(def.Requirements, factor)
		if err := t.Catalog.UpdateRequirements(ctx, def.ID, reqs); err != nil {
			return report, err
		}
		if factor > 1 {
			report.Harder = append(report.Harder, def.ID)
		} else {
			report.Easier = append(report.Easier, def.ID)
		}
		t.Log.Info("[RETUNE] thresholds scaled",
			zap.String("badge_id", def.ID),
			zap.Float64("completion_rate", rate),
			zap.Float64("factor", factor))
	}
	return report, nil
}

// ScaleRequirements multiplies every threshold by factor, rounding to the
// nearest integer with a floor of 1.
func ScaleRequirements(reqs []models.Requirement, factor float64) []models.Requirement {
	out := make([]models.Requirement, len(reqs))
	for i, req := range reqs {
		req.Value = scaleThreshold(req.Value, factor)
		if req.Operator == models.OpBetween {
			req.Max = scaleThreshold(req.Max, factor)
		}
		out[i] = req
	}
	return out
}

func scaleThreshold(v, factor float64) float64 {
	return math.Max(1, math.Round(v*factor))
}
