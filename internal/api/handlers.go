package api

import (
	"math"
	"net/http"

	"github.com/go-chi/render"

	"github.com/Veraticus/basket-rules/internal/basket"
	"github.com/Veraticus/basket-rules/internal/model"
)

// RuleResponse is one rule of the rule table. Conviction is null for a rule
// whose confidence is 1.
type RuleResponse struct {
	Antecedent        []string `json:"antecedent"`
	Consequent        []string `json:"consequent"`
	AntecedentSupport float64  `json:"antecedent_support"`
	ConsequentSupport float64  `json:"consequent_support"`
	Support           float64  `json:"support"`
	Confidence        float64  `json:"confidence"`
	Lift              float64  `json:"lift"`
	Leverage          float64  `json:"leverage"`
	Conviction        *float64 `json:"conviction"`
}

// RulesResponse is the body of GET /rules.
type RulesResponse struct {
	Filter       FilterResponse `json:"filter"`
	Granularity  string         `json:"granularity"`
	Metric       string         `json:"metric"`
	Rules        []RuleResponse `json:"rules"`
	MinSupport   float64        `json:"min_support"`
	Threshold    float64        `json:"threshold"`
	Transactions int            `json:"transactions"`
	Itemsets     int            `json:"itemsets"`
}

// FilterResponse echoes the outlet and period analysed.
type FilterResponse struct {
	PointOfSale string `json:"pos"`
	Year        int    `json:"year"`
	Quarter     int    `json:"quarter"`
}

// LookupResponse is the body of GET /rules/lookup.
type LookupResponse struct {
	Antecedent string  `json:"antecedent"`
	Consequent string  `json:"consequent"`
	Support    float64 `json:"support"`
	Confidence float64 `json:"confidence"`
	Lift       float64 `json:"lift"`
}

// OptionsResponse is the body of GET /options.
type OptionsResponse struct {
	PointsOfSale  []string `json:"pos"`
	Years         []int    `json:"years"`
	Quarters      []int    `json:"quarters"`
	Granularities []string `json:"granularities"`
	Metrics       []string `json:"metrics"`
}

// ItemsResponse is the body of GET /items.
type ItemsResponse struct {
	Granularity string   `json:"granularity"`
	Items       []string `json:"items"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]string{"status": "ok"})
}

func (s *Server) options(w http.ResponseWriter, r *http.Request) {
	sel, err := s.selections.Selection(r.Context())
	if err != nil {
		s.renderError(w, r, err)
		return
	}

	grans := model.Granularities()
	resp := OptionsResponse{
		PointsOfSale:  nonNil(sel.PointsOfSale),
		Years:         nonNil(sel.Years),
		Quarters:      nonNil(sel.Quarters),
		Granularities: make([]string, len(grans)),
		Metrics:       []string{string(basket.MetricConfidence), string(basket.MetricLift)},
	}
	for i, g := range grans {
		resp.Granularities[i] = string(g)
	}
	render.JSON(w, r, resp)
}

func (s *Server) items(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter, err := parseFilter(q)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	g, err := parseGranularity(q, s.defaults.Granularity)
	if err != nil {
		s.renderError(w, r, err)
		return
	}

	items, err := s.analyzer.Items(r.Context(), filter, g)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	render.JSON(w, r, ItemsResponse{Granularity: string(g), Items: nonNil(items)})
}

func (s *Server) rules(w http.ResponseWriter, r *http.Request) {
	cfg, err := parseConfig(r, s.defaults)
	if err != nil {
		s.renderError(w, r, err)
		return
	}

	res, err := s.analyzer.Run(r.Context(), cfg)
	if err != nil {
		s.renderError(w, r, err)
		return
	}

	rules := res.Rules.Rules()
	resp := RulesResponse{
		Filter: FilterResponse{
			PointOfSale: cfg.Filter.PointOfSaleID,
			Year:        cfg.Filter.Year,
			Quarter:     cfg.Filter.Quarter,
		},
		Granularity:  string(cfg.Granularity),
		Metric:       string(cfg.Metric),
		MinSupport:   cfg.MinSupport,
		Threshold:    cfg.Threshold,
		Transactions: res.Matrix.Len(),
		Itemsets:     len(res.Itemsets),
		Rules:        make([]RuleResponse, len(rules)),
	}
	for i, rule := range rules {
		resp.Rules[i] = RuleResponse{
			Antecedent:        rule.Antecedent,
			Consequent:        rule.Consequent,
			AntecedentSupport: rule.AntecedentSupport,
			ConsequentSupport: rule.ConsequentSupport,
			Support:           rule.Support,
			Confidence:        rule.Confidence,
			Lift:              rule.Lift,
			Leverage:          rule.Leverage,
			Conviction:        finite(rule.Conviction),
		}
	}
	render.JSON(w, r, resp)
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) {
	cfg, err := parseConfig(r, s.defaults)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	lq, err := parseLookup(r.URL.Query())
	if err != nil {
		s.renderError(w, r, err)
		return
	}

	m, err := s.analyzer.Lookup(r.Context(), cfg, lq.Antecedent, lq.Consequent)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	render.JSON(w, r, LookupResponse{
		Antecedent: lq.Antecedent,
		Consequent: lq.Consequent,
		Support:    m.Support,
		Confidence: m.Confidence,
		Lift:       m.Lift,
	})
}

// finite returns nil for values JSON cannot carry.
func finite(v float64) *float64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return nil
	}
	return &v
}

// nonNil keeps empty lists as [] rather than null in JSON.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
