package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/Veraticus/basket-rules/internal/basket"
	"github.com/Veraticus/basket-rules/internal/config"
	"github.com/Veraticus/basket-rules/internal/model"
	"github.com/Veraticus/basket-rules/internal/pipeline"
)

var validate = validator.New()

// filterQuery is the outlet/period part shared by every analysis endpoint.
type filterQuery struct {
	PointOfSale string `validate:"required"`
	Year        int    `validate:"required,gte=1900,lte=9999"`
	Quarter     int    `validate:"required,gte=1,lte=4"`
}

type lookupQuery struct {
	Antecedent string `validate:"required"`
	Consequent string `validate:"required"`
}

func parseFilter(q url.Values) (model.Filter, error) {
	year, err := intParam(q, "year")
	if err != nil {
		return model.Filter{}, err
	}
	quarter, err := intParam(q, "quarter")
	if err != nil {
		return model.Filter{}, err
	}

	fq := filterQuery{
		PointOfSale: strings.TrimSpace(q.Get("pos")),
		Year:        year,
		Quarter:     quarter,
	}
	if err := check(fq); err != nil {
		return model.Filter{}, err
	}
	return model.Filter{PointOfSaleID: fq.PointOfSale, Year: fq.Year, Quarter: fq.Quarter}, nil
}

// parseGranularity reads the granularity parameter, falling back to def.
func parseGranularity(q url.Values, def model.Granularity) (model.Granularity, error) {
	raw := q.Get("granularity")
	if raw == "" {
		return def, nil
	}
	return model.ParseGranularity(raw)
}

// parseConfig builds a pipeline configuration from the query, using defaults
// for every knob the caller leaves out.
func parseConfig(r *http.Request, defaults config.Analysis) (pipeline.Config, error) {
	q := r.URL.Query()

	filter, err := parseFilter(q)
	if err != nil {
		return pipeline.Config{}, err
	}

	a := defaults
	if a.Granularity, err = parseGranularity(q, defaults.Granularity); err != nil {
		return pipeline.Config{}, err
	}
	if raw := q.Get("metric"); raw != "" {
		if a.Metric, err = basket.ParseMetric(raw); err != nil {
			return pipeline.Config{}, err
		}
	}
	if q.Has("threshold") {
		if a.Threshold, err = floatParam(q, "threshold"); err != nil {
			return pipeline.Config{}, err
		}
	}
	if q.Has("min_support") {
		if a.MinSupport, err = floatParam(q, "min_support"); err != nil {
			return pipeline.Config{}, err
		}
	}

	return a.Config(filter), nil
}

func parseLookup(q url.Values) (lookupQuery, error) {
	lq := lookupQuery{
		Antecedent: strings.TrimSpace(q.Get("antecedent")),
		Consequent: strings.TrimSpace(q.Get("consequent")),
	}
	if err := check(lq); err != nil {
		return lookupQuery{}, err
	}
	return lq, nil
}

func intParam(q url.Values, name string) (int, error) {
	raw := strings.TrimSpace(q.Get(name))
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer, got %q", ErrBadRequest, name, raw)
	}
	return v, nil
}

func floatParam(q url.Values, name string) (float64, error) {
	raw := strings.TrimSpace(q.Get(name))
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be a number, got %q", ErrBadRequest, name, raw)
	}
	return v, nil
}

func check(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %w", ErrBadRequest, err)
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, describe(fe))
	}
	return fmt.Errorf("%w: %s", ErrBadRequest, strings.Join(msgs, "; "))
}

var paramNames = map[string]string{
	"PointOfSale": "pos",
	"Year":        "year",
	"Quarter":     "quarter",
	"Antecedent":  "antecedent",
	"Consequent":  "consequent",
}

func describe(fe validator.FieldError) string {
	name := paramNames[fe.Field()]
	switch fe.Tag() {
	case "required":
		return name + " is required"
	case "gte":
		return fmt.Sprintf("%s must be at least %s", name, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be at most %s", name, fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", name)
	}
}
