package config

import (
	"errors"
	"fmt"
	"runtime"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/Veraticus/basket-rules/internal/basket"
	"github.com/Veraticus/basket-rules/internal/common"
	"github.com/Veraticus/basket-rules/internal/model"
	"github.com/Veraticus/basket-rules/internal/pipeline"
)

// Default analysis settings.
const (
	DefaultMinSupport  = 0.5
	DefaultMetric      = basket.MetricLift
	DefaultThreshold   = 0.0
	DefaultGranularity = model.GranularityFamily
	DefaultServerAddr  = ":8080"
)

// Analysis holds the mining knobs shared by the CLI and the HTTP API.
type Analysis struct {
	Granularity model.Granularity `validate:"required,oneof=ProductFamily_ID ProductCategory_ID"`
	Metric      basket.Metric     `validate:"required,oneof=confidence lift"`
	MinSupport  float64           `validate:"gte=0,lte=1"`
	Threshold   float64           `validate:"gte=0"`
	Workers     int               `validate:"gte=0,lte=256"`
	CacheSize   int               `validate:"gte=0"`
}

var validate = validator.New()

// SetDefaults registers the analysis defaults with viper.
func SetDefaults() {
	viper.SetDefault("analysis.min_support", DefaultMinSupport)
	viper.SetDefault("analysis.metric", string(DefaultMetric))
	viper.SetDefault("analysis.threshold", DefaultThreshold)
	viper.SetDefault("analysis.granularity", string(DefaultGranularity))
	viper.SetDefault("analysis.workers", runtime.GOMAXPROCS(0))
	viper.SetDefault("analysis.cache_size", pipeline.DefaultCacheSize)
	viper.SetDefault("server.addr", DefaultServerAddr)
}

// LoadAnalysis reads the analysis section from viper and validates it.
func LoadAnalysis() (Analysis, error) {
	g, err := model.ParseGranularity(viper.GetString("analysis.granularity"))
	if err != nil {
		return Analysis{}, fmt.Errorf("%w: %w", common.ErrInvalidConfig, err)
	}
	metric, err := basket.ParseMetric(viper.GetString("analysis.metric"))
	if err != nil {
		return Analysis{}, fmt.Errorf("%w: %w", common.ErrInvalidConfig, err)
	}

	a := Analysis{
		Granularity: g,
		Metric:      metric,
		MinSupport:  viper.GetFloat64("analysis.min_support"),
		Threshold:   viper.GetFloat64("analysis.threshold"),
		Workers:     viper.GetInt("analysis.workers"),
		CacheSize:   viper.GetInt("analysis.cache_size"),
	}
	if err := a.Validate(); err != nil {
		return Analysis{}, err
	}
	return a, nil
}

// Validate checks field ranges and the metric-specific threshold bound.
func (a Analysis) Validate() error {
	if err := validate.Struct(a); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			msgs := make([]string, 0, len(fieldErrs))
			for _, fe := range fieldErrs {
				msgs = append(msgs, describeFieldError(fe))
			}
			return fmt.Errorf("%w: %s", common.ErrInvalidConfig, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %w", common.ErrInvalidConfig, err)
	}
	if err := basket.ValidateThreshold(a.Metric, a.Threshold); err != nil {
		return fmt.Errorf("%w: %w", common.ErrInvalidConfig, err)
	}
	return nil
}

// Config builds the pipeline configuration for one filter.
func (a Analysis) Config(filter model.Filter) pipeline.Config {
	return pipeline.Config{
		Filter:      filter,
		Granularity: a.Granularity,
		Metric:      a.Metric,
		MinSupport:  a.MinSupport,
		Threshold:   a.Threshold,
	}
}

func describeFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", fe.Field(), fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
	}
}
