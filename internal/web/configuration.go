package web

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/metalagman/pendingreview/internal/autoreview"
	"github.com/metalagman/pendingreview/internal/review"
	"github.com/xeipuuv/gojsonschema"
)

const maxConfigurationBody = 1 << 20

//go:embed configuration.schema.json
var configurationSchema string

var configurationLoader = gojsonschema.NewStringLoader(configurationSchema)

// configurationUpdate holds the keys present in an update; absent keys keep
// their stored value.
type configurationUpdate struct {
	BlockingCategories *[]string `json:"blocking_categories"`
	AutoApprovedGroups *[]string `json:"auto_approved_groups"`
}

func (u configurationUpdate) apply(cfg autoreview.WikiConfiguration) autoreview.WikiConfiguration {
	if u.BlockingCategories != nil {
		cfg.BlockingCategories = *u.BlockingCategories
	}
	if u.AutoApprovedGroups != nil {
		cfg.AutoApprovedGroups = *u.AutoApprovedGroups
	}
	return cfg
}

// decodeConfiguration reads a configuration update and checks it against
// the configuration schema.
func decodeConfiguration(r *http.Request) (configurationUpdate, error) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxConfigurationBody))
	if err != nil {
		return configurationUpdate{}, fmt.Errorf("%w: %w", review.ErrInvalidConfiguration, err)
	}
	result, err := gojsonschema.Validate(configurationLoader, gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return configurationUpdate{}, fmt.Errorf("%w: %w", review.ErrInvalidConfiguration, err)
	}
	if !result.Valid() {
		problems := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			problems = append(problems, e.String())
		}
		return configurationUpdate{}, fmt.Errorf("%w: %s", review.ErrInvalidConfiguration, strings.Join(problems, "; "))
	}

	var update configurationUpdate
	if err := json.Unmarshal(raw, &update); err != nil {
		return configurationUpdate{}, fmt.Errorf("%w: %w", review.ErrInvalidConfiguration, err)
	}
	return update, nil
}
