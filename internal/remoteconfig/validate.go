package remoteconfig

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/bnema/tranquilize/internal/models"
)

// ErrValidation is returned for documents that are not a usable rule set
var ErrValidation = errors.New("invalid config structure")

// Decode validates a raw document and decodes it. The document needs a
// non-empty "version" string and a "sites" object.
func Decode(data []byte) (*models.RemoteConfig, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: malformed JSON", ErrValidation)
	}

	doc := gjson.ParseBytes(data)
	if !doc.IsObject() {
		return nil, fmt.Errorf("%w: document is not an object", ErrValidation)
	}
	if v := doc.Get("version"); v.Type != gjson.String || v.Str == "" {
		return nil, fmt.Errorf("%w: missing version", ErrValidation)
	}
	if !doc.Get("sites").IsObject() {
		return nil, fmt.Errorf("%w: missing sites", ErrValidation)
	}

	var cfg models.RemoteConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return &cfg, nil
}
