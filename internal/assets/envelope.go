package assets

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/vidsyncd/vidsyncd/internal/models"
)

// envelope mirrors the {code, message, data} shape every remote endpoint
// responds with, same as internal/adapters' decoder — duplicated rather
// than exported across packages since each owns its own unmarshal targets.
type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func decodeEnvelope(body io.Reader) (envelope, error) {
	var env envelope
	if err := json.NewDecoder(body).Decode(&env); err != nil {
		return envelope{}, models.NewClassifiedError(models.KindMalformed, err)
	}
	if env.Code != 0 {
		return envelope{}, models.NewClassifiedError(
			models.ClassifyRemoteCode(env.Code),
			fmt.Errorf("%s (code %d)", env.Message, env.Code),
		)
	}
	return env, nil
}
