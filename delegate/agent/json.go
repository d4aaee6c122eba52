package agent

import (
	"encoding/json"

	"github.com/veupathdb/strategy-delegate/delegate/toolregistry"
)

func marshalResult(r toolregistry.Result) ([]byte, error) {
	return json.Marshal(map[string]any(r))
}
