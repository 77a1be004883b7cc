package graph

import (
	"encoding/base64"
	"strings"

	"github.com/google/uuid"
)

// IDGenerator returns a fresh node id.
type IDGenerator func() string

// NewNodeID returns a random id over [A-Za-z0-9_-] with no leading or
// trailing '_' or '-', so it always satisfies the node id pattern.
func NewNodeID() string {
	for {
		u := uuid.New()
		id := strings.Trim(base64.RawURLEncoding.EncodeToString(u[:]), "_-")
		if id != "" {
			return id
		}
	}
}
