package as2transport

import (
	"encoding/base64"
	"fmt"
)

// decodeMIC decodes the base64 MIC value carried in a Received-Content-MIC
// header field (the part before the comma-separated algorithm name).
func decodeMIC(micText string) ([]byte, error) {
	if micText == "" {
		return nil, fmt.Errorf("empty MIC value")
	}
	decoded, err := base64.StdEncoding.DecodeString(micText)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 MIC: %w", err)
	}
	return decoded, nil
}
