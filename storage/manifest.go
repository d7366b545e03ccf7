package storage

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ruteri/dao-provisioning-backend/interfaces"
)

// objectName is the per-network object key used by the keyed stores.
func objectName(network string) (string, error) {
	if err := checkNetwork(network); err != nil {
		return "", err
	}
	return network + ".json", nil
}

// checkNetwork rejects names that cannot be used as a single path segment.
func checkNetwork(network string) error {
	if network == "" || network == "." || network == ".." || strings.ContainsAny(network, `/\`) {
		return fmt.Errorf("%w: bad network name %q", interfaces.ErrInvalidManifest, network)
	}
	return nil
}

func encodeManifest(m *interfaces.Manifest) ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	if err := checkNetwork(m.Network); err != nil {
		return nil, err
	}
	return json.MarshalIndent(m, "", "  ")
}

func decodeManifest(network string, data []byte) (*interfaces.Manifest, error) {
	var m interfaces.Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", interfaces.ErrInvalidManifest, network, err)
	}
	if m.Network == "" {
		m.Network = network
	}
	return &m, nil
}
