package policy

import (
	"bytes"
	"fmt"
	"os"

	"github.com/davidahmann/spendgate/internal/crypto"
	"gopkg.in/yaml.v3"
)

type LoadedPolicy struct {
	Policy Policy
	Hash   string
	Bytes  []byte
}

// LoadPolicy loads a YAML policy and computes its hash from raw bytes.
func LoadPolicy(path string) (LoadedPolicy, error) {
	// #nosec G304 -- path comes from operator-configured policy path.
	data, err := os.ReadFile(path)
	if err != nil {
		return LoadedPolicy{}, err
	}
	return ParsePolicy(data)
}

// ParsePolicy decodes policy YAML strictly; unknown keys are rejected.
func ParsePolicy(data []byte) (LoadedPolicy, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var p Policy
	if err := dec.Decode(&p); err != nil {
		return LoadedPolicy{}, fmt.Errorf("decode policy: %w", err)
	}
	if p.PolicyID == "" {
		return LoadedPolicy{}, fmt.Errorf("decode policy: policy_id is required")
	}

	return LoadedPolicy{
		Policy: p,
		Hash:   crypto.DigestWithPrefix(data),
		Bytes:  data,
	}, nil
}

// FromPolicy wraps an in-memory policy, hashing its canonical JSON form.
func FromPolicy(p Policy) (LoadedPolicy, error) {
	canonical, err := crypto.Canonicalize(p)
	if err != nil {
		return LoadedPolicy{}, err
	}
	return LoadedPolicy{Policy: p, Hash: crypto.DigestWithPrefix(canonical), Bytes: canonical}, nil
}
