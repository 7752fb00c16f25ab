// Package pack bundles an audit record and the records it links to into a
// self-contained zip that can be verified offline.
package pack

import (
	"archive/zip"
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/davidahmann/spendgate/internal/crypto"
	"github.com/davidahmann/spendgate/internal/grade"
	"github.com/davidahmann/spendgate/internal/ledger"
)

const ManifestSchema = "spendgate.pack.v0.1"

// packTime keeps zip output byte-stable across builds.
var packTime = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

type Input struct {
	Audit     ledger.AuditRecord
	Context   *ledger.ContextRecord
	Decision  *ledger.DecisionRecord
	Policy    *ledger.PolicyVersionRecord
	PublicKey []byte
	Grade     grade.Result
}

type ManifestFile struct {
	Name   string `json:"name"`
	Digest string `json:"digest"`
	Size   int    `json:"size"`
}

type Manifest struct {
	Schema        string         `json:"schema"`
	CorrelationID string         `json:"correlation_id"`
	ContextID     string         `json:"context_id"`
	DecisionID    string         `json:"decision_id"`
	PolicyHash    string         `json:"policy_hash"`
	Outcome       string         `json:"outcome"`
	KeyID         string         `json:"key_id"`
	Grade         grade.Result   `json:"grade"`
	VerifyURL     string         `json:"verify_url,omitempty"`
	Files         []ManifestFile `json:"files"`
}

type auditFile struct {
	CorrelationID string          `json:"correlation_id"`
	BodyDigest    string          `json:"body_digest"`
	KeyID         string          `json:"key_id"`
	Sig           string          `json:"sig"`
	PublicKey     string          `json:"public_key,omitempty"`
	CreatedAt     string          `json:"created_at"`
	Body          json.RawMessage `json:"body"`
}

// BuildFiles returns the pack contents keyed by file name. Linked records
// that were pruned are simply absent; the manifest grade reflects that.
func BuildFiles(in Input, baseURL string) (map[string][]byte, error) {
	if in.Audit.CorrelationID == "" || len(in.Audit.BodyJSON) == 0 {
		return nil, fmt.Errorf("pack requires an audit record")
	}

	files := map[string][]byte{}
	audit := auditFile{
		CorrelationID: in.Audit.CorrelationID,
		BodyDigest:    in.Audit.BodyDigest,
		KeyID:         in.Audit.KeyID,
		Sig:           base64.StdEncoding.EncodeToString(in.Audit.Sig),
		CreatedAt:     in.Audit.CreatedAt,
		Body:          json.RawMessage(in.Audit.BodyJSON),
	}
	if len(in.PublicKey) > 0 {
		audit.PublicKey = base64.StdEncoding.EncodeToString(in.PublicKey)
	}
	auditJSON, err := json.MarshalIndent(audit, "", "  ")
	if err != nil {
		return nil, err
	}
	files["audit.json"] = auditJSON

	if in.Context != nil {
		files["context.json"] = in.Context.BodyJSON
	}
	if in.Decision != nil {
		files["decision.json"] = in.Decision.BodyJSON
	}
	if in.Policy != nil {
		files["policy.yaml"] = []byte(in.Policy.PolicyYAML)
	}

	manifest := Manifest{
		Schema:        ManifestSchema,
		CorrelationID: in.Audit.CorrelationID,
		ContextID:     in.Audit.ContextID,
		DecisionID:    in.Audit.DecisionID,
		PolicyHash:    in.Audit.PolicyHash,
		Outcome:       in.Audit.Outcome,
		KeyID:         in.Audit.KeyID,
		Grade:         in.Grade,
	}
	if baseURL != "" {
		manifest.VerifyURL = strings.TrimRight(baseURL, "/") + "/v1/audit/" + in.Audit.CorrelationID + "/verify"
	}

	var sums strings.Builder
	for _, name := range sortedNames(files) {
		data := files[name]
		digest := crypto.DigestWithPrefix(data)
		manifest.Files = append(manifest.Files, ManifestFile{Name: name, Digest: digest, Size: len(data)})
		fmt.Fprintf(&sums, "%s  %s\n", crypto.ShortDigest(digest, 0), name)
	}
	manifestJSON, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, err
	}
	files["manifest.json"] = manifestJSON
	files["sha256sums.txt"] = []byte(sums.String())
	return files, nil
}

func BuildZip(in Input, baseURL string) ([]byte, error) {
	files, err := BuildFiles(in, baseURL)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := WriteZip(&buf, files); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteZip writes files in name order with fixed timestamps.
func WriteZip(w io.Writer, files map[string][]byte) error {
	zw := zip.NewWriter(w)
	for _, name := range sortedNames(files) {
		fw, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate, Modified: packTime})
		if err != nil {
			return err
		}
		if _, err := fw.Write(files[name]); err != nil {
			return err
		}
	}
	return zw.Close()
}

func sortedNames(files map[string][]byte) []string {
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
