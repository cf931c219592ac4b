package state

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/hugo-lorenzo-mato/helix/internal/core"
)

// envelopeVersion is the current on-disk document version.
const envelopeVersion = 1

// checkpointEnvelope wraps a checkpoint record with integrity metadata.
type checkpointEnvelope struct {
	Version   int                   `json:"version"`
	Checksum  string                `json:"checksum"`
	UpdatedAt time.Time             `json:"updated_at"`
	Record    core.CheckpointRecord `json:"state"`
}

// checksum returns the hex sha256 of the record's JSON encoding.
func checksum(rec core.CheckpointRecord) (string, error) {
	b, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("marshaling record for checksum: %w", err)
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

// normalize passes rec through one JSON round trip so the record that is
// hashed and stored is the record a later load decodes. Invalid UTF-8 becomes
// U+FFFD and numbers become float64 on the first pass; after that the
// encoding is stable.
func normalize(rec core.CheckpointRecord) (core.CheckpointRecord, error) {
	b, err := json.Marshal(rec)
	if err != nil {
		return core.CheckpointRecord{}, fmt.Errorf("marshaling checkpoint record: %w", err)
	}
	var out core.CheckpointRecord
	if err := json.Unmarshal(b, &out); err != nil {
		return core.CheckpointRecord{}, fmt.Errorf("normalizing checkpoint record: %w", err)
	}
	return out, nil
}

func newEnvelope(state *core.WorkflowState) (checkpointEnvelope, error) {
	rec, err := normalize(state.Serialize())
	if err != nil {
		return checkpointEnvelope{}, err
	}
	sum, err := checksum(rec)
	if err != nil {
		return checkpointEnvelope{}, err
	}
	return checkpointEnvelope{
		Version:   envelopeVersion,
		Checksum:  sum,
		UpdatedAt: time.Now().UTC(),
		Record:    rec,
	}, nil
}

// verify checks the envelope and rebuilds the state it carries.
func (e checkpointEnvelope) verify() (*core.WorkflowState, error) {
	if e.Version != envelopeVersion {
		return nil, core.ErrState(core.CodeStateCorrupted,
			fmt.Sprintf("unsupported checkpoint version %d", e.Version))
	}
	sum, err := checksum(e.Record)
	if err != nil {
		return nil, err
	}
	if sum != e.Checksum {
		return nil, core.ErrState(core.CodeStateCorrupted, "checksum mismatch")
	}
	return core.StateFromRecord(e.Record)
}

// validateSessionID rejects ids that cannot name a single file.
func validateSessionID(id core.SessionID) error {
	s := string(id)
	if s == "" || s == "." || s == ".." || strings.ContainsAny(s, `/\`) || strings.ContainsRune(s, 0) {
		return core.ErrValidation("INVALID_SESSION_ID", fmt.Sprintf("invalid session id %q", s))
	}
	return nil
}
